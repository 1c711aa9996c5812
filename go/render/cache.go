package render

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lz4 "github.com/DataDog/golz4-2"
	"github.com/cespare/xxhash/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/rmmh/blockmesh/go/schematic"
)

// Cache memoizes resolved models by canonical block state key. Safe for
// concurrent use; concurrent Puts of the same key keep the last one.
type Cache struct {
	mu sync.RWMutex
	m  map[string]*ResolvedModel
}

func NewCache() *Cache {
	return &Cache{m: map[string]*ResolvedModel{}}
}

func (c *Cache) Get(key string) (*ResolvedModel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.m[key]
	return m, ok
}

func (c *Cache) Put(key string, m *ResolvedModel) {
	c.mu.Lock()
	c.m[key] = m
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

func compress(buf []byte) ([]byte, error) {
	comp := make([]byte, lz4.CompressBoundHdr(buf))
	n, err := lz4.CompressHCHdr(comp, buf)
	if err != nil {
		return nil, err
	}
	return comp[:n], nil
}

func decompress(buf []byte) ([]byte, error) {
	return lz4.UncompressAllocHdr(nil, buf)
}

type diskEntry struct {
	Model    *ResolvedModel `json:"model"`
	Warnings []Warning      `json:"warnings,omitempty"`
}

// DiskCache persists resolved models between runs in an sqlite database,
// keyed by resource stack fingerprint so a changed pack never serves stale
// geometry.
type DiskCache struct {
	db    *sql.DB
	stack string
}

// CacheKey combines a stack fingerprint with the options that change what
// Resolve returns, for use with OpenDiskCache.
func (o Options) CacheKey(stackFingerprint uint64) uint64 {
	blocks := make([]string, 0, len(o.TransparentBlocks))
	for _, b := range o.TransparentBlocks {
		blocks = append(blocks, schematic.CanonicalName(b))
	}
	sort.Strings(blocks)
	depth := o.MaxParentDepth
	if depth <= 0 {
		depth = DefaultMaxParentDepth
	}
	h := xxhash.New()
	fmt.Fprintf(h, "%016x;depth=%d;", stackFingerprint, depth)
	for i, b := range blocks {
		if i > 0 && blocks[i-1] == b {
			continue
		}
		fmt.Fprintf(h, "transparent=%s;", b)
	}
	return h.Sum64()
}

func OpenDiskCache(dir string, fingerprint uint64) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", filepath.Join(dir, "resolved.sqlite"))
	if err != nil {
		return nil, errors.Wrap(err, "opening resolve cache")
	}
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`create table if not exists resolved (
		stack text not null,
		state text not null,
		data blob not null,
		primary key (stack, state))`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating resolve cache")
	}
	return &DiskCache{db: db, stack: fmt.Sprintf("%016x", fingerprint)}, nil
}

func (d *DiskCache) Get(key string) (*ResolvedModel, []Warning, bool) {
	var blob []byte
	err := d.db.QueryRow("select data from resolved where stack = ? and state = ?", d.stack, key).Scan(&blob)
	if err != nil {
		return nil, nil, false
	}
	data, err := decompress(blob)
	if err != nil {
		return nil, nil, false
	}
	var ent diskEntry
	if err := json.Unmarshal(data, &ent); err != nil || ent.Model == nil {
		return nil, nil, false
	}
	return ent.Model, ent.Warnings, true
}

func (d *DiskCache) Put(key string, m *ResolvedModel, warnings []Warning) error {
	data, err := json.Marshal(diskEntry{Model: m, Warnings: warnings})
	if err != nil {
		return err
	}
	blob, err := compress(data)
	if err != nil {
		return err
	}
	_, err = d.db.Exec("insert or replace into resolved (stack, state, data) values (?, ?, ?)", d.stack, key, blob)
	return err
}

func (d *DiskCache) Close() error {
	return d.db.Close()
}
