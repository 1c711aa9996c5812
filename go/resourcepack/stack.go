// Package resourcepack loads Minecraft resource packs and layers them into
// a stack with the game's override rules: the first source defining a path wins.
package resourcepack

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

var ErrNotFound = errors.New("resource not found")

// ResourceSourceError means a pack could not be opened or indexed.
type ResourceSourceError struct {
	Source string
	Err    error
}

func (e *ResourceSourceError) Error() string {
	return fmt.Sprintf("resource source %s: %v", e.Source, e.Err)
}

func (e *ResourceSourceError) Unwrap() error { return e.Err }

// Resource is a resolved path: its bytes and the rank of the source that
// provided it (0 is the highest priority).
type Resource struct {
	Path   string
	Data   []byte
	Rank   int
	Source string
}

type Stack struct {
	sources []Source

	mu          sync.Mutex
	models      map[string]*Model
	blockstates map[string]*BlockStateDefinition
}

// NewStack layers already opened sources, highest priority first.
func NewStack(sources ...Source) *Stack {
	return &Stack{
		sources:     sources,
		models:      map[string]*Model{},
		blockstates: map[string]*BlockStateDefinition{},
	}
}

// Build opens and indexes every source in parallel. Rank follows the
// order of paths. If any source fails, the others are closed and the
// first error is returned.
func Build(ctx context.Context, paths ...string) (*Stack, error) {
	sources := make([]Source, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			src, err := OpenSource(p)
			if err != nil {
				return err
			}
			sources[i] = src
			slog.Debug("indexed resource source", "source", p, "rank", i, "paths", len(src.Paths()))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, s := range sources {
			if s != nil {
				s.Close()
			}
		}
		return nil, err
	}
	return NewStack(sources...), nil
}

func (s *Stack) Sources() []Source { return s.sources }

func (s *Stack) Close() error {
	var first error
	for _, src := range s.sources {
		if err := src.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Resolve checks sources in rank order and returns the first definition.
func (s *Stack) Resolve(p string) (Resource, error) {
	for rank, src := range s.sources {
		if !src.Has(p) {
			continue
		}
		data, err := src.Open(p)
		if err != nil {
			return Resource{}, err
		}
		return Resource{Path: p, Data: data, Rank: rank, Source: src.Name()}, nil
	}
	return Resource{}, errors.Wrap(ErrNotFound, p)
}

func (s *Stack) Has(p string) bool {
	for _, src := range s.sources {
		if src.Has(p) {
			return true
		}
	}
	return false
}

// List returns every path under prefix that any source defines, sorted.
func (s *Stack) List(prefix string) []string {
	seen := map[string]bool{}
	for _, src := range s.sources {
		for _, p := range src.Paths() {
			if strings.HasPrefix(p, prefix) {
				seen[p] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// BlockNames lists the ids of every block with a blockstate definition.
func (s *Stack) BlockNames() []string {
	out := []string{}
	for _, p := range s.List("assets/") {
		a, ok := ParseAssetPath(p)
		if ok && a.Kind == "blockstates" && a.Ext == "json" {
			out = append(out, a.Ref())
		}
	}
	return out
}

// Fingerprint identifies the stack contents for on-disk caching.
func (s *Stack) Fingerprint() uint64 {
	h := xxhash.New()
	for _, src := range s.sources {
		fmt.Fprintf(h, "%s:%016x;", src.Name(), src.Fingerprint())
	}
	return h.Sum64()
}

// BlockStateDefinition loads and parses the blockstate file for a block id.
func (s *Stack) BlockStateDefinition(block string) (*BlockStateDefinition, error) {
	block = Canonical(block)
	s.mu.Lock()
	def, ok := s.blockstates[block]
	s.mu.Unlock()
	if ok {
		return def, nil
	}
	res, err := s.Resolve(BlockStatePath(block))
	if err != nil {
		return nil, err
	}
	def, err = ParseBlockStateDefinition(res.Data)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to decode %s from %s", res.Path, res.Source)
	}
	s.mu.Lock()
	s.blockstates[block] = def
	s.mu.Unlock()
	return def, nil
}

// Model loads and parses a model by reference. The returned model is
// shared and must not be modified.
func (s *Stack) Model(ref string) (*Model, error) {
	ref = Canonical(ref)
	s.mu.Lock()
	m, ok := s.models[ref]
	s.mu.Unlock()
	if ok {
		return m, nil
	}
	res, err := s.Resolve(ModelPath(ref))
	if err != nil {
		return nil, err
	}
	m, err = ParseModel(res.Data)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to decode %s from %s", res.Path, res.Source)
	}
	s.mu.Lock()
	s.models[ref] = m
	s.mu.Unlock()
	return m, nil
}

func (s *Stack) Texture(ref string) (Resource, error) {
	return s.Resolve(TexturePath(ref))
}
