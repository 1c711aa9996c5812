package resourcepack

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Source is one layer of the asset stack: a resource pack archive, an
// unpacked pack directory, or a concatenated definitions file.
// Paths are always in "assets/<ns>/<kind>/<name>.<ext>" form.
type Source interface {
	Name() string
	Has(p string) bool
	// Open returns ErrNotFound when the source does not define p.
	Open(p string) ([]byte, error)
	Paths() []string
	// Fingerprint changes whenever the source's contents may have.
	Fingerprint() uint64
	Close() error
}

// OpenSource picks an implementation by looking at what p is.
func OpenSource(p string) (Source, error) {
	st, err := os.Stat(p)
	if err != nil {
		return nil, &ResourceSourceError{Source: p, Err: err}
	}
	switch {
	case st.IsDir():
		return OpenDir(p)
	case strings.EqualFold(filepath.Ext(p), ".json"):
		return OpenLoose(p)
	}
	return OpenZip(p)
}

// findAssetsRoot returns the prefix in front of "assets/", allowing one
// wrapper directory as some pack zips have.
func findAssetsRoot(names []string) (string, bool) {
	best, found := "", false
	for _, n := range names {
		idx := strings.Index(n, "assets/")
		if idx < 0 || (idx > 0 && n[idx-1] != '/') {
			continue
		}
		prefix := n[:idx]
		if strings.Count(prefix, "/") > 1 {
			continue
		}
		if !found || len(prefix) < len(best) {
			best, found = prefix, true
		}
	}
	return best, found
}

type ZipSource struct {
	name  string
	rc    *zip.ReadCloser
	files map[string]*zip.File
	paths []string
	fp    uint64
}

// OpenZip indexes a pack zip or client jar. Entries are only read on demand.
func OpenZip(p string) (*ZipSource, error) {
	rc, err := zip.OpenReader(p)
	if err != nil {
		return nil, &ResourceSourceError{Source: p, Err: err}
	}
	names := lo.Map(rc.File, func(f *zip.File, _ int) string { return f.Name })
	prefix, ok := findAssetsRoot(names)
	if !ok {
		rc.Close()
		return nil, &ResourceSourceError{Source: p, Err: errors.New("no assets directory")}
	}

	z := &ZipSource{name: p, rc: rc, files: map[string]*zip.File{}}
	h := xxhash.New()
	var scratch [12]byte
	sort.Slice(rc.File, func(i, j int) bool {
		return rc.File[i].Name < rc.File[j].Name
	})
	for _, f := range rc.File {
		if !strings.HasPrefix(f.Name, prefix) || strings.HasSuffix(f.Name, "/") {
			continue
		}
		rel := strings.TrimPrefix(f.Name, prefix)
		if _, ok := ParseAssetPath(rel); !ok {
			continue
		}
		z.files[rel] = f
		z.paths = append(z.paths, rel)
		h.WriteString(rel)
		binary.LittleEndian.PutUint32(scratch[:4], f.CRC32)
		binary.LittleEndian.PutUint64(scratch[4:], f.UncompressedSize64)
		h.Write(scratch[:])
	}
	z.fp = h.Sum64()
	return z, nil
}

func (z *ZipSource) Name() string        { return z.name }
func (z *ZipSource) Paths() []string     { return z.paths }
func (z *ZipSource) Fingerprint() uint64 { return z.fp }
func (z *ZipSource) Close() error        { return z.rc.Close() }

func (z *ZipSource) Has(p string) bool {
	_, ok := z.files[p]
	return ok
}

func (z *ZipSource) Open(p string) ([]byte, error) {
	f, ok := z.files[p]
	if !ok {
		return nil, ErrNotFound
	}
	rc, err := f.Open()
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s in %s", p, z.name)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s in %s", p, z.name)
	}
	return data, nil
}

type DirSource struct {
	name  string
	root  string
	files map[string]bool
	paths []string
	fp    uint64
}

// OpenDir indexes an unpacked resource pack directory.
func OpenDir(dir string) (*DirSource, error) {
	var names []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, &ResourceSourceError{Source: dir, Err: err}
	}
	sort.Strings(names)
	prefix, ok := findAssetsRoot(names)
	if !ok {
		return nil, &ResourceSourceError{Source: dir, Err: errors.New("no assets directory")}
	}

	d := &DirSource{name: dir, root: filepath.Join(dir, filepath.FromSlash(prefix)), files: map[string]bool{}}
	h := xxhash.New()
	for _, n := range names {
		if !strings.HasPrefix(n, prefix) {
			continue
		}
		rel := strings.TrimPrefix(n, prefix)
		if _, ok := ParseAssetPath(rel); !ok {
			continue
		}
		d.files[rel] = true
		d.paths = append(d.paths, rel)
		h.WriteString(rel)
		if st, err := os.Stat(filepath.Join(d.root, filepath.FromSlash(rel))); err == nil {
			var scratch [16]byte
			binary.LittleEndian.PutUint64(scratch[:8], uint64(st.Size()))
			binary.LittleEndian.PutUint64(scratch[8:], uint64(st.ModTime().UnixNano()))
			h.Write(scratch[:])
		}
	}
	d.fp = h.Sum64()
	return d, nil
}

func (d *DirSource) Name() string        { return d.name }
func (d *DirSource) Paths() []string     { return d.paths }
func (d *DirSource) Fingerprint() uint64 { return d.fp }
func (d *DirSource) Close() error        { return nil }
func (d *DirSource) Has(p string) bool   { return d.files[p] }

func (d *DirSource) Open(p string) ([]byte, error) {
	if !d.files[p] {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(filepath.Join(d.root, filepath.FromSlash(p)))
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s in %s", p, d.name)
	}
	return data, nil
}

// LooseSource serves a textures.json written by Definitions.WriteDir,
// plus the textures/ directory next to it.
type LooseSource struct {
	name  string
	files map[string][]byte
	dir   string
	paths []string
	fp    uint64
}

func OpenLoose(p string) (*LooseSource, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, &ResourceSourceError{Source: p, Err: err}
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, &ResourceSourceError{Source: p, Err: errors.Wrap(err, "parsing definitions")}
	}
	l := &LooseSource{name: p, files: map[string][]byte{}}
	for key, raw := range top {
		if key == modelsKey {
			var models map[string]json.RawMessage
			if err := json.Unmarshal(raw, &models); err != nil {
				return nil, &ResourceSourceError{Source: p, Err: errors.Wrap(err, "parsing models")}
			}
			for ref, m := range models {
				l.files[ModelPath(ref)] = m
			}
			continue
		}
		l.files[BlockStatePath(key)] = raw
	}

	h := xxhash.New()
	h.Write(data)
	texDir := filepath.Join(filepath.Dir(p), "textures")
	if st, err := os.Stat(texDir); err == nil && st.IsDir() {
		l.dir = texDir
		err := filepath.WalkDir(texDir, func(fp string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || !strings.HasSuffix(fp, ".png") {
				return err
			}
			rel, err := filepath.Rel(texDir, fp)
			if err != nil {
				return err
			}
			ns, name, ok := strings.Cut(filepath.ToSlash(rel), "/")
			if !ok {
				return nil
			}
			l.files["assets/"+ns+"/textures/"+name] = nil
			h.WriteString(rel)
			return nil
		})
		if err != nil {
			return nil, &ResourceSourceError{Source: p, Err: err}
		}
	}
	l.paths = lo.Keys(l.files)
	sort.Strings(l.paths)
	l.fp = h.Sum64()
	return l, nil
}

func (l *LooseSource) Name() string        { return l.name }
func (l *LooseSource) Paths() []string     { return l.paths }
func (l *LooseSource) Fingerprint() uint64 { return l.fp }
func (l *LooseSource) Close() error        { return nil }

func (l *LooseSource) Has(p string) bool {
	_, ok := l.files[p]
	return ok
}

func (l *LooseSource) Open(p string) ([]byte, error) {
	data, ok := l.files[p]
	if !ok {
		return nil, ErrNotFound
	}
	if data != nil {
		return data, nil
	}
	a, _ := ParseAssetPath(p)
	tex, err := os.ReadFile(filepath.Join(l.dir, a.Namespace, filepath.FromSlash(a.Name+"."+a.Ext)))
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", p)
	}
	return tex, nil
}

// MemSource is an in-memory source, mostly for tests and generated assets.
type MemSource struct {
	name  string
	files map[string][]byte
}

func NewMemSource(name string, files map[string][]byte) *MemSource {
	return &MemSource{name: name, files: files}
}

func (m *MemSource) Name() string { return m.name }
func (m *MemSource) Close() error { return nil }

func (m *MemSource) Has(p string) bool {
	_, ok := m.files[p]
	return ok
}

func (m *MemSource) Open(p string) ([]byte, error) {
	data, ok := m.files[p]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func (m *MemSource) Paths() []string {
	out := lo.Keys(m.files)
	sort.Strings(out)
	return out
}

func (m *MemSource) Fingerprint() uint64 {
	h := xxhash.New()
	for _, p := range m.Paths() {
		h.WriteString(p)
		h.Write(m.files[p])
	}
	return h.Sum64()
}
