package export

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"
)

// bundleTime is stamped on every zip entry so identical inputs give
// identical bytes.
var bundleTime = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// errWriter remembers the first write error and drops everything after it.
type errWriter struct {
	w   *bufio.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

func (e *errWriter) finish(op string) error {
	if e.err == nil {
		e.err = e.w.Flush()
	}
	if e.err != nil {
		return &ExportIOError{Op: op, Err: e.err}
	}
	return nil
}

func fmtFloat(v float64) string {
	v = math.Round(v*1e6) / 1e6
	if v == 0 {
		v = 0 // no "-0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type index[K comparable] struct {
	ids map[K]int
}

// get returns the 1-based OBJ index for k and whether it is new.
func (x *index[K]) get(k K) (int, bool) {
	if id, ok := x.ids[k]; ok {
		return id, false
	}
	id := len(x.ids) + 1
	x.ids[k] = id
	return id, true
}

func snap3(v mgl64.Vec3) [3]string {
	return [3]string{fmtFloat(v[0]), fmtFloat(v[1]), fmtFloat(v[2])}
}

func snap2(v mgl64.Vec2) [2]string {
	return [2]string{fmtFloat(v[0]), fmtFloat(v[1])}
}

// WriteOBJ writes the mesh as Wavefront OBJ. Vertices, texture coordinates
// and normals are shared between faces and written just before first use;
// faces are grouped per material in texture order.
func WriteOBJ(w io.Writer, b *Bundle) error {
	ew := &errWriter{w: bufio.NewWriter(w)}
	ew.printf("# blockmesh export: %s\n", b.Name)
	ew.printf("mtllib %s.mtl\n", b.Name)
	ew.printf("o %s\n", b.Name)

	verts := index[[3]string]{ids: map[[3]string]int{}}
	uvs := index[[2]string]{ids: map[[2]string]int{}}
	normals := index[[3]string]{ids: map[[3]string]int{}}

	materials := b.materials()
	for _, tex := range b.Mesh.Textures() {
		mtl, ok := materials[tex]
		if !ok {
			mtl = materialName(tex)
		}
		ew.printf("usemtl %s\n", mtl)
		for _, f := range b.Mesh.Groups[tex] {
			n := snap3(f.Normal)
			ni, isNew := normals.get(n)
			if isNew {
				ew.printf("vn %s %s %s\n", n[0], n[1], n[2])
			}
			var vi, ti [4]int
			for i := range f.Verts {
				v := snap3(f.Verts[i])
				if vi[i], isNew = verts.get(v); isNew {
					ew.printf("v %s %s %s\n", v[0], v[1], v[2])
				}
				t := snap2(f.UVs[i])
				if ti[i], isNew = uvs.get(t); isNew {
					ew.printf("vt %s %s\n", t[0], t[1])
				}
			}
			ew.printf("f %d/%d/%d %d/%d/%d %d/%d/%d %d/%d/%d\n",
				vi[0], ti[0], ni, vi[1], ti[1], ni, vi[2], ti[2], ni, vi[3], ti[3], ni)
		}
	}
	return ew.finish("obj")
}

// WriteMTL writes one material per bundled texture.
func WriteMTL(w io.Writer, b *Bundle) error {
	ew := &errWriter{w: bufio.NewWriter(w)}
	ew.printf("# blockmesh export: %s\n", b.Name)
	for _, tex := range b.Textures {
		ew.printf("\nnewmtl %s\n", tex.Material())
		ew.printf("Ka 1.000 1.000 1.000\nKd 1.000 1.000 1.000\nKs 0.000 0.000 0.000\nillum 1\n")
		ew.printf("map_Kd %s\n", tex.Path())
		if tex.Transparent {
			ew.printf("map_d %s\n", tex.Path())
		}
	}
	return ew.finish("mtl")
}

type zipEntry struct {
	name  string
	write func(io.Writer) error
}

// WriteBundle writes <name>.obj, <name>.mtl and the textures into one zip.
// Entries are sorted and timestamps fixed, so the output is byte-for-byte
// reproducible.
func WriteBundle(w io.Writer, b *Bundle) error {
	entries := []zipEntry{
		{b.Name + ".mtl", func(w io.Writer) error { return WriteMTL(w, b) }},
		{b.Name + ".obj", func(w io.Writer) error { return WriteOBJ(w, b) }},
	}
	for _, tex := range b.Textures {
		data := tex.Data
		entries = append(entries, zipEntry{tex.Path(), func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].name < entries[j].name
	})

	zw := zip.NewWriter(w)
	for _, ent := range entries {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     ent.name,
			Method:   zip.Deflate,
			Modified: bundleTime,
		})
		if err != nil {
			return &ExportIOError{Op: "zip", Err: err}
		}
		if err := ent.write(fw); err != nil {
			var ioe *ExportIOError
			if errors.As(err, &ioe) {
				return err
			}
			return &ExportIOError{Op: "zip " + ent.name, Err: err}
		}
	}
	if err := zw.Close(); err != nil {
		return &ExportIOError{Op: "zip", Err: err}
	}
	return nil
}
