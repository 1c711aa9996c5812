// Package mesh places resolved block models at their grid positions and
// drops faces hidden by opaque neighbors.
package mesh

import (
	"log/slog"
	"runtime"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rmmh/blockmesh/go/render"
	"github.com/rmmh/blockmesh/go/schematic"
	"golang.org/x/sync/errgroup"
)

// Face is a quad in world space, one unit per block. UVs are normalized
// texture coordinates with v pointing up.
type Face struct {
	Verts   [4]mgl64.Vec3 `json:"verts"`
	UVs     [4]mgl64.Vec2 `json:"uvs"`
	Normal  mgl64.Vec3    `json:"normal"`
	Texture string        `json:"texture"`
}

// Mesh holds faces grouped by texture, each group in emission order.
type Mesh struct {
	Groups map[string][]Face
}

func New() *Mesh {
	return &Mesh{Groups: map[string][]Face{}}
}

func (m *Mesh) Add(f Face) {
	m.Groups[f.Texture] = append(m.Groups[f.Texture], f)
}

// Append moves the faces of o after the faces already in m.
func (m *Mesh) Append(o *Mesh) {
	for tex, faces := range o.Groups {
		m.Groups[tex] = append(m.Groups[tex], faces...)
	}
}

// Textures lists the referenced textures, sorted.
func (m *Mesh) Textures() []string {
	out := make([]string, 0, len(m.Groups))
	for tex := range m.Groups {
		out = append(out, tex)
	}
	sort.Strings(out)
	return out
}

func (m *Mesh) FaceCount() int {
	n := 0
	for _, faces := range m.Groups {
		n += len(faces)
	}
	return n
}

type Resolver interface {
	Resolve(st schematic.BlockState) (*render.ResolvedModel, error)
}

type Options struct {
	// Workers bounds the number of Y slabs meshed at once; 0 means one per CPU.
	Workers int
	// PruneEnclosed skips cells that cannot be seen from outside the grid.
	PruneEnclosed bool
}

// Build meshes a grid. Each distinct palette entry is resolved once up
// front; the only error is a fatal resolution error.
func Build(g *schematic.Grid, r Resolver, opts Options) (*Mesh, error) {
	models := make([]*render.ResolvedModel, len(g.Palette))
	for _, ref := range g.Used() {
		st := g.Palette[ref]
		if st.IsAir() {
			continue
		}
		m, err := r.Resolve(st)
		if err != nil {
			return nil, err
		}
		models[ref] = m
	}

	var vis *visibility
	if opts.PruneEnclosed {
		vis = computeVisibility(g, models)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	sy := g.Size[1]
	slabHeight := max(1, (sy+workers-1)/workers)
	parts := make([]*Mesh, (sy+slabHeight-1)/slabHeight)

	var eg errgroup.Group
	eg.SetLimit(workers)
	for i := range parts {
		y0, y1 := i*slabHeight, min((i+1)*slabHeight, sy)
		eg.Go(func() error {
			parts[i] = buildSlab(g, models, vis, y0, y1)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := New()
	for _, p := range parts {
		out.Append(p)
	}
	slog.Debug("built mesh", "faces", out.FaceCount(), "textures", len(out.Groups), "slabs", len(parts))
	return out, nil
}

func buildSlab(g *schematic.Grid, models []*render.ResolvedModel, vis *visibility, y0, y1 int) *Mesh {
	out := New()
	for y := y0; y < y1; y++ {
		for z := 0; z < g.Size[2]; z++ {
			for x := 0; x < g.Size[0]; x++ {
				m := models[g.At(x, y, z)]
				if m == nil || m.Empty() {
					continue
				}
				if vis != nil && !vis.cellVisible(x, y, z) {
					continue
				}
				for _, f := range m.Faces {
					if culled(g, models, vis, m, f, x, y, z) {
						continue
					}
					out.Add(place(f, x, y, z))
				}
			}
		}
	}
	return out
}

// culled reports whether a face is hidden: it must name the direction in
// its cullface, belong to a non-transparent model, and face an in-bounds
// full opaque cube. When pruning, a face into an enclosed cavity is hidden too.
func culled(g *schematic.Grid, models []*render.ResolvedModel, vis *visibility, m *render.ResolvedModel, f render.Face, x, y, z int) bool {
	if f.CullFace == render.NoCull || m.Transparent {
		return false
	}
	off := f.CullFace.Offset()
	nx, ny, nz := x+off[0], y+off[1], z+off[2]
	if !g.InBounds(nx, ny, nz) {
		return false
	}
	if vis != nil && !vis.reached(nx, ny, nz) {
		return true
	}
	n := models[g.At(nx, ny, nz)]
	return n != nil && n.IsOpaqueCube()
}

func place(f render.Face, x, y, z int) Face {
	out := Face{Normal: f.Normal, Texture: f.Texture}
	pos := mgl64.Vec3{float64(x), float64(y), float64(z)}
	for i, v := range f.Verts {
		out.Verts[i] = v.Mul(1.0 / 16).Add(pos)
		out.UVs[i] = mgl64.Vec2{f.UVs[i][0] / 16, 1 - f.UVs[i][1]/16}
	}
	return out
}
