package schematic

// RegionInfo describes one source region of a multi-region schematic,
// in grid coordinates after normalization.
type RegionInfo struct {
	Name     string `json:"name"`
	Position [3]int `json:"position"`
	Size     [3]int `json:"size"`
}

type Metadata struct {
	Format      string       `json:"format"`
	Name        string       `json:"name,omitempty"`
	Author      string       `json:"author,omitempty"`
	Description string       `json:"description,omitempty"`
	DataVersion int          `json:"data_version"`
	Version     int          `json:"version"`
	Regions     []RegionInfo `json:"regions,omitempty"`
}

// Grid is a decoded schematic: a dense x/y/z array of palette indices.
// Palette[0] is always air. Dimensions do not change after decoding.
type Grid struct {
	Size    [3]int
	Origin  [3]int
	Palette []BlockState
	Meta    Metadata

	cells []uint32
}

func (g *Grid) Len() int { return len(g.cells) }

// Index is the flat cell index, y-major then z then x.
func (g *Grid) Index(x, y, z int) int {
	return (y*g.Size[2]+z)*g.Size[0] + x
}

func (g *Grid) InBounds(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < g.Size[0] && y < g.Size[1] && z < g.Size[2]
}

// At returns the palette index at a cell, or 0 (air) outside the grid.
func (g *Grid) At(x, y, z int) uint32 {
	if !g.InBounds(x, y, z) {
		return 0
	}
	return g.cells[g.Index(x, y, z)]
}

func (g *Grid) StateAt(x, y, z int) BlockState {
	return g.Palette[g.At(x, y, z)]
}

// Occupied reports whether a cell holds something other than an air block.
func (g *Grid) Occupied(x, y, z int) bool {
	return !g.StateAt(x, y, z).IsAir()
}

// Each visits every cell in index order.
func (g *Grid) Each(fn func(x, y, z int, ref uint32)) {
	i := 0
	for y := 0; y < g.Size[1]; y++ {
		for z := 0; z < g.Size[2]; z++ {
			for x := 0; x < g.Size[0]; x++ {
				fn(x, y, z, g.cells[i])
				i++
			}
		}
	}
}

// Used returns the palette indices that occur in at least one cell, ascending.
func (g *Grid) Used() []uint32 {
	seen := make([]bool, len(g.Palette))
	for _, c := range g.cells {
		seen[c] = true
	}
	out := []uint32{}
	for i, ok := range seen {
		if ok {
			out = append(out, uint32(i))
		}
	}
	return out
}

// Builder assembles a Grid, deduplicating palette entries by key.
type Builder struct {
	grid  *Grid
	index map[string]uint32
}

// MaxVolume bounds the cells a decoded schematic may declare.
const MaxVolume = 1 << 28

// checkVolume returns the cell count of size, or a CorruptContainerError
// for empty, negative or oversized boxes.
func checkVolume(what string, size [3]int) (int, error) {
	volume := 1
	for _, s := range size {
		if s <= 0 {
			return 0, corrupt(-1, "%s has size %v", what, size)
		}
		if s > MaxVolume || volume > MaxVolume/s {
			return 0, corrupt(-1, "%s size %v exceeds %d cells", what, size, MaxVolume)
		}
		volume *= s
	}
	return volume, nil
}

func NewBuilder(sx, sy, sz int) *Builder {
	b := &Builder{
		grid: &Grid{
			Size:    [3]int{sx, sy, sz},
			Palette: []BlockState{Air},
			cells:   make([]uint32, sx*sy*sz),
		},
		index: map[string]uint32{Air.Key(): 0},
	}
	return b
}

// Ref returns the palette index for a state, adding it if needed.
func (b *Builder) Ref(st BlockState) uint32 {
	key := st.Key()
	if ref, ok := b.index[key]; ok {
		return ref
	}
	ref := uint32(len(b.grid.Palette))
	b.grid.Palette = append(b.grid.Palette, st)
	b.index[key] = ref
	return ref
}

func (b *Builder) Set(x, y, z int, st BlockState) {
	b.SetRef(x, y, z, b.Ref(st))
}

func (b *Builder) SetRef(x, y, z int, ref uint32) {
	if !b.grid.InBounds(x, y, z) {
		return
	}
	b.grid.cells[b.grid.Index(x, y, z)] = ref
}

func (b *Builder) RefAt(x, y, z int) uint32 {
	return b.grid.At(x, y, z)
}

func (b *Builder) SetOrigin(x, y, z int) *Builder {
	b.grid.Origin = [3]int{x, y, z}
	return b
}

func (b *Builder) SetMeta(m Metadata) *Builder {
	b.grid.Meta = m
	return b
}

// Grid hands over the built grid. The builder must not be used afterwards.
func (b *Builder) Grid() *Grid {
	g := b.grid
	b.grid = nil
	return g
}
