package mesh

import (
	"github.com/gammazero/deque"
	"github.com/rmmh/blockmesh/go/render"
	"github.com/rmmh/blockmesh/go/schematic"
)

// visibility computes which cells can be seen from outside the grid.
// It works on the grid padded by one empty cell on every side, so the
// padding shell is one connected passable region to start the search from.
type visibility struct {
	dim       [3]int
	passable  []uint64 // packed bitset: light can cross this cell
	reachable []uint64 // packed bitset: reached from outside
}

func (v *visibility) index(px, py, pz int) int {
	return px + pz*v.dim[0] + py*v.dim[0]*v.dim[2]
}

func getBit(set []uint64, i int) bool {
	return set[i>>6]&(1<<(i&63)) != 0
}

func setBit(set []uint64, i int) {
	set[i>>6] |= 1 << (i & 63)
}

var neighbors = [6][3]int{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

func computeVisibility(g *schematic.Grid, models []*render.ResolvedModel) *visibility {
	v := &visibility{dim: [3]int{g.Size[0] + 2, g.Size[1] + 2, g.Size[2] + 2}}
	total := v.dim[0] * v.dim[1] * v.dim[2]
	v.passable = make([]uint64, (total+63)/64)
	v.reachable = make([]uint64, (total+63)/64)

	for py := 0; py < v.dim[1]; py++ {
		for pz := 0; pz < v.dim[2]; pz++ {
			for px := 0; px < v.dim[0]; px++ {
				m := models[g.At(px-1, py-1, pz-1)]
				if m == nil || !m.IsOpaqueCube() {
					setBit(v.passable, v.index(px, py, pz))
				}
			}
		}
	}

	// the queue for BFS
	var todo deque.Deque[int]
	push := func(i int) {
		if getBit(v.reachable, i) {
			return
		}
		setBit(v.reachable, i)
		todo.PushBack(i)
	}
	push(0)
	for todo.Len() > 0 {
		i := todo.PopFront()
		px := i % v.dim[0]
		pz := (i / v.dim[0]) % v.dim[2]
		py := i / (v.dim[0] * v.dim[2])
		for _, d := range neighbors {
			nx, ny, nz := px+d[0], py+d[1], pz+d[2]
			if nx < 0 || ny < 0 || nz < 0 || nx >= v.dim[0] || ny >= v.dim[1] || nz >= v.dim[2] {
				continue
			}
			if j := v.index(nx, ny, nz); getBit(v.passable, j) {
				push(j)
			}
		}
	}
	return v
}

func (v *visibility) reached(x, y, z int) bool {
	return getBit(v.reachable, v.index(x+1, y+1, z+1))
}

// cellVisible reports whether grid cell x,y,z was reached or touches a
// reached cell.
func (v *visibility) cellVisible(x, y, z int) bool {
	px, py, pz := x+1, y+1, z+1
	if getBit(v.reachable, v.index(px, py, pz)) {
		return true
	}
	for _, d := range neighbors {
		if getBit(v.reachable, v.index(px+d[0], py+d[1], pz+d[2])) {
			return true
		}
	}
	return false
}
