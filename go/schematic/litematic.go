package schematic

import (
	"encoding/binary"
	"math/bits"
	"strconv"
)

type paletteEntry struct {
	name  string
	props map[string]string
}

type litematicRegion struct {
	name    string
	pos     [3]int
	size    [3]int
	seen    map[string]bool
	palette []paletteEntry
	states  []byte
}

// rootScan is everything NbtWalk collects in a single pass: the
// litematic fields, plus enough of the top level to tell formats apart.
type rootScan struct {
	topKeys map[string]TagType
	v3Keys  map[string]TagType

	dataVersion int
	version     int
	meta        Metadata
	regions     []*litematicRegion
	regionIdx   map[string]*litematicRegion
}

var axisIndex = map[string]int{"x": 0, "y": 1, "z": 2}

func scanRoot(buf []byte) (*rootScan, error) {
	s := &rootScan{
		topKeys:   map[string]TagType{},
		v3Keys:    map[string]TagType{},
		regionIdx: map[string]*litematicRegion{},
	}
	err := NbtWalk(buf, func(path []string, ty TagType, value []byte) {
		if len(path) == 0 {
			return
		}
		if len(path) == 1 {
			s.topKeys[path[0]] = ty
		}
		if len(path) == 2 && path[0] == "Schematic" {
			s.v3Keys[path[1]] = ty
		}
		switch path[0] {
		case "MinecraftDataVersion":
			if len(path) == 1 {
				s.dataVersion, _ = nbtInt(ty, value)
			}
		case "Version":
			if len(path) == 1 {
				s.version, _ = nbtInt(ty, value)
			}
		case "Metadata":
			if len(path) == 2 && ty == TagString {
				switch path[1] {
				case "Name":
					s.meta.Name = string(value)
				case "Author":
					s.meta.Author = string(value)
				case "Description":
					s.meta.Description = string(value)
				}
			}
		case "Regions":
			s.scanRegion(path[1:], ty, value)
		}
	})
	return s, err
}

func (s *rootScan) scanRegion(path []string, ty TagType, value []byte) {
	if len(path) == 0 {
		return
	}
	r := s.regionIdx[path[0]]
	if r == nil {
		r = &litematicRegion{name: path[0], seen: map[string]bool{}}
		s.regionIdx[path[0]] = r
		s.regions = append(s.regions, r)
	}
	if len(path) < 2 {
		return
	}
	switch path[1] {
	case "Position", "Size":
		if len(path) != 3 {
			return
		}
		axis, ok := axisIndex[path[2]]
		if !ok {
			return
		}
		v, ok := nbtInt(ty, value)
		if !ok {
			return
		}
		r.seen[path[1]+"."+path[2]] = true
		if path[1] == "Position" {
			r.pos[axis] = v
		} else {
			r.size[axis] = v
		}
	case "BlockStates":
		if ty == TagLongArray {
			r.seen["BlockStates"] = true
			r.states = value
		}
	case "BlockStatePalette":
		if len(path) == 2 {
			r.seen["BlockStatePalette"] = true
			return
		}
		idx, err := strconv.Atoi(path[2])
		if err != nil {
			return
		}
		for len(r.palette) <= idx {
			r.palette = append(r.palette, paletteEntry{})
		}
		if len(path) == 4 && path[3] == "Name" && ty == TagString {
			r.palette[idx].name = string(value)
		} else if len(path) == 5 && path[3] == "Properties" && ty == TagString {
			if r.palette[idx].props == nil {
				r.palette[idx].props = map[string]string{}
			}
			r.palette[idx].props[path[4]] = string(value)
		}
	}
}

func (s *rootScan) isLitematic() bool {
	ty, ok := s.topKeys["Regions"]
	return ok && ty == TagCompound
}

// bounds returns the region's minimum corner and absolute size.
// Litematica allows negative sizes, extending from the position backwards.
func (r *litematicRegion) bounds() (start, size [3]int) {
	for i := 0; i < 3; i++ {
		s := r.size[i]
		if s < 0 {
			start[i] = r.pos[i] + s + 1
			size[i] = -s
		} else {
			start[i] = r.pos[i]
			size[i] = s
		}
	}
	return
}

func decodeLitematic(s *rootScan) (*Grid, error) {
	if s.version < 1 || s.version > 7 {
		return nil, corrupt(-1, "unsupported litematic version %d", s.version)
	}
	if len(s.regions) == 0 {
		return nil, corrupt(-1, "litematic has no regions")
	}

	// Validate every region against its payload before allocating.
	cells := make([][]uint32, len(s.regions))
	var lo, hi [3]int
	for i, r := range s.regions {
		for _, f := range []string{"Position.x", "Position.y", "Position.z", "Size.x", "Size.y", "Size.z", "BlockStates", "BlockStatePalette"} {
			if !r.seen[f] {
				return nil, corrupt(-1, "region %q is missing %s", r.name, f)
			}
		}
		if len(r.palette) == 0 {
			return nil, corrupt(-1, "region %q has an empty palette", r.name)
		}
		start, size := r.bounds()
		volume, err := checkVolume("region "+strconv.Quote(r.name), size)
		if err != nil {
			return nil, err
		}
		cells[i], err = unpackBlockStates(r.states, volume, len(r.palette))
		if err != nil {
			return nil, err
		}
		for a := 0; a < 3; a++ {
			if i == 0 || start[a] < lo[a] {
				lo[a] = start[a]
			}
			if i == 0 || start[a]+size[a] > hi[a] {
				hi[a] = start[a] + size[a]
			}
		}
	}
	box := [3]int{hi[0] - lo[0], hi[1] - lo[1], hi[2] - lo[2]}
	if _, err := checkVolume("litematic bounding box", box); err != nil {
		return nil, err
	}

	b := NewBuilder(box[0], box[1], box[2]).SetOrigin(lo[0], lo[1], lo[2])
	meta := s.meta
	meta.Format = "litematic"
	meta.Version = s.version
	meta.DataVersion = s.dataVersion

	for ri, r := range s.regions {
		start, size := r.bounds()
		off := [3]int{start[0] - lo[0], start[1] - lo[1], start[2] - lo[2]}
		meta.Regions = append(meta.Regions, RegionInfo{
			Name:     r.name,
			Position: off,
			Size:     size,
		})
		refs := make([]uint32, len(r.palette))
		for i, p := range r.palette {
			if p.name == "" {
				return nil, corrupt(-1, "region %q palette entry %d has no name", r.name, i)
			}
			refs[i] = b.Ref(NewBlockState(p.name, p.props))
		}

		vals := cells[ri]
		i := 0
		for y := 0; y < size[1]; y++ {
			for z := 0; z < size[2]; z++ {
				for x := 0; x < size[0]; x++ {
					v := vals[i]
					i++
					if int(v) >= len(refs) {
						return nil, corrupt(-1, "region %q references palette index %d of %d", r.name, v, len(refs))
					}
					gx, gy, gz := off[0]+x, off[1]+y, off[2]+z
					ref := refs[v]
					if b.grid.Palette[ref].IsAir() {
						continue
					}
					if cur := b.RefAt(gx, gy, gz); cur != 0 && !b.grid.Palette[cur].IsAir() {
						continue
					}
					b.SetRef(gx, gy, gz, ref)
				}
			}
		}
	}
	return b.SetMeta(meta).Grid(), nil
}

// litematicBits is the per-entry width Litematica uses for a palette size.
func litematicBits(paletteLen int) int {
	return max(2, bits.Len(uint(paletteLen-1)))
}

// unpackBlockStates decodes a long array in which entries are packed
// back-to-back, low bits first, and may straddle long boundaries.
func unpackBlockStates(value []byte, volume, paletteLen int) ([]uint32, error) {
	bpb := litematicBits(paletteLen)
	want := (volume*bpb + 63) / 64
	if len(value)/8 != want {
		return nil, corrupt(-1, "block state array has %d longs, want %d for %d cells at %d bits", len(value)/8, want, volume, bpb)
	}

	longs := make([]uint64, len(value)/8)
	for i := range longs {
		longs[i] = binary.BigEndian.Uint64(value[i*8:])
	}

	bmask := uint64(1)<<bpb - 1
	ret := make([]uint32, volume)
	for i := 0; i < volume; i++ {
		bit := i * bpb
		start, off := bit>>6, uint(bit&63)
		v := longs[start] >> off
		if off+uint(bpb) > 64 {
			v |= longs[start+1] << (64 - off)
		}
		ret[i] = uint32(v & bmask)
	}
	return ret, nil
}
