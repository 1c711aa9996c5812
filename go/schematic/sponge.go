package schematic

import (
	"io"
	"reflect"

	"github.com/pkg/errors"
	"github.com/sandertv/gophertunnel/minecraft/nbt"
)

func (s *rootScan) isSponge() bool {
	if ty, ok := s.v3Keys["Blocks"]; ok && ty == TagCompound {
		return true
	}
	_, hasPalette := s.topKeys["Palette"]
	ty, hasData := s.topKeys["BlockData"]
	return hasPalette && hasData && ty == TagByteArray
}

// decodeSponge handles Sponge schematics v1 through v3. NbtWalk has already
// validated the container, so this decodes it structurally.
func decodeSponge(buf []byte) (*Grid, error) {
	var root map[string]any
	if err := nbt.UnmarshalEncoding(buf, &root, nbt.BigEndian); err != nil {
		return nil, nbtError(err)
	}
	body := root
	if inner, ok := root["Schematic"].(map[string]any); ok {
		body = inner
	}

	version, _ := asInt(body["Version"])
	width, okW := asUShort(body["Width"])
	height, okH := asUShort(body["Height"])
	length, okL := asUShort(body["Length"])
	if !okW || !okH || !okL {
		return nil, corrupt(-1, "sponge schematic is missing its dimensions")
	}

	paletteRaw, dataRaw := body["Palette"], body["BlockData"]
	if version >= 3 {
		blocks, ok := body["Blocks"].(map[string]any)
		if !ok {
			return nil, corrupt(-1, "sponge v3 schematic has no Blocks container")
		}
		paletteRaw, dataRaw = blocks["Palette"], blocks["Data"]
	}
	palette, ok := paletteRaw.(map[string]any)
	if !ok {
		return nil, corrupt(-1, "sponge schematic has no palette")
	}
	data, ok := asBytes(dataRaw)
	if !ok {
		return nil, corrupt(-1, "sponge schematic has no block data")
	}

	volume, err := checkVolume("sponge schematic", [3]int{width, height, length})
	if err != nil {
		return nil, err
	}
	cells, err := readVarints(data, volume)
	if err != nil {
		return nil, err
	}

	b := NewBuilder(width, height, length)
	lookup := map[int]uint32{}
	for key, rawIdx := range palette {
		idx, ok := asInt(rawIdx)
		if !ok {
			return nil, corrupt(-1, "palette entry %q is not an integer", key)
		}
		if _, dup := lookup[idx]; dup {
			return nil, corrupt(-1, "palette index %d is assigned twice", idx)
		}
		st, err := ParseBlockState(key)
		if err != nil {
			return nil, &CorruptContainerError{Offset: -1, Reason: err.Error()}
		}
		lookup[idx] = b.Ref(st)
	}

	// Sponge orders cells x + z*W + y*W*L, which is our index order.
	for i, v := range cells {
		ref, ok := lookup[v]
		if !ok {
			return nil, corrupt(-1, "cell %d references palette index %d which is not defined", i, v)
		}
		b.grid.cells[i] = ref
	}

	meta := Metadata{Format: "sponge", Version: version}
	meta.DataVersion, _ = asInt(body["DataVersion"])
	if m, ok := body["Metadata"].(map[string]any); ok {
		meta.Name, _ = m["Name"].(string)
		meta.Author, _ = m["Author"].(string)
	}
	if off, ok := asInts(body["Offset"]); ok && len(off) == 3 {
		b.SetOrigin(off[0], off[1], off[2])
	}
	return b.SetMeta(meta).Grid(), nil
}

func readVarints(data []byte, count int) ([]int, error) {
	out := make([]int, 0, min(count, len(data)))
	for o := 0; o < len(data); {
		v, shift := 0, 0
		for {
			if o >= len(data) {
				return nil, corrupt(o, "block data ends inside a varint")
			}
			c := data[o]
			o++
			v |= int(c&0x7f) << shift
			if c&0x80 == 0 {
				break
			}
			shift += 7
			if shift > 28 {
				return nil, corrupt(o, "varint too long in block data")
			}
		}
		out = append(out, v)
	}
	if len(out) != count {
		return nil, corrupt(-1, "block data holds %d cells, dimensions need %d", len(out), count)
	}
	return out, nil
}

func nbtError(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &TruncatedDataError{Offset: -1, Field: "nbt"}
	}
	return &CorruptContainerError{Offset: -1, Reason: err.Error()}
}

func asInt(v any) (int, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(rv.Uint()), true
	}
	return 0, false
}

// asUShort reads a TAG_Short that the format treats as unsigned.
func asUShort(v any) (int, bool) {
	n, ok := asInt(v)
	if ok && n < 0 {
		n += 1 << 16
	}
	return n, ok
}

// asBytes and asInts accept both the fixed-size arrays the nbt package
// produces for array tags and plain slices.
func asBytes(v any) ([]byte, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Array && rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]byte, rv.Len())
	for i := range out {
		n, ok := asInt(rv.Index(i).Interface())
		if !ok {
			return nil, false
		}
		out[i] = byte(n)
	}
	return out, true
}

func asInts(v any) ([]int, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Array && rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]int, rv.Len())
	for i := range out {
		n, ok := asInt(rv.Index(i).Interface())
		if !ok {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}
