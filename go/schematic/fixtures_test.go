package schematic

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/sandertv/gophertunnel/minecraft/nbt"
	"github.com/stretchr/testify/require"
)

// packBlockStates is the inverse of unpackBlockStates.
func packBlockStates(vals []uint32, paletteLen int) []int64 {
	bpb := litematicBits(paletteLen)
	longs := make([]uint64, (len(vals)*bpb+63)/64)
	for i, v := range vals {
		bit := i * bpb
		start, off := bit>>6, uint(bit&63)
		longs[start] |= uint64(v) << off
		if off+uint(bpb) > 64 {
			longs[start+1] |= uint64(v) >> (64 - off)
		}
	}
	out := make([]int64, len(longs))
	for i, l := range longs {
		out[i] = int64(l)
	}
	return out
}

// nbt encodes Go arrays, not slices, as array tags.
func longArray(v []int64) any {
	arr := reflect.New(reflect.ArrayOf(len(v), reflect.TypeOf(int64(0)))).Elem()
	for i, x := range v {
		arr.Index(i).SetInt(x)
	}
	return arr.Interface()
}

func byteArray(v []byte) any {
	arr := reflect.New(reflect.ArrayOf(len(v), reflect.TypeOf(byte(0)))).Elem()
	reflect.Copy(arr, reflect.ValueOf(v))
	return arr.Interface()
}

func intArray(v ...int32) any {
	arr := reflect.New(reflect.ArrayOf(len(v), reflect.TypeOf(int32(0)))).Elem()
	for i, x := range v {
		arr.Index(i).SetInt(int64(x))
	}
	return arr.Interface()
}

func xyz(x, y, z int32) map[string]any {
	return map[string]any{"x": x, "y": y, "z": z}
}

type testRegion struct {
	name     string
	pos      [3]int32
	size     [3]int32
	palette  []string
	cells    []uint32
	longs    []int64
	skipPack bool
}

func (r testRegion) nbt(t *testing.T) map[string]any {
	pal := []map[string]any{}
	for _, p := range r.palette {
		st, err := ParseBlockState(p)
		require.NoError(t, err)
		entry := map[string]any{"Name": st.Name}
		if len(st.Properties) > 0 {
			props := map[string]any{}
			for k, v := range st.Properties {
				props[k] = v
			}
			entry["Properties"] = props
		}
		pal = append(pal, entry)
	}
	longs := r.longs
	if !r.skipPack {
		longs = packBlockStates(r.cells, len(r.palette))
	}
	return map[string]any{
		"Position":          xyz(r.pos[0], r.pos[1], r.pos[2]),
		"Size":              xyz(r.size[0], r.size[1], r.size[2]),
		"BlockStatePalette": pal,
		"BlockStates":       longArray(longs),
		"Entities":          []map[string]any{},
		"TileEntities":      []map[string]any{},
	}
}

func litematicBytes(t *testing.T, version int32, regions ...testRegion) []byte {
	regs := map[string]any{}
	for _, r := range regions {
		regs[r.name] = r.nbt(t)
	}
	root := map[string]any{
		"MinecraftDataVersion": int32(3700),
		"Version":              version,
		"SubVersion":           int32(1),
		"Metadata": map[string]any{
			"Name":          "test build",
			"Author":        "tester",
			"Description":   "",
			"EnclosingSize": xyz(2, 2, 2),
			"RegionCount":   int32(len(regions)),
			"TimeCreated":   int64(1700000000000),
		},
		"Regions": regs,
	}
	return gzipNBT(t, root)
}

func gzipNBT(t *testing.T, root map[string]any) []byte {
	raw, err := nbt.MarshalEncoding(root, nbt.BigEndian)
	require.NoError(t, err)
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err = zw.Write(raw)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func varints(vals ...int) []byte {
	out := []byte{}
	for _, v := range vals {
		for v >= 0x80 {
			out = append(out, byte(v&0x7f|0x80))
			v >>= 7
		}
		out = append(out, byte(v))
	}
	return out
}
