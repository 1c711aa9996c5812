package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	rp "github.com/rmmh/blockmesh/go/resourcepack"
	"github.com/rmmh/blockmesh/go/schematic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidPNG(alpha uint8) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.NRGBA{100, 100, 100, 255})
		}
	}
	img.Set(3, 3, color.NRGBA{0, 0, 0, alpha})
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

const cubeModel = `{"elements":[{"from":[0,0,0],"to":[16,16,16],"faces":{
	"down":{"texture":"#down","cullface":"down"},
	"up":{"texture":"#up","cullface":"up"},
	"north":{"texture":"#north","cullface":"north"},
	"south":{"texture":"#south","cullface":"south"},
	"west":{"texture":"#west","cullface":"west"},
	"east":{"texture":"#east","cullface":"east"}}}]}`

const cubeAll = `{"parent":"block/cube","textures":{"particle":"#all","down":"#all","up":"#all",
	"north":"#all","east":"#all","south":"#all","west":"#all"}}`

func testStack(extra map[string]string) *rp.Stack {
	files := map[string][]byte{
		rp.ModelPath("block/cube"):     []byte(cubeModel),
		rp.ModelPath("block/cube_all"): []byte(cubeAll),
		rp.TexturePath("block/stone"):  solidPNG(255),
		rp.TexturePath("block/glass"):  solidPNG(0),
		rp.TexturePath("block/ice"):    solidPNG(128),
		rp.BlockStatePath("stone"):     []byte(`{"variants":{"":{"model":"block/stone"}}}`),
		rp.ModelPath("block/stone"):    []byte(`{"parent":"minecraft:block/cube_all","textures":{"all":"block/stone"}}`),
		rp.BlockStatePath("glass"):     []byte(`{"variants":{"":{"model":"block/glass"}}}`),
		rp.ModelPath("block/glass"):    []byte(`{"parent":"block/cube_all","textures":{"all":"minecraft:block/glass"}}`),
	}
	for k, v := range extra {
		files[k] = []byte(v)
	}
	return rp.NewStack(rp.NewMemSource("test", files))
}

func state(t *testing.T, s string) schematic.BlockState {
	t.Helper()
	st, err := schematic.ParseBlockState(s)
	require.NoError(t, err)
	return st
}

func TestResolveFullCube(t *testing.T) {
	r := NewResolver(testStack(nil), Options{})
	m, err := r.Resolve(state(t, "minecraft:stone"))
	require.NoError(t, err)
	require.Len(t, m.Faces, 6)
	assert.True(t, m.IsOpaqueCube())
	assert.False(t, m.Placeholder)
	for i, f := range m.Faces {
		assert.Equal(t, "minecraft:block/stone", f.Texture)
		assert.Equal(t, Directions[i], f.CullFace)
		assert.Equal(t, Directions[i].Normal(), f.Normal)
	}
	assert.Equal(t, 0, r.Warnings().Count())

	again, err := r.Resolve(state(t, "stone"))
	require.NoError(t, err)
	assert.Same(t, m, again)
}

func TestResolveTransparentCube(t *testing.T) {
	r := NewResolver(testStack(nil), Options{})
	m, err := r.Resolve(state(t, "glass"))
	require.NoError(t, err)
	assert.True(t, m.Transparent)
	assert.False(t, m.IsOpaqueCube())
	assert.Equal(t, TexCutout, r.TextureClass("minecraft:block/glass"))
	assert.Equal(t, TexTranslucent, r.TextureClass("minecraft:block/ice"))

	r = NewResolver(testStack(nil), Options{TransparentBlocks: []string{"stone"}})
	m, err = r.Resolve(state(t, "stone"))
	require.NoError(t, err)
	assert.False(t, m.IsOpaqueCube())
}

func TestResolveMissingDefinition(t *testing.T) {
	r := NewResolver(testStack(nil), Options{})
	for _, s := range []string{"mod:gizmo[facing=north]", "mod:gizmo[facing=south]"} {
		m, err := r.Resolve(state(t, s))
		require.NoError(t, err)
		assert.True(t, m.Placeholder)
		assert.True(t, m.IsOpaqueCube())
		require.Len(t, m.Faces, 6)
		for _, f := range m.Faces {
			assert.Equal(t, MissingTexture, f.Texture)
		}
	}
	assert.Equal(t, 1, r.Warnings().Count())
	assert.Equal(t, 1, r.Warnings().CountKind(WarnMissingDefinition))
}

func TestResolveAir(t *testing.T) {
	r := NewResolver(testStack(nil), Options{})
	m, err := r.Resolve(schematic.NewBlockState("cave_air", nil))
	require.NoError(t, err)
	assert.True(t, m.Empty())
	assert.Equal(t, 0, r.Warnings().Count())
}

const panelModel = `{"textures":{"t":"block/stone"},"elements":[{"from":[0,0,0],"to":[16,16,2],
	"faces":{"north":{"texture":"#t","cullface":"north"}}}]}`

func TestVariantSelection(t *testing.T) {
	stack := testStack(map[string]string{
		rp.BlockStatePath("panel"): `{"variants":{
			"facing=north":{"model":"block/panel"},
			"facing=east":{"model":"block/panel","y":90},
			"facing=east,lit=true":{"model":"block/glass"},
			"facing=down":{"model":"block/panel","x":90}
		}}`,
		rp.ModelPath("block/panel"): panelModel,
	})
	r := NewResolver(stack, Options{})

	m, err := r.Resolve(state(t, "panel[facing=north,waterlogged=false]"))
	require.NoError(t, err)
	require.Len(t, m.Faces, 1)
	assert.Equal(t, North, m.Faces[0].CullFace)
	assert.False(t, m.FullCube)
	assert.False(t, m.Transparent)

	// first listed match wins even when a later key is more specific
	m, err = r.Resolve(state(t, "panel[facing=east,lit=true]"))
	require.NoError(t, err)
	require.Len(t, m.Faces, 1)
	f := m.Faces[0]
	assert.Equal(t, East, f.CullFace)
	assertVecNear(t, mgl64.Vec3{1, 0, 0}, f.Normal)
	for _, v := range f.Verts {
		assert.InDelta(t, 16, v[0], 1e-9)
	}

	m, err = r.Resolve(state(t, "panel[facing=down]"))
	require.NoError(t, err)
	assert.Equal(t, Down, m.Faces[0].CullFace)
	for _, v := range m.Faces[0].Verts {
		assert.InDelta(t, 0, v[1], 1e-9)
	}

	m, err = r.Resolve(state(t, "panel[facing=up]"))
	require.NoError(t, err)
	assert.True(t, m.Placeholder)
	assert.Equal(t, 1, r.Warnings().CountKind(WarnNoVariant))
}

func TestMultipart(t *testing.T) {
	stack := testStack(map[string]string{
		rp.BlockStatePath("fence"): `{"multipart":[
			{"apply":{"model":"block/post"}},
			{"when":{"north":"true"},"apply":{"model":"block/side"}},
			{"when":{"east":true},"apply":{"model":"block/side","y":90}},
			{"when":{"OR":[{"south":"true"},{"west":"low|tall"}]},"apply":{"model":"block/side","y":180}}
		]}`,
		rp.ModelPath("block/post"): `{"textures":{"t":"block/stone"},"elements":[{"from":[6,0,6],"to":[10,16,10],
			"faces":{"up":{"texture":"#t"},"down":{"texture":"#t"}}}]}`,
		rp.ModelPath("block/side"): `{"textures":{"t":"block/stone"},"elements":[{"from":[7,0,0],"to":[9,16,6],
			"faces":{"north":{"texture":"#t","cullface":"north"}}}]}`,
	})
	r := NewResolver(stack, Options{})

	cases := []struct {
		state string
		faces int
	}{
		{"fence[north=false,east=false,south=false,west=none]", 2},
		{"fence[north=true,east=true,south=false,west=none]", 4},
		{"fence[north=false,east=false,south=false,west=tall]", 3},
		{"fence[north=true,east=true,south=true,west=low]", 5},
	}
	for _, c := range cases {
		m, err := r.Resolve(state(t, c.state))
		require.NoError(t, err)
		assert.Len(t, m.Faces, c.faces, c.state)
	}
	assert.Equal(t, 0, r.Warnings().Count())
}

func TestInheritanceCycle(t *testing.T) {
	stack := testStack(map[string]string{
		rp.BlockStatePath("loop"): `{"variants":{"":{"model":"block/a"}}}`,
		rp.ModelPath("block/a"):   `{"parent":"block/b"}`,
		rp.ModelPath("block/b"):   `{"parent":"minecraft:block/a"}`,
	})
	_, err := NewResolver(stack, Options{}).Resolve(state(t, "loop"))
	var cycle *ModelInheritanceCycleError
	require.True(t, errors.As(err, &cycle), "%v", err)
	assert.Equal(t, []string{"minecraft:block/a", "minecraft:block/b", "minecraft:block/a"}, cycle.Chain)
}

func TestInheritanceDepthLimit(t *testing.T) {
	stack := testStack(map[string]string{
		rp.BlockStatePath("deep"): `{"variants":{"":{"model":"block/d0"}}}`,
		rp.ModelPath("block/d0"):  `{"parent":"block/d1"}`,
		rp.ModelPath("block/d1"):  `{"parent":"block/d2"}`,
		rp.ModelPath("block/d2"):  `{"parent":"block/d3"}`,
		rp.ModelPath("block/d3"):  `{"parent":"block/stone"}`,
	})
	_, err := NewResolver(stack, Options{MaxParentDepth: 2}).Resolve(state(t, "deep"))
	var cycle *ModelInheritanceCycleError
	assert.True(t, errors.As(err, &cycle))

	m, err := NewResolver(stack, Options{}).Resolve(state(t, "deep"))
	require.NoError(t, err)
	assert.True(t, m.IsOpaqueCube())
}

func TestMissingModelAndTextures(t *testing.T) {
	stack := testStack(map[string]string{
		rp.BlockStatePath("ghost"):   `{"variants":{"":{"model":"block/ghost"}}}`,
		rp.BlockStatePath("patchy"):  `{"variants":{"":{"model":"block/patchy"}}}`,
		rp.ModelPath("block/patchy"): `{"parent":"block/cube","textures":{"down":"block/stone","up":"block/nope",
			"north":"#all","south":"block/stone","west":"block/stone","east":"block/stone"}}`,
	})
	r := NewResolver(stack, Options{})
	m, err := r.Resolve(state(t, "ghost"))
	require.NoError(t, err)
	assert.True(t, m.Placeholder)
	assert.Equal(t, 1, r.Warnings().CountKind(WarnMissingModel))

	m, err = r.Resolve(state(t, "patchy"))
	require.NoError(t, err)
	require.Len(t, m.Faces, 6)
	assert.Equal(t, "minecraft:block/stone", m.Faces[0].Texture)
	assert.Equal(t, MissingTexture, m.Faces[1].Texture)
	assert.Equal(t, MissingTexture, m.Faces[2].Texture)
	assert.Equal(t, 1, r.Warnings().CountKind(WarnMissingTexture))
	assert.Equal(t, 1, r.Warnings().CountKind(WarnUnresolvedTexture))
}

func assertVecNear(t *testing.T, want, got mgl64.Vec3) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-9, "component %d of %v", i, got)
	}
}

func TestElementRotationRescale(t *testing.T) {
	stack := testStack(map[string]string{
		rp.BlockStatePath("cross"): `{"variants":{"":{"model":"block/cross"}}}`,
		rp.ModelPath("block/cross"): `{"textures":{"t":"block/stone"},"elements":[{"from":[0,0,8],"to":[16,16,8],
			"rotation":{"origin":[8,8,8],"axis":"y","angle":45,"rescale":true},
			"faces":{"north":{"texture":"#t"}}}]}`,
	})
	m, err := NewResolver(stack, Options{}).Resolve(state(t, "cross"))
	require.NoError(t, err)
	require.Len(t, m.Faces, 1)
	// north face corners (16,y,8) and (0,y,8) land on the block diagonal
	assertVecNear(t, mgl64.Vec3{16, 16, 0}, m.Faces[0].Verts[0])
	assertVecNear(t, mgl64.Vec3{0, 0, 16}, m.Faces[0].Verts[2])
	assert.False(t, m.FullCube)
}

func TestUVLock(t *testing.T) {
	stack := testStack(map[string]string{
		rp.BlockStatePath("half"): `{"variants":{
			"locked=true":{"model":"block/half","y":90,"uvlock":true},
			"locked=false":{"model":"block/half","y":90}}}`,
		rp.ModelPath("block/half"): `{"textures":{"t":"block/stone"},"elements":[{"from":[0,0,0],"to":[16,8,8],
			"faces":{"up":{"texture":"#t"}}}]}`,
	})
	r := NewResolver(stack, Options{})
	locked, err := r.Resolve(state(t, "half[locked=true]"))
	require.NoError(t, err)
	free, err := r.Resolve(state(t, "half[locked=false]"))
	require.NoError(t, err)

	// rotated top face covers x 8..16, z 0..16
	assert.Equal(t, cornerUVs([4]float64{8, 0, 16, 16}, 0), locked.Faces[0].UVs)
	assert.Equal(t, cornerUVs([4]float64{0, 0, 16, 8}, 0), free.Faces[0].UVs)
	lo, hi := bounds(locked.Faces[0].Verts)
	assert.Equal(t, mgl64.Vec3{8, 8, 0}, lo)
	assert.Equal(t, mgl64.Vec3{16, 8, 16}, hi)
}

func TestUVLockKeepsDeclaredMapping(t *testing.T) {
	stack := testStack(map[string]string{
		rp.BlockStatePath("tile"): `{"variants":{"":{"model":"block/tile","y":90,"uvlock":true}}}`,
		rp.ModelPath("block/tile"): `{"textures":{"t":"block/stone"},"elements":[{"from":[0,0,0],"to":[16,8,8],"faces":{
			"up":{"texture":"#t","uv":[2,2,6,6]},
			"down":{"texture":"#t","uv":[0,8,16,16],"rotation":90},
			"north":{"texture":"#t","uv":[0,8,16,16]}}}]}`,
	})
	m, err := NewResolver(stack, Options{}).Resolve(state(t, "tile"))
	require.NoError(t, err)
	require.Len(t, m.Faces, 3)
	byNormal := map[Direction]Face{}
	for _, f := range m.Faces {
		byNormal[directionOf(f.Normal)] = f
	}
	assert.Equal(t, cornerUVs([4]float64{2, 2, 6, 6}, 0), byNormal[Up].UVs)
	assert.Equal(t, cornerUVs([4]float64{0, 8, 16, 16}, 90), byNormal[Down].UVs)
	// north matches its default projection, so it is projected again
	// from the east side it was turned to
	east := byNormal[East]
	lo, hi := bounds(east.Verts)
	assert.Equal(t, cornerUVs(defaultUV(East, lo, hi), 0), east.UVs)
}

func TestStateList(t *testing.T) {
	def, err := rp.ParseBlockStateDefinition([]byte(`{"multipart":[
		{"when":{"north":"true"},"apply":{"model":"a"}},
		{"when":{"OR":[{"west":"low|tall"},{"AND":[{"up":true}]}]},"apply":{"model":"b"}}]}`))
	require.NoError(t, err)
	sl := StateList(def)
	assert.Equal(t, [][]string{
		{"north", "false", "true"},
		{"up", "false", "true"},
		{"west", "low", "tall"},
	}, sl)
	states := EnumerateStates("fence", sl, 100)
	assert.Len(t, states, 8)
	assert.Equal(t, "minecraft:fence[north=false,up=false,west=low]", states[0].Key())
	assert.Len(t, EnumerateStates("fence", sl, 3), 3)
	assert.Len(t, EnumerateStates("stone", nil, 3), 1)
}

func TestDiskCacheReplaysWarnings(t *testing.T) {
	dir := t.TempDir()
	stack := testStack(nil)

	disk, err := OpenDiskCache(dir, 42)
	require.NoError(t, err)
	r := NewResolver(stack, Options{Disk: disk})
	want, err := r.Resolve(state(t, "mod:gizmo"))
	require.NoError(t, err)
	require.NoError(t, disk.Close())

	disk, err = OpenDiskCache(dir, 42)
	require.NoError(t, err)
	defer disk.Close()
	got, warns, ok := disk.Get("minecraft:stone")
	assert.False(t, ok)
	got, warns, ok = disk.Get(want.State)
	require.True(t, ok)
	assert.Equal(t, want, got)
	require.Len(t, warns, 1)
	assert.Equal(t, WarnMissingDefinition, warns[0].Kind)

	r = NewResolver(stack, Options{Disk: disk})
	_, err = r.Resolve(state(t, "mod:gizmo"))
	require.NoError(t, err)
	assert.Equal(t, 1, r.Warnings().Count())

	other, err := OpenDiskCache(dir, 43)
	require.NoError(t, err)
	defer other.Close()
	_, _, ok = other.Get(want.State)
	assert.False(t, ok)
}

func TestDiskCacheKeyedByOptions(t *testing.T) {
	dir := t.TempDir()
	stack := testStack(nil)

	plain := Options{}
	disk, err := OpenDiskCache(dir, plain.CacheKey(stack.Fingerprint()))
	require.NoError(t, err)
	plain.Disk = disk
	m, err := NewResolver(stack, plain).Resolve(state(t, "stone"))
	require.NoError(t, err)
	assert.False(t, m.Transparent)
	require.NoError(t, disk.Close())

	see := Options{TransparentBlocks: []string{"stone"}}
	disk, err = OpenDiskCache(dir, see.CacheKey(stack.Fingerprint()))
	require.NoError(t, err)
	defer disk.Close()
	see.Disk = disk
	m, err = NewResolver(stack, see).Resolve(state(t, "stone"))
	require.NoError(t, err)
	assert.True(t, m.Transparent)
}

func TestCacheKey(t *testing.T) {
	base := Options{}.CacheKey(1)
	assert.Equal(t, base, Options{MaxParentDepth: DefaultMaxParentDepth}.CacheKey(1))
	assert.NotEqual(t, base, Options{}.CacheKey(2))
	assert.NotEqual(t, base, Options{MaxParentDepth: 4}.CacheKey(1))
	assert.Equal(t,
		Options{TransparentBlocks: []string{"glass", "minecraft:ice"}}.CacheKey(1),
		Options{TransparentBlocks: []string{"minecraft:ice", "glass", "glass"}}.CacheKey(1))
	assert.NotEqual(t, base, Options{TransparentBlocks: []string{"glass"}}.CacheKey(1))
}
