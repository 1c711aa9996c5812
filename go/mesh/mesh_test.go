package mesh

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/rmmh/blockmesh/go/render"
	rp "github.com/rmmh/blockmesh/go/resourcepack"
	"github.com/rmmh/blockmesh/go/schematic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texturePNG(alpha uint8) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	img.Set(0, 0, color.NRGBA{0, 0, 0, alpha})
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func newResolver() *render.Resolver {
	cube := `{"elements":[{"from":[0,0,0],"to":[16,16,16],"faces":{
		"down":{"texture":"#all","cullface":"down"},"up":{"texture":"#all","cullface":"up"},
		"north":{"texture":"#all","cullface":"north"},"south":{"texture":"#all","cullface":"south"},
		"west":{"texture":"#all","cullface":"west"},"east":{"texture":"#all","cullface":"east"}}}]}`
	files := map[string]string{
		rp.ModelPath("block/cube_all"): cube,
		rp.BlockStatePath("stone"):     `{"variants":{"":{"model":"block/stone"}}}`,
		rp.ModelPath("block/stone"):    `{"parent":"block/cube_all","textures":{"all":"block/stone"}}`,
		rp.BlockStatePath("glass"):     `{"variants":{"":{"model":"block/glass"}}}`,
		rp.ModelPath("block/glass"):    `{"parent":"block/cube_all","textures":{"all":"block/glass"}}`,
		rp.BlockStatePath("rod"):       `{"variants":{"":{"model":"block/rod"}}}`,
		rp.ModelPath("block/rod"): `{"textures":{"t":"block/stone"},"elements":[{"from":[7,0,7],"to":[9,16,9],
			"faces":{"north":{"texture":"#t"},"south":{"texture":"#t"}}}]}`,
		rp.BlockStatePath("loop"): `{"variants":{"":{"model":"block/loop"}}}`,
		rp.ModelPath("block/loop"): `{"parent":"block/loop"}`,
		rp.BlockStatePath("chest"): `{"variants":{"":{"model":"block/chest"}}}`,
		rp.ModelPath("block/chest"): `{"parent":"builtin/entity"}`,
	}
	data := map[string][]byte{
		rp.TexturePath("block/stone"): texturePNG(255),
		rp.TexturePath("block/glass"): texturePNG(0),
	}
	for k, v := range files {
		data[k] = []byte(v)
	}
	return render.NewResolver(rp.NewStack(rp.NewMemSource("test", data)), render.Options{})
}

func grid(sx, sy, sz int, cells map[[3]int]string) *schematic.Grid {
	b := schematic.NewBuilder(sx, sy, sz)
	for pos, name := range cells {
		b.Set(pos[0], pos[1], pos[2], schematic.NewBlockState(name, nil))
	}
	return b.Grid()
}

func TestCulling(t *testing.T) {
	cases := []struct {
		name  string
		cells map[[3]int]string
		faces int
	}{
		{"single cube", map[[3]int]string{{0, 0, 0}: "stone"}, 6},
		{"two cubes", map[[3]int]string{{0, 0, 0}: "stone", {1, 0, 0}: "stone"}, 10},
		{"transparent cube", map[[3]int]string{{0, 0, 0}: "glass"}, 6},
		{"two transparent cubes", map[[3]int]string{{0, 0, 0}: "glass", {1, 0, 0}: "glass"}, 12},
		{"opaque next to transparent", map[[3]int]string{{0, 0, 0}: "stone", {1, 0, 0}: "glass"}, 12},
		{"stacked", map[[3]int]string{{0, 0, 0}: "stone", {0, 1, 0}: "stone", {0, 2, 0}: "stone"}, 14},
		{"rod between cubes", map[[3]int]string{{0, 0, 0}: "stone", {1, 0, 0}: "rod", {2, 0, 0}: "stone"}, 14},
		{"entity model", map[[3]int]string{{0, 0, 0}: "chest"}, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m, err := Build(grid(3, 3, 3, c.cells), newResolver(), Options{})
			require.NoError(t, err)
			assert.Equal(t, c.faces, m.FaceCount())
		})
	}
}

func TestCullingAtGridEdge(t *testing.T) {
	// neighbors outside the grid never hide a face
	m, err := Build(grid(1, 1, 1, map[[3]int]string{{0, 0, 0}: "stone"}), newResolver(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 6, m.FaceCount())
	assert.Equal(t, []string{"minecraft:block/stone"}, m.Textures())
}

func TestFallbackWarnsOnce(t *testing.T) {
	r := newResolver()
	g := grid(4, 1, 1, map[[3]int]string{
		{0, 0, 0}: "mod:widget", {1, 0, 0}: "mod:widget", {2, 0, 0}: "mod:widget", {3, 0, 0}: "stone",
	})
	m, err := Build(g, r, Options{})
	require.NoError(t, err)
	// placeholders are opaque cubes and cull like stone
	assert.Equal(t, 18, m.FaceCount())
	assert.Len(t, m.Groups[render.MissingTexture], 13)
	assert.Equal(t, 1, r.Warnings().Count())
}

func TestPlacement(t *testing.T) {
	m, err := Build(grid(3, 3, 3, map[[3]int]string{{2, 1, 0}: "stone"}), newResolver(), Options{})
	require.NoError(t, err)
	for _, f := range m.Groups["minecraft:block/stone"] {
		for i, v := range f.Verts {
			assert.True(t, v[0] >= 2 && v[0] <= 3 && v[1] >= 1 && v[1] <= 2 && v[2] >= 0 && v[2] <= 1, "%v", v)
			assert.True(t, f.UVs[i][0] >= 0 && f.UVs[i][0] <= 1 && f.UVs[i][1] >= 0 && f.UVs[i][1] <= 1)
		}
	}
	up := m.Groups["minecraft:block/stone"][1]
	assert.Equal(t, mgl64.Vec3{0, 1, 0}, up.Normal)
	assert.Equal(t, mgl64.Vec3{2, 2, 0}, up.Verts[0])
	assert.Equal(t, mgl64.Vec2{0, 1}, up.UVs[0])
}

func TestSlabsMergeInOrder(t *testing.T) {
	cells := map[[3]int]string{}
	for y := 0; y < 7; y++ {
		for x := 0; x < 5; x += 2 {
			cells[[3]int{x, y, y % 3}] = []string{"stone", "glass", "rod"}[(x+y)%3]
		}
	}
	g := grid(5, 7, 3, cells)
	one, err := Build(g, newResolver(), Options{Workers: 1})
	require.NoError(t, err)
	for _, w := range []int{2, 3, 16} {
		many, err := Build(g, newResolver(), Options{Workers: w})
		require.NoError(t, err)
		assert.Equal(t, one, many, "workers=%d", w)
	}
}

func TestPruneEnclosed(t *testing.T) {
	cells := map[[3]int]string{}
	for x := 0; x < 3; x++ {
		for y := 0; y < 3; y++ {
			for z := 0; z < 3; z++ {
				cells[[3]int{x, y, z}] = "stone"
			}
		}
	}
	cells[[3]int{1, 1, 1}] = "rod"
	g := grid(3, 3, 3, cells)

	// stone faces toward the rod are kept: the rod is not an opaque cube
	full, err := Build(g, newResolver(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 54+6+2, full.FaceCount())

	pruned, err := Build(g, newResolver(), Options{PruneEnclosed: true})
	require.NoError(t, err)
	assert.Equal(t, 54, pruned.FaceCount())

	// an opening to the outside makes the cavity visible again
	cells[[3]int{1, 2, 1}] = "glass"
	g = grid(3, 3, 3, cells)
	full, err = Build(g, newResolver(), Options{})
	require.NoError(t, err)
	pruned, err = Build(g, newResolver(), Options{PruneEnclosed: true})
	require.NoError(t, err)
	assert.Equal(t, 53+4+5+6+2, pruned.FaceCount())
	assert.Equal(t, full, pruned)
}

func TestBuildFailsOnCycle(t *testing.T) {
	_, err := Build(grid(1, 1, 1, map[[3]int]string{{0, 0, 0}: "loop"}), newResolver(), Options{})
	var cycle *render.ModelInheritanceCycleError
	assert.True(t, errors.As(err, &cycle))
}

func TestMeshAppend(t *testing.T) {
	a, b := New(), New()
	a.Add(Face{Texture: "x"})
	b.Add(Face{Texture: "x", Normal: mgl64.Vec3{1, 0, 0}})
	b.Add(Face{Texture: "a"})
	a.Append(b)
	assert.Equal(t, 3, a.FaceCount())
	assert.Equal(t, []string{"a", "x"}, a.Textures())
	assert.Equal(t, mgl64.Vec3{1, 0, 0}, a.Groups["x"][1].Normal)
}
