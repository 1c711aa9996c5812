package schematic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBlockState(t *testing.T) {
	for _, tc := range []struct {
		in, key string
	}{
		{"stone", "minecraft:stone"},
		{"minecraft:stone", "minecraft:stone"},
		{"minecraft:oak_stairs[half=bottom,facing=east]", "minecraft:oak_stairs[facing=east,half=bottom]"},
		{"mymod:thing[]", "mymod:thing"},
	} {
		st, err := ParseBlockState(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.key, st.Key())
	}

	for _, bad := range []string{"", "[a=b]", "stone[a=b", "stone[ab]"} {
		_, err := ParseBlockState(bad)
		assert.Error(t, err, bad)
	}
}

func TestBlockStateKeyIgnoresInsertionOrder(t *testing.T) {
	a := NewBlockState("oak_fence", map[string]string{"north": "true", "east": "false", "waterlogged": "false"})
	b := NewBlockState("minecraft:oak_fence", map[string]string{"waterlogged": "false", "north": "true", "east": "false"})
	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, "minecraft", a.Namespace())
	assert.Equal(t, "oak_fence", a.Path())
}

func TestIsAir(t *testing.T) {
	assert.True(t, NewBlockState("air", nil).IsAir())
	assert.True(t, NewBlockState("minecraft:cave_air", nil).IsAir())
	assert.True(t, NewBlockState("void_air", nil).IsAir())
	assert.False(t, NewBlockState("glass", nil).IsAir())
}

func TestBuilder(t *testing.T) {
	b := NewBuilder(3, 1, 1)
	stone := NewBlockState("stone", nil)
	b.Set(0, 0, 0, stone)
	b.Set(2, 0, 0, stone)
	b.Set(9, 0, 0, stone) // out of bounds, ignored
	g := b.Grid()
	assert.Len(t, g.Palette, 2)
	assert.Equal(t, []uint32{0, 1}, g.Used())
	n := 0
	g.Each(func(x, y, z int, ref uint32) {
		if ref != 0 {
			n++
		}
	})
	assert.Equal(t, 2, n)
}
