package render

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	rp "github.com/rmmh/blockmesh/go/resourcepack"
)

type Direction int

const (
	Down Direction = iota
	Up
	North
	South
	West
	East

	// NoCull marks a face without a cullface.
	NoCull Direction = -1
)

var Directions = [6]Direction{Down, Up, North, South, West, East}

var dirNames = [6]string{"down", "up", "north", "south", "west", "east"}

var dirOffsets = [6][3]int{
	{0, -1, 0},
	{0, 1, 0},
	{0, 0, -1},
	{0, 0, 1},
	{-1, 0, 0},
	{1, 0, 0},
}

func (d Direction) String() string {
	if d < 0 || int(d) >= len(dirNames) {
		return "none"
	}
	return dirNames[d]
}

// ParseDirection accepts face names as they appear in model files.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "bottom":
		return Down, true
	case "top":
		return Up, true
	}
	for i, n := range dirNames {
		if n == s {
			return Direction(i), true
		}
	}
	return NoCull, false
}

func (d Direction) Offset() [3]int { return dirOffsets[d] }

func (d Direction) Normal() mgl64.Vec3 {
	o := dirOffsets[d]
	return mgl64.Vec3{float64(o[0]), float64(o[1]), float64(o[2])}
}

func (d Direction) Opposite() Direction {
	return d ^ 1
}

// directionOf snaps a vector to the closest axis direction.
func directionOf(v mgl64.Vec3) Direction {
	best, bestDot := Up, math.Inf(-1)
	for _, d := range Directions {
		if dot := v.Dot(d.Normal()); dot > bestDot {
			best, bestDot = d, dot
		}
	}
	return best
}

// faceVerts returns the quad for one side of the box from..to, ordered
// top-left, bottom-left, bottom-right, top-right as seen from outside.
func faceVerts(d Direction, from, to mgl64.Vec3) [4]mgl64.Vec3 {
	x0, y0, z0 := from[0], from[1], from[2]
	x1, y1, z1 := to[0], to[1], to[2]
	switch d {
	case Down:
		return [4]mgl64.Vec3{{x0, y0, z1}, {x0, y0, z0}, {x1, y0, z0}, {x1, y0, z1}}
	case Up:
		return [4]mgl64.Vec3{{x0, y1, z0}, {x0, y1, z1}, {x1, y1, z1}, {x1, y1, z0}}
	case North:
		return [4]mgl64.Vec3{{x1, y1, z0}, {x1, y0, z0}, {x0, y0, z0}, {x0, y1, z0}}
	case South:
		return [4]mgl64.Vec3{{x0, y1, z1}, {x0, y0, z1}, {x1, y0, z1}, {x1, y1, z1}}
	case West:
		return [4]mgl64.Vec3{{x0, y1, z0}, {x0, y0, z0}, {x0, y0, z1}, {x0, y1, z1}}
	default:
		return [4]mgl64.Vec3{{x1, y1, z1}, {x1, y0, z1}, {x1, y0, z0}, {x1, y1, z0}}
	}
}

// defaultUV projects the element bounds onto a face, in texture pixels.
func defaultUV(d Direction, from, to mgl64.Vec3) [4]float64 {
	x0, y0, z0 := from[0], from[1], from[2]
	x1, y1, z1 := to[0], to[1], to[2]
	switch d {
	case Down:
		return [4]float64{x0, 16 - z1, x1, 16 - z0}
	case Up:
		return [4]float64{x0, z0, x1, z1}
	case North:
		return [4]float64{16 - x1, 16 - y1, 16 - x0, 16 - y0}
	case South:
		return [4]float64{x0, 16 - y1, x1, 16 - y0}
	case West:
		return [4]float64{z0, 16 - y1, z1, 16 - y0}
	default:
		return [4]float64{16 - z1, 16 - y1, 16 - z0, 16 - y0}
	}
}

// cornerUVs assigns uv corners to the four vertices. rotation turns the
// texture clockwise in 90 degree steps.
func cornerUVs(uv [4]float64, rotation int) [4]mgl64.Vec2 {
	corners := [4]mgl64.Vec2{
		{uv[0], uv[1]},
		{uv[0], uv[3]},
		{uv[2], uv[3]},
		{uv[2], uv[1]},
	}
	shift := ((rotation/90)%4 + 4) % 4
	var out [4]mgl64.Vec2
	for i := range out {
		out[i] = corners[(i+shift)%4]
	}
	return out
}

func vec3(v []float64) mgl64.Vec3 {
	if len(v) < 3 {
		return mgl64.Vec3{}
	}
	return mgl64.Vec3{v[0], v[1], v[2]}
}

// elementTransform is the rotation an element declares about its origin.
type elementTransform struct {
	origin mgl64.Vec3
	rot    mgl64.Mat3
	scale  mgl64.Vec3
}

func newElementTransform(r *rp.ElementRotation) *elementTransform {
	if r == nil || r.Angle == 0 {
		return nil
	}
	rad := mgl64.DegToRad(r.Angle)
	t := &elementTransform{origin: vec3(r.Origin), scale: mgl64.Vec3{1, 1, 1}}
	if len(r.Origin) < 3 {
		t.origin = mgl64.Vec3{8, 8, 8}
	}
	rescale := r.Rescale != nil && *r.Rescale
	s := 1 / math.Cos(math.Abs(rad))
	switch r.Axis {
	case "x":
		t.rot = mgl64.Rotate3DX(rad)
		if rescale {
			t.scale = mgl64.Vec3{1, s, s}
		}
	case "y":
		t.rot = mgl64.Rotate3DY(rad)
		if rescale {
			t.scale = mgl64.Vec3{s, 1, s}
		}
	case "z":
		t.rot = mgl64.Rotate3DZ(rad)
		if rescale {
			t.scale = mgl64.Vec3{s, s, 1}
		}
	default:
		return nil
	}
	return t
}

func (t *elementTransform) apply(v mgl64.Vec3) mgl64.Vec3 {
	r := t.rot.Mul3x1(v.Sub(t.origin))
	return mgl64.Vec3{r[0] * t.scale[0], r[1] * t.scale[1], r[2] * t.scale[2]}.Add(t.origin)
}

var blockCenter = mgl64.Vec3{8, 8, 8}

// stateRotation builds the blockstate x/y rotation: x first, then y,
// both clockwise looking down the positive axis, about the block center.
func stateRotation(x, y int) (mgl64.Mat3, bool) {
	x = ((x % 360) + 360) % 360
	y = ((y % 360) + 360) % 360
	if x == 0 && y == 0 {
		return mgl64.Ident3(), false
	}
	m := mgl64.Rotate3DY(mgl64.DegToRad(float64(-y))).Mul3(mgl64.Rotate3DX(mgl64.DegToRad(float64(-x))))
	// quarter turns are exact; drop the cos/sin noise
	for i := range m {
		m[i] = math.Round(m[i])
	}
	return m, true
}

func rotateAbout(m mgl64.Mat3, v, center mgl64.Vec3) mgl64.Vec3 {
	return m.Mul3x1(v.Sub(center)).Add(center)
}

// bounds returns the axis aligned box around a quad.
func bounds(verts [4]mgl64.Vec3) (lo, hi mgl64.Vec3) {
	lo, hi = verts[0], verts[0]
	for _, v := range verts[1:] {
		for i := 0; i < 3; i++ {
			lo[i] = math.Min(lo[i], v[i])
			hi[i] = math.Max(hi[i], v[i])
		}
	}
	return lo, hi
}

func approxEqual(a, b mgl64.Vec3) bool {
	return a.ApproxEqualThreshold(b, 1e-6)
}
