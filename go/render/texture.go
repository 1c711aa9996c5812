package render

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sync"

	rp "github.com/rmmh/blockmesh/go/resourcepack"
)

type TextureType int

const (
	TexUnknown TextureType = iota
	TexOpaque
	TexCutout
	TexTranslucent
)

func (t TextureType) String() string {
	return [...]string{"unknown", "opaque", "cutout", "translucent"}[t]
}

// MissingTexture stands in for any texture that cannot be found.
const MissingTexture = "blockmesh:missing"

// ClassifyTexture sorts a texture by its alpha channel: any fully
// transparent pixel makes it cutout, any partial alpha translucent.
// A cube with all opaque sides is a definite occluder.
func ClassifyTexture(tex image.Image) TextureType {
	ty := TexOpaque
	rect := tex.Bounds()
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			_, _, _, a := tex.At(x, y).RGBA()
			if a == 0 && ty == TexOpaque {
				ty = TexCutout
			} else if a > 0 && a < 0xffff {
				return TexTranslucent
			}
		}
	}
	return ty
}

// MissingTexturePNG renders the magenta and black checkerboard used for
// MissingTexture.
func MissingTexturePNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.RGBA{0, 0, 0, 255}}, image.Point{}, draw.Src)
	magenta := &image.Uniform{color.RGBA{248, 0, 248, 255}}
	draw.Draw(img, image.Rect(0, 0, 8, 8), magenta, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(8, 8, 16, 16), magenta, image.Point{}, draw.Src)
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

// textureClasses caches ClassifyTexture results per texture reference.
type textureClasses struct {
	stack *rp.Stack

	mu      sync.Mutex
	classes map[string]TextureType
}

func newTextureClasses(stack *rp.Stack) *textureClasses {
	return &textureClasses{stack: stack, classes: map[string]TextureType{MissingTexture: TexOpaque}}
}

// get classifies ref, reporting a warning if it exists but cannot be decoded.
// Missing textures classify as TexUnknown.
func (t *textureClasses) get(ref string) (TextureType, *Warning) {
	t.mu.Lock()
	ty, ok := t.classes[ref]
	t.mu.Unlock()
	if ok {
		return ty, nil
	}
	var warn *Warning
	res, err := t.stack.Texture(ref)
	if err != nil {
		ty = TexUnknown
	} else if img, err := png.Decode(bytes.NewReader(res.Data)); err != nil {
		ty = TexOpaque
		warn = &Warning{Kind: WarnUnreadableTexture, Subject: ref, Detail: err.Error()}
	} else {
		ty = ClassifyTexture(img)
	}
	t.mu.Lock()
	t.classes[ref] = ty
	t.mu.Unlock()
	return ty, warn
}
