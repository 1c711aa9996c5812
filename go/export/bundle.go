// Package export writes meshes as OBJ bundles and decoded grids as JSON.
package export

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/rmmh/blockmesh/go/mesh"
	"github.com/rmmh/blockmesh/go/render"
	rp "github.com/rmmh/blockmesh/go/resourcepack"
)

// ExportIOError wraps any failure of the output sink. It is always fatal.
type ExportIOError struct {
	Op  string
	Err error
}

func (e *ExportIOError) Error() string {
	return "export " + e.Op + ": " + e.Err.Error()
}

func (e *ExportIOError) Unwrap() error { return e.Err }

type Texture struct {
	Ref         string
	Data        []byte
	Transparent bool

	material string
}

// Path is where the texture lives inside a bundle.
func (t Texture) Path() string {
	ns, name, _ := strings.Cut(rp.Canonical(t.Ref), ":")
	return "textures/" + ns + "/" + name + ".png"
}

// Material is the MTL material name for the texture. NewBundle makes
// these unique within a bundle.
func (t Texture) Material() string {
	if t.material != "" {
		return t.material
	}
	return materialName(t.Ref)
}

var materialReplacer = strings.NewReplacer(":", "_", "/", "_", " ", "_")

func materialName(ref string) string {
	return materialReplacer.Replace(rp.Canonical(ref))
}

// Bundle is everything one export writes: the mesh and exactly the
// textures it references, sorted by reference.
type Bundle struct {
	Name     string
	Mesh     *mesh.Mesh
	Textures []Texture
}

type TextureClassifier interface {
	TextureClass(ref string) render.TextureType
}

// NewBundle collects the textures a mesh references from the stack.
func NewBundle(name string, m *mesh.Mesh, stack *rp.Stack, classes TextureClassifier) (*Bundle, error) {
	b := &Bundle{Name: name, Mesh: m}
	for _, ref := range m.Textures() {
		tex := Texture{Ref: ref}
		if ref == render.MissingTexture {
			tex.Data = render.MissingTexturePNG()
		} else {
			res, err := stack.Texture(ref)
			if errors.Is(err, rp.ErrNotFound) {
				slog.Warn("texture vanished from stack", "texture", ref)
				tex.Data = render.MissingTexturePNG()
			} else if err != nil {
				return nil, errors.Wrapf(err, "reading texture %s", ref)
			} else {
				tex.Data = res.Data
			}
			if classes != nil {
				ty := classes.TextureClass(ref)
				tex.Transparent = ty == render.TexCutout || ty == render.TexTranslucent
			}
		}
		b.Textures = append(b.Textures, tex)
	}
	sort.Slice(b.Textures, func(i, j int) bool {
		return b.Textures[i].Ref < b.Textures[j].Ref
	})
	assignMaterials(b.Textures)
	return b, nil
}

// assignMaterials gives each texture a distinct material name, suffixing
// refs that flatten to the same name.
func assignMaterials(textures []Texture) {
	used := map[string]bool{}
	for i := range textures {
		base := materialName(textures[i].Ref)
		name := base
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		used[name] = true
		textures[i].material = name
	}
}

func (b *Bundle) materials() map[string]string {
	out := make(map[string]string, len(b.Textures))
	for _, tex := range b.Textures {
		out[tex.Ref] = tex.Material()
	}
	return out
}
