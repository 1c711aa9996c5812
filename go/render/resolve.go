// Package render turns block states into textured quads by following
// blockstate definitions, model inheritance and rotations.
package render

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	rp "github.com/rmmh/blockmesh/go/resourcepack"
	"github.com/rmmh/blockmesh/go/schematic"
)

const DefaultMaxParentDepth = 32

// Face is one textured quad in block-local model space (0..16 per axis).
// Verts run top-left, bottom-left, bottom-right, top-right seen from
// outside; UVs are in texture pixels.
type Face struct {
	Verts    [4]mgl64.Vec3 `json:"verts"`
	UVs      [4]mgl64.Vec2 `json:"uvs"`
	Normal   mgl64.Vec3    `json:"normal"`
	Texture  string        `json:"texture"`
	CullFace Direction     `json:"cullface"`
}

type ResolvedModel struct {
	State            string `json:"state"`
	Faces            []Face `json:"faces"`
	FullCube         bool   `json:"full_cube,omitempty"`
	Transparent      bool   `json:"transparent,omitempty"`
	AmbientOcclusion bool   `json:"ambient_occlusion,omitempty"`
	Placeholder      bool   `json:"placeholder,omitempty"`
}

// IsOpaqueCube reports whether the model hides every face of its neighbors
// that touches it.
func (m *ResolvedModel) IsOpaqueCube() bool {
	return m.FullCube && !m.Transparent
}

func (m *ResolvedModel) Empty() bool { return len(m.Faces) == 0 }

type Options struct {
	Cache    *Cache
	Disk     *DiskCache
	Warnings *Warnings

	MaxParentDepth int
	// TransparentBlocks never occlude their neighbors, whatever their textures.
	TransparentBlocks []string
}

// Resolver maps block states to resolved models. It is safe for
// concurrent use.
type Resolver struct {
	stack       *rp.Stack
	opts        Options
	cache       *Cache
	warnings    *Warnings
	textures    *textureClasses
	transparent map[string]bool

	flatMu sync.Mutex
	flat   map[string]*flatModel
}

func NewResolver(stack *rp.Stack, opts Options) *Resolver {
	if opts.Cache == nil {
		opts.Cache = NewCache()
	}
	if opts.Warnings == nil {
		opts.Warnings = NewWarnings()
	}
	if opts.MaxParentDepth <= 0 {
		opts.MaxParentDepth = DefaultMaxParentDepth
	}
	r := &Resolver{
		stack:       stack,
		opts:        opts,
		cache:       opts.Cache,
		warnings:    opts.Warnings,
		textures:    newTextureClasses(stack),
		transparent: map[string]bool{},
		flat:        map[string]*flatModel{},
	}
	for _, b := range opts.TransparentBlocks {
		r.transparent[schematic.CanonicalName(b)] = true
	}
	return r
}

func (r *Resolver) Stack() *rp.Stack    { return r.stack }
func (r *Resolver) Warnings() *Warnings { return r.warnings }
func (r *Resolver) Cache() *Cache       { return r.cache }

// TextureClass reports the alpha class of a texture. Missing textures are
// TexUnknown.
func (r *Resolver) TextureClass(ref string) TextureType {
	ty, warn := r.textures.get(ref)
	if warn != nil {
		r.warnings.Add(*warn)
	}
	return ty
}

// Resolve returns the model for a block state. Recoverable problems become
// warnings and missing-texture geometry; only an inheritance cycle fails.
func (r *Resolver) Resolve(st schematic.BlockState) (*ResolvedModel, error) {
	key := st.Key()
	if m, ok := r.cache.Get(key); ok {
		return m, nil
	}
	if r.opts.Disk != nil {
		if m, warns, ok := r.opts.Disk.Get(key); ok {
			for _, w := range warns {
				r.warnings.Add(w)
			}
			r.cache.Put(key, m)
			return m, nil
		}
	}

	rs := &resolution{r: r, state: st}
	m, err := rs.run()
	if err != nil {
		return nil, err
	}
	for _, w := range rs.warnings {
		r.warnings.Add(w)
	}
	r.cache.Put(key, m)
	if r.opts.Disk != nil {
		if err := r.opts.Disk.Put(key, m, rs.warnings); err != nil {
			slog.Debug("resolve cache write failed", "state", key, "err", err)
		}
	}
	return m, nil
}

// flatModel is a model with its parent chain folded in: the nearest
// elements list and every texture binding, child bindings first.
type flatModel struct {
	ref      string
	elements []*rp.ModelElement
	textures map[string]string
	ao       bool
	warnings []Warning
}

func (r *Resolver) flatten(ref string) (*flatModel, error) {
	ref = rp.Canonical(ref)
	r.flatMu.Lock()
	fm, ok := r.flat[ref]
	r.flatMu.Unlock()
	if ok {
		return fm, nil
	}

	fm = &flatModel{ref: ref, textures: map[string]string{}, ao: true}
	aoSet := false
	seen := map[string]bool{}
	chain := []string{}
	for name := ref; name != ""; {
		if seen[name] || len(chain) > r.opts.MaxParentDepth {
			return nil, &ModelInheritanceCycleError{Chain: append(chain, name)}
		}
		seen[name] = true
		chain = append(chain, name)
		if strings.HasPrefix(rp.RemoveDefaultPrefix(name), "builtin/") {
			break
		}
		m, err := r.stack.Model(name)
		if err != nil {
			if len(chain) == 1 {
				return nil, err
			}
			fm.warnings = append(fm.warnings, Warning{Kind: WarnMissingModel, Subject: name, Detail: "parent of " + chain[len(chain)-2]})
			break
		}
		if !aoSet && m.AmbientOcclusion != nil {
			fm.ao, aoSet = *m.AmbientOcclusion, true
		}
		if fm.elements == nil && len(m.Elements) > 0 {
			fm.elements = m.Elements
		}
		for k, v := range m.Textures {
			if _, ok := fm.textures[k]; !ok {
				fm.textures[k] = v
			}
		}
		if m.Parent == "" {
			break
		}
		name = rp.Canonical(m.Parent)
	}

	r.flatMu.Lock()
	r.flat[ref] = fm
	r.flatMu.Unlock()
	return fm, nil
}

// texture follows "#var" references to a texture id.
func (fm *flatModel) texture(ref string) (string, error) {
	for hops := 0; strings.HasPrefix(ref, "#"); hops++ {
		v, ok := fm.textures[ref[1:]]
		if !ok || hops > len(fm.textures) {
			return "", &UnresolvedTextureVariableError{Model: fm.ref, Variable: ref[1:]}
		}
		ref = v
	}
	if ref == "" {
		return "", &UnresolvedTextureVariableError{Model: fm.ref}
	}
	return rp.Canonical(ref), nil
}

type resolution struct {
	r         *Resolver
	state     schematic.BlockState
	warnings  []Warning
	fullCube  bool
	nonOpaque bool
}

func (rs *resolution) warn(kind WarningKind, subject, detail string) {
	rs.warnings = append(rs.warnings, Warning{Kind: kind, Subject: subject, Detail: detail})
}

func (rs *resolution) run() (*ResolvedModel, error) {
	st := rs.state
	out := &ResolvedModel{State: st.Key(), AmbientOcclusion: true}
	if st.IsAir() {
		return out, nil
	}

	def, err := rs.r.stack.BlockStateDefinition(st.Name)
	if errors.Is(err, rp.ErrNotFound) {
		rs.warn(WarnMissingDefinition, st.Name, (&BlockDefinitionNotFoundError{Block: st.Name}).Error())
		return placeholderModel(out.State), nil
	} else if err != nil {
		rs.warn(WarnInvalidAsset, st.Name, err.Error())
		return placeholderModel(out.State), nil
	}

	specs, ok := selectModels(def, st)
	if !ok {
		rs.warn(WarnNoVariant, out.State, "")
		return placeholderModel(out.State), nil
	}
	for i, spec := range specs {
		fm, err := rs.r.flatten(spec.Model)
		var cycle *ModelInheritanceCycleError
		if errors.As(err, &cycle) {
			return nil, errors.Wrapf(err, "resolving %s", out.State)
		} else if err != nil {
			rs.warn(WarnMissingModel, rp.Canonical(spec.Model), err.Error())
			return placeholderModel(out.State), nil
		}
		rs.warnings = append(rs.warnings, fm.warnings...)
		if i == 0 {
			out.AmbientOcclusion = fm.ao
		}
		rs.emit(out, fm, spec)
	}

	out.FullCube = rs.fullCube
	out.Transparent = rs.r.transparent[st.Name] || (rs.nonOpaque && !rs.fullCube)
	return out, nil
}

func lookupFace(faces map[string]rp.BlockModelFace, d Direction) (rp.BlockModelFace, bool) {
	if f, ok := faces[d.String()]; ok {
		return f, true
	}
	alias := map[Direction]string{Down: "bottom", Up: "top"}[d]
	f, ok := faces[alias]
	return f, ok && alias != ""
}

var (
	cubeFrom = mgl64.Vec3{0, 0, 0}
	cubeTo   = mgl64.Vec3{16, 16, 16}
)

// emit appends the faces of one model spec, applying element rotation,
// then the blockstate rotation.
func (rs *resolution) emit(out *ResolvedModel, fm *flatModel, spec rp.ModelSpec) {
	rot, rotated := stateRotation(spec.RotX(), spec.RotY())
	uvlock := rotated && spec.IsUVLocked()

	for _, el := range fm.elements {
		from, to := vec3(el.From), vec3(el.To)
		et := newElementTransform(el.Rotation)
		isCube := et == nil && approxEqual(from, cubeFrom) && approxEqual(to, cubeTo)
		opaqueSides := 0

		for _, d := range Directions {
			face, ok := lookupFace(el.Faces, d)
			if !ok {
				continue
			}
			tex := rs.faceTexture(fm, face.Texture)
			if class, _ := rs.r.textures.get(tex); class == TexOpaque {
				opaqueSides++
			} else {
				rs.nonOpaque = true
			}

			uv := defaultUV(d, from, to)
			projected := true
			if len(face.UV) == 4 {
				var declared [4]float64
				copy(declared[:], face.UV)
				projected = declared == uv
				uv = declared
			}
			rotation := 0
			if face.Rotation != nil {
				rotation = *face.Rotation
				projected = projected && rotation%360 == 0
			}
			f := Face{
				Verts:    faceVerts(d, from, to),
				UVs:      cornerUVs(uv, rotation),
				Normal:   d.Normal(),
				Texture:  tex,
				CullFace: NoCull,
			}
			if cd, ok := ParseDirection(face.CullFace); ok {
				f.CullFace = cd
			}
			if et != nil {
				for i := range f.Verts {
					f.Verts[i] = et.apply(f.Verts[i])
				}
				f.Normal = et.rot.Mul3x1(f.Normal).Normalize()
			}
			if rotated {
				for i := range f.Verts {
					f.Verts[i] = rotateAbout(rot, f.Verts[i], blockCenter)
				}
				f.Normal = rot.Mul3x1(f.Normal)
				if f.CullFace != NoCull {
					f.CullFace = directionOf(rot.Mul3x1(f.CullFace.Normal()))
				}
				if uvlock && et == nil && projected {
					// keep the texture fixed in world space: project it
					// again from the rotated face. Faces with their own
					// uv or rotation keep that mapping and turn with the
					// block.
					nd := directionOf(f.Normal)
					lo, hi := bounds(f.Verts)
					f.Verts = faceVerts(nd, lo, hi)
					f.UVs = cornerUVs(defaultUV(nd, lo, hi), 0)
				}
			}
			out.Faces = append(out.Faces, f)
		}
		if isCube && opaqueSides == 6 {
			rs.fullCube = true
		}
	}
}

func (rs *resolution) faceTexture(fm *flatModel, ref string) string {
	tex, err := fm.texture(ref)
	if err != nil {
		rs.warn(WarnUnresolvedTexture, fm.ref, err.Error())
		return MissingTexture
	}
	class, warn := rs.r.textures.get(tex)
	if warn != nil {
		rs.warnings = append(rs.warnings, *warn)
	}
	if class == TexUnknown {
		rs.warn(WarnMissingTexture, tex, "used by "+fm.ref)
		return MissingTexture
	}
	return tex
}

// placeholderModel is a full cube with the missing texture on every side.
func placeholderModel(key string) *ResolvedModel {
	m := &ResolvedModel{State: key, FullCube: true, AmbientOcclusion: true, Placeholder: true}
	for _, d := range Directions {
		m.Faces = append(m.Faces, Face{
			Verts:    faceVerts(d, cubeFrom, cubeTo),
			UVs:      cornerUVs(defaultUV(d, cubeFrom, cubeTo), 0),
			Normal:   d.Normal(),
			Texture:  MissingTexture,
			CullFace: d,
		})
	}
	return m
}
