package resourcepack

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

type ModelSpec struct {
	Model  string `json:"model"`
	X      *int   `json:"x,omitempty"`
	Y      *int   `json:"y,omitempty"`
	UVLock *bool  `json:"uvlock,omitempty"`
	Weight *int   `json:"weight,omitempty"`
}

func (m ModelSpec) RotX() int {
	if m.X == nil {
		return 0
	}
	return *m.X
}

func (m ModelSpec) RotY() int {
	if m.Y == nil {
		return 0
	}
	return *m.Y
}

func (m ModelSpec) IsUVLocked() bool {
	return m.UVLock != nil && *m.UVLock
}

// SingleOrSlice wraps a slice with custom JSON marshaling/unmarshaling behavior.
// Single-element slices are encoded as that element, otherwise it's encoded as an array.
type SingleOrSlice[T any] []T

func (s *SingleOrSlice[T]) Slice() []T {
	return []T(*s)
}

func (s SingleOrSlice[T]) MarshalJSON() ([]byte, error) {
	if len(s) == 1 {
		return json.Marshal(s[0])
	}
	return json.Marshal([]T(s))
}

func (s *SingleOrSlice[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, (*[]T)(s))
	}
	*s = make([]T, 1)
	return json.Unmarshal(data, &(([]T)(*s))[0])
}

// Variant is one "k=v,..." key of a variants map with its weighted models.
type Variant struct {
	Key    string
	Models SingleOrSlice[ModelSpec]
}

// Variants keeps the declaration order of a variants object, since the
// first matching key wins.
type Variants []Variant

func (v *Variants) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.Errorf("variants must be an object, got %v", tok)
	}
	*v = (*v)[:0]
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return errors.Errorf("unexpected variants key %v", tok)
		}
		var models SingleOrSlice[ModelSpec]
		if err := dec.Decode(&models); err != nil {
			return errors.Wrapf(err, "variant %q", key)
		}
		*v = append(*v, Variant{Key: key, Models: models})
	}
	_, err = dec.Token()
	return err
}

func (v Variants) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, ent := range v {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(ent.Key)
		if err != nil {
			return nil, err
		}
		m, err := json.Marshal(ent.Models)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(m)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (v Variants) Get(key string) (SingleOrSlice[ModelSpec], bool) {
	for _, ent := range v {
		if ent.Key == key {
			return ent.Models, true
		}
	}
	return nil, false
}

// WhenClause is a multipart condition. Each clause maps a property to a
// value ("a|b" alternatives allowed); a clause may itself hold a nested
// "OR" or "AND" list.
type WhenClause struct {
	IsOr    bool
	Clauses []map[string]any
}

func (c *WhenClause) UnmarshalJSON(data []byte) error {
	var temp map[string]json.RawMessage
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	if orClauses, ok := temp["OR"]; ok && len(temp) == 1 {
		c.IsOr = true
		return json.Unmarshal(orClauses, &c.Clauses)
	} else if andClauses, ok := temp["AND"]; ok && len(temp) == 1 {
		return json.Unmarshal(andClauses, &c.Clauses)
	}

	var singleClause map[string]any
	if err := json.Unmarshal(data, &singleClause); err != nil {
		return err
	}
	c.Clauses = append(c.Clauses[:0], singleClause)
	return nil
}

func (c WhenClause) MarshalJSON() ([]byte, error) {
	if c.IsOr {
		return json.Marshal(map[string][]map[string]any{
			"OR": c.Clauses,
		})
	} else if len(c.Clauses) != 1 {
		return json.Marshal(map[string][]map[string]any{
			"AND": c.Clauses,
		})
	}
	return json.Marshal(c.Clauses[0])
}

type MultipartCase struct {
	When  *WhenClause              `json:"when,omitempty"`
	Apply SingleOrSlice[ModelSpec] `json:"apply"`
}

// BlockStateDefinition is the contents of assets/<ns>/blockstates/<id>.json.
type BlockStateDefinition struct {
	Variants  Variants        `json:"variants,omitempty"`
	Multipart []MultipartCase `json:"multipart,omitempty"`
}

// ModelSpecs lists every model reference in declaration order.
func (d *BlockStateDefinition) ModelSpecs() []ModelSpec {
	out := []ModelSpec{}
	for _, v := range d.Variants {
		out = append(out, v.Models...)
	}
	for _, part := range d.Multipart {
		out = append(out, part.Apply...)
	}
	return out
}

type BlockModelFace struct {
	UV        []float64 `json:"uv,omitempty"`
	Texture   string    `json:"texture"`
	Cull      *bool     `json:"cull,omitempty"`
	CullFace  string    `json:"cullface,omitempty"`
	Rotation  *int      `json:"rotation,omitempty"`
	TintIndex *int      `json:"tintindex,omitempty"`
}

type ElementRotation struct {
	Origin  []float64 `json:"origin,omitempty"`
	Axis    string    `json:"axis,omitempty"`
	Angle   float64   `json:"angle"`
	Rescale *bool     `json:"rescale,omitempty"`
}

type ModelElement struct {
	From          []float64                 `json:"from"`
	To            []float64                 `json:"to"`
	Rotation      *ElementRotation          `json:"rotation,omitempty"`
	Shade         *bool                     `json:"shade,omitempty"`
	Faces         map[string]BlockModelFace `json:"faces"`
	Comment       string                    `json:"__comment,omitempty"`
	Name          string                    `json:"name,omitempty"`
	LightEmission int                       `json:"light_emission,omitempty"`
}

type ModelTransform struct {
	Rotation    []float64 `json:"rotation,omitempty"`
	Scale       []float64 `json:"scale,omitempty"`
	Translation []float64 `json:"translation,omitempty"`
}

type ModelOverride struct {
	Model     string             `json:"model"`
	Predicate map[string]float64 `json:"predicate"`
}

// Model is the contents of assets/<ns>/models/<path>.json.
type Model struct {
	Parent           string                     `json:"parent,omitempty"`
	AmbientOcclusion *bool                      `json:"ambientocclusion,omitempty"`
	Textures         map[string]string          `json:"textures,omitempty"`
	TextureSize      []int                      `json:"texture_size,omitempty"`
	Elements         []*ModelElement            `json:"elements,omitempty"`
	Groups           []any                      `json:"groups,omitempty"`
	Display          map[string]*ModelTransform `json:"display,omitempty"`
	GuiLight         string                     `json:"gui_light,omitempty"`
	Overrides        []ModelOverride            `json:"overrides,omitempty"`
}

var utf8BOM = []byte("\xef\xbb\xbf")

func ParseBlockStateDefinition(data []byte) (*BlockStateDefinition, error) {
	def := &BlockStateDefinition{}
	if err := json.Unmarshal(bytes.TrimPrefix(data, utf8BOM), def); err != nil {
		return nil, err
	}
	return def, nil
}

func ParseModel(data []byte) (*Model, error) {
	m := &Model{}
	if err := json.Unmarshal(bytes.TrimPrefix(data, utf8BOM), m); err != nil {
		return nil, err
	}
	return m, nil
}
