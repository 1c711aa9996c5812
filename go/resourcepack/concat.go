package resourcepack

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/nsf/jsondiff"
	"github.com/pkg/errors"
)

const modelsKey = "models"

// Definitions is a self-contained subset of a stack: the blockstates a
// set of blocks needs, every model they reach, and the textures those use.
type Definitions struct {
	BlockStates map[string]*BlockStateDefinition
	Models      map[string]*Model
	Textures    map[string][]byte

	MissingBlocks   []string
	MissingModels   []string
	MissingTextures []string
}

type ConcatOptions struct {
	// CheckRoundTrip re-encodes every parsed file and logs any difference
	// from the source bytes.
	CheckRoundTrip bool
}

// Concatenate gathers the definitions for blocks from the stack, each file
// taken from the highest priority source that has it.
func Concatenate(stack *Stack, blocks []string, opts ConcatOptions) (*Definitions, error) {
	d := &Definitions{
		BlockStates: map[string]*BlockStateDefinition{},
		Models:      map[string]*Model{},
		Textures:    map[string][]byte{},
	}
	blocks = append([]string(nil), blocks...)
	sort.Strings(blocks)
	for _, b := range blocks {
		b = Canonical(b)
		if _, ok := d.BlockStates[b]; ok {
			continue
		}
		res, err := stack.Resolve(BlockStatePath(b))
		if errors.Is(err, ErrNotFound) {
			slog.Warn("no blockstate definition", "block", b)
			d.MissingBlocks = append(d.MissingBlocks, b)
			continue
		} else if err != nil {
			return nil, err
		}
		def, err := ParseBlockStateDefinition(res.Data)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to decode %s from %s", res.Path, res.Source)
		}
		if opts.CheckRoundTrip {
			CheckRoundTrip(res.Path, res.Data, def)
		}
		d.BlockStates[b] = def
		for _, spec := range def.ModelSpecs() {
			if err := d.addModel(stack, spec.Model, opts, 0); err != nil {
				return nil, err
			}
		}
	}
	return d, nil
}

const maxConcatDepth = 64

func (d *Definitions) addModel(stack *Stack, ref string, opts ConcatOptions, depth int) error {
	ref = Canonical(ref)
	if _, ok := d.Models[ref]; ok || depth > maxConcatDepth {
		return nil
	}
	res, err := stack.Resolve(ModelPath(ref))
	if errors.Is(err, ErrNotFound) {
		slog.Warn("missing model", "model", ref)
		d.MissingModels = append(d.MissingModels, ref)
		return nil
	} else if err != nil {
		return err
	}
	m, err := ParseModel(res.Data)
	if err != nil {
		return errors.Wrapf(err, "unable to decode %s from %s", res.Path, res.Source)
	}
	if opts.CheckRoundTrip {
		CheckRoundTrip(res.Path, res.Data, m)
	}
	d.Models[ref] = m
	if m.Parent != "" && !strings.HasPrefix(m.Parent, "builtin/") {
		if err := d.addModel(stack, m.Parent, opts, depth+1); err != nil {
			return err
		}
	}

	keys := make([]string, 0, len(m.Textures))
	for k := range m.Textures {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		tex := m.Textures[k]
		if strings.HasPrefix(tex, "#") {
			continue
		}
		tex = Canonical(tex)
		if _, ok := d.Textures[tex]; ok {
			continue
		}
		res, err := stack.Texture(tex)
		if errors.Is(err, ErrNotFound) {
			d.MissingTextures = append(d.MissingTextures, tex)
			continue
		} else if err != nil {
			return err
		}
		d.Textures[tex] = res.Data
	}
	return nil
}

// MarshalJSON writes the textures.json layout: blockstates keyed by block
// id next to a "models" object keyed by model reference.
func (d *Definitions) MarshalJSON() ([]byte, error) {
	top := map[string]any{modelsKey: d.Models}
	for k, v := range d.BlockStates {
		top[k] = v
	}
	return json.MarshalIndent(top, "", "    ")
}

// WriteDir writes textures.json and a textures/<ns>/<path>.png tree.
func (d *Definitions) WriteDir(dir string) error {
	if err := os.MkdirAll(filepath.Join(dir, "textures"), 0o755); err != nil {
		return err
	}
	data, err := d.MarshalJSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "textures.json"), data, 0o644); err != nil {
		return err
	}
	for ref, png := range d.Textures {
		ns, name := splitRef(ref)
		dest := filepath.Join(dir, "textures", ns, filepath.FromSlash(name)+".png")
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(dest, png, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// CheckRoundTrip reports whether decoded re-encodes to the same JSON value
// as data, logging a diff when it does not.
func CheckRoundTrip(name string, data []byte, decoded any) bool {
	var got, want any
	if err := json.Unmarshal(bytes.TrimPrefix(data, utf8BOM), &want); err != nil {
		return false
	}
	buf, err := json.Marshal(decoded)
	if err != nil {
		return false
	}
	json.Unmarshal(buf, &got)
	if reflect.DeepEqual(got, want) {
		return true
	}
	opts := jsondiff.DefaultConsoleOptions()
	opts.CompareNumbers = func(a, b json.Number) bool {
		av, _ := a.Float64()
		bv, _ := b.Float64()
		return av == bv
	}
	diff, str := jsondiff.Compare(bytes.TrimPrefix(data, utf8BOM), buf, &opts)
	if diff == jsondiff.FullMatch {
		return true
	}
	slog.Warn("mismatch decoding", "file", name, "diff", diff.String(), "detail", str)
	return false
}
