package schematic

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

const DefaultNamespace = "minecraft"

var airBlocks = map[string]bool{
	"minecraft:air":      true,
	"minecraft:cave_air": true,
	"minecraft:void_air": true,
}

// BlockState is a namespaced block id plus its property values.
// Treat it as immutable once built.
type BlockState struct {
	Name       string
	Properties map[string]string
}

var Air = BlockState{Name: "minecraft:air"}

// CanonicalName adds the default namespace to a bare id.
func CanonicalName(name string) string {
	if strings.IndexByte(name, ':') < 0 {
		return DefaultNamespace + ":" + name
	}
	return name
}

func NewBlockState(name string, props map[string]string) BlockState {
	st := BlockState{Name: CanonicalName(name)}
	if len(props) > 0 {
		st.Properties = make(map[string]string, len(props))
		for k, v := range props {
			st.Properties[k] = v
		}
	}
	return st
}

// ParseBlockState reads the "ns:id[k=v,k2=v2]" form used by Sponge palettes.
func ParseBlockState(s string) (BlockState, error) {
	name, rest, hasProps := strings.Cut(s, "[")
	if name == "" {
		return BlockState{}, errors.Errorf("empty block id in %q", s)
	}
	if !hasProps {
		return NewBlockState(name, nil), nil
	}
	if !strings.HasSuffix(rest, "]") {
		return BlockState{}, errors.Errorf("unterminated property list in %q", s)
	}
	rest = rest[:len(rest)-1]
	props := map[string]string{}
	if rest != "" {
		for _, part := range strings.Split(rest, ",") {
			k, v, ok := strings.Cut(part, "=")
			if !ok || k == "" {
				return BlockState{}, errors.Errorf("bad property %q in %q", part, s)
			}
			props[k] = v
		}
	}
	return NewBlockState(name, props), nil
}

// Key is the canonical cache identity: id[k=v,...] with keys sorted.
func (b BlockState) Key() string {
	if len(b.Properties) == 0 {
		return b.Name
	}
	var sb strings.Builder
	sb.WriteString(b.Name)
	sb.WriteByte('[')
	sb.WriteString(PropsKey(b.Properties))
	sb.WriteByte(']')
	return sb.String()
}

func (b BlockState) String() string { return b.Key() }

// PropsKey renders properties as sorted "k=v,k2=v2".
func PropsKey(props map[string]string) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + props[k]
	}
	return strings.Join(parts, ",")
}

func (b BlockState) Property(key string) (string, bool) {
	v, ok := b.Properties[key]
	return v, ok
}

func (b BlockState) IsAir() bool {
	return b.Name == "" || airBlocks[b.Name]
}

// Namespace and Path split the id around the colon.
func (b BlockState) Namespace() string {
	ns, _, _ := strings.Cut(CanonicalName(b.Name), ":")
	return ns
}

func (b BlockState) Path() string {
	_, p, _ := strings.Cut(CanonicalName(b.Name), ":")
	return p
}
