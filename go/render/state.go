package render

import (
	"fmt"
	"sort"
	"strings"

	rp "github.com/rmmh/blockmesh/go/resourcepack"
	"github.com/rmmh/blockmesh/go/schematic"
)

func stringSliceSearch(slice []string, needle string) int {
	for i, v := range slice {
		if v == needle {
			return i
		}
	}
	return -1
}

func whenValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(v)
	}
}

func nestedClauses(value any) ([]map[string]any, bool) {
	list, ok := value.([]any)
	if !ok {
		return nil, false
	}
	out := make([]map[string]any, 0, len(list))
	for _, c := range list {
		m, ok := c.(map[string]any)
		if !ok {
			return nil, false
		}
		out = append(out, m)
	}
	return out, true
}

// StateList lists the properties a definition mentions, each as
// [name, values...], values sorted. Boolean properties always list both values.
func StateList(def *rp.BlockStateDefinition) [][]string {
	attrs := map[string][]string{}
	add := func(attr, val string) {
		for _, v := range strings.Split(val, "|") {
			if stringSliceSearch(attrs[attr], v) == -1 {
				attrs[attr] = append(attrs[attr], v)
			}
		}
	}

	for _, variant := range def.Variants {
		if variant.Key == "" || variant.Key == "normal" {
			continue
		}
		for _, part := range strings.Split(variant.Key, ",") {
			equiv := strings.SplitN(part, "=", 2)
			if len(equiv) == 2 {
				add(equiv[0], equiv[1])
			}
		}
	}

	var walk func(clauses []map[string]any)
	walk = func(clauses []map[string]any) {
		for _, conj := range clauses {
			for attr, value := range conj {
				if nested, ok := nestedClauses(value); ok && (attr == "OR" || attr == "AND") {
					walk(nested)
					continue
				}
				add(attr, whenValue(value))
			}
		}
	}
	for _, part := range def.Multipart {
		if part.When != nil {
			walk(part.When.Clauses)
		}
	}

	if len(attrs) == 0 {
		return nil
	}
	alist := [][]string{}
	for name, values := range attrs {
		if len(values) == 1 && (values[0] == "true" || values[0] == "false") {
			values = append(values, map[string]string{"true": "false", "false": "true"}[values[0]])
		}
		sort.Strings(values)
		alist = append(alist, append([]string{name}, values...))
	}
	sort.Slice(alist, func(i, j int) bool {
		return alist[i][0] < alist[j][0]
	})
	return alist
}

// EnumerateStates expands a state list into every property combination,
// stopping after limit states.
func EnumerateStates(block string, sl [][]string, limit int) []schematic.BlockState {
	out := []schematic.BlockState{}
	props := map[string]string{}
	var rec func(i int)
	rec = func(i int) {
		if len(out) >= limit {
			return
		}
		if i == len(sl) {
			out = append(out, schematic.NewBlockState(block, props))
			return
		}
		for _, v := range sl[i][1:] {
			props[sl[i][0]] = v
			rec(i + 1)
		}
		delete(props, sl[i][0])
	}
	rec(0)
	return out
}

// variantMatches reports whether every k=v pair of a variants key holds
// for st. The empty key and "normal" match anything.
func variantMatches(key string, st schematic.BlockState) bool {
	if key == "" || key == "normal" {
		return true
	}
	for _, part := range strings.Split(key, ",") {
		equiv := strings.SplitN(part, "=", 2)
		if len(equiv) != 2 {
			return false
		}
		if v, ok := st.Property(equiv[0]); !ok || v != equiv[1] {
			return false
		}
	}
	return true
}

func clauseMatches(clause map[string]any, st schematic.BlockState) bool {
	for attr, value := range clause {
		if nested, ok := nestedClauses(value); ok {
			switch attr {
			case "OR":
				if !anyClause(nested, st) {
					return false
				}
				continue
			case "AND":
				if !allClauses(nested, st) {
					return false
				}
				continue
			}
		}
		have, ok := st.Property(attr)
		if !ok {
			return false
		}
		want := whenValue(value)
		negate := strings.HasPrefix(want, "!")
		want = strings.TrimPrefix(want, "!")
		found := stringSliceSearch(strings.Split(want, "|"), have) != -1
		if found == negate {
			return false
		}
	}
	return true
}

func anyClause(clauses []map[string]any, st schematic.BlockState) bool {
	for _, c := range clauses {
		if clauseMatches(c, st) {
			return true
		}
	}
	return false
}

func allClauses(clauses []map[string]any, st schematic.BlockState) bool {
	for _, c := range clauses {
		if !clauseMatches(c, st) {
			return false
		}
	}
	return true
}

func whenMatches(w *rp.WhenClause, st schematic.BlockState) bool {
	if w == nil {
		return true
	}
	if w.IsOr {
		return anyClause(w.Clauses, st)
	}
	return allClauses(w.Clauses, st)
}

// selectModels picks the model specs for a state: the first weighted entry
// of the first matching variant, or the first entry of every matching
// multipart case in order. ok is false when variants exist but none match.
func selectModels(def *rp.BlockStateDefinition, st schematic.BlockState) (specs []rp.ModelSpec, ok bool) {
	if len(def.Variants) > 0 {
		for _, v := range def.Variants {
			if variantMatches(v.Key, st) && len(v.Models) > 0 {
				return []rp.ModelSpec{v.Models[0]}, true
			}
		}
		return nil, false
	}
	if def.Multipart == nil {
		return nil, false
	}
	for _, part := range def.Multipart {
		if whenMatches(part.When, st) && len(part.Apply) > 0 {
			specs = append(specs, part.Apply[0])
		}
	}
	return specs, true
}
