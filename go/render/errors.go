package render

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// BlockDefinitionNotFoundError means no source in the stack defines a
// blockstate file for the block.
type BlockDefinitionNotFoundError struct {
	Block string
}

func (e *BlockDefinitionNotFoundError) Error() string {
	return "no blockstate definition for " + e.Block
}

// ModelInheritanceCycleError is fatal: a parent chain loops or runs deeper
// than the configured limit.
type ModelInheritanceCycleError struct {
	Chain []string
}

func (e *ModelInheritanceCycleError) Error() string {
	return "model inheritance cycle: " + strings.Join(e.Chain, " -> ")
}

// UnresolvedTextureVariableError means a "#name" reference has no binding
// anywhere in the model's parent chain.
type UnresolvedTextureVariableError struct {
	Model    string
	Variable string
}

func (e *UnresolvedTextureVariableError) Error() string {
	return fmt.Sprintf("model %s: unresolved texture variable #%s", e.Model, e.Variable)
}

type WarningKind string

const (
	WarnMissingDefinition WarningKind = "missing_definition"
	WarnInvalidAsset      WarningKind = "invalid_asset"
	WarnNoVariant         WarningKind = "no_matching_variant"
	WarnMissingModel      WarningKind = "missing_model"
	WarnUnresolvedTexture WarningKind = "unresolved_texture_variable"
	WarnMissingTexture    WarningKind = "missing_texture"
	WarnUnreadableTexture WarningKind = "unreadable_texture"
)

// Warning is a recoverable resolution problem. The affected geometry falls
// back to the missing texture or a placeholder cube.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Subject string      `json:"subject"`
	Detail  string      `json:"detail,omitempty"`
}

func (w Warning) String() string {
	if w.Detail == "" {
		return fmt.Sprintf("%s: %s", w.Kind, w.Subject)
	}
	return fmt.Sprintf("%s: %s (%s)", w.Kind, w.Subject, w.Detail)
}

// Warnings collects warnings across a conversion, logging each distinct
// (kind, subject) pair once.
type Warnings struct {
	mu   sync.Mutex
	seen map[Warning]bool
	list []Warning
}

func NewWarnings() *Warnings {
	return &Warnings{seen: map[Warning]bool{}}
}

// Add records a warning and reports whether it was new.
func (w *Warnings) Add(warn Warning) bool {
	key := Warning{Kind: warn.Kind, Subject: warn.Subject}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seen[key] {
		return false
	}
	w.seen[key] = true
	w.list = append(w.list, warn)
	slog.Warn(string(warn.Kind), "subject", warn.Subject, "detail", warn.Detail)
	return true
}

func (w *Warnings) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.list)
}

func (w *Warnings) CountKind(kind WarningKind) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, warn := range w.list {
		if warn.Kind == kind {
			n++
		}
	}
	return n
}

// List returns the warnings sorted by kind, then subject.
func (w *Warnings) List() []Warning {
	w.mu.Lock()
	out := append([]Warning(nil), w.list...)
	w.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Subject < out[j].Subject
	})
	return out
}

// Summary counts warnings per kind.
func (w *Warnings) Summary() map[WarningKind]int {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := map[WarningKind]int{}
	for _, warn := range w.list {
		out[warn.Kind]++
	}
	return out
}
