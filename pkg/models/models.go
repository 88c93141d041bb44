// Package models is the fixed registry of embedding models wembed knows how
// to run: each name maps to a pretrained transformer and the range of hidden
// state layers that are averaged into the embedding.
package models

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
)

// ErrUnknownModel is returned when a model name is not in the registry.
var ErrUnknownModel = errors.New("unknown model")

// Model describes one registry entry.
type Model struct {
	// Name is the user facing model name, e.g. "xlm-roberta-base-last4".
	Name string

	// PretrainedID is the pretrained transformer identifier. It also names the
	// artifact directory under the models dir.
	PretrainedID string

	// LayerStart and LayerEnd select hidden states with slice semantics:
	// half-open, negative values count from the end and a LayerEnd of zero
	// means through the last layer.
	LayerStart int
	LayerEnd   int
}

// LayerRange resolves the layer slice against an encoder that exposes
// numLayers hidden states and returns the half-open [lo, hi) range.
func (m Model) LayerRange(numLayers int) (int, int, error) {
	lo := resolve(m.LayerStart, numLayers)
	hi := numLayers
	if m.LayerEnd != 0 {
		hi = resolve(m.LayerEnd, numLayers)
	}

	if hi <= lo {
		return 0, 0, fmt.Errorf("model %s: layers [%d:%d] select nothing from %d hidden states",
			m.Name, m.LayerStart, m.LayerEnd, numLayers)
	}
	return lo, hi, nil
}

func resolve(i, n int) int {
	if i < 0 {
		i += n
	}
	return max(0, min(i, n))
}

// Dir returns the artifact directory of the model below modelsDir.
func (m Model) Dir(modelsDir string) string {
	return filepath.Join(modelsDir, filepath.FromSlash(m.PretrainedID))
}

// Registry is an immutable name -> Model mapping.
type Registry struct {
	models map[string]Model
}

// NewRegistry builds a registry from the given models. Later duplicates win.
func NewRegistry(ms ...Model) *Registry {
	r := &Registry{models: make(map[string]Model, len(ms))}
	for _, m := range ms {
		r.models[m.Name] = m
	}
	return r
}

var defaultRegistry = NewRegistry(
	Model{
		Name:         "bert-base-multilingual-uncased-last4",
		PretrainedID: "bert-base-multilingual-uncased",
		LayerStart:   -4,
	},
	Model{
		Name:         "xlm-roberta-base-last4",
		PretrainedID: "jplu/tf-xlm-roberta-base",
		LayerStart:   -4,
	},
)

// Default returns the built-in registry.
func Default() *Registry {
	return defaultRegistry
}

// DefaultModel is the model used when none is configured.
const DefaultModel = "bert-base-multilingual-uncased-last4"

// Lookup returns the model registered under name.
func (r *Registry) Lookup(name string) (Model, error) {
	m, ok := r.models[name]
	if !ok {
		return Model{}, fmt.Errorf("%w: %q (available: %v)", ErrUnknownModel, name, r.Names())
	}
	return m, nil
}

// Names returns the registered model names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Models returns every registered model, sorted by name.
func (r *Registry) Models() []Model {
	names := r.Names()
	out := make([]Model, 0, len(names))
	for _, name := range names {
		out = append(out, r.models[name])
	}
	return out
}
