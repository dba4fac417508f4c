package presets

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/ritzau/rag-pipeline-designer/pkg/model"
)

var ErrUnknownPreset = errors.New("presets: unknown preset")

// Built-in preset names
const (
	Fast      = "FAST"
	Balanced  = "BALANCED"
	Precision = "PRECISION"
)

// Preset is a named bulk rewrite of node settings.
//
// When KeepActive is non-empty only the listed nodes stay active and every other node
// is switched off; otherwise ActivateAll turns every node on. Model replaces the model
// of nodes whose kind is in ModelKinds, or of every node when ModelKinds is empty.
// LatencyMs is applied to nodes that are active after the rewrite.
type Preset struct {
	Name        string       `koanf:"-" json:"name"`
	ActivateAll bool         `koanf:"activate_all" json:"activateAll"`
	KeepActive  []string     `koanf:"keep_active" json:"keepActive,omitempty"`
	Model       string       `koanf:"model" json:"model,omitempty"`
	ModelKinds  []model.Kind `koanf:"model_kinds" json:"modelKinds,omitempty"`
	LatencyMs   *float64     `koanf:"latency_ms" json:"latencyMs,omitempty"`
}

// Apply returns the node rewritten by the preset
func (p Preset) Apply(n model.Node) model.Node {
	switch {
	case len(p.KeepActive) > 0:
		n.Active = contains(p.KeepActive, n.ID)
	case p.ActivateAll:
		n.Active = true
	}

	if p.Model != "" && (len(p.ModelKinds) == 0 || containsKind(p.ModelKinds, n.Kind)) {
		n.Model = p.Model
	}

	if p.LatencyMs != nil && n.Active {
		n.BaseLatencyMs = *p.LatencyMs
	}

	return n
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func containsKind(kinds []model.Kind, k model.Kind) bool {
	for _, candidate := range kinds {
		if candidate == k {
			return true
		}
	}
	return false
}

func latency(ms float64) *float64 {
	return &ms
}

// Builtins returns the three stock presets
func Builtins() []Preset {
	return []Preset{
		{
			Name:       Fast,
			KeepActive: []string{"n2", "n5"},
			Model:      "Gemini 3 Flash",
			ModelKinds: []model.Kind{model.KindGeneration},
			LatencyMs:  latency(50),
		},
		{
			Name:        Balanced,
			ActivateAll: true,
		},
		{
			Name:        Precision,
			ActivateAll: true,
			Model:       "Gemini 3 Pro",
			LatencyMs:   latency(300),
		},
	}
}

// Registry looks presets up by case-insensitive name
type Registry struct {
	presets map[string]Preset
}

// NewRegistry creates a registry holding the built-in presets
func NewRegistry() *Registry {
	r := &Registry{presets: make(map[string]Preset)}
	for _, p := range Builtins() {
		r.Add(p)
	}
	return r
}

// Add registers or replaces a preset
func (r *Registry) Add(p Preset) {
	p.Name = strings.ToUpper(strings.TrimSpace(p.Name))
	r.presets[p.Name] = p
}

// Get returns the preset with the given name
func (r *Registry) Get(name string) (Preset, error) {
	p, ok := r.presets[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return p, nil
}

// Names returns the registered preset names. Built-ins come first in their stock order.
func (r *Registry) Names() []string {
	var names, extra []string
	for _, p := range Builtins() {
		if _, ok := r.presets[p.Name]; ok {
			names = append(names, p.Name)
		}
	}
	for name := range r.presets {
		if name != Fast && name != Balanced && name != Precision {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}

// Load reads [presets.<name>] tables from a TOML file and merges them over the built-ins.
// A table named after a built-in replaces it entirely.
func Load(path string) (*Registry, error) {
	r := NewRegistry()

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load presets from %s: %w", path, err)
	}

	for _, name := range k.MapKeys("presets") {
		var p Preset
		if err := k.Unmarshal("presets."+name, &p); err != nil {
			return nil, fmt.Errorf("failed to parse preset %s: %w", name, err)
		}
		for _, kind := range p.ModelKinds {
			if !kind.Valid() {
				return nil, fmt.Errorf("preset %s: unknown node kind %q", name, kind)
			}
		}
		p.Name = name
		r.Add(p)
	}

	return r, nil
}
