package model

import (
	"fmt"
	"strings"
)

// Kind represents the role a step plays in the pipeline
type Kind string

const (
	KindGuardrail  Kind = "GUARDRAIL"
	KindRouting    Kind = "ROUTING"
	KindProcessing Kind = "PROCESSING"
	KindRetrieval  Kind = "RETRIEVAL"
	KindRerank     Kind = "RERANK"
	KindGeneration Kind = "GENERATION"
)

// Kinds lists every node kind in palette order
var Kinds = []Kind{
	KindGuardrail,
	KindRouting,
	KindProcessing,
	KindRetrieval,
	KindRerank,
	KindGeneration,
}

// Valid returns true if k is one of the known kinds
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseKind converts a case-insensitive name into a Kind
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown node kind %q", s)
	}
	return k, nil
}

// Position is a renderer-owned layout coordinate. The core stores it but never reads it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a single pipeline step
type Node struct {
	ID                 string    `json:"id"`
	Kind               Kind      `json:"kind"`
	Label              string    `json:"label"`
	Model              string    `json:"model"`
	Active             bool      `json:"active"`
	BaseLatencyMs      float64   `json:"baseLatencyMs"`
	BaseCostPerMillion float64   `json:"baseCostPerMillion"`
	Position           *Position `json:"position"`
}

// EffectiveLatencyMs returns the latency the node contributes to a run.
// Inactive nodes contribute nothing.
func (n Node) EffectiveLatencyMs() float64 {
	if !n.Active {
		return 0
	}
	return n.BaseLatencyMs
}

// EffectiveCostPerMillion returns the cost the node contributes per million queries
func (n Node) EffectiveCostPerMillion() float64 {
	if !n.Active {
		return 0
	}
	return n.BaseCostPerMillion
}

// clone returns a copy that shares no pointers with n
func (n Node) clone() Node {
	if n.Position != nil {
		p := *n.Position
		n.Position = &p
	}
	return n
}

// Equal compares two nodes field by field, including position
func (n Node) Equal(o Node) bool {
	if n.ID != o.ID || n.Kind != o.Kind || n.Label != o.Label || n.Model != o.Model ||
		n.Active != o.Active || n.BaseLatencyMs != o.BaseLatencyMs ||
		n.BaseCostPerMillion != o.BaseCostPerMillion {
		return false
	}
	if (n.Position == nil) != (o.Position == nil) {
		return false
	}
	return n.Position == nil || *n.Position == *o.Position
}

// Edge is a directed connection from Source to Target
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}
