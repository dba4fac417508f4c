package analysis

import (
	"strings"

	"github.com/ritzau/rag-pipeline-designer/pkg/model"
	"github.com/ritzau/rag-pipeline-designer/pkg/persistence"
)

// Status classifies the end-to-end latency of a pipeline
type Status string

const (
	StatusOptimal  Status = "OPTIMAL"
	StatusDegraded Status = "DEGRADED"
	StatusCritical Status = "CRITICAL"
)

// Latency budget thresholds in milliseconds
const (
	DegradedLatencyMs = 800
	CriticalLatencyMs = 1200
)

// Metrics summarizes the active part of a pipeline
type Metrics struct {
	TotalLatencyMs      float64      `json:"totalLatencyMs"`
	TotalCostPerMillion float64      `json:"totalCostPerMillion"`
	ActiveNodes         int          `json:"activeNodes"`
	Bottleneck          string       `json:"bottleneck,omitempty"` // id of the slowest active node
	Status              Status       `json:"status"`
	ByKind              []KindCount  `json:"byKind"`
	Breakdown           []NodeWeight `json:"breakdown"`
}

// KindCount is the number of active nodes of one kind
type KindCount struct {
	Kind   model.Kind `json:"kind"`
	Active int        `json:"active"`
}

// NodeWeight is one active node's share of the totals
type NodeWeight struct {
	ID             string  `json:"id"`
	Label          string  `json:"label"`
	LatencyMs      float64 `json:"latencyMs"`
	CostPerMillion float64 `json:"costPerMillion"`
}

// Summarize totals latency and cost over active nodes, in node order
func Summarize(nodes []model.Node) Metrics {
	m := Metrics{
		ByKind:    make([]KindCount, 0, len(model.Kinds)),
		Breakdown: make([]NodeWeight, 0, len(nodes)),
	}

	slowest := -1.0
	for _, n := range nodes {
		if !n.Active {
			continue
		}
		m.ActiveNodes++
		m.TotalLatencyMs += n.EffectiveLatencyMs()
		m.TotalCostPerMillion += n.EffectiveCostPerMillion()
		m.Breakdown = append(m.Breakdown, NodeWeight{
			ID:             n.ID,
			Label:          n.Label,
			LatencyMs:      n.EffectiveLatencyMs(),
			CostPerMillion: n.EffectiveCostPerMillion(),
		})
		if n.BaseLatencyMs > slowest {
			slowest = n.BaseLatencyMs
			m.Bottleneck = n.ID
		}
	}

	for _, k := range model.Kinds {
		m.ByKind = append(m.ByKind, KindCount{Kind: k, Active: CountActive(nodes, k)})
	}
	m.Status = Classify(m.TotalLatencyMs)
	return m
}

// Classify maps a total latency onto the latency budget
func Classify(latencyMs float64) Status {
	switch {
	case latencyMs < DegradedLatencyMs:
		return StatusOptimal
	case latencyMs < CriticalLatencyMs:
		return StatusDegraded
	default:
		return StatusCritical
	}
}

// CountActive returns how many active nodes have the given kind
func CountActive(nodes []model.Node, kind model.Kind) int {
	count := 0
	for _, n := range nodes {
		if n.Active && n.Kind == kind {
			count++
		}
	}
	return count
}

// HasPipeline reports whether a read projection describes an authored pipeline.
// Absent, unreadable and empty projections all count as no pipeline.
func HasPipeline(p persistence.Projection, ok bool) bool {
	return ok && len(p.Nodes) > 0
}

// Search returns the ids of nodes whose label does not contain query, case-insensitively.
// These are the nodes a renderer dims. An empty query dims nothing.
func Search(nodes []model.Node, query string) []string {
	dimmed := make([]string, 0)
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return dimmed
	}

	for _, n := range nodes {
		if !strings.Contains(strings.ToLower(n.Label), query) {
			dimmed = append(dimmed, n.ID)
		}
	}
	return dimmed
}
