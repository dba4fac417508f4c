package output

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/ritzau/rag-pipeline-designer/pkg/analysis"
	"github.com/ritzau/rag-pipeline-designer/pkg/model"
	"github.com/ritzau/rag-pipeline-designer/pkg/persistence"
)

var (
	bold   = color.New(color.Bold)
	red    = color.New(color.FgRed)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

// statusColor picks the color for a latency status
func statusColor(status analysis.Status) *color.Color {
	switch status {
	case analysis.StatusOptimal:
		return green
	case analysis.StatusDegraded:
		return yellow
	default:
		return red
	}
}

// PrintPipelineReport prints a nicely formatted pipeline report with colors
func PrintPipelineReport(w io.Writer, source string, nodes []model.Node, activePreset string) {
	m := analysis.Summarize(nodes)

	// Header
	bold.Fprintln(w, "RAG Pipeline Designer - Pipeline Report")
	bold.Fprintln(w, "=======================================")
	fmt.Fprintf(w, "Source: %s\n", source)
	fmt.Fprintf(w, "Nodes: %d (%d active)\n", len(nodes), m.ActiveNodes)
	if activePreset != "" {
		cyan.Fprintf(w, "Preset: %s\n", activePreset)
	}
	fmt.Fprintln(w)

	// Node list, inactive nodes dimmed
	for _, n := range nodes {
		line := fmt.Sprintf("  %-12s %-28s %-22s %7.0fms  $%.2f/M", n.Kind, n.Label, n.Model, n.EffectiveLatencyMs(), n.EffectiveCostPerMillion())
		switch {
		case !n.Active:
			faint.Fprintln(w, line+"  (inactive)")
		case n.ID == m.Bottleneck:
			yellow.Fprintln(w, line+"  <- bottleneck")
		default:
			fmt.Fprintln(w, line)
		}
	}
	fmt.Fprintln(w)

	// Per-kind counts
	for _, kc := range m.ByKind {
		if kc.Active > 0 {
			fmt.Fprintf(w, "  %-12s %d active\n", kc.Kind, kc.Active)
		}
	}
	fmt.Fprintln(w)

	// Summary with color based on the latency budget
	fmt.Fprintf(w, "Total latency: %.0fms\n", m.TotalLatencyMs)
	fmt.Fprintf(w, "Total cost: $%.2f per million tokens\n", m.TotalCostPerMillion)
	statusColor(m.Status).Fprintf(w, "Status: %s\n", m.Status)

	if m.Status == analysis.StatusOptimal {
		green.Fprintln(w, "✓ Pipeline is within the latency budget")
	}
}

// PrintProjection prints a short summary of a published projection
func PrintProjection(w io.Writer, p persistence.Projection, ok bool) {
	if !analysis.HasPipeline(p, ok) {
		yellow.Fprintln(w, "No pipeline published")
		return
	}

	m := analysis.Summarize(p.Nodes)
	fmt.Fprintf(w, "[%s] %d nodes, %d active, ", p.Time().Format(time.TimeOnly), len(p.Nodes), m.ActiveNodes)
	statusColor(m.Status).Fprintf(w, "%.0fms %s", m.TotalLatencyMs, m.Status)
	fmt.Fprintf(w, ", $%.2f/M\n", m.TotalCostPerMillion)
}
