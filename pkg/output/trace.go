package output

import (
	"context"
	"fmt"
	"io"

	"github.com/ritzau/rag-pipeline-designer/pkg/logging"
	"github.com/ritzau/rag-pipeline-designer/pkg/model"
	"github.com/ritzau/rag-pipeline-designer/pkg/pubsub"
	"github.com/ritzau/rag-pipeline-designer/pkg/simulation"
)

// TraceResult is how a traced run ended
type TraceResult struct {
	Finished  bool
	ElapsedMs float64
	Visited   []string
	Reason    simulation.Reason
}

// TraceSimulation prints simulation events from sub until the run finishes or is
// cancelled. Elapsed ticks are only printed when verbose is set.
func TraceSimulation(ctx context.Context, w io.Writer, sub pubsub.Subscription, nodes func(id string) (model.Node, bool), verbose bool) (TraceResult, error) {
	label := func(id string) string {
		if n, ok := nodes(id); ok {
			return n.Label
		}
		return id
	}

	for {
		select {
		case <-ctx.Done():
			return TraceResult{}, ctx.Err()

		case event, ok := <-sub.Events():
			if !ok {
				return TraceResult{}, pubsub.ErrClosed
			}

			switch event.Type {
			case simulation.EventStarted:
				var e simulation.Started
				if err := event.Decode(&e); err != nil {
					return TraceResult{}, err
				}
				bold.Fprintf(w, "Simulating from %s\n", label(e.Entry))

			case simulation.EventNodeActive:
				var e simulation.NodeActive
				if err := event.Decode(&e); err != nil {
					return TraceResult{}, err
				}
				n, ok := nodes(e.NodeID)
				if ok && !n.Active {
					faint.Fprintf(w, "  ● %s (bypassed)\n", n.Label)
				} else {
					cyan.Fprintf(w, "  ● %s\n", label(e.NodeID))
				}

			case simulation.EventElapsed:
				if !verbose {
					continue
				}
				var e simulation.Elapsed
				if err := event.Decode(&e); err != nil {
					return TraceResult{}, err
				}
				faint.Fprintf(w, "    %.0fms\n", e.ElapsedMs)

			case simulation.EventEdgeActive:
				var e simulation.EdgeActive
				if err := event.Decode(&e); err != nil {
					return TraceResult{}, err
				}
				fmt.Fprintf(w, "  │ %s → %s\n", label(e.Source), label(e.Target))

			case simulation.EventFinished:
				var e simulation.Finished
				if err := event.Decode(&e); err != nil {
					return TraceResult{}, err
				}
				green.Fprintf(w, "Finished in %.0fms (%s)\n", e.ElapsedMs, e.Reason)
				return TraceResult{Finished: true, ElapsedMs: e.ElapsedMs, Visited: e.Visited, Reason: e.Reason}, nil

			case simulation.EventCancelled:
				var e simulation.Cancelled
				if err := event.Decode(&e); err != nil {
					return TraceResult{}, err
				}
				yellow.Fprintf(w, "Cancelled after %.0fms\n", e.ElapsedMs)
				return TraceResult{ElapsedMs: e.ElapsedMs}, nil

			default:
				logging.Debug("ignoring simulation event", "type", event.Type)
			}
		}
	}
}
