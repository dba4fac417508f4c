package cycles

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	pgraph "github.com/ritzau/rag-pipeline-designer/pkg/graph"
	"github.com/ritzau/rag-pipeline-designer/pkg/model"
)

var ErrCycleDetected = errors.New("cycles: cycle detected, pipeline is not acyclic")

// Cycle is a set of pipeline nodes that can reach each other
type Cycle struct {
	Nodes []string `json:"nodes"`
}

// CycleError reports the cycles that make a pipeline unrunnable
type CycleError struct {
	Cycles []Cycle
}

func (e *CycleError) Error() string {
	parts := make([]string, 0, len(e.Cycles))
	for _, c := range e.Cycles {
		parts = append(parts, "["+strings.Join(c.Nodes, " ")+"]")
	}
	return fmt.Sprintf("%v: %s", ErrCycleDetected, strings.Join(parts, ", "))
}

func (e *CycleError) Unwrap() error {
	return ErrCycleDetected
}

// FindCycles returns every cycle in the index: self loops first, then multi-node
// strongly connected components. Members are listed in pipeline order.
func FindCycles(idx *pgraph.Index) []Cycle {
	cycles := make([]Cycle, 0)

	for _, id := range idx.SelfLoops() {
		cycles = append(cycles, Cycle{Nodes: []string{id}})
	}

	var roots []int64
	nodes := idx.Graph().Nodes()
	for nodes.Next() {
		roots = append(roots, nodes.Node().ID())
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })

	for _, scc := range newTarjanSCC(idx.Graph()).find(roots) {
		// gonum ids follow pipeline order, so sorting them restores it
		sort.Slice(scc, func(i, j int) bool { return scc[i] < scc[j] })
		members := make([]string, 0, len(scc))
		for _, gid := range scc {
			if id, ok := idx.NodeID(gid); ok {
				members = append(members, id)
			}
		}
		cycles = append(cycles, Cycle{Nodes: members})
	}

	return cycles
}

// Check returns a *CycleError if the snapshot contains any cycle, nil otherwise
func Check(s model.Snapshot) error {
	found := FindCycles(pgraph.NewIndex(s))
	if len(found) == 0 {
		return nil
	}
	return &CycleError{Cycles: found}
}
