package diff

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/ritzau/rag-pipeline-designer/pkg/model"
)

// GraphDiff represents the difference between two pipeline states.
// Entries follow pipeline order so the same change always yields the same diff.
type GraphDiff struct {
	AddedNodes    []model.Node `json:"addedNodes"`
	RemovedNodes  []string     `json:"removedNodes"`  // Node IDs
	ModifiedNodes []model.Node `json:"modifiedNodes"` // Nodes with changed properties
	AddedEdges    []model.Edge `json:"addedEdges"`
	RemovedEdges  []string     `json:"removedEdges"` // Edge IDs
	FullGraph     bool         `json:"fullGraph"`    // True if this is a full graph, not a diff
}

// Empty reports whether the diff carries no change
func (d GraphDiff) Empty() bool {
	return !d.FullGraph &&
		len(d.AddedNodes) == 0 && len(d.RemovedNodes) == 0 && len(d.ModifiedNodes) == 0 &&
		len(d.AddedEdges) == 0 && len(d.RemovedEdges) == 0
}

// Full returns a diff that carries the whole snapshot, used for initial loads
func Full(s model.Snapshot) GraphDiff {
	c := s.Clone()
	return GraphDiff{
		AddedNodes:    c.Nodes,
		RemovedNodes:  []string{},
		ModifiedNodes: []model.Node{},
		AddedEdges:    c.Edges,
		RemovedEdges:  []string{},
		FullGraph:     true,
	}
}

// Compute computes the difference between two snapshots.
// Position changes count as modifications.
func Compute(old, next model.Snapshot) GraphDiff {
	d := GraphDiff{
		AddedNodes:    make([]model.Node, 0),
		RemovedNodes:  make([]string, 0),
		ModifiedNodes: make([]model.Node, 0),
		AddedEdges:    make([]model.Edge, 0),
		RemovedEdges:  make([]string, 0),
	}

	oldNodes := make(map[string]model.Node, len(old.Nodes))
	for _, node := range old.Nodes {
		oldNodes[node.ID] = node
	}
	newNodes := make(map[string]bool, len(next.Nodes))

	// Find added and modified nodes
	for _, node := range next.Nodes {
		newNodes[node.ID] = true
		if prev, exists := oldNodes[node.ID]; exists {
			if !prev.Equal(node) {
				d.ModifiedNodes = append(d.ModifiedNodes, node)
			}
		} else {
			d.AddedNodes = append(d.AddedNodes, node)
		}
	}

	// Find removed nodes
	for _, node := range old.Nodes {
		if !newNodes[node.ID] {
			d.RemovedNodes = append(d.RemovedNodes, node.ID)
		}
	}

	oldEdges := make(map[string]bool, len(old.Edges))
	for _, edge := range old.Edges {
		oldEdges[edge.ID] = true
	}
	newEdges := make(map[string]bool, len(next.Edges))

	for _, edge := range next.Edges {
		newEdges[edge.ID] = true
		if !oldEdges[edge.ID] {
			d.AddedEdges = append(d.AddedEdges, edge)
		}
	}

	for _, edge := range old.Edges {
		if !newEdges[edge.ID] {
			d.RemovedEdges = append(d.RemovedEdges, edge.ID)
		}
	}

	return d
}

// HashNodes generates a hash of the node projection. Two node lists hash equal
// exactly when they would publish the same projection.
func HashNodes(nodes []model.Node) string {
	jsonData, err := json.Marshal(nodes)
	if err != nil {
		return ""
	}

	hash := sha256.Sum256(jsonData)
	return fmt.Sprintf("%x", hash)
}
