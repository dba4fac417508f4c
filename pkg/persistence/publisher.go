package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ritzau/rag-pipeline-designer/pkg/model"
)

// DefaultKey is the fixed name the active pipeline is published under
const DefaultKey = "active_pipeline"

// PipelinePublisher receives the current node set whenever it changes.
// Implementations may fail; callers going through Bridge never see the error.
type PipelinePublisher interface {
	Publish(ctx context.Context, nodes []model.Node, updatedAt time.Time) error
}

// ProjectionReader is the consumer side of a store
type ProjectionReader interface {
	// Read returns the last published projection, or false if none is usable
	Read(ctx context.Context) (Projection, bool)
}

// Projection is the shape read by features outside the designer
type Projection struct {
	Nodes     []model.Node `json:"nodes"`
	UpdatedAt int64        `json:"updatedAt"` // epoch milliseconds
}

// NewProjection builds the published shape for a node set
func NewProjection(nodes []model.Node, updatedAt time.Time) Projection {
	if nodes == nil {
		nodes = []model.Node{}
	}
	return Projection{
		Nodes:     nodes,
		UpdatedAt: updatedAt.UnixMilli(),
	}
}

// Time returns UpdatedAt as a time.Time
func (p Projection) Time() time.Time {
	return time.UnixMilli(p.UpdatedAt)
}

// DecodeProjection parses a published document. Malformed content is reported as absent.
func DecodeProjection(data []byte) (Projection, bool) {
	var raw struct {
		Nodes     *[]model.Node `json:"nodes"`
		UpdatedAt *int64        `json:"updatedAt"`
	}
	if len(data) == 0 {
		return Projection{}, false
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Projection{}, false
	}
	if raw.Nodes == nil {
		return Projection{}, false
	}

	p := Projection{Nodes: *raw.Nodes}
	if p.Nodes == nil {
		p.Nodes = []model.Node{}
	}
	if raw.UpdatedAt != nil {
		p.UpdatedAt = *raw.UpdatedAt
	}
	return p, true
}
