package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/ritzau/rag-pipeline-designer/pkg/model"
)

// MemoryStore keeps the last publication in memory
type MemoryStore struct {
	mu        sync.Mutex
	last      Projection
	published bool
	count     int
	err       error
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// FailWith makes subsequent publications fail with err. nil restores normal behavior.
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *MemoryStore) Publish(ctx context.Context, nodes []model.Node, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	if s.err != nil {
		return s.err
	}

	s.last = NewProjection(model.Snapshot{Nodes: nodes}.Clone().Nodes, updatedAt)
	s.published = true
	return nil
}

func (s *MemoryStore) Read(ctx context.Context) (Projection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.published
}

// Count returns how many times Publish was called, failed calls included
func (s *MemoryStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
