package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ritzau/rag-pipeline-designer/pkg/model"
)

// FileStore publishes the projection as a JSON file. Writes go through a temp file
// and a rename so readers never observe a half-written document.
type FileStore struct {
	path string
}

// NewFileStore creates a store writing to path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the published file location
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Publish(ctx context.Context, nodes []model.Node, updatedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(NewProjection(nodes, updatedAt), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode projection: %w", err)
	}
	return writeAtomic(s.path, data)
}

func (s *FileStore) Read(ctx context.Context) (Projection, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Projection{}, false
	}
	return DecodeProjection(data)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
