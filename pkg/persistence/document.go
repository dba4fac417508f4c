package persistence

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ritzau/rag-pipeline-designer/pkg/logging"
	"github.com/ritzau/rag-pipeline-designer/pkg/model"
)

// LoadGraph reads a full graph document (nodes and edges). A missing, malformed or
// invalid document yields the default graph; the second result reports whether the
// file was used.
func LoadGraph(path string) (*model.Graph, bool) {
	if path == "" {
		return model.DefaultGraph(), false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn("failed to read graph document, using default pipeline", "path", path, "error", err)
		}
		return model.DefaultGraph(), false
	}

	var s model.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		logging.Warn("malformed graph document, using default pipeline", "path", path, "error", err)
		return model.DefaultGraph(), false
	}

	g, err := model.FromSnapshot(s)
	if err != nil {
		logging.Warn("invalid graph document, using default pipeline", "path", path, "error", err)
		return model.DefaultGraph(), false
	}
	return g, true
}

// SaveGraph writes the full graph document atomically
func SaveGraph(path string, g *model.Graph) error {
	data, err := json.MarshalIndent(g.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode graph: %w", err)
	}
	return writeAtomic(path, data)
}
