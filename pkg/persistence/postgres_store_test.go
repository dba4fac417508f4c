package persistence

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ritzau/rag-pipeline-designer/pkg/model"
)

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("RAG_DESIGNER_TEST_DSN")
	if dsn == "" {
		t.Skip("RAG_DESIGNER_TEST_DSN not set")
	}

	ctx := context.Background()
	store, err := OpenPostgresStore(ctx, dsn, "test_pipeline")
	if err != nil {
		t.Fatalf("OpenPostgresStore() error = %v", err)
	}
	defer store.Close()
	defer store.DropSchema(ctx)

	if _, ok := store.Read(ctx); ok {
		t.Fatal("Expected no projection in a fresh table")
	}

	at := time.UnixMilli(1700000000000)
	nodes := model.DefaultGraph().Nodes()
	if err := store.Publish(ctx, nodes, at); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	nodes[0].Active = false
	if err := store.Publish(ctx, nodes, at.Add(time.Second)); err != nil {
		t.Fatalf("second Publish() error = %v", err)
	}

	p, ok := store.Read(ctx)
	if !ok {
		t.Fatal("Expected projection after publish")
	}
	if p.UpdatedAt != at.Add(time.Second).UnixMilli() {
		t.Errorf("Expected upsert to keep the latest timestamp, got %d", p.UpdatedAt)
	}
	if len(p.Nodes) != len(nodes) || p.Nodes[0].Active {
		t.Errorf("Unexpected nodes after upsert: %+v", p.Nodes)
	}
}
