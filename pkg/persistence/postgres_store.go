package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ritzau/rag-pipeline-designer/pkg/logging"
	"github.com/ritzau/rag-pipeline-designer/pkg/model"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS pipeline_projections (
    name       TEXT PRIMARY KEY,
    nodes      JSONB NOT NULL DEFAULT '[]',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// PostgresStore publishes the projection as a single row keyed by name
type PostgresStore struct {
	db  *pgxpool.Pool
	key string
}

// NewPostgresStore creates a store backed by the given pgx connection pool
func NewPostgresStore(db *pgxpool.Pool, key string) *PostgresStore {
	if key == "" {
		key = DefaultKey
	}
	return &PostgresStore{db: db, key: key}
}

// OpenPostgresStore connects to dsn and makes sure the schema exists
func OpenPostgresStore(ctx context.Context, dsn, key string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("persistence: connect: %w", err)
	}
	s := NewPostgresStore(pool, key)
	if err := s.CreateSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("persistence: create schema: %w", err)
	}
	return s, nil
}

// CreateSchema creates the pipeline_projections table if it doesn't exist
func (s *PostgresStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops the pipeline_projections table
func (s *PostgresStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS pipeline_projections;`)
	return err
}

// Close releases the pool
func (s *PostgresStore) Close() {
	s.db.Close()
}

func (s *PostgresStore) Publish(ctx context.Context, nodes []model.Node, updatedAt time.Time) error {
	if nodes == nil {
		nodes = []model.Node{}
	}
	data, err := json.Marshal(nodes)
	if err != nil {
		return fmt.Errorf("persistence: encode nodes: %w", err)
	}

	if _, err := s.db.Exec(ctx,
		`INSERT INTO pipeline_projections (name, nodes, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO UPDATE SET nodes = EXCLUDED.nodes, updated_at = EXCLUDED.updated_at`,
		s.key, data, updatedAt,
	); err != nil {
		return fmt.Errorf("persistence: upsert %s: %w", s.key, err)
	}
	return nil
}

func (s *PostgresStore) Read(ctx context.Context) (Projection, bool) {
	var (
		data      []byte
		updatedAt time.Time
	)
	err := s.db.QueryRow(ctx,
		`SELECT nodes, updated_at FROM pipeline_projections WHERE name = $1`,
		s.key,
	).Scan(&data, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Projection{}, false
	}
	if err != nil {
		logging.WarnContext(ctx, "failed to read projection", "key", s.key, "error", err)
		return Projection{}, false
	}

	var nodes []model.Node
	if err := json.Unmarshal(data, &nodes); err != nil {
		return Projection{}, false
	}
	return NewProjection(nodes, updatedAt), true
}
