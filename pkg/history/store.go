// Package history records processed frames in PostgreSQL with a pgvector
// embedding of the model's answer, so past frames can be searched by meaning.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/menta2k/framecast/pkg/client"
)

// Record is one processed frame
type Record struct {
	ID        int64     `json:"id"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	ImagePath string    `json:"image_path,omitempty"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	CreatedAt time.Time `json:"created_at"`
}

// Match is a search hit
type Match struct {
	Record
	Similarity float64 `json:"similarity"`
}

// Store manages the frame_analyses table
type Store struct {
	pool       *pgxpool.Pool
	embedder   client.Embedder
	dimensions int
	logger     *slog.Logger
}

// Open connects to databaseURL. embedder may be nil, in which case rows are
// stored without embeddings and Search is unavailable.
func Open(ctx context.Context, databaseURL string, embedder client.Embedder, dimensions int, logger *slog.Logger) (*Store, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool:       pool,
		embedder:   embedder,
		dimensions: dimensions,
		logger:     logger.With("component", "history"),
	}, nil
}

// Close closes the connection pool
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema creates the vector extension, table and indexes if missing
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS frame_analyses (
            id BIGSERIAL PRIMARY KEY,
            prompt TEXT NOT NULL,
            response TEXT NOT NULL,
            image_path TEXT NOT NULL DEFAULT '',
            width INTEGER NOT NULL,
            height INTEGER NOT NULL,
            embedding vector(%d),
            created_at TIMESTAMPTZ NOT NULL
        )`, s.dimensions))
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
        CREATE INDEX IF NOT EXISTS idx_frame_analyses_created_at ON frame_analyses(created_at DESC);
        CREATE INDEX IF NOT EXISTS idx_frame_analyses_embedding ON frame_analyses USING hnsw (embedding vector_cosine_ops);
    `)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// embedding returns the vector stored with text, or nil when there is no
// embedder or it fails or returns the wrong number of dimensions.
func (s *Store) embedding(ctx context.Context, text string) *pgvector.Vector {
	if s.embedder == nil {
		return nil
	}
	vec, err := s.embedder.Embed(ctx, text)
	switch {
	case err != nil:
		s.logger.Warn("failed to embed response", "error", err)
		return nil
	case len(vec) != s.dimensions:
		s.logger.Warn("embedding has wrong dimensions", "got", len(vec), "want", s.dimensions)
		return nil
	}
	v := pgvector.NewVector(vec)
	return &v
}

// Record stores a processed frame. An embedding failure is logged and the row
// is stored without one.
func (s *Store) Record(ctx context.Context, rec Record) (int64, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	embedding := s.embedding(ctx, rec.Response)

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO frame_analyses
        (prompt, response, image_path, width, height, embedding, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id`,
		rec.Prompt, rec.Response, rec.ImagePath, rec.Width, rec.Height, embedding, rec.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to store frame analysis: %w", err)
	}
	return id, nil
}

// Recent returns the newest records first
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, prompt, response, image_path, width, height, created_at
        FROM frame_analyses
        ORDER BY created_at DESC, id DESC
        LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list frame analyses: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var r Record
		err := row.Scan(&r.ID, &r.Prompt, &r.Response, &r.ImagePath, &r.Width, &r.Height, &r.CreatedAt)
		return r, err
	})
}

// Search returns the records whose responses are closest in meaning to query
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Match, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("search requires an embedder")
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, prompt, response, image_path, width, height, created_at,
        1 - (embedding <=> $1) AS similarity
        FROM frame_analyses
        WHERE embedding IS NOT NULL
        ORDER BY embedding <=> $1
        LIMIT $2`,
		pgvector.NewVector(vec), clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to search frame analyses: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Match, error) {
		var m Match
		err := row.Scan(&m.ID, &m.Prompt, &m.Response, &m.ImagePath, &m.Width, &m.Height, &m.CreatedAt, &m.Similarity)
		return m, err
	})
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 200 {
		return 200
	}
	return limit
}
