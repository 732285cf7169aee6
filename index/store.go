// Package index persists chunk embeddings in Postgres/pgvector and serves
// nearest-neighbor searches. The store owns the single long-lived embedder
// instance, so documents and queries always share one embedding space.
package index

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/fabfab/contextsync/database"
	"github.com/fabfab/contextsync/embeddings"
	"github.com/fabfab/contextsync/ingestion"
)

// Hit is one search result: the stored chunk text, its provenance metadata,
// and a similarity score derived from the vector distance.
type Hit struct {
	ID                string
	Content           string
	Source            string
	OriginID          string
	AuthorOrTitle     string
	TimestampOrStatus string
	URL               string
	Score             float64
}

// Store is the process-wide index handle. It is safe for concurrent readers
// and writers: the pgx pool serializes connections and upserts are keyed by
// content hash, so double-execution of a write is harmless.
//
// When the backing database or the embedder cannot be set up at
// construction, the store comes up unavailable instead of failing the whole
// process: searches return empty, upserts are no-ops, and the condition is
// logged once.
type Store struct {
	pool      *pgxpool.Pool
	embedder  embeddings.Embedder
	logger    *log.Logger
	available bool
}

func New(ctx context.Context, pool *pgxpool.Pool, embedder embeddings.Embedder, dimension int, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}

	s := &Store{
		pool:     pool,
		embedder: embedder,
		logger:   logger,
	}

	if pool == nil || embedder == nil {
		logger.Printf("index store unavailable: missing database pool or embedder")
		return s
	}

	if err := database.EnsureContextSchema(ctx, pool, dimension); err != nil {
		logger.Printf("index store unavailable: %v", err)
		return s
	}

	s.available = true
	return s
}

// Available reports whether the store came up with a working index.
func (s *Store) Available() bool {
	return s.available
}

// Upsert embeds the chunks and writes them keyed by their content hash.
// Re-ingesting identical content overwrites the existing row rather than
// creating a duplicate. No-op on an unavailable store.
func (s *Store) Upsert(ctx context.Context, chunks []ingestion.Chunk) error {
	if !s.available || len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: have %d chunks, %d vectors", len(chunks), len(vectors))
	}

	for i, chunk := range chunks {
		if _, err := s.pool.Exec(ctx, `
			INSERT INTO context_chunks (id, source, origin_id, author_or_title, timestamp_or_status, url, content, embedding, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
			ON CONFLICT (id) DO UPDATE SET updated_at = NOW()
		`, chunk.ID, chunk.Meta.Source, chunk.Meta.OriginID, chunk.Meta.AuthorOrTitle,
			chunk.Meta.TimestampOrStatus, chunk.Meta.URL, chunk.Text, pgvector.NewVector(vectors[i])); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", chunk.ID, err)
		}
	}

	return nil
}

// Search embeds the query with the same embedder used at write time and
// returns the k nearest chunks. An unavailable store returns empty, never an
// error. Score maps the L2 distance into (0, 1]: 1/(1+distance).
func (s *Store) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	if !s.available {
		return nil, nil
	}
	if k <= 0 {
		k = 5
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, source, origin_id, author_or_title, timestamp_or_status, url, content,
		       (embedding <-> $1::vector) AS distance
		FROM context_chunks
		ORDER BY embedding <-> $1::vector
		LIMIT $2
	`, pgvector.NewVector(vectors[0]), k)
	if err != nil {
		return nil, fmt.Errorf("query similar chunks: %w", err)
	}
	defer rows.Close()

	hits := make([]Hit, 0, k)
	for rows.Next() {
		var hit Hit
		var distance float64
		if err := rows.Scan(&hit.ID, &hit.Source, &hit.OriginID, &hit.AuthorOrTitle,
			&hit.TimestampOrStatus, &hit.URL, &hit.Content, &distance); err != nil {
			return nil, fmt.Errorf("scan similar chunk: %w", err)
		}
		hit.Score = 1 / (1 + distance)
		hits = append(hits, hit)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return hits, nil
}

// Clear removes every stored chunk. Used by the clear command.
func (s *Store) Clear(ctx context.Context) error {
	if !s.available {
		return nil
	}
	if _, err := s.pool.Exec(ctx, "TRUNCATE context_chunks"); err != nil {
		return fmt.Errorf("truncate context_chunks: %w", err)
	}
	return nil
}
