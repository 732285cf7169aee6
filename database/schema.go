package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureContextSchema creates the pgvector extension and the chunk table used
// by the index store. Chunk rows are keyed by a content hash, so re-ingesting
// identical text lands on the same primary key.
func EnsureContextSchema(ctx context.Context, pool *pgxpool.Pool, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS context_chunks (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			origin_id TEXT,
			author_or_title TEXT,
			timestamp_or_status TEXT,
			url TEXT,
			content TEXT NOT NULL,
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, dimension),
		"CREATE INDEX IF NOT EXISTS idx_context_chunks_source ON context_chunks(source)",
		"CREATE INDEX IF NOT EXISTS idx_context_chunks_embedding ON context_chunks USING ivfflat (embedding vector_l2_ops)",
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}

	return nil
}
