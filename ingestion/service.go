package ingestion

import (
	"context"
	"fmt"
	"log"

	"github.com/fabfab/contextsync/knowledge"
)

// ChunkWriter persists chunks. Writes are idempotent: the chunk ID is a
// content hash, so re-ingesting unchanged text is a storage no-op.
type ChunkWriter interface {
	Upsert(ctx context.Context, chunks []Chunk) error
}

// MentionSyncer records code-file mentions extracted from document text.
type MentionSyncer interface {
	SyncMentions(ctx context.Context, mentions []knowledge.Mention) error
}

type Service struct {
	store  ChunkWriter
	graph  MentionSyncer
	logger *log.Logger
}

func NewService(store ChunkWriter, graph MentionSyncer, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}

	return &Service{
		store:  store,
		graph:  graph,
		logger: logger,
	}
}

// IngestDocuments chunks the documents and writes them to the index store,
// then records code-file mentions in the knowledge graph. The returned count
// is the number of documents ingested. A graph failure is logged, not
// returned: the index write is the part that matters.
func (s *Service) IngestDocuments(ctx context.Context, docs []Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	chunks := SplitDocuments(docs)
	if len(chunks) == 0 {
		return 0, nil
	}

	if err := s.store.Upsert(ctx, chunks); err != nil {
		return 0, fmt.Errorf("upsert chunks: %w", err)
	}

	if s.graph != nil {
		if err := s.graph.SyncMentions(ctx, collectMentions(docs)); err != nil {
			s.logger.Printf("mention graph sync failed: %v", err)
		}
	}

	s.logger.Printf("ingested %d documents (%d chunks)", len(docs), len(chunks))
	return len(docs), nil
}

func collectMentions(docs []Document) []knowledge.Mention {
	mentions := make([]knowledge.Mention, 0, len(docs))
	for _, doc := range docs {
		paths := knowledge.ExtractCodePaths(doc.Content)
		if len(paths) == 0 {
			continue
		}
		mentions = append(mentions, knowledge.Mention{
			OriginID: doc.Meta.OriginID,
			Source:   doc.Meta.Source,
			Paths:    paths,
		})
	}
	return mentions
}
