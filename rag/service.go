// Package rag assembles the context window for a code snippet: it augments
// the query, retrieves the nearest chunks from the index store, summarizes
// each hit, and builds the structured context objects handed to callers.
package rag

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fabfab/contextsync/index"
	"github.com/fabfab/contextsync/llm"
)

const (
	defaultRetrievalK     = 5
	defaultSummaryTimeout = 10 * time.Second
)

// Searcher is the slice of the index store this service depends on.
type Searcher interface {
	Available() bool
	Search(ctx context.Context, query string, k int) ([]index.Hit, error)
}

// RelatedFileFinder maps origin IDs to the code files they mention.
type RelatedFileFinder interface {
	RelatedFiles(ctx context.Context, originIDs []string) (map[string][]string, error)
}

type Service struct {
	store          Searcher
	llm            llm.Client
	graph          RelatedFileFinder
	logger         *log.Logger
	summaryTimeout time.Duration
}

func NewService(store Searcher, llmClient llm.Client, graph RelatedFileFinder, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}

	return &Service{
		store:          store,
		llm:            llmClient,
		graph:          graph,
		logger:         logger,
		summaryTimeout: defaultSummaryTimeout,
	}
}

// Retrieve runs the similarity search. Transient search failures degrade to
// an empty result: retrieval never hard-fails a request.
func (s *Service) Retrieve(ctx context.Context, query string, k int) []index.Hit {
	if s.store == nil {
		return nil
	}

	hits, err := s.store.Search(ctx, query, k)
	if err != nil {
		s.logger.Printf("vector search failed: %v", err)
		return nil
	}
	return hits
}

// GetContextObjects augments the snippet into a search query, retrieves the
// top chunks, summarizes each one, and returns one context object per hit in
// retrieval order. An empty index yields an empty slice.
func (s *Service) GetContextObjects(ctx context.Context, snippet string) []ContextObject {
	hits := s.Retrieve(ctx, AugmentQuery(snippet), defaultRetrievalK)
	if len(hits) == 0 {
		return []ContextObject{}
	}

	summaries := s.summarizeAll(ctx, hits)
	related := s.relatedFiles(ctx, hits)

	objects := make([]ContextObject, 0, len(hits))
	for i, hit := range hits {
		objects = append(objects, ContextObject{
			Source:           hit.Source,
			TitleOrUser:      titleOrUser(hit),
			URL:              hit.URL,
			ContentSummary:   summaries[i],
			RelevanceScore:   hit.Score,
			RelatedCodeFiles: relatedOrEmpty(related, hit.OriginID),
		})
	}
	return objects
}

// summarizeAll fans the per-hit summarization calls out concurrently. Each
// call is independent and indexed, so results always zip back onto their
// originating hit regardless of completion order. A failed or timed-out call
// degrades that one entry to the raw chunk content without disturbing its
// siblings.
func (s *Service) summarizeAll(ctx context.Context, hits []index.Hit) []string {
	summaries := make([]string, len(hits))

	var g errgroup.Group
	for i, hit := range hits {
		i, hit := i, hit
		g.Go(func() error {
			summaries[i] = s.summarize(ctx, hit.Content)
			return nil
		})
	}
	_ = g.Wait()

	return summaries
}

func (s *Service) summarize(ctx context.Context, content string) string {
	if s.llm == nil {
		return content
	}

	callCtx, cancel := context.WithTimeout(ctx, s.summaryTimeout)
	defer cancel()

	summary, err := s.llm.Generate(callCtx, []llm.Message{
		{Role: llm.RoleUser, Content: "Summarize this context in one concise sentence for a developer:\n\n" + content},
	})
	if err != nil {
		s.logger.Printf("summarization failed, falling back to raw content: %v", err)
		return content
	}

	return "**Summary**: " + summary + "\n\n**Raw Source**:\n" + content
}

func (s *Service) relatedFiles(ctx context.Context, hits []index.Hit) map[string][]string {
	if s.graph == nil {
		return nil
	}

	originIDs := make([]string, 0, len(hits))
	seen := make(map[string]struct{}, len(hits))
	for _, hit := range hits {
		if hit.OriginID == "" {
			continue
		}
		if _, ok := seen[hit.OriginID]; ok {
			continue
		}
		seen[hit.OriginID] = struct{}{}
		originIDs = append(originIDs, hit.OriginID)
	}

	related, err := s.graph.RelatedFiles(ctx, originIDs)
	if err != nil {
		s.logger.Printf("related files lookup failed: %v", err)
		return nil
	}
	return related
}

// titleOrUser picks the first available attribution: the chat author or
// ticket title, then the origin identifier, then a literal fallback.
func titleOrUser(hit index.Hit) string {
	if hit.AuthorOrTitle != "" {
		return hit.AuthorOrTitle
	}
	if hit.OriginID != "" {
		return hit.OriginID
	}
	return "Unknown"
}

func relatedOrEmpty(related map[string][]string, originID string) []string {
	if paths, ok := related[originID]; ok && len(paths) > 0 {
		return paths
	}
	return []string{}
}
