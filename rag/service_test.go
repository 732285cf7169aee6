package rag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fabfab/contextsync/index"
	"github.com/fabfab/contextsync/llm"
)

type stubSearcher struct {
	available bool
	hits      []index.Hit
	err       error
	lastQuery string
	lastK     int
}

func (s *stubSearcher) Available() bool { return s.available }

func (s *stubSearcher) Search(_ context.Context, query string, k int) ([]index.Hit, error) {
	s.lastQuery = query
	s.lastK = k
	return s.hits, s.err
}

// stubLLM answers with a deterministic transform of the last message and can
// delay individual calls to shake out ordering assumptions.
type stubLLM struct {
	delays map[string]time.Duration
	err    error

	mu       sync.Mutex
	messages [][]llm.Message
}

func (c *stubLLM) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	c.mu.Lock()
	c.messages = append(c.messages, messages)
	c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}

	last := messages[len(messages)-1].Content
	for key, d := range c.delays {
		if strings.Contains(last, key) {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	return "summary of " + lastLine(last), nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}

type stubGraph struct {
	related map[string][]string
	err     error
}

func (g *stubGraph) RelatedFiles(_ context.Context, _ []string) (map[string][]string, error) {
	return g.related, g.err
}

var (
	_ Searcher          = (*stubSearcher)(nil)
	_ llm.Client        = (*stubLLM)(nil)
	_ RelatedFileFinder = (*stubGraph)(nil)
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func makeHits(n int) []index.Hit {
	hits := make([]index.Hit, 0, n)
	for i := 0; i < n; i++ {
		hits = append(hits, index.Hit{
			ID:            fmt.Sprintf("hash-%d", i),
			Content:       fmt.Sprintf("chunk-%d", i),
			Source:        "slack",
			OriginID:      fmt.Sprintf("C1:%d", i),
			AuthorOrTitle: fmt.Sprintf("user-%d", i),
			Score:         1.0 / float64(i+1),
		})
	}
	return hits
}

func TestGetContextObjectsEmptyIndex(t *testing.T) {
	store := &stubSearcher{available: true}
	svc := NewService(store, &stubLLM{}, nil, testLogger())

	objects := svc.GetContextObjects(context.Background(), "x := 1")
	if objects == nil {
		t.Fatal("expected an empty slice, not nil")
	}
	if len(objects) != 0 {
		t.Fatalf("expected no objects for an empty index, got %d", len(objects))
	}
	if store.lastK != defaultRetrievalK {
		t.Fatalf("expected k=%d, got %d", defaultRetrievalK, store.lastK)
	}
	if !strings.Contains(store.lastQuery, "Keywords: ") {
		t.Fatalf("expected the augmented query, got %q", store.lastQuery)
	}
}

func TestGetContextObjectsPreservesRetrievalOrder(t *testing.T) {
	hits := makeHits(5)
	store := &stubSearcher{available: true, hits: hits}
	// Earlier hits answer slower, so completion order inverts retrieval
	// order if the zip-back is wrong.
	client := &stubLLM{delays: map[string]time.Duration{
		"chunk-0": 80 * time.Millisecond,
		"chunk-1": 60 * time.Millisecond,
		"chunk-2": 40 * time.Millisecond,
	}}
	svc := NewService(store, client, nil, testLogger())

	objects := svc.GetContextObjects(context.Background(), "snippet")
	if len(objects) != 5 {
		t.Fatalf("expected 5 objects, got %d", len(objects))
	}
	for i, obj := range objects {
		wantRaw := fmt.Sprintf("chunk-%d", i)
		if !strings.Contains(obj.ContentSummary, wantRaw) {
			t.Errorf("object %d paired with the wrong chunk: %q", i, obj.ContentSummary)
		}
		if obj.TitleOrUser != fmt.Sprintf("user-%d", i) {
			t.Errorf("object %d has wrong attribution: %q", i, obj.TitleOrUser)
		}
		if obj.RelevanceScore != hits[i].Score {
			t.Errorf("object %d has wrong score: %f", i, obj.RelevanceScore)
		}
	}
}

func TestGetContextObjectsSummaryFormat(t *testing.T) {
	store := &stubSearcher{available: true, hits: makeHits(1)}
	svc := NewService(store, &stubLLM{}, nil, testLogger())

	objects := svc.GetContextObjects(context.Background(), "snippet")
	if len(objects) != 1 {
		t.Fatalf("expected 1 object, got %d", len(objects))
	}
	got := objects[0].ContentSummary
	if !strings.HasPrefix(got, "**Summary**: ") {
		t.Errorf("summary missing prefix: %q", got)
	}
	if !strings.Contains(got, "**Raw Source**:\nchunk-0") {
		t.Errorf("summary missing raw source block: %q", got)
	}
}

func TestGetContextObjectsSummaryErrorFallsBackToRaw(t *testing.T) {
	store := &stubSearcher{available: true, hits: makeHits(2)}
	svc := NewService(store, &stubLLM{err: errors.New("model overloaded")}, nil, testLogger())

	objects := svc.GetContextObjects(context.Background(), "snippet")
	if len(objects) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(objects))
	}
	for i, obj := range objects {
		if obj.ContentSummary != fmt.Sprintf("chunk-%d", i) {
			t.Errorf("object %d should carry raw content on failure, got %q", i, obj.ContentSummary)
		}
	}
}

func TestGetContextObjectsNilLLMUsesRawContent(t *testing.T) {
	store := &stubSearcher{available: true, hits: makeHits(1)}
	svc := NewService(store, nil, nil, testLogger())

	objects := svc.GetContextObjects(context.Background(), "snippet")
	if len(objects) != 1 || objects[0].ContentSummary != "chunk-0" {
		t.Fatalf("expected raw content without a model, got %+v", objects)
	}
}

func TestGetContextObjectsRelatedFiles(t *testing.T) {
	store := &stubSearcher{available: true, hits: makeHits(2)}
	graph := &stubGraph{related: map[string][]string{
		"C1:0": {"payments/gateway.go"},
	}}
	svc := NewService(store, nil, graph, testLogger())

	objects := svc.GetContextObjects(context.Background(), "snippet")
	if len(objects) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(objects))
	}
	if len(objects[0].RelatedCodeFiles) != 1 || objects[0].RelatedCodeFiles[0] != "payments/gateway.go" {
		t.Errorf("expected related files on the first object, got %v", objects[0].RelatedCodeFiles)
	}
	if objects[1].RelatedCodeFiles == nil || len(objects[1].RelatedCodeFiles) != 0 {
		t.Errorf("expected an empty (non-nil) slice when nothing is related, got %v", objects[1].RelatedCodeFiles)
	}
}

func TestRetrieveSearchErrorDegradesToEmpty(t *testing.T) {
	store := &stubSearcher{available: true, err: errors.New("pg timeout")}
	svc := NewService(store, nil, nil, testLogger())

	if hits := svc.Retrieve(context.Background(), "q", 5); hits != nil {
		t.Fatalf("expected nil on search failure, got %v", hits)
	}
}

func TestTitleOrUserFallbacks(t *testing.T) {
	cases := []struct {
		hit  index.Hit
		want string
	}{
		{index.Hit{AuthorOrTitle: "alice", OriginID: "C1:1"}, "alice"},
		{index.Hit{OriginID: "PAY-7"}, "PAY-7"},
		{index.Hit{}, "Unknown"},
	}
	for _, tc := range cases {
		if got := titleOrUser(tc.hit); got != tc.want {
			t.Errorf("titleOrUser(%+v) = %q, want %q", tc.hit, got, tc.want)
		}
	}
}
