package ingestion

import (
	"strings"
	"testing"
)

func TestChunkIDDeterministic(t *testing.T) {
	a := ChunkID("the same text")
	b := ChunkID("the same text")
	if a != b {
		t.Fatalf("identical text produced different ids: %s vs %s", a, b)
	}
	if a == ChunkID("different text") {
		t.Fatal("different text produced the same id")
	}
	if len(a) != 64 {
		t.Fatalf("expected a hex sha256 digest, got %q", a)
	}
}

func TestSplitTextShortInput(t *testing.T) {
	chunks := SplitText("fits in one window", 100, 10)
	if len(chunks) != 1 || chunks[0] != "fits in one window" {
		t.Fatalf("expected the input back unchanged, got %v", chunks)
	}
}

func TestSplitTextEmptyInput(t *testing.T) {
	if chunks := SplitText("   \n  ", 100, 10); chunks != nil {
		t.Fatalf("expected nil for whitespace input, got %v", chunks)
	}
}

func TestSplitTextRespectsSizeBound(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 80; i++ {
		sb.WriteString("paragraph about an incident and what we decided to do about it.\n\n")
	}

	chunks := SplitText(sb.String(), 1000, 100)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 1000 {
			t.Errorf("chunk %d exceeds size bound: %d chars", i, len(c))
		}
	}
}

func TestSplitTextPrefersWordBoundaries(t *testing.T) {
	words := []string{"a0", "a1", "a2", "a3", "a4", "a5", "a6", "a7", "a8", "a9"}
	text := strings.Join(words, " ")

	chunks := SplitText(text, 10, 4)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %v", chunks)
	}
	for i, c := range chunks {
		if len(c) > 10 {
			t.Errorf("chunk %d exceeds size bound: %q", i, c)
		}
		for _, w := range strings.Split(c, " ") {
			if !strings.HasPrefix(w, "a") || len(w) != 2 {
				t.Errorf("chunk %d broke a word: %q", i, c)
			}
		}
	}
}

func TestSplitTextOverlapCarriesTail(t *testing.T) {
	words := []string{"a0", "a1", "a2", "a3", "a4", "a5", "a6", "a7", "a8", "a9"}
	text := strings.Join(words, " ")

	chunks := SplitText(text, 10, 4)
	for i := 1; i < len(chunks); i++ {
		prev := strings.Split(chunks[i-1], " ")
		first := strings.Split(chunks[i], " ")[0]
		if prev[len(prev)-1] != first {
			t.Errorf("chunk %d does not start with the tail of chunk %d: %q then %q",
				i, i-1, chunks[i-1], chunks[i])
		}
	}
}

func TestSplitTextHardCutsUnbrokenRuns(t *testing.T) {
	text := strings.Repeat("x", 2500)

	chunks := SplitText(text, 1000, 100)
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks for 2500 unbroken chars, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 1000 {
			t.Errorf("chunk %d exceeds size bound: %d chars", i, len(c))
		}
	}
	var rebuilt strings.Builder
	rebuilt.WriteString(chunks[0])
	for i := 1; i < len(chunks); i++ {
		rebuilt.WriteString(chunks[i][100:])
	}
	if rebuilt.String() != text {
		t.Error("hard-cut chunks with overlap stripped do not reassemble the input")
	}
}

func TestSplitDocumentsInheritsMetadata(t *testing.T) {
	meta := Metadata{Source: SourceJira, OriginID: "PAY-1", AuthorOrTitle: "Fix it", TimestampOrStatus: "Open"}
	docs := []Document{
		{Content: strings.Repeat("line of ticket text\n", 200), Meta: meta},
	}

	chunks := SplitDocuments(docs)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Meta != meta {
			t.Errorf("chunk %d lost its metadata: %+v", i, c.Meta)
		}
		if c.ID != ChunkID(c.Text) {
			t.Errorf("chunk %d id is not the content hash", i)
		}
	}
}

func TestSplitDocumentsEmptyInput(t *testing.T) {
	if chunks := SplitDocuments(nil); len(chunks) != 0 {
		t.Fatalf("expected no chunks for no documents, got %d", len(chunks))
	}
}
