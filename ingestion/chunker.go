package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 100
)

// chunkSeparators orders split boundaries from coarse to fine. The empty
// string is the hard character cut of last resort.
var chunkSeparators = []string{"\n\n", "\n", " ", ""}

// Chunk is a bounded window of a document's content. Its ID is a hash of the
// chunk text, which doubles as the dedup key in the index store.
type Chunk struct {
	ID   string
	Text string
	Meta Metadata
}

// ChunkID returns the deterministic content hash used as the chunk's storage
// key. Identical text always maps to the same ID.
func ChunkID(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// SplitDocuments splits each document into chunks of at most the default
// size with the default overlap, preserving the parent metadata on every
// chunk. Empty input yields empty output.
func SplitDocuments(docs []Document) []Chunk {
	chunks := make([]Chunk, 0, len(docs))
	for _, doc := range docs {
		for _, text := range SplitText(doc.Content, defaultChunkSize, defaultChunkOverlap) {
			chunks = append(chunks, Chunk{
				ID:   ChunkID(text),
				Text: text,
				Meta: doc.Meta,
			})
		}
	}
	return chunks
}

// SplitText splits text into windows of at most size characters with
// bounded overlap. It prefers breaking on paragraph, then line, then word
// boundaries, and only falls back to hard character cuts when a single
// unbroken run exceeds the window.
func SplitText(text string, size, overlap int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return splitRecursive(text, chunkSeparators, size, overlap)
}

func splitRecursive(text string, separators []string, size, overlap int) []string {
	if len(text) <= size {
		return []string{text}
	}

	sep := ""
	rest := separators
	for i, s := range separators {
		if s == "" || strings.Contains(text, s) {
			sep = s
			rest = separators[i+1:]
			break
		}
	}

	if sep == "" {
		return hardSplit(text, size, overlap)
	}

	parts := strings.Split(text, sep)
	splits := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		if len(part) > size {
			splits = append(splits, splitRecursive(part, rest, size, overlap)...)
			continue
		}
		splits = append(splits, part)
	}

	return mergeSplits(splits, sep, size, overlap)
}

// mergeSplits packs pieces back into windows of at most size characters.
// When a window closes, pieces are retained from its tail up to the overlap
// length, so no semantic unit is orphaned at a boundary.
func mergeSplits(splits []string, sep string, size, overlap int) []string {
	var chunks []string
	var current []string
	currentLen := 0

	joinedLen := func(extra string) int {
		l := currentLen + len(extra)
		if len(current) > 0 {
			l += len(sep)
		}
		return l
	}

	for _, split := range splits {
		if len(current) > 0 && joinedLen(split) > size {
			chunks = append(chunks, strings.Join(current, sep))

			for len(current) > 0 && (currentLen > overlap || joinedLen(split) > size) {
				currentLen -= len(current[0])
				if len(current) > 1 {
					currentLen -= len(sep)
				}
				current = current[1:]
			}
		}

		current = append(current, split)
		currentLen += len(split)
		if len(current) > 1 {
			currentLen += len(sep)
		}
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, sep))
	}

	return chunks
}

func hardSplit(text string, size, overlap int) []string {
	step := size - overlap
	if step <= 0 {
		step = size
	}

	var chunks []string
	for start := 0; start < len(text); start += step {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
		if end == len(text) {
			break
		}
	}
	return chunks
}
