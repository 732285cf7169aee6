package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/fabfab/contextsync/index"
	"github.com/fabfab/contextsync/llm"
)

// UnavailableMessage is returned by Explain when the retrieval backend never
// came up. It is a fixed literal, not an error: degraded availability must
// not cascade into the caller.
const UnavailableMessage = "### Error\nContext Engine is not initialized. Please check server logs."

const explainSystemPrompt = `You are ContextSync, an assistant that bridges the gap between code and the team communication behind it (Slack threads and Jira tickets).

Before answering, analyze the provided CONTEXT against the CODE SNIPPET:
1. Analyze Intent: what is the code trying to do?
2. Verify Match: does the Slack thread or Jira ticket explicitly mention this feature, variable, or bug?
3. Filter Noise: ignore context that is about a different part of the system, even if keywords match.

Answer in markdown with exactly these sections:

## Context Analysis
Relevance: [High/Medium/Low] - one sentence explanation.

## Intent & Backstory
Explain why this code exists based on the filtered context.

### Decision Trail
- [Source: Date/Author]: key insight directly related to this code.

### References
- [Link/ID] - [Title]

If NO relevant context is found, state: "No direct Slack/Jira context found for this logic." and provide a technical explanation only.`

// Explain turns a code snippet plus retrieved context into a narrative
// markdown explanation of why the code exists.
func (s *Service) Explain(ctx context.Context, snippet, filePath, lineNumbers string) (string, error) {
	if s.store == nil || !s.store.Available() || s.llm == nil {
		return UnavailableMessage, nil
	}

	hits := s.Retrieve(ctx, AugmentQuery(snippet), defaultRetrievalK)
	contextStr := formatContext(hits)

	userPrompt := fmt.Sprintf("Context:\n%s\n\nCode (%s:%s):\n```\n%s\n```",
		contextStr, filePath, lineNumbers, snippet)

	answer, err := s.llm.Generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: explainSystemPrompt},
		{Role: llm.RoleUser, Content: userPrompt},
	})
	if err != nil {
		return "", fmt.Errorf("generate explanation: %w", err)
	}

	return answer, nil
}

// formatContext renders the retrieved chunks with an explicit per-chunk
// provenance header so the model can attribute every insight.
func formatContext(hits []index.Hit) string {
	blocks := make([]string, 0, len(hits))
	for _, hit := range hits {
		source := hit.Source
		if source == "" {
			source = "unknown"
		}
		blocks = append(blocks, fmt.Sprintf("--- SOURCE: %s ---\n%s", source, hit.Content))
	}
	return strings.Join(blocks, "\n\n")
}
