package rag

// ContextObject is the structured, attributable context record returned per
// retrieved chunk. Constructed per query, never persisted.
type ContextObject struct {
	Source           string   `json:"source"`
	TitleOrUser      string   `json:"title_or_user"`
	URL              string   `json:"url,omitempty"`
	ContentSummary   string   `json:"content_summary"`
	RelevanceScore   float64  `json:"relevance_score"`
	RelatedCodeFiles []string `json:"related_code_files"`
}
