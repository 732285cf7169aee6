// Package sources holds the clients for the systems the knowledge base is
// built from: team chat (Slack) and the issue tracker (Jira). Both clients
// share the same failure contract: a transient API failure is logged and
// surfaces as an empty result, never as an error. The sync loop treats empty
// as "nothing new".
package sources

import "context"

// ChatMessage is a raw chat record as returned by the chat API. Immutable
// once fetched.
type ChatMessage struct {
	User      string
	Text      string
	Timestamp string
	ThreadTS  string
}

// Channel identifies a chat channel.
type Channel struct {
	ID   string
	Name string
}

// Ticket is a raw issue-tracker record. Immutable once fetched.
type Ticket struct {
	Key         string
	Summary     string
	Description string
	Status      string
	Creator     string
}

// ChatSource is the contract the sync loop and ingestion depend on.
type ChatSource interface {
	FetchChannelHistory(ctx context.Context, channelID string, limit int) []ChatMessage
	GetThread(ctx context.Context, channelID, threadTS string) []ChatMessage
	ListChannels(ctx context.Context, limit int) []Channel
}

// TicketSource is the issue-tracker contract. An unconfigured source reports
// itself unavailable and always returns empty.
type TicketSource interface {
	Available() bool
	SearchTickets(ctx context.Context, jql string, limit int) []Ticket
	GetTicket(ctx context.Context, issueKey string) *Ticket
}
