// Package ingestion normalizes raw chat and ticket records into documents,
// splits them into bounded chunks, and writes them to the index store.
package ingestion

import (
	"fmt"
	"strings"

	"github.com/fabfab/contextsync/sources"
)

const (
	SourceSlack = "slack"
	SourceJira  = "jira"
)

// Metadata carries the provenance of a document. Chunks inherit it
// unmodified from their parent document.
type Metadata struct {
	Source            string
	OriginID          string
	AuthorOrTitle     string
	TimestampOrStatus string
	URL               string
}

// Document is the uniform representation every source record is normalized
// into. Content is a "meta-chunk": provenance is prepended inline so a chunk
// boundary can never sever attribution from the text it belongs to.
type Document struct {
	Content string
	Meta    Metadata
}

// ProcessSlackMessages converts chat records into documents. Records without
// a text body (join events and the like) are dropped silently.
func ProcessSlackMessages(msgs []sources.ChatMessage, channelID string) []Document {
	docs := make([]Document, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Text == "" {
			continue
		}

		content := fmt.Sprintf("Date: %s | Author: %s | Channel: %s\nMessage: %s",
			msg.Timestamp, msg.User, channelID, msg.Text)

		origin := channelID
		if msg.Timestamp != "" {
			origin = channelID + ":" + msg.Timestamp
		}

		docs = append(docs, Document{
			Content: content,
			Meta: Metadata{
				Source:            SourceSlack,
				OriginID:          origin,
				AuthorOrTitle:     msg.User,
				TimestampOrStatus: msg.Timestamp,
				URL:               slackMessageURL(channelID, msg.Timestamp),
			},
		})
	}
	return docs
}

// ProcessJiraTickets converts ticket records into documents. Tickets are
// always included; a missing description gets a literal placeholder so the
// meta-chunk never ends in an empty field.
func ProcessJiraTickets(tickets []sources.Ticket) []Document {
	docs := make([]Document, 0, len(tickets))
	for _, ticket := range tickets {
		description := ticket.Description
		if description == "" {
			description = "No description"
		}

		content := fmt.Sprintf("Ticket: %s | Title: %s\nDescription: %s",
			ticket.Key, ticket.Summary, description)

		docs = append(docs, Document{
			Content: content,
			Meta: Metadata{
				Source:            SourceJira,
				OriginID:          ticket.Key,
				AuthorOrTitle:     ticket.Summary,
				TimestampOrStatus: ticket.Status,
			},
		})
	}
	return docs
}

// slackMessageURL builds the permalink for a message. The path fragment is
// the timestamp with its separators stripped; no timestamp means no URL.
func slackMessageURL(channelID, ts string) string {
	if ts == "" {
		return ""
	}
	return fmt.Sprintf("https://slack.com/archives/%s/p%s", channelID, strings.ReplaceAll(ts, ".", ""))
}
