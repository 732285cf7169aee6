package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultSlackAPIURL = "https://slack.com/api"

type SlackClient struct {
	token   string
	baseURL string
	client  *http.Client
	logger  *log.Logger
}

func NewSlackClient(token string, logger *log.Logger) *SlackClient {
	if logger == nil {
		logger = log.Default()
	}

	return &SlackClient{
		token:   token,
		baseURL: defaultSlackAPIURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// SetBaseURL overrides the Slack API endpoint. Used by tests.
func (c *SlackClient) SetBaseURL(u string) {
	c.baseURL = u
}

type slackMessage struct {
	Type     string `json:"type"`
	User     string `json:"user"`
	Text     string `json:"text"`
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts"`
}

type slackChannel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type slackResponse struct {
	OK       bool           `json:"ok"`
	Error    string         `json:"error"`
	Messages []slackMessage `json:"messages"`
	Channels []slackChannel `json:"channels"`
}

// FetchChannelHistory returns the most recent messages from a channel.
func (c *SlackClient) FetchChannelHistory(ctx context.Context, channelID string, limit int) []ChatMessage {
	params := url.Values{}
	params.Set("channel", channelID)
	params.Set("limit", strconv.Itoa(limit))

	resp, err := c.call(ctx, "conversations.history", params)
	if err != nil {
		c.logger.Printf("slack history fetch failed: %v", err)
		return nil
	}
	return toChatMessages(resp.Messages)
}

// GetThread returns the replies of a thread identified by its root timestamp.
func (c *SlackClient) GetThread(ctx context.Context, channelID, threadTS string) []ChatMessage {
	params := url.Values{}
	params.Set("channel", channelID)
	params.Set("ts", threadTS)
	params.Set("limit", "5")

	resp, err := c.call(ctx, "conversations.replies", params)
	if err != nil {
		c.logger.Printf("slack thread fetch failed: %v", err)
		return nil
	}
	return toChatMessages(resp.Messages)
}

// ListChannels returns public channels, mainly to help operators find IDs.
func (c *SlackClient) ListChannels(ctx context.Context, limit int) []Channel {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))

	resp, err := c.call(ctx, "conversations.list", params)
	if err != nil {
		c.logger.Printf("slack channel list failed: %v", err)
		return nil
	}

	channels := make([]Channel, 0, len(resp.Channels))
	for _, ch := range resp.Channels {
		channels = append(channels, Channel{ID: ch.ID, Name: ch.Name})
	}
	return channels
}

func (c *SlackClient) call(ctx context.Context, method string, params url.Values) (*slackResponse, error) {
	endpoint := fmt.Sprintf("%s/%s?%s", c.baseURL, method, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	var parsed slackResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}
	if !parsed.OK {
		return nil, fmt.Errorf("%s: slack error: %s", method, parsed.Error)
	}

	return &parsed, nil
}

func toChatMessages(raw []slackMessage) []ChatMessage {
	messages := make([]ChatMessage, 0, len(raw))
	for _, m := range raw {
		messages = append(messages, ChatMessage{
			User:      m.User,
			Text:      m.Text,
			Timestamp: m.TS,
			ThreadTS:  m.ThreadTS,
		})
	}
	return messages
}

var _ ChatSource = (*SlackClient)(nil)
