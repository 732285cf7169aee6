package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const jiraFields = "summary,description,status,creator"

type JiraClient struct {
	baseURL   string
	email     string
	token     string
	available bool
	client    *http.Client
	logger    *log.Logger
}

// NewJiraClient builds a client for the Jira REST API. When any credential is
// missing the client marks itself unavailable: it logs once and every call
// returns empty from then on.
func NewJiraClient(domain, email, token string, logger *log.Logger) *JiraClient {
	if logger == nil {
		logger = log.Default()
	}

	c := &JiraClient{
		email:  email,
		token:  token,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}

	if domain == "" || email == "" || token == "" {
		logger.Printf("jira credentials missing, ticket source unavailable")
		return c
	}

	if !strings.HasPrefix(domain, "http") {
		domain = "https://" + domain
	}
	c.baseURL = strings.TrimRight(domain, "/")
	c.available = true
	return c
}

// SetBaseURL overrides the Jira endpoint and marks the client available.
// Used by tests.
func (c *JiraClient) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
	c.available = true
}

func (c *JiraClient) Available() bool {
	return c.available
}

type jiraStatus struct {
	Name string `json:"name"`
}

type jiraCreator struct {
	DisplayName string `json:"displayName"`
}

type jiraIssueFields struct {
	Summary     string      `json:"summary"`
	Description string      `json:"description"`
	Status      jiraStatus  `json:"status"`
	Creator     jiraCreator `json:"creator"`
}

type jiraIssue struct {
	Key    string          `json:"key"`
	Fields jiraIssueFields `json:"fields"`
}

type jiraSearchResponse struct {
	Issues []jiraIssue `json:"issues"`
}

// SearchTickets runs a JQL search and returns up to limit tickets.
func (c *JiraClient) SearchTickets(ctx context.Context, jql string, limit int) []Ticket {
	if !c.available {
		return nil
	}

	params := url.Values{}
	params.Set("jql", jql)
	params.Set("maxResults", strconv.Itoa(limit))
	params.Set("fields", jiraFields)

	var parsed jiraSearchResponse
	if err := c.get(ctx, "/rest/api/2/search?"+params.Encode(), &parsed); err != nil {
		c.logger.Printf("jira search failed: %v", err)
		return nil
	}

	tickets := make([]Ticket, 0, len(parsed.Issues))
	for _, issue := range parsed.Issues {
		tickets = append(tickets, toTicket(issue))
	}
	return tickets
}

// GetTicket fetches a single issue; nil when absent or on failure.
func (c *JiraClient) GetTicket(ctx context.Context, issueKey string) *Ticket {
	if !c.available {
		return nil
	}

	params := url.Values{}
	params.Set("fields", jiraFields)

	var issue jiraIssue
	if err := c.get(ctx, "/rest/api/2/issue/"+url.PathEscape(issueKey)+"?"+params.Encode(), &issue); err != nil {
		c.logger.Printf("jira issue fetch failed for %s: %v", issueKey, err)
		return nil
	}

	ticket := toTicket(issue)
	return &ticket
}

func (c *JiraClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.email, c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("jira api call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jira api returned status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode jira response: %w", err)
	}
	return nil
}

func toTicket(issue jiraIssue) Ticket {
	return Ticket{
		Key:         issue.Key,
		Summary:     issue.Fields.Summary,
		Description: issue.Fields.Description,
		Status:      issue.Fields.Status.Name,
		Creator:     issue.Fields.Creator.DisplayName,
	}
}

var _ TicketSource = (*JiraClient)(nil)
