package sources

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func slackTestClient(t *testing.T, handler http.HandlerFunc) *SlackClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := NewSlackClient("xoxb-test", testLogger())
	c.SetBaseURL(server.URL)
	return c
}

func TestFetchChannelHistory(t *testing.T) {
	c := slackTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/conversations.history" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer xoxb-test" {
			t.Errorf("missing bearer token, got %q", got)
		}
		if got := r.URL.Query().Get("channel"); got != "C123" {
			t.Errorf("unexpected channel %q", got)
		}
		w.Write([]byte(`{"ok": true, "messages": [
			{"type": "message", "user": "U1", "text": "deploying now", "ts": "1700.1"},
			{"type": "message", "user": "U2", "text": "", "ts": "1700.2"},
			{"type": "message", "user": "U3", "text": "done", "ts": "1700.3", "thread_ts": "1700.1"}
		]}`))
	})

	msgs := c.FetchChannelHistory(context.Background(), "C123", 10)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].User != "U1" || msgs[0].Text != "deploying now" || msgs[0].Timestamp != "1700.1" {
		t.Errorf("unexpected first message: %+v", msgs[0])
	}
	if msgs[2].ThreadTS != "1700.1" {
		t.Errorf("thread timestamp lost: %+v", msgs[2])
	}
}

func TestFetchChannelHistoryAPIError(t *testing.T) {
	c := slackTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok": false, "error": "channel_not_found"}`))
	})

	if msgs := c.FetchChannelHistory(context.Background(), "CBAD", 10); msgs != nil {
		t.Fatalf("expected nil on API error, got %v", msgs)
	}
}

func TestFetchChannelHistoryMalformedResponse(t *testing.T) {
	c := slackTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway timeout</html>`))
	})

	if msgs := c.FetchChannelHistory(context.Background(), "C1", 10); msgs != nil {
		t.Fatalf("expected nil on malformed response, got %v", msgs)
	}
}

func TestGetThread(t *testing.T) {
	c := slackTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/conversations.replies" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("ts"); got != "1700.1" {
			t.Errorf("unexpected thread ts %q", got)
		}
		w.Write([]byte(`{"ok": true, "messages": [
			{"user": "U1", "text": "root", "ts": "1700.1"},
			{"user": "U2", "text": "reply", "ts": "1700.5", "thread_ts": "1700.1"}
		]}`))
	})

	msgs := c.GetThread(context.Background(), "C1", "1700.1")
	if len(msgs) != 2 || msgs[1].Text != "reply" {
		t.Fatalf("unexpected thread: %+v", msgs)
	}
}

func TestListChannels(t *testing.T) {
	c := slackTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/conversations.list" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"ok": true, "channels": [
			{"id": "C1", "name": "engineering"},
			{"id": "C2", "name": "incidents"}
		]}`))
	})

	channels := c.ListChannels(context.Background(), 50)
	if len(channels) != 2 {
		t.Fatalf("expected 2 channels, got %d", len(channels))
	}
	if channels[1].ID != "C2" || channels[1].Name != "incidents" {
		t.Errorf("unexpected channel: %+v", channels[1])
	}
}
