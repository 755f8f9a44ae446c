package discord

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(baseURL string) *Client {
	return NewClient("test-token", ClientOptions{
		BaseURL:   baseURL,
		BaseDelay: time.Millisecond,
		MaxDelay:  5 * time.Millisecond,
	})
}

func TestCreateMessageSendsAuthAndBody(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if err := client.CreateMessage(context.Background(), "100", "hello"); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if gotAuth != "Bot test-token" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotPath != "/channels/100/messages" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotBody["content"] != "hello" {
		t.Fatalf("body = %v", gotBody)
	}
}

func TestRetriesRateLimitThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0.001")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"id":"9","username":"scribe","bot":true}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	user, err := client.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("CurrentUser after rate limit: %v", err)
	}
	if user.ID != "9" || !user.Bot {
		t.Fatalf("unexpected user %+v", user)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestRetriesServerErrorsUpToLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.CurrentUser(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected a 502 APIError, got %v", err)
	}
	// Initial attempt plus three retries.
	if calls.Load() != 4 {
		t.Fatalf("expected 4 calls, got %d", calls.Load())
	}
}

func TestAPIErrorCarriesCodeAndMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code":50001,"message":"Missing Access"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.CreateMessage(context.Background(), "100", "hello")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected an APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusForbidden || apiErr.Code != 50001 || apiErr.Message != "Missing Access" {
		t.Fatalf("unexpected APIError %+v", apiErr)
	}
}

func TestChannelMessagesPaginationQuery(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`[{"id":"5","channel_id":"100","author":{"id":"u1","username":"alice"},"content":"hi","timestamp":"2026-01-02T15:04:05.123Z"}]`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	messages, err := client.ChannelMessages(context.Background(), "100", "6", 50)
	if err != nil {
		t.Fatalf("ChannelMessages: %v", err)
	}
	if gotQuery != "limit=50&before=6" {
		t.Fatalf("query = %q", gotQuery)
	}
	if len(messages) != 1 || messages[0].ID != "5" || messages[0].Author.Username != "alice" {
		t.Fatalf("unexpected messages %+v", messages)
	}
	want := time.Date(2026, 1, 2, 15, 4, 5, 123_000_000, time.UTC)
	if !messages[0].Timestamp.Equal(want) {
		t.Fatalf("timestamp = %v, want %v", messages[0].Timestamp, want)
	}
}

func TestParseRetryAfter(t *testing.T) {
	cases := []struct {
		header string
		want   time.Duration
	}{
		{"", 0},
		{"garbage", 0},
		{"-1", 0},
		{"2", 2 * time.Second},
		{"0.25", 250 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := parseRetryAfter(tc.header); got != tc.want {
			t.Fatalf("parseRetryAfter(%q) = %v, want %v", tc.header, got, tc.want)
		}
	}
}
