package summarize

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestOpenRouterSummarize(t *testing.T) {
	var gotPath, gotAuth, gotReferer, gotTitle string
	var gotReq chatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotReferer = r.Header.Get("HTTP-Referer")
		gotTitle = r.Header.Get("X-Title")
		json.NewDecoder(r.Body).Decode(&gotReq)

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "## Summary\nGreat stream."}},
			},
		})
	}))
	defer srv.Close()

	c := NewOpenRouterClient(srv.URL, "sk-or-test", "google/gemini-2.0-pro", "http://localhost:8080", "stream-scribe", 30*time.Second)
	out, err := c.Summarize(context.Background(), "the transcript text", "Launch Day")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}

	if out != "## Summary\nGreat stream." {
		t.Errorf("summary = %q", out)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("path = %q, want /chat/completions", gotPath)
	}
	if gotAuth != "Bearer sk-or-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReferer != "http://localhost:8080" || gotTitle != "stream-scribe" {
		t.Errorf("attribution headers = %q / %q", gotReferer, gotTitle)
	}
	if gotReq.Model != "google/gemini-2.0-pro" {
		t.Errorf("model = %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(gotReq.Messages))
	}
	if gotReq.Messages[0].Role != "system" || !strings.Contains(gotReq.Messages[0].Content, "Stream title: Launch Day") {
		t.Errorf("system message missing title context: %q", gotReq.Messages[0].Content)
	}
	if !strings.Contains(gotReq.Messages[0].Content, "livestream summarizer") {
		t.Errorf("system message missing summary prompt: %q", gotReq.Messages[0].Content)
	}
	if gotReq.Messages[1].Role != "user" || !strings.Contains(gotReq.Messages[1].Content, "the transcript text") {
		t.Errorf("user message missing transcript: %q", gotReq.Messages[1].Content)
	}
}

func TestOpenRouterNoKey(t *testing.T) {
	c := NewOpenRouterClient("http://localhost:0", "", "m", "", "", time.Second)
	if _, err := c.Summarize(context.Background(), "text", ""); err == nil {
		t.Fatal("Summarize succeeded without API key, want error")
	}
}

func TestOpenRouterUnexpectedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c := NewOpenRouterClient(srv.URL, "k", "m", "", "", time.Second)
	if _, err := c.Summarize(context.Background(), "text", ""); err == nil {
		t.Fatal("Summarize succeeded on empty choices, want error")
	}
}

func TestOpenRouterAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"insufficient credits"}`, http.StatusPaymentRequired)
	}))
	defer srv.Close()

	c := NewOpenRouterClient(srv.URL, "k", "m", "", "", time.Second)
	if _, err := c.Summarize(context.Background(), "text", ""); err == nil {
		t.Fatal("Summarize succeeded on 402, want error")
	}
}

func TestOpenRouterTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server watches for client disconnect and
		// cancels r.Context(); otherwise srv.Close deadlocks on this handler.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewOpenRouterClient(srv.URL, "k", "m", "", "", time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := c.Summarize(ctx, "text", ""); err == nil {
		t.Fatal("Summarize succeeded past deadline, want error")
	}
}
