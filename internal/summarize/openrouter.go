package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// summaryPrompt is the fixed system prompt for structured livestream summaries.
const summaryPrompt = "You are a world-class livestream summarizer. Given a full transcript, " +
	"produce a verbose, structured summary with: (1) title, (2) agenda/timeline with timestamps " +
	"if present, (3) key moments and decisions, (4) Q&A highlights, (5) action items, (6) notable quotes, " +
	"(7) short abstract (2-3 sentences). Keep sections clearly labeled."

// OpenRouterClient calls an OpenAI-compatible /chat/completions endpoint
// through OpenRouter. Implements the Summarizer interface.
type OpenRouterClient struct {
	baseURL string
	apiKey  string
	model   string
	referer string
	title   string
	client  *http.Client
}

// NewOpenRouterClient creates a new OpenRouter chat client.
func NewOpenRouterClient(baseURL, apiKey, model, referer, title string, timeout time.Duration) *OpenRouterClient {
	return &OpenRouterClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		referer: referer,
		title:   title,
		client:  &http.Client{Timeout: timeout},
	}
}

// Model returns the configured model identifier.
func (c *OpenRouterClient) Model() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Summarize sends the transcript to the chat endpoint and returns the
// generated summary. The stream title, when known, is appended to the system
// prompt for context.
func (c *OpenRouterClient) Summarize(ctx context.Context, transcript, title string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("OPENROUTER_API_KEY not configured")
	}

	system := summaryPrompt
	if title != "" {
		system += "\nStream title: " + title
	}

	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: "Here is the transcript. Provide the detailed summary and include a full transcript section at the end.\n\n" + transcript},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	// Optional but recommended by OpenRouter for app attribution
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		req.Header.Set("X-Title", c.title)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("openrouter request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openrouter API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("unexpected openrouter response: %s", string(respBody))
	}

	return result.Choices[0].Message.Content, nil
}
