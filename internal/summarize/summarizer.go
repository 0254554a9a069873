// Package summarize turns transcripts into structured summaries via an
// LLM gateway.
package summarize

import "context"

// Summarizer is the interface for summary backends.
type Summarizer interface {
	Summarize(ctx context.Context, transcript, title string) (string, error)
	Model() string // model identifier for DB/logs
}
