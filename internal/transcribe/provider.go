package transcribe

import "context"

// Provider is the interface for speech-to-text backends.
type Provider interface {
	Transcribe(ctx context.Context, audioPath string, opts TranscribeOpts) (*Response, error)
	Name() string  // "whisper"
	Model() string // model identifier for DB/logs
}

// TranscribeOpts are per-request options. Zero-value fields are omitted from
// the request, preserving compatibility with servers that ignore unknown
// form fields.
type TranscribeOpts struct {
	Temperature float64
	Language    string // ISO-639 hint; empty lets the server detect
	Prompt      string // initial prompt / domain vocabulary
}

// Response is the common transcription result from any provider.
type Response struct {
	Text     string
	Language string  // detected language, may be empty
	Duration float64 // audio duration in seconds, 0 if not reported
}
