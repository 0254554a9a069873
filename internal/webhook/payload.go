// Package webhook normalizes provider webhook payloads announcing that a
// livestream recording is ready, and verifies their signatures.
package webhook

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Payload is the canonical form of a recording-ready webhook body.
type Payload struct {
	Event     string
	StreamID  string // provider-assigned session id, the dedup key
	Title     string
	MediaURL  string
	StartedAt *time.Time
	EndedAt   *time.Time
}

// rawPayload maps the common field spellings seen across providers.
// Provider-specific extras arrive under the free-form "data" object.
type rawPayload struct {
	Event        string         `json:"event"`
	StreamID     string         `json:"stream_id"`
	Title        string         `json:"title"`
	MediaURL     string         `json:"media_url"`
	RecordingURL string         `json:"recording_url"`
	StartedAt    *time.Time     `json:"started_at"`
	EndedAt      *time.Time     `json:"ended_at"`
	Data         map[string]any `json:"data"`
}

// Ordered alias probes into the nested data object. First non-empty wins.
var (
	dataMediaURLKeys = []string{"recordingUrl", "recording_url", "mediaUrl", "media_url"}
	dataStreamIDKeys = []string{"streamId", "stream_id"}
)

// recordingReadyEvents is the set of event names that authorize processing.
var recordingReadyEvents = map[string]bool{
	"recording.ready":        true,
	"recording_ready":        true,
	"stream.recording.ready": true,
}

// Normalize parses raw webhook bytes into canonical form. Each field is
// resolved independently: top-level spellings first, then the nested data
// object's aliases in order. Returns an error only when the body is not a
// JSON object at all.
func Normalize(body []byte) (*Payload, error) {
	var raw rawPayload
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("invalid webhook body: %w", err)
	}

	p := &Payload{
		Event:     raw.Event,
		StreamID:  raw.StreamID,
		Title:     raw.Title,
		StartedAt: raw.StartedAt,
		EndedAt:   raw.EndedAt,
	}

	p.MediaURL = firstNonEmpty(raw.MediaURL, raw.RecordingURL)
	if p.MediaURL == "" {
		p.MediaURL = dataString(raw.Data, dataMediaURLKeys...)
	}
	if p.StreamID == "" {
		p.StreamID = dataString(raw.Data, dataStreamIDKeys...)
	}
	if p.Title == "" {
		p.Title = dataString(raw.Data, "title")
	}
	if p.Event == "" {
		p.Event = dataString(raw.Data, "event")
	}

	return p, nil
}

// Ready reports whether this payload should start the pipeline. A payload
// without any event field is treated as implicitly ready; one with an event
// outside the recording-ready set is filtered out.
func (p *Payload) Ready() bool {
	if p.Event == "" {
		return true
	}
	return recordingReadyEvents[strings.ToLower(p.Event)]
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// dataString probes the free-form data object for the first key holding a
// non-empty string. Non-string values are ignored.
func dataString(data map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := data[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
