// Package speech presents one interface over the two speech recognition
// backends: a batch transcriber for finished audio files and a streaming
// session fed by the softswitch's media fork.
package speech

import (
	"context"
)

// TranscribeOptions tune the batch backend. AMD uses a wider beam and the
// backend's own VAD to keep short-utterance hallucination down.
type TranscribeOptions struct {
	VADFilter           bool
	BeamSize            int
	NoSpeechThreshold   float64
	ConditionOnPrevText bool
	Language            string
}

// Result is a batch transcription outcome. Empty Text is a successful
// result meaning silence was detected.
type Result struct {
	Text               string
	DurationMs         int64
	LanguageConfidence float64
	LatencyMs          int64
}

type StreamEventKind string

const (
	StreamSpeechStart StreamEventKind = "speech_start"
	StreamSpeechEnd   StreamEventKind = "speech_end"
	StreamPartial     StreamEventKind = "partial"
	StreamFinal       StreamEventKind = "final"
)

// StreamEvent is one event on a streaming session. DurationMs is only set
// on speech_end; Text only on partial and final.
type StreamEvent struct {
	Kind       StreamEventKind
	DurationMs int64
	Text       string
}

// StreamHandle is one live streaming session bound to a call. Events()
// yields a finite sequence terminated when the underlying transport closes.
type StreamHandle interface {
	Events() <-chan StreamEvent
	Close() error
}

// Gateway is the single speech interface the call controller consumes.
type Gateway interface {
	TranscribeFile(ctx context.Context, path string, opts TranscribeOptions) (*Result, error)
	OpenStream(ctx context.Context, callID string) (StreamHandle, error)
	IsAvailable(ctx context.Context) bool
	// StreamEndpoint returns the WebSocket URL the softswitch should fork
	// caller audio to for the given call.
	StreamEndpoint(callID string) string
}
