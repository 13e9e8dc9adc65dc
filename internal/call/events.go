package call

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/vocira/vocira/internal/classify"
	"github.com/vocira/vocira/internal/domain/models"
)

// Event payloads persisted through AppendCallEvent. Together they form an
// append-only log from which the conversation history and the
// qualification score can be rebuilt (see ReplayEvents).

type PhaseChangePayload struct {
	From models.Phase `json:"from"`
	To   models.Phase `json:"to"`
}

type PromptPayload struct {
	StepID string `json:"step_id"`
	Text   string `json:"text,omitempty"`
	Audio  string `json:"audio,omitempty"`
	AtMs   int64  `json:"at_ms"`
}

type UtterancePayload struct {
	StepID  string `json:"step_id"`
	Text    string `json:"text,omitempty"`
	Silence bool   `json:"silence,omitempty"`
	AtMs    int64  `json:"at_ms"`
}

type IntentPayload struct {
	StepID     string          `json:"step_id"`
	Intent     classify.Intent `json:"intent"`
	Confidence float64         `json:"confidence"`
	// QualificationDelta is the weight this intent added, zero for
	// non-determinant steps and negative intents.
	QualificationDelta float64 `json:"qualification_delta"`
}

type ObjectionPayload struct {
	StepID   string  `json:"step_id"`
	Category string  `json:"category"`
	Score    float64 `json:"score"`
}

type BargeInPayload struct {
	StepID   string `json:"step_id"`
	SpeechMs int64  `json:"speech_ms"`
	Text     string `json:"text,omitempty"`
}

type AMDPayload struct {
	Verdict           classify.Verdict `json:"verdict"`
	HumanConfidence   float64          `json:"human_confidence"`
	MachineConfidence float64          `json:"machine_confidence"`
	Text              string           `json:"text,omitempty"`
	LatencyMs         int64            `json:"latency_ms"`
}

type ActionPayload struct {
	StepID string `json:"step_id"`
	Type   string `json:"type"`
	Resume string `json:"resume,omitempty"`
	Error  string `json:"error,omitempty"`
}

// appendEvent persists one lifecycle event. Persistence failures are logged
// and swallowed: the event log degrades, the call does not.
func (c *Controller) appendEvent(ctx context.Context, s *Session, eventType models.CallEventType, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("call: encoding event payload failed",
			"call_id", s.CallID, "type", eventType, "error", err)
		return
	}
	if err := c.store.AppendCallEvent(ctx, s.RowID, eventType, data, time.Now()); err != nil {
		slog.Error("call: appending event failed",
			"call_id", s.CallID, "type", eventType, "error", err)
	}
}
