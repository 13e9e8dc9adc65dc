package models

import (
	"time"
)

type FinalStatus string

const (
	StatusLead          FinalStatus = "lead"
	StatusNotInterested FinalStatus = "not_interested"
	StatusNoAnswer      FinalStatus = "no_answer"
	StatusBusy          FinalStatus = "busy"
	StatusFailed        FinalStatus = "failed"
	StatusCompleted     FinalStatus = "completed"
)

// IsRetryable reports whether a call ending in this status may be scheduled
// again. Only transient outcomes qualify; refusals are final.
func (s FinalStatus) IsRetryable() bool {
	return s == StatusNoAnswer || s == StatusBusy
}

type TurnRole string

const (
	RoleBot    TurnRole = "bot"
	RoleCaller TurnRole = "caller"
)

// Turn is one utterance in the conversation history, bot or caller.
type Turn struct {
	Role TurnRole `json:"role"`
	Text string   `json:"text"`
	AtMs int64    `json:"at_ms"`
}

// CallRecord is the persisted row for one call attempt. Each row is owned by
// exactly one call context; it is never mutated from two goroutines.
type CallRecord struct {
	ID            string      `json:"id"`
	CampaignID    string      `json:"campaign_id"`
	ContactID     string      `json:"contact_id"`
	CallID        string      `json:"call_id"` // softswitch channel UUID
	Phase         Phase       `json:"phase"`
	FinalStatus   FinalStatus `json:"final_status,omitempty"`
	DurationS     float64     `json:"duration_s"`
	Qualification float64     `json:"qualification_score"`
	RecordingPath string      `json:"recording_path,omitempty"`
	AttemptsLeft  int         `json:"attempts_left"`
	NotBefore     *time.Time  `json:"not_before,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	FinalizedAt   *time.Time  `json:"finalized_at,omitempty"`
}

func NewCallRecord(id, campaignID, contactID, callID string) *CallRecord {
	return &CallRecord{
		ID:         id,
		CampaignID: campaignID,
		ContactID:  contactID,
		CallID:     callID,
		Phase:      PhaseDialing,
		CreatedAt:  time.Now(),
	}
}

func (r *CallRecord) IsFinalized() bool {
	return r.FinalizedAt != nil
}

type CallEventType string

const (
	EventPhaseChange      CallEventType = "phase_change"
	EventBotPrompt        CallEventType = "bot_prompt"
	EventCallerUtterance  CallEventType = "caller_utterance"
	EventIntentDetected   CallEventType = "intent_detected"
	EventObjectionMatched CallEventType = "objection_matched"
	EventBargeIn          CallEventType = "barge_in"
	EventAMDResult        CallEventType = "amd_result"
	EventActionExecuted   CallEventType = "action_executed"
)

// CallEvent is an append-only lifecycle entry. Replaying the events of a call
// reconstructs its conversation history and qualification score.
type CallEvent struct {
	ID           string        `json:"id"`
	CallRecordID string        `json:"call_record_id"`
	Type         CallEventType `json:"type"`
	Payload      []byte        `json:"payload"` // JSON
	CreatedAt    time.Time     `json:"created_at"`
}
