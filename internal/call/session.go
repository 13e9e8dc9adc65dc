package call

import (
	"sync"
	"time"

	"github.com/vocira/vocira/internal/domain/models"
)

// Session is the mutable state of one active call. The controller goroutine
// owns it; the mutex exists for the hangup flag contract and for the admin
// surface reading snapshots of live calls.
type Session struct {
	CallID     string
	RowID      string
	CampaignID string
	ContactID  string

	mu                  sync.Mutex
	phase               models.Phase
	stepID              string
	vars                map[string]string
	history             []models.Turn
	qualification       float64
	objectionTurns      int
	consecutiveSilences int
	robotHangup         bool
	intendedStatus      models.FinalStatus
	forced              models.FinalStatus
	finalized           bool
	recordingPath       string
	turnSeq             int
	startedAt           time.Time
	answeredAt          time.Time
}

func newSession(callID, rowID, campaignID, contactID string, vars map[string]string) *Session {
	return &Session{
		CallID:     callID,
		RowID:      rowID,
		CampaignID: campaignID,
		ContactID:  contactID,
		vars:       vars,
		phase:      models.PhaseDialing,
		startedAt:  time.Now(),
	}
}

func (s *Session) Phase() models.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// transition moves the session to the next phase, enforcing the lifecycle
// diagram. The Playing/Waiting/Processing cycle may repeat; everything else
// only moves forward.
func (s *Session) transition(to models.Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := models.ValidatePhaseTransition(s.phase, to); err != nil {
		return err
	}
	s.phase = to
	return nil
}

// markRobotHangup records that we are about to hang up and with which
// status. The first writer wins: the returned status is the one any later
// hangup event must honour. Callers issue Kill only after this returns.
func (s *Session) markRobotHangup(status models.FinalStatus) models.FinalStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.robotHangup {
		return s.intendedStatus
	}
	s.robotHangup = true
	s.intendedStatus = status
	return status
}

// robotStatus reports whether the hangup was ours and, if so, the status
// chosen before Kill was issued.
func (s *Session) robotStatus() (models.FinalStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intendedStatus, s.robotHangup
}

// forceStatus pins the final status ahead of the terminal step, overriding
// whatever result that step declares. Used by the silence override.
func (s *Session) forceStatus(status models.FinalStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forced == "" {
		s.forced = status
	}
}

func (s *Session) forcedStatus() (models.FinalStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forced, s.forced != ""
}

// markFinalized flips the once-only finalisation latch. Only the caller
// that gets true may invoke FinalizeCall.
func (s *Session) markFinalized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return false
	}
	s.finalized = true
	return true
}

func (s *Session) markAnswered() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answeredAt = time.Now()
}

// answeredDuration is the talk time in seconds, zero for calls that never
// connected.
func (s *Session) answeredDuration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.answeredAt.IsZero() {
		return 0
	}
	return time.Since(s.answeredAt).Seconds()
}

func (s *Session) answered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.answeredAt.IsZero()
}

func (s *Session) sinceAnswerMs() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.answeredAt.IsZero() {
		return 0
	}
	return time.Since(s.answeredAt).Milliseconds()
}

func (s *Session) setStep(stepID string, objectionTurns int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stepID = stepID
	s.objectionTurns = objectionTurns
}

func (s *Session) step() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stepID
}

func (s *Session) objectionTurnsLeft() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objectionTurns
}

func (s *Session) spendObjectionTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objectionTurns > 0 {
		s.objectionTurns--
	}
}

// addTurn appends one utterance to the conversation history, stamped
// relative to answer time.
func (s *Session) addTurn(role models.TurnRole, text string) models.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	atMs := int64(0)
	if !s.answeredAt.IsZero() {
		atMs = time.Since(s.answeredAt).Milliseconds()
	}
	turn := models.Turn{Role: role, Text: text, AtMs: atMs}
	s.history = append(s.history, turn)
	return turn
}

func (s *Session) historyCopy() []models.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Turn, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) addQualification(delta float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.qualification += delta
}

func (s *Session) Qualification() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.qualification
}

// noteSilence increments the consecutive-silences counter and returns the
// new count. Any successful transcription resets it.
func (s *Session) noteSilence() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveSilences++
	return s.consecutiveSilences
}

func (s *Session) resetSilences() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveSilences = 0
}

func (s *Session) silences() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consecutiveSilences
}

func (s *Session) setRecording(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordingPath = path
}

func (s *Session) recording() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordingPath
}

func (s *Session) nextTurnSeq() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turnSeq++
	return s.turnSeq
}

func (s *Session) variables() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vars
}

// SessionInfo is the read-only view of a live call exposed by the admin
// surface.
type SessionInfo struct {
	CallID        string       `json:"call_id"`
	CampaignID    string       `json:"campaign_id"`
	ContactID     string       `json:"contact_id"`
	Phase         models.Phase `json:"phase"`
	StepID        string       `json:"step_id,omitempty"`
	Qualification float64      `json:"qualification_score"`
	StartedAt     time.Time    `json:"started_at"`
}

func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		CallID:        s.CallID,
		CampaignID:    s.CampaignID,
		ContactID:     s.ContactID,
		Phase:         s.phase,
		StepID:        s.stepID,
		Qualification: s.qualification,
		StartedAt:     s.startedAt,
	}
}
