package models

import "fmt"

// Phase is the lifecycle state of an active call. Transitions are strictly
// forward except for the Playing/Waiting/Processing step cycle; a call never
// re-enters Dialing or AMD.
type Phase string

const (
	PhaseDialing     Phase = "dialing"
	PhaseAMD         Phase = "amd"
	PhasePlaying     Phase = "playing"
	PhaseWaiting     Phase = "waiting"
	PhaseProcessing  Phase = "processing"
	PhaseTerminating Phase = "terminating"
	PhaseDone        Phase = "done"
)

var phaseRank = map[Phase]int{
	PhaseDialing:     0,
	PhaseAMD:         1,
	PhasePlaying:     2,
	PhaseWaiting:     2,
	PhaseProcessing:  2,
	PhaseTerminating: 3,
	PhaseDone:        4,
}

var stepCycle = map[Phase]map[Phase]bool{
	PhasePlaying:    {PhaseWaiting: true, PhaseTerminating: true},
	PhaseWaiting:    {PhaseProcessing: true, PhaseTerminating: true},
	PhaseProcessing: {PhasePlaying: true, PhaseTerminating: true},
}

// IsValidPhaseTransition reports whether the move from one phase to the
// other is allowed by the call lifecycle diagram.
func IsValidPhaseTransition(from, to Phase) bool {
	fr, ok := phaseRank[from]
	if !ok {
		return false
	}
	tr, ok := phaseRank[to]
	if !ok {
		return false
	}
	if fr == 2 && tr == 2 {
		return stepCycle[from][to]
	}
	// AMD may be skipped straight to Terminating, Playing etc., but no phase
	// ever moves backwards across ranks.
	return tr > fr
}

func ValidatePhaseTransition(from, to Phase) error {
	if !IsValidPhaseTransition(from, to) {
		return fmt.Errorf("invalid phase transition %s -> %s", from, to)
	}
	return nil
}
