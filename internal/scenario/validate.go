package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vocira/vocira/internal/classify"
)

// validate aggregates every authoring problem into one error so a broken
// scenario is fixed in one pass, not one load at a time.
func (s *Scenario) validate(promptsDir string) error {
	var errs []string
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if len(s.doc.Steps) == 0 {
		fail("scenario has no steps")
	}
	if len(s.doc.Rail) == 0 {
		fail("scenario has no rail")
	}
	for _, id := range s.doc.Rail {
		if _, ok := s.doc.Steps[id]; !ok {
			fail("rail references undefined step %q", id)
		}
	}
	if s.doc.Theme == "" {
		fail("scenario has no theme")
	}

	for id, step := range s.doc.Steps {
		s.validateStep(id, step, promptsDir, fail)
	}

	for intent, target := range s.doc.Fallbacks {
		if !classify.KnownIntents[classify.Intent(intent)] {
			fail("fallbacks: unknown intent %q", intent)
		}
		if _, ok := s.doc.Steps[target]; !ok {
			fail("fallbacks[%s] references undefined step %q", intent, target)
		}
	}

	// Routing-graph checks only make sense once the references resolve.
	if len(errs) == 0 {
		errs = append(errs, s.validateReachability()...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid scenario %s: %s", s.doc.ID, strings.Join(errs, "; "))
	}
	return nil
}

func (s *Scenario) validateStep(id string, step *Step, promptsDir string, fail func(string, ...any)) {
	if step.TimeoutS < 0 {
		fail("step %s: negative timeout", id)
	}
	if step.MaxAutonomousTurns < 0 {
		fail("step %s: negative max_autonomous_turns", id)
	}

	switch step.Audio.Source {
	case SourcePreRecorded:
		if step.Audio.Path == "" {
			fail("step %s: pre_recorded audio without path", id)
		} else if promptsDir != "" {
			path := step.Audio.Path
			if !filepath.IsAbs(path) {
				path = filepath.Join(promptsDir, path)
			}
			if _, err := os.Stat(path); err != nil {
				fail("step %s: audio file missing: %s", id, path)
			}
		}
	case SourceTTS:
		if step.Audio.Text == "" {
			fail("step %s: tts audio without text", id)
		}
	case SourceNone:
	default:
		fail("step %s: unknown audio source %q", id, step.Audio.Source)
	}

	for intent, target := range step.IntentMapping {
		if intent != "*" && !classify.KnownIntents[classify.Intent(intent)] {
			fail("step %s: unknown intent %q in intent_mapping", id, intent)
		}
		if _, ok := s.doc.Steps[target]; !ok {
			fail("step %s: intent_mapping[%s] references undefined step %q", id, intent, target)
		}
	}

	if step.Terminal {
		switch step.Result {
		case ResultCompleted, ResultFailed, ResultNoAnswer:
		default:
			fail("step %s: terminal step with invalid result %q", id, step.Result)
		}
	}
}

// validateReachability rejects graphs where a call could cycle forever:
// every step reachable from the entry must reach some terminal step.
func (s *Scenario) validateReachability() []string {
	canEnd := make(map[string]bool, len(s.doc.Steps))
	for id, step := range s.doc.Steps {
		if step.Terminal {
			canEnd[id] = true
		}
	}

	// Fallbacks are reachable from any non-terminal step, so they count as
	// successors everywhere.
	successors := func(step *Step) []string {
		next := make([]string, 0, len(step.IntentMapping)+len(s.doc.Fallbacks))
		for _, t := range step.IntentMapping {
			next = append(next, t)
		}
		for _, t := range s.doc.Fallbacks {
			next = append(next, t)
		}
		return next
	}

	// Propagate "can reach a terminal" backwards to a fixed point. The
	// graphs are tens of nodes; no need for anything cleverer.
	for changed := true; changed; {
		changed = false
		for id, step := range s.doc.Steps {
			if canEnd[id] || step.Terminal {
				continue
			}
			for _, next := range successors(step) {
				if canEnd[next] {
					canEnd[id] = true
					changed = true
					break
				}
			}
		}
	}

	var errs []string
	for _, id := range s.reachableFromEntry() {
		if !canEnd[id] {
			errs = append(errs, fmt.Sprintf("step %s cannot reach any terminal step", id))
		}
	}
	return errs
}

func (s *Scenario) reachableFromEntry() []string {
	if len(s.doc.Rail) == 0 {
		return nil
	}
	seen := map[string]bool{}
	queue := []string{s.doc.Rail[0]}
	var order []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		order = append(order, id)

		step, ok := s.doc.Steps[id]
		if !ok || step.Terminal {
			continue
		}
		for _, next := range step.IntentMapping {
			queue = append(queue, next)
		}
		for _, next := range s.doc.Fallbacks {
			queue = append(queue, next)
		}
	}
	return order
}
