package scenario

import (
	"fmt"
	"sort"

	"github.com/vocira/vocira/internal/classify"
)

// ErrNoRoute is wrapped by Route when neither the step's mapping nor the
// scenario fallbacks cover the intent. Validation makes this unreachable
// for scenarios that declare an "unknown" fallback; hitting it at call
// time is an authoring bug, not a runtime condition.
var ErrNoRoute = fmt.Errorf("no route")

// Route resolves the next step for an intent: the step's own mapping
// first, then its wildcard, then the scenario-level fallback for the
// intent, then the "unknown" fallback.
func (s *Scenario) Route(stepID string, intent classify.Intent) (string, error) {
	step, ok := s.doc.Steps[stepID]
	if !ok {
		return "", fmt.Errorf("%w: unknown step %q", ErrNoRoute, stepID)
	}

	if next, ok := step.IntentMapping[string(intent)]; ok {
		return next, nil
	}
	if next, ok := step.IntentMapping["*"]; ok {
		return next, nil
	}
	if next, ok := s.doc.Fallbacks[string(intent)]; ok {
		return next, nil
	}
	if next, ok := s.doc.Fallbacks[string(classify.IntentUnknown)]; ok {
		return next, nil
	}
	return "", fmt.Errorf("%w: step %q has no route for intent %q", ErrNoRoute, stepID, intent)
}

// Fallback returns the scenario-level fallback step for an intent,
// bypassing any step mapping. The silence override consults this directly.
func (s *Scenario) Fallback(intent classify.Intent) (string, bool) {
	next, ok := s.doc.Fallbacks[string(intent)]
	return next, ok
}

// RoutingTable fully resolves every (step, intent) pair. Two scenarios
// with equal tables behave identically at call time, whatever their JSON
// looked like; the serialisation round-trip test compares these.
func (s *Scenario) RoutingTable() map[string]map[classify.Intent]string {
	intents := make([]classify.Intent, 0, len(classify.KnownIntents))
	for intent := range classify.KnownIntents {
		intents = append(intents, intent)
	}
	sort.Slice(intents, func(i, j int) bool { return intents[i] < intents[j] })

	table := make(map[string]map[classify.Intent]string, len(s.doc.Steps))
	for id, step := range s.doc.Steps {
		if step.Terminal {
			continue
		}
		row := make(map[classify.Intent]string, len(intents))
		for _, intent := range intents {
			if next, err := s.Route(id, intent); err == nil {
				row[intent] = next
			}
		}
		table[id] = row
	}
	return table
}
