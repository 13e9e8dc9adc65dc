package call

import (
	"encoding/json"
	"fmt"

	"github.com/vocira/vocira/internal/domain/models"
)

// ReplayEvents rebuilds the conversation history and the qualification
// score of a finished call from its event log. The log is the source of
// truth for audits; the finalised row only carries the aggregate.
func ReplayEvents(events []models.CallEvent) ([]models.Turn, float64, error) {
	var turns []models.Turn
	var qualification float64

	for _, ev := range events {
		switch ev.Type {
		case models.EventBotPrompt:
			var p PromptPayload
			if err := json.Unmarshal(ev.Payload, &p); err != nil {
				return nil, 0, fmt.Errorf("replay %s event %s: %w", ev.Type, ev.ID, err)
			}
			turns = append(turns, models.Turn{Role: models.RoleBot, Text: p.Text, AtMs: p.AtMs})

		case models.EventCallerUtterance:
			var p UtterancePayload
			if err := json.Unmarshal(ev.Payload, &p); err != nil {
				return nil, 0, fmt.Errorf("replay %s event %s: %w", ev.Type, ev.ID, err)
			}
			if p.Silence || p.Text == "" {
				continue
			}
			turns = append(turns, models.Turn{Role: models.RoleCaller, Text: p.Text, AtMs: p.AtMs})

		case models.EventIntentDetected:
			var p IntentPayload
			if err := json.Unmarshal(ev.Payload, &p); err != nil {
				return nil, 0, fmt.Errorf("replay %s event %s: %w", ev.Type, ev.ID, err)
			}
			qualification += p.QualificationDelta
		}
	}
	return turns, qualification, nil
}
