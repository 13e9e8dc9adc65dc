package call

import (
	"context"
	"log/slog"

	"github.com/vocira/vocira/internal/actions"
	"github.com/vocira/vocira/internal/adapters/metrics"
	"github.com/vocira/vocira/internal/classify"
	"github.com/vocira/vocira/internal/domain/models"
	"github.com/vocira/vocira/internal/esl"
	"github.com/vocira/vocira/internal/objection"
	"github.com/vocira/vocira/internal/scenario"
)

type routeResult struct {
	stepID string
	end    *callEnd
	// fatal marks a scenario-authoring bug (route to nowhere); the call is
	// killed with Failed.
	fatal bool
	// immediate short-circuits the scenario: hang up now with this status.
	immediate models.FinalStatus
}

// silenceOverrideAt is the consecutive-silences count that stops pretending
// anyone is listening.
const silenceOverrideAt = 2

// processing turns the captured reply into the next step id. Objections are
// handled inside the step by the autonomous loop before routing; two
// silences in a row bypass routing entirely.
func (c *Controller) processing(ctx context.Context, s *Session, sub *esl.Subscription, stepID string, step *scenario.Step, wr waitResult) routeResult {
	c.reportPhase(ctx, s, models.PhaseProcessing)

	intent := replyIntent(wr)
	delta := c.scoreIntent(s, step, intent.Intent)
	c.appendEvent(ctx, s, models.EventIntentDetected, IntentPayload{
		StepID: stepID, Intent: intent.Intent, Confidence: intent.Confidence, QualificationDelta: delta,
	})
	slog.Info("call: intent",
		"call_id", s.CallID, "step", stepID, "intent", intent.Intent, "confidence", intent.Confidence)

	if intent.Intent == classify.IntentObjection && step.MaxAutonomousTurns > 0 && s.objectionTurnsLeft() > 0 {
		loopIntent, end := c.objectionLoop(ctx, s, sub, stepID, step, wr.text)
		if end != nil {
			return routeResult{end: end}
		}
		intent = classify.IntentResult{Intent: loopIntent, Confidence: 1}
		// The loop leaves the session in whatever phase its last capture
		// reached; routing decisions belong to processing.
		if s.Phase() != models.PhaseProcessing {
			c.reportPhase(ctx, s, models.PhaseProcessing)
		}
	}

	if s.silences() >= silenceOverrideAt {
		s.forceStatus(models.StatusNoAnswer)
		if next, ok := c.scn.Fallback(classify.IntentSilence); ok {
			slog.Info("call: silence override, closing via fallback",
				"call_id", s.CallID, "step", stepID, "next", next)
			return routeResult{stepID: next}
		}
		slog.Info("call: silence override, no fallback configured, hanging up",
			"call_id", s.CallID, "step", stepID)
		return routeResult{immediate: models.StatusNoAnswer}
	}

	next, err := c.scn.Route(stepID, intent.Intent)
	if err != nil {
		slog.Error("call: scenario routing failed, this scenario is broken",
			"call_id", s.CallID, "scenario", c.scn.ID(), "step", stepID,
			"intent", intent.Intent, "error", err)
		return routeResult{fatal: true}
	}
	return routeResult{stepID: next}
}

// replyIntent maps a waiting outcome onto the intent the router consumes.
func replyIntent(wr waitResult) classify.IntentResult {
	switch {
	case wr.sttFail:
		return classify.IntentResult{Intent: classify.IntentUnknown}
	case wr.silence:
		return classify.IntentResult{Intent: classify.IntentSilence, Confidence: 1}
	default:
		return classify.MatchIntent(wr.text)
	}
}

// scoreIntent applies the qualification weight of a determinant step when
// the caller agreed, returning the applied delta.
func (c *Controller) scoreIntent(s *Session, step *scenario.Step, intent classify.Intent) float64 {
	if !step.IsDeterminant() {
		return 0
	}
	if intent != classify.IntentAffirm && intent != classify.IntentInterested {
		return 0
	}
	s.addQualification(step.QualificationWeight)
	return step.QualificationWeight
}

// objectionLoop rebuts objections without leaving the current step, bounded
// by the step's autonomous-turn budget. It returns the intent that routing
// should proceed with: agreement and off-script intents exit immediately,
// deny and fresh objections keep the loop going, and an exhausted budget
// routes as a plain objection.
func (c *Controller) objectionLoop(ctx context.Context, s *Session, sub *esl.Subscription, stepID string, step *scenario.Step, text string) (classify.Intent, *callEnd) {
	current := classify.IntentObjection

	for s.objectionTurnsLeft() > 0 {
		match, err := c.objections.Find(text, c.scn.Theme(), objection.DefaultMinScore)
		if err != nil {
			slog.Warn("call: objection lookup failed",
				"call_id", s.CallID, "theme", c.scn.Theme(), "error", err)
			return current, nil
		}
		if match == nil {
			return current, nil
		}

		metrics.ObjectionMatchesTotal.WithLabelValues(match.Entry.Category).Inc()
		c.appendEvent(ctx, s, models.EventObjectionMatched, ObjectionPayload{
			StepID: stepID, Category: match.Entry.Category, Score: match.Score,
		})
		slog.Info("call: objection matched",
			"call_id", s.CallID, "step", stepID, "category", match.Entry.Category, "score", match.Score)

		audio := c.resolvePrompt(match.Entry.ResponseAudio)
		rebuttal := scenario.Interpolate(match.Entry.FallbackText, s.variables())
		pr := c.playing(ctx, s, sub, stepID, audio, rebuttal, step.BargeIn)
		if pr.end != nil {
			return current, pr.end
		}
		wr := c.waiting(ctx, s, sub, stepID, step, pr.bargeText)
		if wr.end != nil {
			return current, wr.end
		}
		s.spendObjectionTurn()

		reaction := replyIntent(wr)
		delta := c.scoreIntent(s, step, reaction.Intent)
		c.appendEvent(ctx, s, models.EventIntentDetected, IntentPayload{
			StepID: stepID, Intent: reaction.Intent, Confidence: reaction.Confidence, QualificationDelta: delta,
		})

		switch reaction.Intent {
		case classify.IntentAffirm, classify.IntentInterested:
			return reaction.Intent, nil
		case classify.IntentDeny, classify.IntentObjection:
			if wr.text == "" {
				return reaction.Intent, nil
			}
			current = reaction.Intent
			text = wr.text
		default:
			return reaction.Intent, nil
		}
	}
	return classify.IntentObjection, nil
}

// finishTerminal plays the closing prompt, runs the step's actions and
// picks the final status. A non-empty resume step id (a transfer that was
// not answered) sends the call back into the scenario instead.
func (c *Controller) finishTerminal(ctx context.Context, s *Session, sub *esl.Subscription, stepID string, step *scenario.Step) (models.FinalStatus, string, *callEnd) {
	audio, text := c.stepMedia(step, s.variables())
	if audio != "" || text != "" {
		// Goodbyes play out in full; nothing useful can interrupt one.
		pr := c.playing(ctx, s, sub, stepID, audio, text, false)
		if pr.end != nil {
			return "", "", pr.end
		}
	}

	var resume string
	for _, res := range c.dispatcher.Run(ctx, actions.Call{
		CallID:     s.CallID,
		CampaignID: s.CampaignID,
		ContactID:  s.ContactID,
		Variables:  s.variables(),
	}, step.Actions) {
		payload := ActionPayload{StepID: stepID, Type: res.Type, Resume: res.Resume}
		if res.Err != nil {
			payload.Error = res.Err.Error()
		}
		c.appendEvent(ctx, s, models.EventActionExecuted, payload)
		if resume == "" && res.Resume != "" {
			resume = res.Resume
		}
	}
	if resume != "" {
		slog.Info("call: action resumed the scenario",
			"call_id", s.CallID, "step", stepID, "resume", resume)
		return "", resume, nil
	}
	return c.terminalStatus(s, step), "", nil
}

// terminalStatus resolves the status a terminal step assigns. A status
// forced earlier (silence override) wins over the step's own result; the
// leads gate modulates a completed result by the qualification score.
func (c *Controller) terminalStatus(s *Session, step *scenario.Step) models.FinalStatus {
	if forced, ok := s.forcedStatus(); ok {
		return forced
	}
	switch step.Result {
	case scenario.ResultNoAnswer:
		return models.StatusNoAnswer
	case scenario.ResultFailed:
		// A scripted negative closure is a refusal, not an infrastructure
		// failure.
		return models.StatusNotInterested
	default:
		if step.LeadsGate {
			if s.Qualification() >= float64(c.cfg.Dialer.QualificationThreshold) {
				return models.StatusLead
			}
			return models.StatusNotInterested
		}
		return models.StatusCompleted
	}
}
