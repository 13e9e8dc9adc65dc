// Package call drives one outbound call through its lifecycle: dial,
// answering machine detection, then the playing/waiting/processing step
// cycle until a terminal step or the caller ends it. One goroutine owns
// each call; it selects over softswitch events, streaming ASR events,
// timers and cancellation, and performs every side effect itself.
package call

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vocira/vocira/internal/actions"
	"github.com/vocira/vocira/internal/adapters/metrics"
	"github.com/vocira/vocira/internal/config"
	"github.com/vocira/vocira/internal/domain/models"
	"github.com/vocira/vocira/internal/esl"
	"github.com/vocira/vocira/internal/objection"
	"github.com/vocira/vocira/internal/ports"
	"github.com/vocira/vocira/internal/scenario"
	"github.com/vocira/vocira/internal/speech"
	"github.com/vocira/vocira/shared/id"
)

const (
	// answerSlack pads the originate timeout when waiting for the answer
	// event after the API reply.
	answerSlack = 5 * time.Second

	// playbackWatchdog bounds a PLAYING phase whose completion event never
	// arrives. Prompts are seconds long; this is generous.
	playbackWatchdog = 2 * time.Minute

	streamSampleRate = 8000
)

// Options wires one controller. All fields are required except Actions,
// which may be an empty dispatcher.
type Options struct {
	Config     *config.Config
	Switch     Switch
	Speech     speech.Gateway
	Store      ports.CallStore
	Scenario   *scenario.Scenario
	Objections *objection.Library
	Actions    *actions.Dispatcher
	Registry   *Registry
}

// Controller executes calls for one campaign's scenario. It is safe for
// concurrent use: all per-call state lives in the Session.
type Controller struct {
	cfg        *config.Config
	sw         Switch
	gw         speech.Gateway
	store      ports.CallStore
	scn        *scenario.Scenario
	objections *objection.Library
	dispatcher *actions.Dispatcher
	registry   *Registry
}

func NewController(opts Options) *Controller {
	dispatcher := opts.Actions
	if dispatcher == nil {
		dispatcher = actions.NewDispatcher()
	}
	return &Controller{
		cfg:        opts.Config,
		sw:         opts.Switch,
		gw:         opts.Speech,
		store:      opts.Store,
		scn:        opts.Scenario,
		objections: opts.Objections,
		dispatcher: dispatcher,
		registry:   opts.Registry,
	}
}

// Outcome is what the campaign runner needs to close the loop: the row to
// schedule retries against and the status that decides whether to.
type Outcome struct {
	RowID  string
	Status models.FinalStatus
}

// callEnd describes why a phase stopped cooperating: the caller or the
// provider ended the channel, the answer never came, or our own clock ran
// out.
type callEnd struct {
	cause    string // hangup cause header, empty when not a softswitch hangup
	provider bool   // synthetic provider disconnect
	timeout  bool   // no answer within the originate window
	expired  bool   // context cancelled or max call duration reached
}

// Run places one call and drives it to completion. It blocks for the whole
// call and always returns a final status; a panic inside the call is
// contained here and finalised as Failed.
func (c *Controller) Run(ctx context.Context, camp *models.Campaign, contact *models.Contact) (out Outcome) {
	callID := id.NewWithLength("call", 16)

	ctx, span := otel.Tracer("vocira-call").Start(ctx, "call.run",
		trace.WithAttributes(
			attribute.String("call.id", callID),
			attribute.String("campaign.id", camp.ID),
			attribute.String("contact.id", contact.ID),
		))
	defer span.End()

	rowID, err := c.store.CreateCallRecord(ctx, camp.ID, contact.ID, callID)
	if err != nil {
		slog.Error("call: creating record failed",
			"call_id", callID, "campaign_id", camp.ID, "contact_id", contact.ID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "create call record failed")
		return Outcome{Status: models.StatusFailed}
	}

	s := newSession(callID, rowID, camp.ID, contact.ID, c.scn.Variables(contact.Variables()))
	c.registry.Add(s)
	defer c.registry.Remove(callID)

	metrics.CallsActive.Inc()
	defer metrics.CallsActive.Dec()

	sub := c.sw.Subscribe(callID)
	defer sub.Close()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("call: panic recovered, failing the call",
				"call_id", callID, "panic", r, "stack", string(debug.Stack()))
			status := s.markRobotHangup(models.StatusFailed)
			c.killQuietly(s)
			c.finalize(s, status)
			out = Outcome{RowID: rowID, Status: status}
			span.SetStatus(codes.Error, "call panicked")
		}
	}()

	// The duration cap is the last-resort clock: when it fires, every
	// suspension point below unblocks and the call fails closed.
	callCtx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.Dialer.MaxCallDurationS)*time.Second)
	defer cancel()

	status := c.run(callCtx, s, sub, camp, contact)
	span.SetAttributes(attribute.String("call.final_status", string(status)))
	span.SetStatus(codes.Ok, "")
	return Outcome{RowID: rowID, Status: status}
}

func (c *Controller) run(ctx context.Context, s *Session, sub *esl.Subscription, camp *models.Campaign, contact *models.Contact) models.FinalStatus {
	c.reportPhase(ctx, s, models.PhaseDialing)

	slog.Info("call: dialing",
		"call_id", s.CallID, "campaign_id", camp.ID, "contact_id", contact.ID, "destination", contact.Phone)

	_, err := c.sw.Originate(ctx, esl.OriginateParams{
		CallID:      s.CallID,
		Destination: contact.Phone,
		CallerID:    camp.CallerID,
		Gateway:     c.cfg.Softswitch.Gateway,
		TimeoutS:    c.cfg.Softswitch.OriginateTimeoutS,
		Vars: map[string]string{
			"campaign_id": camp.ID,
			"contact_id":  contact.ID,
		},
	})
	if err != nil {
		status := originateStatus(err)
		metrics.OriginatesTotal.WithLabelValues(string(status)).Inc()
		slog.Info("call: originate refused",
			"call_id", s.CallID, "status", status, "error", err)
		return c.conclude(s, status)
	}
	metrics.OriginatesTotal.WithLabelValues("answered").Inc()

	if end := c.awaitAnswer(ctx, sub); end != nil {
		return c.settle(s, sub, end)
	}
	s.markAnswered()
	slog.Info("call: answered", "call_id", s.CallID)

	c.startCallRecording(ctx, s)

	amd := c.amd(ctx, s, sub)
	if amd.end != nil {
		return c.settle(s, sub, amd.end)
	}
	if !amd.proceed {
		return c.hangupWith(s, sub, models.StatusNoAnswer)
	}

	stepID := c.scn.Entry()
	for {
		if ctx.Err() != nil {
			return c.settle(s, sub, &callEnd{expired: true})
		}

		step, ok := c.scn.Step(stepID)
		if !ok {
			// Validation makes this unreachable for static routes; only a
			// bad action resume target can get here.
			slog.Error("call: routed to a step that does not exist",
				"call_id", s.CallID, "step", stepID)
			return c.hangupWith(s, sub, models.StatusFailed)
		}
		s.setStep(stepID, step.MaxAutonomousTurns)

		if step.Terminal {
			status, resume, end := c.finishTerminal(ctx, s, sub, stepID, step)
			if end != nil {
				return c.settle(s, sub, end)
			}
			if resume != "" {
				stepID = resume
				continue
			}
			return c.hangupWith(s, sub, status)
		}

		audio, text := c.stepMedia(step, s.variables())
		pr := c.playing(ctx, s, sub, stepID, audio, text, step.BargeIn)
		if pr.end != nil {
			return c.settle(s, sub, pr.end)
		}

		wr := c.waiting(ctx, s, sub, stepID, step, pr.bargeText)
		if wr.end != nil {
			return c.settle(s, sub, wr.end)
		}

		rr := c.processing(ctx, s, sub, stepID, step, wr)
		switch {
		case rr.end != nil:
			return c.settle(s, sub, rr.end)
		case rr.fatal:
			return c.hangupWith(s, sub, models.StatusFailed)
		case rr.immediate != "":
			return c.hangupWith(s, sub, rr.immediate)
		}
		stepID = rr.stepID
	}
}

// awaitAnswer blocks until the channel reports answer, ends, or the
// originate window plus slack elapses.
func (c *Controller) awaitAnswer(ctx context.Context, sub *esl.Subscription) *callEnd {
	timer := time.NewTimer(time.Duration(c.cfg.Softswitch.OriginateTimeoutS)*time.Second + answerSlack)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return &callEnd{}
			}
			if ev.Name == esl.EventChannelAnswer {
				return nil
			}
			if end := endFromEvent(ev); end != nil {
				return end
			}
		case <-timer.C:
			return &callEnd{timeout: true}
		case <-ctx.Done():
			return &callEnd{expired: true}
		}
	}
}

// startCallRecording begins the full-call stereo recording whose path is
// persisted at finalisation. Best effort: a call without a recording is
// still a call.
func (c *Controller) startCallRecording(ctx context.Context, s *Session) {
	if err := c.sw.SetVar(ctx, s.CallID, "RECORD_STEREO", "true"); err != nil {
		slog.Warn("call: stereo record flag failed", "call_id", s.CallID, "error", err)
	}
	path := filepath.Join(c.cfg.Paths.RecordingsDir, s.CallID+".wav")
	if err := c.sw.RecordStart(ctx, s.CallID, path, c.cfg.Dialer.MaxCallDurationS); err != nil {
		slog.Warn("call: full-call recording failed", "call_id", s.CallID, "error", err)
		return
	}
	s.setRecording(path)
}

// stepMedia resolves a step's prompt to a playable path and a loggable
// text. tts text is interpolated with the call variables.
func (c *Controller) stepMedia(step *scenario.Step, vars map[string]string) (audio, text string) {
	switch step.Audio.Source {
	case scenario.SourcePreRecorded:
		return c.resolvePrompt(step.Audio.Path), scenario.Interpolate(step.Audio.Text, vars)
	case scenario.SourceTTS:
		return c.resolvePrompt(step.Audio.Path), scenario.Interpolate(step.Audio.Text, vars)
	default:
		return "", ""
	}
}

func (c *Controller) resolvePrompt(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.cfg.Paths.PromptsDir, path)
}

// reportPhase moves the session forward and persists the transition. An
// invalid transition is a programming error: it is logged and the phase is
// left untouched rather than corrupting the lifecycle record.
func (c *Controller) reportPhase(ctx context.Context, s *Session, to models.Phase) {
	from := s.Phase()
	if from != to {
		if err := s.transition(to); err != nil {
			slog.Error("call: phase transition rejected",
				"call_id", s.CallID, "from", from, "to", to, "error", err)
			return
		}
	}
	if err := c.store.UpdateCallPhase(ctx, s.RowID, to, time.Now()); err != nil {
		slog.Error("call: persisting phase failed",
			"call_id", s.CallID, "phase", to, "error", err)
	}
	c.appendEvent(ctx, s, models.EventPhaseChange, PhaseChangePayload{From: from, To: to})
}

// pause sleeps for d while draining the event stream; a channel-ending
// event or cancellation cuts the pause short.
func (c *Controller) pause(ctx context.Context, sub *esl.Subscription, d time.Duration) *callEnd {
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			return nil
		case ev, ok := <-sub.C:
			if !ok {
				return &callEnd{}
			}
			if end := endFromEvent(ev); end != nil {
				return end
			}
		case <-ctx.Done():
			return &callEnd{expired: true}
		}
	}
}

// endFromEvent maps channel-ending events; all others return nil.
func endFromEvent(ev *esl.Event) *callEnd {
	switch ev.Name {
	case esl.EventChannelHangup, esl.EventChannelHangupComplete:
		return &callEnd{cause: ev.HangupCause()}
	case esl.EventChannelDestroy:
		return &callEnd{}
	case esl.EventProviderDisconnected:
		return &callEnd{provider: true}
	}
	return nil
}

func originateStatus(err error) models.FinalStatus {
	switch {
	case errors.Is(err, esl.ErrUserBusy):
		return models.StatusBusy
	case errors.Is(err, esl.ErrTimeout):
		return models.StatusNoAnswer
	default:
		return models.StatusFailed
	}
}
