package call

import (
	"context"
	"log/slog"
	"time"

	"github.com/vocira/vocira/internal/adapters/metrics"
	"github.com/vocira/vocira/internal/domain/models"
	"github.com/vocira/vocira/internal/esl"
)

const (
	// killDrainTimeout bounds the wait for the hangup confirmation after we
	// issue the kill. The switch normally confirms within milliseconds.
	killDrainTimeout = 5 * time.Second

	// cleanupTimeout bounds teardown work running on a detached context.
	cleanupTimeout = 5 * time.Second
)

// hangupWith ends the call from our side with the given status. The intent
// flag is set before the kill reaches the wire, so the hangup event this
// triggers can never be misread as the caller hanging up. Cleanup runs on a
// detached context: a call at its duration cap must still tear down.
func (c *Controller) hangupWith(s *Session, sub *esl.Subscription, status models.FinalStatus) models.FinalStatus {
	status = s.markRobotHangup(status)

	cctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	c.reportPhase(cctx, s, models.PhaseTerminating)
	if err := c.sw.Kill(cctx, s.CallID); err != nil {
		slog.Warn("call: kill failed", "call_id", s.CallID, "error", err)
	}
	c.drainUntilGone(sub)
	c.finalize(s, status)
	return status
}

// settle ends a call whose phase stopped cooperating. Clock outcomes mean
// the channel is still alive and must be killed; a channel-ending event
// means it is already gone and only the cause needs mapping.
func (c *Controller) settle(s *Session, sub *esl.Subscription, end *callEnd) models.FinalStatus {
	switch {
	case end.expired:
		slog.Warn("call: duration cap reached, killing", "call_id", s.CallID)
		return c.hangupWith(s, sub, models.StatusFailed)
	case end.timeout:
		return c.hangupWith(s, sub, models.StatusNoAnswer)
	default:
		return c.concludeFromHangup(s, end)
	}
}

// concludeFromHangup settles a call whose channel ended underneath a phase.
// If we marked the hangup ourselves (the kill raced the event) the marked
// status wins; otherwise the hangup cause decides.
func (c *Controller) concludeFromHangup(s *Session, end *callEnd) models.FinalStatus {
	status, robot := s.robotStatus()
	if !robot {
		status = causeStatus(end)
	}

	cctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	c.reportPhase(cctx, s, models.PhaseTerminating)
	slog.Info("call: channel ended",
		"call_id", s.CallID, "cause", end.cause, "provider", end.provider,
		"timeout", end.timeout, "expired", end.expired, "status", status)
	c.finalize(s, status)
	return status
}

// conclude settles a call that never produced a channel (originate refused).
func (c *Controller) conclude(s *Session, status models.FinalStatus) models.FinalStatus {
	cctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	c.reportPhase(cctx, s, models.PhaseTerminating)
	c.finalize(s, status)
	return status
}

// killQuietly issues a best-effort kill outside the normal teardown paths.
// The panic handler uses it; the session flags are already set by then.
func (c *Controller) killQuietly(s *Session) {
	cctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := c.sw.Kill(cctx, s.CallID); err != nil {
		slog.Warn("call: cleanup kill failed", "call_id", s.CallID, "error", err)
	}
}

// drainUntilGone consumes events until the switch confirms the channel is
// gone, or gives up after killDrainTimeout.
func (c *Controller) drainUntilGone(sub *esl.Subscription) {
	timer := time.NewTimer(killDrainTimeout)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			switch ev.Name {
			case esl.EventChannelHangupComplete, esl.EventChannelDestroy, esl.EventProviderDisconnected:
				return
			}
		case <-timer.C:
			return
		}
	}
}

// finalize writes the terminal row exactly once and emits the closing
// telemetry. Late callers (a hangup event racing the kill path) fall
// through silently.
func (c *Controller) finalize(s *Session, status models.FinalStatus) {
	if !s.markFinalized() {
		return
	}

	cctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	c.reportPhase(cctx, s, models.PhaseDone)

	duration := s.answeredDuration()
	if err := c.store.FinalizeCall(cctx, s.RowID, status, duration, s.Qualification(), s.recording()); err != nil {
		slog.Error("call: finalising record failed",
			"call_id", s.CallID, "row_id", s.RowID, "status", status, "error", err)
	}

	metrics.CallsTotal.WithLabelValues(string(status)).Inc()
	if s.answered() {
		metrics.CallDuration.Observe(duration)
	}
	slog.Info("call: finished",
		"call_id", s.CallID, "status", status,
		"duration_s", duration, "qualification", s.Qualification())
}

// causeStatus maps a channel end that we did not initiate onto a final
// status. An answered caller hanging up normally means they heard enough
// and declined; infrastructure causes mean failure.
func causeStatus(end *callEnd) models.FinalStatus {
	if end.provider {
		return models.StatusFailed
	}
	switch end.cause {
	case "NORMAL_CLEARING", "ORIGINATOR_CANCEL", "recv_bye":
		return models.StatusNotInterested
	case "USER_BUSY":
		return models.StatusBusy
	case "NO_ANSWER", "NO_USER_RESPONSE":
		return models.StatusNoAnswer
	default:
		return models.StatusFailed
	}
}
