package call

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/vocira/vocira/internal/adapters/metrics"
	"github.com/vocira/vocira/internal/domain/models"
	"github.com/vocira/vocira/internal/esl"
	"github.com/vocira/vocira/internal/speech"
)

type playResult struct {
	bargedIn bool
	// bargeText is the transcription accumulated up to the interruption; it
	// seeds the reply captured by the waiting phase.
	bargeText string
	end       *callEnd
}

// playing plays one prompt and, when the step allows it, listens for the
// caller talking over it. Sustained speech interrupts playback after a
// short smoothing delay; echo of our own prompt is filtered by requiring a
// minimum playback age before any interruption counts.
func (c *Controller) playing(ctx context.Context, s *Session, sub *esl.Subscription, stepID, audio, text string, bargeIn bool) playResult {
	c.reportPhase(ctx, s, models.PhasePlaying)

	if text != "" || audio != "" {
		turn := s.addTurn(models.RoleBot, text)
		c.appendEvent(ctx, s, models.EventBotPrompt, PromptPayload{
			StepID: stepID, Text: text, Audio: audio, AtMs: turn.AtMs,
		})
	}
	if audio == "" {
		return playResult{}
	}

	var streamCh <-chan speech.StreamEvent
	if bargeIn {
		stream, err := c.gw.OpenStream(ctx, s.CallID)
		if err != nil {
			slog.Warn("call: asr stream refused, playing without barge-in",
				"call_id", s.CallID, "step", stepID, "error", err)
		} else if err := c.sw.AudioStreamStart(ctx, s.CallID, c.gw.StreamEndpoint(s.CallID), streamSampleRate); err != nil {
			slog.Warn("call: media fork refused, playing without barge-in",
				"call_id", s.CallID, "step", stepID, "error", err)
			stream.Close()
		} else {
			streamCh = stream.Events()
			defer func() {
				cctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
				defer cancel()
				if err := c.sw.AudioStreamStop(cctx, s.CallID); err != nil {
					slog.Warn("call: media fork stop failed", "call_id", s.CallID, "error", err)
				}
				stream.Close()
			}()
		}
	}

	if err := c.sw.Play(ctx, s.CallID, audio); err != nil {
		slog.Warn("call: playback refused, moving on",
			"call_id", s.CallID, "step", stepID, "audio", audio, "error", err)
		return playResult{}
	}
	started := time.Now()

	grace := time.Duration(c.cfg.BargeIn.GraceMs) * time.Millisecond
	threshold := int64(c.cfg.BargeIn.SpeechThresholdMs)

	watchdog := time.NewTimer(playbackWatchdog)
	defer watchdog.Stop()

	var finals []string
	var partial string
	accumulated := func() string {
		return strings.TrimSpace(strings.TrimSpace(strings.Join(finals, " ")) + " " + partial)
	}

	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return playResult{end: &callEnd{}}
			}
			if ev.Name == esl.EventPlaybackStop {
				// Natural completion. Sub-threshold speech fragments are
				// dropped; the waiting phase captures the real reply.
				return playResult{}
			}
			if end := endFromEvent(ev); end != nil {
				return playResult{end: end}
			}

		case se, ok := <-streamCh:
			if !ok {
				slog.Warn("call: asr stream dropped, barge-in disabled for this step",
					"call_id", s.CallID, "step", stepID)
				streamCh = nil
				continue
			}
			switch se.Kind {
			case speech.StreamPartial:
				partial = se.Text
			case speech.StreamFinal:
				if se.Text != "" {
					finals = append(finals, se.Text)
				}
				partial = ""
			case speech.StreamSpeechEnd:
				if se.DurationMs < threshold || time.Since(started) < grace {
					continue
				}
				if end := c.pause(ctx, sub, time.Duration(c.cfg.BargeIn.SmoothDelayMs)*time.Millisecond); end != nil {
					return playResult{end: end}
				}
				if err := c.sw.Break(ctx, s.CallID); err != nil {
					slog.Warn("call: break failed", "call_id", s.CallID, "error", err)
				}
				bargeText := accumulated()
				metrics.BargeInsTotal.Inc()
				c.appendEvent(ctx, s, models.EventBargeIn, BargeInPayload{
					StepID: stepID, SpeechMs: se.DurationMs, Text: bargeText,
				})
				slog.Info("call: barge-in",
					"call_id", s.CallID, "step", stepID, "speech_ms", se.DurationMs, "text", bargeText)
				return playResult{bargedIn: true, bargeText: bargeText}
			}

		case <-watchdog.C:
			slog.Warn("call: playback completion never arrived",
				"call_id", s.CallID, "step", stepID, "audio", audio)
			return playResult{}

		case <-ctx.Done():
			return playResult{end: &callEnd{expired: true}}
		}
	}
}
