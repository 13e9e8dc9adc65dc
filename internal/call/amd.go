package call

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vocira/vocira/internal/adapters/metrics"
	"github.com/vocira/vocira/internal/classify"
	"github.com/vocira/vocira/internal/domain/models"
	"github.com/vocira/vocira/internal/esl"
	"github.com/vocira/vocira/internal/speech"
)

type amdResult struct {
	proceed bool
	end     *callEnd
}

// amd decides within the first seconds of the call whether a person is on
// the line. It records a short stereo window, probes the caller leg for
// dead air, and only transcribes when someone audibly spoke. Machine and
// silence verdicts stop the call; every infrastructure failure along the
// way degrades to proceeding, because killing a live human call on a
// recorder hiccup is worse than greeting a voicemail.
func (c *Controller) amd(ctx context.Context, s *Session, sub *esl.Subscription) amdResult {
	ctx, span := otel.Tracer("vocira-call").Start(ctx, "call.amd",
		trace.WithAttributes(attribute.String("call.id", s.CallID)))
	defer span.End()

	c.reportPhase(ctx, s, models.PhaseAMD)

	// Let RTP settle before opening the window; the first packets of a
	// mobile leg are often clipped.
	if end := c.pause(ctx, sub, time.Duration(c.cfg.AMD.PrimingDelayMs)*time.Millisecond); end != nil {
		return amdResult{end: end}
	}

	recPath := filepath.Join(c.cfg.Paths.RecordingsDir, s.CallID+"_amd.wav")
	recording := true
	if err := c.sw.RecordStart(ctx, s.CallID, recPath, 0); err != nil {
		slog.Warn("call: amd record failed, assuming human", "call_id", s.CallID, "error", err)
		recording = false
	}

	if end := c.pause(ctx, sub, time.Duration(c.cfg.AMD.RecordWindowMs)*time.Millisecond); end != nil {
		if recording {
			c.stopRecordingQuietly(s, recPath)
		}
		return amdResult{end: end}
	}

	if !recording {
		return amdResult{proceed: true}
	}
	if err := c.sw.RecordStop(ctx, s.CallID, recPath); err != nil {
		slog.Warn("call: amd record stop failed, assuming human", "call_id", s.CallID, "error", err)
		return amdResult{proceed: true}
	}

	verdict, res, text, latency := c.amdVerdict(ctx, s, recPath)

	metrics.AMDVerdictsTotal.WithLabelValues(string(verdict)).Inc()
	span.SetAttributes(
		attribute.String("amd.verdict", string(verdict)),
		attribute.String("amd.text", text),
	)
	c.appendEvent(ctx, s, models.EventAMDResult, AMDPayload{
		Verdict:           verdict,
		HumanConfidence:   res.HumanConfidence,
		MachineConfidence: res.MachineConfidence,
		Text:              text,
		LatencyMs:         latency,
	})
	slog.Info("call: amd verdict",
		"call_id", s.CallID, "verdict", verdict, "text", text,
		"human", res.HumanConfidence, "machine", res.MachineConfidence)

	proceed := verdict == classify.VerdictHuman || verdict == classify.VerdictUnknown
	return amdResult{proceed: proceed}
}

// amdVerdict runs the probe-then-transcribe pipeline over the recorded
// window.
func (c *Controller) amdVerdict(ctx context.Context, s *Session, recPath string) (classify.Verdict, classify.AMDResult, string, int64) {
	callerPath := filepath.Join(c.cfg.Paths.RecordingsDir, s.CallID+"_amd_caller.wav")
	if err := speech.ExtractCallerLeg(recPath, callerPath); err != nil {
		slog.Warn("call: amd caller extraction failed, assuming human", "call_id", s.CallID, "error", err)
		return classify.VerdictUnknown, classify.AMDResult{Verdict: classify.VerdictUnknown}, "", 0
	}

	silent, err := speech.ProbeSilence(callerPath, c.cfg.AMD.SilenceFloorDB)
	if err != nil {
		slog.Warn("call: amd silence probe failed", "call_id", s.CallID, "error", err)
	} else if silent {
		// Nobody spoke; skip the transcription round-trip entirely.
		return classify.VerdictSilence, classify.AMDResult{Verdict: classify.VerdictSilence}, "", 0
	}

	res, err := c.gw.TranscribeFile(ctx, callerPath, speech.TranscribeOptions{
		VADFilter:           true,
		BeamSize:            8,
		NoSpeechThreshold:   0.6,
		ConditionOnPrevText: false,
	})
	if err != nil {
		slog.Warn("call: amd transcription failed, assuming human", "call_id", s.CallID, "error", err)
		return classify.VerdictUnknown, classify.AMDResult{Verdict: classify.VerdictUnknown}, "", 0
	}
	if res.Text == "" {
		return classify.VerdictSilence, classify.AMDResult{Verdict: classify.VerdictSilence}, "", res.LatencyMs
	}

	cls := classify.ClassifyAMD(res.Text)
	return cls.Verdict, cls, res.Text, res.LatencyMs
}

func (c *Controller) stopRecordingQuietly(s *Session, path string) {
	cctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := c.sw.RecordStop(cctx, s.CallID, path); err != nil {
		slog.Warn("call: record stop failed", "call_id", s.CallID, "path", path, "error", err)
	}
}
