package call

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/vocira/vocira/internal/domain/models"
	"github.com/vocira/vocira/internal/esl"
	"github.com/vocira/vocira/internal/scenario"
	"github.com/vocira/vocira/internal/speech"
)

type waitResult struct {
	text string
	// silence means the caller said nothing usable: no growth, a recording
	// under the speech floor, or a transcription that came back empty.
	silence bool
	// sttFail means we captured audio but could not transcribe it. Routed
	// as unknown, never as silence.
	sttFail bool
	end     *callEnd
}

// waiting records the caller's reply. The recorder writes to a file we can
// see; growth stalling for the silence threshold means the caller finished,
// the step timeout means they never started. bargeSeed carries text already
// heard by the streaming recogniser during the prompt and is prepended to
// whatever this phase captures.
func (c *Controller) waiting(ctx context.Context, s *Session, sub *esl.Subscription, stepID string, step *scenario.Step, bargeSeed string) waitResult {
	c.reportPhase(ctx, s, models.PhaseWaiting)

	timeout := time.Duration(c.cfg.Waiting.StepTimeoutS) * time.Second
	if step.TimeoutS > 0 {
		timeout = time.Duration(step.TimeoutS) * time.Second
	}

	seq := s.nextTurnSeq()
	recPath := filepath.Join(c.cfg.Paths.RecordingsDir, fmt.Sprintf("%s_turn_%02d.wav", s.CallID, seq))

	wr := c.captureReply(ctx, s, sub, recPath, timeout)
	if wr.end != nil {
		return wr
	}

	if bargeSeed != "" {
		if wr.text == "" {
			wr.text = bargeSeed
		} else {
			wr.text = bargeSeed + " " + wr.text
		}
		wr.silence = false
		wr.sttFail = false
	}

	switch {
	case wr.silence:
		count := s.noteSilence()
		c.appendEvent(ctx, s, models.EventCallerUtterance, UtterancePayload{
			StepID: stepID, Silence: true, AtMs: s.sinceAnswerMs(),
		})
		slog.Info("call: caller silent",
			"call_id", s.CallID, "step", stepID, "consecutive", count)
	case wr.text != "":
		s.resetSilences()
		turn := s.addTurn(models.RoleCaller, wr.text)
		c.appendEvent(ctx, s, models.EventCallerUtterance, UtterancePayload{
			StepID: stepID, Text: wr.text, AtMs: turn.AtMs,
		})
		slog.Info("call: caller said",
			"call_id", s.CallID, "step", stepID, "text", wr.text)
	}
	return wr
}

// captureReply runs the record-poll-transcribe pipeline and returns the raw
// outcome, before barge-seed merging and history bookkeeping.
func (c *Controller) captureReply(ctx context.Context, s *Session, sub *esl.Subscription, recPath string, timeout time.Duration) waitResult {
	if err := c.sw.RecordStart(ctx, s.CallID, recPath, 0); err != nil {
		slog.Warn("call: reply recording refused", "call_id", s.CallID, "error", err)
		return waitResult{sttFail: true}
	}

	stall := time.Duration(c.cfg.Waiting.SilenceThresholdMs) * time.Millisecond
	ticker := time.NewTicker(time.Duration(c.cfg.Waiting.GrowthPollMs) * time.Millisecond)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	var (
		lastSize   int64 = -1
		lastGrowth time.Time
		grew       bool
	)

poll:
	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return waitResult{end: &callEnd{}}
			}
			if end := endFromEvent(ev); end != nil {
				return waitResult{end: end}
			}

		case <-ticker.C:
			fi, err := os.Stat(recPath)
			if err != nil {
				// The recorder has not created the file yet.
				continue
			}
			size := fi.Size()
			switch {
			case size > lastSize && lastSize >= 0:
				lastSize = size
				lastGrowth = time.Now()
				grew = true
			case lastSize < 0:
				lastSize = size
				lastGrowth = time.Now()
			case grew && time.Since(lastGrowth) >= stall:
				break poll
			}

		case <-deadline.C:
			break poll

		case <-ctx.Done():
			return waitResult{end: &callEnd{expired: true}}
		}
	}

	if err := c.sw.RecordStop(ctx, s.CallID, recPath); err != nil {
		slog.Warn("call: reply recording stop failed", "call_id", s.CallID, "error", err)
	}

	durationMs, err := wavDurationMs(recPath)
	if err != nil {
		slog.Warn("call: reply recording unreadable", "call_id", s.CallID, "path", recPath, "error", err)
		return waitResult{silence: true}
	}
	if durationMs < int64(c.cfg.Waiting.MinSpeechMs) {
		return waitResult{silence: true}
	}

	callerPath := replyCallerPath(recPath)
	if err := speech.ExtractCallerLeg(recPath, callerPath); err != nil {
		slog.Warn("call: reply caller extraction failed", "call_id", s.CallID, "error", err)
		callerPath = recPath
	}

	res, err := c.gw.TranscribeFile(ctx, callerPath, speech.TranscribeOptions{
		VADFilter:           true,
		ConditionOnPrevText: false,
	})
	if err != nil {
		slog.Warn("call: reply transcription failed", "call_id", s.CallID, "error", err)
		return waitResult{sttFail: true}
	}
	if res.Text == "" {
		return waitResult{silence: true}
	}
	return waitResult{text: res.Text}
}

func replyCallerPath(recPath string) string {
	ext := filepath.Ext(recPath)
	return recPath[:len(recPath)-len(ext)] + "_caller" + ext
}

func wavDurationMs(path string) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	rate, channels, pcm, err := speech.ParseWAV(data)
	if err != nil {
		return 0, err
	}
	if channels == 0 {
		channels = 1
	}
	bytesPerSecond := rate * channels * 2
	if bytesPerSecond == 0 {
		return 0, fmt.Errorf("zero sample rate in %s", path)
	}
	return int64(len(pcm)) * 1000 / int64(bytesPerSecond), nil
}

