package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/vocira/vocira/internal/adapters/circuitbreaker"
	"github.com/vocira/vocira/shared/httpclient"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// A dead batch endpoint trips after breakerThreshold straight failures and
// is retried every breakerCooldown. Calls in between degrade the way a
// failed transcription does instead of stalling on HTTP timeouts.
const (
	breakerThreshold = 5
	breakerCooldown  = 30 * time.Second
)

// Client talks to both speech backends: a whisper-compatible HTTP endpoint
// for batch transcription and a WebSocket endpoint for streaming sessions.
type Client struct {
	batchURL  string
	streamURL string
	apiKey    string
	model     string
	http      *http.Client
	breaker   *circuitbreaker.Breaker
}

var _ Gateway = (*Client)(nil)

func NewClient(batchURL, streamURL, apiKey, model string) *Client {
	return &Client{
		batchURL:  batchURL,
		streamURL: streamURL,
		apiKey:    apiKey,
		model:     model,
		http:      httpclient.New(),
		breaker:   circuitbreaker.New(breakerThreshold, breakerCooldown),
	}
}

type batchResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Language string  `json:"language"`
	// language_probability is what faster-whisper servers report.
	LanguageProbability float64 `json:"language_probability"`
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// TranscribeFile posts the audio file to the batch endpoint. It is
// idempotent and has no side effect beyond reading the file.
func (c *Client) TranscribeFile(ctx context.Context, path string, opts TranscribeOptions) (*Result, error) {
	ctx, span := otel.Tracer("vocira-speech").Start(ctx, "speech.transcribe_file",
		trace.WithAttributes(
			attribute.String("asr.model", c.model),
			attribute.String("audio.path", filepath.Base(path)),
			attribute.Bool("asr.vad_filter", opts.VADFilter),
			attribute.Int("asr.beam_size", opts.BeamSize),
		))
	defer span.End()

	if err := c.breaker.Allow(); err != nil {
		span.SetStatus(codes.Error, "endpoint circuit open")
		return nil, fmt.Errorf("transcription endpoint: %w", err)
	}

	audio, err := os.ReadFile(path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read audio file failed")
		return nil, fmt.Errorf("read audio file: %w", err)
	}
	span.SetAttributes(attribute.Int("audio.bytes", len(audio)))

	startTime := time.Now()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("write audio: %w", err)
	}

	fields := map[string]string{
		"model":                      c.model,
		"response_format":            "verbose_json",
		"vad_filter":                 strconv.FormatBool(opts.VADFilter),
		"condition_on_previous_text": strconv.FormatBool(opts.ConditionOnPrevText),
	}
	if opts.BeamSize > 0 {
		fields["beam_size"] = strconv.Itoa(opts.BeamSize)
	}
	if opts.NoSpeechThreshold > 0 {
		fields["no_speech_threshold"] = strconv.FormatFloat(opts.NoSpeechThreshold, 'f', -1, 64)
	}
	if opts.Language != "" {
		fields["language"] = opts.Language
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.batchURL, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.Observe(err)
		slog.Error("speech: batch request failed", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "send request failed")
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("ASR error (status %d): %s", resp.StatusCode, string(body))
		c.breaker.Observe(err)
		slog.Error("speech: batch error response", "status", resp.StatusCode, "body", string(body))
		span.RecordError(err)
		span.SetStatus(codes.Error, "ASR service error")
		return nil, err
	}
	c.breaker.Observe(nil)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var br batchResponse
	if err := json.Unmarshal(body, &br); err != nil {
		slog.Error("speech: failed to parse batch response", "error", err, "body", string(body))
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse response failed")
		return nil, fmt.Errorf("parse response: %w", err)
	}

	elapsed := time.Since(startTime)
	result := &Result{
		Text:               br.Text,
		DurationMs:         int64(br.Duration * 1000),
		LanguageConfidence: br.LanguageProbability,
		LatencyMs:          elapsed.Milliseconds(),
	}

	slog.Info("speech: transcription received", "latency", elapsed, "chars", len(result.Text), "preview", truncateString(result.Text, 50))
	span.SetAttributes(
		attribute.Int64("asr.latency_ms", result.LatencyMs),
		attribute.Int("transcript.length", len(result.Text)),
	)
	span.SetStatus(codes.Ok, "transcription successful")
	return result, nil
}

// IsAvailable probes the batch endpoint. Used once at startup; a refusal
// here fails fast instead of failing every AMD.
func (c *Client) IsAvailable(ctx context.Context) bool {
	u, err := url.Parse(c.batchURL)
	if err != nil {
		return false
	}
	u.Path = "/health"
	u.RawQuery = ""

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		slog.Warn("speech: availability probe failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// StreamEndpoint returns the fork target URL for a call.
func (c *Client) StreamEndpoint(callID string) string {
	return c.streamURL + "?call_id=" + url.QueryEscape(callID)
}
