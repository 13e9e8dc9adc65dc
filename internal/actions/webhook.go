package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vocira/vocira/internal/scenario"
	"github.com/vocira/vocira/shared/httpclient"
)

// WebhookConfig posts a call outcome to an external system. The body is a
// template interpolated with the call's variables plus call_id,
// campaign_id and contact_id.
type WebhookConfig struct {
	URL    string `json:"url"`
	Method string `json:"method,omitempty"`
	Body   string `json:"body,omitempty"`
}

type WebhookExecutor struct {
	client *http.Client
}

func NewWebhookExecutor() *WebhookExecutor {
	return &WebhookExecutor{client: httpclient.NewShort()}
}

func (e *WebhookExecutor) Execute(ctx context.Context, call Call, config json.RawMessage) (string, error) {
	var cfg WebhookConfig
	if err := json.Unmarshal(config, &cfg); err != nil {
		return "", fmt.Errorf("parse webhook config: %w", err)
	}
	if cfg.URL == "" {
		return "", fmt.Errorf("webhook without url")
	}
	if cfg.Method == "" {
		cfg.Method = http.MethodPost
	}

	vars := make(map[string]string, len(call.Variables)+3)
	for k, v := range call.Variables {
		vars[k] = v
	}
	vars["call_id"] = call.CallID
	vars["campaign_id"] = call.CampaignID
	vars["contact_id"] = call.ContactID

	body := scenario.Interpolate(cfg.Body, vars)

	req, err := http.NewRequestWithContext(ctx, cfg.Method, cfg.URL, strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create webhook request: %w", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("webhook %s answered %d", cfg.URL, resp.StatusCode)
	}
	return "", nil
}
