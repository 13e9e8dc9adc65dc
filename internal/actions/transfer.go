package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
)

// Switch is the slice of the softswitch client a transfer needs.
type Switch interface {
	SetVar(ctx context.Context, callID, key, value string) error
	Transfer(ctx context.Context, callID, extension, dialplanContext string) error
}

// TransferConfig moves the answered call to a dialplan extension,
// typically a human closer. When the extension does not pick up within
// TimeoutS, the scenario resumes at OnNoAnswer instead of dropping the
// lead on a dead leg.
type TransferConfig struct {
	Destination string `json:"destination"`
	Context     string `json:"context,omitempty"`
	TimeoutS    int    `json:"timeout_s,omitempty"`
	OnNoAnswer  string `json:"on_no_answer,omitempty"`
}

type TransferExecutor struct {
	sw Switch
}

func NewTransferExecutor(sw Switch) *TransferExecutor {
	return &TransferExecutor{sw: sw}
}

func (e *TransferExecutor) Execute(ctx context.Context, call Call, config json.RawMessage) (string, error) {
	var cfg TransferConfig
	if err := json.Unmarshal(config, &cfg); err != nil {
		return "", fmt.Errorf("parse transfer config: %w", err)
	}
	if cfg.Destination == "" {
		return "", fmt.Errorf("transfer without destination")
	}
	if cfg.Context == "" {
		cfg.Context = "default"
	}

	if cfg.TimeoutS > 0 {
		if err := e.sw.SetVar(ctx, call.CallID, "call_timeout", strconv.Itoa(cfg.TimeoutS)); err != nil {
			slog.Warn("actions: setting transfer timeout failed",
				"call_id", call.CallID, "error", err)
		}
	}

	if err := e.sw.Transfer(ctx, call.CallID, cfg.Destination, cfg.Context); err != nil {
		// The callee is still on the line; give the scenario a chance to
		// close politely rather than leaving them hanging.
		return cfg.OnNoAnswer, fmt.Errorf("transfer to %s: %w", cfg.Destination, err)
	}

	slog.Info("actions: call transferred",
		"call_id", call.CallID, "destination", cfg.Destination, "context", cfg.Context)
	return "", nil
}
