// Package actions executes the tagged records a terminal scenario step
// carries. The dispatch point is core; executors are pluggable. Only the
// transfer executor ships here as part of the call contract; everything
// else (webhooks, email, CRM pushes) registers itself against the
// dispatcher.
package actions

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/vocira/vocira/internal/scenario"
)

// Call carries the identity and substitution table executors may use.
type Call struct {
	CallID     string
	CampaignID string
	ContactID  string
	Variables  map[string]string
}

// Executor runs one action type. A non-empty resume step id sends the
// call back into the scenario instead of terminating (transfer uses this
// for its no-answer fallback).
type Executor interface {
	Execute(ctx context.Context, call Call, config json.RawMessage) (resume string, err error)
}

// Result is the outcome of one dispatched action, persisted as a call
// event by the controller.
type Result struct {
	Type   string
	Resume string
	Err    error
}

// Dispatcher routes actions to their registered executors. Unknown types
// are logged and skipped; an action must never take a call down.
type Dispatcher struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{executors: make(map[string]Executor)}
}

func (d *Dispatcher) Register(actionType string, ex Executor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.executors[actionType] = ex
}

// Run executes the actions in order and reports one result each. Executor
// errors are contained: later actions still run.
func (d *Dispatcher) Run(ctx context.Context, call Call, acts []scenario.Action) []Result {
	results := make([]Result, 0, len(acts))
	for _, act := range acts {
		d.mu.RLock()
		ex, ok := d.executors[act.Type]
		d.mu.RUnlock()

		if !ok {
			slog.Warn("actions: no executor registered, skipping",
				"type", act.Type, "call_id", call.CallID)
			results = append(results, Result{Type: act.Type})
			continue
		}

		resume, err := ex.Execute(ctx, call, act.Config)
		if err != nil {
			slog.Error("actions: executor failed",
				"type", act.Type, "call_id", call.CallID, "error", err)
		}
		results = append(results, Result{Type: act.Type, Resume: resume, Err: err})
	}
	return results
}
