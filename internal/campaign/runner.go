// Package campaign turns contact lists into dialed calls. The runner polls
// active campaigns on a fixed interval, gates every dial on the legal
// calling hours, and caps how many calls are in flight at once.
package campaign

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/vocira/vocira/internal/adapters/metrics"
	"github.com/vocira/vocira/internal/call"
	"github.com/vocira/vocira/internal/config"
	"github.com/vocira/vocira/internal/domain/models"
	"github.com/vocira/vocira/internal/ports"
)

const closeTimeout = 5 * time.Second

// Dialer places one call and reports how it ended. *call.Controller is the
// production implementation.
type Dialer interface {
	Run(ctx context.Context, camp *models.Campaign, contact *models.Contact) call.Outcome
}

// DialerFactory builds the dialer for one campaign, typically by loading its
// scenario and wiring a call controller around it.
type DialerFactory func(camp *models.Campaign) (Dialer, error)

type Options struct {
	Config    *config.Config
	Campaigns ports.CampaignStore
	Contacts  ports.ContactStore
	Calls     ports.CallStore
	Factory   DialerFactory
}

// Runner drives the outbound dialing loop.
type Runner struct {
	cfg       *config.Config
	campaigns ports.CampaignStore
	contacts  ports.ContactStore
	calls     ports.CallStore
	factory   DialerFactory
	hours     *LegalHours
	sem       *semaphore.Weighted
	now       func() time.Time

	mu      sync.Mutex
	dialers map[string]dialerEntry

	wg sync.WaitGroup
}

// dialerEntry remembers which scenario a cached dialer was built from, so a
// campaign repointed at a new scenario gets a fresh one.
type dialerEntry struct {
	scenarioPath string
	dialer       Dialer
}

func NewRunner(opts Options) (*Runner, error) {
	hours, err := ParseLegalHours(opts.Config.Dialer.LegalHours)
	if err != nil {
		return nil, fmt.Errorf("legal hours: %w", err)
	}
	return &Runner{
		cfg:       opts.Config,
		campaigns: opts.Campaigns,
		contacts:  opts.Contacts,
		calls:     opts.Calls,
		factory:   opts.Factory,
		hours:     hours,
		sem:       semaphore.NewWeighted(int64(opts.Config.Dialer.MaxConcurrentCalls)),
		now:       time.Now,
		dialers:   make(map[string]dialerEntry),
	}, nil
}

// Run polls for due contacts until ctx is cancelled, then waits for the
// calls already in flight to wind down.
func (r *Runner) Run(ctx context.Context) error {
	slog.Info("campaign: runner started",
		"max_concurrent", r.cfg.Dialer.MaxConcurrentCalls,
		"poll_interval_s", r.cfg.Dialer.PollIntervalS)

	ticker := time.NewTicker(time.Duration(r.cfg.Dialer.PollIntervalS) * time.Second)
	defer ticker.Stop()

	r.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("campaign: runner draining")
			r.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			r.pollOnce(ctx)
		}
	}
}

func (r *Runner) pollOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !r.hours.Allows(r.now()) {
		slog.Debug("campaign: outside legal calling hours")
		return
	}
	camps, err := r.campaigns.ListActive(ctx)
	if err != nil {
		slog.Error("campaign: listing active campaigns failed", "error", err)
		return
	}
	for _, camp := range camps {
		r.dispatch(ctx, camp)
	}
}

func (r *Runner) dispatch(ctx context.Context, camp *models.Campaign) {
	dialer, err := r.dialerFor(camp)
	if err != nil {
		slog.Error("campaign: unusable scenario, skipping campaign",
			"campaign_id", camp.ID, "scenario", camp.ScenarioPath, "error", err)
		return
	}
	contacts, err := r.contacts.FetchDueContacts(ctx, camp.ID, r.cfg.Dialer.BatchSize)
	if err != nil {
		slog.Error("campaign: fetching contacts failed",
			"campaign_id", camp.ID, "error", err)
		return
	}
	for _, contact := range contacts {
		if ctx.Err() != nil {
			return
		}
		// The window can close mid-batch; contacts keep their place in
		// the queue.
		if !r.hours.Allows(r.now()) {
			return
		}
		// Cap reached: leave the rest of the batch for the next tick.
		if !r.sem.TryAcquire(1) {
			return
		}
		if err := r.contacts.MarkCalling(ctx, contact.ID); err != nil {
			slog.Error("campaign: marking contact failed",
				"contact_id", contact.ID, "error", err)
			r.sem.Release(1)
			continue
		}
		r.wg.Add(1)
		go r.place(ctx, dialer, camp, contact)
	}
}

func (r *Runner) place(ctx context.Context, dialer Dialer, camp *models.Campaign, contact *models.Contact) {
	defer r.wg.Done()
	defer r.sem.Release(1)

	out := dialer.Run(ctx, camp, contact)

	// Bookkeeping must survive shutdown; the poll context may be gone by
	// the time the call ends.
	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	r.closeAttempt(closeCtx, camp, contact, out)
}

// closeAttempt settles the contact after a call: schedule a retry for
// transient outcomes with attempts to spare, close the contact otherwise.
func (r *Runner) closeAttempt(ctx context.Context, camp *models.Campaign, contact *models.Contact, out call.Outcome) {
	attempts := contact.Attempts + 1
	limit := camp.MaxAttempts
	if limit <= 0 {
		limit = r.cfg.Dialer.MaxAttempts
	}

	if out.Status.IsRetryable() && out.RowID != "" && attempts < limit {
		notBefore := r.now().Add(r.retryDelay(out.Status))
		if err := r.calls.ScheduleRetry(ctx, out.RowID, notBefore, limit-attempts); err != nil {
			slog.Error("campaign: scheduling retry failed",
				"contact_id", contact.ID, "row_id", out.RowID, "error", err)
		} else {
			metrics.RetriesScheduledTotal.WithLabelValues(string(out.Status)).Inc()
			slog.Info("campaign: retry scheduled",
				"contact_id", contact.ID, "status", out.Status,
				"not_before", notBefore, "attempts_left", limit-attempts)
			return
		}
	}

	status := models.ContactStatusCompleted
	if out.Status.IsRetryable() || out.Status == models.StatusFailed {
		status = models.ContactStatusExhausted
	}
	if err := r.contacts.MarkDone(ctx, contact.ID, status); err != nil {
		slog.Error("campaign: closing contact failed",
			"contact_id", contact.ID, "error", err)
	}
}

func (r *Runner) retryDelay(status models.FinalStatus) time.Duration {
	if status == models.StatusBusy {
		return time.Duration(r.cfg.Dialer.RetryBusyMin) * time.Minute
	}
	return time.Duration(r.cfg.Dialer.RetryNoAnswerMin) * time.Minute
}

func (r *Runner) dialerFor(camp *models.Campaign) (Dialer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.dialers[camp.ID]; ok && entry.scenarioPath == camp.ScenarioPath {
		return entry.dialer, nil
	}
	dialer, err := r.factory(camp)
	if err != nil {
		return nil, err
	}
	r.dialers[camp.ID] = dialerEntry{scenarioPath: camp.ScenarioPath, dialer: dialer}
	return dialer, nil
}
