package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vocira/vocira/internal/domain"
	"github.com/vocira/vocira/internal/domain/models"
	"github.com/vocira/vocira/shared/id"
)

// CallRepository persists call rows and their append-only event log. Each
// row is owned by exactly one call context, so writes never contend.
type CallRepository struct {
	BaseRepository
}

func NewCallRepository(pool *pgxpool.Pool) *CallRepository {
	return &CallRepository{
		BaseRepository: NewBaseRepository(pool),
	}
}

func (r *CallRepository) CreateCallRecord(ctx context.Context, campaignID, contactID, callID string) (string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO vocira_calls (
			id, campaign_id, contact_id, call_id, phase, created_at
		) VALUES (
			$1, $2, $3, $4, $5, NOW()
		)`

	rowID := id.NewCallRecord()
	_, err := r.conn(ctx).Exec(ctx, query,
		rowID,
		campaignID,
		contactID,
		callID,
		models.PhaseDialing,
	)
	if err != nil {
		return "", err
	}

	return rowID, nil
}

func (r *CallRepository) UpdateCallPhase(ctx context.Context, rowID string, phase models.Phase, at time.Time) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE vocira_calls
		SET phase = $1, phase_at = $2
		WHERE id = $3`

	result, err := r.conn(ctx).Exec(ctx, query, phase, at, rowID)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return domain.ErrCallNotFound
	}

	return nil
}

func (r *CallRepository) AppendCallEvent(ctx context.Context, rowID string, eventType models.CallEventType, payload []byte, at time.Time) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO vocira_call_events (
			id, call_record_id, type, payload, created_at
		) VALUES (
			$1, $2, $3, $4, $5
		)`

	_, err := r.conn(ctx).Exec(ctx, query,
		id.NewCallEvent(),
		rowID,
		eventType,
		payload,
		at,
	)

	return err
}

// FinalizeCall stamps the terminal status. The finalized_at guard makes it
// a no-op on a row that was already closed, even across processes.
func (r *CallRepository) FinalizeCall(ctx context.Context, rowID string, status models.FinalStatus, durationS float64, qualification float64, recordingPath string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE vocira_calls
		SET final_status = $1,
		    duration_s = $2,
		    qualification_score = $3,
		    recording_path = $4,
		    finalized_at = NOW()
		WHERE id = $5 AND finalized_at IS NULL`

	result, err := r.conn(ctx).Exec(ctx, query,
		status,
		durationS,
		qualification,
		nullString(recordingPath),
		rowID,
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return domain.ErrAlreadyFinalized
	}

	return nil
}

// ScheduleRetry stamps the retry budget on the call row and, in the same
// statement, flips its contact back to pending with the new not-before.
func (r *CallRepository) ScheduleRetry(ctx context.Context, rowID string, notBefore time.Time, attemptsLeft int) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		WITH retried AS (
			UPDATE vocira_calls
			SET attempts_left = $2, not_before = $3
			WHERE id = $1
			RETURNING contact_id
		)
		UPDATE vocira_contacts c
		SET status = $4, not_before = $3, updated_at = NOW()
		FROM retried
		WHERE c.id = retried.contact_id`

	result, err := r.conn(ctx).Exec(ctx, query,
		rowID,
		attemptsLeft,
		notBefore,
		models.ContactStatusPending,
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return domain.ErrCallNotFound
	}

	return nil
}
