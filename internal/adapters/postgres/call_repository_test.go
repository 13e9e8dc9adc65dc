package postgres

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/vocira/vocira/internal/domain"
	"github.com/vocira/vocira/internal/domain/models"
)

func TestCallRepository_CreateCallRecord(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &CallRepository{
		BaseRepository: BaseRepository{pool: nil},
	}

	mock.ExpectExec("INSERT INTO vocira_calls").
		WithArgs(pgxmock.AnyArg(), "camp_1", "ct_1", "call_abc123", models.PhaseDialing).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	ctx := setupMockContext(mock)
	rowID, err := repo.CreateCallRecord(ctx, "camp_1", "ct_1", "call_abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(rowID, "cr_") {
		t.Errorf("expected cr_ row id, got %s", rowID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCallRepository_CreateCallRecord_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &CallRepository{
		BaseRepository: BaseRepository{pool: nil},
	}

	mock.ExpectExec("INSERT INTO vocira_calls").
		WithArgs(pgxmock.AnyArg(), "camp_1", "ct_1", "call_abc123", models.PhaseDialing).
		WillReturnError(errors.New("connection refused"))

	ctx := setupMockContext(mock)
	rowID, err := repo.CreateCallRecord(ctx, "camp_1", "ct_1", "call_abc123")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if rowID != "" {
		t.Errorf("expected empty row id on failure, got %s", rowID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCallRepository_UpdateCallPhase(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &CallRepository{
		BaseRepository: BaseRepository{pool: nil},
	}

	at := time.Now()

	mock.ExpectExec("UPDATE vocira_calls").
		WithArgs(models.PhaseWaiting, at, "cr_1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ctx := setupMockContext(mock)
	err = repo.UpdateCallPhase(ctx, "cr_1", models.PhaseWaiting, at)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCallRepository_UpdateCallPhase_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &CallRepository{
		BaseRepository: BaseRepository{pool: nil},
	}

	at := time.Now()

	mock.ExpectExec("UPDATE vocira_calls").
		WithArgs(models.PhaseWaiting, at, "cr_missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ctx := setupMockContext(mock)
	err = repo.UpdateCallPhase(ctx, "cr_missing", models.PhaseWaiting, at)
	if !errors.Is(err, domain.ErrCallNotFound) {
		t.Errorf("expected ErrCallNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCallRepository_AppendCallEvent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &CallRepository{
		BaseRepository: BaseRepository{pool: nil},
	}

	at := time.Now()
	payload := []byte(`{"text":"Bonjour Ana"}`)

	mock.ExpectExec("INSERT INTO vocira_call_events").
		WithArgs(pgxmock.AnyArg(), "cr_1", models.EventBotPrompt, payload, at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	ctx := setupMockContext(mock)
	err = repo.AppendCallEvent(ctx, "cr_1", models.EventBotPrompt, payload, at)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCallRepository_FinalizeCall(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &CallRepository{
		BaseRepository: BaseRepository{pool: nil},
	}

	mock.ExpectExec("UPDATE vocira_calls").
		WithArgs(models.StatusLead, 42.5, 80.0, nullString("/recordings/call_abc123.wav"), "cr_1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ctx := setupMockContext(mock)
	err = repo.FinalizeCall(ctx, "cr_1", models.StatusLead, 42.5, 80.0, "/recordings/call_abc123.wav")
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCallRepository_FinalizeCall_NoRecording(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &CallRepository{
		BaseRepository: BaseRepository{pool: nil},
	}

	// A call that never got answered has no recording; the column stays NULL.
	mock.ExpectExec("UPDATE vocira_calls").
		WithArgs(models.StatusNoAnswer, 0.0, 0.0, nullString(""), "cr_1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ctx := setupMockContext(mock)
	err = repo.FinalizeCall(ctx, "cr_1", models.StatusNoAnswer, 0, 0, "")
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCallRepository_FinalizeCall_AlreadyFinalized(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &CallRepository{
		BaseRepository: BaseRepository{pool: nil},
	}

	mock.ExpectExec("UPDATE vocira_calls").
		WithArgs(models.StatusFailed, 10.0, 0.0, nullString(""), "cr_1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ctx := setupMockContext(mock)
	err = repo.FinalizeCall(ctx, "cr_1", models.StatusFailed, 10, 0, "")
	if !errors.Is(err, domain.ErrAlreadyFinalized) {
		t.Errorf("expected ErrAlreadyFinalized, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCallRepository_ScheduleRetry(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &CallRepository{
		BaseRepository: BaseRepository{pool: nil},
	}

	notBefore := time.Now().Add(30 * time.Minute)

	mock.ExpectExec("WITH retried AS").
		WithArgs("cr_1", 2, notBefore, models.ContactStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ctx := setupMockContext(mock)
	err = repo.ScheduleRetry(ctx, "cr_1", notBefore, 2)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCallRepository_ScheduleRetry_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &CallRepository{
		BaseRepository: BaseRepository{pool: nil},
	}

	notBefore := time.Now().Add(5 * time.Minute)

	mock.ExpectExec("WITH retried AS").
		WithArgs("cr_missing", 1, notBefore, models.ContactStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ctx := setupMockContext(mock)
	err = repo.ScheduleRetry(ctx, "cr_missing", notBefore, 1)
	if !errors.Is(err, domain.ErrCallNotFound) {
		t.Errorf("expected ErrCallNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
