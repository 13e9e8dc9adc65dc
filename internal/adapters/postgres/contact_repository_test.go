package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/vocira/vocira/internal/domain"
	"github.com/vocira/vocira/internal/domain/models"
)

func TestContactRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &ContactRepository{
		BaseRepository: BaseRepository{pool: nil},
	}

	contact := &models.Contact{
		ID:         "ct_1",
		CampaignID: "camp_1",
		Phone:      "+33612345678",
		FirstName:  "Ana",
		LastName:   "Durand",
		Status:     models.ContactStatusPending,
	}

	mock.ExpectExec("INSERT INTO vocira_contacts").
		WithArgs("ct_1", "camp_1", "+33612345678",
			nullString("Ana"), nullString("Durand"), nullString(""),
			models.ContactStatusPending, 0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	ctx := setupMockContext(mock)
	err = repo.Create(ctx, contact)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestContactRepository_Create_EmptyStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &ContactRepository{
		BaseRepository: BaseRepository{pool: nil},
	}

	contact := &models.Contact{
		ID:         "ct_2",
		CampaignID: "camp_1",
		Phone:      "+33612345679",
	}

	// Should default to pending
	mock.ExpectExec("INSERT INTO vocira_contacts").
		WithArgs("ct_2", "camp_1", "+33612345679",
			nullString(""), nullString(""), nullString(""),
			models.ContactStatusPending, 0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	ctx := setupMockContext(mock)
	err = repo.Create(ctx, contact)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestContactRepository_FetchDueContacts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &ContactRepository{
		BaseRepository: BaseRepository{pool: nil},
	}

	now := time.Now()

	rows := pgxmock.NewRows([]string{
		"id", "campaign_id", "phone", "first_name", "last_name", "company",
		"status", "attempts", "created_at", "updated_at",
	}).
		AddRow("ct_1", "camp_1", "+33612345678", "Ana", "Durand", nil,
			models.ContactStatusPending, 0, now, now).
		AddRow("ct_2", "camp_1", "+33612345679", nil, nil, "Voltaire Energie",
			models.ContactStatusPending, 1, now, now)

	mock.ExpectQuery("SELECT (.+) FROM vocira_contacts").
		WithArgs("camp_1", models.ContactStatusPending, 20).
		WillReturnRows(rows)

	ctx := setupMockContext(mock)
	contacts, err := repo.FetchDueContacts(ctx, "camp_1", 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(contacts) != 2 {
		t.Fatalf("expected 2 contacts, got %d", len(contacts))
	}

	if contacts[0].FirstName != "Ana" || contacts[0].Company != "" {
		t.Errorf("contact 1 scanned as %+v", contacts[0])
	}

	if contacts[1].FirstName != "" || contacts[1].Company != "Voltaire Energie" {
		t.Errorf("contact 2 scanned as %+v", contacts[1])
	}

	if contacts[1].Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", contacts[1].Attempts)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestContactRepository_FetchDueContacts_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &ContactRepository{
		BaseRepository: BaseRepository{pool: nil},
	}

	rows := pgxmock.NewRows([]string{
		"id", "campaign_id", "phone", "first_name", "last_name", "company",
		"status", "attempts", "created_at", "updated_at",
	})

	mock.ExpectQuery("SELECT (.+) FROM vocira_contacts").
		WithArgs("camp_idle", models.ContactStatusPending, 20).
		WillReturnRows(rows)

	ctx := setupMockContext(mock)
	contacts, err := repo.FetchDueContacts(ctx, "camp_idle", 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(contacts) != 0 {
		t.Errorf("expected 0 contacts, got %d", len(contacts))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestContactRepository_MarkCalling(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &ContactRepository{
		BaseRepository: BaseRepository{pool: nil},
	}

	mock.ExpectExec("UPDATE vocira_contacts").
		WithArgs(models.ContactStatusCalling, "ct_1", models.ContactStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ctx := setupMockContext(mock)
	err = repo.MarkCalling(ctx, "ct_1")
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestContactRepository_MarkCalling_AlreadyClaimed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &ContactRepository{
		BaseRepository: BaseRepository{pool: nil},
	}

	// Another runner claimed the contact between fetch and mark.
	mock.ExpectExec("UPDATE vocira_contacts").
		WithArgs(models.ContactStatusCalling, "ct_1", models.ContactStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ctx := setupMockContext(mock)
	err = repo.MarkCalling(ctx, "ct_1")
	if !errors.Is(err, domain.ErrContactNotPending) {
		t.Errorf("expected ErrContactNotPending, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestContactRepository_MarkDone(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &ContactRepository{
		BaseRepository: BaseRepository{pool: nil},
	}

	mock.ExpectExec("UPDATE vocira_contacts").
		WithArgs(models.ContactStatusExhausted, "ct_1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ctx := setupMockContext(mock)
	err = repo.MarkDone(ctx, "ct_1", models.ContactStatusExhausted)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestContactRepository_MarkDone_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &ContactRepository{
		BaseRepository: BaseRepository{pool: nil},
	}

	mock.ExpectExec("UPDATE vocira_contacts").
		WithArgs(models.ContactStatusCompleted, "ct_missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ctx := setupMockContext(mock)
	err = repo.MarkDone(ctx, "ct_missing", models.ContactStatusCompleted)
	if !errors.Is(err, domain.ErrContactNotFound) {
		t.Errorf("expected ErrContactNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
