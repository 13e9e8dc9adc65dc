package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
)

func TestTransactionManager_GetTx_NoTransaction(t *testing.T) {
	ctx := context.Background()

	tx := GetTx(ctx)
	if tx != nil {
		t.Error("expected nil transaction in empty context")
	}
}

func TestTransactionManager_GetTx_WithTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	ctx := setupMockContext(mock)

	if GetTx(ctx) == nil {
		t.Error("expected transaction in transaction context")
	}
}

func TestTransactionManager_GetConn_PrefersTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	ctx := setupMockContext(mock)

	conn := GetConn(ctx, nil)
	if conn != GetTx(ctx) {
		t.Error("expected the transaction, not the pool")
	}
}

func TestTransactionManager_NestedTransactionReusesExisting(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	// An enclosing transaction is already in the context; the manager must
	// run the function inside it without touching the pool.
	tm := NewTransactionManager(nil)
	ctx := setupMockContext(mock)

	ran := false
	err = tm.WithTransaction(ctx, func(txCtx context.Context) error {
		ran = true
		if GetTx(txCtx) == nil {
			t.Error("expected the enclosing transaction in the nested context")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ran {
		t.Error("nested function did not run")
	}

	// No Begin/Commit/Rollback may have reached the mock.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected transaction calls: %v", err)
	}
}

func TestTransactionManager_NestedTransactionPropagatesError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	tm := NewTransactionManager(nil)
	ctx := setupMockContext(mock)

	testErr := errors.New("scenario rejected")
	err = tm.WithTransaction(ctx, func(txCtx context.Context) error {
		return testErr
	})
	if !errors.Is(err, testErr) {
		t.Fatalf("expected the function error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected transaction calls: %v", err)
	}
}
