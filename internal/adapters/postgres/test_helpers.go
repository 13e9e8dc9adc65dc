package postgres

import (
	"context"

	"github.com/pashagolub/pgxmock/v3"
)

// setupMockContext plants the mock where GetConn finds a transaction, so
// repository methods run against it instead of a live pool.
func setupMockContext(mock pgxmock.PgxPoolIface) context.Context {
	return context.WithValue(context.Background(), txKey, mock)
}
