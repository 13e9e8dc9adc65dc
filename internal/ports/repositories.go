package ports

import (
	"context"
	"time"

	"github.com/vocira/vocira/internal/domain/models"
)

// CallStore is the write-only persistence contract for call lifecycle.
// Every operation is atomic; FinalizeCall is invoked exactly once per
// CreateCallRecord.
type CallStore interface {
	CreateCallRecord(ctx context.Context, campaignID, contactID, callID string) (rowID string, err error)
	UpdateCallPhase(ctx context.Context, rowID string, phase models.Phase, at time.Time) error
	AppendCallEvent(ctx context.Context, rowID string, eventType models.CallEventType, payload []byte, at time.Time) error
	FinalizeCall(ctx context.Context, rowID string, status models.FinalStatus, durationS float64, qualification float64, recordingPath string) error
	ScheduleRetry(ctx context.Context, rowID string, notBefore time.Time, attemptsLeft int) error
}

// ContactStore is the read contract for contact lists.
type ContactStore interface {
	FetchDueContacts(ctx context.Context, campaignID string, limit int) ([]*models.Contact, error)
	MarkCalling(ctx context.Context, contactID string) error
	MarkDone(ctx context.Context, contactID string, status models.ContactStatus) error
}

// CampaignStore is the read contract for campaign definitions.
type CampaignStore interface {
	GetByID(ctx context.Context, id string) (*models.Campaign, error)
	ListActive(ctx context.Context) ([]*models.Campaign, error)
	Stats(ctx context.Context, campaignID string) (*models.CampaignStats, error)
}

// TransactionManager scopes several store operations into one transaction.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
