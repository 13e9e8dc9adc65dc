package postgres

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vocira/vocira/internal/domain"
	"github.com/vocira/vocira/internal/domain/models"
)

type ContactRepository struct {
	BaseRepository
}

func NewContactRepository(pool *pgxpool.Pool) *ContactRepository {
	return &ContactRepository{
		BaseRepository: NewBaseRepository(pool),
	}
}

func (r *ContactRepository) Create(ctx context.Context, contact *models.Contact) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO vocira_contacts (
			id, campaign_id, phone, first_name, last_name, company, status, attempts, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW()
		)`

	status := contact.Status
	if status == "" {
		status = models.ContactStatusPending
	}

	_, err := r.conn(ctx).Exec(ctx, query,
		contact.ID,
		contact.CampaignID,
		contact.Phone,
		nullString(contact.FirstName),
		nullString(contact.LastName),
		nullString(contact.Company),
		status,
		contact.Attempts,
	)

	return err
}

// FetchDueContacts returns pending contacts whose retry hold, if any, has
// elapsed. Oldest first, so retried contacts do not starve fresh ones.
func (r *ContactRepository) FetchDueContacts(ctx context.Context, campaignID string, limit int) ([]*models.Contact, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, campaign_id, phone, first_name, last_name, company, status, attempts, created_at, updated_at
		FROM vocira_contacts
		WHERE campaign_id = $1
		  AND status = $2
		  AND (not_before IS NULL OR not_before <= NOW())
		ORDER BY created_at
		LIMIT $3`

	rows, err := r.conn(ctx).Query(ctx, query, campaignID, models.ContactStatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanContacts(rows)
}

// MarkCalling claims a contact for one attempt. The status guard makes the
// claim exclusive when several runners poll the same campaign.
func (r *ContactRepository) MarkCalling(ctx context.Context, contactID string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE vocira_contacts
		SET status = $1, attempts = attempts + 1, updated_at = NOW()
		WHERE id = $2 AND status = $3`

	result, err := r.conn(ctx).Exec(ctx, query,
		models.ContactStatusCalling,
		contactID,
		models.ContactStatusPending,
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return domain.ErrContactNotPending
	}

	return nil
}

func (r *ContactRepository) MarkDone(ctx context.Context, contactID string, status models.ContactStatus) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE vocira_contacts
		SET status = $1, updated_at = NOW()
		WHERE id = $2`

	result, err := r.conn(ctx).Exec(ctx, query, status, contactID)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return domain.ErrContactNotFound
	}

	return nil
}

func (r *ContactRepository) scanContacts(rows pgx.Rows) ([]*models.Contact, error) {
	var contacts []*models.Contact

	for rows.Next() {
		var contact models.Contact
		var firstName, lastName, company sql.NullString

		err := rows.Scan(
			&contact.ID,
			&contact.CampaignID,
			&contact.Phone,
			&firstName,
			&lastName,
			&company,
			&contact.Status,
			&contact.Attempts,
			&contact.CreatedAt,
			&contact.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		contact.FirstName = getString(firstName)
		contact.LastName = getString(lastName)
		contact.Company = getString(company)

		contacts = append(contacts, &contact)
	}

	return contacts, rows.Err()
}
