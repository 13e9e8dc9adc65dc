package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vocira/vocira/internal/domain"
	"github.com/vocira/vocira/internal/domain/models"
)

type CampaignRepository struct {
	BaseRepository
}

func NewCampaignRepository(pool *pgxpool.Pool) *CampaignRepository {
	return &CampaignRepository{
		BaseRepository: NewBaseRepository(pool),
	}
}

func (r *CampaignRepository) Create(ctx context.Context, camp *models.Campaign) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO vocira_campaigns (
			id, name, scenario_path, caller_id, status, max_attempts, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, NOW(), NOW()
		)`

	status := camp.Status
	if status == "" {
		status = models.CampaignStatusActive
	}

	_, err := r.conn(ctx).Exec(ctx, query,
		camp.ID,
		camp.Name,
		camp.ScenarioPath,
		camp.CallerID,
		status,
		camp.MaxAttempts,
	)

	return err
}

func (r *CampaignRepository) GetByID(ctx context.Context, campaignID string) (*models.Campaign, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, name, scenario_path, caller_id, status, max_attempts, created_at, updated_at
		FROM vocira_campaigns
		WHERE id = $1`

	return r.scanCampaign(r.conn(ctx).QueryRow(ctx, query, campaignID))
}

func (r *CampaignRepository) ListActive(ctx context.Context) ([]*models.Campaign, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, name, scenario_path, caller_id, status, max_attempts, created_at, updated_at
		FROM vocira_campaigns
		WHERE status = $1
		ORDER BY created_at`

	rows, err := r.conn(ctx).Query(ctx, query, models.CampaignStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanCampaigns(rows)
}

// Stats aggregates finalized calls by status. Rows still in flight are not
// counted.
func (r *CampaignRepository) Stats(ctx context.Context, campaignID string) (*models.CampaignStats, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT final_status, COUNT(*)
		FROM vocira_calls
		WHERE campaign_id = $1 AND finalized_at IS NOT NULL
		GROUP BY final_status`

	rows, err := r.conn(ctx).Query(ctx, query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &models.CampaignStats{
		CampaignID: campaignID,
		ByStatus:   make(map[models.FinalStatus]int),
	}

	for rows.Next() {
		var status models.FinalStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}

	return stats, rows.Err()
}

func (r *CampaignRepository) scanCampaign(row pgx.Row) (*models.Campaign, error) {
	var camp models.Campaign

	err := row.Scan(
		&camp.ID,
		&camp.Name,
		&camp.ScenarioPath,
		&camp.CallerID,
		&camp.Status,
		&camp.MaxAttempts,
		&camp.CreatedAt,
		&camp.UpdatedAt,
	)

	if err != nil {
		if checkNoRows(err) {
			return nil, domain.ErrCampaignNotFound
		}
		return nil, err
	}

	return &camp, nil
}

func (r *CampaignRepository) scanCampaigns(rows pgx.Rows) ([]*models.Campaign, error) {
	var camps []*models.Campaign

	for rows.Next() {
		var camp models.Campaign

		err := rows.Scan(
			&camp.ID,
			&camp.Name,
			&camp.ScenarioPath,
			&camp.CallerID,
			&camp.Status,
			&camp.MaxAttempts,
			&camp.CreatedAt,
			&camp.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		camps = append(camps, &camp)
	}

	return camps, rows.Err()
}
