package models

import "time"

type CampaignStatus string

const (
	CampaignStatusActive   CampaignStatus = "active"
	CampaignStatusPaused   CampaignStatus = "paused"
	CampaignStatusFinished CampaignStatus = "finished"
)

// Campaign groups contacts under one scenario and one caller identity.
type Campaign struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	ScenarioPath string         `json:"scenario_path"`
	CallerID     string         `json:"caller_id"`
	Status       CampaignStatus `json:"status"`
	MaxAttempts  int            `json:"max_attempts"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// CampaignStats are the aggregate counts the admin surface exposes.
// Individual failures stay in the logs.
type CampaignStats struct {
	CampaignID string              `json:"campaign_id"`
	Total      int                 `json:"total"`
	ByStatus   map[FinalStatus]int `json:"by_status"`
}
