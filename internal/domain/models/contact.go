package models

import "time"

type ContactStatus string

const (
	ContactStatusPending   ContactStatus = "pending"
	ContactStatusCalling   ContactStatus = "calling"
	ContactStatusCompleted ContactStatus = "completed"
	ContactStatusExhausted ContactStatus = "exhausted"
)

// Contact is one callee in a campaign's list.
type Contact struct {
	ID         string        `json:"id"`
	CampaignID string        `json:"campaign_id"`
	Phone      string        `json:"phone"`
	FirstName  string        `json:"first_name,omitempty"`
	LastName   string        `json:"last_name,omitempty"`
	Company    string        `json:"company,omitempty"`
	Status     ContactStatus `json:"status"`
	Attempts   int           `json:"attempts"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Variables returns the substitution table a scenario interpolates into its
// prompts and texts. The contact's employer is exposed as contact_company;
// plain company is the scenario's own calling identity.
func (c *Contact) Variables() map[string]string {
	return map[string]string{
		"first_name":      c.FirstName,
		"last_name":       c.LastName,
		"contact_company": c.Company,
		"phone":           c.Phone,
	}
}
