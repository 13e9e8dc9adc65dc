package domain

import "errors"

// Sentinel errors shared by the persistence adapters and the surfaces that
// translate them into responses.
var (
	// Campaign errors
	ErrCampaignNotFound = errors.New("campaign not found")

	// Contact errors
	ErrContactNotFound   = errors.New("contact not found")
	ErrContactNotPending = errors.New("contact is not pending")

	// Call record errors
	ErrCallNotFound     = errors.New("call record not found")
	ErrAlreadyFinalized = errors.New("call record already finalized")
)
