// Package id provides ID generation helpers used across services.
package id

import (
	nanoid "github.com/matoous/go-nanoid/v2"
)

const DefaultLength = 21

const (
	PrefixCampaign   = "camp"
	PrefixContact    = "ct"
	PrefixCallRecord = "cr"
	PrefixCallEvent  = "ce"
	PrefixScenario   = "scn"
	PrefixRecording  = "rec"
)

func New(prefix string) string {
	id, err := nanoid.New(DefaultLength)
	if err != nil {
		panic("nanoid generation failed: " + err.Error())
	}
	return prefix + "_" + id
}

func NewWithLength(prefix string, length int) string {
	id, err := nanoid.New(length)
	if err != nil {
		panic("nanoid generation failed: " + err.Error())
	}
	return prefix + "_" + id
}

func NewCampaign() string   { return New(PrefixCampaign) }
func NewContact() string    { return New(PrefixContact) }
func NewCallRecord() string { return New(PrefixCallRecord) }
func NewCallEvent() string  { return New(PrefixCallEvent) }
func NewScenario() string   { return New(PrefixScenario) }
