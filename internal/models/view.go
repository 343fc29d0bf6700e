package models

import "time"

// Progress is the derived completion state of an engagement
type Progress struct {
	CompletionPercentage int    `json:"completion_percentage"`
	CurrentStage         string `json:"current_stage"`
}

// EngagementView is everything the presentation layer renders for one client
type EngagementView struct {
	Client       *Client               `json:"client"`
	Offering     *OfferingSummary      `json:"offering"`
	Stages       []Stage               `json:"stages"`
	Documents    []DocumentRequirement `json:"documents"`
	Installments []Installment         `json:"installments"`
	Meetings     []MeetingRecord       `json:"meetings"`
	Progress     Progress              `json:"progress"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// ProgressEvent is pushed to feed subscribers after every mutation
type ProgressEvent struct {
	Type     string    `json:"type"`
	Command  string    `json:"command"`
	Progress Progress  `json:"progress"`
	At       time.Time `json:"at"`
}

// SetDocumentRequest is the body of PUT /documents/{name}. Flags are pointers
// so a missing field is rejected instead of read as false.
type SetDocumentRequest struct {
	Received *bool `json:"received"`
}

// SetInstallmentRequest is the body of PUT /installments/{ordinal}
type SetInstallmentRequest struct {
	Paid *bool `json:"paid"`
}

// SetStageRequest is the body of PUT /stages/{name}
type SetStageRequest struct {
	Completed *bool `json:"completed"`
}

// RecordMeetingRequest is the body of POST /meetings
type RecordMeetingRequest struct {
	Date    string `json:"date"`
	Summary string `json:"summary"`
}
