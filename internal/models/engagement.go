package models

import (
	"time"
)

// Stage is one weighted milestone of a client's engagement
type Stage struct {
	Name      string `json:"name"`
	Weight    int    `json:"weight"`
	Completed bool   `json:"completed"`
	// AutoCompleted is set when a gate, not the user, completed the stage
	AutoCompleted bool `json:"auto_completed,omitempty"`
	// GateFired is set while the stage's gate condition holds and has fired.
	// A gate only completes the stage on the edge that sets it.
	GateFired bool `json:"gate_fired,omitempty"`
}

// DocumentRequirement tracks whether a required document was received
type DocumentRequirement struct {
	Name     string `json:"name"`
	Received bool   `json:"received"`
}

// Installment is one payment installment (1-based ordinal)
type Installment struct {
	Ordinal int  `json:"ordinal"`
	Paid    bool `json:"paid"`
}

// MeetingRecord is an append-only entry in the meeting log
type MeetingRecord struct {
	ID         string    `json:"id"`
	Date       string    `json:"date"` // YYYY-MM-DD
	Summary    string    `json:"summary"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Engagement is the full mutable state of one client's portal session.
// Stage order is the template order and defines the current stage.
type Engagement struct {
	ID           string                `json:"id"`
	ClientID     string                `json:"-"`
	OfferingID   string                `json:"offering_id"`
	Stages       []Stage               `json:"stages"`
	Documents    []DocumentRequirement `json:"documents"`
	Installments []Installment         `json:"installments"`
	Meetings     []MeetingRecord       `json:"meetings"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// Clone returns a deep copy of the engagement
func (e *Engagement) Clone() *Engagement {
	if e == nil {
		return nil
	}
	c := *e
	c.Stages = cloneSlice(e.Stages)
	c.Documents = cloneSlice(e.Documents)
	c.Installments = cloneSlice(e.Installments)
	c.Meetings = cloneSlice(e.Meetings)
	return &c
}

// cloneSlice copies s, keeping nil and empty distinct
func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}

// FindStage returns the stage with the exact name, or nil
func (e *Engagement) FindStage(name string) *Stage {
	for i := range e.Stages {
		if e.Stages[i].Name == name {
			return &e.Stages[i]
		}
	}
	return nil
}

// FindDocument returns the document requirement with the exact name, or nil
func (e *Engagement) FindDocument(name string) *DocumentRequirement {
	for i := range e.Documents {
		if e.Documents[i].Name == name {
			return &e.Documents[i]
		}
	}
	return nil
}

// IsIdle reports whether the engagement was last touched before the cutoff
func (e *Engagement) IsIdle(cutoff time.Time) bool {
	return e.UpdatedAt.Before(cutoff)
}
