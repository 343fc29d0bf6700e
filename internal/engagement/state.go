package engagement

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rma-advocacia/client-portal/internal/models"
)

// InstallmentCount is fixed and independent of the offering
const InstallmentCount = 3

// MeetingDateLayout is the accepted meeting date format
const MeetingDateLayout = "2006-01-02"

// Catalog is the read-only offering source used to initialize sessions
type Catalog interface {
	Offering(id string) (*models.ServiceOffering, error)
}

// Initialize builds a fresh engagement for the offering: stages in template
// order, nothing received, nothing paid, no meetings.
func Initialize(cat Catalog, offeringID, clientID string) (*models.Engagement, error) {
	offering, err := cat.Offering(offeringID)
	if err != nil {
		return nil, err
	}
	if offering == nil {
		return nil, notFound(KindOffering, offeringID)
	}

	stages := make([]models.Stage, 0, len(offering.Stages))
	for _, tmpl := range offering.Stages {
		stages = append(stages, models.Stage{Name: tmpl.Name, Weight: tmpl.Weight})
	}

	docs := make([]models.DocumentRequirement, 0, len(offering.RequiredDocuments))
	for _, name := range offering.RequiredDocuments {
		docs = append(docs, models.DocumentRequirement{Name: name})
	}

	installments := make([]models.Installment, InstallmentCount)
	for i := range installments {
		installments[i].Ordinal = i + 1
	}

	now := time.Now().UTC()
	return &models.Engagement{
		ID:           uuid.New().String(),
		ClientID:     clientID,
		OfferingID:   offering.ID,
		Stages:       stages,
		Documents:    docs,
		Installments: installments,
		Meetings:     []models.MeetingRecord{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// SetDocumentReceived flips a document flag. Stages are not touched.
func SetDocumentReceived(e *models.Engagement, name string, received bool) error {
	doc := e.FindDocument(name)
	if doc == nil {
		return notFound(KindDocument, name)
	}
	doc.Received = received
	return nil
}

// SetInstallmentPaid flips an installment flag; ordinals are 1-based
func SetInstallmentPaid(e *models.Engagement, ordinal int, paid bool) error {
	if ordinal < 1 || ordinal > len(e.Installments) {
		return notFound(KindInstallment, strconv.Itoa(ordinal))
	}
	e.Installments[ordinal-1].Paid = paid
	return nil
}

// SetStageCompleted is a direct user override, honored regardless of gates
func SetStageCompleted(e *models.Engagement, name string, completed bool) error {
	st := e.FindStage(name)
	if st == nil {
		return notFound(KindStage, name)
	}
	st.Completed = completed
	st.AutoCompleted = false
	return nil
}

// RecordMeeting appends to the meeting log. On error the log is unchanged.
func RecordMeeting(e *models.Engagement, date, summary string) (*models.MeetingRecord, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return nil, invalid("date", "is required")
	}
	if _, err := time.Parse(MeetingDateLayout, date); err != nil {
		return nil, invalid("date", "must be YYYY-MM-DD")
	}
	if strings.TrimSpace(summary) == "" {
		return nil, invalid("summary", "is required")
	}

	rec := models.MeetingRecord{
		ID:         uuid.New().String(),
		Date:       date,
		Summary:    summary,
		RecordedAt: time.Now().UTC(),
	}
	e.Meetings = append(e.Meetings, rec)
	return &rec, nil
}
