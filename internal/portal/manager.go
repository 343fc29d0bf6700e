package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rma-advocacia/client-portal/internal/catalog"
	"github.com/rma-advocacia/client-portal/internal/engagement"
	"github.com/rma-advocacia/client-portal/internal/models"
	"github.com/rma-advocacia/client-portal/internal/storage"
)

// Common errors
var (
	ErrSessionNotFound = errors.New("session not found")
)

// Command names carried by progress events
const (
	CommandOpen            = "open"
	CommandReceiveDocument = "receive_document"
	CommandPayInstallment  = "pay_installment"
	CommandSetStage        = "set_stage"
	CommandRecordMeeting   = "record_meeting"
)

// Manager runs portal commands against per-client engagement sessions.
// Any call for a client without a session starts one from the catalog.
type Manager interface {
	Open(ctx context.Context, client *models.Client) (*models.EngagementView, error)
	Progress(ctx context.Context, client *models.Client) (models.Progress, error)
	ReceiveDocument(ctx context.Context, client *models.Client, name string, received bool) (models.Progress, error)
	PayInstallment(ctx context.Context, client *models.Client, ordinal int, paid bool) (models.Progress, error)
	SetStage(ctx context.Context, client *models.Client, name string, completed bool) (models.Progress, error)
	RecordMeeting(ctx context.Context, client *models.Client, date, summary string) (*models.MeetingRecord, error)
	Meetings(ctx context.Context, client *models.Client) ([]models.MeetingRecord, error)
	Close(ctx context.Context, clientID string) error
	ExpireIdle(ctx context.Context, maxIdle time.Duration) (int, error)
	Subscribe(clientID string) (<-chan models.ProgressEvent, func())
	Ping(ctx context.Context) error
}

// EngagementManager implements Manager on top of a Repository
type EngagementManager struct {
	catalog engagement.Catalog
	repo    storage.Repository
	hub     *Hub
	policy  engagement.GatePolicy
	locks   *keyedMutex
	now     func() time.Time

	// live holds clients whose session this manager started and has not closed.
	// A live client missing from the store expired there (e.g. Redis TTL).
	liveMu sync.Mutex
	live   map[string]struct{}
}

// NewManager creates a new EngagementManager
func NewManager(cat engagement.Catalog, repo storage.Repository, policy engagement.GatePolicy) *EngagementManager {
	return &EngagementManager{
		catalog: cat,
		repo:    repo,
		hub:     NewHub(),
		policy:  policy,
		locks:   newKeyedMutex(),
		now:     func() time.Time { return time.Now().UTC() },
		live:    make(map[string]struct{}),
	}
}

// Ping checks that the session store is reachable
func (m *EngagementManager) Ping(ctx context.Context) error {
	if err := m.repo.Ping(ctx); err != nil {
		return fmt.Errorf("store ping failed: %w", err)
	}
	return nil
}

// Open returns the full view of the client's engagement, starting it if needed
func (m *EngagementManager) Open(ctx context.Context, client *models.Client) (*models.EngagementView, error) {
	unlock := m.locks.Lock(client.ID())
	defer unlock()

	e, err := m.load(ctx, client)
	if err != nil {
		return nil, err
	}

	offering, err := m.catalog.Offering(e.OfferingID)
	if err != nil {
		return nil, err
	}

	return &models.EngagementView{
		Client:       client,
		Offering:     catalog.Summarize(offering),
		Stages:       e.Stages,
		Documents:    e.Documents,
		Installments: e.Installments,
		Meetings:     e.Meetings,
		Progress:     engagement.ProgressOf(e),
		UpdatedAt:    e.UpdatedAt,
	}, nil
}

// Progress returns the derived completion state
func (m *EngagementManager) Progress(ctx context.Context, client *models.Client) (models.Progress, error) {
	unlock := m.locks.Lock(client.ID())
	defer unlock()

	e, err := m.load(ctx, client)
	if err != nil {
		return models.Progress{}, err
	}
	return engagement.ProgressOf(e), nil
}

// ReceiveDocument records a document as received (or not) and re-runs the gates
func (m *EngagementManager) ReceiveDocument(ctx context.Context, client *models.Client, name string, received bool) (models.Progress, error) {
	e, err := m.mutate(ctx, client, CommandReceiveDocument, func(e *models.Engagement) error {
		return engagement.SetDocumentReceived(e, name, received)
	})
	if err != nil {
		return models.Progress{}, err
	}
	return engagement.ProgressOf(e), nil
}

// PayInstallment marks an installment paid (or unpaid) and re-runs the gates
func (m *EngagementManager) PayInstallment(ctx context.Context, client *models.Client, ordinal int, paid bool) (models.Progress, error) {
	e, err := m.mutate(ctx, client, CommandPayInstallment, func(e *models.Engagement) error {
		return engagement.SetInstallmentPaid(e, ordinal, paid)
	})
	if err != nil {
		return models.Progress{}, err
	}
	return engagement.ProgressOf(e), nil
}

// SetStage applies a manual stage override
func (m *EngagementManager) SetStage(ctx context.Context, client *models.Client, name string, completed bool) (models.Progress, error) {
	e, err := m.mutate(ctx, client, CommandSetStage, func(e *models.Engagement) error {
		return engagement.SetStageCompleted(e, name, completed)
	})
	if err != nil {
		return models.Progress{}, err
	}
	return engagement.ProgressOf(e), nil
}

// RecordMeeting appends to the client's meeting log
func (m *EngagementManager) RecordMeeting(ctx context.Context, client *models.Client, date, summary string) (*models.MeetingRecord, error) {
	var rec *models.MeetingRecord
	_, err := m.mutate(ctx, client, CommandRecordMeeting, func(e *models.Engagement) error {
		var err error
		rec, err = engagement.RecordMeeting(e, date, summary)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Meetings returns the meeting log in recording order
func (m *EngagementManager) Meetings(ctx context.Context, client *models.Client) ([]models.MeetingRecord, error) {
	unlock := m.locks.Lock(client.ID())
	defer unlock()

	e, err := m.load(ctx, client)
	if err != nil {
		return nil, err
	}
	return e.Meetings, nil
}

// Close discards the client's session and ends its feeds
func (m *EngagementManager) Close(ctx context.Context, clientID string) error {
	unlock := m.locks.Lock(clientID)
	defer unlock()

	if err := m.repo.Delete(ctx, clientID); err != nil {
		if errors.Is(err, storage.ErrEngagementNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to close session: %w", err)
	}
	m.hub.CloseClient(clientID)
	m.setLive(clientID, false)

	slog.Info("engagement session closed", "client", models.MaskCode(clientID))
	return nil
}

// ExpireIdle closes every session untouched for longer than maxIdle
func (m *EngagementManager) ExpireIdle(ctx context.Context, maxIdle time.Duration) (int, error) {
	ids, err := m.repo.ListIdle(ctx, m.now().Add(-maxIdle))
	if err != nil {
		return 0, fmt.Errorf("failed to list idle sessions: %w", err)
	}

	expired := 0
	for _, id := range ids {
		if err := m.Close(ctx, id); err != nil {
			// A concurrent logout may have won
			if errors.Is(err, ErrSessionNotFound) {
				continue
			}
			slog.Error("failed to expire session", "error", err, "client", models.MaskCode(id))
			continue
		}
		expired++
	}
	return expired, nil
}

// Subscribe returns a channel of progress events for a client
func (m *EngagementManager) Subscribe(clientID string) (<-chan models.ProgressEvent, func()) {
	return m.hub.Subscribe(clientID)
}

// mutate runs one command atomically: load, apply, gate, stamp, save, publish
func (m *EngagementManager) mutate(ctx context.Context, client *models.Client, command string, fn func(e *models.Engagement) error) (*models.Engagement, error) {
	unlock := m.locks.Lock(client.ID())
	defer unlock()

	e, err := m.load(ctx, client)
	if err != nil {
		return nil, err
	}

	if err := fn(e); err != nil {
		return nil, err
	}

	changed := engagement.ApplyGates(e, m.policy)
	e.UpdatedAt = m.now()

	if err := m.repo.Save(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to save engagement: %w", err)
	}

	progress := engagement.ProgressOf(e)
	if len(changed) > 0 {
		slog.Info("gates changed stages",
			"client", client.MaskedCode(),
			"command", command,
			"stages", changed,
			"policy", m.policy,
		)
	}
	slog.Debug("engagement updated",
		"client", client.MaskedCode(),
		"command", command,
		"completion", progress.CompletionPercentage,
		"current_stage", progress.CurrentStage,
	)

	m.hub.Publish(client.ID(), models.ProgressEvent{
		Type:     "progress",
		Command:  command,
		Progress: progress,
		At:       e.UpdatedAt,
	})

	return e, nil
}

// load returns the stored engagement or initializes and saves a new one.
// Callers hold the client's lock.
func (m *EngagementManager) load(ctx context.Context, client *models.Client) (*models.Engagement, error) {
	e, err := m.repo.Get(ctx, client.ID())
	if err != nil {
		return nil, fmt.Errorf("failed to load engagement: %w", err)
	}
	if e != nil {
		m.setLive(client.ID(), true)
		return e, nil
	}

	if m.isLive(client.ID()) {
		// The store dropped the session on its own; end the old feeds first
		slog.Info("engagement session expired in store", "client", client.MaskedCode())
		m.hub.CloseClient(client.ID())
		m.setLive(client.ID(), false)
	}

	e, err = engagement.Initialize(m.catalog, client.ServiceID, client.ID())
	if err != nil {
		return nil, err
	}
	engagement.ApplyGates(e, m.policy)
	e.CreatedAt = m.now()
	e.UpdatedAt = e.CreatedAt

	if err := m.repo.Save(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to save engagement: %w", err)
	}
	m.setLive(client.ID(), true)

	slog.Info("engagement session started",
		"client", client.MaskedCode(),
		"offering", e.OfferingID,
		"stages", len(e.Stages),
		"documents", len(e.Documents),
	)
	m.hub.Publish(client.ID(), models.ProgressEvent{
		Type:     "progress",
		Command:  CommandOpen,
		Progress: engagement.ProgressOf(e),
		At:       e.CreatedAt,
	})
	return e, nil
}

func (m *EngagementManager) isLive(clientID string) bool {
	m.liveMu.Lock()
	defer m.liveMu.Unlock()
	_, ok := m.live[clientID]
	return ok
}

func (m *EngagementManager) setLive(clientID string, live bool) {
	m.liveMu.Lock()
	defer m.liveMu.Unlock()
	if live {
		m.live[clientID] = struct{}{}
	} else {
		delete(m.live, clientID)
	}
}
