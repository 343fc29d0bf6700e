package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rma-advocacia/client-portal/internal/models"
)

// MemoryRepository keeps engagements in process memory.
// State is gone when the process exits.
type MemoryRepository struct {
	mu          sync.RWMutex
	engagements map[string]*models.Engagement
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		engagements: make(map[string]*models.Engagement),
	}
}

// Get returns a copy of the stored engagement
func (r *MemoryRepository) Get(ctx context.Context, clientID string) (*models.Engagement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.engagements[clientID]
	if !ok {
		return nil, nil
	}
	return e.Clone(), nil
}

// Save stores a copy of the engagement under its client id
func (r *MemoryRepository) Save(ctx context.Context, e *models.Engagement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engagements[e.ClientID] = e.Clone()
	return nil
}

// Delete removes a client's engagement
func (r *MemoryRepository) Delete(ctx context.Context, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.engagements[clientID]; !ok {
		return ErrEngagementNotFound
	}
	delete(r.engagements, clientID)
	return nil
}

// ListIdle returns client ids whose engagement was last updated before the cutoff
func (r *MemoryRepository) ListIdle(ctx context.Context, before time.Time) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, e := range r.engagements {
		if e.IsIdle(before) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Ping always succeeds
func (r *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (r *MemoryRepository) Close() error {
	return nil
}
