package storage

import (
	"context"
	"errors"
	"time"

	"github.com/rma-advocacia/client-portal/internal/models"
)

// ErrEngagementNotFound is returned when deleting a session that is not stored
var ErrEngagementNotFound = errors.New("engagement not found")

// Repository persists one engagement per client id
type Repository interface {
	// Get returns nil, nil when the client has no stored engagement
	Get(ctx context.Context, clientID string) (*models.Engagement, error)
	Save(ctx context.Context, e *models.Engagement) error
	Delete(ctx context.Context, clientID string) error
	// ListIdle returns client ids not updated since before
	ListIdle(ctx context.Context, before time.Time) ([]string, error)

	// Health
	Ping(ctx context.Context) error
	Close() error
}
