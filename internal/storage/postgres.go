package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/rma-advocacia/client-portal/internal/models"
)

// PostgresRepository implements Repository on a single engagements table.
// The whole engagement is one JSONB document keyed by client id.
type PostgresRepository struct {
	db *sql.DB
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// NewPostgresRepository opens and pings a PostgreSQL connection pool
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(10)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(2)
	}
	if cfg.MaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxLifetime)
	} else {
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewPostgresRepositoryWithDB(db), nil
}

// NewPostgresRepositoryWithDB wraps an already opened database
func NewPostgresRepositoryWithDB(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get retrieves the engagement for a client
func (r *PostgresRepository) Get(ctx context.Context, clientID string) (*models.Engagement, error) {
	query := `
		SELECT state, created_at, updated_at
		FROM engagements
		WHERE client_id = $1
	`

	var stateJSON []byte
	var createdAt, updatedAt time.Time

	err := r.db.QueryRowContext(ctx, query, clientID).Scan(&stateJSON, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get engagement: %w", err)
	}

	var e models.Engagement
	if err := json.Unmarshal(stateJSON, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal engagement: %w", err)
	}
	e.ClientID = clientID
	e.CreatedAt = createdAt
	e.UpdatedAt = updatedAt

	return &e, nil
}

// Save upserts the engagement
func (r *PostgresRepository) Save(ctx context.Context, e *models.Engagement) error {
	stateJSON, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal engagement: %w", err)
	}

	query := `
		INSERT INTO engagements (client_id, offering_id, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (client_id) DO UPDATE
		SET offering_id = EXCLUDED.offering_id, state = EXCLUDED.state, updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		e.ClientID,
		e.OfferingID,
		stateJSON,
		e.CreatedAt,
		e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save engagement: %w", err)
	}

	return nil
}

// Delete removes a client's engagement
func (r *PostgresRepository) Delete(ctx context.Context, clientID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM engagements WHERE client_id = $1`, clientID)
	if err != nil {
		return fmt.Errorf("failed to delete engagement: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete engagement: %w", err)
	}
	if affected == 0 {
		return ErrEngagementNotFound
	}

	return nil
}

// ListIdle returns client ids whose engagement has not changed since before
func (r *PostgresRepository) ListIdle(ctx context.Context, before time.Time) ([]string, error) {
	query := `
		SELECT client_id
		FROM engagements
		WHERE updated_at < $1
		ORDER BY client_id
	`

	rows, err := r.db.QueryContext(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("failed to list idle engagements: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan client id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating idle engagements: %w", err)
	}

	return ids, nil
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the connection pool
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}
