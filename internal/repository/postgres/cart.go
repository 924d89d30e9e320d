package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/istominvi/shaurmaniya/internal/entity"
	"github.com/istominvi/shaurmaniya/internal/repository"
)

type CartRepository struct {
	db *sql.DB
}

// NewCartRepository creates a CartRepository backed by Postgres.
func NewCartRepository(db *sql.DB) *CartRepository {
	return &CartRepository{db: db}
}

func (r *CartRepository) Load(ctx context.Context, sessionID string) (*entity.Cart, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, "SELECT payload FROM cart_snapshots WHERE session_id = $1", sessionID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart %s: %w", sessionID, err)
	}

	var c entity.Cart
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart %s: %w", sessionID, err)
	}
	return &c, nil
}

// Save upserts the snapshot and bumps its version.
func (r *CartRepository) Save(ctx context.Context, sessionID string, c entity.Cart) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal cart: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var currentVersion int
	err = tx.QueryRowContext(ctx, "SELECT version FROM cart_snapshots WHERE session_id = $1 FOR UPDATE", sessionID).Scan(&currentVersion)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to get current cart version: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cart_snapshots (session_id, payload, version, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id) DO UPDATE
		SET payload = EXCLUDED.payload, version = EXCLUDED.version, updated_at = EXCLUDED.updated_at`,
		sessionID, payload, currentVersion+1, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cart snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *CartRepository) Delete(ctx context.Context, sessionID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM cart_snapshots WHERE session_id = $1", sessionID); err != nil {
		return fmt.Errorf("failed to delete cart %s: %w", sessionID, err)
	}
	return nil
}

// PurgeBefore deletes snapshots not written since cutoff.
func (r *CartRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM cart_snapshots WHERE updated_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge cart snapshots: %w", err)
	}
	return res.RowsAffected()
}
