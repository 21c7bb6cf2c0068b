package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/lalithlochan/sentinel/internal/kv"
)

// StateRepository stores client state rows in the client_state table.
type StateRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewStateRepository creates a kv.Store over Postgres
func NewStateRepository(db *DB, logger *zap.Logger) *StateRepository {
	return &StateRepository{
		db:     db,
		logger: logger,
	}
}

var _ kv.Store = (*StateRepository)(nil)

// Get returns kv.ErrNotFound when no row exists for key
func (r *StateRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.Pool().QueryRow(ctx,
		`SELECT value FROM client_state WHERE key = $1`,
		key,
	).Scan(&value)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get client state %q: %w", key, err)
	}

	return value, nil
}

// Set upserts key
func (r *StateRepository) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO client_state (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = NOW()
	`

	if _, err := r.db.Pool().Exec(ctx, query, key, value); err != nil {
		r.logger.Error("failed to store client state",
			zap.String("key", key),
			zap.Error(err),
		)
		return fmt.Errorf("set client state %q: %w", key, err)
	}

	return nil
}

// Delete removes key; a missing key is not an error
func (r *StateRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.Pool().Exec(ctx, `DELETE FROM client_state WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete client state %q: %w", key, err)
	}
	return nil
}
