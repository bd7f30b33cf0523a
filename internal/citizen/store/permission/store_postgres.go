package permission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "agora/pkg/domain"
	"agora/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return s.db
}

// AcquireUser takes a row lock on the user's permission row for the rest of
// the surrounding transaction, serializing concurrent recomputes for the
// same user. Outside a transaction the lock would be released immediately,
// so this is only meaningful under the service's tx runner.
func (s *PostgresStore) AcquireUser(ctx context.Context, userID id.UserID) error {
	q := s.q(ctx)
	if _, err := q.ExecContext(ctx, `
		INSERT INTO citizen_permissions (user_id, granted, updated_at)
		VALUES ($1, false, now()) ON CONFLICT (user_id) DO NOTHING`,
		uuid.UUID(userID)); err != nil {
		return fmt.Errorf("seed permission row: %w", err)
	}
	var ignored bool
	if err := q.QueryRowContext(ctx, `
		SELECT granted FROM citizen_permissions WHERE user_id = $1 FOR UPDATE`,
		uuid.UUID(userID)).Scan(&ignored); err != nil {
		return fmt.Errorf("lock permission row: %w", err)
	}
	return nil
}

func (s *PostgresStore) Set(ctx context.Context, userID id.UserID, granted bool, at time.Time) (bool, error) {
	var prev sql.NullBool
	err := s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO citizen_permissions (user_id, granted, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			granted = EXCLUDED.granted, updated_at = EXCLUDED.updated_at
		RETURNING (SELECT granted FROM citizen_permissions WHERE user_id = $1)`,
		uuid.UUID(userID), granted, at).Scan(&prev)
	if err != nil {
		return false, fmt.Errorf("set permission: %w", err)
	}
	if !prev.Valid {
		return granted, nil
	}
	return prev.Bool != granted, nil
}

func (s *PostgresStore) IsGranted(ctx context.Context, userID id.UserID) (bool, error) {
	var granted bool
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT granted FROM citizen_permissions WHERE user_id = $1`,
		uuid.UUID(userID)).Scan(&granted)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read permission: %w", err)
	}
	return granted, nil
}
