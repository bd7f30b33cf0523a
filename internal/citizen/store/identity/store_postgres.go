package identity

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "agora/pkg/domain"
	"agora/pkg/platform/tx"

	"agora/internal/citizen/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, rec models.IdentityRecord) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO identities (id, user_id, valid_until, created_at)
		VALUES ($1, $2, $3, $4)`,
		uuid.UUID(rec.ID), uuid.UUID(rec.User), rec.ValidUntil, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

func (s *PostgresStore) LatestValidUntil(ctx context.Context, userID id.UserID) (time.Time, bool, error) {
	var latest sql.NullTime
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT max(valid_until) FROM identities WHERE user_id = $1`,
		uuid.UUID(userID)).Scan(&latest)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("latest identity validity: %w", err)
	}
	return latest.Time, latest.Valid, nil
}

func (s *PostgresStore) OwnersOfExpired(ctx context.Context, now time.Time) ([]id.UserID, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT DISTINCT user_id FROM identities WHERE valid_until <= $1`, now)
	if err != nil {
		return nil, fmt.Errorf("owners of expired identities: %w", err)
	}
	defer rows.Close()
	return scanUserIDs(rows)
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) ([]id.UserID, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		DELETE FROM identities WHERE valid_until <= $1 RETURNING user_id`, now)
	if err != nil {
		return nil, fmt.Errorf("delete expired identities: %w", err)
	}
	defer rows.Close()

	users, err := scanUserIDs(rows)
	if err != nil {
		return nil, err
	}
	return dedupe(users), nil
}

func scanUserIDs(rows *sql.Rows) ([]id.UserID, error) {
	var out []id.UserID
	for rows.Next() {
		var u uuid.UUID
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		out = append(out, id.UserID(u))
	}
	return out, rows.Err()
}

func dedupe(users []id.UserID) []id.UserID {
	seen := make(map[id.UserID]bool, len(users))
	out := users[:0]
	for _, u := range users {
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}
