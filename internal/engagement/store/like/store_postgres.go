package like

import (
	"context"
	"database/sql"
	"fmt"

	id "agora/pkg/domain"
	"agora/pkg/platform/sentinel"
	"agora/pkg/platform/tx"

	"agora/internal/engagement/models"
	"agora/internal/platform/postgres"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, l models.Like) error {
	const query = `
		INSERT INTO likes (referendum_id, user_id, created_at)
		VALUES ($1, $2, $3)`

	_, err := s.q(ctx).ExecContext(ctx, query,
		l.Referendum.String(), l.User.String(), l.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("inserting like: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, referendumID id.ReferendumID, userID id.UserID) error {
	const query = `DELETE FROM likes WHERE referendum_id = $1 AND user_id = $2`

	res, err := s.q(ctx).ExecContext(ctx, query, referendumID.String(), userID.String())
	if err != nil {
		return fmt.Errorf("deleting like: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting like: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CountByReferendum(ctx context.Context, referendumID id.ReferendumID) (int, error) {
	const query = `SELECT COUNT(*) FROM likes WHERE referendum_id = $1`

	var n int
	if err := s.q(ctx).QueryRowContext(ctx, query, referendumID.String()).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting likes: %w", err)
	}
	return n, nil
}
