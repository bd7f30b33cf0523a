package store

import (
	"context"
	"database/sql"
	"fmt"

	id "agora/pkg/domain"
	"agora/pkg/platform/sentinel"
	"agora/pkg/platform/tx"

	"agora/internal/achievements/models"
	"agora/internal/platform/postgres"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// q returns the transaction from the context when one is open, so writes
// join the caller's unit of work.
func (s *PostgresStore) q(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, a models.Achievement) error {
	const query = `
		INSERT INTO achievements (id, user_id, badge, unlocked_at)
		VALUES ($1, $2, $3, $4)`

	_, err := s.q(ctx).ExecContext(ctx, query,
		a.ID.String(), a.User.String(), string(a.Badge), a.UnlockedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("inserting achievement: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]models.Achievement, error) {
	const query = `
		SELECT id, user_id, badge, unlocked_at
		FROM achievements
		WHERE user_id = $1
		ORDER BY unlocked_at`

	rows, err := s.q(ctx).QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("querying achievements: %w", err)
	}
	defer rows.Close()

	var out []models.Achievement
	for rows.Next() {
		var (
			a             models.Achievement
			rawID, rawUsr string
			rawBadge      string
		)
		if err := rows.Scan(&rawID, &rawUsr, &rawBadge, &a.UnlockedAt); err != nil {
			return nil, fmt.Errorf("scanning achievement: %w", err)
		}
		achID, err := id.ParseAchievementID(rawID)
		if err != nil {
			return nil, fmt.Errorf("parsing achievement id: %w", err)
		}
		usrID, err := id.ParseUserID(rawUsr)
		if err != nil {
			return nil, fmt.Errorf("parsing user id: %w", err)
		}
		a.ID = achID
		a.User = usrID
		a.Badge = models.Badge(rawBadge)
		out = append(out, a)
	}
	return out, rows.Err()
}
