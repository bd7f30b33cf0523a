package choice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "agora/pkg/domain"
	"agora/pkg/platform/sentinel"
	"agora/pkg/platform/tx"

	"agora/internal/platform/postgres"
	"agora/internal/referendum/models"
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

func (s *PostgresStore) Create(ctx context.Context, c models.Choice) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO choices (id, referendum_id, title) VALUES ($1, $2, $3)`,
		uuid.UUID(c.ID), uuid.UUID(c.Referendum), c.Title)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert choice: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, choiceID id.ChoiceID) (models.Choice, error) {
	var (
		c     models.Choice
		cID   uuid.UUID
		refID uuid.UUID
	)
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, referendum_id, title FROM choices WHERE id = $1`,
		uuid.UUID(choiceID)).Scan(&cID, &refID, &c.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Choice{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Choice{}, fmt.Errorf("find choice: %w", err)
	}
	c.ID = id.ChoiceID(cID)
	c.Referendum = id.ReferendumID(refID)
	return c, nil
}

func (s *PostgresStore) ListByReferendum(ctx context.Context, refID id.ReferendumID) ([]models.Choice, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, referendum_id, title FROM choices
		WHERE referendum_id = $1 ORDER BY title`,
		uuid.UUID(refID))
	if err != nil {
		return nil, fmt.Errorf("list choices: %w", err)
	}
	defer rows.Close()

	var out []models.Choice
	for rows.Next() {
		var (
			c   models.Choice
			cID uuid.UUID
			rID uuid.UUID
		)
		if err := rows.Scan(&cID, &rID, &c.Title); err != nil {
			return nil, fmt.Errorf("scan choice: %w", err)
		}
		c.ID = id.ChoiceID(cID)
		c.Referendum = id.ReferendumID(rID)
		out = append(out, c)
	}
	return out, rows.Err()
}
