package ballot

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "agora/pkg/domain"
	"agora/pkg/platform/sentinel"
	"agora/pkg/platform/tx"

	"agora/internal/platform/postgres"
	"agora/internal/voting/models"
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

func (s *PostgresStore) Create(ctx context.Context, b models.Ballot) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO ballots (id, choice_id, cast_at) VALUES ($1, $2, $3)`,
		uuid.UUID(b.ID), uuid.UUID(b.Choice), b.CastAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert ballot: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountByChoice(ctx context.Context, choiceID id.ChoiceID) (int, error) {
	var n int
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT count(*) FROM ballots WHERE choice_id = $1`,
		uuid.UUID(choiceID)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count ballots: %w", err)
	}
	return n, nil
}
