package token

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

func (s *PostgresStore) Create(ctx context.Context, t *models.VoteToken) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO vote_tokens (id, referendum_id, user_id, credential, redeemed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.UUID(t.ID), uuid.UUID(t.Referendum), uuid.UUID(t.User),
		t.Credential, t.Redeemed, t.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert vote token: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByPair(ctx context.Context, refID id.ReferendumID, userID id.UserID) (*models.VoteToken, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, referendum_id, user_id, credential, redeemed, created_at
		FROM vote_tokens WHERE referendum_id = $1 AND user_id = $2`,
		uuid.UUID(refID), uuid.UUID(userID))
	return scanToken(row)
}

// FindByCredential locks the token row (FOR UPDATE) when a transaction is
// in flight, so a concurrent redemption of the same credential serializes
// behind it.
func (s *PostgresStore) FindByCredential(ctx context.Context, credential string) (*models.VoteToken, error) {
	query := `
		SELECT id, referendum_id, user_id, credential, redeemed, created_at
		FROM vote_tokens WHERE credential = $1`
	if _, inTx := tx.From(ctx); inTx {
		query += ` FOR UPDATE`
	}
	row := s.q(ctx).QueryRowContext(ctx, query, credential)
	return scanToken(row)
}

// MarkRedeemed flips redeemed false→true. The WHERE clause makes this a
// compare-and-set: a second caller matches zero rows and gets
// ErrAlreadyUsed.
func (s *PostgresStore) MarkRedeemed(ctx context.Context, tokenID id.TokenID) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE vote_tokens SET redeemed = true
		WHERE id = $1 AND redeemed = false`,
		uuid.UUID(tokenID))
	if err != nil {
		return fmt.Errorf("mark token redeemed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark token redeemed: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func scanToken(row *sql.Row) (*models.VoteToken, error) {
	var (
		t       models.VoteToken
		tokenID uuid.UUID
		refID   uuid.UUID
		userID  uuid.UUID
	)
	err := row.Scan(&tokenID, &refID, &userID, &t.Credential, &t.Redeemed, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan vote token: %w", err)
	}
	t.ID = id.TokenID(tokenID)
	t.Referendum = id.ReferendumID(refID)
	t.User = id.UserID(userID)
	return &t, nil
}
