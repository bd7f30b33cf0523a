package comment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	id "agora/pkg/domain"
	"agora/pkg/platform/sentinel"
	"agora/pkg/platform/tx"

	"agora/internal/engagement/models"
	"agora/internal/platform/postgres"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const commentColumns = `id, referendum_id, user_id, body, visible, created_at, updated_at`

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

func (s *PostgresStore) Create(ctx context.Context, c models.Comment) error {
	const query = `
		INSERT INTO comments (` + commentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.q(ctx).ExecContext(ctx, query,
		c.ID.String(), c.Referendum.String(), c.User.String(),
		c.Body, c.Visible, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("inserting comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, c models.Comment) error {
	const query = `
		UPDATE comments
		SET body = $2, visible = $3, updated_at = $4
		WHERE id = $1`

	res, err := s.q(ctx).ExecContext(ctx, query,
		c.ID.String(), c.Body, c.Visible, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating comment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating comment: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, commentID id.CommentID) (models.Comment, error) {
	const query = `SELECT ` + commentColumns + ` FROM comments WHERE id = $1`

	row := s.q(ctx).QueryRowContext(ctx, query, commentID.String())
	c, err := scanComment(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Comment{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Comment{}, fmt.Errorf("querying comment: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListVisibleByReferendum(ctx context.Context, referendumID id.ReferendumID) ([]models.Comment, error) {
	const query = `
		SELECT ` + commentColumns + `
		FROM comments
		WHERE referendum_id = $1 AND visible
		ORDER BY created_at`

	rows, err := s.q(ctx).QueryContext(ctx, query, referendumID.String())
	if err != nil {
		return nil, fmt.Errorf("querying comments: %w", err)
	}
	defer rows.Close()

	var out []models.Comment
	for rows.Next() {
		c, err := scanComment(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateReport(ctx context.Context, r models.Report) error {
	const query = `
		INSERT INTO comment_reports (id, comment_id, user_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.q(ctx).ExecContext(ctx, query,
		r.ID.String(), r.Comment.String(), r.User.String(), r.Reason, r.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		if postgres.IsForeignKeyViolation(err) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("inserting comment report: %w", err)
	}
	return nil
}

func scanComment(scan func(dest ...any) error) (models.Comment, error) {
	var (
		c                      models.Comment
		rawID, rawRef, rawUser string
	)
	if err := scan(&rawID, &rawRef, &rawUser, &c.Body, &c.Visible, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return models.Comment{}, err
	}
	commentID, err := id.ParseCommentID(rawID)
	if err != nil {
		return models.Comment{}, err
	}
	refID, err := id.ParseReferendumID(rawRef)
	if err != nil {
		return models.Comment{}, err
	}
	userID, err := id.ParseUserID(rawUser)
	if err != nil {
		return models.Comment{}, err
	}
	c.ID = commentID
	c.Referendum = refID
	c.User = userID
	return c, nil
}
