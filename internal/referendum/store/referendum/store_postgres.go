package referendum

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

// PostgresStore persists referendums in PostgreSQL. Category links live in a
// join table and are replaced wholesale on update.
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

// q joins a transaction carried in ctx when present.
func (s *PostgresStore) q(ctx context.Context) querier {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return s.db
}

const referendumColumns = `id, title, slug, description, question, duration_seconds,
	creator_id, created_at, updated_at, publication_date, event_start`

func (s *PostgresStore) Create(ctx context.Context, r *models.Referendum) error {
	q := s.q(ctx)
	_, err := q.ExecContext(ctx, `
		INSERT INTO referendums (`+referendumColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		uuid.UUID(r.ID), r.Title, r.Slug, r.Description, r.Question, int(r.Duration),
		uuid.UUID(r.Creator), r.CreatedAt, r.UpdatedAt, r.PublicationDate, r.EventStart)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert referendum: %w", err)
	}
	return s.replaceCategories(ctx, r.ID, r.Categories)
}

func (s *PostgresStore) Update(ctx context.Context, r *models.Referendum) error {
	q := s.q(ctx)
	res, err := q.ExecContext(ctx, `
		UPDATE referendums
		SET title = $2, slug = $3, description = $4, question = $5,
		    duration_seconds = $6, updated_at = $7, publication_date = $8, event_start = $9
		WHERE id = $1`,
		uuid.UUID(r.ID), r.Title, r.Slug, r.Description, r.Question,
		int(r.Duration), r.UpdatedAt, r.PublicationDate, r.EventStart)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update referendum: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update referendum: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return s.replaceCategories(ctx, r.ID, r.Categories)
}

func (s *PostgresStore) replaceCategories(ctx context.Context, refID id.ReferendumID, cats []id.CategoryID) error {
	q := s.q(ctx)
	if _, err := q.ExecContext(ctx,
		`DELETE FROM referendum_categories WHERE referendum_id = $1`, uuid.UUID(refID)); err != nil {
		return fmt.Errorf("clear referendum categories: %w", err)
	}
	for _, cat := range cats {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO referendum_categories (referendum_id, category_id)
			VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			uuid.UUID(refID), uuid.UUID(cat)); err != nil {
			return fmt.Errorf("link referendum category: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, refID id.ReferendumID) (*models.Referendum, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT `+referendumColumns+` FROM referendums WHERE id = $1`, uuid.UUID(refID))
	return s.scanOne(ctx, row)
}

func (s *PostgresStore) FindBySlug(ctx context.Context, slug string) (*models.Referendum, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT `+referendumColumns+` FROM referendums WHERE slug = $1`, slug)
	return s.scanOne(ctx, row)
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Referendum, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT `+referendumColumns+` FROM referendums ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list referendums: %w", err)
	}
	defer rows.Close()

	var out []*models.Referendum
	for rows.Next() {
		r, err := scanReferendum(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list referendums: %w", err)
	}
	for _, r := range out {
		if err := s.loadCategories(ctx, r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReferendum(row rowScanner) (*models.Referendum, error) {
	var (
		r        models.Referendum
		refID    uuid.UUID
		creator  uuid.UUID
		duration int
	)
	err := row.Scan(&refID, &r.Title, &r.Slug, &r.Description, &r.Question, &duration,
		&creator, &r.CreatedAt, &r.UpdatedAt, &r.PublicationDate, &r.EventStart)
	if err != nil {
		return nil, err
	}
	r.ID = id.ReferendumID(refID)
	r.Creator = id.UserID(creator)
	r.Duration = models.Duration(duration)
	return &r, nil
}

func (s *PostgresStore) scanOne(ctx context.Context, row *sql.Row) (*models.Referendum, error) {
	r, err := scanReferendum(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan referendum: %w", err)
	}
	if err := s.loadCategories(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *PostgresStore) loadCategories(ctx context.Context, r *models.Referendum) error {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT category_id FROM referendum_categories WHERE referendum_id = $1`,
		uuid.UUID(r.ID))
	if err != nil {
		return fmt.Errorf("load referendum categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cat uuid.UUID
		if err := rows.Scan(&cat); err != nil {
			return fmt.Errorf("scan category link: %w", err)
		}
		r.Categories = append(r.Categories, id.CategoryID(cat))
	}
	return rows.Err()
}
