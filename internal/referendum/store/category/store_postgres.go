package category

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

// q joins a transaction carried in ctx when present.
func (s *PostgresStore) q(ctx context.Context) querier {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, c models.Category) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO categories (id, title, slug) VALUES ($1, $2, $3)`,
		uuid.UUID(c.ID), c.Title, c.Slug)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, catID id.CategoryID) (models.Category, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, title, slug FROM categories WHERE id = $1`, uuid.UUID(catID))
	return scanCategory(row.Scan)
}

func (s *PostgresStore) List(ctx context.Context) ([]models.Category, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, title, slug FROM categories ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []models.Category
	for rows.Next() {
		c, err := scanCategory(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCategory(scan func(dest ...any) error) (models.Category, error) {
	var (
		rawID string
		c     models.Category
	)
	if err := scan(&rawID, &c.Title, &c.Slug); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Category{}, sentinel.ErrNotFound
		}
		return models.Category{}, fmt.Errorf("scan category: %w", err)
	}
	catID, err := id.ParseCategoryID(rawID)
	if err != nil {
		return models.Category{}, fmt.Errorf("scan category: %w", err)
	}
	c.ID = catID
	return c, nil
}
