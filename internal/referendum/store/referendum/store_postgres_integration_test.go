//go:build integration

package referendum_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "agora/pkg/domain"
	"agora/pkg/platform/sentinel"
	"agora/pkg/platform/tx"
	"agora/pkg/testutil/containers"

	"agora/internal/referendum/models"
	"agora/internal/referendum/store/category"
	"agora/internal/referendum/store/referendum"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres   *containers.PostgresContainer
	store      *referendum.PostgresStore
	categories *category.PostgresStore
	runner     *tx.SQLRunner
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = referendum.NewPostgres(s.postgres.DB)
	s.categories = category.NewPostgres(s.postgres.DB)
	s.runner = tx.NewSQLRunner(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "referendums", "categories"))
}

func (s *PostgresStoreSuite) newReferendum(cats ...id.CategoryID) *models.Referendum {
	now := time.Now().UTC().Truncate(time.Microsecond)
	title := "Integration " + uuid.NewString()
	return &models.Referendum{
		ID:         id.ReferendumID(uuid.New()),
		Title:      title,
		Slug:       models.Slugify(title),
		Duration:   models.Duration24h,
		Categories: cats,
		Creator:    id.UserID(uuid.New()),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (s *PostgresStoreSuite) newCategory() models.Category {
	title := "Thème " + uuid.NewString()
	c := models.Category{
		ID:    id.CategoryID(uuid.New()),
		Title: title,
		Slug:  models.Slugify(title),
	}
	s.Require().NoError(s.categories.Create(context.Background(), c))
	return c
}

func (s *PostgresStoreSuite) TestCreateAndFindWithCategories() {
	ctx := context.Background()
	c := s.newCategory()
	r := s.newReferendum(c.ID)
	s.Require().NoError(s.store.Create(ctx, r))

	stored, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(r.Title, stored.Title)
	s.Equal([]id.CategoryID{c.ID}, stored.Categories)
}

// TestCreateRollsBackOnBadCategoryLink pins the transaction boundary: when
// the category link insert fails, the referendum row must not survive and
// its title must stay available.
func (s *PostgresStoreSuite) TestCreateRollsBackOnBadCategoryLink() {
	ctx := context.Background()
	r := s.newReferendum(id.CategoryID(uuid.New())) // no such category row

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		return s.store.Create(ctx, r)
	})
	s.Require().Error(err)

	_, err = s.store.FindByID(ctx, r.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	retry := s.newReferendum()
	retry.Title = r.Title
	retry.Slug = r.Slug
	s.NoError(s.runner.RunInTx(ctx, func(ctx context.Context) error {
		return s.store.Create(ctx, retry)
	}))
}

// TestUpdateRollsBackOnBadCategoryLink: the update replaces links with a
// delete-then-insert, so a failed insert must restore the old links too.
func (s *PostgresStoreSuite) TestUpdateRollsBackOnBadCategoryLink() {
	ctx := context.Background()
	c := s.newCategory()
	r := s.newReferendum(c.ID)
	s.Require().NoError(s.store.Create(ctx, r))

	broken := *r
	broken.Categories = []id.CategoryID{id.CategoryID(uuid.New())}
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		return s.store.Update(ctx, &broken)
	})
	s.Require().Error(err)

	stored, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal([]id.CategoryID{c.ID}, stored.Categories)
}

func (s *PostgresStoreSuite) TestCategoryTitleUniqueness() {
	ctx := context.Background()
	c := s.newCategory()
	dup := models.Category{
		ID:    id.CategoryID(uuid.New()),
		Title: c.Title,
		Slug:  c.Slug,
	}
	s.ErrorIs(s.categories.Create(ctx, dup), sentinel.ErrConflict)
}
