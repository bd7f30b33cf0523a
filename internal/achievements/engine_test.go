package achievements

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "agora/pkg/domain"

	"agora/internal/achievements/models"
	"agora/internal/achievements/store"
	"agora/internal/events"
)

func newEngine(t *testing.T) (*Engine, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemory()
	return NewEngine(st), st
}

func badgesOf(t *testing.T, st *store.MemoryStore, user id.UserID) []models.Badge {
	t.Helper()
	unlocked, err := st.ListByUser(context.Background(), user)
	require.NoError(t, err)
	out := make([]models.Badge, 0, len(unlocked))
	for _, a := range unlocked {
		out = append(out, a.Badge)
	}
	return out
}

func referendumEvent(creator id.UserID, published, planned bool) events.Event {
	return events.Event{
		Kind: events.KindReferendumSaved,
		At:   time.Now(),
		Referendum: &events.ReferendumEvent{
			ID:        id.ReferendumID(uuid.New()),
			Creator:   creator,
			Published: published,
			Planned:   planned,
		},
	}
}

func tokenEvent(user id.UserID, redeemed bool) events.Event {
	return events.Event{
		Kind: events.KindTokenSaved,
		At:   time.Now(),
		Token: &events.TokenEvent{
			Referendum: id.ReferendumID(uuid.New()),
			User:       user,
			Redeemed:   redeemed,
		},
	}
}

func TestEngine_UnlocksOrateurOnPublication(t *testing.T) {
	engine, st := newEngine(t)
	creator := id.UserID(uuid.New())

	// Draft save unlocks nothing.
	require.NoError(t, engine.Update(context.Background(), referendumEvent(creator, false, false)))
	assert.Empty(t, badgesOf(t, st, creator))

	// Published save unlocks orateur.
	require.NoError(t, engine.Update(context.Background(), referendumEvent(creator, true, false)))
	assert.ElementsMatch(t, []models.Badge{BadgeOrateur}, badgesOf(t, st, creator))
}

func TestEngine_UnlocksPoliticienOnPlanning(t *testing.T) {
	engine, st := newEngine(t)
	creator := id.UserID(uuid.New())

	require.NoError(t, engine.Update(context.Background(), referendumEvent(creator, true, true)))
	assert.ElementsMatch(t,
		[]models.Badge{BadgeOrateur, BadgePoliticien},
		badgesOf(t, st, creator))
}

func TestEngine_UnlocksVotantOnRedemption(t *testing.T) {
	engine, st := newEngine(t)
	voter := id.UserID(uuid.New())

	// Issuance alone is not a vote.
	require.NoError(t, engine.Update(context.Background(), tokenEvent(voter, false)))
	assert.Empty(t, badgesOf(t, st, voter))

	require.NoError(t, engine.Update(context.Background(), tokenEvent(voter, true)))
	assert.ElementsMatch(t, []models.Badge{BadgeVotant}, badgesOf(t, st, voter))
}

func TestEngine_UnlockIsIdempotent(t *testing.T) {
	engine, st := newEngine(t)
	creator := id.UserID(uuid.New())

	for i := 0; i < 3; i++ {
		require.NoError(t, engine.Update(context.Background(), referendumEvent(creator, true, false)))
	}
	assert.Len(t, badgesOf(t, st, creator), 1)
}

func TestEngine_IgnoresKindsWithoutRules(t *testing.T) {
	engine, st := newEngine(t)
	user := id.UserID(uuid.New())

	require.NoError(t, engine.Update(context.Background(), events.Event{
		Kind:     events.KindIdentityConfirmed,
		At:       time.Now(),
		Identity: &events.IdentityEvent{User: user, ValidUntil: time.Now().Add(time.Hour)},
	}))
	assert.Empty(t, badgesOf(t, st, user))
}

func TestEngine_ListByUserScopesToOwner(t *testing.T) {
	engine, _ := newEngine(t)
	first := id.UserID(uuid.New())
	second := id.UserID(uuid.New())

	require.NoError(t, engine.Update(context.Background(), referendumEvent(first, true, false)))
	require.NoError(t, engine.Update(context.Background(), tokenEvent(second, true)))

	mine, err := engine.ListByUser(context.Background(), first)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, BadgeOrateur, mine[0].Badge)
}

func TestCatalog_DescribesEveryBadge(t *testing.T) {
	seen := make(map[models.Badge]bool)
	for _, rules := range Catalog() {
		for _, rule := range rules {
			assert.NotEmpty(t, rule.Label)
			assert.NotEmpty(t, rule.Description)
			assert.False(t, seen[rule.Badge], "badge %s declared twice", rule.Badge)
			seen[rule.Badge] = true
		}
	}
	assert.Len(t, seen, 3)
}
