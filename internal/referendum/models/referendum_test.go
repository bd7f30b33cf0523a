package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "agora/pkg/domain"
	dErrors "agora/pkg/domain-errors"
)

const minDelay = 15 * 24 * time.Hour

func ptr(t time.Time) *time.Time { return &t }

func draftReferendum() *Referendum {
	return &Referendum{
		ID:       id.ReferendumID(uuid.New()),
		Title:    "Vitesse sur autoroute",
		Duration: Duration24h,
		Creator:  id.UserID(uuid.New()),
	}
}

func TestStateAt(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		publication *time.Time
		eventStart  *time.Time
		want        State
	}{
		{"no publication date", nil, nil, StateDraft},
		{"publication in the future", ptr(now.Add(time.Hour)), nil, StateScheduled},
		{"publication passed, no start", ptr(now.Add(-time.Hour)), nil, StatePublished},
		{"start in the future", ptr(now.Add(-30 * 24 * time.Hour)), ptr(now.Add(time.Hour)), StatePublished},
		{"inside the vote window", ptr(now.Add(-30 * 24 * time.Hour)), ptr(now.Add(-time.Hour)), StateInProgress},
		{"window closed", ptr(now.Add(-60 * 24 * time.Hour)), ptr(now.Add(-48 * time.Hour)), StateOver},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := draftReferendum()
			r.PublicationDate = tt.publication
			r.EventStart = tt.eventStart
			assert.Equal(t, tt.want, r.StateAt(now))
		})
	}
}

func TestUpdatableFields(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("draft is fully editable", func(t *testing.T) {
		r := draftReferendum()
		assert.ElementsMatch(t,
			[]Field{FieldTitle, FieldDescription, FieldQuestion, FieldCategories, FieldPublicationDate},
			r.UpdatableFields(now))
	})

	t.Run("scheduled keeps the draft surface", func(t *testing.T) {
		r := draftReferendum()
		r.PublicationDate = ptr(now.Add(time.Hour))
		assert.Contains(t, r.UpdatableFields(now), FieldTitle)
	})

	t.Run("published shrinks to scheduling fields", func(t *testing.T) {
		r := draftReferendum()
		r.PublicationDate = ptr(now.Add(-time.Hour))
		assert.ElementsMatch(t, []Field{FieldEventStart, FieldDuration}, r.UpdatableFields(now))
	})

	t.Run("in progress freezes everything", func(t *testing.T) {
		r := draftReferendum()
		r.PublicationDate = ptr(now.Add(-30 * 24 * time.Hour))
		r.EventStart = ptr(now.Add(-time.Hour))
		assert.Empty(t, r.UpdatableFields(now))
	})

	t.Run("over stays frozen", func(t *testing.T) {
		r := draftReferendum()
		r.PublicationDate = ptr(now.Add(-60 * 24 * time.Hour))
		r.EventStart = ptr(now.Add(-48 * time.Hour))
		assert.Empty(t, r.UpdatableFields(now))
	})
}

func TestEventEnd(t *testing.T) {
	r := draftReferendum()
	assert.Nil(t, r.EventEnd())

	start := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	r.EventStart = &start
	end := r.EventEnd()
	require.NotNil(t, end)
	assert.Equal(t, start.Add(86399*time.Second), *end)
}

func TestValidate(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("valid draft", func(t *testing.T) {
		assert.NoError(t, draftReferendum().Validate(now, minDelay))
	})

	t.Run("blank title rejected", func(t *testing.T) {
		r := draftReferendum()
		r.Title = "   "
		err := r.Validate(now, minDelay)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("unsupported duration rejected", func(t *testing.T) {
		r := draftReferendum()
		r.Duration = Duration(3600)
		err := r.Validate(now, minDelay)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("event start without publication rejected", func(t *testing.T) {
		r := draftReferendum()
		r.EventStart = ptr(now.Add(30 * 24 * time.Hour))
		err := r.Validate(now, minDelay)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("event start before minimum delay rejected", func(t *testing.T) {
		r := draftReferendum()
		r.PublicationDate = ptr(now.Add(time.Hour))
		r.EventStart = ptr(now.Add(10 * 24 * time.Hour))
		err := r.Validate(now, minDelay)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("event start after minimum delay accepted", func(t *testing.T) {
		r := draftReferendum()
		r.PublicationDate = ptr(now.Add(time.Hour))
		r.EventStart = ptr(now.Add(time.Hour).Add(minDelay).Add(time.Minute))
		assert.NoError(t, r.Validate(now, minDelay))
	})

	t.Run("already published counts the delay from now", func(t *testing.T) {
		r := draftReferendum()
		r.PublicationDate = ptr(now.Add(-30 * 24 * time.Hour))
		r.EventStart = ptr(now.Add(minDelay - time.Hour))
		err := r.Validate(now, minDelay)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

		r.EventStart = ptr(now.Add(minDelay + time.Hour))
		assert.NoError(t, r.Validate(now, minDelay))
	})
}

func TestDuration(t *testing.T) {
	assert.True(t, Duration24h.IsValid())
	assert.Equal(t, "24h", Duration24h.Label())
	assert.False(t, Duration(3600).IsValid())
	assert.Equal(t, 86399*time.Second, Duration24h.AsTime())
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Vitesse sur autoroute", "vitesse-sur-autoroute"},
		{"  Taxe   carbone!  ", "taxe-carbone"},
		{"Référendum 2026", "referendum-2026"},
		{"Référendum pour l'écologie", "referendum-pour-l-ecologie"},
		{"Égalité des chances", "egalite-des-chances"},
		{"---", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), tt.in)
	}
}
