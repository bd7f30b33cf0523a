package events

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	id "agora/pkg/domain"
)

type recordingObserver struct {
	name  string
	seen  []Event
	err   error
	panic bool
}

func (o *recordingObserver) Name() string { return o.name }

func (o *recordingObserver) Update(_ context.Context, ev Event) error {
	if o.panic {
		panic("boom")
	}
	o.seen = append(o.seen, ev)
	return o.err
}

func refEvent() Event {
	return Event{
		Kind: KindReferendumSaved,
		At:   time.Now(),
		Referendum: &ReferendumEvent{
			ID:      id.ReferendumID(uuid.New()),
			Creator: id.UserID(uuid.New()),
		},
	}
}

func TestBus_DeliversInRegistrationOrder(t *testing.T) {
	var order []string
	first := &orderedObserver{name: "first", order: &order}
	second := &orderedObserver{name: "second", order: &order}

	bus := NewBus(slog.Default(),
		Registration{Observer: first, Kinds: []Kind{KindReferendumSaved}},
		Registration{Observer: second, Kinds: []Kind{KindReferendumSaved}},
	)

	bus.Notify(context.Background(), refEvent())
	assert.Equal(t, []string{"first", "second"}, order)
}

type orderedObserver struct {
	name  string
	order *[]string
}

func (o *orderedObserver) Name() string { return o.name }

func (o *orderedObserver) Update(context.Context, Event) error {
	*o.order = append(*o.order, o.name)
	return nil
}

func TestBus_OnlyMatchingKindsDelivered(t *testing.T) {
	refObs := &recordingObserver{name: "ref"}
	tokenObs := &recordingObserver{name: "token"}

	bus := NewBus(slog.Default(),
		Registration{Observer: refObs, Kinds: []Kind{KindReferendumSaved}},
		Registration{Observer: tokenObs, Kinds: []Kind{KindTokenSaved}},
	)

	bus.Notify(context.Background(), refEvent())

	assert.Len(t, refObs.seen, 1)
	assert.Empty(t, tokenObs.seen)
}

func TestBus_FailingObserverDoesNotBlockLaterObservers(t *testing.T) {
	failing := &recordingObserver{name: "failing", err: errors.New("nope")}
	healthy := &recordingObserver{name: "healthy"}

	bus := NewBus(slog.Default(),
		Registration{Observer: failing, Kinds: []Kind{KindReferendumSaved}},
		Registration{Observer: healthy, Kinds: []Kind{KindReferendumSaved}},
	)

	bus.Notify(context.Background(), refEvent())
	assert.Len(t, healthy.seen, 1)
}

func TestBus_PanickingObserverIsIsolated(t *testing.T) {
	panicking := &recordingObserver{name: "panicking", panic: true}
	healthy := &recordingObserver{name: "healthy"}

	bus := NewBus(slog.Default(),
		Registration{Observer: panicking, Kinds: []Kind{KindReferendumSaved}},
		Registration{Observer: healthy, Kinds: []Kind{KindReferendumSaved}},
	)

	assert.NotPanics(t, func() {
		bus.Notify(context.Background(), refEvent())
	})
	assert.Len(t, healthy.seen, 1)
}

func TestBus_NoObserversForKindIsNoop(t *testing.T) {
	bus := NewBus(slog.Default())
	assert.NotPanics(t, func() {
		bus.Notify(context.Background(), refEvent())
	})
}
