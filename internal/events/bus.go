package events

import (
	"context"
	"log/slog"
)

// Observer reacts to a domain event. Implementations must tolerate being
// called for kinds they registered for only; the bus never fans out other
// kinds to them.
type Observer interface {
	// Name identifies the observer in logs.
	Name() string
	// Update handles one event. A returned error is logged and does not
	// stop delivery to later observers.
	Update(ctx context.Context, ev Event) error
}

// Registration binds an observer to the event kinds it wants.
type Registration struct {
	Observer Observer
	Kinds    []Kind
}

// Bus delivers events synchronously to registered observers. Registration
// happens once at startup; Notify is safe for concurrent use afterwards.
type Bus struct {
	logger    *slog.Logger
	observers map[Kind][]Observer
}

func NewBus(logger *slog.Logger, regs ...Registration) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	observers := make(map[Kind][]Observer)
	for _, reg := range regs {
		for _, kind := range reg.Kinds {
			observers[kind] = append(observers[kind], reg.Observer)
		}
	}
	return &Bus{logger: logger, observers: observers}
}

// Notify delivers ev to every observer registered for its kind, in
// registration order. A failing or panicking observer is logged and skipped;
// it never blocks later observers or the publisher.
func (b *Bus) Notify(ctx context.Context, ev Event) {
	for _, obs := range b.observers[ev.Kind] {
		b.deliver(ctx, obs, ev)
	}
}

func (b *Bus) deliver(ctx context.Context, obs Observer, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("observer panicked",
				"observer", obs.Name(), "kind", string(ev.Kind), "panic", r)
		}
	}()
	if err := obs.Update(ctx, ev); err != nil {
		b.logger.Error("observer failed",
			"observer", obs.Name(), "kind", string(ev.Kind), "error", err)
	}
}
