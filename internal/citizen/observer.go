// Package citizen glues the citizen service into the event bus.
package citizen

import (
	"context"

	"agora/internal/citizen/service"
	"agora/internal/events"
)

// IdentityObserver turns identity-confirmation events from the external
// document checker into identity records, which in turn drives the
// permission recompute.
type IdentityObserver struct {
	citizens *service.Service
}

func NewIdentityObserver(citizens *service.Service) *IdentityObserver {
	return &IdentityObserver{citizens: citizens}
}

func (o *IdentityObserver) Name() string { return "identity-recorder" }

func (o *IdentityObserver) Update(ctx context.Context, ev events.Event) error {
	if ev.Kind != events.KindIdentityConfirmed || ev.Identity == nil {
		return nil
	}
	_, err := o.citizens.ConfirmIdentity(ctx, ev.Identity.User, ev.Identity.ValidUntil)
	return err
}
