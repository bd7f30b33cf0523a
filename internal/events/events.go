// Package events implements the synchronous domain-event fan-out.
//
// Services publish an Event after a mutating operation commits; the bus
// delivers it to the observers registered for that kind, in registration
// order. Observers are wired explicitly at startup (cmd/server), not looked
// up by name at runtime.
package events

import (
	"time"

	id "agora/pkg/domain"
)

// Kind discriminates domain events.
type Kind string

const (
	KindReferendumSaved   Kind = "referendum_saved"
	KindTokenSaved        Kind = "token_saved"
	KindIdentityConfirmed Kind = "identity_confirmed"
	KindCommentSaved      Kind = "comment_saved"
	KindLikeSaved         Kind = "like_saved"
)

// Event is a snapshot of the entity mutation that just committed. Exactly
// one of the payload pointers is set, matching Kind. Payloads are value
// snapshots, not live entities, so observers cannot mutate domain state.
type Event struct {
	Kind Kind
	At   time.Time

	Referendum *ReferendumEvent
	Token      *TokenEvent
	Identity   *IdentityEvent
	Comment    *CommentEvent
	Like       *LikeEvent
}

// ReferendumEvent describes a referendum save.
type ReferendumEvent struct {
	ID        id.ReferendumID
	Creator   id.UserID
	Published bool // publication date is set (not necessarily passed)
	Planned   bool // event start is set
}

// TokenEvent describes a vote-token save. It never carries the credential.
type TokenEvent struct {
	Referendum id.ReferendumID
	User       id.UserID
	Redeemed   bool
}

// IdentityEvent describes an identity confirmation from the external
// document checker: the user's identity is verified until ValidUntil.
type IdentityEvent struct {
	User       id.UserID
	ValidUntil time.Time
}

// CommentEvent describes a comment save.
type CommentEvent struct {
	ID         id.CommentID
	Referendum id.ReferendumID
	User       id.UserID
}

// LikeEvent describes a like creation.
type LikeEvent struct {
	Referendum id.ReferendumID
	User       id.UserID
}
