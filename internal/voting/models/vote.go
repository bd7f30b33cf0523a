// Package models defines the voting protocol entities: the single-use vote
// token and the anonymous ballot it is exchanged for.
package models

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	id "agora/pkg/domain"
)

// VoteToken is a single-use voter card for one (referendum, user) pair. The
// credential is the only thing the voter presents when voting; the token
// row never references the ballot it produced.
type VoteToken struct {
	ID         id.TokenID
	Referendum id.ReferendumID
	User       id.UserID
	Credential string
	Redeemed   bool
	CreatedAt  time.Time
}

// credentialBytes gives 240 bits of entropy, same order as the original
// urlsafe(30) credentials.
const credentialBytes = 30

// NewCredential draws a high-entropy URL-safe credential. Uniqueness is not
// checked here; the store's unique constraint plus the service's bounded
// retry handle collisions.
func NewCredential() (string, error) {
	buf := make([]byte, credentialBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Ballot is an immutable, anonymous record of one choice selection.
// Invariant: no field links it to a user or a token.
type Ballot struct {
	ID     id.BallotID
	Choice id.ChoiceID
	CastAt time.Time
}
