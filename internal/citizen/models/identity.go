// Package models defines the identity validity record backing the derived
// citizenship permission.
package models

import (
	"time"

	id "agora/pkg/domain"
)

// IdentityRecord is a time-bounded assertion, produced by the external
// document checker, that a user's identity was verified. Several records may
// exist per user (renewals); the permission derives from the latest one.
type IdentityRecord struct {
	ID         id.IdentityID
	User       id.UserID
	ValidUntil time.Time
	CreatedAt  time.Time
}

// IsValidAt reports whether the record still confers citizenship at now.
func (r IdentityRecord) IsValidAt(now time.Time) bool {
	return r.ValidUntil.After(now)
}
