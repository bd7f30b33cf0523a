// Package models defines the achievement ledger entry.
package models

import (
	"time"

	id "agora/pkg/domain"
)

// Badge identifies an unlockable achievement.
type Badge string

// Achievement records that a user unlocked a badge. Append-only: rows are
// never updated or deleted, and (User, Badge) is unique.
type Achievement struct {
	ID         id.AchievementID
	User       id.UserID
	Badge      Badge
	UnlockedAt time.Time
}
