// Package models holds the engagement entities: likes, comments and
// comment reports.
package models

import (
	"time"

	id "agora/pkg/domain"
)

// Like marks that a user likes a referendum. The (referendum, user) pair is
// the identity; there is no surrogate id.
type Like struct {
	Referendum id.ReferendumID
	User       id.UserID
	CreatedAt  time.Time
}

// Comment is a user comment on a referendum. Comments are never deleted;
// moderation flips Visible off instead.
type Comment struct {
	ID         id.CommentID
	Referendum id.ReferendumID
	User       id.UserID
	Body       string
	Visible    bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Report flags a comment for moderation.
type Report struct {
	ID        id.ReportID
	Comment   id.CommentID
	User      id.UserID
	Reason    string
	CreatedAt time.Time
}
