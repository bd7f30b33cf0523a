// Package domain holds typed identifiers shared across modules.
//
// Each entity gets its own uuid-backed type so the compiler rejects
// cross-entity mixups. Construct from external input via the ParseXxxID
// functions, which enforce the "valid, non-empty, non-nil UUID" invariant
// at trust boundaries; direct casting bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "agora/pkg/domain-errors"
)

type (
	// UserID identifies a registered citizen account.
	UserID uuid.UUID
	// ReferendumID identifies a referendum.
	ReferendumID uuid.UUID
	// CategoryID identifies a referendum category.
	CategoryID uuid.UUID
	// ChoiceID identifies one votable option of a referendum.
	ChoiceID uuid.UUID
	// TokenID identifies a vote token row (not its credential).
	TokenID uuid.UUID
	// BallotID identifies an anonymous ballot.
	BallotID uuid.UUID
	// IdentityID identifies one identity validity record.
	IdentityID uuid.UUID
	// AchievementID identifies one achievement ledger entry.
	AchievementID uuid.UUID
	// CommentID identifies a referendum comment.
	CommentID uuid.UUID
	// ReportID identifies a comment report.
	ReportID uuid.UUID
)

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" must not be the nil uuid")
	}
	return u, nil
}

// ParseUserID parses and validates a user ID from external input.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

// ParseReferendumID parses and validates a referendum ID from external input.
func ParseReferendumID(s string) (ReferendumID, error) {
	u, err := parseUUID(s, "referendum id")
	return ReferendumID(u), err
}

// ParseCategoryID parses and validates a category ID from external input.
func ParseCategoryID(s string) (CategoryID, error) {
	u, err := parseUUID(s, "category id")
	return CategoryID(u), err
}

// ParseChoiceID parses and validates a choice ID from external input.
func ParseChoiceID(s string) (ChoiceID, error) {
	u, err := parseUUID(s, "choice id")
	return ChoiceID(u), err
}

// ParseCommentID parses and validates a comment ID from external input.
func ParseCommentID(s string) (CommentID, error) {
	u, err := parseUUID(s, "comment id")
	return CommentID(u), err
}

// ParseAchievementID parses and validates an achievement ID from external input.
func ParseAchievementID(s string) (AchievementID, error) {
	u, err := parseUUID(s, "achievement id")
	return AchievementID(u), err
}

func (id UserID) String() string        { return uuid.UUID(id).String() }
func (id ReferendumID) String() string  { return uuid.UUID(id).String() }
func (id CategoryID) String() string    { return uuid.UUID(id).String() }
func (id ChoiceID) String() string      { return uuid.UUID(id).String() }
func (id TokenID) String() string       { return uuid.UUID(id).String() }
func (id BallotID) String() string      { return uuid.UUID(id).String() }
func (id IdentityID) String() string    { return uuid.UUID(id).String() }
func (id AchievementID) String() string { return uuid.UUID(id).String() }
func (id CommentID) String() string     { return uuid.UUID(id).String() }
func (id ReportID) String() string      { return uuid.UUID(id).String() }

func (id UserID) IsZero() bool       { return uuid.UUID(id) == uuid.Nil }
func (id ReferendumID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id ChoiceID) IsZero() bool     { return uuid.UUID(id) == uuid.Nil }
