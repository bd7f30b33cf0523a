// Package models defines the referendum aggregate: the referendum itself,
// its categories, and its votable choices.
package models

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	id "agora/pkg/domain"
	dErrors "agora/pkg/domain-errors"
)

// State is where a referendum sits in its irreversible lifecycle. It is a
// pure function of the persisted row and a clock; nothing stores it.
type State string

const (
	// StateDraft: no publication date yet, everything editable.
	StateDraft State = "draft"
	// StateScheduled: publication date set but still in the future.
	StateScheduled State = "scheduled"
	// StatePublished: publication date passed, voting not started.
	StatePublished State = "published"
	// StateInProgress: between event start and event end.
	StateInProgress State = "in_progress"
	// StateOver: event end passed.
	StateOver State = "over"
)

// Duration is a vote-window length in seconds, restricted to an enum.
type Duration int

// Duration24h is the single currently supported vote window. The odd value
// keeps the window strictly inside one calendar day.
const Duration24h Duration = 86399

var durationLabels = map[Duration]string{
	Duration24h: "24h",
}

func (d Duration) IsValid() bool { return durationLabels[d] != "" }

func (d Duration) Label() string { return durationLabels[d] }

func (d Duration) AsTime() time.Duration { return time.Duration(d) * time.Second }

// Field names a mutable referendum attribute, used by the lifecycle rules to
// express which attributes a write may touch.
type Field string

const (
	FieldTitle           Field = "title"
	FieldDescription     Field = "description"
	FieldQuestion        Field = "question"
	FieldCategories      Field = "categories"
	FieldPublicationDate Field = "publication_date"
	FieldEventStart      Field = "event_start"
	FieldDuration        Field = "duration"
)

// Referendum is a citizen-initiated question put to a vote.
type Referendum struct {
	ID              id.ReferendumID
	Title           string
	Slug            string
	Description     string
	Question        string
	Categories      []id.CategoryID
	Duration        Duration
	Creator         id.UserID
	CreatedAt       time.Time
	UpdatedAt       time.Time
	PublicationDate *time.Time
	EventStart      *time.Time
}

// EventEnd derives the end of the vote window, nil until a start is set.
func (r *Referendum) EventEnd() *time.Time {
	if r.EventStart == nil {
		return nil
	}
	end := r.EventStart.Add(r.Duration.AsTime())
	return &end
}

// IsPublished reports whether the publication date has passed at now.
func (r *Referendum) IsPublished(now time.Time) bool {
	return r.PublicationDate != nil && r.PublicationDate.Before(now)
}

// IsInProgress reports whether voting is open at now.
func (r *Referendum) IsInProgress(now time.Time) bool {
	end := r.EventEnd()
	if r.EventStart == nil || end == nil {
		return false
	}
	return r.EventStart.Before(now) && now.Before(*end)
}

// IsOver reports whether the vote window has closed at now.
func (r *Referendum) IsOver(now time.Time) bool {
	end := r.EventEnd()
	return end != nil && end.Before(now)
}

// StateAt resolves the lifecycle state at now.
func (r *Referendum) StateAt(now time.Time) State {
	switch {
	case r.IsOver(now):
		return StateOver
	case r.IsInProgress(now):
		return StateInProgress
	case r.IsPublished(now):
		return StatePublished
	case r.PublicationDate != nil:
		return StateScheduled
	default:
		return StateDraft
	}
}

// UpdatableFields returns the attributes a write may change, decided from
// this (pre-write) snapshot at now. The surface only ever shrinks: drafts
// are fully editable, published referendums can only be scheduled, and once
// voting starts nothing moves.
func (r *Referendum) UpdatableFields(now time.Time) []Field {
	if r.IsInProgress(now) || r.IsOver(now) {
		return nil
	}
	if r.IsPublished(now) {
		return []Field{FieldEventStart, FieldDuration}
	}
	return []Field{FieldTitle, FieldDescription, FieldQuestion, FieldCategories, FieldPublicationDate}
}

// MinimumEventStart computes the earliest permissible event start: the
// configured delay counted from the publication date, or from now once the
// referendum is already published.
func (r *Referendum) MinimumEventStart(now time.Time, minDelay time.Duration) time.Time {
	origin := now
	if r.PublicationDate != nil && !r.IsPublished(now) {
		origin = *r.PublicationDate
	}
	return origin.Add(minDelay)
}

// Validate checks the scheduling invariants. minDelay is the configured
// minimum gap between publication and event start.
func (r *Referendum) Validate(now time.Time, minDelay time.Duration) error {
	if strings.TrimSpace(r.Title) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "title is required")
	}
	if !r.Duration.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unsupported vote duration")
	}
	if r.EventStart != nil && r.PublicationDate == nil {
		return dErrors.New(dErrors.CodeInvalidInput,
			"event start cannot be set before a publication date is defined")
	}
	if r.PublicationDate != nil && r.EventStart != nil {
		if min := r.MinimumEventStart(now, minDelay); r.EventStart.Before(min) {
			return dErrors.Newf(dErrors.CodeInvalidInput,
				"event start must be at least %s after publication (earliest %s)",
				minDelay, min.Format(time.RFC3339))
		}
	}
	return nil
}

// Slugify derives a URL slug from a title: diacritics folded to their base
// letter, lowercase, runs of non-alphanumerics collapsed to single hyphens.
func Slugify(title string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range norm.NFKD.String(strings.ToLower(title)) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// Category organises referendums by theme.
type Category struct {
	ID    id.CategoryID
	Title string
	Slug  string
}

// Choice is one option a citizen can vote for on a referendum.
// (Referendum, Title) is unique.
type Choice struct {
	ID         id.ChoiceID
	Referendum id.ReferendumID
	Title      string
}

// DefaultChoiceTitles is the choice set bootstrapped on every new
// referendum: yes, no, blank vote.
var DefaultChoiceTitles = []string{"Oui", "Non", "Vote blanc"}
