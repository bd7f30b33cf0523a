package achievements

import (
	id "agora/pkg/domain"

	"agora/internal/achievements/models"
	"agora/internal/events"
)

// Badges carried over from the original platform.
const (
	// BadgeOrateur: created and published a referendum.
	BadgeOrateur models.Badge = "orateur"
	// BadgePoliticien: scheduled a referendum's vote.
	BadgePoliticien models.Badge = "politicien"
	// BadgeVotant: voted at least once.
	BadgeVotant models.Badge = "votant"
)

// Rule declares one unlockable badge for an event kind. Predicates are
// plain functions over the event snapshot — there is no runtime method
// lookup, and adding a badge means adding a line here.
type Rule struct {
	Badge       models.Badge
	Label       string
	Description string
	// Predicate returns the user the badge would go to and whether the
	// event satisfies the badge's condition.
	Predicate func(ev events.Event) (id.UserID, bool)
}

// Catalog maps each watched event kind to its badge rules. Kinds without
// rules (identity confirmations, comments, likes) are watched for parity
// with the event surface but currently unlock nothing.
func Catalog() map[events.Kind][]Rule {
	return map[events.Kind][]Rule{
		events.KindReferendumSaved: {
			{
				Badge:       BadgeOrateur,
				Label:       "Orateur",
				Description: "Vous avez créé puis publié un référendum.",
				Predicate: func(ev events.Event) (id.UserID, bool) {
					if ev.Referendum == nil {
						return id.UserID{}, false
					}
					return ev.Referendum.Creator, ev.Referendum.Published
				},
			},
			{
				Badge:       BadgePoliticien,
				Label:       "Politicien",
				Description: "Vous avez planifié un référendum.",
				Predicate: func(ev events.Event) (id.UserID, bool) {
					if ev.Referendum == nil {
						return id.UserID{}, false
					}
					return ev.Referendum.Creator, ev.Referendum.Planned
				},
			},
		},
		events.KindTokenSaved: {
			{
				Badge:       BadgeVotant,
				Label:       "Votant",
				Description: "Vous avez voté au moins une fois.",
				Predicate: func(ev events.Event) (id.UserID, bool) {
					if ev.Token == nil {
						return id.UserID{}, false
					}
					return ev.Token.User, ev.Token.Redeemed
				},
			},
		},
	}
}
