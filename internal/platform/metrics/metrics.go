// Package metrics registers the process-wide Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all counters exposed on /metrics. A nil *Metrics is valid
// and turns every increment into a no-op, so unit tests don't have to
// register collectors.
type Metrics struct {
	ReferendumsCreated   prometheus.Counter
	TokensIssued         prometheus.Counter
	BallotsCast          prometheus.Counter
	AchievementsUnlocked prometheus.Counter
	PermissionsGranted   prometheus.Counter
	PermissionsRevoked   prometheus.Counter
	IdentitiesPurged     prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		ReferendumsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agora_referendums_created_total",
			Help: "Total number of referendums created",
		}),
		TokensIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agora_vote_tokens_issued_total",
			Help: "Total number of vote tokens issued",
		}),
		BallotsCast: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agora_ballots_cast_total",
			Help: "Total number of ballots cast",
		}),
		AchievementsUnlocked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agora_achievements_unlocked_total",
			Help: "Total number of first-time achievement unlocks",
		}),
		PermissionsGranted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agora_citizen_permissions_granted_total",
			Help: "Total number of citizenship permission grants",
		}),
		PermissionsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agora_citizen_permissions_revoked_total",
			Help: "Total number of citizenship permission revocations",
		}),
		IdentitiesPurged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agora_identities_purged_total",
			Help: "Total number of users whose expired identity records were purged",
		}),
	}
}

func (m *Metrics) IncReferendumsCreated() {
	if m != nil {
		m.ReferendumsCreated.Inc()
	}
}

func (m *Metrics) IncTokensIssued() {
	if m != nil {
		m.TokensIssued.Inc()
	}
}

func (m *Metrics) IncBallotsCast() {
	if m != nil {
		m.BallotsCast.Inc()
	}
}

func (m *Metrics) IncAchievementsUnlocked() {
	if m != nil {
		m.AchievementsUnlocked.Inc()
	}
}

func (m *Metrics) IncPermissionsGranted() {
	if m != nil {
		m.PermissionsGranted.Inc()
	}
}

func (m *Metrics) IncPermissionsRevoked() {
	if m != nil {
		m.PermissionsRevoked.Inc()
	}
}

func (m *Metrics) AddIdentitiesPurged(n int) {
	if m != nil && n > 0 {
		m.IdentitiesPurged.Add(float64(n))
	}
}
