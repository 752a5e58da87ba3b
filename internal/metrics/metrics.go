package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Payment outcomes reported by PaymentRecorded
const (
	OutcomeRecorded  = "recorded"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// Loyalty holds the counters of the membership engine. A nil *Loyalty is
// valid and records nothing.
type Loyalty struct {
	payments       *prometheus.CounterVec
	pointsEarned   prometheus.Counter
	pointsRedeemed prometheus.Counter
	tierChanges    *prometheus.CounterVec
	leaderboards   *prometheus.CounterVec
	reconciled     prometheus.Counter
}

// NewLoyalty creates the counters and registers them with reg
func NewLoyalty(reg prometheus.Registerer) *Loyalty {
	m := &Loyalty{
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loyalty",
			Name:      "payments_total",
			Help:      "Payments processed by the loyalty engine, by outcome.",
		}, []string{"outcome"}),
		pointsEarned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loyalty",
			Name:      "points_earned_total",
			Help:      "Points credited to users.",
		}),
		pointsRedeemed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loyalty",
			Name:      "points_redeemed_total",
			Help:      "Points redeemed by users.",
		}),
		tierChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loyalty",
			Name:      "tier_changes_total",
			Help:      "Cached tier changes, by previous and new tier.",
		}, []string{"from", "to"}),
		leaderboards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loyalty",
			Name:      "leaderboard_requests_total",
			Help:      "Leaderboard computations, by period and cache result.",
		}, []string{"period", "cache"}),
		reconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loyalty",
			Name:      "reconcile_runs_total",
			Help:      "Completed tier reconciliation runs.",
		}),
	}

	reg.MustRegister(m.payments, m.pointsEarned, m.pointsRedeemed, m.tierChanges, m.leaderboards, m.reconciled)
	return m
}

func (m *Loyalty) PaymentRecorded(outcome string) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(outcome).Inc()
}

func (m *Loyalty) PointsEarned(points decimal.Decimal) {
	if m == nil {
		return
	}
	m.pointsEarned.Add(points.InexactFloat64())
}

func (m *Loyalty) PointsRedeemed(points decimal.Decimal) {
	if m == nil {
		return
	}
	m.pointsRedeemed.Add(points.InexactFloat64())
}

// TierChanged counts a tier transition. Empty names are reported as "none".
func (m *Loyalty) TierChanged(from, to string) {
	if m == nil {
		return
	}
	m.tierChanges.WithLabelValues(orNone(from), orNone(to)).Inc()
}

func (m *Loyalty) LeaderboardServed(period string, cacheHit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if cacheHit {
		result = "hit"
	}
	m.leaderboards.WithLabelValues(period, result).Inc()
}

func (m *Loyalty) ReconcileCompleted() {
	if m == nil {
		return
	}
	m.reconciled.Inc()
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
