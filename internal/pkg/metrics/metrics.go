// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "earnbot"

// WithdrawRequests counts withdrawal submissions by result
// (submitted, below_minimum, insufficient_balance, error).
var WithdrawRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "withdraw_requests_total",
	Help:      "Total withdrawal submissions by result.",
}, []string{"result"})

// Decisions counts administrator decisions by request kind and outcome.
var Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "decisions_total",
	Help:      "Total approve/reject decisions by kind and outcome.",
}, []string{"kind", "outcome"})

// ReferralBonus counts units paid out as referral bonuses.
var ReferralBonus = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "referral_bonus_total",
	Help:      "Total units credited to referrers.",
})

// NotificationFailures counts outbound messages that could not be delivered.
var NotificationFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "notification_failures_total",
	Help:      "Total best-effort notifications that failed to deliver.",
})

// Events counts inbound events by kind (text, document, callback).
var Events = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "events_total",
	Help:      "Total inbound events handled by kind.",
}, []string{"kind"})
