// Package metrics declares the Prometheus series exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Reservations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ticketcore",
		Name:      "reservations_total",
		Help:      "Reservation attempts by outcome.",
	}, []string{"outcome"})

	ReservationsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ticketcore",
		Name:      "reservations_expired_total",
		Help:      "Reservations returned to stock by the sweeper.",
	})

	CheckoutSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ticketcore",
		Name:      "checkout_sessions_total",
		Help:      "Checkout sessions by terminal or creation outcome.",
	}, []string{"outcome"})

	Finalizations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ticketcore",
		Name:      "finalizations_total",
		Help:      "Finalize calls by source and whether they created the order.",
	}, []string{"source", "result"})

	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ticketcore",
		Name:      "provider_request_duration_seconds",
		Help:      "Payment provider request latency.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"operation", "status"})

	Payouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ticketcore",
		Name:      "payouts_total",
		Help:      "Payout operations by outcome.",
	}, []string{"outcome"})

	Disputes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ticketcore",
		Name:      "disputes_total",
		Help:      "Dispute transitions.",
	}, []string{"status"})

	AlertsTriggered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ticketcore",
		Name:      "price_alerts_triggered_total",
		Help:      "Price alerts flipped to triggered.",
	})

	LedgerDiscrepancies = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ticketcore",
		Name:      "ledger_discrepancies_total",
		Help:      "Reconciliations where the balance view and the ledger disagreed.",
	})

	OutboxEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ticketcore",
		Name:      "outbox_events_total",
		Help:      "Outbox events handled by the relay.",
	}, []string{"event_type", "result"})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ticketcore",
		Name:      "notifications_total",
		Help:      "Notifications delivered by channel and result.",
	}, []string{"channel", "result"})

	SweepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ticketcore",
		Name:      "sweep_duration_seconds",
		Help:      "Background sweep duration.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"sweep"})
)
