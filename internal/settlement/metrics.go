package settlement

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	settlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "partnersplit_settlements_total",
		Help: "Rent settlements by phase and outcome.",
	}, []string{"phase", "outcome"})

	settlementDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "partnersplit_settlement_duration_seconds",
		Help:    "End-to-end duration of ApplyRent, including retries.",
		Buckets: prometheus.DefBuckets,
	})

	settlementRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "partnersplit_settlement_retries_total",
		Help: "Settlement attempts retried after a version conflict.",
	})

	withdrawalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "partnersplit_withdrawals_total",
		Help: "Withdrawal ledger entries recorded.",
	})
)
