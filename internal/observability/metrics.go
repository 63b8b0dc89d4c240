package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"method", "route"},
	)

	GoalsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "escrow_goals_created_total",
			Help: "Goals accepted into escrow",
		},
	)

	VotesCast = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_votes_total",
			Help: "Accepted verifier votes by choice",
		},
		[]string{"choice"},
	)

	Finalizations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_finalizations_total",
			Help: "Verification records finalized, by result and cause",
		},
		[]string{"result", "cause"},
	)

	Settlements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_settlements_total",
			Help: "Settlement attempts by outcome",
		},
		[]string{"recipient_kind", "outcome"},
	)

	SettledAmount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_settled_amount_total",
			Help: "Smallest-unit value paid out by settlement",
		},
		[]string{"recipient_kind"},
	)

	TransferDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "escrow_transfer_duration_seconds",
			Help:    "Duration of value transfer calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	registerOnce sync.Once
)

// Init registers the collectors with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			GoalsCreated,
			VotesCast,
			Finalizations,
			Settlements,
			SettledAmount,
			TransferDuration,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}
