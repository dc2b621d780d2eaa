// Package metrics exposes Prometheus counters for overlay reveals and negotiation outcomes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RevealsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "haggle_reveals_total", Help: "Negotiation overlays revealed, by trigger reason"},
		[]string{"reason"},
	)
	BidsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "haggle_bids_total", Help: "Client bids evaluated, by price zone"},
		[]string{"zone"},
	)
	SessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "haggle_sessions_total", Help: "Negotiation sessions ended, by outcome"},
		[]string{"outcome"},
	)
	ThinkCancellations = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "haggle_think_cancellations_total", Help: "Pending think-delays cancelled before completion"},
	)
	AnalyticsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "haggle_analytics_dropped_total", Help: "Analytics events dropped because the sink queue was full"},
	)
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "haggle_active_sessions", Help: "Overlay sessions currently connected to the websocket host"},
	)
)

func init() {
	prometheus.MustRegister(RevealsTotal, BidsTotal, SessionsTotal, ThinkCancellations, AnalyticsDropped, ActiveSessions)
}

// Handler returns the scrape handler for the default registry.
func Handler() http.Handler { return promhttp.Handler() }

// Serve starts a metrics-only HTTP server in the background.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
