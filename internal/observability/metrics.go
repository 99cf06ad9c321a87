package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AcceptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dispatch", Name: "accepts_total", Help: "Accept attempts by outcome"},
		[]string{"outcome"},
	)
	AcceptLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "dispatch",
		Name:      "accept_latency_seconds",
		Help:      "Acceptance transaction latency distribution",
		Buckets:   prometheus.DefBuckets,
	})
	ExpiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dispatch", Name: "expired_requests_total", Help: "Requests expired by the sweeper, by timing class"},
		[]string{"class"},
	)
	FeedRefreshesTotal = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: "dispatch", Name: "feed_refreshes_total", Help: "Authoritative feed refetches issued by synchronizers"},
	)
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{Namespace: "dispatch", Name: "ws_connected_clients", Help: "Currently connected websocket clients"},
	)
)
