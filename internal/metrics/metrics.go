// Package metrics exposes Prometheus collectors for the warmer service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	warmerPagesTotal           *prometheus.CounterVec
	warmerRequestDurationSecs  *prometheus.HistogramVec
	warmerQueueItemsTotal      *prometheus.CounterVec
	warmerActivePools          prometheus.Gauge
	warmerRunsTotal            *prometheus.CounterVec
	warmerNotificationsTotal   *prometheus.CounterVec
	warmerQueueSweepDeleted    prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		warmerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warmer_pages_total",
				Help: "Total number of pages warmed, labeled by store and status class.",
			},
			[]string{"store", "class"},
		)

		warmerRequestDurationSecs = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warmer_request_duration_seconds",
				Help:    "Histogram of warm request latencies, labeled by store.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"store"},
		)

		warmerQueueItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warmer_queue_items_total",
				Help: "Total number of queue items finalized, labeled by status.",
			},
			[]string{"status"},
		)

		warmerActivePools = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "warmer_active_pools",
				Help: "Number of crawl identity pools currently running.",
			},
		)

		warmerRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warmer_runs_total",
				Help: "Total number of warming runs, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		warmerNotificationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warmer_notifications_total",
				Help: "Total number of webhook notifications, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		warmerQueueSweepDeleted = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "warmer_queue_sweep_deleted_total",
				Help: "Total number of queue rows removed by the retention sweep.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveWarm records one settled warm request.
func ObserveWarm(storeCode string, status int, duration time.Duration) {
	class := "error"
	switch {
	case status >= 200 && status < 300:
		class = "success"
	case status > 0 && status < 500:
		class = "warning"
	}
	warmerPagesTotal.WithLabelValues(storeCode, class).Inc()
	warmerRequestDurationSecs.WithLabelValues(storeCode).Observe(duration.Seconds())
}

// ObserveQueueItem increments the finalized queue item counter for a status.
func ObserveQueueItem(status string) {
	warmerQueueItemsTotal.WithLabelValues(status).Inc()
}

// ObserveRun increments the run counter for the given outcome.
func ObserveRun(outcome string) {
	warmerRunsTotal.WithLabelValues(outcome).Inc()
}

// ObserveNotification increments the notification counter for the given outcome.
func ObserveNotification(outcome string) {
	warmerNotificationsTotal.WithLabelValues(outcome).Inc()
}

// AddSweepDeleted adds to the retention sweep deletion counter.
func AddSweepDeleted(n int) {
	warmerQueueSweepDeleted.Add(float64(n))
}

// IncActivePools increments the active pool gauge.
func IncActivePools() {
	warmerActivePools.Inc()
}

// DecActivePools decrements the active pool gauge.
func DecActivePools() {
	warmerActivePools.Dec()
}
