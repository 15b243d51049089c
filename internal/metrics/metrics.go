package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	dispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noticenter_dispatches_total",
			Help: "Total dispatch calls by mode (sync or queued)",
		},
		[]string{"mode"},
	)

	deliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noticenter_deliveries_total",
			Help: "Total channel deliveries by channel and status",
		},
		[]string{"channel", "status"},
	)

	deliveryLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "noticenter_delivery_seconds",
			Help:    "Channel delivery latency distribution",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30},
		},
		[]string{"channel"},
	)
)

// RecordDispatch counts one dispatch call.
func RecordDispatch(mode string) {
	dispatchesTotal.WithLabelValues(mode).Inc()
}

// RecordDelivery counts one channel delivery attempt result.
func RecordDelivery(channel, status string) {
	deliveriesTotal.WithLabelValues(channel, status).Inc()
}

// ObserveDeliveryLatency records how long one delivery took.
func ObserveDeliveryLatency(channel string, d time.Duration) {
	deliveryLatency.WithLabelValues(channel).Observe(d.Seconds())
}

// Handler returns the Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
