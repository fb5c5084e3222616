// Package metrics registers the Prometheus collectors for the diagnostic log
// service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LogAppendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devlog_appends_total",
		Help: "Log append operations by result (ok, empty, error)",
	}, []string{"result"})

	LogBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devlog_bytes_written_total",
		Help: "Bytes appended to the diagnostic log",
	})

	LogQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "devlog_queue_depth",
		Help: "Operations waiting on the log writer queue",
	})

	LogFileBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "devlog_file_bytes",
		Help: "Size of the diagnostic log file at the last sample",
	})

	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devlog_uploads_total",
		Help: "Upload attempts by outcome (success or error kind)",
	}, []string{"relay", "outcome"})

	UploadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "devlog_upload_duration_seconds",
		Help:    "Time from POST to response or transport failure",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30},
	}, []string{"relay"})

	TriggerPulsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devlog_trigger_pulses_total",
		Help: "Hardware trigger pulses by disposition (published, ignored)",
	}, []string{"disposition"})

	TriggerSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "devlog_trigger_subscribed",
		Help: "1 while the hardware motion source subscription is active",
	})

	BusDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devlog_bus_dropped_total",
		Help: "Trigger events dropped because a subscriber was slow",
	})
)

// IncAppend records one append outcome.
func IncAppend(result string, n int) {
	LogAppendsTotal.WithLabelValues(result).Inc()
	if n > 0 {
		LogBytesTotal.Add(float64(n))
	}
}

// IncUpload records the outcome of one upload attempt.
func IncUpload(relay, outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	UploadsTotal.WithLabelValues(relay, outcome).Inc()
}
