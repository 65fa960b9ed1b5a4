package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// IngestedTotal counts ingestions by terminal result.
	IngestedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capturewatch",
		Subsystem: "pipeline",
		Name:      "ingested_total",
		Help:      "Total number of capture ingestions, labeled by result.",
	}, []string{"result"})

	// AnomaliesTotal counts ingestions whose verdict was anomalous.
	AnomaliesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "capturewatch",
		Subsystem: "pipeline",
		Name:      "anomalies_total",
		Help:      "Total number of ingestions classified as anomalous.",
	})

	// DiffPercentage observes the frame difference score per ingestion.
	DiffPercentage = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "capturewatch",
		Subsystem: "pipeline",
		Name:      "diff_percentage",
		Help:      "Frame difference score per ingestion, in percent.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 40, 60, 80, 100},
	})

	// ClassifyDurationSeconds is the vision model round-trip time.
	ClassifyDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "capturewatch",
		Subsystem: "pipeline",
		Name:      "classify_duration_seconds",
		Help:      "Time spent in the vision model classification call.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 60},
	}, []string{"result"})

	// UploadErrorTotal counts storage upload failures (pipeline continues).
	UploadErrorTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "capturewatch",
		Subsystem: "pipeline",
		Name:      "upload_error_total",
		Help:      "Total number of frame upload failures tolerated by the pipeline.",
	})

	// AlertErrorTotal counts alert dispatch failures (swallowed).
	AlertErrorTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "capturewatch",
		Subsystem: "alert",
		Name:      "dispatch_error_total",
		Help:      "Total number of alert dispatch failures.",
	})
)

// Register registers pipeline metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			IngestedTotal,
			AnomaliesTotal,
			DiffPercentage,
			ClassifyDurationSeconds,
			UploadErrorTotal,
			AlertErrorTotal,
		)
	})
}
