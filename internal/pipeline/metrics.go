package pipeline

import (
	"context"
	"errors"

	"github.com/dunamismax/mediaproc/internal/domain"
	"github.com/dunamismax/mediaproc/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	transformsTotal      *prometheus.CounterVec
	transformDuration    *prometheus.HistogramVec
	fetchDuration        prometheus.Histogram
	sourceBytes          prometheus.Histogram
	pixelsProcessedTotal prometheus.Counter
	bytesSavedTotal      prometheus.Counter
	computeTimeMSTotal   prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		transformsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mediaproc_transforms_total",
			Help: "Total transform requests by output format and outcome.",
		}, []string{"format", "outcome"}),
		transformDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mediaproc_transform_duration_seconds",
			Help:    "Time spent decoding, resizing and encoding, by output format.",
			Buckets: prometheus.DefBuckets,
		}, []string{"format"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mediaproc_fetch_duration_seconds",
			Help:    "Time spent fetching source objects.",
			Buckets: prometheus.DefBuckets,
		}),
		sourceBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mediaproc_source_bytes",
			Help:    "Size of fetched source objects.",
			Buckets: prometheus.ExponentialBuckets(16<<10, 4, 8),
		}),
		pixelsProcessedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediaproc_usage_pixels_processed_total",
			Help: "Total output pixels across successful transforms.",
		}),
		bytesSavedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediaproc_usage_bytes_saved_total",
			Help: "Total bytes saved across successful transforms.",
		}),
		computeTimeMSTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediaproc_usage_compute_time_ms_total",
			Help: "Total compute time in milliseconds across successful transforms.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.transformsTotal,
		m.transformDuration,
		m.fetchDuration,
		m.sourceBytes,
		m.pixelsProcessedTotal,
		m.bytesSavedTotal,
		m.computeTimeMSTotal,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// outcomeLabel buckets an error into a low-cardinality metric label.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, domain.ErrResolutionTooLarge):
		return "too_large"
	case errors.Is(err, domain.ErrProcessingFailed):
		return "unprocessable"
	case errors.Is(err, storage.ErrNotFound):
		return "not_found"
	case errors.Is(err, storage.ErrTooLarge):
		return "source_too_large"
	case errors.Is(err, storage.ErrForbidden), errors.Is(err, storage.ErrTransport):
		return "upstream"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
