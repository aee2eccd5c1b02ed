// Package metrics records batch masking outcomes in a Prometheus registry.
// Batch runs are short-lived, so the registry is written to a node_exporter
// textfile at the end of a run instead of being scraped.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/n1tecki/SAR-Sentinel1-Maritime-Surveillance/internal/maskerr"
)

// Outcome labels.
const (
	OutcomeOK            = "ok"
	OutcomeInputLoad     = "input_load"
	OutcomeEmptyInput    = "empty_input"
	OutcomeGeometry      = "geometry_assembly"
	OutcomeRasterization = "rasterization"
	OutcomeConfig        = "config"
	OutcomeCancelled     = "cancelled"
	OutcomeOther         = "other"
)

// Metrics holds the collectors for one process.
type Metrics struct {
	Registry *prometheus.Registry

	images        *prometheus.CounterVec
	stageSeconds  *prometheus.HistogramVec
	maskedPercent prometheus.Histogram
	lastRun       prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		images: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "surface_mask",
			Name:      "images_total",
			Help:      "Images processed, by outcome.",
		}, []string{"outcome"}),
		stageSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "surface_mask",
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
		maskedPercent: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "surface_mask",
			Name:      "masked_percent",
			Help:      "Share of pixels zeroed per image.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "surface_mask",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last batch finished.",
		}),
	}
	m.Registry.MustRegister(m.images, m.stageSeconds, m.maskedPercent, m.lastRun)
	return m
}

// Outcome classifies a pipeline error into an outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	// Cancellation wins over the kind of the stage it interrupted.
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCancelled
	case errors.Is(err, maskerr.ErrInputLoad):
		return OutcomeInputLoad
	case errors.Is(err, maskerr.ErrEmptyInput):
		return OutcomeEmptyInput
	case errors.Is(err, maskerr.ErrGeometryAssembly):
		return OutcomeGeometry
	case errors.Is(err, maskerr.ErrRasterization):
		return OutcomeRasterization
	case errors.Is(err, maskerr.ErrConfig):
		return OutcomeConfig
	}
	return OutcomeOther
}

// ObserveImage counts one processed image. Nil receivers are ignored so
// callers can run without metrics.
func (m *Metrics) ObserveImage(err error) {
	if m == nil {
		return
	}
	m.images.WithLabelValues(Outcome(err)).Inc()
}

// ObserveStage records the duration of one pipeline stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveMasked records the masked share of an image, in percent.
func (m *Metrics) ObserveMasked(percent float64) {
	if m == nil {
		return
	}
	m.maskedPercent.Observe(percent)
}

// WriteTextfile stamps the run time and writes the registry to path in the
// Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	m.lastRun.SetToCurrentTime()
	return prometheus.WriteToTextfile(path, m.Registry)
}
