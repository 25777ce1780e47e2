// Package metrics exports flush measurements as Prometheus collectors.
//
// maat flush is a batch job, so besides the usual registry the Recorder can
// write its state to a node_exporter textfile after each run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "maat"
	subsystem = "flush"
)

// Recorder collects flush metrics. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	batchRows     *prometheus.HistogramVec
	rowsWritten   *prometheus.CounterVec
	typologies    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	rankingRows   *prometheus.GaugeVec
	lastSuccessTS *prometheus.GaugeVec
}

// Option configures a Recorder.
type Option func(*options)

type options struct {
	registry *prometheus.Registry
	buckets  []float64
}

// WithRegistry registers the collectors on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		if reg != nil {
			o.registry = reg
		}
	}
}

// WithDurationBuckets sets the histogram buckets of typology flush duration.
func WithDurationBuckets(buckets []float64) Option {
	return func(o *options) {
		if len(buckets) > 0 {
			o.buckets = buckets
		}
	}
}

// New creates a Recorder with its collectors registered.
func New(opts ...Option) *Recorder {
	o := options{
		registry: prometheus.NewRegistry(),
		buckets:  []float64{.05, .1, .5, 1, 5, 15, 60, 300, 900},
	}
	for _, opt := range opts {
		opt(&o)
	}

	pair := []string{"entity_type", "typology"}
	r := &Recorder{
		registry: o.registry,
		batchRows: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "batch_rows",
			Help:      "Rows per staging insert statement.",
			Buckets:   []float64{1, 10, 50, 100, 250, 500, 1000, 5000},
		}, pair),
		rowsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rows_total",
			Help:      "Ranking rows streamed from handlers.",
		}, pair),
		typologies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "typologies_total",
			Help:      "Typology flush attempts by outcome.",
		}, append(pair, "outcome")),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "duration_seconds",
			Help:      "Duration of one typology flush attempt.",
			Buckets:   o.buckets,
		}, pair),
		rankingRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ranking_rows",
			Help:      "Length of the active ranking after the last promotion.",
		}, pair),
		lastSuccessTS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last promotion.",
		}, pair),
	}
	r.registry.MustRegister(r.batchRows, r.rowsWritten, r.typologies, r.duration, r.rankingRows, r.lastSuccessTS)
	return r
}

// Registry returns the registry holding the collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// BatchWritten records one staging batch.
func (r *Recorder) BatchWritten(entityType, typology string, rows int) {
	if r == nil {
		return
	}
	r.batchRows.WithLabelValues(entityType, typology).Observe(float64(rows))
	r.rowsWritten.WithLabelValues(entityType, typology).Add(float64(rows))
}

// TypologyFlushed records the outcome of one typology flush attempt.
func (r *Recorder) TypologyFlushed(entityType, typology, outcome string, rows int64, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.typologies.WithLabelValues(entityType, typology, outcome).Inc()
	r.duration.WithLabelValues(entityType, typology).Observe(elapsed.Seconds())
	if outcome == "promoted" {
		r.rankingRows.WithLabelValues(entityType, typology).Set(float64(rows))
		r.lastSuccessTS.WithLabelValues(entityType, typology).SetToCurrentTime()
	}
}

// WriteTextfile writes the current metrics to path in the Prometheus text
// format, atomically, for the node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
