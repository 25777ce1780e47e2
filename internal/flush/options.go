package flush

import (
	"io"
	"log/slog"
	"time"
)

// DefaultBatchSize is the number of rows written per staging insert.
const DefaultBatchSize = 250

// Metrics receives flush measurements. Implemented by metrics.Recorder.
type Metrics interface {
	// BatchWritten is called after every staging batch (or counted batch in
	// simulate mode).
	BatchWritten(entityType, typology string, rows int)

	// TypologyFlushed is called once per attempt with outcome "promoted",
	// "simulated" or "failed".
	TypologyFlushed(entityType, typology, outcome string, rows int64, elapsed time.Duration)
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithDefaultBatchSize sets the batch size used when a flush does not pass
// WithBatchSize. Values < 1 are ignored.
func WithDefaultBatchSize(n int) ReconcilerOption {
	return func(r *Reconciler) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithMetrics installs a metrics sink.
func WithMetrics(m Metrics) ReconcilerOption {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

// WithRunID replaces the UUIDv7 run id generator.
func WithRunID(g RunIDGenerator) ReconcilerOption {
	return func(r *Reconciler) {
		r.runIDs = g
	}
}

// WithRetries retries a typology up to n more times, interval apart, when
// it failed with a storage error. Each attempt restarts the typology from an
// empty staging buffer with a fresh handler sequence.
func WithRetries(n int, interval time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		r.retries = max(n, 0)
		r.retryInterval = interval
	}
}

// WithDefaultLogger sets the logger used when a flush does not pass
// WithLogger.
func WithDefaultLogger(l *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

type flushOptions struct {
	typologies []string
	simulate   bool
	batchSize  int
	logger     *slog.Logger
	progress   io.Writer
}

// Option configures one Flush call.
type Option func(*flushOptions)

// WithTypologies restricts the flush to the named typologies. Default: every
// typology the handler declares, in declaration order.
func WithTypologies(names ...string) Option {
	return func(o *flushOptions) {
		o.typologies = append(o.typologies, names...)
	}
}

// WithSimulate consumes and counts the handler sequences without writing.
func WithSimulate(simulate bool) Option {
	return func(o *flushOptions) {
		o.simulate = simulate
	}
}

// WithBatchSize overrides the rows written per insert statement. The value
// is clamped to what one statement of the store's dialect can carry.
func WithBatchSize(n int) Option {
	return func(o *flushOptions) {
		o.batchSize = n
	}
}

// WithLogger sets the structured logger for this flush.
func WithLogger(l *slog.Logger) Option {
	return func(o *flushOptions) {
		o.logger = l
	}
}

// WithProgress writes human-readable progress lines to w.
func WithProgress(w io.Writer) Option {
	return func(o *flushOptions) {
		o.progress = w
	}
}
