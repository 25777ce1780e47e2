package flush

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/sourcegraph/conc/pool"

	"github.com/roach88/maat/internal/ranking"
	"github.com/roach88/maat/internal/store"
)

// Reconciler rebuilds the rankings of registered entity types.
//
// Thread-safety: safe for concurrent use as long as no two concurrent calls
// flush the same (entity type, typology) pair.
type Reconciler struct {
	store    *store.Store
	registry *ranking.Registry

	batchSize     int
	metrics       Metrics
	runIDs        RunIDGenerator
	retries       int
	retryInterval time.Duration
	logger        *slog.Logger
}

// New creates a Reconciler writing to st for the handlers in reg.
func New(st *store.Store, reg *ranking.Registry, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		store:         st,
		registry:      reg,
		batchSize:     DefaultBatchSize,
		runIDs:        UUIDv7Generator{},
		retryInterval: time.Second,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Target selects typologies of one entity type. Empty Typologies selects
// every declared typology.
type Target struct {
	EntityType *ranking.EntityType
	Typologies []string
}

// plan is a validated Target.
type plan struct {
	entityType string
	handler    ranking.Handler
	typologies []string
}

// job is the flush of one (entity type, typology) pair.
type job struct {
	entityType string
	typology   string
	handler    ranking.Handler
	simulate   bool
	batchSize  int
	logger     *slog.Logger
	progress   io.Writer
}

// Flush rebuilds the rankings of t, one typology after another.
//
// Every requested typology is validated before anything is written; all
// undeclared names are reported together. The first typology that fails
// stops the flush with a *ranking.FlushError. Typologies promoted before the
// failure stay promoted and are listed in the returned Report.
func (r *Reconciler) Flush(ctx context.Context, t *ranking.EntityType, opts ...Option) (Report, error) {
	o := r.options(opts)

	p, err := r.plan(t, o.typologies)
	if err != nil {
		return Report{}, err
	}

	rep := Report{
		RunID:      r.runIDs.Generate(),
		EntityType: p.entityType,
		Simulated:  o.simulate,
	}
	logger := o.logger.With("run_id", rep.RunID, "entity_type", p.entityType)
	logger.Info("flush starting",
		"typologies", len(p.typologies),
		"simulate", o.simulate,
		"batch_size", o.batchSize,
	)

	for _, typ := range p.typologies {
		tr, err := r.flushWithRetry(ctx, job{
			entityType: p.entityType,
			typology:   typ,
			handler:    p.handler,
			simulate:   o.simulate,
			batchSize:  o.batchSize,
			logger:     logger.With("typology", typ),
			progress:   o.progress,
		})
		if err != nil {
			return rep, err
		}
		rep.Typologies = append(rep.Typologies, tr)
	}

	logger.Info("flush finished", "rows", rep.Rows())
	return rep, nil
}

// FlushAll flushes every pair selected by targets, at most parallel pairs
// at a time. parallel is capped at the store's MaxParallel: each running
// pair may hold two pooled connections.
//
// All targets are validated first; any invalid target fails the call before
// a single write. A failing pair does not stop the others: the returned
// reports list what completed and the error combines every FlushError.
func (r *Reconciler) FlushAll(ctx context.Context, targets []Target, parallel int, opts ...Option) ([]Report, error) {
	o := r.options(opts)

	var invalid *multierror.Error
	plans := make([]plan, 0, len(targets))
	for _, tg := range targets {
		p, err := r.plan(tg.EntityType, tg.Typologies)
		if err != nil {
			invalid = multierror.Append(invalid, err)
			continue
		}
		plans = append(plans, p)
	}
	if err := invalid.ErrorOrNil(); err != nil {
		return nil, err
	}

	runID := r.runIDs.Generate()
	logger := o.logger.With("run_id", runID)

	parallel = max(parallel, 1)
	if limit := r.store.MaxParallel(); parallel > limit {
		logger.Warn("parallel flushes capped by connection pool", "requested", parallel, "parallel", limit, "max_open_conns", r.store.MaxOpenConns())
		parallel = limit
	}
	logger.Info("flush starting", "entity_types", len(plans), "parallel", parallel, "simulate", o.simulate)

	type slot struct {
		report TypologyReport
		done   bool
	}
	slots := make([][]slot, len(plans))
	out := &lockedWriter{w: o.progress}

	workers := pool.New().WithErrors().WithMaxGoroutines(parallel)
	for i, p := range plans {
		slots[i] = make([]slot, len(p.typologies))
		for j, typ := range p.typologies {
			workers.Go(func() error {
				var buf bytes.Buffer
				progress := io.Writer(out)
				if parallel > 1 && o.progress != nil {
					progress = &buf
					defer func() { out.Write(buf.Bytes()) }()
				}

				tr, err := r.flushWithRetry(ctx, job{
					entityType: p.entityType,
					typology:   typ,
					handler:    p.handler,
					simulate:   o.simulate,
					batchSize:  o.batchSize,
					logger:     logger.With("entity_type", p.entityType, "typology", typ),
					progress:   progress,
				})
				if err != nil {
					return err
				}
				slots[i][j] = slot{report: tr, done: true}
				return nil
			})
		}
	}
	err := workers.Wait()

	reports := make([]Report, len(plans))
	for i, p := range plans {
		reports[i] = Report{RunID: runID, EntityType: p.entityType, Simulated: o.simulate}
		for _, s := range slots[i] {
			if s.done {
				reports[i].Typologies = append(reports[i].Typologies, s.report)
			}
		}
	}

	logger.Info("flush finished", "failed", err != nil)
	return reports, err
}

func (r *Reconciler) options(opts []Option) flushOptions {
	o := flushOptions{
		batchSize: r.batchSize,
		logger:    r.logger,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.batchSize <= 0 {
		o.batchSize = r.batchSize
	}
	o.batchSize = min(o.batchSize, r.store.MaxBatchRows())
	if o.logger == nil {
		o.logger = r.logger
	}
	return o
}

// plan resolves the handler of t and validates the requested typologies.
func (r *Reconciler) plan(t *ranking.EntityType, requested []string) (plan, error) {
	if t == nil {
		return plan{}, &ranking.Error{Code: ranking.CodeNotRegistered, Message: "entity type is nil"}
	}
	h, err := r.registry.HandlerFor(t)
	if err != nil {
		return plan{}, err
	}
	if len(requested) == 0 {
		return plan{entityType: t.Tag(), handler: h, typologies: h.Typologies()}, nil
	}

	var undeclared *multierror.Error
	seen := make(map[string]bool, len(requested))
	names := make([]string, 0, len(requested))
	for _, name := range requested {
		name = ranking.NormalizeName(name)
		if seen[name] {
			continue
		}
		seen[name] = true
		if err := ranking.ValidateTypology(t, h, name); err != nil {
			undeclared = multierror.Append(undeclared, err)
			continue
		}
		names = append(names, name)
	}
	if err := undeclared.ErrorOrNil(); err != nil {
		return plan{}, err
	}
	return plan{entityType: t.Tag(), handler: h, typologies: names}, nil
}

// flushWithRetry runs j, retrying storage failures as configured. Other
// failures are returned after the first attempt.
func (r *Reconciler) flushWithRetry(ctx context.Context, j job) (TypologyReport, error) {
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.retryInterval), uint64(r.retries)),
		ctx,
	)

	var (
		rep      TypologyReport
		lastErr  error
		attempts int
	)
	op := func() error {
		attempts++
		rep, lastErr = r.flushTypology(ctx, j)
		r.record(j, rep, lastErr)
		if lastErr != nil && !ranking.IsRetryable(lastErr) {
			return backoff.Permanent(lastErr)
		}
		return lastErr
	}
	notify := func(err error, wait time.Duration) {
		j.logger.Warn("typology flush failed, retrying", "attempt", attempts, "wait", wait, "error", err)
	}
	_ = backoff.RetryNotify(op, b, notify)

	rep.Attempts = attempts
	return rep, lastErr
}

// flushTypology rebuilds one ranking: stream ids into Staging batch by
// batch, then promote. On any error before promotion the Active rows are
// untouched and the Staging rows are left for the next run to clear.
func (r *Reconciler) flushTypology(ctx context.Context, j job) (TypologyReport, error) {
	start := time.Now()
	rep := TypologyReport{Typology: j.typology}
	var written int64

	fail := func(batch int, err error) (TypologyReport, error) {
		rep.Duration = time.Since(start)
		j.logger.Error("typology flush failed", "batch", batch, "rows", written, "error", err)
		return rep, &ranking.FlushError{
			EntityType: j.entityType,
			Typology:   j.typology,
			Batch:      batch,
			Written:    written,
			Err:        err,
		}
	}

	fmt.Fprintf(progressOf(j), "Handler: %s - Typology: %s\n", j.entityType, j.typology)

	prev, err := r.store.CountRows(ctx, j.entityType, j.typology, ranking.Active)
	if err != nil {
		return fail(-1, ranking.StorageError("count active rows", err))
	}
	rep.PreviousRows = prev

	if !j.simulate {
		cleared, err := r.store.ClearStaging(ctx, j.entityType, j.typology, j.batchSize)
		if err != nil {
			return fail(-1, ranking.StorageError("clear staging", err))
		}
		rep.Cleared = cleared
		if cleared > 0 {
			j.logger.Warn("cleared leftover staging rows", "rows", cleared)
		}
	}

	batch := make([]int64, 0, j.batchSize)
	next := ranking.PositionOrigin

	writeBatch := func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !j.simulate {
			if err := r.store.InsertStaging(ctx, j.entityType, j.typology, next, batch); err != nil {
				return ranking.StorageError("insert staging", err)
			}
			written += int64(len(batch))
		}
		next += int64(len(batch))
		rep.Rows += int64(len(batch))
		rep.Batches++

		if r.metrics != nil {
			r.metrics.BatchWritten(j.entityType, j.typology, len(batch))
		}
		j.logger.Debug("batch written", "batch", rep.Batches-1, "rows", len(batch), "total", rep.Rows)
		fmt.Fprintf(progressOf(j), "  batch %d: %d rows (%d total)\n", rep.Batches, len(batch), rep.Rows)

		batch = batch[:0]
		return nil
	}

	for id, err := range j.handler.IDs(ctx, j.typology) {
		if err != nil {
			return fail(rep.Batches, fmt.Errorf("handler sequence: %w", err))
		}
		if id <= 0 {
			return fail(rep.Batches, fmt.Errorf("handler sequence: invalid entity id %d at position %d", id, next+int64(len(batch))))
		}
		batch = append(batch, id)
		if len(batch) == j.batchSize {
			if err := writeBatch(); err != nil {
				return fail(rep.Batches, err)
			}
		}
	}
	if len(batch) > 0 {
		if err := writeBatch(); err != nil {
			return fail(rep.Batches, err)
		}
	}

	if j.simulate {
		rep.Duration = time.Since(start)
		j.logger.Info("typology simulated", "rows", rep.Rows, "batches", rep.Batches, "previous_rows", rep.PreviousRows)
		fmt.Fprintf(progressOf(j), "  simulated: %d rows in %d batches, nothing written\n", rep.Rows, rep.Batches)
		return rep, nil
	}

	if err := ctx.Err(); err != nil {
		return fail(-1, err)
	}
	promotion, err := r.store.Promote(ctx, j.entityType, j.typology)
	if err != nil {
		return fail(-1, ranking.StorageError("promote", err))
	}
	rep.Retired = promotion.Retired
	rep.Duration = time.Since(start)

	j.logger.Info("typology flushed",
		"rows", rep.Rows,
		"batches", rep.Batches,
		"retired", rep.Retired,
		"duration", rep.Duration,
	)
	fmt.Fprintf(progressOf(j), "  done: %d rows in %d batches, replaced %d\n", rep.Rows, rep.Batches, rep.Retired)
	return rep, nil
}

func (r *Reconciler) record(j job, rep TypologyReport, err error) {
	if r.metrics == nil {
		return
	}
	outcome := "promoted"
	switch {
	case err != nil:
		outcome = "failed"
	case j.simulate:
		outcome = "simulated"
	}
	r.metrics.TypologyFlushed(j.entityType, j.typology, outcome, rep.Rows, rep.Duration)
}

func progressOf(j job) io.Writer {
	if j.progress == nil {
		return io.Discard
	}
	return j.progress
}

// lockedWriter serializes writes from concurrent flushes. Write errors are
// dropped: progress output never affects the flush.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	if l.w == nil {
		return len(p), nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.w.Write(p)
	return len(p), nil
}
