package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/maat/internal/flush"
	"github.com/roach88/maat/internal/metrics"
	"github.com/roach88/maat/internal/ranking"
)

// FlushOptions holds flags for the flush command.
type FlushOptions struct {
	*RootOptions
	Simulate      bool
	BatchSize     int
	Parallel      int
	Retries       int
	RetryInterval time.Duration
	MetricsFile   string
}

// NewFlushCommand creates the flush command.
func NewFlushCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FlushOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "flush [selector...]",
		Short: "Rebuild rankings",
		Long: `Rebuild the rankings of the selected entity types.

A selector is an entity type, optionally followed by a comma separated list
of typologies: "blog.article" or "blog.article:newest,popular". Without
selectors every registered entity type is flushed.

Each typology is written to the staging buffer in batches and promoted in a
single transaction; readers keep seeing the previous ranking until then.

Example:
  maat flush
  maat flush blog.article:newest blog.author
  maat flush --simulate --parallel 4`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFlush(cmd, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.Simulate, "simulate", false, "consume handlers and report, write nothing")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 0, "rows per staging insert (default from config)")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 0, "pairs flushed at once (default from config)")
	cmd.Flags().IntVar(&opts.Retries, "retries", 0, "retries of a typology failing with a storage error")
	cmd.Flags().DurationVar(&opts.RetryInterval, "retry-interval", 0, "pause between retries (default from config)")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this file after the flush")

	return cmd
}

// applyFlags overrides configuration values with flags set on the command
// line.
func (o *FlushOptions) applyFlags(cmd *cobra.Command) error {
	cfg := o.Config
	flags := cmd.Flags()
	if flags.Changed("batch-size") {
		cfg.BatchSize = o.BatchSize
	}
	if flags.Changed("parallel") {
		cfg.Parallel = o.Parallel
	}
	if flags.Changed("retries") {
		cfg.Retries = o.Retries
	}
	if flags.Changed("retry-interval") {
		cfg.RetryInterval = o.RetryInterval
	}
	if flags.Changed("metrics-file") {
		cfg.MetricsFile = o.MetricsFile
	}
	return cfg.Validate()
}

func runFlush(cmd *cobra.Command, opts *FlushOptions, args []string) error {
	if err := opts.applyFlags(cmd); err != nil {
		return WrapExitError(ExitCommandError, "invalid flag", err)
	}
	cfg, logger := opts.Config, opts.Logger
	out := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	sess, err := openSession(opts.RootOptions, true)
	if err != nil {
		return err
	}
	defer sess.close()

	if sess.registry.Len() == 0 {
		return out.Success(message("No registered handlers found."))
	}

	targets, err := resolveTargets(sess.registry, args)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid selector", err)
	}

	out.VerboseLog("flushing %d entity types, %d pairs at a time", len(targets), cfg.Parallel)

	runIDs := opts.RunIDs
	if runIDs == nil {
		runIDs = flush.UUIDv7Generator{}
	}
	reconcilerOpts := []flush.ReconcilerOption{
		flush.WithDefaultBatchSize(cfg.BatchSize),
		flush.WithRetries(cfg.Retries, cfg.RetryInterval),
		flush.WithDefaultLogger(logger),
		flush.WithRunID(runIDs),
	}
	var recorder *metrics.Recorder
	if cfg.MetricsFile != "" {
		recorder = metrics.New()
		reconcilerOpts = append(reconcilerOpts, flush.WithMetrics(recorder))
	}
	reconciler := flush.New(sess.store, sess.registry, reconcilerOpts...)

	// Progress lines share stdout with text output; JSON output keeps
	// stdout to the result document.
	var progress io.Writer = cmd.OutOrStdout()
	if opts.Format == "json" {
		progress = cmd.ErrOrStderr()
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reports, flushErr := reconciler.FlushAll(ctx, targets, cfg.Parallel,
		flush.WithSimulate(opts.Simulate),
		flush.WithProgress(progress),
	)

	if recorder != nil {
		if err := recorder.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Warn("failed to write metrics", "path", cfg.MetricsFile, "error", err)
		}
	}

	if flushErr != nil {
		var rerr *ranking.Error
		var ferr *ranking.FlushError
		switch {
		case errors.As(flushErr, &rerr) && !errors.As(flushErr, &ferr):
			return WrapExitError(ExitCommandError, "invalid selector", flushErr)
		case ctx.Err() != nil:
			return WrapExitError(ExitFailure, "flush interrupted", flushErr)
		default:
			return WrapExitError(ExitFailure, "flush failed", flushErr)
		}
	}

	return out.Success(newFlushSummary(reports, opts.Simulate))
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// message is a plain text result; in JSON it is {"message": ...}.
type message string

func (m message) renderText(w io.Writer) error {
	_, err := fmt.Fprintln(w, string(m))
	return err
}

func (m message) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"message": string(m)})
}

type flushSummary struct {
	RunID       string          `json:"run_id"`
	Simulated   bool            `json:"simulated"`
	Rows        int64           `json:"rows"`
	EntityTypes []entitySummary `json:"entity_types"`
}

type entitySummary struct {
	EntityType string            `json:"entity_type"`
	Typologies []typologySummary `json:"typologies"`
}

type typologySummary struct {
	Typology     string `json:"typology"`
	Rows         int64  `json:"rows"`
	Batches      int    `json:"batches"`
	PreviousRows int64  `json:"previous_rows"`
	Retired      int64  `json:"retired"`
	Attempts     int    `json:"attempts"`
}

func newFlushSummary(reports []flush.Report, simulated bool) flushSummary {
	s := flushSummary{Simulated: simulated, EntityTypes: make([]entitySummary, 0, len(reports))}
	for _, rep := range reports {
		s.RunID = rep.RunID
		s.Rows += rep.Rows()
		es := entitySummary{EntityType: rep.EntityType, Typologies: make([]typologySummary, 0, len(rep.Typologies))}
		for _, tr := range rep.Typologies {
			es.Typologies = append(es.Typologies, typologySummary{
				Typology:     tr.Typology,
				Rows:         tr.Rows,
				Batches:      tr.Batches,
				PreviousRows: tr.PreviousRows,
				Retired:      tr.Retired,
				Attempts:     tr.Attempts,
			})
		}
		s.EntityTypes = append(s.EntityTypes, es)
	}
	return s
}

func (s flushSummary) renderText(w io.Writer) error {
	typologies := 0
	for _, es := range s.EntityTypes {
		typologies += len(es.Typologies)
	}
	verb := "Flushed"
	if s.Simulated {
		verb = "Simulated"
	}
	_, err := fmt.Fprintf(w, "%s %d typologies of %d entity types, %d rows (run %s)\n",
		verb, typologies, len(s.EntityTypes), s.Rows, s.RunID)
	return err
}
