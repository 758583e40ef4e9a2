package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iddaa-lens/jobrunner/internal/config"
	"github.com/iddaa-lens/jobrunner/pkg/invoker"
	"github.com/iddaa-lens/jobrunner/pkg/jobs"
	"github.com/iddaa-lens/jobrunner/pkg/logger"
	"github.com/iddaa-lens/jobrunner/pkg/models/api"
	"github.com/iddaa-lens/jobrunner/pkg/store"
)

// openStore is replaced in tests
var openStore = store.Open

// options carries the command line flags
type options struct {
	once   bool
	dryRun bool
	at     time.Time
}

func main() {
	// Parse command line flags
	var (
		once   = flag.Bool("once", false, "Run a single cycle and exit")
		dryRun = flag.Bool("dry-run", false, "Print every job's decision and exit without invoking anything")
		at     = flag.String("at", "", "Evaluation instant (RFC3339) for -once and -dry-run; defaults to now")
	)
	flag.Parse()

	logger.SetupLogger()
	log := logger.New("cron-service")

	cfg := config.Load()

	opts := options{once: *once, dryRun: *dryRun, at: time.Now().UTC()}
	if *at != "" {
		parsed, err := time.Parse(time.RFC3339Nano, *at)
		if err != nil {
			log.Fatalf("Invalid -at value %q: %v", *at, err)
		}
		opts.at = parsed.UTC()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Fatal exits only after run has released the store
	if err := run(context.Background(), cfg, opts, log, os.Stdout, quit); err != nil {
		log.Fatal().
			Err(err).
			Str("action", "cron_failed").
			Msg("Cron job service failed")
	}
}

// run executes the mode selected by opts. The store is closed before it returns.
func run(ctx context.Context, cfg *config.Config, opts options, log *logger.Logger, out io.Writer, quit <-chan os.Signal) error {
	opened, err := openStore(ctx, cfg, log, !opts.dryRun)
	if err != nil {
		return fmt.Errorf("open %s job store: %w", cfg.Store.Driver, err)
	}
	defer opened.Close()

	httpInvoker := invoker.NewHTTPInvoker(invoker.HTTPConfigFrom(cfg), nil, logger.New("job-invoker"))
	cycle := jobs.NewCycle(opened.Store, httpInvoker, logger.New("schedule-cycle"), &jobs.CycleConfig{
		Concurrency: cfg.Scheduler.Concurrency,
	})

	if opts.dryRun {
		if err := printDecisions(ctx, cycle, opts.at, out); err != nil {
			return fmt.Errorf("dry run: %w", err)
		}
		return nil
	}

	if opts.once {
		runCtx, cancel := context.WithTimeout(ctx, cfg.Scheduler.CycleTimeout)
		defer cancel()

		report, err := cycle.RunCycle(runCtx, opts.at)
		if err != nil {
			return fmt.Errorf("schedule cycle: %w", err)
		}
		for _, jobErr := range report.Errors() {
			log.Error().
				Err(jobErr).
				Str("action", "job_failed").
				Msg("Job failed during cycle")
		}
		log.Info().
			Str("action", "once_complete").
			Int("succeeded", report.Succeeded).
			Int("failed", report.Failed).
			Int("skipped", report.Skipped).
			Msg("Single cycle completed")
		return nil
	}

	jobManager := jobs.NewJobManager(logger.New("job-manager"), &jobs.ManagerConfig{
		ExecutionTimeout: cfg.Scheduler.CycleTimeout,
		RunOnStart:       cfg.Scheduler.RunOnStart,
	})

	cycleJob := jobs.NewCycleJob(cycle, cfg.Scheduler.Schedule)
	if err := jobManager.RegisterJob(cycleJob); err != nil {
		return fmt.Errorf("register schedule cycle %q: %w", cfg.Scheduler.Schedule, err)
	}

	// Start job manager
	jobManager.Start()
	log.Info().
		Str("action", "service_started").
		Str("schedule", cfg.Scheduler.Schedule).
		Int("concurrency", cfg.Scheduler.Concurrency).
		Bool("run_on_start", cfg.Scheduler.RunOnStart).
		Msg("Cron job service started")

	// Wait for interrupt signal to gracefully shutdown
	<-quit

	log.Info().Str("action", "service_stopping").Msg("Shutting down cron job service")
	jobManager.Stop()
	log.Info().Str("action", "service_stopped").Msg("Cron job service stopped")
	return nil
}

// printDecisions writes every job and its decision at now to out as JSON
func printDecisions(ctx context.Context, cycle *jobs.Cycle, now time.Time, out io.Writer) error {
	defs, decisions, err := cycle.Evaluate(ctx, now)
	if err != nil {
		return err
	}

	items := make([]api.JobResponse, 0, len(defs))
	eligible := 0
	for i, def := range defs {
		d := decisions[i]
		if d.Eligible {
			eligible++
		}
		items = append(items, api.NewJobResponse(def, d))
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(api.Response{
		Success: true,
		Data:    items,
		Meta: api.EvaluationMeta{
			EvaluatedAt: now,
			Total:       len(defs),
			Eligible:    eligible,
		},
	})
}
