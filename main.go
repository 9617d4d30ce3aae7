// Command acs-dash refreshes the ACS dashboard spreadsheet once and exits.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/EmpoweredVote/acs-dash/internal/archive"
	"github.com/EmpoweredVote/acs-dash/internal/catalog"
	"github.com/EmpoweredVote/acs-dash/internal/census"
	"github.com/EmpoweredVote/acs-dash/internal/config"
	"github.com/EmpoweredVote/acs-dash/internal/db"
	"github.com/EmpoweredVote/acs-dash/internal/geography"
	"github.com/EmpoweredVote/acs-dash/internal/logging"
	"github.com/EmpoweredVote/acs-dash/internal/pipeline"
	"github.com/EmpoweredVote/acs-dash/internal/sheets"
)

const (
	exitError         = 1
	exitMissingConfig = 2
)

func main() {
	os.Exit(run())
}

// exitCode maps a startup error to the process exit status. Only missing
// required settings get exitMissingConfig.
func exitCode(err error) int {
	if errors.Is(err, config.ErrConfigurationMissing) {
		return exitMissingConfig
	}
	return exitError
}

func run() int {
	_ = godotenv.Load(".env.local")
	cfg := config.LoadFromEnv()

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}
	defer log.Sync() //nolint:errcheck

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", zap.Error(err))
		return exitCode(err)
	}
	creds, err := cfg.Credentials()
	if err != nil {
		log.Error("invalid configuration", zap.Error(err))
		return exitError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.RunTimeout)
	defer cancel()

	cat, err := catalog.Default()
	if err != nil {
		log.Error("load catalog", zap.Error(err))
		return exitError
	}

	client := census.NewClient(cfg.CensusKey, census.WithLogger(log))
	publisher, err := sheets.New(ctx, creds, cfg.Spreadsheet, log)
	if err != nil {
		log.Error("sheets client", zap.Error(err))
		return exitError
	}

	rec := startArchive(ctx, cfg, log)
	defer rec.close()

	res, runErr := pipeline.Run(ctx, pipeline.Deps{
		Resolver: &pipeline.Resolver{
			Prober:  pipeline.CensusProber{Source: client},
			MinYear: cfg.MinYear,
			MaxYear: cfg.MaxYear,
			Log:     log,
		},
		Fetcher:       pipeline.NewFetcher(client, log),
		Catalog:       cat,
		Targets:       geography.DefaultTargets(),
		Sink:          publisher,
		Log:           log,
		IncludeRecent: cfg.IncludeRecent,
	})

	rec.finish(res, runErr)

	if runErr != nil {
		log.Error("refresh failed", zap.Error(runErr))
		return exitError
	}
	log.Info("refresh complete",
		zap.Int("latest_year", res.LatestYear),
		zap.Int("rows", res.Table.Len()),
		zap.Duration("duration", res.Duration))
	return 0
}

// recorder archives a run when DATABASE_URL is set. Its failures are logged
// and never change the exit status.
type recorder struct {
	store *archive.Store
	run   *archive.Run
	close func()
	log   *zap.Logger
}

func startArchive(ctx context.Context, cfg config.Config, log *zap.Logger) *recorder {
	rec := &recorder{close: func() {}, log: log}
	if cfg.DatabaseURL == "" {
		return rec
	}

	d, err := db.Open(cfg.DatabaseURL, log)
	if err != nil {
		log.Warn("archive disabled", zap.Error(err))
		return rec
	}
	rec.close = func() { _ = db.Close(d) }

	store := archive.NewStore(d, log)
	if err := store.Migrate(ctx); err != nil {
		log.Warn("archive disabled", zap.Error(err))
		return rec
	}
	run, err := store.StartRun(ctx, cfg.Spreadsheet)
	if err != nil {
		log.Warn("archive disabled", zap.Error(err))
		return rec
	}
	rec.store, rec.run = store, run
	log.Info("archiving run", zap.String("run_id", run.ID.String()))
	return rec
}

func (r *recorder) finish(res *pipeline.Result, runErr error) {
	if r.store == nil {
		return
	}
	// The run context may already be canceled or past its deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if res != nil && res.Published && res.Table != nil {
		if err := r.store.SaveSnapshot(ctx, r.run.ID, res.Table); err != nil {
			r.log.Warn("archive snapshot failed", zap.Error(err))
		}
	}
	if err := r.store.FinishRun(ctx, r.run.ID, res, runErr); err != nil {
		r.log.Warn("archive finish failed", zap.Error(err))
	}
}
