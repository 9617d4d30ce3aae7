// Command check-year prints the most recent published ACS 5-year dataset and
// the ten-year window a refresh would publish.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/EmpoweredVote/acs-dash/internal/census"
	"github.com/EmpoweredVote/acs-dash/internal/config"
	"github.com/EmpoweredVote/acs-dash/internal/logging"
	"github.com/EmpoweredVote/acs-dash/internal/pipeline"
)

var (
	minYear = flag.Int("min", 0, "Oldest year to probe (default: ACS_MIN_YEAR)")
	maxYear = flag.Int("max", 0, "Newest year to probe (default: ACS_MAX_YEAR or current year)")
	verbose = flag.Bool("v", false, "Log every probe")
)

func main() {
	_ = godotenv.Load(".env.local")
	flag.Parse()
	cfg := config.LoadFromEnv()

	if cfg.CensusKey == "" {
		fmt.Fprintln(os.Stderr, config.ErrMissingCensusKey)
		os.Exit(2)
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	log, err := logging.New(level, "console")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	r := &pipeline.Resolver{
		Prober:  pipeline.CensusProber{Source: census.NewClient(cfg.CensusKey, census.WithLogger(log))},
		MinYear: cfg.MinYear,
		MaxYear: cfg.MaxYear,
		Log:     log,
	}
	if *minYear != 0 {
		r.MinYear = *minYear
	}
	if *maxYear != 0 {
		r.MaxYear = *maxYear
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	latest, err := r.Resolve(ctx)
	if err != nil {
		log.Error("resolve", zap.Error(err))
		os.Exit(1)
	}

	years := pipeline.YearWindow(latest)
	fmt.Printf("Most recent ACS 5-year dataset: %d\n", latest)
	fmt.Printf("Window: %d..%d (%d years)\n", years[0], years[len(years)-1], len(years))
}
