// Command acs-serve serves the archived refresh runs over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/EmpoweredVote/acs-dash/internal/archive"
	"github.com/EmpoweredVote/acs-dash/internal/config"
	"github.com/EmpoweredVote/acs-dash/internal/db"
	"github.com/EmpoweredVote/acs-dash/internal/logging"
	"github.com/EmpoweredVote/acs-dash/internal/middleware"
	"github.com/EmpoweredVote/acs-dash/internal/status"
)

func main() {
	_ = godotenv.Load(".env.local")
	cfg := config.LoadFromEnv()

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	if err := cfg.RequireDatabase(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	d, err := db.Open(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close(d)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := archive.NewStore(d, log)
	if err := store.Migrate(ctx); err != nil {
		log.Fatal("migrate archive", zap.Error(err))
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORS(middleware.DefaultOrigins...))
	r.Mount("/", status.SetupRoutes(store, log))

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("server listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server error", zap.Error(err))
	}
}
