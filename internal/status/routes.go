package status

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/EmpoweredVote/acs-dash/internal/logging"
)

func SetupRoutes(store RunReader, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	h := handlers{store: store, log: logging.OrNop(log)}

	r.Get("/", RootHandler)
	r.Get("/runs", h.listRuns)
	r.Get("/runs/latest", h.latestRun)
	r.Get("/runs/{id}/table.csv", h.runTable)

	return r
}
