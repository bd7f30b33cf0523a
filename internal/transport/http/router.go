package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registrar is implemented by every handler in this package.
type Registrar interface {
	Register(r chi.Router)
}

// NewRouter assembles the public HTTP surface. Handlers are passed in from
// main; the router only owns cross-cutting middleware and the operational
// endpoints.
func NewRouter(logger *slog.Logger, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(recovery(logger))
	r.Use(requestID)
	r.Use(requestTime)
	r.Use(requestLogger(logger))
	r.Use(callerIdentity)

	for _, h := range handlers {
		h.Register(r)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}
