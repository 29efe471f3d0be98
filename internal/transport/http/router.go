// Package httptransport assembles the public HTTP surface: shared middleware,
// operational endpoints, and the recovery routes.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpmetrics "carrieralpha/internal/platform/metrics"
	"carrieralpha/pkg/platform/httputil"
	"carrieralpha/pkg/platform/middleware/logging"
	"carrieralpha/pkg/platform/middleware/metadata"
	"carrieralpha/pkg/platform/middleware/requesttime"
)

// Registrar is implemented by every handler that owns a set of routes.
type Registrar interface {
	Register(r chi.Router)
}

// NewRouter wires the middleware chain and mounts each registrar's routes. Request
// metadata and the request clock are attached before anything logs.
func NewRouter(logger *slog.Logger, m *httpmetrics.Metrics, gatherer prometheus.Gatherer, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(metadata.RequestMetadata)
	r.Use(requesttime.Middleware)
	r.Use(logging.Recovery(logger))
	r.Use(logging.AccessLog(logger))
	if m != nil {
		r.Use(m.Middleware)
	}

	r.Get("/healthz", handleHealth)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	for _, h := range handlers {
		h.Register(r)
	}
	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
