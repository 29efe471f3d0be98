package httptransport

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	httpmetrics "carrieralpha/internal/platform/metrics"
	"carrieralpha/pkg/platform/middleware/metadata"
	"carrieralpha/pkg/requestcontext"
	"carrieralpha/pkg/testutil"
)

type echoRoutes struct{}

func (echoRoutes) Register(r chi.Router) {
	r.Get("/echo", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		w.Header().Set("X-Seen-Actor", requestcontext.Actor(ctx))
		w.Header().Set("X-Seen-Time", requestcontext.Now(ctx).Format("2006"))
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/boom", func(http.ResponseWriter, *http.Request) {
		panic("handler bug")
	})
}

func TestRouterScaffold(t *testing.T) {
	testutil.Given(t, "the HTTP router", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		router := NewRouter(slog.New(slog.NewTextHandler(io.Discard, nil)), httpmetrics.New(reg), reg, echoRoutes{})

		testutil.When(t, "calling GET /healthz", func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			testutil.Then(t, "it reports ok", func(t *testing.T) {
				testutil.AssertStatusOK(t, rec)
				testutil.AssertJSONContains(t, rec, "status", "ok")
			})
		})

		testutil.When(t, "a registered route is called with an actor", func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/echo", nil)
			req.Header.Set(metadata.HeaderActor, "ops")
			req.Header.Set(metadata.HeaderRequestID, "req-42")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			testutil.Then(t, "request metadata reaches the handler", func(t *testing.T) {
				assert.Equal(t, http.StatusNoContent, rec.Code)
				assert.Equal(t, "ops", rec.Header().Get("X-Seen-Actor"))
				assert.NotEmpty(t, rec.Header().Get("X-Seen-Time"))
				assert.Equal(t, "req-42", rec.Header().Get(metadata.HeaderRequestID))
			})
		})

		testutil.When(t, "a handler panics", func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

			testutil.Then(t, "it responds with an internal error", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rec, http.StatusInternalServerError, "internal_error")
			})
		})

		testutil.When(t, "calling GET /metrics", func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

			testutil.Then(t, "HTTP metrics are exposed", func(t *testing.T) {
				testutil.AssertStatusOK(t, rec)
				assert.Contains(t, rec.Body.String(), "carrier_alpha_http_requests_total")
			})
		})
	})
}
