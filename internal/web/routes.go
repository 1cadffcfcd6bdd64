package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

// Routes wires the auction page, its form actions, exports and probes.
func (h *Handlers) Routes(tp trace.TracerProvider) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(otelhttp.NewMiddleware("auctiond",
		otelhttp.WithTracerProvider(tp),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	))

	r.Get("/", h.Index)

	r.Post("/roster", h.UploadRoster)
	r.Post("/roster/shuffle", h.ShuffleRoster)
	r.Post("/teams", h.SetupTeams)

	r.Post("/bid", h.PlaceBid)
	r.Post("/sale", h.ConfirmSale)
	r.Post("/unsold", h.MarkUnsold)
	r.Post("/skip", h.Skip)
	r.Post("/next", h.SelectNext)
	r.Post("/restart", h.Restart)
	r.Post("/clear", h.ClearAll)

	r.Route("/export", func(r chi.Router) {
		r.Get("/results.csv", h.ExportResults)
		r.Get("/results.xlsx", h.ExportResults)
		r.Get("/teams.csv", h.ExportTeams)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.State)
		r.Get("/events", h.Events)
	})

	if h.health != nil {
		h.health.Mount(r)
	}
	return r
}
