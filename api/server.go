/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, the middleware stack and the route table.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:      Unique ID per request, logged with every line
  2. RealIP:         Client address behind a proxy
  3. requestLogger:  zerolog line + Prometheus counters per request
  4. Recoverer:      Panic recovery (500 instead of crash)
  5. CORS:           Cross-origin requests for a browser front end

ROUTE GROUPS:
  /api/products/*      Catalog
  /api/purchases/*     Purchase documents
  /api/sales/*         Sale documents
  /api/productions/*   Production runs
  /api/documents/*     Draft posting
  /api/stock/*         Derived stock and audit history
  /api/wages/*         Stage payroll
  /api/scenarios/*     Demo data loader
  /health              Liveness + store ping
  /metrics             Prometheus

SECURITY:
  Every write route is wrapped in Authenticator.RequireWriter. Reads are
  public.

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Token validation
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/agro-ledger/inventory"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, auth *Authenticator, allowedOrigins ...string) *chi.Mux {
	if h.Metrics == nil {
		h.Metrics = NewMetrics()
	}
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.Log, h.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	write := auth.RequireWriter

	r.Route("/api", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.With(write).Post("/", h.CreateProduct)
			r.Get("/{id}", h.GetProduct)
			r.With(write).Post("/{id}/active", h.SetProductActive)
		})

		documentRoutes(r, "/purchases", inventory.KindPurchase, h, h.CreatePurchase, write)
		documentRoutes(r, "/sales", inventory.KindSale, h, h.CreateSale, write)
		documentRoutes(r, "/productions", inventory.KindProduction, h, h.CreateProduction, write)

		r.With(write).Post("/documents/{id}/post", h.PostDraft)

		r.Route("/stock", func(r chi.Router) {
			r.Get("/", h.ListStock)
			if h.Auditor != nil {
				r.Get("/audit", h.Auditor.GetStockAudit)
			}
			r.Get("/{productID}", h.GetStock)
			r.Get("/{productID}/movements", h.GetMovements)
		})

		r.Route("/wages", func(r chi.Router) {
			r.Get("/records/{id}", h.GetWageRecord)
			r.Get("/{stage}", h.ListWageRecords)
			r.With(write).Post("/{stage}", h.CreateWageRecord)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.With(write).Post("/load", h.LoadScenario)
		})
	})

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())

	return r
}

func documentRoutes(
	r chi.Router,
	prefix string,
	kind inventory.Kind,
	h *Handler,
	create http.HandlerFunc,
	write func(http.Handler) http.Handler,
) {
	r.Route(prefix, func(r chi.Router) {
		r.Get("/", h.ListDocuments(kind))
		r.With(write).Post("/", create)
		r.Get("/{id}", h.GetDocument(kind))
		r.With(write).Post("/{id}/revoke", h.Revoke(kind))
	})
}
