package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"bankimport/internal/auth"
	"bankimport/internal/logger"
)

// RouterConfig carries what the router needs besides the handlers.
type RouterConfig struct {
	Auth    *auth.Auth
	Logger  *slog.Logger
	Metrics http.Handler
	// CORSOrigins enables CORS for the listed origins.
	CORSOrigins []string
}

// NewRouter wires the routes. Everything under /api requires the API token;
// /healthz and /metrics do not.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// logging -> recover -> cors -> routes
	r.Use(logger.Middleware(cfg.Logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", h.Healthz)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		if cfg.Auth != nil {
			r.Use(cfg.Auth.Middleware)
		}

		r.Get("/version", h.APIVersion)

		r.Route("/organizations/{orgID}", func(r chi.Router) {
			// Imports
			r.Post("/imports/preview", h.PreviewImport)
			r.Post("/imports", h.CreateImport)

			// Jobs
			r.Get("/jobs/{id}", h.JobStatus)
			r.Post("/jobs/{id}/commit", h.CommitImport)

			// Aliases
			r.Get("/aliases", h.AliasesList)
			r.Post("/aliases", h.AliasesCreate)

			// Clients
			r.Get("/clients", h.ClientsList)
			r.Post("/clients", h.ClientsCreate)
			r.Get("/clients/{id}", h.ClientsShow)

			// Employees
			r.Get("/employees", h.EmployeesList)
			r.Post("/employees", h.EmployeesCreate)
			r.Post("/employees/{id}/deactivate", h.EmployeesDeactivate)
			r.Post("/employees/{id}/reactivate", h.EmployeesReactivate)

			// Ledger
			r.Get("/transactions", h.TransactionsList)
			r.Get("/transactions/{id}", h.TransactionsShow)
		})
	})

	return r
}
