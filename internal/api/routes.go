package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// orgHeader carries the tenant on every data route. Full authentication is
// handled upstream; the persistence surface only needs to know which
// organization a request belongs to.
const orgHeader = "X-Org-ID"

// adminTokenHeader carries the shared secret for the /api/admin routes.
const adminTokenHeader = "X-Admin-Token"

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, adminToken string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", orgHeader, adminTokenHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (no auth required)
	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(requireOrg)
			r.Get("/dashboard", h.GetDashboard)
			r.Get("/campaigns/{campaignID}/results", h.GetCampaignResults)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAdminToken(adminToken))
			r.Get("/backend", h.GetBackendStatus)
			r.Post("/chaos/inject", h.InjectChaos)
			r.Post("/chaos/restore", h.RestoreChaos)
		})
	})

	return r
}

// requireOrg rejects data requests that do not name a tenant.
func requireOrg(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get(orgHeader) == "" {
			respondError(w, http.StatusBadRequest, "missing "+orgHeader+" header")
			return
		}
		next.ServeHTTP(w, req)
	})
}

func requireAdminToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if token == "" {
				respondError(w, http.StatusForbidden, "admin routes are disabled, no admin token configured")
				return
			}
			got := req.Header.Get(adminTokenHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				respondError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}
