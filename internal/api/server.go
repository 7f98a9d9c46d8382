// Package api exposes the operational HTTP surface: health, backend
// status, the failure-injection controls, and a few read endpoints over
// the storage contract.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/driftsec/phishdeck/internal/store"
	"github.com/driftsec/phishdeck/internal/store/conn"
)

// StoreProvider hands out the active backend. The connection manager is
// the production implementation.
type StoreProvider interface {
	Get(ctx context.Context) (store.Store, error)
	Describe(ctx context.Context) conn.Status
}

// ChaosController mutates the remote descriptor on disk. The failure
// injection harness is the production implementation.
type ChaosController interface {
	InjectRemoteFailure() error
	RestoreRemoteConnection() error
}

// Server represents the API server.
type Server struct {
	handler  http.Handler
	handlers *Handlers
	server   *http.Server
}

// NewServer creates a new API server. adminToken gates the /api/admin
// routes; an empty token disables them.
func NewServer(provider StoreProvider, chaos ChaosController, adminToken string) *Server {
	handlers := NewHandlers(provider, chaos)
	router := SetupRoutes(handlers, adminToken)

	return &Server{
		handler:  router,
		handlers: handlers,
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.handler
}
