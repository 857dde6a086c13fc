// Package api provides HTTP handlers and the main API server logic for
// hvacpilot.
//
// It exposes RESTful endpoints for diagnostic sessions, the troubleshooting
// knowledge base, the reference library, accounts, equipment manuals, and
// diagnosis history.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/coilworks/hvacpilot/internal/auth"
	"github.com/coilworks/hvacpilot/internal/engine"
	"github.com/coilworks/hvacpilot/internal/knowledge"
	"github.com/coilworks/hvacpilot/internal/manuals"
	"github.com/coilworks/hvacpilot/internal/store"
)

// Server configuration defaults.
const (
	DefaultAddr            = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
	// libraryCacheSize bounds the number of cached library search queries.
	libraryCacheSize = 256
)

// Opts holds configuration for the API server.
type Opts struct {
	Addr string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server wires the engine, knowledge base, and supporting services into an
// HTTP surface. The knowledge provider is called per request so a live
// reload swaps in atomically.
type Server struct {
	addr      string
	manager   *engine.Manager
	knowledge func() *knowledge.Store
	st        store.Store
	auth      *auth.Service
	manuals   *manuals.Service

	libCache *lru.Cache[string, []knowledge.LibrarySearchResult]

	httpServer *http.Server
}

// Deps carries the services the server exposes. Auth and Manuals may be nil;
// the corresponding endpoints then report the feature as unavailable.
type Deps struct {
	Manager   *engine.Manager
	Knowledge func() *knowledge.Store
	Store     store.Store
	Auth      *auth.Service
	Manuals   *manuals.Service
}

// NewServer creates the API server.
func NewServer(deps Deps, opts ...Option) (*Server, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if deps.Manager == nil || deps.Knowledge == nil {
		return nil, fmt.Errorf("engine manager and knowledge provider are required")
	}
	libCache, err := lru.New[string, []knowledge.LibrarySearchResult](libraryCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create library cache: %w", err)
	}
	s := &Server{
		addr:      cfg.Addr,
		manager:   deps.Manager,
		knowledge: deps.Knowledge,
		st:        deps.Store,
		auth:      deps.Auth,
		manuals:   deps.Manuals,
		libCache:  libCache,
	}
	return s, nil
}

// routes builds the request multiplexer.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Diagnostic sessions
	mux.HandleFunc("POST /sessions", s.createSessionHandler)
	mux.HandleFunc("GET /sessions/{id}", s.sessionStateHandler)
	mux.HandleFunc("POST /sessions/{id}/select", s.selectHandler)
	mux.HandleFunc("POST /sessions/{id}/answer", s.answerHandler)
	mux.HandleFunc("POST /sessions/{id}/previous", s.previousHandler)
	mux.HandleFunc("POST /sessions/{id}/restart", s.restartHandler)
	mux.HandleFunc("GET /sessions/{id}/diagnosis", s.diagnosisHandler)

	// Knowledge base
	mux.HandleFunc("GET /systems", s.systemsHandler)
	mux.HandleFunc("GET /categories", s.categoriesHandler)
	mux.HandleFunc("GET /flows", s.flowsHandler)
	mux.HandleFunc("GET /library", s.libraryHandler)
	mux.HandleFunc("GET /library/search", s.librarySearchHandler)

	// Accounts
	mux.HandleFunc("POST /auth/register", s.registerHandler)
	mux.HandleFunc("POST /auth/login", s.loginHandler)
	mux.HandleFunc("GET /auth/me", s.requireAuth(s.meHandler))

	// Manuals
	mux.HandleFunc("GET /manuals", s.listManualsHandler)
	mux.HandleFunc("GET /manuals/search", s.searchManualsHandler)
	mux.HandleFunc("POST /manuals", s.requireAuth(s.uploadManualHandler))
	mux.HandleFunc("GET /manuals/{id}/url", s.manualURLHandler)
	mux.HandleFunc("DELETE /manuals/{id}", s.requireAuth(s.deleteManualHandler))

	// History and billing
	mux.HandleFunc("GET /history", s.requireAuth(s.historyHandler))
	mux.HandleFunc("POST /billing/webhook", s.billingWebhookHandler)

	mux.HandleFunc("GET /health", s.healthHandler)
	return mux
}

// Run starts the HTTP server and blocks until the context is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("API server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("API server shutdown failed", "error", err)
		return err
	}
	return nil
}

// InvalidateLibraryCache drops cached library search results. Called after a
// knowledge snapshot swap.
func (s *Server) InvalidateLibraryCache() {
	s.libCache.Purge()
	slog.Debug("library search cache purged")
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "healthy"})
}
