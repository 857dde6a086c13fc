// Package api provides knowledge base and reference library handlers.
package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/coilworks/hvacpilot/internal/models"
)

// systemsHandler handles GET /systems.
func (s *Server) systemsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(s.knowledge().SystemTypes()))
}

// categoriesHandler handles GET /categories.
func (s *Server) categoriesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(s.knowledge().Categories()))
}

// flowsHandler handles GET /flows.
func (s *Server) flowsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(s.knowledge().Flows()))
}

// libraryHandler handles GET /library.
func (s *Server) libraryHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(s.knowledge().Library()))
}

// librarySearchHandler handles GET /library/search?q=... Results are cached
// per query; the cache is purged when the knowledge snapshot is reloaded.
func (s *Server) librarySearchHandler(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Query parameter q is required"))
		return
	}
	key := strings.ToLower(query)
	if results, ok := s.libCache.Get(key); ok {
		slog.Debug("Server.librarySearchHandler: cache hit", "query", key)
		writeJSONResponse(w, http.StatusOK, models.Success(results))
		return
	}
	results := s.knowledge().SearchLibrary(query)
	s.libCache.Add(key, results)
	slog.Debug("Server.librarySearchHandler: cache miss", "query", key, "hits", len(results))
	writeJSONResponse(w, http.StatusOK, models.Success(results))
}
