// Package api provides equipment manual handlers.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coilworks/hvacpilot/internal/manuals"
	"github.com/coilworks/hvacpilot/internal/models"
)

// MaxManualUploadSize bounds manual file uploads (32 MiB).
const MaxManualUploadSize = 32 << 20

// listManualsHandler handles GET /manuals.
func (s *Server) listManualsHandler(w http.ResponseWriter, r *http.Request) {
	if s.manuals == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Manuals are not enabled"))
		return
	}
	listed, err := s.manuals.List(r.Context())
	if err != nil {
		slog.Error("Server.listManualsHandler: list failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list manuals"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(listed))
}

// searchManualsHandler handles GET /manuals/search?q=...
func (s *Server) searchManualsHandler(w http.ResponseWriter, r *http.Request) {
	if s.manuals == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Manuals are not enabled"))
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Query parameter q is required"))
		return
	}
	results, err := s.manuals.Search(r.Context(), query)
	if err != nil {
		slog.Error("Server.searchManualsHandler: search failed", "error", err, "query", query)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to search manuals"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(results))
}

// uploadManualHandler handles POST /manuals as a multipart form with a "file"
// part plus title/category/subcategory/description/is_public fields.
func (s *Server) uploadManualHandler(w http.ResponseWriter, r *http.Request) {
	if s.manuals == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Manuals are not enabled"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxManualUploadSize)
	if err := r.ParseMultipartForm(MaxManualUploadSize); err != nil {
		slog.Warn("Server.uploadManualHandler: multipart parse failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid multipart form"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Manual file is required"))
		return
	}
	defer file.Close()

	req := manuals.UploadRequest{
		Title:       r.FormValue("title"),
		Category:    r.FormValue("category"),
		Subcategory: r.FormValue("subcategory"),
		Description: r.FormValue("description"),
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		IsPublic:    r.FormValue("is_public") == "true",
		UploadedBy:  userIDFromContext(r.Context()),
		Content:     file,
	}
	m, err := s.manuals.Upload(r.Context(), req)
	if err != nil {
		if errors.Is(err, models.ErrMissingManualTitle) || errors.Is(err, models.ErrMissingManualFile) {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		slog.Error("Server.uploadManualHandler: upload failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to upload manual"))
		return
	}
	slog.Info("Server.uploadManualHandler: manual uploaded", "id", m.ID, "title", m.Title)
	writeJSONResponse(w, http.StatusCreated, models.Success(m))
}

// manualURLHandler handles GET /manuals/{id}/url, returning a time-limited
// download link for the manual's file content.
func (s *Server) manualURLHandler(w http.ResponseWriter, r *http.Request) {
	if s.manuals == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Manuals are not enabled"))
		return
	}
	url, err := s.manuals.DownloadURL(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, manuals.ErrNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Manual not found"))
			return
		}
		slog.Error("Server.manualURLHandler: presign failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to generate download link"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"url": url}))
}

// deleteManualHandler handles DELETE /manuals/{id}.
func (s *Server) deleteManualHandler(w http.ResponseWriter, r *http.Request) {
	if s.manuals == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Manuals are not enabled"))
		return
	}
	id := r.PathValue("id")
	if err := s.manuals.Delete(r.Context(), id); err != nil {
		if errors.Is(err, manuals.ErrNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Manual not found"))
			return
		}
		slog.Error("Server.deleteManualHandler: delete failed", "error", err, "id", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to delete manual"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Manual deleted", nil))
}
