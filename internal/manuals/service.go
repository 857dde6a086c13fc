package manuals

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/coilworks/hvacpilot/internal/models"
	"github.com/coilworks/hvacpilot/internal/store"
)

// ErrNotFound is returned when a manual id has no catalog entry.
var ErrNotFound = errors.New("manual not found")

// UploadRequest describes a manual file being added to the catalog.
type UploadRequest struct {
	Title       string
	Category    string
	Subcategory string
	Description string
	FileName    string
	ContentType string
	Size        int64
	IsPublic    bool
	UploadedBy  string
	Content     io.Reader
}

// Validate checks structural requirements of an upload.
func (r *UploadRequest) Validate() error {
	if r.Title == "" {
		return models.ErrMissingManualTitle
	}
	if r.FileName == "" || r.Content == nil {
		return models.ErrMissingManualFile
	}
	return nil
}

// Service manages the manual catalog: metadata rows in the store, file
// content in the object store.
type Service struct {
	store   store.Store
	objects ObjectStore
}

// NewService creates a manuals service.
func NewService(st store.Store, objects ObjectStore) *Service {
	return &Service{store: st, objects: objects}
}

// Upload stores the file content and records the catalog entry. The object is
// removed again if the metadata insert fails, so the bucket never holds
// orphaned files.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (models.Manual, error) {
	if err := req.Validate(); err != nil {
		return models.Manual{}, err
	}
	now := time.Now().UTC()
	m := models.Manual{
		ID:          uuid.New().String(),
		Title:       req.Title,
		Category:    req.Category,
		Subcategory: req.Subcategory,
		Description: req.Description,
		FileName:    req.FileName,
		FileType:    req.ContentType,
		FileSize:    req.Size,
		IsPublic:    req.IsPublic,
		UploadedBy:  req.UploadedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.ObjectKey = fmt.Sprintf("manuals/%s/%s", m.ID, req.FileName)

	if err := s.objects.Put(ctx, m.ObjectKey, req.Content, req.Size, req.ContentType); err != nil {
		return models.Manual{}, err
	}
	if err := s.store.AddManual(ctx, m); err != nil {
		if rmErr := s.objects.Remove(ctx, m.ObjectKey); rmErr != nil {
			slog.Error("failed to clean up orphaned object", "error", rmErr, "key", m.ObjectKey)
		}
		return models.Manual{}, err
	}
	slog.Info("manual uploaded", "id", m.ID, "title", m.Title, "size", m.FileSize)
	return m, nil
}

// List returns all catalog entries, newest first.
func (s *Service) List(ctx context.Context) ([]models.Manual, error) {
	return s.store.ListManuals(ctx)
}

// Get returns one catalog entry.
func (s *Service) Get(ctx context.Context, id string) (models.Manual, error) {
	m, err := s.store.GetManual(ctx, id)
	if errors.Is(err, store.ErrManualNotFound) {
		return models.Manual{}, ErrNotFound
	}
	return m, err
}

// DownloadURL returns a time-limited link to the manual's file content.
func (s *Service) DownloadURL(ctx context.Context, id string) (string, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return s.objects.PresignedURL(ctx, m.ObjectKey, DefaultURLExpiry)
}

// Delete removes the catalog entry and its file content.
func (s *Service) Delete(ctx context.Context, id string) error {
	m, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteManual(ctx, id); err != nil {
		if errors.Is(err, store.ErrManualNotFound) {
			return ErrNotFound
		}
		return err
	}
	if err := s.objects.Remove(ctx, m.ObjectKey); err != nil {
		// Metadata is gone; log the stray object rather than failing the call.
		slog.Error("manual object left behind after delete", "error", err, "key", m.ObjectKey)
	}
	slog.Info("manual deleted", "id", id)
	return nil
}
