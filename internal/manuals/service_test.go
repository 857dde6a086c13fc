package manuals

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/coilworks/hvacpilot/internal/models"
	"github.com/coilworks/hvacpilot/internal/store"
)

// fakeObjectStore records object operations in memory.
type fakeObjectStore struct {
	objects map[string][]byte
	putErr  error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (f *fakeObjectStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if f.putErr != nil {
		return f.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeObjectStore) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if _, ok := f.objects[key]; !ok {
		return "", fmt.Errorf("no such object %s", key)
	}
	return "https://objects.example.com/" + key, nil
}

func (f *fakeObjectStore) Remove(ctx context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func newTestService() (*Service, *fakeObjectStore) {
	objects := newFakeObjectStore()
	return NewService(store.NewInMemoryStore(), objects), objects
}

func uploadReq(title string) UploadRequest {
	return UploadRequest{
		Title:       title,
		Category:    "furnace",
		Description: "Covers ignition sequence troubleshooting and burner maintenance for the 58STA series.",
		FileName:    "manual.pdf",
		ContentType: "application/pdf",
		Size:        4,
		IsPublic:    true,
		Content:     bytes.NewReader([]byte("%PDF")),
	}
}

func TestUploadStoresFileAndMetadata(t *testing.T) {
	svc, objects := newTestService()
	m, err := svc.Upload(context.Background(), uploadReq("Carrier 58STA Service Manual"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if m.ID == "" || m.ObjectKey == "" {
		t.Fatalf("expected populated manual, got %+v", m)
	}
	if _, ok := objects.objects[m.ObjectKey]; !ok {
		t.Error("expected object stored under object key")
	}

	listed, err := svc.List(context.Background())
	if err != nil || len(listed) != 1 {
		t.Fatalf("List: got %d, err %v", len(listed), err)
	}

	url, err := svc.DownloadURL(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("DownloadURL: %v", err)
	}
	if !strings.Contains(url, m.ObjectKey) {
		t.Errorf("expected object key in URL, got %q", url)
	}
}

func TestUploadValidation(t *testing.T) {
	svc, _ := newTestService()
	req := uploadReq("")
	if _, err := svc.Upload(context.Background(), req); err != models.ErrMissingManualTitle {
		t.Errorf("expected ErrMissingManualTitle, got %v", err)
	}
	req = uploadReq("Valid Title")
	req.Content = nil
	if _, err := svc.Upload(context.Background(), req); err != models.ErrMissingManualFile {
		t.Errorf("expected ErrMissingManualFile, got %v", err)
	}
}

func TestUploadFailureLeavesNoMetadata(t *testing.T) {
	svc, objects := newTestService()
	objects.putErr = errors.New("bucket unreachable")

	if _, err := svc.Upload(context.Background(), uploadReq("Doomed Manual")); err == nil {
		t.Fatal("expected upload error")
	}
	listed, _ := svc.List(context.Background())
	if len(listed) != 0 {
		t.Errorf("expected no catalog entries after failed upload, got %d", len(listed))
	}
}

func TestDeleteRemovesObjectAndMetadata(t *testing.T) {
	svc, objects := newTestService()
	m, err := svc.Upload(context.Background(), uploadReq("Goodman GSX13 Install Guide"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if err := svc.Delete(context.Background(), m.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := objects.objects[m.ObjectKey]; ok {
		t.Error("expected object removed")
	}
	if _, err := svc.Get(context.Background(), m.ID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := svc.Delete(context.Background(), m.ID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSearchScoresTitleAboveDescription(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Upload(ctx, uploadReq("Ignition Control Board Reference")); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	other := uploadReq("Blower Assembly Guide")
	other.Description = "Includes a short note on ignition interlocks."
	if _, err := svc.Upload(ctx, other); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	results, err := svc.Search(ctx, "ignition")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Manual.Title != "Ignition Control Board Reference" {
		t.Errorf("expected title match first, got %q", results[0].Manual.Title)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("expected title hit to outscore description hit: %d vs %d", results[0].Score, results[1].Score)
	}
	if len(results[1].Snippets) == 0 {
		t.Error("expected snippet for description hit")
	}
}

func TestSearchRequiresAllTerms(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	if _, err := svc.Upload(ctx, uploadReq("Heat Exchanger Inspection")); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	results, err := svc.Search(ctx, "heat compressor")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results when a term misses, got %d", len(results))
	}

	if results, _ := svc.Search(ctx, "   "); results != nil {
		t.Errorf("expected nil results for empty query, got %v", results)
	}
}
