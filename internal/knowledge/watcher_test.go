package knowledge

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coilworks/hvacpilot/internal/models"
)

func writeDoc(t *testing.T, path, flowID string) {
	t.Helper()
	doc := Document{
		Flows: []models.FlowDefinition{{
			ID:          flowID,
			Title:       "Cooling Check",
			SystemTypes: []string{"All"},
		}},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal document: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write document: %v", err)
	}
}

func TestWatcherSwapsOnRewrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.json")
	writeDoc(t, path, "before")

	swapped := make(chan *Store, 4)
	w, err := NewWatcher(path, func(st *Store) { swapped <- st })
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	hooked := make(chan struct{}, 4)
	w.SetSwapHook(func() { hooked <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	writeDoc(t, path, "after")

	select {
	case st := <-swapped:
		flows := st.Flows()
		if len(flows) != 1 || flows[0].ID != "after" {
			t.Errorf("swap delivered unexpected snapshot: %+v", flows)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for snapshot swap")
	}
	select {
	case <-hooked:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for swap hook")
	}
}

func TestWatcherKeepsSnapshotOnBadDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.json")
	writeDoc(t, path, "before")

	swapped := make(chan *Store, 4)
	w, err := NewWatcher(path, func(st *Store) { swapped <- st })
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	if err := os.WriteFile(path, []byte("{broken"), 0644); err != nil {
		t.Fatalf("write broken document: %v", err)
	}

	select {
	case <-swapped:
		t.Error("broken document must not be swapped in")
	case <-time.After(500 * time.Millisecond):
	}
}
