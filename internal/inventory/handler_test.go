package inventory_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/jheath/partsbin/internal/event"
	"github.com/jheath/partsbin/internal/inventory"
	"github.com/jheath/partsbin/internal/store"
	"github.com/jheath/partsbin/internal/testutil"
	"github.com/jheath/partsbin/pkg/models"
	"go.uber.org/zap"
)

func newInventoryServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s, err := inventory.NewStore(context.Background(), db)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	mux := http.NewServeMux()
	inventory.NewHandler(s, event.NewBus(zap.NewNop()), zap.NewNop()).RegisterRoutes(mux)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func postItem(t *testing.T, url string, item models.InventoryItem) *http.Response {
	t.Helper()
	b, err := json.Marshal(item)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url+"/api/v1/inventory", "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSaveAndGet(t *testing.T) {
	ts := newInventoryServer(t)

	resp := postItem(t, ts.URL, testutil.NewInventoryItem("RES-1K", testutil.WithQuantity(10)))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("save status = %d, want 201", resp.StatusCode)
	}
	var saved models.InventoryItem
	if err := json.NewDecoder(resp.Body).Decode(&saved); err != nil {
		t.Fatalf("decode: %v", err)
	}

	getResp, err := http.Get(ts.URL + "/api/v1/inventory/" + strconv.FormatInt(saved.ItemID, 10))
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Errorf("get status = %d, want 200", getResp.StatusCode)
	}
}

func TestSave_MissingPartNumber(t *testing.T) {
	ts := newInventoryServer(t)

	resp := postItem(t, ts.URL, models.InventoryItem{Quantity: 1})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestStatisticsEndpoint(t *testing.T) {
	ts := newInventoryServer(t)

	postItem(t, ts.URL, testutil.NewInventoryItem("A1", testutil.WithCategory("resistors")))
	postItem(t, ts.URL, testutil.NewInventoryItem("B2", testutil.WithCategory("bolts")))

	resp, err := http.Get(ts.URL + "/api/v1/inventory/statistics")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var stats models.InventoryStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.TotalItems != 2 {
		t.Errorf("total items = %d, want 2", stats.TotalItems)
	}
}

func TestGet_UnknownID(t *testing.T) {
	ts := newInventoryServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/inventory/999")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
