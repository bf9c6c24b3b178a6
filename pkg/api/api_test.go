package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"deltastore/pkg/cluster"
	"deltastore/pkg/sor"
	"deltastore/pkg/table"
)

func newTestDeps(t *testing.T, writerCfg sor.Config) (Deps, *cluster.Placement) {
	t.Helper()
	ks, err := cluster.OpenKeyspace("api-ks", filepath.Join(t.TempDir(), "ks"), 0)
	if err != nil {
		t.Fatalf("OpenKeyspace: %v", err)
	}
	t.Cleanup(func() { _ = ks.Close() })
	p := cluster.NewPlacement("api_default", ks, "delta", "history")
	reg := table.NewRegistry()
	reg.Register(table.NewStatic("reviews", p))
	return Deps{Registry: reg, Writer: sor.NewWriter(writerCfg, nil)}, p
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("response not JSON: %v (%s)", err, rec.Body.String())
		}
	}
	return rec, out
}

func TestListTables(t *testing.T) {
	deps, _ := newTestDeps(t, sor.Config{})
	rec, out := doJSON(t, Router(deps), http.MethodGet, "/v1/tables", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	tables, _ := out["tables"].([]any)
	if len(tables) != 1 || tables[0] != "reviews" {
		t.Fatalf("tables = %v", out["tables"])
	}
}

func TestPostUpdates(t *testing.T) {
	deps, p := newTestDeps(t, sor.Config{})
	body := `[
		{"key": "rev-1", "delta": {"type": "literal", "value": {"rating": 5}}},
		{"key": "rev-2", "consistency": "strong", "tags": ["ingest"],
		 "delta": {"type": "map_merge", "entries": {"rating": 4}}}
	]`
	rec, out := doJSON(t, Router(deps), http.MethodPost, "/v1/tables/reviews/updates", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if out["updated"] != float64(2) {
		t.Fatalf("updated = %v", out["updated"])
	}

	// both rows landed in the delta family
	var rows []string
	if err := p.Keyspace().ScanRowKeys(p.DeltaColumnFamily(), func(rowKey string) error {
		rows = append(rows, rowKey)
		return nil
	}); err != nil {
		t.Fatalf("ScanRowKeys: %v", err)
	}
	if len(rows) != 2 || rows[0] != "rev-1" || rows[1] != "rev-2" {
		t.Fatalf("rows = %v", rows)
	}
}

func TestPostUpdatesUnknownTable(t *testing.T) {
	deps, _ := newTestDeps(t, sor.Config{})
	rec, _ := doJSON(t, Router(deps), http.MethodPost, "/v1/tables/nope/updates", `[]`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestPostUpdatesMalformedBody(t *testing.T) {
	deps, _ := newTestDeps(t, sor.Config{})
	rec, _ := doJSON(t, Router(deps), http.MethodPost, "/v1/tables/reviews/updates", `{"not": "an array"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestPostUpdatesMissingKey(t *testing.T) {
	deps, _ := newTestDeps(t, sor.Config{})
	rec, _ := doJSON(t, Router(deps), http.MethodPost, "/v1/tables/reviews/updates",
		`[{"delta": {"type": "literal", "value": 1}}]`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestPostUpdatesUnknownDeltaType(t *testing.T) {
	deps, _ := newTestDeps(t, sor.Config{})
	rec, _ := doJSON(t, Router(deps), http.MethodPost, "/v1/tables/reviews/updates",
		`[{"key": "k", "delta": {"type": "increment", "value": 1}}]`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestPostUpdatesOversizeDelta(t *testing.T) {
	deps, _ := newTestDeps(t, sor.Config{MaxDeltaSize: 64, MaxFrameSize: 15 * 1024 * 1024})
	body := `[{"key": "big", "delta": {"type": "literal", "value": "` + strings.Repeat("x", 300) + `"}}]`
	rec, _ := doJSON(t, Router(deps), http.MethodPost, "/v1/tables/reviews/updates", body)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPurgeTable(t *testing.T) {
	deps, p := newTestDeps(t, sor.Config{})
	seed := `[{"key": "doomed", "delta": {"type": "literal", "value": 1}}]`
	if rec, _ := doJSON(t, Router(deps), http.MethodPost, "/v1/tables/reviews/updates", seed); rec.Code != http.StatusOK {
		t.Fatalf("seed status = %d", rec.Code)
	}

	rec, out := doJSON(t, Router(deps), http.MethodPost, "/v1/admin/tables/reviews/purge", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if out["status"] != "purged" {
		t.Fatalf("out = %v", out)
	}
	if err := p.Keyspace().ScanRowKeys(p.DeltaColumnFamily(), func(rowKey string) error {
		t.Fatalf("row %s survived purge", rowKey)
		return nil
	}); err != nil {
		t.Fatalf("ScanRowKeys: %v", err)
	}
}
