package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return New(Config{
		BaseURL: baseURL,
		Logger:  log.New(io.Discard),
	})
}

func TestClient_Project(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/project/sodium" {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		json.NewEncoder(w).Encode(Project{ID: "AANobbMI", Slug: "sodium", Title: "Sodium"})
	}))
	defer server.Close()

	c := testClient(t, server.URL)

	p, err := c.Project(context.Background(), "sodium")
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	if p.ID != "AANobbMI" || p.Title != "Sodium" {
		t.Errorf("unexpected project: %+v", p)
	}

	// Second lookup by id must come from the in-run cache.
	if _, err := c.Project(context.Background(), "AANobbMI"); err != nil {
		t.Fatalf("cached lookup failed: %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 request, got %d", hits.Load())
	}
}

func TestClient_Project_NotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	c := testClient(t, server.URL)

	_, err := c.Project(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for missing project")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Errorf("expected StatusError with 404, got %v", err)
	}
}

func TestClient_RetriesRateLimitOnce(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.Header().Set(headerRateRemaining, "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set(headerRateRemaining, "100")
		json.NewEncoder(w).Encode(Project{ID: "x", Slug: "x"})
	}))
	defer server.Close()

	c := testClient(t, server.URL)

	if _, err := c.Project(context.Background(), "x"); err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("expected the 429 to be re-issued exactly once, got %d requests", hits.Load())
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(Project{ID: "x", Slug: "x"})
	}))
	defer server.Close()

	c := testClient(t, server.URL)

	if _, err := c.Project(context.Background(), "x"); err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	if hits.Load() != 3 {
		t.Errorf("expected 3 requests, got %d", hits.Load())
	}
}

func TestClient_Versions_FiltersAndSorts(t *testing.T) {
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/project/p1/version" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode([]*Version{
			{ID: "v1", DatePublished: old, Loaders: []string{"fabric"}, GameVersions: []string{"1.20.2"}},
			{ID: "v2", DatePublished: newer, Loaders: []string{"fabric"}, GameVersions: []string{"1.20.2"}},
			{ID: "v3", DatePublished: newer, Loaders: []string{"forge"}, GameVersions: []string{"1.20.2"}},
			{ID: "v4", DatePublished: newer, Loaders: []string{"fabric"}, GameVersions: []string{"1.19.4"}},
		})
	}))
	defer server.Close()

	c := testClient(t, server.URL)

	versions, err := c.Versions(context.Background(), "p1", VersionFilter{Loader: "fabric", GameVersion: "1.20.2"})
	if err != nil {
		t.Fatalf("Versions failed: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("expected 2 versions after filtering, got %d", len(versions))
	}
	if versions[0].ID != "v2" || versions[1].ID != "v1" {
		t.Errorf("expected newest-first order [v2 v1], got [%s %s]", versions[0].ID, versions[1].ID)
	}
}

func TestClient_VersionFromHash(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/version_file/abc123" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("algorithm"); got != "sha512" {
			t.Errorf("expected sha512 algorithm, got %q", got)
		}
		json.NewEncoder(w).Encode(Version{ID: "v9", ProjectID: "p9"})
	}))
	defer server.Close()

	c := testClient(t, server.URL)

	v, err := c.VersionFromHash(context.Background(), "abc123", "")
	if err != nil {
		t.Fatalf("VersionFromHash failed: %v", err)
	}
	if v.ID != "v9" {
		t.Errorf("unexpected version: %+v", v)
	}
}

func TestClient_Search_EncodesFacets(t *testing.T) {
	var facets [][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.Unmarshal([]byte(r.URL.Query().Get("facets")), &facets); err != nil {
			t.Errorf("facets did not decode: %v", err)
		}
		json.NewEncoder(w).Encode(SearchResult{Hits: []SearchHit{{Slug: "sodium"}}, TotalHits: 1})
	}))
	defer server.Close()

	c := testClient(t, server.URL)

	result, err := c.Search(context.Background(), SearchQuery{
		Query:        "sodium",
		Loaders:      []string{"fabric"},
		GameVersions: []string{"1.20.2"},
		ServerSide:   []string{"required", "optional"},
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(result.Hits) != 1 || result.Hits[0].Slug != "sodium" {
		t.Errorf("unexpected result: %+v", result)
	}

	want := map[string]bool{
		"project_type:mod":     false,
		"game_versions:1.20.2": false,
		"categories:fabric":    false,
	}
	for _, group := range facets {
		for _, f := range group {
			if _, ok := want[f]; ok {
				want[f] = true
			}
		}
	}
	for f, seen := range want {
		if !seen {
			t.Errorf("facet %q missing from request", f)
		}
	}

	// server_side values must share one OR-group.
	found := false
	for _, group := range facets {
		if len(group) == 2 && group[0] == "server_side:required" && group[1] == "server_side:optional" {
			found = true
		}
	}
	if !found {
		t.Error("server_side facet group missing or split")
	}
}

func TestRateGate_UpdateAndWait(t *testing.T) {
	g := newRateGate()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return base }

	h := http.Header{}
	h.Set(headerRateRemaining, "0")
	h.Set(headerRateReset, "1740830401") // one second past base
	g.update(h)

	remaining, until := g.pending()
	if remaining != 0 {
		t.Errorf("expected 0 remaining, got %d", remaining)
	}
	if until <= 0 {
		t.Errorf("expected positive wait, got %v", until)
	}

	// A cancelled context must interrupt the reset wait.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := g.wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestVersion_PrimaryFile(t *testing.T) {
	v := &Version{Files: []VersionFile{
		{Filename: "a.jar"},
		{Filename: "b.jar", Primary: true},
	}}
	if got := v.PrimaryFile(); got == nil || got.Filename != "b.jar" {
		t.Errorf("expected the flagged primary file, got %+v", got)
	}

	v = &Version{Files: []VersionFile{{Filename: "only.jar"}}}
	if got := v.PrimaryFile(); got == nil || got.Filename != "only.jar" {
		t.Errorf("expected first file fallback, got %+v", got)
	}

	if (&Version{}).PrimaryFile() != nil {
		t.Error("expected nil for a version with no files")
	}
}
