package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Swind/go-pool-registry/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

func newTestServer(t *testing.T, opts Options) (*Server, *core.Registry) {
	t.Helper()
	reg := core.NewRegistry(core.WithLogger(core.NewNoOpLogger()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		reg.Close(ctx)
	})
	return NewServer(reg, opts), reg
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	s, reg := newTestServer(t, Options{})

	rec := do(t, s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	reg.Close(context.Background())
	rec = do(t, s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status after close = %d, want 503", rec.Code)
	}
}

func TestCreateAndGetPool(t *testing.T) {
	s, reg := newTestServer(t, Options{})

	// Act
	rec := do(t, s, http.MethodPost, "/api/v1/pools",
		`{"name":"io","core_size":2,"max_size":4,"queue_capacity":10,"keep_alive":"30s","saturation":"caller-runs"}`)

	// Assert
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	p, ok := reg.Lookup("io")
	if !ok {
		t.Fatal("pool io not registered")
	}
	cfg := p.Config()
	if cfg.KeepAlive != 30*time.Second || cfg.Saturation != core.SaturationCallerRuns || cfg.MaxSize != 4 {
		t.Errorf("unexpected config %+v", cfg)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/pools/io", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var stats core.PoolStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Name != "io" {
		t.Errorf("stats name = %q", stats.Name)
	}
}

func TestCreatePool_GeneratedName(t *testing.T) {
	s, reg := newTestServer(t, Options{})

	rec := do(t, s, http.MethodPost, "/api/v1/pools", `{"core_size":1}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var generated string
	for _, name := range reg.Names() {
		if strings.HasPrefix(name, "pool-") {
			generated = name
		}
	}
	if generated == "" {
		t.Fatalf("no generated pool among %v", reg.Names())
	}
}

func TestCreatePool_Errors(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	do(t, s, http.MethodPost, "/api/v1/pools", `{"name":"taken","core_size":1}`)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed", `{"name":`, http.StatusBadRequest},
		{"reserved", `{"name":"default","core_size":1}`, http.StatusForbidden},
		{"duplicate", `{"name":"taken","core_size":1}`, http.StatusConflict},
		{"invalid sizes", `{"name":"x","core_size":4,"max_size":2}`, http.StatusBadRequest},
		{"bad duration", `{"name":"x","keep_alive":"soon"}`, http.StatusBadRequest},
		{"bad policy", `{"name":"x","saturation":"block"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/api/v1/pools", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestListPools(t *testing.T) {
	s, reg := newTestServer(t, Options{})
	reg.CreatePool("b", core.PoolConfig{CoreSize: 1, MaxSize: 1})
	reg.CreatePool("a", core.PoolConfig{CoreSize: 1, MaxSize: 1})

	rec := do(t, s, http.MethodGet, "/api/v1/pools", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats []core.PoolStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}

	var names []string
	for _, st := range stats {
		names = append(names, st.Name)
	}
	if got := strings.Join(names, ","); got != "a,b,default" {
		t.Errorf("names = %s, want a,b,default", got)
	}
}

func TestShutdownPool(t *testing.T) {
	s, reg := newTestServer(t, Options{})
	reg.CreatePool("p", core.PoolConfig{CoreSize: 1, MaxSize: 1, QueueCapacity: 10})

	// Given: one running task and two queued
	release := make(chan struct{})
	started := make(chan struct{})
	reg.Execute("p", func(ctx context.Context) error {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})
	<-started
	reg.Execute("p", func(ctx context.Context) error { return nil })
	reg.Execute("p", func(ctx context.Context) error { return nil })
	defer close(release)

	// When: shut down immediately
	rec := do(t, s, http.MethodDelete, "/api/v1/pools/p?now=true", "")

	// Then: queued tasks are reported as dropped
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp shutdownResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Now || resp.Dropped != 2 {
		t.Errorf("response = %+v, want now with 2 dropped", resp)
	}
	if reg.Has("p") {
		t.Error("pool still registered")
	}

	rec = do(t, s, http.MethodDelete, "/api/v1/pools/p", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestRecentTasks(t *testing.T) {
	s, reg := newTestServer(t, Options{})
	reg.CreatePool("p", core.PoolConfig{CoreSize: 1, MaxSize: 1, QueueCapacity: 10})

	for i := 0; i < 3; i++ {
		f, err := reg.Submit("p", func(ctx context.Context) error { return nil })
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		f.Wait(context.Background())
	}

	rec := do(t, s, http.MethodGet, "/api/v1/pools/p/tasks?limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var tasks []core.TaskExecutionRecord
	if err := json.NewDecoder(rec.Body).Decode(&tasks); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tasks) != 2 {
		t.Errorf("tasks = %d, want 2", len(tasks))
	}

	rec = do(t, s, http.MethodGet, "/api/v1/pools/missing/tasks", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing pool status = %d, want 404", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	gatherer := prom.NewRegistry()
	c := prom.NewCounter(prom.CounterOpts{Name: "api_test_total", Help: "test"})
	gatherer.MustRegister(c)
	c.Inc()

	s, _ := newTestServer(t, Options{Gatherer: gatherer})
	rec := do(t, s, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "api_test_total 1") {
		t.Errorf("metrics body missing counter:\n%s", rec.Body)
	}

	s, _ = newTestServer(t, Options{})
	if rec := do(t, s, http.MethodGet, "/metrics", ""); rec.Code != http.StatusNotFound {
		t.Errorf("metrics without gatherer = %d, want 404", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t, Options{CORSOrigins: []string{"https://ops.example.com"}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://ops.example.com" {
		t.Errorf("allow origin = %q", got)
	}
}
