package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/text/encoding/charmap"

	"fundamentusapi/internal/config"
	"fundamentusapi/internal/testutil"
)

// latin1Upstream serves the screener page the way the live site does
func latin1Upstream(t *testing.T, status *atomic.Int32, rows ...[]string) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	page := testutil.ScreenerPage(testutil.ScreenerHeader(), rows...)
	page = strings.Replace(page, `<meta charset="utf-8">`, `<meta charset="ISO-8859-1">`, 1)
	encoded, err := charmap.ISO8859_1.NewEncoder().String(page)
	if err != nil {
		t.Fatalf("encode page: %v", err)
	}

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("User-Agent") == "" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if code := status.Load(); code != 0 && code != http.StatusOK {
			w.WriteHeader(int(code))
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=ISO-8859-1")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(encoded))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func testConfig(sourceURL string) *config.Config {
	return &config.Config{
		SourceURL:         sourceURL,
		UserAgent:         "Mozilla/5.0 integration",
		RequestTimeout:    2 * time.Second,
		RequestsPerMinute: 0,
		CacheTTL:          time.Hour,
		ListenAddr:        "127.0.0.1:0",
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

// TestIntegration_FullStack exercises fetch, decode, parse, cache and HTTP surface together
func TestIntegration_FullStack(t *testing.T) {
	var status atomic.Int32
	upstream, hits := latin1Upstream(t, &status,
		testutil.ScreenerRow("ABEV3", "12,34"),
		testutil.ScreenerRow("PETR4", "38,45"),
	)

	a, err := newApp(testConfig(upstream.URL + "/resultado.php"))
	if err != nil {
		t.Fatalf("newApp() returned unexpected error: %v", err)
	}
	defer a.Close()

	api := httptest.NewServer(a.server.Handler())
	defer api.Close()

	var abev map[string]float64
	if code := getJSON(t, api.URL+"/ticker/abev3", &abev); code != http.StatusOK {
		t.Fatalf("GET /ticker/abev3 status = %d, want 200", code)
	}

	// labels come from the decoded ISO-8859-1 header row
	if got := abev["Cotação"]; got != 12.34 {
		t.Errorf("Cotação = %v, want 12.34", got)
	}
	if got := abev["Patrim. Líq"]; got != 45678901000 {
		t.Errorf("Patrim. Líq = %v, want 45678901000", got)
	}
	if got := abev["Div.Yield"]; got != 3.5 {
		t.Errorf("Div.Yield = %v, want 3.5", got)
	}

	var all map[string]map[string]float64
	if code := getJSON(t, api.URL+"/tickers", &all); code != http.StatusOK {
		t.Fatalf("GET /tickers status = %d, want 200", code)
	}
	if len(all) != 2 {
		t.Errorf("len(tickers) = %d, want 2", len(all))
	}

	if code := getJSON(t, api.URL+"/ticker/XXXX3", nil); code != http.StatusNotFound {
		t.Errorf("GET /ticker/XXXX3 status = %d, want 404", code)
	}

	// everything so far was served from one upstream request
	if got := hits.Load(); got != 1 {
		t.Errorf("upstream hits = %d, want 1", got)
	}

	// upstream failing after a good load still serves the cached table
	status.Store(http.StatusInternalServerError)
	resp, err := http.Post(api.URL+"/cache/invalidate", "", nil)
	if err != nil {
		t.Fatalf("POST /cache/invalidate: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("POST /cache/invalidate status = %d, want 204", resp.StatusCode)
	}

	if code := getJSON(t, api.URL+"/ticker/PETR4", nil); code != http.StatusOK {
		t.Errorf("GET /ticker/PETR4 with failing upstream status = %d, want 200 from stale table", code)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("upstream hits = %d, want 2", got)
	}
}

// TestIntegration_ColdFailure checks the unavailable signal when nothing was ever loaded
func TestIntegration_ColdFailure(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusBadGateway)
	upstream, _ := latin1Upstream(t, &status, testutil.ScreenerRow("ABEV3", "12,34"))

	a, err := newApp(testConfig(upstream.URL))
	if err != nil {
		t.Fatalf("newApp() returned unexpected error: %v", err)
	}
	defer a.Close()

	api := httptest.NewServer(a.server.Handler())
	defer api.Close()

	if code := getJSON(t, api.URL+"/ticker/ABEV3", nil); code != http.StatusServiceUnavailable {
		t.Errorf("GET /ticker/ABEV3 status = %d, want 503", code)
	}

	if err := a.warmup(context.Background()); err == nil {
		t.Error("warmup() expected error with a failing upstream, got nil")
	}

	// upstream recovers; no cooldown, the next request loads
	status.Store(http.StatusOK)
	if code := getJSON(t, api.URL+"/ticker/ABEV3", nil); code != http.StatusOK {
		t.Errorf("GET /ticker/ABEV3 after recovery status = %d, want 200", code)
	}
}

// TestIntegration_ConcurrentRequests tests that concurrent cold requests share one upstream fetch
func TestIntegration_ConcurrentRequests(t *testing.T) {
	var status atomic.Int32
	upstream, hits := latin1Upstream(t, &status, testutil.ScreenerRow("ABEV3", "12,34"))

	a, err := newApp(testConfig(upstream.URL))
	if err != nil {
		t.Fatalf("newApp() returned unexpected error: %v", err)
	}
	defer a.Close()

	api := httptest.NewServer(a.server.Handler())
	defer api.Close()

	const clients = 10
	codes := make(chan int, clients)
	for i := 0; i < clients; i++ {
		go func() {
			resp, err := http.Get(api.URL + "/ticker/abev3")
			if err != nil {
				codes <- 0
				return
			}
			resp.Body.Close()
			codes <- resp.StatusCode
		}()
	}
	for i := 0; i < clients; i++ {
		if code := <-codes; code != http.StatusOK {
			t.Errorf("status = %d, want 200", code)
		}
	}

	if got := hits.Load(); got != 1 {
		t.Errorf("upstream hits = %d, want 1", got)
	}
}

func TestNewApp_Scheduler(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1/resultado.php")
	cfg.RefreshCron = "0 10 * * 1-5"

	a, err := newApp(cfg)
	if err != nil {
		t.Fatalf("newApp() returned unexpected error: %v", err)
	}
	defer a.Close()

	names := make([]string, 0, 3)
	for _, task := range a.tasks() {
		names = append(names, task.Name)
	}
	if strings.Join(names, ",") != "http,warmup,scheduler" {
		t.Errorf("tasks = %v, want http, warmup and scheduler", names)
	}

	cfg.RefreshCron = ""
	b, err := newApp(cfg)
	if err != nil {
		t.Fatalf("newApp() returned unexpected error: %v", err)
	}
	defer b.Close()
	if got := len(b.tasks()); got != 2 {
		t.Errorf("len(tasks) = %d without a cron, want 2", got)
	}
}
