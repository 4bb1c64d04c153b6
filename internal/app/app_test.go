package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"venuecal/internal/config"
	"venuecal/internal/metrics"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.VenuesFile = filepath.Join(dir, "pubs.json")
	cfg.CacheDir = filepath.Join(dir, "cache")
	cfg.Timezone = "UTC"
	return cfg
}

func TestWatchVenues_ReloadsOnChange(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, cfg.VenuesFile, `{"kroa": {"name": "Kroa", "ical": "feeds/kroa.ics"}}`)

	svc, err := NewService(cfg, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watchVenues(ctx, cfg.VenuesFile, svc) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("watchVenues: %v", err)
		}
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)

	venues := &config.Venues{
		Path: cfg.VenuesFile,
		Entries: map[string]config.Venue{
			"kroa":  {Name: "Kroa", ICal: "feeds/kroa.ics"},
			"lyche": {Name: "Lyche", ICal: "feeds/lyche.ics"},
		},
	}
	if err := venues.Save(); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := svc.Venues().Lookup("lyche"); err == nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("registry was not reloaded after the file changed")
}

func TestRunMirror_UpdatesRegistry(t *testing.T) {
	for _, key := range []string{"HTTPS_PROXY", "https_proxy", "HTTP_PROXY", "http_proxy"} {
		t.Setenv(key, "")
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"))
	}))
	defer srv.Close()

	cfg := testConfig(t)
	writeFile(t, cfg.VenuesFile, `{"kroa": {"name": "Kroa", "ical": "`+srv.URL+`/kroa.ics"}}`)

	mir, err := NewMirror(cfg, metrics.New())
	if err != nil {
		t.Fatal(err)
	}
	venues, report, err := RunMirror(context.Background(), cfg, mir)
	if err != nil {
		t.Fatalf("RunMirror: %v", err)
	}
	if len(report.Updated) != 1 {
		t.Fatalf("report = %+v", report)
	}
	if got := venues.Entries["kroa"].ICal; got != "feeds/kroa.ics" {
		t.Errorf("ical = %q", got)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(cfg.VenuesFile), "feeds", "kroa.ics")); err != nil {
		t.Errorf("mirrored feed missing: %v", err)
	}
}

func TestRun_RequiresConfigAndRegistry(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Error("Run without config should fail")
	}

	cfg := testConfig(t)
	err := Run(context.Background(), WithConfig(cfg))
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing registry err = %v", err)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Listen = "127.0.0.1:0"
	writeFile(t, cfg.VenuesFile, `{}`)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	if err := Run(ctx, WithConfig(cfg)); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
