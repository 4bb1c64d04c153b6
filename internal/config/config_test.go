package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"venuecal/internal/apperr"
)

func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != defaultListen || cfg.DefaultVenue != defaultVenue {
		t.Errorf("defaults not applied: %+v", cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.FetchTimeout != defaultFetchTimeout {
		t.Errorf("fetch_timeout = %v, want %v", again.FetchTimeout, defaultFetchTimeout)
	}
}

func TestLoad_ExpandsEnvAndNormalizes(t *testing.T) {
	t.Setenv("VENUECAL_TEST_LISTEN", "0.0.0.0:9999")
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "listen: ${VENUECAL_TEST_LISTEN}\ntimezone: UTC\nfetch_timeout: 5s\nmirror:\n  schedule: \"0 */6 * * *\"\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != "0.0.0.0:9999" {
		t.Errorf("listen = %q", cfg.Listen)
	}
	if cfg.FetchTimeout != 5*time.Second {
		t.Errorf("fetch_timeout = %v", cfg.FetchTimeout)
	}
	if cfg.Mirror.FeedsDir != defaultFeedsDir || cfg.Mirror.UserAgent != defaultUserAgent {
		t.Errorf("mirror defaults missing: %+v", cfg.Mirror)
	}
	if cfg.Location() != time.UTC {
		t.Errorf("location = %v, want UTC", cfg.Location())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "unknown timezone"},
		{"bad schedule", func(c *Config) { c.Mirror.Schedule = "every tuesday" }, "cron"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"half basic auth", func(c *Config) { c.BasicAuth = &BasicAuthConfig{Username: "bar"} }, "basic_auth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

const pubsJSON = `{
  "sportsbaren": {
    "name": "Sportsbaren",
    "logo": "logos/sportsbaren.png",
    "colors": {"primary": "#0a3d62", "secondary": "#f5f6fa", "text": "#1e272e"},
    "ical": "https://calendar.example.com/sportsbaren.ics"
  },
  "kroa": {
    "name": "Kroa",
    "colors": {"primary": "#222", "secondary": "#eee", "text": "#111"},
    "ical": "feeds/kroa.ics",
    "sourceIcal": "https://calendar.example.com/kroa.ics"
  }
}`

func TestVenues_LoadLookupSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pubs.json")
	if err := os.WriteFile(path, []byte(pubsJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	venues, err := LoadVenues(path)
	if err != nil {
		t.Fatalf("LoadVenues: %v", err)
	}
	if ids := venues.IDs(); len(ids) != 2 || ids[0] != "kroa" || ids[1] != "sportsbaren" {
		t.Errorf("ids = %v", ids)
	}

	kroa, err := venues.Lookup("kroa")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if kroa.Source() != "https://calendar.example.com/kroa.ics" {
		t.Errorf("source = %q", kroa.Source())
	}
	if got, want := venues.ResolveFeed(kroa), filepath.Join(dir, "feeds", "kroa.ics"); got != want {
		t.Errorf("ResolveFeed = %q, want %q", got, want)
	}

	bar, _ := venues.Lookup("sportsbaren")
	if got := venues.ResolveFeed(bar); got != bar.ICal {
		t.Errorf("remote feed should resolve unchanged, got %q", got)
	}

	if _, err := venues.Lookup("nope"); !errors.Is(err, apperr.ErrVenueNotFound) {
		t.Errorf("Lookup(nope) err = %v", err)
	}

	bar.ICal = "feeds/sportsbaren.ics"
	venues.Entries["sportsbaren"] = bar
	if err := venues.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "{\n") || !strings.HasSuffix(string(data), "}\n") {
		t.Errorf("saved registry should stay indented JSON:\n%s", data)
	}

	reloaded, err := LoadVenues(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Entries["sportsbaren"].ICal != "feeds/sportsbaren.ics" {
		t.Errorf("saved change lost: %+v", reloaded.Entries["sportsbaren"])
	}
}

func TestVenues_SaveKeepsLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pubs.json")
	body := `{
  "zeta": {
    "name": "Zeta & Co",
    "timezone": "Europe/Oslo",
    "colors": {"primary": "#222", "accent": "#f00"},
    "logo": "logos/z.png",
    "screens": [1, 2.5, true, null]
  },
  "alpha": {"name": "Alpha"}
}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	venues, err := LoadVenues(path)
	if err != nil {
		t.Fatalf("LoadVenues: %v", err)
	}

	zeta := venues.Entries["zeta"]
	zeta.Logo = ""
	zeta.Colors.Text = "#000"
	venues.Entries["zeta"] = zeta
	venues.Entries["beta"] = Venue{Name: "Beta", ICal: "feeds/beta.ics"}
	delete(venues.Entries, "alpha")

	if err := venues.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := `{
  "zeta": {
    "name": "Zeta & Co",
    "timezone": "Europe/Oslo",
    "colors": {
      "primary": "#222",
      "accent": "#f00",
      "text": "#000"
    },
    "screens": [
      1,
      2.5,
      true,
      null
    ]
  },
  "beta": {
    "name": "Beta",
    "colors": {
      "primary": "",
      "secondary": "",
      "text": ""
    },
    "ical": "feeds/beta.ics"
  }
}
`
	if string(data) != want {
		t.Errorf("saved registry:\n%s\nwant:\n%s", data, want)
	}
}

func TestVenues_YAMLSaveKeepsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "venues.yaml")
	body := "kroa:\n  name: Kroa\n  capacity: 80\n  ical: https://example.com/kroa.ics\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	venues, err := LoadVenues(path)
	if err != nil {
		t.Fatalf("LoadVenues: %v", err)
	}
	venues.SetFeed("kroa", "feeds/kroa.ics", "https://example.com/kroa.ics")
	if err := venues.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "kroa:\n  name: Kroa\n  capacity: 80\n  ical: feeds/kroa.ics\n  sourceIcal: https://example.com/kroa.ics\n"
	if string(data) != want {
		t.Errorf("saved registry:\n%s\nwant:\n%s", data, want)
	}
}

func TestVenues_RejectsNonMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pubs.json")
	if err := os.WriteFile(path, []byte(`[]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadVenues(path); err == nil {
		t.Error("expected error for a registry that is not an object")
	}
}

func TestVenues_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "venues.yaml")
	body := "kroa:\n  name: Kroa\n  colors:\n    primary: \"#222\"\n  ical: /srv/feeds/kroa.ics\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	venues, err := LoadVenues(path)
	if err != nil {
		t.Fatalf("LoadVenues: %v", err)
	}
	kroa, err := venues.Lookup("kroa")
	if err != nil {
		t.Fatal(err)
	}
	if kroa.Colors.Primary != "#222" {
		t.Errorf("colors = %+v", kroa.Colors)
	}
	if got := venues.ResolveFeed(kroa); got != "/srv/feeds/kroa.ics" {
		t.Errorf("absolute feed path changed: %q", got)
	}
}
