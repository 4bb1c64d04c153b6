// Package mirror downloads every venue's upstream feed into a local
// directory and rewrites the registry to point at the local copies, so the
// views keep working when the upstream calendars are slow or offline.
package mirror

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"venuecal/internal/apperr"
	"venuecal/internal/config"
	"venuecal/internal/ics"
	appLog "venuecal/internal/log"
	"venuecal/internal/metrics"
)

const (
	DefaultUserAgent = "venuecal-ical-prefetch"
	acceptHeader     = "text/calendar,text/plain,*/*"
	defaultTimeout   = 30 * time.Second
)

// Options configures a Mirror.
type Options struct {
	// FeedsDir receives <id>.ics files. Relative paths resolve against the
	// registry file's directory.
	FeedsDir  string
	UserAgent string
	Timeout   time.Duration

	// ProxyURL overrides the environment proxy. Empty means ProxyFromEnv.
	ProxyURL string

	Metrics *metrics.Metrics
}

// Report lists the outcome per venue id, each slice in registry order.
type Report struct {
	Updated []string
	Failed  []string
	Skipped []string
}

// Mirror copies upstream feeds to disk.
type Mirror struct {
	client    *http.Client
	feedsDir  string
	userAgent string
	metrics   *metrics.Metrics
}

// New builds a Mirror. An invalid ProxyURL is an error.
func New(opts Options) (*Mirror, error) {
	if opts.FeedsDir == "" {
		opts.FeedsDir = "feeds"
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	proxy := opts.ProxyURL
	if proxy == "" {
		proxy = ProxyFromEnv()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	if proxy != "" {
		u, err := url.Parse(proxy)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid proxy URL %q", ics.RedactURL(proxy))
		}
		transport.Proxy = http.ProxyURL(u)
		appLog.Info("mirror using forward proxy", "proxy", u.Scheme+"://"+u.Host)
	}

	return &Mirror{
		client:    &http.Client{Transport: transport, Timeout: opts.Timeout},
		feedsDir:  opts.FeedsDir,
		userAgent: opts.UserAgent,
		metrics:   opts.Metrics,
	}, nil
}

// ProxyFromEnv returns HTTPS_PROXY, falling back to HTTP_PROXY. Lower-case
// variants are honoured too.
func ProxyFromEnv() string {
	for _, key := range []string{"HTTPS_PROXY", "https_proxy", "HTTP_PROXY", "http_proxy"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// Run mirrors every venue in the registry and saves it once at the end.
// Only ical and sourceIcal of mirrored entries change; other keys and the
// entry order are written back as read. When no venue was updated the
// registry file is left untouched. Per-venue failures are logged and
// reported; only a failed registry save is returned as an error.
func (m *Mirror) Run(ctx context.Context, venues *config.Venues) (Report, error) {
	var report Report
	feedsDir := m.feedsDir
	if !filepath.IsAbs(feedsDir) {
		feedsDir = filepath.Join(venues.Dir(), feedsDir)
	}

	for _, id := range venues.IDs() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		venue := venues.Entries[id]

		source := venue.Source()
		if source == "" {
			appLog.Warn("venue has no calendar source; skipping", "venue", id)
			report.Skipped = append(report.Skipped, id)
			m.count(metrics.ResultSkipped)
			continue
		}

		ical, err := m.mirrorOne(ctx, id, source, feedsDir, venues.Dir())
		if err != nil {
			appLog.Error("mirror failed", err, "venue", id, "url", ics.RedactURL(source))
			report.Failed = append(report.Failed, id)
			m.count(metrics.ResultError)
			continue
		}

		venues.SetFeed(id, ical, source)
		report.Updated = append(report.Updated, id)
		m.count(metrics.ResultOK)
		appLog.Info("calendar mirrored", "venue", id, "file", ical)
	}

	if len(report.Updated) == 0 {
		appLog.Warn("no calendars were updated", "failed", len(report.Failed), "skipped", len(report.Skipped))
		return report, nil
	}
	if err := venues.Save(); err != nil {
		return report, fmt.Errorf("save venues: %w", err)
	}
	return report, nil
}

// mirrorOne downloads source into feedsDir and returns the registry value
// for the local copy, relative to baseDir with forward slashes.
func (m *Mirror) mirrorOne(ctx context.Context, id, source, feedsDir, baseDir string) (string, error) {
	if !ics.IsHTTPURL(source) {
		return "", fmt.Errorf("%w: %s", apperr.ErrUnsupportedURL, ics.RedactURL(source))
	}

	body, err := m.download(ctx, source)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(feedsDir, 0o755); err != nil {
		return "", err
	}
	target := filepath.Join(feedsDir, id+".ics")
	if err := ics.WriteFileAtomic(target, body, 0o644); err != nil {
		return "", err
	}

	rel, err := filepath.Rel(baseDir, target)
	if err != nil {
		return target, nil
	}
	return filepath.ToSlash(rel), nil
}

func (m *Mirror) download(ctx context.Context, source string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", m.userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (m *Mirror) count(result string) {
	if m.metrics == nil {
		return
	}
	m.metrics.MirrorEntries.WithLabelValues(result).Inc()
}
