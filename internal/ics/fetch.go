package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"venuecal/internal/apperr"
	appLog "venuecal/internal/log"
)

const defaultFetchTimeout = 15 * time.Second

// Source is one venue feed.
type Source struct {
	// ID is the venue identifier, used for logging.
	ID string
	// URL is an http(s) endpoint, a file:// URL or a local path. Relative
	// paths are resolved by the caller.
	URL string
}

// IsRemote reports whether the source has to be fetched over HTTP.
func (s Source) IsRemote() bool {
	return IsHTTPURL(s.URL)
}

// IsHTTPURL reports whether u is an http or https URL.
func IsHTTPURL(u string) bool {
	lower := strings.ToLower(u)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// FetchResult contains the outcome of fetching a single feed.
type FetchResult struct {
	Source    Source
	Body      []byte // feed payload (network, cache or local file)
	FromCache bool   // true if we reused the cached body
}

// cacheEntry holds HTTP cache metadata for a single ICS URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher retrieves venue feeds. Remote feeds use conditional requests
// (ETag / Last-Modified) backed by a disk cache; local files are read
// directly.
type Fetcher struct {
	client   *http.Client
	cacheDir string

	// inflight collapses concurrent fetches of the same URL.
	inflight singleflight.Group
}

// NewFetcher creates a new Fetcher.
//
// cacheDir is the base directory where per-URL cache subdirectories and
// metadata will be stored. A zero timeout uses 15s.
func NewFetcher(cacheDir string, timeout time.Duration) *Fetcher {
	if cacheDir == "" {
		// Caller should set this explicitly; we fallback to a relative dir
		// so that development runs without root permissions.
		cacheDir = "./var/feed-cache"
	}
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
		},
		cacheDir: cacheDir,
	}
}

// Fetch returns the feed body for src. Every failure wraps
// apperr.ErrFeedUnavailable.
func (f *Fetcher) Fetch(ctx context.Context, src Source) (FetchResult, error) {
	var (
		res FetchResult
		err error
	)
	if src.IsRemote() {
		res, err = f.FetchOne(ctx, src)
	} else {
		res, err = f.readLocal(src)
	}
	if err != nil {
		return FetchResult{}, fmt.Errorf("%w: %s: %w", apperr.ErrFeedUnavailable, src.ID, err)
	}
	return res, nil
}

func (f *Fetcher) readLocal(src Source) (FetchResult, error) {
	path := src.URL
	if strings.HasPrefix(path, "file://") {
		u, err := url.Parse(path)
		if err != nil {
			return FetchResult{}, err
		}
		path = u.Path
	}
	if path == "" {
		return FetchResult{}, errors.New("source URL is empty")
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return FetchResult{}, err
	}
	appLog.Debug("feed read from disk", "id", src.ID, "path", path, "bytes", len(body))
	return FetchResult{Source: src, Body: body}, nil
}

// FetchOne fetches a single remote feed, honoring ETag and Last-Modified.
// It uses a disk cache under f.cacheDir keyed by a hash of the URL.
// Concurrent calls for the same URL share one request.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, errors.New("source URL is empty")
	}
	v, err, shared := f.inflight.Do(src.URL, func() (any, error) {
		return f.fetchRemote(ctx, src)
	})
	if err != nil {
		return FetchResult{}, err
	}
	res := v.(FetchResult)
	if shared {
		appLog.Debug("feed fetch shared with concurrent request", "id", src.ID, "url", RedactURL(src.URL))
	}
	res.Source = src
	return res, nil
}

func (f *Fetcher) fetchRemote(ctx context.Context, src Source) (FetchResult, error) {
	cachePath, err := f.cachePathForURL(src.URL)
	if err != nil {
		return FetchResult{}, err
	}

	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return FetchResult{}, err
	}

	meta, _ := f.loadCacheMeta(cachePath)
	cachedBody, _ := f.loadCacheBody(cachePath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, err
	}

	// Conditional headers from cache metadata.
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}
	req.Header.Set("Accept", "text/calendar,text/plain,*/*")

	appLog.Info("feed fetch start", "id", src.ID, "url", RedactURL(src.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		// Network error; if we have a cached body, fall back to it.
		if len(cachedBody) > 0 {
			appLog.Error("feed fetch network error, using cached body", err, "id", src.ID, "url", RedactURL(src.URL))
			return FetchResult{
				Source:    src,
				Body:      cachedBody,
				FromCache: true,
			}, nil
		}
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Fresh content.
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return FetchResult{}, readErr
		}

		newMeta := cacheEntry{
			URL:          src.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			UpdatedAt:    time.Now().UTC(),
		}

		if err := f.saveCache(cachePath, newMeta, body); err != nil {
			// Log but still return the freshly fetched body.
			appLog.Error("feed cache save failed", err, "id", src.ID, "url", RedactURL(src.URL))
		}

		appLog.Info("feed fetch success", "id", src.ID, "url", RedactURL(src.URL), "status", resp.StatusCode, "from_cache", false)

		return FetchResult{
			Source:    src,
			Body:      body,
			FromCache: false,
		}, nil

	case http.StatusNotModified:
		// No change; use cached body if available.
		if len(cachedBody) == 0 {
			// 304 but no cached body: treat as error.
			return FetchResult{}, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Info("feed not modified; using cache", "id", src.ID, "url", RedactURL(src.URL))
		return FetchResult{
			Source:    src,
			Body:      cachedBody,
			FromCache: true,
		}, nil

	default:
		// Non-OK status: if we have cached data, fall back to it.
		if len(cachedBody) > 0 {
			appLog.Error("feed fetch non-OK, using cached body", errors.New(resp.Status), "id", src.ID, "url", RedactURL(src.URL), "status", resp.StatusCode)
			return FetchResult{
				Source:    src,
				Body:      cachedBody,
				FromCache: true,
			}, nil
		}
		return FetchResult{}, fmt.Errorf("unexpected status %s", resp.Status)
	}
}

func (f *Fetcher) cachePathForURL(rawURL string) (string, error) {
	if rawURL == "" {
		return "", errors.New("empty url")
	}
	sum := sha256.Sum256([]byte(rawURL))
	// Use first 16 hex chars as directory name.
	dir := hex.EncodeToString(sum[:8])
	return filepath.Join(f.cacheDir, dir), nil
}

func (f *Fetcher) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	metaFile := filepath.Join(cachePath, "meta.json")

	data, err := os.ReadFile(metaFile)
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (f *Fetcher) loadCacheBody(cachePath string) ([]byte, error) {
	bodyFile := filepath.Join(cachePath, "body.ics")
	return os.ReadFile(bodyFile)
}

func (f *Fetcher) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	metaFile := filepath.Join(cachePath, "meta.json")
	bodyFile := filepath.Join(cachePath, "body.ics")

	// Write body first so meta never points at missing body.
	if err := WriteFileAtomic(bodyFile, body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}

	return WriteFileAtomic(metaFile, data, 0o600)
}

// WriteFileAtomic writes data to a temp file next to path and renames it
// into place, so readers see either the old or the new content.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// RedactURL hides sensitive parts of a feed URL for logging purposes.
// Local paths are returned unchanged.
//
//	https://user:pw@example.com/private.ics?token=abcd
//	-> https://example.com/...(redacted)
func RedactURL(raw string) string {
	if !IsHTTPURL(raw) {
		return raw
	}
	const redactedSuffix = "/...(redacted)"

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "feed://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + redactedSuffix
}
