package feed

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
	"sync"
	"time"

	appLog "mbtalerts/internal/log"
)

// HTTPError is returned for 4xx and 5xx responses that could not be
// served from the cache.
type HTTPError struct {
	URL, Status string
	StatusCode  int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: %s", e.URL, e.Status)
}

// Temporary reports whether retrying later may succeed.
func (e *HTTPError) Temporary() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Retryable reports whether a failed fetch may succeed on a later attempt.
// Only an HTTPError with a permanent status, such as 401 or 404, is not.
func Retryable(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Temporary()
	}
	return true
}

// FetchResult contains the outcome of fetching the feed.
type FetchResult struct {
	URL       string
	Body      []byte
	FromCache bool // true if the body came from disk instead of a 200 response
}

// cacheEntry holds HTTP cache metadata for a single URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads feed documents with HTTP revalidation (ETag /
// Last-Modified) and a disk-backed cache. It is safe for concurrent use;
// fetches through one Fetcher run one at a time.
type Fetcher struct {
	mu       sync.Mutex
	client   *http.Client
	cacheDir string

	// APIKey is sent as the x-api-key header when set.
	APIKey string

	// UseCache serves a body cached earlier the same day without touching
	// the network.
	UseCache bool

	now func() time.Time
}

// NewFetcher creates a Fetcher caching under cacheDir, one subdirectory per
// URL.
func NewFetcher(cacheDir string) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./cache"
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		cacheDir: cacheDir,
		now:      time.Now,
	}
}

// Fetch returns the document at rawURL. Network errors and error statuses
// fall back to the cached body when there is one.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (FetchResult, error) {
	if rawURL == "" {
		return FetchResult{}, errors.New("feed URL is empty")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	cachePath := f.cachePathForURL(rawURL)
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return FetchResult{}, err
	}

	meta, _ := f.loadCacheMeta(cachePath)
	cachedBody, _ := f.loadCacheBody(cachePath)
	cached := FetchResult{URL: rawURL, Body: cachedBody, FromCache: true}

	if f.UseCache && len(cachedBody) > 0 && sameDay(meta.UpdatedAt, f.now()) {
		appLog.Debug("feed served from cache", "url", redactURL(rawURL), "cached_at", meta.UpdatedAt)
		return cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	req.Header.Set("Accept", "application/vnd.api+json, application/x-protobuf, */*")
	if f.APIKey != "" {
		req.Header.Set("x-api-key", f.APIKey)
	}
	if len(cachedBody) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Debug("feed fetch start", "url", redactURL(rawURL))

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 && ctx.Err() == nil {
			appLog.Error("feed fetch network error, using cached body", err, "url", redactURL(rawURL))
			return cached, nil
		}
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return FetchResult{}, readErr
		}

		newMeta := cacheEntry{
			URL:          rawURL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := f.saveCache(cachePath, newMeta, body); err != nil {
			// Log but still return the freshly fetched body.
			appLog.Error("feed cache save failed", err, "url", redactURL(rawURL))
		}

		appLog.Debug("feed fetch success", "url", redactURL(rawURL), "status", resp.StatusCode, "bytes", len(body))
		return FetchResult{URL: rawURL, Body: body}, nil

	case resp.StatusCode == http.StatusNotModified:
		if len(cachedBody) == 0 {
			return FetchResult{}, errors.New("received 304 Not Modified but no cached body available")
		}
		// Refresh the timestamp so UseCache keeps working today.
		if err := f.saveCache(cachePath, meta, cachedBody); err != nil {
			appLog.Error("feed cache save failed", err, "url", redactURL(rawURL))
		}
		appLog.Debug("feed not modified; using cache", "url", redactURL(rawURL))
		return cached, nil

	default:
		io.Copy(io.Discard, resp.Body)
		httpErr := &HTTPError{URL: redactURL(rawURL), Status: resp.Status, StatusCode: resp.StatusCode}
		if len(cachedBody) > 0 {
			appLog.Error("feed fetch non-OK, using cached body", httpErr, "url", redactURL(rawURL), "status", resp.StatusCode)
			return cached, nil
		}
		return FetchResult{}, httpErr
	}
}

func (f *Fetcher) cachePathForURL(u string) string {
	sum := sha256.Sum256([]byte(u))
	// Use first 16 hex chars as directory name.
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func (f *Fetcher) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (f *Fetcher) loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body"))
}

func (f *Fetcher) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Write body first so meta never points at missing body.
	if err := writeFileAtomic(filepath.Join(cachePath, "body"), body); err != nil {
		return err
	}

	meta.UpdatedAt = f.now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(cachePath, "meta.json"), data)
}

// writeFileAtomic replaces path with data via a temp file and rename, so a
// reader sees either the old or the new content in full.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func sameDay(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// redactURL drops credentials and the query string for logging.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "feed://...(redacted)"
	}
	u.User = nil
	if u.RawQuery != "" {
		u.RawQuery = "...(redacted)"
	}
	return u.String()
}
