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
	"time"

	"weeklybrief/internal/artifact"
	appLog "weeklybrief/internal/log"
)

// Feed is one subscribed ICS calendar.
type Feed struct {
	// ID is the calendar ID used in config and logs.
	ID   string
	Name string
	URL  string
}

// fetchResult is a feed body, fresh or reused from the disk cache.
type fetchResult struct {
	Body      []byte
	FromCache bool
}

type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads ICS feeds with conditional requests (ETag /
// Last-Modified). The last good body is kept on disk and reused only on
// 304 Not Modified; any other failure is returned.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher returns a Fetcher caching under cacheDir. client may be nil.
func NewFetcher(cacheDir string, client *http.Client) *Fetcher {
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "weeklybrief-ics")
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{client: client, cacheDir: cacheDir}
}

// Fetch returns the body of feed. Network errors and non-OK responses are
// errors even when a cached body exists.
func (f *Fetcher) Fetch(ctx context.Context, feed Feed) (fetchResult, error) {
	if feed.URL == "" {
		return fetchResult{}, errors.New("ics feed URL is empty")
	}

	dir := f.cachePath(feed.URL)
	meta, _ := loadMeta(dir)
	cached, _ := os.ReadFile(filepath.Join(dir, "body.ics"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return fetchResult{}, err
	}
	if meta.URL == feed.URL && len(cached) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Debug("ics fetch start", "id", feed.ID, "url", redactURL(feed.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		// *url.Error embeds the full URL.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fetchResult{}, fmt.Errorf("ics fetch %s: %w", redactURL(feed.URL), err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fetchResult{}, err
		}
		meta := cacheMeta{
			URL:          feed.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := saveCache(dir, meta, body); err != nil {
			appLog.Error("ics cache save failed", err, "id", feed.ID)
		}
		appLog.Info("ics fetch success", "id", feed.ID, "url", redactURL(feed.URL), "bytes", len(body))
		return fetchResult{Body: body}, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return fetchResult{}, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Info("ics not modified; using cache", "id", feed.ID, "url", redactURL(feed.URL))
		return fetchResult{Body: cached, FromCache: true}, nil

	default:
		return fetchResult{}, fmt.Errorf("ics fetch %s: %s", redactURL(feed.URL), resp.Status)
	}
}

// cachePath keys the cache directory by a hash of the URL, which often
// embeds a private token.
func (f *Fetcher) cachePath(u string) string {
	sum := sha256.Sum256([]byte(u))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadMeta(dir string) (cacheMeta, error) {
	var meta cacheMeta
	data, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheMeta{}, err
	}
	return meta, nil
}

func saveCache(dir string, meta cacheMeta, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := artifact.WriteFile(filepath.Join(dir, "body.ics"), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return artifact.WriteFile(filepath.Join(dir, "meta.json"), data, 0o600)
}

// redactURL keeps only scheme and host of a subscription URL for logs.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
