// Package snapshot downloads raw capture bytes and resolves their
// on-disk file extension.
package snapshot

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/laruecivic/civic-intel/internal/ratelimit"
)

// PlaceholderExt is used for the initial write; the caller renames the
// file once the real extension is resolved.
const PlaceholderExt = ".bin"

var extensionByType = map[string]string{
	"text/html":        ".html",
	"application/pdf":  ".pdf",
	"text/plain":       ".txt",
	"application/json": ".json",
}

var typeByExtension = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".json": "application/json",
}

// Config holds the fetcher dependencies.
type Config struct {
	UserAgent string
	Client    *http.Client
	Pacer     *ratelimit.Pacer
	Logger    *zap.Logger
}

// Fetcher downloads snapshot bytes through the shared pacer.
type Fetcher struct {
	userAgent string
	client    *http.Client
	pacer     *ratelimit.Pacer
	logger    *zap.Logger
}

// NewFetcher builds a Fetcher.
func NewFetcher(cfg Config) *Fetcher {
	client := cfg.Client
	if client == nil {
		client = NewHTTPClient(30 * time.Second)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		userAgent: cfg.UserAgent,
		client:    client,
		pacer:     cfg.Pacer,
		logger:    logger,
	}
}

// NewHTTPClient builds the pooled HTTP client shared by outbound callers.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   15 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}

// Fetch downloads snapshotURL and writes the bytes to dest. It returns
// the advisory Content-Type header and the bytes so the caller can hash
// and re-extension the file without a second read.
func (f *Fetcher) Fetch(ctx context.Context, snapshotURL, dest string) (string, []byte, error) {
	if f.pacer != nil {
		if err := f.pacer.Wait(ctx); err != nil {
			return "", nil, err
		}
	}

	f.logger.Debug("snapshot fetch", zap.String("url", snapshotURL), zap.String("dest", dest))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, snapshotURL, nil)
	if err != nil {
		return "", nil, fmt.Errorf("build snapshot request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("fetch snapshot %s: %w", snapshotURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		f.logger.Debug("snapshot fetch rejected",
			zap.String("url", snapshotURL), zap.Int("status", resp.StatusCode))
		return "", nil, fmt.Errorf("fetch snapshot %s: unexpected status %d", snapshotURL, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("read snapshot %s: %w", snapshotURL, err)
	}
	if err := os.WriteFile(dest, data, 0o600); err != nil {
		return "", nil, fmt.Errorf("write snapshot %s: %w", dest, err)
	}
	return resp.Header.Get("Content-Type"), data, nil
}

// ResolveExtension picks the file extension for a snapshot: the fetch
// response Content-Type, then the index's reported MIME, then the
// original URL's path suffix, then the generic binary extension.
func ResolveExtension(contentType, indexMIME, originalURL string) string {
	for _, raw := range []string{contentType, indexMIME} {
		if ext, ok := extensionByType[normalizeMIME(raw)]; ok {
			return ext
		}
	}
	if u, err := url.Parse(originalURL); err == nil {
		if ext := path.Ext(u.Path); ext != "" {
			return strings.ToLower(ext)
		}
	}
	return PlaceholderExt
}

// ResolveContentType picks the artifact content_type using the same
// fallback chain, ending in application/octet-stream.
func ResolveContentType(contentType, indexMIME, originalURL string) string {
	for _, raw := range []string{contentType, indexMIME} {
		if mime := normalizeMIME(raw); mime != "" && strings.Contains(mime, "/") {
			return mime
		}
	}
	if u, err := url.Parse(originalURL); err == nil {
		if mime, ok := typeByExtension[strings.ToLower(path.Ext(u.Path))]; ok {
			return mime
		}
	}
	return "application/octet-stream"
}

// Finalize renames path so its extension matches ext, returning the
// final location. A matching extension is a no-op.
func Finalize(path, ext string) (string, error) {
	if filepath.Ext(path) == ext {
		return path, nil
	}
	final := strings.TrimSuffix(path, filepath.Ext(path)) + ext
	if err := os.Rename(path, final); err != nil {
		return "", fmt.Errorf("rename snapshot %s: %w", path, err)
	}
	return final, nil
}

func normalizeMIME(raw string) string {
	mime, _, _ := strings.Cut(raw, ";")
	return strings.ToLower(strings.TrimSpace(mime))
}
