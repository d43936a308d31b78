// Package agendas collects meeting agenda and minutes documents linked
// from the governing body's web page. Discovery runs through a Colly
// collector; downloads go through the shared snapshot fetcher so they
// honor the global pace.
package agendas

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/laruecivic/civic-intel/internal/artifact"
	"github.com/laruecivic/civic-intel/internal/snapshot"
)

var documentExtensions = map[string]bool{
	".pdf":  true,
	".html": true,
	".htm":  true,
}

// Config tunes one agenda collection run.
type Config struct {
	BaseURL      string
	Keywords     []string
	Tags         []string
	UserAgent    string
	ArtifactsDir string
	SnapshotsDir string
}

// Summary counts the outcome of one collection run.
type Summary struct {
	Discovered int
	Downloaded int
	Skipped    int
	Failed     int
}

// Collector discovers and archives agenda documents.
type Collector struct {
	cfg     Config
	fetcher *snapshot.Fetcher
	logger  *zap.Logger
	now     func() time.Time
}

// New builds a Collector sharing the given snapshot fetcher.
func New(cfg Config, fetcher *snapshot.Fetcher, logger *zap.Logger) *Collector {
	return &Collector{
		cfg:     cfg,
		fetcher: fetcher,
		logger:  logger,
		now:     time.Now,
	}
}

// Run discovers agenda document links on the base page and downloads
// any the artifacts directory does not already hold. Re-running against
// an unchanged page downloads nothing.
func (c *Collector) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	links, err := c.Discover()
	if err != nil {
		return summary, err
	}
	summary.Discovered = len(links)
	if len(links) == 0 {
		c.logger.Info("no agenda documents discovered", zap.String("base_url", c.cfg.BaseURL))
		return summary, nil
	}

	for _, link := range links {
		id := DocumentID(link)
		artifactPath := artifact.Path(c.cfg.ArtifactsDir, id)
		if _, err := os.Stat(artifactPath); err == nil {
			summary.Skipped++
			continue
		}

		ext := documentExtension(link)
		dest := filepath.Join(c.cfg.SnapshotsDir, id+ext)
		contentType, _, err := c.fetcher.Fetch(ctx, link, dest)
		if err != nil {
			c.logger.Warn("agenda download failed", zap.String("url", link), zap.Error(err))
			summary.Failed++
			continue
		}

		a := artifact.Artifact{
			ContentType: snapshot.ResolveContentType(contentType, "", link),
			ID:          id,
			Source: artifact.SourceRef{
				Kind:        "url",
				RetrievedAt: artifact.Timestamp(c.now()),
				Value:       link,
			},
			Tags:  append([]string(nil), c.cfg.Tags...),
			Title: fmt.Sprintf("Fiscal court document: %s", filepath.Base(link)),
		}
		if err := artifact.Write(artifactPath, a); err != nil {
			c.logger.Warn("agenda artifact write failed", zap.String("id", id), zap.Error(err))
			summary.Failed++
			continue
		}
		summary.Downloaded++
	}

	c.logger.Info("agenda run complete",
		zap.Int("discovered", summary.Discovered),
		zap.Int("downloaded", summary.Downloaded),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

// Discover visits the base page and returns the sorted unique absolute
// URLs of linked documents whose URL mentions a configured keyword and
// ends in a document extension.
func (c *Collector) Discover() ([]string, error) {
	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url %s: %w", c.cfg.BaseURL, err)
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(base.Hostname()),
		colly.MaxDepth(1),
		colly.UserAgent(c.cfg.UserAgent),
	)
	collector.AllowURLRevisit = false

	found := make(map[string]bool)
	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		absolute := e.Request.AbsoluteURL(e.Attr("href"))
		if c.isDocumentLink(absolute) {
			found[absolute] = true
		}
	})

	var visitErr error
	collector.OnError(func(r *colly.Response, err error) {
		visitErr = fmt.Errorf("fetch %s: %w", r.Request.URL, err)
	})

	if err := collector.Visit(c.cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("visit %s: %w", c.cfg.BaseURL, err)
	}
	collector.Wait()
	if visitErr != nil {
		return nil, visitErr
	}

	links := make([]string, 0, len(found))
	for link := range found {
		links = append(links, link)
	}
	sort.Strings(links)
	return links, nil
}

func (c *Collector) isDocumentLink(absolute string) bool {
	if !strings.HasPrefix(absolute, "http") {
		return false
	}
	lower := strings.ToLower(absolute)
	if !documentExtensions[filepath.Ext(lower)] {
		return false
	}
	for _, keyword := range c.cfg.Keywords {
		if strings.Contains(lower, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}

// DocumentID derives a stable artifact id from the document URL.
func DocumentID(docURL string) string {
	sum := sha256.Sum256([]byte(docURL))
	return "fiscal-court:" + hex.EncodeToString(sum[:])[:16]
}

// documentExtension returns the URL path extension, defaulting to .pdf
// the way most linked agenda documents resolve.
func documentExtension(docURL string) string {
	u, err := url.Parse(docURL)
	if err != nil {
		return ".pdf"
	}
	if ext := strings.ToLower(filepath.Ext(u.Path)); documentExtensions[ext] {
		return ext
	}
	return ".pdf"
}
