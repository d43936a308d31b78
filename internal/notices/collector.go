// Package notices scrapes the statewide public notice search for items
// mentioning the county and archives each result as an artifact. The
// search page download goes through the shared snapshot fetcher so it
// honors the global pace.
package notices

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/laruecivic/civic-intel/internal/artifact"
	"github.com/laruecivic/civic-intel/internal/snapshot"
)

// searchSnapshotName is where the raw search page lands each run.
const searchSnapshotName = "public_notice_search.html"

// rowSelectors are tried in order against the search page; the first
// selector with any matches wins. The portal has reshuffled its result
// markup before, so several known shapes are recognized.
var rowSelectors = []string{
	"div.search-results article",
	"div.search-results .result",
	"li.search-result",
	"article.notice",
	"div.notice",
}

// Config tunes one notice collection run.
type Config struct {
	SearchURL    string
	Query        string
	Tags         []string
	ArtifactsDir string
	SnapshotsDir string
}

// Notice is one search result row before it becomes an artifact.
type Notice struct {
	URL     string
	Title   string
	Snippet string
	RowHTML string
}

// Summary counts the outcome of one collection run.
type Summary struct {
	Found   int
	Written int
	Skipped int
	Failed  int
}

// Collector scrapes and archives public notice search results.
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

// Run fetches the search page, parses the result rows, and writes one
// artifact per notice the artifacts directory does not already hold.
// Re-running against an unchanged result page writes nothing new.
func (c *Collector) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	searchURL, err := c.searchURL()
	if err != nil {
		return summary, err
	}

	dest := filepath.Join(c.cfg.SnapshotsDir, searchSnapshotName)
	_, data, err := c.fetcher.Fetch(ctx, searchURL, dest)
	if err != nil {
		return summary, fmt.Errorf("fetch notice search: %w", err)
	}

	found, err := c.Parse(data)
	if err != nil {
		return summary, err
	}
	summary.Found = len(found)
	if len(found) == 0 {
		c.logger.Info("no public notices found", zap.String("query", c.cfg.Query))
		return summary, nil
	}

	for _, n := range found {
		id := NoticeID(n.URL)
		artifactPath := artifact.Path(c.cfg.ArtifactsDir, id)
		if _, err := os.Stat(artifactPath); err == nil {
			summary.Skipped++
			continue
		}

		a := artifact.Artifact{
			ContentType: "text/html",
			ID:          id,
			Source: artifact.SourceRef{
				Kind:        "url",
				RetrievedAt: artifact.Timestamp(c.now()),
				Value:       n.URL,
			},
			Tags:  append([]string(nil), c.cfg.Tags...),
			Title: n.Title,
		}
		if n.Snippet != "" {
			snippet := n.Snippet
			a.BodyText = &snippet
		}
		if err := artifact.Write(artifactPath, a); err != nil {
			c.logger.Warn("notice artifact write failed", zap.String("id", id), zap.Error(err))
			summary.Failed++
			continue
		}
		if n.RowHTML != "" {
			rowPath := filepath.Join(c.cfg.SnapshotsDir, id+".html")
			if err := os.WriteFile(rowPath, []byte(n.RowHTML), 0o600); err != nil {
				c.logger.Warn("notice snapshot write failed", zap.String("id", id), zap.Error(err))
			}
		}
		summary.Written++
	}

	c.logger.Info("notice run complete",
		zap.Int("found", summary.Found),
		zap.Int("written", summary.Written),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

// Parse extracts notices from the search page bytes. When none of the
// known result-row shapes match, any link whose href mentions a notice
// is collected instead so a markup change degrades rather than blinds
// the collector.
func (c *Collector) Parse(data []byte) ([]Notice, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse notice search page: %w", err)
	}
	base, err := url.Parse(c.cfg.SearchURL)
	if err != nil {
		return nil, fmt.Errorf("parse search url %s: %w", c.cfg.SearchURL, err)
	}

	for _, selector := range rowSelectors {
		rows := doc.Find(selector)
		if rows.Length() == 0 {
			continue
		}
		var found []Notice
		rows.Each(func(_ int, row *goquery.Selection) {
			if n, ok := noticeFromRow(row, base); ok {
				found = append(found, n)
			}
		})
		return found, nil
	}
	return fallbackLinks(doc, base), nil
}

// noticeFromRow reads one structured result row. Rows without a link
// are dropped.
func noticeFromRow(row *goquery.Selection, base *url.URL) (Notice, bool) {
	link := row.Find("a[href]").First()
	if link.Length() == 0 {
		return Notice{}, false
	}
	href, _ := link.Attr("href")
	noticeURL := absoluteURL(base, href)
	if noticeURL == "" {
		return Notice{}, false
	}

	title := collapse(link.Text())
	if title == "" {
		title = collapse(row.Find("h1, h2, h3").First().Text())
	}

	n := Notice{
		URL:     noticeURL,
		Title:   title,
		Snippet: collapse(row.Find("p").First().Text()),
	}
	if html, err := goquery.OuterHtml(row); err == nil {
		n.RowHTML = html
	}
	return n, true
}

// fallbackLinks scans every link on the page for notice hrefs,
// deduplicated in document order.
func fallbackLinks(doc *goquery.Document, base *url.URL) []Notice {
	seen := make(map[string]bool)
	var found []Notice
	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		if !strings.Contains(strings.ToLower(href), "notice") {
			return
		}
		noticeURL := absoluteURL(base, href)
		if noticeURL == "" || seen[noticeURL] {
			return
		}
		seen[noticeURL] = true
		found = append(found, Notice{URL: noticeURL, Title: collapse(link.Text())})
	})
	return found
}

func (c *Collector) searchURL() (string, error) {
	u, err := url.Parse(c.cfg.SearchURL)
	if err != nil {
		return "", fmt.Errorf("parse search url %s: %w", c.cfg.SearchURL, err)
	}
	q := u.Query()
	q.Set("q", c.cfg.Query)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func absoluteURL(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// collapse squeezes runs of whitespace into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NoticeID derives a stable artifact id from the notice URL.
func NoticeID(noticeURL string) string {
	sum := sha256.Sum256([]byte(noticeURL))
	return "public-notice:" + hex.EncodeToString(sum[:])[:16]
}
