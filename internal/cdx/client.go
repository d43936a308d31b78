// Package cdx queries the web archive's capture index.
package cdx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/laruecivic/civic-intel/internal/ratelimit"
)

// DefaultEndpoint is the public CDX search endpoint.
const DefaultEndpoint = "https://web.archive.org/cdx/search/cdx"

// MatchMode selects how the target URL is matched against the index.
type MatchMode string

// Match modes. Prefix additionally matches every URL beginning with the
// target, expressed as a trailing wildcard on the url parameter.
const (
	MatchExact  MatchMode = "exact"
	MatchPrefix MatchMode = "prefix"
)

// SortOrder selects capture ordering.
type SortOrder string

// Sort orders. Ascending is the index default and is used for paginated
// resume; descending serves "give me the freshest capture" probes.
const (
	SortAscending  SortOrder = ""
	SortDescending SortOrder = "desc"
)

// Capture is one index record. The index only ever returns captures with
// a successful status (server-side filter) and collapses records by
// content digest where supported.
type Capture struct {
	Timestamp   string
	OriginalURL string
	MIMEType    string
	StatusCode  int
}

// Query describes one index request.
type Query struct {
	URL   string
	Match MatchMode
	Sort  SortOrder
	From  string
	To    string
	Limit int
}

// Config holds the client dependencies.
type Config struct {
	Endpoint  string
	UserAgent string
	Client    *http.Client
	Pacer     *ratelimit.Pacer
	Logger    *zap.Logger
}

// Client queries the capture index. Every request passes through the
// shared pacer before touching the network.
type Client struct {
	endpoint  string
	userAgent string
	client    *http.Client
	pacer     *ratelimit.Pacer
	logger    *zap.Logger
}

// New builds a Client.
func New(cfg Config) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		endpoint:  endpoint,
		userAgent: cfg.UserAgent,
		client:    client,
		pacer:     cfg.Pacer,
		logger:    logger,
	}
}

// Query returns capture records for q. Transport and decode failures are
// returned to the caller, which treats them as a per-URL skip; they are
// never fatal to a run.
func (c *Client) Query(ctx context.Context, q Query) ([]Capture, error) {
	if c.pacer != nil {
		if err := c.pacer.Wait(ctx); err != nil {
			return nil, err
		}
	}

	requestURL := c.requestURL(q)
	c.logger.Debug("cdx query", zap.String("request_url", requestURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build cdx request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cdx query %s: %w", q.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("cdx query rejected",
			zap.String("request_url", requestURL), zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("cdx query %s: unexpected status %d", q.URL, resp.StatusCode)
	}

	var rows [][]string
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode cdx response for %s: %w", q.URL, err)
	}
	return parseRows(rows), nil
}

func (c *Client) requestURL(q Query) string {
	target := q.URL
	if q.Match == MatchPrefix {
		target += "*"
	}

	params := url.Values{}
	params.Set("url", target)
	params.Set("output", "json")
	params.Set("fl", "timestamp,original,mimetype,statuscode")
	params.Set("filter", "statuscode:200")
	params.Set("collapse", "digest")
	params.Set("limit", strconv.Itoa(q.Limit))
	if q.Sort != SortAscending {
		params.Set("sort", string(q.Sort))
	}
	if q.From != "" {
		params.Set("from", q.From)
	}
	if q.To != "" {
		params.Set("to", q.To)
	}
	return c.endpoint + "?" + params.Encode()
}

// parseRows maps the header-row tabular response onto Capture records.
// Rows missing a timestamp or original URL are dropped.
func parseRows(rows [][]string) []Capture {
	if len(rows) < 2 {
		return nil
	}
	cols := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		cols[name] = i
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	captures := make([]Capture, 0, len(rows)-1)
	for _, row := range rows[1:] {
		ts := field(row, "timestamp")
		original := field(row, "original")
		if ts == "" || original == "" {
			continue
		}
		status, _ := strconv.Atoi(field(row, "statuscode"))
		captures = append(captures, Capture{
			Timestamp:   ts,
			OriginalURL: original,
			MIMEType:    field(row, "mimetype"),
			StatusCode:  status,
		})
	}
	return captures
}
