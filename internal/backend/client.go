// Package backend is an HTTP adapter that executes search requests against
// an Elasticsearch-compatible _search endpoint.
package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/valyala/fastjson"

	"github.com/roach88/esfilter/internal/source"
)

// DefaultTimeout bounds one search when no client is supplied.
const DefaultTimeout = 30 * time.Second

// maxErrorBody is the number of response bytes kept in an Error.
const maxErrorBody = 512

// Error reports a non-2xx response.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("search returned %d: %s", e.StatusCode, e.Body)
}

// Client posts search requests to one backend.
//
// Safe for concurrent use.
type Client struct {
	base   *url.URL
	http   *http.Client
	gzip   bool
	header http.Header
	logger *slog.Logger
	parser fastjson.ParserPool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client and its timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithGzip compresses request bodies.
func WithGzip(enabled bool) Option {
	return func(cl *Client) { cl.gzip = enabled }
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(cl *Client) { cl.header.Add(key, value) }
}

// WithLogger sets the logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// New returns a client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: DefaultTimeout},
		header: make(http.Header),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the _search URL for an index and optional type.
func (c *Client) Endpoint(index, docType string) string {
	parts := []string{url.PathEscape(index)}
	if docType != "" {
		parts = append(parts, url.PathEscape(docType))
	}
	parts = append(parts, "_search")

	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.Join(parts, "/")
	u.RawPath = ""
	return u.String()
}

// Search executes req. It implements source.Backend.
func (c *Client) Search(ctx context.Context, req *source.SearchRequest) (*source.SearchResponse, error) {
	body, err := req.Body()
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	payload, err := c.encode(body)
	if err != nil {
		return nil, err
	}

	endpoint := c.Endpoint(req.Index, req.DocType)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range c.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept-Encoding", "gzip")
	if c.gzip {
		httpReq.Header.Set("Content-Encoding", "gzip")
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	data, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("search completed",
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"bytes", len(data),
		"elapsed", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt := string(data)
		if len(excerpt) > maxErrorBody {
			excerpt = excerpt[:maxErrorBody]
		}
		return nil, &Error{StatusCode: resp.StatusCode, Body: excerpt}
	}

	return c.decode(data)
}

func (c *Client) encode(body []byte) ([]byte, error) {
	if !c.gzip {
		return body, nil
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(body); err != nil {
		return nil, fmt.Errorf("compress request: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress request: %w", err)
	}
	return buf.Bytes(), nil
}

func readBody(resp *http.Response) ([]byte, error) {
	if !strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		return io.ReadAll(resp.Body)
	}
	zr, err := gzip.NewReader(resp.Body)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// decode reads hits.total, which is a number on older backends and an
// object with a value on newer ones, and each hit's id, score and source.
func (c *Client) decode(data []byte) (*source.SearchResponse, error) {
	p := c.parser.Get()
	defer c.parser.Put(p)

	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	hits := v.Get("hits")
	if hits == nil {
		return nil, fmt.Errorf("parse response: missing hits")
	}

	out := &source.SearchResponse{}
	if total := hits.Get("total"); total != nil {
		switch total.Type() {
		case fastjson.TypeNumber:
			out.Total = total.GetInt64()
		case fastjson.TypeObject:
			out.Total = total.GetInt64("value")
		default:
			return nil, fmt.Errorf("parse response: hits.total is %s", total.Type())
		}
	}

	for _, h := range hits.GetArray("hits") {
		hit := source.Hit{
			ID:    string(h.GetStringBytes("_id")),
			Score: h.GetFloat64("_score"),
		}
		if src := h.Get("_source"); src != nil {
			hit.Source = src.MarshalTo(nil)
		}
		out.Hits = append(out.Hits, hit)
	}
	return out, nil
}
