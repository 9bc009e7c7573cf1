package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ecosyste-ms/ecosystems-cli/internal/debug"
	"github.com/ecosyste-ms/ecosystems-cli/internal/spec"
	"github.com/ecosyste-ms/ecosystems-cli/internal/version"
	"github.com/sahilm/fuzzy"
)

// DefaultTimeout bounds each request when no timeout is configured.
const DefaultTimeout = 20 * time.Second

// Client dispatches operations of a single API. The loaded document and operation table
// are read-only after construction, so sequential reuse is safe. Concurrent
// use is not part of the contract.
type Client struct {
	API       string
	Spec      *spec.Spec
	Table     *spec.Table
	BaseURL   string // construction-time base URL: WithBaseURL or the first declared server
	Timeout   time.Duration
	HTTP      *http.Client
	UserAgent string

	lookupEnv   EnvLookup
	specOptions []spec.Option
}

// Response is a completed 2xx exchange.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Data is the decoded JSON body, the raw body as a string when it is not
	// JSON, or nil when the body is empty.
	Data any
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the document's default server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.BaseURL = strings.TrimSpace(u) }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

// WithHTTPClient replaces the transport client. Its own Timeout applies.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.HTTP = h } }

func WithUserAgent(ua string) Option { return func(c *Client) { c.UserAgent = ua } }

// WithEnvLookup replaces os.LookupEnv for domain overrides.
func WithEnvLookup(fn EnvLookup) Option { return func(c *Client) { c.lookupEnv = fn } }

// WithSpecOptions forwards options to spec.Load when the client loads its own spec.
func WithSpecOptions(opts ...spec.Option) Option {
	return func(c *Client) { c.specOptions = append(c.specOptions, opts...) }
}

// New loads the named API description and builds a client for it.
func New(ctx context.Context, apiName string, opts ...Option) (*Client, error) {
	probe := &Client{}
	for _, opt := range opts {
		opt(probe)
	}
	s, err := spec.Load(ctx, apiName, probe.specOptions...)
	if err != nil {
		return nil, err
	}
	return NewFromSpec(s, opts...)
}

// NewFromSpec builds a client around an already loaded spec.
func NewFromSpec(s *spec.Spec, opts ...Option) (*Client, error) {
	table, err := spec.BuildTable(s)
	if err != nil {
		return nil, err
	}
	c := &Client{
		API:       s.Name,
		Spec:      s,
		Table:     table,
		Timeout:   DefaultTimeout,
		UserAgent: version.UserAgent(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.BaseURL == "" {
		c.BaseURL = s.DefaultServerURL()
	}
	if c.HTTP == nil {
		c.HTTP = &http.Client{Timeout: c.Timeout}
	}
	return c, nil
}

// Operations returns the operation table ordered by ID.
func (c *Client) Operations() []spec.Operation {
	return c.Table.Operations()
}

// Operation looks up id, returning *InvalidOperationError when absent.
func (c *Client) Operation(id string) (spec.Operation, error) {
	op, ok := c.Table.Lookup(id)
	if !ok {
		return spec.Operation{}, &InvalidOperationError{Operation: id, Suggestions: c.suggest(id)}
	}
	return op, nil
}

// RequiredParameters returns the required parameters of id without any I/O.
func (c *Client) RequiredParameters(id string) ([]spec.Parameter, error) {
	op, err := c.Operation(id)
	if err != nil {
		return nil, err
	}
	return spec.RequiredParameters(op), nil
}

// Call runs the operation and returns the decoded response body.
func (c *Client) Call(ctx context.Context, id string, req Request) (any, error) {
	resp, err := c.Do(ctx, id, req)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Do runs the operation with a single HTTP attempt.
func (c *Client) Do(ctx context.Context, id string, req Request) (*Response, error) {
	op, err := c.Operation(id)
	if err != nil {
		return nil, err
	}

	base := ResolveBaseURL(c.API, req.Domain, c.BaseURL, c.lookupEnv)
	if base == "" {
		return nil, ErrNoBaseURL
	}
	target, err := BuildURL(base, op.Path, req.PathParams)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(op); err != nil {
		return nil, err
	}
	if qs := queryString(req.QueryParams); qs != "" {
		target += "?" + qs
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	method := strings.ToUpper(string(op.Method))
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for _, k := range sortedKeys(req.Headers) {
		if v := req.Headers[k]; v != "" {
			httpReq.Header.Set(k, v)
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", c.UserAgent)

	start := time.Now()
	if debug.IsEnabled(ctx) {
		slog.Debug("request", "api", c.API, "operation", op.ID, "method", method, "url", target)
	}
	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		if debug.IsEnabled(ctx) {
			slog.Debug("request failed", "method", method, "url", target, "error", err)
		}
		return nil, &NetworkError{Method: method, URL: target, Err: err}
	}
	respBody, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, &NetworkError{Method: method, URL: target, Err: fmt.Errorf("read response: %w", err)}
	}
	if debug.IsEnabled(ctx) {
		slog.Debug("request complete", "method", method, "url", target, "status", resp.StatusCode, "duration", time.Since(start))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, Classify(method, target, resp.StatusCode, respBody)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
		Data:       decodeBody(respBody),
	}, nil
}

// decodeBody never fails: unparsable payloads come back as the raw string.
func decodeBody(body []byte) any {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return string(body)
	}
	return v
}

func (c *Client) suggest(id string) []string {
	if id == "" {
		return nil
	}
	matches := fuzzy.Find(id, c.Table.IDs())
	var out []string
	for i, m := range matches {
		if i == 3 {
			break
		}
		out = append(out, m.Str)
	}
	return out
}
