// Package github is the shared HTTP layer: one connection pool for the
// public release feed and baseline files, plus an authenticated view of it
// for the GitHub Actions REST API.
package github

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/Cloudsky01/gh-buildtrigger/pkg/models"
)

const (
	APIVersion      = "2022-11-28"
	acceptMediaType = "application/vnd.github+json"

	// DefaultMaxConnsPerHost bounds concurrent connections to one server
	DefaultMaxConnsPerHost = 16
)

// Options configures NewClient. Zero values fall back to defaults.
type Options struct {
	// WorkflowBaseURL is the repository's actions API root, ending in a slash
	WorkflowBaseURL string
	AccessToken     string
	UserAgent       string
	MaxConnsPerHost int
	// Timeout of zero leaves requests bounded only by their context
	Timeout time.Duration
}

// APIError is returned for any non-2xx response
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s returned status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// IsNotFound reports whether err is an APIError with status 404
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client is immutable after construction and safe for concurrent use
type Client struct {
	baseURL   *url.URL
	userAgent string
	public    *http.Client
	api       *http.Client
}

func NewClient(opts Options) (*Client, error) {
	baseURL, err := url.Parse(opts.WorkflowBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid workflow base URL %q: %w", opts.WorkflowBaseURL, err)
	}

	maxConns := opts.MaxConnsPerHost
	if maxConns <= 0 {
		maxConns = DefaultMaxConnsPerHost
	}

	transport := &http.Transport{
		Proxy:               nil,
		MaxConnsPerHost:     maxConns,
		MaxIdleConnsPerHost: maxConns,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	// Both clients share the transport, so they share one connection pool.
	// Only the API client carries the token.
	var apiTransport http.RoundTripper = transport
	if opts.AccessToken != "" {
		apiTransport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{
				AccessToken: opts.AccessToken,
				TokenType:   "Bearer",
			}),
			Base: transport,
		}
	}

	return &Client{
		baseURL:   baseURL,
		userAgent: opts.UserAgent,
		public:    &http.Client{Transport: transport, Timeout: opts.Timeout},
		api:       &http.Client{Transport: apiTransport, Timeout: opts.Timeout},
	}, nil
}

// UserAgent builds the identifying header value sent with every request
func UserAgent(product, version, contact string) string {
	if contact == "" {
		return fmt.Sprintf("%s/%s", product, version)
	}
	return fmt.Sprintf("%s/%s (+mailto:%s)", product, version, contact)
}

// GetStream fetches a public resource. The caller must close the body.
func (c *Client) GetStream(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", rawURL, err)
	}
	c.decorate(req)

	resp, err := c.send(c.public, req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// GetString fetches a public resource as text
func (c *Client) GetString(ctx context.Context, rawURL string) (string, error) {
	body, err := c.GetStream(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("reading response from %s: %w", rawURL, err)
	}
	return string(data), nil
}

// ListRunsOptions filters the workflow runs listing
type ListRunsOptions struct {
	// Workflow restricts the listing to one workflow file; empty lists all
	// runs in the repository
	Workflow string
	Status   string
	PerPage  int
	Page     int
}

func (o ListRunsOptions) path() string {
	query := url.Values{}
	if o.Status != "" {
		query.Set("status", o.Status)
	}
	if o.PerPage > 0 {
		query.Set("per_page", strconv.Itoa(o.PerPage))
	}
	if o.Page > 0 {
		query.Set("page", strconv.Itoa(o.Page))
	}

	p := "runs"
	if o.Workflow != "" {
		p = "workflows/" + url.PathEscape(o.Workflow) + "/runs"
	}
	if encoded := query.Encode(); encoded != "" {
		p += "?" + encoded
	}
	return p
}

// ListWorkflowRuns fetches one page of runs, newest first as ordered by GitHub
func (c *Client) ListWorkflowRuns(ctx context.Context, opts ListRunsOptions) (*models.WorkflowRunList, error) {
	resp, err := c.sendAPIRequest(ctx, http.MethodGet, opts.path(), nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var list models.WorkflowRunList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to parse workflow runs: %w", err)
	}
	return &list, nil
}

// DispatchWorkflow starts a workflow_dispatch run. GitHub answers 204 with no body.
func (c *Client) DispatchWorkflow(ctx context.Context, workflow string, body []byte) error {
	path := "workflows/" + url.PathEscape(workflow) + "/dispatches"
	resp, err := c.sendAPIRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

func (c *Client) sendAPIRequest(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("invalid API path %q: %w", path, err)
	}
	target := c.baseURL.ResolveReference(ref).String()

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request %s %s: %w", method, target, err)
	}
	c.decorate(req)
	req.Header.Set("Accept", acceptMediaType)
	req.Header.Set("X-GitHub-Api-Version", APIVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	return c.send(c.api, req)
}

func (c *Client) decorate(req *http.Request) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

func (c *Client) send(hc *http.Client, req *http.Request) (*http.Response, error) {
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", req.Method, req.URL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{
			Method:     req.Method,
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Body:       string(bytes.TrimSpace(respBody)),
		}
	}

	return resp, nil
}
