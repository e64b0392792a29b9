// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/olivia-legal/olivia/pkg/types"
)

// snippetLimit bounds how much of an upstream body is carried in errors and
// logs.
const snippetLimit = 250

// maxBodyBytes bounds how much of a response body is read into memory.
const maxBodyBytes = 4 << 20

// UpstreamError reports that a request exhausted its retries against
// transient failures, carrying the last observed status and a bounded body
// snippet.
type UpstreamError struct {
	URL      string
	Status   int
	Snippet  string
	Attempts int
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream unavailable after %d attempt(s): %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("upstream unavailable after %d attempt(s): HTTP %d: %s", e.Attempts, e.Status, e.Snippet)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Request describes one logical upstream call. Exactly one of JSONBody and
// FormBody may be set.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Query  url.Values

	// JSONBody is marshaled and sent as application/json.
	JSONBody any

	// FormBody is sent as application/x-www-form-urlencoded (token
	// exchanges).
	FormBody url.Values

	// BasicUser/BasicPass set HTTP Basic authentication when BasicUser is
	// non-empty.
	BasicUser string
	BasicPass string

	// IdempotentPOST marks a POST as safe to retry (token exchanges and
	// read-only search POSTs).
	IdempotentPOST bool
}

func (r Request) retryable() bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		return true
	default:
		return r.IdempotentPOST
	}
}

// Response is the structured envelope for an upstream reply. JSON holds the
// raw payload when the content type is JSON; anything else lands in RawText
// rather than being treated as an error, since several upstreams return
// unexpected content types on edge cases.
type Response struct {
	Status      int
	Header      http.Header
	ContentType string
	JSON        json.RawMessage
	RawText     string
}

// IsJSON reports whether the body was recognized as JSON.
func (r *Response) IsJSON() bool { return r.JSON != nil }

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if r.JSON == nil {
		return fmt.Errorf("response is not JSON (content type %q)", r.ContentType)
	}
	return json.Unmarshal(r.JSON, v)
}

// Snippet returns a bounded excerpt of the body for error messages.
func (r *Response) Snippet() string {
	body := r.RawText
	if r.JSON != nil {
		body = string(r.JSON)
	}
	return Snippet(body)
}

// Snippet truncates s to the shared bound used in errors and logs.
func Snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > snippetLimit {
		return s[:snippetLimit-1] + "…"
	}
	return s
}

// Client executes upstream requests with retry, backoff, 429 compliance, and
// bounded concurrency: a process-wide cap plus a per-host cap. A single
// Client is shared by every adapter and the token exchange.
type Client struct {
	http      *http.Client
	policy    Policy
	userAgent string
	log       *zap.Logger

	global       *semaphore.Weighted
	perHostLimit int64
	mu           sync.Mutex
	perHost      map[string]*semaphore.Weighted

	// sleep is swapped by tests to observe backoff decisions without
	// real waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a Client from configuration. A nil logger disables logging.
func New(cfg types.HTTPConfig, retry types.RetryConfig, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	maxConcurrent := int64(cfg.MaxConcurrent)
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	perHost := int64(cfg.PerHostLimit)
	if perHost <= 0 {
		perHost = 5
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		http:         &http.Client{Timeout: timeout},
		policy:       PolicyFrom(retry),
		userAgent:    cfg.UserAgent,
		log:          log,
		global:       semaphore.NewWeighted(maxConcurrent),
		perHostLimit: perHost,
		perHost:      make(map[string]*semaphore.Weighted),
		sleep:        sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func (c *Client) hostSemaphore(host string) *semaphore.Weighted {
	c.mu.Lock()
	defer c.mu.Unlock()
	sem, ok := c.perHost[host]
	if !ok {
		sem = semaphore.NewWeighted(c.perHostLimit)
		c.perHost[host] = sem
	}
	return sem
}

// Do executes the request, retrying transient failures per the policy. A
// non-retryable status (401, 404, ...) is returned as a Response, not an
// error; the caller owns that decision. Exhausted retries produce an
// *UpstreamError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing request URL: %w", err)
	}

	maxRetries := 0
	if req.retryable() {
		maxRetries = c.policy.MaxRetries
	}

	var lastResp *Response
	var lastErr error

	for attempt := 0; ; attempt++ {
		resp, err := c.attempt(ctx, req, u.Host)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr, lastResp = err, nil
		} else if !c.policy.Retryable(resp.Status) {
			return resp, nil
		} else {
			lastResp, lastErr = resp, nil
		}

		if attempt >= maxRetries {
			break
		}

		wait := c.policy.delay(attempt)
		if lastResp != nil && lastResp.Status == http.StatusTooManyRequests {
			// 429 waits exactly what the upstream asked for.
			if d, ok := parseRetryAfter(lastResp.Header.Get("Retry-After"), time.Now()); ok {
				wait = d
			}
		}
		c.log.Debug("retrying upstream request",
			zap.String("url", req.URL),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait))
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	if lastResp != nil {
		return nil, &UpstreamError{
			URL:      req.URL,
			Status:   lastResp.Status,
			Snippet:  lastResp.Snippet(),
			Attempts: maxRetries + 1,
		}
	}
	return nil, &UpstreamError{URL: req.URL, Attempts: maxRetries + 1, Err: lastErr}
}

// attempt performs one HTTP round trip under the concurrency limits.
func (c *Client) attempt(ctx context.Context, req Request, host string) (*Response, error) {
	if err := c.global.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.global.Release(1)

	hostSem := c.hostSemaphore(host)
	if err := hostSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer hostSem.Release(1)

	httpReq, err := c.build(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	out := &Response{
		Status:      resp.StatusCode,
		Header:      resp.Header,
		ContentType: resp.Header.Get("Content-Type"),
	}
	if isJSONContentType(out.ContentType) {
		out.JSON = json.RawMessage(body)
	} else {
		out.RawText = string(body)
	}
	return out, nil
}

// build constructs a fresh *http.Request. Bodies are rebuilt per attempt so
// retries never reuse a consumed reader.
func (c *Client) build(ctx context.Context, req Request) (*http.Request, error) {
	rawURL := req.URL
	if len(req.Query) > 0 {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		rawURL += sep + req.Query.Encode()
	}

	var body io.Reader
	contentType := ""
	switch {
	case req.FormBody != nil:
		body = strings.NewReader(req.FormBody.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.JSONBody != nil:
		data, err := json.Marshal(req.JSONBody)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if req.BasicUser != "" {
		httpReq.SetBasicAuth(req.BasicUser, req.BasicPass)
	}
	return httpReq, nil
}

func isJSONContentType(ct string) bool {
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mediaType == "application/json" ||
		strings.HasSuffix(mediaType, "+json")
}
