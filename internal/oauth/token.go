// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package oauth maintains OAuth2 client-credentials tokens for the external
// legal data services. One token is cached per service and refreshed inside a
// per-service critical section, so concurrent callers never race duplicate
// exchanges against the token endpoint.
package oauth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/olivia-legal/olivia/internal/httpx"
	"github.com/olivia-legal/olivia/pkg/types"
)

// defaultSafetyMargin is subtracted from a token's advertised lifetime so a
// token is never handed out with less remaining validity than an in-flight
// request needs.
const defaultSafetyMargin = 60 * time.Second

// defaultExpiresIn is assumed when the token endpoint omits expires_in.
const defaultExpiresIn = 3600

// ConfigError reports missing credentials or endpoint configuration. It is a
// configuration problem, never retried.
type ConfigError struct {
	Service string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("oauth config for %q: %s", e.Service, e.Reason)
}

// ExchangeError reports that the token endpoint rejected the exchange or was
// unreachable after retries. Detail is bounded; it never contains secrets.
type ExchangeError struct {
	Service string
	Status  int
	Detail  string
	Err     error
}

func (e *ExchangeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oauth exchange for %q: %v", e.Service, e.Err)
	}
	return fmt.Sprintf("oauth exchange for %q: HTTP %d: %s", e.Service, e.Status, e.Detail)
}

func (e *ExchangeError) Unwrap() error { return e.Err }

// Credentials configures the client-credentials grant for one service.
// Immutable after registration.
type Credentials struct {
	ServiceID    string
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scope        string
	AuthStyle    types.AuthStyle
}

type token struct {
	value     string
	expiresAt time.Time
}

type entry struct {
	mu    sync.Mutex
	creds Credentials
	tok   token
}

// Cache stores one token per registered service.
type Cache struct {
	client       *httpx.Client
	safetyMargin time.Duration
	log          *zap.Logger
	now          func() time.Time

	mu       sync.RWMutex
	services map[string]*entry
}

// NewCache builds a token cache on top of the shared resilient client. A
// safetyMargin of zero selects the 60s default.
func NewCache(client *httpx.Client, safetyMargin time.Duration, log *zap.Logger) *Cache {
	if safetyMargin <= 0 {
		safetyMargin = defaultSafetyMargin
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{
		client:       client,
		safetyMargin: safetyMargin,
		log:          log,
		now:          time.Now,
		services:     make(map[string]*entry),
	}
}

// Register adds a service's credentials. Registering the same service again
// replaces its credentials and drops any cached token.
func (c *Cache) Register(creds Credentials) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[creds.ServiceID] = &entry{creds: creds}
}

func (c *Cache) lookup(serviceID string) *entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.services[serviceID]
}

// Token returns a valid access token for the service, exchanging client
// credentials when the cached token is absent or inside the safety margin.
// Callers arriving during a refresh block on the per-service lock and share
// the refreshed token rather than issuing their own exchange.
func (c *Cache) Token(ctx context.Context, serviceID string) (string, error) {
	e := c.lookup(serviceID)
	if e == nil {
		return "", &ConfigError{Service: serviceID, Reason: "service not registered"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.tok.value != "" && c.now().Before(e.tok.expiresAt) {
		return e.tok.value, nil
	}

	tok, err := c.exchange(ctx, e.creds)
	if err != nil {
		return "", err
	}
	e.tok = tok
	return tok.value, nil
}

// Invalidate drops the cached token for the service. Adapters call this once
// on a 401 before retrying with a fresh token.
func (c *Cache) Invalidate(serviceID string) {
	e := c.lookup(serviceID)
	if e == nil {
		return
	}
	e.mu.Lock()
	e.tok = token{}
	e.mu.Unlock()
}

func (c *Cache) exchange(ctx context.Context, creds Credentials) (token, error) {
	if creds.TokenURL == "" {
		return token{}, &ConfigError{Service: creds.ServiceID, Reason: "token endpoint not configured"}
	}
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return token{}, &ConfigError{Service: creds.ServiceID, Reason: "client credentials not configured"}
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	if creds.Scope != "" {
		form.Set("scope", creds.Scope)
	}

	req := httpx.Request{
		Method:         http.MethodPost,
		URL:            creds.TokenURL,
		FormBody:       form,
		IdempotentPOST: true, // a duplicate exchange only mints another token
	}
	if creds.AuthStyle == types.AuthStyleBody {
		form.Set("client_id", creds.ClientID)
		form.Set("client_secret", creds.ClientSecret)
	} else {
		req.BasicUser = creds.ClientID
		req.BasicPass = creds.ClientSecret
	}

	start := c.now()
	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return token{}, &ExchangeError{Service: creds.ServiceID, Err: err}
	}
	if resp.Status < 200 || resp.Status > 299 {
		return token{}, &ExchangeError{
			Service: creds.ServiceID,
			Status:  resp.Status,
			Detail:  resp.Snippet(),
		}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := resp.Decode(&payload); err != nil {
		return token{}, &ExchangeError{Service: creds.ServiceID, Status: resp.Status,
			Detail: "token response was not valid JSON"}
	}
	if payload.AccessToken == "" {
		return token{}, &ExchangeError{Service: creds.ServiceID, Status: resp.Status,
			Detail: "token response missing access_token"}
	}
	if payload.ExpiresIn <= 0 {
		payload.ExpiresIn = defaultExpiresIn
	}

	expiresAt := start.Add(time.Duration(payload.ExpiresIn)*time.Second - c.safetyMargin)
	c.log.Debug("obtained access token",
		zap.String("service", creds.ServiceID),
		zap.Int("expires_in", payload.ExpiresIn))

	return token{value: payload.AccessToken, expiresAt: expiresAt}, nil
}

// Redact renders a token for logs and CLI output without revealing it.
func Redact(tok string) string {
	if tok == "" {
		return "<empty>"
	}
	if len(tok) <= 8 {
		return "••••"
	}
	return tok[:4] + "…" + tok[len(tok)-4:]
}
