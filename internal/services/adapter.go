// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package services holds the per-upstream search adapters. Each adapter maps
// the generic normalized query onto one service's request shape, resolves its
// token, and normalizes the upstream payload into the common result-item
// schema. New upstreams are added by implementing Adapter and registering it;
// the orchestrator never special-cases service names.
package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/olivia-legal/olivia/internal/httpx"
	"github.com/olivia-legal/olivia/internal/oauth"
	"github.com/olivia-legal/olivia/pkg/types"
)

// Service ids. Priority fixes the assembly order of aggregated results,
// independent of fan-out completion order.
const (
	Legifrance = "legifrance"
	Judilibre  = "judilibre"
	Justice    = "justice"
)

// Priority is the fixed assembly order for aggregated results.
var Priority = []string{Legifrance, Judilibre, Justice}

// Adapter searches a single upstream legal data service.
type Adapter interface {
	Name() string
	Search(ctx context.Context, query types.Query) ([]types.ResultItem, error)
}

// Registry maps service id to adapter.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

// Register adds or replaces an adapter.
func (r *Registry) Register(a Adapter) { r.adapters[a.Name()] = a }

// Get returns the adapter for the service id, or nil.
func (r *Registry) Get(name string) Adapter { return r.adapters[name] }

// Names returns the registered service ids in priority order, then any
// extras in map order.
func (r *Registry) Names() []string {
	var names []string
	seen := make(map[string]bool)
	for _, id := range Priority {
		if _, ok := r.adapters[id]; ok {
			names = append(names, id)
			seen[id] = true
		}
	}
	for id := range r.adapters {
		if !seen[id] {
			names = append(names, id)
		}
	}
	return names
}

// doAuthorized resolves the service token, issues the request with a Bearer
// header, and on a 401 invalidates the cached token and retries exactly once
// with a fresh one. That absorbs token-expiry races; a second 401 is a
// terminal failure for this call.
func doAuthorized(ctx context.Context, client *httpx.Client, tokens *oauth.Cache,
	service string, build func(token string) httpx.Request) (*httpx.Response, error) {

	for attempt := 0; ; attempt++ {
		tok, err := tokens.Token(ctx, service)
		if err != nil {
			return nil, err
		}

		req := build(tok)
		if req.Header == nil {
			req.Header = http.Header{}
		}
		req.Header.Set("Authorization", "Bearer "+tok)

		resp, err := client.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.Status == http.StatusUnauthorized && attempt == 0 {
			tokens.Invalidate(service)
			continue
		}
		return resp, nil
	}
}

// checkSearchStatus converts a non-2xx search response into an error with
// bounded upstream detail.
func checkSearchStatus(service string, resp *httpx.Response) error {
	if resp.Status >= 200 && resp.Status <= 299 {
		return nil
	}
	return fmt.Errorf("%s search returned HTTP %d: %s", service, resp.Status, resp.Snippet())
}

// orUnknown substitutes the sentinel for fields the upstream did not
// provide, keeping the normalized schema stable for downstream consumers.
func orUnknown(s string) string {
	if s == "" {
		return types.UnknownField
	}
	return s
}
