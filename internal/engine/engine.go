// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package engine orchestrates one logical search: it validates the request,
// consults the persistent cache, fans the query out to every enabled service
// adapter concurrently, and assembles the partial results into one aggregate.
// A failing adapter never aborts the others; cache trouble degrades to a
// fresh fan-out, never to a hard error.
package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/olivia-legal/olivia/internal/analyze"
	"github.com/olivia-legal/olivia/internal/httpx"
	"github.com/olivia-legal/olivia/internal/services"
	"github.com/olivia-legal/olivia/pkg/types"
)

const anonymousRequester = "anonymous"

// ResultCache is the persistence port the engine degrades around. A nil
// cache disables persistence entirely.
type ResultCache interface {
	Get(ctx context.Context, requester, fingerprint string) (*types.Aggregate, bool, error)
	Put(ctx context.Context, requester, fingerprint string, query types.Query, agg *types.Aggregate) error
}

// Engine owns the orchestration of multi-source searches. Construct it with
// New at process start; there are no package-level instances.
type Engine struct {
	cfg      types.EngineConfig
	registry *services.Registry
	store    ResultCache
	enabled  map[string]bool
	log      *zap.Logger
	validate *validator.Validate

	// now is swapped by tests.
	now func() time.Time
}

// New builds the orchestrator. enabled maps service id to its feature flag;
// a service missing from the map counts as disabled.
func New(cfg types.EngineConfig, registry *services.Registry, store ResultCache,
	enabled map[string]bool, log *zap.Logger) *Engine {

	if log == nil {
		log = zap.NewNop()
	}
	if cfg.ExecuteTimeout <= 0 {
		cfg.ExecuteTimeout = 30 * time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	return &Engine{
		cfg:      cfg,
		registry: registry,
		store:    store,
		enabled:  enabled,
		log:      log,
		validate: validator.New(),
		now:      time.Now,
	}
}

// Execute runs one orchestrated search. The returned aggregate is always
// populated except on validation failure; when every enabled service fails,
// it is returned together with a *TotalFailure so the caller still sees each
// service's reason.
func (e *Engine) Execute(ctx context.Context, req types.SearchRequest) (*types.Aggregate, error) {
	req.Description = strings.TrimSpace(req.Description)
	if req.RequesterID == "" {
		req.RequesterID = anonymousRequester
	}
	if err := e.validateRequest(req); err != nil {
		return nil, err
	}

	analysis := analyze.Analyze(req.Description)
	query := types.Query{
		Text:       analyze.Normalize(req.Description),
		Keywords:   analysis.Keywords,
		Strategy:   analysis.Strategy,
		PostalCode: req.PostalCode,
		DateFrom:   req.DateFrom,
		DateTo:     req.DateTo,
		PageSize:   req.PageSize,
	}
	if query.PageSize <= 0 {
		query.PageSize = e.cfg.PageSize
	}

	selected := e.selectServices(req.IncludeServices)
	fingerprint := Fingerprint(req.RequesterID, query, selected)

	if cached := e.cacheLookup(ctx, req.RequesterID, fingerprint); cached != nil {
		return cached, nil
	}

	agg := e.fanOut(ctx, query, selected)
	agg.Strategy = analysis.Strategy
	agg.Estimation = analyze.Estimate(analysis.Categories)
	agg.Fingerprint = fingerprint
	agg.Timestamp = e.now().UTC()

	attempted, succeeded := 0, agg.SucceededCount()
	failures := make(map[string]string)
	for _, sr := range agg.Services {
		if sr.Status == types.StatusSkipped {
			continue
		}
		attempted++
		if !sr.Succeeded() {
			failures[sr.Service] = sr.ErrorDetail
		}
	}
	agg.Partial = succeeded > 0 && len(failures) > 0

	if succeeded > 0 {
		e.cacheStore(ctx, req.RequesterID, fingerprint, query, agg)
	}

	if attempted > 0 && succeeded == 0 {
		// Deliberately uncached: a transient total outage must not poison
		// the cache for a whole TTL window.
		return agg, &TotalFailure{Failures: failures}
	}
	return agg, nil
}

func (e *Engine) validateRequest(req types.SearchRequest) error {
	err := e.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		first := verrs[0]
		return &ValidationError{
			Field:  first.Field(),
			Reason: "failed " + first.Tag() + " constraint",
		}
	}
	return &ValidationError{Field: "request", Reason: err.Error()}
}

// selectServices resolves the requested subset against the registry, in
// fixed priority order. Empty means every registered service.
func (e *Engine) selectServices(include []string) []string {
	if len(include) == 0 {
		return e.registry.Names()
	}
	requested := make(map[string]bool, len(include))
	for _, name := range include {
		requested[name] = true
	}
	var selected []string
	for _, name := range e.registry.Names() {
		if requested[name] {
			selected = append(selected, name)
		}
	}
	return selected
}

func (e *Engine) cacheLookup(ctx context.Context, requester, fingerprint string) *types.Aggregate {
	if e.store == nil {
		return nil
	}
	agg, found, err := e.store.Get(ctx, requester, fingerprint)
	if err != nil {
		// Cache trouble degrades to a fresh fan-out.
		e.log.Warn("cache lookup failed, computing fresh", zap.Error(err))
		return nil
	}
	if !found {
		return nil
	}
	agg.FromCache = true
	return agg
}

func (e *Engine) cacheStore(ctx context.Context, requester, fingerprint string, query types.Query, agg *types.Aggregate) {
	if e.store == nil {
		return
	}
	if err := e.store.Put(ctx, requester, fingerprint, query, agg); err != nil {
		e.log.Warn("cache write failed, result served uncached", zap.Error(err))
	}
}

// fanOut queries every selected adapter concurrently and assembles the
// results in priority order regardless of completion order.
func (e *Engine) fanOut(parent context.Context, query types.Query, selected []string) *types.Aggregate {
	ctx, cancel := context.WithTimeout(parent, e.cfg.ExecuteTimeout)
	defer cancel()

	results := make([]types.ServiceResult, len(selected))
	g, gctx := errgroup.WithContext(ctx)

	for i, name := range selected {
		adapter := e.registry.Get(name)
		if adapter == nil || !e.enabled[name] {
			results[i] = types.ServiceResult{
				Service:     name,
				Status:      types.StatusSkipped,
				ErrorDetail: "service disabled or not configured",
			}
			continue
		}

		i, name := i, name
		g.Go(func() error {
			start := e.now()
			items, err := adapter.Search(gctx, query)
			elapsed := e.now().Sub(start)

			switch {
			case err == nil:
				results[i] = types.ServiceResult{
					Service:  name,
					Status:   types.StatusSuccess,
					Items:    items,
					Duration: elapsed,
				}
			case errors.Is(err, context.DeadlineExceeded) || errors.Is(gctx.Err(), context.DeadlineExceeded):
				results[i] = types.ServiceResult{
					Service:     name,
					Status:      types.StatusTimeout,
					ErrorDetail: "deadline exceeded after " + elapsed.Round(time.Millisecond).String(),
					Duration:    elapsed,
				}
			default:
				e.log.Warn("service search failed",
					zap.String("service", name), zap.Error(err))
				results[i] = types.ServiceResult{
					Service:     name,
					Status:      types.StatusError,
					ErrorDetail: httpx.Snippet(err.Error()),
					Duration:    elapsed,
				}
			}
			// Failures are isolated into their ServiceResult; never abort
			// the sibling searches.
			return nil
		})
	}
	g.Wait()

	agg := &types.Aggregate{
		Query:    query,
		Services: results,
		Counts:   make(map[string]int, len(results)),
	}
	for _, sr := range results {
		agg.Counts[sr.Service] = len(sr.Items)
	}
	return agg
}
