// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httpx provides the shared resilient HTTP client: one retry policy
// with exponential backoff and jitter, Retry-After compliance on HTTP 429,
// and bounded outbound concurrency. Every component that talks to an
// upstream (token exchange included) goes through this package.
package httpx

import (
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/olivia-legal/olivia/pkg/types"
)

// retryAfterFloor is the minimum wait honored for a 429 response, even when
// the upstream asks for less.
const retryAfterFloor = time.Second

// Policy is the single retry policy shared by all call sites. The zero value
// is not usable; build one with PolicyFrom.
type Policy struct {
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffFactor     float64
	JitterFactor      float64
	RetryableStatuses map[int]struct{}
}

// defaultRetryableStatuses lists the transient HTTP statuses worth retrying.
var defaultRetryableStatuses = []int{
	http.StatusRequestTimeout,  // 408
	http.StatusTooEarly,        // 425
	http.StatusTooManyRequests, // 429
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// PolicyFrom builds a Policy from configuration, filling in defaults for
// unset fields.
func PolicyFrom(cfg types.RetryConfig) Policy {
	p := Policy{
		MaxRetries:    cfg.MaxRetries,
		BaseDelay:     cfg.BaseDelay,
		MaxDelay:      cfg.MaxDelay,
		BackoffFactor: cfg.BackoffFactor,
		JitterFactor:  cfg.JitterFactor,
	}
	if p.MaxRetries <= 0 {
		p.MaxRetries = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.BackoffFactor <= 1 {
		p.BackoffFactor = 2.0
	}
	if p.JitterFactor <= 0 || p.JitterFactor > 1 {
		p.JitterFactor = 0.1
	}
	p.RetryableStatuses = make(map[int]struct{}, len(defaultRetryableStatuses))
	for _, s := range defaultRetryableStatuses {
		p.RetryableStatuses[s] = struct{}{}
	}
	return p
}

// Retryable reports whether the status is in the transient set.
func (p Policy) Retryable(status int) bool {
	_, ok := p.RetryableStatuses[status]
	return ok
}

// delay returns the backoff duration before retry number attempt (0-based),
// growing exponentially from BaseDelay, capped at MaxDelay, with jitter.
func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(p.BackoffFactor, float64(attempt))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.JitterFactor > 0 {
		d += d * p.JitterFactor * rand.Float64()
	}
	return time.Duration(d)
}

// parseRetryAfter interprets a Retry-After header value, which is either an
// integer number of seconds or an HTTP-date. The returned wait is never below
// retryAfterFloor. The second return is false when the header is absent or
// unparseable, in which case the caller falls back to its backoff curve.
func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		d := time.Duration(secs) * time.Second
		if d < retryAfterFloor {
			d = retryAfterFloor
		}
		return d, true
	}
	if t, err := http.ParseTime(value); err == nil {
		d := t.Sub(now)
		if d < retryAfterFloor {
			d = retryAfterFloor
		}
		return d, true
	}
	return 0, false
}
