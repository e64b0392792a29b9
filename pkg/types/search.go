// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the olivia search engine.
package types

import "time"

// SearchRequest is the inbound surface consumed by the CLI or API layer.
// Validation happens before any network call: Description must be non-empty
// after trimming and PostalCode, when present, must be exactly five digits.
type SearchRequest struct {
	// Description is the free-text account of the incident.
	Description string `json:"description" validate:"required"`

	// IncludeServices restricts the fan-out to the named services. Empty
	// means every enabled service.
	IncludeServices []string `json:"include_services,omitempty" validate:"dive,oneof=legifrance judilibre justice"`

	// PostalCode filters the court locator to one area.
	PostalCode string `json:"postal_code,omitempty" validate:"omitempty,len=5,numeric"`

	// DateFrom and DateTo bound the publication or decision date.
	DateFrom time.Time `json:"date_from,omitempty"`
	DateTo   time.Time `json:"date_to,omitempty"`

	// PageSize overrides the configured per-service result count.
	PageSize int `json:"page_size,omitempty" validate:"omitempty,min=1,max=100"`

	// RequesterID namespaces the cache. Defaults to "anonymous".
	RequesterID string `json:"requester_id,omitempty"`
}

// Query is the normalized form of a SearchRequest handed to adapters. Two
// requests with the same requester and semantically identical content
// normalize to the same Query and therefore the same cache fingerprint.
type Query struct {
	// Text is the description with whitespace collapsed and lowercased.
	Text string `json:"text"`

	// Keywords are the analyzer's extracted terms, used to build the
	// service-specific query strings.
	Keywords []string `json:"keywords,omitempty"`

	// Strategy is the detected legal domain (informational only, not part
	// of the cache fingerprint).
	Strategy string `json:"strategy,omitempty"`

	PostalCode string    `json:"postal_code,omitempty"`
	DateFrom   time.Time `json:"date_from,omitempty"`
	DateTo     time.Time `json:"date_to,omitempty"`
	PageSize   int       `json:"page_size"`
}

// UnknownField is the sentinel stored in a ResultItem field the upstream did
// not provide. Fields are never silently omitted so downstream consumers see
// a stable schema.
const UnknownField = "unknown"

// ResultItem is the common shape every adapter normalizes its upstream
// payload into.
type ResultItem struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Date         string `json:"date"`
	Jurisdiction string `json:"jurisdiction"`
	Summary      string `json:"summary"`
	SourceRef    string `json:"source_ref"`
}

// ServiceStatus tags the outcome of one adapter within one orchestrated call.
type ServiceStatus string

const (
	StatusSuccess ServiceStatus = "success"
	StatusError   ServiceStatus = "error"
	StatusSkipped ServiceStatus = "skipped"
	StatusTimeout ServiceStatus = "timeout"
)

// ServiceResult is one adapter's outcome. Exactly one of Items or ErrorDetail
// is meaningful, selected by Status.
type ServiceResult struct {
	Service     string        `json:"service"`
	Status      ServiceStatus `json:"status"`
	Items       []ResultItem  `json:"items,omitempty"`
	ErrorDetail string        `json:"error_detail,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Succeeded reports whether the adapter returned usable data.
func (r ServiceResult) Succeeded() bool { return r.Status == StatusSuccess }

// Aggregate is the unified response for one orchestrated search.
type Aggregate struct {
	Query    Query  `json:"query"`
	Strategy string `json:"strategy,omitempty"`

	// Services holds one result per enabled adapter, in fixed priority
	// order regardless of completion order.
	Services []ServiceResult `json:"services"`

	// Counts maps service id to the number of normalized items returned.
	Counts map[string]int `json:"counts"`

	// Estimation carries the static compensation ranges derived from the
	// detected prejudice categories, when any were detected.
	Estimation *Estimation `json:"estimation,omitempty"`

	// Partial is true when at least one adapter failed while others
	// succeeded.
	Partial bool `json:"partial"`

	// FromCache is true when the aggregate was served from the persistent
	// cache rather than a fresh fan-out.
	FromCache bool `json:"from_cache"`

	Fingerprint string    `json:"fingerprint"`
	Timestamp   time.Time `json:"timestamp"`
}

// FailedServices returns the ids of adapters that ended in error or timeout.
func (a *Aggregate) FailedServices() []string {
	var failed []string
	for _, sr := range a.Services {
		if sr.Status == StatusError || sr.Status == StatusTimeout {
			failed = append(failed, sr.Service)
		}
	}
	return failed
}

// SucceededCount returns how many adapters produced usable data.
func (a *Aggregate) SucceededCount() int {
	n := 0
	for _, sr := range a.Services {
		if sr.Succeeded() {
			n++
		}
	}
	return n
}
