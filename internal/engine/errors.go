// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError reports a malformed request. It is raised before any
// network I/O and is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Reason)
}

// TotalFailure reports that every enabled service failed. The aggregate is
// still returned alongside it so the caller sees each service's reason; it is
// never written to the cache.
type TotalFailure struct {
	Failures map[string]string
}

func (e *TotalFailure) Error() string {
	services := make([]string, 0, len(e.Failures))
	for service := range e.Failures {
		services = append(services, service)
	}
	sort.Strings(services)

	parts := make([]string, 0, len(services))
	for _, service := range services {
		parts = append(parts, service+": "+e.Failures[service])
	}
	return "all services failed: " + strings.Join(parts, "; ")
}
