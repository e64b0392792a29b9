// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/olivia-legal/olivia/pkg/types"
)

// fingerprintInput is the canonical content hashed into the cache key. Only
// fields that change what the upstreams would return belong here; the derived
// strategy label is deliberately excluded because it adds no entropy beyond
// the text it was computed from.
type fingerprintInput struct {
	Requester  string   `json:"requester"`
	Text       string   `json:"text"`
	PostalCode string   `json:"postal_code"`
	DateFrom   string   `json:"date_from"`
	DateTo     string   `json:"date_to"`
	PageSize   int      `json:"page_size"`
	Services   []string `json:"services"`
}

// Fingerprint returns the stable cache key for a normalized query issued by
// one requester against one set of services. Identical requester + query +
// service set always hash identically; that is the at-most-one-fresh-copy
// guarantee.
func Fingerprint(requester string, query types.Query, serviceSet []string) string {
	services := append([]string(nil), serviceSet...)
	sort.Strings(services)

	in := fingerprintInput{
		Requester:  requester,
		Text:       query.Text,
		PostalCode: query.PostalCode,
		DateFrom:   formatDate(query.DateFrom),
		DateTo:     formatDate(query.DateTo),
		PageSize:   query.PageSize,
		Services:   services,
	}

	// Marshal of a flat struct is deterministic: fixed field order, no maps.
	data, _ := json.Marshal(in)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
