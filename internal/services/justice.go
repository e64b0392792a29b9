// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/olivia-legal/olivia/internal/httpx"
	"github.com/olivia-legal/olivia/internal/oauth"
	"github.com/olivia-legal/olivia/pkg/types"
)

// JusticeAdapter queries the court-locator directory. Without a postal code
// the directory search is meaningless, so the adapter reports that upfront
// instead of issuing a request the upstream would reject.
type JusticeAdapter struct {
	BaseURL string
	Client  *httpx.Client
	Tokens  *oauth.Cache
}

func (a *JusticeAdapter) Name() string { return Justice }

type justiceResponse struct {
	Lieux []struct {
		ID        string `json:"id"`
		Titre     string `json:"titre"`
		Type      string `json:"type"`
		Adresse   string `json:"adresse"`
		Ville     string `json:"ville"`
		Telephone string `json:"telephone"`
	} `json:"lieux"`
}

// Search locates courts and legal-aid offices near the query's postal code.
func (a *JusticeAdapter) Search(ctx context.Context, query types.Query) ([]types.ResultItem, error) {
	if query.PostalCode == "" {
		return nil, fmt.Errorf("court locator requires a postal code")
	}

	resp, err := doAuthorized(ctx, a.Client, a.Tokens, Justice, func(string) httpx.Request {
		return httpx.Request{
			Method: http.MethodGet,
			URL:    a.BaseURL + "/lieux",
			Query:  url.Values{"code_postal": {query.PostalCode}},
		}
	})
	if err != nil {
		return nil, err
	}
	if err := checkSearchStatus(Justice, resp); err != nil {
		return nil, err
	}

	var payload justiceResponse
	if err := resp.Decode(&payload); err != nil {
		return nil, fmt.Errorf("parsing justice response: %w", err)
	}

	items := make([]types.ResultItem, 0, len(payload.Lieux))
	for _, l := range payload.Lieux {
		var addr []string
		for _, part := range []string{l.Adresse, l.Ville, l.Telephone} {
			if part != "" {
				addr = append(addr, part)
			}
		}
		items = append(items, types.ResultItem{
			ID:           orUnknown(l.ID),
			Title:        orUnknown(l.Titre),
			Date:         types.UnknownField, // directory entries carry no date
			Jurisdiction: orUnknown(l.Type),
			Summary:      orUnknown(strings.Join(addr, ", ")),
			SourceRef:    sourceRef(Justice, l.ID),
		})
	}
	return items, nil
}
