// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/olivia-legal/olivia/internal/httpx"
	"github.com/olivia-legal/olivia/internal/oauth"
	"github.com/olivia-legal/olivia/pkg/types"
)

// JudilibreAdapter queries the Judilibre case-law search API. The upstream
// answers either a flat results array or a JSON:API data/attributes
// envelope depending on the deployment; both are accepted.
type JudilibreAdapter struct {
	BaseURL string
	Client  *httpx.Client
	Tokens  *oauth.Cache
}

func (a *JudilibreAdapter) Name() string { return Judilibre }

type judilibreDecision struct {
	ID           string `json:"id"`
	Number       string `json:"number"`
	Jurisdiction string `json:"jurisdiction"`
	Chamber      string `json:"chamber"`
	DecisionDate string `json:"decision_date"`
	Summary      string `json:"summary"`
}

type judilibreResponse struct {
	Total   int                 `json:"total"`
	Results []judilibreDecision `json:"results"`
	Data    []struct {
		ID         string            `json:"id"`
		Attributes judilibreDecision `json:"attributes"`
	} `json:"data"`
}

// Search runs the case-law query and normalizes the decisions.
func (a *JudilibreAdapter) Search(ctx context.Context, query types.Query) ([]types.ResultItem, error) {
	params := url.Values{
		"query":     {buildQueryText(query)},
		"page_size": {strconv.Itoa(query.PageSize)},
	}
	if !query.DateFrom.IsZero() {
		params.Set("date_start", query.DateFrom.Format("2006-01-02"))
	}
	if !query.DateTo.IsZero() {
		params.Set("date_end", query.DateTo.Format("2006-01-02"))
	}

	resp, err := doAuthorized(ctx, a.Client, a.Tokens, Judilibre, func(string) httpx.Request {
		return httpx.Request{
			Method: http.MethodGet,
			URL:    a.BaseURL + "/search",
			Query:  params,
		}
	})
	if err != nil {
		return nil, err
	}
	if err := checkSearchStatus(Judilibre, resp); err != nil {
		return nil, err
	}

	var payload judilibreResponse
	if err := resp.Decode(&payload); err != nil {
		return nil, fmt.Errorf("parsing judilibre response: %w", err)
	}

	decisions := payload.Results
	for _, d := range payload.Data {
		attr := d.Attributes
		if attr.ID == "" {
			attr.ID = d.ID
		}
		decisions = append(decisions, attr)
	}

	items := make([]types.ResultItem, 0, len(decisions))
	for _, d := range decisions {
		title := d.Number
		if title == "" {
			title = d.ID
		}
		items = append(items, types.ResultItem{
			ID:           orUnknown(d.ID),
			Title:        orUnknown(title),
			Date:         orUnknown(d.DecisionDate),
			Jurisdiction: orUnknown(jurisdictionLabel(d.Jurisdiction, d.Chamber)),
			Summary:      orUnknown(httpx.Snippet(d.Summary)),
			SourceRef:    sourceRef(Judilibre, d.ID),
		})
	}
	return items, nil
}

func jurisdictionLabel(jurisdiction, chamber string) string {
	switch {
	case jurisdiction == "":
		return ""
	case chamber == "":
		return jurisdiction
	default:
		return jurisdiction + "/" + chamber
	}
}
