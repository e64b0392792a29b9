// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/olivia-legal/olivia/internal/httpx"
	"github.com/olivia-legal/olivia/internal/oauth"
	"github.com/olivia-legal/olivia/pkg/types"
)

// LegifranceAdapter queries the Légifrance legislation search API. The
// upstream expects a JSON POST body; the search itself is read-only, so the
// POST is marked safe to retry.
type LegifranceAdapter struct {
	BaseURL string
	Client  *httpx.Client
	Tokens  *oauth.Cache
}

func (a *LegifranceAdapter) Name() string { return Legifrance }

type legifranceSearchBody struct {
	Fond      string             `json:"fond"`
	Recherche legifranceCriteria `json:"recherche"`
}

type legifranceCriteria struct {
	Texte      string             `json:"texte"`
	PageNumero int                `json:"pageNumero"`
	PageTaille int                `json:"pageTaille"`
	Filtres    []legifranceFilter `json:"filtres,omitempty"`
}

type legifranceFilter struct {
	Facette string          `json:"facette"`
	Dates   legifranceDates `json:"dates"`
}

type legifranceDates struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

type legifranceResponse struct {
	TotalResultNumber int `json:"totalResultNumber"`
	Results           []struct {
		Titles []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"titles"`
		Date   string `json:"date"`
		Nature string `json:"nature"`
		Text   string `json:"text"`
	} `json:"results"`
}

// Search runs the legislation query and normalizes the results.
func (a *LegifranceAdapter) Search(ctx context.Context, query types.Query) ([]types.ResultItem, error) {
	body := legifranceSearchBody{
		Fond: "ALL",
		Recherche: legifranceCriteria{
			Texte:      buildQueryText(query),
			PageNumero: 1,
			PageTaille: query.PageSize,
		},
	}
	if !query.DateFrom.IsZero() || !query.DateTo.IsZero() {
		dates := legifranceDates{}
		if !query.DateFrom.IsZero() {
			dates.Start = query.DateFrom.Format("2006-01-02")
		}
		if !query.DateTo.IsZero() {
			dates.End = query.DateTo.Format("2006-01-02")
		}
		body.Recherche.Filtres = []legifranceFilter{{Facette: "DATE_SIGNATURE", Dates: dates}}
	}

	resp, err := doAuthorized(ctx, a.Client, a.Tokens, Legifrance, func(string) httpx.Request {
		return httpx.Request{
			Method:         http.MethodPost,
			URL:            a.BaseURL + "/search",
			JSONBody:       body,
			IdempotentPOST: true,
		}
	})
	if err != nil {
		return nil, err
	}
	if err := checkSearchStatus(Legifrance, resp); err != nil {
		return nil, err
	}

	var payload legifranceResponse
	if err := resp.Decode(&payload); err != nil {
		return nil, fmt.Errorf("parsing legifrance response: %w", err)
	}

	items := make([]types.ResultItem, 0, len(payload.Results))
	for _, r := range payload.Results {
		var id, title string
		if len(r.Titles) > 0 {
			id, title = r.Titles[0].ID, r.Titles[0].Title
		}
		items = append(items, types.ResultItem{
			ID:           orUnknown(id),
			Title:        orUnknown(title),
			Date:         orUnknown(r.Date),
			Jurisdiction: orUnknown(r.Nature),
			Summary:      orUnknown(httpx.Snippet(r.Text)),
			SourceRef:    sourceRef(Legifrance, id),
		})
	}
	return items, nil
}

// buildQueryText joins the analyzer keywords, falling back to the normalized
// description when extraction produced nothing usable.
func buildQueryText(query types.Query) string {
	if len(query.Keywords) > 0 {
		return strings.Join(query.Keywords, " ")
	}
	return query.Text
}

func sourceRef(service, id string) string {
	if id == "" {
		return service + ":" + types.UnknownField
	}
	return service + ":" + id
}
