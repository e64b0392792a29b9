// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olivia-legal/olivia/internal/httpx"
	"github.com/olivia-legal/olivia/internal/oauth"
	"github.com/olivia-legal/olivia/pkg/types"
)

// testStack wires a client and token cache against a stub token endpoint.
func testStack(t *testing.T, service string, exchanges *int32) (*httpx.Client, *oauth.Cache) {
	t.Helper()
	client := httpx.New(
		types.HTTPConfig{Timeout: 5 * time.Second},
		types.RetryConfig{MaxRetries: 1, BaseDelay: time.Millisecond},
		nil,
	)
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := atomic.AddInt32(exchanges, 1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok-%d","expires_in":3600}`, n)
	}))
	t.Cleanup(tokenSrv.Close)

	tokens := oauth.NewCache(client, time.Minute, nil)
	tokens.Register(oauth.Credentials{
		ServiceID: service, ClientID: "id", ClientSecret: "secret", TokenURL: tokenSrv.URL,
	})
	return client, tokens
}

func testQuery() types.Query {
	return types.Query{
		Text:     "accident de la route fracture",
		Keywords: []string{"accident", "route", "fracture"},
		PageSize: 10,
	}
}

func TestLegifranceSearchNormalizes(t *testing.T) {
	var exchanges int32
	client, tokens := testStack(t, Legifrance, &exchanges)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

		var body legifranceSearchBody
		require.NoError(t, readJSON(r, &body))
		assert.Equal(t, "accident route fracture", body.Recherche.Texte)
		assert.Equal(t, 10, body.Recherche.PageTaille)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"totalResultNumber": 2,
			"results": [
				{"titles":[{"id":"LEGITEXT01","title":"Code civil art. 1240"}],"date":"2020-01-01","nature":"LOI","text":"Responsabilité du fait personnel"},
				{"titles":[{"id":"LEGITEXT02","title":"Code assurances L211-1"}]}
			]
		}`))
	}))
	defer srv.Close()

	adapter := &LegifranceAdapter{BaseURL: srv.URL, Client: client, Tokens: tokens}
	items, err := adapter.Search(context.Background(), testQuery())
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "LEGITEXT01", items[0].ID)
	assert.Equal(t, "Code civil art. 1240", items[0].Title)
	assert.Equal(t, "2020-01-01", items[0].Date)
	assert.Equal(t, "legifrance:LEGITEXT01", items[0].SourceRef)

	// Absent fields carry the sentinel, never an empty string.
	assert.Equal(t, types.UnknownField, items[1].Date)
	assert.Equal(t, types.UnknownField, items[1].Jurisdiction)
	assert.Equal(t, types.UnknownField, items[1].Summary)
}

func TestLegifranceDateFilters(t *testing.T) {
	var exchanges int32
	client, tokens := testStack(t, Legifrance, &exchanges)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body legifranceSearchBody
		require.NoError(t, readJSON(r, &body))
		require.Len(t, body.Recherche.Filtres, 1)
		assert.Equal(t, "2023-01-01", body.Recherche.Filtres[0].Dates.Start)
		assert.Equal(t, "2023-12-31", body.Recherche.Filtres[0].Dates.End)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	q := testQuery()
	q.DateFrom = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	q.DateTo = time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)

	adapter := &LegifranceAdapter{BaseURL: srv.URL, Client: client, Tokens: tokens}
	items, err := adapter.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestJudilibreSearchFlatResults(t *testing.T) {
	var exchanges int32
	client, tokens := testStack(t, Judilibre, &exchanges)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "accident route fracture", r.URL.Query().Get("query"))
		assert.Equal(t, "10", r.URL.Query().Get("page_size"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"total": 1,
			"results": [
				{"id":"JURI01","number":"21-12.345","jurisdiction":"Cour de cassation","chamber":"civ2","decision_date":"2022-06-09","summary":"Indemnisation du préjudice corporel"}
			]
		}`))
	}))
	defer srv.Close()

	adapter := &JudilibreAdapter{BaseURL: srv.URL, Client: client, Tokens: tokens}
	items, err := adapter.Search(context.Background(), testQuery())
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, "JURI01", items[0].ID)
	assert.Equal(t, "21-12.345", items[0].Title)
	assert.Equal(t, "Cour de cassation/civ2", items[0].Jurisdiction)
	assert.Equal(t, "judilibre:JURI01", items[0].SourceRef)
}

func TestJudilibreSearchJSONAPIEnvelope(t *testing.T) {
	var exchanges int32
	client, tokens := testStack(t, Judilibre, &exchanges)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.api+json")
		w.Write([]byte(`{
			"data": [
				{"id":"JURI02","attributes":{"number":"20-99.111","jurisdiction":"CA Paris","decision_date":"2021-03-15","summary":"Faute inexcusable de l'employeur"}}
			]
		}`))
	}))
	defer srv.Close()

	adapter := &JudilibreAdapter{BaseURL: srv.URL, Client: client, Tokens: tokens}
	items, err := adapter.Search(context.Background(), testQuery())
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, "JURI02", items[0].ID)
	assert.Equal(t, "20-99.111", items[0].Title)
	assert.Equal(t, "CA Paris", items[0].Jurisdiction)
}

func TestJusticeSearchRequiresPostalCode(t *testing.T) {
	var exchanges int32
	client, tokens := testStack(t, Justice, &exchanges)

	adapter := &JusticeAdapter{BaseURL: "http://unused.invalid", Client: client, Tokens: tokens}
	_, err := adapter.Search(context.Background(), testQuery())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postal code")
	assert.Equal(t, int32(0), atomic.LoadInt32(&exchanges), "no network before validation")
}

func TestJusticeSearchNormalizes(t *testing.T) {
	var exchanges int32
	client, tokens := testStack(t, Justice, &exchanges)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/lieux", r.URL.Path)
		assert.Equal(t, "75001", r.URL.Query().Get("code_postal"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"lieux": [
				{"id":"TJ75","titre":"Tribunal judiciaire de Paris","type":"tribunal_judiciaire","adresse":"Parvis du Tribunal","ville":"Paris","telephone":"0144325151"}
			]
		}`))
	}))
	defer srv.Close()

	q := testQuery()
	q.PostalCode = "75001"

	adapter := &JusticeAdapter{BaseURL: srv.URL, Client: client, Tokens: tokens}
	items, err := adapter.Search(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, "Tribunal judiciaire de Paris", items[0].Title)
	assert.Equal(t, "tribunal_judiciaire", items[0].Jurisdiction)
	assert.Equal(t, types.UnknownField, items[0].Date)
	assert.Contains(t, items[0].Summary, "Paris")
}

func TestDoAuthorizedRetriesOnceAfter401(t *testing.T) {
	var exchanges, searches int32
	client, tokens := testStack(t, Judilibre, &exchanges)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&searches, 1) == 1 {
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "Bearer tok-2", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	adapter := &JudilibreAdapter{BaseURL: srv.URL, Client: client, Tokens: tokens}
	_, err := adapter.Search(context.Background(), testQuery())
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&searches))
	assert.Equal(t, int32(2), atomic.LoadInt32(&exchanges), "401 must force one fresh exchange")
}

func TestDoAuthorizedSecond401IsTerminal(t *testing.T) {
	var exchanges, searches int32
	client, tokens := testStack(t, Judilibre, &exchanges)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&searches, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	adapter := &JudilibreAdapter{BaseURL: srv.URL, Client: client, Tokens: tokens}
	_, err := adapter.Search(context.Background(), testQuery())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401")
	assert.Equal(t, int32(2), atomic.LoadInt32(&searches), "exactly one re-auth retry")
}

func TestRegistryNamesPriorityOrder(t *testing.T) {
	r := NewRegistry(
		&JusticeAdapter{},
		&LegifranceAdapter{},
		&JudilibreAdapter{},
	)
	assert.Equal(t, []string{Legifrance, Judilibre, Justice}, r.Names())
	assert.NotNil(t, r.Get(Judilibre))
	assert.Nil(t, r.Get("unknown"))
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
