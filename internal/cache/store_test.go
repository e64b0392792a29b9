// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olivia-legal/olivia/pkg/types"
)

func testStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	s, err := Open(types.CacheConfig{
		Path: filepath.Join(t.TempDir(), "cache.db"),
		TTL:  ttl,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleAggregate(fingerprint string) *types.Aggregate {
	return &types.Aggregate{
		Query: types.Query{Text: "accident de la route", PageSize: 10},
		Services: []types.ServiceResult{
			{Service: "legifrance", Status: types.StatusSuccess, Items: []types.ResultItem{
				{ID: "LEGI01", Title: "Code civil", Date: "2020-01-01",
					Jurisdiction: "LOI", Summary: "extrait", SourceRef: "legifrance:LEGI01"},
			}},
		},
		Counts:      map[string]int{"legifrance": 1},
		Fingerprint: fingerprint,
		Timestamp:   time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestGetMissOnEmptyStore(t *testing.T) {
	s := testStore(t, time.Hour)
	_, found, err := s.Get(context.Background(), "anonymous", "fp1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPutThenGetRoundTrip(t *testing.T) {
	s := testStore(t, time.Hour)
	ctx := context.Background()
	agg := sampleAggregate("fp1")

	require.NoError(t, s.Put(ctx, "anonymous", "fp1", agg.Query, agg))

	got, found, err := s.Get(ctx, "anonymous", "fp1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, agg.Fingerprint, got.Fingerprint)
	assert.Equal(t, agg.Counts, got.Counts)
	require.Len(t, got.Services, 1)
	assert.Equal(t, agg.Services[0].Items, got.Services[0].Items)
}

func TestGetScopedByRequester(t *testing.T) {
	s := testStore(t, time.Hour)
	ctx := context.Background()
	agg := sampleAggregate("fp1")

	require.NoError(t, s.Put(ctx, "alice", "fp1", agg.Query, agg))

	_, found, err := s.Get(ctx, "bob", "fp1")
	require.NoError(t, err)
	assert.False(t, found, "cache entries are namespaced by requester")
}

func TestTTLExpiryIsAMiss(t *testing.T) {
	s := testStore(t, 30*time.Minute)
	ctx := context.Background()
	agg := sampleAggregate("fp1")

	base := time.Now()
	s.now = func() time.Time { return base }
	require.NoError(t, s.Put(ctx, "anonymous", "fp1", agg.Query, agg))

	s.now = func() time.Time { return base.Add(29 * time.Minute) }
	_, found, err := s.Get(ctx, "anonymous", "fp1")
	require.NoError(t, err)
	assert.True(t, found, "still fresh inside the TTL")

	s.now = func() time.Time { return base.Add(31 * time.Minute) }
	_, found, err = s.Get(ctx, "anonymous", "fp1")
	require.NoError(t, err)
	assert.False(t, found, "stale past the TTL")
}

func TestPutUpsertsOnConflict(t *testing.T) {
	s := testStore(t, time.Hour)
	ctx := context.Background()

	first := sampleAggregate("fp1")
	require.NoError(t, s.Put(ctx, "anonymous", "fp1", first.Query, first))

	second := sampleAggregate("fp1")
	second.Counts = map[string]int{"legifrance": 1, "judilibre": 3}
	require.NoError(t, s.Put(ctx, "anonymous", "fp1", second.Query, second))

	got, found, err := s.Get(ctx, "anonymous", "fp1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, second.Counts, got.Counts, "newest result supersedes the old row")

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Entries, "upsert must not duplicate rows")
}

func TestPurge(t *testing.T) {
	s := testStore(t, time.Hour)
	ctx := context.Background()
	agg := sampleAggregate("fp1")

	base := time.Now()
	s.now = func() time.Time { return base.Add(-2 * time.Hour) }
	require.NoError(t, s.Put(ctx, "anonymous", "old", agg.Query, agg))

	s.now = func() time.Time { return base }
	require.NoError(t, s.Put(ctx, "anonymous", "fresh", agg.Query, agg))

	removed, err := s.Purge(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Entries)
}

func TestStats(t *testing.T) {
	s := testStore(t, time.Hour)
	ctx := context.Background()
	agg := sampleAggregate("fp1")

	require.NoError(t, s.Put(ctx, "alice", "fp1", agg.Query, agg))
	require.NoError(t, s.Put(ctx, "bob", "fp1", agg.Query, agg))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Entries)
	assert.Equal(t, 2, st.Requesters)
	assert.NotEmpty(t, st.Oldest)
	assert.NotEmpty(t, st.Newest)
}
