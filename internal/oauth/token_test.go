// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package oauth

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olivia-legal/olivia/internal/httpx"
	"github.com/olivia-legal/olivia/pkg/types"
)

func testHTTPClient() *httpx.Client {
	return httpx.New(
		types.HTTPConfig{Timeout: 5 * time.Second},
		types.RetryConfig{MaxRetries: 1, BaseDelay: time.Millisecond},
		nil,
	)
}

func tokenServer(t *testing.T, calls *int32, expiresIn int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(calls, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"Bearer","expires_in":%d}`, n, expiresIn)
	}))
}

func TestTokenCachedWithinValidityWindow(t *testing.T) {
	var calls int32
	ts := tokenServer(t, &calls, 3600)
	defer ts.Close()

	cache := NewCache(testHTTPClient(), time.Minute, nil)
	cache.Register(Credentials{
		ServiceID: "legifrance", ClientID: "id", ClientSecret: "secret", TokenURL: ts.URL,
	})

	tok1, err := cache.Token(context.Background(), "legifrance")
	require.NoError(t, err)
	tok2, err := cache.Token(context.Background(), "legifrance")
	require.NoError(t, err)

	assert.Equal(t, tok1, tok2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "second call must reuse the cached token")
}

func TestTokenRefreshedInsideSafetyMargin(t *testing.T) {
	var calls int32
	// Advertised lifetime 90s with a 60s margin leaves a 30s window.
	ts := tokenServer(t, &calls, 90)
	defer ts.Close()

	cache := NewCache(testHTTPClient(), time.Minute, nil)
	cache.Register(Credentials{
		ServiceID: "judilibre", ClientID: "id", ClientSecret: "secret", TokenURL: ts.URL,
	})

	base := time.Now()
	cache.now = func() time.Time { return base }

	tok1, err := cache.Token(context.Background(), "judilibre")
	require.NoError(t, err)

	// 31 seconds later the token is inside the margin and must be replaced.
	cache.now = func() time.Time { return base.Add(31 * time.Second) }
	tok2, err := cache.Token(context.Background(), "judilibre")
	require.NoError(t, err)

	assert.NotEqual(t, tok1, tok2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestConcurrentCallersShareOneExchange(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(30 * time.Millisecond) // widen the race window
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"shared","expires_in":3600}`))
	}))
	defer ts.Close()

	cache := NewCache(testHTTPClient(), time.Minute, nil)
	cache.Register(Credentials{
		ServiceID: "legifrance", ClientID: "id", ClientSecret: "secret", TokenURL: ts.URL,
	})

	var wg sync.WaitGroup
	tokens := make([]string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := cache.Token(context.Background(), "legifrance")
			assert.NoError(t, err)
			tokens[i] = tok
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "refresh must be single-flight per service")
	for _, tok := range tokens {
		assert.Equal(t, "shared", tok)
	}
}

func TestTokenBasicAuthStyle(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "my-id", user)
		assert.Equal(t, "my-secret", pass)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
	}))
	defer ts.Close()

	cache := NewCache(testHTTPClient(), 0, nil)
	cache.Register(Credentials{
		ServiceID: "legifrance", ClientID: "my-id", ClientSecret: "my-secret", TokenURL: ts.URL,
	})

	_, err := cache.Token(context.Background(), "legifrance")
	require.NoError(t, err)
}

func TestTokenBodyAuthStyle(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "my-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "my-secret", r.PostForm.Get("client_secret"))
		assert.Equal(t, "openid", r.PostForm.Get("scope"))
		_, _, hasBasic := r.BasicAuth()
		assert.False(t, hasBasic)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
	}))
	defer ts.Close()

	cache := NewCache(testHTTPClient(), 0, nil)
	cache.Register(Credentials{
		ServiceID: "justice", ClientID: "my-id", ClientSecret: "my-secret",
		TokenURL: ts.URL, Scope: "openid", AuthStyle: types.AuthStyleBody,
	})

	_, err := cache.Token(context.Background(), "justice")
	require.NoError(t, err)
}

func TestTokenConfigErrors(t *testing.T) {
	cache := NewCache(testHTTPClient(), 0, nil)

	_, err := cache.Token(context.Background(), "unknown")
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "unknown", ce.Service)

	cache.Register(Credentials{ServiceID: "legifrance", TokenURL: "http://127.0.0.1:1/token"})
	_, err = cache.Token(context.Background(), "legifrance")
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Reason, "credentials")
}

func TestTokenExchangeErrorCarriesBoundedDetail(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer ts.Close()

	cache := NewCache(testHTTPClient(), 0, nil)
	cache.Register(Credentials{
		ServiceID: "judilibre", ClientID: "id", ClientSecret: "bad", TokenURL: ts.URL,
	})

	_, err := cache.Token(context.Background(), "judilibre")
	var ee *ExchangeError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, http.StatusBadRequest, ee.Status)
	assert.Contains(t, ee.Detail, "invalid_client")
}

func TestInvalidateForcesRefresh(t *testing.T) {
	var calls int32
	ts := tokenServer(t, &calls, 3600)
	defer ts.Close()

	cache := NewCache(testHTTPClient(), time.Minute, nil)
	cache.Register(Credentials{
		ServiceID: "legifrance", ClientID: "id", ClientSecret: "secret", TokenURL: ts.URL,
	})

	tok1, err := cache.Token(context.Background(), "legifrance")
	require.NoError(t, err)

	cache.Invalidate("legifrance")

	tok2, err := cache.Token(context.Background(), "legifrance")
	require.NoError(t, err)
	assert.NotEqual(t, tok1, tok2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "<empty>", Redact(""))
	assert.Equal(t, "••••", Redact("short"))
	redacted := Redact("abcd1234efgh5678")
	assert.Equal(t, "abcd…5678", redacted)
	assert.NotContains(t, redacted, "1234efgh")
}

// Basic-Auth headers must never leak into the form body.
func TestExchangeBodyOmitsSecretsWithBasicAuth(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Empty(t, r.PostForm.Get("client_secret"))
		auth := r.Header.Get("Authorization")
		want := "Basic " + base64.StdEncoding.EncodeToString([]byte("id:secret"))
		assert.Equal(t, want, auth)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
	}))
	defer ts.Close()

	cache := NewCache(testHTTPClient(), 0, nil)
	cache.Register(Credentials{ServiceID: "s", ClientID: "id", ClientSecret: "secret", TokenURL: ts.URL})
	_, err := cache.Token(context.Background(), "s")
	require.NoError(t, err)
}
