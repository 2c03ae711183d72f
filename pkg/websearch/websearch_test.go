package websearch_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagus/enterprise-agents/pkg/logging"
	"github.com/tagus/enterprise-agents/pkg/multitenancy"
	"github.com/tagus/enterprise-agents/pkg/websearch"
)

func TestSearch(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("Ocp-Apim-Subscription-Key"))
		assert.Equal(t, "hragent", r.Header.Get("X-Organization-ID"))

		q := r.URL.Query()
		assert.Equal(t, "dubai holidays", q.Get("q"))
		assert.Equal(t, "3", q.Get("count"))
		assert.Equal(t, "0", q.Get("offset"))
		assert.Equal(t, "true", q.Get("textDecorations"))
		assert.Equal(t, "HTML", q.Get("textFormat"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"webPages": map[string]interface{}{
				"value": []map[string]interface{}{
					{"name": "Public Holidays", "url": "https://example.com/1", "snippet": "The <b>Eid</b> holiday starts"},
					{"name": "No snippet", "url": "https://example.com/2"},
				},
			},
		})
	}))
	defer server.Close()

	client := websearch.New("test-key",
		websearch.WithSearchURL(server.URL),
		websearch.WithCount(3),
		websearch.WithLogger(logging.NewNoop()),
	)
	ctx := multitenancy.WithOrgID(context.Background(), "hragent")

	docs, err := client.Documents(ctx, "dubai holidays")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t,
		"On the website titled: 'Public Holidays' (URL 'https://example.com/1'), the following information was found: 'The **Eid** holiday starts'.",
		docs[0].Content)
	assert.Equal(t, websearch.ContextTypeWeb, docs[0].Metadata["context_type"])
	assert.Equal(t, "https://example.com/1", docs[0].Metadata["URL"])

	// second call is served from the cache
	_, err = client.Search(ctx, "dubai holidays")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSearchQuotaExceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Quota Exceeded", http.StatusForbidden)
	}))
	defer server.Close()

	client := websearch.New("k", websearch.WithSearchURL(server.URL), websearch.WithLogger(logging.NewNoop()))
	results, err := client.Search(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := websearch.New("k", websearch.WithSearchURL(server.URL), websearch.WithLogger(logging.NewNoop()))

	_, err := client.Search(context.Background(), "anything")
	assert.ErrorContains(t, err, "status code 500")

	_, err = client.Search(context.Background(), "  ")
	assert.Error(t, err)
}

func TestSearchCacheEviction(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"webPages":{"value":[]}}`))
	}))
	defer server.Close()
	ctx := context.Background()

	t.Run("size", func(t *testing.T) {
		atomic.StoreInt32(&calls, 0)
		client := websearch.New("k", websearch.WithSearchURL(server.URL), websearch.WithCache(2, time.Hour), websearch.WithLogger(logging.NewNoop()))
		for _, q := range []string{"a", "b", "c", "a"} {
			_, err := client.Search(ctx, q)
			require.NoError(t, err)
		}
		// "a" was evicted by "c"
		assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
		_, err := client.Search(ctx, "c")
		require.NoError(t, err)
		assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
	})

	t.Run("ttl", func(t *testing.T) {
		atomic.StoreInt32(&calls, 0)
		client := websearch.New("k", websearch.WithSearchURL(server.URL), websearch.WithCache(10, 20*time.Millisecond), websearch.WithLogger(logging.NewNoop()))
		_, err := client.Search(ctx, "a")
		require.NoError(t, err)
		time.Sleep(50 * time.Millisecond)
		_, err = client.Search(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})
}
