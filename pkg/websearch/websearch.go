// Package websearch queries the Bing Web Search API and turns the hits into
// documents that can be graded like retrieved chunks.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/tagus/enterprise-agents/pkg/interfaces"
	"github.com/tagus/enterprise-agents/pkg/logging"
	"github.com/tagus/enterprise-agents/pkg/multitenancy"
)

const (
	DefaultURL   = "https://api.bing.microsoft.com/v7.0/search"
	DefaultCount = 10

	// ContextTypeWeb marks documents built from web results
	ContextTypeWeb = "web_search_result"

	DefaultCacheTTL  = time.Hour
	DefaultCacheSize = 512
)

// Result is one web page hit
type Result struct {
	Title   string
	Link    string
	Snippet string
}

// Client searches the web through Bing
type Client struct {
	subscriptionKey string
	searchURL       string
	count           int
	httpClient      *http.Client
	logger          logging.Logger

	cacheSize int
	cacheTTL  time.Duration
	cache     *expirable.LRU[string, []Result]
}

// Option represents an option for configuring the client
type Option func(*Client)

// WithHTTPClient sets the HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithSearchURL overrides the Bing endpoint
func WithSearchURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.searchURL = u
		}
	}
}

// WithCount sets the number of results requested
func WithCount(count int) Option {
	return func(c *Client) {
		if count > 0 {
			c.count = count
		}
	}
}

// WithCache bounds the result cache to size queries kept for ttl
func WithCache(size int, ttl time.Duration) Option {
	return func(c *Client) {
		if size > 0 {
			c.cacheSize = size
		}
		if ttl > 0 {
			c.cacheTTL = ttl
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Bing search client
func New(subscriptionKey string, options ...Option) *Client {
	c := &Client{
		subscriptionKey: subscriptionKey,
		searchURL:       DefaultURL,
		count:           DefaultCount,
		httpClient:      &http.Client{Timeout: 10 * time.Second},
		logger:          logging.New(),
		cacheSize:       DefaultCacheSize,
		cacheTTL:        DefaultCacheTTL,
	}
	for _, option := range options {
		option(c)
	}
	c.cache = expirable.NewLRU[string, []Result](c.cacheSize, nil, c.cacheTTL)
	return c
}

type bingResponse struct {
	WebPages struct {
		Value []struct {
			Name    string `json:"name"`
			URL     string `json:"url"`
			Snippet string `json:"snippet"`
		} `json:"value"`
	} `json:"webPages"`
}

// Search returns the web results for query. An exhausted subscription quota
// yields no results rather than an error.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is required")
	}

	if results, ok := c.cache.Get(query); ok {
		return results, nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(c.count))
	params.Set("offset", "0")
	params.Set("textDecorations", "true")
	params.Set("textFormat", "HTML")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.subscriptionKey)
	if orgID, err := multitenancy.GetOrgID(ctx); err == nil {
		req.Header.Set("X-Organization-ID", orgID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		c.logger.Warn(ctx, "Web search quota exceeded", map[string]interface{}{"status": resp.Status})
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned status code %d: %s", resp.StatusCode, resp.Status)
	}

	var body bingResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	results := make([]Result, 0, len(body.WebPages.Value))
	for _, v := range body.WebPages.Value {
		if v.Name == "" || v.URL == "" || v.Snippet == "" {
			continue
		}
		results = append(results, Result{
			Title:   plainText(v.Name),
			Link:    v.URL,
			Snippet: plainText(v.Snippet),
		})
	}

	c.cache.Add(query, results)

	return results, nil
}

// Documents searches and wraps each hit in a document
func (c *Client) Documents(ctx context.Context, query string) ([]interfaces.Document, error) {
	results, err := c.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	return ToDocuments(results), nil
}

// ToDocuments renders results the way the responders cite them
func ToDocuments(results []Result) []interfaces.Document {
	docs := make([]interfaces.Document, 0, len(results))
	for _, r := range results {
		docs = append(docs, interfaces.Document{
			Content: fmt.Sprintf("On the website titled: '%s' (URL '%s'), the following information was found: '%s'.", r.Title, r.Link, r.Snippet),
			Metadata: map[string]interface{}{
				"title":        r.Title,
				"URL":          r.Link,
				"snippet":      r.Snippet,
				"context_type": ContextTypeWeb,
			},
		})
	}
	return docs
}

// plainText converts Bing's decorated HTML into markdown text
func plainText(s string) string {
	out, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(out)
}
