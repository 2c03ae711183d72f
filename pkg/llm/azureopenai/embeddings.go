package azureopenai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v2"

	"github.com/tagus/enterprise-agents/pkg/logging"
	"github.com/tagus/enterprise-agents/pkg/retry"
)

// EmbeddingClient implements interfaces.Embedder on an Azure embedding deployment
type EmbeddingClient struct {
	client        openai.Client
	deployment    string
	dimensions    int
	maxBatchSize  int
	logger        logging.Logger
	retryExecutor *retry.Executor
}

// EmbeddingOption configures an EmbeddingClient
type EmbeddingOption func(*embeddingConfig)

type embeddingConfig struct {
	apiVersion   string
	dimensions   int
	maxBatchSize int
	timeout      time.Duration
	httpClient   *http.Client
	logger       logging.Logger
	retry        []retry.Option
}

// WithEmbeddingAPIVersion sets the API version
func WithEmbeddingAPIVersion(v string) EmbeddingOption {
	return func(c *embeddingConfig) { c.apiVersion = v }
}

// WithDimensions sets the output vector size
func WithDimensions(n int) EmbeddingOption {
	return func(c *embeddingConfig) { c.dimensions = n }
}

// WithMaxBatchSize caps the number of inputs per request
func WithMaxBatchSize(n int) EmbeddingOption {
	return func(c *embeddingConfig) { c.maxBatchSize = n }
}

// WithEmbeddingLogger sets the logger
func WithEmbeddingLogger(logger logging.Logger) EmbeddingOption {
	return func(c *embeddingConfig) { c.logger = logger }
}

// WithEmbeddingHTTPClient replaces the transport
func WithEmbeddingHTTPClient(client *http.Client) EmbeddingOption {
	return func(c *embeddingConfig) { c.httpClient = client }
}

// WithEmbeddingRetry retries failed batches
func WithEmbeddingRetry(opts ...retry.Option) EmbeddingOption {
	return func(c *embeddingConfig) { c.retry = opts }
}

// NewEmbeddingClient creates an embedding client for a deployment
func NewEmbeddingClient(apiKey, baseURL, deployment string, options ...EmbeddingOption) *EmbeddingClient {
	cfg := &embeddingConfig{
		apiVersion:   "2024-02-01",
		dimensions:   1536,
		maxBatchSize: 4,
		logger:       logging.New(),
	}
	for _, opt := range options {
		opt(cfg)
	}
	if cfg.maxBatchSize < 1 {
		cfg.maxBatchSize = 1
	}

	e := &EmbeddingClient{
		client:       openai.NewClient(requestOptions(apiKey, baseURL, deployment, cfg.apiVersion, cfg.timeout, cfg.httpClient)...),
		deployment:   deployment,
		dimensions:   cfg.dimensions,
		maxBatchSize: cfg.maxBatchSize,
		logger:       cfg.logger,
	}
	if cfg.retry != nil {
		e.retryExecutor = retry.NewExecutor(retry.NewPolicy(cfg.retry...),
			retry.WithLogger(cfg.logger), retry.WithRetryIf(isRetryable))
	}
	return e
}

// Embed embeds a single text
func (e *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in requests of at most maxBatchSize inputs,
// preserving input order
func (e *EmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.maxBatchSize {
		end := start + e.maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := e.embedOnce(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (e *EmbeddingClient) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.deployment),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	}
	if e.dimensions > 0 {
		params.Dimensions = openai.Int(int64(e.dimensions))
	}

	var resp *openai.CreateEmbeddingResponse
	operation := func() error {
		var err error
		resp, err = e.client.Embeddings.New(ctx, params)
		if err != nil {
			e.logger.Error(ctx, "Error from Azure OpenAI embeddings", map[string]interface{}{
				"error":      err.Error(),
				"deployment": e.deployment,
				"inputs":     len(texts),
			})
			return fmt.Errorf("failed to embed texts: %w", err)
		}
		return nil
	}

	var err error
	if e.retryExecutor != nil {
		err = e.retryExecutor.Execute(ctx, operation)
	} else {
		err = operation()
	}
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(texts))
	for i, d := range resp.Data {
		idx := int(d.Index)
		if idx < 0 || idx >= len(texts) {
			idx = i
		}
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		vectors[idx] = vec
	}
	return vectors, nil
}
