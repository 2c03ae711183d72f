package azureopenai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"github.com/tagus/enterprise-agents/pkg/interfaces"
	"github.com/tagus/enterprise-agents/pkg/logging"
	"github.com/tagus/enterprise-agents/pkg/multitenancy"
	"github.com/tagus/enterprise-agents/pkg/retry"
)

// DefaultAPIVersion supports json_schema response formats
const DefaultAPIVersion = "2024-08-01-preview"

// AzureOpenAIClient implements interfaces.LLM for an Azure OpenAI chat deployment
type AzureOpenAIClient struct {
	ChatService openai.ChatService

	apiKey        string
	baseURL       string
	apiVersion    string
	deployment    string
	temperature   float64
	maxTokens     int
	timeout       time.Duration
	httpClient    *http.Client
	logger        logging.Logger
	retryExecutor *retry.Executor
}

// Option represents an option for configuring the Azure OpenAI client
type Option func(*AzureOpenAIClient)

// WithAPIVersion sets the API version for the Azure OpenAI client
func WithAPIVersion(apiVersion string) Option {
	return func(c *AzureOpenAIClient) {
		c.apiVersion = apiVersion
	}
}

// WithLogger sets the logger for the Azure OpenAI client
func WithLogger(logger logging.Logger) Option {
	return func(c *AzureOpenAIClient) {
		c.logger = logger
	}
}

// WithRetry configures retry policy for the client
func WithRetry(opts ...retry.Option) Option {
	return func(c *AzureOpenAIClient) {
		c.retryExecutor = retry.NewExecutor(retry.NewPolicy(opts...),
			retry.WithLogger(c.logger), retry.WithRetryIf(isRetryable))
	}
}

// WithTemperature sets the default sampling temperature
func WithTemperature(temperature float64) Option {
	return func(c *AzureOpenAIClient) {
		c.temperature = temperature
	}
}

// WithMaxTokens sets the default completion cap
func WithMaxTokens(maxTokens int) Option {
	return func(c *AzureOpenAIClient) {
		c.maxTokens = maxTokens
	}
}

// WithTimeout bounds each request
func WithTimeout(timeout time.Duration) Option {
	return func(c *AzureOpenAIClient) {
		c.timeout = timeout
	}
}

// WithHTTPClient replaces the transport, mostly for tests
func WithHTTPClient(client *http.Client) Option {
	return func(c *AzureOpenAIClient) {
		c.httpClient = client
	}
}

// requestOptions builds the SDK options that point at a deployment URL
func requestOptions(apiKey, baseURL, deployment, apiVersion string, timeout time.Duration, httpClient *http.Client) []option.RequestOption {
	azureURL := fmt.Sprintf("%s/openai/deployments/%s", strings.TrimSuffix(baseURL, "/"), deployment)
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHeader("api-key", apiKey),
		option.WithBaseURL(azureURL),
	}
	if apiVersion != "" {
		opts = append(opts, option.WithQuery("api-version", apiVersion))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return opts
}

// NewClient creates a new Azure OpenAI chat client. baseURL is the resource
// endpoint, e.g. https://my-resource.openai.azure.com
func NewClient(apiKey, baseURL, deployment string, options ...Option) *AzureOpenAIClient {
	client := &AzureOpenAIClient{
		apiKey:      apiKey,
		baseURL:     baseURL,
		deployment:  deployment,
		apiVersion:  DefaultAPIVersion,
		temperature: 0.15,
		maxTokens:   2000,
		logger:      logging.New(),
	}

	for _, option := range options {
		option(client)
	}

	client.ChatService = openai.NewChatService(requestOptions(
		client.apiKey, client.baseURL, client.deployment, client.apiVersion, client.timeout, client.httpClient)...)

	return client
}

// Generate generates text from a prompt
func (c *AzureOpenAIClient) Generate(ctx context.Context, prompt string, options ...interfaces.GenerateOption) (string, error) {
	response, err := c.GenerateDetailed(ctx, prompt, options...)
	if err != nil {
		return "", err
	}
	return response.Content, nil
}

func (c *AzureOpenAIClient) resolveOptions(options []interfaces.GenerateOption) *interfaces.GenerateOptions {
	params := &interfaces.GenerateOptions{
		LLMConfig: &interfaces.LLMConfig{
			Temperature: c.temperature,
			MaxTokens:   c.maxTokens,
		},
	}
	for _, option := range options {
		if option != nil {
			option(params)
		}
	}
	return params
}

func (c *AzureOpenAIClient) buildRequest(ctx context.Context, prompt string, params *interfaces.GenerateOptions) openai.ChatCompletionNewParams {
	req := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.deployment),
		Messages: buildMessages(prompt, params),
	}

	if params.LLMConfig != nil {
		req.Temperature = openai.Float(params.LLMConfig.Temperature)
		if params.LLMConfig.MaxTokens > 0 {
			req.MaxTokens = openai.Int(int64(params.LLMConfig.MaxTokens))
		}
	}

	if params.ResponseFormat != nil {
		req.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				Type: "json_schema",
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   params.ResponseFormat.Name,
					Schema: map[string]interface{}(params.ResponseFormat.Schema),
				},
			},
		}
	}

	if orgID, err := multitenancy.GetOrgID(ctx); err == nil {
		req.User = openai.String(orgID)
	}
	return req
}

func (c *AzureOpenAIClient) execute(ctx context.Context, operation func() error) error {
	if c.retryExecutor != nil {
		return c.retryExecutor.Execute(ctx, operation)
	}
	return operation()
}

// GenerateDetailed generates text and returns usage metadata
func (c *AzureOpenAIClient) GenerateDetailed(ctx context.Context, prompt string, options ...interfaces.GenerateOption) (*interfaces.LLMResponse, error) {
	params := c.resolveOptions(options)
	req := c.buildRequest(ctx, prompt, params)

	var resp *openai.ChatCompletion
	operation := func() error {
		c.logger.Debug(ctx, "Executing Azure OpenAI API request", map[string]interface{}{
			"deployment":      c.deployment,
			"messages":        len(req.Messages),
			"images":          len(params.Images),
			"response_format": params.ResponseFormat != nil,
		})

		var err error
		resp, err = c.ChatService.Completions.New(ctx, req)
		if err != nil {
			c.logger.Error(ctx, "Error from Azure OpenAI API", map[string]interface{}{
				"error":      err.Error(),
				"deployment": c.deployment,
			})
			return classifyError("generate", fmt.Errorf("failed to generate text: %w", err))
		}
		return nil
	}

	if err := c.execute(ctx, operation); err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	choice := resp.Choices[0]
	if choice.FinishReason == "content_filter" && choice.Message.Content == "" {
		return nil, fmt.Errorf("completion withheld: %w", ErrContentFiltered)
	}

	return &interfaces.LLMResponse{
		Content:    choice.Message.Content,
		Model:      resp.Model,
		StopReason: string(choice.FinishReason),
		Usage: &interfaces.TokenUsage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
		Metadata: map[string]interface{}{
			"provider":   "azure_openai",
			"deployment": c.deployment,
		},
	}, nil
}

// Name implements interfaces.LLM.Name
func (c *AzureOpenAIClient) Name() string {
	return "azure-openai"
}

// Deployment returns the deployment this client targets
func (c *AzureOpenAIClient) Deployment() string {
	return c.deployment
}
