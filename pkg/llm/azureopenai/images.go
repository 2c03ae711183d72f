package azureopenai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v2"

	"github.com/tagus/enterprise-agents/pkg/interfaces"
	"github.com/tagus/enterprise-agents/pkg/logging"
)

// ImageClient implements interfaces.ImageGenerator on a DALL-E deployment
type ImageClient struct {
	client     openai.Client
	deployment string
	logger     logging.Logger
}

// ImageOption configures an ImageClient
type ImageOption func(*imageConfig)

type imageConfig struct {
	apiVersion string
	timeout    time.Duration
	httpClient *http.Client
	logger     logging.Logger
}

// WithImageAPIVersion sets the API version
func WithImageAPIVersion(v string) ImageOption {
	return func(c *imageConfig) { c.apiVersion = v }
}

// WithImageLogger sets the logger
func WithImageLogger(logger logging.Logger) ImageOption {
	return func(c *imageConfig) { c.logger = logger }
}

// WithImageHTTPClient replaces the transport
func WithImageHTTPClient(client *http.Client) ImageOption {
	return func(c *imageConfig) { c.httpClient = client }
}

// NewImageClient creates an image generation client
func NewImageClient(apiKey, baseURL, deployment string, options ...ImageOption) *ImageClient {
	cfg := &imageConfig{
		apiVersion: "2024-02-01",
		timeout:    2 * time.Minute,
		logger:     logging.New(),
	}
	for _, opt := range options {
		opt(cfg)
	}
	return &ImageClient{
		client:     openai.NewClient(requestOptions(apiKey, baseURL, deployment, cfg.apiVersion, cfg.timeout, cfg.httpClient)...),
		deployment: deployment,
		logger:     cfg.logger,
	}
}

// GenerateImage renders one image and returns it base64 encoded
func (c *ImageClient) GenerateImage(ctx context.Context, prompt string, options interfaces.ImageOptions) (*interfaces.GeneratedImage, error) {
	if options.Size == "" {
		options.Size = "1024x1024"
	}
	if options.Quality == "" {
		options.Quality = "standard"
	}
	if options.Style == "" {
		options.Style = "vivid"
	}

	params := openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(c.deployment),
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize(options.Size),
		Quality:        openai.ImageGenerateParamsQuality(options.Quality),
		Style:          openai.ImageGenerateParamsStyle(options.Style),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	}

	c.logger.Debug(ctx, "Requesting image generation", map[string]interface{}{
		"deployment": c.deployment,
		"size":       options.Size,
	})

	resp, err := c.client.Images.Generate(ctx, params)
	if err != nil {
		c.logger.Error(ctx, "Error from Azure OpenAI image generation", map[string]interface{}{
			"error":      err.Error(),
			"deployment": c.deployment,
		})
		return nil, classifyError("image", fmt.Errorf("failed to generate image: %w", err))
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("image generation returned no data")
	}

	revised := resp.Data[0].RevisedPrompt
	if revised == "" {
		revised = prompt
	}
	return &interfaces.GeneratedImage{
		RevisedPrompt: revised,
		Base64:        resp.Data[0].B64JSON,
	}, nil
}
