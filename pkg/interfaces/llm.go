package interfaces

import (
	"context"
	"time"
)

// MessageRole is the author of a chat message
type MessageRole string

const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Message is a single chat turn
type Message struct {
	Role     MessageRole            `json:"role"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ImagePart is an image attached to the user turn
type ImagePart struct {
	// MediaType is the image subtype, e.g. "png" or "jpeg"
	MediaType string
	// Data is the base64 encoded image
	Data string
}

// DataURL renders the image as a data URL accepted by vision deployments
func (p ImagePart) DataURL() string {
	return "data:image/" + p.MediaType + ";base64," + p.Data
}

// JSONSchema is a JSON schema document
type JSONSchema map[string]interface{}

// ResponseFormat requests structured output from the model
type ResponseFormat struct {
	Name   string
	Schema JSONSchema
}

// LLMConfig holds sampling parameters
type LLMConfig struct {
	Temperature float64
	MaxTokens   int
}

// GenerateOptions collects per-call options
type GenerateOptions struct {
	LLMConfig      *LLMConfig
	SystemMessage  string
	Messages       []Message
	Images         []ImagePart
	ResponseFormat *ResponseFormat
	BufferSize     int
}

// GenerateOption mutates GenerateOptions
type GenerateOption func(*GenerateOptions)

// WithSystemMessage sets the system prompt
func WithSystemMessage(msg string) GenerateOption {
	return func(o *GenerateOptions) {
		o.SystemMessage = msg
	}
}

// WithMessages inserts chat history between the system prompt and the user prompt
func WithMessages(messages []Message) GenerateOption {
	return func(o *GenerateOptions) {
		o.Messages = messages
	}
}

// WithImages attaches images to the user prompt
func WithImages(images []ImagePart) GenerateOption {
	return func(o *GenerateOptions) {
		o.Images = images
	}
}

// WithResponseFormat asks for JSON output matching the schema
func WithResponseFormat(format ResponseFormat) GenerateOption {
	return func(o *GenerateOptions) {
		o.ResponseFormat = &format
	}
}

// WithTemperature overrides the sampling temperature
func WithTemperature(t float64) GenerateOption {
	return func(o *GenerateOptions) {
		if o.LLMConfig == nil {
			o.LLMConfig = &LLMConfig{}
		}
		o.LLMConfig.Temperature = t
	}
}

// WithMaxTokens caps the completion length
func WithMaxTokens(n int) GenerateOption {
	return func(o *GenerateOptions) {
		if o.LLMConfig == nil {
			o.LLMConfig = &LLMConfig{}
		}
		o.LLMConfig.MaxTokens = n
	}
}

// TokenUsage reports token consumption of a call
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// LLMResponse is the detailed result of a generation
type LLMResponse struct {
	Content    string
	Model      string
	StopReason string
	Usage      *TokenUsage
	Metadata   map[string]interface{}
}

// StreamEventType identifies a streaming event
type StreamEventType string

const (
	StreamEventMessageStart    StreamEventType = "message_start"
	StreamEventContentDelta    StreamEventType = "content_delta"
	StreamEventContentComplete StreamEventType = "content_complete"
	StreamEventMessageStop     StreamEventType = "message_stop"
	StreamEventError           StreamEventType = "error"
)

// StreamEvent is emitted by GenerateStream
type StreamEvent struct {
	Type      StreamEventType
	Content   string
	Error     error
	Metadata  map[string]interface{}
	Timestamp time.Time
}

// LLM is a chat completion model
type LLM interface {
	Generate(ctx context.Context, prompt string, options ...GenerateOption) (string, error)
	GenerateDetailed(ctx context.Context, prompt string, options ...GenerateOption) (*LLMResponse, error)
	GenerateStream(ctx context.Context, prompt string, options ...GenerateOption) (<-chan StreamEvent, error)
	Name() string
}

// Embedder turns text into vectors
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ImageOptions controls image generation
type ImageOptions struct {
	Size    string
	Quality string
	Style   string
}

// GeneratedImage is the result of an image generation call
type GeneratedImage struct {
	RevisedPrompt string
	// Base64 holds the encoded PNG
	Base64 string
}

// ImageGenerator creates images from prompts
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string, options ImageOptions) (*GeneratedImage, error)
}
