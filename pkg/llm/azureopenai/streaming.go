package azureopenai

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v2"

	"github.com/tagus/enterprise-agents/pkg/interfaces"
)

// GenerateStream streams a chat completion as StreamEvents. The channel is
// closed after a message_stop or error event.
func (c *AzureOpenAIClient) GenerateStream(
	ctx context.Context,
	prompt string,
	options ...interfaces.GenerateOption,
) (<-chan interfaces.StreamEvent, error) {
	params := c.resolveOptions(options)

	bufferSize := 100
	if params.BufferSize > 0 {
		bufferSize = params.BufferSize
	}

	streamParams := c.buildRequest(ctx, prompt, params)
	streamParams.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	}

	eventChan := make(chan interfaces.StreamEvent, bufferSize)

	go func() {
		defer close(eventChan)

		c.logger.Debug(ctx, "Creating Azure OpenAI streaming request", map[string]interface{}{
			"deployment": c.deployment,
			"messages":   len(streamParams.Messages),
		})

		stream := c.ChatService.Completions.NewStreaming(ctx, streamParams)
		defer stream.Close()

		send := func(event interfaces.StreamEvent) bool {
			select {
			case eventChan <- event:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send(interfaces.StreamEvent{
			Type:      interfaces.StreamEventMessageStart,
			Timestamp: time.Now(),
			Metadata: map[string]interface{}{
				"deployment": c.deployment,
			},
		}) {
			return
		}

		filtered := false
		for stream.Next() {
			chunk := stream.Current()

			for _, choice := range chunk.Choices {
				if choice.Delta.Content != "" {
					if !send(interfaces.StreamEvent{
						Type:      interfaces.StreamEventContentDelta,
						Content:   choice.Delta.Content,
						Timestamp: time.Now(),
					}) {
						return
					}
				}

				if choice.FinishReason != "" {
					if choice.FinishReason == "content_filter" {
						filtered = true
					}
					if !send(interfaces.StreamEvent{
						Type:      interfaces.StreamEventContentComplete,
						Timestamp: time.Now(),
						Metadata: map[string]interface{}{
							"finish_reason": choice.FinishReason,
						},
					}) {
						return
					}
				}
			}

			if chunk.Usage.TotalTokens > 0 {
				if !send(interfaces.StreamEvent{
					Type:      interfaces.StreamEventContentDelta,
					Timestamp: time.Now(),
					Metadata: map[string]interface{}{
						"usage": interfaces.TokenUsage{
							InputTokens:  int(chunk.Usage.PromptTokens),
							OutputTokens: int(chunk.Usage.CompletionTokens),
							TotalTokens:  int(chunk.Usage.TotalTokens),
						},
					},
				}) {
					return
				}
			}
		}

		if err := stream.Err(); err != nil {
			c.logger.Error(ctx, "Azure OpenAI streaming error", map[string]interface{}{
				"error":      err.Error(),
				"deployment": c.deployment,
			})
			send(interfaces.StreamEvent{
				Type:      interfaces.StreamEventError,
				Error:     classifyError("stream", fmt.Errorf("azure openai streaming error: %w", err)),
				Timestamp: time.Now(),
			})
			return
		}

		if filtered {
			send(interfaces.StreamEvent{
				Type:      interfaces.StreamEventError,
				Error:     fmt.Errorf("stream stopped: %w", ErrContentFiltered),
				Timestamp: time.Now(),
			})
			return
		}

		send(interfaces.StreamEvent{
			Type:      interfaces.StreamEventMessageStop,
			Timestamp: time.Now(),
		})
	}()

	return eventChan, nil
}
