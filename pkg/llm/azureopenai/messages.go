package azureopenai

import (
	"github.com/openai/openai-go/v2"

	"github.com/tagus/enterprise-agents/pkg/interfaces"
)

// buildMessages assembles system prompt, chat history and the user turn.
// Images are attached to the user turn as data-URL parts.
func buildMessages(prompt string, params *interfaces.GenerateOptions) []openai.ChatCompletionMessageParamUnion {
	messages := []openai.ChatCompletionMessageParamUnion{}

	if params.SystemMessage != "" {
		messages = append(messages, openai.SystemMessage(params.SystemMessage))
	}

	for _, msg := range params.Messages {
		if m := convertMessage(msg); m != nil {
			messages = append(messages, *m)
		}
	}

	if prompt == "" && len(params.Images) == 0 {
		return messages
	}

	if len(params.Images) == 0 {
		return append(messages, openai.UserMessage(prompt))
	}

	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(params.Images)+1)
	if prompt != "" {
		parts = append(parts, openai.TextContentPart(prompt))
	}
	for _, img := range params.Images {
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: img.DataURL(),
		}))
	}
	return append(messages, openai.UserMessage(parts))
}

func convertMessage(msg interfaces.Message) *openai.ChatCompletionMessageParamUnion {
	var m openai.ChatCompletionMessageParamUnion
	switch msg.Role {
	case interfaces.MessageRoleUser:
		m = openai.UserMessage(msg.Content)
	case interfaces.MessageRoleAssistant:
		if msg.Content == "" {
			return nil
		}
		m = openai.AssistantMessage(msg.Content)
	case interfaces.MessageRoleSystem:
		m = openai.SystemMessage(msg.Content)
	default:
		return nil
	}
	return &m
}
