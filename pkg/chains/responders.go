package chains

import (
	"context"
	"fmt"
	"strings"

	"github.com/tagus/enterprise-agents/pkg/events"
	"github.com/tagus/enterprise-agents/pkg/interfaces"
)

// StreamWords dispatches text as final_answer chunks split on spaces
func StreamWords(ctx context.Context, text string) {
	for _, chunk := range strings.Split(text, " ") {
		events.Dispatch(ctx, events.FinalAnswer, map[string]interface{}{"answer": chunk + " "})
	}
}

// stream runs a streaming completion, forwarding every delta as a final_answer
// event, and returns the aggregated text
func (c *Chains) stream(ctx context.Context, p profile, system string, human string, in Input) (string, error) {
	opts := p.options(interfaces.WithSystemMessage(system))
	if len(in.History) > 0 {
		opts = append(opts, interfaces.WithMessages(in.History))
	}
	if len(in.Images) > 0 {
		opts = append(opts, interfaces.WithImages(in.Images))
	}

	ch, err := c.llm.GenerateStream(ctx, human, opts...)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for event := range ch {
		switch event.Type {
		case interfaces.StreamEventContentDelta:
			if event.Content == "" {
				continue
			}
			b.WriteString(event.Content)
			events.Dispatch(ctx, events.FinalAnswer, map[string]interface{}{"answer": event.Content})
		case interfaces.StreamEventError:
			go func() {
				for range ch {
				}
			}()
			return b.String(), event.Error
		}
	}
	return b.String(), nil
}

// respond streams a response and swaps in the content-safety fallback when
// the provider filters the request
func (c *Chains) respond(ctx context.Context, kind, system string, in Input) (string, error) {
	out, err := c.stream(ctx, chatProfile, system, in.Query, in)
	if err != nil {
		if IsContentFiltered(err) {
			c.logger.Warn(ctx, "Response filtered, sending fallback", map[string]interface{}{"kind": kind})
			StreamWords(ctx, ContentSafetyFallback)
			return ContentSafetyFallback, nil
		}
		return "", fmt.Errorf("%s response: %w", kind, err)
	}
	return out, nil
}

// GenerateSimple answers the query directly, streaming the tokens
func (c *Chains) GenerateSimple(ctx context.Context, in Input) (string, error) {
	events.Dispatch(ctx, events.FinalContext, map[string]interface{}{"context": []interfaces.Document{}})
	return c.respond(ctx, "simple", Render(simpleResponsePrompt, in.vars()), in)
}

// RequestRefinedQuery asks the user to rephrase, streaming the tokens
func (c *Chains) RequestRefinedQuery(ctx context.Context, in Input) (string, error) {
	events.Dispatch(ctx, events.FinalContext, map[string]interface{}{"context": []interfaces.Document{}})
	return c.respond(ctx, "refined query", Render(refinedResponsePrompt, in.vars()), in)
}

// GenerateWithContext answers from the retrieved documents. The answer is not
// streamed because it still has to pass grading; a filtered request streams
// the fallback and returns it.
func (c *Chains) GenerateWithContext(ctx context.Context, in Input, docs []interfaces.Document) (string, error) {
	vars := in.vars()
	vars["context"] = FormatDocuments(docs)

	opts := chatProfile.options(interfaces.WithSystemMessage(Render(contextResponsePrompt, vars)))
	if len(in.History) > 0 {
		opts = append(opts, interfaces.WithMessages(in.History))
	}
	if len(in.Images) > 0 {
		opts = append(opts, interfaces.WithImages(in.Images))
	}

	out, err := c.llm.Generate(ctx, in.Query, opts...)
	if err != nil {
		if IsContentFiltered(err) {
			c.logger.Warn(ctx, "Context response filtered, sending fallback", nil)
			StreamWords(ctx, ContentSafetyFallback)
			return ContentSafetyFallback, nil
		}
		return "", fmt.Errorf("context response: %w", err)
	}
	return out, nil
}

// ExtractImageContext describes the attached images for the other chains
func (c *Chains) ExtractImageContext(ctx context.Context, in Input) (string, error) {
	if len(in.Images) == 0 {
		return NoImageContext, nil
	}
	vars := in.vars()
	opts := helperProfile.options(
		interfaces.WithSystemMessage(Render(imageContextPrompt, vars)),
		interfaces.WithImages(in.Images),
	)
	if len(in.History) > 0 {
		opts = append(opts, interfaces.WithMessages(in.History))
	}
	out, err := c.vision.Generate(ctx, Render(imageContextTurn, vars), opts...)
	if err != nil {
		if IsContentFiltered(err) {
			return FilteredImageContext, nil
		}
		return "", fmt.Errorf("image context: %w", err)
	}
	return strings.TrimSpace(out), nil
}
