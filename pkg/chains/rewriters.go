package chains

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/tagus/enterprise-agents/pkg/interfaces"
)

func (c *Chains) rewrite(ctx context.Context, kind, system string, in Input) (string, error) {
	vars := in.vars()
	out, err := c.text(ctx, helperProfile, Render(system, vars), Render(rewriteTurn, vars), in.History)
	if err != nil {
		return "", fmt.Errorf("%s rewrite: %w", kind, err)
	}
	out = strings.Trim(out, "\"'")
	if out == "" {
		return in.Query, nil
	}
	c.logger.Debug(ctx, "Query rewritten", map[string]interface{}{"kind": kind, "query": out})
	return out, nil
}

// RewriteForRAG rephrases the latest query for vector retrieval
func (c *Chains) RewriteForRAG(ctx context.Context, in Input) (string, error) {
	return c.rewrite(ctx, "rag", ragRewriterPrompt, in)
}

// RewriteForWebSearch rephrases the latest query for a web search engine
func (c *Chains) RewriteForWebSearch(ctx context.Context, in Input) (string, error) {
	return c.rewrite(ctx, "web search", webRewriterPrompt, in)
}

// RewriteForImage turns the latest query into a detailed image prompt
func (c *Chains) RewriteForImage(ctx context.Context, in Input) (string, error) {
	return c.rewrite(ctx, "image", imageRewriterPrompt, in)
}

// SummarizeDocuments condenses shared document extracts for routing
func (c *Chains) SummarizeDocuments(ctx context.Context, docs []interfaces.Document) (string, error) {
	if len(docs) == 0 {
		return NoSharedDocuments, nil
	}
	human := Render(documentsSummarizerTurn, Vars{"documents": FormatDocuments(docs)})
	out, err := c.text(ctx, helperProfile, documentsSummarizerPrompt, human, nil)
	if err != nil {
		return "", fmt.Errorf("documents summary: %w", err)
	}
	return out, nil
}

// Topic labels a query with a two or three word topic
func (c *Chains) Topic(ctx context.Context, query string) string {
	out, err := c.text(ctx, topicProfile, topicPrompt, Render(topicTurn, Vars{"query": query}), nil)
	if err != nil {
		c.logger.Warn(ctx, "Topic summary failed", map[string]interface{}{"error": err.Error()})
		return DefaultTopic
	}
	out = strings.TrimPrefix(out, "Topic:")
	out = strings.Trim(strings.TrimSpace(out), "\"'.")
	if out == "" {
		return DefaultTopic
	}
	return out
}

// RewritePayload turns a knowledge-base chunk into a summary plus up to
// numQuestions quiz questions, which is what gets embedded for retrieval
func (c *Chains) RewritePayload(ctx context.Context, docContext string, numQuestions int) (string, error) {
	human := Render(payloadRewriterTurn, Vars{
		"doc_context":   docContext,
		"num_questions": strconv.Itoa(numQuestions),
	})
	out, err := c.text(ctx, helperProfile, "", human, nil)
	if err != nil {
		return "", fmt.Errorf("payload rewrite: %w", err)
	}
	return out, nil
}
