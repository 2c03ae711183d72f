// Package retrieval searches an agent collection for the chunks relevant to a
// query and cleans the hits up before they reach the graders.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/tagus/enterprise-agents/pkg/interfaces"
	"github.com/tagus/enterprise-agents/pkg/logging"
)

const (
	// ContextTypeKey tags a document with where it came from
	ContextTypeKey = "context_type"
	// ContextTypeRAG marks documents found in the vector store
	ContextTypeRAG = "rag_result"

	originalContentKey = "original_page_content"

	DefaultK         = 10
	DefaultThreshold = float32(0.75)
)

// PublicFilter matches the agent's public knowledge base. A non-empty scope
// keeps only the files whose name contains it, e.g. a business cluster.
func PublicFilter(scope string) interfaces.Filter {
	f := interfaces.Filter{
		Must: []interfaces.Condition{{Key: "public_doc", Values: []string{"true"}}},
	}
	if scope = strings.TrimSpace(scope); scope != "" {
		f.Must = append(f.Must, interfaces.Condition{Key: interfaces.FileNameKey, Values: []string{"*" + scope + "*"}, Like: true})
	}
	return f
}

// DocumentsFilter matches the user's own uploaded documents
func DocumentsFilter(docIDs []string) interfaces.Filter {
	return interfaces.Filter{
		Must:    []interfaces.Condition{{Key: "doc_id", Values: docIDs}},
		MustNot: []interfaces.Condition{{Key: "public_doc", Values: []string{"true"}}},
	}
}

// Retriever embeds queries and searches one collection
type Retriever struct {
	embedder  interfaces.Embedder
	store     interfaces.VectorStore
	class     string
	k         int
	threshold float32
	logger    logging.Logger
}

// Option configures a Retriever
type Option func(*Retriever)

// WithK sets the number of public results; document searches use twice as many
func WithK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.k = k
		}
	}
}

// WithThreshold sets the minimum similarity score
func WithThreshold(threshold float32) Option {
	return func(r *Retriever) {
		r.threshold = threshold
	}
}

// WithClass searches a specific collection
func WithClass(class string) Option {
	return func(r *Retriever) {
		r.class = class
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(r *Retriever) {
		r.logger = logger
	}
}

// New creates a Retriever
func New(embedder interfaces.Embedder, store interfaces.VectorStore, opts ...Option) *Retriever {
	r := &Retriever{
		embedder:  embedder,
		store:     store,
		k:         DefaultK,
		threshold: DefaultThreshold,
		logger:    logging.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Public searches the public knowledge base, optionally narrowed to the
// files matching scope
func (r *Retriever) Public(ctx context.Context, query, scope string) ([]interfaces.Document, error) {
	return r.search(ctx, query, r.k, PublicFilter(scope))
}

// Documents searches the given user documents. No ids means no results.
func (r *Retriever) Documents(ctx context.Context, query string, docIDs []string) ([]interfaces.Document, error) {
	if len(docIDs) == 0 {
		return nil, nil
	}
	return r.search(ctx, query, 2*r.k, DocumentsFilter(docIDs))
}

func (r *Retriever) search(ctx context.Context, query string, limit int, filter interfaces.Filter) ([]interfaces.Document, error) {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	opts := []interfaces.SearchOption{interfaces.WithFilter(filter), interfaces.WithMinScore(r.threshold)}
	if r.class != "" {
		opts = append(opts, interfaces.WithClass(r.class))
	}
	results, err := r.store.Search(ctx, vector, limit, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to search vector store: %w", err)
	}

	docs := Postprocess(results, r.threshold)
	r.logger.Debug(ctx, "Retrieved documents", map[string]interface{}{
		"hits":  len(results),
		"kept":  len(docs),
		"limit": limit,
	})
	return docs, nil
}

// Postprocess drops hits under the threshold, restores the original chunk
// text when the stored content was a rewritten version, removes duplicate
// contents keeping the first occurrence and tags the survivors as RAG results.
func Postprocess(results []interfaces.SearchResult, threshold float32) []interfaces.Document {
	seen := make(map[string]struct{}, len(results))
	docs := make([]interfaces.Document, 0, len(results))
	for _, res := range results {
		if res.Score < threshold {
			continue
		}
		doc := res.Document
		metadata := make(map[string]interface{}, len(doc.Metadata)+1)
		for k, v := range doc.Metadata {
			metadata[k] = v
		}
		if original, ok := metadata[originalContentKey].(string); ok {
			doc.Content = original
			delete(metadata, originalContentKey)
		}
		if _, dup := seen[doc.Content]; dup {
			continue
		}
		seen[doc.Content] = struct{}{}
		metadata[ContextTypeKey] = ContextTypeRAG
		doc.Metadata = metadata
		docs = append(docs, doc)
	}
	return docs
}
