package interfaces

import "context"

// Document is a chunk of text with its metadata
type Document struct {
	ID       string                 `json:"id,omitempty"`
	Content  string                 `json:"page_content"`
	Metadata map[string]interface{} `json:"metadata"`
	Vector   []float32              `json:"-"`
}

// SearchResult is a document with its relevance score in [0,1]
type SearchResult struct {
	Document Document
	Score    float32
}

// FileNameKey is the metadata key holding the source file name of a chunk
const FileNameKey = "file_name"

// Condition matches a metadata key against one value, or any of several
// values. With Like the values are wildcard patterns such as *Ports*.
type Condition struct {
	Key    string
	Values []string
	Like   bool
}

// Filter is a conjunction of Must conditions and negated MustNot conditions
type Filter struct {
	Must    []Condition
	MustNot []Condition
}

// IsEmpty reports whether the filter has no conditions
func (f Filter) IsEmpty() bool {
	return len(f.Must) == 0 && len(f.MustNot) == 0
}

// StoreOptions configures Store
type StoreOptions struct {
	BatchSize int
	Class     string
}

// StoreOption mutates StoreOptions
type StoreOption func(*StoreOptions)

// WithBatchSize sets the batch size used by Store
func WithBatchSize(size int) StoreOption {
	return func(o *StoreOptions) {
		o.BatchSize = size
	}
}

// WithStoreClass stores into a specific collection
func WithStoreClass(class string) StoreOption {
	return func(o *StoreOptions) {
		o.Class = class
	}
}

// SearchOptions configures Search
type SearchOptions struct {
	Filter   Filter
	Class    string
	MinScore float32
}

// SearchOption mutates SearchOptions
type SearchOption func(*SearchOptions)

// WithFilter restricts results by metadata
func WithFilter(f Filter) SearchOption {
	return func(o *SearchOptions) {
		o.Filter = f
	}
}

// WithClass searches a specific collection
func WithClass(class string) SearchOption {
	return func(o *SearchOptions) {
		o.Class = class
	}
}

// WithMinScore drops results under the score
func WithMinScore(score float32) SearchOption {
	return func(o *SearchOptions) {
		o.MinScore = score
	}
}

// VectorStore persists and searches embedded documents
type VectorStore interface {
	Store(ctx context.Context, documents []Document, options ...StoreOption) error
	Search(ctx context.Context, vector []float32, limit int, options ...SearchOption) ([]SearchResult, error)
	DeleteByFilter(ctx context.Context, filter Filter, options ...SearchOption) (int, error)
}
