package weaviate

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/tagus/enterprise-agents/pkg/interfaces"
	"github.com/tagus/enterprise-agents/pkg/logging"
)

// ContentProperty holds the chunk text; every other property is metadata
const ContentProperty = "page_content"

// Config holds the Weaviate connection settings
type Config struct {
	Host   string
	Scheme string
	APIKey string
}

// Store implements interfaces.VectorStore for Weaviate
type Store struct {
	client       *weaviate.Client
	defaultClass string
	embedder     interfaces.Embedder
	logger       logging.Logger
}

// Option represents an option for configuring the Weaviate store
type Option func(*Store)

// WithDefaultClass sets the class used when a call names none
func WithDefaultClass(class string) Option {
	return func(s *Store) {
		s.defaultClass = class
	}
}

// WithEmbedder embeds documents stored without a vector
func WithEmbedder(embedder interfaces.Embedder) Option {
	return func(s *Store) {
		s.embedder = embedder
	}
}

// WithLogger sets the logger for the Weaviate store
func WithLogger(logger logging.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a new Weaviate store
func New(config Config, options ...Option) (*Store, error) {
	store := &Store{
		defaultClass: "Document",
		logger:       logging.New(),
	}
	for _, option := range options {
		option(store)
	}

	scheme := config.Scheme
	if scheme == "" {
		scheme = "http"
	}
	cfg := weaviate.Config{
		Host:   config.Host,
		Scheme: scheme,
	}
	if config.APIKey != "" {
		cfg.AuthConfig = auth.ApiKey{Value: config.APIKey}
	}

	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}
	store.client = client
	return store, nil
}

// ClassName builds the collection name of an agent, e.g. HRAgentCharChunkSize700
func ClassName(agent string, chunkSize int) string {
	name := strings.NewReplacer("-", "", "_", "", " ", "").Replace(agent)
	if name == "" {
		name = "Document"
	}
	return strings.ToUpper(name[:1]) + name[1:] + fmt.Sprintf("CharChunkSize%d", chunkSize)
}

func (s *Store) className(class string) string {
	if class == "" {
		return s.defaultClass
	}
	return class
}

// EnsureClass creates the class with external vectors if it does not exist
func (s *Store) EnsureClass(ctx context.Context, class string) error {
	className := s.className(class)
	exists, err := s.client.Schema().ClassExistenceChecker().WithClassName(className).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to check class %s: %w", className, err)
	}
	if exists {
		return nil
	}

	err = s.client.Schema().ClassCreator().WithClass(&models.Class{
		Class:       className,
		Description: "Document chunks of the " + className + " knowledge base",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{Name: ContentProperty, DataType: []string{"text"}},
			{Name: "original_page_content", DataType: []string{"text"}},
			{Name: "public_doc", DataType: []string{"text"}, Tokenization: "field"},
			{Name: "doc_id", DataType: []string{"text"}, Tokenization: "field"},
			{Name: "user_id", DataType: []string{"text"}, Tokenization: "field"},
			{Name: interfaces.FileNameKey, DataType: []string{"text"}, Tokenization: "field"},
			{Name: "title", DataType: []string{"text"}},
			{Name: "page_number", DataType: []string{"int"}},
		},
	}).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to create class %s: %w", className, err)
	}
	s.logger.Info(ctx, "Weaviate class created", map[string]interface{}{"className": className})
	return nil
}

// Store stores documents in batches. Documents without a vector are embedded
// with the configured embedder.
func (s *Store) Store(ctx context.Context, documents []interfaces.Document, options ...interfaces.StoreOption) error {
	opts := &interfaces.StoreOptions{
		BatchSize: 100,
	}
	for _, option := range options {
		option(opts)
	}
	className := s.className(opts.Class)

	batch := s.client.Batch().ObjectsBatcher()
	batchCount := 0

	for _, doc := range documents {
		vector := doc.Vector
		if vector == nil {
			if s.embedder == nil {
				return fmt.Errorf("document %q has no vector and no embedder is configured", doc.ID)
			}
			var err error
			vector, err = s.embedder.Embed(ctx, doc.Content)
			if err != nil {
				return fmt.Errorf("failed to generate embedding: %w", err)
			}
		}

		id := doc.ID
		if id == "" {
			id = uuid.NewString()
		}

		properties := map[string]interface{}{
			ContentProperty: doc.Content,
		}
		for k, v := range doc.Metadata {
			properties[k] = v
		}

		obj := &models.Object{
			Class:      className,
			ID:         strfmt.UUID(id),
			Properties: properties,
			Vector:     vector,
		}

		batch.WithObjects(obj)
		batchCount++

		if batchCount >= opts.BatchSize {
			if err := s.flush(ctx, batch); err != nil {
				return err
			}
			batch = s.client.Batch().ObjectsBatcher()
			batchCount = 0
		}
	}

	if batchCount > 0 {
		if err := s.flush(ctx, batch); err != nil {
			return err
		}
	}

	s.logger.Debug(ctx, "Documents stored", map[string]interface{}{"className": className, "count": len(documents)})
	return nil
}

func (s *Store) flush(ctx context.Context, batch interface {
	Do(context.Context) ([]models.ObjectsGetResponse, error)
}) error {
	responses, err := batch.Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to store batch: %w", err)
	}
	for _, r := range responses {
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			return fmt.Errorf("failed to store object %s: %s", r.ID, r.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

// Search returns the documents nearest to vector, scored by certainty
func (s *Store) Search(ctx context.Context, vector []float32, limit int, options ...interfaces.SearchOption) ([]interfaces.SearchResult, error) {
	opts := &interfaces.SearchOptions{}
	for _, option := range options {
		option(opts)
	}
	className := s.className(opts.Class)

	fieldList, err := s.buildFieldList(ctx, className)
	if err != nil {
		return nil, fmt.Errorf("failed to build field list: %w", err)
	}

	queryBuilder := s.client.GraphQL().Get().
		WithClassName(className).
		WithFields(graphql.Field{Name: fieldList}).
		WithNearVector(s.client.GraphQL().NearVectorArgBuilder().WithVector(vector)).
		WithLimit(limit)

	if where := BuildWhere(opts.Filter); where != nil {
		queryBuilder = queryBuilder.WithWhere(where)
	}

	result, err := queryBuilder.Do(ctx)
	if err != nil {
		s.logger.Error(ctx, "GraphQL query failed", map[string]interface{}{"error": err.Error(), "className": className})
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("vector search returned errors: %s", result.Errors[0].Message)
	}

	results := s.parseSearchResults(ctx, result, className)

	filtered := results[:0]
	for _, r := range results {
		if r.Score >= opts.MinScore {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// DeleteByFilter removes every object matching filter and returns how many were deleted
func (s *Store) DeleteByFilter(ctx context.Context, filter interfaces.Filter, options ...interfaces.SearchOption) (int, error) {
	if filter.IsEmpty() {
		return 0, fmt.Errorf("refusing to delete with an empty filter")
	}
	opts := &interfaces.SearchOptions{}
	for _, option := range options {
		option(opts)
	}
	className := s.className(opts.Class)

	deleter := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(className).
		WithOutput("minimal").
		WithWhere(BuildWhere(filter))

	resp, err := deleter.Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete objects from %s: %w", className, err)
	}
	if resp == nil || resp.Results == nil {
		return 0, nil
	}
	s.logger.Info(ctx, "Objects deleted", map[string]interface{}{
		"className":  className,
		"matches":    resp.Results.Matches,
		"successful": resp.Results.Successful,
		"failed":     resp.Results.Failed,
	})
	if resp.Results.Failed > 0 {
		return int(resp.Results.Successful), fmt.Errorf("failed to delete %d objects from %s", resp.Results.Failed, className)
	}
	return int(resp.Results.Successful), nil
}

// buildFieldList discovers the properties of the class from the schema
func (s *Store) buildFieldList(ctx context.Context, className string) (string, error) {
	const additional = " _additional { certainty id }"
	fallback := ContentProperty + additional

	schema, err := s.client.Schema().Getter().Do(ctx)
	if err != nil {
		s.logger.Warn(ctx, "Failed to get schema for field discovery", map[string]interface{}{
			"error":     err.Error(),
			"className": className,
		})
		return fallback, nil
	}

	for _, class := range schema.Classes {
		if class.Class != className {
			continue
		}
		names := make([]string, 0, len(class.Properties))
		for _, property := range class.Properties {
			names = append(names, property.Name)
		}
		if len(names) == 0 {
			return fallback, nil
		}
		return strings.Join(names, " ") + additional, nil
	}

	s.logger.Warn(ctx, "Class not found in schema, using fallback fields", map[string]interface{}{"className": className})
	return fallback, nil
}

// BuildWhere converts a metadata filter into a Weaviate where clause. A single
// value matches with Equal, several with ContainsAny. MustNot conditions are
// expanded into NotEqual operands.
func BuildWhere(filter interfaces.Filter) *filters.WhereBuilder {
	var operands []*filters.WhereBuilder

	for _, c := range filter.Must {
		switch len(c.Values) {
		case 0:
			continue
		case 1:
			operands = append(operands, filters.Where().
				WithPath([]string{c.Key}).
				WithOperator(filters.Equal).
				WithValueString(c.Values[0]))
		default:
			operands = append(operands, filters.Where().
				WithPath([]string{c.Key}).
				WithOperator(filters.ContainsAny).
				WithValueString(c.Values...))
		}
	}
	for _, c := range filter.MustNot {
		for _, v := range c.Values {
			operands = append(operands, filters.Where().
				WithPath([]string{c.Key}).
				WithOperator(filters.NotEqual).
				WithValueString(v))
		}
	}

	switch len(operands) {
	case 0:
		return nil
	case 1:
		return operands[0]
	default:
		return filters.Where().WithOperator(filters.And).WithOperands(operands)
	}
}

func (s *Store) parseSearchResults(ctx context.Context, result *models.GraphQLResponse, className string) []interfaces.SearchResult {
	searchResults := []interfaces.SearchResult{}
	if result == nil || result.Data == nil {
		s.logger.Warn(ctx, "Empty response data from Weaviate", nil)
		return searchResults
	}

	getMap, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		s.logger.Error(ctx, "Invalid response format", map[string]interface{}{"data": result.Data})
		return searchResults
	}

	items, ok := getMap[className].([]interface{})
	if !ok {
		return searchResults
	}

	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		additional, ok := obj["_additional"].(map[string]interface{})
		if !ok {
			s.logger.Warn(ctx, "Missing _additional field in result", nil)
			continue
		}
		content, ok := obj[ContentProperty].(string)
		if !ok {
			s.logger.Warn(ctx, "Missing content field in result", nil)
			continue
		}
		id, _ := additional["id"].(string)
		certainty, ok := additional["certainty"].(float64)
		if !ok {
			certainty = 0
		}

		doc := interfaces.Document{
			ID:       id,
			Content:  content,
			Metadata: make(map[string]interface{}),
		}
		for k, v := range obj {
			if k != ContentProperty && k != "_additional" && v != nil {
				doc.Metadata[k] = v
			}
		}

		searchResults = append(searchResults, interfaces.SearchResult{
			Document: doc,
			Score:    float32(certainty),
		})
	}
	return searchResults
}
