package weaviate

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/tagus/enterprise-agents/pkg/interfaces"
	"github.com/tagus/enterprise-agents/pkg/logging"
)

func TestClassName(t *testing.T) {
	assert.Equal(t, "HRAgentCharChunkSize700", ClassName("HRAgent", 700))
	assert.Equal(t, "RealestateagentCharChunkSize700", ClassName("realestate-agent", 700))
	assert.Equal(t, "DocumentCharChunkSize500", ClassName("", 500))
}

func TestBuildWhere(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Nil(t, BuildWhere(interfaces.Filter{}))
	})

	t.Run("single condition", func(t *testing.T) {
		where := BuildWhere(interfaces.Filter{
			Must: []interfaces.Condition{{Key: "public_doc", Values: []string{"true"}}},
		}).Build()
		assert.Equal(t, "Equal", where.Operator)
		assert.Equal(t, []string{"public_doc"}, where.Path)
	})

	t.Run("documents filter", func(t *testing.T) {
		where := BuildWhere(interfaces.Filter{
			Must:    []interfaces.Condition{{Key: "doc_id", Values: []string{"a", "b"}}},
			MustNot: []interfaces.Condition{{Key: "public_doc", Values: []string{"true"}}},
		}).Build()
		assert.Equal(t, "And", where.Operator)
		require.Len(t, where.Operands, 2)
		assert.Equal(t, "ContainsAny", where.Operands[0].Operator)
		assert.Equal(t, "NotEqual", where.Operands[1].Operator)
	})

	t.Run("file name pattern", func(t *testing.T) {
		where := BuildWhere(interfaces.Filter{
			Must: []interfaces.Condition{
				{Key: "public_doc", Values: []string{"true"}},
				{Key: interfaces.FileNameKey, Values: []string{"*Ports*"}, Like: true},
			},
		}).Build()
		require.Len(t, where.Operands, 2)
		assert.Equal(t, "Like", where.Operands[1].Operator)
		assert.Equal(t, []string{"file_name"}, where.Operands[1].Path)
		require.NotNil(t, where.Operands[1].ValueText)
		assert.Equal(t, "*Ports*", *where.Operands[1].ValueText)
	})
}

func TestParseSearchResults(t *testing.T) {
	s := &Store{logger: logging.NewNoop()}
	resp := &models.GraphQLResponse{
		Data: map[string]models.JSONObject{
			"Get": map[string]interface{}{
				"HRAgentCharChunkSize700": []interface{}{
					map[string]interface{}{
						"page_content": "Annual leave is 30 days.",
						"title":        "HR Policy",
						"doc_id":       nil,
						"_additional":  map[string]interface{}{"id": "1", "certainty": 0.91},
					},
					map[string]interface{}{
						"title":       "missing content",
						"_additional": map[string]interface{}{"id": "2", "certainty": 0.99},
					},
				},
			},
		},
	}

	results := s.parseSearchResults(context.Background(), resp, "HRAgentCharChunkSize700")
	require.Len(t, results, 1)
	assert.Equal(t, "1", results[0].Document.ID)
	assert.Equal(t, "Annual leave is 30 days.", results[0].Document.Content)
	assert.InDelta(t, 0.91, results[0].Score, 1e-6)
	assert.Equal(t, map[string]interface{}{"title": "HR Policy"}, results[0].Document.Metadata)

	assert.Empty(t, s.parseSearchResults(context.Background(), &models.GraphQLResponse{}, "X"))
}

func TestStoreIntegration(t *testing.T) {
	host := os.Getenv("WEAVIATE_TEST_HOST")
	if host == "" {
		t.Skip("Skipping test that requires a Weaviate instance")
	}

	store, err := New(Config{Host: host, Scheme: "http"}, WithLogger(logging.NewNoop()))
	require.NoError(t, err)

	ctx := context.Background()
	class := ClassName("TestAgent", 700)
	require.NoError(t, store.EnsureClass(ctx, class))

	docs := []interfaces.Document{
		{Content: "public chunk", Metadata: map[string]interface{}{"public_doc": "true"}, Vector: []float32{0.1, 0.2, 0.3}},
		{Content: "user chunk", Metadata: map[string]interface{}{"public_doc": "false", "doc_id": "d1"}, Vector: []float32{0.1, 0.2, 0.31}},
	}
	require.NoError(t, store.Store(ctx, docs, interfaces.WithStoreClass(class)))

	filter := interfaces.Filter{Must: []interfaces.Condition{{Key: "public_doc", Values: []string{"true"}}}}
	results, err := store.Search(ctx, []float32{0.1, 0.2, 0.3}, 5, interfaces.WithClass(class), interfaces.WithFilter(filter))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "public chunk", results[0].Document.Content)

	deleted, err := store.DeleteByFilter(ctx, interfaces.Filter{
		Must: []interfaces.Condition{{Key: "doc_id", Values: []string{"d1"}}},
	}, interfaces.WithClass(class))
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
}
