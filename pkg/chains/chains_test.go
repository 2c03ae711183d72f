package chains

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tagus/enterprise-agents/pkg/events"
	"github.com/tagus/enterprise-agents/pkg/interfaces"
	"github.com/tagus/enterprise-agents/pkg/llm/azureopenai"
	"github.com/tagus/enterprise-agents/pkg/logging"
)

type mockLLM struct {
	mock.Mock
}

func (m *mockLLM) Generate(ctx context.Context, prompt string, options ...interfaces.GenerateOption) (string, error) {
	args := m.Called(ctx, prompt, options)
	return args.String(0), args.Error(1)
}

func (m *mockLLM) GenerateDetailed(ctx context.Context, prompt string, options ...interfaces.GenerateOption) (*interfaces.LLMResponse, error) {
	content, err := m.Generate(ctx, prompt, options...)
	if err != nil {
		return nil, err
	}
	return &interfaces.LLMResponse{Content: content, Model: "mock-llm"}, nil
}

func (m *mockLLM) GenerateStream(ctx context.Context, prompt string, options ...interfaces.GenerateOption) (<-chan interfaces.StreamEvent, error) {
	args := m.Called(ctx, prompt, options)
	ch, _ := args.Get(0).(chan interfaces.StreamEvent)
	return ch, args.Error(1)
}

func (m *mockLLM) Name() string { return "mock-llm" }

func resolve(opts []interfaces.GenerateOption) *interfaces.GenerateOptions {
	o := &interfaces.GenerateOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func streamOf(events ...interfaces.StreamEvent) chan interfaces.StreamEvent {
	ch := make(chan interfaces.StreamEvent, len(events))
	for _, e := range events {
		ch <- e
	}
	close(ch)
	return ch
}

func delta(s string) interfaces.StreamEvent {
	return interfaces.StreamEvent{Type: interfaces.StreamEventContentDelta, Content: s}
}

func testInput() Input {
	return Input{
		Query:             "What is the annual leave policy?",
		Username:          "Jane Doe",
		Timestamp:         "03:04 PM on 02th of January, 2006",
		EnterpriseContext: "You are the HR Agent.",
		History: []interfaces.Message{
			{Role: interfaces.MessageRoleUser, Content: "hi"},
			{Role: interfaces.MessageRoleAssistant, Content: "Hello Jane"},
		},
	}
}

func newTestChains(llm interfaces.LLM) *Chains {
	return New(llm, WithLogger(logging.NewNoop()))
}

func TestRender(t *testing.T) {
	out := Render("time {timestamp}, query {query}, keep {unknown}", Vars{
		"timestamp": "now",
		"query":     "contains {timestamp}",
	})
	assert.Equal(t, "time now, query contains {timestamp}, keep {unknown}", out)
	assert.Equal(t, "plain", Render("plain", nil))
}

func TestModerate(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   bool
	}{
		{"proper", `{"binary_score": "yes"}`, true},
		{"improper", `{"binary_score": "no"}`, false},
		{"repaired", `{'binary_score': 'yes',}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := new(mockLLM)
			var got *interfaces.GenerateOptions
			llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
				Run(func(args mock.Arguments) {
					got = resolve(args.Get(2).([]interfaces.GenerateOption))
				}).
				Return(tt.output, nil)

			ok, err := newTestChains(llm).Moderate(context.Background(), testInput())
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)

			require.NotNil(t, got.ResponseFormat)
			assert.Equal(t, "GradeModeration", got.ResponseFormat.Name)
			assert.Contains(t, got.SystemMessage, "03:04 PM on 02th of January, 2006")
			assert.Contains(t, got.SystemMessage, "You are the HR Agent.")
			assert.Len(t, got.Messages, 2)
			assert.Equal(t, 0.0, got.LLMConfig.Temperature)
			assert.Equal(t, 750, got.LLMConfig.MaxTokens)
		})
	}
}

func TestModerateInvalidGrade(t *testing.T) {
	llm := new(mockLLM)
	llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(`{"binary_score": "maybe"}`, nil)

	_, err := newTestChains(llm).Moderate(context.Background(), testInput())
	assert.Error(t, err)
}

func TestModerateUsesImageFallback(t *testing.T) {
	llm := new(mockLLM)
	llm.On("Generate", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return strings.Contains(prompt, NoImageContext)
	}), mock.Anything).Return(`{"binary_score": "yes"}`, nil)

	ok, err := newTestChains(llm).Moderate(context.Background(), testInput())
	require.NoError(t, err)
	assert.True(t, ok)
	llm.AssertExpectations(t)
}

func TestGradeRetrieval(t *testing.T) {
	llm := new(mockLLM)
	llm.On("Generate", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return strings.Contains(prompt, "leave is 30 days") && strings.Contains(prompt, "annual leave")
	}), mock.Anything).Return("```json\n{\"binary_score\": \"yes\"}\n```", nil)

	ok, err := newTestChains(llm).GradeRetrieval(context.Background(), "annual leave", "leave is 30 days")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGradeGenerationIncludesContext(t *testing.T) {
	docs := []interfaces.Document{{
		Content:  "Annual leave is 30 days.",
		Metadata: map[string]interface{}{"context_type": "rag_result", "title": "HR Policy", "page_number": 4},
	}}

	llm := new(mockLLM)
	var system string
	llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			system = resolve(args.Get(2).([]interfaces.GenerateOption)).SystemMessage
		}).
		Return(`{"binary_score": "no"}`, nil)

	c := newTestChains(llm)
	grounded, err := c.GradeHallucination(context.Background(), testInput(), docs, "It is 30 days.")
	require.NoError(t, err)
	assert.False(t, grounded)
	assert.Contains(t, system, "Annual leave is 30 days.")
	assert.Contains(t, system, "'title': 'HR Policy'")

	useful, err := c.GradeAnswer(context.Background(), testInput(), docs, "It is 30 days.")
	require.NoError(t, err)
	assert.False(t, useful)
}

func TestClassify(t *testing.T) {
	routes := []Route{RouteSimple, RouteRAG, RouteWebSearch}

	t.Run("known route", func(t *testing.T) {
		llm := new(mockLLM)
		var got *interfaces.GenerateOptions
		var human string
		llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				human = args.String(1)
				got = resolve(args.Get(2).([]interfaces.GenerateOption))
			}).
			Return(`{"query_type": "rag_query"}`, nil)

		route, err := newTestChains(llm).Classify(context.Background(), testInput(), "A summary", routes)
		require.NoError(t, err)
		assert.Equal(t, RouteRAG, route)

		assert.Contains(t, human, "A summary")
		assert.Contains(t, got.SystemMessage, "'rag_query'")
		assert.NotContains(t, got.SystemMessage, "'img_gen_query'")

		props := got.ResponseFormat.Schema["properties"].(map[string]any)
		enum := props["query_type"].(map[string]any)["enum"].([]interface{})
		assert.Equal(t, []interface{}{"simple_query", "rag_query", "web_search_query"}, enum)
	})

	t.Run("schema rejects route outside the set", func(t *testing.T) {
		llm := new(mockLLM)
		llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(`{"query_type": "sql_query"}`, nil)

		_, err := newTestChains(llm).Classify(context.Background(), testInput(), NoSharedDocuments, routes)
		assert.Error(t, err)
	})

	t.Run("provider error", func(t *testing.T) {
		llm := new(mockLLM)
		llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("boom"))

		_, err := newTestChains(llm).Classify(context.Background(), testInput(), NoSharedDocuments, routes)
		assert.ErrorContains(t, err, "boom")
	})
}

func TestClassifierPrompt(t *testing.T) {
	prompt := ClassifierPrompt([]Route{RouteSimple, RouteSQL})
	assert.Contains(t, prompt, "Simple answer route 'simple_query'")
	assert.Contains(t, prompt, "SQL answer route 'sql_query'")
	assert.Contains(t, prompt, "'hi' -> 'simple_query'")
	assert.Contains(t, prompt, "-> 'sql_query'")
	assert.NotContains(t, prompt, "rag_query")
}

func TestRewriters(t *testing.T) {
	llm := new(mockLLM)
	llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(`"What is the annual leave policy at the company?"`, nil).Once()
	llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("", nil).Once()

	c := newTestChains(llm)
	out, err := c.RewriteForRAG(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, "What is the annual leave policy at the company?", out)

	out, err = c.RewriteForWebSearch(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, testInput().Query, out)
}

func TestSummarizeDocuments(t *testing.T) {
	llm := new(mockLLM)
	c := newTestChains(llm)

	out, err := c.SummarizeDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, NoSharedDocuments, out)
	llm.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)

	llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("A contract for port services.", nil)
	out, err = c.SummarizeDocuments(context.Background(), []interfaces.Document{{Content: "contract"}})
	require.NoError(t, err)
	assert.Equal(t, "A contract for port services.", out)
}

func TestTopic(t *testing.T) {
	tests := []struct {
		name   string
		output string
		err    error
		want   string
	}{
		{"label", "HR Policy", nil, "HR Policy"},
		{"prefixed", "Topic: Kubernetes.", nil, "Kubernetes"},
		{"empty", "  ", nil, DefaultTopic},
		{"error", "", errors.New("timeout"), DefaultTopic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := new(mockLLM)
			var got *interfaces.GenerateOptions
			llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
				Run(func(args mock.Arguments) {
					got = resolve(args.Get(2).([]interfaces.GenerateOption))
				}).
				Return(tt.output, tt.err)

			assert.Equal(t, tt.want, newTestChains(llm).Topic(context.Background(), "annual leave?"))
			assert.Equal(t, 30, got.LLMConfig.MaxTokens)
		})
	}
}

func TestGenerateSimpleStreams(t *testing.T) {
	llm := new(mockLLM)
	llm.On("GenerateStream", mock.Anything, "What is the annual leave policy?", mock.Anything).
		Return(streamOf(
			interfaces.StreamEvent{Type: interfaces.StreamEventMessageStart},
			delta("Annual "),
			delta("leave "),
			delta("is 30 days."),
			interfaces.StreamEvent{Type: interfaces.StreamEventContentComplete, Content: "Annual leave is 30 days."},
			interfaces.StreamEvent{Type: interfaces.StreamEventMessageStop},
		), nil)

	rec := &events.Recorder{}
	ctx := events.WithSink(context.Background(), rec)

	out, err := newTestChains(llm).GenerateSimple(ctx, testInput())
	require.NoError(t, err)
	assert.Equal(t, "Annual leave is 30 days.", out)

	all := rec.Events()
	require.Len(t, all, 4)
	assert.Equal(t, events.FinalContext, all[0].Name)
	var chunks []string
	for _, e := range rec.Named(events.FinalAnswer) {
		chunks = append(chunks, e.Data["answer"].(string))
	}
	assert.Equal(t, []string{"Annual ", "leave ", "is 30 days."}, chunks)
}

func TestRespondContentFilterFallback(t *testing.T) {
	filtered := fmt.Errorf("stream: %w", azureopenai.ErrContentFiltered)

	t.Run("stream error event", func(t *testing.T) {
		llm := new(mockLLM)
		llm.On("GenerateStream", mock.Anything, mock.Anything, mock.Anything).
			Return(streamOf(delta("Partial"), interfaces.StreamEvent{Type: interfaces.StreamEventError, Error: filtered}), nil)

		rec := &events.Recorder{}
		out, err := newTestChains(llm).RequestRefinedQuery(events.WithSink(context.Background(), rec), testInput())
		require.NoError(t, err)
		assert.Equal(t, ContentSafetyFallback, out)
		assert.Len(t, rec.Named(events.FinalAnswer), 1+len(strings.Split(ContentSafetyFallback, " ")))
	})

	t.Run("request rejected", func(t *testing.T) {
		llm := new(mockLLM)
		llm.On("GenerateStream", mock.Anything, mock.Anything, mock.Anything).Return(nil, filtered)

		out, err := newTestChains(llm).GenerateSimple(context.Background(), testInput())
		require.NoError(t, err)
		assert.Equal(t, ContentSafetyFallback, out)
	})

	t.Run("other errors propagate", func(t *testing.T) {
		llm := new(mockLLM)
		llm.On("GenerateStream", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))

		_, err := newTestChains(llm).GenerateSimple(context.Background(), testInput())
		assert.ErrorContains(t, err, "connection reset")
	})
}

func TestGenerateWithContext(t *testing.T) {
	docs := []interfaces.Document{{Content: "Annual leave is 30 days."}}

	llm := new(mockLLM)
	var got *interfaces.GenerateOptions
	llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			got = resolve(args.Get(2).([]interfaces.GenerateOption))
		}).
		Return("It is 30 days (<em>HR Policy, p. 4</em>).", nil).Once()
	llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("", azureopenai.ErrContentFiltered).Once()

	c := newTestChains(llm)
	rec := &events.Recorder{}
	ctx := events.WithSink(context.Background(), rec)

	out, err := c.GenerateWithContext(ctx, testInput(), docs)
	require.NoError(t, err)
	assert.Equal(t, "It is 30 days (<em>HR Policy, p. 4</em>).", out)
	assert.Contains(t, got.SystemMessage, "Annual leave is 30 days.")
	assert.Contains(t, got.SystemMessage, "No, you are not.")
	assert.Equal(t, 0.15, got.LLMConfig.Temperature)
	assert.Empty(t, rec.Events())

	out, err = c.GenerateWithContext(ctx, testInput(), docs)
	require.NoError(t, err)
	assert.Equal(t, ContentSafetyFallback, out)
	assert.NotEmpty(t, rec.Named(events.FinalAnswer))
}

func TestExtractImageContext(t *testing.T) {
	t.Run("no images", func(t *testing.T) {
		llm := new(mockLLM)
		out, err := newTestChains(llm).ExtractImageContext(context.Background(), testInput())
		require.NoError(t, err)
		assert.Equal(t, NoImageContext, out)
		llm.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
	})

	in := testInput()
	in.Images = []interfaces.ImagePart{{MediaType: "png", Data: "aGVsbG8="}}

	t.Run("vision model", func(t *testing.T) {
		llm := new(mockLLM)
		vision := new(mockLLM)
		var got *interfaces.GenerateOptions
		vision.On("Generate", mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				got = resolve(args.Get(2).([]interfaces.GenerateOption))
			}).
			Return(" A table of leave days. ", nil)

		c := New(llm, WithLogger(logging.NewNoop()), WithVisionLLM(vision))
		out, err := c.ExtractImageContext(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, "A table of leave days.", out)
		assert.Len(t, got.Images, 1)
		llm.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("filtered", func(t *testing.T) {
		llm := new(mockLLM)
		llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("", azureopenai.ErrContentFiltered)

		out, err := newTestChains(llm).ExtractImageContext(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, FilteredImageContext, out)
	})
}
