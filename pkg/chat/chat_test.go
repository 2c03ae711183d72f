package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagus/enterprise-agents/pkg/agents"
	"github.com/tagus/enterprise-agents/pkg/events"
	"github.com/tagus/enterprise-agents/pkg/ingest"
	"github.com/tagus/enterprise-agents/pkg/interfaces"
	"github.com/tagus/enterprise-agents/pkg/logging"
	"github.com/tagus/enterprise-agents/pkg/memory"
	"github.com/tagus/enterprise-agents/pkg/multitenancy"
	"github.com/tagus/enterprise-agents/pkg/workflow"
)

type fakeRunner struct {
	mu     sync.Mutex
	states []workflow.State
	orgs   []string
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, state workflow.State) (workflow.State, error) {
	f.mu.Lock()
	f.states = append(f.states, state)
	org, _ := multitenancy.GetOrgID(ctx)
	f.orgs = append(f.orgs, org)
	f.mu.Unlock()
	if f.err != nil {
		return state, f.err
	}
	events.Dispatch(ctx, events.FinalAnswer, map[string]interface{}{"answer": "ok"})
	state.Answer = "answer to " + state.Query
	if state.WebSearch {
		state.Context = []interfaces.Document{{Content: "web doc"}}
	}
	return state, nil
}

type fakeImages struct{}

func (fakeImages) DownloadImage(_ context.Context, url string) (interfaces.ImagePart, error) {
	if url == "missing" {
		return interfaces.ImagePart{}, errors.New("blob not found")
	}
	return interfaces.ImagePart{MediaType: "png", Data: "aGk="}, nil
}

type fakeTopics struct{}

func (fakeTopics) Topic(_ context.Context, query string) string { return "HR Policy" }

type fakeFiles struct {
	ingest.Output
	orgs []string
}

func (f *fakeFiles) ProcessKBFile(ctx context.Context, _ ingest.FileRequest) (*ingest.Output, error) {
	org, _ := multitenancy.GetOrgID(ctx)
	f.orgs = append(f.orgs, org)
	return &f.Output, nil
}
func (f *fakeFiles) ProcessUserFile(context.Context, ingest.FileRequest) (*ingest.Output, error) {
	return &f.Output, nil
}
func (f *fakeFiles) PurgeKBFile(context.Context, ingest.PurgeRequest) (*ingest.Output, error) {
	return &f.Output, nil
}
func (f *fakeFiles) PurgeUserFiles(context.Context, ingest.PurgeRequest) (*ingest.Output, error) {
	return &f.Output, nil
}

func newService(t *testing.T) (*Service, *fakeRunner, *memory.ConversationBuffer) {
	t.Helper()
	registry, err := agents.Load()
	require.NoError(t, err)
	hr, err := registry.Get("HRAgent")
	require.NoError(t, err)

	clock := func() time.Time { return time.Date(2026, 10, 16, 5, 41, 0, 0, time.UTC) }
	svc := New(WithClock(clock), WithLocation(time.FixedZone("GST", 4*60*60)), WithLogger(logging.NewNoop()))
	runner := &fakeRunner{}
	history := memory.NewConversationBuffer()
	require.NoError(t, svc.Register(&Agent{
		Profile:  hr,
		Workflow: runner,
		History:  history,
		Images:   fakeImages{},
		Topics:   fakeTopics{},
	}))
	return svc, runner, history
}

func TestInvoke(t *testing.T) {
	svc, runner, history := newService(t)
	ctx := context.Background()

	out, err := svc.Invoke(ctx, "hragent", "session-1", Input{
		Query:         "How many leave days do I get?",
		Username:      "jane.doe@example.com",
		ImageBlobURLs: []string{"https://blob/img.png", "missing"},
		WebSearch:     true,
		DocIDs:        []string{"doc-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "answer to How many leave days do I get?", out.Answer)
	assert.True(t, out.WebSearch)
	assert.Len(t, out.Context, 1)

	require.Len(t, runner.states, 1)
	state := runner.states[0]
	assert.Equal(t, "Jane Doe", state.Username)
	assert.Equal(t, "jane.doe@example.com", state.UserID)
	assert.Equal(t, "09:41 AM on 16th of October, 2026", state.Timestamp)
	assert.Len(t, state.Images, 1)
	assert.Equal(t, []string{"doc-1"}, state.DocIDs)
	assert.Equal(t, "HRAgent", runner.orgs[0])

	session := memory.Session{Agent: "HRAgent", UserID: "jane.doe@example.com", SessionID: "session-1"}
	msgs, err := history.Messages(ctx, session)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, interfaces.MessageRoleUser, msgs[0].Role)
	assert.Equal(t, "answer to How many leave days do I get?", msgs[1].Content)

	// the next turn sees the stored history and an empty context list
	out, err = svc.Invoke(ctx, "HRAgent", "session-1", Input{Query: "thanks", Username: "jane.doe@example.com"})
	require.NoError(t, err)
	assert.Len(t, runner.states[1].History, 2)
	assert.NotNil(t, out.Context)
}

func TestInvokeValidation(t *testing.T) {
	svc, runner, _ := newService(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		agent     string
		sessionID string
		in        Input
		target    error
	}{
		{"no username", "hragent", "s1", Input{Query: "hi"}, ErrBadRequest},
		{"username not an email", "hragent", "s1", Input{Query: "hi", Username: "jane"}, memory.ErrInvalidUserID},
		{"bad session", "hragent", "s 1", Input{Query: "hi", Username: "jane@example.com"}, memory.ErrInvalidSessionID},
		{"bad doc id", "hragent", "s1", Input{Query: "hi", Username: "jane@example.com", DocIDs: []string{"../x"}}, memory.ErrInvalidDocID},
		{"unknown agent", "nobody", "s1", Input{Query: "hi", Username: "jane@example.com"}, ErrUnknownAgent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Invoke(ctx, tt.agent, tt.sessionID, tt.in)
			assert.ErrorIs(t, err, tt.target)
		})
	}
	assert.Empty(t, runner.states)
}

func TestWorkflowErrorSkipsHistory(t *testing.T) {
	svc, runner, history := newService(t)
	runner.err = errors.New("graph failed")

	_, err := svc.Invoke(context.Background(), "hragent", "s1", Input{Query: "hi", Username: "jane@example.com"})
	require.Error(t, err)

	msgs, err := history.Messages(context.Background(), memory.Session{Agent: "HRAgent", UserID: "jane@example.com", SessionID: "s1"})
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestStreamAndBatch(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	rec := &events.Recorder{}
	out, err := svc.Stream(ctx, "hragent", "s1", Input{Query: "hi", Username: "jane@example.com"}, rec)
	require.NoError(t, err)
	assert.Equal(t, "answer to hi", out.Answer)
	assert.Len(t, rec.Named(events.FinalAnswer), 1)

	outs, err := svc.Batch(ctx, "hragent", "s2", []Input{
		{Query: "one", Username: "jane@example.com"},
		{Query: "two", Username: "jane@example.com"},
		{Query: "three", Username: "jane@example.com"},
	})
	require.NoError(t, err)
	require.Len(t, outs, 3)
	assert.Equal(t, "answer to one", outs[0].Answer)
	assert.Equal(t, "answer to three", outs[2].Answer)

	_, err = svc.Batch(ctx, "hragent", "s2", []Input{{Query: "one", Username: "jane@example.com"}, {Query: "two"}})
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestTopicAndFiles(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	topic, err := svc.TopicSummary(ctx, "hragent", "annual leave policy")
	require.NoError(t, err)
	assert.Equal(t, "HR Policy", topic)

	_, err = svc.ProcessKBFile(ctx, "hragent", ingest.FileRequest{})
	assert.ErrorIs(t, err, ErrNoFileSupport)

	a, err := svc.Agent("hragent")
	require.NoError(t, err)
	files := &fakeFiles{Output: ingest.Output{Message: map[string]interface{}{"detail": ingest.SuccessDetail}}}
	a.Files = files

	out, err := svc.ProcessKBFile(ctx, "hragent", ingest.FileRequest{Filename: "policy.pdf"})
	require.NoError(t, err)
	assert.Equal(t, ingest.SuccessDetail, out.Message["detail"])
	assert.Equal(t, []string{"HRAgent"}, files.orgs)

	_, err = svc.PurgeUserFiles(ctx, "hragent", ingest.PurgeRequest{UserID: "jane@example.com"})
	require.NoError(t, err)
}

func TestDisplayName(t *testing.T) {
	tests := map[string]string{
		"jane.doe@example.com":   "Jane Doe",
		"JOHN.SMITH@example.com": "John Smith",
		"jdoe@example.com":       "Jdo E",
		"not-an-email":           "not-an-email",
	}
	for in, want := range tests {
		assert.Equal(t, want, DisplayName(in), in)
	}
}
