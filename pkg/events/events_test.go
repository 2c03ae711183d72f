package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchWithoutSink(t *testing.T) {
	assert.NotPanics(t, func() {
		Dispatch(context.Background(), FinalAnswer, map[string]interface{}{"answer": "x"})
	})
}

func TestRecorder(t *testing.T) {
	rec := &Recorder{}
	ctx := WithSink(context.Background(), rec)

	Dispatch(ctx, WebSearchTriggered, map[string]interface{}{"web_search": "Searching the web..."})
	Dispatch(ctx, FinalAnswer, map[string]interface{}{"answer": "Hello "})
	Dispatch(ctx, FinalAnswer, map[string]interface{}{"answer": "world"})

	require.Len(t, rec.Events(), 3)
	answers := rec.Named(FinalAnswer)
	require.Len(t, answers, 2)
	assert.Equal(t, "world", answers[1].Data["answer"])
	assert.False(t, answers[0].Timestamp.IsZero())
}

func TestChannelSinkStopsOnCancel(t *testing.T) {
	sink := NewChannelSink(1)
	ctx, cancel := context.WithCancel(context.Background())
	ctx = WithSink(ctx, sink)

	Dispatch(ctx, FinalAnswer, map[string]interface{}{"answer": "a"})
	cancel()

	done := make(chan struct{})
	go func() {
		Dispatch(ctx, FinalAnswer, map[string]interface{}{"answer": "b"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatch blocked after cancellation")
	}
	assert.Equal(t, "a", (<-sink.C).Data["answer"])
}

func TestSinkFunc(t *testing.T) {
	var got string
	ctx := WithSink(context.Background(), SinkFunc(func(_ context.Context, e Event) { got = e.Name }))
	Dispatch(ctx, ImageGenTriggered, nil)
	assert.Equal(t, ImageGenTriggered, got)
}
