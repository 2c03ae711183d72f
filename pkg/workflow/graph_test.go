package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/smallnest/langgraphgo/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func count(_ context.Context, s State) (State, error) {
	s.NumGenerations++
	return s, nil
}

func invoke(t *testing.T, b *builder, ctx context.Context) (State, error) {
	t.Helper()
	r, err := b.compile()
	require.NoError(t, err)
	ctx, inv := newInvocation(ctx)
	out, err := r.Invoke(ctx, State{})
	if failed := inv.failure(); failed != nil {
		return out, failed
	}
	return out, err
}

func TestRecursionLimit(t *testing.T) {
	loop := func() *builder {
		return newBuilder(Hooks{}).
			node("loop", "counts", count).
			route("loop", func(context.Context, State) (string, error) { return "again", nil },
				map[string]string{"again": "loop"}).
			entry("loop")
	}

	_, err := invoke(t, loop(), context.Background())
	assert.ErrorIs(t, err, ErrRecursionLimit)

	_, err = invoke(t, loop(), ContextWithRecursionLimit(context.Background(), 2))
	require.ErrorIs(t, err, ErrRecursionLimit)
	assert.Contains(t, err.Error(), "2 steps")
}

func TestRouteFailures(t *testing.T) {
	t.Run("unknown label", func(t *testing.T) {
		b := newBuilder(Hooks{}).
			node("a", "counts", count).
			route("a", func(context.Context, State) (string, error) { return "nowhere", nil },
				map[string]string{"end": graph.END}).
			entry("a")
		_, err := invoke(t, b, context.Background())
		assert.ErrorIs(t, err, ErrUnknownRoute)
	})

	t.Run("router error", func(t *testing.T) {
		boom := errors.New("boom")
		b := newBuilder(Hooks{}).
			node("a", "counts", count).
			route("a", func(context.Context, State) (string, error) { return "", boom },
				map[string]string{"end": graph.END}).
			entry("a")
		_, err := invoke(t, b, context.Background())
		assert.ErrorIs(t, err, boom)
	})
}

func TestNodeErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	b := newBuilder(Hooks{}).
		node("a", "fails", func(_ context.Context, s State) (State, error) { return s, boom }).
		edge("a", graph.END).
		entry("a")
	_, err := invoke(t, b, context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "node a")
}

func TestCancelledContext(t *testing.T) {
	b := newBuilder(Hooks{}).node("a", "counts", count).edge("a", graph.END).entry("a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := invoke(t, b, ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHooks(t *testing.T) {
	var before, after, routes []string
	hooks := Hooks{
		BeforeNode: func(ctx context.Context, node string) context.Context {
			before = append(before, node)
			return ctx
		},
		AfterNode: func(_ context.Context, node string, _ error) {
			after = append(after, node)
		},
		OnRoute: func(_ context.Context, from, label, to string) {
			routes = append(routes, from+":"+label+":"+to)
		},
	}
	b := newBuilder(hooks).
		node("a", "counts", count).
		node("b", "counts", count).
		route("a", func(context.Context, State) (string, error) { return "next", nil },
			map[string]string{"next": "b"}).
		edge("b", graph.END).
		entry("a")

	out, err := invoke(t, b, context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, out.NumGenerations)
	assert.Equal(t, []string{"a", "b"}, before)
	assert.Equal(t, []string{"a", "b"}, after)
	assert.Equal(t, []string{"a:next:b"}, routes)
}

func TestChainHooks(t *testing.T) {
	type key struct{}
	var calls []string
	first := Hooks{
		BeforeNode: func(ctx context.Context, _ string) context.Context {
			calls = append(calls, "first.before")
			return context.WithValue(ctx, key{}, "span")
		},
		AfterNode: func(context.Context, string, error) {
			calls = append(calls, "first.after")
		},
	}
	second := Hooks{
		BeforeNode: func(ctx context.Context, _ string) context.Context {
			assert.Equal(t, "span", ctx.Value(key{}))
			calls = append(calls, "second.before")
			return ctx
		},
		AfterNode: func(context.Context, string, error) {
			calls = append(calls, "second.after")
		},
	}

	b := newBuilder(ChainHooks(first, second)).node("a", "counts", count).edge("a", graph.END).entry("a")
	_, err := invoke(t, b, context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"first.before", "second.before", "second.after", "first.after"}, calls)
}
