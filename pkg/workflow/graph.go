package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/smallnest/langgraphgo/graph"
)

// DefaultRecursionLimit bounds the nodes executed by one run
const DefaultRecursionLimit = 50

var (
	// ErrRecursionLimit is returned when a run executes more nodes than its limit
	ErrRecursionLimit = errors.New("workflow: recursion limit reached")
	// ErrUnknownRoute is returned when a router picks a label with no target
	ErrUnknownRoute = errors.New("workflow: unknown route")
)

// Hooks observe node execution. BeforeNode may return a derived context
// (e.g. carrying a span) that is passed to the node and AfterNode.
type Hooks struct {
	BeforeNode func(ctx context.Context, node string) context.Context
	AfterNode  func(ctx context.Context, node string, err error)
	OnRoute    func(ctx context.Context, from, label, to string)
}

// ChainHooks runs several hook sets in order. Contexts returned by
// BeforeNode are threaded through.
func ChainHooks(all ...Hooks) Hooks {
	return Hooks{
		BeforeNode: func(ctx context.Context, node string) context.Context {
			for _, h := range all {
				if h.BeforeNode != nil {
					ctx = h.BeforeNode(ctx, node)
				}
			}
			return ctx
		},
		AfterNode: func(ctx context.Context, node string, err error) {
			for i := len(all) - 1; i >= 0; i-- {
				if all[i].AfterNode != nil {
					all[i].AfterNode(ctx, node, err)
				}
			}
		},
		OnRoute: func(ctx context.Context, from, label, to string) {
			for _, h := range all {
				if h.OnRoute != nil {
					h.OnRoute(ctx, from, label, to)
				}
			}
		},
	}
}

type limitKey struct{}

// ContextWithRecursionLimit overrides DefaultRecursionLimit for one run
func ContextWithRecursionLimit(ctx context.Context, limit int) context.Context {
	return context.WithValue(ctx, limitKey{}, limit)
}

// NodeFunc updates the state
type NodeFunc func(ctx context.Context, s State) (State, error)

// RouterFunc picks the label of the next edge
type RouterFunc func(ctx context.Context, s State) (string, error)

// invocation is the bookkeeping of one Run: the step count and the first
// routing failure, which langgraphgo routers cannot return themselves
type invocation struct {
	mu    sync.Mutex
	limit int
	steps int
	err   error
}

type invocationKey struct{}

func newInvocation(ctx context.Context) (context.Context, *invocation) {
	inv := &invocation{limit: DefaultRecursionLimit}
	if v, ok := ctx.Value(limitKey{}).(int); ok && v > 0 {
		inv.limit = v
	}
	return context.WithValue(ctx, invocationKey{}, inv), inv
}

func invocationFrom(ctx context.Context) *invocation {
	inv, _ := ctx.Value(invocationKey{}).(*invocation)
	return inv
}

func (inv *invocation) step(node string) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.err != nil {
		return inv.err
	}
	inv.steps++
	if inv.steps > inv.limit {
		inv.err = fmt.Errorf("%w: %d steps without reaching the end (at %s)", ErrRecursionLimit, inv.limit, node)
		return inv.err
	}
	return nil
}

func (inv *invocation) fail(err error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.err == nil {
		inv.err = err
	}
}

func (inv *invocation) failure() error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.err
}

// builder adds hooked nodes and label-mapped routers to a langgraphgo graph
type builder struct {
	g     *graph.StateGraph[State]
	hooks Hooks
}

func newBuilder(hooks Hooks) *builder {
	return &builder{g: graph.NewStateGraph[State](), hooks: hooks}
}

func (b *builder) node(name, description string, fn NodeFunc) *builder {
	b.g.AddNode(name, description, func(ctx context.Context, s State) (State, error) {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		if inv := invocationFrom(ctx); inv != nil {
			if err := inv.step(name); err != nil {
				return s, err
			}
		}

		nodeCtx := ctx
		if b.hooks.BeforeNode != nil {
			nodeCtx = b.hooks.BeforeNode(ctx, name)
		}
		out, err := fn(nodeCtx, s)
		if b.hooks.AfterNode != nil {
			b.hooks.AfterNode(nodeCtx, name, err)
		}
		if err != nil {
			return s, fmt.Errorf("node %s: %w", name, err)
		}
		return out, nil
	})
	return b
}

func (b *builder) edge(from, to string) *builder {
	b.g.AddEdge(from, to)
	return b
}

// route maps the router's label through paths. A router error or an unmapped
// label ends the graph and is reported by Run.
func (b *builder) route(from string, router RouterFunc, paths map[string]string) *builder {
	b.g.AddConditionalEdge(from, func(ctx context.Context, s State) string {
		label, err := router(ctx, s)
		if err != nil {
			return abort(ctx, fmt.Errorf("router after %s: %w", from, err))
		}
		to, ok := paths[label]
		if !ok {
			return abort(ctx, fmt.Errorf("%w: %q after node %s", ErrUnknownRoute, label, from))
		}
		if b.hooks.OnRoute != nil {
			b.hooks.OnRoute(ctx, from, label, to)
		}
		return to
	})
	return b
}

func (b *builder) entry(name string) *builder {
	b.g.SetEntryPoint(name)
	return b
}

func (b *builder) compile() (*graph.StateRunnable[State], error) {
	return b.g.Compile()
}

func abort(ctx context.Context, err error) string {
	if inv := invocationFrom(ctx); inv != nil {
		inv.fail(err)
	}
	return graph.END
}
