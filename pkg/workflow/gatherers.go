package workflow

import (
	"context"

	"github.com/tagus/enterprise-agents/pkg/memory"
)

// gatherInformation collects the configured detail. When it cannot be
// discerned the gatherer's question becomes the answer.
func (w *Workflow) gatherInformation(ctx context.Context, s State) (State, error) {
	got, err := w.deps.Chains.GatherInfo(ctx, s.input(), *w.cfg.Gather)
	if err != nil {
		return s, err
	}
	s.Gathered = got.Value
	if !got.Done() {
		s.Context = nil
		s.Answer = got.Reply
	}
	return s, nil
}

// gatherSoWType settles the scope of work type over several turns. The type
// is kept in the session checkpoint until the document is generated.
func (w *Workflow) gatherSoWType(ctx context.Context, s State) (State, error) {
	got, err := w.deps.Chains.GatherSoWType(ctx, s.input())
	if err != nil {
		return s, err
	}
	if got.Done() {
		s.SoWType = got.Value
		w.checkpoint(ctx, s, func(cp *memory.Checkpoint) { cp.PendingSoWType = got.Value })
		return s, nil
	}

	if pending := w.pendingSoWType(ctx, s); pending != "" {
		s.SoWType = pending
		return s, nil
	}
	s.Context = nil
	s.Answer = got.Reply
	return s, nil
}

func (w *Workflow) pendingSoWType(ctx context.Context, s State) string {
	if w.deps.Checkpoints == nil {
		return ""
	}
	cp, err := w.deps.Checkpoints.Load(ctx, s.session(w.cfg.Agent))
	if err != nil {
		w.logger.Warn(ctx, "Failed to load checkpoint", map[string]interface{}{"error": err.Error()})
		return ""
	}
	return cp.PendingSoWType
}

func (w *Workflow) gatherSoWDetails(ctx context.Context, s State) (State, error) {
	details, reply, err := w.deps.Chains.GatherSoWDetails(ctx, s.input())
	if err != nil {
		return s, err
	}
	s.SoWDetails = details
	if details == nil {
		s.Context = nil
		s.Answer = reply
	}
	return s, nil
}
