package workflow

import (
	"context"

	"github.com/tagus/enterprise-agents/pkg/chains"
)

// queryRouter moderates the query, summarises any documents the user
// referenced and classifies the query into one of the enabled routes
func (w *Workflow) queryRouter(ctx context.Context, s State) (string, error) {
	if label, err := w.moderate(ctx, s); label != "" || err != nil {
		return label, err
	}
	return w.classify(ctx, s)
}

// moderationRouter sends an acceptable query to the information gatherer
func (w *Workflow) moderationRouter(ctx context.Context, s State) (string, error) {
	if label, err := w.moderate(ctx, s); label != "" || err != nil {
		return label, err
	}
	return LabelGather, nil
}

// gatheredRouter asks for the missing detail, or classifies once it is known
func (w *Workflow) gatheredRouter(ctx context.Context, s State) (string, error) {
	if s.Gathered == "" {
		return LabelRequestData, nil
	}
	return w.classify(ctx, s)
}

// moderate returns LabelRefine for a query that must be rephrased, or ""
func (w *Workflow) moderate(ctx context.Context, s State) (string, error) {
	ok, err := w.deps.Chains.Moderate(ctx, s.input())
	if err != nil {
		if chains.IsContentFiltered(err) {
			return LabelRefine, nil
		}
		return "", err
	}
	if !ok {
		w.logger.Info(ctx, "Query requires moderation", nil)
		return LabelRefine, nil
	}
	return "", nil
}

func (w *Workflow) classify(ctx context.Context, s State) (string, error) {
	in := s.input()
	summary := chains.NoSharedDocuments
	if len(s.DocIDs) > 0 && w.deps.Retriever != nil {
		var err error
		summary, err = w.summarizeSharedDocuments(ctx, in, s.DocIDs)
		if err != nil {
			return "", err
		}
	}

	route, err := w.deps.Chains.Classify(ctx, in, summary, w.Routes())
	if err != nil {
		if chains.IsContentFiltered(err) {
			return LabelRefine, nil
		}
		return "", err
	}
	return w.label(route, s.WebSearch), nil
}

func (w *Workflow) summarizeSharedDocuments(ctx context.Context, in chains.Input, docIDs []string) (string, error) {
	query, err := w.deps.Chains.RewriteForRAG(ctx, in)
	if err != nil {
		return "", err
	}
	docs, err := w.deps.Retriever.Documents(ctx, query, docIDs)
	if err != nil {
		return "", err
	}
	return w.deps.Chains.SummarizeDocuments(ctx, docs)
}

// label maps a classified route onto an edge label. Web search is only taken
// when the request enabled it; otherwise a simple answer is given.
func (w *Workflow) label(route chains.Route, webSearch bool) string {
	if !w.routes[route] {
		return LabelSimple
	}
	switch route {
	case chains.RouteRAG:
		return LabelRAG
	case chains.RouteWebSearch:
		if webSearch {
			return LabelWeb
		}
		return LabelSimple
	case chains.RouteSQL:
		return LabelSQL
	case chains.RouteImageGen:
		return LabelImage
	case chains.RoutePDFGen:
		return LabelPDF
	case chains.RouteSoWDoc:
		return LabelDocument
	}
	return LabelSimple
}

func ragRouter(_ context.Context, s State) (string, error) {
	if len(s.DocIDs) > 0 {
		return LabelDocs, nil
	}
	return LabelPublic, nil
}

func decideToSearchWeb(_ context.Context, s State) (string, error) {
	if s.WebSearch {
		return LabelWebNeeded, nil
	}
	return LabelNoWeb, nil
}

// decideHowToRespond grades the latest generation for grounding and
// usefulness, giving up after MaxGenerations attempts
func (w *Workflow) decideHowToRespond(ctx context.Context, s State) (string, error) {
	if s.Filtered {
		return LabelFiltered, nil
	}
	if s.NumGenerations >= MaxGenerations {
		w.logger.Info(ctx, "Could not generate a useful answer, requesting refined query", map[string]interface{}{"generations": s.NumGenerations})
		return LabelRefine, nil
	}

	in := s.input()
	grounded, err := w.deps.Chains.GradeHallucination(ctx, in, s.Context, s.Answer)
	if err != nil {
		if chains.IsContentFiltered(err) {
			return LabelRefine, nil
		}
		return "", err
	}
	if !grounded {
		w.logger.Info(ctx, "Generation is not grounded in the context, retrying", nil)
		return LabelNotGround, nil
	}

	useful, err := w.deps.Chains.GradeAnswer(ctx, in, s.Context, s.Answer)
	if err != nil {
		if chains.IsContentFiltered(err) {
			return LabelRefine, nil
		}
		return "", err
	}
	if !useful {
		return LabelNotUseful, nil
	}
	return LabelUseful, nil
}

func sowTypeRouter(_ context.Context, s State) (string, error) {
	switch s.SoWType {
	case "":
		return LabelRequestSoWType, nil
	case chains.SoWConsultancy:
		return LabelSoWDetails, nil
	}
	return LabelGenerateSoW, nil
}

func sowDetailsRouter(_ context.Context, s State) (string, error) {
	if s.SoWDetails == nil {
		return LabelRequestSoWDetails, nil
	}
	return LabelGenerateSoW, nil
}
