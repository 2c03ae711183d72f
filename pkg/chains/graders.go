package chains

import (
	"context"
	"fmt"

	"github.com/tagus/enterprise-agents/pkg/interfaces"
	"github.com/tagus/enterprise-agents/pkg/structuredoutput"
)

// BinaryScore is the structured output of every grader
type BinaryScore struct {
	BinaryScore string `json:"binary_score" description:"Binary score, 'yes' or 'no'" enum:"yes,no"`
}

// Yes reports whether the grade is positive
func (s BinaryScore) Yes() bool {
	return s.BinaryScore == "yes"
}

var (
	moderationFormat    = namedFormat("GradeModeration")
	retrievalFormat     = namedFormat("GradeDocuments")
	hallucinationFormat = namedFormat("GradeHallucinations")
	answerFormat        = namedFormat("GradeAnswer")
)

func namedFormat(name string) *interfaces.ResponseFormat {
	f := structuredoutput.NewResponseFormat(BinaryScore{})
	f.Name = name
	return f
}

func (c *Chains) grade(ctx context.Context, format *interfaces.ResponseFormat, system, human string, history []interfaces.Message) (bool, error) {
	var score BinaryScore
	if err := c.structured(ctx, graderProfile, system, human, history, format, &score); err != nil {
		return false, err
	}
	c.logger.Debug(ctx, "Grade", map[string]interface{}{"grader": format.Name, "score": score.BinaryScore})
	return score.Yes(), nil
}

// Moderate reports whether the latest query is proper
func (c *Chains) Moderate(ctx context.Context, in Input) (bool, error) {
	vars := in.vars()
	ok, err := c.grade(ctx, moderationFormat, Render(moderatorPrompt, vars), Render(queryImageTurn, vars), in.History)
	if err != nil {
		return false, fmt.Errorf("moderation: %w", err)
	}
	return ok, nil
}

// GradeRetrieval reports whether document is relevant to query
func (c *Chains) GradeRetrieval(ctx context.Context, query, document string) (bool, error) {
	human := Render(retrievalGradeTurn, Vars{"query": query, "document": document})
	ok, err := c.grade(ctx, retrievalFormat, retrievalGraderPrompt, human, nil)
	if err != nil {
		return false, fmt.Errorf("retrieval grading: %w", err)
	}
	return ok, nil
}

// GradeHallucination reports whether generation is grounded in the context
func (c *Chains) GradeHallucination(ctx context.Context, in Input, docs []interfaces.Document, generation string) (bool, error) {
	vars := in.vars()
	vars["context"] = FormatDocuments(docs)
	vars["generation"] = generation
	ok, err := c.grade(ctx, hallucinationFormat, Render(hallucinationGraderPrompt, vars), Render(gradeGenerationTurn, vars), in.History)
	if err != nil {
		return false, fmt.Errorf("hallucination grading: %w", err)
	}
	return ok, nil
}

// GradeAnswer reports whether generation resolves the query
func (c *Chains) GradeAnswer(ctx context.Context, in Input, docs []interfaces.Document, generation string) (bool, error) {
	vars := in.vars()
	vars["context"] = FormatDocuments(docs)
	vars["generation"] = generation
	ok, err := c.grade(ctx, answerFormat, Render(answerGraderPrompt, vars), Render(gradeGenerationTurn, vars), in.History)
	if err != nil {
		return false, fmt.Errorf("answer grading: %w", err)
	}
	return ok, nil
}
