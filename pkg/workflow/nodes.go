package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/tagus/enterprise-agents/pkg/chains"
	"github.com/tagus/enterprise-agents/pkg/events"
	"github.com/tagus/enterprise-agents/pkg/filegen"
	"github.com/tagus/enterprise-agents/pkg/interfaces"
	"github.com/tagus/enterprise-agents/pkg/memory"
	"github.com/tagus/enterprise-agents/pkg/sqlanalyst"
)

// ContextTypeSQL marks documents built from warehouse results
const ContextTypeSQL = "sql_search"

// ChartTypes are rendered for every SQL answer
var ChartTypes = []string{"bar", "line", "pie"}

const pdfAttempts = 2

func (w *Workflow) imageParsing(ctx context.Context, s State) (State, error) {
	s.EnterpriseContext = w.cfg.EnterpriseContext
	imageContext, err := w.deps.Chains.ExtractImageContext(ctx, s.input())
	if err != nil {
		return s, err
	}
	s.ImageContext = imageContext
	return s, nil
}

func (w *Workflow) generateSimple(ctx context.Context, s State) (State, error) {
	answer, err := w.deps.Chains.GenerateSimple(ctx, s.input())
	if err != nil {
		return s, err
	}
	s.Context = nil
	s.Answer = answer
	return s, nil
}

func (w *Workflow) requestRefinedQuery(ctx context.Context, s State) (State, error) {
	answer, err := w.deps.Chains.RequestRefinedQuery(ctx, s.input())
	if err != nil {
		return s, err
	}
	s.Context = nil
	s.Answer = answer
	return s, nil
}

func (w *Workflow) transformForRAG(ctx context.Context, s State) (State, error) {
	query, err := w.deps.Chains.RewriteForRAG(ctx, s.input())
	if err != nil {
		return s, err
	}
	s.RAGQuery = query
	return s, nil
}

func (w *Workflow) publicRetrieve(ctx context.Context, s State) (State, error) {
	docs, err := w.deps.Retriever.Public(ctx, s.RAGQuery, s.Gathered)
	if err != nil {
		return s, err
	}
	s.RAGContext = docs
	return s, nil
}

func (w *Workflow) docRetrieve(ctx context.Context, s State) (State, error) {
	docs, err := w.deps.Retriever.Documents(ctx, s.RAGQuery, s.DocIDs)
	if err != nil {
		return s, err
	}
	s.RAGContext = docs
	return s, nil
}

func (w *Workflow) gradeRAGDocs(ctx context.Context, s State) (State, error) {
	relevant, err := w.gradeDocuments(ctx, s.RAGQuery, s.RAGContext)
	if err != nil {
		return s, err
	}
	s.Context = append(s.Context, relevant...)
	return s, nil
}

func (w *Workflow) transformForWeb(ctx context.Context, s State) (State, error) {
	events.Dispatch(ctx, events.WebSearchTriggered, map[string]interface{}{"web_search": true})
	query, err := w.deps.Chains.RewriteForWebSearch(ctx, s.input())
	if err != nil {
		return s, err
	}
	s.WebQuery = query
	return s, nil
}

// webSearch never fails the run; a search outage leaves the web context empty
func (w *Workflow) webSearch(ctx context.Context, s State) (State, error) {
	docs, err := w.deps.Web.Documents(ctx, s.WebQuery)
	if err != nil {
		w.logger.Error(ctx, "Web search failed", map[string]interface{}{"error": err.Error()})
		docs = nil
	}
	s.WebContext = docs
	return s, nil
}

func (w *Workflow) gradeWebDocs(ctx context.Context, s State) (State, error) {
	relevant, err := w.gradeDocuments(ctx, s.WebQuery, s.WebContext)
	if err != nil {
		return s, err
	}
	s.Context = append(s.Context, relevant...)
	return s, nil
}

// gradeDocuments keeps the documents relevant to query, in their original
// order. A document whose grading trips the content filter is dropped.
func (w *Workflow) gradeDocuments(ctx context.Context, query string, docs []interfaces.Document) ([]interfaces.Document, error) {
	keep := make([]bool, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(GradingConcurrency)
	for i := range docs {
		g.Go(func() error {
			ok, err := w.deps.Chains.GradeRetrieval(gctx, query, docs[i].Content)
			if err != nil {
				if chains.IsContentFiltered(err) {
					return nil
				}
				return err
			}
			keep[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var relevant []interfaces.Document
	for i, d := range docs {
		if keep[i] {
			relevant = append(relevant, d)
		}
	}
	w.logger.Debug(ctx, "Documents graded", map[string]interface{}{"retrieved": len(docs), "relevant": len(relevant)})
	return relevant, nil
}

// sqlRetrieve asks the analyst for a statement and adds the rows to the
// context. Analyst turns are kept in their own history so follow-up
// questions can refer to earlier statements.
func (w *Workflow) sqlRetrieve(ctx context.Context, s State) (State, error) {
	events.Dispatch(ctx, events.SQLSearchTriggered, map[string]interface{}{"sql_search": true})

	query := s.Query + "\n\nEnsure datetime columns are provided first and its data is " +
		"sorted in ascending order, then any categorical data columns, " +
		"and finally any numerical data columns."

	session := s.session(w.cfg.Agent + "Analyst")
	history := s.History
	if w.deps.AnalystHistory != nil {
		stored, err := w.deps.AnalystHistory.Messages(ctx, session)
		if err != nil {
			w.logger.Warn(ctx, "Failed to load analyst history", map[string]interface{}{"error": err.Error()})
		} else {
			history = stored
		}
	}

	var doc interfaces.Document
	result, err := w.deps.SQL.Run(ctx, history, query)
	if err != nil {
		w.logger.Error(ctx, "SQL retrieval failed", map[string]interface{}{"error": err.Error()})
		result = &sqlanalyst.Result{
			HumanQuery: sqlanalyst.UninterpretedQuery,
			SQL:        sqlanalyst.PlaceholderSQL,
			SQLResult:  sqlanalyst.EmptyResult,
		}
		doc.Content = fmt.Sprintf("Given the human query: '%s', no possible interpretation was made for SQL querying. Kindly rephrase the human query.", s.Query)
	} else {
		doc.Content = fmt.Sprintf("Given the human query: '%s', the following interpretation of the query was given: "+
			"<<<\n%s\n>>>, the following SQL query was generated: <<<\n%s\n>>>, "+
			"and the following information was retrieved:\n\n%s.", s.Query, result.HumanQuery, result.SQL, result.SQLResult)
	}
	doc.Metadata = map[string]interface{}{
		"sql_request_id": result.RequestID,
		"human_query":    result.HumanQuery,
		"sql_query":      result.SQL,
		"sql_result":     result.SQLResult,
		"context_type":   ContextTypeSQL,
	}

	if w.deps.AnalystHistory != nil {
		turn, err := json.Marshal(sqlanalyst.Turn{Text: result.HumanQuery, SQL: result.SQL})
		if err != nil {
			return s, fmt.Errorf("failed to encode analyst turn: %w", err)
		}
		err = w.deps.AnalystHistory.AddMessages(ctx, session,
			interfaces.Message{Role: interfaces.MessageRoleUser, Content: s.Query},
			interfaces.Message{Role: interfaces.MessageRoleAssistant, Content: string(turn)},
		)
		if err != nil {
			w.logger.Warn(ctx, "Failed to store analyst history", map[string]interface{}{"error": err.Error()})
		}
	}

	s.Context = append(s.Context, doc)
	s.SQL = result
	s.SQLSearch = true
	return s, nil
}

// sqlChart renders every chart type for the SQL rows; failed charts are
// reported as null
func (w *Workflow) sqlChart(ctx context.Context, s State) (State, error) {
	if s.SQL == nil {
		return s, nil
	}
	charts := make(map[string]string)
	payload := make(map[string]interface{})
	for _, chartType := range ChartTypes {
		key := chartType + "_chart_blob_url"
		res := w.deps.Charts.Generate(ctx, s.SQL.SQLResult, chartType, s.UserID, s.SessionID)
		if !res.OK() {
			payload[key] = nil
			continue
		}
		charts[key] = res.BlobURL
		payload[key] = res.BlobURL
	}
	events.Dispatch(ctx, events.FinalCharts, map[string]interface{}{"sql_charts": payload})
	s.Charts = charts
	return s, nil
}

func (w *Workflow) generate(ctx context.Context, s State) (State, error) {
	s.NumGenerations++
	answer, err := w.deps.Chains.GenerateWithContext(ctx, s.input(), s.Context)
	if err != nil {
		return s, err
	}
	s.Answer = answer
	s.Filtered = answer == chains.ContentSafetyFallback
	return s, nil
}

func (w *Workflow) finalAnswer(ctx context.Context, s State) (State, error) {
	events.Dispatch(ctx, events.FinalContext, map[string]interface{}{"context": contextOrEmpty(s.Context)})
	chains.StreamWords(ctx, s.Answer)
	return s, nil
}

func contextOrEmpty(docs []interfaces.Document) []interfaces.Document {
	if docs == nil {
		return []interfaces.Document{}
	}
	return docs
}

func (w *Workflow) transformForImage(ctx context.Context, s State) (State, error) {
	events.Dispatch(ctx, events.ImageGenTriggered, map[string]interface{}{"image_generation": true})
	in := s.input()
	ack, err := w.deps.Chains.Assist(ctx, in, chains.StageReceived)
	if err != nil {
		return s, err
	}
	query, err := w.deps.Chains.RewriteForImage(ctx, in)
	if err != nil {
		return s, err
	}
	s.ImageQuery = query
	s.Context = nil
	s.Answer = ack
	return s, nil
}

func (w *Workflow) imageGeneration(ctx context.Context, s State) (State, error) {
	events.Dispatch(ctx, events.FinalContext, map[string]interface{}{"context": []interfaces.Document{}})

	res := w.deps.Images.Generate(ctx, s.ImageQuery, s.UserID, s.SessionID)
	var stage string
	var blobURL interface{}
	if res.OK() {
		stage = chains.StageSuccess(fmt.Sprintf("The image has been successfully generated using the revised prompt: '%s'", res.RevisedPrompt))
		blobURL = res.BlobURL
	} else {
		stage = chains.StageFailure(fmt.Sprintf("The image was not generated because: '%s'", res.Message))
	}

	events.Dispatch(ctx, events.FinalAnswer, map[string]interface{}{"image_generation_revised_prompt": res.RevisedPrompt})
	events.Dispatch(ctx, events.FinalAnswer, map[string]interface{}{"image_blob_url": blobURL})
	events.Dispatch(ctx, events.FinalAnswer, map[string]interface{}{"answer": "\n\n"})

	msg, err := w.deps.Chains.Assist(ctx, s.input(), stage)
	if err != nil {
		return s, err
	}
	s.Answer = s.Answer + "\n\n" + msg
	s.Context = nil

	if res.OK() {
		s.ImageBlobURL = res.BlobURL
		w.checkpoint(ctx, s, func(cp *memory.Checkpoint) { cp.RecordImage(res.BlobURL, res.RevisedPrompt) })
	}
	return s, nil
}

// pdfGeneration writes the document as HTML, renders it and names it. A
// failed render is retried once with a freshly written document.
func (w *Workflow) pdfGeneration(ctx context.Context, s State) (State, error) {
	events.Dispatch(ctx, events.FinalContext, map[string]interface{}{"context": []interfaces.Document{}})
	events.Dispatch(ctx, events.PDFGenTriggered, map[string]interface{}{"pdf_generation": true})

	in := s.input()
	ack, err := w.deps.Chains.Assist(ctx, in, chains.StageReceived)
	if err != nil {
		return s, err
	}

	var stage, filename, blobURL string
	for attempt := 1; attempt <= pdfAttempts; attempt++ {
		filename, blobURL, err = w.renderPDF(ctx, s, in)
		if err == nil {
			stage = chains.StageSuccess("The PDF file has been successfully generated.")
			break
		}
		w.logger.Error(ctx, "PDF generation failed", map[string]interface{}{"error": err.Error(), "attempt": attempt})
		stage = chains.StageFailure(fmt.Sprintf("The PDF file was not generated because: '%s'", err))
	}

	events.Dispatch(ctx, events.FinalAnswer, map[string]interface{}{"pdf_filename": nullable(filename)})
	events.Dispatch(ctx, events.FinalAnswer, map[string]interface{}{"pdf_blob_url": nullable(blobURL)})
	events.Dispatch(ctx, events.FinalAnswer, map[string]interface{}{"answer": "\n\n"})

	msg, err := w.deps.Chains.Assist(ctx, in, stage)
	if err != nil {
		return s, err
	}
	s.Answer = ack + "\n\n" + msg
	s.Context = nil

	if blobURL != "" {
		s.PDFBlobURL = blobURL
		s.PDFFilename = filename
		w.checkpoint(ctx, s, func(cp *memory.Checkpoint) { cp.RecordPDF(filename, blobURL) })
	}
	return s, nil
}

func (w *Workflow) renderPDF(ctx context.Context, s State, in chains.Input) (string, string, error) {
	html, err := w.deps.Chains.WriteHTML(ctx, in)
	if err != nil {
		return "", "", err
	}
	res := w.deps.PDF.Generate(ctx, html, s.UserID, s.SessionID)
	if !res.OK() {
		return "", "", fmt.Errorf("%s", res.Message)
	}
	name, err := w.deps.Chains.FilenameFromHTML(ctx, in, html)
	if err != nil {
		w.logger.Warn(ctx, "Failed to name PDF", map[string]interface{}{"error": err.Error()})
		name = "document"
	}
	return name + ".pdf", res.BlobURL, nil
}

// docxGeneration drafts the scope of work and renders it as a Word file
func (w *Workflow) docxGeneration(ctx context.Context, s State) (State, error) {
	events.Dispatch(ctx, events.FinalContext, map[string]interface{}{"context": []interfaces.Document{}})
	events.Dispatch(ctx, events.DocGenTriggered, map[string]interface{}{"doc_generation": true})

	in := s.input()
	ack, err := w.deps.Chains.Assist(ctx, in, chains.StageReceived)
	if err != nil {
		return s, err
	}

	var stage, filename, blobURL string
	draft, err := w.draft(ctx, s, in)
	if err != nil {
		w.logger.Error(ctx, "Document drafting failed", map[string]interface{}{"error": err.Error()})
		stage = chains.StageFailure(fmt.Sprintf("The document was not generated because: '%s'", filegen.DocxFailedMessage))
	} else {
		doc := filegen.Document{Title: draft.Title}
		for _, sec := range draft.Sections {
			doc.Sections = append(doc.Sections, filegen.Section{Heading: sec.Heading, Body: sec.Body})
		}
		res := w.deps.Docx.Generate(ctx, doc, s.UserID, s.SessionID)
		if res.OK() {
			blobURL = res.BlobURL
			filename = chains.SanitizeFilename(draft.Title) + ".docx"
			stage = chains.StageSuccess("The Word document has been successfully generated.")
		} else {
			stage = chains.StageFailure(fmt.Sprintf("The document was not generated because: '%s'", res.Message))
		}
	}

	events.Dispatch(ctx, events.FinalAnswer, map[string]interface{}{"docx_filename": nullable(filename)})
	events.Dispatch(ctx, events.FinalAnswer, map[string]interface{}{"docx_blob_url": nullable(blobURL)})
	events.Dispatch(ctx, events.FinalAnswer, map[string]interface{}{"answer": "\n\n"})

	msg, err := w.deps.Chains.Assist(ctx, in, stage)
	if err != nil {
		return s, err
	}
	s.Answer = ack + "\n\n" + msg
	s.Context = nil
	s.DocxBlobURL = blobURL
	s.DocxFilename = filename
	if blobURL != "" {
		w.checkpoint(ctx, s, func(cp *memory.Checkpoint) { cp.RecordSoW(filename, blobURL) })
	}
	return s, nil
}

// draft uses the gathered consultancy sections when there are any
func (w *Workflow) draft(ctx context.Context, s State, in chains.Input) (*chains.DocumentDraft, error) {
	if s.SoWDetails == nil {
		return w.deps.Chains.DraftDocument(ctx, in)
	}
	return &chains.DocumentDraft{
		Title:    "Scope of Work " + s.SoWType,
		Sections: s.SoWDetails.Sections(),
	}, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// checkpoint failures are logged; the file has already been delivered
func (w *Workflow) checkpoint(ctx context.Context, s State, fn func(*memory.Checkpoint)) {
	if w.deps.Checkpoints == nil {
		return
	}
	if err := memory.Update(ctx, w.deps.Checkpoints, s.session(w.cfg.Agent), fn); err != nil {
		w.logger.Error(ctx, "Failed to update checkpoint", map[string]interface{}{"error": err.Error()})
	}
}
