// Package workflow assembles the per-agent query routing and RAG graph.
package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallnest/langgraphgo/graph"

	"github.com/tagus/enterprise-agents/pkg/chains"
	"github.com/tagus/enterprise-agents/pkg/filegen"
	"github.com/tagus/enterprise-agents/pkg/interfaces"
	"github.com/tagus/enterprise-agents/pkg/logging"
	"github.com/tagus/enterprise-agents/pkg/memory"
	"github.com/tagus/enterprise-agents/pkg/sqlanalyst"
)

// Node names
const (
	NodeImageParsing        = "image_parsing"
	NodeGenerateSimple      = "generate_simple"
	NodeRequestRefinedQuery = "request_refined_query"
	NodeTransformForRAG     = "transform_query_for_rag"
	NodePublicRetrieve      = "public_retrieve"
	NodeDocRetrieve         = "doc_retrieve"
	NodeGradeRAGDocs        = "grade_rag_docs"
	NodeTransformForWeb     = "transform_query_for_web_search"
	NodeWebSearch           = "web_search"
	NodeGradeWebDocs        = "grade_web_docs"
	NodeSQLRetrieve         = "sql_retrieve"
	NodeSQLChart            = "sql_chart"
	NodeGenerate            = "generate"
	NodeFinalAnswer         = "final_answer"
	NodeTransformForImage   = "transform_query_for_image_gen"
	NodeImageGeneration     = "image_generation"
	NodePDFGeneration       = "pdf_generation"
	NodeDocxGeneration      = "docx_generation"
	NodeGatherInformation   = "gather_information"
	NodeGatherSoWType       = "gather_sow_type"
	NodeGatherSoWDetails    = "gather_sow_details"
)

// Router labels
const (
	LabelRefine    = "need refined query"
	LabelRAG       = "retrieval augmented"
	LabelImage     = "image generation"
	LabelPDF       = "pdf generation"
	LabelWeb       = "web search retrieval"
	LabelSQL       = "sql retrieval"
	LabelDocument  = "document generation"
	LabelSimple    = "generate simple answer"
	LabelPublic    = "public retrieval"
	LabelDocs      = "doc retrieval"
	LabelWebNeeded = "web search needed"
	LabelNoWeb     = "no web search"
	LabelUseful    = "useful"
	LabelNotUseful = "not useful"
	LabelNotGround = "not supported"
	LabelFiltered  = "content filtered"

	LabelGather            = "gather information"
	LabelRequestData       = "request data"
	LabelRequestSoWType    = "request SoW type"
	LabelSoWDetails        = "gather SoW details"
	LabelRequestSoWDetails = "request SoW details"
	LabelGenerateSoW       = "generate SoW"
)

// MaxGenerations is the number of context answers tried before asking the
// user to rephrase
const MaxGenerations = 3

// GradingConcurrency bounds parallel document grading
const GradingConcurrency = 4

// ErrMissingDependency is returned when a route is enabled without the
// component it needs
var ErrMissingDependency = errors.New("workflow: missing dependency")

// Chains are the LLM calls made by the nodes and routers
type Chains interface {
	Moderate(ctx context.Context, in chains.Input) (bool, error)
	Classify(ctx context.Context, in chains.Input, summaryDocs string, routes []chains.Route) (chains.Route, error)
	RewriteForRAG(ctx context.Context, in chains.Input) (string, error)
	RewriteForWebSearch(ctx context.Context, in chains.Input) (string, error)
	RewriteForImage(ctx context.Context, in chains.Input) (string, error)
	SummarizeDocuments(ctx context.Context, docs []interfaces.Document) (string, error)
	GradeRetrieval(ctx context.Context, query, document string) (bool, error)
	GradeHallucination(ctx context.Context, in chains.Input, docs []interfaces.Document, generation string) (bool, error)
	GradeAnswer(ctx context.Context, in chains.Input, docs []interfaces.Document, generation string) (bool, error)
	GenerateSimple(ctx context.Context, in chains.Input) (string, error)
	RequestRefinedQuery(ctx context.Context, in chains.Input) (string, error)
	GenerateWithContext(ctx context.Context, in chains.Input, docs []interfaces.Document) (string, error)
	ExtractImageContext(ctx context.Context, in chains.Input) (string, error)
	Assist(ctx context.Context, in chains.Input, stage string) (string, error)
	WriteHTML(ctx context.Context, in chains.Input) (string, error)
	FilenameFromHTML(ctx context.Context, in chains.Input, html string) (string, error)
	DraftDocument(ctx context.Context, in chains.Input) (*chains.DocumentDraft, error)
	GatherInfo(ctx context.Context, in chains.Input, spec chains.GatherSpec) (chains.Gathered, error)
	GatherSoWType(ctx context.Context, in chains.Input) (chains.Gathered, error)
	GatherSoWDetails(ctx context.Context, in chains.Input) (*chains.SoWDetails, string, error)
}

// Retriever searches the agent's knowledge base
type Retriever interface {
	// Public searches the public documents, narrowed to file names
	// containing scope when it is set
	Public(ctx context.Context, query, scope string) ([]interfaces.Document, error)
	Documents(ctx context.Context, query string, docIDs []string) ([]interfaces.Document, error)
}

// WebSearcher turns web results into documents
type WebSearcher interface {
	Documents(ctx context.Context, query string) ([]interfaces.Document, error)
}

// SQLRunner answers a query from the warehouse
type SQLRunner interface {
	Run(ctx context.Context, history []interfaces.Message, query string) (*sqlanalyst.Result, error)
}

// ImageTool generates and stores images
type ImageTool interface {
	Generate(ctx context.Context, prompt, userID, sessionID string) filegen.Result
}

// PDFTool renders HTML to PDF and stores it
type PDFTool interface {
	Generate(ctx context.Context, html, userID, sessionID string) filegen.Result
}

// DocxTool renders Word documents and stores them
type DocxTool interface {
	Generate(ctx context.Context, doc filegen.Document, userID, sessionID string) filegen.Result
}

// ChartTool renders SQL results as charts
type ChartTool interface {
	Generate(ctx context.Context, sqlResult, chartType, userID, sessionID string) filegen.Result
}

// Config describes one agent's graph
type Config struct {
	Agent             string
	EnterpriseContext string
	// Routes the classifier may choose from; the nodes behind each are added
	Routes []chains.Route
	// Gather, when set, is collected from the conversation before the query
	// is classified. The value scopes public retrieval.
	Gather *chains.GatherSpec
}

// Deps are the components the nodes call. Only Chains is always required.
type Deps struct {
	Chains         Chains
	Retriever      Retriever
	Web            WebSearcher
	SQL            SQLRunner
	Images         ImageTool
	PDF            PDFTool
	Docx           DocxTool
	Charts         ChartTool
	Checkpoints    memory.Checkpointer
	AnalystHistory memory.History
}

// Workflow is a compiled agent graph
type Workflow struct {
	cfg      Config
	deps     Deps
	routes   map[chains.Route]bool
	runnable *graph.StateRunnable[State]
	logger   logging.Logger
}

// Option configures a Workflow
type Option func(*options)

type options struct {
	logger logging.Logger
	hooks  Hooks
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithHooks observes node execution, e.g. for tracing and metrics
func WithHooks(hooks Hooks) Option {
	return func(o *options) {
		o.hooks = hooks
	}
}

// New builds and compiles the graph for cfg
func New(cfg Config, deps Deps, opts ...Option) (*Workflow, error) {
	o := &options{logger: logging.New()}
	for _, opt := range opts {
		opt(o)
	}
	if deps.Chains == nil {
		return nil, fmt.Errorf("%w: chains", ErrMissingDependency)
	}

	w := &Workflow{cfg: cfg, deps: deps, routes: make(map[chains.Route]bool), logger: o.logger}
	for _, r := range cfg.Routes {
		w.routes[r] = true
	}
	w.routes[chains.RouteSimple] = true
	if err := w.checkDeps(); err != nil {
		return nil, err
	}

	runnable, err := w.build(o.hooks).compile()
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s graph: %w", cfg.Agent, err)
	}
	w.runnable = runnable
	return w, nil
}

func (w *Workflow) checkDeps() error {
	need := map[chains.Route]bool{
		chains.RouteRAG:       w.deps.Retriever != nil,
		chains.RouteWebSearch: w.deps.Web != nil,
		chains.RouteSQL:       w.deps.SQL != nil,
		chains.RouteImageGen:  w.deps.Images != nil,
		chains.RoutePDFGen:    w.deps.PDF != nil,
		chains.RouteSoWDoc:    w.deps.Docx != nil,
	}
	for route, ok := range need {
		if w.routes[route] && !ok {
			return fmt.Errorf("%w: route %s", ErrMissingDependency, route)
		}
	}
	return nil
}

// Routes returns the enabled routes in classifier order
func (w *Workflow) Routes() []chains.Route {
	var out []chains.Route
	for _, r := range chains.AllRoutes {
		if w.routes[r] {
			out = append(out, r)
		}
	}
	return out
}

func (w *Workflow) build(hooks Hooks) *builder {
	b := newBuilder(hooks)
	routerPaths := map[string]string{
		LabelRefine: NodeRequestRefinedQuery,
		LabelSimple: NodeGenerateSimple,
	}

	b.node(NodeImageParsing, "Extracts context from attached images", w.imageParsing).
		node(NodeGenerateSimple, "Answers without retrieval", w.generateSimple).
		node(NodeRequestRefinedQuery, "Asks the user to rephrase", w.requestRefinedQuery).
		node(NodeFinalAnswer, "Streams the answer and its context", w.finalAnswer).
		entry(NodeImageParsing).
		edge(NodeGenerateSimple, graph.END).
		edge(NodeRequestRefinedQuery, graph.END).
		edge(NodeFinalAnswer, graph.END)

	// generate and its grading loop are shared by the context routes
	if w.routes[chains.RouteRAG] || w.routes[chains.RouteWebSearch] || w.routes[chains.RouteSQL] {
		b.node(NodeGenerate, "Answers from the graded context", w.generate).
			route(NodeGenerate, w.decideHowToRespond, map[string]string{
				LabelRefine:    NodeRequestRefinedQuery,
				LabelNotGround: NodeGenerate,
				LabelUseful:    NodeFinalAnswer,
				LabelNotUseful: NodeGenerate,
				LabelFiltered:  graph.END,
			})
	}

	webEnabled := w.routes[chains.RouteWebSearch]
	if webEnabled {
		routerPaths[LabelWeb] = NodeTransformForWeb
		b.node(NodeTransformForWeb, "Rewrites the query for web search", w.transformForWeb).
			node(NodeWebSearch, "Searches the web", w.webSearch).
			node(NodeGradeWebDocs, "Keeps the relevant web results", w.gradeWebDocs).
			edge(NodeTransformForWeb, NodeWebSearch).
			edge(NodeWebSearch, NodeGradeWebDocs).
			edge(NodeGradeWebDocs, NodeGenerate)
	}

	if w.routes[chains.RouteRAG] {
		routerPaths[LabelRAG] = NodeTransformForRAG
		b.node(NodeTransformForRAG, "Rewrites the query for retrieval", w.transformForRAG).
			node(NodePublicRetrieve, "Searches the public knowledge base", w.publicRetrieve).
			node(NodeDocRetrieve, "Searches the documents shared by the user", w.docRetrieve).
			node(NodeGradeRAGDocs, "Keeps the relevant chunks", w.gradeRAGDocs).
			route(NodeTransformForRAG, ragRouter, map[string]string{
				LabelPublic: NodePublicRetrieve,
				LabelDocs:   NodeDocRetrieve,
			}).
			edge(NodePublicRetrieve, NodeGradeRAGDocs).
			edge(NodeDocRetrieve, NodeGradeRAGDocs)
		if webEnabled {
			b.route(NodeGradeRAGDocs, decideToSearchWeb, map[string]string{
				LabelWebNeeded: NodeTransformForWeb,
				LabelNoWeb:     NodeGenerate,
			})
		} else {
			b.edge(NodeGradeRAGDocs, NodeGenerate)
		}
	}

	if w.routes[chains.RouteSQL] {
		routerPaths[LabelSQL] = NodeSQLRetrieve
		b.node(NodeSQLRetrieve, "Queries the warehouse", w.sqlRetrieve)
		if w.deps.Charts != nil {
			b.node(NodeSQLChart, "Charts the warehouse rows", w.sqlChart).
				edge(NodeSQLRetrieve, NodeSQLChart).
				edge(NodeSQLChart, NodeGenerate)
		} else {
			b.edge(NodeSQLRetrieve, NodeGenerate)
		}
	}

	if w.routes[chains.RouteImageGen] {
		routerPaths[LabelImage] = NodeTransformForImage
		b.node(NodeTransformForImage, "Rewrites the query as an image prompt", w.transformForImage).
			node(NodeImageGeneration, "Generates and stores the image", w.imageGeneration).
			edge(NodeTransformForImage, NodeImageGeneration).
			edge(NodeImageGeneration, graph.END)
	}

	if w.routes[chains.RoutePDFGen] {
		routerPaths[LabelPDF] = NodePDFGeneration
		b.node(NodePDFGeneration, "Writes and renders a PDF", w.pdfGeneration).
			edge(NodePDFGeneration, graph.END)
	}

	if w.routes[chains.RouteSoWDoc] {
		routerPaths[LabelDocument] = NodeGatherSoWType
		b.node(NodeGatherSoWType, "Finds out which scope of work to draft", w.gatherSoWType).
			node(NodeGatherSoWDetails, "Collects the consultancy scope of work sections", w.gatherSoWDetails).
			node(NodeDocxGeneration, "Drafts and renders the Word document", w.docxGeneration).
			route(NodeGatherSoWType, sowTypeRouter, map[string]string{
				LabelRequestSoWType: NodeFinalAnswer,
				LabelSoWDetails:     NodeGatherSoWDetails,
				LabelGenerateSoW:    NodeDocxGeneration,
			}).
			route(NodeGatherSoWDetails, sowDetailsRouter, map[string]string{
				LabelRequestSoWDetails: NodeFinalAnswer,
				LabelGenerateSoW:       NodeDocxGeneration,
			}).
			edge(NodeDocxGeneration, graph.END)
	}

	if w.cfg.Gather == nil {
		b.route(NodeImageParsing, w.queryRouter, routerPaths)
		return b
	}

	gatheredPaths := map[string]string{LabelRequestData: NodeFinalAnswer}
	for label, to := range routerPaths {
		gatheredPaths[label] = to
	}
	b.node(NodeGatherInformation, "Collects "+w.cfg.Gather.Field, w.gatherInformation).
		route(NodeImageParsing, w.moderationRouter, map[string]string{
			LabelRefine: NodeRequestRefinedQuery,
			LabelGather: NodeGatherInformation,
		}).
		route(NodeGatherInformation, w.gatheredRouter, gatheredPaths)
	return b
}

// Run executes the graph on state. A run is bounded by DefaultRecursionLimit
// nodes unless ContextWithRecursionLimit says otherwise.
func (w *Workflow) Run(ctx context.Context, state State) (State, error) {
	ctx, inv := newInvocation(ctx)
	out, err := w.runnable.Invoke(ctx, state)
	if failed := inv.failure(); failed != nil {
		return out, failed
	}
	return out, err
}
