// Package chat runs conversations against the registered agents: it prepares
// the graph state from a request, runs the agent workflow and keeps the
// session history.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tagus/enterprise-agents/pkg/agents"
	"github.com/tagus/enterprise-agents/pkg/events"
	"github.com/tagus/enterprise-agents/pkg/ingest"
	"github.com/tagus/enterprise-agents/pkg/interfaces"
	"github.com/tagus/enterprise-agents/pkg/logging"
	"github.com/tagus/enterprise-agents/pkg/memory"
	"github.com/tagus/enterprise-agents/pkg/multitenancy"
	"github.com/tagus/enterprise-agents/pkg/workflow"
)

const (
	// RecursionLimit caps the node steps of one conversation turn
	RecursionLimit = 50
	// TimestampLayout renders e.g. "09:41 AM on 16th of October, 2026"
	TimestampLayout = "03:04 PM on 02th of January, 2006"
	// DefaultTimezone is the zone timestamps are rendered in
	DefaultTimezone = "Asia/Dubai"

	batchConcurrency = 4
)

var (
	// ErrBadRequest marks caller errors
	ErrBadRequest = errors.New("bad request")
	// ErrUnknownAgent is returned for agents that were not registered
	ErrUnknownAgent = errors.New("agent not registered")
	// ErrNoFileSupport is returned when an agent has no knowledge base manager
	ErrNoFileSupport = errors.New("agent does not accept files")
)

// Input is one user turn
type Input struct {
	Query         string   `json:"query"`
	Username      string   `json:"username"`
	ImageBlobURLs []string `json:"uploaded_image_blob_URL,omitempty"`
	WebSearch     bool     `json:"web_search"`
	DocIDs        []string `json:"doc_ids,omitempty"`
}

// Output is the result of one turn
type Output struct {
	Context      []interfaces.Document `json:"context"`
	Answer       string                `json:"answer"`
	WebSearch    bool                  `json:"web_search"`
	ImageBlobURL string                `json:"image_blob_url"`
	PDFBlobURL   string                `json:"pdf_blob_url"`
	PDFFilename  string                `json:"pdf_filename"`
	DocxBlobURL  string                `json:"docx_blob_url,omitempty"`
	DocxFilename string                `json:"docx_filename,omitempty"`
	Charts       map[string]string     `json:"sql_charts,omitempty"`
}

// Runner executes an agent graph
type Runner interface {
	Run(ctx context.Context, state workflow.State) (workflow.State, error)
}

// ImageDownloader fetches images the user uploaded before sending the query
type ImageDownloader interface {
	DownloadImage(ctx context.Context, blobURL string) (interfaces.ImagePart, error)
}

// TopicSummarizer labels a conversation
type TopicSummarizer interface {
	Topic(ctx context.Context, query string) string
}

// FileManager maintains an agent's knowledge base
type FileManager interface {
	ProcessKBFile(ctx context.Context, req ingest.FileRequest) (*ingest.Output, error)
	ProcessUserFile(ctx context.Context, req ingest.FileRequest) (*ingest.Output, error)
	PurgeKBFile(ctx context.Context, req ingest.PurgeRequest) (*ingest.Output, error)
	PurgeUserFiles(ctx context.Context, req ingest.PurgeRequest) (*ingest.Output, error)
}

// Agent is everything the service needs to serve one agent
type Agent struct {
	Profile  *agents.Profile
	Workflow Runner
	History  memory.History
	Images   ImageDownloader
	Topics   TopicSummarizer
	Files    FileManager
}

// Service dispatches requests to agents
type Service struct {
	agents map[string]*Agent
	loc    *time.Location
	now    func() time.Time
	logger logging.Logger
}

// Option configures the Service
type Option func(*Service)

// WithLocation sets the timezone of the timestamp given to the model
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New creates an empty service
func New(opts ...Option) *Service {
	s := &Service{
		agents: make(map[string]*Agent),
		loc:    defaultLocation(),
		now:    time.Now,
		logger: logging.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func defaultLocation() *time.Location {
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		return time.FixedZone("+04", 4*60*60)
	}
	return loc
}

// Register adds an agent. The agent is addressed by its lower-case name.
func (s *Service) Register(agent *Agent) error {
	if agent.Profile == nil || agent.Workflow == nil || agent.History == nil {
		return fmt.Errorf("agent registration requires a profile, a workflow and a history store")
	}
	s.agents[agent.Profile.Path()] = agent
	return nil
}

// Agent returns a registered agent by name or path
func (s *Service) Agent(name string) (*Agent, error) {
	a, ok := s.agents[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, name)
	}
	return a, nil
}

// Agents lists the registered agent paths
func (s *Service) Agents() []string {
	out := make([]string, 0, len(s.agents))
	for path := range s.agents {
		out = append(out, path)
	}
	return out
}

// Timestamp renders the current time the way prompts expect it
func (s *Service) Timestamp() string {
	return s.now().In(s.loc).Format(TimestampLayout)
}

// Invoke runs one turn and returns the final output
func (s *Service) Invoke(ctx context.Context, agent, sessionID string, in Input) (*Output, error) {
	a, err := s.Agent(agent)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, a, sessionID, in)
}

// Stream runs one turn while forwarding the workflow events to sink
func (s *Service) Stream(ctx context.Context, agent, sessionID string, in Input, sink events.Sink) (*Output, error) {
	return s.Invoke(events.WithSink(ctx, sink), agent, sessionID, in)
}

// Batch runs several turns of the same session concurrently. Outputs keep
// the order of inputs.
func (s *Service) Batch(ctx context.Context, agent, sessionID string, inputs []Input) ([]*Output, error) {
	a, err := s.Agent(agent)
	if err != nil {
		return nil, err
	}
	out := make([]*Output, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, in := range inputs {
		g.Go(func() error {
			res, err := s.run(gctx, a, sessionID, in)
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// TopicSummary labels a query with a short topic
func (s *Service) TopicSummary(ctx context.Context, agent, query string) (string, error) {
	a, err := s.Agent(agent)
	if err != nil {
		return "", err
	}
	if a.Topics == nil {
		return "", fmt.Errorf("agent %s has no topic summarizer", agent)
	}
	return a.Topics.Topic(multitenancy.WithOrgID(ctx, a.Profile.Name), query), nil
}

func (s *Service) run(ctx context.Context, a *Agent, sessionID string, in Input) (*Output, error) {
	if strings.TrimSpace(in.Username) == "" {
		return nil, fmt.Errorf("%w: No username found in the request.", ErrBadRequest)
	}
	session := memory.Session{Agent: a.Profile.Name, UserID: in.Username, SessionID: sessionID}
	if err := session.Validate(); err != nil {
		return nil, err
	}
	for _, id := range in.DocIDs {
		if err := memory.ValidateDocID(id); err != nil {
			return nil, err
		}
	}

	ctx = multitenancy.WithOrgID(ctx, a.Profile.Name)
	ctx = workflow.ContextWithRecursionLimit(ctx, RecursionLimit)

	history, err := a.History.Messages(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}

	state := workflow.State{
		Query:     in.Query,
		Username:  DisplayName(in.Username),
		Timestamp: s.Timestamp(),
		UserID:    in.Username,
		SessionID: sessionID,
		DocIDs:    in.DocIDs,
		Images:    s.images(ctx, a, in.ImageBlobURLs),
		History:   history,
		WebSearch: in.WebSearch,
	}

	s.logger.Info(ctx, "Running agent workflow", map[string]interface{}{
		"agent":      a.Profile.Name,
		"session_id": sessionID,
		"images":     len(state.Images),
		"doc_ids":    len(in.DocIDs),
		"web_search": in.WebSearch,
	})
	final, err := a.Workflow.Run(ctx, state)
	if err != nil {
		return nil, err
	}

	err = a.History.AddMessages(ctx, session,
		interfaces.Message{Role: interfaces.MessageRoleUser, Content: in.Query},
		interfaces.Message{Role: interfaces.MessageRoleAssistant, Content: final.Answer},
	)
	if err != nil {
		s.logger.Error(ctx, "Failed to store chat history", map[string]interface{}{"error": err.Error()})
	}

	out := &Output{
		Context:      final.Context,
		Answer:       final.Answer,
		WebSearch:    in.WebSearch,
		ImageBlobURL: final.ImageBlobURL,
		PDFBlobURL:   final.PDFBlobURL,
		PDFFilename:  final.PDFFilename,
		DocxBlobURL:  final.DocxBlobURL,
		DocxFilename: final.DocxFilename,
		Charts:       final.Charts,
	}
	if out.Context == nil {
		out.Context = []interfaces.Document{}
	}
	return out, nil
}

// images downloads the uploaded images; the ones that cannot be read are skipped
func (s *Service) images(ctx context.Context, a *Agent, urls []string) []interfaces.ImagePart {
	if a.Images == nil || len(urls) == 0 {
		return nil
	}
	var parts []interfaces.ImagePart
	for _, u := range urls {
		part, err := a.Images.DownloadImage(ctx, u)
		if err != nil {
			s.logger.Warn(ctx, "Skipping uploaded image", map[string]interface{}{"url": u, "error": err.Error()})
			continue
		}
		parts = append(parts, part)
	}
	return parts
}

// DisplayName turns an email address into a name for the prompts:
// first.last@x → "First Last", flast@x → "Flas T". Anything else is returned as is.
func DisplayName(username string) string {
	local, _, ok := strings.Cut(username, "@")
	if !ok || local == "" {
		return username
	}
	var first, last string
	if parts := strings.Split(local, "."); len(parts) > 1 {
		first, last = parts[0], parts[1]
	} else {
		first, last = local[:len(local)-1], local[len(local)-1:]
	}
	return strings.TrimSpace(capitalize(first) + " " + capitalize(last))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
