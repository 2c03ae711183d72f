// Package microservice exposes the agents over HTTP: invoke, batch and SSE
// stream endpoints per agent, plus health and metrics.
package microservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/tagus/enterprise-agents/pkg/chains"
	"github.com/tagus/enterprise-agents/pkg/chat"
	"github.com/tagus/enterprise-agents/pkg/events"
	"github.com/tagus/enterprise-agents/pkg/ingest"
	"github.com/tagus/enterprise-agents/pkg/logging"
	"github.com/tagus/enterprise-agents/pkg/memory"
	"github.com/tagus/enterprise-agents/pkg/requestlog"
)

// DefaultSessionID is used when a request carries no session id
const DefaultSessionID = "default"

// Service is the agent backend served over HTTP
type Service interface {
	Agents() []string
	Invoke(ctx context.Context, agent, sessionID string, in chat.Input) (*chat.Output, error)
	Stream(ctx context.Context, agent, sessionID string, in chat.Input, sink events.Sink) (*chat.Output, error)
	Batch(ctx context.Context, agent, sessionID string, inputs []chat.Input) ([]*chat.Output, error)
	TopicSummary(ctx context.Context, agent, query string) (string, error)
	ProcessKBFile(ctx context.Context, agent string, req ingest.FileRequest) (*ingest.Output, error)
	ProcessUserFile(ctx context.Context, agent string, req ingest.FileRequest) (*ingest.Output, error)
	PurgeKBFile(ctx context.Context, agent string, req ingest.PurgeRequest) (*ingest.Output, error)
	PurgeUserFiles(ctx context.Context, agent string, req ingest.PurgeRequest) (*ingest.Output, error)
}

// HTTPServer routes requests to the agents
type HTTPServer struct {
	service  Service
	auth     *Authenticator
	metrics  *Metrics
	requests requestlog.Logger
	origins  []string
	rootPath string
	maxBody  int64
	logger   logging.Logger

	router *mux.Router
	server *http.Server
}

// Option configures the server
type Option func(*HTTPServer)

// WithAuthenticator protects the API routes
func WithAuthenticator(auth *Authenticator) Option {
	return func(h *HTTPServer) {
		h.auth = auth
	}
}

// WithMetrics sets the Prometheus collectors served on /metrics
func WithMetrics(m *Metrics) Option {
	return func(h *HTTPServer) {
		h.metrics = m
	}
}

// WithRequestLog stores every POST request
func WithRequestLog(store requestlog.Logger) Option {
	return func(h *HTTPServer) {
		h.requests = store
	}
}

// WithAllowedOrigins sets the CORS origins
func WithAllowedOrigins(origins []string) Option {
	return func(h *HTTPServer) {
		h.origins = origins
	}
}

// WithRootPath mounts every route under a prefix, e.g. behind a proxy
func WithRootPath(root string) Option {
	return func(h *HTTPServer) {
		h.rootPath = strings.TrimSuffix(root, "/")
	}
}

// WithMaxBodyBytes caps request bodies
func WithMaxBodyBytes(n int64) Option {
	return func(h *HTTPServer) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(h *HTTPServer) {
		h.logger = logger
	}
}

// NewHTTPServer creates the server and registers the routes of every agent
// the service knows at this point
func NewHTTPServer(service Service, opts ...Option) *HTTPServer {
	h := &HTTPServer{
		service: service,
		auth:    NewAuthenticator(nil, ""),
		metrics: NewMetrics(),
		origins: []string{"*"},
		maxBody: requestlog.MaxBodySize,
		logger:  logging.New(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.router = h.routes()
	return h
}

// endpoint is one agent operation. invoke handles a decoded input; batch and
// stream fall back to it when unset.
type endpoint struct {
	suffix      string
	invoke      func(ctx context.Context, bot, session string, raw json.RawMessage) (interface{}, error)
	batch       func(ctx context.Context, bot, session string, raws []json.RawMessage) (interface{}, error)
	stream      func(ctx context.Context, bot, session string, raw json.RawMessage, sink events.Sink) (interface{}, error)
	streamFinal bool
	invokeOnly  bool
}

func (h *HTTPServer) endpoints() []endpoint {
	return []endpoint{
		{
			suffix: "rag",
			invoke: func(ctx context.Context, bot, session string, raw json.RawMessage) (interface{}, error) {
				var in chat.Input
				if err := decode(raw, &in); err != nil {
					return nil, err
				}
				return h.service.Invoke(ctx, bot, session, in)
			},
			batch: func(ctx context.Context, bot, session string, raws []json.RawMessage) (interface{}, error) {
				inputs := make([]chat.Input, len(raws))
				for i, raw := range raws {
					if err := decode(raw, &inputs[i]); err != nil {
						return nil, err
					}
				}
				return h.service.Batch(ctx, bot, session, inputs)
			},
			stream: func(ctx context.Context, bot, session string, raw json.RawMessage, sink events.Sink) (interface{}, error) {
				var in chat.Input
				if err := decode(raw, &in); err != nil {
					return nil, err
				}
				return h.service.Stream(ctx, bot, session, in, sink)
			},
		},
		{
			suffix: "ts",
			invoke: func(ctx context.Context, bot, _ string, raw json.RawMessage) (interface{}, error) {
				var in struct {
					Query string `json:"query"`
				}
				if err := decode(raw, &in); err != nil {
					return nil, err
				}
				return h.service.TopicSummary(ctx, bot, in.Query)
			},
			streamFinal: true,
		},
		{
			suffix:      "process_kb_file",
			invoke:      fileCall(h.service.ProcessKBFile),
			streamFinal: true,
		},
		{
			suffix:     "purge_kb_files",
			invoke:     purgeCall(h.service.PurgeKBFile),
			invokeOnly: true,
		},
		{
			suffix:      "process_file",
			invoke:      fileCall(h.service.ProcessUserFile),
			streamFinal: true,
		},
		{
			suffix:     "purge_files",
			invoke:     purgeCall(h.service.PurgeUserFiles),
			invokeOnly: true,
		},
	}
}

func fileCall(fn func(context.Context, string, ingest.FileRequest) (*ingest.Output, error)) func(context.Context, string, string, json.RawMessage) (interface{}, error) {
	return func(ctx context.Context, bot, _ string, raw json.RawMessage) (interface{}, error) {
		var req ingest.FileRequest
		if err := decode(raw, &req); err != nil {
			return nil, err
		}
		return fn(ctx, bot, req)
	}
}

func purgeCall(fn func(context.Context, string, ingest.PurgeRequest) (*ingest.Output, error)) func(context.Context, string, string, json.RawMessage) (interface{}, error) {
	return func(ctx context.Context, bot, _ string, raw json.RawMessage) (interface{}, error) {
		var req ingest.PurgeRequest
		if err := decode(raw, &req); err != nil {
			return nil, err
		}
		return fn(ctx, bot, req)
	}
}

func (h *HTTPServer) routes() *mux.Router {
	router := mux.NewRouter()
	root := router
	if h.rootPath != "" {
		root = router.PathPrefix(h.rootPath).Subrouter()
	}

	root.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	root.Handle("/metrics", h.metrics.Handler()).Methods(http.MethodGet)

	api := root.PathPrefix("/api/v1").Subrouter()
	api.Use(h.auth.Middleware)

	bots := h.service.Agents()
	sort.Strings(bots)
	for _, bot := range bots {
		for _, ep := range h.endpoints() {
			base := fmt.Sprintf("/%s/%s_%s", bot, bot, ep.suffix)
			name := ep.suffix
			api.Handle(base+"/invoke", h.instrument(bot, name+"/invoke", h.handleInvoke(bot, ep))).Methods(http.MethodPost)
			if ep.invokeOnly {
				continue
			}
			api.Handle(base+"/batch", h.instrument(bot, name+"/batch", h.handleBatch(bot, ep))).Methods(http.MethodPost)
			api.Handle(base+"/stream", h.instrument(bot, name+"/stream", h.handleStream(bot, ep))).Methods(http.MethodPost)
		}
	}
	return router
}

// Handler returns the full middleware stack
func (h *HTTPServer) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   h.origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(requestlog.Middleware(h.requests, h.logger)(h.router))
}

// Start listens on addr until Stop is called
func (h *HTTPServer) Start(addr string) error {
	h.server = &http.Server{
		Addr:              addr,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 30 * time.Second,
		WriteTimeout:      15 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	h.logger.Info(context.Background(), "HTTP server starting", map[string]interface{}{
		"addr":   addr,
		"agents": h.service.Agents(),
		"auth":   h.auth.Enabled(),
	})
	if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down
func (h *HTTPServer) Stop(ctx context.Context) error {
	if h.server != nil {
		return h.server.Shutdown(ctx)
	}
	return nil
}

func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

type runConfig struct {
	Configurable struct {
		SessionID string `json:"session_id"`
	} `json:"configurable"`
}

func (c runConfig) session() string {
	if c.Configurable.SessionID == "" {
		return DefaultSessionID
	}
	return c.Configurable.SessionID
}

type invokeRequest struct {
	Input  json.RawMessage `json:"input"`
	Config runConfig       `json:"config"`
}

type batchRequest struct {
	Inputs []json.RawMessage `json:"inputs"`
	Config runConfig         `json:"config"`
}

func (h *HTTPServer) readBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusUnprocessableEntity)
		return false
	}
	return true
}

func (h *HTTPServer) handleInvoke(bot string, ep endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req invokeRequest
		if !h.readBody(w, r, &req) {
			return
		}
		out, err := ep.invoke(r.Context(), bot, req.Config.session(), req.Input)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"output":   out,
			"metadata": map[string]interface{}{"run_id": uuid.NewString(), "feedback_tokens": []string{}},
		})
	}
}

func (h *HTTPServer) handleBatch(bot string, ep endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req batchRequest
		if !h.readBody(w, r, &req) {
			return
		}
		var (
			out interface{}
			err error
		)
		if ep.batch != nil {
			out, err = ep.batch(r.Context(), bot, req.Config.session(), req.Inputs)
		} else {
			out, err = sequential(r.Context(), bot, req.Config.session(), req.Inputs, ep.invoke)
		}
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		runIDs := make([]string, len(req.Inputs))
		for i := range runIDs {
			runIDs[i] = uuid.NewString()
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"output":   out,
			"metadata": map[string]interface{}{"run_ids": runIDs},
		})
	}
}

func sequential(ctx context.Context, bot, session string, raws []json.RawMessage,
	invoke func(context.Context, string, string, json.RawMessage) (interface{}, error)) ([]interface{}, error) {
	out := make([]interface{}, 0, len(raws))
	for _, raw := range raws {
		res, err := invoke(ctx, bot, session, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (h *HTTPServer) handleStream(bot string, ep endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req invokeRequest
		if !h.readBody(w, r, &req) {
			return
		}
		sse, ok := newSSEWriter(w)
		if !ok {
			http.Error(w, "Streaming not supported", http.StatusInternalServerError)
			return
		}
		sse.send("metadata", map[string]string{"run_id": uuid.NewString()})

		sink := events.SinkFunc(func(_ context.Context, event events.Event) {
			sse.send("data", event)
		})
		var (
			out interface{}
			err error
		)
		if ep.stream != nil {
			out, err = ep.stream(r.Context(), bot, req.Config.session(), req.Input, sink)
		} else {
			out, err = ep.invoke(events.WithSink(r.Context(), sink), bot, req.Config.session(), req.Input)
		}
		if err != nil {
			status, msg := h.classify(r.Context(), err)
			sse.send("error", map[string]interface{}{"status_code": status, "message": msg})
			return
		}
		if ep.streamFinal {
			sse.send("data", out)
		}
		sse.end()
	}
}

func (h *HTTPServer) classify(ctx context.Context, err error) (int, string) {
	status, msg := classify(err)
	fields := map[string]interface{}{"error": err.Error(), "status": status}
	if status >= http.StatusInternalServerError {
		h.logger.Error(ctx, "Request failed", fields)
	} else {
		h.logger.Warn(ctx, "Request rejected", fields)
	}
	return status, msg
}

func (h *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := h.classify(r.Context(), err)
	http.Error(w, msg, status)
}

var badRequests = []error{
	chat.ErrBadRequest,
	ingest.ErrBadRequest,
	ingest.ErrUnsupportedFile,
	memory.ErrInvalidUserID,
	memory.ErrInvalidSessionID,
	memory.ErrInvalidDocID,
	errInvalidInput,
}

// classify maps an error to the status code and the message shown to the caller
func classify(err error) (int, string) {
	for _, target := range badRequests {
		if errors.Is(err, target) {
			return http.StatusBadRequest, detail(err, target)
		}
	}
	switch {
	case errors.Is(err, chat.ErrUnknownAgent), errors.Is(err, chat.ErrNoFileSupport):
		return http.StatusNotFound, http.StatusText(http.StatusNotFound)
	case chains.IsContentFiltered(err):
		return http.StatusInternalServerError, chains.ContentPolicyHTTPMessage
	default:
		return http.StatusInternalServerError, chains.InternalErrorMessage
	}
}

// detail strips the sentinel prefix so callers see only the explanation
func detail(err, sentinel error) string {
	msg := err.Error()
	if i := strings.Index(msg, sentinel.Error()+": "); i >= 0 {
		return msg[i+len(sentinel.Error())+2:]
	}
	return msg
}

var errInvalidInput = errors.New("invalid input")

func decode(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing input", errInvalidInput)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidInput, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
