// Package sqlanalyst turns a conversation into SQL through a semantic-model
// analyst service and runs the statement on the warehouse.
package sqlanalyst

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tagus/enterprise-agents/pkg/interfaces"
	"github.com/tagus/enterprise-agents/pkg/logging"
	"github.com/tagus/enterprise-agents/pkg/retry"
)

// Returned when the analyst could not produce a statement
const (
	UninterpretedQuery = "We could not interpret your question."
	PlaceholderSQL     = "SELECT * FROM table"
	EmptyResult        = "[]"
)

// Content is one block of an analyst message
type Content struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	Statement string `json:"statement,omitempty"`
}

// Message is one turn sent to or received from the analyst
type Message struct {
	Role    string    `json:"role"`
	Content []Content `json:"content"`
}

// Turn is what the assistant stores in history after a SQL answer, so the
// analyst can see its earlier interpretation and statement
type Turn struct {
	Text string `json:"text"`
	SQL  string `json:"sql"`
}

// Result is the interpretation, statement and JSON rows for a query
type Result struct {
	RequestID  string `json:"request_id"`
	HumanQuery string `json:"human_query"`
	SQL        string `json:"sql_query"`
	SQLResult  string `json:"sql_result"`
}

// Querier runs a statement and returns the rows as a JSON array
type Querier interface {
	Query(ctx context.Context, statement string) (string, error)
}

// Analyst calls the analyst service and executes its SQL
type Analyst struct {
	url           string
	token         string
	semanticModel string
	warehouse     Querier
	httpClient    *http.Client
	retryPolicy   *retry.Policy
	logger        logging.Logger
}

// Option configures an Analyst
type Option func(*Analyst)

// WithHTTPClient sets the HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(a *Analyst) {
		a.httpClient = client
	}
}

// WithRetryPolicy overrides the warehouse retry policy
func WithRetryPolicy(policy *retry.Policy) Option {
	return func(a *Analyst) {
		a.retryPolicy = policy
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(a *Analyst) {
		a.logger = logger
	}
}

// New creates an Analyst posting to url with a bearer token
func New(url, token, semanticModel string, warehouse Querier, opts ...Option) *Analyst {
	a := &Analyst{
		url:           url,
		token:         token,
		semanticModel: semanticModel,
		warehouse:     warehouse,
		httpClient:    &http.Client{Timeout: 60 * time.Second},
		retryPolicy:   retry.FixedPolicy(2, 2*time.Second),
		logger:        logging.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Messages converts chat history plus the new query into analyst turns.
// Assistant turns holding a stored Turn become analyst text and sql blocks.
func Messages(history []interfaces.Message, query string) []Message {
	out := make([]Message, 0, len(history)+1)
	for _, m := range history {
		switch m.Role {
		case interfaces.MessageRoleUser:
			out = append(out, Message{Role: "user", Content: []Content{{Type: "text", Text: m.Content}}})
		case interfaces.MessageRoleAssistant:
			var turn Turn
			if err := json.Unmarshal([]byte(m.Content), &turn); err == nil && turn.SQL != "" {
				out = append(out, Message{Role: "analyst", Content: []Content{
					{Type: "text", Text: turn.Text},
					{Type: "sql", Statement: turn.SQL},
				}})
				continue
			}
			out = append(out, Message{Role: "analyst", Content: []Content{{Type: "text", Text: m.Content}}})
		}
	}
	// the service expects turns to alternate starting with the user
	for len(out) > 0 && out[0].Role != "user" {
		out = out[1:]
	}
	return append(out, Message{Role: "user", Content: []Content{{Type: "text", Text: query}}})
}

type analystRequest struct {
	Messages          []Message `json:"messages"`
	SemanticModelFile string    `json:"semantic_model_file"`
}

type analystResponse struct {
	RequestID string  `json:"request_id"`
	Message   Message `json:"message"`
}

// Send posts the conversation and returns the analyst's reply
func (a *Analyst) Send(ctx context.Context, messages []Message) (*Message, string, error) {
	body, err := json.Marshal(analystRequest{Messages: messages, SemanticModelFile: a.semanticModel})
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode analyst request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to execute analyst request: %w", err)
	}
	defer resp.Body.Close()

	requestID := resp.Header.Get("X-Request-Id")
	if resp.StatusCode >= 400 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, requestID, fmt.Errorf("failed request (id: %s) with status %d: %s", requestID, resp.StatusCode, strings.TrimSpace(string(text)))
	}

	var out analystResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, requestID, fmt.Errorf("failed to parse analyst response: %w", err)
	}
	if requestID == "" {
		requestID = out.RequestID
	}
	return &out.Message, requestID, nil
}

// Run asks the analyst for SQL and executes it. A reply without a statement
// yields the "could not interpret" placeholder result.
func (a *Analyst) Run(ctx context.Context, history []interfaces.Message, query string) (*Result, error) {
	reply, requestID, err := a.Send(ctx, Messages(history, query))
	if err != nil {
		return nil, err
	}

	var text, statement string
	for _, c := range reply.Content {
		switch {
		case c.Type == "text" && text == "":
			text = c.Text
		case c.Type == "sql" && statement == "":
			statement = c.Statement
		}
	}
	if statement == "" {
		a.logger.Info(ctx, "Analyst returned no SQL", map[string]interface{}{"request_id": requestID})
		return &Result{RequestID: requestID, HumanQuery: UninterpretedQuery, SQL: PlaceholderSQL, SQLResult: EmptyResult}, nil
	}

	var rows string
	executor := retry.NewExecutor(a.retryPolicy, retry.WithLogger(a.logger))
	err = executor.Execute(ctx, func() error {
		var qerr error
		rows, qerr = a.warehouse.Query(ctx, statement)
		return qerr
	})
	if err != nil {
		return nil, fmt.Errorf("failed warehouse query (id: %s): %w", requestID, err)
	}

	return &Result{RequestID: requestID, HumanQuery: text, SQL: statement, SQLResult: rows}, nil
}
