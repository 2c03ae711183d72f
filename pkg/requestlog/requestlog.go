// Package requestlog records incoming API requests in Postgres.
package requestlog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tagus/enterprise-agents/pkg/datastore/postgres"
	"github.com/tagus/enterprise-agents/pkg/logging"
)

const (
	// DefaultTable is the table requests are written to
	DefaultTable = "ai_agent_api_requests"
	// MaxBodySize is the largest body stored verbatim
	MaxBodySize = 16 * 1024 * 1024
)

// Details is one logged request
type Details struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Client  string            `json:"client"`
	Body    interface{}       `json:"body,omitempty"`
	Error   map[string]string `json:"error,omitempty"`
}

// Logger stores request details
type Logger interface {
	Log(ctx context.Context, details Details, received time.Time) error
}

// PostgresLogger writes request details as jsonb rows
type PostgresLogger struct {
	table *postgres.Table
}

// NewPostgresLogger creates a logger writing to table
func NewPostgresLogger(client *postgres.Client, table string) *PostgresLogger {
	if table == "" {
		table = DefaultTable
	}
	return &PostgresLogger{table: client.Table(table)}
}

// Log inserts one row, creating the table on first use
func (p *PostgresLogger) Log(ctx context.Context, details Details, received time.Time) error {
	err := p.table.EnsureReady(ctx,
		"request_details jsonb",
		"message_timereceived timestamptz",
		"logging_timereceived timestamptz",
	)
	if err != nil {
		return err
	}

	data, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode request details: %w", err)
	}
	return p.table.Insert(ctx, map[string]interface{}{
		"request_details":      string(data),
		"message_timereceived": received,
		"logging_timereceived": time.Now().UTC(),
	})
}

var redactedHeaders = map[string]bool{
	"authorization": true,
	"api-key":       true,
	"cookie":        true,
}

// Middleware logs POST requests before handing them on. Handler panics are
// logged with the request and answered with a 500.
func Middleware(store Logger, logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			received := time.Now()
			details := Capture(r)
			ctx := r.Context()
			record := func(d Details) {
				if store == nil {
					return
				}
				if err := store.Log(context.WithoutCancel(ctx), d, received); err != nil {
					logger.Error(ctx, "Failed to log request", map[string]interface{}{"error": err.Error(), "url": d.URL})
				}
			}
			logger.Info(ctx, "Request received", map[string]interface{}{"method": details.Method, "url": details.URL})
			record(details)

			defer func() {
				if rec := recover(); rec != nil {
					details.Error = map[string]string{"API Endpoint Exception": fmt.Sprint(rec)}
					logger.Error(ctx, "Request handler panicked", map[string]interface{}{"error": fmt.Sprint(rec), "url": details.URL})
					record(details)
					http.Error(w, "An internal server error occurred. Please try again later.", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Capture reads the request into Details and restores the body for the next
// handler
func Capture(r *http.Request) Details {
	details := Details{
		Method:  r.Method,
		URL:     r.URL.String(),
		Headers: map[string]string{},
		Client:  clientHost(r.RemoteAddr),
	}
	for name, values := range r.Header {
		value := strings.Join(values, ", ")
		if redactedHeaders[strings.ToLower(name)] {
			value = "[redacted]"
		}
		details.Headers[strings.ToLower(name)] = value
	}

	if r.Body == nil {
		return details
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodySize+1))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	switch {
	case err != nil:
		details.Body = map[string]string{"Message Processing Exception": err.Error()}
	case len(body) > MaxBodySize:
		// the remainder is never read, so the handler sees a truncated body and rejects it
		details.Body = map[string]string{"Message Processing Exception": fmt.Sprintf("Body too large to log (over %d bytes)", MaxBodySize)}
	case !json.Valid(body):
		details.Body = map[string]string{"Message Processing Exception": "request body is not valid JSON"}
	default:
		details.Body = json.RawMessage(body)
	}
	return details
}

func clientHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
