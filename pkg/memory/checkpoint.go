package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tagus/enterprise-agents/pkg/datastore/postgres"
	"github.com/tagus/enterprise-agents/pkg/logging"
)

// DefaultCheckpointTable holds the checkpoints of sessions without an agent
const DefaultCheckpointTable = "saver"

// CheckpointTable is the Postgres table of one agent's checkpoints, e.g.
// procurementagent_saver
func CheckpointTable(agent string) string {
	agent = strings.ToLower(strings.NewReplacer("-", "_", " ", "_").Replace(strings.TrimSpace(agent)))
	if agent == "" {
		return DefaultCheckpointTable
	}
	return agent + "_" + DefaultCheckpointTable
}

// Checkpoint is the persisted snapshot of what a session has generated so far
type Checkpoint struct {
	LatestGeneratedImageBlobURL       string   `json:"LatestGeneratedImageBlobURL,omitempty"`
	LatestGeneratedImageRevisedPrompt string   `json:"LatestGeneratedImageRevisedPrompt,omitempty"`
	ListGeneratedImageBlobURL         []string `json:"ListGeneratedImageBlobURL,omitempty"`
	ListGeneratedImageRevisedPrompt   []string `json:"ListGeneratedImageRevisedPrompt,omitempty"`

	LatestGeneratedPDFFileName string   `json:"LatestGeneratedPDFFileName,omitempty"`
	LatestGeneratedPDFBlobURL  string   `json:"LatestGeneratedPDFBlobURL,omitempty"`
	ListGeneratedPDFFileName   []string `json:"ListGeneratedPDFFileName,omitempty"`
	ListGeneratedPDFBlobURL    []string `json:"ListGeneratedPDFBlobURL,omitempty"`

	// PendingSoWType is the scope of work type gathered in an earlier turn
	// whose details are still being collected
	PendingSoWType             string   `json:"PendingSoWType,omitempty"`
	LatestGeneratedSoWFileName string   `json:"LatestGeneratedSoWFileName,omitempty"`
	LatestGeneratedSoWBlobURL  string   `json:"LatestGeneratedSoWBlobURL,omitempty"`
	ListGeneratedSoWFileName   []string `json:"ListGeneratedSoWFileName,omitempty"`
	ListGeneratedSoWBlobURL    []string `json:"ListGeneratedSoWBlobURL,omitempty"`
}

// RecordImage notes a generated image
func (c *Checkpoint) RecordImage(blobURL, revisedPrompt string) {
	c.LatestGeneratedImageBlobURL = blobURL
	c.LatestGeneratedImageRevisedPrompt = revisedPrompt
	c.ListGeneratedImageBlobURL = append(c.ListGeneratedImageBlobURL, blobURL)
	c.ListGeneratedImageRevisedPrompt = append(c.ListGeneratedImageRevisedPrompt, revisedPrompt)
}

// RecordPDF notes a generated PDF or document
func (c *Checkpoint) RecordPDF(filename, blobURL string) {
	c.LatestGeneratedPDFFileName = filename
	c.LatestGeneratedPDFBlobURL = blobURL
	c.ListGeneratedPDFFileName = append(c.ListGeneratedPDFFileName, filename)
	c.ListGeneratedPDFBlobURL = append(c.ListGeneratedPDFBlobURL, blobURL)
}

// RecordSoW notes a generated scope of work and ends its gathering
func (c *Checkpoint) RecordSoW(filename, blobURL string) {
	c.PendingSoWType = ""
	c.LatestGeneratedSoWFileName = filename
	c.LatestGeneratedSoWBlobURL = blobURL
	c.ListGeneratedSoWFileName = append(c.ListGeneratedSoWFileName, filename)
	c.ListGeneratedSoWBlobURL = append(c.ListGeneratedSoWBlobURL, blobURL)
}

// Checkpointer persists checkpoints per session. Load returns an empty
// checkpoint when none exists.
type Checkpointer interface {
	Load(ctx context.Context, s Session) (*Checkpoint, error)
	Add(ctx context.Context, s Session, cp *Checkpoint) error
	Clear(ctx context.Context, s Session) error
}

// Update loads the session checkpoint, applies fn and stores the result
func Update(ctx context.Context, cp Checkpointer, s Session, fn func(*Checkpoint)) error {
	current, err := cp.Load(ctx, s)
	if err != nil {
		return err
	}
	fn(current)
	return cp.Add(ctx, s, current)
}

// PostgresCheckpointer appends checkpoints to one Postgres table per agent
// and reads the newest one back
type PostgresCheckpointer struct {
	client *postgres.Client
	logger logging.Logger

	mu     sync.Mutex
	tables map[string]*postgres.Table
}

// NewPostgresCheckpointer creates a checkpointer storing each agent's
// sessions in CheckpointTable(agent)
func NewPostgresCheckpointer(client *postgres.Client, logger logging.Logger) *PostgresCheckpointer {
	if logger == nil {
		logger = logging.New()
	}
	return &PostgresCheckpointer{client: client, logger: logger, tables: make(map[string]*postgres.Table)}
}

// table returns the session agent's table, creating it on first use
func (p *PostgresCheckpointer) table(ctx context.Context, s Session) (*postgres.Table, error) {
	name := CheckpointTable(s.Agent)
	p.mu.Lock()
	t, ok := p.tables[name]
	if !ok {
		t = p.client.Table(name)
		p.tables[name] = t
	}
	p.mu.Unlock()

	err := t.EnsureReady(ctx,
		"checkpoint_id serial PRIMARY KEY",
		"user_id text",
		"session_id text",
		"checkpoint jsonb",
		"logging_timereceived timestamptz",
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func sessionFilter(s Session) map[string]interface{} {
	return map[string]interface{}{"user_id": s.UserID, "session_id": s.SessionID}
}

// Load returns the newest checkpoint of the session
func (p *PostgresCheckpointer) Load(ctx context.Context, s Session) (*Checkpoint, error) {
	t, err := p.table(ctx, s)
	if err != nil {
		return nil, err
	}

	var raw []byte
	err = t.QueryRow(ctx, "checkpoint", sessionFilter(s), "checkpoint_id").Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return &Checkpoint{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	cp := &Checkpoint{}
	if err := json.Unmarshal(raw, cp); err != nil {
		p.logger.Warn(ctx, "Discarding unreadable checkpoint", map[string]interface{}{
			"error":      err.Error(),
			"session_id": s.SessionID,
		})
		return &Checkpoint{}, nil
	}
	return cp, nil
}

// Add appends a checkpoint row
func (p *PostgresCheckpointer) Add(ctx context.Context, s Session, cp *Checkpoint) error {
	t, err := p.table(ctx, s)
	if err != nil {
		return err
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	return t.Insert(ctx, map[string]interface{}{
		"user_id":              s.UserID,
		"session_id":           s.SessionID,
		"checkpoint":           string(data),
		"logging_timereceived": time.Now().UTC(),
	})
}

// Clear removes every checkpoint of the session
func (p *PostgresCheckpointer) Clear(ctx context.Context, s Session) error {
	t, err := p.table(ctx, s)
	if err != nil {
		return err
	}
	_, err = t.Delete(ctx, sessionFilter(s))
	return err
}

// MemoryCheckpointer keeps checkpoints in process memory
type MemoryCheckpointer struct {
	mu          sync.Mutex
	checkpoints map[string]Checkpoint
}

// NewMemoryCheckpointer creates an empty MemoryCheckpointer
func NewMemoryCheckpointer() *MemoryCheckpointer {
	return &MemoryCheckpointer{checkpoints: map[string]Checkpoint{}}
}

// Load returns a copy of the stored checkpoint
func (m *MemoryCheckpointer) Load(_ context.Context, s Session) (*Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := m.checkpoints[sessionKey("", s)]
	cp.ListGeneratedImageBlobURL = append([]string(nil), cp.ListGeneratedImageBlobURL...)
	cp.ListGeneratedImageRevisedPrompt = append([]string(nil), cp.ListGeneratedImageRevisedPrompt...)
	cp.ListGeneratedPDFFileName = append([]string(nil), cp.ListGeneratedPDFFileName...)
	cp.ListGeneratedPDFBlobURL = append([]string(nil), cp.ListGeneratedPDFBlobURL...)
	cp.ListGeneratedSoWFileName = append([]string(nil), cp.ListGeneratedSoWFileName...)
	cp.ListGeneratedSoWBlobURL = append([]string(nil), cp.ListGeneratedSoWBlobURL...)
	return &cp, nil
}

// Add replaces the stored checkpoint
func (m *MemoryCheckpointer) Add(_ context.Context, s Session, cp *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints[sessionKey("", s)] = *cp
	return nil
}

// Clear drops the stored checkpoint
func (m *MemoryCheckpointer) Clear(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.checkpoints, sessionKey("", s))
	return nil
}
