// Package ingest loads files into an agent's knowledge base and removes
// them again. Public files feed every user of the agent; user files are only
// searched when the user references their document id.
package ingest

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/tagus/enterprise-agents/pkg/blob"
	"github.com/tagus/enterprise-agents/pkg/events"
	"github.com/tagus/enterprise-agents/pkg/interfaces"
	"github.com/tagus/enterprise-agents/pkg/logging"
	"github.com/tagus/enterprise-agents/pkg/memory"
	"github.com/tagus/enterprise-agents/pkg/retrieval"
	"github.com/tagus/enterprise-agents/pkg/retry"
)

const (
	DefaultChunkSize         = 700
	DefaultBatchSize         = 4
	DefaultQuestionsPerChunk = 10

	// SuccessDetail is reported when a file has been stored
	SuccessDetail = "File successfully uploaded!"
	// PurgedDetail is reported when a purge has finished
	PurgedDetail = "Data successfully deleted!"
)

// Extraction strategies accepted in requests. Both use the same extractor;
// the names are kept for API compatibility.
var extractTypes = map[string]bool{"high_resolution": true, "fast": true}

var (
	// ErrBadRequest marks caller errors
	ErrBadRequest = errors.New("bad request")
	// ErrUnsupportedFile is returned for files that are neither images nor text documents
	ErrUnsupportedFile = errors.New("unsupported file type")
)

var supportedTypes = map[string]string{
	".png":  "png",
	".jpg":  "jpeg",
	".pdf":  "pdf",
	".docx": "docx",
	".html": "html",
	".txt":  "txt",
}

// PayloadRewriter rewrites a chunk into the text that gets embedded
type PayloadRewriter interface {
	RewritePayload(ctx context.Context, docContext string, numQuestions int) (string, error)
}

// FileRequest is a base64 file to add to the knowledge base
type FileRequest struct {
	File        string `json:"file"`
	Filename    string `json:"filename"`
	DocID       string `json:"doc_id,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	ExtractType string `json:"extract_type,omitempty"`
}

// PurgeRequest names the files to delete
type PurgeRequest struct {
	Filename string `json:"filename,omitempty"`
	DocID    string `json:"doc_id,omitempty"`
	UserID   string `json:"user_id,omitempty"`
}

// Output wraps the result message
type Output struct {
	Message map[string]interface{} `json:"message"`
}

// Manager ingests and purges files for one agent
type Manager struct {
	agent        string
	class        string
	embedder     interfaces.Embedder
	store        interfaces.VectorStore
	blobs        *blob.Store
	rewriter     PayloadRewriter
	rewriteRetry *retry.Policy
	splitter     textsplitter.RecursiveCharacter
	batchSize    int
	questions    int
	location     *time.Location
	logger       logging.Logger
}

// Option configures a Manager
type Option func(*Manager)

// WithClass stores chunks in a specific collection
func WithClass(class string) Option {
	return func(m *Manager) {
		m.class = class
	}
}

// WithRewriter rewrites chunks into summaries and questions before embedding
func WithRewriter(rewriter PayloadRewriter) Option {
	return func(m *Manager) {
		m.rewriter = rewriter
	}
}

// WithRewriteRetry sets the retry policy of the rewriter calls
func WithRewriteRetry(policy *retry.Policy) Option {
	return func(m *Manager) {
		m.rewriteRetry = policy
	}
}

// WithChunkSize sets the chunk size; the overlap is a fifth of it
func WithChunkSize(size int) Option {
	return func(m *Manager) {
		if size > 0 {
			m.splitter = newSplitter(size)
		}
	}
}

// WithBatchSize sets how many chunks are embedded per request
func WithBatchSize(size int) Option {
	return func(m *Manager) {
		if size > 0 {
			m.batchSize = size
		}
	}
}

// WithLocation sets the timezone of upload timestamps
func WithLocation(loc *time.Location) Option {
	return func(m *Manager) {
		m.location = loc
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func newSplitter(size int) textsplitter.RecursiveCharacter {
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(size/5),
	)
}

// New creates a Manager for agent
func New(agent string, embedder interfaces.Embedder, store interfaces.VectorStore, blobs *blob.Store, opts ...Option) *Manager {
	m := &Manager{
		agent:        agent,
		embedder:     embedder,
		store:        store,
		blobs:        blobs,
		rewriteRetry: retry.FixedPolicy(3, 10*time.Second),
		splitter:     newSplitter(DefaultChunkSize),
		batchSize:    DefaultBatchSize,
		questions:    DefaultQuestionsPerChunk,
		location:     time.UTC,
		logger:       logging.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, args...))
}

func (m *Manager) progress(ctx context.Context, filename string, pct float64, extra map[string]interface{}) {
	m.logger.Info(ctx, "Processing file", map[string]interface{}{
		"filename": filename,
		"progress": fmt.Sprintf("%.2f%%", pct),
	})
	data := map[string]interface{}{"processing_progress": pct}
	for k, v := range extra {
		data[k] = v
	}
	events.Dispatch(ctx, events.DocProcessing, data)
}

// ProcessKBFile adds a file to the agent's public knowledge base
func (m *Manager) ProcessKBFile(ctx context.Context, req FileRequest) (*Output, error) {
	return m.process(ctx, req, false)
}

// ProcessUserFile adds a file shared by a user under its document id
func (m *Manager) ProcessUserFile(ctx context.Context, req FileRequest) (*Output, error) {
	return m.process(ctx, req, true)
}

func (m *Manager) process(ctx context.Context, req FileRequest, userDoc bool) (*Output, error) {
	m.progress(ctx, req.Filename, 0, nil)

	if userDoc {
		if err := memory.ValidateUserID(req.UserID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		if err := memory.ValidateDocID(req.DocID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
	}
	if req.ExtractType == "" {
		req.ExtractType = "fast"
	}
	if !extractTypes[req.ExtractType] {
		return nil, badRequest("Information extraction strategy `%s` is not valid. Please choose one of the options: [high_resolution fast].", req.ExtractType)
	}
	filename := path.Base(strings.TrimSpace(req.Filename))
	if filename == "" || filename == "." || filename == "/" {
		return nil, badRequest("A filename is required.")
	}
	m.progress(ctx, filename, 10, nil)

	data, err := base64.StdEncoding.DecodeString(req.File)
	if err != nil {
		return nil, badRequest("file is not valid base64: %v", err)
	}
	ext, contentType := blob.Detect(data)
	if ext == ".txt" && strings.HasSuffix(strings.ToLower(filename), ".md") {
		ext = ".md"
	}
	if _, ok := supportedTypes[ext]; !ok && ext != ".md" {
		return nil, fmt.Errorf("%w: Base64 file is not one of png, jpeg, pdf, docx, html, txt or md", ErrUnsupportedFile)
	}
	m.progress(ctx, filename, 15, nil)

	blobName := m.blobs.PublicDocPath(filename)
	if userDoc {
		blobName = m.blobs.UserDocPath(req.UserID, req.DocID, filename)
	}
	blobURL, err := m.blobs.Upload(ctx, blobName, data, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", filename, err)
	}
	m.progress(ctx, filename, 25, nil)

	done := map[string]interface{}{
		"processing_progress": 100.0,
		"mime_type":           contentType,
		"URL":                 blobURL,
		"detail":              SuccessDetail,
	}
	if userDoc {
		done["doc_id"] = req.DocID
		done["user_id"] = req.UserID
	}

	if strings.HasPrefix(contentType, "image/") {
		m.progress(ctx, filename, 100, done)
		return &Output{Message: done}, nil
	}

	pages, err := Extract(data, ext)
	if err != nil {
		return nil, err
	}
	m.progress(ctx, filename, 30, nil)

	base := map[string]interface{}{
		interfaces.FileNameKey:   filename,
		"URL":                    blobURL,
		"upload_timestamp":       time.Now().In(m.location).Format(time.RFC3339),
		"ai_agent_app":           m.agent,
		retrieval.ContextTypeKey: retrieval.ContextTypeRAG,
	}
	if userDoc {
		base["doc_id"] = req.DocID
		base["user_id"] = req.UserID
		base["public_doc"] = "false"
	} else {
		base["public_doc"] = "true"
	}

	docs, err := m.chunk(ctx, filename, pages, base, userDoc)
	if err != nil {
		return nil, err
	}
	m.progress(ctx, filename, 75, nil)

	if _, err := m.store.DeleteByFilter(ctx, replaceFilter(req, filename, userDoc), interfaces.WithClass(m.class)); err != nil {
		return nil, fmt.Errorf("failed to clear previous chunks: %w", err)
	}
	m.progress(ctx, filename, 80, nil)

	if err := m.embedAndStore(ctx, docs); err != nil {
		return nil, err
	}

	m.progress(ctx, filename, 100, done)
	m.logger.Info(ctx, "File processed successfully", map[string]interface{}{"filename": filename, "url": blobURL, "chunks": len(docs)})
	return &Output{Message: done}, nil
}

func replaceFilter(req FileRequest, filename string, userDoc bool) interfaces.Filter {
	if userDoc {
		return interfaces.Filter{Must: []interfaces.Condition{
			{Key: "user_id", Values: []string{req.UserID}},
			{Key: "doc_id", Values: []string{req.DocID}},
		}}
	}
	return interfaces.Filter{Must: []interfaces.Condition{
		{Key: "public_doc", Values: []string{"true"}},
		{Key: interfaces.FileNameKey, Values: []string{filename}},
	}}
}

// chunk turns pages into documents. The stored content is the rewritten
// payload; the cited page text is kept in original_page_content, which
// retrieval swaps back in.
func (m *Manager) chunk(ctx context.Context, filename string, pages []Page, base map[string]interface{}, userDoc bool) ([]interfaces.Document, error) {
	title := fmt.Sprintf("On the file titled as: '%s', ", FileTitle(filename))
	if userDoc {
		title = fmt.Sprintf("On user's shared file titled as: '%s', ", FileTitle(filename))
	}

	var docs []interfaces.Document
	for i, page := range pages {
		text := NormalizeText(page.Text)
		if text == "" {
			continue
		}
		original := fmt.Sprintf("%spage %d, the following information was found:\n\n%s", title, page.Number, text)
		payload := m.rewrite(ctx, title+"the following information was found:\n\n"+text)

		chunks, err := m.splitter.SplitText(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to split page %d: %w", page.Number, err)
		}
		for _, c := range chunks {
			metadata := make(map[string]interface{}, len(base)+2)
			for k, v := range base {
				metadata[k] = v
			}
			metadata["page_number"] = page.Number
			metadata["original_page_content"] = original
			docs = append(docs, interfaces.Document{ID: uuid.NewString(), Content: c, Metadata: metadata})
		}

		pct := float64(i+1) / float64(len(pages)) * 100
		m.progress(ctx, filename, math.Round(35+40*pct/100), nil)
	}
	return docs, nil
}

// rewrite falls back to the plain chunk when the model keeps failing
func (m *Manager) rewrite(ctx context.Context, docContext string) string {
	if m.rewriter == nil {
		return docContext
	}
	var out string
	executor := retry.NewExecutor(m.rewriteRetry, retry.WithLogger(m.logger))
	err := executor.Execute(ctx, func() error {
		var err error
		out, err = m.rewriter.RewritePayload(ctx, docContext, m.questions)
		return err
	})
	if err != nil || strings.TrimSpace(out) == "" {
		m.logger.Warn(ctx, "Payload rewrite skipped", map[string]interface{}{"error": fmt.Sprint(err)})
		return docContext
	}
	return out
}

func (m *Manager) embedAndStore(ctx context.Context, docs []interfaces.Document) error {
	for start := 0; start < len(docs); start += m.batchSize {
		end := start + m.batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]
		texts := make([]string, len(batch))
		for i, d := range batch {
			texts[i] = d.Content
		}
		vectors, err := m.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed chunks: %w", err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(batch))
		}
		for i := range batch {
			batch[i].Vector = vectors[i]
		}
	}
	if len(docs) == 0 {
		return nil
	}
	if err := m.store.Store(ctx, docs, interfaces.WithStoreClass(m.class), interfaces.WithBatchSize(100)); err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}
	return nil
}
