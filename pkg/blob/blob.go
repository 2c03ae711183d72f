// Package blob keeps uploaded knowledge-base files, user images and generated
// documents in object storage under a per-agent directory layout.
package blob

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/tagus/enterprise-agents/pkg/interfaces"
	"github.com/tagus/enterprise-agents/pkg/logging"
)

// ErrNotFound is returned when a URL does not point into the store
var ErrNotFound = errors.New("blob not found")

// Backend is the object storage the Store writes to
type Backend interface {
	Upload(ctx context.Context, name string, data []byte, contentType string) error
	Download(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, name string) error
}

// Store maps agent files onto blob names and public URLs
type Store struct {
	backend Backend
	baseURL string
	agent   string
	logger  logging.Logger
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a Store for agent. baseURL is the container URL blob names are
// appended to, e.g. https://account.blob.core.windows.net/container.
func New(backend Backend, baseURL, agent string, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		baseURL: strings.TrimRight(baseURL, "/"),
		agent:   strings.ToLower(agent),
		logger:  logging.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ContainerURL joins the account URL and the container name
func ContainerURL(accountURL, container string) string {
	return strings.TrimRight(accountURL, "/") + "/" + container
}

// PublicDocPath is where knowledge-base files are kept
func (s *Store) PublicDocPath(filename string) string {
	return path.Join(s.agent, "public_docs", "Additional Documents", filename)
}

// UserDocsPrefix is the directory of one user's documents, or of one document when docID is set
func (s *Store) UserDocsPrefix(userID, docID string) string {
	if docID == "" {
		return path.Join(s.agent, "users_docs", userID)
	}
	return path.Join(s.agent, "users_docs", userID, docID)
}

// UserDocPath is where a shared user document is kept
func (s *Store) UserDocPath(userID, docID, filename string) string {
	return path.Join(s.UserDocsPrefix(userID, docID), filename)
}

// UserImagesPrefix is the directory for images a user attached in a session
func (s *Store) UserImagesPrefix(userID, sessionID string) string {
	return path.Join(s.agent, "users_images", userID, sessionID)
}

// GeneratedDocsPrefix is the directory for files generated for a user in a session
func (s *Store) GeneratedDocsPrefix(userID, sessionID string) string {
	return path.Join(s.agent, "users_generated_docs", userID, sessionID)
}

// URL returns the public URL of a blob name
func (s *Store) URL(name string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.baseURL + "/" + strings.Join(parts, "/")
}

// Name resolves a URL produced by this store back to the blob name
func (s *Store) Name(blobURL string) (string, error) {
	u, err := url.Parse(blobURL)
	if err != nil {
		return "", fmt.Errorf("invalid blob url: %w", err)
	}
	base, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	prefix := strings.TrimRight(base.Path, "/") + "/"
	if u.Host != base.Host || !strings.HasPrefix(u.Path, prefix) {
		return "", ErrNotFound
	}
	return strings.TrimPrefix(u.Path, prefix), nil
}

// Upload writes data under name, replacing any existing blob, and returns its URL
func (s *Store) Upload(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if err := s.backend.Upload(ctx, name, data, contentType); err != nil {
		return "", err
	}
	s.logger.Info(ctx, "Uploaded blob", map[string]interface{}{"blob": name, "bytes": len(data)})
	return s.URL(name), nil
}

// UploadUserImage stores a base64 image attached by the user
func (s *Store) UploadUserImage(ctx context.Context, userID, sessionID, b64 string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("invalid base64 image: %w", err)
	}
	return s.uploadDetected(ctx, s.UserImagesPrefix(userID, sessionID), data)
}

// UploadGenerated stores a generated image or document for the user
func (s *Store) UploadGenerated(ctx context.Context, userID, sessionID string, data []byte) (string, error) {
	return s.uploadDetected(ctx, s.GeneratedDocsPrefix(userID, sessionID), data)
}

func (s *Store) uploadDetected(ctx context.Context, dir string, data []byte) (string, error) {
	ext, contentType := Detect(data)
	return s.Upload(ctx, path.Join(dir, uuid.NewString()+ext), data, contentType)
}

// Download fetches a blob by URL
func (s *Store) Download(ctx context.Context, blobURL string) ([]byte, error) {
	name, err := s.Name(blobURL)
	if err != nil {
		return nil, err
	}
	return s.backend.Download(ctx, name)
}

// DownloadImage fetches an uploaded image ready to attach to a model call
func (s *Store) DownloadImage(ctx context.Context, blobURL string) (interfaces.ImagePart, error) {
	data, err := s.Download(ctx, blobURL)
	if err != nil {
		return interfaces.ImagePart{}, err
	}
	_, contentType := Detect(data)
	if !strings.HasPrefix(contentType, "image/") {
		return interfaces.ImagePart{}, fmt.Errorf("blob %s is not an image (%s)", blobURL, contentType)
	}
	return interfaces.ImagePart{
		MediaType: strings.TrimPrefix(contentType, "image/"),
		Data:      base64.StdEncoding.EncodeToString(data),
	}, nil
}

// DeleteError is one blob that could not be deleted
type DeleteError struct {
	Blob  string `json:"Blob"`
	Error string `json:"Error"`
}

// PurgeReport summarises a prefix deletion
type PurgeReport struct {
	Total        int           `json:"Total"`
	Successful   int           `json:"Successful"`
	Unsuccessful int           `json:"Unsuccessful"`
	DeletedBlobs []string      `json:"Deleted Blobs"`
	Errors       []DeleteError `json:"Errors"`
}

// DeleteByPrefix removes every blob under prefix. A prefix with no blobs is
// reported as a single "Not Found" error.
func (s *Store) DeleteByPrefix(ctx context.Context, prefix string) (*PurgeReport, error) {
	names, err := s.backend.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return s.deleteAll(ctx, prefix, names), nil
}

// DeleteExact removes the blob called name. Blobs that merely start with
// name, e.g. report.pdf.bak for report.pdf, are kept.
func (s *Store) DeleteExact(ctx context.Context, name string) (*PurgeReport, error) {
	names, err := s.backend.List(ctx, name)
	if err != nil {
		return nil, err
	}
	var exact []string
	for _, n := range names {
		if n == name {
			exact = append(exact, n)
		}
	}
	return s.deleteAll(ctx, name, exact), nil
}

func (s *Store) deleteAll(ctx context.Context, prefix string, names []string) *PurgeReport {
	report := &PurgeReport{Total: len(names), DeletedBlobs: []string{}, Errors: []DeleteError{}}
	if len(names) == 0 {
		report.Errors = append(report.Errors, DeleteError{Blob: prefix, Error: "Not Found"})
		return report
	}

	for i, name := range names {
		if err := s.backend.Delete(ctx, name); err != nil {
			report.Errors = append(report.Errors, DeleteError{Blob: name, Error: err.Error()})
			continue
		}
		report.DeletedBlobs = append(report.DeletedBlobs, name)
		report.Successful++
		if (i+1)%10 == 0 || i == len(names)-1 {
			s.logger.Info(ctx, "Purging blobs", map[string]interface{}{
				"prefix":   prefix,
				"progress": fmt.Sprintf("%.2f%%", float64(i+1)/float64(len(names))*100),
			})
		}
	}
	report.Unsuccessful = report.Total - report.Successful
	return report
}

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Detect sniffs the file extension and content type from the leading bytes
func Detect(data []byte) (ext string, contentType string) {
	contentType = http.DetectContentType(data)
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	switch contentType {
	case "image/png":
		return ".png", contentType
	case "image/jpeg":
		return ".jpg", contentType
	case "image/gif":
		return ".gif", contentType
	case "image/webp":
		return ".webp", contentType
	case "application/pdf":
		return ".pdf", contentType
	case "application/zip":
		// Office documents are zip containers
		if bytes.Contains(data, []byte("word/document.xml")) {
			return ".docx", docxContentType
		}
		return ".zip", contentType
	case "text/plain":
		return ".txt", contentType
	case "text/html":
		return ".html", contentType
	}
	return ".bin", "application/octet-stream"
}
