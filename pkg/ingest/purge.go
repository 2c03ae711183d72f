package ingest

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/tagus/enterprise-agents/pkg/blob"
	"github.com/tagus/enterprise-agents/pkg/interfaces"
	"github.com/tagus/enterprise-agents/pkg/memory"
)

// BlobDeletion reports which blobs a purge removed
type BlobDeletion struct {
	*blob.PurgeReport
	Agent    string `json:"AI Agent app,omitempty"`
	Filename string `json:"Document Filename,omitempty"`
	UserID   string `json:"User ID,omitempty"`
	DocID    string `json:"Document ID,omitempty"`
}

// VectorDeletion reports the vector store side of a purge
type VectorDeletion struct {
	Status  string `json:"Status"`
	Details string `json:"Details"`
}

// PurgeKBFile removes a public file and its chunks
func (m *Manager) PurgeKBFile(ctx context.Context, req PurgeRequest) (*Output, error) {
	filename := path.Base(strings.TrimSpace(req.Filename))
	if filename == "" || filename == "." || filename == "/" {
		return nil, badRequest("A filename is required.")
	}
	m.progress(ctx, filename, 0, nil)

	report, err := m.blobs.DeleteExact(ctx, m.blobs.PublicDocPath(filename))
	if err != nil {
		return nil, fmt.Errorf("failed to delete blobs: %w", err)
	}
	m.progress(ctx, filename, 50, nil)

	filter := interfaces.Filter{Must: []interfaces.Condition{
		{Key: "public_doc", Values: []string{"true"}},
		{Key: interfaces.FileNameKey, Values: []string{filename}},
	}}
	vectors := m.deleteVectors(ctx, filter)
	m.progress(ctx, filename, 100, nil)

	return purgeOutput(BlobDeletion{PurgeReport: report, Agent: m.agent, Filename: filename}, vectors), nil
}

// PurgeUserFiles removes one shared document of a user, or all of them when
// no document id is given
func (m *Manager) PurgeUserFiles(ctx context.Context, req PurgeRequest) (*Output, error) {
	if err := memory.ValidateUserID(req.UserID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if req.DocID != "" {
		if err := memory.ValidateDocID(req.DocID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
	}
	label := req.UserID
	if req.DocID != "" {
		label += "/" + req.DocID
	}
	m.progress(ctx, label, 0, nil)

	prefix := m.blobs.UserDocsPrefix(req.UserID, req.DocID)
	if req.DocID != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	report, err := m.blobs.DeleteByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to delete blobs: %w", err)
	}
	m.progress(ctx, label, 50, nil)

	conds := []interfaces.Condition{{Key: "user_id", Values: []string{req.UserID}}}
	if req.DocID != "" {
		conds = append(conds, interfaces.Condition{Key: "doc_id", Values: []string{req.DocID}})
	}
	vectors := m.deleteVectors(ctx, interfaces.Filter{Must: conds})
	m.progress(ctx, label, 100, nil)

	return purgeOutput(BlobDeletion{PurgeReport: report, UserID: req.UserID, DocID: req.DocID}, vectors), nil
}

// deleteVectors reports failures instead of returning them; blobs are already gone
func (m *Manager) deleteVectors(ctx context.Context, filter interfaces.Filter) VectorDeletion {
	n, err := m.store.DeleteByFilter(ctx, filter, interfaces.WithClass(m.class))
	if err != nil {
		m.logger.Error(ctx, "Failed to delete vectors", map[string]interface{}{"error": err.Error()})
		return VectorDeletion{Status: "Failed", Details: err.Error()}
	}
	return VectorDeletion{Status: "Success", Details: fmt.Sprintf("%d objects deleted", n)}
}

func purgeOutput(blobs BlobDeletion, vectors VectorDeletion) *Output {
	return &Output{Message: map[string]interface{}{
		"detail":                       PurgedDetail,
		"blob_deletion_details":        blobs,
		"vectorstore_deletion_details": vectors,
	}}
}
