// Package filegen renders images, PDFs, Word documents and charts for a
// conversation and uploads them to the user's blob directory.
package filegen

import (
	"context"
)

// Status values reported to the assistant chain
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Failure messages shown to the user
const (
	ImageRejectedMessage = "Your request was rejected as a result of our safety system. Your prompt may contain text that is not allowed by our safety system."
	ImageFailedMessage   = "Image generation failed."
	PDFFailedMessage     = "Generating PDF failed."
	DocxFailedMessage    = "Generating document failed."
	ChartFailedMessage   = "Chart generation failed."
)

// Result describes the outcome of one generation
type Result struct {
	Status        string `json:"status"`
	Message       string `json:"message,omitempty"`
	BlobURL       string `json:"blob_url,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

// OK reports whether the generation succeeded
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

func failure(message string) Result {
	return Result{Status: StatusFailure, Message: message}
}

func success(blobURL string) Result {
	return Result{Status: StatusSuccess, BlobURL: blobURL}
}

// Uploader stores generated files for a user session
type Uploader interface {
	UploadUserImage(ctx context.Context, userID, sessionID, b64 string) (string, error)
	UploadGenerated(ctx context.Context, userID, sessionID string, data []byte) (string, error)
}
