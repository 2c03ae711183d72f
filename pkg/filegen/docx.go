package filegen

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/tagus/enterprise-agents/pkg/logging"
)

// Section is one heading and its body text
type Section struct {
	Heading string
	Body    string
}

// Document is the content of a generated Word file
type Document struct {
	Title    string
	Sections []Section
}

// DocxTool renders documents to .docx and stores them
type DocxTool struct {
	uploader Uploader
	logger   logging.Logger
}

// NewDocxTool creates a DocxTool
func NewDocxTool(uploader Uploader, logger logging.Logger) *DocxTool {
	if logger == nil {
		logger = logging.New()
	}
	return &DocxTool{uploader: uploader, logger: logger}
}

// Generate renders doc and uploads it under the user's session
func (t *DocxTool) Generate(ctx context.Context, doc Document, userID, sessionID string) Result {
	data, err := RenderDocx(doc)
	if err != nil {
		t.logger.Error(ctx, "Unable to generate document", map[string]interface{}{"error": err.Error()})
		return failure(DocxFailedMessage)
	}
	blobURL, err := t.uploader.UploadGenerated(ctx, userID, sessionID, data)
	if err != nil {
		t.logger.Error(ctx, "Unable to upload document", map[string]interface{}{"error": err.Error()})
		return failure(DocxFailedMessage)
	}
	t.logger.Info(ctx, "Document generated successfully", map[string]interface{}{"blob_url": blobURL})
	return success(blobURL)
}

// RenderDocx writes the title centred, then each section heading in bold
// followed by its paragraphs
func RenderDocx(doc Document) ([]byte, error) {
	if strings.TrimSpace(doc.Title) == "" && len(doc.Sections) == 0 {
		return nil, fmt.Errorf("document is empty")
	}

	w := docx.New().WithDefaultTheme().WithA4Page()
	if doc.Title != "" {
		w.AddParagraph().Justification("center").AddText(doc.Title).Bold().Size("36")
	}
	for _, s := range doc.Sections {
		if s.Heading != "" {
			w.AddParagraph().AddText(s.Heading).Bold().Size("28")
		}
		for _, para := range strings.Split(s.Body, "\n") {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			w.AddParagraph().AddText(para).Size("22")
		}
	}

	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write docx: %w", err)
	}
	return buf.Bytes(), nil
}

// DocxText extracts the paragraph and table text of a .docx file
func DocxText(data []byte) (string, error) {
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to parse docx: %w", err)
	}
	var b strings.Builder
	for _, item := range doc.Document.Body.Items {
		switch v := item.(type) {
		case *docx.Paragraph:
			if s := strings.TrimSpace(v.String()); s != "" {
				b.WriteString(s)
				b.WriteString("\n")
			}
		case *docx.Table:
			b.WriteString(v.String())
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}
