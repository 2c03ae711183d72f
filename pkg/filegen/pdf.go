package filegen

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/go-pdf/fpdf"

	"github.com/tagus/enterprise-agents/pkg/logging"
)

// PDFTool renders HTML into a PDF and stores it
type PDFTool struct {
	uploader Uploader
	logger   logging.Logger
}

// NewPDFTool creates a PDFTool
func NewPDFTool(uploader Uploader, logger logging.Logger) *PDFTool {
	if logger == nil {
		logger = logging.New()
	}
	return &PDFTool{uploader: uploader, logger: logger}
}

// Generate renders html and uploads the PDF under the user's session
func (t *PDFTool) Generate(ctx context.Context, html, userID, sessionID string) Result {
	data, err := RenderPDF(html)
	if err != nil {
		t.logger.Error(ctx, "Unable to generate PDF", map[string]interface{}{"error": err.Error()})
		return failure(PDFFailedMessage)
	}
	blobURL, err := t.uploader.UploadGenerated(ctx, userID, sessionID, data)
	if err != nil {
		t.logger.Error(ctx, "Unable to upload PDF", map[string]interface{}{"error": err.Error()})
		return failure(PDFFailedMessage)
	}
	t.logger.Info(ctx, "PDF generated successfully", map[string]interface{}{"blob_url": blobURL})
	return success(blobURL)
}

var (
	headingLine  = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	bulletLine   = regexp.MustCompile(`^\s*(?:[-*+]|\d+\.)\s+(.*)$`)
	tableDivider = regexp.MustCompile(`^\|?\s*:?-{3,}`)
	boldSpan     = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicSpan   = regexp.MustCompile(`(?:^|[^*])\*([^*]+)\*|_([^_]+)_`)
	linkSpan     = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
)

var headingSizes = []float64{20, 17, 15, 13, 12, 12}

const (
	bodySize   = 11
	lineHeight = 6
)

// RenderPDF lays the HTML out on A4 pages. The HTML is first flattened to
// markdown so block structure maps onto headings, bullets and paragraphs.
func RenderPDF(html string) ([]byte, error) {
	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return nil, fmt.Errorf("failed to convert html: %w", err)
	}
	if strings.TrimSpace(md) == "" {
		return nil, fmt.Errorf("document is empty")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	basic := pdf.HTMLBasicNew()

	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimRight(line, " ")
		switch {
		case strings.TrimSpace(line) == "":
			pdf.Ln(lineHeight / 2)
		case headingLine.MatchString(line):
			m := headingLine.FindStringSubmatch(line)
			pdf.SetFont("Helvetica", "B", headingSizes[len(m[1])-1])
			pdf.MultiCell(0, lineHeight+2, tr(stripMarkup(m[2])), "", "L", false)
			pdf.Ln(1)
		case tableDivider.MatchString(line):
			continue
		case strings.HasPrefix(strings.TrimSpace(line), "|"):
			cells := strings.Split(strings.Trim(strings.TrimSpace(line), "|"), "|")
			for i := range cells {
				cells[i] = strings.TrimSpace(cells[i])
			}
			pdf.SetFont("Helvetica", "", bodySize-1)
			pdf.MultiCell(0, lineHeight, tr(stripMarkup(strings.Join(cells, "   "))), "B", "L", false)
		case bulletLine.MatchString(line):
			m := bulletLine.FindStringSubmatch(line)
			pdf.SetFont("Helvetica", "", bodySize)
			pdf.SetX(pdf.GetX() + 4)
			basic.Write(lineHeight, tr("• "+inlineHTML(m[1])))
			pdf.Ln(lineHeight)
		default:
			pdf.SetFont("Helvetica", "", bodySize)
			basic.Write(lineHeight, tr(inlineHTML(line)))
			pdf.Ln(lineHeight)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// inlineHTML turns markdown emphasis and links into the tags fpdf's basic
// HTML writer understands
func inlineHTML(s string) string {
	s = linkSpan.ReplaceAllString(s, `<a href="$2">$1</a>`)
	s = boldSpan.ReplaceAllString(s, "<b>$1</b>")
	return strings.NewReplacer("\\*", "*", "\\_", "_", "\\#", "#").Replace(s)
}

func stripMarkup(s string) string {
	s = linkSpan.ReplaceAllString(s, "$1")
	s = boldSpan.ReplaceAllString(s, "$1")
	s = italicSpan.ReplaceAllStringFunc(s, func(m string) string {
		return strings.NewReplacer("*", "", "_", "").Replace(m)
	})
	return strings.NewReplacer("\\*", "*", "\\_", "_", "\\#", "#").Replace(s)
}
