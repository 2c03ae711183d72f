package ingest

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/ledongthuc/pdf"

	"github.com/tagus/enterprise-agents/pkg/filegen"
)

// Page is the text of one page of a file; formats without pages yield a
// single page 1
type Page struct {
	Number int
	Text   string
}

// Extract returns the text pages of data given its detected extension
func Extract(data []byte, ext string) ([]Page, error) {
	switch ext {
	case ".pdf":
		return pdfPages(data)
	case ".docx":
		text, err := filegen.DocxText(data)
		if err != nil {
			return nil, err
		}
		return singlePage(text), nil
	case ".html":
		text, err := htmltomarkdown.ConvertString(string(data))
		if err != nil {
			return nil, fmt.Errorf("failed to convert html: %w", err)
		}
		return singlePage(text), nil
	case ".txt", ".md":
		return singlePage(string(data)), nil
	}
	return nil, fmt.Errorf("%w: cannot extract text from %s files", ErrUnsupportedFile, ext)
}

func singlePage(text string) []Page {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return []Page{{Number: 1, Text: text}}
}

func pdfPages(data []byte) ([]Page, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf: %w", err)
	}
	var pages []Page
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read pdf page %d: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}

var whitespace = regexp.MustCompile(`\s+`)

// NormalizeText collapses whitespace and stray punctuation left by extraction
func NormalizeText(s string) string {
	s = strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
	s = strings.ReplaceAll(s, " . ,", "")
	s = strings.ReplaceAll(s, "..", ".")
	s = strings.ReplaceAll(s, ". .", ".")
	return strings.TrimSpace(s)
}

// FileTitle is the human readable title used in chunk citations: the
// filename without extension, underscores replaced by spaces
func FileTitle(filename string) string {
	name := filename
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	name = strings.ReplaceAll(name, "_", " ")
	return strings.Join(strings.Fields(name), " ")
}
