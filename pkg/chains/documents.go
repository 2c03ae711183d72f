package chains

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/tagus/enterprise-agents/pkg/structuredoutput"
)

// StageSuccess builds the assistant stage for a completed request
func StageSuccess(detail string) string {
	return fmt.Sprintf(stageSuccess, detail)
}

// StageFailure builds the assistant stage for a failed request
func StageFailure(detail string) string {
	return fmt.Sprintf(stageFailure, detail)
}

// Assist streams a short status message about a file or image request
func (c *Chains) Assist(ctx context.Context, in Input, stage string) (string, error) {
	vars := in.vars()
	vars["conversation_stage"] = stage
	return c.respond(ctx, "assistant", Render(fileGenAssistantPrompt, vars), withHuman(in, Render(fileGenAssistantTurn, vars)))
}

// withHuman replaces the user turn while keeping history and images
func withHuman(in Input, human string) Input {
	in.Query = human
	return in
}

var fencePattern = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// WriteHTML produces an HTML document answering the request
func (c *Chains) WriteHTML(ctx context.Context, in Input) (string, error) {
	vars := in.vars()
	out, err := c.text(ctx, longHelperProfile, Render(htmlWriterPrompt, vars), Render(htmlWriterTurn, vars), in.History)
	if err != nil {
		return "", fmt.Errorf("html writer: %w", err)
	}
	if m := fencePattern.FindStringSubmatch(out); m != nil {
		out = m[1]
	}
	return out, nil
}

var unsafeFilename = regexp.MustCompile(`[^a-z0-9-]+`)

// SanitizeFilename lowercases name and keeps only letters, digits and single hyphens
func SanitizeFilename(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimPrefix(name, "filename:")
	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "-")
	name = unsafeFilename.ReplaceAllString(name, "-")
	for strings.Contains(name, "--") {
		name = strings.ReplaceAll(name, "--", "-")
	}
	name = strings.Trim(name, "-")
	if name == "" {
		return "document"
	}
	return name
}

// FilenameFromHTML names a generated document after its HTML content, without extension
func (c *Chains) FilenameFromHTML(ctx context.Context, in Input, html string) (string, error) {
	out, err := c.text(ctx, helperProfile, Render(htmlFilenamePrompt, in.vars()), html, nil)
	if err != nil {
		return "", fmt.Errorf("filename generator: %w", err)
	}
	return SanitizeFilename(out), nil
}

// DocumentSection is one heading and its body
type DocumentSection struct {
	Heading string `json:"heading" description:"Section heading"`
	Body    string `json:"body" description:"Section body in plain paragraphs"`
}

// DocumentDraft is a structured business document
type DocumentDraft struct {
	Title    string            `json:"title" description:"Document title"`
	Sections []DocumentSection `json:"sections" description:"Ordered document sections"`
}

var documentDraftFormat = structuredoutput.NewResponseFormat(DocumentDraft{})

// DraftDocument drafts a structured document such as a SoW from the conversation
func (c *Chains) DraftDocument(ctx context.Context, in Input) (*DocumentDraft, error) {
	vars := in.vars()
	var draft DocumentDraft
	err := c.structured(ctx, longHelperProfile, Render(documentDrafterPrompt, vars), Render(documentDrafterTurn, vars), in.History, documentDraftFormat, &draft)
	if err != nil {
		return nil, fmt.Errorf("document drafter: %w", err)
	}
	if strings.TrimSpace(draft.Title) == "" {
		draft.Title = "Scope of Work"
	}
	return &draft, nil
}
