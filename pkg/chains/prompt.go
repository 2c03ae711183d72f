package chains

import (
	"fmt"
	"strings"

	"github.com/tagus/enterprise-agents/pkg/interfaces"
)

// Vars are the placeholder values of a prompt template
type Vars map[string]string

// Render replaces every {name} placeholder of tmpl with its value. Unknown
// placeholders are left untouched.
func Render(tmpl string, vars Vars) string {
	if len(vars) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func (in Input) vars() Vars {
	imageContext := in.ImageContext
	if imageContext == "" {
		imageContext = NoImageContext
	}
	return Vars{
		"query":              in.Query,
		"username":           in.Username,
		"timestamp":          in.Timestamp,
		"enterprise_context": in.EnterpriseContext,
		"image_context":      imageContext,
		"web_search":         webSearchAnswer(in.WebSearch),
	}
}

func webSearchAnswer(enabled bool) string {
	if enabled {
		return "Yes, you are able."
	}
	return "No, you are not."
}

// FormatDocuments renders documents as a numbered list for the prompt context
func FormatDocuments(docs []interfaces.Document) string {
	if len(docs) == 0 {
		return "[]"
	}
	var b strings.Builder
	for i, d := range docs {
		fmt.Fprintf(&b, "Document %d:\n", i+1)
		if len(d.Metadata) > 0 {
			b.WriteString("metadata: {")
			first := true
			for _, key := range []string{"context_type", "title", "page_number", "URL", interfaces.FileNameKey} {
				v, ok := d.Metadata[key]
				if !ok {
					continue
				}
				if !first {
					b.WriteString(", ")
				}
				fmt.Fprintf(&b, "'%s': '%v'", key, v)
				first = false
			}
			b.WriteString("}\n")
		}
		b.WriteString("page_content: ")
		b.WriteString(d.Content)
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
