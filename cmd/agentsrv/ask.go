package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tagus/enterprise-agents/pkg/chat"
	"github.com/tagus/enterprise-agents/pkg/events"
)

var (
	askAgent     string
	askUser      string
	askSession   string
	askWeb       bool
	askDocIDs    []string
	askImageURLs []string
	askJSON      bool
)

var askCmd = &cobra.Command{
	Use:   "ask [query]",
	Short: "Send one query to an agent and stream the answer",
	Long: `Send one query to an agent. Progress events are printed as they
arrive, followed by the answer and any generated files.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askAgent, "agent", "a", "GeneralAgent", "Agent to ask")
	askCmd.Flags().StringVarP(&askUser, "user", "u", "", "User email (required)")
	askCmd.Flags().StringVarP(&askSession, "session", "s", "default", "Session id")
	askCmd.Flags().BoolVar(&askWeb, "web", false, "Allow web search")
	askCmd.Flags().StringSliceVar(&askDocIDs, "doc", nil, "Uploaded document ids to search")
	askCmd.Flags().StringSliceVar(&askImageURLs, "image", nil, "Blob URLs of uploaded images")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the full output as JSON")
	_ = askCmd.MarkFlagRequired("user")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	in := chat.Input{
		Query:         strings.Join(args, " "),
		Username:      askUser,
		ImageBlobURLs: askImageURLs,
		WebSearch:     askWeb,
		DocIDs:        askDocIDs,
	}

	out := cmd.OutOrStdout()
	sink := events.SinkFunc(func(_ context.Context, e events.Event) {
		printEvent(out, e)
	})
	result, err := a.service.Stream(ctx, askAgent, askSession, in, sink)
	if err != nil {
		return err
	}
	return printOutput(out, result, askJSON)
}

func printEvent(w io.Writer, e events.Event) {
	switch e.Name {
	case events.FinalAnswer, events.FinalContext, events.FinalCharts:
		return
	}
	fmt.Fprintf(w, "» %s\n", e.Name)
}

func printOutput(w io.Writer, result *chat.Output, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	fmt.Fprintf(w, "\n%s\n", result.Answer)
	if len(result.Context) > 0 {
		fmt.Fprintf(w, "\nSources: %d documents\n", len(result.Context))
	}
	for label, url := range map[string]string{
		"Image": result.ImageBlobURL,
		"PDF":   result.PDFBlobURL,
		"Docx":  result.DocxBlobURL,
	} {
		if url != "" {
			fmt.Fprintf(w, "%s: %s\n", label, url)
		}
	}
	for name, url := range result.Charts {
		fmt.Fprintf(w, "Chart %s: %s\n", name, url)
	}
	return nil
}
