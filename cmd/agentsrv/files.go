package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tagus/enterprise-agents/pkg/ingest"
)

var (
	fileAgent   string
	fileUser    string
	fileDocID   string
	extractType string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Add a local file to an agent's knowledge base",
	Long: `Upload a local file, split it into chunks and index them.

Without --user the file joins the agent's public knowledge base. With
--user and --doc-id it is stored as the user's private document.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var purgeCmd = &cobra.Command{
	Use:   "purge [filename]",
	Short: "Remove a file from an agent's knowledge base",
	Long: `Delete a public knowledge base file by name, or with --user and
--doc-id a user's private document.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPurge,
}

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List the configured agents",
	RunE: func(cmd *cobra.Command, _ []string) error {
		registry, err := loadRegistry()
		if err != nil {
			return err
		}
		for _, p := range registry.All() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-20s %-40s %v\n", p.Name, p.Collection(), p.Routes)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{ingestCmd, purgeCmd} {
		c.Flags().StringVarP(&fileAgent, "agent", "a", "GeneralAgent", "Agent owning the knowledge base")
		c.Flags().StringVarP(&fileUser, "user", "u", "", "Owner of a private document")
		c.Flags().StringVar(&fileDocID, "doc-id", "", "Id of a private document")
	}
	ingestCmd.Flags().StringVar(&extractType, "extract-type", "fast", "Extraction strategy (fast or high_resolution)")
}

// fileRequest reads path into an ingest request
func fileRequest(path string) (ingest.FileRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ingest.FileRequest{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ingest.FileRequest{
		File:        base64.StdEncoding.EncodeToString(data),
		Filename:    filepath.Base(path),
		DocID:       fileDocID,
		UserID:      fileUser,
		ExtractType: extractType,
	}, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	req, err := fileRequest(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	var out *ingest.Output
	if fileUser != "" {
		out, err = a.service.ProcessUserFile(ctx, fileAgent, req)
	} else {
		out, err = a.service.ProcessKBFile(ctx, fileAgent, req)
	}
	if err != nil {
		return err
	}
	return printMessage(cmd.OutOrStdout(), out)
}

func runPurge(cmd *cobra.Command, args []string) error {
	req := ingest.PurgeRequest{DocID: fileDocID, UserID: fileUser}
	if len(args) == 1 {
		req.Filename = args[0]
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	var out *ingest.Output
	if fileUser != "" {
		out, err = a.service.PurgeUserFiles(ctx, fileAgent, req)
	} else {
		out, err = a.service.PurgeKBFile(ctx, fileAgent, req)
	}
	if err != nil {
		return err
	}
	return printMessage(cmd.OutOrStdout(), out)
}

func printMessage(w io.Writer, out *ingest.Output) error {
	for k, v := range out.Message {
		if _, err := fmt.Fprintf(w, "%s: %v\n", k, v); err != nil {
			return err
		}
	}
	return nil
}
