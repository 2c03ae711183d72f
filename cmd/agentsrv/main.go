// Command agentsrv serves the enterprise agents over HTTP and offers a few
// operator commands against the same stack.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var (
	configFile string
	envFiles   []string
	agentsFile string
	logLevel   string
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "agentsrv",
	Short: "Enterprise chat and RAG agents",
	Long: `agentsrv runs the enterprise agents.

Available commands:
  serve  - Start the HTTP API
  ask    - Send one query to an agent and stream the answer
  ingest - Add a local file to an agent's knowledge base
  purge  - Remove a file from an agent's knowledge base
  agents - List the configured agents`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (yaml, json or toml) merged into the environment")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "Dotenv files to load (default: .env when present)")
	rootCmd.PersistentFlags().StringVar(&agentsFile, "agents", "", "YAML file overriding or adding agent profiles")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Timeout for one-shot commands")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(agentsCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
