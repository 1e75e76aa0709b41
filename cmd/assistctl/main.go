package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "assistctl",
	Short: "Command line client for the incident-assist API",
	Long: `assistctl talks to a running incident-assist server.

It can ingest documents into the index, ask for incident checklists
and manage vector collections.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("ASSIST_SERVER_URL", "http://localhost:9000"), "base URL of the incident-assist API")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
