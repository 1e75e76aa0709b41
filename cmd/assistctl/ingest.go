package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"incident-assist/internal/document"
	"incident-assist/internal/handlers"
	"incident-assist/internal/indexer"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Ingest documents into the index",
	Long: `Reads the given playbook, runbook or log files and sends them to
the server for chunking, embedding and indexing.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Reindex the server's corpus directory",
	Args:  cobra.NoArgs,
	RunE:  runReindex,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(reindexCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	client := newAPIClient(serverURL)

	req := handlers.IngestRequest{}
	for _, path := range args {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		name := filepath.Base(path)
		req.Documents = append(req.Documents, handlers.IngestDocument{
			ID:         name,
			Name:       name,
			SourceType: string(document.InferSourceType(name, string(content))),
			Content:    string(content),
			Metadata:   map[string]any{"source_path": path},
		})
	}

	var report indexer.IndexingReport
	if err := client.postJSON(ctx, "/api/v1/ingest", req, &report); err != nil {
		return err
	}
	printReport(cmd, report)
	return nil
}

func runReindex(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	client := newAPIClient(serverURL)

	var report indexer.IndexingReport
	if err := client.postJSON(ctx, "/api/v1/reindex", nil, &report); err != nil {
		return err
	}
	printReport(cmd, report)
	return nil
}

func printReport(cmd *cobra.Command, report indexer.IndexingReport) {
	cmd.Printf("Documents processed: %d\n", report.DocsProcessed)
	cmd.Printf("Chunks created:      %d\n", report.ChunksCreated)
	cmd.Printf("Chunks embedded:     %d\n", report.ChunksEmbedded)
	cmd.Printf("Chunks upserted:     %d\n", report.ChunksUpserted)
	if len(report.Failed) > 0 {
		cmd.Printf("Failed documents (%d):\n", len(report.Failed))
		for _, f := range report.Failed {
			cmd.Printf("  %s: %s (%s)\n", f.DocumentID, f.Error, f.Kind)
		}
	}
}
