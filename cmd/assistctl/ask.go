package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"incident-assist/internal/assist"
)

var (
	askTopK     int
	askMode     string
	askSeverity string
	askMaxItems int
	askService  string
	askJSON     bool
	askMarkdown bool
)

var askCmd = &cobra.Command{
	Use:   "ask [query]",
	Short: "Generate an incident checklist",
	Long: `Asks the server for a prioritized checklist grounded in the
indexed playbooks, runbooks and incident logs.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of chunks to retrieve (default 5, max 20)")
	askCmd.Flags().StringVar(&askMode, "mode", "", "synthesis mode: rule_based or generative")
	askCmd.Flags().StringVar(&askSeverity, "severity", "", "incident severity (e.g. P1)")
	askCmd.Flags().IntVar(&askMaxItems, "max-items", 0, "maximum checklist items (default 10)")
	askCmd.Flags().StringVar(&askService, "service", "", "filter retrieval to a service")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the full response as JSON")
	askCmd.Flags().BoolVar(&askMarkdown, "markdown", false, "output the checklist as a markdown task list")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	client := newAPIClient(serverURL)

	req := assist.AskRequest{
		Query:    args[0],
		TopK:     askTopK,
		Mode:     askMode,
		Severity: askSeverity,
		MaxItems: askMaxItems,
	}
	if askService != "" {
		req.Filters = map[string]any{"service": askService}
	}

	if askMarkdown {
		md, err := client.postRaw(ctx, "/api/v1/ask/export", req)
		if err != nil {
			return err
		}
		cmd.Print(md)
		return nil
	}

	var resp assist.AskResponse
	if err := client.postJSON(ctx, "/api/v1/ask", req, &resp); err != nil {
		return err
	}

	if askJSON {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal response: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	return printChecklist(cmd, resp)
}

func printChecklist(cmd *cobra.Command, resp assist.AskResponse) error {
	cl := resp.Checklist
	if len(cl.Items) == 0 {
		cmd.Println("No matching guidance found.")
		return nil
	}

	mode := string(cl.Mode)
	if cl.FellBack {
		mode += " (fell back)"
	}
	cmd.Printf("Checklist (%s, %d chunks retrieved):\n\n", mode, resp.ChunksRetrieved)

	for _, item := range cl.Items {
		cmd.Printf("  %d. %s\n", item.Priority, item.Text)
		if item.Command != "" {
			cmd.Printf("     Command:  %s\n", item.Command)
		}
		if item.Verify != "" {
			cmd.Printf("     Verify:   %s\n", item.Verify)
		}
		if item.Rollback != "" {
			cmd.Printf("     Rollback: %s\n", item.Rollback)
		}
		for _, ref := range item.References {
			if src, ok := cl.Sources[ref]; ok {
				loc := src.Location
				if loc != "" {
					loc = ", " + loc
				}
				cmd.Printf("     Source:   %s%s\n", src.DocumentName, loc)
			}
		}
	}
	return nil
}
