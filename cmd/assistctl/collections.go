package main

import (
	"context"

	"github.com/spf13/cobra"

	"incident-assist/internal/handlers"
)

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "Manage vector collections",
}

var collectionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List collections and their point counts",
	Args:  cobra.NoArgs,
	RunE:  runCollectionsList,
}

var collectionsDeleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Delete a collection",
	Args:  cobra.ExactArgs(1),
	RunE:  runCollectionsDelete,
}

func init() {
	collectionsCmd.AddCommand(collectionsListCmd)
	collectionsCmd.AddCommand(collectionsDeleteCmd)
	rootCmd.AddCommand(collectionsCmd)
}

func runCollectionsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	client := newAPIClient(serverURL)

	var resp struct {
		Collections []handlers.CollectionInfo `json:"collections"`
	}
	if err := client.get(ctx, "/api/v1/collections", &resp); err != nil {
		return err
	}

	if len(resp.Collections) == 0 {
		cmd.Println("No collections.")
		return nil
	}
	for _, c := range resp.Collections {
		cmd.Printf("  %s (%d points)\n", c.Name, c.Points)
	}
	return nil
}

func runCollectionsDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	client := newAPIClient(serverURL)

	name := args[0]
	if err := client.delete(ctx, "/api/v1/collections/"+name); err != nil {
		return err
	}
	cmd.Printf("Collection %s deleted.\n", name)
	return nil
}
