package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hybridann/hybridann/engine"
)

var (
	searchQuery          string
	searchK              int
	searchIncludeDeleted bool
	searchWithMetadata   bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Query the index for the k nearest neighbors of a vector",
	RunE:  runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVar(&searchQuery, "query", "", "comma-separated query vector (required)")
	searchCmd.Flags().IntVar(&searchK, "k", 10, "number of neighbors to return")
	searchCmd.Flags().BoolVar(&searchIncludeDeleted, "include-deleted", false, "include tombstoned ids in results")
	searchCmd.Flags().BoolVar(&searchWithMetadata, "with-metadata", false, "attach stored payloads to results")
	searchCmd.MarkFlagRequired("query")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	query, err := parseQuery(searchQuery)
	if err != nil {
		return err
	}
	if dimension == 0 {
		dimension = len(query)
	}

	params, err := loadParams()
	if err != nil {
		return err
	}

	e, err := engine.LoadIndexData[float32](ctx, dataDir, dimension, params)
	if err != nil {
		return fmt.Errorf("loading index: %w", err)
	}

	results, err := e.Search(ctx, query, engine.SearchOptions{
		K:             searchK,
		SearchDeleted: searchIncludeDeleted,
		WithMetadata:  searchWithMetadata,
	})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	for _, r := range results {
		if searchWithMetadata && r.Metadata != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%f\t%s\n", r.VID, r.Dist, r.Metadata)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%f\n", r.VID, r.Dist)
		}
	}
	return nil
}
