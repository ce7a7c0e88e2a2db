package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hybridann/hybridann/core"
	"github.com/hybridann/hybridann/engine"
)

var (
	deleteVID   int32
	deleteQuery string
)

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Tombstone a vector by id or by near-duplicate vector match",
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().Int32Var(&deleteVID, "vid", -1, "vector id to delete")
	deleteCmd.Flags().StringVar(&deleteQuery, "query", "", "comma-separated vector; deletes every near-duplicate match instead")
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	params, err := loadParams()
	if err != nil {
		return err
	}

	e, err := engine.LoadIndexData[float32](ctx, dataDir, dimension, params)
	if err != nil {
		return fmt.Errorf("loading index: %w", err)
	}

	if deleteQuery != "" {
		query, err := parseQuery(deleteQuery)
		if err != nil {
			return err
		}
		n, err := e.DeleteVector(ctx, query)
		if err != nil {
			return fmt.Errorf("delete by vector: %w", err)
		}
		if err := e.SaveIndexData(ctx, dataDir); err != nil {
			return fmt.Errorf("save: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d near-duplicates\n", n)
		return nil
	}

	if deleteVID < 0 {
		return fmt.Errorf("one of --vid or --query is required")
	}
	if err := e.Delete(ctx, core.VID(deleteVID)); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if err := e.SaveIndexData(ctx, dataDir); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted vid %d\n", deleteVID)
	return nil
}
