package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hybridann/hybridann/engine"
)

var refineCmd = &cobra.Command{
	Use:   "refine",
	Short: "Compact the index, reclaiming tombstoned rows, and save the result",
	RunE:  runRefine,
}

func init() {
	rootCmd.AddCommand(refineCmd)
}

func runRefine(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	params, err := loadParams()
	if err != nil {
		return err
	}

	e, err := engine.LoadIndexData[float32](ctx, dataDir, dimension, params)
	if err != nil {
		return fmt.Errorf("loading index: %w", err)
	}

	before := e.R()
	refined, err := e.Refine(ctx)
	if err != nil {
		return fmt.Errorf("refine: %w", err)
	}
	if err := refined.SaveIndexData(ctx, dataDir); err != nil {
		return fmt.Errorf("save: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "refined index: %d -> %d rows\n", before, refined.R())
	return nil
}
