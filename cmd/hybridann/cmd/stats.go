package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hybridann/hybridann/engine"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the index's row count, dimension, and deleted count",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	params, err := loadParams()
	if err != nil {
		return err
	}

	e, err := engine.LoadIndexData[float32](ctx, dataDir, dimension, params)
	if err != nil {
		return fmt.Errorf("loading index: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "dimension:\t%d\n", e.Dimension())
	fmt.Fprintf(out, "rows:\t\t%d\n", e.R())
	fmt.Fprintf(out, "deleted:\t%d\n", e.DeletedCount())
	if ranges := e.DeletedBitmap().ToArray(); len(ranges) > 0 {
		fmt.Fprintf(out, "deleted ids:\t%s\n", formatIDRanges(ranges))
	}
	fmt.Fprintf(out, "ready:\t\t%v\n", e.Ready())
	for _, name := range e.ParameterNames() {
		value, _ := e.GetParameter(name, "")
		fmt.Fprintf(out, "param %s:\t%s\n", name, value)
	}
	return nil
}
