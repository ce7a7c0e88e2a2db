package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hybridann/hybridann/engine"
)

var (
	addInput    string
	addPayloads string
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Append vectors from a file to the index under --dir",
	RunE:  runAdd,
}

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().StringVar(&addInput, "input", "", "path to a CSV file, one vector per line (required)")
	addCmd.Flags().StringVar(&addPayloads, "payloads", "", "path to a file with one payload per line, aligned with --input")
	addCmd.MarkFlagRequired("input")
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	vectors, err := loadVectors(addInput)
	if err != nil {
		return fmt.Errorf("reading vectors: %w", err)
	}
	payloads, err := loadPayloads(addPayloads)
	if err != nil {
		return fmt.Errorf("reading payloads: %w", err)
	}

	params, err := loadParams()
	if err != nil {
		return err
	}
	if dimension == 0 && len(vectors) > 0 {
		dimension = len(vectors[0])
	}

	e, err := engine.LoadIndexData[float32](ctx, dataDir, dimension, params)
	if err != nil {
		return fmt.Errorf("loading index: %w", err)
	}

	begin, err := e.Add(ctx, vectors, payloads)
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}
	if err := e.SaveIndexData(ctx, dataDir); err != nil {
		return fmt.Errorf("save: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "added %d vectors starting at vid %d, index now holds %d rows\n", len(vectors), begin, e.R())
	return nil
}
