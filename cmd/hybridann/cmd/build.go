package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hybridann/hybridann/config"
	"github.com/hybridann/hybridann/engine"
	"github.com/hybridann/hybridann/metadata"
)

var (
	buildInput    string
	buildPayloads string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a new index from a vectors file and save it under --dir",
	RunE:  runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().StringVar(&buildInput, "input", "", "path to a CSV file, one vector per line (required)")
	buildCmd.Flags().StringVar(&buildPayloads, "payloads", "", "path to a file with one payload per line, aligned with --input")
	buildCmd.MarkFlagRequired("input")
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	vectors, err := loadVectors(buildInput)
	if err != nil {
		return fmt.Errorf("reading vectors: %w", err)
	}
	if len(vectors) == 0 {
		return fmt.Errorf("no vectors read from %s", buildInput)
	}
	if dimension == 0 {
		dimension = len(vectors[0])
	}

	payloads, err := loadPayloads(buildPayloads)
	if err != nil {
		return fmt.Errorf("reading payloads: %w", err)
	}

	params, err := loadParams()
	if err != nil {
		return err
	}

	var opts []engine.Option[float32]
	if payloads != nil {
		opts = append(opts, engine.WithMetadata[float32](metadata.New(false)))
	}

	e, err := engine.New[float32](dimension, params, opts...)
	if err != nil {
		return err
	}
	if err := e.Build(ctx, vectors, payloads); err != nil {
		return fmt.Errorf("build: %w", err)
	}
	if err := e.SaveIndexData(ctx, dataDir); err != nil {
		return fmt.Errorf("save: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "built index with %d vectors (dim=%d) in %s\n", e.R(), e.Dimension(), dataDir)
	return saveConfigIfRequested(params)
}

func saveConfigIfRequested(params engine.Parameters) error {
	if configPath == "" {
		return nil
	}
	return config.SaveFile(configPath, params)
}
