package cmd

import (
	"github.com/spf13/cobra"
)

var (
	dataDir    string
	configPath string
	dimension  int
)

var rootCmd = &cobra.Command{
	Use:   "hybridann",
	Short: "hybridann is a hybrid KD-forest / neighborhood-graph approximate nearest-neighbor index",
	Long: `hybridann builds and queries an approximate nearest-neighbor index that
seeds a best-first graph search from a randomized KD-forest.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "dir", "./hybridann-data", "index data directory (four blobs per save)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "INI config file ([Index] section); defaults are used when empty")
	rootCmd.PersistentFlags().IntVar(&dimension, "dim", 0, "vector dimension (0: build takes it from the first input vector, other commands from the saved index)")
}
