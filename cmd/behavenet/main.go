package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/eivinasbutkus/behavenet/internal/config"
	"github.com/eivinasbutkus/behavenet/internal/logging"
)

var version = "0.2.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "behavenet",
		Short: "Latent-variable models for behavioral neuroscience",
		Long: `behavenet fits latent-variable models to neural and behavioral
recordings: it smooths spike or calcium counts into firing rates, reduces
them with PCA, fits input-driven autoregressive HMMs over continuous
latent trajectories, samples forward trajectories from fitted models, and
renders diagnostic plots and composite movies.`,
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "Config file path (default ~/.behavenet/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log verbosity: info, debug, or trace")

	rootCmd.AddCommand(
		newVersionCmd(),
		newConfigCmd(),
		newPreprocessCmd(),
		newFitCmd(),
		newSampleCmd(),
		newMovieCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("behavenet version %s\n", version)
		},
	}
}

// loadConfig resolves the configuration and logger for a command, honoring
// the global --config and --log-level flags.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	level := cfg.Logging.Level
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		level = v
	}
	log := logging.NewLogger(level, os.Stderr)
	return cfg, log, nil
}
