package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/eivinasbutkus/behavenet/internal/cache"
	"github.com/eivinasbutkus/behavenet/internal/dataset"
	"github.com/eivinasbutkus/behavenet/internal/plots"
	"github.com/eivinasbutkus/behavenet/internal/preprocess"
)

func newPreprocessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preprocess",
		Short: "Smooth neural counts into rates and reduce with PCA",
		Long: `Estimate firing rates from trial-structured spike or calcium counts and
project them onto principal components. The result is cached under
--results-name in the save directory; rerunning with the same name
returns the cached result without recomputing.

Example:
  behavenet preprocess --input counts.gob --results-name neural_pcs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			input, _ := cmd.Flags().GetString("input")
			name, _ := cmd.Flags().GetString("results-name")
			if input == "" {
				return fmt.Errorf("--input is required")
			}
			if name == "" {
				return fmt.Errorf("--results-name is required")
			}

			opts := preprocess.DefaultOptions()
			opts.SampleRate, _ = cmd.Flags().GetFloat64("fs")
			opts.Window, _ = cmd.Flags().GetFloat64("window")
			opts.Components, _ = cmd.Flags().GetInt("components")

			counts, err := dataset.LoadSet(input)
			if err != nil {
				return err
			}
			log.Info("loaded counts", "trials", counts.Len())

			store, err := cache.Open(cfg.Cache, cfg.Dirs.SaveDir)
			if err != nil {
				return err
			}
			defer store.Close()

			result, err := cache.Cached(store, name, func() (*preprocess.Result, error) {
				log.Info("preprocessing", "fs", opts.SampleRate, "window", opts.Window,
					"components", opts.Components)
				return preprocess.Run(counts.Data, opts)
			})
			if err != nil {
				return err
			}
			log.Info("preprocessing done", "trials", len(result.LowD), "components", opts.Components)

			if plotOut, _ := cmd.Flags().GetString("plot"); plotOut != "" {
				from, _ := cmd.Flags().GetInt("plot-from")
				to, _ := cmd.Flags().GetInt("plot-to")
				fig, err := plots.NeuralActivity(result.LowD[0], result.NormalizedRates[0], from, to)
				if err != nil {
					return err
				}
				path := filepath.Join(cfg.Dirs.FigDir, plotOut)
				if err := fig.Save(path); err != nil {
					return err
				}
				log.Info("wrote figure", "path", path)
			}
			return nil
		},
	}

	cmd.Flags().String("input", "", "Trial-structured counts file (gob)")
	cmd.Flags().String("results-name", "", "Cache key for the result")
	cmd.Flags().Float64("fs", 40, "Neural sampling rate (Hz)")
	cmd.Flags().Float64("window", 0.1, "Gaussian smoothing window (s)")
	cmd.Flags().Int("components", 20, "Number of principal components")
	cmd.Flags().String("plot", "", "Also render a neural-activity figure with this file name")
	cmd.Flags().Int("plot-from", 0, "First time step of the plotted slice")
	cmd.Flags().Int("plot-to", 10000, "One past the last time step of the plotted slice")
	return cmd
}
