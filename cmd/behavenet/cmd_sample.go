package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"

	"github.com/eivinasbutkus/behavenet/internal/cache"
	"github.com/eivinasbutkus/behavenet/internal/dataset"
	"github.com/eivinasbutkus/behavenet/internal/harness"
	"github.com/eivinasbutkus/behavenet/internal/plots"
)

func newSampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Draw forward trajectories from a fitted model",
		Long: `Draw independent forward samples from a cached fit, conditioned on one
trial's input sequence. The sample bundle is cached under --results-name.
With --plot-latents or --plot-states, diagnostic figures are written to
the figures directory.

Example:
  behavenet sample --fit arhmm_k8 --data latents.gob --trial 0 \
    --num-samples 100 --results-name arhmm_k8_samples`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			fitName, _ := cmd.Flags().GetString("fit")
			dataPath, _ := cmd.Flags().GetString("data")
			name, _ := cmd.Flags().GetString("results-name")
			if fitName == "" || dataPath == "" || name == "" {
				return fmt.Errorf("--fit, --data, and --results-name are required")
			}

			trial, _ := cmd.Flags().GetInt("trial")
			numSamples, _ := cmd.Flags().GetInt("num-samples")
			withNoise, _ := cmd.Flags().GetBool("with-noise")
			seed, _ := cmd.Flags().GetUint64("seed")

			store, err := cache.Open(cfg.Cache, cfg.Dirs.SaveDir)
			if err != nil {
				return err
			}
			defer store.Close()

			// A sample command on a missing fit is an error, not a refit.
			fit, err := cache.Cached(store, fitName, func() (*harness.FitResult, error) {
				return nil, fmt.Errorf("no cached fit named %q; run behavenet fit first", fitName)
			})
			if err != nil {
				return err
			}

			set, err := dataset.LoadSet(dataPath)
			if err != nil {
				return err
			}
			if trial < 0 || trial >= set.Len() {
				return fmt.Errorf("trial %d out of range [0, %d)", trial, set.Len())
			}
			input := set.Input(trial)
			if input == nil {
				// Stationary models take the horizon from the data trial.
				input = set.Data[trial]
			}

			bundle, err := cache.Cached(store, name, func() (*harness.SampleBundle, error) {
				log.Info("sampling", "fit", fitName, "trial", trial,
					"num_samples", numSamples, "with_noise", withNoise)
				rng := rand.New(rand.NewSource(seed))
				return harness.SampleARHMM(fit.Model, input, numSamples, withNoise, rng)
			})
			if err != nil {
				return err
			}
			log.Info("sampling done", "draws", len(bundle.Trajectories))

			if out, _ := cmd.Flags().GetString("plot-latents"); out != "" {
				fig, err := plots.SampledLatents(set.Data[trial], bundle.Trajectories)
				if err != nil {
					return err
				}
				path := filepath.Join(cfg.Dirs.FigDir, out)
				if err := fig.Save(path); err != nil {
					return err
				}
				log.Info("wrote figure", "path", path)
			}
			if out, _ := cmd.Flags().GetString("plot-states"); out != "" {
				inferred, err := fit.Model.MostLikelyStates(set.Data[trial], set.Input(trial))
				if err != nil {
					return err
				}
				fig, err := plots.NeuralAndDiscreteSamples(input, bundle.States, inferred, fit.Model.Cfg.K)
				if err != nil {
					return err
				}
				path := filepath.Join(cfg.Dirs.FigDir, out)
				if err := fig.Save(path); err != nil {
					return err
				}
				log.Info("wrote figure", "path", path)
			}
			return nil
		},
	}

	cmd.Flags().String("fit", "", "Cache key of the fitted model")
	cmd.Flags().String("data", "", "Latent trajectories file (gob)")
	cmd.Flags().String("results-name", "", "Cache key for the sample bundle")
	cmd.Flags().Int("trial", 0, "Trial whose inputs condition the samples")
	cmd.Flags().Int("num-samples", 100, "Number of independent draws")
	cmd.Flags().Bool("with-noise", true, "Sample with emission noise")
	cmd.Flags().Uint64("seed", 0, "Random seed for sampling")
	cmd.Flags().String("plot-latents", "", "Write a sampled-latents figure with this file name")
	cmd.Flags().String("plot-states", "", "Write a discrete-states figure with this file name")
	return cmd
}
