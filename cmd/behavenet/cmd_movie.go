package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/eivinasbutkus/behavenet/internal/cache"
	"github.com/eivinasbutkus/behavenet/internal/harness"
	"github.com/eivinasbutkus/behavenet/internal/movie"
)

func newMovieCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "movie",
		Short: "Render a composite movie of real and decoded frames",
		Long: `Render a "hollywood squares" movie: the real video frames next to each
decoded frame stack, every panel stamped with a state-colored chip taken
from the cached fit (real panel) and sample bundle (decoded panels).
Requires ffmpeg on the PATH; a missing or failing encoder is fatal.

Example:
  behavenet movie --real real.gob --decoded dec1.gob --decoded dec2.gob \
    --fit arhmm_k8 --sample arhmm_k8_samples --out hollywood.mp4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			realPath, _ := cmd.Flags().GetString("real")
			decodedPaths, _ := cmd.Flags().GetStringArray("decoded")
			fitName, _ := cmd.Flags().GetString("fit")
			sampleName, _ := cmd.Flags().GetString("sample")
			out, _ := cmd.Flags().GetString("out")
			if realPath == "" || len(decodedPaths) == 0 || fitName == "" || sampleName == "" || out == "" {
				return fmt.Errorf("--real, --decoded, --fit, --sample, and --out are required")
			}

			trial, _ := cmd.Flags().GetInt("trial")

			store, err := cache.Open(cfg.Cache, cfg.Dirs.SaveDir)
			if err != nil {
				return err
			}
			defer store.Close()

			fit, err := cache.Cached(store, fitName, func() (*harness.FitResult, error) {
				return nil, fmt.Errorf("no cached fit named %q", fitName)
			})
			if err != nil {
				return err
			}
			bundle, err := cache.Cached(store, sampleName, func() (*harness.SampleBundle, error) {
				return nil, fmt.Errorf("no cached sample bundle named %q", sampleName)
			})
			if err != nil {
				return err
			}
			if trial < 0 || trial >= len(fit.TrainStates) {
				return fmt.Errorf("trial %d out of range [0, %d)", trial, len(fit.TrainStates))
			}
			if len(decodedPaths) > len(bundle.States) {
				return fmt.Errorf("%d decoded stacks but only %d sampled state paths", len(decodedPaths), len(bundle.States))
			}

			realStack, err := movie.LoadStack(realPath)
			if err != nil {
				return err
			}
			decoded := make([]*movie.ImageStack, len(decodedPaths))
			for i, p := range decodedPaths {
				decoded[i], err = movie.LoadStack(p)
				if err != nil {
					return err
				}
			}

			opts := movie.DefaultOptions()
			opts.FPS, _ = cmd.Flags().GetInt("fps")
			opts.Bitrate, _ = cmd.Flags().GetString("bitrate")
			opts.SameVLim, _ = cmd.Flags().GetBool("same-vlim")

			path := filepath.Join(cfg.Dirs.FigDir, out)
			log.Info("rendering movie", "frames", realStack.Len(), "panels", len(decoded)+1, "path", path)
			return movie.Hollywood(fit.Model.Cfg.K, realStack, fit.TrainStates[trial],
				decoded, bundle.States[:len(decoded)], path, opts)
		},
	}

	cmd.Flags().String("real", "", "Real image stack file (gob)")
	cmd.Flags().StringArray("decoded", nil, "Decoded image stack file (repeatable)")
	cmd.Flags().String("fit", "", "Cache key of the fitted model")
	cmd.Flags().String("sample", "", "Cache key of the sample bundle")
	cmd.Flags().String("out", "", "Output movie file name (under the figures directory)")
	cmd.Flags().Int("trial", 0, "Training trial whose inferred states stamp the real panel")
	cmd.Flags().Int("fps", 30, "Output frame rate")
	cmd.Flags().String("bitrate", "", "Encoder bitrate, e.g. 4M (empty for encoder default)")
	cmd.Flags().Bool("same-vlim", true, "Share the real stack's intensity range across panels")
	return cmd
}
