package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/eivinasbutkus/behavenet/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage behavenet configuration",
	}
	cmd.AddCommand(newConfigInitCmd(), newConfigShowCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file from flags",
		Long: `Write a behavenet config file. Directories and dataset metadata are
taken from flags; everything else gets defaults. The file goes to
~/.behavenet/config.yaml unless --config points elsewhere.

Example:
  behavenet config init --data-dir /data --save-dir /results --fig-dir /figs \
    --lab churchland --expt reaching --animal m23 --session 2021-07-01`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			cfg.Dirs.DataDir, _ = cmd.Flags().GetString("data-dir")
			cfg.Dirs.SaveDir, _ = cmd.Flags().GetString("save-dir")
			cfg.Dirs.FigDir, _ = cmd.Flags().GetString("fig-dir")
			cfg.Dataset.Lab, _ = cmd.Flags().GetString("lab")
			cfg.Dataset.Expt, _ = cmd.Flags().GetString("expt")
			cfg.Dataset.Animal, _ = cmd.Flags().GetString("animal")
			cfg.Dataset.Session, _ = cmd.Flags().GetString("session")
			cfg.Dataset.TrialSplits, _ = cmd.Flags().GetString("trial-splits")
			cfg.Dataset.XPixels, _ = cmd.Flags().GetInt("x-pixels")
			cfg.Dataset.YPixels, _ = cmd.Flags().GetInt("y-pixels")
			cfg.Dataset.InputChannels, _ = cmd.Flags().GetInt("input-channels")
			cfg.Dataset.FrameRate, _ = cmd.Flags().GetFloat64("frame-rate")
			cfg.Dataset.NeuralType, _ = cmd.Flags().GetString("neural-type")
			cfg.Cache.Backend, _ = cmd.Flags().GetString("cache-backend")

			if err := cfg.Validate(); err != nil {
				return err
			}

			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				var err error
				path, err = config.DefaultPath()
				if err != nil {
					return err
				}
			}
			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Printf("Config written to %s\n", path)
			return nil
		},
	}

	cmd.Flags().String("data-dir", "", "Base data directory")
	cmd.Flags().String("save-dir", "", "Base results directory")
	cmd.Flags().String("fig-dir", "", "Base figures directory")
	cmd.Flags().String("lab", "", "Name of experimenter/lab")
	cmd.Flags().String("expt", "", "Name of experiment")
	cmd.Flags().String("animal", "", "Animal name")
	cmd.Flags().String("session", "", "Session name")
	cmd.Flags().String("trial-splits", "8;1;1;0", "Trial splits as train;val;test;gap")
	cmd.Flags().Int("x-pixels", 0, "Video frame width in pixels")
	cmd.Flags().Int("y-pixels", 0, "Video frame height in pixels")
	cmd.Flags().Int("input-channels", 1, "Number of camera views")
	cmd.Flags().Float64("frame-rate", 40, "Video frame rate (Hz)")
	cmd.Flags().String("neural-type", "spikes", "Neural data type: spikes or ca")
	cmd.Flags().String("cache-backend", "file", "Results cache backend: file, sqlite, or memory")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			os.Stdout.Write(out)
			return nil
		},
	}
}
