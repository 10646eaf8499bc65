package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/akmonengine/feathersync/config"
	"github.com/akmonengine/feathersync/logging"
	"github.com/spf13/cobra"
)

var (
	configFile string
	preset     string
	verbose    bool

	bodies     int
	bundles    int
	bundleSize int
	shadows    int
	worlds     int
	frames     int
	frameRate  float64
	evaluation string
	plot       bool

	outFile string
	force   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "feathersync",
		Short:         "rigid body lifecycle runtime over the local engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "use preset configuration")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging on stderr")

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "step a generated scene and report frame and spin wait times",
		RunE:  benchScene,
	}
	benchCmd.Flags().IntVar(&bodies, "bodies", 200, "dynamic bodies")
	benchCmd.Flags().IntVar(&bundles, "bundles", 8, "bundles")
	benchCmd.Flags().IntVar(&bundleSize, "bundle-size", 16, "members per bundle")
	benchCmd.Flags().IntVar(&shadows, "shadows", 4, "bodies shadowed into the next world")
	benchCmd.Flags().IntVar(&worlds, "worlds", 2, "world ids bodies are spread over")
	benchCmd.Flags().IntVar(&frames, "frames", 600, "frames to step")
	benchCmd.Flags().Float64Var(&frameRate, "fps", 60, "frame rate driving the runtime")
	benchCmd.Flags().StringVar(&evaluation, "evaluation", "", "override evaluation (immediate|buffered)")
	benchCmd.Flags().BoolVar(&plot, "plot", true, "plot frame times")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "manage runtime configuration files",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "write a configuration file",
		RunE:  initConfig,
	}
	initCmd.Flags().StringVarP(&outFile, "out", "o", "feathersync.yaml", "output path")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "print the effective configuration",
		RunE:  showConfig,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range config.ListPresets() {
				fmt.Println(name)
			}
		},
	}

	configCmd.AddCommand(initCmd, showCmd, presetsCmd)
	rootCmd.AddCommand(benchCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

// loadConfig resolves --config, then --preset, then the defaults.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	switch {
	case configFile != "":
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case preset != "":
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %q, available: %v", preset, config.ListPresets())
		}
	default:
		cfg = config.DefaultConfig()
	}
	return cfg, cfg.Validate()
}

func newLogger() logging.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return logging.NewSlog(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
