package main

import (
	"fmt"
	"io"
	"os"

	"github.com/standardbeagle/strmatch/internal/config"
	"github.com/standardbeagle/strmatch/internal/debug"
	"github.com/standardbeagle/strmatch/internal/version"

	"github.com/urfave/cli/v2"
)

var Version = version.Version

// loadConfigWithOverrides loads configuration and applies CLI flag overrides
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath := flagString(c, "config"); configPath != "" {
		cfg, err = config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	} else if cfg, err = config.LoadDir("."); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Apply CLI flag overrides
	if flagIsSet(c, "threshold") {
		cfg.Linking.Threshold = flagFloat64(c, "threshold")
	}
	if flagIsSet(c, "warning") {
		cfg.Linking.Warning = flagFloat64(c, "warning")
	}
	if flagIsSet(c, "no-sort") {
		cfg.Linking.SortBySize = !flagBool(c, "no-sort")
	}
	if flagIsSet(c, "workers") {
		cfg.Matrix.Workers = flagInt(c, "workers")
	}
	if flagIsSet(c, "max-index") {
		cfg.Matrix.MaxIndex = flagInt(c, "max-index")
	}
	if flagIsSet(c, "algorithm") {
		cfg.Matrix.Algorithm = flagString(c, "algorithm")
	}
	if flagIsSet(c, "progress-every") {
		cfg.Matrix.ProgressEvery = flagInt(c, "progress-every")
	}
	if flagIsSet(c, "cache") {
		cfg.Cache.Path = flagString(c, "cache")
		cfg.Cache.Enabled = true
	}
	if flagIsSet(c, "compression") {
		cfg.Cache.Compression = flagString(c, "compression")
	}
	if flagBool(c, "no-cache") {
		cfg.Cache.Enabled = false
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyQuiet silences diagnostics when --quiet was given at this level
func applyQuiet(c *cli.Context) error {
	if flagBool(c, "quiet") {
		debug.SetQuietMode(true)
	}
	return nil
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *cli.App {
	var cleanupFuncs []func()

	return &cli.App{
		Name:                   "strmatch",
		Usage:                  "Group near-duplicate strings by similarity ratio",
		Version:                Version,
		UseShortOptionHandling: true,
		Reader:                 stdin,
		Writer:                 stdout,
		ErrWriter:              stderr,
		Flags: append(pipelineFlags(),
			&cli.BoolFlag{
				Name:  "debug-log",
				Usage: "Write debug output to a timestamped file in the temp directory",
			},
		),
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Compute ratios, link clusters and print the summary (default)",
				Flags:  pipelineFlags(),
				Before: applyQuiet,
				Action: runCommand,
			},
			{
				Name:  "estimate",
				Usage: "Time a prefix of the matrix and extrapolate the full computation",
				Flags: append(pipelineFlags(),
					&cli.IntFlag{
						Name:    "sample",
						Aliases: []string{"s"},
						Usage:   "Rows to compute",
						Value:   200,
					},
				),
				Before: applyQuiet,
				Action: estimateCommand,
			},
			{
				Name:  "cache",
				Usage: "Inspect or remove the ratio matrix cache",
				Subcommands: []*cli.Command{
					{
						Name:   "info",
						Usage:  "Show the cache file header",
						Flags:  cacheCommandFlags(),
						Before: applyQuiet,
						Action: cacheInfoCommand,
					},
					{
						Name:   "clear",
						Usage:  "Delete the cache file",
						Flags:  cacheCommandFlags(),
						Before: applyQuiet,
						Action: cacheClearCommand,
					},
				},
			},
			{
				Name:   "algorithms",
				Usage:  "List similarity algorithms",
				Action: algorithmsCommand,
			},
		},
		Before: func(c *cli.Context) error {
			if err := applyQuiet(c); err != nil {
				return err
			}
			if c.Bool("debug-log") {
				path, err := debug.InitDebugLogFile()
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.ErrWriter, "Debug log: %s\n", path)
				cleanupFuncs = append(cleanupFuncs, func() {
					_ = debug.CloseDebugLog()
				})
			}
			return nil
		},
		After: func(c *cli.Context) error {
			for _, cleanup := range cleanupFuncs {
				cleanup()
			}
			return nil
		},
		Action: runCommand,
	}
}

func main() {
	app := newApp(os.Stdin, os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}
