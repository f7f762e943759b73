package main

import (
	"slices"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/strmatch/internal/config"
)

// Flags are built fresh for every command that accepts them, so options can
// be given before or after the command name. flagContext resolves which
// level actually received a flag.

func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Config file path (.kdl or .toml); defaults to .strmatch.kdl or .strmatch.toml in the working directory",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "Suppress progress and diagnostics",
		},
	}
}

func inputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "input",
			Aliases: []string{"i"},
			Usage:   "Input files or glob patterns, one label per line; '-' reads stdin (e.g., --input 'names/**/*.txt')",
		},
		&cli.StringSliceFlag{
			Name:  "exclude",
			Usage: "Skip input files matching glob patterns (e.g., --exclude '**/archive/**')",
		},
	}
}

func cacheFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "cache",
			Usage: "Ratio matrix cache file (enables caching)",
		},
		&cli.BoolFlag{
			Name:  "no-cache",
			Usage: "Disable the ratio matrix cache",
		},
		&cli.StringFlag{
			Name:  "compression",
			Usage: "Cache compression: zstd, lz4 or none",
			Value: config.DefaultCompression,
		},
	}
}

func matrixFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Float64Flag{
			Name:    "threshold",
			Aliases: []string{"t"},
			Usage:   "Link pairs whose ratio is above this value",
			Value:   config.DefaultThreshold,
		},
		&cli.Float64Flag{
			Name:  "warning",
			Usage: "Report unlinked pairs whose ratio is above this value (0 disables)",
		},
		&cli.BoolFlag{
			Name:  "no-sort",
			Usage: "Keep clusters in index order instead of sorting by size",
		},
		&cli.IntFlag{
			Name:    "workers",
			Aliases: []string{"w"},
			Usage:   "Parallel workers for the ratio matrix",
			Value:   config.DefaultWorkers,
		},
		&cli.IntFlag{
			Name:  "max-index",
			Usage: "Compute only the first N rows of the matrix (0 = all)",
		},
		&cli.StringFlag{
			Name:    "algorithm",
			Aliases: []string{"a"},
			Usage:   "Similarity algorithm (see 'strmatch algorithms')",
			Value:   config.DefaultAlgorithm,
		},
		&cli.IntFlag{
			Name:  "progress-every",
			Usage: "Report progress every N rows",
			Value: config.DefaultProgressEvery,
		},
	}
}

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "ratio-csv",
			Usage: "Write the ratio matrix as CSV to this file ('-' for stdout)",
		},
		&cli.StringFlag{
			Name:    "json",
			Aliases: []string{"j"},
			Usage:   "Write clusters as JSON to this file ('-' for stdout)",
		},
		&cli.IntFlag{
			Name:  "top",
			Usage: "Show at most N clusters in the summary (0 = all)",
			Value: 20,
		},
	}
}

// pipelineFlags are accepted by the app itself and by run/estimate
func pipelineFlags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, configFlags()...)
	flags = append(flags, inputFlags()...)
	flags = append(flags, matrixFlags()...)
	flags = append(flags, cacheFlags()...)
	return append(flags, outputFlags()...)
}

// cacheCommandFlags are accepted by the cache subcommands
func cacheCommandFlags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, configFlags()...)
	flags = append(flags, inputFlags()...)
	return append(flags, cacheFlags()...)
}

// ownsFlag reports whether ctx parsed name itself rather than inheriting it
func ownsFlag(ctx *cli.Context, name string) bool {
	if ctx.Command == nil {
		return false
	}
	for _, f := range ctx.Command.Flags {
		if slices.Contains(f.Names(), name) {
			return true
		}
	}
	return false
}

// flagContext returns the innermost context whose command line set name,
// or c itself so unset flags read their defaults.
func flagContext(c *cli.Context, name string) *cli.Context {
	for _, ctx := range c.Lineage() {
		if ownsFlag(ctx, name) && ctx.IsSet(name) {
			return ctx
		}
	}
	return c
}

func flagIsSet(c *cli.Context, name string) bool {
	ctx := flagContext(c, name)
	return ownsFlag(ctx, name) && ctx.IsSet(name)
}

func flagString(c *cli.Context, name string) string {
	return flagContext(c, name).String(name)
}

func flagBool(c *cli.Context, name string) bool {
	return flagContext(c, name).Bool(name)
}

func flagInt(c *cli.Context, name string) int {
	return flagContext(c, name).Int(name)
}

func flagFloat64(c *cli.Context, name string) float64 {
	return flagContext(c, name).Float64(name)
}

// flagStrings merges a repeatable flag across every level it was given at,
// outermost first
func flagStrings(c *cli.Context, name string) []string {
	lineage := c.Lineage()
	var out []string
	for i := len(lineage) - 1; i >= 0; i-- {
		if ctx := lineage[i]; ownsFlag(ctx, name) && ctx.IsSet(name) {
			out = append(out, ctx.StringSlice(name)...)
		}
	}
	return out
}
