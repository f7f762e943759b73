package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/strmatch/internal/cache"
	"github.com/standardbeagle/strmatch/internal/config"
	"github.com/standardbeagle/strmatch/internal/dedupe"
	sterrors "github.com/standardbeagle/strmatch/internal/errors"
	"github.com/standardbeagle/strmatch/internal/export"
	"github.com/standardbeagle/strmatch/internal/labels"
	"github.com/standardbeagle/strmatch/internal/similarity"
)

// loadInputLabels resolves --input/--exclude and reads every label
func loadInputLabels(c *cli.Context) (labels.Set, error) {
	files, err := resolveInputs(flagStrings(c, "input"), flagStrings(c, "exclude"))
	if err != nil {
		return nil, err
	}
	set, err := loadLabels(files, c.App.Reader)
	if err != nil {
		return nil, err
	}
	if set.Len() == 0 {
		return nil, sterrors.NewInputError("", errors.New("no labels to match: input is empty"))
	}
	return set, nil
}

// writeOutput writes to stdout for "-" and to a file otherwise
func writeOutput(c *cli.Context, path string, write func(io.Writer) error) error {
	if path == "-" {
		return write(c.App.Writer)
	}
	return export.WriteFile(path, write)
}

// warningLogger writes pipeline warnings to the app's error stream
func warningLogger(c *cli.Context) *log.Logger {
	if flagBool(c, "quiet") {
		return log.New(io.Discard, "", 0)
	}
	return log.New(c.App.ErrWriter, "", 0)
}

// runCommand computes the matrix, links clusters and prints a summary
func runCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	set, err := loadInputLabels(c)
	if err != nil {
		return err
	}

	opts := []dedupe.Option{dedupe.WithLogger(warningLogger(c))}
	var printer *progressPrinter
	if !flagBool(c, "quiet") {
		printer = newProgressPrinter(c.App.ErrWriter)
		opts = append(opts, dedupe.WithReporter(printer))
	}

	p, err := dedupe.New(cfg, set, opts...)
	if err != nil {
		return err
	}

	stats, err := p.ComputeMatrix()
	if printer != nil {
		printer.Finish()
	}
	if err != nil {
		return err
	}
	if _, err := p.Link(); err != nil {
		return err
	}
	res, err := p.Assemble()
	if err != nil {
		return err
	}
	pairs, err := p.NearMisses()
	if err != nil {
		return err
	}

	csvPath, jsonPath := flagString(c, "ratio-csv"), flagString(c, "json")
	if csvPath != "" {
		if err := writeOutput(c, csvPath, func(w io.Writer) error {
			return export.WriteRatioCSV(w, p.Matrix())
		}); err != nil {
			return err
		}
	}
	if jsonPath != "" {
		if err := writeOutput(c, jsonPath, func(w io.Writer) error {
			return export.WriteClustersJSON(w, res)
		}); err != nil {
			return err
		}
	}

	// stdout belongs to the export when one was sent there
	if csvPath == "-" || jsonPath == "-" {
		return nil
	}

	out := c.App.Writer
	source := "computed"
	if stats.FromCache {
		source = "loaded from cache"
	}
	fmt.Fprintf(out, "%d labels (%d absent), %d rows %s in %s\n",
		set.Len(), set.AbsentCount(), stats.Rows, source, formatDuration(stats.Duration))
	fmt.Fprintf(out, "%d clusters at threshold %s, %d with duplicates\n",
		res.Len(), strconv.FormatFloat(cfg.Linking.Threshold, 'f', -1, 64), len(res.Duplicates()))
	if len(res.Duplicates()) > 0 {
		fmt.Fprintln(out, renderClusters(res, flagInt(c, "top")))
	}
	if len(pairs) > 0 {
		fmt.Fprintf(out, "%d near misses in (%s, %s]\n", len(pairs),
			strconv.FormatFloat(cfg.Linking.Warning, 'f', -1, 64),
			strconv.FormatFloat(cfg.Linking.Threshold, 'f', -1, 64))
		fmt.Fprintln(out, renderNearMisses(pairs, set, flagInt(c, "top")))
	}
	return nil
}

// estimateCommand times a prefix build and extrapolates the full cost
func estimateCommand(c *cli.Context) error {
	sample := c.Int("sample")
	if sample <= 0 {
		return fmt.Errorf("sample must be positive, got %d", sample)
	}

	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	set, err := loadInputLabels(c)
	if err != nil {
		return err
	}

	// A cache hit would measure nothing
	cfg.Cache.Enabled = false
	cfg.Matrix.MaxIndex = min(sample, set.Len())

	p, err := dedupe.New(cfg, set, dedupe.WithLogger(warningLogger(c)))
	if err != nil {
		return err
	}
	stats, err := p.ComputeMatrix()
	if err != nil {
		return err
	}

	out := c.App.Writer
	fmt.Fprintf(out, "Computed %d of %d rows (%d ratios) in %s with %d workers\n",
		stats.Rows, set.Len(), stats.Ratios, formatDuration(stats.Duration), cfg.Matrix.Workers)
	fmt.Fprintf(out, "Expected full computation: %s\n", formatDuration(stats.ExpectedFullDuration))
	return nil
}

func cachePath(cfg *config.Config) (string, error) {
	if cfg.Cache.Path == "" {
		return "", errors.New("no cache path configured: pass --cache or set cache.path in the config file")
	}
	return cfg.Cache.Path, nil
}

// cacheInfoCommand prints the header of the cache file
func cacheInfoCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	path, err := cachePath(cfg)
	if err != nil {
		return err
	}

	hdr, err := cache.Inspect(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	rows := [][]string{
		{"Path", path},
		{"Format version", strconv.Itoa(int(hdr.Version))},
		{"Compression", string(hdr.Compression)},
		{"Labels", strconv.FormatUint(hdr.Labels, 10)},
		{"Fingerprint", fmt.Sprintf("%016x", hdr.Fingerprint)},
		{"Size", fmt.Sprintf("%d bytes", info.Size())},
		{"Modified", info.ModTime().Format(time.RFC3339)},
	}
	if len(flagStrings(c, "input")) > 0 {
		set, err := loadInputLabels(c)
		if err != nil {
			return err
		}
		match := "no"
		if set.Fingerprint() == hdr.Fingerprint && uint64(set.Len()) == hdr.Labels {
			match = "yes"
		}
		rows = append(rows, []string{"Matches input", match})
	}

	fmt.Fprintln(c.App.Writer, renderTable([]string{"Field", "Value"}, rows, nil))
	return nil
}

// cacheClearCommand deletes the cache file
func cacheClearCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	path, err := cachePath(cfg)
	if err != nil {
		return err
	}

	store, err := cache.NewFileStore(path, cache.Compression(cfg.Cache.Compression))
	if err != nil {
		return err
	}
	if err := store.Remove(); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Removed %s\n", path)
	return nil
}

// algorithmsCommand lists the similarity algorithms
func algorithmsCommand(c *cli.Context) error {
	for _, algo := range similarity.Algorithms() {
		if algo == similarity.DefaultAlgorithm {
			fmt.Fprintf(c.App.Writer, "%s (default)\n", algo)
			continue
		}
		fmt.Fprintln(c.App.Writer, algo)
	}
	return nil
}
