package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/strmatch/internal/debug"
	sterrors "github.com/standardbeagle/strmatch/internal/errors"
	"github.com/standardbeagle/strmatch/internal/labels"
)

const maxLineBytes = 1024 * 1024

// resolveInputs expands glob patterns into an ordered, de-duplicated file
// list. "-" stands for stdin and is kept in place. Files matching any
// exclude pattern are dropped.
func resolveInputs(patterns, excludes []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		if pattern == "-" {
			files = append(files, pattern)
			continue
		}
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, sterrors.NewInputError(pattern, fmt.Errorf("invalid input pattern: %w", err))
		}
		if len(matches) == 0 {
			return nil, sterrors.NewInputError(pattern, errors.New("no input files match"))
		}
		slices.Sort(matches)
		for _, m := range matches {
			if seen[m] || excluded(m, excludes) {
				continue
			}
			seen[m] = true
			files = append(files, m)
		}
	}
	return files, nil
}

func excluded(path string, excludes []string) bool {
	slashed := filepath.ToSlash(path)
	for _, pattern := range excludes {
		if ok, _ := doublestar.Match(pattern, slashed); ok {
			return true
		}
	}
	return false
}

// loadLabels reads one label per line from every input in order. Blank
// lines are absent labels; other lines are trimmed of surrounding space.
func loadLabels(files []string, stdin io.Reader) (labels.Set, error) {
	if len(files) == 0 {
		files = []string{"-"}
	}

	var set labels.Set
	for _, path := range files {
		var err error
		if path == "-" {
			if set, err = readLabels(stdin, set); err != nil {
				err = sterrors.NewInputError(path, err)
			}
		} else {
			set, err = readLabelFile(path, set)
		}
		if err != nil {
			return nil, err
		}
		debug.Printf("loaded %s: %d labels so far\n", path, len(set))
	}
	return set, nil
}

func readLabelFile(path string, set labels.Set) (labels.Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, sterrors.NewInputError(path, err)
	}
	defer f.Close()

	set, err = readLabels(f, set)
	if err != nil {
		return nil, sterrors.NewInputError(path, err)
	}
	return set, nil
}

func readLabels(r io.Reader, set labels.Set) (labels.Set, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			set = append(set, labels.Absent())
			continue
		}
		set = append(set, labels.Of(line))
	}
	return set, scanner.Err()
}
