// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package failinfo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rvfuzz/rvfuzz/pkg/osutil"
	dmp "github.com/sergi/go-diff/diffmatchpatch"
)

// Files of a find directory besides the test cases.
const (
	StdoutFile = "stdout.txt"
	StderrFile = "stderr.txt"
	// DiffFile holds the line diff of fast and slow program output of a runtime find.
	DiffFile = "stdout.diff"
)

// Prefixes of flag files, see FlagsFile.
const (
	FastPrefix      = "fast_"
	SlowPrefix      = "slow_"
	ReduciblePrefix = "reducible_"
	ReducedPrefix   = "reduced_"
)

// workerFiles are bookkeeping files of a worker directory that must not end up in a find.
var workerFiles = []string{".pid", "instance-lock"}

// NewFind copies the worker directory into a new uniquely named directory in findsDir
// and returns its path. The worker directory is left intact.
func NewFind(workdir, findsDir string) (string, error) {
	dir := filepath.Join(findsDir, uuid.New().String())
	if err := osutil.CopyDirRecursively(workdir, dir); err != nil {
		return "", fmt.Errorf("failed to save find: %w", err)
	}
	for _, name := range workerFiles {
		os.Remove(filepath.Join(dir, name))
	}
	return dir, nil
}

// FlagsFile returns the name of the i-th of n flag files: compiler_opts.txt for a single
// flag set and compiler_opts_<i>.txt otherwise, preceded by the prefix.
func FlagsFile(prefix string, i, n int) string {
	if n == 1 {
		return prefix + "compiler_opts.txt"
	}
	return fmt.Sprintf("%vcompiler_opts_%v.txt", prefix, i)
}

// SaveFlags writes each flag set as a single space-separated line.
func SaveFlags(dir, prefix string, flags [][]string) error {
	for i, set := range flags {
		name := filepath.Join(dir, FlagsFile(prefix, i, len(flags)))
		if err := osutil.WriteFile(name, []byte(strings.Join(set, " "))); err != nil {
			return err
		}
	}
	return nil
}

// LoadFlags reads n flag sets saved by SaveFlags.
func LoadFlags(dir, prefix string, n int) ([][]string, error) {
	var flags [][]string
	for i := 0; i < n; i++ {
		data, err := os.ReadFile(filepath.Join(dir, FlagsFile(prefix, i, n)))
		if err != nil {
			return nil, err
		}
		flags = append(flags, strings.Fields(string(data)))
	}
	return flags, nil
}

// FlagSets returns the number of flag sets used to build the test cases:
// one per source plus one for linking if there are several.
func FlagSets(testcases int) int {
	if testcases == 1 {
		return 1
	}
	return testcases + 1
}

// OutputDiff returns a line diff of the fast and slow program output.
func OutputDiff(fast, slow string) string {
	differ := dmp.New()
	a, b, lines := differ.DiffLinesToChars(fast, slow)
	diffs := differ.DiffCharsToLines(differ.DiffMain(a, b, false), lines)
	buf := new(strings.Builder)
	buf.WriteString("--- fast\n+++ slow\n")
	for _, diff := range diffs {
		prefix := " "
		switch diff.Type {
		case dmp.DiffDelete:
			prefix = "-"
		case dmp.DiffInsert:
			prefix = "+"
		}
		for _, line := range strings.SplitAfter(diff.Text, "\n") {
			if line == "" {
				continue
			}
			buf.WriteString(prefix)
			buf.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				buf.WriteString("\n\\ No newline at end of output\n")
			}
		}
	}
	return buf.String()
}

// SplitFlags renders flags one character per line with an empty line between the flags,
// so that creduce, which removes lines, can drop single characters and whole flags.
func SplitFlags(flags []string) string {
	split := make([]string, len(flags))
	for i, flag := range flags {
		split[i] = strings.Join(strings.Split(flag, ""), "\n")
	}
	return strings.Join(split, "\n\n")
}

// JoinFlags reverses SplitFlags. A multi-character file without line breaks
// was not produced by SplitFlags and is rejected.
func JoinFlags(split string) ([]string, error) {
	if len(strings.TrimSpace(split)) > 1 && !strings.Contains(split, "\n") {
		return nil, fmt.Errorf("flags are not split: %q", split)
	}
	joined := strings.ReplaceAll(strings.ReplaceAll(split, "\n\n", " "), "\n", "")
	return strings.Fields(joined), nil
}

// SaveSplitFlags writes the flag sets in the SplitFlags format.
func SaveSplitFlags(dir, prefix string, flags [][]string) error {
	for i, set := range flags {
		name := filepath.Join(dir, FlagsFile(prefix, i, len(flags)))
		if err := osutil.WriteFile(name, []byte(SplitFlags(set))); err != nil {
			return err
		}
	}
	return nil
}

// LoadSplitFlags reads n flag sets saved by SaveSplitFlags.
func LoadSplitFlags(dir, prefix string, n int) ([][]string, error) {
	var flags [][]string
	for i := 0; i < n; i++ {
		name := FlagsFile(prefix, i, n)
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		set, err := JoinFlags(string(data))
		if err != nil {
			return nil, fmt.Errorf("%v: %w", name, err)
		}
		flags = append(flags, set)
	}
	return flags, nil
}
