// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package interesting implements the interestingness tests run by creduce during reduction.
// A test rebuilds (and runs) the candidate the same way the fuzzer did and decides
// whether it still shows the saved failure.
//
// The tests run in the directory with the candidate files. fail_info.yaml is read from
// the reduction directory, which is passed in the REDUCTION_DIR environment variable.
package interesting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rvfuzz/rvfuzz/pkg/failinfo"
	"github.com/rvfuzz/rvfuzz/pkg/flaggen"
	"github.com/rvfuzz/rvfuzz/pkg/fuzzconfig"
	"github.com/rvfuzz/rvfuzz/pkg/log"
	"github.com/rvfuzz/rvfuzz/pkg/osutil"
)

const ReductionDirEnv = "REDUCTION_DIR"

// Budgets of the clean builds and of the sanitizer builds and runs.
var (
	CleanBudget = osutil.Budget{Limit: 4 * time.Second, KillAfter: time.Second}
	UBBudget    = osutil.Budget{Limit: 4 * time.Second, KillAfter: time.Second}
)

// Build outputs of the tests.
const (
	TestcaseOutput = "testcase.o"
	UBSanOutput    = "clang-ubsan.out"
	ASanOutput     = "gcc-asan.out"
)

// Output files of the last program run, the reducer categorizes finds by them.
// Runtime tests prefix them with failinfo.FastPrefix and failinfo.SlowPrefix.
const (
	ExecStdoutFile = "exec_stdout.txt"
	ExecStderrFile = "exec_stderr.txt"
	ExecSignalFile = "exec_signal.txt"
)

// cleanFlags define the semantics the generated programs rely on.
var cleanFlags = []string{"-fsigned-char", "-fno-strict-aliasing", "-fwrapv"}

type Config struct {
	// Dir holds the candidate sources and reducible flag files.
	Dir          string
	ReductionDir string
	// Kind, if set, must match the kind of the find.
	Kind failinfo.Kind
	// Clang and Gcc build the sanitized host binaries of the undefined behavior check.
	Clang string
	Gcc   string
}

// BoringError says that the candidate does not reproduce the failure.
type BoringError struct {
	Reason string
}

func (err *BoringError) Error() string {
	return err.Reason
}

func boringf(msg string, args ...any) error {
	return &BoringError{Reason: fmt.Sprintf(msg, args...)}
}

func IsBoring(err error) bool {
	var boring *BoringError
	return errors.As(err, &boring)
}

// Run tests the candidate in cfg.Dir. It returns nil if the candidate is interesting,
// a *BoringError if it is not, and any other error if the test could not be run.
func Run(cfg *Config) error {
	fi, err := failinfo.Load(cfg.ReductionDir)
	if err != nil {
		return err
	}
	if cfg.Kind != "" && cfg.Kind != fi.Kind() {
		return fmt.Errorf("%v test can't reduce a %v find", cfg.Kind, fi.Kind())
	}
	if missing := osutil.FilesExist(cfg.ReductionDir, fi.Testcases()); missing != "" {
		return fmt.Errorf("test case %v does not exist in %v", missing, cfg.ReductionDir)
	}
	switch fi.Kind() {
	case failinfo.Ice:
		err = cfg.ice(fi.Ice)
	case failinfo.Execution:
		err = cfg.exec(fi.Execution)
	default:
		err = cfg.runtime(fi.Runtime)
	}
	if err == nil {
		log.Logf(0, "interesting: %v", fi)
	} else if IsBoring(err) {
		log.Logf(0, "not interesting: %v", err)
	}
	return err
}

// compiler returns the compiler of the final build step, the same compiler builds all steps.
func compiler(paths []string, arch fuzzconfig.Architecture, runner *fuzzconfig.Runner) (*fuzzconfig.FuzzCompiler, error) {
	c := &fuzzconfig.FuzzCompiler{
		Path:         paths[len(paths)-1],
		Architecture: arch,
		Runner:       runner,
	}
	kind, err := c.Kind()
	if err != nil {
		return nil, err
	}
	if kind == flaggen.Rustc {
		return nil, fmt.Errorf("rustc builds can't be reduced")
	}
	return c, nil
}

func targets32(flags [][]string) bool {
	return slices.ContainsFunc(flags, func(set []string) bool {
		return slices.ContainsFunc(set, func(flag string) bool {
			return strings.HasPrefix(flag, "-march=rv32")
		})
	})
}

// loadFlags reads the split flag files written by the reducer. A find that was not
// prepared by the reducer has only the plain flag files, they are used instead.
func (cfg *Config) loadFlags(prefix string, testcases int) ([][]string, error) {
	n := failinfo.FlagSets(testcases)
	flags, err := failinfo.LoadSplitFlags(cfg.Dir, prefix+failinfo.ReduciblePrefix, n)
	if errors.Is(err, os.ErrNotExist) {
		return failinfo.LoadFlags(cfg.Dir, prefix, n)
	}
	return flags, err
}

func (cfg *Config) writeOutput(prefix string, res *osutil.Result) error {
	files := map[string][]byte{
		prefix + "stdout.txt": res.Stdout,
		prefix + "stderr.txt": res.Stderr,
	}
	for name, data := range files {
		if err := osutil.WriteFile(filepath.Join(cfg.Dir, name), data); err != nil {
			return err
		}
	}
	return nil
}

func (cfg *Config) writeSignal(prefix string, res *osutil.Result) error {
	return osutil.WriteFile(filepath.Join(cfg.Dir, prefix+ExecSignalFile), []byte(strconv.Itoa(res.Signal)))
}
