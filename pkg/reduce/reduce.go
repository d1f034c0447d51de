// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package reduce minimizes a find: it copies the find into a reduction directory,
// preprocesses the sources, splits the flag files so that creduce can remove single
// characters and flags, confirms and categorizes the failure with the interestingness
// tests, drives creduce (and llvm-reduce for llc crashes) and writes the reproducer.
package reduce

import (
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
	"github.com/rvfuzz/rvfuzz/pkg/generate"
	"github.com/rvfuzz/rvfuzz/pkg/interesting"
	"github.com/rvfuzz/rvfuzz/pkg/log"
	"github.com/rvfuzz/rvfuzz/pkg/osutil"
	"github.com/rvfuzz/rvfuzz/pkg/tool"
	"github.com/rvfuzz/rvfuzz/pkg/triage"
)

// TestScript is the interestingness test creduce runs in its temporary directories.
const TestScript = "reduce_test.sh"

// creduce may legitimately run for days.
const reduceTimeout = 7 * 24 * time.Hour

type Config struct {
	FindDir string
	Dir     string
	// Resume continues a reduction that was interrupted, the directory already holds the find.
	Resume bool
	// SkipC skips creduce, SkipFlags skips flag token minimization.
	SkipC     bool
	SkipFlags bool
	// MaxFlagSteps bounds the number of test runs of flag token minimization.
	MaxFlagSteps int

	// Paths of the external tools.
	Creduce    string
	LlvmDis    string
	Llc        string
	LlvmReduce string
	// Clang and Gcc build the sanitized binaries of the undefined behavior check.
	Clang string
	Gcc   string

	// Tester is the command line of the interestingness test, the find kind is appended.
	// Defaults to "<current binary> test".
	Tester []string
	// Forward are passed to the tester with tool.ForwardFlags.
	Forward []tool.Flag
}

// Result describes a finished reduction.
type Result struct {
	FailInfo  *failinfo.FailInfo
	Testcases []string
	// Files are the report files bundled into the reproducer archive.
	Files []string
}

// Run reduces the find in cfg.FindDir in cfg.Dir.
func Run(cfg *Config) (*Result, error) {
	if err := cfg.prepare(); err != nil {
		return nil, err
	}
	fi, err := failinfo.Load(cfg.Dir)
	if err != nil {
		return nil, err
	}
	if err := checkReducible(fi); err != nil {
		return nil, err
	}
	testcases := fi.Testcases()
	if cfg.Resume {
		for _, tc := range testcases {
			if !osutil.IsExist(filepath.Join(cfg.Dir, tc+".orig")) {
				return nil, fmt.Errorf("%v does not exist, start a fresh reduction", tc+".orig")
			}
		}
	} else {
		if testcases, err = cfg.preprocess(fi); err != nil {
			return nil, err
		}
		fi.SetTestcases(testcases)
		if err := failinfo.Save(cfg.Dir, fi); err != nil {
			return nil, err
		}
	}
	if missing := osutil.FilesExist(cfg.Dir, testcases); missing != "" {
		return nil, fmt.Errorf("test case %v does not exist", missing)
	}
	log.Logf(0, "test run (with %v=%v)", interesting.ReductionDirEnv, cfg.Dir)
	if err := cfg.test(); err != nil {
		return nil, fmt.Errorf("the find does not reproduce: %w", err)
	}
	if !fi.Categorized() {
		if err := cfg.categorize(fi); err != nil {
			return nil, err
		}
		log.Logf(0, "categorized as %v", fi)
		if err := failinfo.Save(cfg.Dir, fi); err != nil {
			return nil, err
		}
		if err := cfg.test(); err != nil {
			return nil, fmt.Errorf("the categorized find does not reproduce: %w", err)
		}
	}
	if !cfg.SkipFlags {
		if err := cfg.minimizeFlags(fi); err != nil {
			return nil, err
		}
	}
	if !cfg.SkipC {
		if err := cfg.creduce(fi); err != nil {
			return nil, err
		}
	}
	res := &Result{FailInfo: fi, Testcases: testcases}
	if err := cfg.report(res); err != nil {
		return nil, err
	}
	return res, nil
}

// prepare checks the directories and copies the find into the reduction directory.
func (cfg *Config) prepare() error {
	findDir, err := filepath.Abs(cfg.FindDir)
	if err != nil {
		return err
	}
	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return err
	}
	if findDir == dir {
		return fmt.Errorf("can't reduce in the find directory %v", dir)
	}
	cfg.FindDir, cfg.Dir = findDir, dir
	if err := osutil.MkdirAll(dir); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	if cfg.Resume {
		return nil
	}
	if len(entries) != 0 {
		return fmt.Errorf("reduction directory %v already has files", dir)
	}
	return osutil.CopyDirRecursively(findDir, dir)
}

// checkReducible rejects finds that the C reducers can't handle.
func checkReducible(fi *failinfo.FailInfo) error {
	if kind := fi.Generator().Kind; kind == fuzzconfig.Rustsmith {
		return fmt.Errorf("%v finds can't be reduced", kind)
	}
	var compilers []string
	switch fi.Kind() {
	case failinfo.Ice:
		compilers = fi.Ice.Compilers
	case failinfo.Execution:
		compilers = fi.Execution.Compilers
	default:
		compilers = slices.Concat(fi.Runtime.FastCompilers, fi.Runtime.SlowCompilers)
	}
	for _, c := range compilers {
		kind, err := fuzzconfig.KindOf(c)
		if err != nil {
			return err
		}
		if kind == flaggen.Rustc {
			return fmt.Errorf("rustc finds can't be reduced")
		}
	}
	return nil
}

func (cfg *Config) tester() *interesting.Config {
	return &interesting.Config{
		Dir:          cfg.Dir,
		ReductionDir: cfg.Dir,
		Clang:        cfg.Clang,
		Gcc:          cfg.Gcc,
	}
}

// test runs the interestingness test on the reduction directory itself.
func (cfg *Config) test() error {
	return interesting.Run(cfg.tester())
}

// categorize determines the fail type from the output files of the last test run.
func (cfg *Config) categorize(fi *failinfo.FailInfo) error {
	read := func(name string) ([]byte, error) {
		return os.ReadFile(filepath.Join(cfg.Dir, name))
	}
	switch fi.Kind() {
	case failinfo.Ice:
		stderr, err := read(failinfo.StderrFile)
		if err != nil {
			return err
		}
		fi.Ice.FailType = triage.ClassifyIce(fi.Ice.FailType.Backend, stderr)
		if !fi.Ice.FailType.Categorized() {
			return fmt.Errorf("could not categorize the failure:\n%s", stderr)
		}
	case failinfo.Execution:
		if fi.Execution.Runner.Native() {
			// Native runs have no categories.
			return nil
		}
		signal, err := read(interesting.ExecSignalFile)
		if err != nil {
			return err
		}
		stderr, err := read(interesting.ExecStderrFile)
		if err != nil {
			return err
		}
		sig, err := strconv.Atoi(strings.TrimSpace(string(signal)))
		if err != nil {
			return fmt.Errorf("bad %v: %w", interesting.ExecSignalFile, err)
		}
		fi.Execution.FailType.Qemu = triage.ClassifyExec(sig, stderr)
		if fi.Execution.FailType.Qemu == "" {
			return fmt.Errorf("could not categorize the failure: signal %s:\n%s", signal, stderr)
		}
	default:
		fast, err := read(failinfo.FastPrefix + interesting.ExecStdoutFile)
		if err != nil {
			return err
		}
		slow, err := read(failinfo.SlowPrefix + interesting.ExecStdoutFile)
		if err != nil {
			return err
		}
		if string(fast) == string(slow) {
			return fmt.Errorf("could not categorize the failure: equal output:\n%s", fast)
		}
		fi.Runtime.FailType = failinfo.Mismatch
	}
	return nil
}

// creduce writes the test script and runs creduce on the sources and the split flag files.
func (cfg *Config) creduce(fi *failinfo.FailInfo) error {
	script, err := cfg.writeTestScript(fi.Kind())
	if err != nil {
		return err
	}
	args := []string{"--timeout", "10", script}
	args = append(args, fi.Testcases()...)
	args = append(args, reducibleFiles(fi)...)
	for _, aux := range generate.AuxFiles(fi.Generator()) {
		if osutil.IsExist(filepath.Join(cfg.Dir, aux)) {
			args = append(args, aux)
		}
	}
	log.Logf(0, "running %v %v", cfg.Creduce, osutil.CommandLine(args))
	cmd := osutil.Command(cfg.Creduce, args...)
	cmd.Dir = cfg.Dir
	if _, err := osutil.Run(reduceTimeout, cmd); err != nil {
		return osutil.PrependContext("creduce failed", err)
	}
	// creduce leaves the last candidate's output files behind, refresh them.
	if err := cfg.test(); err != nil {
		return fmt.Errorf("the reduced find does not reproduce: %w", err)
	}
	return nil
}

// TesterName returns the name of the interestingness test of the find kind.
func TesterName(kind failinfo.Kind) string {
	if kind == failinfo.Execution {
		return "exec"
	}
	return strings.ToLower(string(kind))
}

func (cfg *Config) writeTestScript(kind failinfo.Kind) (string, error) {
	tester := cfg.Tester
	if len(tester) == 0 {
		exe, err := os.Executable()
		if err != nil {
			return "", err
		}
		tester = []string{exe, "test"}
	}
	argv := append(slices.Clone(tester), TesterName(kind))
	if len(cfg.Forward) != 0 {
		argv = append(argv, tool.ForwardFlags(cfg.Forward))
	}
	script := fmt.Sprintf("#!/bin/sh\n%v=%v exec %v\n",
		interesting.ReductionDirEnv, cfg.Dir, osutil.CommandLine(argv))
	file := filepath.Join(cfg.Dir, TestScript)
	if err := osutil.WriteExecFile(file, []byte(script)); err != nil {
		return "", err
	}
	return file, nil
}
