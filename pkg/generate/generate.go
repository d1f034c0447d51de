// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package generate runs the external test program generators (Csmith, Yarpgen, Rustsmith)
// or copies a fixed test case into a worker directory.
package generate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rvfuzz/rvfuzz/pkg/fuzzconfig"
	"github.com/rvfuzz/rvfuzz/pkg/osutil"
)

// Well-known file names produced in the worker directory.
const (
	CsmithTestcase    = "csmith_testcase.c"
	YarpgenFunc       = "func.c"
	YarpgenDriver     = "driver.c"
	YarpgenInit       = "init.h"
	RustsmithTestcase = "rustsmith_testcase.rs"
	RustsmithInput    = "run_input.txt"
	FixedTestcase     = "fixed_testcase.c"
)

// Generators are not budgeted by timeout(1), a hanging generator is a setup problem.
const generatorTimeout = 10 * time.Minute

// Run produces a new test program in dir and returns the source files (relative to dir)
// in the order they are compiled.
func Run(gen fuzzconfig.Generator, dir string) ([]string, error) {
	switch gen.Kind {
	case fuzzconfig.Csmith:
		cmd := osutil.Command(gen.Path)
		cmd.Dir = dir
		stdout := new(strings.Builder)
		cmd.Stdout = stdout
		if _, err := osutil.Run(generatorTimeout, cmd); err != nil {
			return nil, osutil.PrependContext("generator failed to run", err)
		}
		if err := osutil.WriteFile(filepath.Join(dir, CsmithTestcase), []byte(stdout.String())); err != nil {
			return nil, err
		}
		return []string{CsmithTestcase}, nil
	case fuzzconfig.Yarpgen:
		if _, err := osutil.RunCmd(generatorTimeout, dir, gen.Path, "--std=c"); err != nil {
			return nil, osutil.PrependContext("generator failed to run", err)
		}
		if missing := osutil.FilesExist(dir, []string{YarpgenFunc, YarpgenDriver, YarpgenInit}); missing != "" {
			return nil, fmt.Errorf("yarpgen did not produce %v", missing)
		}
		return []string{YarpgenFunc, YarpgenDriver}, nil
	case fuzzconfig.Rustsmith:
		out := filepath.Join(dir, "rustsmith")
		if err := os.RemoveAll(out); err != nil {
			return nil, err
		}
		if _, err := osutil.RunCmd(generatorTimeout, dir, gen.Path, "-n", "1", "--directory", "rustsmith"); err != nil {
			return nil, osutil.PrependContext("generator failed to run", err)
		}
		for src, dst := range map[string]string{
			filepath.Join(out, "file0", "file0.rs"):  RustsmithTestcase,
			filepath.Join(out, "file0", "file0.txt"): RustsmithInput,
		} {
			if err := os.Rename(src, filepath.Join(dir, dst)); err != nil {
				return nil, fmt.Errorf("rustsmith output: %w", err)
			}
		}
		return []string{RustsmithTestcase}, nil
	case fuzzconfig.Fixed:
		if err := osutil.CopyFile(gen.Path, filepath.Join(dir, FixedTestcase)); err != nil {
			return nil, err
		}
		return []string{FixedTestcase}, nil
	}
	return nil, fmt.Errorf("unknown generator %q", string(gen.Kind))
}

// AuxFiles returns files that the generated sources include.
func AuxFiles(gen fuzzconfig.Generator) []string {
	if gen.Kind == fuzzconfig.Yarpgen {
		return []string{YarpgenInit}
	}
	return nil
}

// Flags returns the compiler flags the generated program needs on the architecture.
func Flags(gen fuzzconfig.Generator, arch fuzzconfig.Architecture) []string {
	switch gen.Kind {
	case fuzzconfig.Csmith:
		return []string{"-I" + gen.IncludeDir}
	case fuzzconfig.Yarpgen:
		if arch == fuzzconfig.X86 {
			return []string{"-mcmodel=large", "-fno-pic"}
		}
		return []string{"-mcmodel=medany"}
	}
	return nil
}

// RV64Only reports whether the generated programs require a 64-bit target.
func RV64Only(gen fuzzconfig.Generator) bool {
	return gen.Kind == fuzzconfig.Yarpgen
}

// Input returns the command line arguments of the generated program.
func Input(gen fuzzconfig.Generator, dir string) ([]string, error) {
	switch gen.Kind {
	case fuzzconfig.Csmith:
		// Makes csmith programs print the checksum.
		return []string{"1"}, nil
	case fuzzconfig.Rustsmith:
		data, err := os.ReadFile(filepath.Join(dir, RustsmithInput))
		if err != nil {
			return nil, err
		}
		return strings.Fields(string(data)), nil
	}
	return nil, nil
}

// Interval returns how many iterations reuse one generated program.
// Csmith is slow, so crash fuzzing tries many flag sets per program.
// Differential iterations are already expensive.
func Interval(gen fuzzconfig.Generator, differential bool) int {
	switch {
	case differential:
		return 10
	case gen.Kind == fuzzconfig.Csmith:
		return 100
	}
	return 1
}
