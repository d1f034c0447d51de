// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzzconfig

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rvfuzz/rvfuzz/pkg/flaggen"
	"github.com/rvfuzz/rvfuzz/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const compileConfig = `
Compile:
  action: assemble
  compiler:
    path: /opt/riscv/bin/riscv64-unknown-linux-gnu-gcc
    arguments:
      Generated:
        compiler: Gcc
        flag_set: MarchAndAllFlags
    architecture: Riscv
  generator:
    Csmith:
      path: /usr/bin/csmith
      include_dir: /usr/include/csmith
`

const runConfig = `
Run:
  fast_compiler:
    path: /usr/bin/gcc
    arguments:
      Fixed: ""
    runner: Native
    architecture: X86
  slow_compiler:
    path: /opt/riscv/bin/clang
    arguments:
      Generated:
        compiler: Llvm
        flag_set: March
    runner:
      Qemu:
        rv32path: /usr/bin/qemu-riscv32
        rv64path: /usr/bin/qemu-riscv64
        cpu_flags:
          Generated: /opt/qemu-cpu.py
    architecture: Riscv
  generator:
    Yarpgen:
      path: /usr/bin/yarpgen
`

func TestLoad(t *testing.T) {
	cfg, err := LoadData([]byte(compileConfig))
	require.NoError(t, err)
	want := &Config{Compile: &CompileConfig{
		Action: flaggen.Assemble,
		Compiler: FuzzCompiler{
			Path: "/opt/riscv/bin/riscv64-unknown-linux-gnu-gcc",
			Arguments: Arguments{Generated: &FlagsGenerator{
				Compiler: flaggen.Gcc,
				FlagSet:  flaggen.FlagSetMarchAndAllFlags,
			}},
			Architecture: Riscv,
		},
		Generator: Generator{Kind: Csmith, Path: "/usr/bin/csmith", IncludeDir: "/usr/include/csmith"},
	}}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatal(diff)
	}
	kind, err := cfg.Compile.Compiler.Kind()
	require.NoError(t, err)
	assert.Equal(t, flaggen.Gcc, kind)

	cfg, err = LoadData([]byte(runConfig))
	require.NoError(t, err)
	want = &Config{Run: &RunConfig{
		FastCompiler: FuzzCompiler{
			Path:         "/usr/bin/gcc",
			Runner:       &Runner{},
			Architecture: X86,
		},
		SlowCompiler: FuzzCompiler{
			Path: "/opt/riscv/bin/clang",
			Arguments: Arguments{Generated: &FlagsGenerator{
				Compiler: flaggen.Llvm,
				FlagSet:  flaggen.FlagSetMarch,
			}},
			Runner: &Runner{Qemu: &QemuConfig{
				RV32Path: "/usr/bin/qemu-riscv32",
				RV64Path: "/usr/bin/qemu-riscv64",
				CPUFlags: CPUFlags{Script: "/opt/qemu-cpu.py"},
			}},
			Architecture: Riscv,
		},
		Generator: Generator{Kind: Yarpgen, Path: "/usr/bin/yarpgen"},
	}}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatal(diff)
	}
	assert.True(t, cfg.Run.FastCompiler.Runner.Native())
	assert.Len(t, cfg.Compilers(), 2)
	assert.Equal(t, Yarpgen, cfg.Generator().Kind)
}

func TestMarshalRoundTrip(t *testing.T) {
	for _, input := range []string{compileConfig, runConfig} {
		cfg, err := LoadData([]byte(input))
		require.NoError(t, err)
		data, err := json.Marshal(cfg)
		require.NoError(t, err)
		cfg1, err := LoadData(data)
		require.NoError(t, err)
		if diff := cmp.Diff(cfg, cfg1); diff != "" {
			t.Fatal(diff)
		}
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(string) string
		err    string
	}{
		{
			name:   "unknown-top",
			mutate: func(s string) string { return strings.Replace(s, "Compile:", "Crash:", 1) },
			err:    "unknown fuzz config",
		},
		{
			name:   "unknown-field",
			mutate: func(s string) string { return strings.Replace(s, "architecture: Riscv", "arch: Riscv", 1) },
			err:    "unknown field",
		},
		{
			name: "unknown-nested-field",
			mutate: func(s string) string {
				return strings.Replace(s, "flag_set: MarchAndAllFlags", "flagset: MarchAndAllFlags", 1)
			},
			err: "unknown field",
		},
		{
			name:   "bad-arch",
			mutate: func(s string) string { return strings.Replace(s, "architecture: Riscv", "architecture: Arm", 1) },
			err:    "unknown architecture",
		},
		{
			name:   "bad-action",
			mutate: func(s string) string { return strings.Replace(s, "action: assemble", "action: Preprocess", 1) },
			err:    "unknown action",
		},
		{
			name:   "bad-flag-set",
			mutate: func(s string) string { return strings.Replace(s, "MarchAndAllFlags", "Everything", 1) },
			err:    "unknown flag set",
		},
		{
			name:   "unknown-compiler",
			mutate: func(s string) string { return strings.Replace(s, "riscv64-unknown-linux-gnu-gcc", "cc", 1) },
			err:    "can't infer compiler kind",
		},
		{
			name:   "no-include-dir",
			mutate: func(s string) string { return strings.Replace(s, "      include_dir: /usr/include/csmith\n", "", 1) },
			err:    "needs include_dir",
		},
		{
			name:   "unknown-generator",
			mutate: func(s string) string { return strings.Replace(s, "Csmith:", "Ccg:", 1) },
			err:    "unknown generator",
		},
		{
			name: "compile-with-runner",
			mutate: func(s string) string {
				return strings.Replace(s, "    architecture: Riscv", "    runner: Native\n    architecture: Riscv", 1)
			},
			err: "cannot run code",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := LoadData([]byte(test.mutate(compileConfig)))
			require.Error(t, err)
			assert.Contains(t, err.Error(), test.err)
		})
	}

	_, err := LoadData([]byte(strings.Replace(runConfig, "    runner: Native\n", "", 1)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be able to run code")

	_, err = LoadData([]byte(strings.Replace(runConfig, "rv32path: /usr/bin/qemu-riscv32", "rv32path: ''", 1)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rv32path and rv64path")

	_, err = LoadData([]byte("Compile: {}\nRun: {}\n"))
	require.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	dir := t.TempDir()
	gcc := testutil.WriteScript(t, dir, "riscv64-gcc", `echo "gcc (GCC) 14.1.0"`)
	csmith := testutil.WriteScript(t, dir, "csmith", `echo "usage: csmith"`)
	include := filepath.Join(dir, "include")
	require.NoError(t, os.Mkdir(include, 0755))
	cfg := &Config{Compile: &CompileConfig{
		Action:    flaggen.Compile,
		Compiler:  FuzzCompiler{Path: gcc, Architecture: Riscv},
		Generator: Generator{Kind: Csmith, Path: csmith, IncludeDir: include},
	}}
	require.NoError(t, cfg.Validate())
	require.NoError(t, cfg.HealthCheck())

	cfg.Compile.Generator.IncludeDir = filepath.Join(dir, "missing")
	assert.ErrorContains(t, cfg.HealthCheck(), "include dir")

	cfg.Compile.Generator.IncludeDir = include
	cfg.Compile.Compiler.Path = testutil.WriteScript(t, dir, "broken-gcc", "exit 1")
	assert.ErrorContains(t, cfg.HealthCheck(), "failed health check (--version)")

	cfg.Compile.Compiler.Path = filepath.Join(dir, "missing-gcc")
	assert.ErrorContains(t, cfg.HealthCheck(), "does not exist")

	// Fixed test cases are plain files.
	fixed := filepath.Join(dir, "test.c")
	require.NoError(t, os.WriteFile(fixed, []byte("int main() { return 0; }\n"), 0644))
	cfg.Compile.Compiler.Path = gcc
	cfg.Compile.Generator = Generator{Kind: Fixed, Path: fixed}
	require.NoError(t, cfg.HealthCheck())
}
