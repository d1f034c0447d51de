// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package fuzzconfig describes what a fuzz worker runs: either a crash fuzzer
// (Compile: one compiler, no execution) or a differential fuzzer (Run: fast and slow compilers
// whose binaries are executed and compared).
//
// Sum types use the externally tagged layout:
//
//	Compile:
//	  action: Assemble
//	  compiler:
//	    path: /opt/riscv/bin/riscv64-unknown-linux-gnu-gcc
//	    arguments:
//	      Generated:
//	        compiler: Gcc
//	        flag_set: MarchAndAllFlags
//	    architecture: Riscv
//	  generator:
//	    Csmith:
//	      path: /usr/bin/csmith
//	      include_dir: /usr/include/csmith
package fuzzconfig

import (
	"fmt"
	"strings"

	"github.com/rvfuzz/rvfuzz/pkg/config"
	"github.com/rvfuzz/rvfuzz/pkg/flaggen"
)

type Architecture string

const (
	X86   Architecture = "X86"
	Riscv Architecture = "Riscv"
)

func (arch Architecture) validate() error {
	switch arch {
	case X86, Riscv:
		return nil
	}
	return fmt.Errorf("unknown architecture %q", string(arch))
}

// CPUFlags select the QEMU_CPU value: a fixed string or the output of a script
// that inspects the binary (--elf-file-path <binary> --print-qemu-cpu).
type CPUFlags struct {
	Fixed  string
	Script string
}

func (f CPUFlags) MarshalJSON() ([]byte, error) {
	if f.Script != "" {
		return config.MarshalVariant("Generated", f.Script)
	}
	return config.MarshalVariant("Fixed", f.Fixed)
}

func (f *CPUFlags) UnmarshalJSON(data []byte) error {
	tag, payload, err := config.UnmarshalVariant(data)
	if err != nil {
		return fmt.Errorf("bad cpu_flags: %w", err)
	}
	*f = CPUFlags{}
	switch tag {
	case "Fixed":
		return config.DecodeStrict(payload, &f.Fixed)
	case "Generated":
		if err := config.DecodeStrict(payload, &f.Script); err != nil {
			return err
		}
		if f.Script == "" {
			return fmt.Errorf("empty cpu_flags script")
		}
		return nil
	}
	return fmt.Errorf("unknown cpu_flags variant %q", tag)
}

type QemuConfig struct {
	RV32Path string   `json:"rv32path"`
	RV64Path string   `json:"rv64path"`
	CPUFlags CPUFlags `json:"cpu_flags"`
}

// Runner executes compiled binaries. Qemu is nil for native runs.
type Runner struct {
	Qemu *QemuConfig
}

func (r Runner) Native() bool {
	return r.Qemu == nil
}

func (r Runner) MarshalJSON() ([]byte, error) {
	if r.Qemu == nil {
		return config.MarshalVariant("Native", nil)
	}
	return config.MarshalVariant("Qemu", r.Qemu)
}

func (r *Runner) UnmarshalJSON(data []byte) error {
	tag, payload, err := config.UnmarshalVariant(data)
	if err != nil {
		return fmt.Errorf("bad runner: %w", err)
	}
	*r = Runner{}
	switch tag {
	case "Native":
		if !config.IsNull(payload) {
			return fmt.Errorf("Native runner takes no arguments")
		}
		return nil
	case "Qemu":
		r.Qemu = new(QemuConfig)
		return config.DecodeStrict(payload, r.Qemu)
	}
	return fmt.Errorf("unknown runner %q", tag)
}

type FlagsGenerator struct {
	Compiler flaggen.Compiler `json:"compiler"`
	FlagSet  flaggen.FlagSet  `json:"flag_set"`
}

// Arguments are either a fixed flag string or generated per iteration.
type Arguments struct {
	Fixed     string
	Generated *FlagsGenerator
}

func (a Arguments) MarshalJSON() ([]byte, error) {
	if a.Generated != nil {
		return config.MarshalVariant("Generated", a.Generated)
	}
	return config.MarshalVariant("Fixed", a.Fixed)
}

func (a *Arguments) UnmarshalJSON(data []byte) error {
	tag, payload, err := config.UnmarshalVariant(data)
	if err != nil {
		return fmt.Errorf("bad arguments: %w", err)
	}
	*a = Arguments{}
	switch tag {
	case "Fixed":
		return config.DecodeStrict(payload, &a.Fixed)
	case "Generated":
		a.Generated = new(FlagsGenerator)
		return config.DecodeStrict(payload, a.Generated)
	}
	return fmt.Errorf("unknown arguments variant %q", tag)
}

type FuzzCompiler struct {
	Path         string       `json:"path"`
	Arguments    Arguments    `json:"arguments"`
	Runner       *Runner      `json:"runner,omitempty"`
	Architecture Architecture `json:"architecture"`
	// Linker is passed to rustc as -C linker=.
	Linker string `json:"linker,omitempty"`
	// Readelf is used to check that a binary is a RISC-V ELF before generating its QEMU cpu.
	Readelf string `json:"readelf,omitempty"`
}

// Kind infers the compiler family from the compiler path.
func (c *FuzzCompiler) Kind() (flaggen.Compiler, error) {
	return KindOf(c.Path)
}

func KindOf(path string) (flaggen.Compiler, error) {
	switch {
	case strings.Contains(path, "gcc"):
		return flaggen.Gcc, nil
	case strings.Contains(path, "clang"):
		return flaggen.Llvm, nil
	case strings.Contains(path, "rustc"):
		return flaggen.Rustc, nil
	}
	return "", fmt.Errorf("can't infer compiler kind from %q, the path must contain gcc, clang or rustc", path)
}

func (c *FuzzCompiler) validate(execute bool) error {
	if c.Path == "" {
		return fmt.Errorf("compiler path is not specified")
	}
	if _, err := c.Kind(); err != nil {
		return err
	}
	if err := c.Architecture.validate(); err != nil {
		return err
	}
	if gen := c.Arguments.Generated; gen != nil {
		var err error
		if gen.Compiler, err = flaggen.ParseCompiler(string(gen.Compiler)); err != nil {
			return err
		}
		if gen.FlagSet, err = flaggen.ParseFlagSet(string(gen.FlagSet)); err != nil {
			return err
		}
	}
	if !execute && c.Runner != nil {
		return fmt.Errorf("compile fuzzers cannot run code (runner defined for %v)", c.Path)
	}
	if execute && c.Runner == nil {
		return fmt.Errorf("runtime fuzzers must be able to run code (no runner for %v)", c.Path)
	}
	if c.Runner != nil && c.Runner.Qemu != nil {
		qemu := c.Runner.Qemu
		if qemu.RV32Path == "" || qemu.RV64Path == "" {
			return fmt.Errorf("qemu runner needs both rv32path and rv64path")
		}
	}
	return nil
}

type GeneratorKind string

const (
	Csmith    GeneratorKind = "Csmith"
	Yarpgen   GeneratorKind = "Yarpgen"
	Rustsmith GeneratorKind = "Rustsmith"
	Fixed     GeneratorKind = "Fixed"
)

// Generator is the test program source. IncludeDir is used by Csmith only.
type Generator struct {
	Kind       GeneratorKind
	Path       string
	IncludeDir string
}

type generatorPayload struct {
	Path       string `json:"path"`
	IncludeDir string `json:"include_dir,omitempty"`
}

func (g Generator) MarshalJSON() ([]byte, error) {
	return config.MarshalVariant(string(g.Kind), generatorPayload{g.Path, g.IncludeDir})
}

func (g *Generator) UnmarshalJSON(data []byte) error {
	tag, payload, err := config.UnmarshalVariant(data)
	if err != nil {
		return fmt.Errorf("bad generator: %w", err)
	}
	var p generatorPayload
	if err := config.DecodeStrict(payload, &p); err != nil {
		return fmt.Errorf("bad %v generator: %w", tag, err)
	}
	*g = Generator{Kind: GeneratorKind(tag), Path: p.Path, IncludeDir: p.IncludeDir}
	return g.validate()
}

func (g *Generator) validate() error {
	switch g.Kind {
	case Csmith:
		if g.IncludeDir == "" {
			return fmt.Errorf("Csmith generator needs include_dir")
		}
	case Yarpgen, Rustsmith, Fixed:
		if g.IncludeDir != "" {
			return fmt.Errorf("%v generator does not take include_dir", g.Kind)
		}
	default:
		return fmt.Errorf("unknown generator %q", string(g.Kind))
	}
	if g.Path == "" {
		return fmt.Errorf("%v generator path is not specified", g.Kind)
	}
	return nil
}

type CompileConfig struct {
	Action    flaggen.Action `json:"action"`
	Compiler  FuzzCompiler   `json:"compiler"`
	Generator Generator      `json:"generator"`
}

type RunConfig struct {
	FastCompiler FuzzCompiler `json:"fast_compiler"`
	SlowCompiler FuzzCompiler `json:"slow_compiler"`
	Generator    Generator    `json:"generator"`
}

// Config is a Compile or a Run config, exactly one of the fields is set.
type Config struct {
	Compile *CompileConfig
	Run     *RunConfig
}

func (cfg Config) MarshalJSON() ([]byte, error) {
	if cfg.Compile != nil {
		return config.MarshalVariant("Compile", cfg.Compile)
	}
	return config.MarshalVariant("Run", cfg.Run)
}

func (cfg *Config) UnmarshalJSON(data []byte) error {
	tag, payload, err := config.UnmarshalVariant(data)
	if err != nil {
		return fmt.Errorf("bad fuzz config: %w", err)
	}
	*cfg = Config{}
	switch tag {
	case "Compile":
		cfg.Compile = new(CompileConfig)
		return config.DecodeStrict(payload, cfg.Compile)
	case "Run":
		cfg.Run = new(RunConfig)
		return config.DecodeStrict(payload, cfg.Run)
	}
	return fmt.Errorf("unknown fuzz config %q, want Compile or Run", tag)
}

// Generator returns the generator of either config kind.
func (cfg *Config) Generator() Generator {
	if cfg.Compile != nil {
		return cfg.Compile.Generator
	}
	return cfg.Run.Generator
}

// Compilers returns the compilers the config uses.
func (cfg *Config) Compilers() []*FuzzCompiler {
	if cfg.Compile != nil {
		return []*FuzzCompiler{&cfg.Compile.Compiler}
	}
	return []*FuzzCompiler{&cfg.Run.FastCompiler, &cfg.Run.SlowCompiler}
}

func LoadFile(filename string) (*Config, error) {
	cfg := new(Config)
	if err := config.LoadFile(filename, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", filename, err)
	}
	return cfg, nil
}

func LoadData(data []byte) (*Config, error) {
	cfg := new(Config)
	if err := config.LoadData(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the config without touching the file system.
func (cfg *Config) Validate() error {
	switch {
	case cfg.Compile != nil && cfg.Run != nil, cfg.Compile == nil && cfg.Run == nil:
		return fmt.Errorf("exactly one of Compile and Run must be specified")
	case cfg.Compile != nil:
		action, err := flaggen.ParseAction(string(cfg.Compile.Action))
		if err != nil {
			return err
		}
		cfg.Compile.Action = action
		if err := cfg.Compile.Compiler.validate(false); err != nil {
			return fmt.Errorf("compiler: %w", err)
		}
	default:
		if err := cfg.Run.FastCompiler.validate(true); err != nil {
			return fmt.Errorf("fast_compiler: %w", err)
		}
		if err := cfg.Run.SlowCompiler.validate(true); err != nil {
			return fmt.Errorf("slow_compiler: %w", err)
		}
	}
	gen := cfg.Generator()
	return gen.validate()
}
