// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package compile builds generated test programs with the compiler under test:
// it produces per-source flag sets, runs the budgeted compile and link commands,
// classifies the outcome and saves compiler crashes into the finds directory.
package compile

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rvfuzz/rvfuzz/pkg/failinfo"
	"github.com/rvfuzz/rvfuzz/pkg/flaggen"
	"github.com/rvfuzz/rvfuzz/pkg/fuzzconfig"
	"github.com/rvfuzz/rvfuzz/pkg/generate"
	"github.com/rvfuzz/rvfuzz/pkg/log"
	"github.com/rvfuzz/rvfuzz/pkg/osutil"
	"github.com/rvfuzz/rvfuzz/pkg/triage"
)

// CrashOutput is the output of crash fuzzing builds.
const CrashOutput = "output.o"

const rustcTarget = "riscv64gc-unknown-linux-gnu"

// Flags returns count flag sets for the compiler: base flags followed by either
// the fixed arguments or freshly generated flags. Generated sets share one ABI
// so that their objects link together.
func Flags(rnd *rand.Rand, c *fuzzconfig.FuzzCompiler, gen fuzzconfig.Generator, action flaggen.Action,
	base []string, count int) ([][]string, error) {
	var lines []string
	if g := c.Arguments.Generated; g != nil {
		target := flaggen.Target{
			Compiler: g.Compiler,
			Action:   action,
			FlagSet:  g.FlagSet,
			RV64Only: generate.RV64Only(gen),
		}
		var err error
		if lines, err = flaggen.ArbitraryFlagsCompatible(rnd, target, count); err != nil {
			return nil, err
		}
	} else {
		for i := 0; i < count; i++ {
			lines = append(lines, c.Arguments.Fixed)
		}
	}
	var res [][]string
	for _, line := range lines {
		res = append(res, append(slices.Clone(base), strings.Fields(line)...))
	}
	return res, nil
}

// CrashBaseFlags are the flags every crash fuzzing build starts with.
func CrashBaseFlags(kind flaggen.Compiler, action flaggen.Action) []string {
	base := []string{"-O3", "-w"}
	switch action {
	case flaggen.Compile:
		base = append(base, "-S")
	case flaggen.Assemble:
		base = append(base, "-c")
		if kind != flaggen.Gcc {
			// Exercise the external assembler.
			base = append(base, "-no-integrated-as")
		}
	}
	return base
}

// ExecBaseFlags are the flags of differential builds, they define the behavior
// csmith programs rely on. opt is the optimization level flag.
func ExecBaseFlags(opt string) []string {
	return []string{"-w", "-fpermissive", "-fno-strict-aliasing", "-fwrapv", "-fsigned-char", opt}
}

// RustcFlags maps generated flags onto rustc: the -march token is passed to LLVM.
// With no generated flags the native target is built at the highest optimization level.
func RustcFlags(generated []string, action flaggen.Action, linker string) ([]string, error) {
	var flags []string
	if len(generated) == 0 {
		flags = []string{"-C", "opt-level=3"}
	} else {
		if !strings.HasPrefix(generated[0], "-march") {
			return nil, fmt.Errorf("rustc flags must start with -march: %q", generated)
		}
		if linker == "" {
			return nil, fmt.Errorf("rustc cross builds need a linker")
		}
		flags = []string{
			"-C", "opt-level=1",
			"-C", "llvm-args=" + generated[0],
			"--target", rustcTarget,
			"-C", "linker=" + linker,
		}
	}
	switch action {
	case flaggen.Compile:
		flags = append(flags, "--emit", "asm")
	case flaggen.Assemble:
		flags = append(flags, "--emit", "obj")
	}
	return flags, nil
}

// Job is a build of one test program.
type Job struct {
	Compiler  *fuzzconfig.FuzzCompiler
	Generator fuzzconfig.Generator
	Action    flaggen.Action
	// Sources are relative to Dir.
	Sources []string
	// Flags has one set per source plus the link set if there are several sources.
	Flags  [][]string
	Output string
	Dir    string
	// Extra flags follow the sources of every step, e.g. warning options of reduction builds.
	Extra []string
	// Budget defaults to osutil.CompileBudget.
	Budget osutil.Budget
}

// Result is the outcome of a build.
type Result struct {
	Verdict triage.Verdict
	// Run is the last command that was run, on failure the failing one.
	Run      *osutil.Result
	Duration time.Duration
	// Fail describes the failing step if Verdict is Failure.
	Fail  *failinfo.IceFailInfo
	Flags [][]string
	// Steps are all commands that were run, in order.
	Steps []*osutil.Result
}

// command is one step of a build.
type command struct {
	args    []string
	sources []string
	flags   [][]string
}

// commands returns the build steps. Several sources are compiled into objects
// separately and then linked.
func (job *Job) commands(kind flaggen.Compiler) []command {
	genFlags := generate.Flags(job.Generator, job.Compiler.Architecture)
	if len(job.Sources) == 1 {
		args := append(slices.Clone(job.Flags[0]), job.Sources[0])
		args = append(append(append(args, genFlags...), job.Extra...), "-o", job.Output)
		return []command{{args: args, sources: job.Sources, flags: job.Flags}}
	}
	var cmds []command
	var objects []string
	for i, src := range job.Sources {
		obj := strings.TrimSuffix(src, filepath.Ext(src)) + ".o"
		objects = append(objects, obj)
		args := append(slices.Clone(job.Flags[i]), src)
		args = append(append(append(args, genFlags...), job.Extra...), "-c", "-o", obj)
		cmds = append(cmds, command{args: args, sources: []string{src}, flags: job.Flags[i : i+1]})
	}
	link := job.Flags[len(job.Flags)-1]
	args := append(slices.Clone(link), objects...)
	args = append(append(args, genFlags...), job.Extra...)
	if kind == flaggen.Llvm && usesLTO(job.Flags) {
		args = append(args, "-fuse-ld=lld")
	}
	args = append(args, "-o", job.Output)
	return append(cmds, command{args: args, sources: job.Sources, flags: job.Flags})
}

func (job *Job) validate() (flaggen.Compiler, error) {
	if len(job.Sources) == 0 {
		return "", fmt.Errorf("no sources to compile")
	}
	if want := failinfo.FlagSets(len(job.Sources)); len(job.Flags) != want {
		return "", fmt.Errorf("%v sources need %v flag sets, got %v", len(job.Sources), want, len(job.Flags))
	}
	return job.Compiler.Kind()
}

// CommandLines returns the build steps as shell command lines, without the budget.
func (job *Job) CommandLines() ([]string, error) {
	kind, err := job.validate()
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, cmd := range job.commands(kind) {
		lines = append(lines, osutil.CommandLine(append([]string{job.Compiler.Path}, cmd.args...)))
	}
	return lines, nil
}

// Run builds the program, it stops at the first step that does not succeed.
// Non-nil error means that the build could not be run at all.
func (job *Job) Run() (*Result, error) {
	kind, err := job.validate()
	if err != nil {
		return nil, err
	}
	res := new(Result)
	for _, cmd := range job.commands(kind) {
		if err := job.step(res, kind, cmd.args, cmd.sources, cmd.flags); err != nil {
			return nil, err
		}
		if res.Verdict != triage.Success {
			break
		}
	}
	return res, nil
}

func (job *Job) step(res *Result, kind flaggen.Compiler, args, sources []string, flags [][]string) error {
	budget := job.Budget
	if budget.Limit == 0 {
		budget = osutil.CompileBudget
	}
	run, err := osutil.RunBudget(budget, job.Dir, job.Compiler.Path, args...)
	if err != nil {
		return err
	}
	res.Run = run
	res.Steps = append(res.Steps, run)
	res.Duration += run.Duration
	res.Verdict = triage.Compile(kind, run)
	switch res.Verdict {
	case triage.Benign:
		log.Logf(1, "ignoring %v", triage.BenignError(kind, run.Stderr))
	case triage.Failure:
		compilers := make([]string, failinfo.FlagSets(len(sources)))
		for i := range compilers {
			compilers[i] = job.Compiler.Path
		}
		res.Flags = flags
		res.Fail = &failinfo.IceFailInfo{
			Compilers:    compilers,
			Architecture: job.Compiler.Architecture,
			Testcases:    slices.Clone(sources),
			Action:       job.Action,
			Generator:    job.Generator,
			FailType:     failinfo.IceFailType{Backend: triage.BackendOf(kind)},
		}
	}
	return nil
}

func usesLTO(flags [][]string) bool {
	for _, set := range flags {
		for _, flag := range set {
			if strings.Contains(flag, "-flto") {
				return true
			}
		}
	}
	return false
}

// Save copies the worker directory of a failed build into findsDir together with
// the flags, compiler output and fail_info.yaml. Returns the find directory.
func (res *Result) Save(workdir, findsDir string) (string, error) {
	if res.Fail == nil {
		return "", fmt.Errorf("build did not fail")
	}
	dir, err := failinfo.NewFind(workdir, findsDir)
	if err != nil {
		return "", err
	}
	if err := failinfo.SaveFlags(dir, "", res.Flags); err != nil {
		return "", err
	}
	if err := osutil.WriteFile(filepath.Join(dir, failinfo.StderrFile), res.Run.Stderr); err != nil {
		return "", err
	}
	if err := osutil.WriteFile(filepath.Join(dir, failinfo.StdoutFile), res.Run.Stdout); err != nil {
		return "", err
	}
	if err := failinfo.Save(dir, &failinfo.FailInfo{Ice: res.Fail}); err != nil {
		return "", err
	}
	return dir, nil
}
