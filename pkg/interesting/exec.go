// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package interesting

import (
	"slices"

	"github.com/rvfuzz/rvfuzz/pkg/compile"
	"github.com/rvfuzz/rvfuzz/pkg/execute"
	"github.com/rvfuzz/rvfuzz/pkg/failinfo"
	"github.com/rvfuzz/rvfuzz/pkg/flaggen"
	"github.com/rvfuzz/rvfuzz/pkg/fuzzconfig"
	"github.com/rvfuzz/rvfuzz/pkg/generate"
	"github.com/rvfuzz/rvfuzz/pkg/osutil"
	"github.com/rvfuzz/rvfuzz/pkg/triage"
)

func (cfg *Config) exec(fi *failinfo.ExecFailInfo) error {
	flags, err := cfg.loadFlags("", len(fi.Testcases))
	if err != nil {
		return err
	}
	job, err := ExecJob(fi, flags)
	if err != nil {
		return err
	}
	job.Dir = cfg.Dir
	if err := cfg.checkUB(fi.Generator, fi.Testcases, targets32(flags)); err != nil {
		return err
	}
	build, err := job.Run()
	if err != nil {
		return err
	}
	if err := cfg.writeOutput("comp_", build.Run); err != nil {
		return err
	}
	if err := cleanBuild(build, triage.HasWarning); err != nil {
		return err
	}
	run, err := cfg.run(fi.Runner, fi.Generator, TestcaseOutput, "")
	if err != nil {
		return err
	}
	switch {
	case run.Success():
		return boringf("program succeeded")
	case run.TimedOut():
		return boringf("program timed out")
	case !triage.MatchExec(fi.FailType, run):
		return boringf("unexpected program failure %v, want %v: %s", run, fi.FailType, run.Stderr)
	}
	return nil
}

// ExecJob returns the build of an execution failure candidate with the semantics
// flags the generated programs rely on and with warnings enabled.
func ExecJob(fi *failinfo.ExecFailInfo, flags [][]string) (*compile.Job, error) {
	c, err := compiler(fi.Compilers, fi.Architecture, &fi.Runner)
	if err != nil {
		return nil, err
	}
	return &compile.Job{
		Compiler:  c,
		Generator: fi.Generator,
		Action:    flaggen.Execute,
		Sources:   fi.Testcases,
		Flags:     flags,
		Output:    TestcaseOutput,
		Extra:     slices.Concat(cleanFlags, []string{"-Wall", "-Wformat"}, triage.IgnorableWarnings),
		Budget:    CleanBudget,
	}, nil
}

// cleanBuild checks that the build succeeded without warnings.
func cleanBuild(build *compile.Result, warned func([]byte) bool) error {
	for _, step := range build.Steps {
		if warned(step.Stderr) {
			return boringf("unexpected warning: %s", step.Stderr)
		}
	}
	switch build.Verdict {
	case triage.Success:
		return nil
	case triage.Timeout:
		return boringf("build timed out")
	}
	return boringf("build failed: %v: %s", build.Run, build.Run.Stderr)
}

// run executes the program and saves its output with the prefix.
func (cfg *Config) run(runner fuzzconfig.Runner, gen fuzzconfig.Generator, program, prefix string) (*osutil.Result, error) {
	input, err := generate.Input(gen, cfg.Dir)
	if err != nil {
		return nil, err
	}
	job := &execute.Job{
		Runner:  runner,
		Dir:     cfg.Dir,
		Program: program,
		Input:   input,
	}
	res, _, err := job.Run()
	if err != nil {
		return nil, err
	}
	if err := cfg.writeOutput(prefix+"exec_", res); err != nil {
		return nil, err
	}
	if err := cfg.writeSignal(prefix, res); err != nil {
		return nil, err
	}
	return res, nil
}
