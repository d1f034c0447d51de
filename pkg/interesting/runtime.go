// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package interesting

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rvfuzz/rvfuzz/pkg/compile"
	"github.com/rvfuzz/rvfuzz/pkg/failinfo"
	"github.com/rvfuzz/rvfuzz/pkg/flaggen"
	"github.com/rvfuzz/rvfuzz/pkg/fuzzconfig"
	"github.com/rvfuzz/rvfuzz/pkg/triage"
)

// runtime rebuilds the candidate with the reference compiler at -O1 and with the compiler
// under test using the reduced flags. Both programs must run cleanly and print different output.
func (cfg *Config) runtime(fi *failinfo.RuntimeFailInfo) error {
	slowFlags, err := cfg.loadFlags(failinfo.SlowPrefix, len(fi.Testcases))
	if err != nil {
		return err
	}
	fast, slow, err := RuntimeJobs(fi, slowFlags)
	if err != nil {
		return err
	}
	for _, job := range []*compile.Job{fast, slow} {
		job.Dir = cfg.Dir
		if err := os.Remove(filepath.Join(cfg.Dir, job.Output)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	if err := cfg.checkUB(fi.Generator, fi.Testcases, targets32(slowFlags)); err != nil {
		return err
	}
	fastOut, err := cfg.buildAndRun(fast, failinfo.FastPrefix)
	if err != nil {
		return err
	}
	slowOut, err := cfg.buildAndRun(slow, failinfo.SlowPrefix)
	if err != nil {
		return err
	}
	if bytes.Equal(fastOut, slowOut) {
		return boringf("no mismatch")
	}
	return nil
}

// RuntimeJobs returns the reference and the tested builds of a runtime mismatch candidate.
func RuntimeJobs(fi *failinfo.RuntimeFailInfo, slowFlags [][]string) (fast, slow *compile.Job, err error) {
	fastCompiler, err := compiler(fi.FastCompilers, fi.FastArchitecture, &fi.FastRunner)
	if err != nil {
		return nil, nil, err
	}
	slowCompiler, err := compiler(fi.SlowCompilers, fi.SlowArchitecture, &fi.SlowRunner)
	if err != nil {
		return nil, nil, err
	}
	fastSet := []string{"-O1"}
	if targets32(slowFlags) {
		fastSet = append(fastSet, "-m32", "-malign-double")
	}
	fastFlags := make([][]string, len(slowFlags))
	for i := range fastFlags {
		fastFlags[i] = fastSet
	}
	fast = runtimeJob(fi, fastCompiler, failinfo.FastPrefix, fastFlags, []string{"-w"})
	slow = runtimeJob(fi, slowCompiler, failinfo.SlowPrefix, slowFlags, triage.IgnorableWarnings)
	return fast, slow, nil
}

func runtimeJob(fi *failinfo.RuntimeFailInfo, c *fuzzconfig.FuzzCompiler, prefix string,
	flags [][]string, warnings []string) *compile.Job {
	return &compile.Job{
		Compiler:  c,
		Generator: fi.Generator,
		Action:    flaggen.Execute,
		Sources:   fi.Testcases,
		Flags:     flags,
		Output:    prefix + TestcaseOutput,
		Extra:     slices.Concat(cleanFlags, []string{"-Wall"}, warnings),
		Budget:    CleanBudget,
	}
}

// buildAndRun returns stdout of the program.
func (cfg *Config) buildAndRun(job *compile.Job, prefix string) ([]byte, error) {
	build, err := job.Run()
	if err != nil {
		return nil, err
	}
	if err := cfg.writeOutput(job.Output+"_", build.Run); err != nil {
		return nil, err
	}
	if err := cleanBuild(build, triage.HasUnexpectedWarning); err != nil {
		return nil, err
	}
	run, err := cfg.run(*job.Compiler.Runner, job.Generator, job.Output, prefix)
	if err != nil {
		return nil, err
	}
	if !run.Success() {
		return nil, boringf("%v program failed: %v", strings.TrimSuffix(prefix, "_"), run)
	}
	return run.Stdout, nil
}
