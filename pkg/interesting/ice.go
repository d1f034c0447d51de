// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package interesting

import (
	"github.com/rvfuzz/rvfuzz/pkg/compile"
	"github.com/rvfuzz/rvfuzz/pkg/failinfo"
	"github.com/rvfuzz/rvfuzz/pkg/flaggen"
	"github.com/rvfuzz/rvfuzz/pkg/triage"
)

// ice rebuilds the candidate. Any warning rejects it,
// otherwise the build must crash the same way as the saved one.
func (cfg *Config) ice(fi *failinfo.IceFailInfo) error {
	flags, err := cfg.loadFlags("", len(fi.Testcases))
	if err != nil {
		return err
	}
	job, err := IceJob(fi, flags)
	if err != nil {
		return err
	}
	job.Dir = cfg.Dir
	res, err := job.Run()
	if err != nil {
		return err
	}
	if err := cfg.writeOutput("", res.Run); err != nil {
		return err
	}
	for _, step := range res.Steps {
		if triage.HasWarning(step.Stderr) {
			return boringf("unexpected warning: %s", step.Stderr)
		}
	}
	switch {
	case len(res.Steps) != len(flags):
		// With several sources the objects must build, the link step crashes.
		return boringf("intermediate build failed: %v", res.Run)
	case res.Run.Success():
		return boringf("build succeeded")
	case res.Run.TimedOut():
		return boringf("build timed out")
	case !triage.MatchIce(fi.FailType, res.Run.Stderr):
		return boringf("unrecognized failure %v: %s", fi.FailType, res.Run.Stderr)
	}
	return nil
}

// IceJob returns the build of a compiler crash candidate with warnings enabled.
// A single source is only compiled or assembled as the saved action says.
func IceJob(fi *failinfo.IceFailInfo, flags [][]string) (*compile.Job, error) {
	c, err := compiler(fi.Compilers, fi.Architecture, nil)
	if err != nil {
		return nil, err
	}
	job := &compile.Job{
		Compiler:  c,
		Generator: fi.Generator,
		Action:    fi.Action,
		Sources:   fi.Testcases,
		Flags:     flags,
		Output:    TestcaseOutput,
		Extra:     append([]string{"-Wall"}, triage.IgnorableWarnings...),
	}
	if len(fi.Testcases) == 1 {
		switch fi.Action {
		case flaggen.Compile:
			job.Extra = append(job.Extra, "-S")
			job.Output = "/dev/null"
		case flaggen.Assemble:
			job.Extra = append(job.Extra, "-c")
			job.Output = "/dev/null"
		}
	}
	return job, nil
}
