// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzzer

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rvfuzz/rvfuzz/pkg/compile"
	"github.com/rvfuzz/rvfuzz/pkg/execute"
	"github.com/rvfuzz/rvfuzz/pkg/failinfo"
	"github.com/rvfuzz/rvfuzz/pkg/flaggen"
	"github.com/rvfuzz/rvfuzz/pkg/fuzzconfig"
	"github.com/rvfuzz/rvfuzz/pkg/generate"
	"github.com/rvfuzz/rvfuzz/pkg/log"
	"github.com/rvfuzz/rvfuzz/pkg/osutil"
	"github.com/rvfuzz/rvfuzz/pkg/triage"
)

// Binaries of the differential builds.
const (
	FastOutput = "fast_compiler.out"
	SlowOutput = "slow_compiler.out"
)

// side is the build and run of a program with one of the two compilers.
type side struct {
	name     string
	compiler *fuzzconfig.FuzzCompiler
	output   string
	stats    *buildStats
	flags    [][]string
	// reference run failures are not bugs of the compiler under test.
	reference bool
}

func (f *Fuzzer) differentialLoop(ctx context.Context) error {
	cfg := f.cfg.Fuzz.Run
	fastKind, err := cfg.FastCompiler.Kind()
	if err != nil {
		return err
	}
	slowKind, err := cfg.SlowCompiler.Kind()
	if err != nil {
		return err
	}
	fast := &side{
		name:      "fast",
		compiler:  &cfg.FastCompiler,
		output:    FastOutput,
		stats:     newBuildStats(f.stats, "fast", true),
		reference: true,
	}
	slow := &side{
		name:     "slow",
		compiler: &cfg.SlowCompiler,
		output:   SlowOutput,
		stats:    newBuildStats(f.stats, "slow", true),
	}
	iter := 0
	for pass := 0; !f.done(ctx, pass); pass++ {
		start := time.Now()
		if err := f.generate(iter); err != nil {
			return err
		}
		input, err := generate.Input(cfg.Generator, f.cfg.Workdir)
		if err != nil {
			return err
		}
		var slowBase []string
		if slowKind != flaggen.Rustc {
			slowBase = compile.ExecBaseFlags("-O3")
		}
		if slow.flags, err = f.flags(slow.compiler, flaggen.Execute, slowBase); err != nil {
			return err
		}
		if fastKind == flaggen.Rustc {
			flags, err := compile.RustcFlags(nil, flaggen.Execute, "")
			if err != nil {
				return err
			}
			fast.flags = [][]string{flags}
		} else {
			fastBase := compile.ExecBaseFlags("-O1")
			if targets32(slow.flags) {
				fastBase = append(fastBase, "-m32", "-malign-double")
			}
			if fast.flags, err = f.flags(fast.compiler, flaggen.Execute, fastBase); err != nil {
				return err
			}
		}
		fastRun, err := f.buildAndRun(fast, input)
		if err != nil || fastRun == nil {
			if err != nil {
				return err
			}
			continue
		}
		slowRun, err := f.buildAndRun(slow, input)
		if err != nil || slowRun == nil {
			if err != nil {
				return err
			}
			continue
		}
		if !bytes.Equal(fastRun.Stdout, slowRun.Stdout) {
			f.statMismatch.Add(1)
			return f.saveMismatch(fast, slow, fastRun, slowRun)
		}
		iter++
		f.iterationDone(start)
		if isPowerOfTwo(iter) {
			f.progress(iter, fmt.Sprintf("fast|slow compile %4v|%4v ms, fast|slow exec %4v|%4v ms) "+
				"fast|slow c timeout %%: %v|%v fast|slow exec timeout %%: %v|%v",
				fast.stats.statCompileTotal.Val()/iter, slow.stats.statCompileTotal.Val()/iter,
				fast.stats.statExecTotal.Val()/iter, slow.stats.statExecTotal.Val()/iter,
				fast.stats.compileTimeoutPercent(), slow.stats.compileTimeoutPercent(),
				fast.stats.execTimeoutPercent(), slow.stats.execTimeoutPercent()),
				fast.stats, slow.stats)
		}
	}
	return nil
}

func targets32(flags [][]string) bool {
	for _, set := range flags {
		for _, flag := range set {
			if strings.Contains(flag, "march=rv32") {
				return true
			}
		}
	}
	return false
}

// buildAndRun returns the program run or nil if the iteration must be skipped.
func (f *Fuzzer) buildAndRun(s *side, input []string) (*osutil.Result, error) {
	job := &compile.Job{
		Compiler:  s.compiler,
		Generator: f.cfg.Fuzz.Generator(),
		Action:    flaggen.Execute,
		Sources:   f.sources,
		Flags:     s.flags,
		Output:    s.output,
		Dir:       f.cfg.Workdir,
	}
	res, err := job.Run()
	if err != nil {
		return nil, err
	}
	s.stats.compiled(res.Verdict, res.Duration)
	switch res.Verdict {
	case triage.Failure:
		return nil, f.saveBuildFailure(res)
	case triage.Timeout, triage.Benign:
		return nil, nil
	}
	exec := &execute.Job{
		Runner:  *s.compiler.Runner,
		Readelf: s.compiler.Readelf,
		Dir:     f.cfg.Workdir,
		Program: s.output,
		Input:   input,
	}
	run, verdict, err := exec.Run()
	if err != nil {
		if s.reference {
			log.Logf(1, "%2v ignoring %v exec error, logging as timeout: %v", f.cfg.ID, s.name, err)
			s.stats.statExecTimeout.Add(1)
			return nil, nil
		}
		return nil, err
	}
	s.stats.executed(run.Duration)
	switch verdict {
	case triage.Success:
		s.stats.statExecSuccess.Add(1)
		return run, nil
	case triage.Timeout:
		s.stats.statExecTimeout.Add(1)
		return nil, nil
	}
	if s.reference {
		log.Logf(1, "%2v ignoring %v exec failure, logging as timeout: %v", f.cfg.ID, s.name, run)
		s.stats.statExecTimeout.Add(1)
		return nil, nil
	}
	s.stats.statExecError.Add(1)
	return nil, f.saveExecFailure(s, run)
}

func (f *Fuzzer) compilers(c *fuzzconfig.FuzzCompiler) []string {
	res := make([]string, failinfo.FlagSets(len(f.sources)))
	for i := range res {
		res[i] = c.Path
	}
	return res
}

func (f *Fuzzer) saveExecFailure(s *side, run *osutil.Result) error {
	fi := &failinfo.ExecFailInfo{
		Compilers:    f.compilers(s.compiler),
		Architecture: s.compiler.Architecture,
		Testcases:    f.sources,
		Generator:    f.cfg.Fuzz.Generator(),
		Runner:       *s.compiler.Runner,
		FailType:     execute.FailType(*s.compiler.Runner),
	}
	dir, err := execute.Save(f.cfg.Workdir, f.cfg.FindsDir, fi, s.flags, run)
	if err != nil {
		return err
	}
	title := fmt.Sprintf("%v program failed: %v", s.name, run)
	if kind := triage.ClassifyExec(run.Signal, run.Stderr); kind != "" {
		title = fmt.Sprintf("%v program failed: %v", s.name, kind)
	}
	log.Logf(0, "%2v %v", f.cfg.ID, title)
	return &FindError{Dir: dir, Title: title}
}

func (f *Fuzzer) saveMismatch(fast, slow *side, fastRun, slowRun *osutil.Result) error {
	dir, err := failinfo.NewFind(f.cfg.Workdir, f.cfg.FindsDir)
	if err != nil {
		return err
	}
	files := map[string][]byte{
		failinfo.FastPrefix + failinfo.StdoutFile: fastRun.Stdout,
		failinfo.FastPrefix + failinfo.StderrFile: fastRun.Stderr,
		failinfo.SlowPrefix + failinfo.StdoutFile: slowRun.Stdout,
		failinfo.SlowPrefix + failinfo.StderrFile: slowRun.Stderr,
		failinfo.DiffFile: []byte(failinfo.OutputDiff(string(fastRun.Stdout), string(slowRun.Stdout))),
	}
	for name, data := range files {
		if err := osutil.WriteFile(filepath.Join(dir, name), data); err != nil {
			return err
		}
	}
	if err := failinfo.SaveFlags(dir, failinfo.FastPrefix, fast.flags); err != nil {
		return err
	}
	if err := failinfo.SaveFlags(dir, failinfo.SlowPrefix, slow.flags); err != nil {
		return err
	}
	fi := &failinfo.RuntimeFailInfo{
		FastCompilers:    f.compilers(fast.compiler),
		FastArchitecture: fast.compiler.Architecture,
		FastRunner:       *fast.compiler.Runner,
		SlowCompilers:    f.compilers(slow.compiler),
		SlowArchitecture: slow.compiler.Architecture,
		SlowRunner:       *slow.compiler.Runner,
		Testcases:        f.sources,
		Generator:        f.cfg.Fuzz.Generator(),
		FailType:         failinfo.Mismatch,
	}
	if err := failinfo.Save(dir, &failinfo.FailInfo{Runtime: fi}); err != nil {
		return err
	}
	title := fmt.Sprintf("stdout mismatch %q != %q", truncate(fastRun.Stdout), truncate(slowRun.Stdout))
	log.Logf(0, "%2v %v", f.cfg.ID, title)
	return &FindError{Dir: dir, Title: title}
}

func truncate(out []byte) string {
	const limit = 64
	if len(out) > limit {
		return string(out[:limit]) + "..."
	}
	return string(out)
}
