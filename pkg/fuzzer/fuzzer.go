// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package fuzzer implements a fuzz worker: it generates test programs, builds them with
// randomized compiler flags and stops at the first compiler crash (crash mode) or at the first
// wrong-code bug found by comparing a reference and a target build (differential mode).
package fuzzer

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rvfuzz/rvfuzz/pkg/compile"
	"github.com/rvfuzz/rvfuzz/pkg/failinfo"
	"github.com/rvfuzz/rvfuzz/pkg/flaggen"
	"github.com/rvfuzz/rvfuzz/pkg/fuzzconfig"
	"github.com/rvfuzz/rvfuzz/pkg/generate"
	"github.com/rvfuzz/rvfuzz/pkg/log"
	"github.com/rvfuzz/rvfuzz/pkg/stat"
	"github.com/rvfuzz/rvfuzz/pkg/triage"
)

type Config struct {
	Fuzz *fuzzconfig.Config
	// Workdir is owned by the worker, programs are generated and built there.
	Workdir  string
	FindsDir string
	ID       int
	// Iterations bounds the number of loop passes (including the skipped ones),
	// 0 means running until the context is cancelled.
	Iterations int
	// Registerer exports the worker stats if set.
	Registerer prometheus.Registerer
}

// FindError is returned when the worker has saved a find and stopped.
type FindError struct {
	Dir   string
	Title string
}

func (err *FindError) Error() string {
	return fmt.Sprintf("%v\ndumped to %v", err.Title, err.Dir)
}

type Fuzzer struct {
	cfg   *Config
	rnd   *rand.Rand
	stats *stat.Set
	start time.Time

	statIterations   *stat.Val
	statGenerated    *stat.Val
	statGenerateTime *stat.Val
	statGenerateMs   *stat.Val
	statMismatch     *stat.Val
	avgIteration     stat.AverageValue[time.Duration]

	sources []string
}

func New(cfg *Config, rnd *rand.Rand) *Fuzzer {
	set := stat.NewSet(strconv.Itoa(cfg.ID), cfg.Registerer)
	f := &Fuzzer{
		cfg:   cfg,
		rnd:   rnd,
		stats: set,
		statIterations: set.New("iterations", "Completed fuzzing iterations",
			stat.Console, stat.Rate{}, stat.Prometheus("rvfuzz_iterations")),
		statGenerated: set.New("programs", "Generated test programs",
			stat.Prometheus("rvfuzz_programs")),
		statGenerateTime: set.New("generate latency", "Program generation time (ms)",
			stat.Distribution{}, stat.Prometheus("rvfuzz_generate_latency_ms")),
		statGenerateMs: set.New("generate ms", "Total time spent in the program generator"),
	}
	set.New("iteration ms", "Average length of a completed iteration (ms)", func() int {
		return int(f.avgIteration.Value().Milliseconds())
	}, stat.Prometheus("rvfuzz_iteration_ms"))
	if cfg.Fuzz.Run != nil {
		f.statMismatch = set.New("mismatch", "Runtime output mismatches",
			stat.Console, stat.Prometheus("rvfuzz_mismatch"))
	}
	return f
}

// Stats returns the current worker stats.
func (f *Fuzzer) Stats(level stat.Level) []stat.UI {
	return f.stats.Collect(level)
}

// Close stops exporting the worker stats.
func (f *Fuzzer) Close() {
	f.stats.Close()
}

// Run fuzzes until the context is cancelled, the iteration limit is reached or a find is saved.
// A find is reported as *FindError.
func (f *Fuzzer) Run(ctx context.Context) error {
	f.start = time.Now()
	if f.cfg.Fuzz.Compile != nil {
		return f.crashLoop(ctx)
	}
	return f.differentialLoop(ctx)
}

func (f *Fuzzer) done(ctx context.Context, pass int) bool {
	return ctx.Err() != nil || f.cfg.Iterations != 0 && pass >= f.cfg.Iterations
}

func (f *Fuzzer) generate(iter int) error {
	gen := f.cfg.Fuzz.Generator()
	if iter%generate.Interval(gen, f.cfg.Fuzz.Run != nil) != 0 && f.sources != nil {
		return nil
	}
	start := time.Now()
	sources, err := generate.Run(gen, f.cfg.Workdir)
	if err != nil {
		return err
	}
	took := int(time.Since(start).Milliseconds())
	f.statGenerated.Add(1)
	f.statGenerateTime.Add(took)
	f.statGenerateMs.Add(took)
	f.sources = sources
	return nil
}

// flags returns the flag sets of one build. rustc builds a single source
// and takes the -march part of the generated flags only.
func (f *Fuzzer) flags(c *fuzzconfig.FuzzCompiler, action flaggen.Action, base []string) ([][]string, error) {
	kind, err := c.Kind()
	if err != nil {
		return nil, err
	}
	gen := f.cfg.Fuzz.Generator()
	count := failinfo.FlagSets(len(f.sources))
	if kind != flaggen.Rustc {
		return compile.Flags(f.rnd, c, gen, action, base, count)
	}
	if count != 1 {
		return nil, fmt.Errorf("rustc builds a single source, got %v", len(f.sources))
	}
	generated, err := compile.Flags(f.rnd, c, gen, action, nil, 1)
	if err != nil {
		return nil, err
	}
	flags, err := compile.RustcFlags(generated[0], action, c.Linker)
	if err != nil {
		return nil, err
	}
	return [][]string{flags}, nil
}

func (f *Fuzzer) crashLoop(ctx context.Context) error {
	cfg := f.cfg.Fuzz.Compile
	kind, err := cfg.Compiler.Kind()
	if err != nil {
		return err
	}
	stats := newBuildStats(f.stats, "", false)
	iter := 0
	for pass := 0; !f.done(ctx, pass); pass++ {
		start := time.Now()
		if err := f.generate(iter); err != nil {
			return err
		}
		flags, err := f.flags(&cfg.Compiler, cfg.Action, compile.CrashBaseFlags(kind, cfg.Action))
		if err != nil {
			return err
		}
		job := &compile.Job{
			Compiler:  &cfg.Compiler,
			Generator: cfg.Generator,
			Action:    cfg.Action,
			Sources:   f.sources,
			Flags:     flags,
			Output:    compile.CrashOutput,
			Dir:       f.cfg.Workdir,
		}
		res, err := job.Run()
		if err != nil {
			return err
		}
		stats.compiled(res.Verdict, res.Duration)
		if res.Verdict == triage.Failure {
			return f.saveBuildFailure(res)
		}
		iter++
		f.iterationDone(start)
		if isPowerOfTwo(iter) {
			f.progress(iter, fmt.Sprintf("Compiler %4v ms) - Timeout %%: %v",
				stats.statCompileTotal.Val()/iter, stats.compileTimeoutPercent()), stats)
		}
	}
	return nil
}

func (f *Fuzzer) saveBuildFailure(res *compile.Result) error {
	dir, err := res.Save(f.cfg.Workdir, f.cfg.FindsDir)
	if err != nil {
		return err
	}
	title := triage.IceTitle(res.Run.Stderr)
	if title == "" {
		title = res.Run.String()
	}
	log.Logf(0, "%2v compiler failure: %v", f.cfg.ID, title)
	return &FindError{Dir: dir, Title: title}
}

func (f *Fuzzer) iterationDone(start time.Time) {
	f.statIterations.Add(1)
	f.avgIteration.Save(time.Since(start))
}

// progress logs the average timings, it is called at exponentially growing intervals.
func (f *Fuzzer) progress(iter int, details string, stats ...*buildStats) {
	elapsed := int(time.Since(f.start).Milliseconds())
	generator := f.statGenerateMs.Val()
	log.Logf(0, "%2v Iteration: %4v - Avg iter length: %4v ms (Generator %4v ms, %v",
		f.cfg.ID, iter, elapsed/iter, generator/iter, details)
	busy := generator
	for _, bs := range stats {
		busy += bs.busy()
	}
	if elapsed-harnessBudget*iter > busy {
		log.Logf(0, "%2v WARNING: Spending more than %vms per iter in harness code! (avg %v)",
			f.cfg.ID, harnessBudget, (elapsed-busy)/iter)
	}
}
