// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzzer

import (
	"strings"
	"time"

	"github.com/rvfuzz/rvfuzz/pkg/stat"
	"github.com/rvfuzz/rvfuzz/pkg/triage"
)

const harnessBudget = 5 // ms per iteration

// buildStats count the outcomes of one compiler. Totals are in milliseconds,
// the distributions hold the per-step latencies.
type buildStats struct {
	statCompileSuccess *stat.Val
	statCompileTimeout *stat.Val
	statCompileError   *stat.Val
	statCompileTotal   *stat.Val
	statCompileTime    *stat.Val

	statExecSuccess *stat.Val
	statExecTimeout *stat.Val
	statExecError   *stat.Val
	statExecTotal   *stat.Val
	statExecTime    *stat.Val
}

func newBuildStats(set *stat.Set, side string, exec bool) *buildStats {
	name := func(what string) string {
		if side == "" {
			return what
		}
		return side + " " + what
	}
	prom := func(what string) stat.Prometheus {
		return stat.Prometheus("rvfuzz_" + strings.ReplaceAll(name(what), " ", "_"))
	}
	bs := &buildStats{
		statCompileSuccess: set.New(name("compile success"), "Successful compilations",
			stat.Console, stat.Rate{}, prom("compile success")),
		statCompileTimeout: set.New(name("compile timeout"), "Compilations that timed out or hit a benign error",
			stat.Console, prom("compile timeout")),
		statCompileError: set.New(name("compile error"), "Compiler crashes",
			stat.Console, prom("compile error")),
		statCompileTotal: set.New(name("compile ms"), "Total time spent in the compiler"),
		statCompileTime: set.New(name("compile latency"), "Compilation time of a program (ms)",
			stat.Distribution{}, prom("compile latency ms")),
	}
	if exec {
		bs.statExecSuccess = set.New(name("execute success"), "Successful program runs",
			stat.Console, stat.Rate{}, prom("execute success"))
		bs.statExecTimeout = set.New(name("execute timeout"), "Program runs that timed out",
			stat.Console, prom("execute timeout"))
		bs.statExecError = set.New(name("execute error"), "Failed program runs",
			stat.Console, prom("execute error"))
		bs.statExecTotal = set.New(name("execute ms"), "Total time spent running programs")
		bs.statExecTime = set.New(name("execute latency"), "Run time of a program (ms)",
			stat.Distribution{}, prom("execute latency ms"))
	}
	return bs
}

func (bs *buildStats) compiled(verdict triage.Verdict, took time.Duration) {
	ms := int(took.Milliseconds())
	bs.statCompileTotal.Add(ms)
	bs.statCompileTime.Add(ms)
	switch verdict {
	case triage.Success:
		bs.statCompileSuccess.Add(1)
	case triage.Timeout, triage.Benign:
		bs.statCompileTimeout.Add(1)
	default:
		bs.statCompileError.Add(1)
	}
}

func (bs *buildStats) executed(took time.Duration) {
	ms := int(took.Milliseconds())
	bs.statExecTotal.Add(ms)
	bs.statExecTime.Add(ms)
}

func (bs *buildStats) compileTimeoutPercent() string {
	timeout := bs.statCompileTimeout.Val()
	return stat.Percent(timeout, timeout+bs.statCompileError.Val()+bs.statCompileSuccess.Val())
}

func (bs *buildStats) execTimeoutPercent() string {
	timeout := bs.statExecTimeout.Val()
	return stat.Percent(timeout, timeout+bs.statExecError.Val()+bs.statExecSuccess.Val())
}

func (bs *buildStats) busy() int {
	busy := bs.statCompileTotal.Val()
	if bs.statExecTotal != nil {
		busy += bs.statExecTotal.Val()
	}
	return busy
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
