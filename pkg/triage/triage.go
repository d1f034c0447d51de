// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package triage classifies compiler and program runs: success, timeout,
// known nuisance errors, compiler crashes (by stderr signature) and execution failures.
package triage

import (
	"bytes"

	"github.com/rvfuzz/rvfuzz/pkg/failinfo"
	"github.com/rvfuzz/rvfuzz/pkg/flaggen"
	"github.com/rvfuzz/rvfuzz/pkg/osutil"
)

type Verdict int

const (
	Success Verdict = iota
	Timeout
	// Benign failures are known nuisance errors, they are accounted as timeouts.
	Benign
	// Failure must be saved as a find.
	Failure
)

func (v Verdict) String() string {
	switch v {
	case Success:
		return "success"
	case Timeout:
		return "timeout"
	case Benign:
		return "benign"
	case Failure:
		return "failure"
	}
	return "unknown"
}

var benignErrors = []struct {
	pattern   string
	rustcOnly bool
}{
	{pattern: "relocation"},
	{pattern: "VPlan cost model and legacy cost model disagreed"},
	{pattern: "Simple vector VT not representable by simple integer vector VT!"},
	// Rustsmith sometimes produces programs that do not borrow-check.
	{pattern: "error[E0261]: use of undeclared lifetime name", rustcOnly: true},
	{pattern: "error[E0506]: cannot assign to", rustcOnly: true},
	{pattern: "error: lifetime may not live long enough", rustcOnly: true},
	{pattern: "error[E0597]:", rustcOnly: true},
	{pattern: "error[E0382]: use of moved value:", rustcOnly: true},
	{pattern: "error[E0503]: cannot use", rustcOnly: true},
}

// Compile classifies a compiler run.
func Compile(compiler flaggen.Compiler, res *osutil.Result) Verdict {
	switch {
	case res.Success():
		return Success
	case res.TimedOut():
		return Timeout
	case res.ExitCode == 1 && BenignError(compiler, res.Stderr) != "":
		return Benign
	}
	return Failure
}

// BenignError returns the known nuisance error contained in stderr, or "".
func BenignError(compiler flaggen.Compiler, stderr []byte) string {
	for _, benign := range benignErrors {
		if benign.rustcOnly && compiler != flaggen.Rustc {
			continue
		}
		if bytes.Contains(stderr, []byte(benign.pattern)) {
			return benign.pattern
		}
	}
	return ""
}

// Execute classifies a run of a compiled program.
// Anything but a clean exit or a budget overrun is a failure, including SIGSEGV.
func Execute(res *osutil.Result) Verdict {
	switch {
	case res.Success():
		return Success
	case res.TimedOut():
		return Timeout
	}
	return Failure
}

// BackendOf returns the compiler backend used to classify crashes. Rustc is LLVM based.
func BackendOf(compiler flaggen.Compiler) failinfo.Backend {
	if compiler == flaggen.Gcc {
		return failinfo.BackendGcc
	}
	return failinfo.BackendLlvm
}
