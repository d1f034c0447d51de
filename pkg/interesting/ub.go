// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package interesting

import (
	"bytes"
	"slices"

	"github.com/rvfuzz/rvfuzz/pkg/compile"
	"github.com/rvfuzz/rvfuzz/pkg/failinfo"
	"github.com/rvfuzz/rvfuzz/pkg/flaggen"
	"github.com/rvfuzz/rvfuzz/pkg/fuzzconfig"
	"github.com/rvfuzz/rvfuzz/pkg/generate"
	"github.com/rvfuzz/rvfuzz/pkg/log"
	"github.com/rvfuzz/rvfuzz/pkg/osutil"
	"github.com/rvfuzz/rvfuzz/pkg/triage"
)

// sanitizerMarker is matched case-insensitively: UBSan reports "runtime error",
// ASan reports "ERROR: AddressSanitizer".
const sanitizerMarker = "error"

// sanitizer is a host build of the candidate with a runtime checker.
type sanitizer struct {
	name     string
	compiler string
	flags    []string
	warnings []string
	output   string
	// strict rejects candidates whose sanitized build warns.
	strict bool
}

// checkUB builds the candidate for the host with UBSan and ASan and runs it.
// A sanitizer report rejects the candidate, reduction must not walk into undefined behavior.
// An empty compiler path skips the sanitizer.
func (cfg *Config) checkUB(gen fuzzconfig.Generator, sources []string, rv32 bool) error {
	var abi []string
	if rv32 {
		abi = []string{"-m32", "-malign-double"}
	}
	sanitizers := []sanitizer{
		{
			name:     "ubsan",
			compiler: cfg.Clang,
			flags:    slices.Concat([]string{"-fsanitize=undefined"}, cleanFlags, abi),
			warnings: append([]string{"-Wall", "-Wzero-length-array"}, triage.IgnorableWarnings...),
			output:   UBSanOutput,
			strict:   true,
		},
		{
			name:     "asan",
			compiler: cfg.Gcc,
			flags:    slices.Concat([]string{"-fsanitize=address", "-w"}, cleanFlags, abi),
			warnings: triage.IgnorableWarnings,
			output:   ASanOutput,
		},
	}
	for _, san := range sanitizers {
		if san.compiler == "" {
			log.Logf(1, "skipping %v check", san.name)
			continue
		}
		if err := cfg.sanitize(gen, sources, &san); err != nil {
			return err
		}
	}
	return nil
}

func (cfg *Config) sanitize(gen fuzzconfig.Generator, sources []string, san *sanitizer) error {
	flags := make([][]string, failinfo.FlagSets(len(sources)))
	for i := range flags {
		flags[i] = san.flags
	}
	job := &compile.Job{
		Compiler:  &fuzzconfig.FuzzCompiler{Path: san.compiler, Architecture: fuzzconfig.X86},
		Generator: gen,
		Action:    flaggen.Execute,
		Sources:   sources,
		Flags:     flags,
		Output:    san.output,
		Dir:       cfg.Dir,
		Extra:     san.warnings,
		Budget:    UBBudget,
	}
	build, err := job.Run()
	if err != nil {
		return err
	}
	if san.strict {
		err = cleanBuild(build, triage.HasWarning)
	} else {
		err = cleanBuild(build, func([]byte) bool { return false })
	}
	if err != nil {
		return boringf("%v build: %v", san.name, err)
	}
	input, err := generate.Input(gen, cfg.Dir)
	if err != nil {
		return err
	}
	run, err := osutil.RunBudget(UBBudget, cfg.Dir, "./"+san.output, input...)
	if err != nil {
		return err
	}
	if bytes.Contains(bytes.ToLower(run.Stderr), []byte(sanitizerMarker)) {
		return boringf("%v found an error: %s", san.name, run.Stderr)
	}
	if !run.Success() {
		return boringf("%v program failed: %v", san.name, run)
	}
	return nil
}
