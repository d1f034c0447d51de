// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package triage

import (
	"strings"
	"testing"

	"github.com/rvfuzz/rvfuzz/pkg/failinfo"
	"github.com/rvfuzz/rvfuzz/pkg/flaggen"
	"github.com/rvfuzz/rvfuzz/pkg/osutil"
	"github.com/stretchr/testify/assert"
)

func TestDefinitions(t *testing.T) {
	seen := make(map[failinfo.GccFailType]bool)
	for _, ice := range gccIce {
		if len(ice.classify) == 0 {
			t.Errorf("empty classify patterns for %v", ice.failType)
		}
		if seen[ice.failType] {
			t.Errorf("duplicate gcc fail type %v", ice.failType)
		}
		seen[ice.failType] = true
		// Output accepted by the tester must classify to the same type.
		got := ClassifyIce(failinfo.BackendGcc, []byte(strings.Join(ice.matchPatterns(), "\n")))
		assert.Equal(t, ice.failType, got.Gcc)
	}
	assert.Len(t, seen, len(failinfo.GccFailTypes))
	seenLlvm := make(map[failinfo.LlvmFailType]bool)
	for _, ice := range llvmIce {
		if len(ice.classify) == 0 {
			t.Errorf("empty classify patterns for %v", ice.failType)
		}
		if seenLlvm[ice.failType] {
			t.Errorf("duplicate llvm fail type %v", ice.failType)
		}
		seenLlvm[ice.failType] = true
		got := ClassifyIce(failinfo.BackendLlvm, []byte(strings.Join(ice.matchPatterns(), "\n")))
		assert.Equal(t, ice.failType, got.Llvm)
	}
	assert.Len(t, seenLlvm, len(failinfo.LlvmFailTypes))
	for _, benign := range benignErrors {
		assert.NotEmpty(t, benign.pattern)
	}
	for _, warn := range IgnorableWarnings {
		assert.True(t, strings.HasPrefix(warn, "-Wno-"), warn)
	}
}

func TestClassifyIce(t *testing.T) {
	tests := []struct {
		backend failinfo.Backend
		stderr  string
		want    failinfo.IceFailType
	}{
		{
			backend: failinfo.BackendGcc,
			stderr: "csmith_testcase.c: In function 'func_1':\n" +
				"csmith_testcase.c:120:1: internal compiler error: Segmentation fault\n",
			want: failinfo.IceFailType{Backend: failinfo.BackendGcc, Gcc: failinfo.GccInternalCompilerError},
		},
		{
			backend: failinfo.BackendLlvm,
			stderr: "PLEASE submit a bug report to https://github.com/llvm/llvm-project/issues/ " +
				"and include the crash backtrace.\ninternal compiler error: Segmentation fault\n",
			want: failinfo.IceFailType{Backend: failinfo.BackendLlvm, Llvm: failinfo.LlvmOpt},
		},
		{
			// Earlier table entries win.
			backend: failinfo.BackendGcc,
			stderr:  "error: unrecognizable insn:\ninternal compiler error: in extract_insn\n",
			want:    failinfo.IceFailType{Backend: failinfo.BackendGcc, Gcc: failinfo.GccUnrecognizedInsn},
		},
		{
			backend: failinfo.BackendGcc,
			stderr:  "lto1: error: '-mdiv' requires '-march' to subsume the 'M' extension\n",
			want:    failinfo.IceFailType{Backend: failinfo.BackendGcc, Gcc: failinfo.GccLto1Error},
		},
		{
			backend: failinfo.BackendLlvm,
			stderr:  "fatal error: error in backend: Cannot select: 0x55d0\nPLEASE submit a bug report\n",
			want:    failinfo.IceFailType{Backend: failinfo.BackendLlvm, Llvm: failinfo.LlvmLlc},
		},
		{
			backend: failinfo.BackendLlvm,
			stderr:  "clang: error: invalid arch name 'rv64gc_zfinx', 'f' and 'zfinx' extensions are incompatible\n",
			want:    failinfo.IceFailType{Backend: failinfo.BackendLlvm, Llvm: failinfo.LlvmFrontend},
		},
		{
			// Frontend needs both parts of the message.
			backend: failinfo.BackendLlvm,
			stderr:  "clang: error: invalid arch name 'rv64gc_zfoo', unsupported standard user-level extension\n",
			want:    failinfo.IceFailType{Backend: failinfo.BackendLlvm},
		},
		{
			backend: failinfo.BackendLlvm,
			stderr:  "ld.lld: error: output.o: file format not recognized\n",
			want:    failinfo.IceFailType{Backend: failinfo.BackendLlvm, Llvm: failinfo.LlvmUnrecognizedFileFormat},
		},
		{
			backend: failinfo.BackendLlvm,
			stderr:  "error: register required, but has been reserved.\n",
			want: failinfo.IceFailType{Backend: failinfo.BackendLlvm,
				Llvm: failinfo.LlvmReservedRequiredRegister},
		},
		{
			backend: failinfo.BackendLlvm,
			stderr:  "Error: unrecognized opcode `th.lbib a5,0(a4),0,0'\n",
			want:    failinfo.IceFailType{Backend: failinfo.BackendLlvm, Llvm: failinfo.LlvmUnrecognizedOpcode},
		},
		{
			backend: failinfo.BackendGcc,
			stderr:  "error: expected ';' before '}' token\n",
			want:    failinfo.IceFailType{Backend: failinfo.BackendGcc},
		},
	}
	for i, test := range tests {
		got := ClassifyIce(test.backend, []byte(test.stderr))
		assert.Equal(t, test.want, got, "test #%v", i)
		// Whatever got classified must be accepted by the tester for the same output.
		assert.True(t, MatchIce(got, []byte(test.stderr)), "test #%v", i)
	}
}

func TestMatchIce(t *testing.T) {
	lto := failinfo.IceFailType{Backend: failinfo.BackendGcc, Gcc: failinfo.GccLto1Error}
	assert.False(t, MatchIce(lto, []byte("lto1: error: unknown option\n")))
	assert.True(t, MatchIce(lto, []byte("lto1: error: '-mdiv' requires '-march' to subsume the 'M' extension")))

	llc := failinfo.IceFailType{Backend: failinfo.BackendLlvm, Llvm: failinfo.LlvmLlc}
	assert.False(t, MatchIce(llc, []byte("PLEASE submit a bug report")))
	assert.True(t, MatchIce(llc, []byte("fatal error: error in backend: Cannot select")))

	none := failinfo.IceFailType{Backend: failinfo.BackendGcc}
	assert.True(t, MatchIce(none, []byte("error: anything at all")))
}

func TestIceTitle(t *testing.T) {
	stderr := "In file included from a.c:1:\n" +
		"a.c:5:1: error: unrecognizable insn:\n" +
		"(insn 12 11 0 2 (set (reg:DI 134))\n" +
		"during RTL pass: vregs\n" +
		"a.c:5:1: internal compiler error: in extract_insn, at recog.cc:2812\n"
	assert.Equal(t, "a.c:5:1: error: unrecognizable insn:", IceTitle([]byte(stderr)))
	assert.Equal(t, "", IceTitle([]byte("error: expected ';'\n")))
}

func TestCompileVerdict(t *testing.T) {
	tests := []struct {
		compiler flaggen.Compiler
		res      osutil.Result
		want     Verdict
	}{
		{flaggen.Gcc, osutil.Result{}, Success},
		{flaggen.Gcc, osutil.Result{ExitCode: 124}, Timeout},
		{flaggen.Llvm, osutil.Result{ExitCode: -1, Signal: 9}, Timeout},
		{flaggen.Llvm, osutil.Result{ExitCode: 137}, Timeout},
		{flaggen.Gcc, osutil.Result{ExitCode: 1, Stderr: []byte("relocation truncated to fit: R_RISCV_JAL")}, Benign},
		{
			flaggen.Llvm,
			osutil.Result{ExitCode: 1, Stderr: []byte("VPlan cost model and legacy cost model disagreed")},
			Benign,
		},
		{flaggen.Rustc, osutil.Result{ExitCode: 1, Stderr: []byte("error[E0597]: `x` does not live long enough")}, Benign},
		// Borrow checker errors are nuisance for rustc only.
		{flaggen.Llvm, osutil.Result{ExitCode: 1, Stderr: []byte("error[E0597]: `x` does not live long enough")}, Failure},
		// Benign errors only apply to exit code 1.
		{flaggen.Gcc, osutil.Result{ExitCode: 4, Stderr: []byte("relocation truncated to fit")}, Failure},
		{flaggen.Gcc, osutil.Result{ExitCode: 1, Stderr: []byte("internal compiler error")}, Failure},
		{flaggen.Llvm, osutil.Result{ExitCode: -1, Signal: 6}, Failure},
	}
	for i, test := range tests {
		got := Compile(test.compiler, &test.res)
		assert.Equal(t, test.want, got, "test #%v: %v", i, got)
	}
}

func TestExec(t *testing.T) {
	illegal := osutil.Result{ExitCode: -1, Signal: osutil.SignalIllegal}
	segv := osutil.Result{ExitCode: -1, Signal: osutil.SignalSegfault}
	qemuErr := osutil.Result{ExitCode: 1, Stderr: []byte("qemu-riscv64: unable to find CPU model 'rv64,zfoo=true'")}
	plainErr := osutil.Result{ExitCode: 1, Stderr: []byte("oops")}
	timeout := osutil.Result{ExitCode: 124}

	assert.Equal(t, Success, Execute(&osutil.Result{}))
	assert.Equal(t, Timeout, Execute(&timeout))
	assert.Equal(t, Failure, Execute(&segv))
	assert.Equal(t, Failure, Execute(&plainErr))

	assert.Equal(t, failinfo.QemuIllegalInsn, ClassifyExec(illegal.Signal, illegal.Stderr))
	assert.Equal(t, failinfo.QemuSegfault, ClassifyExec(segv.Signal, segv.Stderr))
	assert.Equal(t, failinfo.QemuErrorMsg, ClassifyExec(qemuErr.Signal, qemuErr.Stderr))
	assert.Equal(t, failinfo.QemuFailType(""), ClassifyExec(plainErr.Signal, plainErr.Stderr))

	none := failinfo.ExecFailType{Runner: failinfo.RunnerQemu}
	insn := failinfo.ExecFailType{Runner: failinfo.RunnerQemu, Qemu: failinfo.QemuIllegalInsn}
	msg := failinfo.ExecFailType{Runner: failinfo.RunnerQemu, Qemu: failinfo.QemuErrorMsg}
	assert.True(t, MatchExec(none, &illegal))
	assert.True(t, MatchExec(none, &segv))
	assert.True(t, MatchExec(none, &plainErr))
	assert.False(t, MatchExec(none, &timeout))
	assert.False(t, MatchExec(none, &osutil.Result{}))
	assert.True(t, MatchExec(insn, &illegal))
	assert.False(t, MatchExec(insn, &segv))
	assert.False(t, MatchExec(insn, &qemuErr))
	assert.True(t, MatchExec(msg, &qemuErr))
	assert.False(t, MatchExec(msg, &plainErr))
	assert.False(t, MatchExec(none, &osutil.Result{ExitCode: 2}))
}

func TestWarnings(t *testing.T) {
	assert.False(t, HasWarning([]byte("error: foo")))
	assert.True(t, HasWarning([]byte("a.c:1:1: warning: unused variable")))
	textrel := []byte("ld: warning: creating DT_TEXTREL in a PIE\n")
	assert.True(t, HasWarning(textrel))
	assert.False(t, HasUnexpectedWarning(textrel))
	assert.True(t, HasUnexpectedWarning(append(textrel, "a.c:2:3: warning: overflow\n"...)))
}

func TestBackendOf(t *testing.T) {
	assert.Equal(t, failinfo.BackendGcc, BackendOf(flaggen.Gcc))
	assert.Equal(t, failinfo.BackendLlvm, BackendOf(flaggen.Llvm))
	assert.Equal(t, failinfo.BackendLlvm, BackendOf(flaggen.Rustc))
}
