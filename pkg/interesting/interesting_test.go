// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package interesting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rvfuzz/rvfuzz/pkg/failinfo"
	"github.com/rvfuzz/rvfuzz/pkg/flaggen"
	"github.com/rvfuzz/rvfuzz/pkg/fuzzconfig"
	"github.com/rvfuzz/rvfuzz/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testcase = "csmith_testcase.c"

// fakeCompiler logs its command line to <log> in the working directory and
// produces a shell script with the given body as the -o output.
func fakeCompiler(log, stderr, program string) string {
	return fmt.Sprintf(`
echo "$@" >> %v
printf '%%s' '%v' >&2
out=""
while [ $# -gt 0 ]; do
	if [ "$1" = "-o" ]; then out="$2"; fi
	shift
done
if [ "$out" != /dev/null ]; then
	printf '#!/bin/sh\n%%s\n' '%v' > "$out"
	chmod +x "$out"
fi
`, log, stderr, program)
}

// crashingCompiler logs its command line to cc.log and crashes with the stderr.
func crashingCompiler(stderr string) string {
	return fmt.Sprintf(`
echo "$@" >> cc.log
printf '%%s' '%v' >&2
exit 1
`, stderr)
}

const unrecognizableInsn = "during RTL pass: vregs\n" +
	"csmith_testcase.c:7:1: error: unrecognizable insn:\n" +
	"csmith_testcase.c:7:1: internal compiler error: in extract_insn, at recog.cc:2812\n"

func csmith() fuzzconfig.Generator {
	return fuzzconfig.Generator{
		Kind:       fuzzconfig.Csmith,
		Path:       "/usr/bin/csmith",
		IncludeDir: "/usr/include/csmith",
	}
}

// newFind creates a reduction directory with the test case and the fail info.
func newFind(t *testing.T, fi *failinfo.FailInfo) *Config {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, testcase), []byte("int main() { return 0; }\n"), 0644))
	require.NoError(t, failinfo.Save(dir, fi))
	return &Config{Dir: dir, ReductionDir: dir}
}

func readFile(t *testing.T, dir, name string) string {
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(data)
}

func logLines(t *testing.T, dir, name string) []string {
	return strings.Split(strings.TrimSpace(readFile(t, dir, name)), "\n")
}

func iceFind(t *testing.T, compiler string, failType failinfo.IceFailType) *Config {
	cc := testutil.WriteScript(t, t.TempDir(), "riscv64-unknown-linux-gnu-gcc", compiler)
	cfg := newFind(t, &failinfo.FailInfo{Ice: &failinfo.IceFailInfo{
		Compilers:    []string{cc},
		Architecture: fuzzconfig.Riscv,
		Testcases:    []string{testcase},
		Action:       flaggen.Compile,
		Generator:    csmith(),
		FailType:     failType,
	}})
	require.NoError(t, failinfo.SaveSplitFlags(cfg.Dir, failinfo.ReduciblePrefix,
		[][]string{{"-O3", "-S", "-march=rv64gcv", "-mabi=lp64d"}}))
	return cfg
}

func TestIce(t *testing.T) {
	cfg := iceFind(t, crashingCompiler(unrecognizableInsn),
		failinfo.IceFailType{Backend: failinfo.BackendGcc, Gcc: failinfo.GccUnrecognizedInsn})
	cfg.Kind = failinfo.Ice
	require.NoError(t, Run(cfg))
	assert.Equal(t, unrecognizableInsn, readFile(t, cfg.Dir, "stderr.txt"))
	lines := logLines(t, cfg.Dir, "cc.log")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0],
		"-O3 -S -march=rv64gcv -mabi=lp64d csmith_testcase.c -I/usr/include/csmith -Wall -Wno-"), lines[0])
	assert.True(t, strings.HasSuffix(lines[0], "-Wno-int-in-bool-context -S -o /dev/null"), lines[0])
}

func TestIceUncategorized(t *testing.T) {
	cfg := iceFind(t, crashingCompiler("some new crash\n"), failinfo.IceFailType{Backend: failinfo.BackendGcc})
	assert.NoError(t, Run(cfg))
}

func TestIceBoring(t *testing.T) {
	tests := []struct {
		name     string
		compiler string
		failType failinfo.IceFailType
	}{
		{
			name:     "other crash",
			compiler: crashingCompiler(unrecognizableInsn),
			failType: failinfo.IceFailType{Backend: failinfo.BackendGcc, Gcc: failinfo.GccLto1Error},
		},
		{
			name:     "success",
			compiler: fakeCompiler("cc.log", "", "exit 0"),
			failType: failinfo.IceFailType{Backend: failinfo.BackendGcc},
		},
		{
			name:     "warning",
			compiler: crashingCompiler("csmith_testcase.c:3:5: warning: unused variable\n" + unrecognizableInsn),
			failType: failinfo.IceFailType{Backend: failinfo.BackendGcc, Gcc: failinfo.GccUnrecognizedInsn},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := iceFind(t, test.compiler, test.failType)
			err := Run(cfg)
			assert.True(t, IsBoring(err), "%v", err)
		})
	}
}

func TestWrongKind(t *testing.T) {
	cfg := iceFind(t, crashingCompiler(unrecognizableInsn), failinfo.IceFailType{Backend: failinfo.BackendGcc})
	cfg.Kind = failinfo.Runtime
	err := Run(cfg)
	require.Error(t, err)
	assert.False(t, IsBoring(err))
}

func TestMissingTestcase(t *testing.T) {
	cfg := iceFind(t, crashingCompiler(unrecognizableInsn), failinfo.IceFailType{Backend: failinfo.BackendGcc})
	require.NoError(t, os.Remove(filepath.Join(cfg.Dir, testcase)))
	err := Run(cfg)
	require.Error(t, err)
	assert.False(t, IsBoring(err))
}

func TestUnsplitFlags(t *testing.T) {
	cfg := iceFind(t, crashingCompiler(unrecognizableInsn), failinfo.IceFailType{Backend: failinfo.BackendGcc})
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Dir, "reducible_compiler_opts.txt"), []byte("-O3 -S"), 0644))
	err := Run(cfg)
	require.Error(t, err)
	assert.False(t, IsBoring(err))
}

func execFind(t *testing.T, program string, runner fuzzconfig.Runner, failType failinfo.ExecFailType) *Config {
	cc := testutil.WriteScript(t, t.TempDir(), "riscv64-unknown-linux-gnu-gcc", fakeCompiler("cc.log", "", program))
	cfg := newFind(t, &failinfo.FailInfo{Execution: &failinfo.ExecFailInfo{
		Compilers:    []string{cc},
		Architecture: fuzzconfig.Riscv,
		Testcases:    []string{testcase},
		Generator:    csmith(),
		Runner:       runner,
		FailType:     failType,
	}})
	require.NoError(t, failinfo.SaveSplitFlags(cfg.Dir, failinfo.ReduciblePrefix,
		[][]string{{"-O3", "-march=rv64gcv", "-mabi=lp64d"}}))
	return cfg
}

func qemuRunner(t *testing.T) fuzzconfig.Runner {
	bin := t.TempDir()
	return fuzzconfig.Runner{Qemu: &fuzzconfig.QemuConfig{
		RV32Path: testutil.WriteScript(t, bin, "qemu-riscv32", `exec "$@"`),
		RV64Path: testutil.WriteScript(t, bin, "qemu-riscv64", `exec "$@"`),
		CPUFlags: fuzzconfig.CPUFlags{Fixed: "rv64,v=true"},
	}}
}

func TestExec(t *testing.T) {
	cfg := execFind(t, "kill -ILL $$", fuzzconfig.Runner{}, failinfo.ExecFailType{Runner: failinfo.RunnerNative})
	require.NoError(t, Run(cfg))
	assert.Equal(t, "4", readFile(t, cfg.Dir, ExecSignalFile))
	assert.FileExists(t, filepath.Join(cfg.Dir, ExecStdoutFile))
	assert.FileExists(t, filepath.Join(cfg.Dir, "comp_stderr.txt"))
	lines := logLines(t, cfg.Dir, "cc.log")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "-O3 -march=rv64gcv -mabi=lp64d csmith_testcase.c -I/usr/include/csmith "+
		"-fsigned-char -fno-strict-aliasing -fwrapv -Wall -Wformat -Wno-"), lines[0])
	assert.True(t, strings.HasSuffix(lines[0], " -o testcase.o"), lines[0])
}

func TestExecQemu(t *testing.T) {
	cfg := execFind(t, "kill -SEGV $$", qemuRunner(t),
		failinfo.ExecFailType{Runner: failinfo.RunnerQemu, Qemu: failinfo.QemuSegfault})
	require.NoError(t, Run(cfg))
	assert.Equal(t, "11", readFile(t, cfg.Dir, ExecSignalFile))
}

func TestExecBoring(t *testing.T) {
	tests := []struct {
		name     string
		program  string
		failType failinfo.ExecFailType
	}{
		{
			name:     "other signal",
			program:  "kill -ILL $$",
			failType: failinfo.ExecFailType{Runner: failinfo.RunnerQemu, Qemu: failinfo.QemuSegfault},
		},
		{
			name:     "success",
			program:  "echo 1",
			failType: failinfo.ExecFailType{Runner: failinfo.RunnerQemu},
		},
		{
			name:     "no qemu error",
			program:  "exit 1",
			failType: failinfo.ExecFailType{Runner: failinfo.RunnerQemu, Qemu: failinfo.QemuErrorMsg},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := execFind(t, test.program, qemuRunner(t), test.failType)
			err := Run(cfg)
			assert.True(t, IsBoring(err), "%v", err)
		})
	}
}

// runtimeFind creates the directory the differential loop saves on a stdout mismatch.
func runtimeFind(t *testing.T, fastProgram, slowProgram, slowStderr string) *Config {
	bin := t.TempDir()
	fastDir := filepath.Join(bin, "fast")
	slowDir := filepath.Join(bin, "slow")
	require.NoError(t, os.MkdirAll(fastDir, 0755))
	require.NoError(t, os.MkdirAll(slowDir, 0755))
	fast := testutil.WriteScript(t, fastDir, "gcc", fakeCompiler("fast.log", "", fastProgram))
	slow := testutil.WriteScript(t, slowDir, "riscv64-unknown-linux-gnu-gcc",
		fakeCompiler("slow.log", slowStderr, slowProgram))
	cfg := newFind(t, &failinfo.FailInfo{Runtime: &failinfo.RuntimeFailInfo{
		FastCompilers:    []string{fast},
		FastArchitecture: fuzzconfig.X86,
		FastRunner:       fuzzconfig.Runner{},
		SlowCompilers:    []string{slow},
		SlowArchitecture: fuzzconfig.Riscv,
		SlowRunner:       qemuRunner(t),
		Testcases:        []string{testcase},
		Generator:        csmith(),
		FailType:         failinfo.Mismatch,
	}})
	require.NoError(t, failinfo.SaveFlags(cfg.Dir, failinfo.FastPrefix,
		[][]string{{"-w", "-fpermissive", "-fno-strict-aliasing", "-fwrapv", "-fsigned-char", "-O1"}}))
	require.NoError(t, failinfo.SaveFlags(cfg.Dir, failinfo.SlowPrefix,
		[][]string{{"-w", "-fpermissive", "-fno-strict-aliasing", "-fwrapv", "-fsigned-char", "-O3",
			"-march=rv64gcv", "-mabi=lp64d"}}))
	cfg.Clang = testutil.WriteScript(t, bin, "clang", fakeCompiler("clang.log", "", "exit 0"))
	cfg.Gcc = testutil.WriteScript(t, bin, "gcc", fakeCompiler("gcc.log", "", "exit 0"))
	return cfg
}

func TestRuntimeMismatchDump(t *testing.T) {
	cfg := runtimeFind(t, "echo 12345", "echo 12346", "")
	cfg.Kind = failinfo.Runtime
	require.NoError(t, Run(cfg))
	files := map[string]string{
		"fast_exec_stdout.txt": "12345\n",
		"slow_exec_stdout.txt": "12346\n",
		"fast_exec_signal.txt": "0",
		"slow_exec_signal.txt": "0",
	}
	for name, want := range files {
		assert.Equal(t, want, readFile(t, cfg.Dir, name), name)
	}
	assert.Equal(t, []string{"-O1 csmith_testcase.c -I/usr/include/csmith " +
		"-fsigned-char -fno-strict-aliasing -fwrapv -Wall -w -o fast_testcase.o"},
		logLines(t, cfg.Dir, "fast.log"))
	slow := logLines(t, cfg.Dir, "slow.log")
	require.Len(t, slow, 1)
	assert.True(t, strings.HasPrefix(slow[0], "-w -fpermissive -fno-strict-aliasing -fwrapv -fsigned-char -O3 "+
		"-march=rv64gcv -mabi=lp64d csmith_testcase.c -I/usr/include/csmith -fsigned-char"), slow[0])
	assert.True(t, strings.HasSuffix(slow[0], "-Wno-int-in-bool-context -o slow_testcase.o"), slow[0])
	ubsan := logLines(t, cfg.Dir, "clang.log")
	require.Len(t, ubsan, 1)
	assert.True(t, strings.HasPrefix(ubsan[0], "-fsanitize=undefined -fsigned-char -fno-strict-aliasing -fwrapv "+
		"csmith_testcase.c -I/usr/include/csmith -Wall -Wzero-length-array -Wno-"), ubsan[0])
	assert.True(t, strings.HasSuffix(ubsan[0], " -o clang-ubsan.out"), ubsan[0])
	assert.FileExists(t, filepath.Join(cfg.Dir, "gcc.log"))
}

func TestRuntimeSplitFlags(t *testing.T) {
	cfg := runtimeFind(t, "echo 1", "echo 2", "")
	require.NoError(t, failinfo.SaveSplitFlags(cfg.Dir, failinfo.SlowPrefix+failinfo.ReduciblePrefix,
		[][]string{{"-O2", "-march=rv32gc", "-mabi=ilp32d"}}))
	require.NoError(t, Run(cfg))
	assert.Equal(t, []string{"-O1 -m32 -malign-double csmith_testcase.c -I/usr/include/csmith " +
		"-fsigned-char -fno-strict-aliasing -fwrapv -Wall -w -o fast_testcase.o"},
		logLines(t, cfg.Dir, "fast.log"))
	slow := logLines(t, cfg.Dir, "slow.log")
	require.Len(t, slow, 1)
	assert.True(t, strings.HasPrefix(slow[0], "-O2 -march=rv32gc -mabi=ilp32d csmith_testcase.c"), slow[0])
	ubsan := logLines(t, cfg.Dir, "clang.log")
	require.Len(t, ubsan, 1)
	assert.True(t, strings.HasPrefix(ubsan[0], "-fsanitize=undefined -fsigned-char -fno-strict-aliasing -fwrapv "+
		"-m32 -malign-double csmith_testcase.c"), ubsan[0])
}

func TestRuntimeBoring(t *testing.T) {
	tests := []struct {
		name   string
		slow   string
		stderr string
		ubsan  string
	}{
		{
			name: "no mismatch",
			slow: "echo 12345",
		},
		{
			name:   "warning",
			slow:   "echo 12346",
			stderr: "csmith_testcase.c:3:5: warning: array subscript is above array bounds\n",
		},
		{
			name: "crash",
			slow: "kill -SEGV $$",
		},
		{
			name:  "undefined behavior",
			slow:  "echo 12346",
			ubsan: "echo \"csmith_testcase.c:9:3: runtime error: signed integer overflow\" >&2",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := runtimeFind(t, "echo 12345", test.slow, test.stderr)
			if test.ubsan != "" {
				cfg.Clang = testutil.WriteScript(t, t.TempDir(), "clang", fakeCompiler("clang.log", "", test.ubsan))
			}
			err := Run(cfg)
			assert.True(t, IsBoring(err), "%v", err)
			if test.ubsan != "" {
				assert.NoFileExists(t, filepath.Join(cfg.Dir, "fast.log"))
			}
		})
	}
}

func TestTargets32(t *testing.T) {
	assert.False(t, targets32([][]string{{"-O3", "-march=rv64gc"}}))
	assert.True(t, targets32([][]string{{"-O3"}, {"-march=rv32gc_zba"}}))
}
