// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package compile

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rvfuzz/rvfuzz/pkg/failinfo"
	"github.com/rvfuzz/rvfuzz/pkg/flaggen"
	"github.com/rvfuzz/rvfuzz/pkg/fuzzconfig"
	"github.com/rvfuzz/rvfuzz/pkg/osutil"
	"github.com/rvfuzz/rvfuzz/pkg/testutil"
	"github.com/rvfuzz/rvfuzz/pkg/triage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCompiler logs its command lines to invocations.txt in the working directory,
// creates the -o output and misbehaves on magic flags.
const fakeCompiler = `
echo "$@" >> invocations.txt
case "$*" in
*-mcrash*)
	echo "during RTL pass: expand" >&2
	echo "internal compiler error: Segmentation fault" >&2
	exit 1;;
*-mreloc*)
	echo "relocation truncated to fit: R_RISCV_HI20" >&2
	exit 1;;
*-mabort*)
	kill -ABRT $$;;
esac
out=""
while [ $# -gt 0 ]; do
	if [ "$1" = "-o" ]; then out="$2"; fi
	shift
done
touch "$out"
`

func TestFlags(t *testing.T) {
	rnd := rand.New(testutil.RandSource(t))
	fixed := &fuzzconfig.FuzzCompiler{
		Path:      "gcc",
		Arguments: fuzzconfig.Arguments{Fixed: " -march=rv64gc  -mabi=lp64d "},
	}
	gen := fuzzconfig.Generator{Kind: fuzzconfig.Csmith}
	flags, err := Flags(rnd, fixed, gen, flaggen.Compile, []string{"-O3", "-w", "-S"}, 3)
	require.NoError(t, err)
	want := []string{"-O3", "-w", "-S", "-march=rv64gc", "-mabi=lp64d"}
	if diff := cmp.Diff([][]string{want, want, want}, flags); diff != "" {
		t.Fatal(diff)
	}
	// Base flags must not be shared between the sets.
	flags[0][0] = "-O0"
	assert.Equal(t, "-O3", flags[1][0])

	generated := &fuzzconfig.FuzzCompiler{
		Path: "clang",
		Arguments: fuzzconfig.Arguments{Generated: &fuzzconfig.FlagsGenerator{
			Compiler: flaggen.Llvm,
			FlagSet:  flaggen.FlagSetMarch,
		}},
	}
	yarpgen := fuzzconfig.Generator{Kind: fuzzconfig.Yarpgen}
	for i := 0; i < testutil.IterCount()/10; i++ {
		flags, err := Flags(rnd, generated, yarpgen, flaggen.Link, []string{"-O3"}, 3)
		require.NoError(t, err)
		require.Len(t, flags, 3)
		abis := make(map[string]bool)
		for _, set := range flags {
			assert.Equal(t, "-O3", set[0])
			for _, flag := range set {
				if strings.HasPrefix(flag, "-march=") {
					assert.True(t, strings.HasPrefix(flag, "-march=rv64"), flag)
				}
				if strings.HasPrefix(flag, "-mabi=") {
					abis[flag] = true
				}
			}
		}
		assert.Len(t, abis, 1, "%q", flags)
	}
}

func TestBaseFlags(t *testing.T) {
	assert.Equal(t, []string{"-O3", "-w", "-S"}, CrashBaseFlags(flaggen.Gcc, flaggen.Compile))
	assert.Equal(t, []string{"-O3", "-w", "-c"}, CrashBaseFlags(flaggen.Gcc, flaggen.Assemble))
	assert.Equal(t, []string{"-O3", "-w", "-c", "-no-integrated-as"}, CrashBaseFlags(flaggen.Llvm, flaggen.Assemble))
	assert.Equal(t, []string{"-O3", "-w"}, CrashBaseFlags(flaggen.Llvm, flaggen.Link))
	assert.Equal(t, []string{"-w", "-fpermissive", "-fno-strict-aliasing", "-fwrapv", "-fsigned-char", "-O1"},
		ExecBaseFlags("-O1"))
}

func TestRustcFlags(t *testing.T) {
	flags, err := RustcFlags(nil, flaggen.Execute, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"-C", "opt-level=3"}, flags)

	flags, err = RustcFlags([]string{"-march=rv64gcv"}, flaggen.Compile, "/opt/riscv/bin/riscv64-unknown-linux-gnu-gcc")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"-C", "opt-level=1",
		"-C", "llvm-args=-march=rv64gcv",
		"--target", "riscv64gc-unknown-linux-gnu",
		"-C", "linker=/opt/riscv/bin/riscv64-unknown-linux-gnu-gcc",
		"--emit", "asm",
	}, flags)

	flags, err = RustcFlags(nil, flaggen.Assemble, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"-C", "opt-level=3", "--emit", "obj"}, flags)

	_, err = RustcFlags([]string{"-mabi=lp64"}, flaggen.Compile, "ld")
	assert.Error(t, err)
	_, err = RustcFlags([]string{"-march=rv64gc"}, flaggen.Compile, "")
	assert.Error(t, err)
}

func newJob(t *testing.T, compiler string, gen fuzzconfig.GeneratorKind, sources []string, flags [][]string) *Job {
	t.Helper()
	dir := t.TempDir()
	for _, src := range sources {
		require.NoError(t, os.WriteFile(filepath.Join(dir, src), []byte("int x;\n"), 0644))
	}
	return &Job{
		Compiler: &fuzzconfig.FuzzCompiler{
			Path:         testutil.WriteScript(t, t.TempDir(), compiler, fakeCompiler),
			Architecture: fuzzconfig.Riscv,
		},
		Generator: fuzzconfig.Generator{Kind: gen, Path: "/bin/true"},
		Action:    flaggen.Link,
		Sources:   sources,
		Flags:     flags,
		Output:    CrashOutput,
		Dir:       dir,
	}
}

func invocations(t *testing.T, dir string) []string {
	data, err := os.ReadFile(filepath.Join(dir, "invocations.txt"))
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestRunSingle(t *testing.T) {
	job := newJob(t, "riscv64-unknown-linux-gnu-gcc", fuzzconfig.Fixed, []string{"fixed_testcase.c"},
		[][]string{{"-O3", "-w", "-march=rv64gc"}})
	res, err := job.Run()
	require.NoError(t, err)
	assert.Equal(t, triage.Success, res.Verdict)
	assert.Nil(t, res.Fail)
	assert.FileExists(t, filepath.Join(job.Dir, CrashOutput))
	assert.Equal(t, []string{"-O3 -w -march=rv64gc fixed_testcase.c -o output.o"}, invocations(t, job.Dir))
}

func TestRunMulti(t *testing.T) {
	job := newJob(t, "clang", fuzzconfig.Yarpgen, []string{"func.c", "driver.c"}, [][]string{
		{"-O3", "-flto"},
		{"-O2"},
		{"-O1"},
	})
	res, err := job.Run()
	require.NoError(t, err)
	assert.Equal(t, triage.Success, res.Verdict)
	want := []string{
		"-O3 -flto func.c -mcmodel=medany -c -o func.o",
		"-O2 driver.c -mcmodel=medany -c -o driver.o",
		"-O1 func.o driver.o -mcmodel=medany -fuse-ld=lld -o output.o",
	}
	if diff := cmp.Diff(want, invocations(t, job.Dir)); diff != "" {
		t.Fatal(diff)
	}
}

func TestRunExtraFlags(t *testing.T) {
	job := newJob(t, "gcc", fuzzconfig.Yarpgen, []string{"func.c", "driver.c"}, [][]string{{"-O3"}, {"-O2"}, {}})
	job.Extra = []string{"-Wall", "-Wno-overflow"}
	job.Budget = osutil.Budget{Limit: 4 * time.Second, KillAfter: time.Second}
	res, err := job.Run()
	require.NoError(t, err)
	assert.Equal(t, triage.Success, res.Verdict)
	want := []string{
		"-O3 func.c -mcmodel=medany -Wall -Wno-overflow -c -o func.o",
		"-O2 driver.c -mcmodel=medany -Wall -Wno-overflow -c -o driver.o",
		"func.o driver.o -mcmodel=medany -Wall -Wno-overflow -o output.o",
	}
	if diff := cmp.Diff(want, invocations(t, job.Dir)); diff != "" {
		t.Fatal(diff)
	}
	require.Len(t, res.Steps, 3)
	assert.Equal(t, []string{"timeout", "-k", "1", "4"}, res.Steps[0].Args[:4])
	assert.Same(t, res.Run, res.Steps[2])
}

func TestCommandLines(t *testing.T) {
	job := newJob(t, "clang", fuzzconfig.Yarpgen, []string{"func.c", "driver.c"},
		[][]string{{"-O3", "-flto"}, {"-O2"}, {"-flto"}})
	job.Extra = []string{"-Wall"}
	lines, err := job.CommandLines()
	require.NoError(t, err)
	cc := job.Compiler.Path
	want := []string{
		cc + " -O3 -flto func.c -mcmodel=medany -Wall -c -o func.o",
		cc + " -O2 driver.c -mcmodel=medany -Wall -c -o driver.o",
		cc + " -flto func.o driver.o -mcmodel=medany -Wall -fuse-ld=lld -o output.o",
	}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Fatal(diff)
	}
	assert.NoFileExists(t, filepath.Join(job.Dir, "func.o"))
}

func TestRunBadJob(t *testing.T) {
	job := newJob(t, "gcc", fuzzconfig.Yarpgen, []string{"func.c", "driver.c"}, [][]string{{"-O3"}, {"-O2"}})
	_, err := job.Run()
	assert.ErrorContains(t, err, "need 3 flag sets")

	job = newJob(t, "tcc", fuzzconfig.Fixed, []string{"fixed_testcase.c"}, [][]string{{"-O3"}})
	_, err = job.Run()
	assert.ErrorContains(t, err, "can't infer compiler kind")
}

func TestRunVerdicts(t *testing.T) {
	job := newJob(t, "gcc", fuzzconfig.Fixed, []string{"fixed_testcase.c"}, [][]string{{"-mreloc"}})
	res, err := job.Run()
	require.NoError(t, err)
	assert.Equal(t, triage.Benign, res.Verdict)
	assert.Nil(t, res.Fail)

	job = newJob(t, "gcc", fuzzconfig.Fixed, []string{"fixed_testcase.c"}, [][]string{{"-mabort"}})
	res, err = job.Run()
	require.NoError(t, err)
	assert.Equal(t, triage.Failure, res.Verdict)
	assert.NotNil(t, res.Fail)
}

func TestSaveObjectFailure(t *testing.T) {
	job := newJob(t, "gcc", fuzzconfig.Yarpgen, []string{"func.c", "driver.c"}, [][]string{
		{"-O3"},
		{"-O2", "-mcrash"},
		{"-O1"},
	})
	res, err := job.Run()
	require.NoError(t, err)
	require.Equal(t, triage.Failure, res.Verdict)
	// The link step must not run after a failed object build.
	assert.Len(t, invocations(t, job.Dir), 2)

	finds := t.TempDir()
	dir, err := res.Save(job.Dir, finds)
	require.NoError(t, err)
	assert.Equal(t, finds, filepath.Dir(dir))
	fi, err := failinfo.Load(dir)
	require.NoError(t, err)
	want := &failinfo.IceFailInfo{
		Compilers:    []string{job.Compiler.Path},
		Architecture: fuzzconfig.Riscv,
		Testcases:    []string{"driver.c"},
		Action:       flaggen.Link,
		Generator:    job.Generator,
		FailType:     failinfo.IceFailType{Backend: failinfo.BackendGcc},
	}
	if diff := cmp.Diff(want, fi.Ice); diff != "" {
		t.Fatal(diff)
	}
	opts, err := os.ReadFile(filepath.Join(dir, "compiler_opts.txt"))
	require.NoError(t, err)
	assert.Equal(t, "-O2 -mcrash", string(opts))
	stderr, err := os.ReadFile(filepath.Join(dir, failinfo.StderrFile))
	require.NoError(t, err)
	assert.Contains(t, string(stderr), "internal compiler error")
	assert.FileExists(t, filepath.Join(dir, "func.c"))
	assert.FileExists(t, filepath.Join(dir, failinfo.StdoutFile))
	// The worker directory stays usable.
	assert.FileExists(t, filepath.Join(job.Dir, "driver.c"))
}

func TestSaveLinkFailure(t *testing.T) {
	job := newJob(t, "gcc", fuzzconfig.Yarpgen, []string{"func.c", "driver.c"}, [][]string{
		{"-O3"},
		{"-O2"},
		{"-mcrash"},
	})
	res, err := job.Run()
	require.NoError(t, err)
	require.Equal(t, triage.Failure, res.Verdict)
	dir, err := res.Save(job.Dir, t.TempDir())
	require.NoError(t, err)
	fi, err := failinfo.Load(dir)
	require.NoError(t, err)
	assert.Len(t, fi.Ice.Compilers, 3)
	assert.Equal(t, []string{"func.c", "driver.c"}, fi.Ice.Testcases)
	flags, err := failinfo.LoadFlags(dir, "", 3)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"-O3"}, {"-O2"}, {"-mcrash"}}, flags)

	_, err = (&Result{Verdict: triage.Success}).Save(job.Dir, t.TempDir())
	assert.Error(t, err)
}
