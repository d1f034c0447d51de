// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package reduce

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rvfuzz/rvfuzz/pkg/compile"
	"github.com/rvfuzz/rvfuzz/pkg/execute"
	"github.com/rvfuzz/rvfuzz/pkg/failinfo"
	"github.com/rvfuzz/rvfuzz/pkg/fuzzconfig"
	"github.com/rvfuzz/rvfuzz/pkg/generate"
	"github.com/rvfuzz/rvfuzz/pkg/interesting"
	"github.com/rvfuzz/rvfuzz/pkg/log"
	"github.com/rvfuzz/rvfuzz/pkg/osutil"
)

// Report files of a finished reduction.
const (
	ReproduceScript = "reproduce.sh"
	BugReport       = "bug_report.txt"
	Archive         = "reproducer.tar.xz"
	ReducedIR       = "reduced.ll"
	irBitcode       = "red.bc"
	irText          = "red.ll"
	irTestScript    = "min_ir.sh"
)

const irTimeout = 24 * time.Hour

// report writes the reduced flags, the reproducer script, the bug report
// and packs them into the reproducer archive.
func (cfg *Config) report(res *Result) error {
	fi := res.FailInfo
	prefix := flagPrefix(fi.Kind())
	flags, err := failinfo.LoadSplitFlags(cfg.Dir, prefix+failinfo.ReduciblePrefix,
		failinfo.FlagSets(len(res.Testcases)))
	if err != nil {
		return err
	}
	if err := failinfo.SaveFlags(cfg.Dir, prefix+failinfo.ReducedPrefix, flags); err != nil {
		return err
	}
	files := append([]string{}, res.Testcases...)
	for i := range flags {
		files = append(files, failinfo.FlagsFile(prefix+failinfo.ReducedPrefix, i, len(flags)))
	}
	var script []string
	switch fi.Kind() {
	case failinfo.Ice:
		job, err := interesting.IceJob(fi.Ice, flags)
		if err != nil {
			return err
		}
		if script, err = job.CommandLines(); err != nil {
			return err
		}
		extra, err := cfg.iceReport(fi.Ice, job, script)
		if err != nil {
			return err
		}
		files = append(files, extra...)
	case failinfo.Execution:
		job, err := interesting.ExecJob(fi.Execution, flags)
		if err != nil {
			return err
		}
		if script, err = job.CommandLines(); err != nil {
			return err
		}
		run, err := runLine(fi.Execution.Runner, fi.Execution.Generator, job.Output, cfg.Dir)
		if err != nil {
			return err
		}
		script = append(script, run...)
	default:
		if script, err = cfg.runtimeScript(fi.Runtime, flags); err != nil {
			return err
		}
		fast, err := os.ReadFile(filepath.Join(cfg.Dir, failinfo.FastPrefix+interesting.ExecStdoutFile))
		if err != nil {
			return err
		}
		slow, err := os.ReadFile(filepath.Join(cfg.Dir, failinfo.SlowPrefix+interesting.ExecStdoutFile))
		if err != nil {
			return err
		}
		diff := failinfo.OutputDiff(string(fast), string(slow))
		if err := osutil.WriteFile(filepath.Join(cfg.Dir, failinfo.DiffFile), []byte(diff)); err != nil {
			return err
		}
		files = append(files, failinfo.DiffFile)
	}
	data := "#!/bin/bash\n" + strings.Join(script, "\n") + "\n"
	if err := osutil.WriteExecFile(filepath.Join(cfg.Dir, ReproduceScript), []byte(data)); err != nil {
		return err
	}
	files = append(files, ReproduceScript)
	for _, aux := range generate.AuxFiles(fi.Generator()) {
		if osutil.IsExist(filepath.Join(cfg.Dir, aux)) {
			files = append(files, aux)
		}
	}
	if err := osutil.TarXzFiles(filepath.Join(cfg.Dir, Archive), cfg.Dir, files); err != nil {
		return fmt.Errorf("failed to pack the reproducer: %w", err)
	}
	res.Files = files
	log.Logf(0, "reproducer: %v", filepath.Join(cfg.Dir, Archive))
	return nil
}

// runtimeScript builds both programs and diffs their output.
func (cfg *Config) runtimeScript(fi *failinfo.RuntimeFailInfo, flags [][]string) ([]string, error) {
	fast, slow, err := interesting.RuntimeJobs(fi, flags)
	if err != nil {
		return nil, err
	}
	var script []string
	for _, job := range []*compile.Job{fast, slow} {
		lines, err := job.CommandLines()
		if err != nil {
			return nil, err
		}
		script = append(script, lines...)
	}
	for _, job := range []*compile.Job{fast, slow} {
		run, err := runLine(*job.Compiler.Runner, fi.Generator, job.Output, cfg.Dir)
		if err != nil {
			return nil, err
		}
		stdout := strings.TrimSuffix(job.Output, interesting.TestcaseOutput) + failinfo.StdoutFile
		run[len(run)-1] += " > " + stdout
		script = append(script, run...)
	}
	script = append(script, fmt.Sprintf("diff %v%v %v%v", failinfo.FastPrefix, failinfo.StdoutFile,
		failinfo.SlowPrefix, failinfo.StdoutFile))
	return script, nil
}

// runLine returns the shell lines that run the program under the runner.
func runLine(runner fuzzconfig.Runner, gen fuzzconfig.Generator, program, dir string) ([]string, error) {
	input, err := generate.Input(gen, dir)
	if err != nil {
		return nil, err
	}
	argv := append([]string{"./" + program}, input...)
	if runner.Native() {
		return []string{osutil.CommandLine(argv)}, nil
	}
	qemu := runner.Qemu
	if qemu.CPUFlags.Script == "" {
		cpu := qemu.CPUFlags.Fixed
		return []string{fmt.Sprintf("QEMU_CPU=%v %v %v", cpu, execute.QemuPath(qemu, cpu), osutil.CommandLine(argv))}, nil
	}
	return []string{
		fmt.Sprintf("cpu=$(%v --elf-file-path ./%v --print-qemu-cpu)", qemu.CPUFlags.Script, program),
		fmt.Sprintf(`case "$cpu" in rv32*) qemu=%v ;; *) qemu=%v ;; esac`, qemu.RV32Path, qemu.RV64Path),
		fmt.Sprintf(`QEMU_CPU="$cpu" "$qemu" %v`, osutil.CommandLine(argv)),
	}, nil
}

// iceReport writes the bug report of a compiler crash. Llc crashes of a single source
// also get the reduced LLVM IR. Returns the written files.
func (cfg *Config) iceReport(fi *failinfo.IceFailInfo, job *compile.Job, script []string) ([]string, error) {
	stderr, err := os.ReadFile(filepath.Join(cfg.Dir, failinfo.StderrFile))
	if err != nil {
		return nil, err
	}
	report := new(strings.Builder)
	report.WriteString("Testcase:\n")
	for _, tc := range fi.Testcases {
		data, err := os.ReadFile(filepath.Join(cfg.Dir, tc))
		if err != nil {
			return nil, err
		}
		if len(fi.Testcases) > 1 {
			fmt.Fprintf(report, "// %v\n", tc)
		}
		report.Write(data)
	}
	fmt.Fprintf(report, "\n\nCommand/backtrace:\n%v\n%s\n\n", strings.Join(script, "\n"), stderr)
	var files []string
	if fi.FailType.Llvm == failinfo.LlvmLlc && len(fi.Testcases) == 1 && cfg.Llc != "" {
		ir, llcStderr, err := cfg.reduceIR(job)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(report, "Reduced LLVM IR:\n%s\n\nCommand/backtrace:\n%v %v\n%s\n\n",
			ir, cfg.Llc, ReducedIR, llcStderr)
		files = append(files, ReducedIR)
	}
	report.WriteString("Found via fuzzer.\n")
	if err := osutil.WriteFile(filepath.Join(cfg.Dir, BugReport), []byte(report.String())); err != nil {
		return nil, err
	}
	return append(files, BugReport), nil
}

// reduceIR emits the LLVM IR of the crashing build and reduces it with llvm-reduce
// while llc keeps failing to select instructions. Returns the reduced IR and llc output on it.
func (cfg *Config) reduceIR(job *compile.Job) ([]byte, []byte, error) {
	bitcode := *job
	bitcode.Dir = cfg.Dir
	bitcode.Flags = nil
	for _, set := range job.Flags {
		// -S would make clang emit textual IR.
		bitcode.Flags = append(bitcode.Flags, slices.DeleteFunc(slices.Clone(set), func(flag string) bool {
			return flag == "-S" || flag == "-c"
		}))
	}
	bitcode.Extra = []string{"-emit-llvm", "-c"}
	bitcode.Output = irBitcode
	res, err := bitcode.Run()
	if err != nil {
		return nil, nil, err
	}
	if !res.Run.Success() {
		return nil, nil, fmt.Errorf("failed to emit LLVM IR: %v: %s", res.Run, res.Run.Stderr)
	}
	if _, err := osutil.RunCmd(time.Minute, cfg.Dir, cfg.LlvmDis, irBitcode); err != nil {
		return nil, nil, osutil.PrependContext("llvm-dis failed", err)
	}
	test := fmt.Sprintf("#!/bin/bash\n%v $1 2>&1 | grep -e \"LLVM ERROR\" -e \"Cannot select\"\n", cfg.Llc)
	testPath := filepath.Join(cfg.Dir, irTestScript)
	if err := osutil.WriteExecFile(testPath, []byte(test)); err != nil {
		return nil, nil, err
	}
	log.Logf(0, "running %v on %v", cfg.LlvmReduce, irText)
	if _, err := osutil.RunCmd(irTimeout, cfg.Dir, cfg.LlvmReduce, "--test", testPath, irText); err != nil {
		return nil, nil, osutil.PrependContext("llvm-reduce failed", err)
	}
	ir, err := os.ReadFile(filepath.Join(cfg.Dir, ReducedIR))
	if err != nil {
		return nil, nil, err
	}
	llc, err := osutil.RunBudget(osutil.Budget{Limit: time.Minute}, cfg.Dir, cfg.Llc, ReducedIR)
	if err != nil {
		return nil, nil, err
	}
	return ir, llc.Stderr, nil
}
