// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package execute runs compiled test programs natively or under qemu-user
// and saves failed runs into the finds directory.
package execute

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rvfuzz/rvfuzz/pkg/failinfo"
	"github.com/rvfuzz/rvfuzz/pkg/fuzzconfig"
	"github.com/rvfuzz/rvfuzz/pkg/osutil"
	"github.com/rvfuzz/rvfuzz/pkg/triage"
)

const toolTimeout = time.Minute

// Job is a single run of a compiled program.
type Job struct {
	Runner fuzzconfig.Runner
	// Readelf, if set, is used to verify that the program is a RISC-V binary
	// before its QEMU cpu is generated.
	Readelf string
	Dir     string
	// Program is relative to Dir or absolute.
	Program string
	Input   []string
}

// Command returns the budgeted command that runs the program.
func (job *Job) Command() (*osutil.Cmd, error) {
	program := job.Program
	if !filepath.IsAbs(program) {
		// timeout(1) looks up names without a slash in PATH.
		program = "./" + program
	}
	cmd := &osutil.Cmd{
		Budget: osutil.ExecBudget,
		Dir:    job.Dir,
		Bin:    program,
		Args:   job.Input,
	}
	if job.Runner.Native() {
		return cmd, nil
	}
	qemu := job.Runner.Qemu
	cpu, err := job.qemuCPU(program)
	if err != nil {
		return nil, err
	}
	cmd.Bin = QemuPath(qemu, cpu)
	cmd.Args = append([]string{program}, job.Input...)
	cmd.Env = []string{"QEMU_CPU=" + cpu}
	return cmd, nil
}

// QemuPath selects the emulator binary for the cpu string.
func QemuPath(qemu *fuzzconfig.QemuConfig, cpu string) string {
	if strings.HasPrefix(cpu, "rv32") {
		return qemu.RV32Path
	}
	return qemu.RV64Path
}

func (job *Job) qemuCPU(program string) (string, error) {
	flags := job.Runner.Qemu.CPUFlags
	if flags.Script == "" {
		return flags.Fixed, nil
	}
	if job.Readelf != "" {
		out, err := osutil.RunCmd(toolTimeout, job.Dir, job.Readelf, "-a", program)
		if err != nil {
			return "", err
		}
		if !strings.Contains(strings.ToLower(string(out)), "risc") {
			return "", fmt.Errorf("%v is not a RISC-V binary", job.Program)
		}
	}
	cmd := osutil.Command(flags.Script, "--elf-file-path", program, "--print-qemu-cpu")
	cmd.Dir = job.Dir
	stdout := new(strings.Builder)
	cmd.Stdout = stdout
	if _, err := osutil.Run(toolTimeout, cmd); err != nil {
		return "", osutil.PrependContext("qemu cpu generation failed", err)
	}
	cpu := strings.TrimSpace(stdout.String())
	if cpu == "" {
		return "", fmt.Errorf("%v printed no qemu cpu for %v", flags.Script, job.Program)
	}
	return cpu, nil
}

// Run runs the program. Non-nil error means that it could not be run at all.
func (job *Job) Run() (*osutil.Result, triage.Verdict, error) {
	cmd, err := job.Command()
	if err != nil {
		return nil, triage.Failure, err
	}
	res, err := cmd.Run()
	if err != nil {
		return nil, triage.Failure, err
	}
	return res, triage.Execute(res), nil
}

// FailType returns the uncategorized fail type of a failed run under the runner.
func FailType(runner fuzzconfig.Runner) failinfo.ExecFailType {
	if runner.Native() {
		return failinfo.ExecFailType{Runner: failinfo.RunnerNative}
	}
	return failinfo.ExecFailType{Runner: failinfo.RunnerQemu}
}

// Save copies the worker directory of a failed run into findsDir with the flags
// the program was built with, the program output and fail_info.yaml.
func Save(workdir, findsDir string, fi *failinfo.ExecFailInfo, flags [][]string, res *osutil.Result) (string, error) {
	dir, err := failinfo.NewFind(workdir, findsDir)
	if err != nil {
		return "", err
	}
	if err := failinfo.SaveFlags(dir, "", flags); err != nil {
		return "", err
	}
	if err := osutil.WriteFile(filepath.Join(dir, failinfo.StderrFile), res.Stderr); err != nil {
		return "", err
	}
	if err := osutil.WriteFile(filepath.Join(dir, failinfo.StdoutFile), res.Stdout); err != nil {
		return "", err
	}
	if err := failinfo.Save(dir, &failinfo.FailInfo{Execution: fi}); err != nil {
		return "", err
	}
	return dir, nil
}
