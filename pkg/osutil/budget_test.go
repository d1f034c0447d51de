// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package osutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetArgs(t *testing.T) {
	assert.Equal(t, []string{"timeout", "-k", "0.1", "5", "gcc", "-O3", "a.c"},
		CompileBudget.Args("gcc", "-O3", "a.c"))
	assert.Equal(t, []string{"timeout", "-k", "0.1", "2", "./a.out", "1"},
		ExecBudget.Args("./a.out", "1"))
	assert.Equal(t, []string{"timeout", "-k", "1", "4", "clang"},
		Budget{Limit: 4 * time.Second, KillAfter: time.Second}.Args("clang"))
	assert.Equal(t, []string{"timeout", "-k", "0.1", "0.5", "true"},
		Budget{Limit: 500 * time.Millisecond}.Args("true"))
}

func TestRunBudget(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name     string
		script   string
		exitCode int
		signal   int
		timedOut bool
		stdout   string
		stderr   string
	}{
		{
			name:   "success",
			script: "echo 12345; echo oops >&2",
			stdout: "12345\n",
			stderr: "oops\n",
		},
		{
			name:     "exit-1",
			script:   "echo 'error: something' >&2; exit 1",
			exitCode: 1,
			stderr:   "error: something\n",
		},
		{
			name:     "timeout",
			script:   "sleep 10",
			exitCode: 124,
			timedOut: true,
		},
		{
			// timeout(1) SIGKILLs its whole process group, itself included.
			name:     "term-ignored",
			script:   "trap '' TERM; sleep 10",
			exitCode: -1,
			signal:   9,
			timedOut: true,
		},
		{
			name:     "sigill",
			script:   "kill -ILL $$",
			exitCode: -1,
			signal:   SignalIllegal,
		},
		{
			name:     "sigsegv",
			script:   "kill -SEGV $$",
			exitCode: -1,
			signal:   SignalSegfault,
		},
	}
	budget := Budget{Limit: 500 * time.Millisecond}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			res, err := RunBudget(budget, dir, "/bin/sh", "-c", test.script)
			require.NoError(t, err)
			assert.Equal(t, test.exitCode, res.ExitCode, res.String())
			assert.Equal(t, test.signal, res.Signal, res.String())
			assert.Equal(t, test.timedOut, res.TimedOut())
			assert.Equal(t, test.exitCode == 0 && test.signal == 0, res.Success())
			if !test.timedOut {
				assert.Equal(t, test.stdout, string(res.Stdout))
				assert.Equal(t, test.stderr, string(res.Stderr))
			}
		})
	}
}

func TestCmdEnv(t *testing.T) {
	cmd := &Cmd{
		Budget: ExecBudget,
		Dir:    t.TempDir(),
		Env:    []string{"QEMU_CPU=rv64,v=true"},
		Bin:    "/bin/sh",
		Args:   []string{"-c", `printf "%s" "$QEMU_CPU"; pwd >&2`},
	}
	res, err := cmd.Run()
	require.NoError(t, err)
	assert.Equal(t, "rv64,v=true", string(res.Stdout))
	assert.Contains(t, string(res.Stderr), cmd.Dir)
}

func TestRunBudgetMissingBinary(t *testing.T) {
	res, err := RunBudget(ExecBudget, t.TempDir(), "/nonexistent/compiler")
	require.NoError(t, err)
	assert.Equal(t, 127, res.ExitCode)
}
