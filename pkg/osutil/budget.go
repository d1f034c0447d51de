// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package osutil

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Budget bounds a child process with coreutils timeout(1):
// SIGTERM after Limit, SIGKILL KillAfter later.
type Budget struct {
	Limit     time.Duration
	KillAfter time.Duration
}

const DefaultKillAfter = 100 * time.Millisecond

var (
	CompileBudget = Budget{Limit: 5 * time.Second, KillAfter: DefaultKillAfter}
	ExecBudget    = Budget{Limit: 2 * time.Second, KillAfter: DefaultKillAfter}
)

// Args returns the timeout(1) prefixed command line.
func (b Budget) Args(bin string, args ...string) []string {
	killAfter := b.KillAfter
	if killAfter == 0 {
		killAfter = DefaultKillAfter
	}
	return append([]string{"timeout", "-k", seconds(killAfter), seconds(b.Limit), bin}, args...)
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

// Result is the outcome of a budgeted command.
type Result struct {
	Args []string
	// ExitCode is -1 if the process was terminated by a signal.
	ExitCode int
	Signal   int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// Exit codes of timeout(1) itself.
const (
	exitTimedOut  = 124
	exitKillAfter = 128 + signalKill
)

const (
	SignalIllegal  = 4
	signalKill     = 9
	SignalSegfault = 11
)

func (r *Result) Success() bool {
	return r.ExitCode == 0
}

// TimedOut reports a budget overrun: timeout(1) exit status or SIGKILL.
func (r *Result) TimedOut() bool {
	return r.ExitCode == exitTimedOut || r.ExitCode == exitKillAfter || r.Signal == signalKill
}

func (r *Result) String() string {
	if r.Signal != 0 {
		return fmt.Sprintf("%q: killed by signal %v", r.Args, r.Signal)
	}
	return fmt.Sprintf("%q: exit code %v", r.Args, r.ExitCode)
}

// Cmd is a budgeted command.
type Cmd struct {
	Budget Budget
	Dir    string
	// Env is appended to the current environment.
	Env  []string
	Bin  string
	Args []string
}

// Run runs the command and collects its output.
// A non-zero exit status is not an error, an error means the command could not be run at all.
func (c *Cmd) Run() (*Result, error) {
	argv := c.Budget.Args(c.Bin, c.Args...)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = c.Dir
	if len(c.Env) != 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cmd.Stdout, cmd.Stderr = stdout, stderr
	setPdeathsig(cmd)
	start := time.Now()
	err := cmd.Run()
	res := &Result{
		Args:     argv,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return nil, fmt.Errorf("failed to run %q: %w", argv, err)
	}
	res.ExitCode, res.Signal = waitStatus(cmd.ProcessState)
	return res, nil
}

// RunBudget is a shorthand for a budgeted command without extra environment.
func RunBudget(budget Budget, dir, bin string, args ...string) (*Result, error) {
	cmd := &Cmd{Budget: budget, Dir: dir, Bin: bin, Args: args}
	return cmd.Run()
}

// CommandLine renders argv for logs and reproducer scripts.
func CommandLine(argv []string) string {
	return strings.Join(argv, " ")
}
