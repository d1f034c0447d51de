// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rvfuzz/rvfuzz/pkg/failinfo"
	"github.com/rvfuzz/rvfuzz/pkg/fuzzconfig"
	"github.com/rvfuzz/rvfuzz/pkg/osutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestFlags(t *testing.T) {
	out, err := run(t, "flags", "-c", "llvm", "-a", "execute", "-s", "march", "-n", "5", "--rv64", "--seed", "42")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "-march=rv64"), line)
	}
	again, err := run(t, "flags", "-c", "llvm", "-a", "execute", "-s", "march", "-n", "5", "--rv64", "--seed", "42")
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestFlagsErrors(t *testing.T) {
	_, err := run(t, "flags", "-c", "icc")
	assert.ErrorContains(t, err, `unknown compiler "icc"`)
	_, err = run(t, "flags", "-s", "everything")
	assert.ErrorContains(t, err, `unknown flag set "everything"`)
}

func TestGroup(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"a", "b"} {
		fi := &failinfo.FailInfo{Runtime: &failinfo.RuntimeFailInfo{
			Generator: fuzzconfig.Generator{Kind: fuzzconfig.Csmith},
			Testcases: []string{"csmith_testcase.c"},
			FailType:  failinfo.Mismatch,
		}}
		require.NoError(t, osutil.MkdirAll(filepath.Join(root, dir)))
		require.NoError(t, failinfo.Save(filepath.Join(root, dir), fi))
	}
	out, err := run(t, "group", root)
	require.NoError(t, err)
	assert.Equal(t, "error_0 (2): Runtime Mismatch\n\ta\n\tb\n", out)
}

func TestTestRequiresReductionDir(t *testing.T) {
	t.Setenv("REDUCTION_DIR", "")
	_, err := run(t, "test", "ice")
	assert.ErrorContains(t, err, "REDUCTION_DIR is not set")
}
