// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package manager

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rvfuzz/rvfuzz/pkg/flaggen"
	"github.com/rvfuzz/rvfuzz/pkg/fuzzconfig"
	"github.com/rvfuzz/rvfuzz/pkg/fuzzer"
	"github.com/rvfuzz/rvfuzz/pkg/stat"
	"github.com/rvfuzz/rvfuzz/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const succeedingCompiler = `
out=""
while [ $# -gt 0 ]; do
	if [ "$1" = "-o" ]; then out="$2"; fi
	shift
done
echo "" > "$out"
`

const crashingCompiler = `
echo "csmith_testcase.c:7:1: error: unrecognizable insn:" >&2
echo "csmith_testcase.c:7:1: internal compiler error: in extract_insn, at recog.cc:2812" >&2
exit 1
`

func newManager(t *testing.T, compiler string, procs, iterations int) *Manager {
	t.Helper()
	cfg := &fuzzconfig.Config{Compile: &fuzzconfig.CompileConfig{
		Action: flaggen.Compile,
		Compiler: fuzzconfig.FuzzCompiler{
			Path:         testutil.WriteScript(t, t.TempDir(), "riscv64-unknown-linux-gnu-gcc", compiler),
			Arguments:    fuzzconfig.Arguments{Fixed: "-march=rv64gc -mabi=lp64d"},
			Architecture: fuzzconfig.Riscv,
		},
		Generator: fuzzconfig.Generator{
			Kind:       fuzzconfig.Csmith,
			Path:       testutil.WriteScript(t, t.TempDir(), "csmith", `echo "int main() { return 0; }"`),
			IncludeDir: "/usr/include/csmith",
		},
	}}
	mgr, err := New(&Config{
		Fuzz:       cfg,
		FindsDir:   filepath.Join(t.TempDir(), "finds"),
		Workdir:    t.TempDir(),
		Procs:      procs,
		Iterations: iterations,
		Seed:       testutil.RandSource(t).Int63(),
	})
	require.NoError(t, err)
	return mgr
}

func get(t *testing.T, srv *httptest.Server, path string) string {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestRun(t *testing.T) {
	mgr := newManager(t, succeedingCompiler, 2, 3)
	srv := httptest.NewServer(mgr.handler())
	defer srv.Close()

	metrics := get(t, srv, "/metrics")
	assert.Contains(t, metrics, `rvfuzz_iterations{worker="0"} 0`)
	assert.Contains(t, metrics, `rvfuzz_iterations{worker="1"} 0`)

	require.NoError(t, mgr.Run(context.Background()))
	stats := get(t, srv, "/?all=1")
	assert.Contains(t, stats, "worker 0\n")
	assert.Contains(t, stats, "worker 1\n")
	for _, f := range mgr.fuzzers {
		for _, ui := range f.Stats(stat.All) {
			if ui.Name == "iterations" {
				assert.Equal(t, 3, ui.V)
			}
		}
	}
	entries, err := os.ReadDir(mgr.cfg.FindsDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	// The gauges are gone once the workers stop.
	assert.NotContains(t, get(t, srv, "/metrics"), "rvfuzz_iterations")
}

func TestRunFind(t *testing.T) {
	mgr := newManager(t, crashingCompiler, 2, 0)
	err := mgr.Run(context.Background())
	var find *fuzzer.FindError
	require.True(t, errors.As(err, &find), "%v", err)
	assert.True(t, strings.HasPrefix(find.Title, "csmith_testcase.c:7:1: error: unrecognizable insn"), find.Title)
	assert.FileExists(t, filepath.Join(find.Dir, "fail_info.yaml"))
}

func TestRunCancel(t *testing.T) {
	mgr := newManager(t, succeedingCompiler, 1, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, mgr.Run(ctx))
}

func TestBadProcs(t *testing.T) {
	_, err := New(&Config{Procs: 0})
	assert.ErrorContains(t, err, "bad number of procs")
}
