// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package osutil

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

func TestTarXzFiles(t *testing.T) {
	dir := t.TempDir()
	items := map[string]string{
		"preprocessed.c":            "int main() { return 0; }\n",
		"reduced_compiler_opts.txt": "-O3 -march=rv64gcv -mabi=lp64d",
		"empty.txt":                 "",
	}
	var names []string
	for name, content := range items {
		require.NoError(t, WriteFile(filepath.Join(dir, name), []byte(content)))
		names = append(names, name)
	}
	require.NoError(t, WriteFile(filepath.Join(dir, "not-packed.txt"), []byte("x")))

	dst := filepath.Join(t.TempDir(), "reproducer.tar.xz")
	require.NoError(t, TarXzFiles(dst, dir, names))

	f, err := os.Open(dst)
	require.NoError(t, err)
	defer f.Close()
	xzr, err := xz.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(xzr)
	found := make(map[string]string)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		found[hdr.Name] = string(data)
	}
	assert.Equal(t, items, found)
}

func TestTarXzMissingFile(t *testing.T) {
	dir := t.TempDir()
	err := TarXzFiles(filepath.Join(dir, "out.tar.xz"), dir, []string{"missing.c"})
	assert.Error(t, err)
}
