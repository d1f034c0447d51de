// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package group buckets the finds of a finds directory by failure, so that
// duplicates of the same compiler bug are reduced and reported once.
package group

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rvfuzz/rvfuzz/pkg/failinfo"
	"github.com/rvfuzz/rvfuzz/pkg/log"
	"github.com/rvfuzz/rvfuzz/pkg/osutil"
	"github.com/rvfuzz/rvfuzz/pkg/triage"
)

// skipped are path fragments of finds that were set aside by hand.
var skipped = []string{"failed", "unrecognized"}

// Group is a set of finds with the same failure.
type Group struct {
	Name  string
	Title string
	// Dirs are relative to the finds root, in walk order.
	Dirs []string
}

// Find walks root and groups the find directories in it by fail type and,
// for compiler crashes, by the first recognized stderr line.
// Groups are named error_1, error_2, ... in the order they are first seen.
func Find(root string) ([]*Group, error) {
	var groups []*Group
	index := make(map[string]*Group)
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if slices.ContainsFunc(skipped, func(s string) bool { return strings.Contains(rel, s) }) {
			return filepath.SkipDir
		}
		if !osutil.IsExist(filepath.Join(path, failinfo.FileName)) {
			return nil
		}
		title, err := Title(path)
		if err != nil {
			log.Logf(0, "skipping %v: %v", rel, err)
			return filepath.SkipDir
		}
		g := index[title]
		if g == nil {
			g = &Group{Name: fmt.Sprintf("error_%v", len(groups)+1), Title: title}
			index[title] = g
			groups = append(groups, g)
		}
		g.Dirs = append(g.Dirs, rel)
		return filepath.SkipDir
	})
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// Title describes the failure of the find in dir.
func Title(dir string) (string, error) {
	fi, err := failinfo.Load(dir)
	if err != nil {
		return "", err
	}
	if fi.Kind() != failinfo.Ice {
		return fi.String(), nil
	}
	stderr, err := os.ReadFile(filepath.Join(dir, failinfo.StderrFile))
	if errors.Is(err, os.ErrNotExist) {
		return fi.String(), nil
	} else if err != nil {
		return "", err
	}
	title := triage.IceTitle(stderr)
	if title == "" {
		return fi.String(), nil
	}
	return fmt.Sprintf("%v: %v", fi, stripLocation(title)), nil
}

// stripLocation drops the "file:line:col: " prefix, it differs between duplicates.
func stripLocation(line string) string {
	for _, marker := range []string{": error: ", ": internal compiler error: ", ": fatal error: "} {
		if i := strings.Index(line, marker); i != -1 && !strings.Contains(line[:i], " ") {
			return strings.TrimPrefix(line[i:], ": ")
		}
	}
	return line
}

// Move moves the find directories of each group into root/<group name>.
func Move(root string, groups []*Group) error {
	for _, g := range groups {
		dst := filepath.Join(root, g.Name)
		if err := osutil.MkdirAll(dst); err != nil {
			return err
		}
		for i, dir := range g.Dirs {
			moved := filepath.Join(g.Name, filepath.Base(dir))
			if err := os.Rename(filepath.Join(root, dir), filepath.Join(root, moved)); err != nil {
				return err
			}
			g.Dirs[i] = moved
		}
	}
	return nil
}
