// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package reduce

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/rvfuzz/rvfuzz/pkg/compile"
	"github.com/rvfuzz/rvfuzz/pkg/failinfo"
	"github.com/rvfuzz/rvfuzz/pkg/flaggen"
	"github.com/rvfuzz/rvfuzz/pkg/fuzzconfig"
	"github.com/rvfuzz/rvfuzz/pkg/log"
	"github.com/rvfuzz/rvfuzz/pkg/osutil"
	"github.com/rvfuzz/rvfuzz/pkg/triage"
)

// Sources of a reduction, the originals are kept intact.
const (
	PreprocessedSource = "preprocessed.c"
	rawPreprocessed    = "raw_preprocessed.c"
	preprocessedPrefix = "preprocessed_"
)

var preprocessBudget = osutil.Budget{Limit: time.Minute, KillAfter: osutil.DefaultKillAfter}

// droppedFlags make the compiler accept code it would warn about, the testers enable warnings.
var droppedFlags = []string{"-w", "-fpermissive"}

const mallocAttr = "__attribute__ ((__malloc__ ("

var floatTypedef = regexp.MustCompile(`typedef.+_Float`)

// flagPrefix returns the prefix of the reducible flag files of the find kind.
// Runtime finds only reduce the flags of the tested compiler.
func flagPrefix(kind failinfo.Kind) string {
	if kind == failinfo.Runtime {
		return failinfo.SlowPrefix
	}
	return ""
}

// reducibleFiles returns the split flag files creduce works on.
func reducibleFiles(fi *failinfo.FailInfo) []string {
	prefix := flagPrefix(fi.Kind()) + failinfo.ReduciblePrefix
	n := failinfo.FlagSets(len(fi.Testcases()))
	var files []string
	for i := 0; i < n; i++ {
		files = append(files, failinfo.FlagsFile(prefix, i, n))
	}
	return files
}

// splitFlags writes the reducible flag files of the find and returns the flags.
func (cfg *Config) splitFlags(fi *failinfo.FailInfo) ([][]string, error) {
	prefix := flagPrefix(fi.Kind())
	flags, err := failinfo.LoadFlags(cfg.Dir, prefix, failinfo.FlagSets(len(fi.Testcases())))
	if err != nil {
		return nil, err
	}
	for i, set := range flags {
		flags[i] = slices.DeleteFunc(set, func(flag string) bool {
			return slices.Contains(droppedFlags, flag)
		})
	}
	if err := failinfo.SaveSplitFlags(cfg.Dir, prefix+failinfo.ReduciblePrefix, flags); err != nil {
		return nil, err
	}
	return flags, nil
}

// preprocess splits the flags and prepares the sources creduce will work on.
// Csmith programs are preprocessed so that creduce can remove unused header code.
// Returns the new test cases.
func (cfg *Config) preprocess(fi *failinfo.FailInfo) ([]string, error) {
	flags, err := cfg.splitFlags(fi)
	if err != nil {
		return nil, err
	}
	gen := fi.Generator()
	testcases := fi.Testcases()
	switch gen.Kind {
	case fuzzconfig.Csmith:
		if len(testcases) != 1 {
			return nil, fmt.Errorf("csmith finds have a single test case, got %v", testcases)
		}
		if err := cfg.preprocessCsmith(fi, flags); err != nil {
			return nil, err
		}
	case fuzzconfig.Fixed:
		src := filepath.Join(cfg.Dir, testcases[0])
		if err := osutil.CopyFile(src, filepath.Join(cfg.Dir, PreprocessedSource)); err != nil {
			return nil, err
		}
		if fi.Kind() == failinfo.Runtime {
			if err := cfg.scrub(PreprocessedSource, true); err != nil {
				return nil, err
			}
		}
	default:
		var copies []string
		for _, tc := range testcases {
			name := preprocessedPrefix + tc
			if err := osutil.CopyFile(filepath.Join(cfg.Dir, tc), filepath.Join(cfg.Dir, name)); err != nil {
				return nil, err
			}
			copies = append(copies, name)
		}
		return copies, nil
	}
	return []string{PreprocessedSource}, nil
}

func (cfg *Config) preprocessCsmith(fi *failinfo.FailInfo, flags [][]string) error {
	var (
		c    *fuzzconfig.FuzzCompiler
		path = filepath.Join(cfg.Dir, PreprocessedSource)
	)
	switch fi.Kind() {
	case failinfo.Ice:
		c = &fuzzconfig.FuzzCompiler{Path: last(fi.Ice.Compilers), Architecture: fi.Ice.Architecture}
	case failinfo.Execution:
		c = &fuzzconfig.FuzzCompiler{Path: last(fi.Execution.Compilers), Architecture: fi.Execution.Architecture}
	default:
		c = &fuzzconfig.FuzzCompiler{Path: last(fi.Runtime.SlowCompilers), Architecture: fi.Runtime.SlowArchitecture}
	}
	output := rawPreprocessed
	if fi.Kind() == failinfo.Ice {
		output = PreprocessedSource
	}
	job := &compile.Job{
		Compiler:  c,
		Generator: fi.Generator(),
		Action:    flaggen.Compile,
		Sources:   fi.Testcases(),
		Flags:     flags,
		Output:    output,
		Dir:       cfg.Dir,
		Extra:     []string{"-E"},
		Budget:    preprocessBudget,
	}
	res, err := job.Run()
	if err != nil {
		return err
	}
	if res.Verdict != triage.Success || !osutil.IsExist(filepath.Join(cfg.Dir, output)) {
		log.Logf(0, "preprocessing failed, reducing the source as is: %v", res.Run)
		return osutil.CopyFile(filepath.Join(cfg.Dir, fi.Testcases()[0]), path)
	}
	if fi.Kind() == failinfo.Ice {
		return nil
	}
	if err := osutil.CopyFile(filepath.Join(cfg.Dir, rawPreprocessed), path); err != nil {
		return err
	}
	return cfg.scrub(PreprocessedSource, fi.Kind() == failinfo.Runtime)
}

// scrub removes the libc declarations with malloc attributes the fuzzed compilers
// do not accept together with the rest of their declaration. With floatTypedefs it also
// removes _Float typedefs that the reference compiler does not know.
func (cfg *Config) scrub(name string, floatTypedefs bool) error {
	file := filepath.Join(cfg.Dir, name)
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	lines := scrubLines(strings.Split(string(data), "\n"))
	if floatTypedefs {
		lines = slices.DeleteFunc(lines, floatTypedef.MatchString)
	}
	return osutil.WriteFile(file, []byte(strings.Join(lines, "\n")))
}

// scrubLines deletes each line with a malloc attribute and the lines above it
// up to and including the closest one that mentions extern. The attribute line
// itself never ends the deletion.
func scrubLines(lines []string) []string {
	keep := make([]bool, len(lines))
	deleting := false
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		switch {
		case !deleting && strings.Contains(line, mallocAttr):
			deleting = true
		case deleting:
			deleting = !strings.Contains(line, "extern")
		default:
			keep[i] = true
		}
	}
	var res []string
	for i, line := range lines {
		if keep[i] {
			res = append(res, line)
		}
	}
	return res
}

func last(s []string) string {
	return s[len(s)-1]
}
