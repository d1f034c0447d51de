// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package reduce

import (
	"fmt"
	"slices"

	"github.com/rvfuzz/rvfuzz/pkg/failinfo"
	"github.com/rvfuzz/rvfuzz/pkg/interesting"
	"github.com/rvfuzz/rvfuzz/pkg/log"
	"github.com/rvfuzz/rvfuzz/pkg/minimize"
)

// minimizeFlags drops whole flag tokens before creduce starts removing characters,
// each candidate is checked with the interestingness test.
func (cfg *Config) minimizeFlags(fi *failinfo.FailInfo) error {
	prefix := flagPrefix(fi.Kind()) + failinfo.ReduciblePrefix
	flags, err := failinfo.LoadSplitFlags(cfg.Dir, prefix, failinfo.FlagSets(len(fi.Testcases())))
	if err != nil {
		return err
	}
	before := countFlags(flags)
	for i := range flags {
		pred := func(candidate []string) (bool, error) {
			try := slices.Clone(flags)
			try[i] = candidate
			if err := failinfo.SaveSplitFlags(cfg.Dir, prefix, try); err != nil {
				return false, err
			}
			err := cfg.test()
			if interesting.IsBoring(err) {
				return false, nil
			}
			return err == nil, err
		}
		res, err := minimize.Slice(minimize.Config[string]{
			Pred:     pred,
			MaxSteps: cfg.MaxFlagSteps,
			Logf: func(msg string, args ...any) {
				log.Logf(1, "flag set %v: %v", i, fmt.Sprintf(msg, args...))
			},
		}, flags[i])
		if err != nil {
			return fmt.Errorf("flag minimization failed: %w", err)
		}
		flags[i] = res
	}
	log.Logf(0, "minimized flags from %v to %v tokens", before, countFlags(flags))
	if err := failinfo.SaveSplitFlags(cfg.Dir, prefix, flags); err != nil {
		return err
	}
	// The last candidate may have been rejected, refresh the outputs.
	if err := cfg.test(); err != nil {
		return fmt.Errorf("the find with minimized flags does not reproduce: %w", err)
	}
	return nil
}

func countFlags(flags [][]string) int {
	n := 0
	for _, set := range flags {
		n += len(set)
	}
	return n
}
