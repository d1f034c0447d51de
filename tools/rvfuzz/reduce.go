// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package main

import (
	"fmt"
	"path/filepath"

	"github.com/rvfuzz/rvfuzz/pkg/reduce"
	"github.com/rvfuzz/rvfuzz/pkg/tool"
	"github.com/spf13/cobra"
)

func newReduceCmd() *cobra.Command {
	cfg := &reduce.Config{}
	cmd := &cobra.Command{
		Use:   "reduce find-dir reduction-dir",
		Short: "Reduce a find into a minimal reproducer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.FindDir, cfg.Dir = args[0], args[1]
			cfg.Forward = []tool.Flag{
				{Name: "clang", Value: cfg.Clang},
				{Name: "gcc", Value: cfg.Gcc},
			}
			res, err := reduce.Run(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reduced %v: %v\n", res.FailInfo, res.Testcases)
			fmt.Fprintf(cmd.OutOrStdout(), "reproducer: %v\n", filepath.Join(cfg.Dir, reduce.Archive))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&cfg.Resume, "resume", "r", false, "resume an existing reduction")
	cmd.Flags().BoolVarP(&cfg.SkipC, "skip-c", "s", false, "skip C reduction with creduce")
	cmd.Flags().BoolVar(&cfg.SkipFlags, "skip-flags", false, "skip flag token minimization")
	cmd.Flags().IntVar(&cfg.MaxFlagSteps, "max-flag-steps", 200, "maximum test runs of flag minimization")
	cmd.Flags().StringVar(&cfg.Creduce, "creduce", "creduce", "creduce binary")
	cmd.Flags().StringVar(&cfg.LlvmDis, "llvm-dis", "llvm-dis", "llvm-dis binary")
	cmd.Flags().StringVar(&cfg.Llc, "llc", "llc", "llc binary, empty disables IR reduction")
	cmd.Flags().StringVar(&cfg.LlvmReduce, "llvm-reduce", "llvm-reduce", "llvm-reduce binary")
	addSanitizerFlags(cmd, &cfg.Clang, &cfg.Gcc)
	return cmd
}

// addSanitizerFlags registers the host compilers of the undefined behavior check.
func addSanitizerFlags(cmd *cobra.Command, clang, gcc *string) {
	cmd.Flags().StringVar(clang, "clang", "clang", "host clang for the UBSan check, empty skips it")
	cmd.Flags().StringVar(gcc, "gcc", "gcc", "host gcc for the ASan check, empty skips it")
}
