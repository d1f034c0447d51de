// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/rvfuzz/rvfuzz/pkg/failinfo"
	"github.com/rvfuzz/rvfuzz/pkg/interesting"
	"github.com/rvfuzz/rvfuzz/pkg/reduce"
	"github.com/rvfuzz/rvfuzz/pkg/tool"
	"github.com/spf13/cobra"
)

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Interestingness tests run by creduce in the candidate directory",
		Long: fmt.Sprintf("The reduction directory with %v is read from $%v.\n"+
			"The test exits with 0 if the candidate still fails the same way.",
			failinfo.FileName, interesting.ReductionDirEnv),
	}
	for _, kind := range []failinfo.Kind{failinfo.Ice, failinfo.Execution, failinfo.Runtime} {
		cmd.AddCommand(newKindTestCmd(kind))
	}
	return cmd
}

func newKindTestCmd(kind failinfo.Kind) *cobra.Command {
	cfg := &interesting.Config{Kind: kind}
	var forward *string
	cmd := &cobra.Command{
		Use:   reduce.TesterName(kind),
		Short: fmt.Sprintf("Test a %v candidate", kind),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if *forward != "" {
				if err := tool.ApplyForward(cmd.Flags(), *forward); err != nil {
					return err
				}
			}
			cfg.ReductionDir = os.Getenv(interesting.ReductionDirEnv)
			if cfg.ReductionDir == "" {
				return fmt.Errorf("%v is not set", interesting.ReductionDirEnv)
			}
			var err error
			if cfg.Dir, err = os.Getwd(); err != nil {
				return err
			}
			return interesting.Run(cfg)
		},
	}
	forward = tool.RegisterForward(cmd.Flags())
	addSanitizerFlags(cmd, &cfg.Clang, &cfg.Gcc)
	return cmd
}
