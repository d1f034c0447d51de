// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/rvfuzz/rvfuzz/pkg/flaggen"
	"github.com/spf13/cobra"
)

func newFlagsCmd() *cobra.Command {
	var (
		compiler   string
		action     string
		flagSet    string
		abi        string
		count      int
		compatible bool
		rv64Only   bool
		seed       int64
	)
	cmd := &cobra.Command{
		Use:   "flags",
		Short: "Print random RISC-V compiler flags, one command line per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t := flaggen.Target{RV64Only: rv64Only, Abi: flaggen.Abi(abi)}
			var err error
			if t.Compiler, err = flaggen.ParseCompiler(compiler); err != nil {
				return err
			}
			if t.Action, err = flaggen.ParseAction(action); err != nil {
				return err
			}
			if t.FlagSet, err = flaggen.ParseFlagSet(flagSet); err != nil {
				return err
			}
			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			rnd := rand.New(rand.NewSource(seed))
			var lines []string
			if compatible {
				lines, err = flaggen.ArbitraryFlagsCompatible(rnd, t, count)
			} else {
				for i := 0; i < count && err == nil; i++ {
					var line string
					line, err = flaggen.ArbitraryFlags(rnd, t)
					lines = append(lines, line)
				}
			}
			if err != nil {
				return err
			}
			for _, line := range lines {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&compiler, "compiler", "c", string(flaggen.Gcc), "compiler: gcc, llvm or rustc")
	cmd.Flags().StringVarP(&action, "action", "a", string(flaggen.Compile), "action: compile, assemble, link or execute")
	cmd.Flags().StringVarP(&flagSet, "flag-set", "s", string(flaggen.FlagSetMarchAndAllFlags), "flag set to draw from")
	cmd.Flags().StringVar(&abi, "abi", "", "pin the ABI")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of command lines")
	cmd.Flags().BoolVar(&compatible, "compatible", false, "generate command lines whose objects link together")
	cmd.Flags().BoolVar(&rv64Only, "rv64", false, "only generate 64-bit targets")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0: time based)")
	return cmd
}
