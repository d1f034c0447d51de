// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// rvfuzz fuzzes RISC-V C/C++/Rust compilers and reduces the failures it finds.
//
//	rvfuzz fuzz config.yaml finds/            run a fuzzing campaign
//	rvfuzz reduce finds/<uuid> reduction/     reduce a find into a reproducer
//	rvfuzz group finds/                       group finds by failure title
//	rvfuzz flags -c gcc -n 10                 print random compiler flags
//	rvfuzz test ice|exec|runtime              interestingness test (run by creduce)
//
// Use RUST_LOG=off (or --vv) to control logging.
package main

import (
	"flag"

	"github.com/rvfuzz/rvfuzz/pkg/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rvfuzz",
		Short:         "Fuzz RISC-V compilers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// pkg/log reads -vv from the standard flag set once it is parsed.
			return flag.CommandLine.Parse(nil)
		},
	}
	cmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	cmd.AddCommand(
		newFuzzCmd(),
		newReduceCmd(),
		newGroupCmd(),
		newFlagsCmd(),
		newTestCmd(),
	)
	return cmd
}
