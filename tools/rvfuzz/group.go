// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/rvfuzz/rvfuzz/pkg/group"
	"github.com/spf13/cobra"
)

func newGroupCmd() *cobra.Command {
	move := false
	cmd := &cobra.Command{
		Use:   "group finds-dir",
		Short: "Group finds with the same failure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			groups, err := group.Find(args[0])
			if err != nil {
				return err
			}
			if move {
				if err := group.Move(args[0], groups); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			for _, g := range groups {
				fmt.Fprintf(out, "%v (%v): %v\n", g.Name, len(g.Dirs), g.Title)
				for _, dir := range g.Dirs {
					fmt.Fprintf(out, "\t%v\n", dir)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&move, "move", false, "move the finds into a directory per group")
	return cmd
}
