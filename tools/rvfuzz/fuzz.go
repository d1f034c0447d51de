// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rvfuzz/rvfuzz/pkg/fuzzconfig"
	"github.com/rvfuzz/rvfuzz/pkg/fuzzer"
	"github.com/rvfuzz/rvfuzz/pkg/log"
	"github.com/rvfuzz/rvfuzz/pkg/manager"
	"github.com/rvfuzz/rvfuzz/pkg/osutil"
	"github.com/rvfuzz/rvfuzz/pkg/tool"
	"github.com/spf13/cobra"
)

func newFuzzCmd() *cobra.Command {
	var (
		procs      int
		iterations int
		workdir    string
		httpAddr   string
		seed       int64
		cpuprof    string
		memprof    string
	)
	cmd := &cobra.Command{
		Use:   "fuzz config.yaml finds-dir [id]",
		Short: "Fuzz the compilers described by the config, finds are saved in finds-dir",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := fuzzconfig.LoadFile(args[0])
			if err != nil {
				return err
			}
			firstID := 0
			if len(args) == 3 {
				if firstID, err = strconv.Atoi(args[2]); err != nil {
					return fmt.Errorf("bad runner id %q: %w", args[2], err)
				}
			}
			if err := cfg.HealthCheck(); err != nil {
				return err
			}
			if workdir == "" {
				workdir = filepath.Join(os.TempDir(), "rvfuzz")
			}
			if httpAddr != "" {
				log.EnableLogCaching(1000, 1<<20)
			}
			mgr, err := manager.New(&manager.Config{
				Fuzz:       cfg,
				FindsDir:   args[1],
				Workdir:    workdir,
				Procs:      procs,
				FirstID:    firstID,
				Iterations: iterations,
				HTTP:       httpAddr,
				Seed:       seed,
			})
			if err != nil {
				return err
			}
			defer tool.InstallProfiling(cpuprof, memprof)()
			shutdown := make(chan struct{})
			osutil.HandleInterrupts(shutdown)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go func() {
				<-shutdown
				cancel()
			}()
			err = mgr.Run(ctx)
			var find *fuzzer.FindError
			if errors.As(err, &find) {
				fmt.Fprintf(cmd.OutOrStdout(), "found: %v\nreduce with: %v reduce %v <reduction-dir>\n",
					find.Title, os.Args[0], find.Dir)
			}
			return err
		},
	}
	cmd.Flags().IntVarP(&procs, "procs", "j", 1, "number of parallel workers")
	cmd.Flags().IntVar(&iterations, "iterations", 0, "stop each worker after this many iterations (0: no limit)")
	cmd.Flags().StringVar(&workdir, "workdir", "", "directory for the worker instance dirs (default $TMPDIR/rvfuzz)")
	cmd.Flags().StringVar(&httpAddr, "http", "", "serve stats and Prometheus metrics on this address")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0: time based)")
	cmd.Flags().StringVar(&cpuprof, "cpuprofile", "", "write cpu profile to this file")
	cmd.Flags().StringVar(&memprof, "memprofile", "", "write memory profile to this file")
	return cmd
}
