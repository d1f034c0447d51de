// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package manager runs a fuzzing campaign: a number of fuzzer workers that share
// the finds directory, with the worker stats optionally served over HTTP.
package manager

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rvfuzz/rvfuzz/pkg/fuzzconfig"
	"github.com/rvfuzz/rvfuzz/pkg/fuzzer"
	"github.com/rvfuzz/rvfuzz/pkg/log"
	"github.com/rvfuzz/rvfuzz/pkg/osutil"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	Fuzz     *fuzzconfig.Config
	FindsDir string
	// Workdir holds the instance directories of the workers.
	Workdir string
	// Procs is the number of parallel workers, numbered from FirstID.
	Procs   int
	FirstID int
	// Iterations is the per-worker iteration limit, 0 means no limit.
	Iterations int
	// HTTP is the address of the stats server, empty disables it.
	HTTP string
	// Seed of the worker random sources, 0 picks a time based one.
	Seed int64
}

type Manager struct {
	cfg     *Config
	reg     *prometheus.Registry
	fuzzers []*fuzzer.Fuzzer
	start   time.Time
}

func New(cfg *Config) (*Manager, error) {
	if cfg.Procs < 1 {
		return nil, fmt.Errorf("bad number of procs %v", cfg.Procs)
	}
	findsDir, err := filepath.Abs(cfg.FindsDir)
	if err != nil {
		return nil, err
	}
	if err := osutil.MkdirAll(findsDir); err != nil {
		return nil, fmt.Errorf("failed to create finds dir: %w", err)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	mgr := &Manager{
		cfg: cfg,
		reg: prometheus.NewRegistry(),
	}
	for i := 0; i < cfg.Procs; i++ {
		workdir, err := osutil.ProcessTempDir(cfg.Workdir)
		if err != nil {
			mgr.close()
			return nil, fmt.Errorf("failed to create worker dir: %w", err)
		}
		id := cfg.FirstID + i
		log.Logf(1, "worker %v: seed %v, workdir %v", id, seed+int64(id), workdir)
		mgr.fuzzers = append(mgr.fuzzers, fuzzer.New(&fuzzer.Config{
			Fuzz:       cfg.Fuzz,
			Workdir:    workdir,
			FindsDir:   findsDir,
			ID:         id,
			Iterations: cfg.Iterations,
			Registerer: mgr.reg,
		}, rand.New(rand.NewSource(seed+int64(id)))))
	}
	return mgr, nil
}

// Run runs the workers until the context is cancelled, all of them reach the iteration
// limit or one of them saves a find. The find is returned as *fuzzer.FindError,
// the other workers are stopped then.
func (mgr *Manager) Run(ctx context.Context) error {
	defer mgr.close()
	mgr.start = time.Now()
	httpCtx, stopHTTP := context.WithCancel(context.Background())
	defer stopHTTP()
	if mgr.cfg.HTTP != "" {
		if err := mgr.serve(httpCtx, mgr.cfg.HTTP); err != nil {
			return err
		}
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, f := range mgr.fuzzers {
		g.Go(func() error {
			return f.Run(ctx)
		})
	}
	return g.Wait()
}

func (mgr *Manager) close() {
	for _, f := range mgr.fuzzers {
		f.Close()
	}
}
