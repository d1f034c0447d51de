// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzzconfig

import (
	"fmt"
	"time"

	"github.com/rvfuzz/rvfuzz/pkg/osutil"
)

const healthCheckTimeout = time.Minute

// HealthCheck verifies that the configured binaries exist and run.
// Compilers must answer --version, generators (except Fixed) --help.
func (cfg *Config) HealthCheck() error {
	for _, c := range cfg.Compilers() {
		if err := c.healthCheck(); err != nil {
			return err
		}
	}
	gen := cfg.Generator()
	return gen.healthCheck()
}

func (c *FuzzCompiler) healthCheck() error {
	if !osutil.IsExist(c.Path) {
		return fmt.Errorf("compiler %v does not exist", c.Path)
	}
	if _, err := osutil.RunCmd(healthCheckTimeout, "", c.Path, "--version"); err != nil {
		return osutil.PrependContext(fmt.Sprintf("compiler %v failed health check (--version)", c.Path), err)
	}
	if c.Runner != nil && c.Runner.Qemu != nil {
		qemu := c.Runner.Qemu
		for _, bin := range []string{qemu.RV32Path, qemu.RV64Path, qemu.CPUFlags.Script} {
			if bin != "" && !osutil.IsExist(bin) {
				return fmt.Errorf("qemu runner file %v does not exist", bin)
			}
		}
	}
	return nil
}

func (g *Generator) healthCheck() error {
	if !osutil.IsExist(g.Path) {
		return fmt.Errorf("generator %v does not exist", g.Path)
	}
	if g.Kind == Fixed {
		return nil
	}
	if _, err := osutil.RunCmd(healthCheckTimeout, "", g.Path, "--help"); err != nil {
		return osutil.PrependContext(fmt.Sprintf("generator %v failed health check (--help)", g.Path), err)
	}
	if g.Kind == Csmith && !osutil.IsExist(g.IncludeDir) {
		return fmt.Errorf("generator include dir %v does not exist", g.IncludeDir)
	}
	return nil
}
