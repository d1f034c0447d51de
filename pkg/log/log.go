// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package log is a leveled logger shared by the fuzzer, the reducer and the testers.
// Verbosity comes from the -vv flag, or from RUST_LOG when the flag is not given:
//
//	off           nothing, not even errors
//	error, warn   only errors (-1)
//	info          progress lines (0)
//	debug         commands being run (1)
//	trace         command output (2)
//
// Recent output can be cached in memory and printed when a worker stops on a find.
package log

import (
	"bytes"
	"flag"
	"fmt"
	golog "log"
	"os"
	"strings"
	"sync"
	"time"
)

var (
	flagV        = flag.Int("vv", levelUnset, "verbosity (overrides RUST_LOG)")
	mu           sync.Mutex
	verbosity    = levelUnset
	silent       bool
	cacheMem     int
	cacheMaxMem  int
	cachePos     int
	cacheEntries []string
	prependTime  = true // for testing
)

const levelUnset = -100

// ParseLevel maps a RUST_LOG style filter to a verbosity.
// Module directives ("fuzz=debug") count by their level alone, the most verbose one wins.
func ParseLevel(filter string) (level int, off bool, err error) {
	level = 0
	seen := false
	for _, directive := range strings.Split(filter, ",") {
		directive = strings.TrimSpace(directive)
		if directive == "" {
			continue
		}
		if _, lvl, ok := strings.Cut(directive, "="); ok {
			directive = lvl
		}
		var v int
		switch strings.ToLower(directive) {
		case "off":
			off = true
			continue
		case "error", "warn":
			v = -1
		case "info":
			v = 0
		case "debug":
			v = 1
		case "trace":
			v = 2
		default:
			return 0, false, fmt.Errorf("unknown log level %q", directive)
		}
		if !seen || v > level {
			level = v
		}
		seen = true
		off = false
	}
	return level, off, nil
}

// SetVerbosity overrides both -vv and RUST_LOG.
func SetVerbosity(v int) {
	mu.Lock()
	defer mu.Unlock()
	verbosity = v
	silent = false
}

// V returns the effective verbosity.
func V() int {
	mu.Lock()
	defer mu.Unlock()
	return effectiveLocked()
}

func effectiveLocked() int {
	if verbosity != levelUnset {
		return verbosity
	}
	if flag.Parsed() && *flagV != levelUnset {
		verbosity = *flagV
		return verbosity
	}
	verbosity = 0
	if filter := os.Getenv("RUST_LOG"); filter != "" {
		level, off, err := ParseLevel(filter)
		if err != nil {
			golog.Printf("RUST_LOG: %v", err)
		}
		verbosity, silent = level, off
	}
	return verbosity
}

// EnableLogCaching enables in memory caching of log output.
// Caches up to maxLines, but no more than maxMem bytes.
// Cached output can later be queried with CachedLogOutput.
func EnableLogCaching(maxLines, maxMem int) {
	mu.Lock()
	defer mu.Unlock()
	if cacheEntries != nil {
		golog.Fatalf("log caching is already enabled")
	}
	if maxLines < 1 || maxMem < 1 {
		panic("invalid maxLines/maxMem")
	}
	cacheMaxMem = maxMem
	cacheEntries = make([]string, maxLines)
}

// CachedLogOutput retrieves cached log output.
func CachedLogOutput() string {
	mu.Lock()
	defer mu.Unlock()
	buf := new(bytes.Buffer)
	for i := range cacheEntries {
		pos := (cachePos + i) % len(cacheEntries)
		if cacheEntries[pos] == "" {
			continue
		}
		buf.WriteString(cacheEntries[pos])
		buf.Write([]byte{'\n'})
	}
	return buf.String()
}

func Logf(v int, msg string, args ...any) {
	mu.Lock()
	doLog := v <= effectiveLocked() && !silent
	if cacheEntries != nil && v <= 1 {
		cacheLocked(fmt.Sprintf(msg, args...))
	}
	mu.Unlock()

	if doLog {
		golog.Printf(msg, args...)
	}
}

func cacheLocked(entry string) {
	cacheMem -= len(cacheEntries[cachePos])
	if cacheMem < 0 {
		panic("log cache size underflow")
	}
	if prependTime {
		entry = time.Now().Format("2006/01/02 15:04:05 ") + entry
	}
	cacheEntries[cachePos] = entry
	cacheMem += len(entry)
	cachePos++
	if cachePos == len(cacheEntries) {
		cachePos = 0
	}
	for i := 0; i < len(cacheEntries)-1 && cacheMem > cacheMaxMem; i++ {
		pos := (cachePos + i) % len(cacheEntries)
		cacheMem -= len(cacheEntries[pos])
		cacheEntries[pos] = ""
	}
	if cacheMem < 0 {
		panic("log cache size underflow")
	}
}

// Errorf logs unless logging is off.
func Errorf(msg string, args ...any) {
	Logf(-1, "ERROR: "+msg, args...)
}

func Fatal(err error) {
	golog.Fatal(err)
}
