// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package manager

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rvfuzz/rvfuzz/pkg/log"
	"github.com/rvfuzz/rvfuzz/pkg/stat"
)

// serve starts the stats server on addr, it stops when ctx is done.
func (mgr *Manager) serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %v: %w", addr, err)
	}
	log.Logf(0, "serving http on http://%v", ln.Addr())
	server := &http.Server{Handler: mgr.handler()}
	go func() {
		<-ctx.Done()
		server.Close()
	}()
	go func() {
		if err := server.Serve(ln); err != http.ErrServerClosed {
			log.Errorf("http server failed: %v", err)
		}
	}()
	return nil
}

func (mgr *Manager) handler() http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, handler http.Handler) {
		mux.Handle(pattern, handlers.CompressHandler(handler))
	}
	handle("/", http.HandlerFunc(mgr.httpStats))
	handle("/log", http.HandlerFunc(mgr.httpLog))
	handle("/metrics", promhttp.HandlerFor(mgr.reg, promhttp.HandlerOpts{}))
	// Browsers like to request this, without special handler this goes to / handler.
	handle("/favicon.ico", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	return mux
}

func (mgr *Manager) httpStats(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	level := stat.Console
	if r.FormValue("all") != "" {
		level = stat.All
	}
	buf := new(strings.Builder)
	fmt.Fprintf(buf, "uptime: %v\n", time.Since(mgr.start).Round(time.Second))
	for i, f := range mgr.fuzzers {
		fmt.Fprintf(buf, "\nworker %v\n", mgr.cfg.FirstID+i)
		tw := tabwriter.NewWriter(buf, 0, 0, 2, ' ', 0)
		for _, ui := range f.Stats(level) {
			fmt.Fprintf(tw, "  %v\t%v\t%v\n", ui.Name, ui.Value, ui.Desc)
		}
		tw.Flush()
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(buf.String()))
}

func (mgr *Manager) httpLog(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(log.CachedLogOutput()))
}
