// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package stat provides fuzzing counters and timing distributions.
//
// Each fuzz worker owns a Set, values are not shared between workers:
//
//	stats := stat.NewSet("3", prometheus.DefaultRegisterer)
//	compileOK := stats.New("compile success", "Successful compilations", stat.Console)
//	compileOK.Add(1)
//
// When a registerer is given, every value created with the Prometheus option is exported
// as a gauge carrying a worker label.
package stat

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VividCortex/gohistogram"
	"github.com/prometheus/client_golang/prometheus"
)

type UI struct {
	Name  string
	Desc  string
	Level Level
	Value string
	V     int
}

// Level controls if the metric is printed in the periodic progress line.
type Level int

const (
	All Level = iota
	Console
)

// Prometheus exports the metric to Prometheus under the given name.
type Prometheus string

// Rate says to format the value as a rate per unit of time rather than total value.
type Rate struct{}

// Distribution says to collect a histogram of individual samples.
// Val of such metric returns the mean.
type Distribution struct{}

const (
	histogramBuckets = 255
	workerLabel      = "worker"
)

type Set struct {
	mu       sync.Mutex
	worker   string
	reg      prometheus.Registerer
	vals     map[string]*Val
	start    time.Time
	nextOrd  atomic.Uint64
	exported []prometheus.Collector
}

// NewSet creates an empty set for the given worker. reg may be nil.
func NewSet(worker string, reg prometheus.Registerer) *Set {
	return &Set{
		worker: worker,
		reg:    reg,
		vals:   make(map[string]*Val),
		start:  time.Now(),
	}
}

// Additionally a custom 'func() int' can be passed to read the metric value from the function,
// and 'func(int, time.Duration) string' can be passed for custom formatting of the metric value.

func (s *Set) New(name, desc string, opts ...any) *Val {
	v := &Val{
		name:  name,
		desc:  desc,
		order: s.nextOrd.Add(1),
		fmt:   func(v int, period time.Duration) string { return strconv.Itoa(v) },
	}
	var export Prometheus
	for _, o := range opts {
		switch opt := o.(type) {
		case Level:
			v.level = opt
		case Rate:
			v.fmt = formatRate
		case Distribution:
			v.hist = true
		case func() int:
			v.ext = opt
		case func(int, time.Duration) string:
			v.fmt = opt
		case Prometheus:
			export = opt
		default:
			panic(fmt.Sprintf("unknown stats option %#v", o))
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vals[name] != nil {
		panic(fmt.Sprintf("duplicate stat %q", name))
	}
	s.vals[name] = v
	if export != "" && s.reg != nil {
		gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        string(export),
			Help:        desc,
			ConstLabels: prometheus.Labels{workerLabel: s.worker},
		},
			func() float64 { return float64(v.Val()) },
		)
		if err := s.reg.Register(gauge); err != nil {
			panic(fmt.Sprintf("failed to export stat %q: %v", name, err))
		}
		s.exported = append(s.exported, gauge)
	}
	return v
}

// Close unregisters the Prometheus gauges of the set.
func (s *Set) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.exported {
		s.reg.Unregister(c)
	}
	s.exported = nil
}

// Collect returns the values at or above the level, in creation order.
func (s *Set) Collect(level Level) []UI {
	s.mu.Lock()
	defer s.mu.Unlock()
	period := time.Since(s.start)
	if period < time.Second {
		period = time.Second
	}
	var vals []*Val
	for _, v := range s.vals {
		if v.level >= level {
			vals = append(vals, v)
		}
	}
	sort.Slice(vals, func(i, j int) bool {
		return vals[i].order < vals[j].order
	})
	var res []UI
	for _, v := range vals {
		val := v.Val()
		res = append(res, UI{
			Name:  v.name,
			Desc:  v.desc,
			Level: v.level,
			Value: v.fmt(val, period),
			V:     val,
		})
	}
	return res
}

type Val struct {
	name    string
	desc    string
	level   Level
	order   uint64
	val     atomic.Uint64
	ext     func() int
	fmt     func(int, time.Duration) string
	hist    bool
	histMu  sync.Mutex
	histVal *gohistogram.NumericHistogram
	samples int
}

func (v *Val) Add(val int) {
	if v.ext != nil {
		panic(fmt.Sprintf("stat %v is in external mode", v.name))
	}
	if v.hist {
		v.histMu.Lock()
		if v.histVal == nil {
			v.histVal = gohistogram.NewHistogram(histogramBuckets)
		}
		v.histVal.Add(float64(val))
		v.samples++
		v.histMu.Unlock()
		return
	}
	v.val.Add(uint64(val))
}

// Since adds the number of milliseconds passed since start.
func (v *Val) Since(start time.Time) {
	v.Add(int(time.Since(start).Milliseconds()))
}

func (v *Val) Val() int {
	if v.ext != nil {
		return v.ext()
	}
	if v.hist {
		v.histMu.Lock()
		defer v.histMu.Unlock()
		if v.histVal == nil {
			return 0
		}
		return int(v.histVal.Mean())
	}
	return int(v.val.Load())
}

// Quantile returns the q-quantile of a distribution metric.
func (v *Val) Quantile(q float64) float64 {
	if !v.hist {
		panic(fmt.Sprintf("stat %v is not a distribution", v.name))
	}
	v.histMu.Lock()
	defer v.histMu.Unlock()
	if v.histVal == nil {
		return 0
	}
	return v.histVal.Quantile(q)
}

// Samples returns the number of samples added to a distribution metric.
func (v *Val) Samples() int {
	v.histMu.Lock()
	defer v.histMu.Unlock()
	return v.samples
}

func formatRate(v int, period time.Duration) string {
	secs := max(int(period.Seconds()), 1)
	if x := v / secs; x >= 10 {
		return fmt.Sprintf("%v (%v/sec)", v, x)
	}
	if x := v * 60 / secs; x >= 10 {
		return fmt.Sprintf("%v (%v/min)", v, x)
	}
	x := v * 60 * 60 / secs
	return fmt.Sprintf("%v (%v/hour)", v, x)
}

// Percent formats part as a percentage of total with 3 decimals, as in "12.500".
func Percent(part, total int) string {
	if total == 0 {
		return "0.000"
	}
	return strconv.FormatFloat(float64(part)*100/float64(total), 'f', 3, 64)
}
