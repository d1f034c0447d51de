// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package minimize removes elements of a slice that are not needed for a predicate to hold.
// The reducer uses it to drop compiler flag tokens that do not contribute to a failure.
package minimize

import (
	"fmt"
	"math"
	"strings"
)

type Config[T any] struct {
	// Pred reports whether the candidate still has the property (e.g. the crash reproduces).
	// It is assumed to hold for the original slice.
	Pred func([]T) (bool, error)
	// MaxSteps bounds the number of Pred calls, 0 means no limit.
	// Once the limit is hit the remaining chunks are kept.
	MaxSteps int
	Logf     func(string, ...any)
}

// Slice returns a subsequence of slice for which Pred still holds.
// The slice is split into chunks that are dropped if Pred holds without them,
// the remaining chunks are split further until they are single elements.
// Pred is called O(|result|*log2(|slice|)) times.
func Slice[T any](cfg Config[T], slice []T) ([]T, error) {
	if cfg.Logf == nil {
		cfg.Logf = func(string, ...any) {}
	}
	b := &bisector[T]{Config: cfg}
	if len(slice) != 0 {
		b.chunks = []*chunk[T]{{elems: slice}}
	}
	parts := b.firstSplit(len(slice))
	for first := true; !b.done(); first = false {
		if err := b.split(parts, !first); err != nil {
			return nil, err
		}
		parts = 2
	}
	return join(b.chunks, nil, nil), nil
}

type bisector[T any] struct {
	Config[T]
	chunks []*chunk[T]
	steps  int
}

type chunk[T any] struct {
	elems []T
	// needed chunks can't be split any further.
	needed bool
}

// firstSplit splits a long slice into more parts when the step budget is small.
func (b *bisector[T]) firstSplit(size int) int {
	if b.MaxSteps > 0 && math.Log2(float64(size)) > float64(b.MaxSteps) {
		return b.MaxSteps
	}
	return 3
}

// split splits every chunk into parts and keeps only the parts Pred can't do without.
// If known is set, each split chunk is already known to contain a needed element,
// so the last part does not need to be tested when all the others were dropped.
func (b *bisector[T]) split(parts int, known bool) error {
	b.Logf("splitting %v", b)
	var res []*chunk[T]
	for i, c := range b.chunks {
		if c.needed {
			res = append(res, c)
			continue
		}
		pieces := cut(c.elems, parts)
		if len(pieces) == 1 && known {
			c.needed = true
			res = append(res, c)
			continue
		}
		kept := false
		for j, piece := range pieces {
			last := j == len(pieces)-1
			if !last || kept || !known {
				var rest []T
				for _, p := range pieces[j+1:] {
					rest = append(rest, p...)
				}
				ok, err := b.try(join(res, rest, b.chunks[i+1:]))
				if err != nil {
					return err
				}
				if ok {
					b.Logf("dropped %v elements", len(piece))
					continue
				}
			}
			kept = true
			res = append(res, &chunk[T]{elems: piece})
		}
	}
	b.chunks = res
	return nil
}

func (b *bisector[T]) try(candidate []T) (bool, error) {
	if b.MaxSteps > 0 && b.steps >= b.MaxSteps {
		return false, nil
	}
	b.steps++
	return b.Pred(candidate)
}

func (b *bisector[T]) done() bool {
	if b.MaxSteps > 0 && b.steps >= b.MaxSteps {
		return true
	}
	for _, c := range b.chunks {
		if !c.needed {
			return false
		}
	}
	return true
}

func (b *bisector[T]) String() string {
	var parts []string
	for _, c := range b.chunks {
		mark := ""
		if c.needed {
			mark = "*"
		}
		parts = append(parts, fmt.Sprintf("%v%v", len(c.elems), mark))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func join[T any](before []*chunk[T], mid []T, after []*chunk[T]) []T {
	var res []T
	for _, c := range before {
		res = append(res, c.elems...)
	}
	res = append(res, mid...)
	for _, c := range after {
		res = append(res, c.elems...)
	}
	return res
}

func cut[T any](elems []T, parts int) [][]T {
	size := max((len(elems)+parts-1)/parts, 1)
	var res [][]T
	for i := 0; i < len(elems); i += size {
		res = append(res, elems[i:min(i+size, len(elems))])
	}
	return res
}
