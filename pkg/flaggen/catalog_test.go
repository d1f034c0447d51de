// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package flaggen

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/rvfuzz/rvfuzz/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var catalogs = []*Catalog{GccBasic, GccAll, LlvmBasic, LlvmAll}

func allOn(cat *Catalog) *Record {
	rec := cat.New()
	for _, opt := range cat.Options {
		switch opt.Kind {
		case KindToggle:
			rec.SetToggle(opt.Name, ToggleOn)
		case KindGhost:
			rec.SetGhost(opt.Name, GhostOn)
		case KindEnum:
			rec.SetEnum(opt.Name, opt.Values[0])
		}
	}
	return rec
}

func allOff(cat *Catalog) *Record {
	rec := cat.New()
	for _, opt := range cat.Options {
		if opt.Kind == KindToggle {
			rec.SetToggle(opt.Name, ToggleOff)
		}
	}
	return rec
}

func TestCatalogDefinitions(t *testing.T) {
	for _, cat := range catalogs {
		for _, opt := range cat.Options {
			assert.NotEmpty(t, opt.Name)
			assert.False(t, strings.Contains(opt.Name, "-"), opt.Name)
		}
		// Every name referenced by the rules must be in the catalog,
		// a bad reference panics when the rule runs.
		assert.NotPanics(t, func() {
			allOn(cat).Sanitize()
			allOff(cat).Sanitize()
			cat.New().Sanitize()
		}, cat.Name)
		assert.True(t, cat.Has("static_opt"), cat.Name)
	}
}

// Every option value renders to a distinct flag, so rendering can be inverted.
func TestRenderingIsUnique(t *testing.T) {
	for _, cat := range catalogs {
		parser := newFlagParser(cat)
		assert.NotEmpty(t, parser.flags, cat.Name)
	}
}

func TestSanitizeFixpoint(t *testing.T) {
	rnd := rand.New(testutil.RandSource(t))
	for _, cat := range catalogs {
		for i := 0; i < testutil.IterCount(); i++ {
			rec := cat.Generate(RandomEntropy(rnd))
			rec.Sanitize()
			again := rec.Clone()
			again.Sanitize()
			require.True(t, rec.Equal(again), "%v:\n%v\n%v", cat.Name, rec, again)
		}
	}
}

func TestRenderRoundTrip(t *testing.T) {
	rnd := rand.New(testutil.RandSource(t))
	for _, cat := range catalogs {
		parser := newFlagParser(cat)
		for i := 0; i < testutil.IterCount(); i++ {
			rec := cat.Generate(RandomEntropy(rnd))
			rec.Sanitize()
			parsed := parser.parse(t, rec.String())
			parsed.Sanitize()
			require.True(t, rec.Equal(parsed), "%v:\n%v\n%v", cat.Name, rec, parsed)
		}
	}
}

func TestRenderDeterministic(t *testing.T) {
	rnd := rand.New(testutil.RandSource(t))
	for _, cat := range catalogs {
		rec := cat.Generate(RandomEntropy(rnd))
		rec.Sanitize()
		assert.Equal(t, rec.String(), rec.Clone().String())
		// Flags follow catalog order.
		parser := newFlagParser(cat)
		last := -1
		for _, flag := range rec.Flags() {
			if flag == "-fuse-ld=lld" {
				continue
			}
			idx := parser.flags[flag].idx
			assert.Greater(t, idx, last, flag)
			last = idx
		}
	}
}

func TestRecordAccessors(t *testing.T) {
	rec := GccAll.New()
	assert.Equal(t, ToggleHidden, rec.Toggle("fdce"))
	rec.SetToggle("fdce", ToggleOff)
	assert.Equal(t, "-fno-dce", rec.String())
	assert.False(t, rec.On("fdce"))
	rec.SetEnum("mtune", "size")
	assert.Equal(t, "size", rec.Enum("mtune"))
	assert.Equal(t, "-fno-dce -mtune=size", rec.String())
	rec.Hide("fdce")
	rec.SetEnum("mtune", "")
	assert.Equal(t, "", rec.String())
	assert.Panics(t, func() { rec.Toggle("no_such_option") })
	assert.Panics(t, func() { rec.Ghost("fdce") })
	assert.Panics(t, func() { rec.SetEnum("mtune", "no_such_cpu") })
}

type parsedFlag struct {
	idx int
	val uint8
}

type flagParser struct {
	cat   *Catalog
	flags map[string]parsedFlag
}

func newFlagParser(cat *Catalog) *flagParser {
	p := &flagParser{
		cat:   cat,
		flags: make(map[string]parsedFlag),
	}
	add := func(flag string, idx int, val uint8) {
		if prev, ok := p.flags[flag]; ok {
			panic(flag + " is rendered by " + cat.Options[prev.idx].Name + " and " + cat.Options[idx].Name)
		}
		p.flags[flag] = parsedFlag{idx, val}
	}
	for i, opt := range cat.Options {
		switch opt.Kind {
		case KindToggle:
			add(ToggleOn.Render(opt.Name), i, uint8(ToggleOn))
			add(ToggleOff.Render(opt.Name), i, uint8(ToggleOff))
		case KindGhost:
			add(GhostOn.Render(opt.Name), i, uint8(GhostOn))
		case KindEnum:
			for j, v := range opt.Values {
				add(renderEnum(opt.Name, v), i, uint8(j+1))
			}
		}
	}
	return p
}

func (p *flagParser) parse(t *testing.T, flags string) *Record {
	rec := p.cat.New()
	for _, flag := range strings.Fields(flags) {
		if flag == "-fuse-ld=lld" && p.cat.ltoUsesLld {
			continue
		}
		parsed, ok := p.flags[flag]
		require.True(t, ok, "unknown flag %v", flag)
		rec.vals[parsed.idx] = parsed.val
	}
	return rec
}
