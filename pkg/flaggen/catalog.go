// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package flaggen

import (
	"fmt"
)

// Catalog is an ordered list of options accepted by one compiler in one scope.
// Records are rendered in catalog order.
type Catalog struct {
	Name    string
	Options []Option
	index   map[string]int
	rules   []rule
	// Whether -flto=On requires linking with lld.
	ltoUsesLld bool
}

func newCatalog(name string, rules []rule, groups ...[]Option) *Catalog {
	cat := &Catalog{
		Name:  name,
		index: make(map[string]int),
		rules: rules,
	}
	for _, group := range groups {
		for _, opt := range group {
			if _, ok := cat.index[opt.Name]; ok {
				panic(fmt.Sprintf("catalog %v: duplicate option %v", name, opt.Name))
			}
			if opt.Kind == KindEnum && len(opt.Values) == 0 {
				panic(fmt.Sprintf("catalog %v: enum %v has no values", name, opt.Name))
			}
			cat.index[opt.Name] = len(cat.Options)
			cat.Options = append(cat.Options, opt)
		}
	}
	return cat
}

func (cat *Catalog) Has(name string) bool {
	_, ok := cat.index[name]
	return ok
}

func (cat *Catalog) lookup(name string, kind Kind) int {
	idx, ok := cat.index[name]
	if !ok {
		panic(fmt.Sprintf("catalog %v: no option %v", cat.Name, name))
	}
	if cat.Options[idx].Kind != kind {
		panic(fmt.Sprintf("catalog %v: option %v is a %v, not a %v",
			cat.Name, name, cat.Options[idx].Kind, kind))
	}
	return idx
}

// New returns a record with every option hidden.
func (cat *Catalog) New() *Record {
	return &Record{
		cat:  cat,
		vals: make([]uint8, len(cat.Options)),
	}
}

// Generate draws every option of the catalog from the entropy source.
func (cat *Catalog) Generate(ent *Entropy) *Record {
	rec := cat.New()
	for i, opt := range cat.Options {
		switch opt.Kind {
		case KindToggle:
			rec.vals[i] = uint8(ent.Choose(3))
		case KindGhost:
			rec.vals[i] = uint8(ent.Choose(2))
		case KindEnum:
			if ent.Bool() {
				rec.vals[i] = uint8(1 + ent.Choose(len(opt.Values)))
			}
		}
	}
	return rec
}

// Record holds one value per catalog option.
// Toggles store Toggle values, ghosts store Ghost values, enums store 0 (unset)
// or 1+index of the chosen variant.
type Record struct {
	cat  *Catalog
	vals []uint8
}

func (rec *Record) Catalog() *Catalog {
	return rec.cat
}

func (rec *Record) Has(name string) bool {
	return rec.cat.Has(name)
}

func (rec *Record) Toggle(name string) Toggle {
	return Toggle(rec.vals[rec.cat.lookup(name, KindToggle)])
}

func (rec *Record) SetToggle(name string, v Toggle) {
	rec.vals[rec.cat.lookup(name, KindToggle)] = uint8(v)
}

func (rec *Record) Ghost(name string) Ghost {
	return Ghost(rec.vals[rec.cat.lookup(name, KindGhost)])
}

func (rec *Record) SetGhost(name string, v Ghost) {
	rec.vals[rec.cat.lookup(name, KindGhost)] = uint8(v)
}

// Enum returns the chosen variant or "" if the option is unset.
func (rec *Record) Enum(name string) string {
	idx := rec.cat.lookup(name, KindEnum)
	if rec.vals[idx] == 0 {
		return ""
	}
	return rec.cat.Options[idx].Values[rec.vals[idx]-1]
}

// SetEnum sets the variant, "" unsets the option.
func (rec *Record) SetEnum(name, value string) {
	idx := rec.cat.lookup(name, KindEnum)
	if value == "" {
		rec.vals[idx] = 0
		return
	}
	for i, v := range rec.cat.Options[idx].Values {
		if v == value {
			rec.vals[idx] = uint8(i + 1)
			return
		}
	}
	panic(fmt.Sprintf("catalog %v: %v is not a variant of %v", rec.cat.Name, value, name))
}

// On reports whether a toggle or ghost option is given in its positive form.
func (rec *Record) On(name string) bool {
	idx, ok := rec.cat.index[name]
	if !ok {
		panic(fmt.Sprintf("catalog %v: no option %v", rec.cat.Name, name))
	}
	switch rec.cat.Options[idx].Kind {
	case KindToggle:
		return Toggle(rec.vals[idx]) == ToggleOn
	case KindGhost:
		return Ghost(rec.vals[idx]) == GhostOn
	}
	panic(fmt.Sprintf("catalog %v: option %v is an enum", rec.cat.Name, name))
}

// Hide removes the option from the command line whatever its kind.
func (rec *Record) Hide(name string) {
	idx, ok := rec.cat.index[name]
	if !ok {
		panic(fmt.Sprintf("catalog %v: no option %v", rec.cat.Name, name))
	}
	rec.vals[idx] = 0
}

func (rec *Record) Clone() *Record {
	return &Record{
		cat:  rec.cat,
		vals: append([]uint8(nil), rec.vals...),
	}
}

func (rec *Record) Equal(other *Record) bool {
	if rec.cat != other.cat || len(rec.vals) != len(other.vals) {
		return false
	}
	for i := range rec.vals {
		if rec.vals[i] != other.vals[i] {
			return false
		}
	}
	return true
}

// Sanitize applies the catalog rules in declaration order until nothing changes.
func (rec *Record) Sanitize() {
	for iter := 0; ; iter++ {
		if iter == maxSanitizeIters {
			panic(fmt.Sprintf("catalog %v: rules do not converge", rec.cat.Name))
		}
		prev := rec.Clone()
		for _, r := range rec.cat.rules {
			if r.when(rec) {
				r.then(rec)
			}
		}
		if rec.Equal(prev) {
			return
		}
	}
}

// Flags returns the rendered non-empty flags in catalog order.
func (rec *Record) Flags() []string {
	var flags []string
	for i, opt := range rec.cat.Options {
		var flag string
		switch opt.Kind {
		case KindToggle:
			flag = Toggle(rec.vals[i]).Render(opt.Name)
		case KindGhost:
			flag = Ghost(rec.vals[i]).Render(opt.Name)
		case KindEnum:
			if rec.vals[i] != 0 {
				flag = renderEnum(opt.Name, opt.Values[rec.vals[i]-1])
			}
		}
		if flag != "" {
			flags = append(flags, flag)
		}
	}
	if rec.cat.ltoUsesLld && rec.Has("flto") && rec.On("flto") {
		flags = append(flags, "-fuse-ld=lld")
	}
	return flags
}

func (rec *Record) String() string {
	return joinFlags(rec.Flags()...)
}

const maxSanitizeIters = 16
