// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package flaggen generates random RISC-V compiler command lines that the target compiler accepts.
// A record (ISA string and/or a catalog of options) is drawn from random bytes,
// sanitized against known compiler restrictions and rendered.
package flaggen

import (
	"fmt"
	"math/rand"
	"strings"
)

type Compiler string

const (
	Gcc   Compiler = "Gcc"
	Llvm  Compiler = "Llvm"
	Rustc Compiler = "Rustc"
)

var Compilers = []Compiler{Gcc, Llvm, Rustc}

// llvmLike reports whether the compiler uses the LLVM backend.
func (c Compiler) llvmLike() bool {
	return c == Llvm || c == Rustc
}

type Action string

const (
	Compile  Action = "Compile"
	Assemble Action = "Assemble"
	Link     Action = "Link"
	Execute  Action = "Execute"
)

var Actions = []Action{Compile, Assemble, Link, Execute}

func (a Action) stage() int {
	for i, action := range Actions {
		if a == action {
			return i
		}
	}
	panic(fmt.Sprintf("unknown action %q", string(a)))
}

type FlagSet string

const (
	FlagSetMarch              FlagSet = "March"
	FlagSetMarchAndAllFlags   FlagSet = "MarchAndAllFlags"
	FlagSetMarchAndBasicFlags FlagSet = "MarchAndBasicFlags"
	FlagSetAllFlags           FlagSet = "AllFlags"
	FlagSetBasicFlags         FlagSet = "BasicFlags"
)

var FlagSets = []FlagSet{
	FlagSetMarch, FlagSetMarchAndAllFlags, FlagSetMarchAndBasicFlags, FlagSetAllFlags, FlagSetBasicFlags,
}

func (fs FlagSet) hasMarch() bool {
	return fs == FlagSetMarch || fs == FlagSetMarchAndAllFlags || fs == FlagSetMarchAndBasicFlags
}

func (fs FlagSet) catalog(compiler Compiler) *Catalog {
	switch fs {
	case FlagSetMarchAndAllFlags, FlagSetAllFlags:
		if compiler == Gcc {
			return GccAll
		}
		return LlvmAll
	case FlagSetMarchAndBasicFlags, FlagSetBasicFlags:
		if compiler == Gcc {
			return GccBasic
		}
		return LlvmBasic
	}
	return nil
}

// Parse* accept the names case-insensitively, they are used for command line arguments.

func ParseCompiler(s string) (Compiler, error) {
	for _, v := range Compilers {
		if strings.EqualFold(s, string(v)) {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown compiler %q", s)
}

func ParseAction(s string) (Action, error) {
	for _, v := range Actions {
		if strings.EqualFold(s, string(v)) {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", s)
}

func ParseFlagSet(s string) (FlagSet, error) {
	for _, v := range FlagSets {
		if strings.EqualFold(s, string(v)) {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown flag set %q", s)
}

// Target describes what the generated flags are used for.
type Target struct {
	Compiler Compiler
	Action   Action
	FlagSet  FlagSet
	// RV64Only restricts the ISA to 64-bit targets.
	RV64Only bool
	// Abi pins the ABI when set.
	Abi Abi
}

func (t Target) validate() error {
	switch t.Compiler {
	case Gcc, Llvm, Rustc:
	default:
		return fmt.Errorf("unknown compiler %q", string(t.Compiler))
	}
	switch t.Action {
	case Compile, Assemble, Link, Execute:
	default:
		return fmt.Errorf("unknown action %q", string(t.Action))
	}
	if !t.FlagSet.hasMarch() && t.FlagSet.catalog(t.Compiler) == nil {
		return fmt.Errorf("unknown flag set %q", string(t.FlagSet))
	}
	if t.Abi != "" && !t.Abi.Valid() {
		return fmt.Errorf("unknown abi %q", string(t.Abi))
	}
	return nil
}

// Flags is one generated command line.
// March is nil for flag sets without an ISA string, Options is nil for the March flag set.
type Flags struct {
	March   *March
	Options *Record
}

// Instantiate draws the records selected by the target from the entropy source.
func Instantiate(t Target, ent *Entropy) *Flags {
	f := new(Flags)
	if cat := t.FlagSet.catalog(t.Compiler); cat != nil {
		f.Options = cat.Generate(ent)
	}
	if t.FlagSet.hasMarch() {
		f.March = GenerateMarch(ent)
	}
	return f
}

// Sanitize runs the option rules, the ISA sanitizer and then the rules that tie both together.
// The composite rules may re-enable extensions (mdiv sets m), so the sequence is repeated
// until the flags stop changing.
func (f *Flags) Sanitize(t Target) {
	for iter := 0; ; iter++ {
		if iter == maxSanitizeIters {
			panic(fmt.Sprintf("flags sanitizer does not converge: %v", f))
		}
		prev := f.Clone()
		if f.Options != nil {
			f.Options.Sanitize()
		}
		if f.March != nil {
			f.March.Sanitize(t)
		}
		f.sanitizeComposite(t)
		if f.Equal(prev) {
			return
		}
	}
}

func (f *Flags) sanitizeComposite(t Target) {
	m, rec := f.March, f.Options
	if rec != nil && rec.Catalog() == LlvmBasic && (m == nil || !m.Has("v")) {
		rec.SetEnum("mrvv_vector_bits", "")
	}
	if m == nil {
		return
	}
	if t.Compiler.llvmLike() {
		// invalid arch name, unsupported non-standard user-level extension
		m.Set("xtheadfmv", false)
		m.Set("xtheadint", false)
	}
	if rec == nil {
		return
	}
	// RISC-V vector has no big-endian support.
	if m.ImpliesVector() && rec.Has("mbig_endian") {
		rec.SetGhost("mbig_endian", GhostHidden)
	}
	if t.Compiler.llvmLike() && m.Has("ztso") && rec.Has("fintegrated_as") {
		rec.SetToggle("fintegrated_as", ToggleHidden)
		rec.SetGhost("menable_experimental_extensions", GhostOn)
	}
	if m.Abi != AbiLp64d && rec.Has("static_opt") {
		rec.SetGhost("static_opt", GhostOn)
	}
	if rec.Has("mdiv") && rec.Toggle("mdiv") == ToggleOn {
		m.Set("m", !m.Has("g"))
	}
}

func (f *Flags) Clone() *Flags {
	clone := new(Flags)
	if f.March != nil {
		clone.March = f.March.Clone()
	}
	if f.Options != nil {
		clone.Options = f.Options.Clone()
	}
	return clone
}

func (f *Flags) Equal(other *Flags) bool {
	if (f.March == nil) != (other.March == nil) || (f.Options == nil) != (other.Options == nil) {
		return false
	}
	if f.March != nil && !f.March.Equal(other.March) {
		return false
	}
	return f.Options == nil || f.Options.Equal(other.Options)
}

func (f *Flags) String() string {
	var march, opts string
	if f.March != nil {
		march = f.March.String()
	}
	if f.Options != nil {
		opts = f.Options.String()
	}
	return joinFlags(march, opts)
}

// Generate returns sanitized flags for the target.
func Generate(rnd *rand.Rand, t Target) (*Flags, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	f := Instantiate(t, RandomEntropy(rnd))
	f.Sanitize(t)
	if t.Abi != "" && f.March != nil && f.March.Abi != t.Abi {
		panic(fmt.Sprintf("pinned abi %v turned into %v", t.Abi, f.March.Abi))
	}
	return f, nil
}

// ArbitraryFlags returns a random command line fragment accepted by the target compiler.
func ArbitraryFlags(rnd *rand.Rand, t Target) (string, error) {
	f, err := Generate(rnd, t)
	if err != nil {
		return "", err
	}
	return f.String(), nil
}

// ArbitraryFlagsCompatible returns count command lines whose objects can be linked together.
// All of them share the ABI of the first one.
func ArbitraryFlagsCompatible(rnd *rand.Rand, t Target, count int) ([]string, error) {
	if count < 1 {
		return nil, fmt.Errorf("bad flag set count %v", count)
	}
	first, err := Generate(rnd, t)
	if err != nil {
		return nil, err
	}
	res := []string{first.String()}
	if first.March != nil {
		t.Abi = first.March.Abi
	}
	for len(res) < count {
		f, err := Generate(rnd, t)
		if err != nil {
			return nil, err
		}
		res = append(res, f.String())
	}
	return res, nil
}
