// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package flaggen

import (
	"fmt"
)

// Sanitize coerces the ISA string into one accepted by the target toolchain.
// It is idempotent: the steps are repeated until the record stops changing.
func (m *March) Sanitize(t Target) {
	for iter := 0; ; iter++ {
		if iter == maxSanitizeIters {
			panic(fmt.Sprintf("march sanitizer does not converge: %v", m))
		}
		prev := m.Clone()
		m.sanitizeOnce(t)
		if m.Equal(prev) {
			return
		}
	}
}

func (m *March) sanitizeOnce(t Target) {
	m.pinAbi(t)
	m.maskUnsupported(t)
	if m.Abi.embedded() {
		// The E ABIs do not support the D extension.
		m.Set("g", false)
		m.Set("d", false)
	}

	m.Set("g", m.Has("g") || allSet(m, gExpansion))
	if m.Has("g") {
		for _, ext := range gExpansion {
			m.Set(ext, false)
		}
	}

	if m.Abi != AbiIlp32e {
		m.Set("i", !m.Has("g"))
	}
	m.Set("e", !m.Has("i") && !m.Has("g"))

	for ext, implied := range shorthands {
		if m.Has(ext) {
			for _, sub := range implied {
				m.Set(sub, true)
			}
		}
	}

	if !m.Has("g") {
		switch m.Abi {
		case AbiIlp32d, AbiIlp32f, AbiLp64d:
			m.Set("d", true)
		}
		if m.Abi.singleFloat() {
			m.Set("f", true)
		}
	}

	m.Set("v", m.Has("v") || m.HasAny(vectorExtensions...) || m.Zvl != NoZvl)
	if t.Compiler.llvmLike() {
		m.Set("v", m.Has("v") || m.HasAny(vectorCryptoExtensions...))
	}
	if m.Has("v") {
		m.Set("xtheadvector", false)
	}
	m.Set("xtheadvdot", m.Has("xtheadvdot") && m.Has("xtheadvector"))

	if m.HasAny(floatExtensions...) {
		for _, ext := range inxExtensions {
			m.Set(ext, false)
		}
	}
	if m.HasAny("zhinx", "zdinx", "zhinxmin") {
		m.Set("zfinx", true)
	}

	if !m.RV32() {
		m.Set("zcf", false)
	}
	if m.HasAny("c", "zcd") {
		m.Set("zcmp", false)
		m.Set("zcmt", false)
		m.Set("zce", false)
	}

	if m.HasAny("c", "zce", "zcb", "d", "v", "g", "xtheadvdot") ||
		t.Compiler.llvmLike() && !m.RV32() {
		m.Set("xwchc", false)
	}

	if t.Compiler == Gcc {
		m.Set("m", (m.Has("m") || m.ImpliesVector()) && !m.Has("g"))
		m.Set("xtheadmemidx", false)
	}

	if t.Compiler.llvmLike() && m.Has("zabha") {
		m.Set("zaamo", true)
	}
}

func (m *March) pinAbi(t Target) {
	if t.Abi != "" {
		m.Abi = t.Abi
		return
	}
	if t.RV64Only {
		m.Abi = m.Abi.rv64()
	}
	if t.Compiler.llvmLike() && m.Abi.embedded() {
		m.Abi = AbiLp64d
	}
	linking := t.Action == Link || t.Action == Execute
	if t.FlagSet == FlagSetMarch && linking {
		m.Abi = AbiLp64d
	}
	if linking && (m.Abi.singleFloat() || m.Abi.embedded()) {
		m.Abi = AbiLp64d
	}
}

func (m *March) maskUnsupported(t Target) {
	mask := unsupportedExtensions(t.Compiler, t.Action)
	for ext := range mask.exts {
		m.Set(ext, false)
	}
	if mask.zvls[m.Zvl] {
		m.Zvl = NoZvl
	}
}

func allSet(m *March, exts []string) bool {
	for _, ext := range exts {
		if !m.Has(ext) {
			return false
		}
	}
	return true
}

// Extensions that G stands for.
var gExpansion = []string{"i", "m", "a", "f", "d", "zifencei", "zicsr"}

// Extensions that require other extensions to be spelled out as well.
var shorthands = map[string][]string{
	"zvksc": {"zvks", "zvbc"},
}

var vectorExtensions = []string{
	"zvbb", "zvbc", "zvkned", "zve32f", "zve32x", "zve64d", "zve64f", "zve64x",
	"xsfvcp", "zvfh", "zvfhmin", "zvfbfmin", "zvfbfwma", "zvkb", "zvkg", "zvkn", "zvknc",
	"zvknha", "zvknhb", "zvkng", "zvkt", "zvks", "zvksg", "zvksed", "zvksh",
}

var vectorCryptoExtensions = []string{
	"zvkb", "zvkg", "zvkn", "zvknc", "zvkned", "zvkng", "zvknha", "zvknhb",
	"zvks", "zvksc", "zvksed", "zvksg", "zvksh", "zvkt",
}

var floatExtensions = []string{
	"f", "d", "zfh", "zfhmin", "zvfh", "zvfhmin", "zvfbfmin", "zvfbfwma", "zfbfmin",
	"zcf", "zcd", "xsfvfnrclipxfqf", "xsfvfwmaccqqq", "zfa", "g", "h", "v",
}

var inxExtensions = []string{"zfinx", "zhinx", "zhinxmin", "zdinx"}
