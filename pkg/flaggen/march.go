// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package flaggen

import (
	"fmt"
	"strings"
)

type Abi string

const (
	AbiIlp32  Abi = "ilp32"
	AbiIlp32d Abi = "ilp32d"
	AbiIlp32e Abi = "ilp32e"
	AbiIlp32f Abi = "ilp32f"
	AbiLp64   Abi = "lp64"
	AbiLp64d  Abi = "lp64d"
	AbiLp64e  Abi = "lp64e"
	AbiLp64f  Abi = "lp64f"
)

var Abis = []Abi{AbiIlp32, AbiIlp32d, AbiIlp32e, AbiIlp32f, AbiLp64, AbiLp64d, AbiLp64e, AbiLp64f}

func (abi Abi) RV32() bool {
	return strings.HasPrefix(string(abi), "ilp32")
}

func (abi Abi) Valid() bool {
	for _, a := range Abis {
		if a == abi {
			return true
		}
	}
	return false
}

// rv64 returns the 64-bit ABI with the same floating point convention.
func (abi Abi) rv64() Abi {
	if abi.RV32() {
		return Abi("lp64" + strings.TrimPrefix(string(abi), "ilp32"))
	}
	return abi
}

func (abi Abi) embedded() bool {
	return abi == AbiIlp32e || abi == AbiLp64e
}

func (abi Abi) singleFloat() bool {
	return abi == AbiIlp32f || abi == AbiLp64f
}

// Zvl is the minimal vector length extension, NoZvl omits it.
type Zvl string

const NoZvl Zvl = "nozvl"

var Zvls = []Zvl{
	"zvl32b", "zvl64b", "zvl128b", "zvl256b", "zvl512b", "zvl1024b", "zvl2048b",
	"zvl4096b", "zvl8192b", "zvl16384b", "zvl32768b", "zvl65536b", NoZvl,
}

// Vendor is the vendor family of the record. It does not affect rendering.
type Vendor string

var Vendors = []Vendor{"Nil", "Xthead", "Xsifive", "Xventana", "Xcorev", "Xw"}

// Single letter extensions in canonical order.
var baseExtensions = []string{"g", "i", "e", "m", "a", "f", "d", "c", "b", "v", "h"}

// Multi-letter extensions, sorted.
var multiExtensions = []string{
	"smaia",
	"smepmp",
	"smstateen",
	"ssaia",
	"sscofpmf",
	"ssstateen",
	"ssstrict",
	"sstc",
	"svade",
	"svadu",
	"svinval",
	"svnapot",
	"svpbmt",
	"xcvalu",
	"xcvbi",
	"xcvbitmanip",
	"xcvelw",
	"xcvmac",
	"xcvmem",
	"xcvsimd",
	"xsfcease",
	"xsfvcp",
	"xsfvfnrclipxfqf",
	"xsfvfwmaccqqq",
	"xsfvqmaccdod",
	"xsfvqmaccqoq",
	"xtheadba",
	"xtheadbb",
	"xtheadbs",
	"xtheadcmo",
	"xtheadcondmov",
	"xtheadfmemidx",
	"xtheadfmv",
	"xtheadint",
	"xtheadmac",
	"xtheadmemidx",
	"xtheadmempair",
	"xtheadsync",
	"xtheadvdot",
	"xtheadvector",
	"xventanacondops",
	"xwchc",
	"zaamo",
	"zabha",
	"zacas",
	"zalrsc",
	"zama16b",
	"zawrs",
	"zba",
	"zbb",
	"zbc",
	"zbkb",
	"zbkc",
	"zbkx",
	"zbs",
	"zca",
	"zcb",
	"zcd",
	"zce",
	"zcf",
	"zcmop",
	"zcmp",
	"zcmt",
	"zdinx",
	"zfa",
	"zfbfmin",
	"zfh",
	"zfhmin",
	"zfinx",
	"zhinx",
	"zhinxmin",
	"zic64b",
	"zicbom",
	"zicbop",
	"zicboz",
	"ziccamoa",
	"ziccif",
	"zicclsm",
	"ziccrse",
	"zicntr",
	"zicond",
	"zicsr",
	"zifencei",
	"zihintntl",
	"zihintpause",
	"zihpm",
	"zimop",
	"zk",
	"zkn",
	"zknd",
	"zkne",
	"zknh",
	"zkr",
	"zks",
	"zksed",
	"zksh",
	"zkt",
	"zmmul",
	"ztso",
	"zvbb",
	"zvbc",
	"zve32f",
	"zve32x",
	"zve64d",
	"zve64f",
	"zve64x",
	"zvfbfmin",
	"zvfbfwma",
	"zvfh",
	"zvfhmin",
	"zvkb",
	"zvkg",
	"zvkn",
	"zvknc",
	"zvkned",
	"zvkng",
	"zvknha",
	"zvknhb",
	"zvks",
	"zvksc",
	"zvksed",
	"zvksg",
	"zvksh",
	"zvkt",
}

var (
	extensions     = append(append([]string{}, baseExtensions...), multiExtensions...)
	extensionIndex = func() map[string]int {
		m := make(map[string]int)
		for i, ext := range extensions {
			m[ext] = i
		}
		return m
	}()
)

// March is a -march/-mabi pair.
type March struct {
	Abi    Abi
	Zvl    Zvl
	Vendor Vendor
	exts   []bool
}

func NewMarch(abi Abi) *March {
	return &March{
		Abi:    abi,
		Zvl:    NoZvl,
		Vendor: Vendors[0],
		exts:   make([]bool, len(extensions)),
	}
}

func GenerateMarch(ent *Entropy) *March {
	m := NewMarch(Abis[ent.Choose(len(Abis))])
	for i := range m.exts {
		m.exts[i] = ent.Bool()
	}
	m.Zvl = Zvls[ent.Choose(len(Zvls))]
	m.Vendor = Vendors[ent.Choose(len(Vendors))]
	return m
}

func extIndex(ext string) int {
	idx, ok := extensionIndex[ext]
	if !ok {
		panic(fmt.Sprintf("unknown extension %q", ext))
	}
	return idx
}

func (m *March) Has(ext string) bool {
	return m.exts[extIndex(ext)]
}

func (m *March) Set(ext string, v bool) {
	m.exts[extIndex(ext)] = v
}

func (m *March) HasAny(exts ...string) bool {
	for _, ext := range exts {
		if m.Has(ext) {
			return true
		}
	}
	return false
}

func (m *March) RV32() bool {
	return m.Abi.RV32()
}

func (m *March) Clone() *March {
	clone := *m
	clone.exts = append([]bool(nil), m.exts...)
	return &clone
}

func (m *March) Equal(other *March) bool {
	if m.Abi != other.Abi || m.Zvl != other.Zvl || m.Vendor != other.Vendor {
		return false
	}
	for i := range m.exts {
		if m.exts[i] != other.exts[i] {
			return false
		}
	}
	return true
}

// ImpliesVector reports whether the ISA string enables vector instructions in any form.
func (m *March) ImpliesVector() bool {
	return m.HasAny(vectorUsers...)
}

var vectorUsers = []string{
	"v", "xsfvcp", "zvfh", "zvkb", "zvfhmin", "zvfbfmin", "zvfbfwma", "zvkg", "zvkn", "zvknc",
	"zvknha", "zvknhb", "zvkng", "zvkt", "zvks", "zvksg", "zvksed", "zvksh", "xtheadvector", "xtheadvdot",
}

func (m *March) String() string {
	var b strings.Builder
	if m.RV32() {
		b.WriteString("-march=rv32")
	} else {
		b.WriteString("-march=rv64")
	}
	for i, ext := range extensions {
		if !m.exts[i] {
			continue
		}
		if len(ext) != 1 {
			b.WriteByte('_')
		}
		b.WriteString(ext)
	}
	if m.Zvl != NoZvl {
		b.WriteByte('_')
		b.WriteString(string(m.Zvl))
	}
	b.WriteString(" -mabi=")
	b.WriteString(string(m.Abi))
	return b.String()
}
