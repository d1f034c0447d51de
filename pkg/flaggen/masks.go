// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package flaggen

// extensionBan disables extensions starting from some action.
// Bans accumulate: an Execute target inherits the Compile, Assemble and Link bans.
type extensionBan struct {
	from Action
	exts []string
	zvls []Zvl
}

var gccBans = []extensionBan{
	{
		from: Compile,
		exts: []string{
			"svade", "svadu", "xcvmem", "xsfcease", "xsfvfnrclipxfqf", "xsfvfwmaccqqq",
			"xsfvqmaccdod", "xsfvqmaccqoq", "xwchc", "zama16b",
		},
	},
	{
		// Not known to binutils yet.
		from: Assemble,
		exts: []string{"xtheadvector", "xtheadvdot", "zabha", "zcmop", "zimop"},
	},
	{
		from: Link,
		exts: []string{"xcvbi", "zcmt"},
	},
}

var llvmBans = []extensionBan{
	{
		// unsupported non-standard user-level extension
		from: Compile,
		exts: []string{"ssstrict", "xcvelw", "xtheadfmv", "xtheadint", "xtheadvector", "xtheadvdot"},
	},
	{
		// -no-integrated-as hands the assembly to GNU as.
		from: Assemble,
		exts: []string{
			"xcvbi", "xcvsimd", "xsfvcp", "xsfvfnrclipxfqf", "xsfvfwmaccqqq", "xsfvqmaccdod",
			"xsfvqmaccqoq", "xwchc", "zcmop", "zimop",
		},
	},
	{
		from: Link,
		exts: []string{"zcmt"},
	},
}

// Not emulated by QEMU.
var qemuBan = extensionBan{
	from: Execute,
	exts: []string{
		"ssstrict", "xcvalu", "xcvbi", "xcvbitmanip", "xcvelw", "xcvmac", "xcvmem", "xcvsimd",
		"xsfcease", "xsfvcp", "xsfvfnrclipxfqf", "xsfvfwmaccqqq", "xsfvqmaccdod", "xsfvqmaccqoq",
		"xwchc", "zvfh",
	},
	zvls: []Zvl{"zvl32b", "zvl64b", "zvl2048b", "zvl4096b", "zvl8192b", "zvl16384b", "zvl32768b", "zvl65536b"},
}

// Extensions that turn other extensions on during sanitization.
// If an implied extension is banned, the implying one is banned as well.
var impliedExtensions = map[string][]string{
	"zvksc":    {"zvks", "zvbc"},
	"zabha":    {"zaamo"},
	"zhinx":    {"zfinx"},
	"zdinx":    {"zfinx"},
	"zhinxmin": {"zfinx"},
}

type extensionMask struct {
	exts map[string]bool
	zvls map[Zvl]bool
}

var extensionMasks = buildMasks()

func unsupportedExtensions(compiler Compiler, action Action) extensionMask {
	if compiler.llvmLike() {
		compiler = Llvm
	}
	return extensionMasks[compiler][action]
}

func buildMasks() map[Compiler]map[Action]extensionMask {
	masks := make(map[Compiler]map[Action]extensionMask)
	for compiler, bans := range map[Compiler][]extensionBan{Gcc: gccBans, Llvm: llvmBans} {
		bans = append(append([]extensionBan{}, bans...), qemuBan)
		masks[compiler] = make(map[Action]extensionMask)
		for _, action := range Actions {
			mask := extensionMask{
				exts: make(map[string]bool),
				zvls: make(map[Zvl]bool),
			}
			for _, ban := range bans {
				if ban.from.stage() > action.stage() {
					continue
				}
				for _, ext := range ban.exts {
					extIndex(ext)
					mask.exts[ext] = true
				}
				for _, zvl := range ban.zvls {
					mask.zvls[zvl] = true
				}
			}
			closeMask(mask.exts)
			masks[compiler][action] = mask
		}
	}
	return masks
}

func closeMask(exts map[string]bool) {
	for changed := true; changed; {
		changed = false
		for ext, implied := range impliedExtensions {
			if exts[ext] {
				continue
			}
			for _, sub := range implied {
				if exts[sub] {
					exts[ext] = true
					changed = true
					break
				}
			}
		}
	}
}
