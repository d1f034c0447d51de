// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package triage

import (
	"bytes"

	"github.com/rvfuzz/rvfuzz/pkg/failinfo"
)

// iceSignature recognizes a crash kind in compiler stderr.
// classify substrings must all be present to categorize a new crash,
// match substrings to confirm that a reduced test case still has the categorized crash.
type iceSignature struct {
	classify []string
	match    []string
}

func (sig *iceSignature) matchPatterns() []string {
	if sig.match != nil {
		return sig.match
	}
	return sig.classify
}

// Tables are checked in order, the first match wins.
var gccIce = []struct {
	iceSignature
	failType failinfo.GccFailType
}{
	{
		iceSignature: iceSignature{classify: []string{"unrecognizable insn"}},
		failType:     failinfo.GccUnrecognizedInsn,
	},
	{
		iceSignature: iceSignature{classify: []string{"internal compiler error"}},
		failType:     failinfo.GccInternalCompilerError,
	},
	{
		iceSignature: iceSignature{classify: []string{"unrecognized opcode"}},
		failType:     failinfo.GccUnrecognizedOpcode,
	},
	{
		iceSignature: iceSignature{
			classify: []string{"lto1: error:"},
			match:    []string{"lto1: error: '-mdiv' requires '-march' to subsume the 'M' extension"},
		},
		failType: failinfo.GccLto1Error,
	},
}

var llvmIce = []struct {
	iceSignature
	failType failinfo.LlvmFailType
}{
	{
		iceSignature: iceSignature{classify: []string{"fatal error: error in backend:"}},
		failType:     failinfo.LlvmLlc,
	},
	{
		iceSignature: iceSignature{classify: []string{
			"clang: error: invalid arch name 'rv",
			"extensions are incompatible",
		}},
		failType: failinfo.LlvmFrontend,
	},
	{
		iceSignature: iceSignature{classify: []string{"unrecognized opcode"}},
		failType:     failinfo.LlvmUnrecognizedOpcode,
	},
	{
		iceSignature: iceSignature{classify: []string{"PLEASE submit a bug report"}},
		failType:     failinfo.LlvmOpt,
	},
	{
		iceSignature: iceSignature{classify: []string{"file format not recognized"}},
		failType:     failinfo.LlvmUnrecognizedFileFormat,
	},
	{
		iceSignature: iceSignature{classify: []string{"register required, but has been reserved."}},
		failType:     failinfo.LlvmReservedRequiredRegister,
	},
}

// ClassifyIce categorizes a compiler crash by its stderr.
// The result is not categorized if no signature matches.
func ClassifyIce(backend failinfo.Backend, stderr []byte) failinfo.IceFailType {
	res := failinfo.IceFailType{Backend: backend}
	switch backend {
	case failinfo.BackendGcc:
		for _, ice := range gccIce {
			if containsAll(stderr, ice.classify) {
				res.Gcc = ice.failType
				break
			}
		}
	case failinfo.BackendLlvm:
		for _, ice := range llvmIce {
			if containsAll(stderr, ice.classify) {
				res.Llvm = ice.failType
				break
			}
		}
	}
	return res
}

// MatchIce reports whether stderr of a failed compilation shows the stored crash kind.
// An uncategorized crash matches any failure.
func MatchIce(stored failinfo.IceFailType, stderr []byte) bool {
	if !stored.Categorized() {
		return true
	}
	for _, ice := range gccIce {
		if stored.Gcc == ice.failType {
			return containsAll(stderr, ice.matchPatterns())
		}
	}
	for _, ice := range llvmIce {
		if stored.Llvm == ice.failType {
			return containsAll(stderr, ice.matchPatterns())
		}
	}
	return false
}

// IceTitle returns the first stderr line carrying a crash signature of any kind,
// it is used to group finds. Returns "" if there is none.
func IceTitle(stderr []byte) string {
	for _, line := range bytes.Split(stderr, []byte("\n")) {
		for _, ice := range gccIce {
			if containsAny(line, ice.classify) {
				return string(bytes.TrimSpace(line))
			}
		}
		for _, ice := range llvmIce {
			if containsAny(line, ice.classify) {
				return string(bytes.TrimSpace(line))
			}
		}
	}
	return ""
}

func containsAll(data []byte, patterns []string) bool {
	for _, pattern := range patterns {
		if !bytes.Contains(data, []byte(pattern)) {
			return false
		}
	}
	return true
}

func containsAny(data []byte, patterns []string) bool {
	for _, pattern := range patterns {
		if bytes.Contains(data, []byte(pattern)) {
			return true
		}
	}
	return false
}
