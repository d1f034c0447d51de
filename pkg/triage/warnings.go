// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package triage

import (
	"bytes"
)

// IgnorableWarnings disable the warnings that generated programs trigger routinely.
// During reduction any other warning rejects the candidate, otherwise the reducer
// walks into undefined behavior.
var IgnorableWarnings = []string{
	"-Wno-unused-command-line-argument",
	"-Wno-unused-function",
	"-Wno-unused-variable",
	"-Wno-unused-value",
	"-Wno-unused-but-set-variable",
	"-Wno-tautological-constant-out-of-range-compare",
	"-Wno-tautological-pointer-compare",
	"-Wno-tautological-bitwise-compare",
	"-Wno-tautological-compare",
	"-Wno-compare-distinct-pointer-types",
	"-Wno-constant-conversion",
	"-Wno-constant-logical-operand",
	"-Wno-pointer-sign",
	"-Wno-bool-operation",
	"-Wno-parentheses-equality",
	"-Wno-self-assign",
	"-Wno-implicit-const-int-float-conversion",
	// gcc
	"-Wno-unknown-warning-option",
	"-Wno-bool-compare",
	"-Wno-address",
	"-Wno-overflow",
	"-Wno-dangling-pointer",
	// Yarpgen with gcc
	"-Wno-int-in-bool-context",
}

// Linker warnings that do not indicate a problem with the program.
var allowedWarnings = []string{
	"warning: creating DT_TEXTREL in a PIE",
	"warning: relocation in read-only section",
}

const warningMarker = "warning:"

// HasWarning reports any warning in compiler output.
func HasWarning(stderr []byte) bool {
	return bytes.Contains(stderr, []byte(warningMarker))
}

// HasUnexpectedWarning is HasWarning that ignores the allowed linker warnings.
func HasUnexpectedWarning(stderr []byte) bool {
	for _, allowed := range allowedWarnings {
		stderr = bytes.ReplaceAll(stderr, []byte(allowed), nil)
	}
	return HasWarning(stderr)
}
