// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package triage

import (
	"bytes"

	"github.com/rvfuzz/rvfuzz/pkg/failinfo"
	"github.com/rvfuzz/rvfuzz/pkg/osutil"
)

// qemuErrorMarker is printed by qemu-riscv32/64 when the emulator itself fails.
const qemuErrorMarker = "qemu-riscv"

// ClassifyExec categorizes a failed program run by the terminating signal and stderr.
// Returns "" if the failure is not recognized.
func ClassifyExec(signal int, stderr []byte) failinfo.QemuFailType {
	switch {
	case signal == osutil.SignalIllegal:
		return failinfo.QemuIllegalInsn
	case signal == osutil.SignalSegfault:
		return failinfo.QemuSegfault
	case bytes.Contains(stderr, []byte(qemuErrorMarker)):
		return failinfo.QemuErrorMsg
	}
	return ""
}

// MatchExec reports whether a program run reproduces the stored execution failure.
// An uncategorized failure matches any of the recognized outcomes.
func MatchExec(stored failinfo.ExecFailType, res *osutil.Result) bool {
	if res.Success() || res.TimedOut() {
		return false
	}
	switch {
	case res.Signal == osutil.SignalIllegal:
		return stored.Qemu == "" || stored.Qemu == failinfo.QemuIllegalInsn
	case res.Signal == osutil.SignalSegfault:
		return stored.Qemu == "" || stored.Qemu == failinfo.QemuSegfault
	case res.ExitCode == 1:
		if stored.Qemu == failinfo.QemuErrorMsg {
			return bytes.Contains(res.Stderr, []byte(qemuErrorMarker))
		}
		return stored.Qemu == ""
	}
	return false
}
