// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package failinfo

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/rvfuzz/rvfuzz/pkg/config"
)

type GccFailType string

const (
	GccUnrecognizedInsn      = GccFailType("UnrecognizedInsn")
	GccInternalCompilerError = GccFailType("InternalCompilerError")
	GccUnrecognizedOpcode    = GccFailType("UnrecognizedOpcode")
	GccLto1Error             = GccFailType("Lto1Error")
)

var GccFailTypes = []GccFailType{
	GccUnrecognizedInsn, GccInternalCompilerError, GccUnrecognizedOpcode, GccLto1Error,
}

type LlvmFailType string

const (
	LlvmFrontend                 = LlvmFailType("Frontend")
	LlvmLlc                      = LlvmFailType("Llc")
	LlvmOpt                      = LlvmFailType("Opt")
	LlvmUnrecognizedOpcode       = LlvmFailType("UnrecognizedOpcode")
	LlvmUnrecognizedFileFormat   = LlvmFailType("UnrecognizedFileFormat")
	LlvmReservedRequiredRegister = LlvmFailType("ReservedRequiredRegister")
)

var LlvmFailTypes = []LlvmFailType{
	LlvmFrontend, LlvmLlc, LlvmOpt, LlvmUnrecognizedOpcode, LlvmUnrecognizedFileFormat,
	LlvmReservedRequiredRegister,
}

type QemuFailType string

const (
	QemuIllegalInsn = QemuFailType("IllegalInsn")
	QemuErrorMsg    = QemuFailType("ErrorMsg")
	QemuSegfault    = QemuFailType("Segfault")
)

var QemuFailTypes = []QemuFailType{QemuIllegalInsn, QemuErrorMsg, QemuSegfault}

type Backend string

const (
	BackendGcc  = Backend("Gcc")
	BackendLlvm = Backend("Llvm")
)

// IceFailType classifies a compiler crash. Only the field matching Backend may be set,
// both are empty while the crash is not categorized yet.
type IceFailType struct {
	Backend Backend
	Gcc     GccFailType
	Llvm    LlvmFailType
}

func (t IceFailType) Categorized() bool {
	return t.Gcc != "" || t.Llvm != ""
}

func (t IceFailType) String() string {
	kind := string(t.Gcc) + string(t.Llvm)
	if kind == "" {
		kind = "None"
	}
	return fmt.Sprintf("%v(%v)", t.Backend, kind)
}

func (t IceFailType) MarshalJSON() ([]byte, error) {
	var kind any = json.RawMessage("null")
	switch {
	case t.Gcc != "":
		kind = t.Gcc
	case t.Llvm != "":
		kind = t.Llvm
	}
	return config.MarshalVariant(string(t.Backend), kind)
}

func (t *IceFailType) UnmarshalJSON(data []byte) error {
	tag, payload, err := config.UnmarshalVariant(data)
	if err != nil {
		return fmt.Errorf("bad ice fail_type: %w", err)
	}
	*t = IceFailType{Backend: Backend(tag)}
	var kind string
	if !config.IsNull(payload) {
		if err := config.DecodeStrict(payload, &kind); err != nil {
			return err
		}
	}
	switch t.Backend {
	case BackendGcc:
		t.Gcc = GccFailType(kind)
	case BackendLlvm:
		t.Llvm = LlvmFailType(kind)
	default:
		return fmt.Errorf("unknown ice backend %q", tag)
	}
	return t.validate()
}

func (t IceFailType) validate() error {
	switch {
	case t.Gcc != "" && !slices.Contains(GccFailTypes, t.Gcc):
		return fmt.Errorf("unknown gcc fail type %q", string(t.Gcc))
	case t.Llvm != "" && !slices.Contains(LlvmFailTypes, t.Llvm):
		return fmt.Errorf("unknown llvm fail type %q", string(t.Llvm))
	}
	return nil
}

// Runner kinds of ExecFailType.
const (
	RunnerQemu   = "Qemu"
	RunnerNative = "Native"
)

// ExecFailType classifies a failed execution of a compiled binary.
// Native runs have no categories.
type ExecFailType struct {
	Runner string
	Qemu   QemuFailType
}

func (t ExecFailType) Categorized() bool {
	return t.Qemu != ""
}

func (t ExecFailType) String() string {
	kind := string(t.Qemu)
	if kind == "" {
		kind = "None"
	}
	return fmt.Sprintf("%v(%v)", t.Runner, kind)
}

func (t ExecFailType) MarshalJSON() ([]byte, error) {
	var kind any = json.RawMessage("null")
	if t.Qemu != "" {
		kind = t.Qemu
	}
	return config.MarshalVariant(t.Runner, kind)
}

func (t *ExecFailType) UnmarshalJSON(data []byte) error {
	tag, payload, err := config.UnmarshalVariant(data)
	if err != nil {
		return fmt.Errorf("bad exec fail_type: %w", err)
	}
	*t = ExecFailType{Runner: tag}
	switch tag {
	case RunnerQemu:
		if !config.IsNull(payload) {
			if err := config.DecodeStrict(payload, &t.Qemu); err != nil {
				return err
			}
			if !slices.Contains(QemuFailTypes, t.Qemu) {
				return fmt.Errorf("unknown qemu fail type %q", string(t.Qemu))
			}
		}
	case RunnerNative:
		if !config.IsNull(payload) {
			return fmt.Errorf("native fail type has no categories")
		}
	default:
		return fmt.Errorf("unknown exec runner %q", tag)
	}
	return nil
}

// RuntimeFailType is empty while not categorized.
type RuntimeFailType string

const Mismatch = RuntimeFailType("Mismatch")

func (t RuntimeFailType) MarshalJSON() ([]byte, error) {
	if t == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(t))
}

func (t *RuntimeFailType) UnmarshalJSON(data []byte) error {
	*t = ""
	if config.IsNull(data) {
		return nil
	}
	var kind string
	if err := json.Unmarshal(data, &kind); err != nil {
		return err
	}
	if RuntimeFailType(kind) != Mismatch {
		return fmt.Errorf("unknown runtime fail type %q", kind)
	}
	*t = Mismatch
	return nil
}
