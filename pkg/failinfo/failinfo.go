// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package failinfo describes a saved find: what was compiled (and run) with what,
// and how the failure is classified. It is stored as fail_info.yaml next to the test case
// and rewritten by the reducer once the failure is categorized.
package failinfo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rvfuzz/rvfuzz/pkg/config"
	"github.com/rvfuzz/rvfuzz/pkg/flaggen"
	"github.com/rvfuzz/rvfuzz/pkg/fuzzconfig"
	"github.com/rvfuzz/rvfuzz/pkg/osutil"
	"gopkg.in/yaml.v3"
)

const FileName = "fail_info.yaml"

type Kind string

const (
	Ice       = Kind("Ice")
	Execution = Kind("Execution")
	Runtime   = Kind("Runtime")
)

// IceFailInfo describes a compiler crash. With several test cases
// Compilers has one more entry than Testcases: the last one links the objects.
type IceFailInfo struct {
	Compilers    []string                `json:"compilers"`
	Architecture fuzzconfig.Architecture `json:"architecture"`
	Testcases    []string                `json:"testcases"`
	Action       flaggen.Action          `json:"action"`
	Generator    fuzzconfig.Generator    `json:"generator"`
	FailType     IceFailType             `json:"fail_type"`
}

type ExecFailInfo struct {
	Compilers    []string                `json:"compiler"`
	Architecture fuzzconfig.Architecture `json:"architecture"`
	Testcases    []string                `json:"testcase"`
	Generator    fuzzconfig.Generator    `json:"generator"`
	Runner       fuzzconfig.Runner       `json:"runner"`
	FailType     ExecFailType            `json:"fail_type"`
}

type RuntimeFailInfo struct {
	FastCompilers    []string                `json:"fast_compiler"`
	FastArchitecture fuzzconfig.Architecture `json:"fast_architecture"`
	FastRunner       fuzzconfig.Runner       `json:"fast_runner"`
	SlowCompilers    []string                `json:"slow_compiler"`
	SlowArchitecture fuzzconfig.Architecture `json:"slow_architecture"`
	SlowRunner       fuzzconfig.Runner       `json:"slow_runner"`
	Testcases        []string                `json:"testcase"`
	Generator        fuzzconfig.Generator    `json:"generator"`
	FailType         RuntimeFailType         `json:"fail_type"`
}

// FailInfo holds exactly one of the variants.
type FailInfo struct {
	Ice       *IceFailInfo
	Execution *ExecFailInfo
	Runtime   *RuntimeFailInfo
}

func (fi *FailInfo) Kind() Kind {
	switch {
	case fi.Ice != nil:
		return Ice
	case fi.Execution != nil:
		return Execution
	case fi.Runtime != nil:
		return Runtime
	}
	panic("empty fail info")
}

func (fi *FailInfo) Testcases() []string {
	switch fi.Kind() {
	case Ice:
		return fi.Ice.Testcases
	case Execution:
		return fi.Execution.Testcases
	default:
		return fi.Runtime.Testcases
	}
}

func (fi *FailInfo) SetTestcases(testcases []string) {
	switch fi.Kind() {
	case Ice:
		fi.Ice.Testcases = testcases
	case Execution:
		fi.Execution.Testcases = testcases
	default:
		fi.Runtime.Testcases = testcases
	}
}

func (fi *FailInfo) Generator() fuzzconfig.Generator {
	switch fi.Kind() {
	case Ice:
		return fi.Ice.Generator
	case Execution:
		return fi.Execution.Generator
	default:
		return fi.Runtime.Generator
	}
}

// Categorized reports whether the fail type has been determined.
func (fi *FailInfo) Categorized() bool {
	switch fi.Kind() {
	case Ice:
		return fi.Ice.FailType.Categorized()
	case Execution:
		return fi.Execution.FailType.Categorized()
	default:
		return fi.Runtime.FailType != ""
	}
}

func (fi *FailInfo) String() string {
	switch fi.Kind() {
	case Ice:
		return fmt.Sprintf("Ice %v", fi.Ice.FailType)
	case Execution:
		return fmt.Sprintf("Execution %v", fi.Execution.FailType)
	default:
		kind := string(fi.Runtime.FailType)
		if kind == "" {
			kind = "None"
		}
		return fmt.Sprintf("Runtime %v", kind)
	}
}

func (fi FailInfo) MarshalJSON() ([]byte, error) {
	switch fi.Kind() {
	case Ice:
		return config.MarshalVariant(string(Ice), fi.Ice)
	case Execution:
		return config.MarshalVariant(string(Execution), fi.Execution)
	default:
		return config.MarshalVariant(string(Runtime), fi.Runtime)
	}
}

func (fi *FailInfo) UnmarshalJSON(data []byte) error {
	tag, payload, err := config.UnmarshalVariant(data)
	if err != nil {
		return fmt.Errorf("bad fail info: %w", err)
	}
	*fi = FailInfo{}
	switch Kind(tag) {
	case Ice:
		fi.Ice = new(IceFailInfo)
		err = config.DecodeStrict(payload, fi.Ice)
	case Execution:
		fi.Execution = new(ExecFailInfo)
		err = config.DecodeStrict(payload, fi.Execution)
	case Runtime:
		fi.Runtime = new(RuntimeFailInfo)
		err = config.DecodeStrict(payload, fi.Runtime)
	default:
		return fmt.Errorf("unknown fail info kind %q", tag)
	}
	if err != nil {
		return fmt.Errorf("bad %v fail info: %w", tag, err)
	}
	return fi.validate()
}

func (fi *FailInfo) validate() error {
	switch fi.Kind() {
	case Ice:
		return checkCompilers(fi.Ice.Compilers, fi.Ice.Testcases)
	case Execution:
		return checkCompilers(fi.Execution.Compilers, fi.Execution.Testcases)
	default:
		if err := checkCompilers(fi.Runtime.FastCompilers, fi.Runtime.Testcases); err != nil {
			return fmt.Errorf("fast_compiler: %w", err)
		}
		if err := checkCompilers(fi.Runtime.SlowCompilers, fi.Runtime.Testcases); err != nil {
			return fmt.Errorf("slow_compiler: %w", err)
		}
		return nil
	}
}

// checkCompilers verifies the one-compiler-per-source plus link compiler layout.
func checkCompilers(compilers, testcases []string) error {
	want := len(testcases)
	if want > 1 {
		want++
	}
	if len(testcases) == 0 || len(compilers) != want {
		return fmt.Errorf("%v compilers for %v test cases", len(compilers), len(testcases))
	}
	return nil
}

// Marshal renders the fail info as YAML keeping the field order of the structs.
func Marshal(fi *FailInfo) ([]byte, error) {
	data, err := json.Marshal(fi)
	if err != nil {
		return nil, err
	}
	// JSON is YAML. Parse it into a node tree and drop the JSON quoting/flow styles
	// so that it is emitted in the block style.
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	resetStyle(&node)
	buf := new(bytes.Buffer)
	enc := yaml.NewEncoder(buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func resetStyle(node *yaml.Node) {
	node.Style = 0
	for _, n := range node.Content {
		resetStyle(n)
	}
}

func Unmarshal(data []byte) (*FailInfo, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse fail info: %w", err)
	}
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fail info: %w", err)
	}
	fi := new(FailInfo)
	if err := config.DecodeStrict(jsonData, fi); err != nil {
		return nil, err
	}
	return fi, nil
}

// Load reads fail_info.yaml from dir.
func Load(dir string) (*FailInfo, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, err
	}
	fi, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", filepath.Join(dir, FileName), err)
	}
	return fi, nil
}

// Save writes fail_info.yaml into dir.
func Save(dir string, fi *FailInfo) error {
	data, err := Marshal(fi)
	if err != nil {
		return err
	}
	return osutil.WriteFile(filepath.Join(dir, FileName), data)
}
