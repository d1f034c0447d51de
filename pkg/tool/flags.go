// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package tool

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// Flag is a flag value forwarded to a child invocation of rvfuzz.
type Flag struct {
	Name  string
	Value string
}

// ForwardFlag is the name of the flag that carries forwarded flags.
const ForwardFlag = "forward"

// ForwardFlags packs flags into one shell-safe argument ("--forward=clang=/usr/bin/clang:vv=1").
// It is used for interestingness test scripts, which creduce runs without arguments.
func ForwardFlags(flags []Flag) string {
	return fmt.Sprintf("--%v=%v", ForwardFlag, serializeFlags(flags))
}

// RegisterForward adds the forward flag to set, ApplyForward must be called after parsing.
func RegisterForward(set *pflag.FlagSet) *string {
	return set.String(ForwardFlag, "", "flags forwarded by the reducer (internal)")
}

// ApplyForward sets the forwarded flags in set. Unknown flags are an error.
func ApplyForward(set *pflag.FlagSet, value string) error {
	flags, err := deserializeFlags(value)
	if err != nil {
		return err
	}
	for _, f := range flags {
		if f.Name == ForwardFlag {
			return fmt.Errorf("recursive %v flag", ForwardFlag)
		}
		if err := set.Set(f.Name, f.Value); err != nil {
			return fmt.Errorf("forwarded flag %v: %w", f.Name, err)
		}
	}
	return nil
}

func serializeFlags(flags []Flag) string {
	parts := make([]string, len(flags))
	for i, f := range flags {
		parts[i] = flagEscape(f.Name) + "=" + flagEscape(f.Value)
	}
	return strings.Join(parts, ":")
}

func deserializeFlags(value string) ([]Flag, error) {
	if value == "" {
		return nil, nil
	}
	var flags []Flag
	for _, arg := range strings.Split(value, ":") {
		rawName, rawValue, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("failed to parse flags %q: no eq", value)
		}
		name, err := flagUnescape(rawName)
		if err != nil {
			return nil, fmt.Errorf("failed to parse flags %q: %w", value, err)
		}
		val, err := flagUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("failed to parse flags %q: %w", value, err)
		}
		flags = append(flags, Flag{name, val})
	}
	return flags, nil
}

// flagEscape hex-escapes everything a shell or the encoding itself could misinterpret.
func flagEscape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if needsEscape(ch) || ch == '\\' {
			b.WriteString(`\x`)
			b.WriteString(hex.EncodeToString([]byte{ch}))
			continue
		}
		b.WriteByte(ch)
	}
	return b.String()
}

func needsEscape(ch byte) bool {
	return ch <= 0x20 || ch >= 0x7f || strings.IndexByte(":=\"'`$&|;<>()*?[]#~!{}", ch) != -1
}

func flagUnescape(s string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if needsEscape(ch) {
			return "", fmt.Errorf("unescaped char %v", ch)
		}
		if ch == '\\' {
			if i+4 > len(s) || s[i+1] != 'x' {
				return "", fmt.Errorf("truncated escape sequence")
			}
			res, err := hex.DecodeString(s[i+2 : i+4])
			if err != nil {
				return "", err
			}
			b.WriteByte(res[0])
			i += 3
			continue
		}
		b.WriteByte(ch)
	}
	return b.String(), nil
}
