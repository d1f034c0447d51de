// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package flaggen

import (
	"fmt"
	"strings"
)

// Toggle is a flag that can be omitted, negated or given.
type Toggle uint8

const (
	ToggleHidden Toggle = iota
	ToggleOff
	ToggleOn
)

// Ghost is a flag that is either present or absent, it has no negated form.
type Ghost uint8

const (
	GhostHidden Ghost = iota
	GhostOn
)

type Kind int

const (
	KindToggle Kind = iota
	KindGhost
	KindEnum
)

func (k Kind) String() string {
	switch k {
	case KindToggle:
		return "toggle"
	case KindGhost:
		return "ghost"
	case KindEnum:
		return "enum"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Option describes one field of a flag record.
// Name is the field name with underscores, the command line spelling is derived from it.
type Option struct {
	Name   string
	Kind   Kind
	Values []string // variants of an enum option
}

func toggle(name string) Option {
	return Option{Name: name, Kind: KindToggle}
}

func ghost(name string) Option {
	return Option{Name: name, Kind: KindGhost}
}

func enum(name string, values ...string) Option {
	return Option{Name: name, Kind: KindEnum, Values: values}
}

// flagName converts a field name into the flag spelling (without the leading dash).
func flagName(field string) string {
	name := strings.ReplaceAll(field, "_", "-")
	switch name {
	case "fchar8-t":
		return "fchar8_t"
	case "fno-modules-validate-input-files-content":
		return "fno_modules-validate-input-files-content"
	case "fno-pch-validate-input-files-content":
		return "fno_pch-validate-input-files-content"
	case "static-opt":
		return "static"
	}
	return name
}

func (t Toggle) Render(field string) string {
	name := flagName(field)
	switch t {
	case ToggleOn:
		return "-" + name
	case ToggleOff:
		return "-" + name[:1] + "no-" + name[1:]
	}
	return ""
}

func (g Ghost) Render(field string) string {
	if g == GhostOn {
		return "-" + flagName(field)
	}
	return ""
}

// renderEnum renders a set enum option, an empty value means the option is unset.
func renderEnum(field, value string) string {
	if value == "" {
		return ""
	}
	return "-" + flagName(field) + "=" + strings.ReplaceAll(value, "_", "-")
}

func (t Toggle) String() string {
	switch t {
	case ToggleHidden:
		return "Hidden"
	case ToggleOff:
		return "Off"
	case ToggleOn:
		return "On"
	}
	return fmt.Sprintf("Toggle(%d)", uint8(t))
}

func (g Ghost) String() string {
	switch g {
	case GhostHidden:
		return "Hidden"
	case GhostOn:
		return "On"
	}
	return fmt.Sprintf("Ghost(%d)", uint8(g))
}

// joinFlags joins the non-empty fragments with a single space.
func joinFlags(parts ...string) string {
	var b strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		if b.Len() != 0 {
			b.WriteByte(' ')
		}
		b.WriteString(part)
	}
	return b.String()
}
