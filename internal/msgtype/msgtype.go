// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package msgtype implements the tagged-union message type declared by
// elements at descriptor time and the acceptability relation the
// planner uses to validate wiring between a producer and a receiver.
package msgtype

import (
	"fmt"
	"strings"
)

// Variant tags which case of the union a Type holds.
type Variant int

const (
	Any Variant = iota
	Mime
	Custom
)

// Type is one of Any / Mime(type, subtype) / Custom(name), parsed from
// the wire grammar `any`, `mime:<type>/<subtype>`, `custom:<name>`.
type Type struct {
	Variant Variant
	Type    string // Mime's top-level type
	Subtype string // Mime's subtype, possibly "*"
	Name    string // Custom's name
}

// Parse decodes a message-type string in the wire grammar described
// above.
func Parse(s string) (Type, error) {
	switch {
	case s == "any":
		return Type{Variant: Any}, nil
	case strings.HasPrefix(s, "mime:"):
		rest := strings.TrimPrefix(s, "mime:")
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return Type{}, fmt.Errorf("msgtype: malformed mime type %q", s)
		}
		return Type{Variant: Mime, Type: parts[0], Subtype: parts[1]}, nil
	case strings.HasPrefix(s, "custom:"):
		name := strings.TrimPrefix(s, "custom:")
		if name == "" {
			return Type{}, fmt.Errorf("msgtype: empty custom type name in %q", s)
		}
		return Type{Variant: Custom, Name: name}, nil
	default:
		return Type{}, fmt.Errorf("msgtype: unrecognized type string %q", s)
	}
}

// MustParse is Parse but panics on error; used for literal types
// declared by in-process (non-FFI) elements.
func MustParse(s string) Type {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Type) String() string {
	switch t.Variant {
	case Any:
		return "any"
	case Mime:
		return "mime:" + t.Type + "/" + t.Subtype
	case Custom:
		return "custom:" + t.Name
	default:
		return "invalid"
	}
}

// Matches reports whether the accepting type `a` (the receiver) accepts
// a message declared as `produced` by its producer:
//  1. a is Any, or
//  2. both are the same variant and equal, or
//  3. both are Mime, top-level types equal, and a's subtype is "*".
func (a Type) Matches(produced Type) bool {
	if a.Variant == Any {
		return true
	}
	if a.Variant != produced.Variant {
		return false
	}
	switch a.Variant {
	case Mime:
		if a.Type != produced.Type {
			return false
		}
		return a.Subtype == "*" || a.Subtype == produced.Subtype
	case Custom:
		return a.Name == produced.Name
	default:
		return false
	}
}

// AnyAccepts reports whether some type in `accepted` matches `produced`
// — the acceptability test the planner runs per receive port: exists an
// accepted type that matches the producer's declared type. Declaration
// order is irrelevant.
func AnyAccepts(accepted []Type, produced Type) bool {
	for _, a := range accepted {
		if a.Matches(produced) {
			return true
		}
	}
	return false
}
