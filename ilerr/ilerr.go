// Copyright (C) 2024 The qsym Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package ilerr defines the interpreter's recoverable error kinds. All of
// them propagate to the CLI and cause a non-zero exit, except Halt, which
// an explored CondJump arm absorbs as "this arm finished" rather than
// treating it as a run-ending failure, and which interp.ExecSymbolic turns
// into a nil (successful) result at the top level; the model dump it
// carries already happened at the point of detection (see interp/block.go).
package ilerr

import (
	"errors"
	"fmt"
)

// Kind discriminates the interpreter error values, mirroring the small
// typed-error-enum idiom a bytecode interpreter uses for its own op
// dispatch errors.
type Kind int

const (
	Halt Kind = iota
	UnknownLabel
	UnknownFunction
	UnknownVariable
	InvalidSubtyping
	InvalidCall
	MissingJump
	UnsupportedStringType
	DuplicateGlobal
	ForkFailed
	WaitpidFailed
)

func (k Kind) String() string {
	switch k {
	case Halt:
		return "halt"
	case UnknownLabel:
		return "unknown label"
	case UnknownFunction:
		return "unknown function"
	case UnknownVariable:
		return "unknown variable"
	case InvalidSubtyping:
		return "invalid subtyping"
	case InvalidCall:
		return "invalid call"
	case MissingJump:
		return "missing jump"
	case UnsupportedStringType:
		return "unsupported string type"
	case DuplicateGlobal:
		return "duplicate global name"
	case ForkFailed:
		return "fork failed"
	case WaitpidFailed:
		return "waitpid failed"
	default:
		return "unknown error"
	}
}

// Error is the interpreter's error value: a Kind plus the offending name
// or detail, where one exists.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// New builds an *Error with no detail string.
func New(k Kind) *Error { return &Error{Kind: k} }

// Newf builds an *Error with a formatted detail string.
func Newf(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Detail: fmt.Sprintf(format, args...)}
}

// Is reports whether err is an *Error of kind k, unwrapping as needed.
func Is(err error, k Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == k
}
