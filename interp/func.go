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

package interp

import (
	"github.com/gregorvand/qsym/ilerr"
	"github.com/gregorvand/qsym/interp/state"
	"github.com/gregorvand/qsym/qbe"
	"github.com/gregorvand/qsym/smt"

	"github.com/google/uuid"
)

// execFunc runs f with argv bound to its formals, starting at its entry
// block. k is invoked once f's `ret` resolves at a call-stack depth
// greater than 1 (i.e. f was called as a callee, not run as the
// symbolic entry point) — see execCall. A `ret` at depth 1, or an
// explicit Halt terminator reached anywhere, is never handed to k: both
// end the explored path outright, via a dump and an ilerr.Halt that
// propagates up to whichever execCondJump (if any) is waiting to absorb
// it, or to ExecSymbolic itself.
func (in *Interpreter) execFunc(st *state.State, pathID string, f *qbe.FuncDef, argv []smt.BV, k cont) error {
	if len(argv) != len(f.Params) {
		return ilerr.New(ilerr.InvalidCall)
	}

	st.PushFunc(f)
	for i, p := range f.Params {
		if p.Kind != qbe.ParamRegular {
			panic("interp: exec_func: env/variadic parameters are not supported")
		}
		st.AddLocal(p.Name, argv[i])
	}

	if len(f.Body) == 0 {
		return ilerr.New(ilerr.MissingJump)
	}
	return in.execBlock(st, pathID, &f.Body[0], k)
}

// ExecSymbolic is the symbolic entry point: it materializes a fresh
// symbolic bit-vector for every regular parameter of name, named
// "name:param", and runs the function to completion. A run that ends in
// HaltExecution returns nil (success); any other error is returned. The
// entry function is always at call-stack depth 1 at its own `ret`, so
// its continuation is never actually invoked; it exists only to satisfy
// execFunc's signature, and panics if it's ever reached.
func (in *Interpreter) ExecSymbolic(st *state.State, name string) error {
	f, ok := st.GetFunc(name)
	if !ok {
		return ilerr.Newf(ilerr.UnknownFunction, "%s", name)
	}

	argv := make([]smt.BV, len(f.Params))
	for i, p := range f.Params {
		if p.Kind != qbe.ParamRegular {
			panic("interp: exec_symbolic: env/variadic parameters are not supported")
		}
		argv[i] = in.vf.Fresh(name+":"+p.Name, p.Type)
	}

	pathID := uuid.NewString()[:8]
	in.tracef(pathID, "exec_symbolic %s", name)
	err := in.execFunc(st, pathID, f, argv, func(*state.State, string, *smt.BV) error {
		panic("interp: exec_symbolic: entry function returned above stack depth 1")
	})
	if ilerr.Is(err, ilerr.Halt) {
		return nil
	}
	return err
}
