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
)

// Path carries an optional path guard and the block to explore next (spec
// §4.4 "Terminators"). A nil Cond is trivially feasible.
type Path struct {
	Cond   *smt.Bool
	Target string
}

type jumpKind int

const (
	jkJump jumpKind = iota
	jkCondJump
	jkReturn
	jkHalt
)

// jumpResult is exec_jump's return: one of Jump(path), CondJump(nz, z),
// Return(optional value), or Halt.
type jumpResult struct {
	kind jumpKind

	jump Path // jkJump
	nz   Path // jkCondJump
	z    Path // jkCondJump

	hasRet bool   // jkReturn
	retVal smt.BV // jkReturn, valid iff hasRet
}

// feasible asks the solver whether p's guard holds given everything
// already asserted, without permanently asserting it.
func (in *Interpreter) feasible(p Path) (bool, error) {
	if p.Cond == nil {
		return true, nil
	}
	res, err := in.solver.CheckAssuming(*p.Cond)
	if err != nil {
		return false, err
	}
	switch res {
	case smt.Sat:
		return true, nil
	case smt.Unsat:
		return false, nil
	default:
		panic("interp: feasible: solver returned Unknown")
	}
}

// execJump dispatches a block's terminator.
func (in *Interpreter) execJump(st *state.State, j *qbe.JumpInstr) (jumpResult, error) {
	switch j.Kind {
	case qbe.JumpUncond:
		return jumpResult{kind: jkJump, jump: Path{Target: j.Target}}, nil

	case qbe.JumpJnz:
		return in.execJnz(st, j)

	case qbe.JumpReturn:
		if j.Value == nil {
			return jumpResult{kind: jkReturn}, nil
		}
		v, err := in.valueOf(st, nil, *j.Value)
		if err != nil {
			return jumpResult{}, err
		}
		return jumpResult{kind: jkReturn, hasRet: true, retVal: v}, nil

	case qbe.JumpHalt:
		return jumpResult{kind: jkHalt}, nil

	default:
		panic("interp: exec_jump: unknown JumpKind")
	}
}

// execJnz implements the Jnz feasibility-ordering rule: test the zero arm
// first, then the non-zero arm, short-circuiting the second check when the
// zero arm is already infeasible.
func (in *Interpreter) execJnz(st *state.State, j *qbe.JumpInstr) (jumpResult, error) {
	word := qbe.Word
	v, err := in.valueOf(st, &word, j.Cond)
	if err != nil {
		return jumpResult{}, err
	}
	if v.Width() != 32 {
		return jumpResult{}, ilerr.New(ilerr.InvalidSubtyping)
	}

	isZero := in.ctx.Eq(v, in.ctx.Literal(0, 32))
	notZero := in.ctx.Not(isZero)
	nzPath := Path{Cond: &notZero, Target: j.NzTarget}
	zPath := Path{Cond: &isZero, Target: j.ZTarget}

	zFeasible, err := in.feasible(zPath)
	if err != nil {
		return jumpResult{}, err
	}
	if !zFeasible {
		return jumpResult{kind: jkJump, jump: nzPath}, nil
	}

	nzFeasible, err := in.feasible(nzPath)
	if err != nil {
		return jumpResult{}, err
	}
	if nzFeasible {
		return jumpResult{kind: jkCondJump, nz: nzPath, z: zPath}, nil
	}
	return jumpResult{kind: jkJump, jump: zPath}, nil
}
