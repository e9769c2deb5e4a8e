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

// Package interp is the interpreter: it holds the value factory, drives
// execution of statements, terminators, functions, and the symbolic
// entry point, and prints the model dump on HaltExecution.
//
// Multi-path exploration (the two arms of a feasible conditional jump) is
// re-architected from the original process-fork design onto in-process
// state snapshots plus solver Push/Pop scopes; see jump.go and block.go.
package interp

import (
	"fmt"
	"io"

	"github.com/gregorvand/qsym/ilerr"
	"github.com/gregorvand/qsym/interp/state"
	"github.com/gregorvand/qsym/qbe"
	"github.com/gregorvand/qsym/smt"
	"github.com/gregorvand/qsym/symval"

	"github.com/google/uuid"
)

// Interpreter is stateless across calls except for the shared solver and
// value factory; all per-exploration data lives in the *state.State each
// call is given explicitly.
type Interpreter struct {
	ctx    *smt.Context
	vf     *symval.Factory
	solver *smt.Solver
	trace  bool
	out    io.Writer

	maxForkDepth int // 0 means unbounded
	forkDepth    int
}

// New builds an Interpreter. out receives trace lines when trace is true;
// pass io.Discard to suppress them regardless of trace. maxForkDepth
// bounds how many nested CondJump explorations are taken before the
// non-zero arm is skipped outright (0 means unbounded); see config.Config.
func New(ctx *smt.Context, solver *smt.Solver, out io.Writer, trace bool, maxForkDepth int) *Interpreter {
	return &Interpreter{ctx: ctx, vf: symval.New(ctx), solver: solver, out: out, trace: trace, maxForkDepth: maxForkDepth}
}

func (in *Interpreter) tracef(pathID string, format string, args ...any) {
	if !in.trace {
		return
	}
	fmt.Fprintf(in.out, "[%s] "+format+"\n", append([]any{pathID}, args...)...)
}

// valueOf resolves a syntactic operand to a bit-vector, applying the
// Word-subtyping rule when destBaseTy is non-nil.
func (in *Interpreter) valueOf(st *state.State, destBaseTy *qbe.BaseType, v qbe.Value) (smt.BV, error) {
	var resolved smt.BV

	switch v.Kind {
	case qbe.ValLocalVar:
		bv, ok := st.GetLocal(v.LocalVar)
		if !ok {
			return smt.BV{}, ilerr.Newf(ilerr.UnknownVariable, "%s", v.LocalVar)
		}
		resolved = bv

	case qbe.ValConstNumber:
		resolved = in.ctx.Literal(v.Number, 64)

	case qbe.ValConstGlobal:
		bv, ok := st.GetPtr(v.GlobalName)
		if !ok {
			return smt.BV{}, ilerr.Newf(ilerr.UnknownVariable, "%s", v.GlobalName)
		}
		if v.GlobalOffset != 0 {
			bv = in.ctx.Add(bv, in.ctx.Literal(v.GlobalOffset, bv.Width()))
		}
		resolved = bv

	case qbe.ValConstSFP, qbe.ValConstDFP, qbe.ValConstThread:
		panic("interp: value_of: floating-point and thread-local constants are not supported")

	default:
		panic("interp: value_of: unknown Value kind")
	}

	if destBaseTy == nil || *destBaseTy != qbe.Word {
		return resolved, nil
	}
	switch resolved.Width() {
	case 32:
		return resolved, nil
	case 64:
		return in.ctx.Extract(resolved, 31, 0), nil
	default:
		return smt.BV{}, ilerr.New(ilerr.InvalidSubtyping)
	}
}

// execInst dispatches a non-terminator instruction.
func (in *Interpreter) execInst(st *state.State, destTy qbe.BaseType, instr *qbe.Instr) (smt.BV, error) {
	switch instr.Op {
	case qbe.OpAdd, qbe.OpSub, qbe.OpMul, qbe.OpRem, qbe.OpURem:
		a, err := in.valueOf(st, &destTy, instr.A)
		if err != nil {
			return smt.BV{}, err
		}
		b, err := in.valueOf(st, &destTy, instr.B)
		if err != nil {
			return smt.BV{}, err
		}
		switch instr.Op {
		case qbe.OpAdd:
			return in.ctx.Add(a, b), nil
		case qbe.OpSub:
			return in.ctx.Sub(a, b), nil
		case qbe.OpMul:
			return in.ctx.Mul(a, b), nil
		case qbe.OpRem:
			return in.ctx.SRem(a, b), nil
		default: // OpURem
			return in.ctx.URem(a, b), nil
		}

	case qbe.OpCompare:
		cmpBase := instr.CmpTy.Base
		a, err := in.valueOf(st, cmpBase, instr.A)
		if err != nil {
			return smt.BV{}, err
		}
		b, err := in.valueOf(st, cmpBase, instr.B)
		if err != nil {
			return smt.BV{}, err
		}
		cond := in.compare(instr.Cmp, a, b)
		return in.ctx.Ite(cond, qbe.Width(qbe.BaseOf(destTy))), nil

	case qbe.OpLoad:
		return in.execLoad(st, destTy, instr)

	case qbe.OpAlloc:
		return st.StackAlloc(instr.Align, instr.Size), nil

	case qbe.OpExt:
		if instr.SrcExtTy.Ext == nil {
			panic("interp: exec_inst: Ext's src_ext_ty must be an ExtType")
		}
		v, err := in.valueOf(st, nil, instr.A)
		if err != nil {
			return smt.BV{}, err
		}
		v = in.vf.TruncateOrExtend(*instr.SrcExtTy.Ext, v)
		if instr.SrcExtTy.Ext.Signed() {
			return in.vf.SignExtendTo(destTy, v), nil
		}
		return in.vf.ZeroExtendTo(destTy, v), nil

	default:
		panic("interp: exec_inst: unimplemented instruction variant")
	}
}

func (in *Interpreter) compare(op qbe.CmpOp, a, b smt.BV) smt.Bool {
	switch op {
	case qbe.CmpEq:
		return in.ctx.Eq(a, b)
	case qbe.CmpNe:
		return in.ctx.Ne(a, b)
	case qbe.CmpSle:
		return in.ctx.Sle(a, b)
	case qbe.CmpSlt:
		return in.ctx.Slt(a, b)
	case qbe.CmpSge:
		return in.ctx.Sge(a, b)
	case qbe.CmpSgt:
		return in.ctx.Sgt(a, b)
	case qbe.CmpUle:
		return in.ctx.Ule(a, b)
	case qbe.CmpUlt:
		return in.ctx.Ult(a, b)
	case qbe.CmpUge:
		return in.ctx.Uge(a, b)
	case qbe.CmpUgt:
		return in.ctx.Ugt(a, b)
	default:
		panic("interp: compare: unknown CmpOp")
	}
}

func (in *Interpreter) execLoad(st *state.State, destTy qbe.BaseType, instr *qbe.Instr) (smt.BV, error) {
	addr, err := in.valueOf(st, nil, instr.A)
	if err != nil {
		return smt.BV{}, err
	}
	size := qbe.Width(instr.LoadTy)
	if size%8 != 0 {
		panic("interp: exec_load: load_ty width must be a multiple of 8")
	}
	raw := st.Mem.LoadBits(addr, size/8)
	if size >= 64 {
		return raw, nil
	}
	destWidth := qbe.Width(qbe.BaseOf(destTy))
	if instr.LoadTy.Ext != nil && instr.LoadTy.Ext.Signed() {
		return in.ctx.SignExtend(raw, destWidth), nil
	}
	return in.ctx.ZeroExtend(raw, destWidth), nil
}

// execVolatile dispatches the Store effect.
func (in *Interpreter) execVolatile(st *state.State, v *qbe.VolatileInstr) error {
	val, err := in.valueOf(st, nil, v.Val)
	if err != nil {
		return err
	}
	addr, err := in.valueOf(st, nil, v.Addr)
	if err != nil {
		return err
	}
	if v.ExtTy.Ext == nil {
		panic("interp: exec_volatile: Store's ext_ty must be an ExtType")
	}
	val = in.vf.TruncateOrExtend(*v.ExtTy.Ext, val)
	st.Mem.StoreBits(addr, val)
	return nil
}

// execStmt dispatches one non-Call block statement. Call is handled
// separately by execStmtsFrom (block.go), which needs to install a
// continuation around it rather than simply returning once it's done.
func (in *Interpreter) execStmt(st *state.State, pathID string, stmt *qbe.Statement) error {
	switch stmt.Kind {
	case qbe.StmtAssign:
		v, err := in.execInst(st, stmt.BaseTy, stmt.Instr)
		if err != nil {
			return err
		}
		st.AddLocal(stmt.Dest, v)
		return nil

	case qbe.StmtVolatile:
		return in.execVolatile(st, stmt.Volatile)

	default:
		panic("interp: exec_stmt: unknown or unexpected StatementKind")
	}
}

// execCall implements the Call statement: arguments are collected from
// the caller's own frame, sub-word arguments are promoted to a full word
// with unconstrained high bits, then the callee runs via execFunc. k is
// the continuation for the statement after this Call; execFunc invokes
// it (after binding the callee's result to CallDest, if any) once the
// callee's `ret` resolves, on whichever State that resolution occurred
// on — the original one, or a CondJump's forked clone.
func (in *Interpreter) execCall(st *state.State, pathID string, stmt *qbe.Statement, k cont) error {
	args := make([]smt.BV, len(stmt.CallParams))
	for i, p := range stmt.CallParams {
		if p.Kind != qbe.ParamRegular {
			panic("interp: exec_call: env/variadic call arguments are not supported")
		}
		v, ok := st.GetLocal(p.Name)
		if !ok {
			return ilerr.Newf(ilerr.UnknownVariable, "%s", p.Name)
		}
		if p.Type.Ext != nil {
			switch *p.Type.Ext {
			case qbe.SignedByte, qbe.UnsignedByte, qbe.SignedHalf, qbe.UnsignedHalf:
				v = in.vf.ExtendSubwordToWord(*p.Type.Ext, v, p.Name+"$"+uuid.NewString())
			}
		}
		args[i] = v
	}

	callee, ok := st.GetFunc(stmt.FuncName)
	if !ok {
		return ilerr.Newf(ilerr.UnknownFunction, "%s", stmt.FuncName)
	}

	dest := stmt.CallDest
	return in.execFunc(st, pathID, callee, args, func(st2 *state.State, pathID2 string, ret *smt.BV) error {
		if ret != nil && dest != "" {
			st2.AddLocal(dest, *ret)
		}
		return k(st2, pathID2, nil)
	})
}
