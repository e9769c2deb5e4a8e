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

// cont is the remainder of a path's execution once some enclosing call's
// `ret` resolves: binding its return value (if any) into the calling
// frame and resuming the calling block from the statement after the
// Call. Every block-level recursion within the same function call — a
// Jump, the continuing arm of a CondJump, or a fallthrough to the next
// declared block — carries the same cont forward unchanged, since none
// of those complete the enclosing call; only reaching a Call statement
// installs a new one (see execCall in interp.go). Passing the identical
// cont into a forked CondJump arm (see execCondJump below) is what lets
// a fork nested inside a callee resume the caller's remaining
// statements, blocks, and eventual Halt for that arm too, instead of
// exploring only the callee's own body and discarding the rest.
type cont func(st *state.State, pathID string, ret *smt.BV) error

// execBlock runs a block's statements from the start, then its
// terminator, via execStmtsFrom.
func (in *Interpreter) execBlock(st *state.State, pathID string, blk *qbe.Block, k cont) error {
	return in.execStmtsFrom(st, pathID, blk, 0, k)
}

// execStmtsFrom runs blk's statements starting at idx. A Call statement
// installs a new continuation that binds its result (if any) and resumes
// the statements after it, then defers to execTerm once the block's
// statements are exhausted.
func (in *Interpreter) execStmtsFrom(st *state.State, pathID string, blk *qbe.Block, idx int, k cont) error {
	for i := idx; i < len(blk.Inst); i++ {
		stmt := &blk.Inst[i]
		if stmt.Kind == qbe.StmtCall {
			rest := i + 1
			return in.execCall(st, pathID, stmt, func(st2 *state.State, pathID2 string, _ *smt.BV) error {
				return in.execStmtsFrom(st2, pathID2, blk, rest, k)
			})
		}
		if err := in.execStmt(st, pathID, stmt); err != nil {
			return err
		}
	}
	return in.execTerm(st, pathID, blk, k)
}

// execTerm resolves blk's terminator: a missing Jump falls through to the
// next block in declaration order (not the block after whichever one the
// enclosing exec_func started iterating from); Jump and the continuing
// arm of a CondJump are tail recursions into the next block within the
// same frame; Return and Halt resolve here (Halt's model dump happens at
// the point of detection, so it can be performed once per explored arm
// regardless of call nesting — see execCondJump below).
func (in *Interpreter) execTerm(st *state.State, pathID string, blk *qbe.Block, k cont) error {
	if blk.Jump == nil {
		next, ok := st.NextBlock(blk.Label)
		if !ok {
			return ilerr.New(ilerr.MissingJump)
		}
		in.tracef(pathID, "fallthrough %s -> %s", blk.Label, next.Label)
		return in.execBlock(st, pathID, next, k)
	}
	in.tracef(pathID, "block %s", blk.Label)

	res, err := in.execJump(st, blk.Jump)
	if err != nil {
		return err
	}

	switch res.kind {
	case jkJump:
		return in.followJump(st, pathID, res.jump, k)

	case jkCondJump:
		return in.execCondJump(st, pathID, res.nz, res.z, k)

	case jkReturn:
		if st.StackSize() == 1 {
			in.dump(st, pathID)
			return ilerr.New(ilerr.Halt)
		}
		var ret *smt.BV
		if res.hasRet {
			v := res.retVal
			ret = &v
		}
		st.PopFunc()
		return k(st, pathID, ret)

	case jkHalt:
		in.dump(st, pathID)
		return ilerr.New(ilerr.Halt)

	default:
		panic("interp: exec_term: unknown jumpKind")
	}
}

// followJump permanently asserts p's guard (if any) — this is the
// continuing exploration, not a speculative one — and recurses into its
// target block within the same frame.
func (in *Interpreter) followJump(st *state.State, pathID string, p Path, k cont) error {
	if p.Cond != nil {
		in.solver.Assert(*p.Cond)
	}
	target, ok := st.GetBlock(p.Target)
	if !ok {
		return ilerr.Newf(ilerr.UnknownLabel, "%s", p.Target)
	}
	return in.execBlock(st, pathID, target, k)
}

// execCondJump explores both arms of a feasible two-way conditional jump,
// replacing the original fork/waitpid with an in-process snapshot plus a
// solver Push/Pop scope:
//
//   - The non-zero arm explores a cloned State inside a solver scope that
//     is always popped afterward — it is fully discarded once explored,
//     exactly as the forked child process was discarded once it exited.
//     Crucially, it carries the same k as the continuing arm: if the
//     CondJump sits inside a callee, a `ret` reached while exploring this
//     arm resumes the caller's remaining statements and blocks on the
//     cloned State, exactly as a forked child process would resume its
//     whole inherited call stack, rather than stopping once the callee
//     itself returns. A HaltExecution produced anywhere within it is
//     absorbed here (its dump already happened at the point of
//     detection, deeper in the recursion); any other error aborts the
//     whole run.
//   - The zero arm then continues as the ordinary tail of this exploration:
//     its guard is asserted permanently (no Push/Pop) and it proceeds
//     using the original, unmodified State — mirroring "the parent
//     process, unaffected by anything the child did in its own copy."
func (in *Interpreter) execCondJump(st *state.State, pathID string, nz, z Path, k cont) error {
	if in.maxForkDepth > 0 && in.forkDepth >= in.maxForkDepth {
		in.tracef(pathID, "fork depth guard (%d) reached, skipping non-zero arm %s", in.maxForkDepth, nz.Target)
		zPathID := pathID + "/" + uuid.NewString()[:8]
		return in.followJump(st, zPathID, z, k)
	}

	childPathID := pathID + "/" + uuid.NewString()[:8]
	childState := st.Snapshot()

	childTarget, ok := childState.GetBlock(nz.Target)
	if !ok {
		return ilerr.Newf(ilerr.UnknownLabel, "%s", nz.Target)
	}
	in.solver.Push()
	if nz.Cond != nil {
		in.solver.Assert(*nz.Cond)
	}
	in.forkDepth++
	err := in.execBlock(childState, childPathID, childTarget, k)
	in.forkDepth--
	in.solver.Pop()
	if err != nil && !ilerr.Is(err, ilerr.Halt) {
		return err
	}

	zPathID := pathID + "/" + uuid.NewString()[:8]
	return in.followJump(st, zPathID, z, k)
}
