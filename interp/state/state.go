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

// Package state owns the memory, the global symbol layout (functions and
// data at successive concrete addresses), the stack pointer, and the
// stack of function frames.
package state

import (
	"github.com/gregorvand/qsym/ilerr"
	"github.com/gregorvand/qsym/qbe"
	"github.com/gregorvand/qsym/smt"
	"github.com/gregorvand/qsym/symmem"

	"golang.org/x/exp/maps"
)

// sentinelWord is the opaque, non-semantic pattern every function's
// 4-byte slot is initialized to.
const sentinelWord = 0xFEEDC0DE

// Frame is one function's execution record: the function's blocks in
// declaration order (for fallthrough resolution), a label->index map for
// O(1) jump and fallthrough lookups, a local-temporary binding map, and
// the stack pointer saved at the frame's creation.
type Frame struct {
	body        []qbe.Block
	indices     map[string]int
	locals      map[string]smt.BV
	savedStkptr uint64
}

func newFrame(f *qbe.FuncDef, stkptr uint64) *Frame {
	indices := make(map[string]int, len(f.Body))
	for i := range f.Body {
		indices[f.Body[i].Label] = i
	}
	return &Frame{
		body:        f.Body,
		indices:     indices,
		locals:      make(map[string]smt.BV),
		savedStkptr: stkptr,
	}
}

func (fr *Frame) clone() *Frame {
	return &Frame{
		body:        fr.body, // block layout is immutable program text, safe to share
		indices:     fr.indices,
		locals:      maps.Clone(fr.locals),
		savedStkptr: fr.savedStkptr,
	}
}

// State is the interpreter's global and per-call mutable state.
type State struct {
	ctx *smt.Context
	Mem *symmem.Memory

	dataAddr map[string]uint64
	funcAddr map[string]uint64
	funcs    map[string]*qbe.FuncDef

	stkptr uint64
	frames []*Frame
}

// New lays out source's globals and returns the resulting State, with
// the stack pointer set to the post-data cursor.
func New(ctx *smt.Context, source []qbe.Definition) (*State, error) {
	s := &State{
		ctx:      ctx,
		Mem:      symmem.New(ctx),
		dataAddr: make(map[string]uint64),
		funcAddr: make(map[string]uint64),
		funcs:    make(map[string]*qbe.FuncDef),
	}

	// Separate interners per namespace: a data definition is allowed to
	// shadow a same-named function (GetPtr below checks data first), but
	// two functions or two data definitions sharing a name is malformed.
	internedFuncs := newInterner()
	internedData := newInterner()
	var cursor uint64

	for i := range source {
		def := source[i]
		if def.Func == nil {
			continue
		}
		f := def.Func
		if internedFuncs.seen(f.Name) {
			return nil, ilerr.Newf(ilerr.DuplicateGlobal, "%s", f.Name)
		}
		internedFuncs.add(f.Name)
		s.funcAddr[f.Name] = cursor
		s.funcs[f.Name] = f
		s.Mem.StoreWord(s.lit64(cursor), ctx.Literal(sentinelWord, 32))
		cursor += 4
	}

	for i := range source {
		def := source[i]
		if def.Data == nil {
			continue
		}
		d := def.Data
		if internedData.seen(d.Name) {
			return nil, ilerr.Newf(ilerr.DuplicateGlobal, "%s", d.Name)
		}
		internedData.add(d.Name)
		// Self-reference is permitted: bind the name before lowering the
		// body.
		s.dataAddr[d.Name] = cursor

		for _, obj := range d.Objects {
			n, err := s.lowerDataObj(cursor, obj)
			if err != nil {
				return nil, err
			}
			cursor += n
		}
	}

	s.stkptr = cursor
	return s, nil
}

func (s *State) lit64(v uint64) smt.BV { return s.ctx.Literal(int64(v), 64) }

func (s *State) lowerDataObj(addr uint64, obj qbe.DataObj) (uint64, error) {
	switch obj.Kind {
	case qbe.DataZeroFill:
		for i := uint64(0); i < obj.ZeroLen; i++ {
			s.Mem.StoreByte(s.lit64(addr+i), s.ctx.Literal(0, 8))
		}
		return obj.ZeroLen, nil

	case qbe.DataItems:
		if qbe.IsFloat(obj.ElemTy) {
			panic("state: floating-point data items are not supported")
		}
		var total uint64
		cur := addr
		for _, item := range obj.Items {
			n, err := s.lowerDataItem(cur, obj.ElemTy, item)
			if err != nil {
				return 0, err
			}
			cur += n
			total += n
		}
		return total, nil

	default:
		panic("state: unknown DataObj kind")
	}
}

func (s *State) lowerDataItem(addr uint64, elemTy qbe.Type, item qbe.DataItem) (uint64, error) {
	switch item.Kind {
	case qbe.ItemSymbol:
		base, ok := s.GetPtr(item.SymbolName)
		if !ok {
			return 0, ilerr.Newf(ilerr.UnknownVariable, "%s", item.SymbolName)
		}
		val := s.ctx.Add(base, s.ctx.Literal(item.SymbolOffset, 64))
		s.Mem.StoreBits(s.lit64(addr), val)
		return 8, nil

	case qbe.ItemString:
		if elemTy.Ext == nil || (*elemTy.Ext != qbe.SignedByte && *elemTy.Ext != qbe.UnsignedByte) {
			return 0, ilerr.New(ilerr.UnsupportedStringType)
		}
		s.Mem.StoreString(s.lit64(addr), item.Str)
		return uint64(len(item.Str)), nil

	case qbe.ItemNumber:
		width := qbe.Width(elemTy)
		s.Mem.StoreBits(s.lit64(addr), s.ctx.Literal(item.Num, width))
		return uint64(width / 8), nil

	default:
		panic("state: unknown DataItem kind")
	}
}

// GetPtr resolves name to its recorded global address, consulting the
// data table first and the function table second (a data definition
// shadows a same-named function).
func (s *State) GetPtr(name string) (smt.BV, bool) {
	if addr, ok := s.dataAddr[name]; ok {
		return s.lit64(addr), true
	}
	if addr, ok := s.funcAddr[name]; ok {
		return s.lit64(addr), true
	}
	return smt.BV{}, false
}

// GetFunc looks up a function definition by name.
func (s *State) GetFunc(name string) (*qbe.FuncDef, bool) {
	f, ok := s.funcs[name]
	return f, ok
}

// PushFunc creates a new frame for f, saving the current stack pointer.
func (s *State) PushFunc(f *qbe.FuncDef) {
	s.frames = append(s.frames, newFrame(f, s.stkptr))
}

// PopFunc destroys the top frame, restoring the stack pointer it saved
// (releasing that frame's stack allocations).
func (s *State) PopFunc() {
	n := len(s.frames)
	top := s.frames[n-1]
	s.frames = s.frames[:n-1]
	s.stkptr = top.savedStkptr
}

// StackSize returns the current frame count; depth 1 identifies the entry
// frame.
func (s *State) StackSize() int { return len(s.frames) }

// StackPointer returns the current stack pointer as a 64-bit literal.
func (s *State) StackPointer() smt.BV { return s.lit64(s.stkptr) }

func (s *State) top() *Frame { return s.frames[len(s.frames)-1] }

// AddLocal binds name to v in the current (top) frame.
func (s *State) AddLocal(name string, v smt.BV) { s.top().locals[name] = v }

// GetLocal looks up name in the current frame.
func (s *State) GetLocal(name string) (smt.BV, bool) {
	v, ok := s.top().locals[name]
	return v, ok
}

// CurrentLocals returns a copy of the top frame's name->value bindings, for
// the interpreter's model dump to print at HaltExecution.
func (s *State) CurrentLocals() map[string]smt.BV { return maps.Clone(s.top().locals) }

// GetBlock resolves label to its block in the current frame.
func (s *State) GetBlock(label string) (*qbe.Block, bool) {
	fr := s.top()
	idx, ok := fr.indices[label]
	if !ok {
		return nil, false
	}
	return &fr.body[idx], true
}

// NextBlock returns the block declared immediately after label in the
// current frame's body, or false if label names the last declared block.
// Used to resolve a block with no explicit Jump (fallthrough) to "the
// next block in declaration order" relative to that block, rather than
// relative to whatever block the enclosing function call started at.
func (s *State) NextBlock(label string) (*qbe.Block, bool) {
	fr := s.top()
	idx, ok := fr.indices[label]
	if !ok || idx+1 >= len(fr.body) {
		return nil, false
	}
	return &fr.body[idx+1], true
}

// StackAlloc aligns the current stack pointer up to align, advances it by
// size, and returns the aligned address: the formula
// `(stkptr - (stkptr mod align)) + align` is used verbatim, which always
// advances by at least align bytes, even when stkptr was already aligned.
func (s *State) StackAlloc(align, size uint64) smt.BV {
	aligned := (s.stkptr - (s.stkptr % align)) + align
	s.stkptr = aligned + size
	return s.lit64(aligned)
}

// Snapshot returns an independent State sharing this one's memory term
// (O(1), per symmem.Memory.Snapshot) and a deep-enough copy of the frame
// stack (each frame's locals map cloned) and stack pointer that mutating
// either State afterwards cannot affect the other. Used by interp to
// explore a conditional jump's two arms from a common pre-fork point,
// replacing OS-level fork/waitpid.
func (s *State) Snapshot() *State {
	cp := &State{
		ctx:      s.ctx,
		Mem:      s.Mem.Snapshot(),
		dataAddr: s.dataAddr, // immutable after layout
		funcAddr: s.funcAddr, // immutable after layout
		funcs:    s.funcs,    // immutable after layout
		stkptr:   s.stkptr,
		frames:   make([]*Frame, len(s.frames)),
	}
	for i, fr := range s.frames {
		cp.frames[i] = fr.clone()
	}
	return cp
}
