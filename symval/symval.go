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

// Package symval is the value factory: it knows every IL type's bit
// width and performs every width-changing coercion the interpreter
// needs. Centralizing these here means no other package ever hand-rolls
// a sign/zero-extend or a truncation.
package symval

import (
	"github.com/gregorvand/qsym/qbe"
	"github.com/gregorvand/qsym/smt"
)

// Factory constructs and coerces bit-vectors against one smt.Context.
type Factory struct {
	ctx *smt.Context
}

// New builds a Factory bound to ctx.
func New(ctx *smt.Context) *Factory {
	return &Factory{ctx: ctx}
}

// Fresh returns a named symbolic bit-vector of width(ty) bits.
func (f *Factory) Fresh(name string, ty qbe.Type) smt.BV {
	return f.ctx.FreshConst(name, qbe.Width(ty))
}

// Literal returns a bit-vector of width(ty) bits carrying n. The
// signed/unsigned distinction only matters for how n's bit pattern is
// interpreted by the caller afterwards (comparisons, division); the
// stored bits are the same either way for a fixed-width two's complement
// representation, so literal takes the raw bit pattern as n.
func (f *Factory) Literal(ty qbe.Type, n int64) smt.BV {
	return f.ctx.Literal(n, qbe.Width(ty))
}

// ZeroExtendTo zero-extends v to width(base) bits. A no-op if v is
// already that wide.
func (f *Factory) ZeroExtendTo(base qbe.BaseType, v smt.BV) smt.BV {
	w := qbe.Width(qbe.BaseOf(base))
	if v.Width() == w {
		return v
	}
	return f.ctx.ZeroExtend(v, w)
}

// SignExtendTo sign-extends v to width(base) bits. A no-op if v is
// already that wide.
func (f *Factory) SignExtendTo(base qbe.BaseType, v smt.BV) smt.BV {
	w := qbe.Width(qbe.BaseOf(base))
	if v.Width() == w {
		return v
	}
	return f.ctx.SignExtend(v, w)
}

// TruncateOrExtend adapts v to width(ext) bits: identity if the widths
// already match, zero-extension if ext is wider, and a low-bits
// truncation if ext is narrower.
func (f *Factory) TruncateOrExtend(ext qbe.ExtType, v smt.BV) smt.BV {
	w := qbe.Width(qbe.ExtOf(ext))
	switch {
	case w == v.Width():
		return v
	case w > v.Width():
		return f.ctx.ZeroExtend(v, w)
	default:
		return f.ctx.Extract(v, w-1, 0)
	}
}

// ExtendSubwordToWord asserts width(v) == width(subword) and returns a
// 32-bit bit-vector whose low bits are v and whose high bits are a fresh
// unconstrained symbol — the promotion rule for sub-word values crossing
// a register boundary (e.g. Call arguments).
// name seeds the fresh high half so repeated promotions of distinct
// values don't alias.
func (f *Factory) ExtendSubwordToWord(subword qbe.ExtType, v smt.BV, name string) smt.BV {
	w := qbe.Width(qbe.ExtOf(subword))
	if v.Width() != w {
		panic("symval: ExtendSubwordToWord: width mismatch")
	}
	if w == 32 {
		return v
	}
	high := f.ctx.FreshConst(name+"$hi", 32-w)
	return f.ctx.Concat(high, v)
}
