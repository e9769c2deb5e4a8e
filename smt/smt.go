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

// Package smt is a narrow adapter over github.com/aclements/go-z3, the
// external SMT solver collaborator: bit-vector constants, arithmetic,
// extract/concat, arrays, equality, unsigned/signed comparisons, ite, SAT
// checking under assumptions, and model extraction. Keeping the z3 API
// behind this package means the rest of the interpreter only ever imports
// smt, not z3 directly, and sees the handful of operations it actually
// needs.
package smt

import (
	"fmt"

	"github.com/aclements/go-z3/z3"
	"golang.org/x/exp/maps"
)

// Context owns one z3.Context, the config it was built from, and the
// table of named free symbols. Path constraints are not held here but by
// the Solvers built from it (see NewSolver).
type Context struct {
	cfg  *z3.Config
	ctx  *z3.Context
	free map[string]BV // every named FreshConst, for the interpreter's model-of-free-symbols dump
}

// NewContext builds a fresh solver context.
func NewContext() *Context {
	cfg := z3.NewConfig()
	return &Context{cfg: cfg, ctx: z3.NewContext(cfg), free: make(map[string]BV)}
}

// FreeSymbols returns every name ever passed to FreshConst, with its BV,
// for the interpreter's model dump to print a model value per free symbol.
func (c *Context) FreeSymbols() map[string]BV { return maps.Clone(c.free) }

// BV is a bit-vector term of a known width.
type BV struct {
	ast   z3.BV
	width int
}

// Width returns v's bit width.
func (v BV) Width() int { return v.width }

// Bool is a boolean term, the result of a Compare or array/BV equality.
type Bool struct {
	ast z3.Bool
}

// Array is the memory term: a total map from 64-bit addresses to 8-bit
// bytes.
type Array struct {
	ast z3.Array
}

// FreshConst builds a named, unconstrained bit-vector of the given width.
// Despite the name, two calls with the same name denote the *same* solver
// symbol, exactly as a QBE parameter name does:
// naming is how the caller chooses whether two occurrences share one
// symbolic value.
func (c *Context) FreshConst(name string, width int) BV {
	if v, ok := c.free[name]; ok {
		return v
	}
	sort := c.ctx.BVSort(width)
	v := BV{ast: c.ctx.Const(name, sort).(z3.BV), width: width}
	c.free[name] = v
	return v
}

// Literal builds a bit-vector literal of the given width carrying n's low
// `width` bits.
func (c *Context) Literal(n int64, width int) BV {
	sort := c.ctx.BVSort(width)
	return BV{ast: c.ctx.FromInt(n, sort).(z3.BV), width: width}
}

// UnconstrainedArray builds the initial "memory" array: every address maps
// to an unconstrained symbolic byte until something is stored.
func (c *Context) UnconstrainedArray(name string) Array {
	sort := c.ctx.ArraySort(c.ctx.BVSort(64), c.ctx.BVSort(8))
	return Array{ast: c.ctx.Const(name, sort).(z3.Array)}
}

// Select reads one byte-width BV out of arr at index idx.
func (a Array) Select(idx BV) BV {
	return BV{ast: a.ast.Select(idx.ast).(z3.BV), width: 8}
}

// Store returns a *new* array term equal to arr except that idx now maps
// to val (val must be 8 bits wide). The old term is left untouched, which
// is what makes Memory.Snapshot an O(1) struct copy.
func (a Array) Store(idx, val BV) Array {
	return Array{ast: a.ast.Store(idx.ast, val.ast).(z3.Array)}
}

func (c *Context) bv(v BV) z3.BV { return v.ast }

// Add, Sub, Mul return a new BV of the same width as a and b (which must
// match; the interpreter only ever calls these after dest-type subtyping
// has equalized widths).
func (c *Context) Add(a, b BV) BV { return BV{ast: a.ast.Add(b.ast), width: a.width} }
func (c *Context) Sub(a, b BV) BV { return BV{ast: a.ast.Sub(b.ast), width: a.width} }
func (c *Context) Mul(a, b BV) BV { return BV{ast: a.ast.Mul(b.ast), width: a.width} }

// SRem, URem are signed and unsigned remainder respectively.
func (c *Context) SRem(a, b BV) BV { return BV{ast: a.ast.SRem(b.ast), width: a.width} }
func (c *Context) URem(a, b BV) BV { return BV{ast: a.ast.URem(b.ast), width: a.width} }

// Eq, Ne, and the eight ordered comparisons implement the Compare
// predicates.
func (c *Context) Eq(a, b BV) Bool  { return Bool{ast: a.ast.Eq(b.ast)} }
func (c *Context) Ne(a, b BV) Bool  { return Bool{ast: a.ast.Eq(b.ast).Not()} }
func (c *Context) Sle(a, b BV) Bool { return Bool{ast: a.ast.Sle(b.ast)} }
func (c *Context) Slt(a, b BV) Bool { return Bool{ast: a.ast.Slt(b.ast)} }
func (c *Context) Sge(a, b BV) Bool { return Bool{ast: a.ast.Sge(b.ast)} }
func (c *Context) Sgt(a, b BV) Bool { return Bool{ast: a.ast.Sgt(b.ast)} }
func (c *Context) Ule(a, b BV) Bool { return Bool{ast: a.ast.Ule(b.ast)} }
func (c *Context) Ult(a, b BV) Bool { return Bool{ast: a.ast.Ult(b.ast)} }
func (c *Context) Uge(a, b BV) Bool { return Bool{ast: a.ast.Uge(b.ast)} }
func (c *Context) Ugt(a, b BV) Bool { return Bool{ast: a.ast.Ugt(b.ast)} }

// Not negates a boolean term (used to build the "not taken" guard of a
// Jnz arm).
func (c *Context) Not(b Bool) Bool { return Bool{ast: b.ast.Not()} }

// Ite lowers a boolean to a bit-vector of the given width, 1 if cond holds
// else 0.
func (c *Context) Ite(cond Bool, width int) BV {
	one := c.Literal(1, width)
	zero := c.Literal(0, width)
	return BV{ast: cond.ast.IfThenElse(one.ast, zero.ast).(z3.BV), width: width}
}

// Extract returns bits [hi:lo] of v (inclusive, 0-indexed from the LSB).
func (c *Context) Extract(v BV, hi, lo int) BV {
	return BV{ast: v.ast.Extract(hi, lo), width: hi - lo + 1}
}

// Concat concatenates hi (most significant) and lo (least significant)
// into one wider bit-vector.
func (c *Context) Concat(hi, lo BV) BV {
	return BV{ast: hi.ast.Concat(lo.ast), width: hi.width + lo.width}
}

// SignExtend, ZeroExtend widen v to totalWidth bits.
func (c *Context) SignExtend(v BV, totalWidth int) BV {
	return BV{ast: v.ast.SignExtend(totalWidth - v.width), width: totalWidth}
}

func (c *Context) ZeroExtend(v BV, totalWidth int) BV {
	return BV{ast: v.ast.ZeroExtend(totalWidth - v.width), width: totalWidth}
}

// Result is the outcome of a satisfiability check.
type Result int

const (
	Unsat Result = iota
	Sat
	Unknown
)

// Solver accumulates assertions for the single process currently
// exploring one control-flow path; assertions are never reset within a
// run. Push/Pop scope the assertions made while speculatively descending
// one arm of a conditional jump, replacing OS-level fork/waitpid
// isolation.
type Solver struct {
	ctx *Context
	s   *z3.Solver
}

// NewSolver builds a solver bound to c.
func (c *Context) NewSolver() *Solver {
	return &Solver{ctx: c, s: c.ctx.NewSolver()}
}

// Assert permanently adds b to this solver's assertion stack.
func (s *Solver) Assert(b Bool) { s.s.Assert(b.ast) }

// Push opens a new assertion scope.
func (s *Solver) Push() { s.s.Push() }

// Pop discards every assertion made since the matching Push.
func (s *Solver) Pop() { s.s.Pop(1) }

// CheckAssuming reports whether the current assertions, plus each of
// assumptions, are jointly satisfiable, without permanently asserting the
// assumptions.
func (s *Solver) CheckAssuming(assumptions ...Bool) (Result, error) {
	lits := make([]z3.Bool, len(assumptions))
	for i, a := range assumptions {
		lits[i] = a.ast
	}
	sat, err := s.s.CheckAssumptions(lits...)
	if err != nil {
		return Unknown, fmt.Errorf("smt: check failed: %w", err)
	}
	switch sat {
	case z3.Sat:
		return Sat, nil
	case z3.Unsat:
		return Unsat, nil
	default:
		return Unknown, nil
	}
}

// Model is a satisfying assignment extracted after a successful Check.
type Model struct {
	m *z3.Model
}

// Model re-checks the current assertions and extracts a model. Returns
// (nil, false) if no model exists.
func (s *Solver) Model() (*Model, bool) {
	sat, err := s.s.Check()
	if err != nil || sat != z3.Sat {
		return nil, false
	}
	m := s.s.Model()
	if m == nil {
		return nil, false
	}
	return &Model{m: m}, true
}

// Eval simplifies v under m and renders it with z3's term printer (a
// bit-vector numeral prints as a #x or #b literal), for the
// human-readable model dump.
func (m *Model) Eval(v BV) string {
	val := m.m.Eval(v.ast, true)
	return fmt.Sprintf("%v", val)
}

// String renders v without a model, for tracing unresolved symbolic
// expressions in per-label exploration traces.
func (v BV) String() string { return fmt.Sprintf("%v", v.ast) }
