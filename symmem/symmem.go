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

// Package symmem is the symbolic memory: a total, byte addressable map
// over a 64-bit address space, backed by an SMT array theory term. Every
// store produces a new array term rather than mutating the old one, so a
// Memory value is O(1) to copy — a persistent-structure style also used
// by Memory.Snapshot to support interp's path exploration.
package symmem

import (
	"github.com/gregorvand/qsym/smt"
)

// Memory is the byte-addressed symbolic store.
type Memory struct {
	ctx *smt.Context
	arr smt.Array
}

// New builds a fresh, wholly unconstrained memory named "memory".
func New(ctx *smt.Context) *Memory {
	return &Memory{ctx: ctx, arr: ctx.UnconstrainedArray("memory")}
}

// Snapshot returns an independent Memory sharing the current array term.
// Because stores never mutate a term in place, later writes to the
// snapshot (or to m) never affect the other.
func (m *Memory) Snapshot() *Memory {
	cp := *m
	return &cp
}

// StoreByte writes one byte at addr.
func (m *Memory) StoreByte(addr, b smt.BV) {
	if addr.Width() != 64 {
		panic("symmem: StoreByte: addr must be 64 bits")
	}
	if b.Width() != 8 {
		panic("symmem: StoreByte: value must be 8 bits")
	}
	m.arr = m.arr.Store(addr, b)
}

// LoadByte reads one byte at addr.
func (m *Memory) LoadByte(addr smt.BV) smt.BV {
	if addr.Width() != 64 {
		panic("symmem: LoadByte: addr must be 64 bits")
	}
	return m.arr.Select(addr)
}

func (m *Memory) addrPlus(addr smt.BV, k int) smt.BV {
	return m.ctx.Add(addr, m.ctx.Literal(int64(k), 64))
}

// StoreBits splits v into 8-bit bytes and writes them starting at addr in
// big-endian order: the byte extracted from bits [(i*8-1):((i-1)*8)] of a
// width-8k value goes to addr+(k-i), for i=1..k. width(v) must be a
// multiple of 8.
func (m *Memory) StoreBits(addr, v smt.BV) {
	if v.Width()%8 != 0 {
		panic("symmem: StoreBits: value width must be a multiple of 8")
	}
	k := v.Width() / 8
	for i := 1; i <= k; i++ {
		byteVal := m.ctx.Extract(v, i*8-1, (i-1)*8)
		m.StoreByte(m.addrPlus(addr, k-i), byteVal)
	}
}

// LoadBits reads nbytes bytes starting at addr and concatenates them in
// address order (address addr is the most significant byte), producing an
// 8*nbytes-bit value — the inverse of StoreBits.
func (m *Memory) LoadBits(addr smt.BV, nbytes int) smt.BV {
	if nbytes <= 0 {
		panic("symmem: LoadBits: nbytes must be positive")
	}
	result := m.LoadByte(addr)
	for i := 1; i < nbytes; i++ {
		next := m.LoadByte(m.addrPlus(addr, i))
		result = m.ctx.Concat(result, next)
	}
	return result
}

// StoreWord is StoreBits with a width(v) == 32 assertion.
func (m *Memory) StoreWord(addr, v smt.BV) {
	if v.Width() != 32 {
		panic("symmem: StoreWord: value must be 32 bits")
	}
	m.StoreBits(addr, v)
}

// LoadWord is LoadBits(_, 4) with a resulting-width assertion.
func (m *Memory) LoadWord(addr smt.BV) smt.BV {
	v := m.LoadBits(addr, 4)
	if v.Width() != 32 {
		panic("symmem: LoadWord: result must be 32 bits")
	}
	return v
}

// StoreString writes each byte of s's character codes consecutively
// starting at addr (no NUL appended) and returns the address immediately
// after the last byte written.
func (m *Memory) StoreString(addr smt.BV, s string) smt.BV {
	cur := addr
	for _, r := range []byte(s) {
		m.StoreByte(cur, m.ctx.Literal(int64(r), 8))
		cur = m.addrPlus(cur, 1)
	}
	return cur
}
