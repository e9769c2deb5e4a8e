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

package symmem

import (
	"testing"

	"github.com/gregorvand/qsym/smt"
)

func mustUnsat(t *testing.T, ctx *smt.Context, goal smt.Bool) {
	t.Helper()
	s := ctx.NewSolver()
	s.Assert(ctx.Not(goal))
	res, err := s.CheckAssuming()
	if err != nil {
		t.Fatal(err)
	}
	if res != smt.Unsat {
		t.Fatalf("goal not provable (result=%v)", res)
	}
}

// I1: storing B at A then loading at A yields a value the solver can
// equate to B.
func TestStoreLoadByte(t *testing.T) {
	ctx := smt.NewContext()
	m := New(ctx)

	addr := ctx.Literal(0x1000, 64)
	b := ctx.Literal(0x42, 8)
	m.StoreByte(addr, b)

	got := m.LoadByte(addr)
	mustUnsat(t, ctx, ctx.Eq(got, b))
}

// I2: a 32-bit word stored big-endian at A: the four single-byte loads at
// A..A+3 return B0..B3 with B0 most significant, and the word-load at A
// is equivalent to the stored word.
func TestStoreWordBigEndian(t *testing.T) {
	ctx := smt.NewContext()
	m := New(ctx)

	addr := ctx.Literal(0x2000, 64)
	w := ctx.Literal(0x11223344, 32)
	m.StoreWord(addr, w)

	one := ctx.Literal(1, 64)
	b0 := m.LoadByte(addr)
	b1 := m.LoadByte(ctx.Add(addr, one))
	b2 := m.LoadByte(ctx.Add(addr, ctx.Literal(2, 64)))
	b3 := m.LoadByte(ctx.Add(addr, ctx.Literal(3, 64)))

	mustUnsat(t, ctx, ctx.Eq(b0, ctx.Literal(0x11, 8)))
	mustUnsat(t, ctx, ctx.Eq(b1, ctx.Literal(0x22, 8)))
	mustUnsat(t, ctx, ctx.Eq(b2, ctx.Literal(0x33, 8)))
	mustUnsat(t, ctx, ctx.Eq(b3, ctx.Literal(0x44, 8)))

	loaded := m.LoadWord(addr)
	mustUnsat(t, ctx, ctx.Eq(loaded, w))
}

// I3: store_string(A, s) followed by load_byte(A+i) equals the 8-bit
// code of s[i] for every i < len(s), and the returned cursor equals
// A + len(s).
func TestStoreString(t *testing.T) {
	ctx := smt.NewContext()
	m := New(ctx)

	addr := ctx.Literal(0x3000, 64)
	s := "Hi"
	after := m.StoreString(addr, s)

	for i, r := range []byte(s) {
		got := m.LoadByte(ctx.Add(addr, ctx.Literal(int64(i), 64)))
		mustUnsat(t, ctx, ctx.Eq(got, ctx.Literal(int64(r), 8)))
	}
	mustUnsat(t, ctx, ctx.Eq(after, ctx.Literal(addrVal(0x3000)+int64(len(s)), 64)))
}

func addrVal(v int64) int64 { return v }

func TestSnapshotIsolatesStores(t *testing.T) {
	ctx := smt.NewContext()
	m := New(ctx)
	addr := ctx.Literal(0x4000, 64)
	m.StoreByte(addr, ctx.Literal(1, 8))

	snap := m.Snapshot()
	snap.StoreByte(addr, ctx.Literal(2, 8))

	// The original must still read back the value from before the
	// snapshot's store, proving the two Memory values are independent.
	mustUnsat(t, ctx, ctx.Eq(m.LoadByte(addr), ctx.Literal(1, 8)))
	mustUnsat(t, ctx, ctx.Eq(snap.LoadByte(addr), ctx.Literal(2, 8)))
}
