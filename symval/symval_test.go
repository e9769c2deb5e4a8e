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

package symval

import (
	"testing"

	"github.com/gregorvand/qsym/qbe"
	"github.com/gregorvand/qsym/smt"
)

// I4: for every sub-word type T of width w < 32, ExtendSubwordToWord(T, v)
// yields a 32-bit bit-vector whose low w bits equal v.
func TestExtendSubwordToWord_LowBitsPreserved(t *testing.T) {
	cases := []struct {
		name string
		ty   qbe.ExtType
	}{
		{"signed byte", qbe.SignedByte},
		{"unsigned byte", qbe.UnsignedByte},
		{"signed half", qbe.SignedHalf},
		{"unsigned half", qbe.UnsignedHalf},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ctx := smt.NewContext()
			f := New(ctx)
			w := qbe.Width(qbe.ExtOf(c.ty))

			v := ctx.FreshConst("v", w)
			promoted := f.ExtendSubwordToWord(c.ty, v, "v")
			if promoted.Width() != 32 {
				t.Fatalf("promoted width = %d, want 32", promoted.Width())
			}
			low := ctx.Extract(promoted, w-1, 0)

			s := ctx.NewSolver()
			s.Assert(ctx.Not(ctx.Eq(low, v)))
			res, err := s.CheckAssuming()
			if err != nil {
				t.Fatal(err)
			}
			if res != smt.Unsat {
				t.Fatalf("low bits of promoted value are not provably equal to v (result=%v)", res)
			}
		})
	}
}

func TestTruncateOrExtend(t *testing.T) {
	ctx := smt.NewContext()
	f := New(ctx)

	v := ctx.FreshConst("v", 8)
	wide := f.TruncateOrExtend(qbe.ExtWord, v)
	if wide.Width() != 32 {
		t.Fatalf("width = %d, want 32", wide.Width())
	}
	narrow := f.TruncateOrExtend(qbe.UnsignedByte, wide)
	if narrow.Width() != 8 {
		t.Fatalf("width = %d, want 8", narrow.Width())
	}

	s := ctx.NewSolver()
	s.Assert(ctx.Not(ctx.Eq(narrow, v)))
	res, err := s.CheckAssuming()
	if err != nil {
		t.Fatal(err)
	}
	if res != smt.Unsat {
		t.Fatalf("round-tripped value changed (result=%v)", res)
	}
}
