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

package qbe

// The constructors below build qbe trees programmatically. They stand in
// for the out-of-scope QBE-text reader when writing tests: small, typed,
// composable functions rather than a hand-rolled grammar. The testdata/
// example programs are hand-written JSON and do not use them.

// LocalVar builds a Value referencing a bound local or parameter.
func LocalVar(name string) Value {
	return Value{Kind: ValLocalVar, LocalVar: name}
}

// ConstNumber builds a Const(Number) Value.
func ConstNumber(n int64) Value {
	return Value{Kind: ValConstNumber, Number: n}
}

// ConstGlobal builds a Const(Global) Value, optionally offset.
func ConstGlobal(name string, offset int64) Value {
	return Value{Kind: ValConstGlobal, GlobalName: name, GlobalOffset: offset}
}

// Param builds a Regular FuncParam.
func Param(ty Type, name string) FuncParam {
	return FuncParam{Kind: ParamRegular, Type: ty, Name: name}
}

// Assign builds an Assign statement.
func Assign(dest string, ty BaseType, instr Instr) Statement {
	return Statement{Kind: StmtAssign, Dest: dest, BaseTy: ty, Instr: &instr}
}

// VolatileStmt builds a Volatile statement wrapping a Store.
func VolatileStmt(v VolatileInstr) Statement {
	return Statement{Kind: StmtVolatile, Volatile: &v}
}

// CallStmt builds a Call statement. dest and ty may be the zero value if
// the callee's result is discarded.
func CallStmt(dest string, ty *BaseType, fname string, params []FuncParam) Statement {
	return Statement{
		Kind:       StmtCall,
		CallDest:   dest,
		CallTy:     ty,
		FuncName:   fname,
		CallParams: params,
	}
}

// BinOp builds an Add/Sub/Mul/Rem/URem instruction.
func BinOp(op InstrOp, a, b Value) Instr {
	return Instr{Op: op, A: a, B: b}
}

// Compare builds a Compare instruction.
func Compare(ty Type, cmp CmpOp, a, b Value) Instr {
	return Instr{Op: OpCompare, CmpTy: ty, Cmp: cmp, A: a, B: b}
}

// Load builds a Load instruction.
func Load(ty Type, addr Value) Instr {
	return Instr{Op: OpLoad, LoadTy: ty, A: addr}
}

// Alloc builds an Alloc instruction.
func Alloc(align, size uint64) Instr {
	return Instr{Op: OpAlloc, Align: align, Size: size}
}

// Ext builds an Ext instruction.
func Ext(src Type, v Value) Instr {
	return Instr{Op: OpExt, SrcExtTy: src, A: v}
}

// Store builds a Store VolatileInstr.
func Store(ty Type, v, addr Value) VolatileInstr {
	return VolatileInstr{ExtTy: ty, Val: v, Addr: addr}
}

// Jump builds an unconditional Jump terminator.
func Jump(target string) *JumpInstr {
	return &JumpInstr{Kind: JumpUncond, Target: target}
}

// Jnz builds a conditional Jnz terminator.
func Jnz(cond Value, nz, z string) *JumpInstr {
	return &JumpInstr{Kind: JumpJnz, Cond: cond, NzTarget: nz, ZTarget: z}
}

// Return builds a Return terminator. Pass nil for a bare "ret".
func Return(v *Value) *JumpInstr {
	return &JumpInstr{Kind: JumpReturn, Value: v}
}

// Halt builds a Halt terminator.
func Halt() *JumpInstr {
	return &JumpInstr{Kind: JumpHalt}
}

// Blk builds a Block.
func Blk(label string, jump *JumpInstr, inst ...Statement) Block {
	return Block{Label: label, Inst: inst, Jump: jump}
}

// Func builds a FuncDef.
func Func(name string, ret *BaseType, params []FuncParam, body ...Block) FuncDef {
	return FuncDef{Name: name, Ret: ret, Params: params, Body: body}
}

// ZeroFill builds a ZeroFill DataObj.
func ZeroFill(n uint64) DataObj {
	return DataObj{Kind: DataZeroFill, ZeroLen: n}
}

// Items builds a DataItems DataObj.
func Items(elemTy Type, items ...DataItem) DataObj {
	return DataObj{Kind: DataItems, ElemTy: elemTy, Items: items}
}

// SymbolItem builds a Symbol DataItem.
func SymbolItem(name string, offset int64) DataItem {
	return DataItem{Kind: ItemSymbol, SymbolName: name, SymbolOffset: offset}
}

// StringItem builds a String DataItem.
func StringItem(s string) DataItem {
	return DataItem{Kind: ItemString, Str: s}
}

// NumberItem builds a Number DataItem.
func NumberItem(n int64) DataItem {
	return DataItem{Kind: ItemNumber, Num: n}
}

// Data builds a DataDef.
func Data(name string, objs ...DataObj) DataDef {
	return DataDef{Name: name, Objects: objs}
}

// FuncDefinition and DataDefinition wrap a FuncDef/DataDef as a top-level
// Definition, matching the Definition ∈ {Func, Data, Type} grammar.
func FuncDefinition(f FuncDef) Definition { return Definition{Func: &f} }
func DataDefinition(d DataDef) Definition { return Definition{Data: &d} }
