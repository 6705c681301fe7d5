package storage

import (
	"movepvm/internal/natives"
	"movepvm/internal/sbc"
)

// Guest runtime symbols for storage operations. owner and tag point at 32
// bytes each; len is the layout size of the resource.
const (
	SymMoveTo       = "move_rt_move_to"
	SymMoveFrom     = "move_rt_move_from"
	SymBorrowGlobal = "move_rt_borrow_global"
	SymExists       = "move_rt_exists"
	SymRelease      = "move_rt_release"
)

// Bridge returns the declarations of the storage symbols.
func Bridge() []natives.Decl {
	ptr, i64 := natives.WordPtr, natives.WordI64
	return []natives.Decl{
		// move_to(owner, tag, bytes, len)
		{Symbol: SymMoveTo, Ret: natives.WordVoid, Params: []natives.Word{ptr, ptr, ptr, i64}},
		// move_from(owner, tag, out, len)
		{Symbol: SymMoveFrom, Ret: natives.WordVoid, Params: []natives.Word{ptr, ptr, ptr, i64}},
		// borrow_global(owner, tag, len, mut) -> guest copy of the value
		{Symbol: SymBorrowGlobal, Ret: natives.WordPtr, Params: []natives.Word{ptr, ptr, i64, natives.WordI32}},
		{Symbol: SymExists, Ret: natives.WordI1, Params: []natives.Word{ptr, ptr}},
		// release(owner, tag, value, len) writes value back after a mutable borrow
		{Symbol: SymRelease, Ret: natives.WordVoid, Params: []natives.Word{ptr, ptr, ptr, i64}},
	}
}

// SymbolFor maps a storage operation to its runtime symbol.
func SymbolFor(op sbc.OpKind) (string, bool) {
	switch op {
	case sbc.OpMoveTo:
		return SymMoveTo, true
	case sbc.OpMoveFrom:
		return SymMoveFrom, true
	case sbc.OpBorrowGlobal:
		return SymBorrowGlobal, true
	case sbc.OpExists:
		return SymExists, true
	case sbc.OpRelease:
		return SymRelease, true
	default:
		return "", false
	}
}

// GuestSymbols lists every symbol the runtime object must define: natives,
// runtime helpers, the storage bridge and compiler support routines.
func GuestSymbols() []string {
	decls := append(natives.Decls(), Bridge()...)
	out := make([]string, 0, len(decls)+len(natives.SupportSymbols()))
	for _, d := range decls {
		out = append(out, d.Symbol)
	}
	return append(out, natives.SupportSymbols()...)
}
