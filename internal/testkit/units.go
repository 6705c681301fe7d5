// Package testkit holds hand-built compilation units shared by package tests.
package testkit

import (
	"movepvm/internal/sbc"
	"movepvm/internal/types"
)

const (
	StdAddr = "0x1"
	AppAddr = "0x42"

	SignerModule = "0x1::signer"
	VectorModule = "0x1::vector"
	HashModule   = "0x1::hash"
	DebugModule  = "0x1::debug"

	ArithModule = "0x42::arith"
	VaultModule = "0x42::vault"
	BoxesModule = "0x42::boxes"
)

func signerRef() types.Type { return types.Ref(types.Signer, false) }

// StdlibModules declares the native functions the fixtures call.
func StdlibModules() []*sbc.Module {
	vecT := types.Vector(types.Param(0))
	return []*sbc.Module{
		{
			Address: StdAddr,
			Name:    "signer",
			Functions: []*sbc.Function{
				{Name: "borrow_address", Native: true, Params: []types.Type{signerRef()}, Returns: []types.Type{types.Ref(types.Address, false)}},
			},
		},
		{
			Address: StdAddr,
			Name:    "hash",
			Functions: []*sbc.Function{
				{Name: "sha2_256", Native: true, Params: []types.Type{types.Vector(types.U8)}, Returns: []types.Type{types.Vector(types.U8)}},
				{Name: "sha3_256", Native: true, Params: []types.Type{types.Vector(types.U8)}, Returns: []types.Type{types.Vector(types.U8)}},
			},
		},
		{
			Address: StdAddr,
			Name:    "vector",
			Functions: []*sbc.Function{
				{Name: "empty", Native: true, TypeParams: 1, Returns: []types.Type{vecT}},
				{Name: "length", Native: true, TypeParams: 1, Params: []types.Type{types.Ref(vecT, false)}, Returns: []types.Type{types.U64}},
				{Name: "borrow", Native: true, TypeParams: 1, Params: []types.Type{types.Ref(vecT, false), types.U64}, Returns: []types.Type{types.Ref(types.Param(0), false)}},
				{Name: "push_back", Native: true, TypeParams: 1, Params: []types.Type{types.Ref(vecT, true), types.Param(0)}},
				{Name: "pop_back", Native: true, TypeParams: 1, Params: []types.Type{types.Ref(vecT, true)}, Returns: []types.Type{types.Param(0)}},
				{Name: "destroy_empty", Native: true, TypeParams: 1, Params: []types.Type{vecT}},
				{Name: "swap", Native: true, TypeParams: 1, Params: []types.Type{types.Ref(vecT, true), types.U64, types.U64}},
			},
		},
		{
			Address: StdAddr,
			Name:    "debug",
			Functions: []*sbc.Function{
				{Name: "print", Native: true, TypeParams: 1, Params: []types.Type{types.Ref(types.Param(0), false)}},
			},
		},
	}
}

// ArithModuleDef is 0x42::arith: add, safe_div, max, check and the entry sum.
func ArithModuleDef() *sbc.Module {
	u32, u64 := types.U32, types.U64
	return &sbc.Module{
		Address: AppAddr,
		Name:    "arith",
		Functions: []*sbc.Function{
			{
				Name:    "add",
				Params:  []types.Type{u32, u32},
				Returns: []types.Type{u32},
				Locals:  []types.Type{u32, u32, u32},
				Code: []sbc.Bytecode{
					sbc.Call(sbc.Op(sbc.OpAdd), []int{2}, 0, 1),
					sbc.Ret(2),
				},
			},
			{
				Name:    "safe_div",
				Params:  []types.Type{u64, u64},
				Returns: []types.Type{u64},
				Locals:  []types.Type{u64, u64, u64},
				Code: []sbc.Bytecode{
					sbc.Call(sbc.Op(sbc.OpDiv), []int{2}, 0, 1),
					sbc.Ret(2),
				},
			},
			{
				Name:    "max",
				Params:  []types.Type{u64, u64},
				Returns: []types.Type{u64},
				Locals:  []types.Type{u64, u64, types.Bool},
				Code: []sbc.Bytecode{
					sbc.Call(sbc.Op(sbc.OpGt), []int{2}, 0, 1),
					sbc.Branch(2, 1, 2),
					sbc.Label(1),
					sbc.Ret(0),
					sbc.Label(2),
					sbc.Ret(1),
				},
			},
			{
				Name:   "check",
				Params: []types.Type{u64},
				Locals: []types.Type{u64, u64, types.Bool, u64},
				Code: []sbc.Bytecode{
					sbc.LoadConst(1, sbc.IntConst(u64, 0)),
					sbc.Call(sbc.Op(sbc.OpEq), []int{2}, 0, 1),
					sbc.Branch(2, 1, 2),
					sbc.Label(1),
					sbc.LoadConst(3, sbc.IntConst(u64, 77)),
					sbc.Abort(3),
					sbc.Label(2),
					sbc.Ret(),
				},
			},
			{
				Name:   "sum",
				Entry:  true,
				Params: []types.Type{signerRef(), u32, u32},
				Locals: []types.Type{signerRef(), u32, u32, u32},
				Code: []sbc.Bytecode{
					sbc.Call(sbc.FnOp(ArithModule, "add"), []int{3}, 1, 2),
					sbc.Ret(),
				},
			},
		},
	}
}

// ArithUnit is the arithmetic fixture with the stdlib natives.
func ArithUnit() *sbc.Unit {
	return &sbc.Unit{Modules: append(StdlibModules(), ArithModuleDef())}
}

// VaultResource is 0x42::vault::R.
func VaultResource() types.Type { return types.Struct(VaultModule, "R") }

// VaultModuleDef is 0x42::vault holding R{value: u64} under the signer's address.
func VaultModuleDef() *sbc.Module {
	u64 := types.U64
	r := VaultResource()
	rOp := func(kind sbc.OpKind) *sbc.Operation { return sbc.StructOp(kind, VaultModule, "R") }
	return &sbc.Module{
		Address: AppAddr,
		Name:    "vault",
		Structs: []*sbc.StructDef{
			{Name: "R", Abilities: sbc.AbilityKey | sbc.AbilityStore, Fields: []sbc.Field{{Name: "value", Type: u64}}},
		},
		Functions: []*sbc.Function{
			{
				Name:   "publish",
				Params: []types.Type{signerRef(), u64},
				Locals: []types.Type{signerRef(), u64, r},
				Code: []sbc.Bytecode{
					sbc.Call(rOp(sbc.OpPack), []int{2}, 1),
					sbc.Call(rOp(sbc.OpMoveTo), nil, 2, 0),
					sbc.Ret(),
				},
			},
			{
				Name:    "take",
				Params:  []types.Type{types.Address},
				Returns: []types.Type{u64},
				Locals:  []types.Type{types.Address, r, u64},
				Code: []sbc.Bytecode{
					sbc.Call(rOp(sbc.OpMoveFrom), []int{1}, 0),
					sbc.Call(rOp(sbc.OpUnpack), []int{2}, 1),
					sbc.Ret(2),
				},
			},
			{
				Name:    "has",
				Params:  []types.Type{types.Address},
				Returns: []types.Type{types.Bool},
				Locals:  []types.Type{types.Address, types.Bool},
				Code: []sbc.Bytecode{
					sbc.Call(rOp(sbc.OpExists), []int{1}, 0),
					sbc.Ret(1),
				},
			},
			{
				Name:    "peek",
				Params:  []types.Type{types.Address},
				Returns: []types.Type{u64},
				Locals:  []types.Type{types.Address, types.Ref(r, false), types.Ref(u64, false), u64},
				Code: []sbc.Bytecode{
					sbc.Call(sbc.GlobalOp(VaultModule, "R", false), []int{1}, 0),
					sbc.Call(sbc.FieldOp(VaultModule, "R", 0), []int{2}, 1),
					sbc.Call(sbc.Op(sbc.OpReadRef), []int{3}, 2),
					sbc.Call(rOp(sbc.OpRelease), nil, 0, 1),
					sbc.Ret(3),
				},
			},
			{
				Name:   "bump",
				Params: []types.Type{types.Address},
				Locals: []types.Type{types.Address, types.Ref(r, true), types.Ref(u64, true), u64, u64, u64},
				Code: []sbc.Bytecode{
					sbc.Call(sbc.GlobalOp(VaultModule, "R", true), []int{1}, 0),
					sbc.Call(sbc.FieldOp(VaultModule, "R", 0), []int{2}, 1),
					sbc.Call(sbc.Op(sbc.OpReadRef), []int{3}, 2),
					sbc.LoadConst(4, sbc.IntConst(u64, 1)),
					sbc.Call(sbc.Op(sbc.OpAdd), []int{5}, 3, 4),
					sbc.Call(sbc.Op(sbc.OpWriteRef), nil, 2, 5),
					sbc.Call(rOp(sbc.OpRelease), nil, 0, 1),
					sbc.Ret(),
				},
			},
			{
				Name:   "init",
				Entry:  true,
				Params: []types.Type{signerRef(), u64},
				Locals: []types.Type{signerRef(), u64},
				Code: []sbc.Bytecode{
					sbc.Call(sbc.FnOp(VaultModule, "publish"), nil, 0, 1),
					sbc.Ret(),
				},
			},
			{
				Name:   "withdraw",
				Entry:  true,
				Params: []types.Type{signerRef()},
				Locals: []types.Type{signerRef(), types.Ref(types.Address, false), types.Address, u64},
				Code: []sbc.Bytecode{
					sbc.Call(sbc.FnOp(SignerModule, "borrow_address"), []int{1}, 0),
					sbc.Call(sbc.Op(sbc.OpReadRef), []int{2}, 1),
					sbc.Call(sbc.FnOp(VaultModule, "take"), []int{3}, 2),
					sbc.Ret(),
				},
			},
		},
	}
}

// VaultUnit is the storage fixture with the stdlib natives.
func VaultUnit() *sbc.Unit {
	return &sbc.Unit{Modules: append(StdlibModules(), VaultModuleDef())}
}

// BoxType is 0x42::boxes::Box<arg>.
func BoxType(arg types.Type) types.Type { return types.Struct(BoxesModule, "Box", arg) }

// BoxesModuleDef exercises generics, equality and vector natives.
func BoxesModuleDef() *sbc.Module {
	t0 := types.Param(0)
	u64 := types.U64
	vecU64 := types.Vector(u64)
	return &sbc.Module{
		Address: AppAddr,
		Name:    "boxes",
		Structs: []*sbc.StructDef{
			{Name: "Box", TypeParams: 1, Abilities: sbc.AbilityCopy | sbc.AbilityDrop, Fields: []sbc.Field{{Name: "v", Type: t0}}},
		},
		Functions: []*sbc.Function{
			{
				Name:       "wrap",
				TypeParams: 1,
				Params:     []types.Type{t0},
				Returns:    []types.Type{BoxType(t0)},
				Locals:     []types.Type{t0, BoxType(t0)},
				Code: []sbc.Bytecode{
					sbc.Call(sbc.StructOp(sbc.OpPack, BoxesModule, "Box", t0), []int{1}, 0),
					sbc.Ret(1),
				},
			},
			{
				Name:       "unwrap",
				TypeParams: 1,
				Params:     []types.Type{BoxType(t0)},
				Returns:    []types.Type{t0},
				Locals:     []types.Type{BoxType(t0), t0},
				Code: []sbc.Bytecode{
					sbc.Call(sbc.StructOp(sbc.OpUnpack, BoxesModule, "Box", t0), []int{1}, 0),
					sbc.Ret(1),
				},
			},
			{
				Name:    "same",
				Params:  []types.Type{BoxType(vecU64), BoxType(vecU64)},
				Returns: []types.Type{types.Bool},
				Locals:  []types.Type{BoxType(vecU64), BoxType(vecU64), types.Bool},
				Code: []sbc.Bytecode{
					sbc.Call(sbc.Op(sbc.OpEq), []int{2}, 0, 1),
					sbc.Ret(2),
				},
			},
			{
				Name:    "demo",
				Returns: []types.Type{u64},
				Locals:  []types.Type{u64, BoxType(u64), types.Bool, BoxType(types.Bool), u64},
				Code: []sbc.Bytecode{
					sbc.LoadConst(0, sbc.IntConst(u64, 5)),
					sbc.Call(sbc.FnOp(BoxesModule, "wrap", u64), []int{1}, 0),
					sbc.LoadConst(2, sbc.BoolConst(true)),
					sbc.Call(sbc.FnOp(BoxesModule, "wrap", types.Bool), []int{3}, 2),
					sbc.Call(sbc.FnOp(BoxesModule, "unwrap", u64), []int{4}, 1),
					sbc.Ret(4),
				},
			},
			{
				Name:    "vec_demo",
				Returns: []types.Type{u64},
				Locals:  []types.Type{vecU64, types.Ref(vecU64, true), u64, types.Ref(vecU64, false), u64},
				Code: []sbc.Bytecode{
					sbc.Call(sbc.FnOp(VectorModule, "empty", u64), []int{0}),
					sbc.Call(sbc.Op(sbc.OpBorrowLoc), []int{1}, 0),
					sbc.LoadConst(2, sbc.IntConst(u64, 7)),
					sbc.Call(sbc.FnOp(VectorModule, "push_back", u64), nil, 1, 2),
					sbc.Call(sbc.Op(sbc.OpFreezeRef), []int{3}, 1),
					sbc.Call(sbc.FnOp(VectorModule, "length", u64), []int{4}, 3),
					sbc.Ret(4),
				},
			},
		},
	}
}

// BoxesUnit is the generics fixture with the stdlib natives.
func BoxesUnit() *sbc.Unit {
	return &sbc.Unit{Modules: append(StdlibModules(), BoxesModuleDef())}
}
