package sbc

import (
	"fmt"

	"github.com/holiman/uint256"

	"movepvm/internal/types"
)

// BytecodeKind enumerates stackless bytecode instructions.
type BytecodeKind uint8

const (
	BcNop BytecodeKind = iota
	BcAssign
	BcCall
	BcRet
	BcLoad
	BcBranch
	BcJump
	BcLabel
	BcAbort
)

func (k BytecodeKind) String() string {
	switch k {
	case BcNop:
		return "nop"
	case BcAssign:
		return "assign"
	case BcCall:
		return "call"
	case BcRet:
		return "ret"
	case BcLoad:
		return "load"
	case BcBranch:
		return "branch"
	case BcJump:
		return "jump"
	case BcLabel:
		return "label"
	case BcAbort:
		return "abort"
	default:
		return fmt.Sprintf("BytecodeKind(%d)", k)
	}
}

// IsTerminator reports instructions that end a basic block.
func (k BytecodeKind) IsTerminator() bool {
	switch k {
	case BcRet, BcBranch, BcJump, BcAbort:
		return true
	default:
		return false
	}
}

type AssignKind uint8

const (
	AssignMove AssignKind = iota
	AssignCopy
	AssignStore
)

// Bytecode is one stackless instruction.
//
//	Assign: Dst[0] <- Src[0]
//	Call:   Dst... <- Op(Src...)
//	Ret:    return Src...
//	Load:   Dst[0] <- Const
//	Branch: if Src[0] goto Then else Else
//	Jump:   goto Label
//	Label:  Label:
//	Abort:  abort Src[0]
type Bytecode struct {
	Kind   BytecodeKind `msgpack:"kind"`
	Dst    []int        `msgpack:"dst,omitempty"`
	Src    []int        `msgpack:"src,omitempty"`
	Assign AssignKind   `msgpack:"assign,omitempty"`
	Op     *Operation   `msgpack:"op,omitempty"`
	Const  *Constant    `msgpack:"const,omitempty"`
	Label  int          `msgpack:"label,omitempty"`
	Then   int          `msgpack:"then,omitempty"`
	Else   int          `msgpack:"else,omitempty"`
}

// OpKind enumerates operations of a Call instruction.
type OpKind uint8

const (
	OpFunction OpKind = iota
	OpPack
	OpUnpack
	OpMoveTo
	OpMoveFrom
	OpExists
	OpBorrowGlobal
	OpBorrowLoc
	OpBorrowField
	OpRelease
	OpDrop
	OpReadRef
	OpWriteRef
	OpFreezeRef
	OpCastU8
	OpCastU16
	OpCastU32
	OpCastU64
	OpCastU128
	OpCastU256
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpBitOr
	OpBitAnd
	OpXor
	OpShl
	OpShr
	OpLt
	OpGt
	OpLe
	OpGe
	OpOr
	OpAnd
	OpNot
	OpEq
	OpNeq
)

var opNames = [...]string{
	OpFunction:     "call",
	OpPack:         "pack",
	OpUnpack:       "unpack",
	OpMoveTo:       "move_to",
	OpMoveFrom:     "move_from",
	OpExists:       "exists",
	OpBorrowGlobal: "borrow_global",
	OpBorrowLoc:    "borrow_loc",
	OpBorrowField:  "borrow_field",
	OpRelease:      "release",
	OpDrop:         "drop",
	OpReadRef:      "read_ref",
	OpWriteRef:     "write_ref",
	OpFreezeRef:    "freeze_ref",
	OpCastU8:       "cast_u8",
	OpCastU16:      "cast_u16",
	OpCastU32:      "cast_u32",
	OpCastU64:      "cast_u64",
	OpCastU128:     "cast_u128",
	OpCastU256:     "cast_u256",
	OpAdd:          "add",
	OpSub:          "sub",
	OpMul:          "mul",
	OpDiv:          "div",
	OpMod:          "mod",
	OpBitOr:        "bit_or",
	OpBitAnd:       "bit_and",
	OpXor:          "xor",
	OpShl:          "shl",
	OpShr:          "shr",
	OpLt:           "lt",
	OpGt:           "gt",
	OpLe:           "le",
	OpGe:           "ge",
	OpOr:           "or",
	OpAnd:          "and",
	OpNot:          "not",
	OpEq:           "eq",
	OpNeq:          "neq",
}

func (k OpKind) String() string {
	if int(k) < len(opNames) && opNames[k] != "" {
		return opNames[k]
	}
	return fmt.Sprintf("OpKind(%d)", k)
}

// IsStorage reports global storage operations.
func (k OpKind) IsStorage() bool {
	switch k {
	case OpMoveTo, OpMoveFrom, OpExists, OpBorrowGlobal, OpRelease:
		return true
	default:
		return false
	}
}

// IsCast reports CastU8..CastU256.
func (k OpKind) IsCast() bool { return k >= OpCastU8 && k <= OpCastU256 }

// CastTarget returns the destination type of a cast.
func (k OpKind) CastTarget() types.Type {
	switch k {
	case OpCastU8:
		return types.U8
	case OpCastU16:
		return types.U16
	case OpCastU32:
		return types.U32
	case OpCastU64:
		return types.U64
	case OpCastU128:
		return types.U128
	default:
		return types.U256
	}
}

// Arity returns the expected (dst, src) counts, -1 when variable.
func (k OpKind) Arity() (dst, src int) {
	switch k {
	case OpFunction, OpPack, OpUnpack:
		return -1, -1
	case OpMoveTo, OpWriteRef:
		return 0, 2
	case OpRelease:
		return 0, 2
	case OpDrop:
		return 0, 1
	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpBitOr, OpBitAnd, OpXor, OpShl, OpShr,
		OpLt, OpGt, OpLe, OpGe, OpOr, OpAnd, OpEq, OpNeq:
		return 1, 2
	default:
		return 1, 1
	}
}

// Operation is the payload of a Call instruction. Module/Name/TypeArgs name
// the callee for OpFunction and the struct for struct and storage operations.
type Operation struct {
	Kind     OpKind       `msgpack:"kind"`
	Module   string       `msgpack:"module,omitempty"`
	Name     string       `msgpack:"name,omitempty"`
	TypeArgs []types.Type `msgpack:"type_args,omitempty"`
	Field    int          `msgpack:"field,omitempty"`
	Mutable  bool         `msgpack:"mutable,omitempty"`
}

// StructType returns the struct instantiation an operation refers to.
func (op *Operation) StructType() types.Type {
	return types.Struct(op.Module, op.Name, op.TypeArgs...)
}

func (op *Operation) String() string {
	if op.Module == "" {
		return op.Kind.String()
	}
	return fmt.Sprintf("%s %s::%s%s", op.Kind, op.Module, op.Name, types.ArgsKey(op.TypeArgs))
}

// ConstKind enumerates constant shapes.
type ConstKind uint8

const (
	ConstBool ConstKind = iota
	ConstInt
	ConstAddress
	ConstBytes
	ConstVector
)

// Constant is a literal loaded by a Load instruction.
type Constant struct {
	Kind    ConstKind    `msgpack:"kind"`
	Type    types.Type   `msgpack:"type"`
	Bool    bool         `msgpack:"bool,omitempty"`
	Int     *uint256.Int `msgpack:"int,omitempty"`
	Address [32]byte     `msgpack:"address,omitempty"`
	Bytes   []byte       `msgpack:"bytes,omitempty"`
	Elems   []Constant   `msgpack:"elems,omitempty"`
}

// BoolConst returns a bool literal.
func BoolConst(v bool) *Constant {
	return &Constant{Kind: ConstBool, Type: types.Bool, Bool: v}
}

// IntConst returns an integer literal of type t.
func IntConst(t types.Type, v uint64) *Constant {
	return &Constant{Kind: ConstInt, Type: t, Int: uint256.NewInt(v)}
}

// BigIntConst returns an integer literal from a full-width value.
func BigIntConst(t types.Type, v *uint256.Int) *Constant {
	return &Constant{Kind: ConstInt, Type: t, Int: new(uint256.Int).Set(v)}
}

// AddressConst returns an address literal.
func AddressConst(addr [32]byte) *Constant {
	return &Constant{Kind: ConstAddress, Type: types.Address, Address: addr}
}

// BytesConst returns a vector<u8> literal.
func BytesConst(b []byte) *Constant {
	return &Constant{Kind: ConstBytes, Type: types.Vector(types.U8), Bytes: append([]byte(nil), b...)}
}

// FitsWidth reports whether an integer constant is representable in its type.
func (c *Constant) FitsWidth() bool {
	if c.Kind != ConstInt || c.Int == nil {
		return false
	}
	bits := c.Type.Bits()
	if bits == 0 {
		return false
	}
	return c.Int.BitLen() <= bits
}
