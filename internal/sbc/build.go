package sbc

import "movepvm/internal/types"

// Constructors for hand-built bytecode. Front-ends and tests use them to keep
// function bodies readable.

func Assign(dst, src int) Bytecode {
	return Bytecode{Kind: BcAssign, Dst: []int{dst}, Src: []int{src}, Assign: AssignMove}
}

func Copy(dst, src int) Bytecode {
	return Bytecode{Kind: BcAssign, Dst: []int{dst}, Src: []int{src}, Assign: AssignCopy}
}

func Call(op *Operation, dst []int, src ...int) Bytecode {
	return Bytecode{Kind: BcCall, Dst: dst, Src: src, Op: op}
}

func Ret(src ...int) Bytecode {
	return Bytecode{Kind: BcRet, Src: src}
}

func LoadConst(dst int, c *Constant) Bytecode {
	return Bytecode{Kind: BcLoad, Dst: []int{dst}, Const: c}
}

func Branch(cond, then, els int) Bytecode {
	return Bytecode{Kind: BcBranch, Src: []int{cond}, Then: then, Else: els}
}

func Jump(label int) Bytecode {
	return Bytecode{Kind: BcJump, Label: label}
}

func Label(label int) Bytecode {
	return Bytecode{Kind: BcLabel, Label: label}
}

func Abort(src int) Bytecode {
	return Bytecode{Kind: BcAbort, Src: []int{src}}
}

// Op returns an operation without a module/struct reference.
func Op(kind OpKind) *Operation {
	return &Operation{Kind: kind}
}

// FnOp references a function (translated or native).
func FnOp(module, name string, typeArgs ...types.Type) *Operation {
	return &Operation{Kind: OpFunction, Module: module, Name: name, TypeArgs: typeArgs}
}

// StructOp references a struct instantiation.
func StructOp(kind OpKind, module, name string, typeArgs ...types.Type) *Operation {
	return &Operation{Kind: kind, Module: module, Name: name, TypeArgs: typeArgs}
}

// FieldOp borrows field index of a struct instantiation.
func FieldOp(module, name string, field int, typeArgs ...types.Type) *Operation {
	return &Operation{Kind: OpBorrowField, Module: module, Name: name, Field: field, TypeArgs: typeArgs}
}

// GlobalOp is borrow_global / borrow_global_mut.
func GlobalOp(module, name string, mutable bool, typeArgs ...types.Type) *Operation {
	return &Operation{Kind: OpBorrowGlobal, Module: module, Name: name, Mutable: mutable, TypeArgs: typeArgs}
}
