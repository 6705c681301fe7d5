// Package natives is the closed table of Move native functions the guest
// runtime implements, with the calling convention the translator emits for
// each of them.
package natives

import "fmt"

// Passing says how one Move argument crosses into the runtime.
type Passing uint8

const (
	// ByValue passes the scalar itself; references pass their pointer.
	ByValue Passing = iota
	// ByRef spills the value into a caller-allocated buffer laid out by the
	// resolver and passes its address.
	ByRef
)

func (p Passing) String() string {
	if p == ByRef {
		return "by-ref"
	}
	return "by-value"
}

// Return is the result convention of a binding.
type Return uint8

const (
	RetVoid Return = iota
	// RetScalar returns an i64 or i1 in a register.
	RetScalar
	// RetPtr returns a pointer into guest memory (borrows).
	RetPtr
	// RetBuffer returns the two-word {ptr, len} pair of a fresh byte buffer.
	RetBuffer
	// RetOut writes into a caller-allocated buffer passed as the last argument.
	RetOut
)

func (r Return) String() string {
	switch r {
	case RetVoid:
		return "void"
	case RetScalar:
		return "scalar"
	case RetPtr:
		return "ptr"
	case RetBuffer:
		return "buffer"
	case RetOut:
		return "out"
	default:
		return fmt.Sprintf("Return(%d)", r)
	}
}

// Effect records what a native may do to buffers passed by pointer.
type Effect uint8

const (
	ReadOnly Effect = iota
	Mutates
	// Grows may reallocate the vector behind a passed descriptor.
	Grows
)

func (e Effect) String() string {
	switch e {
	case ReadOnly:
		return "read-only"
	case Mutates:
		return "mutates"
	case Grows:
		return "grows"
	default:
		return fmt.Sprintf("Effect(%d)", e)
	}
}

// Word is a machine-level parameter or result of a runtime symbol.
type Word uint8

const (
	WordVoid Word = iota
	WordPtr
	WordI64
	WordI32
	WordI1
	// WordPair is the {ptr, i64} aggregate of RetBuffer.
	WordPair
)

// LLVM spells the word as an LLVM IR type.
func (w Word) LLVM() string {
	switch w {
	case WordPtr:
		return "ptr"
	case WordI64:
		return "i64"
	case WordI32:
		return "i32"
	case WordI1:
		return "i1"
	case WordPair:
		return "{ ptr, i64 }"
	default:
		return "void"
	}
}

// Decl is the machine signature of a runtime symbol.
type Decl struct {
	Symbol string
	Ret    Word
	Params []Word
	// NoReturn marks symbols that never return to the caller.
	NoReturn bool
}

// Runtime helper symbols the translator and dispatcher call directly.
const (
	SymAbort         = "move_rt_abort"
	SymAlloc         = "move_rt_alloc"
	SymBytesEq       = "move_rt_bytes_eq"
	SymVecEq         = "move_rt_vec_eq"
	SymVecCopy       = "move_rt_vec_copy"
	SymCallDataSize  = "move_rt_call_data_size"
	SymCallDataCopy  = "move_rt_call_data_copy"
	SymCallerSigner  = "move_rt_caller_signer"
	SymNativePrefix  = "move_native_"
	SymRuntimePrefix = "move_rt_"
)

// RuntimeHelpers lists the non-native runtime entry points.
func RuntimeHelpers() []Decl {
	return []Decl{
		{Symbol: SymAbort, Ret: WordVoid, Params: []Word{WordI64}, NoReturn: true},
		{Symbol: SymAlloc, Ret: WordPtr, Params: []Word{WordI64, WordI64}},
		{Symbol: SymBytesEq, Ret: WordI1, Params: []Word{WordPtr, WordPtr, WordI64}},
		// vec_eq(a, b, elem_size) compares vectors of primitive elements.
		{Symbol: SymVecEq, Ret: WordI1, Params: []Word{WordPtr, WordPtr, WordI64}},
		// vec_copy(dst, src, elem_size, elem_align) gives dst its own buffer.
		{Symbol: SymVecCopy, Ret: WordVoid, Params: []Word{WordPtr, WordPtr, WordI64, WordI64}},
		{Symbol: SymCallDataSize, Ret: WordI64},
		{Symbol: SymCallDataCopy, Ret: WordVoid, Params: []Word{WordPtr, WordI64, WordI64}},
		{Symbol: SymCallerSigner, Ret: WordVoid, Params: []Word{WordPtr}},
	}
}
