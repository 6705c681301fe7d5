package natives

import (
	"sort"
	"strings"

	"movepvm/internal/diag"
	"movepvm/internal/sbc"
	"movepvm/internal/types"
)

// Param is one Move-level parameter of a native.
type Param struct {
	Type types.Type
	Pass Passing
}

// Binding describes one supported native function.
type Binding struct {
	Module     string // canonical module id, e.g. "0x1::vector"
	Name       string
	Symbol     string
	TypeParams int
	Params     []Param
	Result     *types.Type
	// ElemLayout prepends (i64 size, i64 align) of the first type argument.
	ElemLayout bool
	Return     Return
	Effect     Effect
}

// Key is "<module id>::<function>".
func (b *Binding) Key() string { return b.Module + "::" + b.Name }

// Decl returns the machine signature of the runtime symbol. It is the same
// for every instantiation: generic values only cross by pointer.
func (b *Binding) Decl() Decl {
	var params []Word
	if b.ElemLayout {
		params = append(params, WordI64, WordI64)
	}
	for _, p := range b.Params {
		params = append(params, p.word())
	}
	ret := WordVoid
	switch b.Return {
	case RetScalar:
		ret = scalarWord(*b.Result)
	case RetPtr:
		ret = WordPtr
	case RetBuffer:
		ret = WordPair
	case RetOut:
		params = append(params, WordPtr)
	}
	return Decl{Symbol: b.Symbol, Ret: ret, Params: params}
}

func (p Param) word() Word {
	if p.Pass == ByRef {
		return WordPtr
	}
	return scalarWord(p.Type)
}

func scalarWord(t types.Type) Word {
	switch t.Kind {
	case types.KindBool:
		return WordI1
	case types.KindReference:
		return WordPtr
	default:
		return WordI64
	}
}

const (
	moduleSigner    = "0x1::signer"
	moduleVector    = "0x1::vector"
	moduleString    = "0x1::string"
	moduleHash      = "0x1::hash"
	moduleAptosHash = "0x1::aptos_hash"
	moduleDebug     = "0x1::debug"
)

var (
	t0      = types.Param(0)
	vecT    = types.Vector(t0)
	bytesT  = types.Vector(types.U8)
	boolT   = types.Bool
	u64T    = types.U64
	addrRef = types.Ref(types.Address, false)
)

func ref(t types.Type) types.Type { return types.Ref(t, false) }
func mutRef(t types.Type) types.Type { return types.Ref(t, true) }
func result(t types.Type) *types.Type {
	return &t
}

func symbolFor(module, name string) string {
	_, modName, _ := sbc.SplitModuleID(module)
	return SymNativePrefix + modName + "_" + name
}

func hashBinding(module, name string) Binding {
	return Binding{
		Module: module,
		Name:   name,
		Params: []Param{{Type: bytesT, Pass: ByRef}},
		Result: result(bytesT),
		Return: RetBuffer,
	}
}

func table() []Binding {
	bs := []Binding{
		{Module: moduleSigner, Name: "borrow_address", Params: []Param{{Type: ref(types.Signer)}}, Result: result(addrRef), Return: RetPtr},

		{Module: moduleDebug, Name: "print", TypeParams: 1, ElemLayout: true, Params: []Param{{Type: ref(t0)}}},
		{Module: moduleDebug, Name: "print_stack_trace"},

		{Module: moduleVector, Name: "empty", TypeParams: 1, ElemLayout: true, Result: result(vecT), Return: RetOut},
		{Module: moduleVector, Name: "length", TypeParams: 1, Params: []Param{{Type: ref(vecT)}}, Result: result(u64T), Return: RetScalar},
		{Module: moduleVector, Name: "borrow", TypeParams: 1, ElemLayout: true, Params: []Param{{Type: ref(vecT)}, {Type: u64T}}, Result: result(ref(t0)), Return: RetPtr},
		{Module: moduleVector, Name: "borrow_mut", TypeParams: 1, ElemLayout: true, Params: []Param{{Type: mutRef(vecT)}, {Type: u64T}}, Result: result(mutRef(t0)), Return: RetPtr, Effect: Mutates},
		{Module: moduleVector, Name: "push_back", TypeParams: 1, ElemLayout: true, Params: []Param{{Type: mutRef(vecT)}, {Type: t0, Pass: ByRef}}, Effect: Grows},
		{Module: moduleVector, Name: "pop_back", TypeParams: 1, ElemLayout: true, Params: []Param{{Type: mutRef(vecT)}}, Result: result(t0), Return: RetOut, Effect: Mutates},
		{Module: moduleVector, Name: "destroy_empty", TypeParams: 1, ElemLayout: true, Params: []Param{{Type: vecT, Pass: ByRef}}, Effect: Mutates},
		{Module: moduleVector, Name: "swap", TypeParams: 1, ElemLayout: true, Params: []Param{{Type: mutRef(vecT)}, {Type: u64T}, {Type: u64T}}, Effect: Mutates},
		{Module: moduleVector, Name: "append", TypeParams: 1, ElemLayout: true, Params: []Param{{Type: mutRef(vecT)}, {Type: vecT, Pass: ByRef}}, Effect: Grows},
		{Module: moduleVector, Name: "reverse", TypeParams: 1, ElemLayout: true, Params: []Param{{Type: mutRef(vecT)}}, Effect: Mutates},

		{Module: moduleString, Name: "internal_check_utf8", Params: []Param{{Type: ref(bytesT)}}, Result: result(boolT), Return: RetScalar},
		{Module: moduleString, Name: "internal_is_char_boundary", Params: []Param{{Type: ref(bytesT)}, {Type: u64T}}, Result: result(boolT), Return: RetScalar},
		{Module: moduleString, Name: "internal_sub_string", Params: []Param{{Type: ref(bytesT)}, {Type: u64T}, {Type: u64T}}, Result: result(bytesT), Return: RetOut},
		{Module: moduleString, Name: "internal_index_of", Params: []Param{{Type: ref(bytesT)}, {Type: ref(bytesT)}}, Result: result(u64T), Return: RetScalar},

		hashBinding(moduleHash, "sha2_256"),
		hashBinding(moduleHash, "sha3_256"),
		hashBinding(moduleAptosHash, "keccak256"),
		hashBinding(moduleAptosHash, "sha2_512"),
		hashBinding(moduleAptosHash, "sha3_512"),
		hashBinding(moduleAptosHash, "blake2b_256"),
		hashBinding(moduleAptosHash, "ripemd160"),
	}
	for i := range bs {
		bs[i].Symbol = symbolFor(bs[i].Module, bs[i].Name)
	}
	return bs
}

var bindings = func() map[string]*Binding {
	bs := table()
	m := make(map[string]*Binding, len(bs))
	for i := range bs {
		m[bs[i].Key()] = &bs[i]
	}
	return m
}()

// Lookup finds the binding of module::fn. Anything outside the table is an
// UnsupportedNative compile error.
func Lookup(module, fn string) (*Binding, error) {
	if addr, name, ok := sbc.SplitModuleID(module); ok {
		if norm, err := sbc.NormalizeAddress(addr); err == nil {
			module = norm + "::" + name
		}
	}
	b, ok := bindings[module+"::"+fn]
	if !ok {
		return nil, diag.Errorf(diag.ErrUnsupportedNative, diag.TrUnsupportedNative, module, fn, "no runtime binding for native %s::%s", module, fn)
	}
	return b, nil
}

// All returns every binding sorted by key.
func All() []*Binding {
	out := make([]*Binding, 0, len(bindings))
	for _, b := range bindings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Decls returns the declarations of every runtime symbol the compiled code
// may reference through this package, sorted by symbol.
func Decls() []Decl {
	out := RuntimeHelpers()
	for _, b := range All() {
		out = append(out, b.Decl())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// supportSymbols are the library routines LLVM emits calls to on rv64
// (memory intrinsics, 128-bit division and multiplication).
var supportSymbols = []string{"__multi3", "__udivti3", "__umodti3", "bcmp", "memcmp", "memcpy", "memmove", "memset"}

// SupportSymbols lists the compiler support routines the runtime defines.
func SupportSymbols() []string {
	return append([]string(nil), supportSymbols...)
}

// IsRuntimeSymbol reports names the guest runtime object is expected to define.
func IsRuntimeSymbol(name string) bool {
	if strings.HasPrefix(name, SymNativePrefix) || strings.HasPrefix(name, SymRuntimePrefix) {
		return true
	}
	for _, s := range supportSymbols {
		if s == name {
			return true
		}
	}
	return false
}
