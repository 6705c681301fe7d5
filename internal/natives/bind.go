package natives

import (
	"movepvm/internal/diag"
	"movepvm/internal/layout"
	"movepvm/internal/sbc"
	"movepvm/internal/types"
)

// LayoutSource is the part of the layout resolver a binding needs.
type LayoutSource interface {
	LayoutOf(t types.Type) (layout.TypeLayout, error)
}

// Arg is one argument of a bound call with its resolved layout.
type Arg struct {
	Type   types.Type
	Pass   Passing
	Layout layout.TypeLayout
}

// CallSite is a binding instantiated at concrete type arguments.
type CallSite struct {
	Binding  *Binding
	TypeArgs []types.Type
	// Elem is the layout of TypeArgs[0] when Binding.ElemLayout is set.
	Elem         layout.TypeLayout
	Args         []Arg
	Result       *types.Type
	ResultLayout layout.TypeLayout
}

// Bind resolves every argument layout of b at typeArgs.
func Bind(b *Binding, typeArgs []types.Type, resolver LayoutSource) (*CallSite, error) {
	if len(typeArgs) != b.TypeParams {
		return nil, diag.Errorf(diag.ErrMalformedInput, diag.InpBadOperands, b.Module, b.Name,
			"native expects %d type arguments, got %d", b.TypeParams, len(typeArgs))
	}
	if !types.AllGround(typeArgs) {
		return nil, diag.Errorf(diag.ErrUnresolvedGeneric, diag.TrUnresolvedGeneric, b.Module, b.Name,
			"native instantiated at %s", types.ArgsKey(typeArgs))
	}
	cs := &CallSite{
		Binding:  b,
		TypeArgs: append([]types.Type(nil), typeArgs...),
		Args:     make([]Arg, len(b.Params)),
	}
	if b.ElemLayout {
		l, err := resolver.LayoutOf(typeArgs[0])
		if err != nil {
			return nil, bindError(b, err)
		}
		cs.Elem = l
	}
	for i, p := range b.Params {
		t := p.Type.Subst(typeArgs)
		l, err := resolver.LayoutOf(t)
		if err != nil {
			return nil, bindError(b, err)
		}
		cs.Args[i] = Arg{Type: t, Pass: p.Pass, Layout: l}
	}
	if b.Result != nil {
		t := b.Result.Subst(typeArgs)
		l, err := resolver.LayoutOf(t)
		if err != nil {
			return nil, bindError(b, err)
		}
		cs.Result = &t
		cs.ResultLayout = l
	}
	return cs, nil
}

func bindError(b *Binding, err error) error {
	if kind, ok := diag.KindOf(err); ok {
		return &diag.CompileError{Kind: kind, Code: diag.TrUnsupportedNative, Module: b.Module, Function: b.Name, Detail: "bind native", Err: err}
	}
	return &diag.CompileError{Kind: diag.ErrMalformedInput, Code: diag.TrUnsupportedNative, Module: b.Module, Function: b.Name, Detail: "bind native", Err: err}
}

// CheckSignature verifies that a native declared in the unit has the shape
// the runtime implements.
func CheckSignature(b *Binding, fn *sbc.Function) error {
	mismatch := func(what string) error {
		return diag.Errorf(diag.ErrUnsupportedNative, diag.TrUnsupportedNative, b.Module, b.Name,
			"declared %s does not match the runtime binding", what)
	}
	if fn.TypeParams != b.TypeParams {
		return mismatch("type parameter count")
	}
	if len(fn.Params) != len(b.Params) {
		return mismatch("parameter count")
	}
	for i, p := range b.Params {
		if !p.Type.Equal(fn.Params[i]) {
			return mismatch("parameter " + fn.Params[i].Key())
		}
	}
	switch {
	case b.Result == nil && len(fn.Returns) != 0:
		return mismatch("result")
	case b.Result != nil && (len(fn.Returns) != 1 || !b.Result.Equal(fn.Returns[0])):
		return mismatch("result")
	}
	return nil
}
