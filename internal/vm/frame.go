package vm

import (
	"movepvm/internal/sbc"
	"movepvm/internal/types"
)

// frame is one function activation. Every temporary is a box so that
// references to locals stay valid while the local is updated in place.
type frame struct {
	module   *sbc.Module
	fn       *sbc.Function
	typeArgs []types.Type
	locals   []*Value
	pc       int
}

func newFrame(m *sbc.Module, f *sbc.Function, typeArgs []types.Type) *frame {
	fr := &frame{module: m, fn: f, typeArgs: typeArgs, locals: make([]*Value, len(f.Locals))}
	for i := range f.Locals {
		fr.locals[i] = Zero(fr.localType(i))
	}
	return fr
}

func (f *frame) name() string {
	return f.module.ID() + "::" + f.fn.Name + types.ArgsKey(f.typeArgs)
}

func (f *frame) localType(i int) types.Type {
	return f.fn.Locals[i].Subst(f.typeArgs)
}

func (f *frame) subst(ts []types.Type) []types.Type {
	return types.SubstAll(ts, f.typeArgs)
}

// src returns the box of the i-th source operand.
func (f *frame) src(bc *sbc.Bytecode, i int) *Value {
	return f.locals[bc.Src[i]]
}

// store writes v into the i-th destination box.
func (f *frame) store(bc *sbc.Bytecode, i int, v *Value) {
	f.locals[bc.Dst[i]].Set(v)
}
