package vm

import (
	"context"
	"fmt"

	"movepvm/internal/sbc"
	"movepvm/internal/types"
)

// ctxCheckEvery is how often the run loop polls the context.
const ctxCheckEvery = 1024

func (vm *VM) run(ctx context.Context, fr *frame) ([]*Value, error) {
	code := fr.fn.Code
	for fr.pc < len(code) {
		vm.steps++
		if vm.opts.MaxSteps > 0 && vm.steps > vm.opts.MaxSteps {
			return nil, fmt.Errorf("%s: %w", fr.name(), ErrStepLimit)
		}
		if vm.steps%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		bc := &code[fr.pc]
		fr.pc++
		switch bc.Kind {
		case sbc.BcNop, sbc.BcLabel:
		case sbc.BcAssign:
			v := fr.src(bc, 0)
			if bc.Assign == sbc.AssignCopy {
				v = v.Clone()
			}
			fr.store(bc, 0, v)
		case sbc.BcLoad:
			v, err := constValue(bc.Const)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", fr.name(), err)
			}
			fr.store(bc, 0, v)
		case sbc.BcBranch:
			label := bc.Else
			if fr.src(bc, 0).Deref().Bool {
				label = bc.Then
			}
			if err := vm.jump(fr, label); err != nil {
				return nil, err
			}
		case sbc.BcJump:
			if err := vm.jump(fr, bc.Label); err != nil {
				return nil, err
			}
		case sbc.BcRet:
			out := make([]*Value, len(bc.Src))
			for i := range bc.Src {
				out[i] = fr.src(bc, i).Clone()
			}
			return out, nil
		case sbc.BcAbort:
			return nil, vm.abort(fr, fr.src(bc, 0).Deref().Uint64())
		case sbc.BcCall:
			if err := vm.call(ctx, fr, bc); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%s: unknown bytecode %s", fr.name(), bc.Kind)
		}
	}
	return nil, fmt.Errorf("%s: fell off the end of the function", fr.name())
}

func (vm *VM) jump(fr *frame, label int) error {
	idx, ok := vm.labelIndex(fr.fn)[label]
	if !ok {
		return fmt.Errorf("%s: jump to unknown label %d", fr.name(), label)
	}
	fr.pc = idx
	return nil
}

func constValue(c *sbc.Constant) (*Value, error) {
	if c == nil {
		return nil, fmt.Errorf("load without a constant")
	}
	switch c.Kind {
	case sbc.ConstBool:
		return Bool(c.Bool), nil
	case sbc.ConstInt:
		if !c.FitsWidth() {
			return nil, fmt.Errorf("constant does not fit %s", c.Type)
		}
		return BigInt(c.Type, c.Int), nil
	case sbc.ConstAddress:
		return Address(c.Address), nil
	case sbc.ConstBytes:
		return Bytes(c.Bytes), nil
	case sbc.ConstVector:
		if c.Type.Kind != types.KindVector || c.Type.Elem == nil {
			return nil, fmt.Errorf("vector constant of type %s", c.Type)
		}
		elems := make([]*Value, len(c.Elems))
		for i := range c.Elems {
			v, err := constValue(&c.Elems[i])
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return Vector(*c.Type.Elem, elems...), nil
	default:
		return nil, fmt.Errorf("unknown constant kind %d", c.Kind)
	}
}

// call executes one Call instruction.
func (vm *VM) call(ctx context.Context, fr *frame, bc *sbc.Bytecode) error {
	op := bc.Op
	if op == nil {
		return fmt.Errorf("%s: call without an operation", fr.name())
	}
	switch {
	case op.Kind == sbc.OpFunction:
		return vm.callFunction(ctx, fr, bc)
	case op.Kind.IsStorage():
		return vm.storageOp(fr, bc)
	case op.Kind.IsCast():
		v, err := castTo(fr.src(bc, 0).Deref(), op.Kind.CastTarget())
		if err != nil {
			return vm.trapped(fr, err)
		}
		fr.store(bc, 0, v)
		return nil
	}

	switch op.Kind {
	case sbc.OpPack:
		t := op.StructType().Subst(fr.typeArgs)
		fields := make([]*Value, len(bc.Src))
		for i := range bc.Src {
			fields[i] = fr.src(bc, i).Clone()
		}
		fr.store(bc, 0, Struct(t, fields...))
	case sbc.OpUnpack:
		s := fr.src(bc, 0).Deref()
		if len(s.Elems) != len(bc.Dst) {
			return fmt.Errorf("%s: unpack %s into %d temps, struct has %d fields", fr.name(), s.Type, len(bc.Dst), len(s.Elems))
		}
		for i := range bc.Dst {
			fr.store(bc, i, s.Elems[i])
		}
	case sbc.OpBorrowLoc:
		mutable := fr.localType(bc.Dst[0]).Mutable
		fr.store(bc, 0, RefTo(fr.src(bc, 0), mutable))
	case sbc.OpBorrowField:
		ref := fr.src(bc, 0)
		s := ref.Deref()
		if op.Field < 0 || op.Field >= len(s.Elems) {
			return fmt.Errorf("%s: field %d of %s", fr.name(), op.Field, s.Type)
		}
		fr.store(bc, 0, RefTo(s.Elems[op.Field], ref.Type.Mutable))
	case sbc.OpFreezeRef:
		fr.store(bc, 0, RefTo(fr.src(bc, 0).Ref, false))
	case sbc.OpReadRef:
		fr.store(bc, 0, fr.src(bc, 0).Deref())
	case sbc.OpWriteRef:
		ref := fr.src(bc, 0)
		if ref.Ref == nil {
			return fmt.Errorf("%s: write through a non-reference", fr.name())
		}
		ref.Ref.Set(fr.src(bc, 1))
	case sbc.OpDrop:
	case sbc.OpNot:
		fr.store(bc, 0, Bool(!fr.src(bc, 0).Deref().Bool))
	case sbc.OpOr:
		fr.store(bc, 0, Bool(fr.src(bc, 0).Deref().Bool || fr.src(bc, 1).Deref().Bool))
	case sbc.OpAnd:
		fr.store(bc, 0, Bool(fr.src(bc, 0).Deref().Bool && fr.src(bc, 1).Deref().Bool))
	case sbc.OpEq:
		fr.store(bc, 0, Bool(fr.src(bc, 0).Equal(fr.src(bc, 1))))
	case sbc.OpNeq:
		fr.store(bc, 0, Bool(!fr.src(bc, 0).Equal(fr.src(bc, 1))))
	default:
		v, err := arith(op.Kind, fr.src(bc, 0).Deref(), fr.src(bc, 1).Deref())
		if err != nil {
			return vm.trapped(fr, err)
		}
		fr.store(bc, 0, v)
	}
	return nil
}

func (vm *VM) callFunction(ctx context.Context, fr *frame, bc *sbc.Bytecode) error {
	op := bc.Op
	m, f, ok := vm.unit.LookupFunction(op.Module, op.Name)
	if !ok {
		return fmt.Errorf("%s: call to unknown function %s::%s", fr.name(), op.Module, op.Name)
	}
	typeArgs := fr.subst(op.TypeArgs)
	args := make([]*Value, len(bc.Src))
	for i := range bc.Src {
		args[i] = fr.src(bc, i).Clone()
	}
	out, err := vm.invoke(ctx, m, f, typeArgs, args)
	if err != nil {
		return err
	}
	if len(out) != len(bc.Dst) {
		return fmt.Errorf("%s: %s::%s returned %d values, want %d", fr.name(), m.ID(), f.Name, len(out), len(bc.Dst))
	}
	for i, v := range out {
		fr.store(bc, i, v)
	}
	return nil
}
