package llvm

import (
	"fmt"

	"movepvm/internal/diag"
	"movepvm/internal/sbc"
	"movepvm/internal/types"
)

func (fe *funcEmitter) emitCall(bc *sbc.Bytecode) error {
	op := bc.Op
	switch {
	case op.Kind == sbc.OpFunction:
		return fe.emitFunctionCall(bc)
	case op.Kind.IsStorage():
		return fe.emitStorage(bc)
	case op.Kind.IsCast():
		return fe.emitCast(bc)
	}
	switch op.Kind {
	case sbc.OpPack:
		return fe.emitPack(bc)
	case sbc.OpUnpack:
		return fe.emitUnpack(bc)
	case sbc.OpBorrowField:
		return fe.emitBorrowField(bc)
	case sbc.OpBorrowLoc:
		fmt.Fprintf(&fe.buf, "  store ptr %s, ptr %s\n", fe.slot(bc.Src[0]), fe.slot(bc.Dst[0]))
		return nil
	case sbc.OpFreezeRef:
		p, err := fe.loadLocal(bc.Src[0])
		if err != nil {
			return err
		}
		return fe.storeLocal(bc.Dst[0], p)
	case sbc.OpReadRef:
		p, t, err := fe.refTarget(bc.Src[0])
		if err != nil {
			return err
		}
		return fe.emitCopy(fe.slot(bc.Dst[0]), p, t)
	case sbc.OpWriteRef:
		p, t, err := fe.refTarget(bc.Src[0])
		if err != nil {
			return err
		}
		ty, err := fe.emitter.llvmType(t)
		if err != nil {
			return err
		}
		val, err := fe.loadLocal(bc.Src[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(&fe.buf, "  store %s %s, ptr %s\n", ty, val, p)
		return nil
	case sbc.OpDrop:
		// Память линейная, освобождать нечего
		return nil
	case sbc.OpNot:
		v, err := fe.loadLocal(bc.Src[0])
		if err != nil {
			return err
		}
		r := fe.nextTemp()
		fmt.Fprintf(&fe.buf, "  %s = xor i1 %s, true\n", r, v)
		return fe.storeLocal(bc.Dst[0], r)
	case sbc.OpEq, sbc.OpNeq:
		return fe.emitEquality(bc)
	case sbc.OpAdd, sbc.OpSub, sbc.OpMul, sbc.OpDiv, sbc.OpMod,
		sbc.OpBitOr, sbc.OpBitAnd, sbc.OpXor, sbc.OpShl, sbc.OpShr,
		sbc.OpLt, sbc.OpGt, sbc.OpLe, sbc.OpGe, sbc.OpOr, sbc.OpAnd:
		return fe.emitBinary(bc)
	}
	module, function := fe.location()
	return diag.Errorf(diag.ErrMalformedInput, diag.TrUnsupportedOp, module, function, "operation %s", op)
}

func (fe *funcEmitter) structOf(op *sbc.Operation) types.Type {
	if fe.in == nil {
		return op.StructType()
	}
	return fe.in.Subst(op.StructType())
}

func (fe *funcEmitter) emitPack(bc *sbc.Bytecode) error {
	st := fe.structOf(bc.Op)
	fields, err := fe.emitter.layouts.FieldTypes(st)
	if err != nil {
		return err
	}
	if len(fields) != len(bc.Src) {
		return fmt.Errorf("pack %s: %d fields, %d operands", st, len(fields), len(bc.Src))
	}
	dst := fe.slot(bc.Dst[0])
	if len(fields) == 0 {
		ty, err := fe.emitter.llvmType(st)
		if err != nil {
			return err
		}
		fmt.Fprintf(&fe.buf, "  store %s zeroinitializer, ptr %s\n", ty, dst)
		return nil
	}
	for i, src := range bc.Src {
		val, err := fe.loadLocal(src)
		if err != nil {
			return err
		}
		ty, err := fe.emitter.llvmType(fields[i])
		if err != nil {
			return err
		}
		p, err := fe.fieldPtr(st, dst, i)
		if err != nil {
			return err
		}
		fmt.Fprintf(&fe.buf, "  store %s %s, ptr %s\n", ty, val, p)
	}
	return nil
}

func (fe *funcEmitter) emitUnpack(bc *sbc.Bytecode) error {
	st := fe.structOf(bc.Op)
	fields, err := fe.emitter.layouts.FieldTypes(st)
	if err != nil {
		return err
	}
	if len(fields) != len(bc.Dst) {
		return fmt.Errorf("unpack %s: %d fields, %d results", st, len(fields), len(bc.Dst))
	}
	src := fe.slot(bc.Src[0])
	for i, dst := range bc.Dst {
		ty, err := fe.emitter.llvmType(fields[i])
		if err != nil {
			return err
		}
		p, err := fe.fieldPtr(st, src, i)
		if err != nil {
			return err
		}
		v := fe.nextTemp()
		fmt.Fprintf(&fe.buf, "  %s = load %s, ptr %s\n", v, ty, p)
		if err := fe.storeLocal(dst, v); err != nil {
			return err
		}
	}
	return nil
}

func (fe *funcEmitter) emitBorrowField(bc *sbc.Bytecode) error {
	st := fe.structOf(bc.Op)
	base, _, err := fe.refTarget(bc.Src[0])
	if err != nil {
		return err
	}
	p, err := fe.fieldPtr(st, base, bc.Op.Field)
	if err != nil {
		return err
	}
	return fe.storeLocal(bc.Dst[0], p)
}
