package llvm

import (
	"fmt"

	"movepvm/internal/abi"
	"movepvm/internal/natives"
	"movepvm/internal/sbc"
	"movepvm/internal/types"
)

// emitEquality lowers Eq/Neq. References compare the values they point at.
func (fe *funcEmitter) emitEquality(bc *sbc.Bytecode) error {
	a, t, err := fe.refTarget(bc.Src[0])
	if err != nil {
		return err
	}
	b, bt, err := fe.refTarget(bc.Src[1])
	if err != nil {
		return err
	}
	if !t.Equal(bt) {
		return fmt.Errorf("%s between %s and %s", bc.Op.Kind, t, bt)
	}
	res, err := fe.emitEqPtr(t, a, b)
	if err != nil {
		return err
	}
	if bc.Op.Kind == sbc.OpNeq {
		inv := fe.nextTemp()
		fmt.Fprintf(&fe.buf, "  %s = xor i1 %s, true\n", inv, res)
		res = inv
	}
	return fe.storeLocal(bc.Dst[0], res)
}

// emitEqPtr compares two values of type t stored at a and b.
func (fe *funcEmitter) emitEqPtr(t types.Type, a, b string) (string, error) {
	res := fe.nextTemp()
	switch {
	case t.Kind == types.KindBool || t.IsInteger():
		ty := intType(t.Bits())
		va, vb := fe.nextTemp(), fe.nextTemp()
		fmt.Fprintf(&fe.buf, "  %s = load %s, ptr %s\n", va, ty, a)
		fmt.Fprintf(&fe.buf, "  %s = load %s, ptr %s\n", vb, ty, b)
		fmt.Fprintf(&fe.buf, "  %s = icmp eq %s %s, %s\n", res, ty, va, vb)
	case t.Kind == types.KindAddress || t.Kind == types.KindSigner:
		fmt.Fprintf(&fe.buf, "  %s = call i1 @%s(ptr %s, ptr %s, i64 %d)\n", res, natives.SymBytesEq, a, b, abi.AddressSize)
	case t.Kind == types.KindVector && t.Elem.IsPrimitive():
		size, err := fe.emitter.layouts.SizeOf(*t.Elem)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&fe.buf, "  %s = call i1 @%s(ptr %s, ptr %s, i64 %d)\n", res, natives.SymVecEq, a, b, size)
	case t.Kind == types.KindVector || t.Kind == types.KindStruct:
		name := fe.emitter.requestHelper(helperEq, t)
		fmt.Fprintf(&fe.buf, "  %s = call i1 @%s(ptr %s, ptr %s)\n", res, name, a, b)
	default:
		return "", fmt.Errorf("equality on %s", t)
	}
	return res, nil
}

// emitCopy stores a copy of the value at src into dst. Vectors get their own
// buffers.
func (fe *funcEmitter) emitCopy(dst, src string, t types.Type) error {
	deep, err := fe.emitter.needsDeepCopy(t)
	if err != nil {
		return err
	}
	if !deep {
		ty, err := fe.emitter.llvmType(t)
		if err != nil {
			return err
		}
		v := fe.nextTemp()
		fmt.Fprintf(&fe.buf, "  %s = load %s, ptr %s\n", v, ty, src)
		fmt.Fprintf(&fe.buf, "  store %s %s, ptr %s\n", ty, v, dst)
		return nil
	}
	if t.Kind == types.KindVector {
		elemDeep, err := fe.emitter.needsDeepCopy(*t.Elem)
		if err != nil {
			return err
		}
		if !elemDeep {
			l, err := fe.emitter.layouts.LayoutOf(*t.Elem)
			if err != nil {
				return err
			}
			fmt.Fprintf(&fe.buf, "  call void @%s(ptr %s, ptr %s, i64 %d, i64 %d)\n", natives.SymVecCopy, dst, src, l.Size, l.Align)
			return nil
		}
	}
	name := fe.emitter.requestHelper(helperCopy, t)
	fmt.Fprintf(&fe.buf, "  call void @%s(ptr %s, ptr %s)\n", name, dst, src)
	return nil
}
