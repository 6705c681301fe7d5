package llvm

import (
	"fmt"

	"movepvm/internal/natives"
	"movepvm/internal/sbc"
	"movepvm/internal/types"
)

func (fe *funcEmitter) emitConst(dst int, c *sbc.Constant) error {
	switch c.Kind {
	case sbc.ConstBool, sbc.ConstInt, sbc.ConstAddress:
		val, ty, err := scalarConst(c)
		if err != nil {
			return err
		}
		fmt.Fprintf(&fe.buf, "  store %s %s, ptr %s\n", ty, val, fe.slot(dst))
		return nil
	case sbc.ConstBytes:
		return fe.emitByteVector(fe.slot(dst), c.Bytes)
	case sbc.ConstVector:
		return fe.emitVectorConst(fe.slot(dst), c)
	default:
		return fmt.Errorf("unsupported constant kind %d", c.Kind)
	}
}

// scalarConst renders a constant that fits in one store.
func scalarConst(c *sbc.Constant) (val, ty string, err error) {
	switch c.Kind {
	case sbc.ConstBool:
		if c.Bool {
			return "true", "i1", nil
		}
		return "false", "i1", nil
	case sbc.ConstInt:
		if c.Int == nil || !c.FitsWidth() {
			return "", "", fmt.Errorf("integer constant does not fit %s", c.Type)
		}
		return c.Int.Dec(), intType(c.Type.Bits()), nil
	case sbc.ConstAddress:
		return byteArrayLiteral(c.Address[:]), "[32 x i8]", nil
	default:
		return "", "", fmt.Errorf("constant kind %d is not scalar", c.Kind)
	}
}

// emitByteVector copies a private literal into a fresh heap buffer.
func (fe *funcEmitter) emitByteVector(vec string, raw []byte) error {
	if len(raw) == 0 {
		fe.storeVec(vec, "null", "0", "0")
		return nil
	}
	fe.constID++
	global := "@" + quoteName(fmt.Sprintf("bytes.%s.%d", fe.in.Key, fe.constID))
	fmt.Fprintf(&fe.globals, "%s = private unnamed_addr constant [%d x i8] c\"%s\"\n", global, len(raw), escapeBytes(raw))

	mem := fe.nextTemp()
	fmt.Fprintf(&fe.buf, "  %s = call ptr @%s(i64 %d, i64 1)\n", mem, natives.SymAlloc, len(raw))
	memcpy := memcpyIntrinsic()
	fe.emitter.requestIntrinsic(memcpy)
	fmt.Fprintf(&fe.buf, "  call void @%s(ptr %s, ptr %s, i64 %d, i1 false)\n", memcpy.name, mem, global, len(raw))
	n := fmt.Sprintf("%d", len(raw))
	fe.storeVec(vec, mem, n, n)
	return nil
}

// emitVectorConst builds a vector constant. Byte-string and vector elements
// get their own heap buffers, written in place as descriptors.
func (fe *funcEmitter) emitVectorConst(vec string, c *sbc.Constant) error {
	if c.Type.Kind != types.KindVector || c.Type.Elem == nil {
		return fmt.Errorf("vector constant of type %s", c.Type)
	}
	elem := *c.Type.Elem
	if len(c.Elems) == 0 {
		fe.storeVec(vec, "null", "0", "0")
		return nil
	}
	l, err := fe.emitter.layouts.LayoutOf(elem)
	if err != nil {
		return err
	}
	mem := fe.nextTemp()
	fmt.Fprintf(&fe.buf, "  %s = call ptr @%s(i64 %d, i64 %d)\n", mem, natives.SymAlloc, l.Size*len(c.Elems), l.Align)
	for i := range c.Elems {
		el := &c.Elems[i]
		p, err := fe.elemPtr(elem, mem, fmt.Sprintf("%d", i))
		if err != nil {
			return err
		}
		switch el.Kind {
		case sbc.ConstBytes:
			err = fe.emitByteVector(p, el.Bytes)
		case sbc.ConstVector:
			err = fe.emitVectorConst(p, el)
		default:
			var val, ty string
			if val, ty, err = scalarConst(el); err == nil {
				fmt.Fprintf(&fe.buf, "  store %s %s, ptr %s\n", ty, val, p)
			}
		}
		if err != nil {
			return fmt.Errorf("vector element %d: %w", i, err)
		}
	}
	n := fmt.Sprintf("%d", len(c.Elems))
	fe.storeVec(vec, mem, n, n)
	return nil
}
