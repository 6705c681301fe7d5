package llvm

import (
	"fmt"

	"movepvm/internal/abi"
	"movepvm/internal/sbc"
)

func (fe *funcEmitter) emitBinary(bc *sbc.Bytecode) error {
	t := fe.localTypes[bc.Src[0]]
	bits := t.Bits()
	if bits == 0 {
		return fmt.Errorf("%s on non-integer %s", bc.Op.Kind, t)
	}
	ty := intType(bits)
	a, err := fe.loadLocal(bc.Src[0])
	if err != nil {
		return err
	}
	b, err := fe.loadLocal(bc.Src[1])
	if err != nil {
		return err
	}

	var res string
	switch bc.Op.Kind {
	case sbc.OpAdd:
		res = fe.emitChecked("uadd", bits, a, b)
	case sbc.OpSub:
		res = fe.emitChecked("usub", bits, a, b)
	case sbc.OpMul:
		res = fe.emitChecked("umul", bits, a, b)
	case sbc.OpDiv, sbc.OpMod:
		isZero := fe.nextTemp()
		fmt.Fprintf(&fe.buf, "  %s = icmp eq %s %s, 0\n", isZero, ty, b)
		fe.emitTrapIf(isZero, abi.AbortDivisionByZero)
		instr := "udiv"
		if bc.Op.Kind == sbc.OpMod {
			instr = "urem"
		}
		res = fe.nextTemp()
		fmt.Fprintf(&fe.buf, "  %s = %s %s %s, %s\n", res, instr, ty, a, b)
	case sbc.OpBitOr, sbc.OpOr:
		res = fe.emitPlain("or", ty, a, b)
	case sbc.OpBitAnd, sbc.OpAnd:
		res = fe.emitPlain("and", ty, a, b)
	case sbc.OpXor:
		res = fe.emitPlain("xor", ty, a, b)
	case sbc.OpShl, sbc.OpShr:
		res, err = fe.emitShift(bc, bits, a, b)
		if err != nil {
			return err
		}
	case sbc.OpLt:
		res = fe.emitCmp("ult", ty, a, b)
	case sbc.OpGt:
		res = fe.emitCmp("ugt", ty, a, b)
	case sbc.OpLe:
		res = fe.emitCmp("ule", ty, a, b)
	case sbc.OpGe:
		res = fe.emitCmp("uge", ty, a, b)
	default:
		return fmt.Errorf("unsupported binary operation %s", bc.Op.Kind)
	}
	return fe.storeLocal(bc.Dst[0], res)
}

// emitChecked lowers add/sub/mul through llvm.*.with.overflow and aborts
// with the arithmetic error code on overflow.
func (fe *funcEmitter) emitChecked(op string, bits int, a, b string) string {
	decl := overflowIntrinsic(op, bits)
	fe.emitter.requestIntrinsic(decl)
	ty := intType(bits)
	pair := fe.nextTemp()
	fmt.Fprintf(&fe.buf, "  %s = call %s @%s(%s %s, %s %s)\n", pair, decl.ret, decl.name, ty, a, ty, b)
	val := fe.nextTemp()
	fmt.Fprintf(&fe.buf, "  %s = extractvalue %s %s, 0\n", val, decl.ret, pair)
	ovf := fe.nextTemp()
	fmt.Fprintf(&fe.buf, "  %s = extractvalue %s %s, 1\n", ovf, decl.ret, pair)
	fe.emitTrapIf(ovf, abi.AbortArithmeticOverflow)
	return val
}

func (fe *funcEmitter) emitPlain(instr, ty, a, b string) string {
	res := fe.nextTemp()
	fmt.Fprintf(&fe.buf, "  %s = %s %s %s, %s\n", res, instr, ty, a, b)
	return res
}

func (fe *funcEmitter) emitCmp(pred, ty, a, b string) string {
	res := fe.nextTemp()
	fmt.Fprintf(&fe.buf, "  %s = icmp %s %s %s, %s\n", res, pred, ty, a, b)
	return res
}

// emitShift checks the u8 shift amount against the operand width before
// widening it.
func (fe *funcEmitter) emitShift(bc *sbc.Bytecode, bits int, a, amount string) (string, error) {
	amtT := fe.localTypes[bc.Src[1]]
	amtBits := amtT.Bits()
	if amtBits == 0 {
		return "", fmt.Errorf("shift amount has type %s", amtT)
	}
	amtTy := intType(amtBits)
	if amtBits >= 63 || bits < 1<<amtBits {
		tooFar := fe.nextTemp()
		fmt.Fprintf(&fe.buf, "  %s = icmp uge %s %s, %d\n", tooFar, amtTy, amount, bits)
		fe.emitTrapIf(tooFar, abi.AbortArithmeticOverflow)
	}
	ty := intType(bits)
	switch {
	case amtBits < bits:
		wide := fe.nextTemp()
		fmt.Fprintf(&fe.buf, "  %s = zext %s %s to %s\n", wide, amtTy, amount, ty)
		amount = wide
	case amtBits > bits:
		narrow := fe.nextTemp()
		fmt.Fprintf(&fe.buf, "  %s = trunc %s %s to %s\n", narrow, amtTy, amount, ty)
		amount = narrow
	}
	instr := "shl"
	if bc.Op.Kind == sbc.OpShr {
		instr = "lshr"
	}
	return fe.emitPlain(instr, ty, a, amount), nil
}
