package vm

import (
	"fmt"

	"github.com/holiman/uint256"

	"movepvm/internal/abi"
	"movepvm/internal/sbc"
	"movepvm/internal/types"
)

// trap is an arithmetic failure that becomes an abort of the running
// function.
type trap struct{ code uint64 }

func (t *trap) Error() string { return abi.ReservedAbortName(t.code) }

var (
	errOverflow = &trap{code: abi.AbortArithmeticOverflow}
	errDivZero  = &trap{code: abi.AbortDivisionByZero}
)

func (vm *VM) trapped(fr *frame, err error) error {
	if t, ok := err.(*trap); ok {
		return vm.abort(fr, t.code)
	}
	return fmt.Errorf("%s: %w", fr.name(), err)
}

// fits reports whether x is representable in bits.
func fits(x *uint256.Int, bits int) bool { return x.BitLen() <= bits }

func mask(bits int) *uint256.Int {
	m := new(uint256.Int).Lsh(uint256.NewInt(1), uint(bits))
	return m.SubUint64(m, 1)
}

func arith(kind sbc.OpKind, a, b *Value) (*Value, error) {
	t := a.Type
	if !t.IsInteger() {
		return nil, fmt.Errorf("%s on %s", kind, t)
	}
	bits := t.Bits()
	x, y := &a.Int, &b.Int
	out := &Value{Type: t}
	z := &out.Int
	switch kind {
	case sbc.OpAdd:
		if _, carry := z.AddOverflow(x, y); carry || !fits(z, bits) {
			return nil, errOverflow
		}
	case sbc.OpSub:
		if _, borrow := z.SubOverflow(x, y); borrow {
			return nil, errOverflow
		}
	case sbc.OpMul:
		if _, over := z.MulOverflow(x, y); over || !fits(z, bits) {
			return nil, errOverflow
		}
	case sbc.OpDiv:
		if y.IsZero() {
			return nil, errDivZero
		}
		z.Div(x, y)
	case sbc.OpMod:
		if y.IsZero() {
			return nil, errDivZero
		}
		z.Mod(x, y)
	case sbc.OpBitOr:
		z.Or(x, y)
	case sbc.OpBitAnd:
		z.And(x, y)
	case sbc.OpXor:
		z.Xor(x, y)
	case sbc.OpShl, sbc.OpShr:
		if !y.LtUint64(uint64(bits)) {
			return nil, errOverflow
		}
		n := uint(y.Uint64())
		if kind == sbc.OpShl {
			z.Lsh(x, n)
			z.And(z, mask(bits))
		} else {
			z.Rsh(x, n)
		}
	case sbc.OpLt:
		return Bool(x.Lt(y)), nil
	case sbc.OpGt:
		return Bool(x.Gt(y)), nil
	case sbc.OpLe:
		return Bool(!x.Gt(y)), nil
	case sbc.OpGe:
		return Bool(!x.Lt(y)), nil
	default:
		return nil, fmt.Errorf("unsupported operation %s", kind)
	}
	return out, nil
}

// castTo converts an integer to target, trapping when bits would be lost.
func castTo(v *Value, target types.Type) (*Value, error) {
	if !v.Type.IsInteger() {
		return nil, fmt.Errorf("cast of %s", v.Type)
	}
	if !fits(&v.Int, target.Bits()) {
		return nil, errOverflow
	}
	return BigInt(target, &v.Int), nil
}
