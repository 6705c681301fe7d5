package llvm

import (
	"fmt"

	"github.com/holiman/uint256"

	"movepvm/internal/abi"
	"movepvm/internal/sbc"
)

func (fe *funcEmitter) emitCast(bc *sbc.Bytecode) error {
	from := fe.localTypes[bc.Src[0]]
	to := bc.Op.Kind.CastTarget()
	fromBits, toBits := from.Bits(), to.Bits()
	if !from.IsInteger() {
		return fmt.Errorf("cast from non-integer %s", from)
	}
	v, err := fe.loadLocal(bc.Src[0])
	if err != nil {
		return err
	}
	fromTy, toTy := intType(fromBits), intType(toBits)
	res := v
	switch {
	case toBits > fromBits:
		res = fe.nextTemp()
		fmt.Fprintf(&fe.buf, "  %s = zext %s %s to %s\n", res, fromTy, v, toTy)
	case toBits < fromBits:
		tooBig := fe.nextTemp()
		fmt.Fprintf(&fe.buf, "  %s = icmp ugt %s %s, %s\n", tooBig, fromTy, v, maxUint(toBits))
		fe.emitTrapIf(tooBig, abi.AbortArithmeticOverflow)
		res = fe.nextTemp()
		fmt.Fprintf(&fe.buf, "  %s = trunc %s %s to %s\n", res, fromTy, v, toTy)
	}
	return fe.storeLocal(bc.Dst[0], res)
}

// maxUint renders 2^bits-1 in decimal.
func maxUint(bits int) string {
	if bits >= 256 {
		return new(uint256.Int).SetAllOne().Dec()
	}
	v := new(uint256.Int).Lsh(uint256.NewInt(1), uint(bits))
	return v.Sub(v, uint256.NewInt(1)).Dec()
}
