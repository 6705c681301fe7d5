package dispatch

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"

	"movepvm/internal/abi"
	"movepvm/internal/sbc"
	"movepvm/internal/types"
)

// ErrBadCallData marks call data too short for the selected entry.
var ErrBadCallData = errors.New("bad call data")

// ArgSize is the wire size of an entry argument: integers are fixed-width
// little-endian, bool is one byte, address is 32 raw bytes.
func ArgSize(t types.Type) int {
	switch {
	case t.Kind == types.KindBool:
		return 1
	case t.Kind == types.KindAddress:
		return abi.AddressSize
	case t.IsInteger():
		return t.Bits() / 8
	default:
		return 0
	}
}

// SplitArgs cuts the bytes after the selector into one slice per argument.
func (e *Entry) SplitArgs(data []byte) ([][]byte, error) {
	args := e.Args()
	out := make([][]byte, len(args))
	off := 0
	for i, t := range args {
		n := ArgSize(t)
		if off+n > len(data) {
			return nil, fmt.Errorf("%w: %s needs %d argument bytes, got %d", ErrBadCallData, e.Name, e.ArgsSize(), len(data))
		}
		out[i] = data[off : off+n]
		off += n
	}
	return out, nil
}

// EncodeArg renders a textual argument in its call-data form.
func EncodeArg(t types.Type, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	switch {
	case t.Kind == types.KindBool:
		switch text {
		case "true":
			return []byte{1}, nil
		case "false":
			return []byte{0}, nil
		}
		return nil, fmt.Errorf("%q is not a bool", text)
	case t.Kind == types.KindAddress:
		addr, err := sbc.ParseAddress(text)
		if err != nil {
			return nil, err
		}
		return addr[:], nil
	case t.IsInteger():
		digits, base := text, 10
		if strings.HasPrefix(text, "0x") {
			digits, base = text[2:], 16
		}
		bi, ok := new(big.Int).SetString(digits, base)
		if !ok || bi.Sign() < 0 {
			return nil, fmt.Errorf("%q is not a %s", text, t)
		}
		v, overflow := uint256.FromBig(bi)
		if overflow {
			return nil, fmt.Errorf("%s does not fit %s", text, t)
		}
		if v.BitLen() > t.Bits() {
			return nil, fmt.Errorf("%s does not fit %s", text, t)
		}
		return LittleEndian(v, t.Bits()/8), nil
	default:
		return nil, fmt.Errorf("type %s cannot be passed in call data", t)
	}
}

// LittleEndian returns the low n bytes of v, least significant first.
func LittleEndian(v *uint256.Int, n int) []byte {
	be := v.Bytes32()
	out := make([]byte, n)
	for i := range n {
		out[i] = be[31-i]
	}
	return out
}

// FromLittleEndian is the inverse of LittleEndian.
func FromLittleEndian(b []byte) *uint256.Int {
	be := make([]byte, len(b))
	for i, c := range b {
		be[len(b)-1-i] = c
	}
	return new(uint256.Int).SetBytes(be)
}

// CallData builds selector + encoded arguments for e.
func (e *Entry) CallData(args []string) ([]byte, error) {
	params := e.Args()
	if len(args) != len(params) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", e.Name, len(params), len(args))
	}
	out := append([]byte(nil), e.Selector[:]...)
	for i, t := range params {
		b, err := EncodeArg(t, args[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out = append(out, b...)
	}
	return out, nil
}
