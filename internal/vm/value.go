// Package vm is a reference interpreter for stackless bytecode. It runs a
// compilation unit directly against the host storage protocol, the native
// functions and the abort convention the compiled program uses.
package vm

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"movepvm/internal/types"
)

// Value is a runtime value. The shape is selected by Type.Kind:
// integers use Int, bool uses Bool, address and signer use Addr, vectors
// and structs keep their elements or fields as boxes in Elems, references
// point at a box in Ref.
type Value struct {
	Type  types.Type
	Int   uint256.Int
	Bool  bool
	Addr  [32]byte
	Elems []*Value
	Ref   *Value
}

// Zero returns the zero value of a ground type.
func Zero(t types.Type) *Value {
	return &Value{Type: t}
}

// Int returns an integer value of type t.
func Int(t types.Type, x uint64) *Value {
	v := &Value{Type: t}
	v.Int.SetUint64(x)
	return v
}

// BigInt returns an integer value of type t holding x.
func BigInt(t types.Type, x *uint256.Int) *Value {
	v := &Value{Type: t}
	v.Int.Set(x)
	return v
}

// Bool returns a bool value.
func Bool(b bool) *Value { return &Value{Type: types.Bool, Bool: b} }

// Address returns an address value.
func Address(a [32]byte) *Value { return &Value{Type: types.Address, Addr: a} }

// Signer returns a signer value for the account a.
func Signer(a [32]byte) *Value { return &Value{Type: types.Signer, Addr: a} }

// Bytes returns a vector<u8> value.
func Bytes(b []byte) *Value {
	v := &Value{Type: types.Vector(types.U8), Elems: make([]*Value, len(b))}
	for i, c := range b {
		v.Elems[i] = Int(types.U8, uint64(c))
	}
	return v
}

// Vector returns a vector value of element type elem.
func Vector(elem types.Type, elems ...*Value) *Value {
	return &Value{Type: types.Vector(elem), Elems: elems}
}

// Struct returns a struct value of type t with the given fields.
func Struct(t types.Type, fields ...*Value) *Value {
	return &Value{Type: t, Elems: fields}
}

// RefTo returns a reference to box.
func RefTo(box *Value, mutable bool) *Value {
	return &Value{Type: types.Ref(box.Type, mutable), Ref: box}
}

// Uint64 returns the low 64 bits of an integer value.
func (v *Value) Uint64() uint64 { return v.Int.Uint64() }

// ByteSlice returns the contents of a vector<u8>.
func (v *Value) ByteSlice() []byte {
	out := make([]byte, len(v.Elems))
	for i, e := range v.Elems {
		out[i] = byte(e.Int.Uint64())
	}
	return out
}

// Clone returns a deep copy. References keep pointing at the same box.
func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}
	out := &Value{Type: v.Type, Bool: v.Bool, Addr: v.Addr, Ref: v.Ref}
	out.Int.Set(&v.Int)
	if v.Elems != nil {
		out.Elems = make([]*Value, len(v.Elems))
		for i, e := range v.Elems {
			out.Elems[i] = e.Clone()
		}
	}
	return out
}

// Set replaces the contents of the box v with a copy of src in place, so
// references to v observe the new value.
func (v *Value) Set(src *Value) {
	c := src.Clone()
	*v = *c
}

// Deref follows references until a non-reference value.
func (v *Value) Deref() *Value {
	for v != nil && v.Type.Kind == types.KindReference {
		v = v.Ref
	}
	return v
}

// Equal compares values structurally. References compare their targets.
func (v *Value) Equal(o *Value) bool {
	a, b := v.Deref(), o.Deref()
	if a == nil || b == nil {
		return a == b
	}
	switch a.Type.Kind {
	case types.KindBool:
		return a.Bool == b.Bool
	case types.KindAddress, types.KindSigner:
		return a.Addr == b.Addr
	case types.KindVector, types.KindStruct:
		if len(a.Elems) != len(b.Elems) {
			return false
		}
		for i := range a.Elems {
			if !a.Elems[i].Equal(b.Elems[i]) {
				return false
			}
		}
		return true
	default:
		return a.Int.Eq(&b.Int)
	}
}

func (v *Value) String() string {
	var b strings.Builder
	v.format(&b)
	return b.String()
}

func (v *Value) format(b *strings.Builder) {
	if v == nil {
		b.WriteString("<nil>")
		return
	}
	switch v.Type.Kind {
	case types.KindBool:
		fmt.Fprintf(b, "%t", v.Bool)
	case types.KindAddress:
		b.WriteString(formatAddress(v.Addr))
	case types.KindSigner:
		b.WriteString("signer(" + formatAddress(v.Addr) + ")")
	case types.KindReference:
		b.WriteString("&")
		v.Ref.format(b)
	case types.KindVector:
		if v.Type.Elem != nil && v.Type.Elem.Kind == types.KindU8 {
			b.WriteString("0x" + hex.EncodeToString(v.ByteSlice()))
			return
		}
		b.WriteString("[")
		for i, e := range v.Elems {
			if i > 0 {
				b.WriteString(", ")
			}
			e.format(b)
		}
		b.WriteString("]")
	case types.KindStruct:
		b.WriteString(v.Type.Name)
		b.WriteString("{")
		for i, e := range v.Elems {
			if i > 0 {
				b.WriteString(", ")
			}
			e.format(b)
		}
		b.WriteString("}")
	default:
		b.WriteString(v.Int.Dec())
	}
}

func formatAddress(a [32]byte) string {
	s := strings.TrimLeft(hex.EncodeToString(a[:]), "0")
	if s == "" {
		s = "0"
	}
	return "0x" + s
}
