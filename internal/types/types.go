// Package types describes Move value types as they appear in stackless bytecode.
package types

import (
	"fmt"
	"strings"
)

// Kind enumerates all supported kinds of types.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindU8
	KindU16
	KindU32
	KindU64
	KindU128
	KindU256
	KindAddress
	KindSigner
	KindVector
	KindStruct
	KindReference
	KindParam
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindBool:
		return "bool"
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindU32:
		return "u32"
	case KindU64:
		return "u64"
	case KindU128:
		return "u128"
	case KindU256:
		return "u256"
	case KindAddress:
		return "address"
	case KindSigner:
		return "signer"
	case KindVector:
		return "vector"
	case KindStruct:
		return "struct"
	case KindReference:
		return "reference"
	case KindParam:
		return "param"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Type is a structural descriptor for a Move type.
//
// Descriptors are plain values: two descriptors describe the same type iff
// their keys are equal.
type Type struct {
	Kind    Kind   `msgpack:"k"`
	Elem    *Type  `msgpack:"e,omitempty"` // vector element or referenced type
	Module  string `msgpack:"m,omitempty"` // "0x1::coin" for structs
	Name    string `msgpack:"n,omitempty"`
	Args    []Type `msgpack:"a,omitempty"`
	Mutable bool   `msgpack:"mut,omitempty"`
	Param   int    `msgpack:"p,omitempty"`
}

var (
	Bool    = Type{Kind: KindBool}
	U8      = Type{Kind: KindU8}
	U16     = Type{Kind: KindU16}
	U32     = Type{Kind: KindU32}
	U64     = Type{Kind: KindU64}
	U128    = Type{Kind: KindU128}
	U256    = Type{Kind: KindU256}
	Address = Type{Kind: KindAddress}
	Signer  = Type{Kind: KindSigner}
)

// Vector returns vector<elem>.
func Vector(elem Type) Type {
	e := elem
	return Type{Kind: KindVector, Elem: &e}
}

// Struct returns a struct instantiation.
func Struct(module, name string, args ...Type) Type {
	var copied []Type
	if len(args) > 0 {
		copied = append(copied, args...)
	}
	return Type{Kind: KindStruct, Module: module, Name: name, Args: copied}
}

// Ref returns &T or &mut T.
func Ref(target Type, mutable bool) Type {
	t := target
	return Type{Kind: KindReference, Elem: &t, Mutable: mutable}
}

// Param returns the type parameter with the given index.
func Param(index int) Type {
	return Type{Kind: KindParam, Param: index}
}

// IsInteger reports whether t is one of the unsigned integer kinds.
func (t Type) IsInteger() bool {
	return t.Kind >= KindU8 && t.Kind <= KindU256
}

// Bits returns the integer width, or 0 for non-integers.
func (t Type) Bits() int {
	switch t.Kind {
	case KindU8:
		return 8
	case KindU16:
		return 16
	case KindU32:
		return 32
	case KindU64:
		return 64
	case KindU128:
		return 128
	case KindU256:
		return 256
	case KindBool:
		return 1
	default:
		return 0
	}
}

// IsPrimitive reports scalar kinds whose equality is a byte comparison.
func (t Type) IsPrimitive() bool {
	switch t.Kind {
	case KindBool, KindAddress, KindSigner:
		return true
	default:
		return t.IsInteger()
	}
}

// IsSigner reports signer and references to signer.
func (t Type) IsSigner() bool {
	if t.Kind == KindSigner {
		return true
	}
	return t.Kind == KindReference && t.Elem != nil && t.Elem.Kind == KindSigner
}

// Deref strips one reference level.
func (t Type) Deref() Type {
	if t.Kind == KindReference && t.Elem != nil {
		return *t.Elem
	}
	return t
}

// IsGround reports whether no type parameter remains anywhere in t.
func (t Type) IsGround() bool {
	switch t.Kind {
	case KindParam:
		return false
	case KindVector, KindReference:
		return t.Elem != nil && t.Elem.IsGround()
	case KindStruct:
		for _, a := range t.Args {
			if !a.IsGround() {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Subst replaces type parameters with args. Parameters without a matching
// argument are left in place.
func (t Type) Subst(args []Type) Type {
	switch t.Kind {
	case KindParam:
		if t.Param >= 0 && t.Param < len(args) {
			return args[t.Param]
		}
		return t
	case KindVector:
		if t.Elem == nil {
			return t
		}
		return Vector(t.Elem.Subst(args))
	case KindReference:
		if t.Elem == nil {
			return t
		}
		return Ref(t.Elem.Subst(args), t.Mutable)
	case KindStruct:
		if len(t.Args) == 0 {
			return t
		}
		out := make([]Type, len(t.Args))
		for i, a := range t.Args {
			out[i] = a.Subst(args)
		}
		return Type{Kind: KindStruct, Module: t.Module, Name: t.Name, Args: out}
	default:
		return t
	}
}

// Equal compares descriptors structurally.
func (t Type) Equal(other Type) bool {
	return t.Key() == other.Key()
}

// Key returns the canonical textual form of t.
func (t Type) Key() string {
	var b strings.Builder
	t.writeKey(&b)
	return b.String()
}

func (t Type) String() string { return t.Key() }

func (t Type) writeKey(b *strings.Builder) {
	switch t.Kind {
	case KindVector:
		b.WriteString("vector<")
		if t.Elem != nil {
			t.Elem.writeKey(b)
		}
		b.WriteByte('>')
	case KindReference:
		if t.Mutable {
			b.WriteString("&mut ")
		} else {
			b.WriteByte('&')
		}
		if t.Elem != nil {
			t.Elem.writeKey(b)
		}
	case KindStruct:
		b.WriteString(t.Module)
		b.WriteString("::")
		b.WriteString(t.Name)
		writeArgs(b, t.Args)
	case KindParam:
		fmt.Fprintf(b, "#%d", t.Param)
	default:
		b.WriteString(t.Kind.String())
	}
}

// ArgsKey renders a type argument list, "" when empty.
func ArgsKey(args []Type) string {
	if len(args) == 0 {
		return ""
	}
	var b strings.Builder
	writeArgs(&b, args)
	return b.String()
}

func writeArgs(b *strings.Builder, args []Type) {
	if len(args) == 0 {
		return
	}
	b.WriteByte('<')
	for i, a := range args {
		if i > 0 {
			b.WriteString(", ")
		}
		a.writeKey(b)
	}
	b.WriteByte('>')
}

// AllGround reports whether every type in args is ground.
func AllGround(args []Type) bool {
	for _, a := range args {
		if !a.IsGround() {
			return false
		}
	}
	return true
}

// SubstAll applies Subst to each element.
func SubstAll(in, args []Type) []Type {
	if len(in) == 0 {
		return nil
	}
	out := make([]Type, len(in))
	for i, t := range in {
		out[i] = t.Subst(args)
	}
	return out
}
