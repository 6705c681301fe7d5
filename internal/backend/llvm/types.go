package llvm

import (
	"errors"
	"fmt"
	"strings"

	"movepvm/internal/diag"
	"movepvm/internal/mono"
	"movepvm/internal/types"
)

// vecType is the {data, len, cap} vector descriptor.
const vecType = "%move.vec"

const (
	vecDataField = 0
	vecLenField  = 1
	vecCapField  = 2
)

func (e *Emitter) llvmType(t types.Type) (string, error) {
	switch t.Kind {
	case types.KindBool:
		return "i1", nil
	case types.KindU8, types.KindU16, types.KindU32, types.KindU64, types.KindU128, types.KindU256:
		return intType(t.Bits()), nil
	case types.KindAddress, types.KindSigner:
		return "[32 x i8]", nil
	case types.KindVector:
		return vecType, nil
	case types.KindReference:
		return "ptr", nil
	case types.KindStruct:
		if !t.IsGround() {
			return "", diag.Errorf(diag.ErrUnresolvedGeneric, diag.TrUnresolvedGeneric, t.Module, "", "struct %s is not ground", t)
		}
		return "%" + quoteName(t.Key()), nil
	case types.KindParam:
		return "", diag.Errorf(diag.ErrUnresolvedGeneric, diag.TrUnresolvedGeneric, "", "", "type parameter %s reached the backend", t)
	default:
		return "", fmt.Errorf("unsupported type kind %s", t.Kind)
	}
}

func (e *Emitter) retType(returns []types.Type) (string, error) {
	switch len(returns) {
	case 0:
		return "void", nil
	case 1:
		return e.llvmType(returns[0])
	}
	parts := make([]string, len(returns))
	for i, r := range returns {
		ty, err := e.llvmType(r)
		if err != nil {
			return "", err
		}
		parts[i] = ty
	}
	return "{ " + strings.Join(parts, ", ") + " }", nil
}

func intType(bits int) string {
	return fmt.Sprintf("i%d", bits)
}

// needsDeepCopy reports types whose copy must allocate fresh vector buffers.
func (e *Emitter) needsDeepCopy(t types.Type) (bool, error) {
	switch t.Kind {
	case types.KindVector:
		return true, nil
	case types.KindStruct:
		fields, err := e.layouts.FieldTypes(t)
		if err != nil {
			return false, err
		}
		for _, f := range fields {
			deep, err := e.needsDeepCopy(f)
			if err != nil || deep {
				return deep, err
			}
		}
	}
	return false, nil
}

// quoteName turns an arbitrary key into a quoted LLVM identifier.
func quoteName(name string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '"' || c == '\\' || c < 0x20 || c >= 0x7f {
			fmt.Fprintf(&b, "\\%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	b.WriteByte('"')
	return b.String()
}

// escapeBytes renders raw bytes for a c"..." initializer.
func escapeBytes(raw []byte) string {
	var b strings.Builder
	for _, c := range raw {
		fmt.Fprintf(&b, "\\%02X", c)
	}
	return b.String()
}

func byteArrayLiteral(raw []byte) string {
	parts := make([]string, len(raw))
	for i, c := range raw {
		parts[i] = fmt.Sprintf("i8 %d", c)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func wrapInstanceErr(in *mono.Instance, err error) error {
	if err == nil {
		return nil
	}
	var ce *diag.CompileError
	if errors.As(err, &ce) {
		if ce.Module != "" {
			return err
		}
		return &diag.CompileError{Kind: ce.Kind, Code: ce.Code, Module: in.ModuleID(), Function: in.Func.Name, Detail: in.Key, Err: err}
	}
	return &diag.CompileError{Kind: diag.ErrMalformedInput, Code: diag.TrUnsupportedOp, Module: in.ModuleID(), Function: in.Func.Name, Detail: in.Key, Err: err}
}
