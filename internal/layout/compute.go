package layout

import (
	"fmt"

	"movepvm/internal/types"
)

// Vector descriptors are {ptr data, u64 length, u64 capacity}.
const (
	VectorPtrOffset = 0
	VectorLenOffset = 8
	VectorCapOffset = 16
)

func errFieldIndex(i int) error {
	return fmt.Errorf("field index %d out of range", i)
}

func (r *Resolver) computeLayout(t types.Type, state *layoutState) (TypeLayout, error) {
	switch t.Kind {
	case types.KindBool, types.KindU8:
		return scalarLayoutBytes(1), nil
	case types.KindU16:
		return scalarLayoutBytes(2), nil
	case types.KindU32:
		return scalarLayoutBytes(4), nil
	case types.KindU64:
		return scalarLayoutBytes(8), nil
	case types.KindU128:
		return scalarLayoutBytes(16), nil
	case types.KindU256:
		// i256 keeps the 16-byte alignment LLVM gives i128 on rv64.
		return TypeLayout{Size: 32, Align: 16}, nil
	case types.KindAddress, types.KindSigner:
		return TypeLayout{Size: 32, Align: 1}, nil
	case types.KindReference:
		return r.ptrLayout(), nil
	case types.KindVector:
		ptr := r.ptrLayout()
		return TypeLayout{
			Size:         roundUp(ptr.Size, 8) + 16,
			Align:        maxInt(ptr.Align, 8),
			FieldOffsets: []int{VectorPtrOffset, VectorLenOffset, VectorCapOffset},
			FieldAligns:  []int{ptr.Align, 8, 8},
		}, nil
	case types.KindStruct:
		return r.structLayout(t, state)
	case types.KindParam:
		return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrUnresolvedGeneric, Type: t.Key()}
	default:
		return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrUnknownStruct, Type: t.Key()}
	}
}

func (r *Resolver) ptrLayout() TypeLayout {
	ptrSize := r.Target.PtrSize
	ptrAlign := r.Target.PtrAlign
	if ptrSize <= 0 {
		ptrSize = 8
	}
	if ptrAlign <= 0 {
		ptrAlign = ptrSize
	}
	return TypeLayout{Size: ptrSize, Align: ptrAlign}
}

func scalarLayoutBytes(size int) TypeLayout {
	if size <= 0 {
		return TypeLayout{Size: 0, Align: 1}
	}
	return TypeLayout{Size: size, Align: size}
}

func roundUp(n, align int) int {
	if align <= 1 {
		return n
	}
	r := n % align
	if r == 0 {
		return n
	}
	return n + (align - r)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (r *Resolver) structLayout(t types.Type, state *layoutState) (TypeLayout, error) {
	fields, err := r.FieldTypes(t)
	if err != nil {
		return TypeLayout{Size: 0, Align: 1}, err
	}
	if len(fields) == 0 {
		// Move always gives a fieldless struct its dummy bool.
		return TypeLayout{Size: 1, Align: 1}, nil
	}
	offsets := make([]int, len(fields))
	aligns := make([]int, len(fields))

	size := 0
	align := 1
	for i, ft := range fields {
		if !ft.IsGround() {
			return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrUnresolvedGeneric, Type: t.Key()}
		}
		fl, err := r.layoutOf(ft, state)
		if err != nil {
			return TypeLayout{Size: 0, Align: 1}, err
		}
		fAlign := fl.Align
		if fAlign <= 0 {
			fAlign = 1
		}
		size = roundUp(size, fAlign)
		offsets[i] = size
		aligns[i] = fAlign
		size += fl.Size
		align = maxInt(align, fAlign)
	}
	size = roundUp(size, align)
	return TypeLayout{
		Size:         size,
		Align:        align,
		FieldOffsets: offsets,
		FieldAligns:  aligns,
	}, nil
}
