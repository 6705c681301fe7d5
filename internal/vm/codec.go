package vm

import (
	"encoding/binary"
	"fmt"

	"fortio.org/safecast"

	"movepvm/internal/layout"
	"movepvm/internal/types"
)

// Resource bytes are the value laid out as the compiled code sees it. A
// vector descriptor {ptr, len, cap} stores the offset of its elements,
// which follow the fixed part of the record.

const vecDescSize = 24

// Encode serializes a storable value of ground type v.Type.
func Encode(r *layout.Resolver, v *Value) ([]byte, error) {
	size, err := r.SizeOf(v.Type)
	if err != nil {
		return nil, err
	}
	e := &encoder{r: r, buf: make([]byte, size)}
	if err := e.put(v, 0); err != nil {
		return nil, err
	}
	return e.buf, nil
}

type encoder struct {
	r   *layout.Resolver
	buf []byte
}

func (e *encoder) put(v *Value, off int) error {
	t := v.Type
	switch {
	case t.Kind == types.KindBool:
		if v.Bool {
			e.buf[off] = 1
		}
	case t.IsInteger():
		b := v.Int.Bytes32()
		n := t.Bits() / 8
		for i := range n {
			e.buf[off+i] = b[31-i]
		}
	case t.Kind == types.KindAddress || t.Kind == types.KindSigner:
		copy(e.buf[off:off+32], v.Addr[:])
	case t.Kind == types.KindStruct:
		l, err := e.r.LayoutOf(t)
		if err != nil {
			return err
		}
		if len(v.Elems) != len(l.FieldOffsets) {
			return fmt.Errorf("%s: %d fields, layout has %d", t, len(v.Elems), len(l.FieldOffsets))
		}
		for i, f := range v.Elems {
			if err := e.put(f, off+l.FieldOffsets[i]); err != nil {
				return err
			}
		}
	case t.Kind == types.KindVector:
		elem := *t.Elem
		l, err := e.r.LayoutOf(elem)
		if err != nil {
			return err
		}
		start := roundUp(len(e.buf), l.Align)
		n := len(v.Elems)
		e.buf = append(e.buf, make([]byte, start-len(e.buf)+n*l.Size)...)
		for i, word := range []int{start, n, n} {
			w, err := safecast.Conv[uint64](word)
			if err != nil {
				return err
			}
			binary.LittleEndian.PutUint64(e.buf[off+8*i:], w)
		}
		for i, x := range v.Elems {
			if err := e.put(x, start+i*l.Size); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("value of type %s cannot be stored", t)
	}
	return nil
}

// Decode is the inverse of Encode.
func Decode(r *layout.Resolver, t types.Type, b []byte) (*Value, error) {
	size, err := r.SizeOf(t)
	if err != nil {
		return nil, err
	}
	if len(b) < size {
		return nil, fmt.Errorf("%s needs %d bytes, got %d", t, size, len(b))
	}
	d := &decoder{r: r, buf: b}
	return d.get(t, 0)
}

type decoder struct {
	r   *layout.Resolver
	buf []byte
}

func (d *decoder) get(t types.Type, off int) (*Value, error) {
	switch {
	case t.Kind == types.KindBool:
		return Bool(d.buf[off] != 0), nil
	case t.IsInteger():
		n := t.Bits() / 8
		be := make([]byte, n)
		for i := range n {
			be[n-1-i] = d.buf[off+i]
		}
		v := &Value{Type: t}
		v.Int.SetBytes(be)
		return v, nil
	case t.Kind == types.KindAddress || t.Kind == types.KindSigner:
		v := &Value{Type: t}
		copy(v.Addr[:], d.buf[off:off+32])
		return v, nil
	case t.Kind == types.KindStruct:
		l, err := d.r.LayoutOf(t)
		if err != nil {
			return nil, err
		}
		fields, err := d.r.FieldTypes(t)
		if err != nil {
			return nil, err
		}
		v := &Value{Type: t, Elems: make([]*Value, len(fields))}
		for i, ft := range fields {
			if v.Elems[i], err = d.get(ft, off+l.FieldOffsets[i]); err != nil {
				return nil, err
			}
		}
		return v, nil
	case t.Kind == types.KindVector:
		if off+vecDescSize > len(d.buf) {
			return nil, fmt.Errorf("truncated vector descriptor at %d", off)
		}
		elem := *t.Elem
		l, err := d.r.LayoutOf(elem)
		if err != nil {
			return nil, err
		}
		start, err := safecast.Conv[int](binary.LittleEndian.Uint64(d.buf[off:]))
		if err != nil {
			return nil, err
		}
		n, err := safecast.Conv[int](binary.LittleEndian.Uint64(d.buf[off+8:]))
		if err != nil {
			return nil, err
		}
		if start < 0 || n < 0 || start+n*l.Size > len(d.buf) {
			return nil, fmt.Errorf("vector of %d elements at %d out of range", n, start)
		}
		v := &Value{Type: t, Elems: make([]*Value, n)}
		for i := range n {
			if v.Elems[i], err = d.get(elem, start+i*l.Size); err != nil {
				return nil, err
			}
		}
		return v, nil
	default:
		return nil, fmt.Errorf("type %s cannot be loaded from storage", t)
	}
}

func roundUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}
