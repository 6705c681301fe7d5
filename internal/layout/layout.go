// Package layout computes memory layouts and storage tags of Move types for
// the PolkaVM target.
package layout

import (
	"fortio.org/safecast"

	"movepvm/internal/types"
)

// TypeLayout is the ABI layout of a type for a specific Target.
type TypeLayout struct {
	Size  int
	Align int

	// Struct-only:
	FieldOffsets []int
	FieldAligns  []int
}

// StructSource supplies the field types of struct instantiations.
// *sbc.Unit implements it.
type StructSource interface {
	FieldTypes(t types.Type) ([]types.Type, error)
}

// Resolver computes memory layout for types. One Resolver lives for one
// compilation unit; it is safe for concurrent use.
type Resolver struct {
	Target  Target
	Structs StructSource

	cache *cache
}

// New creates a new Resolver for the specified target.
func New(target Target, structs StructSource) *Resolver {
	return &Resolver{
		Target:  target,
		Structs: structs,
		cache:   newCache(),
	}
}

type layoutState struct {
	stack []string
	index map[string]int
}

func newLayoutState() *layoutState {
	return &layoutState{
		stack: nil,
		index: make(map[string]int, 8),
	}
}

// LayoutOf computes and caches the layout of a ground type.
func (r *Resolver) LayoutOf(t types.Type) (TypeLayout, error) {
	if !t.IsGround() {
		return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrUnresolvedGeneric, Type: t.Key()}
	}
	return r.layoutOf(t, newLayoutState())
}

func (r *Resolver) layoutOf(t types.Type, state *layoutState) (TypeLayout, error) {
	key := t.Key()
	if cached, ok := r.cache.get(key); ok {
		return cached.Layout, cached.Err
	}

	if idx, ok := state.index[key]; ok {
		cycle := append([]string(nil), state.stack[idx:]...)
		cycle = append(cycle, key)
		err := &LayoutError{
			Kind:  LayoutErrRecursive,
			Type:  key,
			Cycle: cycle,
		}
		return TypeLayout{Size: 0, Align: 1}, err
	}

	state.index[key] = len(state.stack)
	state.stack = append(state.stack, key)
	l, err := r.computeLayout(t, state)
	state.stack = state.stack[:len(state.stack)-1]
	delete(state.index, key)

	stored := r.cache.put(key, &cacheEntry{Layout: l, Err: err})
	return stored.Layout, stored.Err
}

// SizeOf returns the size of a type in bytes.
func (r *Resolver) SizeOf(t types.Type) (int, error) {
	l, err := r.LayoutOf(t)
	return l.Size, err
}

// SizeOf64 returns the size as the i64 the runtime ABI expects.
func (r *Resolver) SizeOf64(t types.Type) (uint64, error) {
	l, err := r.LayoutOf(t)
	if err != nil {
		return 0, err
	}
	n, err := safecast.Conv[uint64](l.Size)
	if err != nil {
		return 0, &LayoutError{Kind: LayoutErrSize, Type: t.Key(), Err: err}
	}
	return n, nil
}

// AlignOf returns the alignment requirement of a type in bytes.
func (r *Resolver) AlignOf(t types.Type) (int, error) {
	l, err := r.LayoutOf(t)
	return l.Align, err
}

// FieldOffset returns the byte offset of a struct field.
func (r *Resolver) FieldOffset(structT types.Type, fieldIdx int) (int, error) {
	if structT.Kind != types.KindStruct {
		return 0, &LayoutError{Kind: LayoutErrNotStruct, Type: structT.Key()}
	}
	l, err := r.LayoutOf(structT)
	if err != nil {
		return 0, err
	}
	if fieldIdx < 0 || fieldIdx >= len(l.FieldOffsets) {
		return 0, &LayoutError{Kind: LayoutErrUnknownStruct, Type: structT.Key(), Err: errFieldIndex(fieldIdx)}
	}
	return l.FieldOffsets[fieldIdx], nil
}

// FieldTypes returns the ground field types of a struct instantiation.
func (r *Resolver) FieldTypes(structT types.Type) ([]types.Type, error) {
	if structT.Kind != types.KindStruct {
		return nil, &LayoutError{Kind: LayoutErrNotStruct, Type: structT.Key()}
	}
	if !structT.IsGround() {
		return nil, &LayoutError{Kind: LayoutErrUnresolvedGeneric, Type: structT.Key()}
	}
	if r.Structs == nil {
		return nil, &LayoutError{Kind: LayoutErrUnknownStruct, Type: structT.Key()}
	}
	fields, err := r.Structs.FieldTypes(structT)
	if err != nil {
		return nil, &LayoutError{Kind: LayoutErrUnknownStruct, Type: structT.Key(), Err: err}
	}
	return fields, nil
}

// Len returns the number of cached layouts.
func (r *Resolver) Len() int {
	return r.cache.len()
}
