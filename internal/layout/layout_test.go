package layout_test

import (
	"crypto/sha256"
	"errors"
	"reflect"
	"sync"
	"testing"

	"movepvm/internal/diag"
	"movepvm/internal/layout"
	"movepvm/internal/sbc"
	"movepvm/internal/testkit"
	"movepvm/internal/types"
)

func newResolver(u *sbc.Unit) *layout.Resolver {
	return layout.New(layout.PolkaVM(), u)
}

func TestResolver_Scalars(t *testing.T) {
	r := newResolver(testkit.VaultUnit())
	cases := []struct {
		typ   types.Type
		size  int
		align int
	}{
		{types.Bool, 1, 1},
		{types.U8, 1, 1},
		{types.U16, 2, 2},
		{types.U32, 4, 4},
		{types.U64, 8, 8},
		{types.U128, 16, 16},
		{types.U256, 32, 16},
		{types.Address, 32, 1},
		{types.Signer, 32, 1},
		{types.Ref(types.U8, false), 8, 8},
		{types.Vector(types.U8), 24, 8},
		{types.Vector(testkit.VaultResource()), 24, 8},
	}
	for _, tc := range cases {
		l, err := r.LayoutOf(tc.typ)
		if err != nil {
			t.Fatalf("%s: %v", tc.typ, err)
		}
		if l.Size != tc.size || l.Align != tc.align {
			t.Errorf("%s: got %d/%d, want %d/%d", tc.typ, l.Size, l.Align, tc.size, tc.align)
		}
	}
}

func TestResolver_StructFieldsAligned(t *testing.T) {
	u := &sbc.Unit{Modules: []*sbc.Module{{
		Address: "0x7",
		Name:    "m",
		Structs: []*sbc.StructDef{
			{Name: "Mixed", Fields: []sbc.Field{
				{Name: "a", Type: types.U8},
				{Name: "b", Type: types.U64},
				{Name: "c", Type: types.Bool},
				{Name: "d", Type: types.U16},
			}},
			{Name: "Empty"},
			{Name: "Owner", Fields: []sbc.Field{
				{Name: "flag", Type: types.Bool},
				{Name: "who", Type: types.Address},
				{Name: "big", Type: types.U128},
			}},
		},
	}}}
	r := newResolver(u)

	mixed := types.Struct("0x7::m", "Mixed")
	l, err := r.LayoutOf(mixed)
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{0, 8, 16, 18}; !reflect.DeepEqual(l.FieldOffsets, want) {
		t.Fatalf("offsets = %v, want %v", l.FieldOffsets, want)
	}
	if l.Size != 24 || l.Align != 8 {
		t.Fatalf("Mixed = %d/%d, want 24/8", l.Size, l.Align)
	}

	empty, err := r.LayoutOf(types.Struct("0x7::m", "Empty"))
	if err != nil {
		t.Fatal(err)
	}
	if empty.Size != 1 || empty.Align != 1 {
		t.Fatalf("Empty = %d/%d, want 1/1", empty.Size, empty.Align)
	}

	off, err := r.FieldOffset(types.Struct("0x7::m", "Owner"), 2)
	if err != nil {
		t.Fatal(err)
	}
	if off != 48 {
		t.Fatalf("Owner.big offset = %d, want 48", off)
	}
	if _, err := r.FieldOffset(types.Struct("0x7::m", "Owner"), 3); err == nil {
		t.Fatal("expected error for field index out of range")
	}
}

func TestResolver_GenericInstantiations(t *testing.T) {
	r := newResolver(testkit.BoxesUnit())
	cases := []struct {
		arg  types.Type
		size int
	}{
		{types.U8, 1},
		{types.U64, 8},
		{types.Vector(types.U64), 24},
		{testkit.BoxType(types.U32), 4},
	}
	for _, tc := range cases {
		size, err := r.SizeOf(testkit.BoxType(tc.arg))
		if err != nil {
			t.Fatalf("Box<%s>: %v", tc.arg, err)
		}
		if size != tc.size {
			t.Errorf("Box<%s> size = %d, want %d", tc.arg, size, tc.size)
		}
	}
}

func TestResolver_UnresolvedGeneric(t *testing.T) {
	r := newResolver(testkit.BoxesUnit())
	_, err := r.LayoutOf(testkit.BoxType(types.Param(0)))
	if err == nil {
		t.Fatal("expected error for Box<#0>")
	}
	if !diag.IsKind(err, diag.ErrUnresolvedGeneric) {
		t.Fatalf("expected unresolved generic, got %v", err)
	}
	if _, err := r.StructTag(testkit.BoxType(types.Param(0))); !diag.IsKind(err, diag.ErrUnresolvedGeneric) {
		t.Fatalf("StructTag: expected unresolved generic, got %v", err)
	}
}

func TestResolver_RecursiveStructReportsCycle(t *testing.T) {
	u := &sbc.Unit{Modules: []*sbc.Module{{
		Address: "0x7",
		Name:    "list",
		Structs: []*sbc.StructDef{
			{Name: "Node", Fields: []sbc.Field{{Name: "next", Type: types.Struct("0x7::list", "Wrap")}}},
			{Name: "Wrap", Fields: []sbc.Field{{Name: "node", Type: types.Struct("0x7::list", "Node")}}},
		},
	}}}
	r := newResolver(u)
	_, err := r.LayoutOf(types.Struct("0x7::list", "Node"))
	var lerr *layout.LayoutError
	if !errors.As(err, &lerr) {
		t.Fatalf("expected *layout.LayoutError, got %T (%v)", err, err)
	}
	if lerr.Kind != layout.LayoutErrRecursive {
		t.Fatalf("expected LayoutErrRecursive, got kind=%d (%v)", lerr.Kind, lerr)
	}
	if len(lerr.Cycle) != 3 {
		t.Fatalf("expected Node -> Wrap -> Node, got %v", lerr.Cycle)
	}
	if !diag.IsKind(err, diag.ErrMalformedInput) {
		t.Fatalf("expected malformed input class, got %v", err)
	}
}

func TestResolver_UnknownStruct(t *testing.T) {
	r := newResolver(testkit.ArithUnit())
	if _, err := r.LayoutOf(types.Struct("0x9::nope", "X")); !diag.IsKind(err, diag.ErrMalformedInput) {
		t.Fatalf("expected malformed input, got %v", err)
	}
}

func TestResolver_IdempotentUnderConcurrency(t *testing.T) {
	r := newResolver(testkit.BoxesUnit())
	inputs := []types.Type{
		testkit.BoxType(types.U64),
		testkit.BoxType(types.Vector(types.U8)),
		testkit.BoxType(testkit.BoxType(types.U128)),
		types.Vector(testkit.BoxType(types.Bool)),
	}
	want := make([]layout.TypeLayout, len(inputs))
	for i, in := range inputs {
		l, err := layout.New(layout.PolkaVM(), testkit.BoxesUnit()).LayoutOf(in)
		if err != nil {
			t.Fatal(err)
		}
		want[i] = l
	}

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i, in := range inputs {
				l, err := r.LayoutOf(in)
				if err != nil {
					errs <- err
					return
				}
				if !reflect.DeepEqual(l, want[i]) {
					errs <- errors.New("layout differs for " + in.Key())
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
	again, err := r.LayoutOf(inputs[2])
	if err != nil || !reflect.DeepEqual(again, want[2]) {
		t.Fatalf("second resolve differs: %+v (%v)", again, err)
	}
}

func TestStructTag_Deterministic(t *testing.T) {
	r1 := newResolver(testkit.BoxesUnit())
	r2 := newResolver(testkit.BoxesUnit())
	a, err := r1.StructTag(testkit.BoxType(types.U64))
	if err != nil {
		t.Fatal(err)
	}
	b, err := r2.StructTag(testkit.BoxType(types.U64))
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("tags differ across resolvers: %s vs %s", a, b)
	}
	if want := layout.Tag(sha256.Sum256([]byte("0x42::boxes::Box<u64>"))); a != want {
		t.Fatalf("tag = %s, want %s", a, want)
	}
	c, err := r1.StructTag(testkit.BoxType(types.U32))
	if err != nil {
		t.Fatal(err)
	}
	if a == c {
		t.Fatal("Box<u64> and Box<u32> share a tag")
	}
	if _, err := r1.StructTag(types.U64); err == nil {
		t.Fatal("expected error for non-struct tag")
	}
}
