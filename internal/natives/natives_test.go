package natives_test

import (
	"strings"
	"testing"

	"movepvm/internal/diag"
	"movepvm/internal/layout"
	"movepvm/internal/natives"
	"movepvm/internal/testkit"
	"movepvm/internal/types"
)

func TestLookup_ClosedWorld(t *testing.T) {
	if _, err := natives.Lookup("0x1::vector", "push_back"); err != nil {
		t.Fatalf("push_back: %v", err)
	}
	if _, err := natives.Lookup("0x0001::vector", "length"); err != nil {
		t.Fatalf("non-canonical address: %v", err)
	}
	_, err := natives.Lookup("0x1::table", "add_box")
	if err == nil {
		t.Fatal("expected error for native outside the table")
	}
	if !diag.IsKind(err, diag.ErrUnsupportedNative) {
		t.Fatalf("expected unsupported native, got %v", err)
	}
}

func TestDecl_Conventions(t *testing.T) {
	cases := []struct {
		module, name string
		want         string
	}{
		{"0x1::vector", "push_back", "void move_native_vector_push_back(i64, i64, ptr, ptr)"},
		{"0x1::vector", "pop_back", "void move_native_vector_pop_back(i64, i64, ptr, ptr)"},
		{"0x1::vector", "length", "i64 move_native_vector_length(ptr)"},
		{"0x1::hash", "sha2_256", "{ ptr, i64 } move_native_hash_sha2_256(ptr)"},
		{"0x1::aptos_hash", "keccak256", "{ ptr, i64 } move_native_aptos_hash_keccak256(ptr)"},
		{"0x1::string", "internal_check_utf8", "i1 move_native_string_internal_check_utf8(ptr)"},
		{"0x1::signer", "borrow_address", "ptr move_native_signer_borrow_address(ptr)"},
		{"0x1::debug", "print_stack_trace", "void move_native_debug_print_stack_trace()"},
	}
	for _, tc := range cases {
		b, err := natives.Lookup(tc.module, tc.name)
		if err != nil {
			t.Fatal(err)
		}
		d := b.Decl()
		params := make([]string, len(d.Params))
		for i, p := range d.Params {
			params[i] = p.LLVM()
		}
		got := d.Ret.LLVM() + " " + d.Symbol + "(" + strings.Join(params, ", ") + ")"
		if got != tc.want {
			t.Errorf("%s::%s: got %q, want %q", tc.module, tc.name, got, tc.want)
		}
	}
}

func TestBind_ResolvesElementLayout(t *testing.T) {
	r := layout.New(layout.PolkaVM(), testkit.BoxesUnit())
	b, err := natives.Lookup("0x1::vector", "push_back")
	if err != nil {
		t.Fatal(err)
	}
	cs, err := natives.Bind(b, []types.Type{testkit.BoxType(types.U128)}, r)
	if err != nil {
		t.Fatal(err)
	}
	if cs.Elem.Size != 16 || cs.Elem.Align != 16 {
		t.Fatalf("elem layout = %+v", cs.Elem)
	}
	if cs.Args[1].Pass != natives.ByRef || cs.Args[1].Layout.Size != 16 {
		t.Fatalf("element arg = %+v", cs.Args[1])
	}
	if b.Effect != natives.Grows {
		t.Fatalf("push_back effect = %s", b.Effect)
	}

	if _, err := natives.Bind(b, []types.Type{types.Param(0)}, r); !diag.IsKind(err, diag.ErrUnresolvedGeneric) {
		t.Fatalf("expected unresolved generic, got %v", err)
	}
	if _, err := natives.Bind(b, nil, r); err == nil {
		t.Fatal("expected arity error")
	}
}

func TestCheckSignature_Fixtures(t *testing.T) {
	for _, m := range testkit.StdlibModules() {
		for _, fn := range m.Functions {
			b, err := natives.Lookup(m.ID(), fn.Name)
			if err != nil {
				t.Fatalf("%s::%s: %v", m.ID(), fn.Name, err)
			}
			if err := natives.CheckSignature(b, fn); err != nil {
				t.Fatalf("%s::%s: %v", m.ID(), fn.Name, err)
			}
		}
	}
	b, _ := natives.Lookup("0x1::vector", "length")
	fn := testkit.StdlibModules()[2].Function("length")
	fn.Returns = []types.Type{types.U32}
	if err := natives.CheckSignature(b, fn); !diag.IsKind(err, diag.ErrUnsupportedNative) {
		t.Fatalf("expected mismatch, got %v", err)
	}
}

func TestDecls_SortedAndPrefixed(t *testing.T) {
	decls := natives.Decls()
	for i, d := range decls {
		if !natives.IsRuntimeSymbol(d.Symbol) {
			t.Errorf("%s lacks a runtime prefix", d.Symbol)
		}
		if i > 0 && decls[i-1].Symbol >= d.Symbol {
			t.Errorf("decls not sorted at %s", d.Symbol)
		}
	}
}
