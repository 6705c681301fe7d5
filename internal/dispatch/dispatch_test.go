package dispatch_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/holiman/uint256"

	"movepvm/internal/abi"
	"movepvm/internal/backend/llvm"
	"movepvm/internal/diag"
	"movepvm/internal/dispatch"
	"movepvm/internal/layout"
	"movepvm/internal/mono"
	"movepvm/internal/testkit"
	"movepvm/internal/types"
)

func TestBuild_VaultEntries(t *testing.T) {
	tbl, err := dispatch.Build(testkit.VaultUnit(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Module != testkit.VaultModule || len(tbl.Entries) != 2 {
		t.Fatalf("table = %s with %d entries", tbl.Module, len(tbl.Entries))
	}
	for i := 1; i < len(tbl.Entries); i++ {
		if tbl.Entries[i-1].Value() >= tbl.Entries[i].Value() {
			t.Fatalf("entries not sorted by selector value")
		}
	}
	entry, ok := tbl.Entry("init")
	if !ok {
		t.Fatal("init missing")
	}
	if entry.Selector != abi.Selector("vault", "init") {
		t.Fatalf("selector %x, want keccak prefix of vault::init", entry.Selector)
	}
	if !entry.Signer || len(entry.Args()) != 1 || entry.ArgsSize() != 8 {
		t.Fatalf("init args = %v signer=%v", entry.Args(), entry.Signer)
	}
	got, ok := tbl.Lookup(entry.Selector)
	if !ok || got != entry {
		t.Fatalf("lookup by selector failed")
	}
	if _, ok := tbl.Lookup([4]byte{0xde, 0xad, 0xbe, 0xef}); ok {
		t.Fatalf("unexpected match for unknown selector")
	}
}

func TestBuild_Deterministic(t *testing.T) {
	a, err := dispatch.Build(testkit.VaultUnit(), nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := dispatch.Build(testkit.VaultUnit(), nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a.Entries {
		if a.Entries[i].Key != b.Entries[i].Key || a.Entries[i].Selector != b.Entries[i].Selector {
			t.Fatalf("entry %d differs between builds", i)
		}
	}
}

func TestBuild_MultipleEntryModules(t *testing.T) {
	u := testkit.VaultUnit()
	u.Modules = append(u.Modules, testkit.ArithModuleDef())
	_, err := dispatch.Build(u, nil)
	if !diag.IsKind(err, diag.ErrMultipleEntryModules) {
		t.Fatalf("err = %v, want multiple entry modules", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, testkit.VaultModule) || !strings.Contains(msg, testkit.ArithModule) {
		t.Fatalf("error must name both modules: %s", msg)
	}
}

func TestBuild_NoEntries(t *testing.T) {
	tbl, err := dispatch.Build(testkit.BoxesUnit(), nil)
	if err != nil {
		t.Fatalf("library-only unit: %v", err)
	}
	if !tbl.Empty() || tbl.Module != "" {
		t.Fatalf("table = %+v, want empty", tbl)
	}
	if _, ok := tbl.Lookup([4]byte{1, 2, 3, 4}); ok {
		t.Fatal("empty table routed a selector")
	}
}

func TestEmit_EmptyTableKeepsBothExports(t *testing.T) {
	u := testkit.BoxesUnit()
	prog, err := mono.Monomorphize(u, mono.Options{})
	if err != nil {
		t.Fatal(err)
	}
	mod, err := llvm.EmitModule(context.Background(), prog, layout.New(layout.PolkaVM(), u), llvm.Options{})
	if err != nil {
		t.Fatal(err)
	}
	tbl, err := dispatch.Build(u, prog)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := dispatch.Emit(&buf, tbl, mod); err != nil {
		t.Fatal(err)
	}
	ir := buf.String()
	for _, want := range []string{
		"define void @deploy()",
		"define void @call()",
		"switch i32 %selector, label %unknown [\n  ]\n",
		fmt.Sprintf("call void @move_rt_abort(i64 %d)", abi.AbortUnknownSelector),
		"module asm \".8byte call\"",
		"module asm \".8byte deploy\"",
	} {
		if !strings.Contains(ir, want) {
			t.Fatalf("dispatch IR lacks %q:\n%s", want, ir)
		}
	}
	if strings.Contains(ir, "label %entry0") {
		t.Fatalf("empty table emitted an entry arm:\n%s", ir)
	}
}

func TestBuild_RequiresTranslatedInstance(t *testing.T) {
	u := testkit.VaultUnit()
	prog, err := mono.Monomorphize(testkit.ArithUnit(), mono.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := dispatch.Build(u, prog); !diag.IsKind(err, diag.ErrUnresolvedSymbol) {
		t.Fatalf("err = %v, want unresolved symbol", err)
	}
}

func TestCallData_EncodesLittleEndian(t *testing.T) {
	tbl, err := dispatch.Build(testkit.ArithUnit(), nil)
	if err != nil {
		t.Fatal(err)
	}
	sum, _ := tbl.Entry("sum")
	data, err := sum.CallData([]string{"1", "0x0102"})
	if err != nil {
		t.Fatal(err)
	}
	sel := abi.Selector("arith", "sum")
	want := append(sel[:], 1, 0, 0, 0, 2, 1, 0, 0)
	if !bytes.Equal(data, want) {
		t.Fatalf("call data = %x, want %x", data, want)
	}
	args, err := sum.SplitArgs(data[abi.SelectorSize:])
	if err != nil {
		t.Fatal(err)
	}
	if v := dispatch.FromLittleEndian(args[1]); !v.Eq(uint256.NewInt(0x0102)) {
		t.Fatalf("decoded %s", v.Dec())
	}
	if _, err := sum.SplitArgs(data[abi.SelectorSize : abi.SelectorSize+3]); !errors.Is(err, dispatch.ErrBadCallData) {
		t.Fatalf("short args: err = %v", err)
	}
	if _, err := sum.CallData([]string{"4294967296", "0"}); err == nil {
		t.Fatalf("u32 overflow accepted")
	}
}

func TestEncodeArg(t *testing.T) {
	tests := []struct {
		typ  types.Type
		in   string
		want string
		bad  bool
	}{
		{typ: types.Bool, in: "true", want: "01"},
		{typ: types.Bool, in: "yes", bad: true},
		{typ: types.U8, in: "255", want: "ff"},
		{typ: types.U8, in: "256", bad: true},
		{typ: types.U16, in: "0x1234", want: "3412"},
		{typ: types.U64, in: "-1", bad: true},
		{typ: types.Address, in: "0x1", want: strings.Repeat("00", 31) + "01"},
		{typ: types.Vector(types.U8), in: "0x00", bad: true},
	}
	for _, tt := range tests {
		got, err := dispatch.EncodeArg(tt.typ, tt.in)
		if tt.bad {
			if err == nil {
				t.Errorf("EncodeArg(%s, %q) accepted", tt.typ, tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("EncodeArg(%s, %q): %v", tt.typ, tt.in, err)
			continue
		}
		if fmt.Sprintf("%x", got) != tt.want {
			t.Errorf("EncodeArg(%s, %q) = %x, want %s", tt.typ, tt.in, got, tt.want)
		}
	}
}

func TestEmit_CallSwitch(t *testing.T) {
	u := testkit.VaultUnit()
	prog, err := mono.Monomorphize(u, mono.Options{})
	if err != nil {
		t.Fatal(err)
	}
	mod, err := llvm.EmitModule(context.Background(), prog, layout.New(layout.PolkaVM(), u), llvm.Options{})
	if err != nil {
		t.Fatal(err)
	}
	tbl, err := dispatch.Build(u, prog)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := dispatch.Emit(&buf, tbl, mod); err != nil {
		t.Fatal(err)
	}
	ir := buf.String()
	entry, _ := tbl.Entry("init")
	for _, want := range []string{
		"define void @deploy()",
		"define void @call()",
		"switch i32 %selector, label %unknown [",
		fmt.Sprintf("i32 %d, label %%entry", entry.Value()),
		"call void @move_rt_caller_signer(ptr %signer)",
		"call void @\"0x42::vault::init\"(ptr %signer, i64 %d",
		fmt.Sprintf("call void @move_rt_abort(i64 %d)", abi.AbortUnknownSelector),
		fmt.Sprintf("call void @move_rt_abort(i64 %d)", abi.AbortBadCallData),
		"section \".polkavm_metadata\"",
		"module asm \".pushsection .polkavm_exports,\\22R\\22,@note\"",
		"module asm \".8byte call\"",
		"module asm \".8byte deploy\"",
	} {
		if !strings.Contains(ir, want) {
			t.Fatalf("dispatch IR lacks %q:\n%s", want, ir)
		}
	}
}

func TestEmit_MissingSymbol(t *testing.T) {
	tbl, err := dispatch.Build(testkit.VaultUnit(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := dispatch.Emit(&bytes.Buffer{}, tbl, &llvm.Module{Funcs: map[string]llvm.FuncSymbol{}}); err == nil {
		t.Fatal("emit without translated entries succeeded")
	}
}
