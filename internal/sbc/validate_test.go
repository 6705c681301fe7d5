package sbc_test

import (
	"strings"
	"testing"

	"movepvm/internal/diag"
	"movepvm/internal/sbc"
	"movepvm/internal/testkit"
	"movepvm/internal/types"
)

func TestValidate_Fixtures(t *testing.T) {
	for name, u := range map[string]*sbc.Unit{
		"arith": testkit.ArithUnit(),
		"vault": testkit.VaultUnit(),
		"boxes": testkit.BoxesUnit(),
	} {
		if err := sbc.Validate(u, 0); err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
	}
}

func singleFunc(f *sbc.Function) *sbc.Unit {
	return &sbc.Unit{Modules: []*sbc.Module{{Address: "0x7", Name: "m", Functions: []*sbc.Function{f}}}}
}

func TestValidate_Problems(t *testing.T) {
	cases := []struct {
		name string
		unit *sbc.Unit
		code diag.Code
	}{
		{
			name: "temp out of range",
			unit: singleFunc(&sbc.Function{Name: "f", Locals: []types.Type{types.U8}, Code: []sbc.Bytecode{sbc.Ret(3)}}),
			code: diag.InpBadTemp,
		},
		{
			name: "unknown label",
			unit: singleFunc(&sbc.Function{Name: "f", Code: []sbc.Bytecode{sbc.Jump(9)}}),
			code: diag.InpBadLabel,
		},
		{
			name: "duplicate label",
			unit: singleFunc(&sbc.Function{Name: "f", Code: []sbc.Bytecode{sbc.Label(1), sbc.Label(1), sbc.Ret()}}),
			code: diag.InpDuplicateLabel,
		},
		{
			name: "missing terminator",
			unit: singleFunc(&sbc.Function{Name: "f", Locals: []types.Type{types.U8}, Code: []sbc.Bytecode{sbc.LoadConst(0, sbc.IntConst(types.U8, 1))}}),
			code: diag.InpMissingTerminator,
		},
		{
			name: "constant too wide",
			unit: singleFunc(&sbc.Function{Name: "f", Locals: []types.Type{types.U8}, Code: []sbc.Bytecode{sbc.LoadConst(0, sbc.IntConst(types.U8, 300)), sbc.Ret()}}),
			code: diag.InpBadConstant,
		},
		{
			name: "entry with vector param",
			unit: singleFunc(&sbc.Function{Name: "f", Entry: true, Params: []types.Type{types.Vector(types.U8)}, Locals: []types.Type{types.Vector(types.U8)}, Code: []sbc.Bytecode{sbc.Ret()}}),
			code: diag.InpBadEntrySignature,
		},
		{
			name: "unknown struct in storage op",
			unit: singleFunc(&sbc.Function{Name: "f", Params: []types.Type{types.Address}, Locals: []types.Type{types.Address, types.Bool}, Code: []sbc.Bytecode{
				sbc.Call(sbc.StructOp(sbc.OpExists, "0x7::m", "Missing"), []int{1}, 0),
				sbc.Ret(),
			}}),
			code: diag.InpUnknownStruct,
		},
		{
			name: "wrong arity",
			unit: singleFunc(&sbc.Function{Name: "f", Locals: []types.Type{types.U8, types.U8}, Code: []sbc.Bytecode{
				sbc.Call(sbc.Op(sbc.OpAdd), []int{1}, 0),
				sbc.Ret(),
			}}),
			code: diag.InpBadOperands,
		},
		{
			name: "duplicate module",
			unit: &sbc.Unit{Modules: []*sbc.Module{{Address: "0x07", Name: "m"}, {Address: "0x7", Name: "m"}}},
			code: diag.InpDuplicateModule,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := sbc.Validate(tc.unit, 0)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !diag.IsKind(err, diag.ErrMalformedInput) {
				t.Fatalf("expected malformed input, got %v", err)
			}
			if !hasCode(err, tc.code) {
				t.Fatalf("expected %s in %v", tc.code.ID(), err)
			}
		})
	}
}

func hasCode(err error, code diag.Code) bool {
	return containsCode(err, code)
}

func containsCode(err error, code diag.Code) bool {
	type joined interface{ Unwrap() []error }
	if j, ok := err.(joined); ok {
		for _, e := range j.Unwrap() {
			if containsCode(e, code) {
				return true
			}
		}
		return false
	}
	ce, ok := err.(*diag.CompileError)
	return ok && ce.Code == code
}

func TestValidate_LimitCapsDiagnostics(t *testing.T) {
	f := &sbc.Function{Name: "f", Code: []sbc.Bytecode{sbc.Ret(1), sbc.Ret(2), sbc.Ret(3), sbc.Ret(4)}}
	err := sbc.Validate(singleFunc(f), 2)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := strings.Count(err.Error(), "\n") + 1; got != 2 {
		t.Fatalf("expected 2 joined errors, got %d: %v", got, err)
	}
}

func TestNormalizeAddress(t *testing.T) {
	cases := map[string]string{
		"0x1":      "0x1",
		"0x0001":   "0x1",
		"0XAbC":    "0xabc",
		"0x0":      "0x0",
		"42":       "0x42",
		"0x000000": "0x0",
	}
	for in, want := range cases {
		got, err := sbc.NormalizeAddress(in)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if got != want {
			t.Errorf("%q -> %q, want %q", in, got, want)
		}
	}
	for _, bad := range []string{"", "0x", "0xzz", "0x" + strings.Repeat("1", 65)} {
		if _, err := sbc.NormalizeAddress(bad); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
	addr, err := sbc.ParseAddress("0x102")
	if err != nil {
		t.Fatal(err)
	}
	if addr[30] != 0x01 || addr[31] != 0x02 || addr[0] != 0 {
		t.Fatalf("unexpected address bytes %x", addr)
	}
}
