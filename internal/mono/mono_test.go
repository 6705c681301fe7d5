package mono_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"movepvm/internal/diag"
	"movepvm/internal/mono"
	"movepvm/internal/sbc"
	"movepvm/internal/testkit"
	"movepvm/internal/types"
)

func keys(p *mono.Program) []string {
	out := make([]string, len(p.Instances))
	for i, in := range p.Instances {
		out[i] = in.Key
	}
	return out
}

func TestMonomorphize_GenericInstances(t *testing.T) {
	p, err := mono.Monomorphize(testkit.BoxesUnit(), mono.Options{})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"0x42::boxes::demo",
		"0x42::boxes::same",
		"0x42::boxes::unwrap<u64>",
		"0x42::boxes::vec_demo",
		"0x42::boxes::wrap<bool>",
		"0x42::boxes::wrap<u64>",
	}
	got := keys(p)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("instances = %v, want %v", got, want)
	}
	in, ok := p.Instance("0x42::boxes::wrap<bool>")
	if !ok {
		t.Fatal("wrap<bool> missing")
	}
	if !in.Returns[0].Equal(testkit.BoxType(types.Bool)) {
		t.Fatalf("wrap<bool> returns %s", in.Returns[0])
	}

	var structs []string
	for _, s := range p.Structs {
		structs = append(structs, s.Key())
	}
	wantStructs := "0x42::boxes::Box<bool>,0x42::boxes::Box<u64>,0x42::boxes::Box<vector<u64>>"
	if strings.Join(structs, ",") != wantStructs {
		t.Fatalf("structs = %v", structs)
	}

	var natives []string
	for _, n := range p.Natives {
		natives = append(natives, n.Key)
	}
	wantNatives := "0x1::vector::empty<u64>,0x1::vector::length<u64>,0x1::vector::push_back<u64>"
	if strings.Join(natives, ",") != wantNatives {
		t.Fatalf("natives = %v", natives)
	}
}

func TestMonomorphize_Deterministic(t *testing.T) {
	a, err := mono.Monomorphize(testkit.VaultUnit(), mono.Options{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := mono.Monomorphize(testkit.VaultUnit(), mono.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(keys(a), ",") != strings.Join(keys(b), ",") {
		t.Fatalf("instance order differs: %v vs %v", keys(a), keys(b))
	}
	var bufA, bufB bytes.Buffer
	if err := mono.Dump(&bufA, a.Map); err != nil {
		t.Fatal(err)
	}
	if err := mono.Dump(&bufB, b.Map); err != nil {
		t.Fatal(err)
	}
	if bufA.String() != bufB.String() {
		t.Fatal("dump differs between runs")
	}
	if !strings.Contains(bufA.String(), "type 0x42::vault::R") {
		t.Fatalf("dump lacks the resource type:\n%s", bufA.String())
	}
}

func TestMonomorphize_UnknownCallee(t *testing.T) {
	u := &sbc.Unit{Modules: []*sbc.Module{{
		Address: "0x7",
		Name:    "m",
		Functions: []*sbc.Function{{
			Name: "f",
			Code: []sbc.Bytecode{
				sbc.Call(sbc.FnOp("0x7::gone", "g"), nil),
				sbc.Ret(),
			},
		}},
	}}}
	_, err := mono.Monomorphize(u, mono.Options{})
	if !diag.IsKind(err, diag.ErrUnresolvedSymbol) {
		t.Fatalf("expected unresolved symbol, got %v", err)
	}
}

func TestMonomorphize_PolymorphicRecursionIsBounded(t *testing.T) {
	t0 := types.Param(0)
	u := &sbc.Unit{Modules: []*sbc.Module{{
		Address: "0x7",
		Name:    "rec",
		Functions: []*sbc.Function{
			{
				Name:       "grow",
				TypeParams: 1,
				Code: []sbc.Bytecode{
					sbc.Call(sbc.FnOp("0x7::rec", "grow", types.Vector(t0)), nil),
					sbc.Ret(),
				},
			},
			{
				Name: "start",
				Code: []sbc.Bytecode{
					sbc.Call(sbc.FnOp("0x7::rec", "grow", types.U8), nil),
					sbc.Ret(),
				},
			},
		},
	}}}
	_, err := mono.Monomorphize(u, mono.Options{MaxDepth: 8})
	if err == nil {
		t.Fatal("expected depth error")
	}
	var ce *diag.CompileError
	if !errors.As(err, &ce) || ce.Code != diag.TrRecursionLimit {
		t.Fatalf("expected recursion limit, got %v", err)
	}
}

func TestMonomorphize_GenericEntryIsUnresolved(t *testing.T) {
	u := &sbc.Unit{Modules: []*sbc.Module{{
		Address: "0x7",
		Name:    "m",
		Functions: []*sbc.Function{{
			Name:       "f",
			Entry:      true,
			TypeParams: 1,
			Code:       []sbc.Bytecode{sbc.Ret()},
		}},
	}}}
	_, err := mono.Monomorphize(u, mono.Options{})
	if !diag.IsKind(err, diag.ErrUnresolvedGeneric) {
		t.Fatalf("expected unresolved generic, got %v", err)
	}
}
