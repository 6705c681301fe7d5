package sbc_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"movepvm/internal/diag"
	"movepvm/internal/sbc"
	"movepvm/internal/testkit"
	"movepvm/internal/types"
)

func TestCodec_RoundTripKeepsBodies(t *testing.T) {
	in := testkit.VaultUnit()
	path := filepath.Join(t.TempDir(), "vault.sbc")
	if err := sbc.SaveFile(path, in); err != nil {
		t.Fatalf("save: %v", err)
	}
	out, err := sbc.LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := sbc.Validate(out, 0); err != nil {
		t.Fatalf("decoded unit invalid: %v", err)
	}
	_, f, ok := out.LookupFunction(testkit.VaultModule, "bump")
	if !ok {
		t.Fatal("bump missing after round trip")
	}
	_, want, _ := in.LookupFunction(testkit.VaultModule, "bump")
	if len(f.Code) != len(want.Code) {
		t.Fatalf("code length %d, want %d", len(f.Code), len(want.Code))
	}
	for pc := range f.Code {
		if f.Code[pc].Kind != want.Code[pc].Kind {
			t.Fatalf("pc %d: kind %s, want %s", pc, f.Code[pc].Kind, want.Code[pc].Kind)
		}
	}
	c := f.Code[3].Const
	if c == nil || c.Int == nil || c.Int.Uint64() != 1 || !c.Type.Equal(types.U64) {
		t.Fatalf("constant lost in round trip: %+v", c)
	}
	if s, ok := out.LookupStruct(testkit.VaultModule, "R"); !ok || !s.Abilities.Has(sbc.AbilityKey) {
		t.Fatalf("struct R lost its key ability: %+v", s)
	}
}

func TestCodec_RejectsOtherSchema(t *testing.T) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.Encode(map[string]any{"schema": 99, "unit": map[string]any{}}); err != nil {
		t.Fatal(err)
	}
	_, err := sbc.Load(&buf)
	if !diag.IsKind(err, diag.ErrMalformedInput) {
		t.Fatalf("expected malformed input, got %v", err)
	}
}

func TestCodec_RejectsGarbage(t *testing.T) {
	if _, err := sbc.Load(bytes.NewReader([]byte{0xc1, 0x00, 0x13})); !diag.IsKind(err, diag.ErrMalformedInput) {
		t.Fatalf("expected malformed input, got %v", err)
	}
}
