package pvmblob_test

import (
	"errors"
	"testing"

	"movepvm/internal/abi"
	"movepvm/internal/diag"
	"movepvm/internal/pvmblob"
)

func contract() *pvmblob.Blob {
	return &pvmblob.Blob{
		Version: pvmblob.VersionRV64,
		Memory:  pvmblob.MemoryConfig{RODataSize: 0x1000, RWDataSize: 0x100, StackSize: abi.StackSize},
		ROData:  []byte("tag.0x42::vault::R"),
		Imports: []string{abi.ImportCallDataCopy, abi.ImportTerminate},
		Exports: []pvmblob.Export{{PC: 0, Name: abi.ExportDeploy}, {PC: 12, Name: abi.ExportCall}},
		Code:    []byte{0, 1, 2, 3},
	}
}

func TestVarint(t *testing.T) {
	for _, x := range []uint64{0, 1, 127, 128, 300, 1 << 14, 1<<21 - 1, 1 << 40, 1<<56 - 1, 1 << 56, ^uint64(0)} {
		enc := pvmblob.AppendVarint(nil, x)
		got, n, ok := pvmblob.ReadVarint(enc)
		if !ok || n != len(enc) || got != x {
			t.Fatalf("varint %d: encoded %x, decoded %d (n=%d ok=%v)", x, enc, got, n, ok)
		}
	}
	if enc := pvmblob.AppendVarint(nil, 127); len(enc) != 1 {
		t.Fatalf("127 must fit one byte, got %x", enc)
	}
	if enc := pvmblob.AppendVarint(nil, 128); len(enc) != 2 || enc[0] != 0x80 || enc[1] != 0x80 {
		t.Fatalf("128 = %x, want 8080", enc)
	}
	if _, _, ok := pvmblob.ReadVarint([]byte{0xc0, 1}); ok {
		t.Fatal("short varint accepted")
	}
}

func TestParse_RoundTrip(t *testing.T) {
	raw := pvmblob.Encode(contract())
	b, err := pvmblob.ParseAndValidate(raw)
	if err != nil {
		t.Fatal(err)
	}
	if b.Memory.StackSize != abi.StackSize || string(b.ROData) != "tag.0x42::vault::R" {
		t.Fatalf("blob = %+v", b)
	}
	if len(b.Exports) != 2 || b.Exports[1].PC != 12 || b.Exports[1].Name != abi.ExportCall {
		t.Fatalf("exports = %+v", b.Exports)
	}
}

func TestParse_Malformed(t *testing.T) {
	good := pvmblob.Encode(contract())

	badMagic := append([]byte(nil), good...)
	badMagic[0] = 'X'
	if _, err := pvmblob.Parse(badMagic); err == nil {
		t.Fatal("bad magic accepted")
	}

	badVersion := append([]byte(nil), good...)
	badVersion[4] = 0
	if _, err := pvmblob.Parse(badVersion); err == nil {
		t.Fatal("32-bit blob accepted")
	}

	if _, err := pvmblob.Parse(good[:len(good)-1]); err == nil {
		t.Fatal("length mismatch accepted")
	}
	if _, err := pvmblob.Parse(good[:8]); !errors.Is(err, pvmblob.ErrTruncated) {
		t.Fatalf("short header: %v", err)
	}

	_, err := pvmblob.ParseAndValidate(badMagic)
	if !diag.IsKind(err, diag.ErrToolFailure) {
		t.Fatalf("parse failure must be a tool failure, got %v", err)
	}
}

func TestValidate_Exports(t *testing.T) {
	missing := contract()
	missing.Exports = missing.Exports[:1]
	err := pvmblob.Validate(missing)
	if !diag.IsLinkError(err) || !errors.Is(err, &diag.CompileError{Kind: diag.ErrToolFailure, Code: diag.LnkMissingExport}) {
		t.Fatalf("missing call export: %v", err)
	}

	extra := contract()
	extra.Exports = append(extra.Exports, pvmblob.Export{PC: 40, Name: "main"})
	err = pvmblob.Validate(extra)
	if !errors.Is(err, &diag.CompileError{Kind: diag.ErrToolFailure, Code: diag.LnkUnexpectedExport}) {
		t.Fatalf("extra export: %v", err)
	}
}

func TestValidate_Imports(t *testing.T) {
	b := contract()
	b.Imports = append(b.Imports, "seal_call")
	if err := pvmblob.Validate(b); !diag.IsKind(err, diag.ErrUnresolvedSymbol) {
		t.Fatalf("unknown import: %v", err)
	}
}

func TestValidate_ROData(t *testing.T) {
	b := contract()
	b.Memory.RODataSize = abi.HeapBase
	if err := pvmblob.Validate(b); err == nil {
		t.Fatal("read-only data overlapping the heap accepted")
	}
}
