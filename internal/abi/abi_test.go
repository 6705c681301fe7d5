package abi

import (
	"encoding/hex"
	"testing"

	"golang.org/x/crypto/sha3"
)

func TestSelectorIsKeccakPrefix(t *testing.T) {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write([]byte("basic::transfer"))
	want := hex.EncodeToString(h.Sum(nil)[:4])
	sel := Selector("basic", "transfer")
	if got := SelectorHex(sel); got != want {
		t.Fatalf("SelectorHex = %s, want %s", got, want)
	}
	if Selector("basic", "transfer") != sel {
		t.Fatalf("selector is not deterministic")
	}
}

func TestSelectorValueLittleEndian(t *testing.T) {
	sel := [4]byte{0x78, 0x56, 0x34, 0x12}
	if got := SelectorValue(sel); got != 0x12345678 {
		t.Fatalf("SelectorValue = %#x", got)
	}
}

func TestReservedCodesAreDistinct(t *testing.T) {
	codes := []uint64{
		AbortArithmeticOverflow, AbortDivisionByZero, AbortResourceExists,
		AbortResourceMissing, AbortBorrowConflict, AbortUnknownSelector,
		AbortBadCallData, AbortIndexOutOfBounds, AbortVectorNotEmpty,
		AbortPanic, AbortAlloc,
	}
	seen := make(map[uint64]bool, len(codes))
	for _, c := range codes {
		if seen[c] {
			t.Fatalf("abort code %d reserved twice", c)
		}
		seen[c] = true
		if ReservedAbortName(c) == "" {
			t.Fatalf("abort code %d has no name", c)
		}
	}
	if ReservedAbortName(42) != "" {
		t.Fatalf("user code reported as reserved")
	}
}

func TestAccountIDPadsOrigin(t *testing.T) {
	var origin [OriginSize]byte
	for i := range origin {
		origin[i] = byte(i + 1)
	}
	id := AccountID(origin)
	if id[0] != 1 || id[OriginSize-1] != OriginSize {
		t.Fatalf("origin bytes not kept: %x", id)
	}
	for i := OriginSize; i < SignerSize; i++ {
		if id[i] != 0xee {
			t.Fatalf("byte %d = %#x, want 0xee", i, id[i])
		}
	}
}
