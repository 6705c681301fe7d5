// Package abi holds the conventions shared by the compiler, the guest runtime
// and the host: abort codes, host import names, export names, selectors and
// the PolkaVM memory map.
package abi

import (
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// Reserved abort codes. Everything else passed to the terminate primitive is
// a user-declared Move abort code.
const (
	// AbortArithmeticOverflow matches the Move VM ARITHMETIC_ERROR status.
	AbortArithmeticOverflow uint64 = 4017
	AbortDivisionByZero     uint64 = 4018
	AbortResourceExists     uint64 = 4004
	AbortResourceMissing    uint64 = 4008
	AbortBorrowConflict     uint64 = 4009
	AbortUnknownSelector    uint64 = 2
	AbortBadCallData        uint64 = 3
	// AbortIndexOutOfBounds is std::vector's EINDEX_OUT_OF_BOUNDS.
	AbortIndexOutOfBounds uint64 = 0x20000
	// AbortVectorNotEmpty is std::vector's destroy_empty failure.
	AbortVectorNotEmpty uint64 = 0x20001
	AbortPanic          uint64 = 0xca11
	AbortAlloc          uint64 = 0xdead
)

// ReservedAbortName returns a label for reserved codes, "" for user codes.
func ReservedAbortName(code uint64) string {
	switch code {
	case AbortArithmeticOverflow:
		return "arithmetic overflow"
	case AbortDivisionByZero:
		return "division by zero"
	case AbortResourceExists:
		return "resource already exists"
	case AbortResourceMissing:
		return "resource missing"
	case AbortBorrowConflict:
		return "borrow conflict"
	case AbortUnknownSelector:
		return "unknown selector"
	case AbortBadCallData:
		return "bad call data"
	case AbortIndexOutOfBounds:
		return "index out of bounds"
	case AbortVectorNotEmpty:
		return "vector not empty"
	case AbortPanic:
		return "native runtime panic"
	case AbortAlloc:
		return "allocation failure"
	default:
		return ""
	}
}

// Export names required by the host.
const (
	ExportDeploy = "deploy"
	ExportCall   = "call"
)

// Host imports the guest may use. Anything else is rejected by the host.
const (
	ImportTerminate     = "terminate"
	ImportDebugPrint    = "debug_print"
	ImportHexDump       = "hex_dump"
	ImportMoveTo        = "move_to"
	ImportMoveFrom      = "move_from"
	ImportExists        = "exists"
	ImportRelease       = "release"
	ImportCallDataCopy  = "call_data_copy"
	ImportCallDataSize  = "call_data_size"
	ImportOrigin        = "origin"
	ImportToAccountID   = "to_account_id"
	ImportHashSha2_256  = "hash_sha2_256"
	ImportHashSha3_256  = "hash_sha3_256"
	ImportHashKeccak256 = "hash_keccak_256"
	ImportHashSha2_512  = "hash_sha2_512"
	ImportHashSha3_512  = "hash_sha3_512"
	ImportHashBlake2b   = "hash_blake2b_256"
	ImportHashRipemd160 = "hash_ripemd_160"
)

// AllowedImports lists every host import, sorted.
func AllowedImports() []string {
	return []string{
		ImportCallDataCopy,
		ImportCallDataSize,
		ImportDebugPrint,
		ImportExists,
		ImportHashBlake2b,
		ImportHashKeccak256,
		ImportHashRipemd160,
		ImportHashSha2_256,
		ImportHashSha2_512,
		ImportHashSha3_256,
		ImportHashSha3_512,
		ImportHexDump,
		ImportMoveFrom,
		ImportMoveTo,
		ImportOrigin,
		ImportRelease,
		ImportTerminate,
		ImportToAccountID,
	}
}

// Sizes of identities crossing the ABI.
const (
	AddressSize  = 32
	SignerSize   = 32
	OriginSize   = 20
	SelectorSize = 4
	TagSize      = 32
)

// PolkaVM memory map expected by the host.
const (
	PageSize     = 0x1000
	ROBase       = 0x10000
	HeapBase     = 0x30500
	AuxDataSize  = 4 * 1024
	AuxDataTop   = 0xffff0000
	StackSize    = 64 * 1024
	MetadataVer1 = 1
)

// Selector returns the first four bytes of keccak256("<module>::<function>").
func Selector(module, function string) [SelectorSize]byte {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write([]byte(module + "::" + function))
	sum := h.Sum(nil)
	var out [SelectorSize]byte
	copy(out[:], sum[:SelectorSize])
	return out
}

// SelectorValue is the selector as the guest reads it: a little-endian u32
// load from the start of the call data.
func SelectorValue(sel [SelectorSize]byte) uint32 {
	return binary.LittleEndian.Uint32(sel[:])
}

// SelectorHex renders the selector as call-data hex.
func SelectorHex(sel [SelectorSize]byte) string {
	return hex.EncodeToString(sel[:])
}

// AccountID maps a 20-byte origin to the 32-byte account the way the host's
// to_account_id does for accounts without an explicit mapping: the origin
// bytes followed by twelve 0xee bytes.
func AccountID(origin [OriginSize]byte) [SignerSize]byte {
	var out [SignerSize]byte
	copy(out[:], origin[:])
	for i := OriginSize; i < SignerSize; i++ {
		out[i] = 0xee
	}
	return out
}
