// Package pvmblob reads the PolkaVM program blob produced by polkatool and
// checks the properties the host relies on.
package pvmblob

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"sort"

	"movepvm/internal/abi"
	"movepvm/internal/diag"
)

// Magic opens every program blob.
var Magic = [4]byte{'P', 'V', 'M', 0}

// VersionRV64 is the blob version of 64-bit programs.
const VersionRV64 byte = 1

const (
	SectionEndOfFile    byte = 0
	SectionMemoryConfig byte = 1
	SectionROData       byte = 2
	SectionRWData       byte = 3
	SectionImports      byte = 4
	SectionExports      byte = 5
	SectionCode         byte = 6
	// Sections at or above this id may be skipped by readers.
	SectionOptionalBase byte = 128
)

// headerSize covers magic, version and the u64 blob length.
const headerSize = 4 + 1 + 8

var ErrTruncated = errors.New("truncated blob")

// MemoryConfig is the contents of the memory config section.
type MemoryConfig struct {
	RODataSize uint64
	RWDataSize uint64
	StackSize  uint64
}

// Export is one exported entry point.
type Export struct {
	PC   uint64
	Name string
}

// Blob is a parsed program.
type Blob struct {
	Version  byte
	Memory   MemoryConfig
	ROData   []byte
	RWData   []byte
	Imports  []string
	Exports  []Export
	Code     []byte
	Optional map[byte][]byte
}

// ExportNames returns the export names, sorted.
func (b *Blob) ExportNames() []string {
	names := make([]string, len(b.Exports))
	for i, e := range b.Exports {
		names[i] = e.Name
	}
	sort.Strings(names)
	return names
}

type reader struct {
	p   []byte
	off int
}

func (r *reader) varint() (uint64, error) {
	x, n, ok := ReadVarint(r.p[r.off:])
	if !ok {
		return 0, fmt.Errorf("%w: varint at offset %d", ErrTruncated, r.off)
	}
	r.off += n
	return x, nil
}

func (r *reader) bytes(n uint64) ([]byte, error) {
	if n > uint64(len(r.p)-r.off) {
		return nil, fmt.Errorf("%w: %d bytes at offset %d", ErrTruncated, n, r.off)
	}
	out := r.p[r.off : r.off+int(n)]
	r.off += int(n)
	return out, nil
}

func (r *reader) name() (string, error) {
	n, err := r.varint()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) done() bool { return r.off >= len(r.p) }

// Parse decodes a program blob. Structural errors are returned as plain
// errors; use Validate for the host's requirements.
func Parse(p []byte) (*Blob, error) {
	if len(p) < headerSize {
		return nil, ErrTruncated
	}
	if !bytes.Equal(p[:4], Magic[:]) {
		return nil, fmt.Errorf("bad magic %q", p[:4])
	}
	b := &Blob{Version: p[4], Optional: make(map[byte][]byte)}
	if b.Version != VersionRV64 {
		return nil, fmt.Errorf("unsupported blob version %d", b.Version)
	}
	if n := binary.LittleEndian.Uint64(p[5:headerSize]); n != uint64(len(p)) {
		return nil, fmt.Errorf("blob length field %d, have %d bytes", n, len(p))
	}

	r := &reader{p: p, off: headerSize}
	last := byte(0)
	for {
		if r.done() {
			return nil, fmt.Errorf("%w: missing end-of-file section", ErrTruncated)
		}
		id := r.p[r.off]
		r.off++
		if id == SectionEndOfFile {
			break
		}
		if id <= last {
			return nil, fmt.Errorf("section %d out of order after %d", id, last)
		}
		last = id
		size, err := r.varint()
		if err != nil {
			return nil, err
		}
		body, err := r.bytes(size)
		if err != nil {
			return nil, err
		}
		if err := b.section(id, body); err != nil {
			return nil, fmt.Errorf("section %d: %w", id, err)
		}
	}
	if !r.done() {
		return nil, fmt.Errorf("%d trailing bytes after end of file", len(r.p)-r.off)
	}
	return b, nil
}

func (b *Blob) section(id byte, body []byte) error {
	r := &reader{p: body}
	var err error
	switch id {
	case SectionMemoryConfig:
		if b.Memory.RODataSize, err = r.varint(); err != nil {
			return err
		}
		if b.Memory.RWDataSize, err = r.varint(); err != nil {
			return err
		}
		if b.Memory.StackSize, err = r.varint(); err != nil {
			return err
		}
	case SectionROData:
		b.ROData = body
	case SectionRWData:
		b.RWData = body
	case SectionImports:
		n, err := r.varint()
		if err != nil {
			return err
		}
		for range n {
			name, err := r.name()
			if err != nil {
				return err
			}
			b.Imports = append(b.Imports, name)
		}
	case SectionExports:
		n, err := r.varint()
		if err != nil {
			return err
		}
		for range n {
			pc, err := r.varint()
			if err != nil {
				return err
			}
			name, err := r.name()
			if err != nil {
				return err
			}
			b.Exports = append(b.Exports, Export{PC: pc, Name: name})
		}
	case SectionCode:
		b.Code = body
		return nil
	default:
		if id < SectionOptionalBase {
			return fmt.Errorf("unknown required section")
		}
		b.Optional[id] = body
		return nil
	}
	if id != SectionROData && id != SectionRWData && !r.done() {
		return fmt.Errorf("%d unread bytes", len(body)-r.off)
	}
	return nil
}

// Validate checks what the host needs from a contract blob: exports are
// exactly call and deploy, every import is a known host function, and the
// read-only data fits below the heap.
func Validate(b *Blob) error {
	want := []string{abi.ExportCall, abi.ExportDeploy}
	sort.Strings(want)
	got := b.ExportNames()
	for _, name := range want {
		if !slices.Contains(got, name) {
			return diag.Errorf(diag.ErrToolFailure, diag.LnkMissingExport, "", "", "blob does not export %q", name)
		}
	}
	if !slices.Equal(got, want) {
		return diag.Errorf(diag.ErrToolFailure, diag.LnkUnexpectedExport, "", "", "blob exports %v, want exactly %v", got, want)
	}
	allowed := abi.AllowedImports()
	for _, imp := range b.Imports {
		if _, ok := slices.BinarySearch(allowed, imp); !ok {
			return diag.Errorf(diag.ErrUnresolvedSymbol, diag.LnkUnresolvedSymbol, "", "", "blob imports unknown host function %q", imp)
		}
	}
	if b.Memory.RODataSize > abi.HeapBase-abi.ROBase {
		return diag.Errorf(diag.ErrToolFailure, diag.LnkBadBlob, "", "", "read-only data of %d bytes overlaps the heap", b.Memory.RODataSize)
	}
	if uint64(len(b.ROData)) > b.Memory.RODataSize {
		return diag.Errorf(diag.ErrToolFailure, diag.LnkBadBlob, "", "", "read-only data section larger than its configured size")
	}
	return nil
}

// ParseAndValidate is Parse followed by Validate; parse failures are
// reported as LnkBadBlob tool failures.
func ParseAndValidate(p []byte) (*Blob, error) {
	b, err := Parse(p)
	if err != nil {
		ce := diag.Errorf(diag.ErrToolFailure, diag.LnkBadBlob, "", "", "invalid program blob")
		ce.Err = err
		return nil, ce
	}
	if err := Validate(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Encode writes b in blob form. Sections that are empty are omitted.
func Encode(b *Blob) []byte {
	out := append([]byte(nil), Magic[:]...)
	out = append(out, b.Version)
	out = binary.LittleEndian.AppendUint64(out, 0)

	section := func(id byte, body []byte) {
		out = append(out, id)
		out = AppendVarint(out, uint64(len(body)))
		out = append(out, body...)
	}
	var mem []byte
	mem = AppendVarint(mem, b.Memory.RODataSize)
	mem = AppendVarint(mem, b.Memory.RWDataSize)
	mem = AppendVarint(mem, b.Memory.StackSize)
	section(SectionMemoryConfig, mem)
	if len(b.ROData) > 0 {
		section(SectionROData, b.ROData)
	}
	if len(b.RWData) > 0 {
		section(SectionRWData, b.RWData)
	}
	if len(b.Imports) > 0 {
		body := AppendVarint(nil, uint64(len(b.Imports)))
		for _, name := range b.Imports {
			body = AppendVarint(body, uint64(len(name)))
			body = append(body, name...)
		}
		section(SectionImports, body)
	}
	if len(b.Exports) > 0 {
		body := AppendVarint(nil, uint64(len(b.Exports)))
		for _, e := range b.Exports {
			body = AppendVarint(body, e.PC)
			body = AppendVarint(body, uint64(len(e.Name)))
			body = append(body, e.Name...)
		}
		section(SectionExports, body)
	}
	if len(b.Code) > 0 {
		section(SectionCode, b.Code)
	}
	ids := make([]int, 0, len(b.Optional))
	for id := range b.Optional {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)
	for _, id := range ids {
		section(byte(id), b.Optional[byte(id)])
	}
	out = append(out, SectionEndOfFile)
	binary.LittleEndian.PutUint64(out[5:headerSize], uint64(len(out)))
	return out
}
