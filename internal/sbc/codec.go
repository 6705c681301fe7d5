package sbc

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"movepvm/internal/diag"
)

// SchemaVersion is bumped whenever the wire format of Unit changes.
const SchemaVersion uint16 = 1

type envelope struct {
	Schema uint16 `msgpack:"schema"`
	Unit   *Unit  `msgpack:"unit"`
}

// Load decodes a msgpack-encoded compilation unit.
func Load(r io.Reader) (*Unit, error) {
	var env envelope
	dec := msgpack.NewDecoder(bufio.NewReader(r))
	if err := dec.Decode(&env); err != nil {
		return nil, &diag.CompileError{Kind: diag.ErrMalformedInput, Code: diag.InpDecode, Detail: "decode unit", Err: err}
	}
	if env.Schema != SchemaVersion {
		return nil, diag.Errorf(diag.ErrMalformedInput, diag.InpSchemaVersion, "", "", "schema %d, expected %d", env.Schema, SchemaVersion)
	}
	if env.Unit == nil {
		return nil, diag.Errorf(diag.ErrMalformedInput, diag.InpDecode, "", "", "envelope without unit")
	}
	return env.Unit, nil
}

// LoadFile reads a unit from path.
func LoadFile(path string) (*Unit, error) {
	// #nosec G304 -- path comes from the build configuration
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open unit: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			_ = closeErr
		}
	}()
	u, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return u, nil
}

// Save encodes u with the current schema version.
func Save(w io.Writer, u *Unit) error {
	enc := msgpack.NewEncoder(w)
	enc.SetOmitEmpty(true)
	return enc.Encode(&envelope{Schema: SchemaVersion, Unit: u})
}

// SaveFile writes u to path atomically.
func SaveFile(path string, u *Unit) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "unit-*")
	if err != nil {
		return err
	}
	tmpName := f.Name()
	defer func() {
		if _, statErr := os.Stat(tmpName); statErr == nil {
			_ = os.Remove(tmpName)
		}
	}()
	bw := bufio.NewWriter(f)
	if err := Save(bw, u); err != nil {
		_ = f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// Атомарная замена
	return os.Rename(tmpName, path)
}
