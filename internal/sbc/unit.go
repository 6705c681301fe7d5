// Package sbc models a compilation unit of Move stackless bytecode: modules,
// struct definitions and function bodies as produced by the upstream
// front-end and verifier.
package sbc

import (
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"movepvm/internal/types"
)

// Ability is a Move struct ability bit set.
type Ability uint8

const (
	AbilityCopy Ability = 1 << iota
	AbilityDrop
	AbilityStore
	AbilityKey
)

func (a Ability) Has(flag Ability) bool { return a&flag != 0 }

// Unit is everything that gets linked into one output blob.
type Unit struct {
	Modules []*Module `msgpack:"modules"`

	once    sync.Once
	modules map[string]*Module
}

type Module struct {
	Address   string       `msgpack:"address"`
	Name      string       `msgpack:"name"`
	Structs   []*StructDef `msgpack:"structs"`
	Functions []*Function  `msgpack:"functions"`
}

type Field struct {
	Name string     `msgpack:"name"`
	Type types.Type `msgpack:"type"`
}

type StructDef struct {
	Name       string  `msgpack:"name"`
	TypeParams int     `msgpack:"type_params"`
	Abilities  Ability `msgpack:"abilities"`
	Fields     []Field `msgpack:"fields"`
}

// Function is a Function Descriptor. Locals holds every temporary; the first
// len(Params) of them are the parameters.
type Function struct {
	Name       string       `msgpack:"name"`
	Entry      bool         `msgpack:"entry"`
	Native     bool         `msgpack:"native"`
	TypeParams int          `msgpack:"type_params"`
	Params     []types.Type `msgpack:"params"`
	Returns    []types.Type `msgpack:"returns"`
	Locals     []types.Type `msgpack:"locals"`
	Code       []Bytecode   `msgpack:"code"`
}

// ID returns the canonical module identity, e.g. "0x1::coin".
func (m *Module) ID() string {
	addr, err := NormalizeAddress(m.Address)
	if err != nil {
		addr = m.Address
	}
	return addr + "::" + m.Name
}

func (m *Module) Struct(name string) *StructDef {
	for _, s := range m.Structs {
		if s != nil && s.Name == name {
			return s
		}
	}
	return nil
}

func (m *Module) Function(name string) *Function {
	for _, f := range m.Functions {
		if f != nil && f.Name == name {
			return f
		}
	}
	return nil
}

// HasEntry reports whether the module declares at least one entry function.
func (m *Module) HasEntry() bool {
	for _, f := range m.Functions {
		if f != nil && f.Entry {
			return true
		}
	}
	return false
}

// SplitModuleID splits "0x1::coin" into its address and name.
func SplitModuleID(id string) (address, name string, ok bool) {
	idx := strings.LastIndex(id, "::")
	if idx <= 0 || idx+2 >= len(id) {
		return "", "", false
	}
	return id[:idx], id[idx+2:], true
}

func (u *Unit) index() {
	u.once.Do(func() {
		u.modules = make(map[string]*Module, len(u.Modules))
		for _, m := range u.Modules {
			if m == nil {
				continue
			}
			if _, dup := u.modules[m.ID()]; dup {
				continue
			}
			u.modules[m.ID()] = m
		}
	})
}

// Module looks a module up by its canonical ID.
func (u *Unit) Module(id string) *Module {
	if u == nil {
		return nil
	}
	u.index()
	if m, ok := u.modules[id]; ok {
		return m
	}
	if addr, name, ok := SplitModuleID(id); ok {
		if norm, err := NormalizeAddress(addr); err == nil {
			return u.modules[norm+"::"+name]
		}
	}
	return nil
}

func (u *Unit) LookupStruct(module, name string) (*StructDef, bool) {
	m := u.Module(module)
	if m == nil {
		return nil, false
	}
	s := m.Struct(name)
	return s, s != nil
}

func (u *Unit) LookupFunction(module, name string) (*Module, *Function, bool) {
	m := u.Module(module)
	if m == nil {
		return nil, nil, false
	}
	f := m.Function(name)
	return m, f, f != nil
}

// StructFields returns the declared (possibly generic) field types.
func (u *Unit) StructFields(module, name string) ([]types.Type, bool) {
	s, ok := u.LookupStruct(module, name)
	if !ok {
		return nil, false
	}
	out := make([]types.Type, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Type
	}
	return out, true
}

// FieldTypes returns the field types of a struct instantiation.
func (u *Unit) FieldTypes(t types.Type) ([]types.Type, error) {
	if t.Kind != types.KindStruct {
		return nil, fmt.Errorf("%s is not a struct", t)
	}
	fields, ok := u.StructFields(t.Module, t.Name)
	if !ok {
		return nil, fmt.Errorf("unknown struct %s::%s", t.Module, t.Name)
	}
	return types.SubstAll(fields, t.Args), nil
}

// EntryModules returns the IDs of modules declaring entry functions, in unit order.
func (u *Unit) EntryModules() []string {
	var out []string
	for _, m := range u.Modules {
		if m != nil && m.HasEntry() {
			out = append(out, m.ID())
		}
	}
	return out
}

// NormalizeAddress canonicalizes a hex account address: lowercase, 0x
// prefix, no leading zeros ("0x0001" -> "0x1").
func NormalizeAddress(s string) (string, error) {
	raw := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}
	if len(raw) > 64 {
		return "", fmt.Errorf("address %q longer than 32 bytes", s)
	}
	for _, r := range raw {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return "", fmt.Errorf("address %q is not hex", s)
		}
	}
	raw = strings.TrimLeft(strings.ToLower(raw), "0")
	if raw == "" {
		raw = "0"
	}
	return "0x" + raw, nil
}

// ParseAddress decodes a hex address into its 32-byte big-endian form.
func ParseAddress(s string) ([32]byte, error) {
	var out [32]byte
	norm, err := NormalizeAddress(s)
	if err != nil {
		return out, err
	}
	digits := norm[2:]
	if len(digits)%2 == 1 {
		digits = "0" + digits
	}
	raw, err := hex.DecodeString(digits)
	if err != nil {
		return out, fmt.Errorf("address %q: %w", s, err)
	}
	copy(out[32-len(raw):], raw)
	return out, nil
}
