package mono

import (
	"movepvm/internal/types"
)

// InstantiationKind identifies the kind of entity being instantiated.
type InstantiationKind uint8

const (
	// InstFn represents a function instantiation.
	InstFn InstantiationKind = iota
	// InstType represents a struct instantiation.
	InstType
	// InstNative represents a native function instantiation.
	InstNative
)

func (k InstantiationKind) String() string {
	switch k {
	case InstType:
		return "type"
	case InstNative:
		return "native"
	default:
		return "fn"
	}
}

// UseSite records a location where an instantiation occurs.
type UseSite struct {
	Caller string // instance key of the calling function
	PC     int
}

// InstEntry captures one instantiation and where it was requested.
type InstEntry struct {
	Kind     InstantiationKind
	Key      string
	Module   string
	Name     string
	TypeArgs []types.Type
	UseSites []UseSite
}

// InstantiationMap tracks all instantiations discovered in a unit.
type InstantiationMap struct {
	Entries map[string]*InstEntry
}

// NewInstantiationMap creates a new empty InstantiationMap.
func NewInstantiationMap() *InstantiationMap {
	return &InstantiationMap{Entries: make(map[string]*InstEntry)}
}

// InstanceKey is "<module>::<name><type args>", the symbol of an instance.
func InstanceKey(module, name string, typeArgs []types.Type) string {
	return module + "::" + name + types.ArgsKey(typeArgs)
}

// Record registers an instantiation at a specific site. It reports whether
// the entry is new.
func (m *InstantiationMap) Record(kind InstantiationKind, module, name string, typeArgs []types.Type, site *UseSite) (*InstEntry, bool) {
	if m.Entries == nil {
		m.Entries = make(map[string]*InstEntry)
	}
	key := InstanceKey(module, name, typeArgs)
	entry, ok := m.Entries[key]
	if !ok {
		var args []types.Type
		if len(typeArgs) > 0 {
			args = append(args, typeArgs...)
		}
		entry = &InstEntry{
			Kind:     kind,
			Key:      key,
			Module:   module,
			Name:     name,
			TypeArgs: args,
		}
		m.Entries[key] = entry
	}
	if site != nil {
		for _, existing := range entry.UseSites {
			if existing == *site {
				return entry, !ok
			}
		}
		entry.UseSites = append(entry.UseSites, *site)
	}
	return entry, !ok
}
