// Package dispatch builds the selector table of a compilation unit and
// synthesizes the deploy/call exports that route call data to entry
// functions.
package dispatch

import (
	"sort"

	"go.uber.org/zap"

	"movepvm/internal/abi"
	"movepvm/internal/diag"
	"movepvm/internal/logging"
	"movepvm/internal/mono"
	"movepvm/internal/sbc"
	"movepvm/internal/types"
)

// Entry is one routable entry function.
type Entry struct {
	Module   string // canonical module id
	Name     string
	Key      string // instance key of the translated function
	Selector [abi.SelectorSize]byte
	Params   []types.Type
	// Signer is set when the first parameter receives the caller.
	Signer bool
}

// Value is the selector as the guest switch compares it.
func (e *Entry) Value() uint32 { return abi.SelectorValue(e.Selector) }

// Args returns the parameters decoded from call data.
func (e *Entry) Args() []types.Type {
	if e.Signer {
		return e.Params[1:]
	}
	return e.Params
}

// ArgsSize is the number of call-data bytes after the selector.
func (e *Entry) ArgsSize() int {
	n := 0
	for _, t := range e.Args() {
		n += ArgSize(t)
	}
	return n
}

// Table is the immutable selector table of a unit.
type Table struct {
	Module  string   // empty for a library-only unit
	Entries []*Entry // sorted by selector value, then name
}

// Empty reports a table without routable entries. Its call export only
// aborts with the unknown-selector code.
func (t *Table) Empty() bool { return len(t.Entries) == 0 }

// Build collects the entry functions of u. At most one module may declare
// them; a unit without any yields an empty table. When prog is non-nil
// every entry must have a translated instance.
func Build(u *sbc.Unit, prog *mono.Program) (*Table, error) {
	log := logging.Named("dispatch")
	mods := u.EntryModules()
	switch {
	case len(mods) == 0:
		log.Debug("no entry functions, call export rejects every selector")
		return &Table{}, nil
	case len(mods) > 1:
		return nil, diag.Errorf(diag.ErrMultipleEntryModules, diag.TrMultipleEntryMods, mods[0], "",
			"entry functions in %s and %s", mods[0], mods[1])
	}
	m := u.Module(mods[0])
	t := &Table{Module: m.ID()}

	seen := make(map[uint32]*Entry)
	for _, fn := range m.Functions {
		if fn == nil || !fn.Entry {
			continue
		}
		if fn.TypeParams > 0 {
			return nil, diag.Errorf(diag.ErrMalformedInput, diag.InpBadEntrySignature, m.ID(), fn.Name, "entry function cannot be generic")
		}
		e := &Entry{
			Module:   m.ID(),
			Name:     fn.Name,
			Key:      mono.InstanceKey(m.ID(), fn.Name, nil),
			Selector: abi.Selector(m.Name, fn.Name),
			Params:   fn.Params,
			Signer:   len(fn.Params) > 0 && fn.Params[0].IsSigner(),
		}
		for _, p := range e.Args() {
			if !sbc.EntryArgSupported(p) {
				return nil, diag.Errorf(diag.ErrMalformedInput, diag.InpBadEntrySignature, m.ID(), fn.Name, "parameter type %s cannot be decoded from call data", p)
			}
		}
		if prog != nil {
			if _, ok := prog.Instance(e.Key); !ok {
				return nil, diag.Errorf(diag.ErrUnresolvedSymbol, diag.TrUnknownCallee, m.ID(), fn.Name, "entry function was not translated")
			}
		}
		if prev, dup := seen[e.Value()]; dup {
			return nil, diag.Errorf(diag.ErrMalformedInput, diag.TrSelectorCollision, m.ID(), fn.Name,
				"selector %s collides with %s", abi.SelectorHex(e.Selector), prev.Name)
		}
		seen[e.Value()] = e
		t.Entries = append(t.Entries, e)
		log.Debug("entry", zap.String("fn", e.Key), zap.String("selector", abi.SelectorHex(e.Selector)))
	}
	sort.Slice(t.Entries, func(i, j int) bool {
		a, b := t.Entries[i], t.Entries[j]
		if a.Value() != b.Value() {
			return a.Value() < b.Value()
		}
		return a.Name < b.Name
	})
	return t, nil
}

// Lookup finds the entry routed by sel.
func (t *Table) Lookup(sel [abi.SelectorSize]byte) (*Entry, bool) {
	v := abi.SelectorValue(sel)
	i := sort.Search(len(t.Entries), func(i int) bool { return t.Entries[i].Value() >= v })
	if i < len(t.Entries) && t.Entries[i].Value() == v {
		return t.Entries[i], true
	}
	return nil, false
}

// Entry finds an entry by function name.
func (t *Table) Entry(name string) (*Entry, bool) {
	for _, e := range t.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return nil, false
}
