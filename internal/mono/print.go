package mono

import (
	"fmt"
	"io"
	"sort"
)

// Dump writes a text representation of the instantiation map.
func Dump(w io.Writer, m *InstantiationMap) error {
	if w == nil || m == nil || len(m.Entries) == 0 {
		return nil
	}
	entries := make([]*InstEntry, 0, len(m.Entries))
	for _, e := range m.Entries {
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Key < b.Key
	})
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "%s %s  uses=%d\n", e.Kind, e.Key, len(e.UseSites)); err != nil {
			return err
		}
		for _, us := range e.UseSites {
			if _, err := fmt.Fprintf(w, "  - %s pc=%d\n", us.Caller, us.PC); err != nil {
				return err
			}
		}
	}
	return nil
}
