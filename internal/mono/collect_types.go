package mono

import (
	"movepvm/internal/diag"
	"movepvm/internal/types"
)

// collectType records every ground struct reachable from t, fields included.
func (b *monoBuilder) collectType(t types.Type) error {
	switch t.Kind {
	case types.KindVector, types.KindReference:
		if t.Elem != nil {
			return b.collectType(*t.Elem)
		}
	case types.KindStruct:
		key := t.Key()
		if _, seen := b.structs[key]; seen {
			return nil
		}
		b.structs[key] = t
		for _, a := range t.Args {
			if err := b.collectType(a); err != nil {
				return err
			}
		}
		fields, err := b.unit.FieldTypes(t)
		if err != nil {
			return &diag.CompileError{Kind: diag.ErrMalformedInput, Code: diag.InpUnknownStruct, Module: t.Module, Detail: t.Name, Err: err}
		}
		for _, f := range fields {
			if !f.IsGround() {
				return diag.Errorf(diag.ErrUnresolvedGeneric, diag.TrUnresolvedGeneric, t.Module, "", "field type %s of %s", f, key)
			}
			if err := b.collectType(f); err != nil {
				return err
			}
		}
	case types.KindParam:
		return diag.Errorf(diag.ErrUnresolvedGeneric, diag.TrUnresolvedGeneric, "", "", "type parameter %s left after substitution", t)
	}
	return nil
}
