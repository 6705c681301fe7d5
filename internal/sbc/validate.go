package sbc

import (
	"movepvm/internal/diag"
	"movepvm/internal/types"
)

// Validate checks the structural well-formedness of a unit. Type-correctness
// and resource safety are the upstream verifier's job and are not re-checked.
func Validate(u *Unit, maxDiagnostics int) error {
	if u == nil {
		return diag.Errorf(diag.ErrMalformedInput, diag.InpDecode, "", "", "missing compilation unit")
	}
	bag := diag.NewBag(maxDiagnostics)
	seenModules := make(map[string]bool, len(u.Modules))
	for _, m := range u.Modules {
		if m == nil {
			continue
		}
		if _, err := NormalizeAddress(m.Address); err != nil {
			bag.Errorf(diag.ErrMalformedInput, diag.InpBadAddress, m.Name, "", "%v", err)
			continue
		}
		id := m.ID()
		if seenModules[id] {
			bag.Errorf(diag.ErrMalformedInput, diag.InpDuplicateModule, id, "", "module declared twice")
			continue
		}
		seenModules[id] = true
		validateModule(u, m, bag)
	}
	bag.Sort()
	return bag.Err()
}

func validateModule(u *Unit, m *Module, bag *diag.Bag) {
	id := m.ID()
	structs := make(map[string]bool, len(m.Structs))
	for _, s := range m.Structs {
		if s == nil {
			continue
		}
		if structs[s.Name] {
			bag.Errorf(diag.ErrMalformedInput, diag.InpDuplicateStruct, id, "", "struct %s declared twice", s.Name)
			continue
		}
		structs[s.Name] = true
		for _, f := range s.Fields {
			validateType(u, f.Type, s.TypeParams, id, "", bag)
		}
	}
	funcs := make(map[string]bool, len(m.Functions))
	for _, f := range m.Functions {
		if f == nil {
			continue
		}
		if funcs[f.Name] {
			bag.Errorf(diag.ErrMalformedInput, diag.InpDuplicateFunction, id, f.Name, "function declared twice")
			continue
		}
		funcs[f.Name] = true
		validateFunc(u, id, f, bag)
	}
}

func validateFunc(u *Unit, module string, f *Function, bag *diag.Bag) {
	// 1. Signature
	for _, t := range f.Params {
		validateType(u, t, f.TypeParams, module, f.Name, bag)
	}
	for _, t := range f.Returns {
		validateType(u, t, f.TypeParams, module, f.Name, bag)
	}
	if f.Entry {
		validateEntrySignature(module, f, bag)
	}
	if f.Native {
		if len(f.Code) > 0 {
			bag.Errorf(diag.ErrMalformedInput, diag.InpBadOperands, module, f.Name, "native function has a body")
		}
		return
	}

	// 2. Locals cover parameters
	if len(f.Locals) < len(f.Params) {
		bag.Errorf(diag.ErrMalformedInput, diag.InpBadTemp, module, f.Name, "%d locals for %d params", len(f.Locals), len(f.Params))
		return
	}
	for i, p := range f.Params {
		if !p.Equal(f.Locals[i]) {
			bag.Errorf(diag.ErrMalformedInput, diag.InpBadTemp, module, f.Name, "param %d is %s but local %d is %s", i, p, i, f.Locals[i])
		}
	}
	for _, t := range f.Locals {
		validateType(u, t, f.TypeParams, module, f.Name, bag)
	}

	// 3. Terminated body
	if len(f.Code) == 0 || !f.Code[len(f.Code)-1].Kind.IsTerminator() {
		bag.Errorf(diag.ErrMalformedInput, diag.InpMissingTerminator, module, f.Name, "code must end with ret, abort, jump or branch")
	}

	// 4. Labels
	labels := make(map[int]bool)
	for _, bc := range f.Code {
		if bc.Kind != BcLabel {
			continue
		}
		if labels[bc.Label] {
			bag.Errorf(diag.ErrMalformedInput, diag.InpDuplicateLabel, module, f.Name, "label L%d defined twice", bc.Label)
		}
		labels[bc.Label] = true
	}

	// 5. Instructions
	for pc := range f.Code {
		validateBytecode(u, module, f, pc, labels, bag)
	}
}

func validateBytecode(u *Unit, module string, f *Function, pc int, labels map[int]bool, bag *diag.Bag) {
	bc := &f.Code[pc]
	for _, idx := range bc.Dst {
		if idx < 0 || idx >= len(f.Locals) {
			bag.Errorf(diag.ErrMalformedInput, diag.InpBadTemp, module, f.Name, "pc %d: dst temp $t%d out of range", pc, idx)
		}
	}
	for _, idx := range bc.Src {
		if idx < 0 || idx >= len(f.Locals) {
			bag.Errorf(diag.ErrMalformedInput, diag.InpBadTemp, module, f.Name, "pc %d: src temp $t%d out of range", pc, idx)
		}
	}
	wantOperands := func(dst, src int) {
		if (dst >= 0 && len(bc.Dst) != dst) || (src >= 0 && len(bc.Src) != src) {
			bag.Errorf(diag.ErrMalformedInput, diag.InpBadOperands, module, f.Name,
				"pc %d: %s expects %d dst / %d src, got %d / %d", pc, bc.Kind, dst, src, len(bc.Dst), len(bc.Src))
		}
	}
	switch bc.Kind {
	case BcAssign:
		wantOperands(1, 1)
	case BcLoad:
		wantOperands(1, 0)
		switch {
		case bc.Const == nil:
			bag.Errorf(diag.ErrMalformedInput, diag.InpBadConstant, module, f.Name, "pc %d: load without constant", pc)
		case bc.Const.Kind == ConstInt && !bc.Const.FitsWidth():
			bag.Errorf(diag.ErrMalformedInput, diag.InpBadConstant, module, f.Name, "pc %d: constant does not fit %s", pc, bc.Const.Type)
		}
	case BcBranch:
		wantOperands(0, 1)
		for _, target := range []int{bc.Then, bc.Else} {
			if !labels[target] {
				bag.Errorf(diag.ErrMalformedInput, diag.InpBadLabel, module, f.Name, "pc %d: branch to undefined label L%d", pc, target)
			}
		}
	case BcJump:
		if !labels[bc.Label] {
			bag.Errorf(diag.ErrMalformedInput, diag.InpBadLabel, module, f.Name, "pc %d: jump to undefined label L%d", pc, bc.Label)
		}
	case BcAbort:
		wantOperands(0, 1)
	case BcCall:
		if bc.Op == nil {
			bag.Errorf(diag.ErrMalformedInput, diag.InpBadOperands, module, f.Name, "pc %d: call without operation", pc)
			return
		}
		dst, src := bc.Op.Kind.Arity()
		wantOperands(dst, src)
		switch bc.Op.Kind {
		case OpPack, OpUnpack, OpBorrowField, OpMoveTo, OpMoveFrom, OpExists, OpBorrowGlobal, OpRelease:
			st := bc.Op.StructType()
			validateType(u, st, f.TypeParams, module, f.Name, bag)
			if bc.Op.Kind == OpBorrowField {
				if fields, ok := u.StructFields(bc.Op.Module, bc.Op.Name); ok && (bc.Op.Field < 0 || bc.Op.Field >= len(fields)) {
					bag.Errorf(diag.ErrMalformedInput, diag.InpBadOperands, module, f.Name, "pc %d: field %d out of range for %s", pc, bc.Op.Field, st)
				}
			}
		}
	}
}

func validateType(u *Unit, t types.Type, typeParams int, module, function string, bag *diag.Bag) {
	switch t.Kind {
	case types.KindInvalid:
		bag.Errorf(diag.ErrMalformedInput, diag.InpBadOperands, module, function, "invalid type")
	case types.KindParam:
		if t.Param < 0 || t.Param >= typeParams {
			bag.Errorf(diag.ErrMalformedInput, diag.InpBadOperands, module, function, "type parameter #%d out of range", t.Param)
		}
	case types.KindVector, types.KindReference:
		if t.Elem == nil {
			bag.Errorf(diag.ErrMalformedInput, diag.InpBadOperands, module, function, "%s without element type", t.Kind)
			return
		}
		validateType(u, *t.Elem, typeParams, module, function, bag)
	case types.KindStruct:
		def, ok := u.LookupStruct(t.Module, t.Name)
		if !ok {
			bag.Errorf(diag.ErrMalformedInput, diag.InpUnknownStruct, module, function, "unknown struct %s::%s", t.Module, t.Name)
			return
		}
		if len(t.Args) != def.TypeParams {
			bag.Errorf(diag.ErrMalformedInput, diag.InpBadOperands, module, function, "%s expects %d type arguments", t, def.TypeParams)
		}
		for _, a := range t.Args {
			validateType(u, a, typeParams, module, function, bag)
		}
	}
}

func validateEntrySignature(module string, f *Function, bag *diag.Bag) {
	if f.TypeParams > 0 {
		bag.Errorf(diag.ErrMalformedInput, diag.InpBadEntrySignature, module, f.Name, "entry function cannot be generic")
	}
	for i, p := range f.Params {
		if i == 0 && p.IsSigner() {
			continue
		}
		if !EntryArgSupported(p) {
			bag.Errorf(diag.ErrMalformedInput, diag.InpBadEntrySignature, module, f.Name, "parameter %d has unsupported entry type %s", i, p)
		}
	}
}

// EntryArgSupported reports types decodable from call data.
func EntryArgSupported(t types.Type) bool {
	switch t.Kind {
	case types.KindBool, types.KindAddress:
		return true
	default:
		return t.IsInteger()
	}
}
