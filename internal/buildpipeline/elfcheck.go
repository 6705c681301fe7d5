package buildpipeline

import (
	"debug/elf"
	"fmt"
	"sort"
	"strings"

	"movepvm/internal/abi"
	"movepvm/internal/diag"
	"movepvm/internal/natives"
)

const exportsSection = ".polkavm_exports"

// CheckObject inspects the combined relocatable object before polkatool sees
// it. Undefined symbols are reported as link errors, separately from contract
// compile errors.
func CheckObject(path string) error {
	f, err := elf.Open(path)
	if err != nil {
		return &diag.CompileError{Kind: diag.ErrToolFailure, Code: diag.LnkBadBlob, Detail: "read combined object", Err: err}
	}
	defer func() { _ = f.Close() }()
	syms, err := f.Symbols()
	if err != nil {
		return &diag.CompileError{Kind: diag.ErrToolFailure, Code: diag.LnkBadBlob, Detail: "read symbol table", Err: err}
	}
	sections := make([]string, 0, len(f.Sections))
	for _, s := range f.Sections {
		sections = append(sections, s.Name)
	}
	return checkSymbols(syms, sections)
}

func checkSymbols(syms []elf.Symbol, sections []string) error {
	var undefined []string
	defined := make(map[string]bool)
	for _, s := range syms {
		if s.Name == "" {
			continue
		}
		bind := elf.ST_BIND(s.Info)
		if bind != elf.STB_GLOBAL && bind != elf.STB_WEAK {
			continue
		}
		if s.Section == elf.SHN_UNDEF {
			if bind == elf.STB_GLOBAL {
				undefined = append(undefined, s.Name)
			}
			continue
		}
		defined[s.Name] = true
	}
	if len(undefined) > 0 {
		sort.Strings(undefined)
		var runtime []string
		for _, name := range undefined {
			if natives.IsRuntimeSymbol(name) {
				runtime = append(runtime, name)
			}
		}
		detail := "undefined symbols: " + strings.Join(undefined, ", ")
		if len(runtime) > 0 {
			detail += fmt.Sprintf(" (%d expected from the native runtime)", len(runtime))
		}
		return &diag.CompileError{Kind: diag.ErrUnresolvedSymbol, Code: diag.LnkUnresolvedSymbol, Detail: detail}
	}
	for _, name := range []string{abi.ExportCall, abi.ExportDeploy} {
		if !defined[name] {
			return diag.Errorf(diag.ErrToolFailure, diag.LnkMissingExport, "", "", "export %q is not defined", name)
		}
	}
	for _, s := range sections {
		if s == exportsSection {
			return nil
		}
	}
	return diag.Errorf(diag.ErrToolFailure, diag.LnkMissingExport, "", "", "object has no %s section", exportsSection)
}

// definedSymbols lists the global symbols an object defines, sorted.
func definedSymbols(path string) ([]string, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	syms, err := f.Symbols()
	if err != nil {
		return nil, fmt.Errorf("read %s symbols: %w", path, err)
	}
	var out []string
	for _, s := range syms {
		if s.Name != "" && s.Section != elf.SHN_UNDEF && elf.ST_BIND(s.Info) == elf.STB_GLOBAL {
			out = append(out, s.Name)
		}
	}
	sort.Strings(out)
	return out, nil
}
