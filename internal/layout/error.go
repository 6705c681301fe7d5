package layout

import (
	"fmt"
	"strings"

	"movepvm/internal/diag"
)

// LayoutErrorKind enumerates types of layout calculation errors.
type LayoutErrorKind uint8

const (
	// LayoutErrRecursive indicates a struct that contains itself by value.
	LayoutErrRecursive LayoutErrorKind = iota + 1
	LayoutErrUnresolvedGeneric
	LayoutErrUnknownStruct
	LayoutErrNotStruct
	LayoutErrSize
)

// LayoutError represents an error during memory layout calculation.
type LayoutError struct {
	Kind  LayoutErrorKind
	Type  string   // canonical key
	Cycle []string // for LayoutErrRecursive
	Err   error
}

func (e *LayoutError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case LayoutErrRecursive:
		if len(e.Cycle) == 0 {
			return fmt.Sprintf("recursive struct has infinite size (%s)", e.Type)
		}
		return fmt.Sprintf("recursive struct has infinite size (cycle: %s)", strings.Join(e.Cycle, " -> "))
	case LayoutErrUnresolvedGeneric:
		return fmt.Sprintf("type parameter left in %s", e.Type)
	case LayoutErrUnknownStruct:
		if e.Err != nil {
			return fmt.Sprintf("no definition for %s: %v", e.Type, e.Err)
		}
		return fmt.Sprintf("no definition for %s", e.Type)
	case LayoutErrNotStruct:
		return fmt.Sprintf("%s is not a struct", e.Type)
	case LayoutErrSize:
		return fmt.Sprintf("size of %s out of range: %v", e.Type, e.Err)
	default:
		return fmt.Sprintf("layout error kind=%d %s", e.Kind, e.Type)
	}
}

// Unwrap exposes the compile error class, so diag.IsKind works on layout errors.
func (e *LayoutError) Unwrap() error {
	if e == nil {
		return nil
	}
	switch e.Kind {
	case LayoutErrUnresolvedGeneric:
		return &diag.CompileError{Kind: diag.ErrUnresolvedGeneric, Code: diag.TrUnresolvedGeneric, Detail: e.Type}
	case LayoutErrRecursive:
		return &diag.CompileError{Kind: diag.ErrMalformedInput, Code: diag.TrRecursiveStruct, Detail: e.Type}
	default:
		return &diag.CompileError{Kind: diag.ErrMalformedInput, Code: diag.InpUnknownStruct, Detail: e.Type, Err: e.Err}
	}
}
