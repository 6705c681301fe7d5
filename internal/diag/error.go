package diag

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies compile-time failures.
type ErrorKind uint8

const (
	ErrMalformedInput ErrorKind = iota + 1
	ErrUnresolvedGeneric
	ErrUnsupportedNative
	ErrMultipleEntryModules
	ErrUnresolvedSymbol
	ErrToolFailure
)

func (k ErrorKind) String() string {
	switch k {
	case ErrMalformedInput:
		return "malformed input"
	case ErrUnresolvedGeneric:
		return "unresolved generic"
	case ErrUnsupportedNative:
		return "unsupported native"
	case ErrMultipleEntryModules:
		return "multiple entry modules"
	case ErrUnresolvedSymbol:
		return "unresolved symbol"
	case ErrToolFailure:
		return "tool failure"
	default:
		return fmt.Sprintf("ErrorKind(%d)", k)
	}
}

// CompileError is a fatal compilation failure with enough context to act on.
type CompileError struct {
	Kind     ErrorKind
	Code     Code
	Module   string
	Function string
	Detail   string
	Err      error
}

func (e *CompileError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if loc := e.Location(); loc != "" {
		b.WriteString(" in ")
		b.WriteString(loc)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Location renders "module::function", whichever parts are known.
func (e *CompileError) Location() string {
	switch {
	case e.Module != "" && e.Function != "":
		return e.Module + "::" + e.Function
	case e.Module != "":
		return e.Module
	default:
		return e.Function
	}
}

func (e *CompileError) Unwrap() error { return e.Err }

// Is matches another *CompileError by kind, so errors.Is(err, &CompileError{Kind: k}) works.
func (e *CompileError) Is(target error) bool {
	t, ok := target.(*CompileError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Code == 0 || t.Code == e.Code)
}

// Errorf builds a CompileError with a formatted detail.
func Errorf(kind ErrorKind, code Code, module, function, format string, args ...any) *CompileError {
	return &CompileError{
		Kind:     kind,
		Code:     code,
		Module:   module,
		Function: function,
		Detail:   fmt.Sprintf(format, args...),
	}
}

// KindOf extracts the kind of the first CompileError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}

// IsKind reports whether err carries a CompileError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return errors.Is(err, &CompileError{Kind: kind})
}

// IsLinkError reports failures that point at the runtime/native set rather
// than at contract code.
func IsLinkError(err error) bool {
	return IsKind(err, ErrUnresolvedSymbol) || IsKind(err, ErrToolFailure)
}
