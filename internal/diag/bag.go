package diag

import (
	"errors"
	"fmt"
	"sort"
)

// Diagnostic is a single finding about the compilation unit.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Kind     ErrorKind
	Message  string
	Module   string
	Function string
}

func (d Diagnostic) String() string {
	loc := d.Module
	if d.Function != "" {
		loc += "::" + d.Function
	}
	if loc == "" {
		return fmt.Sprintf("%s %s %s", d.Severity, d.Code.ID(), d.Message)
	}
	return fmt.Sprintf("%s %s %s: %s", d.Severity, d.Code.ID(), loc, d.Message)
}

type Bag struct {
	items []Diagnostic
	max   int
}

func NewBag(max int) *Bag {
	if max <= 0 {
		max = 100
	}
	return &Bag{
		items: make([]Diagnostic, 0, min(max, 16)),
		max:   max,
	}
}

// Add appends a diagnostic unless the limit is reached.
func (b *Bag) Add(d Diagnostic) bool {
	if len(b.items) >= b.max {
		return false
	}
	b.items = append(b.items, d)
	return true
}

// Errorf adds an error-level diagnostic.
func (b *Bag) Errorf(kind ErrorKind, code Code, module, function, format string, args ...any) {
	b.Add(Diagnostic{
		Severity: SevError,
		Code:     code,
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Module:   module,
		Function: function,
	})
}

// HasErrors возвращает true, если есть хотя бы одна блокирующая диагностика
func (b *Bag) HasErrors() bool {
	for i := range b.items {
		if b.items[i].Severity.Blocking() {
			return true
		}
	}
	return false
}

func (b *Bag) Len() int {
	return len(b.items)
}

// Items возвращает read-only slice диагностик.
func (b *Bag) Items() []Diagnostic {
	return b.items
}

// Sort orders by module, function, severity (desc), code.
func (b *Bag) Sort() {
	sort.SliceStable(b.items, func(i, j int) bool {
		di, dj := b.items[i], b.items[j]
		if di.Module != dj.Module {
			return di.Module < dj.Module
		}
		if di.Function != dj.Function {
			return di.Function < dj.Function
		}
		if di.Severity != dj.Severity {
			return di.Severity > dj.Severity
		}
		return di.Code < dj.Code
	})
}

// Err folds error-level diagnostics into one error, nil when there are none.
func (b *Bag) Err() error {
	var errs []error
	for _, d := range b.items {
		if !d.Severity.Blocking() {
			continue
		}
		kind := d.Kind
		if kind == 0 {
			kind = ErrMalformedInput
		}
		errs = append(errs, &CompileError{
			Kind:     kind,
			Code:     d.Code,
			Module:   d.Module,
			Function: d.Function,
			Detail:   d.Message,
		})
	}
	return errors.Join(errs...)
}
