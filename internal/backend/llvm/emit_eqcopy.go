package llvm

import (
	"fmt"
	"sort"
	"strings"

	"movepvm/internal/natives"
	"movepvm/internal/types"
)

type helperKind uint8

const (
	helperEq helperKind = iota
	helperCopy
)

func (k helperKind) prefix() string {
	if k == helperEq {
		return "eq."
	}
	return "copy."
}

type helperReq struct {
	kind helperKind
	typ  types.Type
}

// requestHelper returns the name of the structural eq/copy function for t,
// generated after all instances.
func (e *Emitter) requestHelper(kind helperKind, t types.Type) string {
	name := quoteName(kind.prefix() + t.Key())
	e.mu.Lock()
	e.helpers[name] = helperReq{kind: kind, typ: t}
	e.mu.Unlock()
	return name
}

func (e *Emitter) emitHelpers() (string, error) {
	var out strings.Builder
	done := make(map[string]bool)
	for {
		e.mu.Lock()
		var pending []string
		for name := range e.helpers {
			if !done[name] {
				pending = append(pending, name)
			}
		}
		e.mu.Unlock()
		if len(pending) == 0 {
			return out.String(), nil
		}
		sort.Strings(pending)
		for _, name := range pending {
			done[name] = true
			e.mu.Lock()
			req := e.helpers[name]
			e.mu.Unlock()
			fe := &funcEmitter{emitter: e}
			var err error
			if req.kind == helperEq {
				err = fe.emitEqHelper(name, req.typ)
			} else {
				err = fe.emitCopyHelper(name, req.typ)
			}
			if err != nil {
				return "", err
			}
			out.WriteString(fe.buf.String())
		}
	}
}

func (fe *funcEmitter) emitEqHelper(name string, t types.Type) error {
	fmt.Fprintf(&fe.buf, "define internal i1 @%s(ptr %%a, ptr %%b) {\nentry:\n", name)
	if t.Kind == types.KindVector {
		if err := fe.emitVecEqLoop(*t.Elem); err != nil {
			return err
		}
		fe.buf.WriteString("}\n\n")
		return nil
	}
	fields, err := fe.emitter.layouts.FieldTypes(t)
	if err != nil {
		return err
	}
	acc := "true"
	for i, ft := range fields {
		pa, err := fe.fieldPtr(t, "%a", i)
		if err != nil {
			return err
		}
		pb, err := fe.fieldPtr(t, "%b", i)
		if err != nil {
			return err
		}
		r, err := fe.emitEqPtr(ft, pa, pb)
		if err != nil {
			return err
		}
		next := fe.nextTemp()
		fmt.Fprintf(&fe.buf, "  %s = and i1 %s, %s\n", next, acc, r)
		acc = next
	}
	fmt.Fprintf(&fe.buf, "  ret i1 %s\n}\n\n", acc)
	return nil
}

func (fe *funcEmitter) emitVecEqLoop(elem types.Type) error {
	la := fe.loadVecField("%a", vecLenField)
	lb := fe.loadVecField("%b", vecLenField)
	same := fe.emitCmp("eq", "i64", la, lb)
	fmt.Fprintf(&fe.buf, "  br i1 %s, label %%loop.head, label %%ne\n", same)

	i, next := fe.nextTemp(), fe.nextTemp()
	fe.buf.WriteString("loop.head:\n")
	fmt.Fprintf(&fe.buf, "  %s = phi i64 [ 0, %%entry ], [ %s, %%loop.latch ]\n", i, next)
	done := fe.emitCmp("eq", "i64", i, la)
	fmt.Fprintf(&fe.buf, "  br i1 %s, label %%eq, label %%loop.body\n", done)

	fe.buf.WriteString("loop.body:\n")
	da := fe.loadVecField("%a", vecDataField)
	db := fe.loadVecField("%b", vecDataField)
	ea, err := fe.elemPtr(elem, da, i)
	if err != nil {
		return err
	}
	eb, err := fe.elemPtr(elem, db, i)
	if err != nil {
		return err
	}
	r, err := fe.emitEqPtr(elem, ea, eb)
	if err != nil {
		return err
	}
	fmt.Fprintf(&fe.buf, "  br i1 %s, label %%loop.latch, label %%ne\n", r)

	fe.buf.WriteString("loop.latch:\n")
	fmt.Fprintf(&fe.buf, "  %s = add i64 %s, 1\n", next, i)
	fe.buf.WriteString("  br label %loop.head\n")
	fe.buf.WriteString("eq:\n  ret i1 true\nne:\n  ret i1 false\n")
	return nil
}

func (fe *funcEmitter) emitCopyHelper(name string, t types.Type) error {
	fmt.Fprintf(&fe.buf, "define internal void @%s(ptr %%dst, ptr %%src) {\nentry:\n", name)
	if t.Kind == types.KindVector {
		if err := fe.emitVecCopyLoop(*t.Elem); err != nil {
			return err
		}
		fe.buf.WriteString("}\n\n")
		return nil
	}
	fields, err := fe.emitter.layouts.FieldTypes(t)
	if err != nil {
		return err
	}
	for i, ft := range fields {
		pd, err := fe.fieldPtr(t, "%dst", i)
		if err != nil {
			return err
		}
		ps, err := fe.fieldPtr(t, "%src", i)
		if err != nil {
			return err
		}
		if err := fe.emitCopy(pd, ps, ft); err != nil {
			return err
		}
	}
	fe.buf.WriteString("  ret void\n}\n\n")
	return nil
}

// emitVecCopyLoop copies the element bytes, then re-copies every element
// that owns buffers of its own.
func (fe *funcEmitter) emitVecCopyLoop(elem types.Type) error {
	l, err := fe.emitter.layouts.LayoutOf(elem)
	if err != nil {
		return err
	}
	fmt.Fprintf(&fe.buf, "  call void @%s(ptr %%dst, ptr %%src, i64 %d, i64 %d)\n", natives.SymVecCopy, l.Size, l.Align)
	n := fe.loadVecField("%src", vecLenField)
	ds := fe.loadVecField("%src", vecDataField)
	dd := fe.loadVecField("%dst", vecDataField)
	fe.buf.WriteString("  br label %loop.head\n")

	i, next := fe.nextTemp(), fe.nextTemp()
	fe.buf.WriteString("loop.head:\n")
	fmt.Fprintf(&fe.buf, "  %s = phi i64 [ 0, %%entry ], [ %s, %%loop.body ]\n", i, next)
	done := fe.emitCmp("eq", "i64", i, n)
	fmt.Fprintf(&fe.buf, "  br i1 %s, label %%exit, label %%loop.body\n", done)

	fe.buf.WriteString("loop.body:\n")
	es, err := fe.elemPtr(elem, ds, i)
	if err != nil {
		return err
	}
	ed, err := fe.elemPtr(elem, dd, i)
	if err != nil {
		return err
	}
	if err := fe.emitCopy(ed, es, elem); err != nil {
		return err
	}
	fmt.Fprintf(&fe.buf, "  %s = add i64 %s, 1\n", next, i)
	fe.buf.WriteString("  br label %loop.head\n")
	fe.buf.WriteString("exit:\n  ret void\n")
	return nil
}
