package llvm

import (
	"fmt"

	"movepvm/internal/natives"
	"movepvm/internal/types"
)

const abortSymbol = natives.SymAbort

func (fe *funcEmitter) nextTemp() string {
	fe.tmpID++
	return fmt.Sprintf("%%t%d", fe.tmpID)
}

func (fe *funcEmitter) nextInlineBlock() string {
	fe.inlineBlock++
	return fmt.Sprintf("bb.inline%d", fe.inlineBlock)
}

// emitTrapIf aborts with code when cond (an i1) is true and continues in a
// fresh block otherwise.
func (fe *funcEmitter) emitTrapIf(cond string, code uint64) {
	bad := fe.nextInlineBlock()
	ok := fe.nextInlineBlock()
	fmt.Fprintf(&fe.buf, "  br i1 %s, label %%%s, label %%%s\n", cond, bad, ok)
	fmt.Fprintf(&fe.buf, "%s:\n", bad)
	fmt.Fprintf(&fe.buf, "  call void @%s(i64 %d)\n", abortSymbol, code)
	fe.buf.WriteString("  unreachable\n")
	fmt.Fprintf(&fe.buf, "%s:\n", ok)
}

// fieldPtr addresses field idx of the struct stored at base.
func (fe *funcEmitter) fieldPtr(structT types.Type, base string, idx int) (string, error) {
	ty, err := fe.emitter.llvmType(structT)
	if err != nil {
		return "", err
	}
	p := fe.nextTemp()
	fmt.Fprintf(&fe.buf, "  %s = getelementptr inbounds %s, ptr %s, i32 0, i32 %d\n", p, ty, base, idx)
	return p, nil
}

// vecFieldPtr addresses the data, len or cap word of a vector descriptor.
func (fe *funcEmitter) vecFieldPtr(vec string, field int) string {
	p := fe.nextTemp()
	fmt.Fprintf(&fe.buf, "  %s = getelementptr inbounds %s, ptr %s, i32 0, i32 %d\n", p, vecType, vec, field)
	return p
}

func (fe *funcEmitter) loadVecField(vec string, field int) string {
	p := fe.vecFieldPtr(vec, field)
	v := fe.nextTemp()
	ty := "i64"
	if field == vecDataField {
		ty = "ptr"
	}
	fmt.Fprintf(&fe.buf, "  %s = load %s, ptr %s\n", v, ty, p)
	return v
}

// storeVec fills a descriptor from its three words.
func (fe *funcEmitter) storeVec(vec, data, length, capacity string) {
	fmt.Fprintf(&fe.buf, "  store ptr %s, ptr %s\n", data, fe.vecFieldPtr(vec, vecDataField))
	fmt.Fprintf(&fe.buf, "  store i64 %s, ptr %s\n", length, fe.vecFieldPtr(vec, vecLenField))
	fmt.Fprintf(&fe.buf, "  store i64 %s, ptr %s\n", capacity, fe.vecFieldPtr(vec, vecCapField))
}

func (fe *funcEmitter) elemPtr(elemT types.Type, data, index string) (string, error) {
	ty, err := fe.emitter.llvmType(elemT)
	if err != nil {
		return "", err
	}
	p := fe.nextTemp()
	fmt.Fprintf(&fe.buf, "  %s = getelementptr inbounds %s, ptr %s, i64 %s\n", p, ty, data, index)
	return p, nil
}

func (fe *funcEmitter) location() (module, function string) {
	if fe.in == nil {
		return "", ""
	}
	return fe.in.ModuleID(), fe.in.Func.Name
}
