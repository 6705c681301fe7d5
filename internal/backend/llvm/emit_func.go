package llvm

import (
	"fmt"
	"strings"

	"movepvm/internal/sbc"
	"movepvm/internal/types"
)

func (fe *funcEmitter) emit() error {
	in := fe.in
	sig := fe.emitter.funcSigs[in.Key]
	params := make([]string, len(sig.params))
	for i, ty := range sig.params {
		params[i] = fmt.Sprintf("%s %%p%d", ty, i)
	}
	fmt.Fprintf(&fe.buf, "define internal %s @%s(%s) {\n", sig.ret, quoteName(in.Key), strings.Join(params, ", "))
	fe.buf.WriteString("entry:\n")

	// 1. Слоты под все временные
	fe.localTypes = in.Locals
	fe.localAlloca = make([]string, len(in.Locals))
	for i, t := range in.Locals {
		ty, err := fe.emitter.llvmType(t)
		if err != nil {
			return wrapInstanceErr(in, err)
		}
		name := fmt.Sprintf("%%l%d", i)
		fe.localAlloca[i] = name
		fmt.Fprintf(&fe.buf, "  %s = alloca %s\n", name, ty)
	}

	// 2. Параметры в слоты
	for i, ty := range sig.params {
		fmt.Fprintf(&fe.buf, "  store %s %%p%d, ptr %s\n", ty, i, fe.localAlloca[i])
	}

	// 3. Тело
	code := in.Func.Code
	for pc := range code {
		if err := fe.emitBytecode(&code[pc]); err != nil {
			return wrapInstanceErr(in, fmt.Errorf("pc %d (%s): %w", pc, code[pc].Kind, err))
		}
	}
	if !fe.terminated {
		fe.buf.WriteString("  unreachable\n")
	}
	fe.buf.WriteString("}\n\n")
	return nil
}

func (fe *funcEmitter) emitBytecode(bc *sbc.Bytecode) error {
	switch bc.Kind {
	case sbc.BcNop:
		return nil
	case sbc.BcLabel:
		name := labelName(bc.Label)
		if !fe.terminated {
			fmt.Fprintf(&fe.buf, "  br label %%%s\n", name)
		}
		fmt.Fprintf(&fe.buf, "%s:\n", name)
		fe.terminated = false
		return nil
	}
	if fe.terminated {
		// Код после терминатора недостижим, но LLVM нужен блок
		fmt.Fprintf(&fe.buf, "%s:\n", fe.nextInlineBlock())
		fe.terminated = false
	}
	switch bc.Kind {
	case sbc.BcAssign:
		return fe.emitAssign(bc)
	case sbc.BcLoad:
		return fe.emitConst(bc.Dst[0], bc.Const)
	case sbc.BcBranch:
		cond, err := fe.loadLocal(bc.Src[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(&fe.buf, "  br i1 %s, label %%%s, label %%%s\n", cond, labelName(bc.Then), labelName(bc.Else))
		fe.terminated = true
		return nil
	case sbc.BcJump:
		fmt.Fprintf(&fe.buf, "  br label %%%s\n", labelName(bc.Label))
		fe.terminated = true
		return nil
	case sbc.BcRet:
		return fe.emitReturn(bc.Src)
	case sbc.BcAbort:
		return fe.emitAbort(bc.Src[0])
	case sbc.BcCall:
		return fe.emitCall(bc)
	default:
		return fmt.Errorf("unsupported bytecode %s", bc.Kind)
	}
}

func labelName(label int) string {
	return fmt.Sprintf("L%d", label)
}

func (fe *funcEmitter) emitAssign(bc *sbc.Bytecode) error {
	dst, src := bc.Dst[0], bc.Src[0]
	if bc.Assign == sbc.AssignCopy {
		return fe.emitCopy(fe.slot(dst), fe.slot(src), fe.localTypes[src])
	}
	val, err := fe.loadLocal(src)
	if err != nil {
		return err
	}
	return fe.storeLocal(dst, val)
}

func (fe *funcEmitter) emitReturn(srcs []int) error {
	sig := fe.emitter.funcSigs[fe.in.Key]
	fe.terminated = true
	switch len(srcs) {
	case 0:
		fe.buf.WriteString("  ret void\n")
		return nil
	case 1:
		val, err := fe.loadLocal(srcs[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(&fe.buf, "  ret %s %s\n", sig.ret, val)
		return nil
	}
	agg := "undef"
	for i, src := range srcs {
		val, err := fe.loadLocal(src)
		if err != nil {
			return err
		}
		ty, err := fe.emitter.llvmType(fe.localTypes[src])
		if err != nil {
			return err
		}
		next := fe.nextTemp()
		fmt.Fprintf(&fe.buf, "  %s = insertvalue %s %s, %s %s, %d\n", next, sig.ret, agg, ty, val, i)
		agg = next
	}
	fmt.Fprintf(&fe.buf, "  ret %s %s\n", sig.ret, agg)
	return nil
}

func (fe *funcEmitter) emitAbort(src int) error {
	t := fe.localTypes[src]
	if t.Kind != types.KindU64 {
		return fmt.Errorf("abort code must be u64, got %s", t)
	}
	code, err := fe.loadLocal(src)
	if err != nil {
		return err
	}
	fe.emitAbortValue(code)
	return nil
}

// emitAbortValue terminates the current block with a runtime abort.
func (fe *funcEmitter) emitAbortValue(code string) {
	fmt.Fprintf(&fe.buf, "  call void @%s(i64 %s)\n", abortSymbol, code)
	fe.buf.WriteString("  unreachable\n")
	fe.terminated = true
}

func (fe *funcEmitter) slot(i int) string {
	return fe.localAlloca[i]
}

func (fe *funcEmitter) loadLocal(i int) (string, error) {
	ty, err := fe.emitter.llvmType(fe.localTypes[i])
	if err != nil {
		return "", err
	}
	tmp := fe.nextTemp()
	fmt.Fprintf(&fe.buf, "  %s = load %s, ptr %s\n", tmp, ty, fe.localAlloca[i])
	return tmp, nil
}

func (fe *funcEmitter) storeLocal(i int, val string) error {
	ty, err := fe.emitter.llvmType(fe.localTypes[i])
	if err != nil {
		return err
	}
	fmt.Fprintf(&fe.buf, "  store %s %s, ptr %s\n", ty, val, fe.localAlloca[i])
	return nil
}

// refTarget returns a pointer to the value behind local i: the pointer it
// holds when i is a reference, its own slot otherwise.
func (fe *funcEmitter) refTarget(i int) (string, types.Type, error) {
	t := fe.localTypes[i]
	if t.Kind != types.KindReference {
		return fe.slot(i), t, nil
	}
	p, err := fe.loadLocal(i)
	if err != nil {
		return "", types.Type{}, err
	}
	return p, t.Deref(), nil
}
