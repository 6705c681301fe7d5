package llvm

import (
	"fmt"
	"strings"

	"movepvm/internal/diag"
	"movepvm/internal/mono"
	"movepvm/internal/natives"
	"movepvm/internal/sbc"
	"movepvm/internal/types"
)

func (fe *funcEmitter) emitFunctionCall(bc *sbc.Bytecode) error {
	op := bc.Op
	args := fe.in.SubstAll(op.TypeArgs)
	module, function := fe.location()
	cm, callee, ok := fe.emitter.prog.Unit.LookupFunction(op.Module, op.Name)
	if !ok {
		return diag.Errorf(diag.ErrUnresolvedSymbol, diag.TrUnknownCallee, module, function, "call to %s::%s", op.Module, op.Name)
	}
	if callee.Native {
		return fe.emitNativeCall(bc, cm, callee, args)
	}
	key := mono.InstanceKey(cm.ID(), callee.Name, args)
	sig, ok := fe.emitter.funcSigs[key]
	if !ok {
		return diag.Errorf(diag.ErrUnresolvedSymbol, diag.TrUnknownCallee, module, function, "no instance %s", key)
	}
	if len(bc.Src) != len(sig.params) {
		return fmt.Errorf("%s takes %d arguments, got %d", key, len(sig.params), len(bc.Src))
	}
	argv := make([]string, len(bc.Src))
	for i, src := range bc.Src {
		v, err := fe.loadLocal(src)
		if err != nil {
			return err
		}
		argv[i] = sig.params[i] + " " + v
	}
	target := "@" + quoteName(key)
	if sig.ret == "void" {
		if len(bc.Dst) != 0 {
			return fmt.Errorf("%s returns nothing, %d results expected", key, len(bc.Dst))
		}
		fmt.Fprintf(&fe.buf, "  call void %s(%s)\n", target, strings.Join(argv, ", "))
		return nil
	}
	res := fe.nextTemp()
	fmt.Fprintf(&fe.buf, "  %s = call %s %s(%s)\n", res, sig.ret, target, strings.Join(argv, ", "))
	switch len(bc.Dst) {
	case 0:
		return nil
	case 1:
		return fe.storeLocal(bc.Dst[0], res)
	}
	for i, dst := range bc.Dst {
		v := fe.nextTemp()
		fmt.Fprintf(&fe.buf, "  %s = extractvalue %s %s, %d\n", v, sig.ret, res, i)
		if err := fe.storeLocal(dst, v); err != nil {
			return err
		}
	}
	return nil
}

// emitNativeCall lowers a call to a native through its runtime binding.
func (fe *funcEmitter) emitNativeCall(bc *sbc.Bytecode, cm *sbc.Module, callee *sbc.Function, typeArgs []types.Type) error {
	b, err := natives.Lookup(cm.ID(), callee.Name)
	if err != nil {
		return err
	}
	if err := natives.CheckSignature(b, callee); err != nil {
		return err
	}
	cs, err := natives.Bind(b, typeArgs, fe.emitter.layouts)
	if err != nil {
		return err
	}
	if len(bc.Src) != len(cs.Args) {
		return fmt.Errorf("native %s takes %d arguments, got %d", b.Key(), len(cs.Args), len(bc.Src))
	}
	decl := b.Decl()
	var argv []string
	if b.ElemLayout {
		argv = append(argv, fmt.Sprintf("i64 %d", cs.Elem.Size), fmt.Sprintf("i64 %d", cs.Elem.Align))
	}
	for i, a := range cs.Args {
		src := bc.Src[i]
		if a.Pass == natives.ByRef {
			argv = append(argv, "ptr "+fe.slot(src))
			continue
		}
		word := natives.WordI64
		if a.Type.Kind == types.KindBool {
			word = natives.WordI1
		} else if a.Type.Kind == types.KindReference {
			word = natives.WordPtr
		}
		v, err := fe.loadLocal(src)
		if err != nil {
			return err
		}
		argv = append(argv, word.LLVM()+" "+fe.fitWord(v, fe.localTypes[src], word))
	}
	if b.Return == natives.RetOut {
		argv = append(argv, "ptr "+fe.slot(bc.Dst[0]))
	}

	ret := decl.Ret.LLVM()
	if decl.Ret == natives.WordVoid {
		fmt.Fprintf(&fe.buf, "  call void @%s(%s)\n", decl.Symbol, strings.Join(argv, ", "))
		return nil
	}
	res := fe.nextTemp()
	fmt.Fprintf(&fe.buf, "  %s = call %s @%s(%s)\n", res, ret, decl.Symbol, strings.Join(argv, ", "))
	if len(bc.Dst) == 0 {
		return nil
	}
	dst := bc.Dst[0]
	switch b.Return {
	case natives.RetBuffer:
		data, n := fe.nextTemp(), fe.nextTemp()
		fmt.Fprintf(&fe.buf, "  %s = extractvalue %s %s, 0\n", data, ret, res)
		fmt.Fprintf(&fe.buf, "  %s = extractvalue %s %s, 1\n", n, ret, res)
		fe.storeVec(fe.slot(dst), data, n, n)
		return nil
	case natives.RetScalar:
		return fe.storeLocal(dst, fe.narrowWord(res, decl.Ret, fe.localTypes[dst]))
	default:
		return fe.storeLocal(dst, res)
	}
}

// fitWord widens an integer local to the i64 word of the runtime ABI.
func (fe *funcEmitter) fitWord(v string, t types.Type, word natives.Word) string {
	if word != natives.WordI64 || !t.IsInteger() || t.Bits() == 64 {
		return v
	}
	out := fe.nextTemp()
	if t.Bits() < 64 {
		fmt.Fprintf(&fe.buf, "  %s = zext %s %s to i64\n", out, intType(t.Bits()), v)
	} else {
		fmt.Fprintf(&fe.buf, "  %s = trunc %s %s to i64\n", out, intType(t.Bits()), v)
	}
	return out
}

// narrowWord converts an i64 result word back to the local's integer type.
func (fe *funcEmitter) narrowWord(v string, word natives.Word, t types.Type) string {
	if word != natives.WordI64 || !t.IsInteger() || t.Bits() == 64 {
		return v
	}
	out := fe.nextTemp()
	if t.Bits() < 64 {
		fmt.Fprintf(&fe.buf, "  %s = trunc i64 %s to %s\n", out, v, intType(t.Bits()))
	} else {
		fmt.Fprintf(&fe.buf, "  %s = zext i64 %s to %s\n", out, v, intType(t.Bits()))
	}
	return out
}
