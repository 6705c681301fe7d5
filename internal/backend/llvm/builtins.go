package llvm

import (
	"fmt"

	"movepvm/internal/natives"
)

type builtinDecl struct {
	name   string
	ret    string
	params []string
	attrs  string
}

func declFromNative(d natives.Decl) builtinDecl {
	params := make([]string, len(d.Params))
	for i, w := range d.Params {
		params[i] = w.LLVM()
	}
	out := builtinDecl{name: d.Symbol, ret: d.Ret.LLVM(), params: params}
	if d.NoReturn {
		out.attrs = " noreturn"
	}
	return out
}

// overflowIntrinsic is llvm.{u}{op}.with.overflow.iN.
func overflowIntrinsic(op string, bits int) builtinDecl {
	ty := intType(bits)
	return builtinDecl{
		name:   fmt.Sprintf("llvm.%s.with.overflow.%s", op, ty),
		ret:    fmt.Sprintf("{ %s, i1 }", ty),
		params: []string{ty, ty},
	}
}

func memcpyIntrinsic() builtinDecl {
	return builtinDecl{
		name:   "llvm.memcpy.p0.p0.i64",
		ret:    "void",
		params: []string{"ptr", "ptr", "i64", "i1"},
	}
}
