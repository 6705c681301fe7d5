package llvm

import (
	"fmt"

	"movepvm/internal/sbc"
	"movepvm/internal/storage"
	"movepvm/internal/types"
)

// emitStorage lowers global storage operations to the storage bridge. Every
// call passes the owner's 32 bytes, the resource tag and the layout size.
func (fe *funcEmitter) emitStorage(bc *sbc.Bytecode) error {
	st := fe.structOf(bc.Op)
	sym, ok := storage.SymbolFor(bc.Op.Kind)
	if !ok {
		return fmt.Errorf("%s is not a storage operation", bc.Op.Kind)
	}
	size, err := fe.emitter.layouts.SizeOf64(st)
	if err != nil {
		return err
	}
	tag := fe.emitter.tagGlobal(st)

	switch bc.Op.Kind {
	case sbc.OpMoveTo:
		owner, err := fe.ownerPtr(bc.Src[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(&fe.buf, "  call void @%s(ptr %s, ptr %s, ptr %s, i64 %d)\n", sym, owner, tag, fe.slot(bc.Src[0]), size)
	case sbc.OpMoveFrom:
		owner, err := fe.ownerPtr(bc.Src[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(&fe.buf, "  call void @%s(ptr %s, ptr %s, ptr %s, i64 %d)\n", sym, owner, tag, fe.slot(bc.Dst[0]), size)
	case sbc.OpExists:
		owner, err := fe.ownerPtr(bc.Src[0])
		if err != nil {
			return err
		}
		res := fe.nextTemp()
		fmt.Fprintf(&fe.buf, "  %s = call i1 @%s(ptr %s, ptr %s)\n", res, sym, owner, tag)
		return fe.storeLocal(bc.Dst[0], res)
	case sbc.OpBorrowGlobal:
		owner, err := fe.ownerPtr(bc.Src[0])
		if err != nil {
			return err
		}
		mut := 0
		if bc.Op.Mutable {
			mut = 1
		}
		res := fe.nextTemp()
		fmt.Fprintf(&fe.buf, "  %s = call ptr @%s(ptr %s, ptr %s, i64 %d, i32 %d)\n", res, sym, owner, tag, size, mut)
		return fe.storeLocal(bc.Dst[0], res)
	case sbc.OpRelease:
		owner, err := fe.ownerPtr(bc.Src[0])
		if err != nil {
			return err
		}
		ref, err := fe.loadLocal(bc.Src[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(&fe.buf, "  call void @%s(ptr %s, ptr %s, ptr %s, i64 %d)\n", sym, owner, tag, ref, size)
	}
	return nil
}

// ownerPtr points at the 32 address bytes held (or referenced) by local i.
func (fe *funcEmitter) ownerPtr(i int) (string, error) {
	p, t, err := fe.refTarget(i)
	if err != nil {
		return "", err
	}
	if t.Kind != types.KindAddress && t.Kind != types.KindSigner {
		return "", fmt.Errorf("storage owner has type %s", fe.localTypes[i])
	}
	return p, nil
}
