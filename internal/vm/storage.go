package vm

import (
	"fmt"

	"go.uber.org/zap"

	"movepvm/internal/sbc"
	"movepvm/internal/storage"
	"movepvm/internal/types"
)

// storageOp runs MoveTo/MoveFrom/Exists/BorrowGlobal/Release against the
// store with the same operand order the translator uses: MoveTo takes
// (value, signer), Release takes (owner, reference).
func (vm *VM) storageOp(fr *frame, bc *sbc.Bytecode) error {
	op := bc.Op
	t := op.StructType().Subst(fr.typeArgs)
	tag, err := vm.layouts.StructTag(t)
	if err != nil {
		return fmt.Errorf("%s: %w", fr.name(), err)
	}

	switch op.Kind {
	case sbc.OpMoveTo:
		owner, err := ownerOf(fr.src(bc, 1))
		if err != nil {
			return fmt.Errorf("%s: %w", fr.name(), err)
		}
		data, err := Encode(vm.layouts, fr.src(bc, 0).Deref())
		if err != nil {
			return fmt.Errorf("%s: %w", fr.name(), err)
		}
		if err := vm.store.MoveTo(owner, tag, data); err != nil {
			return vm.fault(fr, err)
		}
	case sbc.OpMoveFrom:
		owner, err := ownerOf(fr.src(bc, 0))
		if err != nil {
			return fmt.Errorf("%s: %w", fr.name(), err)
		}
		data, err := vm.store.MoveFrom(owner, tag)
		if err != nil {
			return vm.fault(fr, err)
		}
		v, err := Decode(vm.layouts, t, data)
		if err != nil {
			return fmt.Errorf("%s: %w", fr.name(), err)
		}
		fr.store(bc, 0, v)
	case sbc.OpExists:
		owner, err := ownerOf(fr.src(bc, 0))
		if err != nil {
			return fmt.Errorf("%s: %w", fr.name(), err)
		}
		fr.store(bc, 0, Bool(vm.store.Exists(owner, tag)))
	case sbc.OpBorrowGlobal:
		owner, err := ownerOf(fr.src(bc, 0))
		if err != nil {
			return fmt.Errorf("%s: %w", fr.name(), err)
		}
		data, err := vm.store.Borrow(owner, tag, op.Mutable)
		if err != nil {
			return vm.fault(fr, err)
		}
		v, err := Decode(vm.layouts, t, data)
		if err != nil {
			return fmt.Errorf("%s: %w", fr.name(), err)
		}
		fr.store(bc, 0, RefTo(v, op.Mutable))
	case sbc.OpRelease:
		owner, err := ownerOf(fr.src(bc, 0))
		if err != nil {
			return fmt.Errorf("%s: %w", fr.name(), err)
		}
		ref := fr.src(bc, 1)
		var data []byte
		if ref.Type.Mutable && ref.Ref != nil {
			if data, err = Encode(vm.layouts, ref.Ref); err != nil {
				return fmt.Errorf("%s: %w", fr.name(), err)
			}
		}
		vm.store.Release(owner, tag, data)
	default:
		return fmt.Errorf("%s: %s is not a storage operation", fr.name(), op.Kind)
	}
	vm.log.Debug("storage", zap.String("op", op.Kind.String()), zap.String("type", t.Key()))
	return nil
}

// ownerOf reads the owner key from an address or signer, by value or by
// reference.
func ownerOf(v *Value) (storage.Owner, error) {
	d := v.Deref()
	if d == nil || (d.Type.Kind != types.KindAddress && d.Type.Kind != types.KindSigner) {
		return storage.Owner{}, fmt.Errorf("storage owner must be an address or signer")
	}
	return storage.Owner(d.Addr), nil
}
