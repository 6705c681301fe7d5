package vm

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"movepvm/internal/abi"
	"movepvm/internal/dispatch"
	"movepvm/internal/types"
)

// Table returns the selector table of the unit, built on first use.
func (vm *VM) Table() (*dispatch.Table, error) {
	if vm.table != nil {
		return vm.table, nil
	}
	t, err := dispatch.Build(vm.unit, nil)
	if err != nil {
		return nil, err
	}
	vm.table = t
	return t, nil
}

// Dispatch runs the call export on callData as sent by origin: selector
// lookup, argument decoding and the entry call. Protocol failures abort
// like the compiled dispatcher does.
func (vm *VM) Dispatch(ctx context.Context, callData []byte, origin [abi.OriginSize]byte) error {
	t, err := vm.Table()
	if err != nil {
		return err
	}
	exportAbort := func(code uint64) error {
		vm.log.Debug("dispatch abort", zap.Uint64("code", code))
		return &Abort{Code: code, Module: t.Module, Function: abi.ExportCall}
	}
	if len(callData) < abi.SelectorSize {
		return exportAbort(abi.AbortBadCallData)
	}
	var sel [abi.SelectorSize]byte
	copy(sel[:], callData)
	e, ok := t.Lookup(sel)
	if !ok {
		return exportAbort(abi.AbortUnknownSelector)
	}
	raw, err := e.SplitArgs(callData[abi.SelectorSize:])
	if errors.Is(err, dispatch.ErrBadCallData) {
		return exportAbort(abi.AbortBadCallData)
	} else if err != nil {
		return err
	}

	args := make([]*Value, 0, len(e.Params))
	if e.Signer {
		signer := Signer(abi.AccountID(origin))
		if e.Params[0].Kind == types.KindReference {
			args = append(args, RefTo(signer, false))
		} else {
			args = append(args, signer)
		}
	}
	for i, pt := range e.Args() {
		args = append(args, decodeArg(pt, raw[i]))
	}
	vm.log.Debug("dispatch", zap.String("entry", e.Key), zap.String("selector", abi.SelectorHex(sel)))
	_, err = vm.Call(ctx, e.Module, e.Name, nil, args...)
	return err
}

func decodeArg(t types.Type, b []byte) *Value {
	switch t.Kind {
	case types.KindBool:
		return Bool(b[0] != 0)
	case types.KindAddress:
		var a [32]byte
		copy(a[:], b)
		return Address(a)
	default:
		return BigInt(t, dispatch.FromLittleEndian(b))
	}
}
