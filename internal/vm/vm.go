package vm

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"movepvm/internal/abi"
	"movepvm/internal/diag"
	"movepvm/internal/dispatch"
	"movepvm/internal/layout"
	"movepvm/internal/logging"
	"movepvm/internal/sbc"
	"movepvm/internal/storage"
	"movepvm/internal/types"
)

// Options configures execution limits and output.
type Options struct {
	MaxDepth int       // call depth, 0 means DefaultMaxDepth
	MaxSteps uint64    // executed instructions per call, 0 means unlimited
	Out      io.Writer // debug::print output, nil discards
}

const DefaultMaxDepth = 1024

var (
	ErrDepthLimit = errors.New("call depth limit exceeded")
	ErrStepLimit  = errors.New("step limit exceeded")
)

// Abort is a Move abort: a user code from an abort instruction or a reserved
// code raised by arithmetic, storage or natives.
type Abort struct {
	Code     uint64
	Module   string
	Function string
}

func (a *Abort) Error() string {
	where := a.Module + "::" + a.Function
	if name := abi.ReservedAbortName(a.Code); name != "" {
		return fmt.Sprintf("abort %d (%s) in %s", a.Code, name, where)
	}
	return fmt.Sprintf("abort %d in %s", a.Code, where)
}

// AbortCode extracts the abort code from err.
func AbortCode(err error) (uint64, bool) {
	var a *Abort
	if errors.As(err, &a) {
		return a.Code, true
	}
	return 0, false
}

// VM executes functions of one compilation unit. A VM is not safe for
// concurrent use; the store it drives may be shared.
type VM struct {
	unit    *sbc.Unit
	layouts *layout.Resolver
	store   *storage.Store
	opts    Options
	log     *zap.Logger

	labels map[*sbc.Function]map[int]int
	stack  []*frame
	steps  uint64
	table  *dispatch.Table
}

// New creates a VM over u. A nil store gets a fresh one.
func New(u *sbc.Unit, store *storage.Store, opts Options) *VM {
	if store == nil {
		store = storage.NewStore()
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	return &VM{
		unit:    u,
		layouts: layout.New(layout.PolkaVM(), u),
		store:   store,
		opts:    opts,
		log:     logging.Named("vm"),
		labels:  make(map[*sbc.Function]map[int]int),
	}
}

// Store returns the global storage the VM runs against.
func (vm *VM) Store() *storage.Store { return vm.store }

// Layouts returns the layout resolver used for tags and resource bytes.
func (vm *VM) Layouts() *layout.Resolver { return vm.layouts }

// Call runs module::fn with the given type and value arguments as one
// execution: outstanding borrows are released when it returns.
func (vm *VM) Call(ctx context.Context, module, fn string, typeArgs []types.Type, args ...*Value) ([]*Value, error) {
	defer vm.store.ReleaseAll()
	vm.stack = vm.stack[:0]
	vm.steps = 0
	m, f, ok := vm.unit.LookupFunction(module, fn)
	if !ok {
		return nil, diag.Errorf(diag.ErrUnresolvedSymbol, diag.TrUnknownCallee, module, fn, "function not found")
	}
	if len(typeArgs) != f.TypeParams {
		return nil, fmt.Errorf("%s::%s takes %d type arguments, got %d", m.ID(), fn, f.TypeParams, len(typeArgs))
	}
	if !types.AllGround(typeArgs) {
		return nil, diag.Errorf(diag.ErrUnresolvedGeneric, diag.TrUnresolvedGeneric, m.ID(), fn, "type arguments %s are not ground", types.ArgsKey(typeArgs))
	}
	vm.log.Debug("call", zap.String("fn", m.ID()+"::"+fn+types.ArgsKey(typeArgs)))
	return vm.invoke(ctx, m, f, typeArgs, args)
}

func (vm *VM) invoke(ctx context.Context, m *sbc.Module, f *sbc.Function, typeArgs []types.Type, args []*Value) ([]*Value, error) {
	if f.Native {
		return vm.callNative(m, f, typeArgs, args)
	}
	if len(vm.stack) >= vm.opts.MaxDepth {
		return nil, fmt.Errorf("%s::%s: %w", m.ID(), f.Name, ErrDepthLimit)
	}
	if len(args) != len(f.Params) {
		return nil, fmt.Errorf("%s::%s takes %d arguments, got %d", m.ID(), f.Name, len(f.Params), len(args))
	}
	fr := newFrame(m, f, typeArgs)
	for i, a := range args {
		fr.locals[i] = a
	}
	vm.stack = append(vm.stack, fr)
	defer func() { vm.stack = vm.stack[:len(vm.stack)-1] }()
	return vm.run(ctx, fr)
}

// labelIndex maps label ids of f to instruction indexes, computed once.
func (vm *VM) labelIndex(f *sbc.Function) map[int]int {
	if idx, ok := vm.labels[f]; ok {
		return idx
	}
	idx := make(map[int]int)
	for i, bc := range f.Code {
		if bc.Kind == sbc.BcLabel {
			idx[bc.Label] = i
		}
	}
	vm.labels[f] = idx
	return idx
}

func (vm *VM) abort(fr *frame, code uint64) error {
	vm.log.Debug("abort", zap.String("fn", fr.name()), zap.Uint64("code", code))
	return &Abort{Code: code, Module: fr.module.ID(), Function: fr.fn.Name}
}

// fault turns a storage protocol violation into an abort of the running
// function; other errors pass through.
func (vm *VM) fault(fr *frame, err error) error {
	var f *storage.Fault
	if errors.As(err, &f) {
		return vm.abort(fr, f.Code)
	}
	return err
}

// Backtrace lists the active frames, innermost first.
func (vm *VM) Backtrace() []string {
	out := make([]string, 0, len(vm.stack))
	for i := len(vm.stack) - 1; i >= 0; i-- {
		out = append(out, vm.stack[i].name())
	}
	return out
}
