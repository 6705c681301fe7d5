// Package mono expands generic Move functions and structs into one concrete
// instance per combination of type arguments reachable in a unit.
package mono

import (
	"sort"

	"go.uber.org/zap"

	"movepvm/internal/diag"
	"movepvm/internal/logging"
	"movepvm/internal/sbc"
	"movepvm/internal/types"
)

type Options struct {
	MaxDepth int
}

// Instance is one function body at concrete type arguments. Params, Returns
// and Locals are already substituted.
type Instance struct {
	Key      string
	Module   *sbc.Module
	Func     *sbc.Function
	TypeArgs []types.Type
	Params   []types.Type
	Returns  []types.Type
	Locals   []types.Type
	Depth    int
}

// ModuleID returns the canonical id of the defining module.
func (in *Instance) ModuleID() string { return in.Module.ID() }

// Subst instantiates a type appearing in the body.
func (in *Instance) Subst(t types.Type) types.Type { return t.Subst(in.TypeArgs) }

// SubstAll instantiates a list of types appearing in the body.
func (in *Instance) SubstAll(ts []types.Type) []types.Type { return types.SubstAll(ts, in.TypeArgs) }

// Program is the monomorphized unit.
type Program struct {
	Unit      *sbc.Unit
	Instances []*Instance  // sorted by key
	Structs   []types.Type // ground struct instantiations, sorted by key
	Natives   []*InstEntry // native instantiations, sorted by key
	Map       *InstantiationMap

	byKey map[string]*Instance
}

// Instance looks an instance up by its key.
func (p *Program) Instance(key string) (*Instance, bool) {
	in, ok := p.byKey[key]
	return in, ok
}

type workItem struct {
	module *sbc.Module
	fn     *sbc.Function
	args   []types.Type
	depth  int
}

type monoBuilder struct {
	unit *sbc.Unit
	opt  Options
	inst *InstantiationMap
	log  *zap.Logger

	queue     []workItem
	instances map[string]*Instance
	structs   map[string]types.Type
}

// Monomorphize seeds every entry function and every non-generic, non-native
// function, then follows calls until no new instance appears.
func Monomorphize(u *sbc.Unit, opt Options) (*Program, error) {
	if opt.MaxDepth <= 0 {
		opt.MaxDepth = 64
	}
	b := &monoBuilder{
		unit:      u,
		opt:       opt,
		inst:      NewInstantiationMap(),
		log:       logging.Named("mono"),
		instances: make(map[string]*Instance),
		structs:   make(map[string]types.Type),
	}
	b.seed()
	for len(b.queue) > 0 {
		item := b.queue[0]
		b.queue = b.queue[1:]
		if err := b.instantiate(item); err != nil {
			return nil, err
		}
	}
	return b.program(), nil
}

func (b *monoBuilder) seed() {
	for _, m := range b.unit.Modules {
		if m == nil {
			continue
		}
		for _, fn := range m.Functions {
			if fn == nil || fn.Native {
				continue
			}
			if fn.TypeParams > 0 && !fn.Entry {
				continue
			}
			b.enqueue(m, fn, nil, 0, nil)
		}
	}
}

func (b *monoBuilder) enqueue(m *sbc.Module, fn *sbc.Function, args []types.Type, depth int, site *UseSite) {
	entry, fresh := b.inst.Record(InstFn, m.ID(), fn.Name, args, site)
	if !fresh {
		return
	}
	b.queue = append(b.queue, workItem{module: m, fn: fn, args: entry.TypeArgs, depth: depth})
}

func (b *monoBuilder) instantiate(item workItem) error {
	m, fn := item.module, item.fn
	key := InstanceKey(m.ID(), fn.Name, item.args)
	if len(item.args) != fn.TypeParams {
		return diag.Errorf(diag.ErrUnresolvedGeneric, diag.TrUnresolvedGeneric, m.ID(), fn.Name,
			"%d type arguments for %d type parameters", len(item.args), fn.TypeParams)
	}
	in := &Instance{
		Key:      key,
		Module:   m,
		Func:     fn,
		TypeArgs: item.args,
		Params:   types.SubstAll(fn.Params, item.args),
		Returns:  types.SubstAll(fn.Returns, item.args),
		Locals:   types.SubstAll(fn.Locals, item.args),
		Depth:    item.depth,
	}
	for _, t := range in.Locals {
		if !t.IsGround() {
			return diag.Errorf(diag.ErrUnresolvedGeneric, diag.TrUnresolvedGeneric, m.ID(), fn.Name,
				"local type %s is not ground in %s", t, key)
		}
		if err := b.collectType(t); err != nil {
			return err
		}
	}
	b.instances[key] = in
	b.log.Debug("instance", zap.String("key", key), zap.Int("depth", item.depth))

	for pc := range fn.Code {
		bc := &fn.Code[pc]
		if bc.Kind != sbc.BcCall || bc.Op == nil {
			continue
		}
		op := bc.Op
		args := types.SubstAll(op.TypeArgs, item.args)
		if !types.AllGround(args) {
			return diag.Errorf(diag.ErrUnresolvedGeneric, diag.TrUnresolvedGeneric, m.ID(), fn.Name,
				"pc %d: %s instantiated at %s", pc, op, types.ArgsKey(args))
		}
		switch op.Kind {
		case sbc.OpFunction:
			if err := b.call(in, pc, op, args); err != nil {
				return err
			}
		case sbc.OpPack, sbc.OpUnpack, sbc.OpBorrowField, sbc.OpMoveTo, sbc.OpMoveFrom,
			sbc.OpExists, sbc.OpBorrowGlobal, sbc.OpRelease:
			st := types.Struct(op.Module, op.Name, args...)
			b.inst.Record(InstType, op.Module, op.Name, args, &UseSite{Caller: key, PC: pc})
			if err := b.collectType(st); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *monoBuilder) call(caller *Instance, pc int, op *sbc.Operation, args []types.Type) error {
	cm, callee, ok := b.unit.LookupFunction(op.Module, op.Name)
	if !ok {
		return diag.Errorf(diag.ErrUnresolvedSymbol, diag.TrUnknownCallee, caller.ModuleID(), caller.Func.Name,
			"pc %d: call to %s::%s, which is not in the unit", pc, op.Module, op.Name)
	}
	site := &UseSite{Caller: caller.Key, PC: pc}
	if callee.Native {
		b.inst.Record(InstNative, cm.ID(), callee.Name, args, site)
		return nil
	}
	depth := 0
	if len(args) > 0 {
		depth = caller.Depth + 1
	}
	if depth > b.opt.MaxDepth {
		return diag.Errorf(diag.ErrMalformedInput, diag.TrRecursionLimit, caller.ModuleID(), caller.Func.Name,
			"instantiating %s exceeds depth %d", InstanceKey(cm.ID(), callee.Name, args), b.opt.MaxDepth)
	}
	b.enqueue(cm, callee, args, depth, site)
	return nil
}

func (b *monoBuilder) program() *Program {
	p := &Program{
		Unit:  b.unit,
		Map:   b.inst,
		byKey: b.instances,
	}
	for _, in := range b.instances {
		p.Instances = append(p.Instances, in)
	}
	sort.Slice(p.Instances, func(i, j int) bool { return p.Instances[i].Key < p.Instances[j].Key })
	for _, t := range b.structs {
		p.Structs = append(p.Structs, t)
	}
	sort.Slice(p.Structs, func(i, j int) bool { return p.Structs[i].Key() < p.Structs[j].Key() })
	for _, e := range b.inst.Entries {
		if e.Kind == InstNative {
			p.Natives = append(p.Natives, e)
		}
	}
	sort.Slice(p.Natives, func(i, j int) bool { return p.Natives[i].Key < p.Natives[j].Key })
	return p
}
