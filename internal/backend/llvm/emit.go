// Package llvm lowers monomorphized Move bytecode to textual LLVM IR for the
// PolkaVM target.
package llvm

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"movepvm/internal/layout"
	"movepvm/internal/logging"
	"movepvm/internal/mono"
	"movepvm/internal/natives"
	"movepvm/internal/storage"
	"movepvm/internal/types"
)

// Options tunes module emission.
type Options struct {
	// Jobs bounds parallel function emission; <=0 means GOMAXPROCS.
	Jobs int
}

type funcSig struct {
	ret    string
	params []string
}

// FuncSymbol is the LLVM-level signature of one emitted instance.
type FuncSymbol struct {
	Name   string // quoted global name, without the leading '@'
	Ret    string
	Params []string
}

// Module is the result of EmitModule.
type Module struct {
	IR    string
	Funcs map[string]FuncSymbol // by instance key
}

// Symbol returns the emitted signature of an instance.
func (m *Module) Symbol(key string) (FuncSymbol, bool) {
	s, ok := m.Funcs[key]
	return s, ok
}

type Emitter struct {
	prog     *mono.Program
	layouts  *layout.Resolver
	buf      strings.Builder
	funcSigs map[string]funcSig
	log      *zap.Logger

	// Разделяемое состояние: функции эмитятся параллельно.
	mu         sync.Mutex
	tags       map[string]types.Type
	intrinsics map[string]builtinDecl
	helpers    map[string]helperReq
}

type funcEmitter struct {
	emitter     *Emitter
	in          *mono.Instance
	buf         strings.Builder
	globals     strings.Builder
	tmpID       int
	inlineBlock int
	constID     int
	terminated  bool
	localAlloca []string
	localTypes  []types.Type
}

// EmitModule translates every instance of prog into one LLVM module.
func EmitModule(ctx context.Context, prog *mono.Program, layouts *layout.Resolver, opt Options) (*Module, error) {
	e := &Emitter{
		prog:       prog,
		layouts:    layouts,
		funcSigs:   make(map[string]funcSig, len(prog.Instances)),
		log:        logging.Named("llvm"),
		tags:       make(map[string]types.Type),
		intrinsics: make(map[string]builtinDecl),
		helpers:    make(map[string]helperReq),
	}
	if err := e.prepareFunctions(); err != nil {
		return nil, err
	}
	bodies, err := e.emitFunctions(ctx, opt.Jobs)
	if err != nil {
		return nil, err
	}
	helpers, err := e.emitHelpers()
	if err != nil {
		return nil, err
	}

	e.emitPreamble()
	if err := e.emitStructTypes(); err != nil {
		return nil, err
	}
	e.emitRuntimeDecls()
	e.emitTags()
	for _, body := range bodies {
		e.buf.WriteString(body)
	}
	e.buf.WriteString(helpers)
	e.emitIntrinsicDecls()

	mod := &Module{IR: e.buf.String(), Funcs: make(map[string]FuncSymbol, len(e.funcSigs))}
	for key, sig := range e.funcSigs {
		mod.Funcs[key] = FuncSymbol{Name: quoteName(key), Ret: sig.ret, Params: sig.params}
	}
	e.log.Debug("module emitted",
		zap.Int("functions", len(prog.Instances)),
		zap.Int("structs", len(prog.Structs)),
		zap.Int("bytes", e.buf.Len()))
	return mod, nil
}

func (e *Emitter) emitPreamble() {
	t := e.layouts.Target
	fmt.Fprintf(&e.buf, "target datalayout = %q\n", t.DataLayout)
	fmt.Fprintf(&e.buf, "target triple = %q\n\n", t.Triple)
}

func (e *Emitter) emitStructTypes() error {
	fmt.Fprintf(&e.buf, "%s = type { ptr, i64, i64 }\n", vecType)
	for _, st := range e.prog.Structs {
		fields, err := e.layouts.FieldTypes(st)
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			fmt.Fprintf(&e.buf, "%%%s = type { i8 }\n", quoteName(st.Key()))
			continue
		}
		parts := make([]string, len(fields))
		for i, ft := range fields {
			ty, err := e.llvmType(ft)
			if err != nil {
				return err
			}
			parts[i] = ty
		}
		fmt.Fprintf(&e.buf, "%%%s = type { %s }\n", quoteName(st.Key()), strings.Join(parts, ", "))
	}
	e.buf.WriteString("\n")
	return nil
}

func (e *Emitter) emitRuntimeDecls() {
	for _, decl := range runtimeDecls() {
		fmt.Fprintf(&e.buf, "declare %s @%s(%s)%s\n", decl.ret, decl.name, strings.Join(decl.params, ", "), decl.attrs)
	}
	e.buf.WriteString("\n")
}

func (e *Emitter) emitIntrinsicDecls() {
	names := make([]string, 0, len(e.intrinsics))
	for name := range e.intrinsics {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > 0 {
		e.buf.WriteString("\n")
	}
	for _, name := range names {
		decl := e.intrinsics[name]
		fmt.Fprintf(&e.buf, "declare %s @%s(%s)\n", decl.ret, decl.name, strings.Join(decl.params, ", "))
	}
}

func (e *Emitter) prepareFunctions() error {
	for _, in := range e.prog.Instances {
		ret, err := e.retType(in.Returns)
		if err != nil {
			return wrapInstanceErr(in, err)
		}
		params := make([]string, len(in.Params))
		for i, p := range in.Params {
			ty, err := e.llvmType(p)
			if err != nil {
				return wrapInstanceErr(in, err)
			}
			params[i] = ty
		}
		e.funcSigs[in.Key] = funcSig{ret: ret, params: params}
	}
	return nil
}

func (e *Emitter) emitFunctions(ctx context.Context, jobs int) ([]string, error) {
	n := len(e.prog.Instances)
	results := make([]string, n)
	if n == 0 {
		return results, nil
	}
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, n))
	for i, in := range e.prog.Instances {
		g.Go(func() error {
			// Прерываемся, если другая функция уже упала
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			fe := &funcEmitter{emitter: e, in: in}
			if err := fe.emit(); err != nil {
				return err
			}
			results[i] = fe.globals.String() + fe.buf.String()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Emitter) emitTags() {
	e.mu.Lock()
	keys := make([]string, 0, len(e.tags))
	for key := range e.tags {
		keys = append(keys, key)
	}
	e.mu.Unlock()
	sort.Strings(keys)
	for _, key := range keys {
		tag := layout.TagOf(e.tags[key])
		fmt.Fprintf(&e.buf, "@%s = private unnamed_addr constant [32 x i8] c\"%s\"\n", quoteName("tag."+key), escapeBytes(tag[:]))
	}
	if len(keys) > 0 {
		e.buf.WriteString("\n")
	}
}

// tagGlobal returns the global holding the storage tag of t.
func (e *Emitter) tagGlobal(t types.Type) string {
	key := t.Key()
	e.mu.Lock()
	e.tags[key] = t
	e.mu.Unlock()
	return "@" + quoteName("tag."+key)
}

func (e *Emitter) requestIntrinsic(decl builtinDecl) {
	e.mu.Lock()
	e.intrinsics[decl.name] = decl
	e.mu.Unlock()
}

// runtimeDecls lists natives, runtime helpers and the storage bridge.
func runtimeDecls() []builtinDecl {
	decls := append(natives.Decls(), storage.Bridge()...)
	sort.Slice(decls, func(i, j int) bool { return decls[i].Symbol < decls[j].Symbol })
	out := make([]builtinDecl, len(decls))
	for i, d := range decls {
		out[i] = declFromNative(d)
	}
	return out
}
