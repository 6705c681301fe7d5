// Package driver runs the in-process half of compilation: unit decoding,
// structural validation, monomorphization, IR emission and dispatch
// generation. External tools are the buildpipeline's business.
package driver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"movepvm/internal/backend/llvm"
	"movepvm/internal/dispatch"
	"movepvm/internal/layout"
	"movepvm/internal/logging"
	"movepvm/internal/mono"
	"movepvm/internal/observ"
	"movepvm/internal/sbc"
)

// Options configures Compile.
type Options struct {
	MaxDiagnostics int
	// MonoDepth bounds polymorphic recursion; <=0 uses the mono default.
	MonoDepth int
	// Jobs bounds parallel function emission; <=0 means GOMAXPROCS.
	Jobs          int
	EnableTimings bool
	PhaseObserver PhaseObserver
}

// Result holds every artefact of one compilation.
type Result struct {
	Unit    *sbc.Unit
	Program *mono.Program
	Layouts *layout.Resolver
	Module  *llvm.Module
	Table   *dispatch.Table
	// IR is the complete textual module: translated functions followed by
	// the dispatcher and export metadata.
	IR     string
	Timing observ.Report
}

// CompileFile loads a msgpack unit from path and compiles it.
func CompileFile(ctx context.Context, path string, opts *Options) (*Result, error) {
	if opts == nil {
		opts = &Options{}
	}
	ph := newPhases(opts)
	idx := ph.begin(PhaseLoad)
	u, err := sbc.LoadFile(path)
	ph.end(idx, path, err)
	if err != nil {
		return nil, err
	}
	res, err := compile(ctx, u, opts, ph)
	if res != nil {
		res.Timing = ph.report()
	}
	return res, err
}

// Compile lowers an already decoded unit to LLVM IR.
func Compile(ctx context.Context, u *sbc.Unit, opts *Options) (*Result, error) {
	if opts == nil {
		opts = &Options{}
	}
	ph := newPhases(opts)
	res, err := compile(ctx, u, opts, ph)
	if res != nil {
		res.Timing = ph.report()
	}
	return res, err
}

func compile(ctx context.Context, u *sbc.Unit, opts *Options, ph *phases) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	log := logging.Named("driver")

	idx := ph.begin(PhaseValidate)
	err := sbc.Validate(u, opts.MaxDiagnostics)
	ph.end(idx, "", err)
	if err != nil {
		return nil, err
	}
	res := &Result{Unit: u}

	// Ошибку "несколько модулей с entry" сообщаем до дорогой мономорфизации.
	if _, err := dispatch.Build(u, nil); err != nil {
		return res, err
	}

	idx = ph.begin(PhaseMono)
	prog, err := mono.Monomorphize(u, mono.Options{MaxDepth: opts.MonoDepth})
	ph.end(idx, "", err)
	if err != nil {
		return res, err
	}
	res.Program = prog
	ph.note(idx, fmt.Sprintf("%d instances, %d structs", len(prog.Instances), len(prog.Structs)))

	idx = ph.begin(PhaseLayout)
	res.Layouts = layout.New(layout.PolkaVM(), u)
	for _, st := range prog.Structs {
		if _, err = res.Layouts.LayoutOf(st); err != nil {
			break
		}
	}
	ph.end(idx, "", err)
	if err != nil {
		return res, err
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}

	idx = ph.begin(PhaseEmit)
	mod, err := llvm.EmitModule(ctx, prog, res.Layouts, llvm.Options{Jobs: opts.Jobs})
	ph.end(idx, "", err)
	if err != nil {
		return res, err
	}
	res.Module = mod

	idx = ph.begin(PhaseDispatch)
	table, err := dispatch.Build(u, prog)
	if err == nil {
		var b strings.Builder
		b.WriteString(mod.IR)
		if err = dispatch.Emit(&b, table, mod); err == nil {
			res.Table = table
			res.IR = b.String()
		}
	}
	ph.end(idx, "", err)
	if err != nil {
		return res, err
	}

	log.Debug("unit compiled",
		zap.String("module", table.Module),
		zap.Int("entries", len(table.Entries)),
		zap.Int("ir_bytes", len(res.IR)))
	return res, nil
}

// phases couples the observ timer with the phase observer callback.
type phases struct {
	timer    *observ.Timer
	observer PhaseObserver
	names    []string
	starts   []time.Time
}

func newPhases(opts *Options) *phases {
	p := &phases{observer: opts.PhaseObserver}
	if opts.EnableTimings {
		p.timer = observ.NewTimer()
	}
	return p
}

func (p *phases) begin(name string) int {
	p.names = append(p.names, name)
	p.starts = append(p.starts, time.Now())
	if p.timer != nil {
		p.timer.Begin(name)
	}
	if p.observer != nil {
		p.observer(PhaseEvent{Name: name, Status: PhaseStart})
	}
	return len(p.names) - 1
}

func (p *phases) end(idx int, note string, err error) {
	if p.timer != nil {
		p.timer.End(idx, note)
	}
	if p.observer != nil {
		p.observer(PhaseEvent{Name: p.names[idx], Status: PhaseEnd, Elapsed: time.Since(p.starts[idx]), Err: err})
	}
}

func (p *phases) note(idx int, note string) {
	if p.timer != nil {
		p.timer.Annotate(idx, note)
	}
}

func (p *phases) report() observ.Report {
	if p.timer == nil {
		return observ.Report{}
	}
	return p.timer.Report()
}
