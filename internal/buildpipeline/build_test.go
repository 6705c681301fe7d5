package buildpipeline

import (
	"context"
	"debug/elf"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"movepvm/internal/diag"
	"movepvm/internal/testkit"
)

func sym(name string, bind elf.SymBind, section elf.SectionIndex) elf.Symbol {
	return elf.Symbol{Name: name, Info: elf.ST_INFO(bind, elf.STT_FUNC), Section: section}
}

func TestCheckSymbols_OK(t *testing.T) {
	syms := []elf.Symbol{
		sym("call", elf.STB_GLOBAL, 3),
		sym("deploy", elf.STB_GLOBAL, 3),
		sym("local_helper", elf.STB_LOCAL, elf.SHN_UNDEF),
	}
	if err := checkSymbols(syms, []string{".text", exportsSection}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheckSymbols_Undefined(t *testing.T) {
	syms := []elf.Symbol{
		sym("call", elf.STB_GLOBAL, 3),
		sym("deploy", elf.STB_GLOBAL, 3),
		sym("move_rt_alloc", elf.STB_GLOBAL, elf.SHN_UNDEF),
		sym("mystery", elf.STB_GLOBAL, elf.SHN_UNDEF),
	}
	err := checkSymbols(syms, []string{exportsSection})
	if !diag.IsKind(err, diag.ErrUnresolvedSymbol) {
		t.Fatalf("expected unresolved symbol error, got %v", err)
	}
	if !diag.IsLinkError(err) {
		t.Fatalf("expected a link error, got %v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "move_rt_alloc, mystery") || !strings.Contains(msg, "1 expected from the native runtime") {
		t.Fatalf("unexpected message: %s", msg)
	}
}

func TestCheckSymbols_CompilerSupportRoutines(t *testing.T) {
	syms := []elf.Symbol{
		sym("call", elf.STB_GLOBAL, 3),
		sym("deploy", elf.STB_GLOBAL, 3),
		sym("memcpy", elf.STB_GLOBAL, 3),
		sym("__udivti3", elf.STB_GLOBAL, 3),
	}
	if err := checkSymbols(syms, []string{exportsSection}); err != nil {
		t.Fatalf("runtime-provided support routines: %v", err)
	}

	syms = append(syms[:2], sym("memcpy", elf.STB_GLOBAL, elf.SHN_UNDEF), sym("__umodti3", elf.STB_GLOBAL, elf.SHN_UNDEF))
	err := checkSymbols(syms, []string{exportsSection})
	if !diag.IsKind(err, diag.ErrUnresolvedSymbol) {
		t.Fatalf("expected unresolved symbol error, got %v", err)
	}
	if !strings.Contains(err.Error(), "2 expected from the native runtime") {
		t.Fatalf("unexpected message: %s", err)
	}
}

func TestCheckSymbols_WeakUndefinedIgnored(t *testing.T) {
	syms := []elf.Symbol{
		sym("call", elf.STB_GLOBAL, 3),
		sym("deploy", elf.STB_WEAK, 3),
		sym("optional_hook", elf.STB_WEAK, elf.SHN_UNDEF),
	}
	if err := checkSymbols(syms, []string{exportsSection}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheckSymbols_MissingExport(t *testing.T) {
	syms := []elf.Symbol{sym("call", elf.STB_GLOBAL, 3)}
	err := checkSymbols(syms, []string{exportsSection})
	var ce *diag.CompileError
	if !asCompileError(err, &ce) || ce.Code != diag.LnkMissingExport {
		t.Fatalf("expected missing export, got %v", err)
	}
	if !strings.Contains(err.Error(), `"deploy"`) {
		t.Fatalf("expected deploy in message, got %v", err)
	}
}

func TestCheckSymbols_MissingExportsSection(t *testing.T) {
	syms := []elf.Symbol{sym("call", elf.STB_GLOBAL, 3), sym("deploy", elf.STB_GLOBAL, 3)}
	err := checkSymbols(syms, []string{".text"})
	var ce *diag.CompileError
	if !asCompileError(err, &ce) || ce.Code != diag.LnkMissingExport {
		t.Fatalf("expected missing exports section, got %v", err)
	}
}

func asCompileError(err error, out **diag.CompileError) bool {
	ce, ok := err.(*diag.CompileError)
	if ok {
		*out = ce
	}
	return ok
}

func TestTimings(t *testing.T) {
	var tm Timings
	if tm.Has(StageLoad) || tm.Duration(StageLoad) != 0 || tm.Sum(Stages()...) != 0 {
		t.Fatalf("zero timings should be empty")
	}
	tm.Set(StageLoad, time.Millisecond)
	tm.Set(StageLink, 2*time.Millisecond)
	if !tm.Has(StageLoad) || tm.Has(StageCodegen) {
		t.Fatalf("unexpected Has results")
	}
	if got := tm.Sum(Stages()...); got != 3*time.Millisecond {
		t.Fatalf("sum = %v", got)
	}
	var nilTimings *Timings
	nilTimings.Set(StageLoad, time.Second)
}

func TestLookupMissingTool(t *testing.T) {
	_, err := lookup("movepvm-no-such-tool", llvmInstallHint)
	var ce *diag.CompileError
	if !asCompileError(err, &ce) {
		t.Fatalf("expected compile error, got %v", err)
	}
	if ce.Kind != diag.ErrToolFailure || ce.Code != diag.LnkToolMissing {
		t.Fatalf("unexpected error %v", ce)
	}
	if !strings.Contains(ce.Detail, "apt-get") {
		t.Fatalf("expected install hint, got %q", ce.Detail)
	}
}

func TestExtractNativeRuntime(t *testing.T) {
	dir, sources, err := extractNativeRuntime(t.TempDir())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(sources) == 0 {
		t.Fatalf("no sources extracted")
	}
	for _, header := range []string{"move_rt.h", "polkavm_guest.h"} {
		if _, err := os.Stat(filepath.Join(dir, header)); err != nil {
			t.Fatalf("header %s missing: %v", header, err)
		}
	}
	for _, src := range sources {
		if filepath.Ext(src) != ".c" {
			t.Fatalf("unexpected source %s", src)
		}
	}
}

type recordSink struct{ events []Event }

func (r *recordSink) OnEvent(evt Event) { r.events = append(r.events, evt) }

func TestMultiSink(t *testing.T) {
	a, b := &recordSink{}, &recordSink{}
	ch := make(chan Event, len(Stages()))
	emitQueued(MultiSink{a, nil, b, ChannelSink{Ch: ch}, LogSink{}})
	if len(a.events) != len(Stages()) || len(b.events) != len(Stages()) || len(ch) != len(Stages()) {
		t.Fatalf("events not fanned out: %d %d %d", len(a.events), len(b.events), len(ch))
	}
	if a.events[0].Stage != StageLoad || a.events[0].Status != StatusQueued {
		t.Fatalf("unexpected first event %+v", a.events[0])
	}
}

func TestBuild_EmitLLVM(t *testing.T) {
	dir := t.TempDir()
	sink := &recordSink{}
	res, err := Build(context.Background(), &BuildRequest{
		Unit:       testkit.VaultUnit(),
		OutputPath: filepath.Join(dir, "vault.polkavm"),
		EmitLLVM:   true,
		Progress:   sink,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if res.OutputPath != filepath.Join(dir, "vault.ll") {
		t.Fatalf("unexpected output %s", res.OutputPath)
	}
	data, err := os.ReadFile(res.OutputPath)
	if err != nil {
		t.Fatalf("read IR: %v", err)
	}
	if !strings.Contains(string(data), "define void @call()") {
		t.Fatalf("IR lacks call export")
	}
	if _, err := os.Stat(filepath.Join(dir, ".tmp", "vault.polkavm")); !os.IsNotExist(err) {
		t.Fatalf("tmp dir should be removed, stat err = %v", err)
	}
	if !res.Timings.Has(StageLower) || res.Timings.Has(StageCodegen) {
		t.Fatalf("unexpected timings")
	}
	var done int
	for _, evt := range sink.events {
		if evt.Status == StatusDone {
			done++
		}
	}
	if done != 2 {
		t.Fatalf("expected load and lower to finish, got %d done events", done)
	}
}

func TestBuild_MissingToolStopsAtCodegen(t *testing.T) {
	dir := t.TempDir()
	sink := &recordSink{}
	_, err := Build(context.Background(), &BuildRequest{
		Unit:       testkit.VaultUnit(),
		OutputPath: filepath.Join(dir, "vault.polkavm"),
		Tools:      Toolchain{Clang: "movepvm-no-clang", LLC: "movepvm-no-llc"},
		Progress:   sink,
	})
	if !diag.IsKind(err, diag.ErrToolFailure) {
		t.Fatalf("expected tool failure, got %v", err)
	}
	last := sink.events[len(sink.events)-1]
	if last.Stage != StageCodegen || last.Status != StatusError {
		t.Fatalf("unexpected last event %+v", last)
	}
	if _, err := os.Stat(filepath.Join(dir, "vault.polkavm")); !os.IsNotExist(err) {
		t.Fatalf("no blob should be written")
	}
}

func TestBuild_MultipleEntryModules(t *testing.T) {
	u := testkit.VaultUnit()
	u.Modules = append(u.Modules, testkit.ArithModuleDef())
	_, err := Build(context.Background(), &BuildRequest{Unit: u, OutputPath: filepath.Join(t.TempDir(), "x.polkavm"), EmitLLVM: true})
	if !diag.IsKind(err, diag.ErrMultipleEntryModules) {
		t.Fatalf("expected multiple entry modules, got %v", err)
	}
}

func TestDefaultOutputName(t *testing.T) {
	if got := defaultOutputName("dir/vault.mpk"); got != "vault.polkavm" {
		t.Fatalf("got %q", got)
	}
	if got := defaultOutputName(""); got != "out.polkavm" {
		t.Fatalf("got %q", got)
	}
}
