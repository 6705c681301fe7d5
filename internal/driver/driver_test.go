package driver_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"movepvm/internal/diag"
	"movepvm/internal/driver"
	"movepvm/internal/sbc"
	"movepvm/internal/testkit"
)

func TestCompile_VaultUnit(t *testing.T) {
	res, err := driver.Compile(context.Background(), testkit.VaultUnit(), &driver.Options{EnableTimings: true})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	for _, want := range []string{
		"define void @deploy()",
		"define void @call()",
		`@"0x42::vault::publish"`,
		".polkavm_exports",
	} {
		if !strings.Contains(res.IR, want) {
			t.Errorf("IR lacks %s", want)
		}
	}
	if res.Table == nil || res.Table.Module != testkit.VaultModule || len(res.Table.Entries) != 2 {
		t.Fatalf("table = %+v", res.Table)
	}
	for _, name := range []string{driver.PhaseValidate, driver.PhaseMono, driver.PhaseLayout, driver.PhaseEmit, driver.PhaseDispatch} {
		if _, ok := res.Timing.Phase(name); !ok {
			t.Errorf("timing report lacks %s", name)
		}
	}
	if mono, _ := res.Timing.Phase(driver.PhaseMono); !strings.Contains(mono.Note, "instances") {
		t.Errorf("mono note = %q", mono.Note)
	}
}

func TestCompile_LibraryUnit(t *testing.T) {
	res, err := driver.Compile(context.Background(), testkit.BoxesUnit(), nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if res.Table == nil || !res.Table.Empty() {
		t.Fatalf("table = %+v, want empty", res.Table)
	}
	for _, want := range []string{
		"define void @deploy()",
		"define void @call()",
		"module asm \".8byte call\"",
		"module asm \".8byte deploy\"",
	} {
		if !strings.Contains(res.IR, want) {
			t.Errorf("IR lacks %s", want)
		}
	}
}

func TestCompile_Deterministic(t *testing.T) {
	a, err := driver.Compile(context.Background(), testkit.ArithUnit(), &driver.Options{Jobs: 1})
	if err != nil {
		t.Fatal(err)
	}
	b, err := driver.Compile(context.Background(), testkit.ArithUnit(), &driver.Options{Jobs: 8})
	if err != nil {
		t.Fatal(err)
	}
	if a.IR != b.IR {
		t.Fatal("IR depends on the number of jobs")
	}
}

func TestCompile_MultipleEntryModulesStopsEarly(t *testing.T) {
	u := testkit.VaultUnit()
	u.Modules = append(u.Modules, testkit.ArithModuleDef())
	var started []string
	opts := &driver.Options{PhaseObserver: func(ev driver.PhaseEvent) {
		if ev.Status == driver.PhaseStart {
			started = append(started, ev.Name)
		}
	}}
	_, err := driver.Compile(context.Background(), u, opts)
	if !diag.IsKind(err, diag.ErrMultipleEntryModules) {
		t.Fatalf("err = %v", err)
	}
	if len(started) != 1 || started[0] != driver.PhaseValidate {
		t.Fatalf("phases started = %v", started)
	}
}

func TestCompile_MalformedUnit(t *testing.T) {
	u := testkit.ArithUnit()
	fn := u.Modules[len(u.Modules)-1].Functions[0]
	fn.Code = append(fn.Code, sbc.Jump(99))
	_, err := driver.Compile(context.Background(), u, nil)
	if !diag.IsKind(err, diag.ErrMalformedInput) {
		t.Fatalf("err = %v, want malformed input", err)
	}
}

func TestCompile_PhaseEvents(t *testing.T) {
	var events []driver.PhaseEvent
	opts := &driver.Options{PhaseObserver: func(ev driver.PhaseEvent) { events = append(events, ev) }}
	if _, err := driver.Compile(context.Background(), testkit.VaultUnit(), opts); err != nil {
		t.Fatal(err)
	}
	if len(events)%2 != 0 {
		t.Fatalf("unbalanced events: %+v", events)
	}
	for i := 0; i < len(events); i += 2 {
		start, end := events[i], events[i+1]
		if start.Status != driver.PhaseStart || end.Status != driver.PhaseEnd || start.Name != end.Name || end.Err != nil {
			t.Fatalf("events %d,%d = %+v %+v", i, i+1, start, end)
		}
	}
}

func TestCompileFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arith.mv")
	if err := sbc.SaveFile(path, testkit.ArithUnit()); err != nil {
		t.Fatal(err)
	}
	res, err := driver.CompileFile(context.Background(), path, &driver.Options{EnableTimings: true})
	if err != nil {
		t.Fatal(err)
	}
	load, ok := res.Timing.Phase(driver.PhaseLoad)
	if !ok || load.Note != path {
		t.Fatalf("load phase = %+v", load)
	}
	if _, err := driver.CompileFile(context.Background(), filepath.Join(t.TempDir(), "missing.mv"), nil); err == nil {
		t.Fatal("missing file compiled")
	}
}
