package diag

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestCompileErrorMessageCarriesLocation(t *testing.T) {
	err := Errorf(ErrUnsupportedNative, TrUnsupportedNative, "0x1::m", "f", "native %s is not bound", "0x1::bcs::to_bytes")
	msg := err.Error()
	for _, want := range []string{"unsupported native", "0x1::m::f", "0x1::bcs::to_bytes"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message %q lacks %q", msg, want)
		}
	}
}

func TestIsKindThroughWrapping(t *testing.T) {
	base := Errorf(ErrUnresolvedSymbol, LnkUnresolvedSymbol, "", "", "move_native_foo")
	wrapped := fmt.Errorf("link: %w", base)
	if !IsKind(wrapped, ErrUnresolvedSymbol) {
		t.Fatalf("wrapped error lost its kind")
	}
	if !IsLinkError(wrapped) {
		t.Fatalf("unresolved symbol must be a link error")
	}
	if IsKind(wrapped, ErrMalformedInput) {
		t.Fatalf("kind mismatch matched")
	}
	kind, ok := KindOf(wrapped)
	if !ok || kind != ErrUnresolvedSymbol {
		t.Fatalf("KindOf = %v, %v", kind, ok)
	}
}

func TestBagErrJoinsErrors(t *testing.T) {
	bag := NewBag(10)
	if bag.Err() != nil {
		t.Fatalf("empty bag returned an error")
	}
	bag.Add(Diagnostic{Severity: SevWarning, Code: InpInfo, Message: "just a note"})
	bag.Errorf(ErrMalformedInput, InpBadLabel, "0x2::b", "g", "label 7 not defined")
	bag.Errorf(ErrMalformedInput, InpBadTemp, "0x2::a", "f", "temp 9 out of range")
	bag.Sort()
	if bag.Items()[0].Module != "0x2::a" {
		t.Fatalf("sort did not order by module: %+v", bag.Items())
	}
	err := bag.Err()
	if err == nil {
		t.Fatalf("expected an error")
	}
	if !IsKind(err, ErrMalformedInput) {
		t.Fatalf("joined error lost kind: %v", err)
	}
	var ce *CompileError
	if !errors.As(err, &ce) || ce.Code != InpBadTemp {
		t.Fatalf("first joined error = %+v", ce)
	}
}

func TestSeverity(t *testing.T) {
	for sev, want := range map[Severity]string{SevNote: "note", SevWarning: "warning", SevError: "error", Severity(7): "severity(7)"} {
		if got := sev.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", sev, got, want)
		}
	}
	if SevWarning.Blocking() || !SevError.Blocking() {
		t.Fatal("only errors block compilation")
	}
	d := Diagnostic{Severity: SevWarning, Code: InpBadLabel, Module: "0x2::m", Message: "unused label"}
	if got := d.String(); !strings.HasPrefix(got, "warning ") {
		t.Fatalf("diagnostic = %q", got)
	}
}
