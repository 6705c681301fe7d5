package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"movepvm/internal/buildpipeline"
)

func TestProgressModel_AppliesStageEvents(t *testing.T) {
	m := NewProgressModel("vault.polkavm", nil).(*progressModel)
	if got := m.fraction(); got != 0 {
		t.Fatalf("fraction = %v, want 0", got)
	}
	m.applyEvent(buildpipeline.Event{Stage: buildpipeline.StageLoad, Status: buildpipeline.StatusDone, Detail: "vault.mpk", Elapsed: 3 * time.Millisecond})
	m.applyEvent(buildpipeline.Event{Stage: buildpipeline.StageLower, Status: buildpipeline.StatusWorking})
	m.applyEvent(buildpipeline.Event{Stage: buildpipeline.Stage("bogus"), Status: buildpipeline.StatusDone})

	if m.items[0].status != "done" || m.items[1].status != "lowering" {
		t.Fatalf("unexpected statuses: %+v", m.items[:2])
	}
	want := 1.5 / float64(len(buildpipeline.Stages()))
	if got := m.fraction(); got != want {
		t.Fatalf("fraction = %v, want %v", got, want)
	}
	view := m.View()
	if !strings.Contains(view, "vault.mpk 3ms") || !strings.Contains(view, "lowering") {
		t.Fatalf("view missing rows:\n%s", view)
	}
}

func TestProgressModel_ErrorShowsFirstLine(t *testing.T) {
	m := NewProgressModel("x", nil).(*progressModel)
	m.applyEvent(buildpipeline.Event{Stage: buildpipeline.StageLink, Status: buildpipeline.StatusError, Err: errors.New("undefined symbols\nmore")})
	idx := m.index[buildpipeline.StageLink]
	if m.items[idx].status != "error" || m.items[idx].detail != "undefined symbols" {
		t.Fatalf("unexpected item %+v", m.items[idx])
	}
}

func TestProgressModel_ClosedChannelQuits(t *testing.T) {
	ch := make(chan buildpipeline.Event)
	close(ch)
	m := NewProgressModel("x", ch).(*progressModel)
	if _, ok := m.listenForEvent()().(doneMsg); !ok {
		t.Fatalf("closed channel should yield doneMsg")
	}
	m.Update(doneMsg{})
	if !m.done || !strings.Contains(m.View(), "done: x") {
		t.Fatalf("model should be done")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdefgh", 6); got != "abc..." {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("abc", 10); got != "abc" {
		t.Fatalf("truncate = %q", got)
	}
}
