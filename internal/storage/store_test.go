package storage_test

import (
	"errors"
	"math/rand"
	"sync"
	"testing"

	"movepvm/internal/abi"
	"movepvm/internal/layout"
	"movepvm/internal/storage"
	"movepvm/internal/testkit"
)

var (
	alice = storage.Owner{31: 0xa1}
	bob   = storage.Owner{31: 0xb0}
	tagR  = layout.TagOf(testkit.VaultResource())
)

func faultCode(t *testing.T, err error) uint64 {
	t.Helper()
	var f *storage.Fault
	if !errors.As(err, &f) {
		t.Fatalf("expected *storage.Fault, got %T (%v)", err, err)
	}
	return f.Code
}

func TestStore_DoubleMoveToThenMoveFrom(t *testing.T) {
	s := storage.NewStore()
	if err := s.MoveTo(alice, tagR, []byte{42, 0, 0, 0, 0, 0, 0, 0}); err != nil {
		t.Fatal(err)
	}
	err := s.MoveTo(alice, tagR, []byte{69, 0, 0, 0, 0, 0, 0, 0})
	if code := faultCode(t, err); code != abi.AbortResourceExists {
		t.Fatalf("second move_to code = %d", code)
	}
	got, err := s.MoveFrom(alice, tagR)
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != 42 {
		t.Fatalf("move_from returned %v, want the first value", got)
	}
	if s.Exists(alice, tagR) {
		t.Fatal("key must be absent after move_from")
	}
	_, err = s.MoveFrom(alice, tagR)
	if code := faultCode(t, err); code != abi.AbortResourceMissing {
		t.Fatalf("move_from on absent code = %d", code)
	}
}

func TestStore_OwnersAreIndependent(t *testing.T) {
	s := storage.NewStore()
	if err := s.MoveTo(alice, tagR, []byte{1}); err != nil {
		t.Fatal(err)
	}
	if err := s.MoveTo(bob, tagR, []byte{2}); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 2 {
		t.Fatalf("len = %d", s.Len())
	}
}

func TestStore_BorrowRules(t *testing.T) {
	s := storage.NewStore()
	if _, err := s.Borrow(alice, tagR, false); faultCode(t, err) != abi.AbortResourceMissing {
		t.Fatal("borrow of absent entry must report missing")
	}
	if err := s.MoveTo(alice, tagR, []byte{7}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Borrow(alice, tagR, false); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Borrow(alice, tagR, false); err != nil {
		t.Fatal("two shared borrows must coexist")
	}
	if _, err := s.Borrow(alice, tagR, true); faultCode(t, err) != abi.AbortBorrowConflict {
		t.Fatal("exclusive borrow under shared borrows must conflict")
	}
	if _, err := s.MoveFrom(alice, tagR); faultCode(t, err) != abi.AbortBorrowConflict {
		t.Fatal("move_from while borrowed must conflict")
	}
	s.Release(alice, tagR, nil)
	s.Release(alice, tagR, nil)
	s.Release(alice, tagR, nil)
	if st, _ := s.State(alice, tagR); st.BorrowCount != 0 {
		t.Fatalf("borrow count = %d after extra release", st.BorrowCount)
	}

	if _, err := s.Borrow(alice, tagR, true); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Borrow(alice, tagR, true); faultCode(t, err) != abi.AbortBorrowConflict {
		t.Fatal("second exclusive borrow must conflict")
	}
	if _, err := s.Borrow(alice, tagR, false); faultCode(t, err) != abi.AbortBorrowConflict {
		t.Fatal("shared borrow under exclusive borrow must conflict")
	}
	s.Release(alice, tagR, []byte{8})
	if s.IsBorrowed(alice, tagR) {
		t.Fatal("release must clear the exclusive borrow")
	}
	got, err := s.MoveFrom(alice, tagR)
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != 8 {
		t.Fatalf("exclusive release did not write back: %v", got)
	}
}

func TestStore_UpdateOnlyUnderExclusiveBorrow(t *testing.T) {
	s := storage.NewStore()
	if err := s.MoveTo(alice, tagR, []byte{1}); err != nil {
		t.Fatal(err)
	}
	if err := s.Update(alice, tagR, []byte{2}); err != nil {
		t.Fatal(err)
	}
	if b, _ := s.Borrow(alice, tagR, false); b[0] != 1 {
		t.Fatalf("update without exclusive borrow changed data: %v", b)
	}
	s.ReleaseAll()
	if _, err := s.Borrow(alice, tagR, true); err != nil {
		t.Fatal(err)
	}
	if err := s.Update(alice, tagR, []byte{3}); err != nil {
		t.Fatal(err)
	}
	s.ReleaseAll()
	if b, _ := s.MoveFrom(alice, tagR); b[0] != 3 {
		t.Fatalf("update under exclusive borrow lost: %v", b)
	}
}

// Random operation sequences never break the entry invariants.
func TestStore_ProtocolInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 200; round++ {
		s := storage.NewStore()
		present := false
		for step := 0; step < 64; step++ {
			switch rng.Intn(6) {
			case 0:
				err := s.MoveTo(alice, tagR, []byte{byte(step)})
				if present != (err != nil) {
					t.Fatalf("round %d step %d: move_to err=%v present=%v", round, step, err, present)
				}
				present = true
			case 1:
				borrowed := s.IsBorrowed(alice, tagR)
				_, err := s.MoveFrom(alice, tagR)
				if err == nil && borrowed {
					t.Fatalf("round %d step %d: move_from succeeded while borrowed", round, step)
				}
				if err == nil {
					present = false
				}
			case 2, 3:
				before, _ := s.State(alice, tagR)
				_, err := s.Borrow(alice, tagR, true)
				if err == nil && (before.BorrowMut || before.BorrowCount > 0) {
					t.Fatalf("round %d step %d: exclusive borrow granted over %+v", round, step, before)
				}
			case 4:
				_, _ = s.Borrow(alice, tagR, false)
			case 5:
				s.Release(alice, tagR, nil)
			}
			if st, ok := s.State(alice, tagR); ok {
				if st.BorrowCount < 0 {
					t.Fatalf("negative borrow count %+v", st)
				}
				if st.BorrowMut && st.BorrowCount > 0 {
					t.Fatalf("exclusive and shared borrows coexist %+v", st)
				}
			}
			if s.Exists(alice, tagR) != present {
				t.Fatalf("round %d step %d: exists disagrees with model", round, step)
			}
		}
	}
}

func TestStore_ConcurrentExclusiveBorrowIsSingle(t *testing.T) {
	s := storage.NewStore()
	if err := s.MoveTo(alice, tagR, []byte{1}); err != nil {
		t.Fatal(err)
	}
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Borrow(alice, tagR, true); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if granted != 1 {
		t.Fatalf("granted %d exclusive borrows", granted)
	}
}

func TestBridge_SymbolsCoverStorageOps(t *testing.T) {
	seen := map[string]bool{}
	for _, d := range storage.Bridge() {
		seen[d.Symbol] = true
	}
	for _, sym := range []string{storage.SymMoveTo, storage.SymMoveFrom, storage.SymBorrowGlobal, storage.SymExists, storage.SymRelease} {
		if !seen[sym] {
			t.Errorf("bridge lacks %s", sym)
		}
	}
	all := storage.GuestSymbols()
	if len(all) <= len(storage.Bridge()) {
		t.Fatalf("guest symbols should include natives, got %d", len(all))
	}
}
