// Package storage models per-owner global resource storage: the state machine
// the host enforces and the guest runtime symbols compiled code calls into.
package storage

import (
	"encoding/hex"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"movepvm/internal/abi"
	"movepvm/internal/layout"
	"movepvm/internal/logging"
)

// Owner is the 32-byte signer identity, used verbatim as the key.
type Owner [abi.SignerSize]byte

func (o Owner) String() string { return "0x" + hex.EncodeToString(o[:]) }

// Key identifies one Resource Entry.
type Key struct {
	Owner Owner
	Tag   layout.Tag
}

// Fault is a storage protocol violation. It surfaces as an abort with Code.
type Fault struct {
	Code uint64
	Op   string
	Key  Key
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s %s/%s: %s (abort %d)", f.Op, f.Key.Owner, f.Key.Tag, abi.ReservedAbortName(f.Code), f.Code)
}

type entry struct {
	data        []byte
	borrowCount int
	borrowMut   bool
}

// EntryState is a snapshot of a Resource Entry.
type EntryState struct {
	Size        int
	BorrowCount int
	BorrowMut   bool
}

// Store is the host side of global storage. Methods are safe for concurrent
// use; one execution still drives it synchronously.
type Store struct {
	mu      sync.Mutex
	entries map[Key]*entry
	log     *zap.Logger
}

func NewStore() *Store {
	return &Store{
		entries: make(map[Key]*entry),
		log:     logging.Named("storage"),
	}
}

func (s *Store) fault(code uint64, op string, k Key) error {
	f := &Fault{Code: code, Op: op, Key: k}
	s.log.Debug("storage fault", zap.String("op", op), zap.Stringer("owner", k.Owner), zap.Uint64("code", code))
	return f
}

// MoveTo publishes value under (owner, tag). Absent -> Present.
func (s *Store) MoveTo(owner Owner, tag layout.Tag, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := Key{Owner: owner, Tag: tag}
	if _, ok := s.entries[k]; ok {
		return s.fault(abi.AbortResourceExists, "move_to", k)
	}
	s.entries[k] = &entry{data: append([]byte(nil), value...)}
	s.log.Debug("move_to", zap.Stringer("owner", owner), zap.Stringer("tag", tag), zap.Int("size", len(value)))
	return nil
}

// MoveFrom removes and returns the entry. Present -> Absent.
func (s *Store) MoveFrom(owner Owner, tag layout.Tag) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := Key{Owner: owner, Tag: tag}
	e, ok := s.entries[k]
	if !ok {
		return nil, s.fault(abi.AbortResourceMissing, "move_from", k)
	}
	if e.borrowCount > 0 || e.borrowMut {
		return nil, s.fault(abi.AbortBorrowConflict, "move_from", k)
	}
	delete(s.entries, k)
	s.log.Debug("move_from", zap.Stringer("owner", owner), zap.Stringer("tag", tag))
	return e.data, nil
}

// Exists never changes state.
func (s *Store) Exists(owner Owner, tag layout.Tag) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[Key{Owner: owner, Tag: tag}]
	return ok
}

// Borrow returns a copy of the stored bytes and records the borrow. A shared
// borrow fails while an exclusive one is held; an exclusive borrow needs the
// entry completely unborrowed.
func (s *Store) Borrow(owner Owner, tag layout.Tag, mutable bool) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op := "borrow_global"
	if mutable {
		op = "borrow_global_mut"
	}
	k := Key{Owner: owner, Tag: tag}
	e, ok := s.entries[k]
	if !ok {
		return nil, s.fault(abi.AbortResourceMissing, op, k)
	}
	if e.borrowMut {
		return nil, s.fault(abi.AbortBorrowConflict, op, k)
	}
	if mutable {
		if e.borrowCount > 0 {
			return nil, s.fault(abi.AbortBorrowConflict, op, k)
		}
		e.borrowMut = true
	} else {
		e.borrowCount++
	}
	s.log.Debug(op, zap.Stringer("owner", owner), zap.Stringer("tag", tag), zap.Int("borrows", e.borrowCount))
	return append([]byte(nil), e.data...), nil
}

// Update overwrites the bytes of an exclusively borrowed entry. Writes to an
// entry that is not exclusively borrowed are dropped.
func (s *Store) Update(owner Owner, tag layout.Tag, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := Key{Owner: owner, Tag: tag}
	e, ok := s.entries[k]
	if !ok {
		return s.fault(abi.AbortResourceMissing, "update", k)
	}
	if e.borrowMut {
		e.data = append(e.data[:0], value...)
	}
	return nil
}

// Release ends one borrow. An exclusive borrow writes value back first.
// Releasing an unborrowed or absent entry does nothing, so borrowCount never
// goes negative.
func (s *Store) Release(owner Owner, tag layout.Tag, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[Key{Owner: owner, Tag: tag}]
	if !ok {
		return
	}
	s.releaseLocked(e, value)
	s.log.Debug("release", zap.Stringer("owner", owner), zap.Stringer("tag", tag), zap.Int("borrows", e.borrowCount))
}

func (s *Store) releaseLocked(e *entry, value []byte) {
	switch {
	case e.borrowMut:
		if value != nil {
			e.data = append(e.data[:0], value...)
		}
		e.borrowMut = false
	case e.borrowCount > 0:
		e.borrowCount--
	}
}

// ReleaseAll drops every outstanding borrow; the host calls it when an
// execution ends.
func (s *Store) ReleaseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		e.borrowCount = 0
		e.borrowMut = false
	}
}

// IsBorrowed reports whether any borrow is outstanding on the key.
func (s *Store) IsBorrowed(owner Owner, tag layout.Tag) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[Key{Owner: owner, Tag: tag}]
	return ok && (e.borrowCount > 0 || e.borrowMut)
}

// State returns a snapshot of the entry, false when absent.
func (s *Store) State(owner Owner, tag layout.Tag) (EntryState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[Key{Owner: owner, Tag: tag}]
	if !ok {
		return EntryState{}, false
	}
	return EntryState{Size: len(e.data), BorrowCount: e.borrowCount, BorrowMut: e.borrowMut}, true
}

// Len returns the number of present entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
