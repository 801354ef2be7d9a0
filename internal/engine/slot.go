package engine

import (
	"sync"
	"sync/atomic"

	"github.com/celerix-dev/emap-store/internal/workspace"
	"github.com/celerix-dev/emap-store/pkg/schema"
)

// Slot holds the single open workspace store. The active id is read from
// the open store itself, so an id without a store (or the reverse) cannot
// be represented.
type Slot struct {
	mu    sync.Mutex
	dir   string
	store *workspace.Store
	open  func(dir, id string) (*workspace.Store, error)

	// occupied mirrors store != nil for callers that must not wait on mu.
	occupied atomic.Bool
}

// NewSlot returns an empty slot that opens workspace files from dir.
func NewSlot(dir string) *Slot {
	return &Slot{dir: dir, open: workspace.Open}
}

// SwitchTo makes id the active workspace. The current store is closed
// before the new one is opened, so two workspace files are never open at
// once. If the open fails the slot is left empty.
func (s *Slot) SwitchTo(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store != nil && s.store.ID() == id {
		return nil
	}
	if err := s.closeLocked(); err != nil {
		return err
	}

	ws, err := s.open(s.dir, id)
	if err != nil {
		return err
	}
	s.store = ws
	s.occupied.Store(true)
	return nil
}

// Current returns the active workspace id.
func (s *Slot) Current() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store == nil {
		return "", false
	}
	return s.store.ID(), true
}

// Occupied reports whether a workspace is open without taking the lock.
// The answer may be stale by the time it is used; Do stays authoritative.
func (s *Slot) Occupied() bool {
	return s.occupied.Load()
}

// Do runs fn against the active store while holding the slot lock. A
// switch cannot happen while fn runs, but may happen between two calls.
func (s *Slot) Do(fn func(ws *workspace.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store == nil {
		return schema.ErrNoActiveWorkspace
	}
	return fn(s.store)
}

// Clear closes the active store, if any.
func (s *Slot) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

// ClearIf closes the active store only when it belongs to id, and reports
// whether it did.
func (s *Slot) ClearIf(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store == nil || s.store.ID() != id {
		return false, nil
	}
	return true, s.closeLocked()
}

// closeLocked empties the slot. The slot is emptied even when Close fails:
// a handle that failed to close is not reused.
func (s *Slot) closeLocked() error {
	if s.store == nil {
		return nil
	}
	err := s.store.Close()
	s.store = nil
	s.occupied.Store(false)
	if err != nil {
		return schema.StorageError("close workspace", err)
	}
	return nil
}
