// Package navigation keeps the single source of truth for the visible
// screen and backs it with a history stack so back and forward navigation
// and restarts restore what the user was looking at.
package navigation

import (
	"sync"

	"github.com/gigmarket/gigmarket/internal/models"
)

// RestoreFunc receives the state carried by the entry that became current
// after a back or forward move. state is nil when the entry carries none.
type RestoreFunc func(state *models.NavigationState)

// History is the store persisting navigation state, modelled on the
// browser history API.
type History interface {
	// Push appends an entry after the current one, dropping forward entries.
	Push(state models.NavigationState)
	// ReplaceTop overwrites the current entry.
	ReplaceTop(state models.NavigationState)
	// Back moves to the previous entry and notifies restore listeners.
	// It returns false when there is no previous entry.
	Back() bool
	// Forward moves to the next entry and notifies restore listeners.
	Forward() bool
	// CanGoBack reports whether a previous entry exists.
	CanGoBack() bool
	// Top returns a copy of the current entry's state, or nil.
	Top() *models.NavigationState
	// Len returns the number of entries, forward entries included.
	Len() int
	// OnRestore registers fn and returns a function removing it.
	OnRestore(fn RestoreFunc) (cancel func())
}

// MemoryHistory is a History held in memory. A fresh one contains a single
// entry without state, like a browser tab right after the first load.
type MemoryHistory struct {
	mu        sync.Mutex
	entries   []*models.NavigationState
	index     int
	listeners map[int]RestoreFunc
	nextID    int
}

// NewMemoryHistory returns a MemoryHistory with one stateless entry.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{
		entries:   []*models.NavigationState{nil},
		listeners: make(map[int]RestoreFunc),
	}
}

// Push appends state after the current entry and drops forward entries.
func (h *MemoryHistory) Push(state models.NavigationState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries[:h.index+1], &state)
	h.index = len(h.entries) - 1
}

// ReplaceTop overwrites the current entry.
func (h *MemoryHistory) ReplaceTop(state models.NavigationState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[h.index] = &state
}

// Back moves to the previous entry.
func (h *MemoryHistory) Back() bool {
	return h.move(-1)
}

// Forward moves to the next entry.
func (h *MemoryHistory) Forward() bool {
	return h.move(1)
}

func (h *MemoryHistory) move(delta int) bool {
	h.mu.Lock()
	next := h.index + delta
	if next < 0 || next >= len(h.entries) {
		h.mu.Unlock()
		return false
	}
	h.index = next
	state := copyState(h.entries[next])
	listeners := make([]RestoreFunc, 0, len(h.listeners))
	for _, fn := range h.listeners {
		listeners = append(listeners, fn)
	}
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(copyState(state))
	}
	return true
}

// CanGoBack reports whether a previous entry exists.
func (h *MemoryHistory) CanGoBack() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.index > 0
}

// Top returns a copy of the current entry, or nil when it carries no state.
func (h *MemoryHistory) Top() *models.NavigationState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return copyState(h.entries[h.index])
}

// Len returns the number of entries.
func (h *MemoryHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// OnRestore registers fn for back and forward moves.
func (h *MemoryHistory) OnRestore(fn RestoreFunc) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.listeners, id)
	}
}

// snapshot returns the entries and cursor for persistence.
func (h *MemoryHistory) snapshot() ([]*models.NavigationState, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*models.NavigationState, len(h.entries))
	for i, e := range h.entries {
		out[i] = copyState(e)
	}
	return out, h.index
}

// restoreSnapshot replaces the stack wholesale. An empty or inconsistent
// snapshot resets to a single stateless entry.
func (h *MemoryHistory) restoreSnapshot(entries []*models.NavigationState, index int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(entries) == 0 || index < 0 || index >= len(entries) {
		h.entries = []*models.NavigationState{nil}
		h.index = 0
		return
	}
	h.entries = entries
	h.index = index
}

func copyState(s *models.NavigationState) *models.NavigationState {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
