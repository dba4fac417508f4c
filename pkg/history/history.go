package history

import (
	"github.com/ritzau/rag-pipeline-designer/pkg/model"
)

// DefaultCapacity is the number of snapshots kept before the oldest is evicted
const DefaultCapacity = 20

// Manager is a bounded undo/redo stack of graph snapshots.
// The invariant 0 <= pointer < len(entries) holds once Init has been called.
type Manager struct {
	capacity int
	entries  []model.Snapshot
	pointer  int
}

// NewManager creates an empty history. Capacities below 1 use DefaultCapacity.
func NewManager(capacity int) *Manager {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Manager{
		capacity: capacity,
		pointer:  -1,
	}
}

// Init records the initial state as entry 0. It only has an effect on an empty history.
func (m *Manager) Init(s model.Snapshot) bool {
	if len(m.entries) > 0 {
		return false
	}
	m.entries = []model.Snapshot{s.Clone()}
	m.pointer = 0
	return true
}

// Push discards any redo states, appends the snapshot and evicts the oldest entry
// if the history grows past capacity.
func (m *Manager) Push(s model.Snapshot) {
	m.entries = append(m.entries[:m.pointer+1], s.Clone())
	m.pointer++

	if len(m.entries) > m.capacity {
		m.entries[0] = model.Snapshot{}
		m.entries = m.entries[1:]
		m.pointer--
	}
}

// Undo moves the pointer back and returns the snapshot now current
func (m *Manager) Undo() (model.Snapshot, bool) {
	if m.pointer <= 0 {
		return model.Snapshot{}, false
	}
	m.pointer--
	return m.entries[m.pointer].Clone(), true
}

// Redo moves the pointer forward and returns the snapshot now current
func (m *Manager) Redo() (model.Snapshot, bool) {
	if m.pointer < 0 || m.pointer >= len(m.entries)-1 {
		return model.Snapshot{}, false
	}
	m.pointer++
	return m.entries[m.pointer].Clone(), true
}

// Amend replaces the current entry without moving the pointer.
// Used for changes that must stay in sync with the graph but are not undo steps.
func (m *Manager) Amend(s model.Snapshot) {
	if m.pointer < 0 {
		m.Init(s)
		return
	}
	m.entries[m.pointer] = s.Clone()
}

// Current returns the snapshot at the pointer
func (m *Manager) Current() (model.Snapshot, bool) {
	if m.pointer < 0 {
		return model.Snapshot{}, false
	}
	return m.entries[m.pointer].Clone(), true
}

// CanUndo reports whether Undo would succeed
func (m *Manager) CanUndo() bool {
	return m.pointer > 0
}

// CanRedo reports whether Redo would succeed
func (m *Manager) CanRedo() bool {
	return m.pointer >= 0 && m.pointer < len(m.entries)-1
}

// Pointer returns the index of the current entry, -1 before Init
func (m *Manager) Pointer() int {
	return m.pointer
}

// Len returns the number of stored entries
func (m *Manager) Len() int {
	return len(m.entries)
}

// Capacity returns the maximum number of entries
func (m *Manager) Capacity() int {
	return m.capacity
}
