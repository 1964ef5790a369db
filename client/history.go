// Package client implements the viewer side of the plot push protocol: a
// websocket connection manager with manual reconnect, and the append-only
// history store backing the viewport and history strip.
package client

import (
	"sync"

	"github.com/plotview/plotview/core"
)

// HistoryStore is the ordered, deduplicated log of every record received this
// session. Insertion order is arrival order; timestamps never influence it.
// Records are immutable once admitted and are only removed by Clear.
type HistoryStore struct {
	mu       sync.RWMutex
	records  []*core.PlotMessage
	byID     map[string]*core.PlotMessage
	activeID string // empty until the user pins a selection
	onAppend func(*core.PlotMessage)
}

// NewHistoryStore creates an empty history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{byID: make(map[string]*core.PlotMessage)}
}

// OnAppend registers a callback fired after every non-duplicate admission.
// The session server replays history on reconnect, so duplicates are routine
// and must not re-trigger side effects (strip scrolling, thumbnail jobs).
func (s *HistoryStore) OnAppend(fn func(*core.PlotMessage)) {
	s.mu.Lock()
	s.onAppend = fn
	s.mu.Unlock()
}

// Admit appends msg unless a record with the same id already exists. Returns
// true if the record was appended, false if it was a duplicate.
func (s *HistoryStore) Admit(msg *core.PlotMessage) bool {
	s.mu.Lock()
	if _, exists := s.byID[msg.ID]; exists {
		s.mu.Unlock()
		core.Debug("duplicate record %s dropped (replay)", msg.ID)
		return false
	}
	s.records = append(s.records, msg)
	s.byID[msg.ID] = msg
	fn := s.onAppend
	s.mu.Unlock()

	// Callback runs outside the lock so it can call back into the store.
	if fn != nil {
		fn(msg)
	}
	return true
}

// Select pins the active pointer to the record with the given id. A no-op if
// the id is unknown. The pin survives further admissions until the next
// Select or a Clear.
func (s *HistoryStore) Select(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return false
	}
	s.activeID = id
	return true
}

// ActiveRecord returns the pinned record if one is set and still present,
// otherwise the most recently appended record, otherwise nil.
func (s *HistoryStore) ActiveRecord() *core.PlotMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activeID != "" {
		if msg, ok := s.byID[s.activeID]; ok {
			return msg
		}
	}
	if len(s.records) == 0 {
		return nil
	}
	return s.records[len(s.records)-1]
}

// Get returns the record with the given id, if present.
func (s *HistoryStore) Get(id string) (*core.PlotMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.byID[id]
	return msg, ok
}

// Records returns all records in arrival order.
func (s *HistoryStore) Records() []*core.PlotMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.PlotMessage, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of records admitted so far.
func (s *HistoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Clear removes all records and the active pin. The only bulk mutation the
// store supports; individual records are never removed.
func (s *HistoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.byID = make(map[string]*core.PlotMessage)
	s.activeID = ""
}
