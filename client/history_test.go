package client

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plotview/plotview/core"
)

func record(id string, ts int64) *core.PlotMessage {
	return &core.PlotMessage{
		ID:        id,
		Timestamp: ts,
		Content:   core.SVG("<svg/>"),
	}
}

func TestHistoryAdmitAndOrder(t *testing.T) {
	s := NewHistoryStore()

	// Timestamps regress on purpose: arrival order must win.
	require.True(t, s.Admit(record("a", 300)))
	require.True(t, s.Admit(record("b", 100)))
	require.True(t, s.Admit(record("c", 200)))

	recs := s.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, "a", recs[0].ID)
	assert.Equal(t, "b", recs[1].ID)
	assert.Equal(t, "c", recs[2].ID)
}

func TestHistoryDuplicatesDropped(t *testing.T) {
	s := NewHistoryStore()

	require.True(t, s.Admit(record("a", 1)))
	assert.False(t, s.Admit(record("a", 2)), "same id must be rejected")
	assert.Equal(t, 1, s.Len())

	// A replayed batch is fully idempotent.
	for range 3 {
		s.Admit(record("a", 1))
	}
	assert.Equal(t, 1, s.Len())
}

func TestHistoryActiveDefaultsToNewest(t *testing.T) {
	s := NewHistoryStore()
	assert.Nil(t, s.ActiveRecord())

	s.Admit(record("a", 1))
	s.Admit(record("b", 2))
	require.NotNil(t, s.ActiveRecord())
	assert.Equal(t, "b", s.ActiveRecord().ID)

	s.Admit(record("c", 3))
	assert.Equal(t, "c", s.ActiveRecord().ID)
}

func TestHistorySelectPinsActive(t *testing.T) {
	s := NewHistoryStore()
	s.Admit(record("a", 1))
	s.Admit(record("b", 2))

	require.True(t, s.Select("a"))
	assert.Equal(t, "a", s.ActiveRecord().ID)

	// The pin survives new arrivals.
	s.Admit(record("c", 3))
	assert.Equal(t, "a", s.ActiveRecord().ID)

	// Selecting an unknown id is a no-op.
	assert.False(t, s.Select("nope"))
	assert.Equal(t, "a", s.ActiveRecord().ID)

	require.True(t, s.Select("c"))
	assert.Equal(t, "c", s.ActiveRecord().ID)
}

func TestHistoryClear(t *testing.T) {
	s := NewHistoryStore()
	s.Admit(record("a", 1))
	s.Select("a")

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Nil(t, s.ActiveRecord())

	// Cleared ids can be admitted again.
	assert.True(t, s.Admit(record("a", 1)))
}

func TestHistoryObserverFiresOncePerRecord(t *testing.T) {
	s := NewHistoryStore()
	var seen []string
	s.OnAppend(func(msg *core.PlotMessage) {
		seen = append(seen, msg.ID)
	})

	for i := range 3 {
		id := fmt.Sprintf("rec-%d", i)
		s.Admit(record(id, int64(i)))
		s.Admit(record(id, int64(i))) // replayed duplicate
	}

	assert.Equal(t, []string{"rec-0", "rec-1", "rec-2"}, seen)
}

func TestHistoryGet(t *testing.T) {
	s := NewHistoryStore()
	s.Admit(record("a", 1))

	msg, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", msg.ID)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}
