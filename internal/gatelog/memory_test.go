package gatelog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLastEventIgnoresInsertOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Unix(1000, 0).UTC()

	// Newest event appended first; the reader must sort by timestamp.
	require.NoError(t, m.Append(ctx, EntryLog{ID: "b", StudentID: "CS-101", Timestamp: base.Add(time.Hour), Type: EventExit}, ""))
	require.NoError(t, m.Append(ctx, EntryLog{ID: "a", StudentID: "cs-101", Timestamp: base, Type: EventEntry}, "b"))

	last, err := m.LastEventFor(ctx, "CS-101")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "b", last.ID)
}

func TestMemoryAppendChecksLastID(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Unix(1000, 0).UTC()

	require.NoError(t, m.Append(ctx, EntryLog{ID: "a", StudentID: "CS-101", Timestamp: base, Type: EventEntry}, ""))

	err := m.Append(ctx, EntryLog{ID: "b", StudentID: "CS-101", Timestamp: base.Add(time.Minute), Type: EventExit}, "")
	assert.ErrorIs(t, err, ErrStaleHistory)

	require.NoError(t, m.Append(ctx, EntryLog{ID: "b", StudentID: "CS-101", Timestamp: base.Add(time.Minute), Type: EventExit}, "a"))
}

func TestMemoryListFilters(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Unix(1000, 0).UTC()

	require.NoError(t, m.Append(ctx, EntryLog{ID: "a", StudentID: "CS-101", Branch: "Computer", Timestamp: base, Type: EventEntry}, ""))
	require.NoError(t, m.Append(ctx, EntryLog{ID: "b", StudentID: "ME-200", Branch: "Mechanical", Timestamp: base.Add(time.Minute), Type: EventEntry}, ""))
	require.NoError(t, m.Append(ctx, EntryLog{ID: "c", StudentID: "CS-101", Branch: "Computer", Timestamp: base.Add(2 * time.Minute), Type: EventExit}, "a"))

	t.Run("by student newest first", func(t *testing.T) {
		logs, err := m.List(ctx, Filter{StudentID: "cs-101"})
		require.NoError(t, err)
		require.Len(t, logs, 2)
		assert.Equal(t, "c", logs[0].ID)
		assert.Equal(t, "a", logs[1].ID)
	})

	t.Run("by branch", func(t *testing.T) {
		logs, err := m.List(ctx, Filter{Branch: "Mechanical"})
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, "b", logs[0].ID)
	})

	t.Run("by type", func(t *testing.T) {
		logs, err := m.List(ctx, Filter{Type: EventExit})
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, "c", logs[0].ID)
	})

	t.Run("limit and offset", func(t *testing.T) {
		logs, err := m.List(ctx, Filter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, "b", logs[0].ID)
	})
}
