package liveengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCursorTracker_VisibleHidesStaleEntries(t *testing.T) {
	tr := NewCursorTracker()
	base := time.Unix(1000, 0)

	tr.Update(1, 10, 20, 7, base)
	tr.Update(2, 30, 40, 7, base.Add(5*time.Second))

	visible := tr.Visible(base.Add(9 * time.Second))
	assert.Contains(t, visible, uint32(1))
	assert.Contains(t, visible, uint32(2))

	visible = tr.Visible(base.Add(11 * time.Second))
	assert.NotContains(t, visible, uint32(1))
	assert.Contains(t, visible, uint32(2))
}

func TestCursorTracker_EvictsOldestOverCapacity(t *testing.T) {
	tr := NewCursorTracker()
	base := time.Unix(0, 0)

	for i := uint32(0); i < CursorCacheCap+1; i++ {
		tr.Update(i, int32(i), 0, 0, base)
	}

	visible := tr.Visible(base)
	assert.Len(t, visible, CursorCacheCap)
	assert.NotContains(t, visible, uint32(0))
	assert.Contains(t, visible, uint32(CursorCacheCap))
}

func TestCursorTracker_Remove(t *testing.T) {
	tr := NewCursorTracker()
	now := time.Unix(0, 0)
	tr.Update(5, 1, 2, 0, now)
	tr.Remove(5)
	assert.NotContains(t, tr.Visible(now), uint32(5))
}

func TestCursorThrottler_SendsAgainAfterIntervalElapses(t *testing.T) {
	th := NewCursorThrottler(50 * time.Millisecond)
	base := time.Unix(0, 0)

	th.Update(1, 1, 0, base)

	state, ok := th.Update(9, 9, 0, base.Add(60*time.Millisecond))
	assert.True(t, ok, "interval elapsed, so this update sends immediately rather than buffering")
	assert.Equal(t, int32(9), state.X)
}
