package game

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tickRecorder struct {
	mu    sync.Mutex
	ticks map[string]int
	total map[string]int64
}

func newTickRecorder() *tickRecorder {
	return &tickRecorder{ticks: make(map[string]int), total: make(map[string]int64)}
}

func (r *tickRecorder) record(username string, elapsedMs int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks[username]++
	r.total[username] += elapsedMs
}

func (r *tickRecorder) count(username string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ticks[username]
}

func (r *tickRecorder) totalElapsed(username string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total[username]
}

func TestClockTicksWithWallClockElapsed(t *testing.T) {
	rec := newTickRecorder()
	c := NewClock(10*time.Millisecond, rec.record)

	c.Start("alice")
	time.Sleep(100 * time.Millisecond)
	c.Stop()

	require.GreaterOrEqual(t, rec.count("alice"), 3)
	// Elapsed is recomputed from wall-clock time, so the total tracks real
	// time rather than tick count times interval.
	assert.GreaterOrEqual(t, rec.totalElapsed("alice"), int64(50))
}

func TestClockStartCancelsPreviousCountdown(t *testing.T) {
	rec := newTickRecorder()
	c := NewClock(10*time.Millisecond, rec.record)
	defer c.Stop()

	c.Start("alice")
	time.Sleep(50 * time.Millisecond)
	c.Start("bob")

	aliceAfterSwitch := rec.count("alice")
	time.Sleep(100 * time.Millisecond)

	// Only one countdown runs at a time.
	assert.LessOrEqual(t, rec.count("alice"), aliceAfterSwitch+1)
	assert.GreaterOrEqual(t, rec.count("bob"), 3)
}

func TestClockStopHaltsTicks(t *testing.T) {
	rec := newTickRecorder()
	c := NewClock(10*time.Millisecond, rec.record)

	c.Start("alice")
	time.Sleep(50 * time.Millisecond)
	c.Stop()
	assert.False(t, c.Running())

	settled := rec.count("alice")
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, rec.count("alice"), settled+1)
}

func TestClockStopIsIdempotent(t *testing.T) {
	c := NewClock(10*time.Millisecond, func(string, int64) {})

	c.Stop()
	c.Start("alice")
	c.Stop()
	c.Stop()

	assert.False(t, c.Running())
}

func TestClockRestartAfterStop(t *testing.T) {
	rec := newTickRecorder()
	c := NewClock(10*time.Millisecond, rec.record)
	defer c.Stop()

	c.Start("alice")
	c.Stop()
	c.Start("bob")
	assert.True(t, c.Running())

	time.Sleep(50 * time.Millisecond)
	assert.GreaterOrEqual(t, rec.count("bob"), 1)
}
