package matchmaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chesslive/match-server/pkg/events"
	"github.com/chesslive/match-server/pkg/game"
)

type stubPlayer struct {
	username string
	rating   int64
}

func (p *stubPlayer) Username() string       { return p.username }
func (p *stubPlayer) Rating() int64          { return p.rating }
func (p *stubPlayer) SetRating(r int64)      { p.rating = r }
func (p *stubPlayer) SendJSON(_ interface{}) {}

type factoryRecorder struct {
	pairs [][2]string
	tcs   []game.TimeControl
}

func (f *factoryRecorder) build(p1, p2 game.Participant, tc game.TimeControl) *game.Session {
	f.pairs = append(f.pairs, [2]string{p1.Username(), p2.Username()})
	f.tcs = append(f.tcs, tc)
	return game.NewSession(p1, p2, game.SessionConfig{
		TimeControl: tc,
		ClockTick:   time.Hour,
		Publisher:   events.NewPublisher(),
		Logger:      zap.NewNop(),
	})
}

func newTestMatchmaker() (*Matchmaker, *factoryRecorder) {
	rec := &factoryRecorder{}
	mm := New(game.TimeControl{Minutes: 10}, rec.build, zap.NewNop())
	return mm, rec
}

func TestEnqueuePairsTwoPlayersFIFO(t *testing.T) {
	mm, rec := newTestMatchmaker()
	tc := game.TimeControl{Minutes: 10}

	assert.Nil(t, mm.Enqueue(&stubPlayer{username: "alice"}, tc))
	assert.Equal(t, 1, mm.Waiting(tc))

	s := mm.Enqueue(&stubPlayer{username: "bob"}, tc)
	require.NotNil(t, s)
	defer s.Terminate()

	// The earlier arrival takes white.
	require.Len(t, rec.pairs, 1)
	assert.Equal(t, [2]string{"alice", "bob"}, rec.pairs[0])
	assert.Equal(t, tc, rec.tcs[0])
	assert.Equal(t, 0, mm.Waiting(tc))
}

func TestEnqueueDifferentControlsNeverPair(t *testing.T) {
	mm, rec := newTestMatchmaker()
	blitz := game.TimeControl{Minutes: 5}
	rapid := game.TimeControl{Minutes: 10}

	assert.Nil(t, mm.Enqueue(&stubPlayer{username: "alice"}, blitz))
	assert.Nil(t, mm.Enqueue(&stubPlayer{username: "bob"}, rapid))

	assert.Empty(t, rec.pairs)
	assert.Equal(t, 1, mm.Waiting(blitz))
	assert.Equal(t, 1, mm.Waiting(rapid))
}

func TestEnqueueIncrementDistinguishesControls(t *testing.T) {
	mm, rec := newTestMatchmaker()

	assert.Nil(t, mm.Enqueue(&stubPlayer{username: "alice"}, game.TimeControl{Minutes: 5}))
	assert.Nil(t, mm.Enqueue(&stubPlayer{username: "bob"}, game.TimeControl{Minutes: 5, Increment: 3}))
	assert.Empty(t, rec.pairs)
}

func TestEnqueueSameUsernameWaitsBehindItself(t *testing.T) {
	mm, rec := newTestMatchmaker()
	tc := game.TimeControl{Minutes: 10}

	assert.Nil(t, mm.Enqueue(&stubPlayer{username: "alice"}, tc))
	assert.Nil(t, mm.Enqueue(&stubPlayer{username: "alice"}, tc))

	assert.Empty(t, rec.pairs)
	assert.Equal(t, 2, mm.Waiting(tc))
}

func TestEnqueueRoomPairsOnSecondJoin(t *testing.T) {
	mm, rec := newTestMatchmaker()

	assert.Nil(t, mm.EnqueueRoom("room-1", &stubPlayer{username: "alice"}))

	s := mm.EnqueueRoom("room-1", &stubPlayer{username: "bob"})
	require.NotNil(t, s)
	defer s.Terminate()

	require.Len(t, rec.pairs, 1)
	assert.Equal(t, [2]string{"alice", "bob"}, rec.pairs[0])
	// Rooms pair with the default control.
	assert.Equal(t, game.TimeControl{Minutes: 10}, rec.tcs[0])

	// The room entry is cleared on pairing: a later join recreates it.
	assert.Nil(t, mm.EnqueueRoom("room-1", &stubPlayer{username: "carol"}))
}

func TestEnqueueRoomRejectsDuplicateOccupant(t *testing.T) {
	mm, rec := newTestMatchmaker()

	assert.Nil(t, mm.EnqueueRoom("room-1", &stubPlayer{username: "alice"}))
	assert.Nil(t, mm.EnqueueRoom("room-1", &stubPlayer{username: "alice"}))
	assert.Empty(t, rec.pairs)

	// The room still holds a single occupant, so a distinct player pairs.
	s := mm.EnqueueRoom("room-1", &stubPlayer{username: "bob"})
	require.NotNil(t, s)
	s.Terminate()
}

func TestPendingCountsAllQueues(t *testing.T) {
	mm, _ := newTestMatchmaker()

	assert.Equal(t, 0, mm.Pending())

	mm.Enqueue(&stubPlayer{username: "alice"}, game.TimeControl{Minutes: 5})
	mm.Enqueue(&stubPlayer{username: "bob"}, game.TimeControl{Minutes: 10})
	assert.Equal(t, 2, mm.Pending())

	mm.Leave("alice")
	assert.Equal(t, 1, mm.Pending())
}

func TestLeaveRemovesFromQueuesAndRooms(t *testing.T) {
	mm, rec := newTestMatchmaker()
	tc := game.TimeControl{Minutes: 10}

	mm.Enqueue(&stubPlayer{username: "alice"}, tc)
	mm.EnqueueRoom("room-1", &stubPlayer{username: "alice"})

	mm.Leave("alice")
	assert.Equal(t, 0, mm.Waiting(tc))

	// Neither the queue nor the vacated room can pair anymore.
	assert.Nil(t, mm.Enqueue(&stubPlayer{username: "bob"}, tc))
	assert.Nil(t, mm.EnqueueRoom("room-1", &stubPlayer{username: "bob"}))
	assert.Empty(t, rec.pairs)

	// Leaving again is harmless.
	mm.Leave("alice")
	mm.Leave("nobody")
}
