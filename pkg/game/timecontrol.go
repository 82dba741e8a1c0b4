package game

import "fmt"

// TimeControl defines the time settings for a game: minutes per side plus
// the per-move increment credited after each accepted move.
type TimeControl struct {
	Minutes   int
	Increment int
}

// Key is the matchmaking bucket for this control, e.g. "10+0".
func (tc TimeControl) Key() string {
	return fmt.Sprintf("%d+%d", tc.Minutes, tc.Increment)
}

// InitialMs returns the starting clock value in milliseconds.
func (tc TimeControl) InitialMs() int64 {
	return int64(tc.Minutes) * 60 * 1000
}

// IncrementMs returns the per-move credit in milliseconds.
func (tc TimeControl) IncrementMs() int64 {
	return int64(tc.Increment) * 1000
}
