// Package rating resolves and adjusts player ratings.
package rating

import "context"

// Service is the rating collaborator a session consults when games end.
// Implementations must be safe for concurrent use.
type Service interface {
	// Lookup returns the current rating for a username.
	Lookup(ctx context.Context, username string) (int64, error)
	// Adjust credits delta points to the winner, debits them from the
	// loser, and returns the resulting ratings in that order.
	Adjust(ctx context.Context, winner, loser string, delta int64) (int64, int64, error)
}
