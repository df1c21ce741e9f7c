package game

import "context"

// Archiver durably records finished rounds and settlements. It sits outside
// the hot path: failures are logged and never affect the round.
type Archiver interface {
	ArchiveRound(ctx context.Context, round RoundSummary) error
	ArchiveSettlement(ctx context.Context, s Settlement) error
}
