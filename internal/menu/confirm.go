package menu

import (
	"context"
	"errors"
	"time"

	"pokebot/internal/game"
)

// Vote is one participant's reaction on a confirmation prompt.
type Vote struct {
	UserID int64
	Accept bool
}

type VoteSource interface {
	NextVote(ctx context.Context) (Vote, error)
}

// Confirm waits until every participant accepts, anyone declines, or timeout
// passes. It returns nil on unanimous acceptance, game.ErrNoResponse when
// nobody voted, and a *game.DeclinedError naming the first participant who
// declined or never accepted. Votes from anyone else are ignored and the
// latest vote of a participant wins.
func Confirm(ctx context.Context, participants []int64, src VoteSource, timeout time.Duration) error {
	if len(participants) == 0 {
		return nil
	}
	waitCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	votes := make(map[int64]bool, len(participants))
	isParticipant := make(map[int64]bool, len(participants))
	for _, p := range participants {
		isParticipant[p] = true
	}

	for len(votes) < len(participants) || !allAccepted(votes) {
		v, err := src.NextVote(waitCtx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				break
			}
			return err
		}
		if !isParticipant[v.UserID] {
			continue
		}
		votes[v.UserID] = v.Accept
		if !v.Accept {
			return &game.DeclinedError{UserID: v.UserID}
		}
	}

	if len(votes) == 0 {
		return game.ErrNoResponse
	}
	for _, p := range participants {
		if !votes[p] {
			return &game.DeclinedError{UserID: p}
		}
	}
	return nil
}

func allAccepted(votes map[int64]bool) bool {
	for _, ok := range votes {
		if !ok {
			return false
		}
	}
	return true
}
