package flow

import (
	"context"
	"fmt"

	"pokebot/internal/game"
)

// YieldRequest names the creature that won and what it defeated.
type YieldRequest struct {
	Winner       int64
	Defeated     int
	DefeatedExp  int
	Wild         bool
	Participants int
}

type YieldAward struct {
	ID        int64      `json:"id"`
	Gained    int        `json:"gained"`
	EV        game.Stats `json:"ev"`
	Exp       int        `json:"exp"`
	Level     int        `json:"level"`
	EvolvedTo int        `json:"evolved_to,omitempty"`
}

// AwardYield credits the EV and experience yield of a defeated species to
// an owned creature, then evolves it when a plain level rule is now met.
func (s *Service) AwardYield(ctx context.Context, req YieldRequest) (YieldAward, error) {
	c, err := s.catalog()
	if err != nil {
		return YieldAward{}, err
	}
	defeated, err := c.SpeciesByNum(req.Defeated)
	if err != nil {
		return YieldAward{}, err
	}
	f, err := s.store.FoundByID(ctx, req.Winner)
	if err != nil {
		return YieldAward{}, err
	}
	if f.Owner == nil {
		return YieldAward{}, fmt.Errorf("pokemon %d: %w", f.ID, game.ErrNotFound)
	}

	y := game.YieldStats(game.YieldInput{
		Defeated:      defeated,
		DefeatedExp:   req.DefeatedExp,
		Wild:          req.Wild,
		Participants:  req.Participants,
		Owner:         *f.Owner,
		OriginalOwner: f.OriginalOwner,
	})
	exp, err := s.store.AddYield(ctx, f.ID, y)
	if err != nil {
		return YieldAward{}, err
	}
	award := YieldAward{ID: f.ID, Gained: y.Exp, EV: y.EV, Exp: exp, Level: game.LevelFromXP(exp)}

	var rules []game.EvolutionRule
	for _, r := range c.EvolutionRules(f.Species.Num) {
		if r.Item == "" && !r.Trade {
			rules = append(rules, r)
		}
	}
	if next, ok := game.CheckEvolution(rules, game.EvolutionInput{Exp: exp}); ok {
		if err := s.store.SetSpecies(ctx, f.ID, next); err != nil {
			return award, err
		}
		award.EvolvedTo = next
	}
	s.log.Info("yield awarded", "found_id", f.ID, "defeated", defeated.Num, "gained", y.Exp, "evolved_to", award.EvolvedTo)
	return award, nil
}
