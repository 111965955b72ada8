package flow

import (
	"context"
	"fmt"

	"pokebot/internal/game"
	"pokebot/internal/stats"
)

const MaxThrows = 3

var escapeQuotes = []string{
	"Oh no! The Pokémon broke free!",
	"Aww... It appeared to be caught!",
	"Aargh! Almost had it!",
	"Gah! It was so close, too!",
}

// Wild is a creature that appeared in an encounter.
type Wild struct {
	Species     game.Species
	Personality uint32
	Shiny       bool
	Color       int
	Image       string
}

// Title is the bold name with its rarity and shiny markers.
func (w Wild) Title() string {
	sparkle := ""
	if w.Shiny {
		sparkle = game.Sparkles
	}
	return fmt.Sprintf("**%s**%s%s", w.Species.DisplayName(), w.Species.Star(), sparkle)
}

// EncounterUI is the chat side of an encounter.
type EncounterUI interface {
	// Appear announces w; balls are the ball names the player holds.
	Appear(ctx context.Context, w Wild, balls []string) error
	// Throw waits for the player's next ball among balls. An empty name means
	// the player ran away. It returns ctx.Err() when ctx ends first.
	Throw(ctx context.Context, balls []string) (string, error)
	// Missed shows the text of a failed throw.
	Missed(ctx context.Context, text string) error
}

type Outcome int

const (
	Caught Outcome = iota
	Fled
	Escaped
	TimedOut
)

type EncounterResult struct {
	Wild     Wild
	Outcome  Outcome
	Ball     string
	Attempts int
	FoundID  int64
}

func (r EncounterResult) Message() string {
	switch r.Outcome {
	case Caught:
		return fmt.Sprintf("You caught %s successfully!", r.Wild.Title())
	case Fled:
		return fmt.Sprintf("You ran away from %s!", r.Wild.Title())
	case TimedOut:
		return fmt.Sprintf("%s escaped because you took too long! :stopwatch:", r.Wild.Title())
	}
	return fmt.Sprintf("%s has escaped!", r.Wild.Title())
}

// Encounter spawns a random creature for the invoking player and runs up to
// MaxThrows catch attempts. Every throw uses up the ball.
func (s *Service) Encounter(ctx context.Context, inv Invocation, ui EncounterUI) (EncounterResult, error) {
	var res EncounterResult
	c, err := s.catalog()
	if err != nil {
		return res, err
	}
	trainer, err := s.store.Trainer(ctx, inv.ID)
	if err != nil {
		return res, err
	}

	sp := c.RandomSpecies(s.rand)
	personality := s.rand.Uint32()
	shiny := game.IsShiny(inv.ID, trainer.SecretID, personality)
	if shiny && sp.FormID != 0 {
		if base, err := c.SpeciesByNum(sp.Num); err == nil {
			sp = base
		}
	}
	res.Wild = Wild{
		Species:     sp,
		Personality: personality,
		Shiny:       shiny,
		Color:       c.Color(sp),
		Image:       game.ImagePath(shiny, sp.Num, sp.FormID),
	}
	s.record(ctx, inv, stats.PokemonEncountered, stats.Info{"num": sp.Num, "shiny": shiny})

	if err := ui.Appear(ctx, res.Wild, heldBalls(trainer.Inventory)); err != nil {
		return res, err
	}
	if err := s.store.MarkSeen(ctx, inv.ID, sp.Num); err != nil {
		return res, err
	}

	for res.Attempts < MaxThrows {
		trainer, err = s.store.Trainer(ctx, inv.ID)
		if err != nil {
			return res, err
		}
		ball, err := s.throw(ctx, ui, heldBalls(trainer.Inventory))
		if IsTimeout(err) {
			res.Outcome = TimedOut
			return res, nil
		}
		if err != nil {
			return res, err
		}
		res.Attempts++
		if ball == "" {
			res.Outcome = Fled
			s.record(ctx, inv, stats.PokemonFled, stats.Info{"attempts": res.Attempts, "num": sp.Num, "shiny": shiny})
			return res, nil
		}
		s.record(ctx, inv, stats.ItemUsed, stats.Info{"item": ball})
		if _, err := s.store.ApplyInventory(ctx, inv.ID, game.Inventory{ball: -1}); err != nil {
			return res, err
		}

		roll := s.rand.IntN(100) + 1
		if game.Catch(game.BallTier(ball), sp.Legendary, sp.Mythical, roll) {
			res.Outcome = Caught
			res.Ball = ball
			res.FoundID, err = s.store.InsertCaught(ctx, game.NewCatch{
				Species:     sp,
				Ball:        ball,
				Exp:         game.StartingExp(c.AllEvolutionRules(), sp.Num),
				Owner:       inv.ID,
				Personality: personality,
				IV:          s.randomIV(),
			})
			if err != nil {
				return res, err
			}
			s.record(ctx, inv, stats.PokemonCaught, stats.Info{"attempts": res.Attempts, "ball": ball, "id": res.FoundID})
			s.log.Info("pokemon caught", "user_id", inv.ID, "num", sp.Num, "shiny", shiny, "attempts", res.Attempts)
			return res, nil
		}
		if err := ui.Missed(ctx, escapeQuotes[s.rand.IntN(len(escapeQuotes))]); err != nil {
			return res, err
		}
	}

	res.Outcome = Escaped
	s.record(ctx, inv, stats.PokemonFled, stats.Info{"attempts": res.Attempts, "num": sp.Num, "shiny": shiny})
	return res, nil
}

func (s *Service) throw(ctx context.Context, ui EncounterUI, balls []string) (string, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.opts.ThrowTimeout)
	defer cancel()
	ball, err := ui.Throw(waitCtx, balls)
	if err != nil && ctx.Err() != nil {
		return "", ctx.Err()
	}
	if ball != "" && !containsString(balls, ball) {
		return "", fmt.Errorf("ball %s: %w", ball, game.ErrNoItem)
	}
	return ball, err
}

func (s *Service) randomIV() game.Stats {
	var iv game.Stats
	for _, st := range game.AllStats {
		iv.Set(st, s.rand.IntN(game.MaxIV+1))
	}
	return iv
}

// heldBalls are the ball names with a positive count, in tier order.
func heldBalls(inv game.Inventory) []string {
	var out []string
	for _, b := range game.Balls {
		if inv[b] > 0 {
			out = append(out, b)
		}
	}
	return out
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
