package flow

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"pokebot/internal/game"
	"pokebot/internal/menu"
	"pokebot/internal/stats"
	"pokebot/internal/store"
)

// Offer is one side of a trade as selected.
type Offer struct {
	Player Player
	Found  []game.FoundPokemon
}

func (o Offer) names() string {
	if len(o.Found) == 0 {
		return "None"
	}
	names := make([]string, len(o.Found))
	for i, f := range o.Found {
		names[i] = f.DisplayName()
	}
	return strings.Join(names, "**,** ")
}

type TradeResult struct {
	A, B Offer
	// Evolved maps found id to the species num it evolved into.
	Evolved map[int64]int
}

func (r TradeResult) Message() string {
	return fmt.Sprintf("Completed trade between **%s** and **%s**.", r.A.Player.Name, r.B.Player.Name)
}

// TradePrompt is the confirmation text shown once both offers are in.
func TradePrompt(a, b Offer) string {
	return fmt.Sprintf("**%s**'s offer: %s\n**%s**'s offer: %s\nDo you accept?", a.Player.Name, a.names(), b.Player.Name, b.names())
}

type tradeChoice struct {
	owned  []game.FoundPokemon
	result menu.Result
}

// Trade lets inv's player and partner pick offers at the same time, has both
// confirm, then swaps ownership in one transaction. Creatures whose trade
// evolution fires arrive evolved.
func (s *Service) Trade(ctx context.Context, inv Invocation, partner Player, ui Chooser, confirm Confirmer) (TradeResult, error) {
	res := TradeResult{A: Offer{Player: inv.Player}, B: Offer{Player: partner}}
	if inv.ID == partner.ID {
		return res, game.ErrSelfTrade
	}

	var choices [2]tradeChoice
	players := [2]Player{inv.Player, partner}
	g, gctx := errgroup.WithContext(ctx)
	for i := range players {
		g.Go(func() error {
			me, other := players[i], players[1-i]
			owned, err := s.store.OwnedPokemon(gctx, me.ID, store.FilterAll)
			if err != nil {
				return err
			}
			options := make([]string, len(owned))
			display := make([]string, len(owned))
			for j, f := range owned {
				options[j] = creatureLine(f)
				display[j] = f.DisplayName() + f.Sparkle()
			}
			header := fmt.Sprintf("**%s**,\nSelect the pokemon you wish to trade with **%s**", me.Name, other.Name)
			picked, err := s.choose(gctx, ui, me, options, display, menu.Options{
				Count: menu.Unbounded, Multi: true, AllowNone: true, Header: header,
			})
			if err != nil {
				return err
			}
			choices[i] = tradeChoice{owned: owned, result: picked}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	switch {
	case choices[0].result.Cancelled && choices[1].result.Cancelled:
		return res, game.ErrNoResponse
	case choices[0].result.Cancelled:
		return res, &game.CancelledError{UserID: inv.ID}
	case choices[1].result.Cancelled:
		return res, &game.CancelledError{UserID: partner.ID}
	}

	offers := [2]*Offer{&res.A, &res.B}
	for i, c := range choices {
		picked := map[int]bool{}
		for _, idx := range c.result.Selected {
			f := c.owned[idx]
			if picked[idx] {
				return res, &game.OverSelectedError{UserID: players[i].ID, Name: f.DisplayName()}
			}
			picked[idx] = true
			offers[i].Found = append(offers[i].Found, f)
		}
	}

	if err := confirm.Confirm(ctx, TradePrompt(res.A, res.B), []int64{inv.ID, partner.ID}); err != nil {
		return res, err
	}

	c, err := s.catalog()
	if err != nil {
		return res, err
	}
	res.Evolved = map[int64]int{}
	for i, o := range offers {
		incoming := nums(offers[1-i].Found)
		for _, f := range o.Found {
			next, ok := game.CheckEvolution(c.EvolutionRules(f.Species.Num), game.EvolutionInput{
				Exp:      f.Exp,
				HeldItem: f.Item,
				Trading:  true,
				Offered:  incoming,
			})
			if ok {
				res.Evolved[f.ID] = next
			}
		}
	}

	err = s.store.SettleTrade(ctx, store.Settlement{
		A:      store.TradeSide{UserID: inv.ID, IDs: ids(res.A.Found)},
		B:      store.TradeSide{UserID: partner.ID, IDs: ids(res.B.Found)},
		Evolve: res.Evolved,
	})
	if err != nil {
		return res, err
	}
	s.record(ctx, inv, stats.SuccessfulTrade, stats.Info{
		"other_id":    partner.ID,
		"offer":       ids(res.A.Found),
		"other_offer": ids(res.B.Found),
	})
	s.log.Info("trade settled", "user_id", inv.ID, "partner_id", partner.ID,
		"given", len(res.A.Found), "received", len(res.B.Found), "evolved", len(res.Evolved))
	return res, nil
}
