package flow

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"pokebot/internal/game"
	"pokebot/internal/menu"
	"pokebot/internal/stats"
	"pokebot/internal/store"
)

type PurchaseResult struct {
	Player    Player
	Cancelled bool
	Plan      game.PurchasePlan
	// Order is the shop order of the bought items.
	Order     []string
	Inventory game.Inventory
}

func (r PurchaseResult) Message() string {
	if r.Plan.Empty() {
		return fmt.Sprintf("%s didn't buy anything because they're too poor.", r.Player.Name)
	}
	lines := make([]string, 0, len(r.Order))
	for _, name := range r.Order {
		line := name
		if n := r.Plan.Bought[name]; n > 1 {
			line += fmt.Sprintf(" x%d", n)
		}
		lines = append(lines, line)
	}
	return fmt.Sprintf("%s bought the following for %d%s:\n%s", r.Player.Name, r.Plan.Spent, game.Currency, strings.Join(lines, "\n"))
}

// Purchase runs the ball shop. Every selected ball is bought multiple times;
// items the balance cannot cover are skipped.
func (s *Service) Purchase(ctx context.Context, inv Invocation, ui Chooser, multiple int) (PurchaseResult, error) {
	res := PurchaseResult{Player: inv.Player}
	if multiple < 1 {
		res.Cancelled = true
		return res, nil
	}
	s.record(ctx, inv, stats.ShopAccessed, stats.Info{"multiple": multiple})

	c, err := s.catalog()
	if err != nil {
		return res, err
	}
	trainer, err := s.store.Trainer(ctx, inv.ID)
	if err != nil {
		return res, err
	}
	balls := c.ShopBalls()
	options := make([]string, len(balls))
	display := make([]string, len(balls))
	for i, b := range balls {
		options[i] = fmt.Sprintf("%s %d%s **|** Inventory: %d", b.Name, b.Price, game.Currency, trainer.Inventory[b.Name])
		display[i] = b.Name
	}
	header := fmt.Sprintf("**%s** | %d%s\nSelect items to buy", inv.Name, trainer.Inventory.Money(), game.Currency)
	if multiple > 1 {
		header += fmt.Sprintf(" in multiples of %d", multiple)
	}
	header += "."

	picked, err := s.choose(ctx, ui, inv.Player, options, display, menu.Options{
		Count: menu.Unbounded, Multi: true, Header: header,
	})
	if err != nil {
		return res, err
	}
	if picked.Cancelled || len(picked.Selected) == 0 {
		res.Cancelled = true
		return res, nil
	}

	res.Plan = game.PlanPurchase(balls, picked.Selected, multiple, trainer.Inventory.Money())
	if res.Plan.Empty() {
		return res, nil
	}
	for _, b := range balls {
		if res.Plan.Bought[b.Name] > 0 {
			res.Order = append(res.Order, b.Name)
		}
	}
	res.Inventory, err = s.store.ApplyInventory(ctx, inv.ID, res.Plan.Delta)
	if err != nil {
		return res, err
	}
	s.record(ctx, inv, stats.ShopPurchased, stats.Info{"items": res.Plan.Bought, "spent": res.Plan.Spent})
	s.log.Info("shop purchase", "user_id", inv.ID, "spent", res.Plan.Spent, "items", len(res.Plan.Bought))
	return res, nil
}

type SellResult struct {
	Player    Player
	Cancelled bool
	Sold      []game.FoundPokemon
	Credit    int
	Inventory game.Inventory
}

func (r SellResult) Message() string {
	sold := append([]game.FoundPokemon(nil), r.Sold...)
	sort.SliceStable(sold, func(i, j int) bool { return sold[i].Species.Num < sold[j].Species.Num })
	counts := map[int]int{}
	for _, f := range sold {
		counts[f.Species.Num]++
	}
	var lines []string
	named := map[int]bool{}
	for _, f := range sold {
		if named[f.Species.Num] {
			continue
		}
		named[f.Species.Num] = true
		line := f.DisplayName()
		if f.Shiny {
			line += game.GlowingStar
		}
		if n := counts[f.Species.Num]; n > 1 {
			line += fmt.Sprintf(" x%d", n)
		}
		lines = append(lines, line)
	}
	return fmt.Sprintf("%s sold the following for %d%s:\n%s", r.Player.Name, r.Credit, game.Currency, strings.Join(lines, "\n"))
}

// SellHeader is the price key shown above the sell menu.
func SellHeader(name string) string {
	key := fmt.Sprintf("**%d**%s normal | **%d**%s Legendary %s | **%d**%s Mythical %s",
		game.NormalCredit, game.Currency, game.LegendaryCredit, game.Currency, game.Star,
		game.MythicalCredit, game.Currency, game.GlowingStar)
	return fmt.Sprintf("**%s**,\nSelect Pokemon to sell.\n%s", name, Wrap(key, Spacer(24), "\n"))
}

// Sell releases the selected creatures for money. Picking the same creature
// twice sells it once.
func (s *Service) Sell(ctx context.Context, inv Invocation, ui Chooser) (SellResult, error) {
	res := SellResult{Player: inv.Player}
	owned, err := s.store.OwnedPokemon(ctx, inv.ID, store.FilterAll)
	if err != nil {
		return res, err
	}
	s.record(ctx, inv, stats.ShopAccessed, stats.Info{"multiple": 0})
	if len(owned) == 0 {
		return res, game.ErrNothingToSell
	}

	options := make([]string, len(owned))
	display := make([]string, len(owned))
	for i, f := range owned {
		options[i] = creatureLine(f)
		display[i] = f.DisplayName()
	}
	picked, err := s.choose(ctx, ui, inv.Player, options, display, menu.Options{
		Count: menu.Unbounded, Multi: true, PerPage: menu.MaxPerPage, Header: SellHeader(inv.Name),
	})
	if err != nil {
		return res, err
	}
	if picked.Cancelled || len(picked.Selected) == 0 {
		res.Cancelled = true
		return res, nil
	}

	seen := map[int64]bool{}
	for _, idx := range picked.Selected {
		f := owned[idx]
		if seen[f.ID] {
			continue
		}
		seen[f.ID] = true
		res.Sold = append(res.Sold, f)
		res.Credit += game.SellCredit(f)
	}
	res.Inventory, err = s.store.Release(ctx, inv.ID, ids(res.Sold), res.Credit)
	if err != nil {
		return res, err
	}
	s.record(ctx, inv, stats.ShopSold, stats.Info{"pokemon": ids(res.Sold), "received": res.Credit})
	s.log.Info("shop sale", "user_id", inv.ID, "sold", len(res.Sold), "credit", res.Credit)
	return res, nil
}

type RewardResult struct {
	Player    Player
	Reward    game.Reward
	Inventory game.Inventory
}

func (r RewardResult) Message() string {
	item := r.Reward.Name
	if item == game.MoneyKey {
		item = "Pokédollar"
	}
	if r.Reward.Quantity != 1 {
		item += "s"
	}
	return fmt.Sprintf("%s has received %d **%s**!", r.Player.Name, r.Reward.Quantity, item)
}

// ClaimReward grants one uniformly chosen reward.
func (s *Service) ClaimReward(ctx context.Context, inv Invocation) (RewardResult, error) {
	res := RewardResult{Player: inv.Player}
	c, err := s.catalog()
	if err != nil {
		return res, err
	}
	res.Reward, err = c.RandomReward(s.rand)
	if err != nil {
		return res, err
	}
	res.Inventory, err = s.store.ApplyInventory(ctx, inv.ID, game.Inventory{res.Reward.Name: res.Reward.Quantity})
	if err != nil {
		return res, err
	}
	s.record(ctx, inv, stats.RewardCollected, stats.Info{"item": res.Reward.Name, "amount": res.Reward.Quantity})
	return res, nil
}

// InventoryLine is one row of the bag view.
type InventoryLine struct {
	Item  string
	Count int
}

type InventoryView struct {
	Player Player
	Money  int
	Lines  []InventoryLine
}

// Inventory lists held items in catalog order. Balls are always listed.
func (s *Service) Inventory(ctx context.Context, inv Invocation) (InventoryView, error) {
	view := InventoryView{Player: inv.Player}
	s.record(ctx, inv, stats.InventoryAccessed, stats.Info{})
	c, err := s.catalog()
	if err != nil {
		return view, err
	}
	trainer, err := s.store.Trainer(ctx, inv.ID)
	if err != nil {
		return view, err
	}
	view.Money = trainer.Inventory.Money()
	items := c.Items()
	if len(items) > 0 {
		items = items[1:]
	}
	for _, it := range items {
		n := trainer.Inventory[it.Name]
		if n > 0 || strings.HasSuffix(it.Name, "ball") {
			view.Lines = append(view.Lines, InventoryLine{Item: it.Name, Count: n})
		}
	}
	return view, nil
}
