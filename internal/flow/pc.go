package flow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"pokebot/internal/game"
	"pokebot/internal/menu"
	"pokebot/internal/stats"
	"pokebot/internal/store"
)

// CollectionCounts summarises a PC or pokedex by rarity.
type CollectionCounts struct {
	Total     int
	Catalog   int
	Normal    int
	Legendary int
	Mythical  int
}

func countRarity(species []game.Species, catalogTotal int) CollectionCounts {
	c := CollectionCounts{Total: len(species), Catalog: catalogTotal}
	for _, sp := range species {
		switch sp.Rarity() {
		case "mythical":
			c.Mythical++
		case "legendary":
			c.Legendary++
		default:
			c.Normal++
		}
	}
	return c
}

func (c CollectionCounts) line(verb string) string {
	return fmt.Sprintf("**%d** %s out of %d total Pokemon.\n**%d** Normal | **%d** Legendary %s | **%d** Mythical %s",
		c.Total, verb, c.Catalog, c.Normal, c.Legendary, game.Star, c.Mythical, game.GlowingStar)
}

// EmptyError reports a list view with nothing in it. Title is the header
// the chat side should print.
type EmptyError struct {
	Title string
}

func (e *EmptyError) Error() string {
	return e.Title + " __**is empty.**__"
}

// PCLines groups the PC for display: party members one per line marked with
// a pin, everything else collapsed by name with an "xN" count.
func PCLines(owned []game.FoundPokemon) []string {
	counts := map[string]int{}
	for _, f := range owned {
		if !f.InParty() {
			counts[f.DisplayName()]++
		}
	}
	var lines []string
	done := map[string]bool{}
	for _, f := range owned {
		name := f.DisplayName()
		count := 1
		if !f.InParty() {
			if done[name] {
				continue
			}
			done[name] = true
			count = counts[name]
		}
		line := fmt.Sprintf("%s **%d.** %s%s%s", partyMarker(f), f.Species.Num, name, f.Species.Star(), f.Sparkle())
		if count > 1 {
			line += fmt.Sprintf(" x%d", count)
		}
		lines = append(lines, line)
	}
	return lines
}

// PC shows owner's collection in a read-only menu.
func (s *Service) PC(ctx context.Context, inv Invocation, owner Player, ui Chooser) error {
	s.record(ctx, inv, stats.PCAccessed, stats.Info{"query": "", "query_type": "list"})
	c, err := s.catalog()
	if err != nil {
		return err
	}
	owned, err := s.store.OwnedPokemon(ctx, owner.ID, store.FilterAll)
	if err != nil {
		return err
	}
	title := fmt.Sprintf("__**%s's PC**__", owner.Name)
	if len(owned) == 0 {
		return &EmptyError{Title: title}
	}
	species := make([]game.Species, len(owned))
	for i, f := range owned {
		species[i] = f.Species
	}
	counts := countRarity(species, c.TotalSpecies())
	key := fmt.Sprintf("%s Click to go back a page.\n%s Click to go forward a page.\n%s Click to exit your pc.",
		menu.EmojiBack, menu.EmojiForward, menu.EmojiCancel)
	remaining := fmt.Sprintf(" %d left to go!", counts.Catalog-counts.Total)
	countLine := strings.Replace(counts.line("collected"), "\n", remaining+"\n", 1)
	header := strings.Join([]string{
		title,
		"Use **!pokedex** to see which Pokémon you've encountered!\nUse **!pokedex** ``#`` to take a closer look at a Pokémon!",
		key,
		Wrap(countLine, Spacer(21), "\n"),
	}, "\n")

	_, err = s.choose(ctx, ui, inv.Player, PCLines(owned), nil, menu.Options{PerPage: menu.MaxPerPage, Header: header})
	return err
}

// Query types recorded for PC and pokedex lookups.
const (
	QueryByNum       = "by_num"
	QueryByStatistic = "by_statistic"
	QueryByFuzzy     = "by_fuzzy"
)

// FindOwned resolves a PC query against the player's creatures: a dex
// number, a stat comparison such as "speed > 100", or a fuzzy name.
func (s *Service) FindOwned(ctx context.Context, userID int64, query string) ([]game.FoundPokemon, string, error) {
	query = strings.TrimSpace(query)
	owned, err := s.store.OwnedPokemon(ctx, userID, store.FilterAll)
	if err != nil {
		return nil, "", err
	}
	var out []game.FoundPokemon
	switch {
	case isNumber(query):
		num, _ := strconv.Atoi(query)
		for _, f := range owned {
			if f.Species.Num == num {
				out = append(out, f)
			}
		}
		if len(out) == 0 {
			return nil, QueryByNum, fmt.Errorf("pokemon %s: %w", query, game.ErrNotFound)
		}
		return out, QueryByNum, nil
	case game.IsStatQuery(query):
		q, err := game.ParseStatQuery(query)
		if err != nil {
			return nil, QueryByStatistic, err
		}
		for _, f := range owned {
			if q.Match(f.Stats()) {
				out = append(out, f)
			}
		}
		if len(out) == 0 {
			return nil, QueryByStatistic, fmt.Errorf("pokemon with `%s`: %w", q, game.ErrNotFound)
		}
		return out, QueryByStatistic, nil
	}

	c, err := s.catalog()
	if err != nil {
		return nil, QueryByFuzzy, err
	}
	species := make([]game.Species, len(owned))
	for i, f := range owned {
		species[i] = f.Species
	}
	match, err := c.MatchAmong(query, species)
	if err != nil {
		return nil, QueryByFuzzy, err
	}
	for _, f := range owned {
		if f.Species.Num == match.Num {
			out = append(out, f)
		}
	}
	return out, QueryByFuzzy, nil
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Card is everything the PC info view shows about one creature.
type Card struct {
	Found       game.FoundPokemon
	Level       int
	ExpCurrent  int
	ExpNeeded   int
	Bar         string
	Stats       game.Stats
	Evolutions  string
	Color       int
	Image       string
	PartyLength int
}

func (s *Service) card(c *game.Catalog, f game.FoundPokemon, partyLength int) Card {
	cur, needed := game.ExpProgress(f.Exp)
	return Card{
		Found:       f,
		Level:       f.Level(),
		ExpCurrent:  cur,
		ExpNeeded:   needed,
		Bar:         game.ExpBar(f.Exp),
		Stats:       f.Stats(),
		Evolutions:  c.EvolutionChain(f.Species.Num),
		Color:       c.Color(f.Species),
		Image:       game.ImagePath(f.Shiny, f.Species.Num, 0),
		PartyLength: partyLength,
	}
}

type ActionKind int

const (
	ActionStop ActionKind = iota
	ActionRename
	ActionAddParty
	ActionRemoveParty
	ActionMoveUp
	ActionMoveDown
	ActionUseItem
)

// Action is a request made from the PC info view. Nickname is set for
// ActionRename and Item for ActionUseItem.
type Action struct {
	Kind     ActionKind
	Nickname string
	Item     string
}

// Actions are the choices the PC info view may offer.
type Actions struct {
	Kinds []ActionKind
	// Items are held evolution items usable on the creature.
	Items []string
}

func (a Actions) Has(k ActionKind) bool {
	for _, x := range a.Kinds {
		if x == k {
			return true
		}
	}
	return false
}

// InfoUI renders the PC info card and waits for the player's action. It
// returns ctx.Err() when ctx ends first.
type InfoUI interface {
	Next(ctx context.Context, card Card, actions Actions) (Action, error)
	Notify(ctx context.Context, text string) error
}

func (s *Service) actionsFor(c *game.Catalog, card Card, held game.Inventory) Actions {
	a := Actions{Kinds: []ActionKind{ActionRename}}
	for item := range c.ItemEvolutions(card.Found.Species.Num) {
		if held[item] > 0 {
			a.Items = append(a.Items, item)
		}
	}
	sort.Strings(a.Items)
	if len(a.Items) > 0 {
		a.Kinds = append(a.Kinds, ActionUseItem)
	}
	if pos := card.Found.PartyPosition; pos != nil {
		a.Kinds = append(a.Kinds, ActionRemoveParty)
		if *pos+1 < card.PartyLength {
			a.Kinds = append(a.Kinds, ActionMoveUp)
		}
		if *pos > 0 {
			a.Kinds = append(a.Kinds, ActionMoveDown)
		}
	} else {
		a.Kinds = append(a.Kinds, ActionAddParty)
	}
	a.Kinds = append(a.Kinds, ActionStop)
	return a
}

// PCInfo resolves query, lets the player pick when several creatures match,
// then keeps the info card open for actions until the player stops, an
// action ends the view, or the wait times out.
func (s *Service) PCInfo(ctx context.Context, inv Invocation, query string, chooser Chooser, ui InfoUI) error {
	found, queryType, err := s.FindOwned(ctx, inv.ID, query)
	logged := any(query)
	if n, convErr := strconv.Atoi(strings.TrimSpace(query)); convErr == nil && queryType == QueryByNum {
		logged = n
	}
	s.record(ctx, inv, stats.PCAccessed, stats.Info{"query": logged, "query_type": queryType})
	if err != nil {
		return err
	}

	chosen := found[0]
	if len(found) > 1 {
		options := make([]string, len(found))
		for i, f := range found {
			options[i] = fmt.Sprintf("%s **%d.** %s%s", partyMarker(f), f.Species.Num, f.DisplayName(), f.Species.Star())
		}
		picked, err := s.choose(ctx, chooser, inv.Player, options, nil, menu.Options{
			Count: 1, Header: fmt.Sprintf("__**%s's PC**__", inv.Name),
		})
		if err != nil {
			return err
		}
		if picked.Cancelled || len(picked.Selected) == 0 {
			return nil
		}
		chosen = found[picked.Selected[0]]
	}

	for {
		done, err := s.infoStep(ctx, inv, chosen.ID, ui)
		if err != nil || done {
			return err
		}
	}
}

func (s *Service) infoStep(ctx context.Context, inv Invocation, id int64, ui InfoUI) (bool, error) {
	c, err := s.catalog()
	if err != nil {
		return true, err
	}
	f, err := s.store.FoundByID(ctx, id)
	if err != nil {
		return true, err
	}
	if !f.OwnedBy(inv.ID) {
		return true, game.ErrStaleSelection
	}
	party, err := s.store.OwnedPokemon(ctx, inv.ID, store.FilterParty)
	if err != nil {
		return true, err
	}
	trainer, err := s.store.Trainer(ctx, inv.ID)
	if err != nil {
		return true, err
	}
	card := s.card(c, f, len(party))
	actions := s.actionsFor(c, card, trainer.Inventory)

	waitCtx, cancel := context.WithTimeout(ctx, s.opts.PCInfoTimeout)
	act, err := ui.Next(waitCtx, card, actions)
	cancel()
	if err != nil {
		if ctx.Err() == nil && IsTimeout(err) {
			return true, nil
		}
		return true, err
	}
	if !actions.Has(act.Kind) {
		return true, nil
	}

	switch act.Kind {
	case ActionRename:
		nickname := strings.TrimSpace(act.Nickname)
		if strings.EqualFold(nickname, f.Species.BaseName) {
			nickname = ""
		}
		if _, err := s.store.SetNickname(ctx, inv.ID, f.ID, nickname); err != nil {
			return true, err
		}
		return true, nil
	case ActionAddParty:
		_, err := s.store.AddToParty(ctx, inv.ID, f.ID, s.opts.PartyMax)
		if errors.Is(err, game.ErrPartyFull) {
			return true, ui.Notify(ctx, "Your party is full!")
		}
		return false, err
	case ActionRemoveParty:
		_, err := s.store.RemoveFromParty(ctx, inv.ID, f.ID)
		if errors.Is(err, game.ErrNotInParty) {
			return true, ui.Notify(ctx, "This Pokemon is not in your party!")
		}
		return false, err
	case ActionMoveUp:
		_, err := s.store.MoveInParty(ctx, inv.ID, f.ID, 1)
		return false, err
	case ActionMoveDown:
		_, err := s.store.MoveInParty(ctx, inv.ID, f.ID, -1)
		return false, err
	case ActionUseItem:
		return true, s.useItem(ctx, inv, c, f, act.Item)
	}
	return true, nil
}

// useItem consumes item on f and evolves it when one of the rules keyed on
// that item fires.
func (s *Service) useItem(ctx context.Context, inv Invocation, c *game.Catalog, f game.FoundPokemon, item string) error {
	if _, ok := c.ItemEvolutions(f.Species.Num)[item]; !ok {
		return fmt.Errorf("item %s: %w", item, game.ErrNoItem)
	}
	var rules []game.EvolutionRule
	for _, r := range c.EvolutionRules(f.Species.Num) {
		if r.Item == item {
			rules = append(rules, r)
		}
	}
	next, ok := game.CheckEvolution(rules, game.EvolutionInput{Exp: f.Exp, HeldItem: item})
	if !ok {
		next = 0
	}
	if _, err := s.store.UseEvolutionItem(ctx, inv.ID, f.ID, item, next); err != nil {
		return err
	}
	s.record(ctx, inv, stats.ItemUsed, stats.Info{"item": item})
	if next != 0 {
		s.log.Info("item evolution", "user_id", inv.ID, "found_id", f.ID, "from", f.Species.Num, "to", next)
	}
	return nil
}

// PartyUI shows the party text and waits for the player to reset it (true)
// or close it (false).
type PartyUI interface {
	Prompt(ctx context.Context, text string) (bool, error)
}

// PartyText is the party listing with its header.
func PartyText(name string, party []game.FoundPokemon) string {
	lines := make([]string, len(party))
	for i, f := range party {
		lines[i] = fmt.Sprintf("%d. %s%s", i+1, f.DisplayName(), f.Species.Star())
	}
	header := strings.Join([]string{
		fmt.Sprintf("__**%s's Party**__", name),
		Spacer(24),
		"Use **!pc info ``name``** to see statistics for a specific Pokémon.",
		Spacer(24),
		menu.EmojiCancel + " Click to exit your party.",
	}, "\n")
	return header + "\n\n" + strings.Join(lines, "\n")
}

// Party shows the party and clears it when the player asks for a reset.
func (s *Service) Party(ctx context.Context, inv Invocation, ui PartyUI) error {
	party, err := s.store.OwnedPokemon(ctx, inv.ID, store.FilterParty)
	if err != nil {
		return err
	}
	s.record(ctx, inv, stats.PartyAccessed, stats.Info{})
	if len(party) == 0 {
		return &EmptyError{Title: fmt.Sprintf("__**%s's Party**__", inv.Name)}
	}
	waitCtx, cancel := context.WithTimeout(ctx, s.opts.PartyTimeout)
	reset, err := ui.Prompt(waitCtx, PartyText(inv.Name, party))
	cancel()
	if err != nil {
		if ctx.Err() == nil && IsTimeout(err) {
			return nil
		}
		return err
	}
	if !reset {
		return nil
	}
	n, err := s.store.ClearParty(ctx, inv.ID)
	if err != nil {
		return err
	}
	s.log.Info("party reset", "user_id", inv.ID, "cleared", n)
	return nil
}

// Pokedex lists the species owner has encountered in a read-only menu.
func (s *Service) Pokedex(ctx context.Context, inv Invocation, owner Player, ui Chooser) error {
	s.record(ctx, inv, stats.PokedexAccessed, stats.Info{"query": "", "query_type": "list", "shiny": false})
	c, err := s.catalog()
	if err != nil {
		return err
	}
	seen, err := s.store.SeenSpecies(ctx, owner.ID)
	if err != nil {
		return err
	}
	title := fmt.Sprintf("__**%s's Pokedex**__", owner.Name)
	var species []game.Species
	for _, num := range seen {
		sp, err := c.SpeciesByNum(num)
		if err != nil {
			continue
		}
		species = append(species, sp)
	}
	if len(species) == 0 {
		return &EmptyError{Title: title}
	}
	counts := countRarity(species, c.TotalSpecies())
	key := fmt.Sprintf("%s Click to go back a page.\n%s Click to go forward a page.\n%s Click to exit your pokedex.",
		menu.EmojiBack, menu.EmojiForward, menu.EmojiCancel)
	header := strings.Join([]string{
		title,
		"Use **!pc** to see which Pokémon you own!\nUse **!pokedex** ``#`` to take a closer look at a Pokémon!",
		key,
		Wrap(counts.line("encountered"), Spacer(22), "\n"),
	}, "\n")
	options := make([]string, len(species))
	for i, sp := range species {
		options[i] = fmt.Sprintf("**%d.** %s%s", sp.Num, sp.BaseName, sp.Star())
	}
	_, err = s.choose(ctx, ui, inv.Player, options, nil, menu.Options{PerPage: menu.MaxPerPage, Header: header})
	return err
}

// DexEntry is one pokedex page.
type DexEntry struct {
	Species    game.Species
	Evolutions string
	Color      int
	Image      string
	Shiny      bool
}

// PokedexEntry looks a species up by dex number (1..total) or fuzzy name.
func (s *Service) PokedexEntry(ctx context.Context, inv Invocation, query string, shiny bool) (DexEntry, error) {
	query = strings.TrimSpace(query)
	c, err := s.catalog()
	if err != nil {
		return DexEntry{}, err
	}
	var sp game.Species
	if n, convErr := strconv.Atoi(query); convErr == nil {
		s.record(ctx, inv, stats.PokedexAccessed, stats.Info{"query": n, "query_type": QueryByNum, "shiny": shiny})
		if n <= 0 || n > c.TotalSpecies() {
			return DexEntry{}, fmt.Errorf("pokemon %d: %w", n, game.ErrNotFound)
		}
		sp, err = c.SpeciesByNum(n)
	} else {
		s.record(ctx, inv, stats.PokedexAccessed, stats.Info{"query": query, "query_type": QueryByFuzzy, "shiny": shiny})
		sp, err = c.SpeciesByName(query)
	}
	if err != nil {
		return DexEntry{}, err
	}
	return DexEntry{
		Species:    sp,
		Evolutions: c.EvolutionChain(sp.Num),
		Color:      c.Color(sp),
		Image:      game.ImagePath(shiny, sp.Num, 0),
		Shiny:      shiny,
	}, nil
}
