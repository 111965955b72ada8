package flow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"pokebot/internal/game"
	"pokebot/internal/menu"
	"pokebot/internal/stats"
	"pokebot/internal/store"
)

func intPtr(v int) *int { return &v }

func testCatalog(t *testing.T) *game.Catalog {
	t.Helper()
	c, err := game.NewCatalog(game.CatalogData{
		Species: []game.Species{
			{Num: 2, BaseName: "Ivysaur", Types: []string{"Grass", "Poison"}},
			{Num: 1, BaseName: "Bulbasaur", Types: []string{"Grass", "Poison"}},
			{Num: 25, BaseName: "Pikachu", Types: []string{"Electric"}, Base: game.Stats{HP: 35, Attack: 55, Defense: 40, SpAttack: 50, SpDefense: 50, Speed: 90}},
			{Num: 26, BaseName: "Raichu", Types: []string{"Electric"}},
			{Num: 93, BaseName: "Haunter", Types: []string{"Ghost", "Poison"}},
			{Num: 94, BaseName: "Gengar", Types: []string{"Ghost", "Poison"}},
			{Num: 133, BaseName: "Eevee", Types: []string{"Normal"}, Base: game.Stats{HP: 55, Attack: 55, Defense: 50, SpAttack: 45, SpDefense: 65, Speed: 55}},
			{Num: 134, BaseName: "Vaporeon", Types: []string{"Water"}},
			{Num: 135, BaseName: "Jolteon", Types: []string{"Electric"}},
			{Num: 150, BaseName: "Mewtwo", Types: []string{"Psychic"}, Legendary: true, XPYield: 306, Yield: game.Stats{SpAttack: 3}},
			{Num: 151, BaseName: "Mew", Types: []string{"Psychic"}, Mythical: true},
			{Num: 588, BaseName: "Karrablast", Types: []string{"Bug"}},
			{Num: 589, BaseName: "Escavalier", Types: []string{"Bug", "Steel"}},
			{Num: 616, BaseName: "Shelmet", Types: []string{"Bug"}},
			{Num: 617, BaseName: "Accelgor", Types: []string{"Bug"}},
		},
		Evolutions: []game.EvolutionRule{
			{ID: 1, Num: 1, Next: intPtr(2), Level: 16},
			{ID: 2, Num: 2, Prev: intPtr(1), Level: 100},
			{ID: 3, Num: 25, Next: intPtr(26), Level: 1, Item: "Thunder Stone"},
			{ID: 4, Num: 93, Next: intPtr(94), Level: 1, Trade: true},
			{ID: 5, Num: 133, Next: intPtr(134), Level: 1, Item: "Water Stone"},
			{ID: 6, Num: 133, Next: intPtr(135), Level: 1, Item: "Thunder Stone"},
			{ID: 7, Num: 588, Next: intPtr(589), Level: 1, Trade: true, TradeFor: intPtr(616)},
			{ID: 8, Num: 616, Next: intPtr(617), Level: 1, Trade: true, TradeFor: intPtr(588)},
		},
		Items: []game.Item{
			{ID: 1, Name: game.MoneyKey},
			{ID: 2, Name: "Pokeball", Price: 200},
			{ID: 3, Name: "Greatball", Price: 600},
			{ID: 4, Name: "Ultraball", Price: 1200},
			{ID: 5, Name: "Masterball"},
			{ID: 6, Name: "Water Stone"},
			{ID: 7, Name: "Thunder Stone"},
		},
		Rewards:    []game.Reward{{Name: "Pokeball", Quantity: 5}},
		TypeColors: map[string]int{"Electric": 16776960},
	})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return c
}

// fakeStore is an in-memory Store with the same ownership rules as the
// Postgres one.
type fakeStore struct {
	mu       sync.Mutex
	catalog  *game.Catalog
	trainers map[int64]game.Inventory
	found    map[int64]*game.FoundPokemon
	seen     map[int64]map[int]bool
	nextID   int64

	releaseErr error
	settled    []store.Settlement
}

func newFakeStore(t *testing.T) *fakeStore {
	return &fakeStore{
		catalog:  testCatalog(t),
		trainers: map[int64]game.Inventory{},
		found:    map[int64]*game.FoundPokemon{},
		seen:     map[int64]map[int]bool{},
	}
}

func (s *fakeStore) Catalog() (*game.Catalog, error) { return s.catalog, nil }

func (s *fakeStore) inventory(userID int64) game.Inventory {
	inv, ok := s.trainers[userID]
	if !ok {
		inv = game.Inventory{game.MoneyKey: 1000, "Pokeball": 5}
		s.trainers[userID] = inv
	}
	return inv
}

func (s *fakeStore) Trainer(_ context.Context, userID int64) (game.Trainer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return game.Trainer{UserID: userID, SecretID: 0xFFFF, Inventory: s.inventory(userID).Clone()}, nil
}

func (s *fakeStore) setInventory(userID int64, inv game.Inventory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trainers[userID] = inv
}

func (s *fakeStore) applyLocked(userID int64, delta game.Inventory) (game.Inventory, error) {
	current := s.inventory(userID)
	for k, v := range delta {
		if current[k]+v >= 0 {
			continue
		}
		if k == game.MoneyKey {
			return nil, game.ErrTooPoor
		}
		return nil, fmt.Errorf("%s: %w", k, game.ErrNoItem)
	}
	next := current.Apply(delta)
	if _, ok := next[game.MoneyKey]; !ok {
		next[game.MoneyKey] = 0
	}
	s.trainers[userID] = next
	return next.Clone(), nil
}

func (s *fakeStore) ApplyInventory(_ context.Context, userID int64, delta game.Inventory) (game.Inventory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(userID, delta)
}

func (s *fakeStore) markLocked(userID int64, nums ...int) {
	if s.seen[userID] == nil {
		s.seen[userID] = map[int]bool{}
	}
	for _, n := range nums {
		s.seen[userID][n] = true
	}
}

func (s *fakeStore) MarkSeen(_ context.Context, userID int64, nums ...int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markLocked(userID, nums...)
	return nil
}

func (s *fakeStore) SeenSpecies(_ context.Context, userID int64) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for n := range s.seen[userID] {
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

type addOpts struct {
	shiny bool
	exp   int
	party bool
}

// add gives owner a creature of species num and returns its id.
func (s *fakeStore) add(t *testing.T, owner int64, num int, o addOpts) int64 {
	t.Helper()
	sp, err := s.catalog.SpeciesByNum(num)
	if err != nil {
		t.Fatalf("species %d: %v", num, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	o2 := owner
	f := &game.FoundPokemon{ID: id, Species: sp, Ball: "Pokeball", Exp: o.exp, Owner: &o2, OriginalOwner: owner, Shiny: o.shiny}
	if o.party {
		f.PartyPosition = intPtr(s.partySizeLocked(owner))
	}
	s.found[id] = f
	return id
}

func (s *fakeStore) partySizeLocked(owner int64) int {
	n := 0
	for _, f := range s.found {
		if f.OwnedBy(owner) && f.InParty() {
			n++
		}
	}
	return n
}

func (s *fakeStore) get(id int64) game.FoundPokemon {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.found[id]
}

func (s *fakeStore) OwnedPokemon(_ context.Context, owner int64, filter store.OwnedFilter) ([]game.FoundPokemon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []game.FoundPokemon
	for _, f := range s.found {
		if !f.OwnedBy(owner) || (filter == store.FilterParty && !f.InParty()) {
			continue
		}
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.InParty() != b.InParty() {
			return a.InParty()
		}
		if a.InParty() && *a.PartyPosition != *b.PartyPosition {
			return *a.PartyPosition < *b.PartyPosition
		}
		if a.Species.Num != b.Species.Num {
			return a.Species.Num < b.Species.Num
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (s *fakeStore) FoundByID(_ context.Context, id int64) (game.FoundPokemon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.found[id]
	if !ok {
		return game.FoundPokemon{}, game.ErrNotFound
	}
	return *f, nil
}

func (s *fakeStore) InsertCaught(_ context.Context, c game.NewCatch) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	owner := c.Owner
	s.found[s.nextID] = &game.FoundPokemon{
		ID: s.nextID, Species: c.Species, Ball: c.Ball, Exp: c.Exp,
		Owner: &owner, OriginalOwner: c.Owner, Personality: c.Personality, IV: c.IV,
	}
	return s.nextID, nil
}

func (s *fakeStore) ownedLocked(owner, id int64) (*game.FoundPokemon, bool) {
	f, ok := s.found[id]
	if !ok || !f.OwnedBy(owner) {
		return nil, false
	}
	return f, true
}

func (s *fakeStore) SetNickname(_ context.Context, owner, id int64, nickname string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.ownedLocked(owner, id)
	if !ok {
		return false, nil
	}
	f.Nickname = nickname
	return true, nil
}

func (s *fakeStore) evolveLocked(f *game.FoundPokemon, num int) {
	sp, err := s.catalog.SpeciesByNum(num)
	if err == nil {
		f.Species = sp
	}
}

func (s *fakeStore) SetSpecies(_ context.Context, id int64, num int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.found[id]
	if !ok {
		return game.ErrNotFound
	}
	s.evolveLocked(f, num)
	return nil
}

func (s *fakeStore) AddYield(_ context.Context, id int64, y game.Yield) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.found[id]
	if !ok {
		return 0, game.ErrNotFound
	}
	f.Exp += y.Exp
	for _, st := range game.AllStats {
		f.EV.Set(st, f.EV.Get(st)+y.EV.Get(st))
	}
	return f.Exp, nil
}

func (s *fakeStore) UseEvolutionItem(_ context.Context, owner, id int64, item string, evolveTo int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.ownedLocked(owner, id)
	if !ok {
		return false, nil
	}
	if _, err := s.applyLocked(owner, game.Inventory{item: -1}); err != nil {
		return false, err
	}
	if evolveTo != 0 {
		s.evolveLocked(f, evolveTo)
	}
	return true, nil
}

func (s *fakeStore) AddToParty(_ context.Context, owner, id int64, max int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	size := s.partySizeLocked(owner)
	if size >= max {
		return false, game.ErrPartyFull
	}
	f, ok := s.ownedLocked(owner, id)
	if !ok || f.InParty() {
		return false, nil
	}
	f.PartyPosition = intPtr(size)
	return true, nil
}

func (s *fakeStore) compactLocked(owner int64) {
	var party []*game.FoundPokemon
	for _, f := range s.found {
		if f.OwnedBy(owner) && f.InParty() {
			party = append(party, f)
		}
	}
	sort.Slice(party, func(i, j int) bool { return *party[i].PartyPosition < *party[j].PartyPosition })
	for i, f := range party {
		f.PartyPosition = intPtr(i)
	}
}

func (s *fakeStore) RemoveFromParty(_ context.Context, owner, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.ownedLocked(owner, id)
	if !ok {
		return false, nil
	}
	if !f.InParty() {
		return false, game.ErrNotInParty
	}
	f.PartyPosition = nil
	s.compactLocked(owner)
	return true, nil
}

func (s *fakeStore) MoveInParty(_ context.Context, owner, id int64, delta int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.ownedLocked(owner, id)
	if !ok {
		return false, nil
	}
	if !f.InParty() {
		return false, game.ErrNotInParty
	}
	target := *f.PartyPosition + delta
	for _, other := range s.found {
		if other.OwnedBy(owner) && other.InParty() && *other.PartyPosition == target {
			other.PartyPosition = intPtr(*f.PartyPosition)
			f.PartyPosition = intPtr(target)
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) ClearParty(_ context.Context, owner int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, f := range s.found {
		if f.OwnedBy(owner) && f.InParty() {
			f.PartyPosition = nil
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) Release(_ context.Context, owner int64, ids []int64, credit int) (game.Inventory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.releaseErr != nil {
		return nil, s.releaseErr
	}
	for _, id := range ids {
		if _, ok := s.ownedLocked(owner, id); !ok {
			return nil, game.ErrStaleSelection
		}
	}
	for _, id := range ids {
		s.found[id].Owner = nil
		s.found[id].PartyPosition = nil
	}
	s.compactLocked(owner)
	return s.applyLocked(owner, game.Inventory{game.MoneyKey: credit})
}

func (s *fakeStore) SettleTrade(_ context.Context, st store.Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, side := range []store.TradeSide{st.A, st.B} {
		for _, id := range side.IDs {
			if _, ok := s.ownedLocked(side.UserID, id); !ok {
				return game.ErrStaleSelection
			}
		}
	}
	for id, num := range st.Evolve {
		s.evolveLocked(s.found[id], num)
	}
	for _, m := range [][2]store.TradeSide{{st.A, st.B}, {st.B, st.A}} {
		for _, id := range m[0].IDs {
			to := m[1].UserID
			f := s.found[id]
			f.Owner = &to
			f.PartyPosition = nil
			s.markLocked(to, f.Species.Num)
		}
	}
	s.compactLocked(st.A.UserID)
	s.compactLocked(st.B.UserID)
	s.settled = append(s.settled, st)
	return nil
}

// fakeEvents validates every event against its schema.
type fakeEvents struct {
	mu     sync.Mutex
	names  []string
	errors []error
}

func (e *fakeEvents) Log(_ context.Context, _ stats.Origin, event string, info stats.Info) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := stats.Validate(event, info); err != nil {
		e.errors = append(e.errors, err)
		return err
	}
	e.names = append(e.names, event)
	return nil
}

// fakeRand pops queued values and falls back to zero.
type fakeRand struct {
	ints []int
	u32  []uint32
}

func (r *fakeRand) IntN(n int) int {
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[0] % n
	r.ints = r.ints[1:]
	return v
}

func (r *fakeRand) Uint32() uint32 {
	if len(r.u32) == 0 {
		return 0
	}
	v := r.u32[0]
	r.u32 = r.u32[1:]
	return v
}

type nopView struct{}

func (nopView) Render(context.Context, menu.Frame) error { return nil }
func (nopView) Close() error                             { return nil }

// scriptChooser feeds each player's queued inputs through the real menu
// engine; a player without a script times out.
type scriptChooser struct {
	mu     sync.Mutex
	inputs map[int64][]menu.Input
	frames map[int64]menu.Frame
}

func newChooser() *scriptChooser {
	return &scriptChooser{inputs: map[int64][]menu.Input{}, frames: map[int64]menu.Frame{}}
}

func (c *scriptChooser) script(userID int64, inputs ...menu.Input) *scriptChooser {
	c.inputs[userID] = inputs
	return c
}

func (c *scriptChooser) Choose(ctx context.Context, p Player, m *menu.Menu) (menu.Result, error) {
	c.mu.Lock()
	queue := append([]menu.Input(nil), c.inputs[p.ID]...)
	c.frames[p.ID] = m.Render()
	c.mu.Unlock()
	src := menu.SourceFunc(func(context.Context) (menu.Input, error) {
		if len(queue) == 0 {
			return menu.Input{}, context.DeadlineExceeded
		}
		in := queue[0]
		queue = queue[1:]
		return in, nil
	})
	return menu.Run(ctx, m, nopView{}, src, time.Second)
}

func sel(digits ...int) []menu.Input {
	out := make([]menu.Input, 0, len(digits)+1)
	for _, d := range digits {
		out = append(out, menu.Input{Kind: menu.Select, Digit: d})
	}
	return append(out, menu.Input{Kind: menu.Done})
}

type fakeConfirmer struct {
	prompt string
	err    error
}

func (c *fakeConfirmer) Confirm(_ context.Context, prompt string, _ []int64) error {
	c.prompt = prompt
	return c.err
}

type fakeEncounterUI struct {
	throws []string
	balls  [][]string
	missed []string
	wild   Wild
}

func (u *fakeEncounterUI) Appear(_ context.Context, w Wild, _ []string) error {
	u.wild = w
	return nil
}

func (u *fakeEncounterUI) Throw(ctx context.Context, balls []string) (string, error) {
	u.balls = append(u.balls, balls)
	if len(u.throws) == 0 {
		<-ctx.Done()
		return "", ctx.Err()
	}
	b := u.throws[0]
	u.throws = u.throws[1:]
	return b, nil
}

func (u *fakeEncounterUI) Missed(_ context.Context, text string) error {
	u.missed = append(u.missed, text)
	return nil
}

type fakeInfoUI struct {
	actions  []Action
	cards    []Card
	offered  []Actions
	notified []string
}

func (u *fakeInfoUI) Next(ctx context.Context, card Card, actions Actions) (Action, error) {
	u.cards = append(u.cards, card)
	u.offered = append(u.offered, actions)
	if len(u.actions) == 0 {
		<-ctx.Done()
		return Action{}, ctx.Err()
	}
	a := u.actions[0]
	u.actions = u.actions[1:]
	return a, nil
}

func (u *fakeInfoUI) Notify(_ context.Context, text string) error {
	u.notified = append(u.notified, text)
	return nil
}

type fakePartyUI struct {
	reset bool
	text  string
}

func (u *fakePartyUI) Prompt(_ context.Context, text string) (bool, error) {
	u.text = text
	return u.reset, nil
}

var (
	ash   = Player{ID: 1, Name: "Ash"}
	misty = Player{ID: 2, Name: "Misty"}
)

func invocation(p Player) Invocation {
	return Invocation{Player: p, Origin: stats.Origin{UserID: p.ID, MessageID: 10, ChannelID: 20}}
}

type harness struct {
	store  *fakeStore
	events *fakeEvents
	rand   *fakeRand
	svc    *Service
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{store: newFakeStore(t), events: &fakeEvents{}, rand: &fakeRand{}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.svc = NewService(h.store, h.events, h.rand, opts, logger)
	t.Cleanup(func() {
		for _, err := range h.events.errors {
			t.Errorf("invalid event payload: %v", err)
		}
	})
	return h
}
