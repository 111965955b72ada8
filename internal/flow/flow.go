package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pokebot/internal/game"
	"pokebot/internal/menu"
	"pokebot/internal/stats"
	"pokebot/internal/store"
)

// Store is the slice of the repository the flows need.
type Store interface {
	Catalog() (*game.Catalog, error)
	Trainer(ctx context.Context, userID int64) (game.Trainer, error)
	ApplyInventory(ctx context.Context, userID int64, delta game.Inventory) (game.Inventory, error)
	MarkSeen(ctx context.Context, userID int64, nums ...int) error
	SeenSpecies(ctx context.Context, userID int64) ([]int, error)

	OwnedPokemon(ctx context.Context, owner int64, filter store.OwnedFilter) ([]game.FoundPokemon, error)
	FoundByID(ctx context.Context, id int64) (game.FoundPokemon, error)
	InsertCaught(ctx context.Context, c game.NewCatch) (int64, error)
	SetNickname(ctx context.Context, owner, id int64, nickname string) (bool, error)
	SetSpecies(ctx context.Context, id int64, num int) error
	AddYield(ctx context.Context, id int64, y game.Yield) (int, error)
	UseEvolutionItem(ctx context.Context, owner, id int64, item string, evolveTo int) (bool, error)
	AddToParty(ctx context.Context, owner, id int64, max int) (bool, error)
	RemoveFromParty(ctx context.Context, owner, id int64) (bool, error)
	MoveInParty(ctx context.Context, owner, id int64, delta int) (bool, error)
	ClearParty(ctx context.Context, owner int64) (int64, error)
	Release(ctx context.Context, owner int64, ids []int64, credit int) (game.Inventory, error)
	SettleTrade(ctx context.Context, st store.Settlement) error
}

var _ Store = (*store.Store)(nil)

// Chooser presents a menu to one player and drives it to completion.
type Chooser interface {
	Choose(ctx context.Context, p Player, m *menu.Menu) (menu.Result, error)
}

// Confirmer asks every participant to accept prompt. It follows the
// menu.Confirm contract for its return values.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string, participants []int64) error
}

type EventLog interface {
	Log(ctx context.Context, origin stats.Origin, event string, info stats.Info) error
}

// Rand is satisfied by *math/rand/v2.Rand.
type Rand interface {
	IntN(n int) int
	Uint32() uint32
}

// Player is a chat user taking part in a flow.
type Player struct {
	ID   int64
	Name string
}

// Invocation is the player who issued a command and where it came from.
type Invocation struct {
	Player
	Origin stats.Origin
}

type Options struct {
	PartyMax      int
	ThrowTimeout  time.Duration
	PCInfoTimeout time.Duration
	PartyTimeout  time.Duration
}

func (o Options) withDefaults() Options {
	if o.PartyMax <= 0 {
		o.PartyMax = game.DefaultPartyMax
	}
	if o.ThrowTimeout <= 0 {
		o.ThrowTimeout = 20 * time.Second
	}
	if o.PCInfoTimeout <= 0 {
		o.PCInfoTimeout = 115 * time.Second
	}
	if o.PartyTimeout <= 0 {
		o.PartyTimeout = 115 * time.Second
	}
	return o
}

// Service runs the multi-step game transactions on top of a Store.
type Service struct {
	store  Store
	events EventLog
	rand   Rand
	opts   Options
	log    *slog.Logger
}

func NewService(st Store, events EventLog, r Rand, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, events: events, rand: r, opts: opts.withDefaults(), log: logger}
}

// record logs a statistics event. Failures are logged, not returned.
func (s *Service) record(ctx context.Context, inv Invocation, event string, info stats.Info) {
	if s.events == nil {
		return
	}
	if err := s.events.Log(ctx, inv.Origin, event, info); err != nil {
		s.log.Warn("record event", "event", event, "user_id", inv.ID, "err", err)
	}
}

func (s *Service) catalog() (*game.Catalog, error) {
	c, err := s.store.Catalog()
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return c, nil
}

func (s *Service) choose(ctx context.Context, ui Chooser, p Player, options, display []string, opts menu.Options) (menu.Result, error) {
	m, err := menu.New(options, display, opts)
	if err != nil {
		return menu.Result{}, err
	}
	return ui.Choose(ctx, p, m)
}

// Spacer is the divider line used in list headers.
func Spacer(n int) string {
	return strings.Repeat("▰", n)
}

// Wrap surrounds s with w on both sides, separated by sep.
func Wrap(s, w, sep string) string {
	return w + sep + s + sep + w
}

// creatureLine is the "**25.** Sparky (Pikachu)⭐✨" option line.
func creatureLine(f game.FoundPokemon) string {
	return fmt.Sprintf("**%d.** %s%s%s", f.Species.Num, f.DisplayName(), f.Species.Star(), f.Sparkle())
}

func partyMarker(f game.FoundPokemon) string {
	if f.InParty() {
		return "\\\U0001F4CD"
	}
	return ""
}

// IsTimeout reports whether err is a wait that ran out of time.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, game.ErrTimeout)
}

func ids(found []game.FoundPokemon) []int64 {
	out := make([]int64, len(found))
	for i, f := range found {
		out[i] = f.ID
	}
	return out
}

func nums(found []game.FoundPokemon) []int {
	out := make([]int, len(found))
	for i, f := range found {
		out[i] = f.Species.Num
	}
	return out
}
