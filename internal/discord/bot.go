package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"pokebot/internal/cooldown"
	"pokebot/internal/flow"
)

// Game is the set of flows the chat commands drive.
type Game interface {
	Encounter(ctx context.Context, inv flow.Invocation, ui flow.EncounterUI) (flow.EncounterResult, error)
	PC(ctx context.Context, inv flow.Invocation, owner flow.Player, ui flow.Chooser) error
	PCInfo(ctx context.Context, inv flow.Invocation, query string, chooser flow.Chooser, ui flow.InfoUI) error
	Party(ctx context.Context, inv flow.Invocation, ui flow.PartyUI) error
	Pokedex(ctx context.Context, inv flow.Invocation, owner flow.Player, ui flow.Chooser) error
	PokedexEntry(ctx context.Context, inv flow.Invocation, query string, shiny bool) (flow.DexEntry, error)
	Purchase(ctx context.Context, inv flow.Invocation, ui flow.Chooser, multiple int) (flow.PurchaseResult, error)
	Sell(ctx context.Context, inv flow.Invocation, ui flow.Chooser) (flow.SellResult, error)
	ClaimReward(ctx context.Context, inv flow.Invocation) (flow.RewardResult, error)
	Inventory(ctx context.Context, inv flow.Invocation) (flow.InventoryView, error)
	Trade(ctx context.Context, inv flow.Invocation, partner flow.Player, ui flow.Chooser, confirm flow.Confirmer) (flow.TradeResult, error)
}

var _ Game = (*flow.Service)(nil)

// PlonkStore manages the per-guild blacklist.
type PlonkStore interface {
	Plonks
	Plonk(ctx context.Context, guildID, userID int64) error
	Unplonk(ctx context.Context, guildID, userID int64) (bool, error)
}

type Options struct {
	Prefix           string
	Channel          string
	Owners           []string
	ImageRoot        string
	MenuTimeout      time.Duration
	ConfirmTimeout   time.Duration
	DeleteAfter      time.Duration
	EncounterCooling time.Duration
	RewardCooling    time.Duration
}

type Bot struct {
	gateway *discordgo.Session
	api     Session
	router  *Router
	bus     *Bus
	game    Game
	plonks  PlonkStore
	limiter cooldown.Limiter
	opts    Options
	log     *slog.Logger

	mu      sync.RWMutex
	ctx     context.Context
	selfID  string
	started time.Time
	now     func() time.Time
}

// New wires the bot onto a gateway session. Call Run to connect.
func New(dg *discordgo.Session, g Game, plonks PlonkStore, limiter cooldown.Limiter, opts Options, logger *slog.Logger) *Bot {
	b := newBot(stateSession{dg}, g, plonks, limiter, opts, logger)
	b.gateway = dg
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsDirectMessageReactions |
		discordgo.IntentsMessageContent
	dg.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) { b.onReady(r) })
	dg.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) { b.onMessage(m.Message) })
	dg.AddHandler(func(_ *discordgo.Session, r *discordgo.MessageReactionAdd) { b.onReaction(r.MessageReaction) })
	return b
}

func newBot(api Session, g Game, plonks PlonkStore, limiter cooldown.Limiter, opts Options, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	if limiter == nil {
		limiter = cooldown.NewLocal()
	}
	b := &Bot{
		api:     api,
		bus:     NewBus(),
		game:    g,
		plonks:  plonks,
		limiter: limiter,
		opts:    opts,
		log:     logger,
		ctx:     context.Background(),
		started: time.Now(),
		now:     time.Now,
	}
	b.router = NewRouter(api, plonks, limiter, RouterConfig{
		Prefix:      opts.Prefix,
		Channel:     opts.Channel,
		Owners:      opts.Owners,
		DeleteAfter: opts.DeleteAfter,
	}, logger)
	b.router.Register(b.commands()...)
	return b
}

// Run connects to the gateway and blocks until ctx ends.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()
	if err := b.gateway.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	b.log.Info("gateway connected")
	<-ctx.Done()
	b.log.Info("gateway closing")
	return b.gateway.Close()
}

func (b *Bot) baseContext() context.Context {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ctx
}

func (b *Bot) onReady(r *discordgo.Ready) {
	b.mu.Lock()
	b.selfID = r.User.ID
	b.started = b.now()
	b.mu.Unlock()
	b.router.SetSelf(r.User.ID)
	b.log.Info("ready", "user", r.User.Username, "guilds", len(r.Guilds))
}

// onMessage feeds waiting menus or runs a command, never both.
func (b *Bot) onMessage(m *discordgo.Message) {
	if m == nil || m.Author == nil || m.Author.Bot {
		return
	}
	if _, _, ok := b.router.Parse(m.Content); !ok {
		b.bus.Publish(Event{Message: m})
		return
	}
	b.router.Dispatch(b.baseContext(), m)
}

func (b *Bot) onReaction(r *discordgo.MessageReaction) {
	b.mu.RLock()
	self := b.selfID
	b.mu.RUnlock()
	if r == nil || r.UserID == self {
		return
	}
	b.bus.Publish(Event{Reaction: r})
}

func (b *Bot) uptime() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.now().Sub(b.started)
}

func (b *Bot) ui(req *Request) *ui {
	return &ui{
		req:            req,
		bus:            b.bus,
		sprites:        Sprites{Root: b.opts.ImageRoot},
		menuTimeout:    b.opts.MenuTimeout,
		confirmTimeout: b.opts.ConfirmTimeout,
	}
}

// stateSession answers channel lookups from the gateway cache when it can.
type stateSession struct {
	*discordgo.Session
}

func (s stateSession) Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if s.State != nil {
		if ch, err := s.State.Channel(channelID); err == nil {
			return ch, nil
		}
	}
	return s.Session.Channel(channelID, options...)
}

func (s stateSession) GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error) {
	if s.State != nil {
		if g, err := s.State.Guild(guildID); err == nil && len(g.Channels) > 0 {
			return g.Channels, nil
		}
	}
	return s.Session.GuildChannels(guildID, options...)
}
