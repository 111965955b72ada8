package discord

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"pokebot/internal/cooldown"
	"pokebot/internal/flow"
	"pokebot/internal/game"
	"pokebot/internal/stats"
)

// Handler runs one command invocation.
type Handler func(ctx context.Context, r *Request) error

type Command struct {
	// Name is the canonical name; subcommands are registered as "pc info".
	Name    string
	Aliases []string
	// Gated commands only run in the game channel when used in a guild.
	Gated    bool
	Cooldown time.Duration
	Owner    bool
	Admin    bool
	// Keep leaves the invoking message in place.
	Keep bool
	Run  Handler
}

// Plonks reports blacklisted users.
type Plonks interface {
	IsPlonked(ctx context.Context, guildID, userID int64) (bool, error)
}

type RouterConfig struct {
	Prefix      string
	Channel     string
	Owners      []string
	DeleteAfter time.Duration
}

// Router turns chat messages into command invocations.
type Router struct {
	cfg      RouterConfig
	session  Session
	plonks   Plonks
	limiter  cooldown.Limiter
	log      *slog.Logger
	commands map[string]*Command

	mu     sync.RWMutex
	selfID string
}

func NewRouter(session Session, plonks Plonks, limiter cooldown.Limiter, cfg RouterConfig, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "!"
	}
	if cfg.DeleteAfter <= 0 {
		cfg.DeleteAfter = 60 * time.Second
	}
	return &Router{
		cfg:      cfg,
		session:  session,
		plonks:   plonks,
		limiter:  limiter,
		log:      logger,
		commands: map[string]*Command{},
	}
}

func (rt *Router) Register(cmds ...*Command) {
	for _, c := range cmds {
		rt.commands[c.Name] = c
		for _, a := range c.Aliases {
			rt.commands[a] = c
		}
	}
}

// SetSelf records the bot's user id so "@bot command" also works.
func (rt *Router) SetSelf(id string) {
	rt.mu.Lock()
	rt.selfID = id
	rt.mu.Unlock()
}

func splitWord(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

func (rt *Router) stripPrefix(content string) (string, bool) {
	content = strings.TrimSpace(content)
	prefixes := []string{rt.cfg.Prefix}
	rt.mu.RLock()
	if rt.selfID != "" {
		prefixes = append(prefixes, "<@"+rt.selfID+">", "<@!"+rt.selfID+">")
	}
	rt.mu.RUnlock()
	for _, p := range prefixes {
		if strings.HasPrefix(content, p) {
			return strings.TrimSpace(content[len(p):]), true
		}
	}
	return "", false
}

// Parse resolves content to a command and its argument text. The command
// word is case-insensitive; a known two-word subcommand wins over its parent.
func (rt *Router) Parse(content string) (*Command, string, bool) {
	rest, ok := rt.stripPrefix(content)
	if !ok {
		return nil, "", false
	}
	word, args := splitWord(rest)
	word = strings.ToLower(word)
	if word == "" {
		return nil, "", false
	}
	if args != "" {
		sub, subArgs := splitWord(args)
		if c, ok := rt.commands[word+" "+strings.ToLower(sub)]; ok {
			return c, subArgs, true
		}
	}
	c, ok := rt.commands[word]
	return c, args, ok
}

// Dispatch runs the command in msg, if any, with all checks applied.
func (rt *Router) Dispatch(ctx context.Context, msg *discordgo.Message) {
	if msg == nil || msg.Author == nil || msg.Author.Bot {
		return
	}
	cmd, args, ok := rt.Parse(msg.Content)
	if !ok {
		return
	}
	req := &Request{
		Session:     rt.session,
		Message:     msg,
		Command:     cmd.Name,
		Args:        args,
		ID:          uuid.NewString(),
		deleteAfter: rt.cfg.DeleteAfter,
	}
	req.Log = rt.log.With("invocation_id", req.ID, "command", cmd.Name, "user_id", msg.Author.ID, "channel_id", msg.ChannelID)

	if plonked, err := rt.plonked(ctx, msg); err != nil {
		req.Log.Warn("plonk lookup failed", "err", err)
	} else if plonked {
		return
	}
	if cmd.Owner && !rt.isOwner(msg.Author.ID) {
		return
	}
	if cmd.Admin && !rt.isAdmin(msg) {
		req.ReplyFor("You need administrator permissions to do that.", 10*time.Second)
		return
	}
	if cmd.Gated {
		if err := rt.gate(msg); err != nil {
			text, _ := UserMessage(err, req.nameOf)
			req.ReplyFor(text, 10*time.Second)
			return
		}
	}
	if cmd.Cooldown > 0 && rt.limiter != nil {
		wait, err := rt.limiter.Acquire(ctx, cmd.Name, req.Player().ID, cmd.Cooldown)
		if err != nil {
			req.Log.Warn("cooldown lookup failed", "err", err)
		}
		if wait > 0 {
			req.ReplyFor(fmt.Sprintf("You are on cooldown. Try again in %s.", cooldown.Format(wait)), 10*time.Second)
			req.deleteInvocation()
			return
		}
	}

	start := time.Now()
	err := rt.run(ctx, cmd, req)
	if err != nil && cmd.Cooldown > 0 && rt.limiter != nil {
		if rerr := rt.limiter.Reset(ctx, cmd.Name, req.Player().ID); rerr != nil {
			req.Log.Warn("cooldown reset failed", "err", rerr)
		}
	}
	if err != nil {
		if text, ok := UserMessage(err, req.nameOf); ok {
			req.Reply(text)
		} else {
			req.Log.Error("command failed", "content", msg.Content, "err", err, "stack", string(debug.Stack()))
			req.Reply("Something went wrong with that command.")
		}
	}
	req.Log.Info("command handled", "duration_ms", time.Since(start).Milliseconds(), "ok", err == nil)
	if !cmd.Keep {
		req.deleteInvocation()
	}
}

func (rt *Router) run(ctx context.Context, cmd *Command, req *Request) (err error) {
	defer func() {
		if p := recover(); p != nil {
			req.Log.Error("command panicked", "content", req.Message.Content, "panic", p, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic in %s: %v", cmd.Name, p)
		}
	}()
	return cmd.Run(ctx, req)
}

func (rt *Router) plonked(ctx context.Context, msg *discordgo.Message) (bool, error) {
	if rt.plonks == nil || msg.GuildID == "" {
		return false, nil
	}
	guildID, err := parseID(msg.GuildID)
	if err != nil {
		return false, err
	}
	userID, err := parseID(msg.Author.ID)
	if err != nil {
		return false, err
	}
	return rt.plonks.IsPlonked(ctx, guildID, userID)
}

func (rt *Router) isOwner(userID string) bool {
	for _, id := range rt.cfg.Owners {
		if id == userID {
			return true
		}
	}
	return false
}

func (rt *Router) isAdmin(msg *discordgo.Message) bool {
	if msg.GuildID == "" {
		return false
	}
	perms, err := rt.session.UserChannelPermissions(msg.Author.ID, msg.ChannelID)
	if err != nil {
		rt.log.Warn("permission lookup failed", "user_id", msg.Author.ID, "err", err)
		return false
	}
	return perms&discordgo.PermissionAdministrator != 0
}

// gate rejects gated commands outside the game channel. Direct messages are
// always allowed.
func (rt *Router) gate(msg *discordgo.Message) error {
	if msg.GuildID == "" {
		return nil
	}
	ch, err := rt.session.Channel(msg.ChannelID)
	if err == nil && ch.Name == rt.cfg.Channel {
		return nil
	}
	channels, err := rt.session.GuildChannels(msg.GuildID)
	if err != nil {
		return &game.WrongChannelError{}
	}
	for _, c := range channels {
		if c.Name == rt.cfg.Channel && c.Type == discordgo.ChannelTypeGuildText {
			return &game.WrongChannelError{ChannelID: c.ID}
		}
	}
	return &game.WrongChannelError{}
}

// Request is one command invocation.
type Request struct {
	Session Session
	Message *discordgo.Message
	Command string
	Args    string
	// ID tags every log line of the invocation.
	ID  string
	Log *slog.Logger

	deleteAfter time.Duration
}

func (r *Request) Player() flow.Player {
	id, _ := parseID(r.Message.Author.ID)
	return flow.Player{ID: id, Name: r.Message.Author.Username}
}

func (r *Request) Invocation() flow.Invocation {
	origin := stats.Origin{UserID: r.Player().ID}
	origin.MessageID, _ = parseID(r.Message.ID)
	origin.ChannelID, _ = parseID(r.Message.ChannelID)
	if gid, err := parseID(r.Message.GuildID); err == nil {
		origin.GuildID = &gid
	}
	return flow.Invocation{Player: r.Player(), Origin: origin}
}

// Mentioned is the first mentioned user other than the author, if any.
func (r *Request) Mentioned() (flow.Player, bool) {
	for _, u := range r.Message.Mentions {
		if u == nil || u.Bot {
			continue
		}
		id, err := parseID(u.ID)
		if err != nil {
			continue
		}
		return flow.Player{ID: id, Name: u.Username}, true
	}
	return flow.Player{}, false
}

func (r *Request) nameOf(id int64) string {
	if p := r.Player(); p.ID == id {
		return p.Name
	}
	for _, u := range r.Message.Mentions {
		if u != nil && u.ID == formatID(id) {
			return u.Username
		}
	}
	return formatID(id)
}

// Reply sends text that deletes itself after the configured delay.
func (r *Request) Reply(text string) *discordgo.Message {
	return r.ReplyFor(text, r.deleteAfter)
}

func (r *Request) ReplyFor(text string, after time.Duration) *discordgo.Message {
	msg, err := r.Session.ChannelMessageSend(r.Message.ChannelID, text)
	if err != nil {
		r.Log.Warn("reply failed", "err", err)
		return nil
	}
	deleteLater(r.Session, msg.ChannelID, msg.ID, after)
	return msg
}

func (r *Request) deleteInvocation() {
	if r.Message.GuildID == "" {
		return
	}
	if err := r.Session.ChannelMessageDelete(r.Message.ChannelID, r.Message.ID); err != nil {
		r.Log.Debug("delete invocation failed", "err", err)
	}
}

func deleteLater(s Session, channelID, messageID string, after time.Duration) {
	if after <= 0 {
		return
	}
	time.AfterFunc(after, func() {
		_ = s.ChannelMessageDelete(channelID, messageID)
	})
}
