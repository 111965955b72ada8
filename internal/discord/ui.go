package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"pokebot/internal/flow"
	"pokebot/internal/menu"
)

const (
	emojiRename = "✏"
	emojiStop   = "⏹"
	emojiReset  = "♻"
)

var ballFallback = map[string]string{
	"Pokeball":   "\U0001F534",
	"Greatball":  "\U0001F535",
	"Ultraball":  "\U0001F7E1",
	"Masterball": "\U0001F7E3",
}

var itemEmojis = map[string]string{
	"Fire Stone":    "\U0001F525",
	"Water Stone":   "\U0001F4A7",
	"Thunder Stone": "⚡",
	"Leaf Stone":    "\U0001F343",
	"Moon Stone":    "\U0001F319",
	"Sun Stone":     "☀",
	"Shiny Stone":   "\U0001F48E",
	"Dusk Stone":    "\U0001F311",
	"Dawn Stone":    "\U0001F305",
	"Ice Stone":     "❄",
}

// ui is the chat side of one command invocation. It implements the flow
// Chooser and Confirmer and builds the encounter, PC info and party views.
type ui struct {
	req            *Request
	bus            *Bus
	sprites        Sprites
	menuTimeout    time.Duration
	confirmTimeout time.Duration
}

func (u *ui) channelID() string { return u.req.Message.ChannelID }

func (u *ui) newView(reactions []string) *messageView {
	return &messageView{session: u.req.Session, channelID: u.channelID(), log: u.req.Log, reactions: reactions}
}

// consume clears a used input so the same reaction can be clicked again.
func (u *ui) consume(ev Event) {
	s := u.req.Session
	if r := ev.Reaction; r != nil && r.GuildID != "" {
		_ = s.MessageReactionRemove(r.ChannelID, r.MessageID, r.Emoji.APIName(), r.UserID)
		return
	}
	if m := ev.Message; m != nil && m.GuildID != "" {
		_ = s.ChannelMessageDelete(m.ChannelID, m.ID)
	}
}

// Choose shows m to p and drives it from p's reactions and typed input.
func (u *ui) Choose(ctx context.Context, p flow.Player, m *menu.Menu) (menu.Result, error) {
	view := u.newView(m.Reactions())
	userID := formatID(p.ID)
	events, cancel := u.bus.Subscribe(either(reactionFrom(userID, view.id), messageFrom(userID, u.channelID())))
	defer cancel()

	src := menu.SourceFunc(func(ctx context.Context) (menu.Input, error) {
		for {
			ev, err := Wait(ctx, events)
			if err != nil {
				return menu.Input{}, err
			}
			var in menu.Input
			var ok bool
			if ev.Reaction != nil {
				in, ok = menu.ParseReaction(emojiKey(ev.Reaction.Emoji))
			} else {
				in, ok = menu.ParseText(ev.Message.Content)
			}
			if ok {
				u.consume(ev)
				return in, nil
			}
		}
	})
	return menu.Run(ctx, m, view, src, u.menuTimeout)
}

type voteFunc func(ctx context.Context) (menu.Vote, error)

func (f voteFunc) NextVote(ctx context.Context) (menu.Vote, error) { return f(ctx) }

// Confirm posts prompt and collects accept/decline reactions from the
// participants.
func (u *ui) Confirm(ctx context.Context, prompt string, participants []int64) error {
	view := u.newView([]string{menu.EmojiDone, menu.EmojiCancel})
	events, cancel := u.bus.Subscribe(func(ev Event) bool {
		r := ev.Reaction
		return r != nil && r.MessageID != "" && r.MessageID == view.id()
	})
	defer cancel()
	if err := view.show(prompt); err != nil {
		return err
	}
	defer view.Close()

	src := voteFunc(func(ctx context.Context) (menu.Vote, error) {
		for {
			ev, err := Wait(ctx, events)
			if err != nil {
				return menu.Vote{}, err
			}
			uid, err := parseID(ev.Reaction.UserID)
			if err != nil {
				continue
			}
			switch emojiKey(ev.Reaction.Emoji) {
			case menu.EmojiDone:
				return menu.Vote{UserID: uid, Accept: true}, nil
			case menu.EmojiCancel:
				return menu.Vote{UserID: uid}, nil
			}
		}
	})
	return menu.Confirm(ctx, participants, src, u.confirmTimeout)
}

// messageView is one bot message that is sent once, then edited.
type messageView struct {
	session   Session
	channelID string
	log       *slog.Logger
	reactions []string

	mu  sync.Mutex
	msg *discordgo.Message
}

func (v *messageView) id() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.msg == nil {
		return ""
	}
	return v.msg.ID
}

func (v *messageView) set(msg *discordgo.Message) {
	v.mu.Lock()
	v.msg = msg
	v.mu.Unlock()
	go addReactions(v.session, v.log, v.channelID, msg.ID, v.reactions)
}

func (v *messageView) show(text string) error {
	if id := v.id(); id != "" {
		_, err := v.session.ChannelMessageEdit(v.channelID, id, text)
		return err
	}
	msg, err := v.session.ChannelMessageSend(v.channelID, text)
	if err != nil {
		return err
	}
	v.set(msg)
	return nil
}

func (v *messageView) send(data *discordgo.MessageSend) error {
	msg, err := v.session.ChannelMessageSendComplex(v.channelID, data)
	if err != nil {
		return err
	}
	v.set(msg)
	return nil
}

func (v *messageView) editEmbed(e *discordgo.MessageEmbed) error {
	id := v.id()
	if id == "" {
		return nil
	}
	_, err := v.session.ChannelMessageEditEmbed(v.channelID, id, e)
	return err
}

func (v *messageView) Render(_ context.Context, f menu.Frame) error {
	return v.show(f.Text())
}

func (v *messageView) Close() error {
	v.mu.Lock()
	msg := v.msg
	v.msg = nil
	v.mu.Unlock()
	if msg == nil {
		return nil
	}
	return v.session.ChannelMessageDelete(v.channelID, msg.ID)
}

func addReactions(s Session, log *slog.Logger, channelID, messageID string, emojis []string) {
	for _, e := range emojis {
		if err := s.MessageReactionAdd(channelID, messageID, e); err != nil {
			log.Debug("add reaction", "emoji", e, "err", err)
			return
		}
	}
}

// ballEmoji ties a ball to the reaction that throws it. API is the form
// used to add the reaction and Key the form reactions arrive with.
type ballEmoji struct {
	Ball    string
	API     string
	Key     string
	Mention string
}

// ballEmojis prefers a guild emoji named after the ball and falls back to a
// coloured circle.
func (u *ui) ballEmojis(balls []string) []ballEmoji {
	var custom []*discordgo.Emoji
	if gid := u.req.Message.GuildID; gid != "" {
		emojis, err := u.req.Session.GuildEmojis(gid)
		if err != nil {
			u.req.Log.Debug("guild emojis", "err", err)
		}
		custom = emojis
	}
	out := make([]ballEmoji, 0, len(balls))
	for _, ball := range balls {
		found := false
		for _, e := range custom {
			if e != nil && strings.EqualFold(e.Name, ball) {
				out = append(out, ballEmoji{Ball: ball, API: e.APIName(), Key: e.Name, Mention: e.MessageFormat()})
				found = true
				break
			}
		}
		if found {
			continue
		}
		if fb, ok := ballFallback[ball]; ok {
			out = append(out, ballEmoji{Ball: ball, API: fb, Key: fb, Mention: fb})
		}
	}
	return out
}

// encounterView shows a wild creature and collects throws.
type encounterView struct {
	u      *ui
	userID string
	view   *messageView
	events <-chan Event
	cancel func()

	emojis []ballEmoji
	embed  *discordgo.MessageEmbed
	intro  string
}

func (u *ui) encounter(p flow.Player) *encounterView {
	e := &encounterView{u: u, userID: formatID(p.ID), cancel: func() {}}
	e.view = u.newView(nil)
	return e
}

func (e *encounterView) Appear(_ context.Context, w flow.Wild, balls []string) error {
	e.emojis = e.u.ballEmojis(balls)
	marks := make([]string, 0, len(e.emojis))
	reactions := make([]string, 0, len(e.emojis)+1)
	for _, b := range e.emojis {
		marks = append(marks, b.Mention)
		reactions = append(reactions, b.API)
	}
	reactions = append(reactions, menu.EmojiCancel)
	e.view.reactions = reactions

	e.intro = fmt.Sprintf("A wild %s appears!\nUse a %s to catch it or %s to run away!", w.Title(), strings.Join(marks, " "), menu.EmojiCancel)
	e.embed = wildEmbed(w, e.intro)
	data := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{e.embed}}
	closeSprite, err := e.u.sprites.attach(data, w.Image)
	if err != nil {
		e.u.req.Log.Warn("sprite unavailable", "image", w.Image, "err", err)
	}
	defer closeSprite()

	e.events, e.cancel = e.u.bus.Subscribe(either(reactionFrom(e.userID, e.view.id), messageFrom(e.userID, e.u.channelID())))
	return e.view.send(data)
}

// Throw accepts a ball reaction, a typed ball name, or a run away request.
func (e *encounterView) Throw(ctx context.Context, balls []string) (string, error) {
	for {
		ev, err := Wait(ctx, e.events)
		if err != nil {
			return "", err
		}
		if ball, ok := e.pick(ev, balls); ok {
			e.u.consume(ev)
			return ball, nil
		}
	}
}

func (e *encounterView) pick(ev Event, balls []string) (string, bool) {
	if r := ev.Reaction; r != nil {
		key := emojiKey(r.Emoji)
		if key == menu.EmojiCancel {
			return "", true
		}
		for _, b := range e.emojis {
			if b.Key == key && containsFold(balls, b.Ball) {
				return b.Ball, true
			}
		}
		return "", false
	}
	text := strings.ToLower(strings.TrimSpace(ev.Message.Content))
	switch text {
	case "run", "run away", "flee":
		return "", true
	}
	for _, b := range balls {
		if strings.ToLower(b) == text {
			return b, true
		}
	}
	return "", false
}

func (e *encounterView) Missed(_ context.Context, text string) error {
	if e.embed == nil {
		return nil
	}
	e.embed.Description = e.intro + "\n\n" + text
	return e.view.editEmbed(e.embed)
}

// finish shows the outcome and schedules the message for deletion.
func (e *encounterView) finish(text string) {
	e.cancel()
	id := e.view.id()
	if id == "" || e.embed == nil {
		return
	}
	s := e.u.req.Session
	e.embed.Description = text
	if err := e.view.editEmbed(e.embed); err != nil {
		e.u.req.Log.Debug("edit encounter", "err", err)
	}
	_ = s.MessageReactionsRemoveAll(e.u.channelID(), id)
	deleteLater(s, e.u.channelID(), id, e.u.req.deleteAfter)
}

func containsFold(list []string, v string) bool {
	for _, x := range list {
		if strings.EqualFold(x, v) {
			return true
		}
	}
	return false
}

// infoView is the PC info card with its action reactions.
type infoView struct {
	u      *ui
	userID string
	view   *messageView
	events <-chan Event
	cancel func()

	image string
	keys  []string
}

func (u *ui) info(p flow.Player) *infoView {
	v := &infoView{u: u, userID: formatID(p.ID), view: u.newView(nil)}
	v.events, v.cancel = u.bus.Subscribe(either(reactionFrom(v.userID, v.view.id), messageFrom(v.userID, u.channelID())))
	return v
}

func infoReactions(a flow.Actions) []string {
	var out []string
	if a.Has(flow.ActionRename) {
		out = append(out, emojiRename)
	}
	for _, item := range a.Items {
		if e, ok := itemEmojis[item]; ok {
			out = append(out, e)
		}
	}
	if a.Has(flow.ActionAddParty) {
		out = append(out, menu.EmojiDone)
	}
	if a.Has(flow.ActionRemoveParty) {
		out = append(out, menu.EmojiCancel)
	}
	if a.Has(flow.ActionMoveUp) {
		out = append(out, menu.EmojiUp)
	}
	if a.Has(flow.ActionMoveDown) {
		out = append(out, menu.EmojiDown)
	}
	return append(out, emojiStop)
}

func sameKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (v *infoView) show(card flow.Card, actions flow.Actions) error {
	embed := cardEmbed(card)
	keys := infoReactions(actions)
	if v.view.id() != "" && card.Image == v.image {
		embed.Image = &discordgo.MessageEmbedImage{URL: "attachment://" + spriteName}
		if err := v.view.editEmbed(embed); err != nil {
			return err
		}
		if !sameKeys(keys, v.keys) {
			v.keys = keys
			id := v.view.id()
			_ = v.u.req.Session.MessageReactionsRemoveAll(v.u.channelID(), id)
			go addReactions(v.u.req.Session, v.u.req.Log, v.u.channelID(), id, keys)
		}
		return nil
	}

	// A new sprite needs a new message.
	_ = v.view.Close()
	v.image, v.keys = card.Image, keys
	v.view.reactions = keys
	data := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}
	closeSprite, err := v.u.sprites.attach(data, card.Image)
	if err != nil {
		v.u.req.Log.Warn("sprite unavailable", "image", card.Image, "err", err)
	}
	defer closeSprite()
	return v.view.send(data)
}

func (v *infoView) Next(ctx context.Context, card flow.Card, actions flow.Actions) (flow.Action, error) {
	if err := v.show(card, actions); err != nil {
		return flow.Action{}, err
	}
	for {
		ev, err := Wait(ctx, v.events)
		if err != nil {
			return flow.Action{}, err
		}
		a, ok := v.action(ev, actions)
		if !ok {
			continue
		}
		v.u.consume(ev)
		if a.Kind == flow.ActionRename && a.Nickname == "" {
			nick, err := v.nickname(ctx)
			if err != nil {
				return flow.Action{}, err
			}
			a.Nickname = nick
		}
		return a, nil
	}
}

func (v *infoView) action(ev Event, actions flow.Actions) (flow.Action, bool) {
	var a flow.Action
	if r := ev.Reaction; r != nil {
		switch key := emojiKey(r.Emoji); key {
		case emojiRename:
			a.Kind = flow.ActionRename
		case menu.EmojiDone:
			a.Kind = flow.ActionAddParty
		case menu.EmojiCancel:
			a.Kind = flow.ActionRemoveParty
		case menu.EmojiUp:
			a.Kind = flow.ActionMoveUp
		case menu.EmojiDown:
			a.Kind = flow.ActionMoveDown
		case emojiStop:
			a.Kind = flow.ActionStop
		default:
			a.Kind = flow.ActionUseItem
			for _, item := range actions.Items {
				if itemEmojis[item] == key {
					a.Item = item
				}
			}
			if a.Item == "" {
				return a, false
			}
		}
		return a, actions.Has(a.Kind)
	}

	text := strings.TrimSpace(ev.Message.Content)
	word, rest := splitWord(text)
	switch strings.ToLower(word) {
	case "stop", "exit", "close":
		a.Kind = flow.ActionStop
	case "add":
		a.Kind = flow.ActionAddParty
	case "remove":
		a.Kind = flow.ActionRemoveParty
	case "up":
		a.Kind = flow.ActionMoveUp
	case "down":
		a.Kind = flow.ActionMoveDown
	case "rename":
		if rest == "" {
			return a, false
		}
		a.Kind, a.Nickname = flow.ActionRename, rest
	default:
		item := strings.TrimSpace(strings.TrimPrefix(strings.ToLower(text), "use "))
		for _, it := range actions.Items {
			if strings.ToLower(it) == item {
				a.Kind, a.Item = flow.ActionUseItem, it
			}
		}
		if a.Item == "" {
			return a, false
		}
	}
	return a, actions.Has(a.Kind)
}

// nickname waits for the player's next typed message.
func (v *infoView) nickname(ctx context.Context) (string, error) {
	prompt := v.u.req.Reply("Type a new nickname for your Pokémon, or its species name to clear it.")
	if prompt != nil {
		defer v.u.req.Session.ChannelMessageDelete(prompt.ChannelID, prompt.ID)
	}
	for {
		ev, err := Wait(ctx, v.events)
		if err != nil {
			return "", err
		}
		if ev.Message == nil {
			continue
		}
		nick := strings.TrimSpace(ev.Message.Content)
		if nick == "" {
			continue
		}
		v.u.consume(ev)
		return nick, nil
	}
}

func (v *infoView) Notify(_ context.Context, text string) error {
	v.u.req.Reply(text)
	return nil
}

func (v *infoView) Close() {
	v.cancel()
	_ = v.view.Close()
}

// partyView shows the party with reset and close reactions.
type partyView struct {
	u      *ui
	userID string
}

func (p *partyView) Prompt(ctx context.Context, text string) (bool, error) {
	view := p.u.newView([]string{emojiReset, menu.EmojiCancel})
	events, cancel := p.u.bus.Subscribe(either(reactionFrom(p.userID, view.id), messageFrom(p.userID, p.u.channelID())))
	defer cancel()
	if err := view.show(text); err != nil {
		return false, err
	}
	defer view.Close()
	for {
		ev, err := Wait(ctx, events)
		if err != nil {
			return false, err
		}
		var key string
		if ev.Reaction != nil {
			key = emojiKey(ev.Reaction.Emoji)
		} else {
			key = strings.ToLower(strings.TrimSpace(ev.Message.Content))
		}
		switch key {
		case emojiReset, "reset":
			p.u.consume(ev)
			return true, nil
		case menu.EmojiCancel, "c", "cancel", "close":
			p.u.consume(ev)
			return false, nil
		}
	}
}
