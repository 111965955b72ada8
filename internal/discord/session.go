// Package discord binds the game flows to a Discord gateway session:
// command routing, reaction and text driven menus, embeds and sprites.
package discord

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Session is the part of *discordgo.Session the bot calls.
type Session interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEdit(channelID, messageID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditEmbed(channelID, messageID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
	MessageReactionRemove(channelID, messageID, emojiID, userID string, options ...discordgo.RequestOption) error
	MessageReactionsRemoveAll(channelID, messageID string, options ...discordgo.RequestOption) error
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
	GuildEmojis(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Emoji, error)
	UserChannelPermissions(userID, channelID string, fetchOptions ...discordgo.RequestOption) (int64, error)
	UpdateGameStatus(idle int, name string) error
}

var _ Session = (*discordgo.Session)(nil)

// Event is one gateway event a waiter may be interested in. Exactly one of
// Message and Reaction is set.
type Event struct {
	Message  *discordgo.Message
	Reaction *discordgo.MessageReaction
}

// UserID is the author of the message or the user who reacted.
func (e Event) UserID() string {
	if e.Message != nil && e.Message.Author != nil {
		return e.Message.Author.ID
	}
	if e.Reaction != nil {
		return e.Reaction.UserID
	}
	return ""
}

// Bus fans gateway events out to the menus and prompts waiting on them.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[int]*subscription
}

type subscription struct {
	match func(Event) bool
	ch    chan Event
}

const subscriptionBuffer = 16

func NewBus() *Bus {
	return &Bus{subs: map[int]*subscription{}}
}

// Subscribe registers a waiter. The returned cancel func must be called once
// the waiter is done.
func (b *Bus) Subscribe(match func(Event) bool) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	id := b.next
	sub := &subscription{match: match, ch: make(chan Event, subscriptionBuffer)}
	b.subs[id] = sub
	return sub.ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish delivers ev to every matching waiter and reports how many got it.
// A waiter whose buffer is full misses the event.
func (b *Bus) Publish(ev Event) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	delivered := 0
	for _, sub := range b.subs {
		if !sub.match(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
			delivered++
		default:
		}
	}
	return delivered
}

// Wait blocks for the next event on ch.
func Wait(ctx context.Context, ch <-chan Event) (Event, error) {
	select {
	case <-ctx.Done():
		return Event{}, ctx.Err()
	case ev := <-ch:
		return ev, nil
	}
}

var errBadSnowflake = errors.New("invalid snowflake")

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadSnowflake
	}
	return id, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// reactionFrom matches reactions on messageID (resolved lazily) by userID.
func reactionFrom(userID string, messageID func() string) func(Event) bool {
	return func(ev Event) bool {
		r := ev.Reaction
		return r != nil && r.UserID == userID && r.MessageID != "" && r.MessageID == messageID()
	}
}

// messageFrom matches messages typed by userID in channelID.
func messageFrom(userID, channelID string) func(Event) bool {
	return func(ev Event) bool {
		m := ev.Message
		return m != nil && m.Author != nil && m.Author.ID == userID && m.ChannelID == channelID
	}
}

func either(a, b func(Event) bool) func(Event) bool {
	return func(ev Event) bool { return a(ev) || b(ev) }
}

// emojiKey is the comparable form of a reaction emoji.
func emojiKey(e discordgo.Emoji) string {
	return strings.ReplaceAll(e.Name, "\ufe0f", "")
}
