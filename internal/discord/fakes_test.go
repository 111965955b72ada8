package discord

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
)

type fakeSession struct {
	mu        sync.Mutex
	next      int
	sent      []*discordgo.Message
	edits     []string
	deleted   []string
	reactions []string
	channels  map[string]*discordgo.Channel
	emojis    []*discordgo.Emoji
	perms     int64
	status    string
}

func newFakeSession() *fakeSession {
	return &fakeSession{channels: map[string]*discordgo.Channel{}}
}

func (f *fakeSession) add(channelID, content string) *discordgo.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	msg := &discordgo.Message{ID: fmt.Sprintf("bot-%d", f.next), ChannelID: channelID, Content: content}
	f.sent = append(f.sent, msg)
	return msg
}

func (f *fakeSession) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	return f.add(channelID, content), nil
}

func (f *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	msg := f.add(channelID, data.Content)
	f.mu.Lock()
	msg.Embeds = data.Embeds
	f.mu.Unlock()
	return msg, nil
}

func (f *fakeSession) ChannelMessageEdit(_, messageID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, content)
	return &discordgo.Message{ID: messageID, Content: content}, nil
}

func (f *fakeSession) ChannelMessageEditEmbed(_, messageID string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, embed.Description)
	return &discordgo.Message{ID: messageID}, nil
}

func (f *fakeSession) ChannelMessageDelete(_, messageID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeSession) MessageReactionAdd(_, _, emojiID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, emojiID)
	return nil
}

func (f *fakeSession) MessageReactionRemove(_, _, _, _ string, _ ...discordgo.RequestOption) error {
	return nil
}

func (f *fakeSession) MessageReactionsRemoveAll(_, _ string, _ ...discordgo.RequestOption) error {
	return nil
}

func (f *fakeSession) Channel(channelID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return nil, fmt.Errorf("unknown channel %s", channelID)
	}
	return ch, nil
}

func (f *fakeSession) GuildChannels(guildID string, _ ...discordgo.RequestOption) ([]*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*discordgo.Channel
	for _, ch := range f.channels {
		if ch.GuildID == guildID {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (f *fakeSession) GuildEmojis(_ string, _ ...discordgo.RequestOption) ([]*discordgo.Emoji, error) {
	return f.emojis, nil
}

func (f *fakeSession) UserChannelPermissions(_, _ string, _ ...discordgo.RequestOption) (int64, error) {
	return f.perms, nil
}

func (f *fakeSession) UpdateGameStatus(_ int, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = name
	return nil
}

func (f *fakeSession) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, m := range f.sent {
		out[i] = m.Content
	}
	return out
}

func (f *fakeSession) last() *discordgo.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeSession) wasDeleted(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.deleted {
		if d == id {
			return true
		}
	}
	return false
}

type fakePlonks struct {
	plonked map[int64]bool
}

func (p *fakePlonks) IsPlonked(_ context.Context, _, userID int64) (bool, error) {
	return p.plonked[userID], nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func guildMessage(content string) *discordgo.Message {
	return &discordgo.Message{
		ID:        "100",
		ChannelID: "10",
		GuildID:   "1",
		Content:   content,
		Author:    &discordgo.User{ID: "42", Username: "ash"},
	}
}
