package discord

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pokebot/internal/flow"
	"pokebot/internal/game"
	"pokebot/internal/menu"
)

func TestBusDeliversToMatchingSubscribers(t *testing.T) {
	bus := NewBus()
	mine, cancelMine := bus.Subscribe(messageFrom("42", "10"))
	defer cancelMine()
	other, cancelOther := bus.Subscribe(messageFrom("43", "10"))

	n := bus.Publish(Event{Message: guildMessage("hello")})
	assert.Equal(t, 1, n)

	ev, err := Wait(context.Background(), mine)
	require.NoError(t, err)
	assert.Equal(t, "42", ev.UserID())
	select {
	case <-other:
		t.Fatalf("unexpected delivery")
	default:
	}

	cancelOther()
	assert.Equal(t, 1, bus.Publish(Event{Message: guildMessage("again")}))
}

func TestBusDropsWhenBufferFull(t *testing.T) {
	bus := NewBus()
	_, cancel := bus.Subscribe(func(Event) bool { return true })
	defer cancel()
	for i := 0; i < subscriptionBuffer; i++ {
		require.Equal(t, 1, bus.Publish(Event{Message: guildMessage("x")}))
	}
	assert.Zero(t, bus.Publish(Event{Message: guildMessage("x")}))
}

func TestWaitHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := Wait(ctx, make(chan Event))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func newTestUI(fs *fakeSession) *ui {
	return &ui{
		req: &Request{
			Session:     fs,
			Message:     guildMessage("!shop"),
			Log:         discardLogger(),
			deleteAfter: time.Hour,
		},
		bus:            NewBus(),
		menuTimeout:    time.Second,
		confirmTimeout: time.Second,
	}
}

// waitForMessage returns once the view is listening on its message.
func waitForMessage(t *testing.T, fs *fakeSession, count int) *discordgo.Message {
	t.Helper()
	require.Eventually(t, func() bool {
		fs.mu.Lock()
		reacted := len(fs.reactions) > 0
		fs.mu.Unlock()
		return reacted && len(fs.texts()) >= count
	}, time.Second, time.Millisecond)
	return fs.last()
}

func reaction(userID, messageID, emoji string) Event {
	return Event{Reaction: &discordgo.MessageReaction{
		UserID:    userID,
		MessageID: messageID,
		ChannelID: "10",
		GuildID:   "1",
		Emoji:     discordgo.Emoji{Name: emoji},
	}}
}

func TestChooseByReaction(t *testing.T) {
	fs := newFakeSession()
	u := newTestUI(fs)
	m, err := menu.New([]string{"Pokeball", "Greatball", "Ultraball"}, nil, menu.Options{Count: 1, PerPage: 10})
	require.NoError(t, err)

	done := make(chan menu.Result, 1)
	go func() {
		res, err := u.Choose(context.Background(), flow.Player{ID: 42, Name: "ash"}, m)
		assert.NoError(t, err)
		done <- res
	}()

	msg := waitForMessage(t, fs, 1)
	u.bus.Publish(reaction("43", msg.ID, menu.Keycaps[0]))
	u.bus.Publish(reaction("42", msg.ID, menu.Keycaps[1]))

	select {
	case res := <-done:
		assert.Equal(t, []int{1}, res.Selected)
	case <-time.After(time.Second):
		t.Fatalf("menu did not finish")
	}
	assert.True(t, fs.wasDeleted(msg.ID))
}

func TestChooseByTypedInput(t *testing.T) {
	fs := newFakeSession()
	u := newTestUI(fs)
	m, err := menu.New([]string{"a", "b", "c"}, nil, menu.Options{Count: menu.Unbounded, PerPage: 10})
	require.NoError(t, err)

	done := make(chan menu.Result, 1)
	go func() {
		res, _ := u.Choose(context.Background(), flow.Player{ID: 42, Name: "ash"}, m)
		done <- res
	}()

	waitForMessage(t, fs, 1)
	typed := guildMessage("3")
	typed.ID = "200"
	u.bus.Publish(Event{Message: typed})
	finish := guildMessage("done")
	finish.ID = "201"
	u.bus.Publish(Event{Message: finish})

	select {
	case res := <-done:
		assert.Equal(t, []int{2}, res.Selected)
	case <-time.After(time.Second):
		t.Fatalf("menu did not finish")
	}
	assert.True(t, fs.wasDeleted("200"))
	assert.True(t, fs.wasDeleted("201"))
}

func TestConfirmCollectsVotes(t *testing.T) {
	fs := newFakeSession()
	u := newTestUI(fs)

	done := make(chan error, 1)
	go func() {
		done <- u.Confirm(context.Background(), "Do you accept?", []int64{42, 43})
	}()

	msg := waitForMessage(t, fs, 1)
	assert.Equal(t, "Do you accept?", msg.Content)
	u.bus.Publish(reaction("42", msg.ID, menu.EmojiDone))
	u.bus.Publish(reaction("43", msg.ID, menu.EmojiCancel))

	select {
	case err := <-done:
		var declined *game.DeclinedError
		require.ErrorAs(t, err, &declined)
		assert.Equal(t, int64(43), declined.UserID)
	case <-time.After(time.Second):
		t.Fatalf("confirm did not finish")
	}
}

func TestBallEmojisPreferGuildEmoji(t *testing.T) {
	fs := newFakeSession()
	fs.emojis = []*discordgo.Emoji{{ID: "555", Name: "greatball"}}
	u := newTestUI(fs)

	got := u.ballEmojis([]string{"Pokeball", "Greatball", "Safariball"})
	require.Len(t, got, 2)
	assert.Equal(t, ballEmoji{Ball: "Pokeball", API: "\U0001F534", Key: "\U0001F534", Mention: "\U0001F534"}, got[0])
	assert.Equal(t, "greatball:555", got[1].API)
	assert.Equal(t, "<:greatball:555>", got[1].Mention)
}

func TestEncounterPick(t *testing.T) {
	e := &encounterView{emojis: []ballEmoji{
		{Ball: "Pokeball", Key: "\U0001F534"},
		{Ball: "Greatball", Key: "greatball"},
	}}
	balls := []string{"Pokeball"}

	ball, ok := e.pick(reaction("42", "m", "\U0001F534"), balls)
	assert.True(t, ok)
	assert.Equal(t, "Pokeball", ball)

	_, ok = e.pick(reaction("42", "m", "greatball"), balls)
	assert.False(t, ok, "ball no longer held")

	ball, ok = e.pick(reaction("42", "m", menu.EmojiCancel), balls)
	assert.True(t, ok)
	assert.Empty(t, ball)

	ball, ok = e.pick(Event{Message: guildMessage(" POKEBALL ")}, balls)
	assert.True(t, ok)
	assert.Equal(t, "Pokeball", ball)

	ball, ok = e.pick(Event{Message: guildMessage("run")}, balls)
	assert.True(t, ok)
	assert.Empty(t, ball)

	_, ok = e.pick(Event{Message: guildMessage("hello")}, balls)
	assert.False(t, ok)
}

func TestInfoActions(t *testing.T) {
	v := &infoView{}
	actions := flow.Actions{
		Kinds: []flow.ActionKind{flow.ActionRename, flow.ActionUseItem, flow.ActionRemoveParty, flow.ActionStop},
		Items: []string{"Thunder Stone"},
	}

	assert.Equal(t, []string{emojiRename, "⚡", menu.EmojiCancel, emojiStop}, infoReactions(actions))

	a, ok := v.action(reaction("42", "m", "⚡"), actions)
	assert.True(t, ok)
	assert.Equal(t, flow.Action{Kind: flow.ActionUseItem, Item: "Thunder Stone"}, a)

	_, ok = v.action(reaction("42", "m", menu.EmojiDone), actions)
	assert.False(t, ok, "already in the party")

	a, ok = v.action(Event{Message: guildMessage("rename Sparky Jr")}, actions)
	assert.True(t, ok)
	assert.Equal(t, flow.Action{Kind: flow.ActionRename, Nickname: "Sparky Jr"}, a)

	a, ok = v.action(Event{Message: guildMessage("use thunder stone")}, actions)
	assert.True(t, ok)
	assert.Equal(t, "Thunder Stone", a.Item)

	a, ok = v.action(Event{Message: guildMessage("stop")}, actions)
	assert.True(t, ok)
	assert.Equal(t, flow.ActionStop, a.Kind)
}

func TestPartyPrompt(t *testing.T) {
	fs := newFakeSession()
	u := newTestUI(fs)
	p := &partyView{u: u, userID: "42"}

	done := make(chan bool, 1)
	go func() {
		reset, err := p.Prompt(context.Background(), "party")
		assert.NoError(t, err)
		done <- reset
	}()

	msg := waitForMessage(t, fs, 1)
	u.bus.Publish(reaction("42", msg.ID, emojiReset))

	select {
	case reset := <-done:
		assert.True(t, reset)
	case <-time.After(time.Second):
		t.Fatalf("party prompt did not finish")
	}
}
