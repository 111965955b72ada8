package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pokebot/internal/game"
	"pokebot/internal/menu"
	"pokebot/internal/stats"
)

func TestTradeSwapsAndEvolves(t *testing.T) {
	h := newHarness(t, Options{})
	haunter := h.store.add(t, ash.ID, 93, addOpts{party: true})
	pika := h.store.add(t, misty.ID, 25, addOpts{})
	ui := newChooser().script(ash.ID, sel(1)...).script(misty.ID, sel(1)...)
	confirm := &fakeConfirmer{}

	res, err := h.svc.Trade(context.Background(), invocation(ash), misty, ui, confirm)
	require.NoError(t, err)
	assert.Equal(t, "**Ash**'s offer: Haunter\n**Misty**'s offer: Pikachu\nDo you accept?", confirm.prompt)
	assert.Equal(t, map[int64]int{haunter: 94}, res.Evolved)
	assert.Equal(t, "Completed trade between **Ash** and **Misty**.", res.Message())

	got := h.store.get(haunter)
	assert.True(t, got.OwnedBy(misty.ID))
	assert.Equal(t, 94, got.Species.Num)
	assert.False(t, got.InParty())
	assert.True(t, h.store.get(pika).OwnedBy(ash.ID))

	seen, err := h.store.SeenSpecies(context.Background(), misty.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{94}, seen)
	assert.Contains(t, h.events.names, stats.SuccessfulTrade)
}

func TestTradeTargetedEvolution(t *testing.T) {
	h := newHarness(t, Options{})
	karrablast := h.store.add(t, ash.ID, 588, addOpts{})
	shelmet := h.store.add(t, misty.ID, 616, addOpts{})
	ui := newChooser().script(ash.ID, sel(1)...).script(misty.ID, sel(1)...)

	res, err := h.svc.Trade(context.Background(), invocation(ash), misty, ui, &fakeConfirmer{})
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{karrablast: 589, shelmet: 617}, res.Evolved)
}

func TestTradeTargetedEvolutionNeedsPartner(t *testing.T) {
	h := newHarness(t, Options{})
	h.store.add(t, ash.ID, 588, addOpts{})
	h.store.add(t, misty.ID, 25, addOpts{})
	ui := newChooser().script(ash.ID, sel(1)...).script(misty.ID, sel(1)...)

	res, err := h.svc.Trade(context.Background(), invocation(ash), misty, ui, &fakeConfirmer{})
	require.NoError(t, err)
	assert.Empty(t, res.Evolved)
}

func TestTradeOneSidedOffer(t *testing.T) {
	h := newHarness(t, Options{})
	h.store.add(t, ash.ID, 1, addOpts{})
	pika := h.store.add(t, misty.ID, 25, addOpts{})
	ui := newChooser().script(ash.ID, sel()...).script(misty.ID, sel(1)...)
	confirm := &fakeConfirmer{}

	_, err := h.svc.Trade(context.Background(), invocation(ash), misty, ui, confirm)
	require.NoError(t, err)
	assert.Equal(t, "**Ash**'s offer: None\n**Misty**'s offer: Pikachu\nDo you accept?", confirm.prompt)
	assert.True(t, h.store.get(pika).OwnedBy(ash.ID))
}

func TestTradeDeclinedLeavesOwnership(t *testing.T) {
	h := newHarness(t, Options{})
	haunter := h.store.add(t, ash.ID, 93, addOpts{})
	pika := h.store.add(t, misty.ID, 25, addOpts{})
	ui := newChooser().script(ash.ID, sel(1)...).script(misty.ID, sel(1)...)

	_, err := h.svc.Trade(context.Background(), invocation(ash), misty, ui, &fakeConfirmer{err: &game.DeclinedError{UserID: misty.ID}})
	var declined *game.DeclinedError
	require.True(t, errors.As(err, &declined))
	assert.Equal(t, misty.ID, declined.UserID)

	assert.True(t, h.store.get(haunter).OwnedBy(ash.ID))
	assert.Equal(t, 93, h.store.get(haunter).Species.Num)
	assert.True(t, h.store.get(pika).OwnedBy(misty.ID))
	assert.Empty(t, h.store.settled)
}

func TestTradeCancelAndTimeout(t *testing.T) {
	h := newHarness(t, Options{})
	h.store.add(t, ash.ID, 93, addOpts{})
	h.store.add(t, misty.ID, 25, addOpts{})

	ui := newChooser().script(ash.ID, sel(1)...).script(misty.ID, menu.Input{Kind: menu.Cancel})
	_, err := h.svc.Trade(context.Background(), invocation(ash), misty, ui, &fakeConfirmer{})
	var cancelled *game.CancelledError
	require.True(t, errors.As(err, &cancelled))
	assert.Equal(t, misty.ID, cancelled.UserID)

	_, err = h.svc.Trade(context.Background(), invocation(ash), misty, newChooser(), &fakeConfirmer{})
	assert.ErrorIs(t, err, game.ErrNoResponse)
	assert.Empty(t, h.store.settled)
}

func TestTradeRejectsOverSelection(t *testing.T) {
	h := newHarness(t, Options{})
	h.store.add(t, ash.ID, 93, addOpts{})
	h.store.add(t, misty.ID, 25, addOpts{})
	ui := newChooser().script(ash.ID, sel(1, 1)...).script(misty.ID, sel(1)...)

	_, err := h.svc.Trade(context.Background(), invocation(ash), misty, ui, &fakeConfirmer{})
	var over *game.OverSelectedError
	require.True(t, errors.As(err, &over))
	assert.Equal(t, ash.ID, over.UserID)
	assert.Equal(t, "Haunter", over.Name)
}

func TestTradeWithSelf(t *testing.T) {
	h := newHarness(t, Options{})
	_, err := h.svc.Trade(context.Background(), invocation(ash), ash, newChooser(), &fakeConfirmer{})
	assert.ErrorIs(t, err, game.ErrSelfTrade)
}
