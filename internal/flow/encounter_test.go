package flow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pokebot/internal/game"
	"pokebot/internal/stats"
)

func TestEncounterCatch(t *testing.T) {
	h := newHarness(t, Options{})
	h.rand.ints = []int{0, 10}
	ui := &fakeEncounterUI{throws: []string{"Pokeball"}}

	res, err := h.svc.Encounter(context.Background(), invocation(ash), ui)
	require.NoError(t, err)
	assert.Equal(t, Caught, res.Outcome)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, "You caught **Ivysaur** successfully!", res.Message())
	assert.Equal(t, "normal/2-0.gif", ui.wild.Image)
	assert.Equal(t, [][]string{{"Pokeball"}}, ui.balls)

	caught := h.store.get(res.FoundID)
	assert.True(t, caught.OwnedBy(ash.ID))
	assert.Equal(t, game.XPToLevel(16), caught.Exp)
	assert.Equal(t, "Pokeball", caught.Ball)

	tr, err := h.store.Trainer(context.Background(), ash.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, tr.Inventory["Pokeball"])

	seen, err := h.store.SeenSpecies(context.Background(), ash.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, seen)
	assert.Equal(t, []string{stats.PokemonEncountered, stats.ItemUsed, stats.PokemonCaught}, h.events.names)
}

func TestEncounterEscapesAfterThreeThrows(t *testing.T) {
	h := newHarness(t, Options{})
	h.rand.ints = []int{2, 99, 0, 99, 1, 99, 2}
	ui := &fakeEncounterUI{throws: []string{"Pokeball", "Pokeball", "Pokeball"}}

	res, err := h.svc.Encounter(context.Background(), invocation(ash), ui)
	require.NoError(t, err)
	assert.Equal(t, Escaped, res.Outcome)
	assert.Equal(t, MaxThrows, res.Attempts)
	assert.Equal(t, "**Pikachu** has escaped!", res.Message())
	assert.Equal(t, escapeQuotes[:3], ui.missed)

	tr, err := h.store.Trainer(context.Background(), ash.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, tr.Inventory["Pokeball"])
	assert.Equal(t, stats.PokemonFled, h.events.names[len(h.events.names)-1])
}

func TestEncounterRunAway(t *testing.T) {
	h := newHarness(t, Options{})
	h.rand.ints = []int{2}
	ui := &fakeEncounterUI{throws: []string{""}}

	res, err := h.svc.Encounter(context.Background(), invocation(ash), ui)
	require.NoError(t, err)
	assert.Equal(t, Fled, res.Outcome)
	assert.Equal(t, "You ran away from **Pikachu**!", res.Message())

	tr, err := h.store.Trainer(context.Background(), ash.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, tr.Inventory["Pokeball"])
}

func TestEncounterTimeout(t *testing.T) {
	h := newHarness(t, Options{ThrowTimeout: 10 * time.Millisecond})
	h.rand.ints = []int{2}

	res, err := h.svc.Encounter(context.Background(), invocation(ash), &fakeEncounterUI{})
	require.NoError(t, err)
	assert.Equal(t, TimedOut, res.Outcome)
	assert.Equal(t, "**Pikachu** escaped because you took too long! :stopwatch:", res.Message())
}

func TestEncounterShinyUsesShinyArt(t *testing.T) {
	h := newHarness(t, Options{})
	h.rand.ints = []int{9}
	h.rand.u32 = []uint32{0xFFFE0000}
	ui := &fakeEncounterUI{throws: []string{""}}

	res, err := h.svc.Encounter(context.Background(), invocation(ash), ui)
	require.NoError(t, err)
	assert.True(t, res.Wild.Shiny)
	assert.Equal(t, "shiny/150-0.gif", res.Wild.Image)
	assert.Equal(t, "**Mewtwo**"+game.Star+game.Sparkles, res.Wild.Title())
}

func TestEncounterRejectsUnheldBall(t *testing.T) {
	h := newHarness(t, Options{})
	h.store.setInventory(ash.ID, game.Inventory{game.MoneyKey: 0})
	h.rand.ints = []int{2}
	ui := &fakeEncounterUI{throws: []string{"Masterball"}}

	_, err := h.svc.Encounter(context.Background(), invocation(ash), ui)
	assert.ErrorIs(t, err, game.ErrNoItem)
	assert.Equal(t, [][]string{nil}, ui.balls)
}
