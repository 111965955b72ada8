package termui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pokebot/internal/menu"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newMenu(t *testing.T, count int) *menu.Menu {
	t.Helper()
	options := make([]string, 12)
	for i := range options {
		options[i] = "**" + string(rune('A'+i)) + "**"
	}
	m, err := menu.New(options, nil, menu.Options{Count: count, Multi: true, PerPage: 10, Header: "__**Shop**__"})
	require.NoError(t, err)
	return m
}

func send(t *testing.T, m Model, msgs ...tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	var next tea.Model = m
	for _, msg := range msgs {
		next, cmd = next.(Model).Update(msg)
	}
	return next.(Model), cmd
}

func TestSelectAndFinish(t *testing.T) {
	m := New(newMenu(t, menu.Unbounded), "Shop", 0)
	m, _ = send(t, m, runes("2"), runes("n"), runes("1"), runes("1"))

	view := m.View()
	assert.Contains(t, view, "Page 2/2")
	assert.Contains(t, view, "Selected: B, K, K")
	assert.NotContains(t, view, "**")

	m, cmd := send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, menu.Result{Selected: []int{1, 10, 10}}, m.Result())
	assert.Empty(t, m.View())
}

func TestZeroSelectsTenth(t *testing.T) {
	m := New(newMenu(t, 1), "", 0)
	m, _ = send(t, m, runes("0"))
	assert.Equal(t, []int{9}, m.Result().Selected)
}

func TestCancelAndUndo(t *testing.T) {
	m := New(newMenu(t, menu.Unbounded), "", 0)
	m, _ = send(t, m, runes("3"), runes("u"))
	assert.NotContains(t, m.View(), "Selected:")

	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.True(t, m.Result().Cancelled)
	assert.False(t, m.Result().TimedOut)
}

func TestTimeoutOnlyForLatestWait(t *testing.T) {
	m := New(newMenu(t, menu.Unbounded), "", time.Minute)
	require.NotNil(t, m.Init())

	m, _ = send(t, m, runes("1"))
	m, _ = send(t, m, timeoutMsg{seq: 0})
	assert.False(t, m.Result().Cancelled, "stale timeout ignored")

	m, _ = send(t, m, timeoutMsg{seq: 1})
	assert.True(t, m.Result().TimedOut)
}

func TestUnknownKeysIgnored(t *testing.T) {
	m := New(newMenu(t, menu.Unbounded), "", 0)
	before := m.View()
	m, cmd := send(t, m, runes("z"))
	assert.Nil(t, cmd)
	assert.Equal(t, before, m.View())
}
