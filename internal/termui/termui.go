// Package termui drives the chat menu engine from a terminal.
package termui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"pokebot/internal/menu"
)

var ErrNotTerminal = errors.New("termui: stdout is not a terminal")

var (
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	headerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	lineStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	pageStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	frameStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("9")).Padding(0, 1)
)

// markup strips the chat formatting the menu lines carry.
var markup = strings.NewReplacer("**", "", "__", "", "``", "", `\`, "")

type keyMap struct {
	Prev   key.Binding
	Next   key.Binding
	Undo   key.Binding
	Done   key.Binding
	Cancel key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Prev, k.Next, k.Undo, k.Done, k.Cancel}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var keys = keyMap{
	Prev:   key.NewBinding(key.WithKeys("left", "h", "p"), key.WithHelp("←/p", "prev page")),
	Next:   key.NewBinding(key.WithKeys("right", "l", "n"), key.WithHelp("→/n", "next page")),
	Undo:   key.NewBinding(key.WithKeys("backspace", "u"), key.WithHelp("u", "undo")),
	Done:   key.NewBinding(key.WithKeys("enter", "d"), key.WithHelp("enter", "done")),
	Cancel: key.NewBinding(key.WithKeys("esc", "q", "c", "ctrl+c"), key.WithHelp("esc", "cancel")),
}

type timeoutMsg struct{ seq int }

// Model is a bubbletea model around one menu.
type Model struct {
	menu    *menu.Menu
	title   string
	timeout time.Duration
	help    help.Model
	seq     int
	result  menu.Result
	done    bool
}

func New(m *menu.Menu, title string, timeout time.Duration) Model {
	return Model{menu: m, title: title, timeout: timeout, help: help.New()}
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) tick() tea.Cmd {
	if m.timeout <= 0 {
		return nil
	}
	seq := m.seq
	return tea.Tick(m.timeout, func(time.Time) tea.Msg { return timeoutMsg{seq: seq} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		in, ok := inputFor(msg)
		if !ok {
			return m, nil
		}
		m.seq++
		return m.apply(in)
	case timeoutMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		return m.apply(menu.Input{Kind: menu.Timeout})
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil
	}
	return m, nil
}

func (m Model) apply(in menu.Input) (tea.Model, tea.Cmd) {
	switch m.menu.Apply(in) {
	case menu.Finished:
		m.result = menu.Result{Selected: m.menu.Selected()}
	case menu.Cancelled:
		m.result = menu.Result{Cancelled: true}
	case menu.TimedOut:
		m.result = menu.Result{Cancelled: true, TimedOut: true}
	default:
		return m, m.tick()
	}
	m.done = true
	return m, tea.Quit
}

func inputFor(msg tea.KeyMsg) (menu.Input, bool) {
	s := msg.String()
	if len(s) == 1 && s[0] >= '0' && s[0] <= '9' {
		d := int(s[0] - '0')
		if d == 0 {
			d = 10
		}
		return menu.Input{Kind: menu.Select, Digit: d}, true
	}
	switch {
	case key.Matches(msg, keys.Prev):
		return menu.Input{Kind: menu.PageBack}, true
	case key.Matches(msg, keys.Next):
		return menu.Input{Kind: menu.PageForward}, true
	case key.Matches(msg, keys.Undo):
		return menu.Input{Kind: menu.Undo}, true
	case key.Matches(msg, keys.Done):
		return menu.Input{Kind: menu.Done}, true
	case key.Matches(msg, keys.Cancel):
		return menu.Input{Kind: menu.Cancel}, true
	}
	return menu.Input{}, false
}

func (m Model) View() string {
	if m.done {
		return ""
	}
	f := m.menu.Render()
	var b strings.Builder
	if m.title != "" {
		b.WriteString(titleStyle.Render(m.title) + "\n")
	}
	if f.Header != "" {
		b.WriteString(headerStyle.Render(markup.Replace(f.Header)) + "\n\n")
	}
	if len(f.Lines) == 0 {
		b.WriteString(lineStyle.Render("None") + "\n")
	}
	for _, line := range f.Lines {
		b.WriteString(lineStyle.Render(markup.Replace(line)) + "\n")
	}
	if f.Pages > 1 {
		b.WriteString(pageStyle.Render(fmt.Sprintf("Page %d/%d", f.Page+1, f.Pages)) + "\n")
	}
	if f.Selected != "" {
		b.WriteString(selectedStyle.Render("Selected: "+markup.Replace(f.Selected)) + "\n")
	}
	return frameStyle.Render(strings.TrimRight(b.String(), "\n")) + "\n" + m.help.View(keys) + "\n"
}

// Result is the menu outcome once the program has quit.
func (m Model) Result() menu.Result {
	return m.result
}

// Run shows m on the terminal until it closes.
func Run(ctx context.Context, m *menu.Menu, title string, timeout time.Duration) (menu.Result, error) {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return menu.Result{}, ErrNotTerminal
	}
	p := tea.NewProgram(New(m, title, timeout), tea.WithContext(ctx), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		if ctx.Err() != nil {
			return menu.Result{}, ctx.Err()
		}
		return menu.Result{}, err
	}
	return final.(Model).Result(), nil
}
