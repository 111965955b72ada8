package menu

import (
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 20

	// Unbounded lets a multi-select menu run until Done.
	Unbounded = -1
)

var ErrLengthMismatch = errors.New("menu: display and options lengths differ")

type Options struct {
	// Count is the number of picks that ends the menu: 0 for a read-only
	// view, Unbounded for open-ended multi-select, n for exactly n picks.
	Count     int
	Multi     bool
	AllowNone bool
	PerPage   int
	Header    string
}

type Status int

const (
	Open Status = iota
	Finished
	Cancelled
	TimedOut
)

func (s Status) String() string {
	switch s {
	case Open:
		return "open"
	case Finished:
		return "finished"
	case Cancelled:
		return "cancelled"
	case TimedOut:
		return "timed out"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Menu is the paginated chooser state machine. It is not safe for
// concurrent use; each invocation owns its own Menu.
type Menu struct {
	opts     Options
	options  []string
	display  []string
	page     int
	selected []int
	status   Status
	revision int
}

// New builds a menu over options. display, when non-nil, is what the
// "Selected:" line shows for each option and must match options in length.
func New(options, display []string, opts Options) (*Menu, error) {
	if display == nil {
		display = options
	}
	if len(display) != len(options) {
		return nil, fmt.Errorf("%w: %d display entries for %d options", ErrLengthMismatch, len(display), len(options))
	}
	if opts.PerPage <= 0 {
		opts.PerPage = DefaultPerPage
	}
	if opts.PerPage > MaxPerPage {
		opts.PerPage = MaxPerPage
	}
	if opts.Count > 0 && !opts.Multi && opts.Count > len(options) {
		opts.Count = len(options)
	}
	if len(options) == 0 && opts.Count > 0 {
		opts.Count = 0
	}
	return &Menu{opts: opts, options: options, display: display}, nil
}

func (m *Menu) Options() Options { return m.opts }

func (m *Menu) Status() Status { return m.status }

func (m *Menu) Page() int { return m.page }

// Revision increases every time an input changes the menu.
func (m *Menu) Revision() int { return m.revision }

func (m *Menu) Pages() int {
	if len(m.options) == 0 {
		return 1
	}
	return (len(m.options) + m.opts.PerPage - 1) / m.opts.PerPage
}

// Selected returns the chosen option indexes in pick order.
func (m *Menu) Selected() []int {
	out := make([]int, len(m.selected))
	copy(out, m.selected)
	return out
}

// Selectable reports whether digits pick anything on this menu.
func (m *Menu) Selectable() bool {
	return m.opts.Count != 0
}

// PageSize is the number of options on the current page.
func (m *Menu) PageSize() int {
	start := m.page * m.opts.PerPage
	end := start + m.opts.PerPage
	if end > len(m.options) {
		end = len(m.options)
	}
	if start >= end {
		return 0
	}
	return end - start
}

// Apply feeds one input to the menu and returns the resulting status.
// Inputs after the menu has closed are ignored.
func (m *Menu) Apply(in Input) Status {
	if m.status != Open {
		return m.status
	}
	switch in.Kind {
	case Select:
		m.selectDigit(in.Digit)
	case PageBack:
		if m.page > 0 {
			m.page--
			m.revision++
		}
	case PageForward:
		if m.page+1 < m.Pages() {
			m.page++
			m.revision++
		}
	case Undo:
		if len(m.selected) > 0 {
			m.selected = m.selected[:len(m.selected)-1]
			m.revision++
		}
	case Done:
		if len(m.selected) > 0 || m.opts.AllowNone || m.opts.Count == 0 {
			m.finish(Finished)
		}
	case Cancel:
		m.finish(Cancelled)
	case Timeout:
		m.finish(TimedOut)
	}
	return m.status
}

func (m *Menu) selectDigit(d int) {
	if m.opts.Count == 0 || d < 1 || d > m.PageSize() {
		return
	}
	idx := m.page*m.opts.PerPage + d - 1
	if !m.opts.Multi {
		for _, s := range m.selected {
			if s == idx {
				return
			}
		}
	}
	m.selected = append(m.selected, idx)
	m.revision++
	if m.opts.Count > 0 && len(m.selected) == m.opts.Count {
		m.finish(Finished)
	}
}

func (m *Menu) finish(s Status) {
	m.status = s
	m.revision++
}

// Frame is one rendering of the menu.
type Frame struct {
	Header   string
	Lines    []string
	Selected string
	Page     int
	Pages    int
}

func (f Frame) Text() string {
	var b strings.Builder
	if f.Header != "" {
		b.WriteString(f.Header)
		b.WriteString("\n")
	}
	if len(f.Lines) == 0 {
		b.WriteString("None")
	} else {
		b.WriteString(strings.Join(f.Lines, "\n"))
	}
	if f.Pages > 1 {
		fmt.Fprintf(&b, "\nPage %d/%d", f.Page+1, f.Pages)
	}
	if f.Selected != "" {
		b.WriteString("\nSelected: ")
		b.WriteString(f.Selected)
	}
	return b.String()
}

func (m *Menu) Render() Frame {
	f := Frame{Header: m.opts.Header, Page: m.page, Pages: m.Pages()}
	start := m.page * m.opts.PerPage
	for i := 0; i < m.PageSize(); i++ {
		line := m.options[start+i]
		if m.opts.Count != 0 {
			line = fmt.Sprintf("%d. %s", i+1, line)
		}
		f.Lines = append(f.Lines, line)
	}
	if len(m.selected) > 0 {
		names := make([]string, len(m.selected))
		for i, idx := range m.selected {
			names[i] = m.display[idx]
		}
		f.Selected = strings.Join(names, ", ")
	}
	return f
}
