package menu

import (
	"strconv"
	"strings"
)

type InputKind int

const (
	Select InputKind = iota
	PageBack
	PageForward
	Undo
	Done
	Cancel
	Timeout
)

// Input is one user action. Digit is page-relative and 1-indexed.
type Input struct {
	Kind  InputKind
	Digit int
}

const (
	EmojiBack    = "\u2b05"
	EmojiForward = "\u27a1"
	EmojiUndo    = "\U0001F504"
	EmojiDone    = "\u2705"
	EmojiCancel  = "\u274c"
	EmojiUp      = "\U0001F53C"
	EmojiDown    = "\U0001F53D"
)

// Keycaps are the reaction digits 1..10.
var Keycaps = []string{
	"1\u20e3", "2\u20e3", "3\u20e3", "4\u20e3", "5\u20e3",
	"6\u20e3", "7\u20e3", "8\u20e3", "9\u20e3", "\U0001F51F",
}

var textControls = map[string]InputKind{
	"p": PageBack, "prev": PageBack, "previous": PageBack, "last": PageBack,
	"n": PageForward, "next": PageForward,
	"d": Done, "done": Done, "f": Done, "finish": Done,
	"c": Cancel, "cancel": Cancel,
	"u": Undo, "undo": Undo,
}

// ParseText maps a typed chat message to an input. Only whole-message
// digits and control words count.
func ParseText(s string) (Input, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Input{}, false
	}
	if n, err := strconv.Atoi(s); err == nil && isDigits(s) {
		return Input{Kind: Select, Digit: n}, true
	}
	kind, ok := textControls[s]
	if !ok {
		return Input{}, false
	}
	return Input{Kind: kind}, true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParseReaction maps a reaction emoji to an input.
func ParseReaction(emoji string) (Input, bool) {
	emoji = strings.ReplaceAll(emoji, "\ufe0f", "")
	for i, k := range Keycaps {
		if emoji == k {
			return Input{Kind: Select, Digit: i + 1}, true
		}
	}
	switch emoji {
	case EmojiBack:
		return Input{Kind: PageBack}, true
	case EmojiForward:
		return Input{Kind: PageForward}, true
	case EmojiUndo:
		return Input{Kind: Undo}, true
	case EmojiDone:
		return Input{Kind: Done}, true
	case EmojiCancel:
		return Input{Kind: Cancel}, true
	}
	return Input{}, false
}

// Reactions lists the affordances a reaction-driven view should offer for
// the menu's current page.
func (m *Menu) Reactions() []string {
	out := []string{EmojiBack, EmojiForward}
	if m.Selectable() {
		n := m.PageSize()
		if n > len(Keycaps) {
			n = len(Keycaps)
		}
		out = append(out, Keycaps[:n]...)
		out = append(out, EmojiUndo, EmojiDone)
	}
	return append(out, EmojiCancel)
}
