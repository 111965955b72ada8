package discord

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"pokebot/internal/flow"
	"pokebot/internal/game"
)

// UserMessage maps an error a player can act on to the text shown in chat.
// It reports false for internal failures.
func UserMessage(err error, nameOf func(int64) string) (string, bool) {
	var (
		wrongChannel *game.WrongChannelError
		cancelled    *game.CancelledError
		declined     *game.DeclinedError
		overSelected *game.OverSelectedError
		empty        *flow.EmptyError
	)
	switch {
	case err == nil:
		return "", false
	case errors.As(err, &wrongChannel):
		if wrongChannel.ChannelID == "" {
			return ":x: **You can't use that command in this server.**", true
		}
		return fmt.Sprintf(":x: **You can't do that here.**\nPlease do this in <#%s>", wrongChannel.ChannelID), true
	case errors.As(err, &cancelled):
		return fmt.Sprintf("**%s** cancelled the trade.", nameOf(cancelled.UserID)), true
	case errors.As(err, &declined):
		return fmt.Sprintf("**%s** declined the trade.", nameOf(declined.UserID)), true
	case errors.As(err, &overSelected):
		return fmt.Sprintf("%s selected more %s than they have.", nameOf(overSelected.UserID), overSelected.Name), true
	case errors.As(err, &empty):
		return empty.Error(), true
	case errors.Is(err, game.ErrSelfTrade):
		return "You cannot trade with yourself.", true
	case errors.Is(err, game.ErrNoResponse):
		return "No one responded to the trade.", true
	case errors.Is(err, game.ErrNothingToSell):
		return "You don't have any pokemon to sell.", true
	case errors.Is(err, game.ErrTooPoor):
		return "You don't have enough money for that.", true
	case errors.Is(err, game.ErrPartyFull):
		return "Your party is full!", true
	case errors.Is(err, game.ErrNoItem):
		return "You don't have that item.", true
	case errors.Is(err, game.ErrStaleSelection):
		return "Something you selected is no longer yours.", true
	case errors.Is(err, game.ErrAlreadyPlonked):
		return "User is already plonked.", true
	case errors.Is(err, game.ErrInvalidQuery):
		return capitalize(err.Error()) + ".", true
	case errors.Is(err, game.ErrNotFound):
		return capitalize(strings.TrimSuffix(err.Error(), ": "+game.ErrNotFound.Error())) + " does not exist.", true
	}
	return "", false
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
