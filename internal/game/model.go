package game

import (
	"errors"
	"fmt"
)

const (
	MoneyKey = "money"

	// ShinyThreshold is floor(65536/400); a shiny value at or below it wins.
	ShinyThreshold = 65536 / 400

	MaxIV           = 31
	DefaultPartyMax = 4

	// SellCredit amounts, see SellCredit.
	ShinyCredit     = 1000
	MythicalCredit  = 1000
	LegendaryCredit = 600
	NormalCredit    = 100
)

const (
	Star        = "\\⭐"
	GlowingStar = "\\\U0001F31F"
	Sparkles    = "\\✨"
	Currency    = "Ꝑ"
)

// Balls in tier order; the index is the catch tier.
var Balls = []string{"Pokeball", "Greatball", "Ultraball", "Masterball"}

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidQuery   = errors.New("invalid query")
	ErrStaleSelection = errors.New("selection is no longer owned")
	ErrTimeout        = errors.New("timed out waiting for a response")

	ErrNothingToSell  = errors.New("no pokemon to sell")
	ErrTooPoor        = errors.New("nothing affordable in selection")
	ErrSelfTrade      = errors.New("cannot trade with yourself")
	ErrNoResponse     = errors.New("no one responded")
	ErrPartyFull      = errors.New("party is full")
	ErrNotInParty     = errors.New("pokemon is not in the party")
	ErrNotOwned       = errors.New("pokemon is not owned by this trainer")
	ErrNoItem         = errors.New("item not in inventory")
	ErrAlreadyPlonked = errors.New("user is already plonked")
)

// WrongChannelError signals a command used outside its designated channel.
// ChannelID is empty when the guild has no such channel.
type WrongChannelError struct {
	ChannelID string
}

func (e *WrongChannelError) Error() string {
	if e.ChannelID == "" {
		return "command not available in this server"
	}
	return fmt.Sprintf("command must be used in channel %s", e.ChannelID)
}

// CancelledError names the participant who backed out of a multi-party flow.
type CancelledError struct {
	UserID int64
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("user %d cancelled", e.UserID)
}

// DeclinedError names the participant who refused a confirmation.
type DeclinedError struct {
	UserID int64
}

func (e *DeclinedError) Error() string {
	return fmt.Sprintf("user %d declined", e.UserID)
}

// OverSelectedError is returned when one creature was picked more than once.
type OverSelectedError struct {
	UserID int64
	Name   string
}

func (e *OverSelectedError) Error() string {
	return fmt.Sprintf("user %d selected more %s than they have", e.UserID, e.Name)
}

// ImagePath is the deterministic attachment path for a species sprite.
func ImagePath(shiny bool, num, formID int) string {
	status := "normal"
	if shiny {
		status = "shiny"
	}
	return fmt.Sprintf("%s/%d-%d.gif", status, num, formID)
}
