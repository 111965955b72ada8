package game

import (
	"math"
)

// XPToLevel is the experience threshold for a level: floor(level^3 / 2).
func XPToLevel(level int) int {
	return (level * level * level) / 2
}

// LevelFromXP is floor(((exp+1)*2) ^ (1/3)) with a floor of 1. The cube
// root is exact: the largest n with n^3 <= (exp+1)*2.
func LevelFromXP(exp int) int {
	target := (exp + 1) * 2
	if target < 8 {
		return 1
	}
	n := int(math.Cbrt(float64(target)))
	for n*n*n > target {
		n--
	}
	for (n+1)*(n+1)*(n+1) <= target {
		n++
	}
	return n
}

// ComputeStats applies base stats, IV, EV, nature and level. Floors happen in
// this order: EV/4, the /100 scale, then the nature multiplier.
func ComputeStats(base, iv, ev Stats, nature Nature, level int) Stats {
	var out Stats
	for _, st := range AllStats {
		v := ((2*base.Get(st)+iv.Get(st)+ev.Get(st)/4)*level)/100 + 5
		switch {
		case st == StatHP:
			v = v + level + 5
		case nature.Increase == st:
			v = int(math.Floor(float64(v) * 1.1))
		case nature.Decrease == st:
			v = int(math.Floor(float64(v) * 0.9))
		}
		out.Set(st, v)
	}
	return out
}

// ExpProgress is the experience into the current level and the span of it.
func ExpProgress(exp int) (current, needed int) {
	level := LevelFromXP(exp)
	needed = XPToLevel(level+1) - XPToLevel(level)
	current = exp - XPToLevel(level)
	return current, needed
}

// ExpBar renders a ten-cell progress bar for ExpProgress.
func ExpBar(exp int) string {
	const length = 10
	current, needed := ExpProgress(exp)
	filled := 0
	if needed > 0 && current > 0 {
		filled = length * current / needed
	}
	if filled > length {
		filled = length
	}
	bar := make([]rune, 0, length)
	for i := 0; i < length; i++ {
		if i < filled {
			bar = append(bar, '■')
		} else {
			bar = append(bar, '□')
		}
	}
	return "[" + string(bar) + "]"
}

// StartingExp is the experience a wild catch starts with: the threshold of
// the level rule that produces the species. Item and trade markers (1, 100)
// are not real levels and start at zero.
func StartingExp(rules []EvolutionRule, num int) int {
	for _, r := range rules {
		if r.Next == nil || *r.Next != num {
			continue
		}
		if r.TerminalTrigger() {
			return 0
		}
		return XPToLevel(r.Level)
	}
	return 0
}

type YieldInput struct {
	Defeated      Species
	DefeatedExp   int
	Wild          bool
	Participants  int
	Owner         int64
	OriginalOwner int64
}

// Yield is the EV and experience a winner receives from a defeated species.
type Yield struct {
	EV  Stats
	Exp int
}

// YieldStats is the passive EV and experience award for defeating a species.
func YieldStats(in YieldInput) Yield {
	participants := in.Participants
	if participants < 1 {
		participants = 1
	}
	wildMod := 1.5
	if in.Wild {
		wildMod = 1
	}
	ownerMod := 1.0
	if in.Owner != in.OriginalOwner {
		ownerMod = 1.5
	}
	loserLevel := LevelFromXP(in.DefeatedExp)
	exp := math.Floor((wildMod * ownerMod * float64(in.Defeated.XPYield) * float64(loserLevel)) / float64(7*participants))
	return Yield{EV: in.Defeated.Yield, Exp: int(exp)}
}
