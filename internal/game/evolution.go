package game

// EvolutionInput is the creature-side state an evolution check looks at.
type EvolutionInput struct {
	Exp      int
	HeldItem string
	Trading  bool
	// Offered holds the species nums coming back in exchange during a trade.
	Offered []int
}

// CheckEvolution walks rules in stored order and returns the target num of
// the first rule that fires. Each rule is tested as a chain: a targeted
// trade rule only fires for its trade_for partner, otherwise the trade flag
// has to equal the trading state, otherwise the rule's item has to be held.
// Level-gated rules also require the experience threshold.
func CheckEvolution(rules []EvolutionRule, in EvolutionInput) (int, bool) {
	for _, r := range rules {
		if r.Next == nil {
			continue
		}
		if !r.TerminalTrigger() && in.Exp < XPToLevel(r.Level) {
			continue
		}
		if ruleMatches(r, in) {
			return *r.Next, true
		}
	}
	return 0, false
}

func ruleMatches(r EvolutionRule, in EvolutionInput) bool {
	if r.TradeFor != nil && r.Trade && in.Trading {
		return containsInt(in.Offered, *r.TradeFor)
	}
	if r.Trade == in.Trading {
		return true
	}
	return r.Item != "" && r.Item == in.HeldItem
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
