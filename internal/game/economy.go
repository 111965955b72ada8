package game

import "sort"

// SellCredit is what one released creature pays out. The shiny bonus stacks
// on top of the rarity credit.
func SellCredit(f FoundPokemon) int {
	total := 0
	if f.Shiny {
		total += ShinyCredit
	}
	switch {
	case f.Species.Mythical:
		total += MythicalCredit
	case f.Species.Legendary:
		total += LegendaryCredit
	default:
		total += NormalCredit
	}
	return total
}

// PurchasePlan is the outcome of applying a shop selection to a balance.
type PurchasePlan struct {
	Bought map[string]int
	Spent  int
	// Delta is ready for Inventory.Apply / a locked inventory write.
	Delta Inventory
}

func (p PurchasePlan) Empty() bool {
	return p.Spent == 0
}

// PlanPurchase walks the distinct selected indexes in ascending order. Each
// item costs price*occurrences*multiple; an item that would overdraw the
// running balance is skipped and the walk continues with the next one.
func PlanPurchase(items []Item, selected []int, multiple, money int) PurchasePlan {
	plan := PurchasePlan{Bought: map[string]int{}, Delta: Inventory{}}
	if multiple < 1 {
		return plan
	}
	occurrences := map[int]int{}
	for _, idx := range selected {
		if idx < 0 || idx >= len(items) {
			continue
		}
		occurrences[idx]++
	}
	indexes := make([]int, 0, len(occurrences))
	for idx := range occurrences {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	balance := money
	for _, idx := range indexes {
		item := items[idx]
		count := occurrences[idx] * multiple
		price := item.Price * count
		if balance-price < 0 {
			continue
		}
		balance -= price
		plan.Spent += price
		plan.Bought[item.Name] += count
		plan.Delta[item.Name] += count
	}
	if plan.Spent > 0 {
		plan.Delta[MoneyKey] -= plan.Spent
	}
	return plan
}
