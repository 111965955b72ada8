package game

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Rand is the randomness the game draws from. *rand.Rand from math/rand/v2
// satisfies it; tests inject fixed sequences.
type Rand interface {
	IntN(n int) int
}

type speciesKey struct {
	num, form int
}

// Catalog is the read-only reference data loaded once per process.
type Catalog struct {
	species    []Species
	byKey      map[speciesKey]Species
	names      []string
	nameToNum  map[string]int
	totalNums  int
	rules      []EvolutionRule
	rulesByNum map[int][]EvolutionRule
	natures    map[int]Nature
	items      []Item
	rewards    []Reward
	typeColors map[string]int
}

type CatalogData struct {
	Species    []Species
	Evolutions []EvolutionRule
	Natures    []Nature
	Items      []Item
	Rewards    []Reward
	TypeColors map[string]int
}

func NewCatalog(d CatalogData) (*Catalog, error) {
	if len(d.Species) == 0 {
		return nil, fmt.Errorf("catalog: no species")
	}
	c := &Catalog{
		byKey:      make(map[speciesKey]Species, len(d.Species)),
		nameToNum:  map[string]int{},
		rulesByNum: map[int][]EvolutionRule{},
		natures:    make(map[int]Nature, len(d.Natures)),
		typeColors: map[string]int{},
	}
	nums := map[int]struct{}{}
	for _, s := range d.Species {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		k := speciesKey{s.Num, s.FormID}
		if _, dup := c.byKey[k]; dup {
			return nil, fmt.Errorf("catalog: duplicate species %d-%d", s.Num, s.FormID)
		}
		c.byKey[k] = s
		c.species = append(c.species, s)
		nums[s.Num] = struct{}{}
		if _, seen := c.nameToNum[s.BaseName]; !seen {
			c.nameToNum[s.BaseName] = s.Num
			c.names = append(c.names, s.BaseName)
		}
	}
	c.totalNums = len(nums)

	c.rules = append(c.rules, d.Evolutions...)
	sort.SliceStable(c.rules, func(i, j int) bool { return c.rules[i].ID < c.rules[j].ID })
	for _, r := range c.rules {
		c.rulesByNum[r.Num] = append(c.rulesByNum[r.Num], r)
	}

	for _, n := range d.Natures {
		if n.Mod < 0 || n.Mod >= 25 {
			return nil, fmt.Errorf("catalog: nature %q has mod %d outside 0..24", n.Name, n.Mod)
		}
		c.natures[n.Mod] = n
	}
	c.items = append(c.items, d.Items...)
	sort.SliceStable(c.items, func(i, j int) bool { return c.items[i].ID < c.items[j].ID })
	c.rewards = append(c.rewards, d.Rewards...)
	for k, v := range d.TypeColors {
		c.typeColors[k] = v
	}
	return c, nil
}

func (c *Catalog) Species(num, formID int) (Species, error) {
	s, ok := c.byKey[speciesKey{num, formID}]
	if !ok {
		return Species{}, fmt.Errorf("species %d-%d: %w", num, formID, ErrNotFound)
	}
	return s, nil
}

// SpeciesByNum is the base form (form 0) of a dex number.
func (c *Catalog) SpeciesByNum(num int) (Species, error) {
	return c.Species(num, 0)
}

// SpeciesByName resolves a free-text name to its base form.
func (c *Catalog) SpeciesByName(name string) (Species, error) {
	match, score := BestMatch(name, c.names)
	if score < MatchThreshold {
		return Species{}, fmt.Errorf("pokemon %s: %w", name, ErrNotFound)
	}
	return c.SpeciesByNum(c.nameToNum[match])
}

// MatchAmong resolves a name only against the given species.
func (c *Catalog) MatchAmong(name string, among []Species) (Species, error) {
	names := make([]string, 0, len(among))
	byName := map[string]Species{}
	for _, s := range among {
		if _, ok := byName[s.BaseName]; ok {
			continue
		}
		byName[s.BaseName] = s
		names = append(names, s.BaseName)
	}
	match, score := BestMatch(name, names)
	if score < MatchThreshold {
		return Species{}, fmt.Errorf("pokemon %s: %w", name, ErrNotFound)
	}
	return byName[match], nil
}

func (c *Catalog) RandomSpecies(r Rand) Species {
	return c.species[r.IntN(len(c.species))]
}

// TotalSpecies counts distinct dex numbers.
func (c *Catalog) TotalSpecies() int {
	return c.totalNums
}

// BaseForms lists the form 0 species in dex order.
func (c *Catalog) BaseForms() []Species {
	out := make([]Species, 0, c.totalNums)
	for _, s := range c.species {
		if s.FormID == 0 {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Num < out[j].Num })
	return out
}

// EvolutionRules are the rules for num in stored order.
func (c *Catalog) EvolutionRules(num int) []EvolutionRule {
	return c.rulesByNum[num]
}

func (c *Catalog) AllEvolutionRules() []EvolutionRule {
	return c.rules
}

// ItemEvolutions maps evolution item names usable on num to their target.
func (c *Catalog) ItemEvolutions(num int) map[string]int {
	out := map[string]int{}
	for _, r := range c.rulesByNum[num] {
		if r.Item != "" && r.Next != nil {
			out[r.Item] = *r.Next
		}
	}
	return out
}

func (c *Catalog) Nature(personality uint32) Nature {
	return c.natures[NatureIndex(personality)]
}

// Items in catalog (id) order.
func (c *Catalog) Items() []Item {
	return c.items
}

// ShopBalls are the purchasable balls ordered by price.
func (c *Catalog) ShopBalls() []Item {
	var out []Item
	for _, it := range c.items {
		if it.Price != 0 && strings.HasSuffix(it.Name, "ball") {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out
}

func (c *Catalog) RandomReward(r Rand) (Reward, error) {
	if len(c.rewards) == 0 {
		return Reward{}, fmt.Errorf("rewards: %w", ErrNotFound)
	}
	return c.rewards[r.IntN(len(c.rewards))], nil
}

// Color is the rounded mean of the species' type colours.
func (c *Catalog) Color(s Species) int {
	if len(s.Types) == 0 {
		return s.Color
	}
	sum := 0
	for _, t := range s.Types {
		sum += c.typeColors[t]
	}
	return int(math.RoundToEven(float64(sum) / float64(len(s.Types))))
}

func (c *Catalog) starredName(num int) string {
	s, err := c.SpeciesByNum(num)
	if err != nil {
		return fmt.Sprintf("#%d", num)
	}
	return s.BaseName + s.Star()
}

func (c *Catalog) firstRule(num int) (EvolutionRule, bool) {
	rules := c.rulesByNum[num]
	if len(rules) == 0 {
		return EvolutionRule{}, false
	}
	return rules[0], true
}

// NoEvolution is the chain text for species outside any evolution line.
const NoEvolution = "This Pokémon does not evolve."

// EvolutionChain renders the line through num: ancestors and num joined by
// ☑, then one row per branch continuing with ➡.
func (c *Catalog) EvolutionChain(num int) string {
	head := []int{num}
	cur := num
	for depth := 0; depth < 2; depth++ {
		r, ok := c.firstRule(cur)
		if !ok || r.Prev == nil {
			break
		}
		head = append([]int{*r.Prev}, head...)
		cur = *r.Prev
	}

	names := make([]string, len(head))
	for i, n := range head {
		names[i] = c.starredName(n)
	}
	start := strings.Join(names, "☑")

	var lines []string
	for _, child := range c.nextOf(num) {
		grand := c.nextOf(child)
		if len(grand) == 0 {
			lines = append(lines, start+"➡"+c.starredName(child))
			continue
		}
		for _, g := range grand {
			lines = append(lines, start+"➡"+c.starredName(child)+"➡"+c.starredName(g))
		}
	}
	if len(lines) == 0 {
		if len(head) == 1 {
			return NoEvolution
		}
		return start
	}
	return strings.Join(lines, "\n")
}

func (c *Catalog) nextOf(num int) []int {
	var out []int
	seen := map[int]bool{}
	for _, r := range c.rulesByNum[num] {
		if r.Next == nil || seen[*r.Next] {
			continue
		}
		seen[*r.Next] = true
		out = append(out, *r.Next)
	}
	return out
}
