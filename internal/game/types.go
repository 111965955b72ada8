package game

import (
	"fmt"
	"sort"
	"strings"
)

type Stat string

const (
	StatHP        Stat = "hp"
	StatAttack    Stat = "attack"
	StatDefense   Stat = "defense"
	StatSpAttack  Stat = "sp_attack"
	StatSpDefense Stat = "sp_defense"
	StatSpeed     Stat = "speed"
)

// AllStats is the fixed order stats are computed and displayed in.
var AllStats = []Stat{StatHP, StatAttack, StatDefense, StatSpAttack, StatSpDefense, StatSpeed}

func ParseStat(s string) (Stat, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, st := range AllStats {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Label renders a stat the way the PC info card shows it, e.g. "Sp. Attack".
func (s Stat) Label() string {
	parts := strings.Split(string(s), "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	if len(parts) == 2 {
		return parts[0] + ". " + parts[1]
	}
	if s == StatHP {
		return "HP"
	}
	return strings.Join(parts, " ")
}

type Stats struct {
	HP        int `json:"hp"`
	Attack    int `json:"attack"`
	Defense   int `json:"defense"`
	SpAttack  int `json:"sp_attack"`
	SpDefense int `json:"sp_defense"`
	Speed     int `json:"speed"`
}

func (s Stats) Get(st Stat) int {
	switch st {
	case StatHP:
		return s.HP
	case StatAttack:
		return s.Attack
	case StatDefense:
		return s.Defense
	case StatSpAttack:
		return s.SpAttack
	case StatSpDefense:
		return s.SpDefense
	case StatSpeed:
		return s.Speed
	}
	return 0
}

func (s *Stats) Set(st Stat, v int) {
	switch st {
	case StatHP:
		s.HP = v
	case StatAttack:
		s.Attack = v
	case StatDefense:
		s.Defense = v
	case StatSpAttack:
		s.SpAttack = v
	case StatSpDefense:
		s.SpDefense = v
	case StatSpeed:
		s.Speed = v
	}
}

// Species is immutable reference data for one (num, form_id) pair.
type Species struct {
	Num       int
	FormID    int
	BaseName  string
	Form      string
	Types     []string
	Legendary bool
	Mythical  bool
	Base      Stats
	Yield     Stats
	XPYield   int
	Color     int
}

func (s Species) Validate() error {
	if s.Num <= 0 {
		return fmt.Errorf("species num must be > 0, got %d", s.Num)
	}
	if s.FormID < 0 {
		return fmt.Errorf("species %d: form id must be >= 0", s.Num)
	}
	if strings.TrimSpace(s.BaseName) == "" {
		return fmt.Errorf("species %d-%d: base name is required", s.Num, s.FormID)
	}
	if len(s.Types) == 0 {
		return fmt.Errorf("species %d-%d: at least one type is required", s.Num, s.FormID)
	}
	return nil
}

// DisplayName is "Speed Deoxys" for forms and the base name otherwise.
func (s Species) DisplayName() string {
	if s.Form != "" {
		return s.Form + " " + s.BaseName
	}
	return s.BaseName
}

func (s Species) Star() string {
	switch {
	case s.Mythical:
		return GlowingStar
	case s.Legendary:
		return Star
	}
	return ""
}

// Rarity is the sell/catch class; mythical wins over legendary.
func (s Species) Rarity() string {
	switch {
	case s.Mythical:
		return "mythical"
	case s.Legendary:
		return "legendary"
	}
	return "normal"
}

type EvolutionRule struct {
	ID       int64
	Num      int
	Prev     *int
	Next     *int
	Level    int
	Item     string
	Trade    bool
	TradeFor *int
}

// TerminalTrigger reports rules that carry no experience threshold.
func (r EvolutionRule) TerminalTrigger() bool {
	return r.Level == 1 || r.Level == 100
}

type Nature struct {
	Mod      int
	Name     string
	Increase Stat
	Decrease Stat
}

// Inventory maps item names to counts. Currency lives under MoneyKey.
type Inventory map[string]int

func (inv Inventory) Money() int {
	return inv[MoneyKey]
}

func (inv Inventory) Clone() Inventory {
	out := make(Inventory, len(inv))
	for k, v := range inv {
		out[k] = v
	}
	return out
}

// Apply adds delta and drops every entry that ends up at zero or below.
func (inv Inventory) Apply(delta Inventory) Inventory {
	out := inv.Clone()
	for k, v := range delta {
		out[k] += v
	}
	for k, v := range out {
		if v <= 0 {
			delete(out, k)
		}
	}
	return out
}

func (inv Inventory) Keys() []string {
	keys := make([]string, 0, len(inv))
	for k := range inv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type Trainer struct {
	UserID    int64
	SecretID  uint32
	Inventory Inventory
}

type Item struct {
	ID    int
	Name  string
	Price int
}

type Reward struct {
	Name     string
	Quantity int
}

// FoundPokemon is an owned (or released) creature instance. It carries its
// resolved Species plus its own mutable fields.
type FoundPokemon struct {
	ID            int64
	Species       Species
	Nickname      string
	Ball          string
	Exp           int
	Item          string
	PartyPosition *int
	Owner         *int64
	OriginalOwner int64
	Personality   uint32
	IV            Stats
	EV            Stats
	Nature        Nature
	Shiny         bool
}

func (f FoundPokemon) Level() int {
	return LevelFromXP(f.Exp)
}

func (f FoundPokemon) Stats() Stats {
	return ComputeStats(f.Species.Base, f.IV, f.EV, f.Nature, f.Level())
}

func (f FoundPokemon) InParty() bool {
	return f.PartyPosition != nil
}

func (f FoundPokemon) OwnedBy(userID int64) bool {
	return f.Owner != nil && *f.Owner == userID
}

// DisplayName is "Sonic (Speed Deoxys)" when nicknamed.
func (f FoundPokemon) DisplayName() string {
	name := f.Species.DisplayName()
	if f.Nickname != "" {
		return fmt.Sprintf("%s (%s)", f.Nickname, name)
	}
	return name
}

func (f FoundPokemon) Sparkle() string {
	if f.Shiny {
		return Sparkles
	}
	return ""
}

// NewCatch is the insert payload for a freshly caught creature.
type NewCatch struct {
	Species     Species
	Ball        string
	Exp         int
	Owner       int64
	Personality uint32
	IV          Stats
}
