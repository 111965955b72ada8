package game

import (
	"errors"
	"testing"
)

type seqRand struct {
	vals []int
	i    int
}

func (r *seqRand) IntN(n int) int {
	v := r.vals[r.i%len(r.vals)] % n
	r.i++
	return v
}

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog(CatalogData{
		Species: []Species{
			{Num: 1, BaseName: "Bulbasaur", Types: []string{"Grass", "Poison"}},
			{Num: 2, BaseName: "Ivysaur", Types: []string{"Grass", "Poison"}},
			{Num: 3, BaseName: "Venusaur", Types: []string{"Grass", "Poison"}},
			{Num: 133, BaseName: "Eevee", Types: []string{"Normal"}},
			{Num: 134, BaseName: "Vaporeon", Types: []string{"Water"}},
			{Num: 135, BaseName: "Jolteon", Types: []string{"Electric"}},
			{Num: 150, BaseName: "Mewtwo", Types: []string{"Psychic"}, Legendary: true},
			{Num: 386, BaseName: "Deoxys", Types: []string{"Psychic"}, Mythical: true},
			{Num: 386, FormID: 1, BaseName: "Deoxys", Form: "Speed", Types: []string{"Psychic"}, Mythical: true},
		},
		Evolutions: []EvolutionRule{
			{ID: 3, Num: 3, Prev: intPtr(2), Level: 100},
			{ID: 1, Num: 1, Next: intPtr(2), Level: 16},
			{ID: 2, Num: 2, Prev: intPtr(1), Next: intPtr(3), Level: 32},
			{ID: 4, Num: 133, Next: intPtr(134), Level: 1, Item: "Water Stone"},
			{ID: 5, Num: 133, Next: intPtr(135), Level: 1, Item: "Thunder Stone"},
			{ID: 6, Num: 134, Prev: intPtr(133), Level: 100},
		},
		Natures: []Nature{{Mod: 0, Name: "Hardy", Increase: StatAttack, Decrease: StatAttack}, {Mod: 3, Name: "Adamant", Increase: StatAttack, Decrease: StatSpAttack}},
		Items: []Item{
			{ID: 1, Name: MoneyKey},
			{ID: 2, Name: "Pokeball", Price: 200},
			{ID: 5, Name: "Masterball", Price: 0},
			{ID: 3, Name: "Ultraball", Price: 1200},
			{ID: 4, Name: "Greatball", Price: 600},
			{ID: 6, Name: "Water Stone", Price: 0},
		},
		Rewards:    []Reward{{Name: MoneyKey, Quantity: 500}, {Name: "Pokeball", Quantity: 5}},
		TypeColors: map[string]int{"Grass": 100, "Poison": 201, "Psychic": 7},
	})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return c
}

func TestNewCatalogRejectsInvalid(t *testing.T) {
	if _, err := NewCatalog(CatalogData{}); err == nil {
		t.Fatalf("expected empty catalog to fail")
	}
	_, err := NewCatalog(CatalogData{Species: []Species{
		{Num: 1, BaseName: "Bulbasaur", Types: []string{"Grass"}},
		{Num: 1, BaseName: "Bulbasaur", Types: []string{"Grass"}},
	}})
	if err == nil {
		t.Fatalf("expected duplicate species to fail")
	}
	_, err = NewCatalog(CatalogData{
		Species: []Species{{Num: 1, BaseName: "Bulbasaur", Types: []string{"Grass"}}},
		Natures: []Nature{{Mod: 25, Name: "Broken"}},
	})
	if err == nil {
		t.Fatalf("expected out of range nature to fail")
	}
}

func TestCatalogLookups(t *testing.T) {
	c := testCatalog(t)
	if c.TotalSpecies() != 8 {
		t.Fatalf("total species got %d want 8", c.TotalSpecies())
	}
	s, err := c.Species(386, 1)
	if err != nil || s.DisplayName() != "Speed Deoxys" {
		t.Fatalf("form lookup got %+v err=%v", s, err)
	}
	if _, err := c.Species(999, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	s, err = c.SpeciesByName("bulbasuar")
	if err != nil || s.Num != 1 {
		t.Fatalf("fuzzy lookup got %+v err=%v", s, err)
	}
	if _, err := c.SpeciesByName("qwerty"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for weak match, got %v", err)
	}
	if n := c.Nature(28); n.Name != "Adamant" {
		t.Fatalf("nature for 28 got %q", n.Name)
	}
	if got := c.Color(Species{Types: []string{"Grass", "Poison"}}); got != 150 {
		t.Fatalf("color got %d want 150", got)
	}
}

func TestCatalogBaseForms(t *testing.T) {
	c := testCatalog(t)
	forms := c.BaseForms()
	if len(forms) != 8 {
		t.Fatalf("base forms got %d want 8", len(forms))
	}
	if forms[0].Num != 1 || forms[7].Num != 386 || forms[7].FormID != 0 {
		t.Fatalf("unexpected order %+v", forms)
	}
}

func TestCatalogShopBalls(t *testing.T) {
	c := testCatalog(t)
	balls := c.ShopBalls()
	want := []string{"Pokeball", "Greatball", "Ultraball"}
	if len(balls) != len(want) {
		t.Fatalf("got %d balls want %d", len(balls), len(want))
	}
	for i, b := range balls {
		if b.Name != want[i] {
			t.Fatalf("ball %d got %q want %q", i, b.Name, want[i])
		}
	}
}

func TestCatalogRandomness(t *testing.T) {
	c := testCatalog(t)
	r := &seqRand{vals: []int{0, 7}}
	if s := c.RandomSpecies(r); s.Num != 1 {
		t.Fatalf("first draw got %d", s.Num)
	}
	if s := c.RandomSpecies(r); s.Num != 386 {
		t.Fatalf("second draw got %d", s.Num)
	}
	rw, err := c.RandomReward(&seqRand{vals: []int{1}})
	if err != nil || rw.Name != "Pokeball" || rw.Quantity != 5 {
		t.Fatalf("reward got %+v err=%v", rw, err)
	}
}

func TestEvolutionRulesKeepStoredOrder(t *testing.T) {
	c := testCatalog(t)
	rules := c.EvolutionRules(133)
	if len(rules) != 2 || *rules[0].Next != 134 || *rules[1].Next != 135 {
		t.Fatalf("rules %+v", rules)
	}
	items := c.ItemEvolutions(133)
	if items["Water Stone"] != 134 || items["Thunder Stone"] != 135 {
		t.Fatalf("item evolutions %+v", items)
	}
}

func TestEvolutionChain(t *testing.T) {
	c := testCatalog(t)
	tests := []struct {
		num  int
		want string
	}{
		{num: 1, want: "Bulbasaur➡Ivysaur➡Venusaur"},
		{num: 2, want: "Bulbasaur☑Ivysaur➡Venusaur"},
		{num: 3, want: "Bulbasaur☑Ivysaur☑Venusaur"},
		{num: 133, want: "Eevee➡Vaporeon\nEevee➡Jolteon"},
		{num: 134, want: "Eevee☑Vaporeon"},
		{num: 150, want: NoEvolution},
	}
	for _, tc := range tests {
		if got := c.EvolutionChain(tc.num); got != tc.want {
			t.Fatalf("num=%d got=%q want=%q", tc.num, got, tc.want)
		}
	}
}

func TestCatalogPartialAndMisspelledNames(t *testing.T) {
	c, err := NewCatalog(CatalogData{Species: []Species{
		{Num: 4, BaseName: "Charmander", Types: []string{"Fire"}},
		{Num: 5, BaseName: "Charmeleon", Types: []string{"Fire"}},
		{Num: 6, BaseName: "Charizard", Types: []string{"Fire", "Flying"}},
		{Num: 25, BaseName: "Pikachu", Types: []string{"Electric"}},
		{Num: 26, BaseName: "Raichu", Types: []string{"Electric"}},
		{Num: 122, BaseName: "Mr. Mime", Types: []string{"Psychic"}},
	}})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}

	tests := []struct {
		query string
		want  int
	}{
		{query: "pika", want: 25},
		{query: "chariz", want: 6},
		{query: "charizrd", want: 6},
		{query: "mr mime", want: 122},
		{query: "raichu", want: 26},
	}
	for _, tc := range tests {
		sp, err := c.SpeciesByName(tc.query)
		if err != nil {
			t.Fatalf("SpeciesByName(%q): %v", tc.query, err)
		}
		if sp.Num != tc.want {
			t.Fatalf("SpeciesByName(%q) = %d, want %d", tc.query, sp.Num, tc.want)
		}
	}

	among := []Species{{Num: 25, BaseName: "Pikachu"}, {Num: 26, BaseName: "Raichu"}}
	sp, err := c.MatchAmong("pika", among)
	if err != nil || sp.Num != 25 {
		t.Fatalf("MatchAmong pika = %d, %v", sp.Num, err)
	}
	if _, err := c.SpeciesByName("zz"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
