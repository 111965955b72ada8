package stats

import (
	"errors"
	"fmt"
	"sort"
)

type Kind int

const (
	KindString Kind = iota
	KindInt
	KindBool
	KindStringOrInt
	// KindCounts is a map of item name to amount.
	KindCounts
	// KindIDs is a list of found ids.
	KindIDs
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "str"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindStringOrInt:
		return "str | int"
	case KindCounts:
		return "dict"
	case KindIDs:
		return "list"
	}
	return "unknown"
}

const (
	PCAccessed         = "pc_accessed"
	PokedexAccessed    = "pokedex_accessed"
	PokemonEncountered = "pokemon_encountered"
	PokemonCaught      = "pokemon_caught"
	PokemonFled        = "pokemon_fled"
	PartyAccessed      = "party_accessed"
	InventoryAccessed  = "inventory_accessed"
	ItemUsed           = "item_used"
	RewardCollected    = "reward_collected"
	ShopAccessed       = "shop_accessed"
	ShopPurchased      = "shop_purchased"
	ShopSold           = "shop_sold"
	SuccessfulTrade    = "successful_trade"
)

var schemas = map[string]map[string]Kind{
	PCAccessed:         {"query": KindStringOrInt, "query_type": KindString},
	PokedexAccessed:    {"query": KindStringOrInt, "query_type": KindString, "shiny": KindBool},
	PokemonEncountered: {"shiny": KindBool, "num": KindInt},
	PokemonCaught:      {"attempts": KindInt, "ball": KindString, "id": KindInt},
	PokemonFled:        {"attempts": KindInt, "shiny": KindBool, "num": KindInt},
	PartyAccessed:      {},
	InventoryAccessed:  {},
	ItemUsed:           {"item": KindString},
	RewardCollected:    {"amount": KindInt, "item": KindString},
	ShopAccessed:       {"multiple": KindInt},
	ShopPurchased:      {"items": KindCounts, "spent": KindInt},
	ShopSold:           {"pokemon": KindIDs, "received": KindInt},
	SuccessfulTrade:    {"other_id": KindInt, "offer": KindIDs, "other_offer": KindIDs},
}

var ErrUnknownEvent = errors.New("unknown event")

// FieldError reports a missing or mistyped field in an event payload.
type FieldError struct {
	Event string
	Field string
	Want  Kind
	Got   string
}

func (e *FieldError) Error() string {
	if e.Got == "" {
		return fmt.Sprintf("%s: %q not given", e.Event, e.Field)
	}
	return fmt.Sprintf("%s: %q must be %s, not %s", e.Event, e.Field, e.Want, e.Got)
}

// Info is an event payload keyed by field name.
type Info map[string]any

// Names lists every known event name in sorted order.
func Names() []string {
	out := make([]string, 0, len(schemas))
	for name := range schemas {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Validate checks info against the event schema and returns only the
// declared fields, normalised (ints widened to int64).
func Validate(event string, info Info) (Info, error) {
	schema, ok := schemas[event]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, event)
	}
	fields := make([]string, 0, len(schema))
	for f := range schema {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	out := make(Info, len(schema))
	for _, field := range fields {
		want := schema[field]
		v, present := info[field]
		if !present || v == nil {
			return nil, &FieldError{Event: event, Field: field, Want: want}
		}
		norm, ok := coerce(want, v)
		if !ok {
			return nil, &FieldError{Event: event, Field: field, Want: want, Got: fmt.Sprintf("%T", v)}
		}
		out[field] = norm
	}
	return out, nil
}

func coerce(k Kind, v any) (any, bool) {
	switch k {
	case KindString:
		s, ok := v.(string)
		return s, ok
	case KindBool:
		b, ok := v.(bool)
		return b, ok
	case KindInt:
		return asInt(v)
	case KindStringOrInt:
		if s, ok := v.(string); ok {
			return s, true
		}
		return asInt(v)
	case KindCounts:
		switch m := v.(type) {
		case map[string]int:
			out := make(map[string]int64, len(m))
			for key, n := range m {
				out[key] = int64(n)
			}
			return out, true
		case map[string]int64:
			return m, true
		}
	case KindIDs:
		switch l := v.(type) {
		case []int64:
			if l == nil {
				l = []int64{}
			}
			return l, true
		case []int:
			out := make([]int64, len(l))
			for i, n := range l {
				out[i] = int64(n)
			}
			return out, true
		}
	}
	return nil, false
}

func asInt(v any) (any, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return nil, false
}
