package game

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type Comparator string

const (
	CmpLess    Comparator = "<"
	CmpGreater Comparator = ">"
	CmpEqual   Comparator = "="
)

// StatQuery filters owned creatures by a computed stat, e.g. "attack > 50".
type StatQuery struct {
	Stat  Stat
	Cmp   Comparator
	Value int
}

var statQueryRe = regexp.MustCompile(`^\s*([^\s<>=]+)\s*([<>=])\s*([^\s]+)\s*$`)

// IsStatQuery reports whether the text looks like a comparison at all.
func IsStatQuery(q string) bool {
	return strings.ContainsAny(q, "<>=")
}

func ParseStatQuery(q string) (StatQuery, error) {
	m := statQueryRe.FindStringSubmatch(q)
	if m == nil {
		return StatQuery{}, invalidQuery()
	}
	st, ok := ParseStat(m[1])
	if !ok {
		return StatQuery{}, invalidQuery()
	}
	v, err := strconv.Atoi(m[3])
	if err != nil || v < 0 {
		return StatQuery{}, invalidQuery()
	}
	return StatQuery{Stat: st, Cmp: Comparator(m[2]), Value: v}, nil
}

func invalidQuery() error {
	names := make([]string, 0, len(AllStats))
	for _, st := range AllStats {
		names = append(names, string(st))
	}
	return fmt.Errorf("%w: the value must be a number, valid statistics include: %s", ErrInvalidQuery, strings.Join(names, ", "))
}

func (q StatQuery) Match(s Stats) bool {
	v := s.Get(q.Stat)
	switch q.Cmp {
	case CmpLess:
		return v < q.Value
	case CmpGreater:
		return v > q.Value
	case CmpEqual:
		return v == q.Value
	}
	return false
}

func (q StatQuery) String() string {
	return fmt.Sprintf("%s %s %d", q.Stat, q.Cmp, q.Value)
}
