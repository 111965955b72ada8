package game

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MatchThreshold is the minimum score a fuzzy name match needs.
const MatchThreshold = 70

var folder = cases.Fold()

// foldName strips accents and case so "Flabébé" and "flabebe" compare equal.
func foldName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.TrimSpace(folder.String(out))
}

// processName folds a name and reduces it to space separated words of
// letters and digits.
func processName(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return r
		}
		return ' '
	}, foldName(s))
	return strings.Join(strings.Fields(s), " ")
}

// MatchScore is a 0..100 weighted similarity between two names. The whole
// name ratio competes with word order insensitive ratios and, when one name
// is at least half again as long as the other, with the best aligned
// substring, so "pika" still finds Pikachu.
func MatchScore(a, b string) int {
	a, b = processName(a), processName(b)
	if a == "" || b == "" {
		return 0
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	lenRatio := float64(max(la, lb)) / float64(min(la, lb))

	best := ratio(a, b)
	if lenRatio < 1.5 {
		best = max(best,
			tokenSortRatio(a, b, ratio)*unbaseScale,
			tokenSetRatio(a, b, ratio)*unbaseScale)
		return int(math.RoundToEven(best))
	}
	partialScale := 0.9
	if lenRatio > 8 {
		partialScale = 0.6
	}
	best = max(best,
		partialRatio(a, b)*partialScale,
		tokenSortRatio(a, b, partialRatio)*unbaseScale*partialScale,
		tokenSetRatio(a, b, partialRatio)*unbaseScale*partialScale)
	return int(math.RoundToEven(best))
}

const unbaseScale = 0.95

// ratio is the edit distance similarity of two whole strings.
func ratio(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la == 0 || lb == 0 {
		return 0
	}
	longest := max(la, lb)
	return 100 * float64(longest-levenshtein.ComputeDistance(a, b)) / float64(longest)
}

// partialRatio is the best ratio of the shorter string against every window
// of the same length in the longer one.
func partialRatio(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		return 0
	}
	s := string(short)
	best := 0.0
	for i := 0; i+len(short) <= len(long); i++ {
		if r := ratio(s, string(long[i:i+len(short)])); r > best {
			best = r
			if best == 100 {
				break
			}
		}
	}
	return best
}

func sortedWords(s string) string {
	words := strings.Fields(s)
	sort.Strings(words)
	return strings.Join(words, " ")
}

func tokenSortRatio(a, b string, score func(string, string) float64) float64 {
	return score(sortedWords(a), sortedWords(b))
}

// tokenSetRatio compares the shared words alone and with each side's extra
// words appended.
func tokenSetRatio(a, b string, score func(string, string) float64) float64 {
	wa, wb := wordSet(a), wordSet(b)
	var common, onlyA, onlyB []string
	for w := range wa {
		if wb[w] {
			common = append(common, w)
		} else {
			onlyA = append(onlyA, w)
		}
	}
	for w := range wb {
		if !wa[w] {
			onlyB = append(onlyB, w)
		}
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)
	sect := strings.Join(common, " ")
	withA := strings.TrimSpace(sect + " " + strings.Join(onlyA, " "))
	withB := strings.TrimSpace(sect + " " + strings.Join(onlyB, " "))
	return max(score(sect, withA), score(sect, withB), score(withA, withB))
}

func wordSet(s string) map[string]bool {
	out := map[string]bool{}
	for _, w := range strings.Fields(s) {
		out[w] = true
	}
	return out
}

// BestMatch returns the candidate closest to query and its score. Ties keep
// the earlier candidate.
func BestMatch(query string, candidates []string) (string, int) {
	best, bestScore := "", -1
	for _, c := range candidates {
		if s := MatchScore(query, c); s > bestScore {
			best, bestScore = c, s
		}
	}
	if bestScore < 0 {
		return "", 0
	}
	return best, bestScore
}
