package columns

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"
)

// Process prepares a string for scoring: Latin-1 supplement characters are
// dropped, every other character that is not a letter, digit or underscore
// becomes a space, and the result is lowercased and trimmed. Inner runs of
// spaces are kept.
func Process(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 0x80 && r <= 0xff:
			continue
		case r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteByte(' ')
		}
	}
	return strings.TrimSpace(b.String())
}

// chars splits s into one element per rune for the sequence matcher.
func chars(s string) []string {
	out := make([]string, 0, utf8.RuneCountInString(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// Ratio is the SequenceMatcher similarity of a and b on a 0-100 scale.
// Equal strings score 100, otherwise an empty side scores 0.
func Ratio(a, b string) int {
	if a == b {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}
	return round(100 * difflib.NewMatcher(chars(a), chars(b)).Ratio())
}

// PartialRatio aligns the shorter string with the longer one at each
// matching block and returns the best Ratio of those windows.
func PartialRatio(a, b string) int {
	if a == b {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}

	short, long := chars(a), chars(b)
	if len(short) > len(long) {
		short, long = long, short
	}

	best := 0.0
	for _, blk := range difflib.NewMatcher(short, long).GetMatchingBlocks() {
		start := max(blk.B-blk.A, 0)
		end := min(start+len(short), len(long))
		r := difflib.NewMatcher(short, long[start:end]).Ratio()
		if r > 0.995 {
			return 100
		}
		best = max(best, r)
	}
	return round(100 * best)
}

func sortedTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// TokenSortRatio compares a and b after sorting their words.
func TokenSortRatio(a, b string) int {
	return Ratio(sortedTokens(a), sortedTokens(b))
}

func tokenSet(a, b string, score func(string, string) int) int {
	setA := toSet(strings.Fields(a))
	setB := toSet(strings.Fields(b))

	var common, onlyA, onlyB []string
	for t := range setA {
		if setB[t] {
			common = append(common, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range setB {
		if !setA[t] {
			onlyB = append(onlyB, t)
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

// TokenSetRatio compares the shared words of a and b against each side's
// remainder, which ignores duplicated and extra words.
func TokenSetRatio(a, b string) int {
	return tokenSet(a, b, Ratio)
}

func toSet(tokens []string) map[string]bool {
	m := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		m[t] = true
	}
	return m
}

// WRatio combines the scorers above, weighting partial matches down when
// the strings differ a lot in length. Both inputs are run through Process.
func WRatio(a, b string) int {
	a, b = Process(a), Process(b)
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la == 0 || lb == 0 {
		return 0
	}

	lenRatio := float64(max(la, lb)) / float64(min(la, lb))
	base := float64(Ratio(a, b))

	if lenRatio < 1.5 {
		return round(math.Max(base, math.Max(
			float64(TokenSortRatio(a, b))*0.95,
			float64(TokenSetRatio(a, b))*0.95,
		)))
	}

	partialScale := 0.9
	if lenRatio > 8 {
		partialScale = 0.6
	}
	partial := float64(PartialRatio(a, b)) * partialScale
	partialSort := float64(PartialRatio(sortedTokens(a), sortedTokens(b))) * 0.95 * partialScale
	partialSet := float64(tokenSet(a, b, PartialRatio)) * 0.95 * partialScale

	return round(math.Max(base, math.Max(partial, math.Max(partialSort, partialSet))))
}

// round halves to even.
func round(f float64) int {
	return int(math.RoundToEven(f))
}

// Match is the winning choice of BestMatch.
type Match struct {
	Choice string
	Index  int
	Score  int
}

// BestMatch scores query against every choice with WRatio and returns the
// highest scoring one if it reaches threshold. Ties go to the earliest choice.
func BestMatch(query string, choices []string, threshold int) (Match, bool) {
	best := Match{Index: -1, Score: -1}
	for i, c := range choices {
		if s := WRatio(query, c); s > best.Score {
			best = Match{Choice: c, Index: i, Score: s}
		}
	}
	if best.Index < 0 || best.Score < threshold {
		return Match{}, false
	}
	return best, true
}
