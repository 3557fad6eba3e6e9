package similarity

import (
	"strings"
	"unicode/utf8"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// minContainmentLength is the shortest name that may earn a containment boost.
const minContainmentLength = 3

var editOptions = levenshtein.Options{
	InsCost: 1,
	DelCost: 1,
	SubCost: 1,
	Matches: levenshtein.IdenticalRunes,
}

// CombinedSimilarity starts from Jaro-Winkler and raises the score when other
// evidence supports a match: the shorter name appearing as whole words inside
// the longer one, or a small edit distance once spacing is ignored. The result
// is never lower than JaroWinkler(a, b).
func CombinedSimilarity(a, b string) float64 {
	score := JaroWinkler(a, b)
	if score == 1 {
		return 1
	}

	score = max(score, containmentScore(a, b))
	score = max(score, editRatio(a, b))

	return min(score, 1)
}

// containmentScore rewards "BURRITO BARN" inside "BURRITO BARN 1249RIVERDALE".
func containmentScore(a, b string) float64 {
	shorter, longer := strings.TrimSpace(a), strings.TrimSpace(b)
	if utf8.RuneCountInString(shorter) > utf8.RuneCountInString(longer) {
		shorter, longer = longer, shorter
	}

	shortLen := utf8.RuneCountInString(shorter)
	longLen := utf8.RuneCountInString(longer)
	if shortLen < minContainmentLength || longLen == 0 {
		return 0
	}

	if !strings.Contains(" "+longer+" ", " "+shorter+" ") {
		return 0
	}

	return min(0.9+0.1*float64(shortLen)/float64(longLen), 1)
}

// editRatio is 1 - distance/maxLen over the strings with whitespace removed,
// so "WHOLEFOODS" and "WHOLE FOODS" compare equal.
func editRatio(a, b string) float64 {
	ar := []rune(stripSpace(a))
	br := []rune(stripSpace(b))
	longest := max(len(ar), len(br))
	if longest == 0 || len(ar) == 0 || len(br) == 0 {
		return 0
	}

	distance := levenshtein.DistanceForStrings(ar, br, editOptions)
	return max(0, 1-float64(distance)/float64(longest))
}

func stripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}
