package similarity

import (
	"strings"

	"github.com/Veraticus/spice-reconcile/internal/merchant"
)

// minSubstringTokenLength is the shortest token allowed to match another by
// containment.
const minSubstringTokenLength = 4

// TokenOverlap describes the shared tokens between two descriptions.
type TokenOverlap struct {
	Exact      int // Tokens present in both sets
	Substring  int // Tokens contained in a token of the other set
	SmallerSet int
}

// Count returns the total overlapping tokens.
func (o TokenOverlap) Count() int {
	return o.Exact + o.Substring
}

// Significant reports whether the overlap is strong lexical evidence that two
// descriptions name the same merchant. One exact shared token is enough;
// containment-only overlap must cover half the smaller set or two tokens.
func (o TokenOverlap) Significant() bool {
	if o.Exact > 0 {
		return true
	}
	if o.Substring == 0 || o.SmallerSet == 0 {
		return false
	}
	return 2*o.Count() >= o.SmallerSet || o.Count() >= 2
}

// CompareTokens measures the token overlap between two raw descriptions after
// merchant normalization.
func CompareTokens(descA, descB string) TokenOverlap {
	tokensA := merchant.ExtractTokens(descA)
	tokensB := merchant.ExtractTokens(descB)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return TokenOverlap{}
	}

	smaller, larger := tokensA, tokensB
	if len(smaller) > len(larger) {
		smaller, larger = larger, smaller
	}

	inLarger := make(map[string]bool, len(larger))
	for _, tok := range larger {
		inLarger[tok] = true
	}

	overlap := TokenOverlap{SmallerSet: len(smaller)}
	for _, tok := range smaller {
		if inLarger[tok] {
			overlap.Exact++
			continue
		}
		if len(tok) < minSubstringTokenLength {
			continue
		}
		for _, other := range larger {
			if len(other) >= minSubstringTokenLength &&
				(strings.Contains(other, tok) || strings.Contains(tok, other)) {
				overlap.Substring++
				break
			}
		}
	}

	return overlap
}

// HasSignificantTokenOverlap reports whether two raw descriptions share enough
// merchant tokens to count as independent evidence of a match.
func HasSignificantTokenOverlap(descA, descB string) bool {
	return CompareTokens(descA, descB).Significant()
}
