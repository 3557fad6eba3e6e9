// Package similarity scores how alike two merchant strings are.
package similarity

const (
	winklerPrefixScale    = 0.1
	winklerMaxPrefix      = 4
	winklerBoostThreshold = 0.7
)

// JaroWinkler returns the Jaro-Winkler similarity of a and b in [0,1].
// Comparison is rune based and case sensitive; callers normalize case.
func JaroWinkler(a, b string) float64 {
	if a == b {
		return 1
	}

	ar, br := []rune(a), []rune(b)
	jaro := jaroSimilarity(ar, br)
	if jaro < winklerBoostThreshold {
		return jaro
	}

	prefix := 0
	for prefix < len(ar) && prefix < len(br) && prefix < winklerMaxPrefix && ar[prefix] == br[prefix] {
		prefix++
	}

	return jaro + float64(prefix)*winklerPrefixScale*(1-jaro)
}

func jaroSimilarity(a, b []rune) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	window := max(len(a), len(b))/2 - 1
	if window < 0 {
		window = 0
	}

	aMatched := make([]bool, len(a))
	bMatched := make([]bool, len(b))
	matches := 0

	for i := range a {
		lo := max(0, i-window)
		hi := min(len(b), i+window+1)
		for j := lo; j < hi; j++ {
			if bMatched[j] || a[i] != b[j] {
				continue
			}
			aMatched[i] = true
			bMatched[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0
	}

	transpositions := 0
	k := 0
	for i := range a {
		if !aMatched[i] {
			continue
		}
		for !bMatched[k] {
			k++
		}
		if a[i] != b[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	return (m/float64(len(a)) + m/float64(len(b)) + (m-float64(transpositions)/2)/m) / 3
}
