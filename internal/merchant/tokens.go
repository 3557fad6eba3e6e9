package merchant

import "strings"

// minTokenLength is the shortest token kept for overlap matching.
const minTokenLength = 3

// ExtractTokens normalizes a raw description and returns its significant
// tokens in order, without duplicates. Short tokens and stopwords are dropped.
func ExtractTokens(raw string) []string {
	name := ExtractMerchantName(raw)
	if name == "" {
		return nil
	}

	fields := strings.FieldsFunc(name, func(r rune) bool {
		return !isAlnum(r) && r != '\'' && r != '&'
	})

	seen := make(map[string]bool, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		field = strings.Trim(field, "'&")
		if len(field) < minTokenLength || stopwords[field] || seen[field] {
			continue
		}
		seen[field] = true
		tokens = append(tokens, field)
	}
	return tokens
}
