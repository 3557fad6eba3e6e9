// Package merchant recovers canonical merchant names from noisy bank
// transaction descriptions.
package merchant

import (
	"regexp"
	"strings"
	"unicode"
)

// maxMerchantWords caps the canonical name; real merchant names are rarely
// longer and trailing words at that point are residual noise.
const maxMerchantWords = 4

// ExtractMerchantName strips processor prefixes, boilerplate suffixes,
// locations, store numbers and reference codes from a raw description and
// returns an upper-cased, whitespace-collapsed merchant name. Abbreviations are
// left alone.
func ExtractMerchantName(raw string) string {
	name := strings.ToUpper(strings.TrimSpace(raw))
	if name == "" {
		return ""
	}

	name = stripPrefixes(name)
	name = stripSuffixes(name)
	name = stripLocation(name)
	name = stripNumericNoise(name)
	name = stripContactNoise(name)
	name = stripDomain(name)
	name = replaceIfNotEmpty(name, accountSuffixPattern)

	name = separatorPattern.ReplaceAllString(name, " ")
	name = strings.TrimSpace(whitespacePattern.ReplaceAllString(name, " "))

	if words := strings.Fields(name); len(words) > maxMerchantWords {
		name = strings.Join(words[:maxMerchantWords], " ")
	}

	return strings.TrimSpace(strings.TrimRight(name, "-,.;: "))
}

func stripPrefixes(name string) string {
	for changed := true; changed; {
		changed = false
		for _, prefix := range knownPrefixes {
			rest, ok := cutPrefix(name, prefix)
			if !ok || rest == "" {
				continue
			}
			name = rest
			changed = true
			break
		}
		if next := replaceIfNotEmpty(name, leadingDatePattern); next != name {
			name = next
			changed = true
		}
	}
	return name
}

// cutPrefix removes prefix from s. A prefix ending in a letter or digit only
// matches when followed by a space or a non-alphanumeric separator, so "SQ"
// never eats the start of "SQUARESPACE".
func cutPrefix(s, prefix string) (string, bool) {
	if strings.HasPrefix(s, prefix+" ") {
		return strings.TrimSpace(s[len(prefix)+1:]), true
	}
	if !strings.HasPrefix(s, prefix) {
		return s, false
	}
	rest := s[len(prefix):]
	last := rune(prefix[len(prefix)-1])
	if isAlnum(last) && rest != "" && isAlnum(rune(rest[0])) {
		return s, false
	}
	return strings.TrimSpace(strings.TrimLeft(rest, "*:-")), true
}

func stripSuffixes(name string) string {
	for changed := true; changed; {
		changed = false
		for _, suffix := range knownSuffixes {
			if !strings.HasSuffix(name, " "+suffix) {
				continue
			}
			rest := strings.TrimSpace(strings.TrimSuffix(name, suffix))
			if rest == "" {
				continue
			}
			name = strings.TrimRight(rest, ",")
			changed = true
			break
		}
	}
	return name
}

// stripLocation removes a trailing state abbreviation and, when at least two
// words would survive, the city token in front of it. The token before the
// state cannot be told apart from the last word of a short merchant name
// ("BURRITO BARN CA"), so a lone leading word keeps it: "ZIPCAR SEATTLE WA"
// becomes "ZIPCAR SEATTLE".
func stripLocation(name string) string {
	loc := locationPattern.FindStringSubmatchIndex(name)
	if loc == nil {
		return name
	}
	before := strings.TrimSpace(name[:loc[0]])
	if before == "" {
		return name
	}
	city := ""
	if loc[2] >= 0 {
		city = strings.TrimSpace(name[loc[2]:loc[3]])
	}
	if city == "" {
		return before
	}
	if len(strings.Fields(before)) >= 2 {
		return before
	}
	return before + " " + city
}

func stripNumericNoise(name string) string {
	for changed := true; changed; {
		changed = false
		for _, re := range []*regexp.Regexp{longDigitRunPattern, trailingDigitsPattern, hashCodePattern} {
			if next := replaceIfNotEmpty(name, re); next != name {
				name = next
				changed = true
			}
		}
	}
	return name
}

func stripContactNoise(name string) string {
	for _, re := range []*regexp.Regexp{phoneParenPattern, phoneDashPattern, zipPattern, idTagPattern} {
		name = replaceIfNotEmpty(name, re)
	}
	return name
}

// stripDomain drops a trailing domain token; when the domain is the whole
// name only its TLD is removed so "NETFLIX.COM" keeps "NETFLIX".
func stripDomain(name string) string {
	if next := replaceIfNotEmpty(name, domainTokenPattern); next != name {
		return next
	}
	return replaceIfNotEmpty(name, domainSuffixPattern)
}

func replaceIfNotEmpty(name string, re *regexp.Regexp) string {
	next := strings.TrimSpace(re.ReplaceAllString(name, ""))
	if next == "" {
		return name
	}
	return next
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
