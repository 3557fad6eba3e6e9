package merchant

import "regexp"

// Prefixes injected by wallets, POS aggregators, card networks and delivery
// platforms. Longer entries come first so "POS PURCHASE" wins over "POS".
// Entries ending in a letter or digit only match at a word boundary.
var knownPrefixes = []string{
	// Mobile wallets
	"APLPAY", "APPLE PAY", "APPLEPAY", "GOOGLE PAY", "GOOGLEPAY", "GPAY", "SAMSUNG PAY",

	// Point-of-sale aggregators
	"SQ *", "SQ*", "SQU*", "TST*", "TST *", "SP *", "SP*", "PY *", "PP*", "PAYPAL *",
	"PAYPAL*", "CLV*", "TOAST*", "ZETTLE*", "SUMUP*",

	// Card network and transaction-type words
	"DEBIT CARD PURCHASE", "POS PURCHASE", "POS DEBIT", "PURCHASE AUTHORIZED ON",
	"CHECKCARD", "CHECK CARD", "VISA PURCHASE", "MC PURCHASE", "DEBIT PURCHASE",
	"RECURRING PAYMENT", "RECURRING", "PURCHASE", "POS", "DEBIT", "VISA", "ACH",

	// Food delivery platforms
	"DOORDASH*", "DOORDASH *", "DD *", "DD*", "UBER EATS*", "UBER EATS", "UBEREATS*",
	"GRUBHUB*", "GRUBHUB *", "POSTMATES*", "INSTACART*", "SEAMLESS*",

	// Rideshare and ride-hailing pass-through tags
	"UBR*", "UBR *", "LYFT*BIKE", "CURB*", "GETT*",

	// URL schemes
	"HTTPS://WWW.", "HTTP://WWW.", "HTTPS://", "HTTP://", "WWW.",
}

// Suffixes for payment boilerplate, ACH codes, card networks and corporate
// entity designators.
var knownSuffixes = []string{
	// Payment confirmation boilerplate
	"PAYMENT THANK YOU", "THANK YOU", "ONLINE PAYMENT", "AUTOPAY", "AUTO PAY", "PAYMENT",
	"PURCHASE", "RECURRING",

	// Direct deposit and ACH type codes
	"DIRECT DEPOSIT", "DIRECT DEP", "DIR DEP", "DES:PPD", "PPD", "CCD", "WEB", "TEL", "ACH",

	// Card networks
	"MASTERCARD", "VISA", "AMEX", "DISCOVER", "MC",

	// Corporate entities
	"CORPORATION", "CORP.", "CORP", "INC.", "INC", "LLC.", "LLC", "LTD.", "LTD", "CO.", "CO",
}

// Two-letter US state and territory abbreviations.
var usStates = []string{
	"AL", "AK", "AZ", "AR", "CA", "CO", "CT", "DE", "DC", "FL", "GA", "HI", "ID", "IL", "IN",
	"IA", "KS", "KY", "LA", "ME", "MD", "MA", "MI", "MN", "MS", "MO", "MT", "NE", "NV", "NH",
	"NJ", "NM", "NY", "NC", "ND", "OH", "OK", "OR", "PA", "RI", "SC", "SD", "TN", "TX", "UT",
	"VT", "VA", "WA", "WV", "WI", "WY", "PR", "VI", "GU",
}

// Common function words dropped during token extraction.
var stopwords = map[string]bool{
	"THE": true, "AND": true, "FOR": true, "WITH": true, "FROM": true, "YOUR": true,
	"INC": true, "LLC": true, "CORP": true, "LTD": true, "COM": true, "WWW": true,
	"PAYMENT": true, "PURCHASE": true, "POS": true, "DEBIT": true, "CREDIT": true,
	"CARD": true, "ONLINE": true, "STORE": true, "SHOP": true,
}

var (
	locationPattern = regexp.MustCompile(`(?i)\s+([A-Z0-9]+\s+)?(` + alternation(usStates) + `)$`)

	leadingDatePattern = regexp.MustCompile(`^\d{1,2}/\d{1,2}(/\d{2,4})?\s+`)

	trailingDigitsPattern = regexp.MustCompile(`\s+\d{3,}$`)
	hashCodePattern       = regexp.MustCompile(`\s*#\s*[A-Z0-9-]{1,10}$`)
	longDigitRunPattern   = regexp.MustCompile(`\s*\d{6,}$`)

	zipPattern        = regexp.MustCompile(`\s+\d{5}(-\d{4})?$`)
	phoneParenPattern = regexp.MustCompile(`\s*\(\d{3}\)\s*\d{3}-\d{4}$`)
	phoneDashPattern  = regexp.MustCompile(`\s*\d{3}-\d{3}-\d{4}$`)
	idTagPattern      = regexp.MustCompile(`(?i)\s+ID:\s*\S*$`)

	domainTokenPattern  = regexp.MustCompile(`(?i)\s+\S+\.(COM|NET|ORG|IO|CO)(/\S*)?$`)
	domainSuffixPattern = regexp.MustCompile(`(?i)\.(COM|NET|ORG|IO|CO)(/\S*)?$`)

	accountSuffixPattern = regexp.MustCompile(`\s*-\d{2,}$`)

	separatorPattern  = regexp.MustCompile(`[*#/]`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

func alternation(words []string) string {
	out := ""
	for i, w := range words {
		if i > 0 {
			out += "|"
		}
		out += regexp.QuoteMeta(w)
	}
	return out
}
