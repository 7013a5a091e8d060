package signal

import "strings"

// Domain identifies an external-data domain a piece of text can touch.
type Domain string

const (
	DomainMarket       Domain = "market"
	DomainLiterature   Domain = "literature"
	DomainEncyclopedia Domain = "encyclopedia"
)

// Substring membership, not word boundaries: "investing" should trigger
// on "invest". Keyword sets are fixed product choices.
var domainKeywords = map[Domain][]string{
	DomainMarket: {
		"stock", "market", "invest", "money", "price", "crypto",
		"economy", "finance", "trading", "inflation", "portfolio",
	},
	DomainLiterature: {
		"research", "study", "evidence", "science", "psychology",
		"therapy", "anxiety", "clinical", "journal", "health",
	},
	DomainEncyclopedia: {
		"what is", "who is", "history", "definition", "explain",
		"meaning", "facts", "origin",
	},
}

// Classify returns the set of external-data domains applicable to the text.
// A domain is included iff at least one of its keywords appears as a
// case-insensitive substring. The empty set is valid: no external calls
// are made and adapters contribute their defaults.
func Classify(text string) map[Domain]bool {
	lower := strings.ToLower(text)
	domains := make(map[Domain]bool)

	for domain, keywords := range domainKeywords {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				domains[domain] = true
				break
			}
		}
	}

	return domains
}
