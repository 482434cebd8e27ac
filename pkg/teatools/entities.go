package teatools

import (
	"regexp"
	"strings"
)

// Entities are the filters extracted from a free-text review query
type Entities struct {
	Category string
	Name     string
	Location string
}

// Known category keywords, checked in order; the first hit wins
var categoryKeywords = []string{
	"doctor", "doctors", "physician", "physicians",
	"therapist", "therapists", "counselor", "counselors",
	"lawyer", "lawyers", "attorney", "attorneys",
	"landlord", "landlords", "flat owner",
	"boss", "manager", "supervisor",
	"restaurant", "restaurants", "cafe", "cafes",
	"shop", "shops", "store", "stores",
	"club", "clubs", "bar", "bars",
}

// Synonyms fold to the canonical category used by the review store
var categoryFold = map[string]string{
	"physician": "doctor",
	"counselor": "therapist",
	"attorney":  "lawyer",
}

// Known city keywords, checked in order; the first hit wins
var cityKeywords = []string{
	"mumbai", "delhi", "bangalore", "bengaluru", "hyderabad",
	"chennai", "kolkata", "pune", "ahmedabad", "jaipur",
}

// Name patterns, tried in order; the first match wins. Title prefixes beat
// the bare title-case pair so "Dr. Priya Sharma" yields "Priya Sharma",
// not "Dr Priya".
var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)dr\.?\s+([a-z]+(?:\s+[a-z]+)?)`),
	regexp.MustCompile(`(?i)adv\.?\s+([a-z]+(?:\s+[a-z]+)?)`),
	regexp.MustCompile(`\b([A-Z][a-z]+\s+[A-Z][a-z]+)\b`),
}

// ExtractEntities pulls category, location, and name hints from a query.
// Matching is case-insensitive and substring-based; fields with no hit are
// left empty.
func ExtractEntities(query string) Entities {
	lower := strings.ToLower(query)
	var e Entities

	for _, keyword := range categoryKeywords {
		if strings.Contains(lower, keyword) {
			category := singularize(keyword)
			if folded, ok := categoryFold[category]; ok {
				category = folded
			}
			e.Category = category
			break
		}
	}

	for _, city := range cityKeywords {
		if strings.Contains(lower, city) {
			location := strings.ToUpper(city[:1]) + city[1:]
			if location == "Bengaluru" {
				location = "Bangalore"
			}
			e.Location = location
			break
		}
	}

	for _, pattern := range namePatterns {
		if match := pattern.FindStringSubmatch(query); match != nil {
			e.Name = match[1]
			break
		}
	}

	return e
}

// singularize strips a plural "s" but leaves words that end in a double "s"
// (boss, not bos) alone
func singularize(word string) string {
	if strings.HasSuffix(word, "ss") || !strings.HasSuffix(word, "s") {
		return word
	}
	return strings.TrimSuffix(word, "s")
}
