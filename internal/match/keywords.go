package match

import "strings"

// highSignalKeywords is the built-in vocabulary of named entities and
// recurring event types whose presence in both titles is strong evidence that
// two listings describe the same event. Operators can extend it via
// matching.extra_keywords.
var highSignalKeywords = []string{
	// politics
	"trump", "biden", "harris", "vance", "desantis", "newsom",
	"election", "president", "presidential", "senate", "congress",
	"impeachment", "nominee", "primary", "electoral",
	// macro / finance
	"fed", "fomc", "rate", "inflation", "cpi", "recession", "gdp",
	"bitcoin", "btc", "ethereum", "eth", "etf", "nasdaq",
	// sports
	"superbowl", "nba", "nfl", "mlb", "nhl", "ufc", "olympics",
	"championship", "finals", "playoffs", "world",
	// world events
	"ukraine", "russia", "china", "taiwan", "israel", "ceasefire",
	"nato", "opec", "hurricane",
	// tech / culture
	"openai", "spacex", "starship", "tesla", "apple", "oscars", "grammys",
}

// stopWords are filtered out when tokenizing titles; they carry no signal.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"of": true, "in": true, "to": true, "for": true, "is": true,
	"on": true, "at": true, "by": true, "be": true, "it": true,
	"will": true, "vs": true, "with": true, "this": true, "that": true,
}

// tokenize splits a title into lowercased tokens, stripping punctuation and
// dropping stop words and tokens shorter than three characters.
func tokenize(title string) map[string]bool {
	tokens := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(title)) {
		word = strings.Trim(word, ".,!?;:\"'()-$%")
		if len(word) < 3 || stopWords[word] {
			continue
		}
		tokens[word] = true
	}
	return tokens
}

// leadingTokens returns up to the first two whitespace-delimited tokens of a
// title, lowercased.
func leadingTokens(title string) []string {
	fields := strings.Fields(strings.ToLower(title))
	if len(fields) > 2 {
		fields = fields[:2]
	}
	return fields
}
