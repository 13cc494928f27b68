package signal

import (
	"strings"
	"unicode"
)

// #region tokenize

// tokenize splits text into lowercase word tokens.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// tokenSet builds a membership set from tokens.
func tokenSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

// #endregion tokenize

// #region lexical-match

// lexicalMatch reports whether any rule keyword appears in the
// utterance. Single-word keywords match whole tokens; multi-word
// phrases match as substrings of the lowercased utterance.
func lexicalMatch(rule Rule, lower string, tokens map[string]bool) bool {
	for _, kw := range rule.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.ContainsRune(kw, ' ') {
			if strings.Contains(lower, kw) {
				return true
			}
			continue
		}
		if tokens[kw] {
			return true
		}
	}
	return false
}

// #endregion lexical-match
