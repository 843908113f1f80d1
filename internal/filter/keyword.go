package filter

import (
	"fmt"
	"regexp"
	"strings"
)

const regexPrefix = "regex:"

// KeywordRule matches message text against a pattern. Patterns prefixed
// with "regex:" are compiled as case-insensitive regular expressions;
// anything else is a case-insensitive substring match. The raw pattern
// (prefix included) is kept for rule identifiers.
type KeywordRule struct {
	Pattern string
	Action  Action

	substr string         // lowercased needle, "" when regex
	re     *regexp.Regexp // nil when substring
}

// NewKeywordRule builds a KeywordRule, compiling the pattern up front so a
// bad regex is a load-time error rather than a runtime one.
func NewKeywordRule(pattern string, action Action) (KeywordRule, error) {
	kw := KeywordRule{Pattern: pattern, Action: action}
	if expr, ok := strings.CutPrefix(pattern, regexPrefix); ok {
		re, err := regexp.Compile("(?i)" + expr)
		if err != nil {
			return KeywordRule{}, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
		}
		kw.re = re
		return kw, nil
	}
	kw.substr = strings.ToLower(pattern)
	return kw, nil
}

// Matches reports whether text matches the rule's pattern.
func (k KeywordRule) Matches(text string) bool {
	if k.re != nil {
		return k.re.MatchString(text)
	}
	return strings.Contains(strings.ToLower(text), k.substr)
}
