package services

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"brand-pipeline/models"
)

// NoneToken marks a brand that could not be cleaned into anything usable.
const NoneToken = "None"

// titleEdgeChars are trimmed from both ends of every title token.
const titleEdgeChars = "$+/%&-.:"

var (
	// brandStripRegexp matches runs of characters a brand token may not contain
	brandStripRegexp = regexp.MustCompile(`[^a-zA-Z0-9&'\-]+`)
	// titleStripRegexp keeps CJK ideographs, ASCII alphanumerics, space and $%&/-+:
	titleStripRegexp = regexp.MustCompile(`[^\x{4e00}-\x{9fff} a-zA-Z0-9$%&/\-+:]+`)
)

// CleanBrandToken strips a raw brand down to letters, digits, '&' and '-'.
// Non-text, single-character and purely numeric input maps to NoneToken.
// Examples:
//
//	"SK-2"    → "SK-2"
//	"L'oreal" → "Loreal"
//	"123"     → "None"
func CleanBrandToken(v models.Value) string {
	s, ok := v.AsText()
	if !ok || tooShortOrNumeric(s) {
		return NoneToken
	}

	out := strings.ReplaceAll(s, "'", "")
	out = brandStripRegexp.ReplaceAllString(out, " ")

	// "L'" or "1'2" only become short/numeric once the apostrophe is gone.
	if tooShortOrNumeric(strings.TrimSpace(out)) {
		return NoneToken
	}
	return out
}

func tooShortOrNumeric(s string) bool {
	if utf8.RuneCountInString(s) <= 1 {
		return true
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// NormalizeTitle lowercases a title, drops disallowed characters and
// repeated tokens. Non-text input, or any failure, yields "".
func NormalizeTitle(v models.Value) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = ""
		}
	}()

	s, ok := v.AsText()
	if !ok {
		return ""
	}

	s = titleStripRegexp.ReplaceAllString(lower(s), " ")

	seen := make(map[string]struct{})
	tokens := make([]string, 0, 8)
	for _, word := range strings.Fields(s) {
		word = strings.Trim(word, titleEdgeChars)
		if word == "" {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		tokens = append(tokens, word)
	}
	return strings.Join(tokens, " ")
}

// lower applies full Unicode lowercasing. A Caser keeps state, so one is
// built per call rather than shared between workers.
func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}
