package response

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Phrases match on word boundaries so "pay" does not fire on "display".
// Both text and phrase are expected lower-cased.

func indexPhrase(text, phrase string) int {
	pos := -1
	scanPhrase(text, phrase, func(start int) bool {
		pos = start
		return false
	})
	return pos
}

func countPhrase(text, phrase string) int {
	n := 0
	scanPhrase(text, phrase, func(int) bool {
		n++
		return true
	})
	return n
}

// scanPhrase calls fn with the offset of each non-overlapping match until fn
// returns false.
func scanPhrase(text, phrase string, fn func(start int) bool) {
	if phrase == "" {
		return
	}
	for offset := 0; offset < len(text); {
		i := strings.Index(text[offset:], phrase)
		if i < 0 {
			return
		}
		start := offset + i
		end := start + len(phrase)
		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			if !fn(start) {
				return
			}
			offset = end
			continue
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if indexPhrase(text, p) >= 0 {
			return true
		}
	}
	return false
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !isWordRune(r)
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}
