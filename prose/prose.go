// Package prose implements the text heuristics behind heading sentence-casing
// and paragraph summaries. Everything here is pure and deterministic.
package prose

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// MinCapsLetters is the smallest number of cased letters sampled before
	// a text can be called shouting.
	MinCapsLetters = 3
	// CapsRatio is the uppercase share at or above which text is shouting.
	CapsRatio = 0.75

	summaryLongSentence  = 40
	summaryMaxChars      = 220
	summaryMaxWords      = 30
	summaryFallbackWords = 25
	ellipsis             = "…"
)

// IsMostlyAllCaps reports whether at least 75% of the cased letters in text
// are uppercase, given at least three of them.
func IsMostlyAllCaps(text string) bool {
	upper, letters := 0, 0
	for _, r := range text {
		switch {
		case unicode.IsUpper(r):
			upper++
			letters++
		case unicode.IsLower(r):
			letters++
		}
	}
	if letters < MinCapsLetters {
		return false
	}
	return float64(upper)/float64(letters) >= CapsRatio
}

// Acronyms is the set of words kept verbatim when the surrounding text is
// itself shouting. In mixed-case text every run of two or more capitals is
// treated as an acronym.
type Acronyms map[string]struct{}

// DefaultAcronyms is used by SentenceCase.
var DefaultAcronyms = NewAcronyms(
	"AI", "API", "BBC", "CEO", "CIA", "CNN", "CSS", "DNA", "EU", "ESA", "FAQ",
	"FBI", "GDP", "GPS", "HTML", "HTTP", "NASA", "NATO", "NBA", "NFL", "NHS",
	"NYC", "PC", "PDF", "TV", "UK", "UN", "UFO", "URL", "USA", "USB", "VR",
	"WWW", "COVID", "AWS", "GCP", "CDN", "SQL", "JSON", "XML",
)

// NewAcronyms builds a set from words, upper-casing them.
func NewAcronyms(words ...string) Acronyms {
	out := make(Acronyms, len(words))
	for _, w := range words {
		out[strings.ToUpper(strings.TrimSpace(w))] = struct{}{}
	}
	return out
}

// Has reports whether word is a known acronym.
func (a Acronyms) Has(word string) bool {
	_, ok := a[strings.ToUpper(word)]
	return ok
}

// SentenceCase lower-cases text and capitalises the first letter of each
// sentence while keeping acronyms untouched.
func SentenceCase(text string) string {
	return DefaultAcronyms.SentenceCase(text)
}

// placeholderBase is the first rune of the private use area; placeholder i
// is placeholderBase+i and survives case mapping unchanged.
const (
	placeholderBase = '\uE000'
	maxPlaceholders = 0x1800
)

// SentenceCase is SentenceCase with a custom acronym set.
func (a Acronyms) SentenceCase(text string) string {
	if text == "" {
		return ""
	}
	shouting := IsMostlyAllCaps(text)
	masked, tokens := a.mask(text, shouting)
	lowered := cases.Lower(language.Und).String(masked)

	var b strings.Builder
	b.Grow(len(text))
	pending := true
	for _, r := range lowered {
		switch {
		case isPlaceholder(r, len(tokens)):
			b.WriteString(tokens[r-placeholderBase])
			pending = false
			continue
		case r == '.' || r == '?' || r == '!' || r == '\n':
			pending = true
		case pending && unicode.IsLetter(r):
			r = unicode.ToUpper(r)
			pending = false
		case pending && unicode.IsDigit(r):
			pending = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isPlaceholder(r rune, n int) bool {
	return r >= placeholderBase && r < placeholderBase+rune(n)
}

// mask swaps every acronym for a placeholder rune and returns the tokens.
func (a Acronyms) mask(text string, shouting bool) (string, []string) {
	runes := []rune(text)
	var b strings.Builder
	b.Grow(len(text))
	var tokens []string
	for i := 0; i < len(runes); {
		if !unicode.IsUpper(runes[i]) || (i > 0 && isWordRune(runes[i-1])) {
			b.WriteRune(runes[i])
			i++
			continue
		}
		j := i
		for j < len(runes) && unicode.IsUpper(runes[j]) {
			j++
		}
		run := string(runes[i:j])
		bounded := j == len(runes) || !isWordRune(runes[j])
		if bounded && j-i >= 2 && len(tokens) < maxPlaceholders && a.isAcronym(run, shouting) {
			b.WriteRune(placeholderBase + rune(len(tokens)))
			tokens = append(tokens, run)
		} else {
			b.WriteString(run)
		}
		i = j
	}
	return b.String(), tokens
}

func (a Acronyms) isAcronym(run string, shouting bool) bool {
	if !shouting {
		return true
	}
	if a.Has(run) {
		return true
	}
	// Consonant-only runs (BBC, HTML, NHS) cannot be English words.
	return !strings.ContainsAny(run, vowels)
}

const vowels = "AEIOUYÀÁÂÃÄÅÆÈÉÊËÌÍÎÏÒÓÔÕÖØÙÚÛÜÝ"

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

var sentenceRE = regexp.MustCompile(`[^.!?\n]+[.!?\n]*`)

// SplitSentences splits text on sentence-ending punctuation and newlines,
// keeping the punctuation with its sentence.
func SplitSentences(text string) []string {
	if text == "" {
		return nil
	}
	matches := sentenceRE.FindAllString(text, -1)
	if matches == nil {
		return []string{strings.TrimSpace(text)}
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if s := strings.TrimSpace(m); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// FirstWords returns the first count whitespace-separated words of text.
func FirstWords(text string, count int) string {
	words := strings.Fields(text)
	if len(words) > count {
		words = words[:count]
	}
	return strings.Join(words, " ")
}

// Summarize builds a short summary of a paragraph: the first sentence when
// it is long enough or alone, otherwise the first two, truncated to thirty
// words past 220 characters; the first 25 words as a last resort.
func Summarize(text string) string {
	sentences := SplitSentences(text)
	if len(sentences) > 0 {
		first := sentences[0]
		if utf8.RuneCountInString(first) >= summaryLongSentence || len(sentences) == 1 {
			return clip(first)
		}
		return clip(strings.TrimSpace(sentences[0] + " " + sentences[1]))
	}
	out := FirstWords(text, summaryFallbackWords)
	if len(strings.Fields(text)) > summaryFallbackWords {
		out += ellipsis
	}
	return out
}

func clip(s string) string {
	if utf8.RuneCountInString(s) > summaryMaxChars {
		return FirstWords(s, summaryMaxWords) + ellipsis
	}
	return s
}
