package survey

import (
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Truncate returns text when it is shorter than maxLen characters, otherwise
// its first maxLen-1 characters. The case database columns keep one
// character in reserve, so a value of exactly maxLen is shortened too.
func Truncate(text string, maxLen int) string {
	if utf8.RuneCountInString(text) < maxLen {
		return text
	}
	if maxLen <= 1 {
		return ""
	}
	r := []rune(text)
	return string(r[:maxLen-1])
}

// Cap applies Truncate to an optional value
func Cap(text *string, maxLen int) *string {
	if text == nil {
		return nil
	}
	s := Truncate(*text, maxLen)
	return &s
}

// Clean trims surrounding whitespace, optionally folding to plain ASCII.
// nil stays nil.
func Clean(text *string, asciiOnly bool) *string {
	if text == nil {
		return nil
	}
	s := strings.TrimSpace(*text)
	if asciiOnly {
		s = ToASCII(s)
	}
	return &s
}

// CleanText is Clean for values known to be present
func CleanText(text string, asciiOnly bool) string {
	return *Clean(&text, asciiOnly)
}

// ToASCII folds diacritics (é -> e) and drops characters with no ASCII form
func ToASCII(text string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
	)
	out, _, err := transform.String(t, text)
	if err != nil {
		return ""
	}
	return out
}

// ParseDate reads a YYYY-MM-DD survey date. ok is false for anything
// malformed, including out-of-range days.
func ParseDate(text string) (time.Time, bool) {
	parts := strings.Split(strings.TrimSpace(text), "-")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return time.Time{}, false
		}
		nums[i] = n
	}
	year, month, day := nums[0], nums[1], nums[2]
	if year < 1 || month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day || int(d.Month()) != month {
		return time.Time{}, false
	}
	return d, true
}

// ParseDatePtr is ParseDate for an optional value
func ParseDatePtr(text *string) (time.Time, bool) {
	if text == nil {
		return time.Time{}, false
	}
	return ParseDate(*text)
}
