package pdf

import (
	"strings"
	"unicode"
)

// Symbols the core PDF fonts cannot draw but that carry meaning
var symbolReplacements = strings.NewReplacer(
	"₹", "Rs.",
	"✔", "-",
	"✓", "-",
	"●", "-",
	"•", "-",
	"→", "->",
	"“", "\"",
	"”", "\"",
	"‘", "'",
	"’", "'",
	"–", "-",
	"—", "-",
	"\u00a0", " ",
)

// SanitizeText replaces decorative pictographs with spaces and maps a few
// common symbols to their plain equivalents.
func SanitizeText(s string) string {
	s = symbolReplacements.Replace(s)
	return strings.Map(func(r rune) rune {
		switch {
		case isPictograph(r):
			return ' '
		case r == '\u200d' || r == '\ufe0f' || r == '\ufe0e' || r == '\u20e3':
			return -1
		case unicode.IsControl(r) && r != '\n' && r != '\t':
			return -1
		}
		return r
	}, s)
}

func isPictograph(r rune) bool {
	switch {
	case r >= 0x1F000 && r <= 0x1FAFF: // emoji, symbols and pictographs
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols, dingbats
		return true
	case r >= 0x2B00 && r <= 0x2BFF:
		return true
	}
	return false
}
