package quotation

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	indianPrinter  = message.NewPrinter(language.MustParse("en-IN"))
	westernPrinter = message.NewPrinter(language.MustParse("en-US"))
)

// FormatAmount renders an amount with its symbol, grouping INR in the Indian
// lakh/crore style and USD in thousands.
func FormatAmount(amount int64, currency Currency) string {
	if currency == CurrencyUSD {
		return currency.Symbol() + " " + westernPrinter.Sprintf("%d", amount)
	}
	return CurrencyINR.Symbol() + " " + indianPrinter.Sprintf("%d", amount)
}

// FormatDate renders dd/mm/yyyy
func FormatDate(t time.Time) string {
	return t.Format("02/01/2006")
}

// TruncateWords keeps the first limit words and marks the cut with "..."
func TruncateWords(s string, limit int) string {
	words := strings.Fields(s)
	if len(words) <= limit {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:limit], " ") + "..."
}

// NewNumber returns Q-YYYYMMDD-NNN
func NewNumber(now time.Time) string {
	return fmt.Sprintf("Q-%s-%03d", now.Format("20060102"), rand.IntN(1000))
}
