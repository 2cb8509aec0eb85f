package utils

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// CurrencyFormatter renders amounts with locale grouping and a fixed symbol
type CurrencyFormatter struct {
	printer *message.Printer
	symbol  string
}

// NewCurrencyFormatter builds a formatter; unknown locales fall back to English
func NewCurrencyFormatter(locale, symbol string) *CurrencyFormatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &CurrencyFormatter{
		printer: message.NewPrinter(tag),
		symbol:  symbol,
	}
}

// Format prints amount with two fraction digits, e.g. "$1,200.00"
func (f *CurrencyFormatter) Format(amount decimal.Decimal) string {
	rounded := amount.Round(2)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Neg()
	}
	return sign + f.symbol + f.printer.Sprint(number.Decimal(rounded.InexactFloat64(), number.Scale(2)))
}

var defaultFormatter = NewCurrencyFormatter("en", "$")

// FormatCurrency formats with the English locale and a dollar sign
func FormatCurrency(amount decimal.Decimal) string {
	return defaultFormatter.Format(amount)
}
