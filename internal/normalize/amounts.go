package normalize

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var errEmptyAmount = errors.New("empty amount")

// AmountParser turns statement money strings into decimals.
type AmountParser struct {
	symbols []string // longest first
}

// NewAmountParser strips the graphemes and codes of the given ISO 4217
// currencies. Unknown codes are ignored.
func NewAmountParser(currencies []string) *AmountParser {
	seen := make(map[string]bool)
	var symbols []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			symbols = append(symbols, s)
		}
	}
	for _, code := range currencies {
		c := money.GetCurrency(code)
		if c == nil {
			continue
		}
		add(c.Code)
		add(c.Grapheme)
	}
	slices.SortStableFunc(symbols, func(a, b string) int {
		return cmp.Compare(len(b), len(a))
	})
	return &AmountParser{symbols: symbols}
}

// Symbols returns the stripped currency markers, longest first.
func (p *AmountParser) Symbols() []string {
	return append([]string(nil), p.symbols...)
}

// Parse accepts forms like "1,234.56", "1.234,56", "(12.00)", "-4.50",
// "4.50-", "$12", "12.00 DR" and "12.00 CR". Parentheses, a minus sign or
// a DR suffix make the result negative; a CR suffix makes it positive.
func (p *AmountParser) Parse(s string) (decimal.Decimal, error) {
	orig := s
	s = strings.TrimSpace(strings.ReplaceAll(s, "\u2212", "-"))
	if s == "" {
		return decimal.Zero, errEmptyAmount
	}

	negative, positive := false, false
	upper := strings.ToUpper(s)
	switch {
	case strings.HasSuffix(upper, "DR"):
		negative = true
		s = s[:len(s)-2]
	case strings.HasSuffix(upper, "CR"):
		positive = true
		s = s[:len(s)-2]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), ".")

	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	for _, sym := range p.symbols {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\u2009', '\'', '_':
			return -1
		}
		return r
	}, s)

	switch {
	case strings.HasPrefix(s, "-"):
		negative = true
		s = s[1:]
	case strings.HasSuffix(s, "-"):
		negative = true
		s = s[:len(s)-1]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	num, err := normalizeSeparators(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unrecognized amount %q: %w", strings.TrimSpace(orig), err)
	}
	d, err := decimal.NewFromString(num)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unrecognized amount %q: %w", strings.TrimSpace(orig), err)
	}

	switch {
	case positive:
		return d.Abs(), nil
	case negative:
		return d.Abs().Neg(), nil
	}
	return d, nil
}

// Like reports whether s parses as an amount.
func (p *AmountParser) Like(s string) bool {
	_, err := p.Parse(s)
	return err == nil
}

// normalizeSeparators resolves thousands and decimal separators into a
// plain "1234.56" form. The last separator is the decimal point when both
// kinds appear; a lone comma followed by one or two digits is a decimal comma.
func normalizeSeparators(s string) (string, error) {
	if s == "" {
		return "", errors.New("no digits")
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != ',' && r != '.' {
			return "", fmt.Errorf("unexpected %q", r)
		}
	}
	if strings.Trim(s, ",.") == "" {
		return "", errors.New("no digits")
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			return swapDecimal(s, ',', '.'), nil
		}
		return strings.ReplaceAll(s, ",", ""), nil

	case lastComma >= 0:
		if frac := len(s) - lastComma - 1; frac == 1 || frac == 2 {
			return swapDecimal(s, ',', 0), nil
		}
		return strings.ReplaceAll(s, ",", ""), nil

	case lastDot >= 0 && strings.Count(s, ".") > 1:
		if frac := len(s) - lastDot - 1; frac == 3 {
			return strings.ReplaceAll(s, ".", ""), nil
		}
		return swapDecimal(s, '.', 0), nil
	}
	return s, nil
}

// swapDecimal keeps the last dec as the decimal point and removes every
// other dec and every thousands rune.
func swapDecimal(s string, dec, thousands rune) string {
	last := strings.LastIndexByte(s, byte(dec))
	var b strings.Builder
	for i, r := range s {
		switch {
		case i == last:
			b.WriteByte('.')
		case r == dec, thousands != 0 && r == thousands:
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
