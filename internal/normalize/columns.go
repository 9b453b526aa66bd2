package normalize

import (
	"strings"
	"unicode"
)

// Column is a canonical field a raw cell can be mapped to.
type Column string

const (
	ColDate        Column = "date"
	ColDescription Column = "description"
	ColAmount      Column = "amount"
	ColDebit       Column = "debit"
	ColCredit      Column = "credit"
	ColType        Column = "type"
	ColBalance     Column = "balance"
)

// Mapping assigns canonical columns to cell indexes.
type Mapping map[Column]int

// Has reports whether c is mapped.
func (m Mapping) Has(c Column) bool {
	_, ok := m[c]
	return ok
}

// Cell returns the trimmed cell mapped to c, and false when c is unmapped
// or the row is too short.
func (m Mapping) Cell(cells []string, c Column) (string, bool) {
	i, ok := m[c]
	if !ok || i < 0 || i >= len(cells) {
		return "", false
	}
	return strings.TrimSpace(cells[i]), true
}

// required counts the date, description and money fields present, out of 3.
func (m Mapping) required() int {
	n := 0
	if m.Has(ColDate) {
		n++
	}
	if m.Has(ColDescription) {
		n++
	}
	if m.Has(ColAmount) || m.Has(ColDebit) || m.Has(ColCredit) {
		n++
	}
	return n
}

const numRequired = 3

// headerNames lists exact header spellings per column, most specific first.
var headerNames = map[Column][]string{
	ColDate: {
		"date", "transaction date", "txn date", "trans date", "tran date",
		"posting date", "post date", "posted date", "booking date", "value date",
	},
	ColDescription: {
		"description", "transaction description", "narration", "particulars",
		"transaction details", "details", "memo", "payee", "remarks",
	},
	ColAmount: {"amount", "transaction amount", "amt", "value"},
	ColDebit: {
		"debit", "debits", "debit amount", "withdrawal", "withdrawals",
		"withdrawal amt", "withdrawal amount", "paid out", "money out", "dr",
	},
	ColCredit: {
		"credit", "credits", "credit amount", "deposit", "deposits",
		"deposit amt", "deposit amount", "paid in", "money in", "cr",
	},
	ColType:    {"type", "transaction type", "txn type", "dr/cr", "cr/dr", "debit/credit"},
	ColBalance: {"balance", "running balance", "closing balance", "available balance", "balance amount", "bal"},
}

// headerKeywords is checked in order; the first column whose keyword a
// cell contains claims it.
var headerKeywords = []struct {
	col      Column
	keywords []string
}{
	{ColBalance, []string{"balance"}},
	{ColType, []string{"dr/cr", "cr/dr", "type"}},
	{ColDebit, []string{"debit", "withdraw", "paid out", "money out"}},
	{ColCredit, []string{"credit", "deposit", "paid in", "money in"}},
	{ColDate, []string{"date"}},
	{ColDescription, []string{"desc", "narr", "detail", "particular", "memo", "payee", "remark"}},
	{ColAmount, []string{"amount", "amt"}},
}

// normalizeHeader lowercases, collapses whitespace and drops trailing
// punctuation so "Txn Date:" and "txn  date" compare equal.
func normalizeHeader(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	return strings.TrimRightFunc(s, func(r rune) bool {
		return r == '.' || r == ':' || r == '*'
	})
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

// collapseSpace trims s and replaces internal whitespace runs with one space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
