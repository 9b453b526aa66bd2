package normalize

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/parsebank-dev/parsebank/internal/model"
)

// DefaultHeaderWindow is how many non-blank leading rows are searched for
// the header.
const DefaultHeaderWindow = 20

// Options configures a Normalizer.
type Options struct {
	DayFirst     bool
	HeaderWindow int
	Currencies   []string
}

// Normalizer maps raw rows to canonical transactions.
type Normalizer struct {
	Matchers     []Matcher
	Dates        *DateParser
	Amounts      *AmountParser
	HeaderWindow int
}

// New returns a Normalizer with the default matchers.
func New(opts Options) *Normalizer {
	window := opts.HeaderWindow
	if window <= 0 {
		window = DefaultHeaderWindow
	}
	dates := NewDateParser(opts.DayFirst)
	amounts := NewAmountParser(opts.Currencies)
	return &Normalizer{
		Matchers:     DefaultMatchers(dates, amounts),
		Dates:        dates,
		Amounts:      amounts,
		HeaderWindow: window,
	}
}

var errMissingAmount = errors.New("missing amount")

// RowError records why a row was left out of the table.
type RowError struct {
	Page   int
	Line   int
	Column string
	Value  string
	Reason string
}

func (e RowError) Error() string {
	return fmt.Sprintf("page %d line %d: %s %q: %s", e.Page, e.Line, e.Column, e.Value, e.Reason)
}

// Result is the outcome of normalizing one document.
type Result struct {
	Table      model.Table
	Invalid    int
	Rejects    []RowError
	Mapping    Mapping
	Matcher    string
	HeaderRows int // preamble, header and repeated header rows
}

// Normalize consumes rows once and returns the canonical table. Blank rows
// are ignored; rows whose date or amount cannot be parsed are counted as
// invalid and reported in Rejects.
func (n *Normalizer) Normalize(rows iter.Seq[model.RawRow]) Result {
	st := &state{n: n, res: Result{Table: model.Table{}}}

	var window []model.RawRow
	settled := false
	for row := range rows {
		if row.Blank() {
			continue
		}
		if !settled {
			window = append(window, row)
			if len(window) < n.HeaderWindow {
				continue
			}
			st.settle(window)
			settled = true
			continue
		}
		st.accept(row)
	}
	if !settled {
		st.settle(window)
	}
	return st.res
}

type state struct {
	n      *Normalizer
	res    Result
	header []string
}

// settle picks the header and mapping from the window, then converts the
// window's data rows.
func (s *state) settle(window []model.RawRow) {
	if len(window) == 0 {
		return
	}

	start := 0
	for i, row := range window {
		if s.n.headerScore(row.Cells) >= HeaderThreshold {
			s.header = row.Cells
			s.res.HeaderRows = i + 1
			start = i + 1
			break
		}
	}

	sample := make([][]string, 0, len(window)-start)
	for _, row := range window[start:] {
		sample = append(sample, row.Cells)
	}
	s.res.Mapping, _, s.res.Matcher = best(s.n.Matchers, s.header, sample)
	if s.res.Mapping == nil {
		s.res.Mapping = Mapping{}
	}

	for _, row := range window[start:] {
		s.accept(row)
	}
}

func (s *state) accept(row model.RawRow) {
	if s.header != nil && s.repeatsHeader(row.Cells) {
		s.res.HeaderRows++
		return
	}
	tx, rerr := s.n.convert(row, s.res.Mapping)
	if rerr != nil {
		s.res.Invalid++
		s.res.Rejects = append(s.res.Rejects, *rerr)
		return
	}
	s.res.Table = append(s.res.Table, tx)
}

// repeatsHeader catches header rows reprinted on later PDF pages.
func (s *state) repeatsHeader(cells []string) bool {
	if slices.EqualFunc(cells, s.header, func(a, b string) bool {
		return normalizeHeader(a) == normalizeHeader(b)
	}) {
		return true
	}
	if s.n.headerScore(cells) < HeaderThreshold {
		return false
	}
	date, _ := s.res.Mapping.Cell(cells, ColDate)
	return !s.n.Dates.Like(date)
}

func (n *Normalizer) headerScore(cells []string) float64 {
	var top float64
	for _, m := range n.Matchers {
		if !isHeaderMatcher(m) {
			continue
		}
		if _, s := m.Match(cells, nil); s > top {
			top = s
		}
	}
	return top
}

func (n *Normalizer) convert(row model.RawRow, m Mapping) (model.Transaction, *RowError) {
	reject := func(col Column, value, reason string) *RowError {
		return &RowError{Page: row.Page, Line: row.Line, Column: string(col), Value: value, Reason: reason}
	}

	raw, ok := m.Cell(row.Cells, ColDate)
	if !ok || raw == "" {
		return model.Transaction{}, reject(ColDate, raw, "missing date")
	}
	date, err := n.Dates.Parse(raw)
	if err != nil {
		return model.Transaction{}, reject(ColDate, raw, err.Error())
	}

	amount, col, value, err := n.amount(row.Cells, m)
	if err != nil {
		return model.Transaction{}, reject(col, value, err.Error())
	}

	typ := model.TypeForAmount(amount)
	if cell, ok := m.Cell(row.Cells, ColType); ok {
		if explicit, ok := parseTypeCell(cell); ok {
			typ = explicit
			switch explicit {
			case model.TxDebit:
				amount = amount.Abs().Neg()
			case model.TxCredit:
				amount = amount.Abs()
			}
		}
	}

	var balance decimal.NullDecimal
	if cell, ok := m.Cell(row.Cells, ColBalance); ok && cell != "" {
		if b, err := n.Amounts.Parse(cell); err == nil {
			balance = decimal.NewNullDecimal(b)
		}
	}

	desc, _ := m.Cell(row.Cells, ColDescription)

	tx := model.Transaction{
		Date:        date,
		Description: collapseSpace(desc),
		Amount:      amount,
		Type:        typ,
		Balance:     balance,
		Page:        row.Page,
		Line:        row.Line,
	}
	if err := tx.Validate(); err != nil {
		return model.Transaction{}, reject(ColAmount, amount.String(), err.Error())
	}
	return tx, nil
}

// amount reads the signed amount from a single amount column, a
// debit/credit pair, or both. When both are present the amount column holds
// the value and a non-zero debit or credit cell decides its sign. On failure
// it returns the offending column and cell.
func (n *Normalizer) amount(cells []string, m Mapping) (decimal.Decimal, Column, string, error) {
	if cell, _ := m.Cell(cells, ColAmount); cell != "" {
		d, err := n.Amounts.Parse(cell)
		if err != nil {
			return decimal.Zero, ColAmount, cell, err
		}
		switch {
		case n.nonZero(cells, m, ColDebit):
			d = d.Abs().Neg()
		case n.nonZero(cells, m, ColCredit):
			d = d.Abs()
		}
		return d, ColAmount, cell, nil
	}

	debitCell, _ := m.Cell(cells, ColDebit)
	creditCell, _ := m.Cell(cells, ColCredit)
	if debitCell == "" && creditCell == "" {
		return decimal.Zero, ColAmount, "", errMissingAmount
	}

	debit, credit := decimal.Zero, decimal.Zero
	if debitCell != "" {
		d, err := n.Amounts.Parse(debitCell)
		if err != nil {
			return decimal.Zero, ColDebit, debitCell, err
		}
		debit = d
	}
	if creditCell != "" {
		c, err := n.Amounts.Parse(creditCell)
		if err != nil {
			return decimal.Zero, ColCredit, creditCell, err
		}
		credit = c
	}
	return credit.Abs().Sub(debit.Abs()), ColAmount, "", nil
}

func (n *Normalizer) nonZero(cells []string, m Mapping, c Column) bool {
	cell, ok := m.Cell(cells, c)
	if !ok || cell == "" {
		return false
	}
	d, err := n.Amounts.Parse(cell)
	return err == nil && !d.IsZero()
}

var (
	debitTokens  = []string{"debit", "dr", "d", "withdrawal", "withdraw"}
	creditTokens = []string{"credit", "cr", "c", "deposit"}
)

// parseTypeCell reads a debit/credit indicator such as "DR", "Credit" or
// "ACH_DEBIT". An explicit "unknown" is kept as is.
func parseTypeCell(s string) (model.TxType, bool) {
	s = strings.Trim(strings.ToLower(strings.TrimSpace(s)), ".")
	if s == "" {
		return "", false
	}
	switch {
	case s == string(model.TxUnknown):
		return model.TxUnknown, true
	case slices.Contains(debitTokens, s):
		return model.TxDebit, true
	case slices.Contains(creditTokens, s):
		return model.TxCredit, true
	case strings.Contains(s, "debit"), strings.Contains(s, "withdraw"):
		return model.TxDebit, true
	case strings.Contains(s, "credit"), strings.Contains(s, "deposit"):
		return model.TxCredit, true
	}
	return "", false
}
