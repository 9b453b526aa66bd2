package normalize

import (
	"slices"
	"strings"
	"unicode/utf8"
)

// HeaderThreshold is the header-matcher score at which a row is taken to be
// the table header.
const HeaderThreshold = 0.5

// Matcher proposes a column Mapping with a confidence in [0,1]. header is
// the candidate header row (nil when none was found) and sample holds the
// data rows that follow it.
type Matcher interface {
	Name() string
	Match(header []string, sample [][]string) (Mapping, float64)
}

// HeaderExact maps header cells that equal a known column name.
type HeaderExact struct{}

func (HeaderExact) Name() string { return "header_exact" }

func (HeaderExact) Match(header []string, _ [][]string) (Mapping, float64) {
	if len(header) == 0 {
		return nil, 0
	}
	norm := make([]string, len(header))
	for i, h := range header {
		norm[i] = normalizeHeader(h)
	}

	m := Mapping{}
	claimed := make(map[int]bool)
	for _, col := range columnOrder {
		for _, name := range headerNames[col] {
			i := slices.Index(norm, name)
			if i >= 0 && !claimed[i] {
				m[col] = i
				claimed[i] = true
				break
			}
		}
	}
	return m, float64(m.required()) / numRequired
}

// HeaderKeyword maps header cells containing a known keyword. Scores are
// scaled by 0.8 so an exact match always ranks higher.
type HeaderKeyword struct{}

func (HeaderKeyword) Name() string { return "header_keyword" }

func (HeaderKeyword) Match(header []string, _ [][]string) (Mapping, float64) {
	if len(header) == 0 {
		return nil, 0
	}
	m := Mapping{}
	for i, h := range header {
		h = normalizeHeader(h)
		if h == "" || hasDigit(h) {
			continue
		}
		for _, kw := range headerKeywords {
			if m.Has(kw.col) {
				continue
			}
			if slices.ContainsFunc(kw.keywords, func(k string) bool { return strings.Contains(h, k) }) {
				m[kw.col] = i
				break
			}
		}
	}
	return m, 0.8 * float64(m.required()) / numRequired
}

// ContentProbe infers columns from cell statistics over the sample rows:
// the most date-like column is the date, amount-like columns become amount,
// debit/credit or balance, and the longest text column is the description.
type ContentProbe struct {
	Dates   *DateParser
	Amounts *AmountParser
}

func (ContentProbe) Name() string { return "content_probe" }

type columnStats struct {
	filled  int
	dates   int
	amounts int
	types   int
	textLen int
}

func (p ContentProbe) Match(_ []string, sample [][]string) (Mapping, float64) {
	if len(sample) == 0 {
		return nil, 0
	}
	width := 0
	for _, row := range sample {
		width = max(width, len(row))
	}
	stats := make([]columnStats, width)
	for _, row := range sample {
		for i, cell := range row {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			st := &stats[i]
			st.filled++
			switch {
			case p.Dates.Like(cell):
				st.dates++
			case p.Amounts.Like(cell):
				st.amounts++
			default:
				if _, ok := parseTypeCell(cell); ok && utf8.RuneCountInString(cell) <= 10 {
					st.types++
				}
				st.textLen += utf8.RuneCountInString(cell)
			}
		}
	}

	n := len(sample)
	m := Mapping{}
	claimed := make(map[int]bool)

	bestDate, bestFrac := -1, 0.5
	for i, st := range stats {
		if frac := float64(st.dates) / float64(n); frac >= bestFrac && (bestDate < 0 || frac > bestFrac) {
			bestDate, bestFrac = i, frac
		}
	}
	if bestDate >= 0 {
		m[ColDate] = bestDate
		claimed[bestDate] = true
	}

	var money []int
	for i, st := range stats {
		if claimed[i] || st.filled == 0 {
			continue
		}
		if float64(st.amounts)/float64(st.filled) >= 0.8 {
			money = append(money, i)
		}
	}
	exclusive := func(a, b int) bool {
		for _, row := range sample {
			if cellAt(row, a) != "" && cellAt(row, b) != "" {
				return false
			}
		}
		return true
	}
	switch {
	case len(money) == 1:
		m[ColAmount] = money[0]
	case len(money) == 2 && exclusive(money[0], money[1]):
		m[ColDebit], m[ColCredit] = money[0], money[1]
	case len(money) == 2:
		m[ColAmount], m[ColBalance] = money[0], money[1]
	case len(money) >= 3 && exclusive(money[0], money[1]):
		m[ColDebit], m[ColCredit] = money[0], money[1]
		m[ColBalance] = money[len(money)-1]
	case len(money) >= 3:
		m[ColAmount] = money[0]
		m[ColBalance] = money[len(money)-1]
	}
	for _, i := range money {
		claimed[i] = true
	}

	bestType := -1
	for i, st := range stats {
		if !claimed[i] && st.filled > 0 && float64(st.types)/float64(st.filled) >= 0.8 {
			bestType = i
			break
		}
	}
	if bestType >= 0 {
		m[ColType] = bestType
		claimed[bestType] = true
	}

	bestDesc, bestLen := -1, 0
	for i, st := range stats {
		if !claimed[i] && st.textLen > bestLen {
			bestDesc, bestLen = i, st.textLen
		}
	}
	if bestDesc >= 0 {
		m[ColDescription] = bestDesc
	}

	return m, 0.6 * float64(m.required()) / numRequired
}

// Positional assumes date, description, amount and balance in that order.
type Positional struct{}

func (Positional) Name() string { return "positional" }

func (Positional) Match(header []string, sample [][]string) (Mapping, float64) {
	width := len(header)
	for _, row := range sample {
		width = max(width, len(row))
	}
	if width < 3 {
		return nil, 0
	}
	m := Mapping{ColDate: 0, ColDescription: 1, ColAmount: 2}
	if width >= 4 {
		m[ColBalance] = 3
	}
	return m, 0.1
}

// DefaultMatchers returns the matchers in priority order.
func DefaultMatchers(dates *DateParser, amounts *AmountParser) []Matcher {
	return []Matcher{
		HeaderExact{},
		HeaderKeyword{},
		ContentProbe{Dates: dates, Amounts: amounts},
		Positional{},
	}
}

var columnOrder = []Column{ColDate, ColDescription, ColAmount, ColDebit, ColCredit, ColType, ColBalance}

func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// best runs matchers in order and keeps the highest score; ties go to the
// earlier matcher.
func best(matchers []Matcher, header []string, sample [][]string) (Mapping, float64, string) {
	var (
		mapping Mapping
		score   float64
		name    string
	)
	for _, m := range matchers {
		got, s := m.Match(header, sample)
		if got != nil && (mapping == nil || s > score) {
			mapping, score, name = got, s, m.Name()
		}
	}
	return mapping, score, name
}

// isHeaderMatcher reports whether m judges header rows rather than data.
func isHeaderMatcher(m Matcher) bool {
	switch m.(type) {
	case HeaderExact, HeaderKeyword, *HeaderExact, *HeaderKeyword:
		return true
	}
	return false
}
