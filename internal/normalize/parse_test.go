package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateParser(t *testing.T) {
	p := NewDateParser(false)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-01-05", day(2024, 1, 5)},
		{"2024-01-05T10:30:00Z", day(2024, 1, 5)},
		{"2024-01-05 23:59:59", day(2024, 1, 5)},
		{"2024/1/5", day(2024, 1, 5)},
		{"01/05/2024", day(2024, 1, 5)},
		{"1-5-2024", day(2024, 1, 5)},
		{"25/01/2024", day(2024, 1, 25)},
		{"25.01.2024", day(2024, 1, 25)},
		{"05 Jan 2024", day(2024, 1, 5)},
		{"5 JAN 2024", day(2024, 1, 5)},
		{"05-Jan-2024", day(2024, 1, 5)},
		{"5 January 2024", day(2024, 1, 5)},
		{"Jan 5, 2024", day(2024, 1, 5)},
		{"January 5, 2024", day(2024, 1, 5)},
		{"05-Jan-24", day(2024, 1, 5)},
		{"1/5/24", day(2024, 1, 5)},
		{"  2024-01-05  ", day(2024, 1, 5)},
	}
	for _, tt := range tests {
		got, err := p.Parse(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestDateParser_DayFirst(t *testing.T) {
	got, err := NewDateParser(true).Parse("05/01/2024")
	require.NoError(t, err)
	assert.Equal(t, day(2024, 1, 5), got)

	got, err = NewDateParser(false).Parse("05/01/2024")
	require.NoError(t, err)
	assert.Equal(t, day(2024, 5, 1), got)

	got, err = NewDateParser(true).Parse("05/01/24")
	require.NoError(t, err)
	assert.Equal(t, day(2024, 1, 5), got)

	// Unambiguous dates parse either way.
	got, err = NewDateParser(true).Parse("12/31/2024")
	require.NoError(t, err)
	assert.Equal(t, day(2024, 12, 31), got)
}

func TestDateParser_LayoutOrder(t *testing.T) {
	layouts := NewDateParser(true).Layouts()
	assert.Equal(t, "2006-01-02", layouts[0])
	assert.Less(t, indexOf(layouts, "2/1/2006"), indexOf(layouts, "1/2/2006"))

	layouts = NewDateParser(false).Layouts()
	assert.Less(t, indexOf(layouts, "1/2/2006"), indexOf(layouts, "2/1/2006"))
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func TestDateParser_Invalid(t *testing.T) {
	p := NewDateParser(false)
	for _, in := range []string{"", "N/A", "Opening balance", "13/13/2024", "-4.50", "2024-02-30"} {
		_, err := p.Parse(in)
		assert.Error(t, err, in)
	}
}

func TestAmountParser(t *testing.T) {
	p := NewAmountParser([]string{"USD", "EUR", "GBP", "AUD"})
	tests := []struct {
		in   string
		want string
	}{
		{"-4.50", "-4.50"},
		{"10.00", "10.00"},
		{"+10", "10.00"},
		{"(12.00)", "-12.00"},
		{"4.50-", "-4.50"},
		{"1,234.56", "1234.56"},
		{"1.234,56", "1234.56"},
		{"12,50", "12.50"},
		{"1,234", "1234.00"},
		{"1.234.567", "1234567.00"},
		{"1 234,56", "1234.56"},
		{"$1,000", "1000.00"},
		{"€12,50", "12.50"},
		{"£-3.10", "-3.10"},
		{"A$20", "20.00"},
		{"USD 12.00", "12.00"},
		{"12.00 DR", "-12.00"},
		{"12.00Cr", "12.00"},
		{"-12.00 CR", "12.00"},
		{"($5.25)", "-5.25"},
		{"−7.00", "-7.00"},
	}
	for _, tt := range tests {
		got, err := p.Parse(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got.StringFixed(2), tt.in)
	}
}

func TestAmountParser_Invalid(t *testing.T) {
	p := NewAmountParser([]string{"USD"})
	for _, in := range []string{"", "  ", "N/A", "-", "2024-01-05", "01/05/2024", "abc", "1.2.3x", ","} {
		_, err := p.Parse(in)
		assert.Error(t, err, in)
	}
}

func TestAmountParser_Symbols(t *testing.T) {
	p := NewAmountParser([]string{"usd", "AUD", "XXX-not-a-code"})
	syms := p.Symbols()
	assert.Contains(t, syms, "$")
	assert.Contains(t, syms, "A$")
	assert.Contains(t, syms, "USD")
	assert.Less(t, indexOf(syms, "A$"), indexOf(syms, "$"))
}

func TestCollapseSpace(t *testing.T) {
	assert.Equal(t, "POS PURCHASE STARBUCKS", collapseSpace("  POS   PURCHASE\tSTARBUCKS "))
}
