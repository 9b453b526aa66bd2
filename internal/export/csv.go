package export

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/parsebank-dev/parsebank/internal/model"
)

// Header is the first line of every exported file.
const Header = "Date,Description,Amount,Type,Balance"

// DateFormat is the layout of the Date column.
const DateFormat = "2006-01-02"

// Row is the CSV shape of one Transaction.
type Row struct {
	Date        string `csv:"Date"`
	Description string `csv:"Description"`
	Amount      string `csv:"Amount"`
	Type        string `csv:"Type"`
	Balance     string `csv:"Balance"`
}

// MarshalRow converts a Transaction to its CSV row. Amounts and balances
// always carry two decimals; a missing balance is left empty.
func MarshalRow(tx model.Transaction) Row {
	row := Row{
		Date:        tx.Date.Format(DateFormat),
		Description: tx.Description,
		Amount:      tx.Amount.StringFixed(2),
		Type:        string(tx.Type),
	}
	if tx.Balance.Valid {
		row.Balance = tx.Balance.Decimal.StringFixed(2)
	}
	return row
}

// WriteCSV writes table to w with a header line. Output is deterministic
// for a given table.
func WriteCSV(w io.Writer, table model.Table) error {
	rows := make([]Row, len(table))
	for i, tx := range table {
		rows[i] = MarshalRow(tx)
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("writing CSV: %w", err)
	}
	return nil
}

// CSV returns the exported bytes of table.
func CSV(table model.Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, table); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FileName swaps the extension of a source document name for .csv. Quotes
// and control characters are replaced so the result is safe in headers.
func FileName(name string) string {
	name = filepath.Base(name)
	if ext := filepath.Ext(name); ext != "" && ext != name {
		name = strings.TrimSuffix(name, ext)
	}
	name = strings.Map(func(r rune) rune {
		if r == '"' || r < ' ' {
			return '_'
		}
		return r
	}, name)
	return name + ".csv"
}
