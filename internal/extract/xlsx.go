package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/parsebank-dev/parsebank/internal/model"
)

// preferredSheets are matched case-insensitively before falling back to the
// first sheet.
var preferredSheets = []string{"transactions", "statement", "sheet1"}

// XLSXExtractor streams rows from an Excel workbook.
type XLSXExtractor struct{}

func (e *XLSXExtractor) Kind() model.Kind { return model.KindXLSX }

// Extract checks the workbook eagerly so a broken file fails fast. The
// workbook is opened again when the stream is ranged, so an unranged stream
// holds nothing open.
func (e *XLSXExtractor) Extract(ctx context.Context, doc model.RawDocument) (*Stream, error) {
	sheet, err := checkWorkbook(doc)
	if err != nil {
		return nil, err
	}

	return newStream(func(yield func(model.RawRow) bool, skip func()) error {
		f, err := excelize.OpenReader(bytes.NewReader(doc.Bytes()))
		if err != nil {
			return fmt.Errorf("opening workbook %s: %v: %w", doc.Name, err, model.ErrUnreadableDocument)
		}
		defer f.Close()

		rows, err := f.Rows(sheet)
		if err != nil {
			return fmt.Errorf("reading sheet %q: %w", sheet, err)
		}
		defer rows.Close()

		line := 0
		for rows.Next() {
			line++
			if err := ctx.Err(); err != nil {
				return err
			}
			cols, err := rows.Columns()
			if err != nil {
				skip()
				continue
			}
			if !yield(model.RawRow{Cells: cols, Page: 1, Line: line}) {
				return nil
			}
		}
		return rows.Error()
	}), nil
}

// checkWorkbook opens doc, picks the sheet to read and closes it again.
func checkWorkbook(doc model.RawDocument) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(doc.Bytes()))
	if err != nil {
		return "", fmt.Errorf("opening workbook %s: %v: %w", doc.Name, err, model.ErrUnreadableDocument)
	}
	defer f.Close()

	sheet := pickSheet(f.GetSheetList())
	if sheet == "" {
		return "", fmt.Errorf("workbook %s has no sheets: %w", doc.Name, model.ErrUnreadableDocument)
	}
	return sheet, nil
}

func pickSheet(sheets []string) string {
	for _, want := range preferredSheets {
		for _, s := range sheets {
			if strings.EqualFold(strings.TrimSpace(s), want) {
				return s
			}
		}
	}
	if len(sheets) > 0 {
		return sheets[0]
	}
	return ""
}
