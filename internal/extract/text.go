package extract

import (
	"regexp"
	"strings"

	"github.com/parsebank-dev/parsebank/internal/model"
)

var (
	gapSplit  = regexp.MustCompile(`\t+| {2,}`)
	tableRule = regexp.MustCompile(`^[\s|:+-]+$`)

	datePattern   = `\d{1,4}[/.-]\d{1,2}[/.-]\d{2,4}|\d{1,2}[ -][A-Za-z]{3,9}[ -]\d{2,4}|[A-Za-z]{3,9} \d{1,2},? \d{4}`
	amountPattern = `\(?[-+]?[^\s\d()]{0,3}-?\d(?:[\d,.]*\d)?\)?(?: ?(?:CR|DR|Cr|Dr|cr|dr))?-?`
	looseRow      = regexp.MustCompile(`^(` + datePattern + `)\s+(.+?)\s+(` + amountPattern + `)(?:\s+(` + amountPattern + `))?$`)
)

// SplitLine splits one line of recognized text into cells. Lines with
// pipes are split on pipes; otherwise tabs or runs of two or more spaces
// separate cells. A single-cell line that starts with a date and ends in
// one or two amounts is split into date, description and amounts.
func SplitLine(line string) []string {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	if strings.Contains(line, "|") {
		if tableRule.MatchString(line) {
			return nil
		}
		cells := strings.Split(line, "|")
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		if len(cells) > 1 && cells[0] == "" {
			cells = cells[1:]
		}
		if len(cells) > 1 && cells[len(cells)-1] == "" {
			cells = cells[:len(cells)-1]
		}
		return cells
	}

	if cells := gapSplit.Split(line, -1); len(cells) > 1 {
		return cells
	}

	if m := looseRow.FindStringSubmatch(line); m != nil {
		cells := []string{m[1], strings.TrimSpace(m[2]), m[3]}
		if m[4] != "" {
			cells = append(cells, m[4])
		}
		return cells
	}
	return []string{line}
}

// SplitText turns recognized page text into rows for page.
func SplitText(text string, page int) []model.RawRow {
	var rows []model.RawRow
	for i, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		cells := SplitLine(line)
		if len(cells) == 0 {
			continue
		}
		rows = append(rows, model.RawRow{Cells: cells, Page: page, Line: i + 1})
	}
	return rows
}
