// Package runlog keeps the append-only log of batch extractions.
package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/gocarina/gocsv"
)

// Entry is one row in the extraction log.
type Entry struct {
	Timestamp  time.Time `csv:"timestamp"`
	File       string    `csv:"file"`
	DocumentID string    `csv:"document_id"`
	Rows       int       `csv:"rows"`
	Invalid    int       `csv:"invalid"`
	Skipped    int       `csv:"skipped"`
	Status     string    `csv:"status"`
}

// Header is the CSV header for extract-log.csv.
const Header = "timestamp,file,document_id,rows,invalid,skipped,status"

const (
	logDir  = "logs"
	logFile = "logs/extract-log.csv"
)

// Path returns the log location under root.
func Path(root string) string { return filepath.Join(root, logFile) }

// Append writes entries to <root>/logs/extract-log.csv, creating the file
// and header if needed.
func Append(root string, entries []Entry) error {
	if err := os.MkdirAll(filepath.Join(root, logDir), 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	path := Path(root)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening extract log: %w", err)
	}
	defer f.Close()

	rows := slices.Clone(entries)
	for i := range rows {
		rows[i].Timestamp = rows[i].Timestamp.UTC().Truncate(time.Second)
	}
	if needsHeader {
		err = gocsv.Marshal(rows, f)
	} else {
		err = gocsv.MarshalWithoutHeaders(rows, f)
	}
	if err != nil {
		return fmt.Errorf("writing extract log: %w", err)
	}
	return nil
}

// Read returns all entries from <root>/logs/extract-log.csv, or nil when
// the file does not exist.
func Read(root string) ([]Entry, error) {
	f, err := os.Open(Path(root))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening extract log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	if err := gocsv.Unmarshal(f, &entries); err != nil {
		return nil, fmt.Errorf("reading extract log CSV: %w", err)
	}
	return entries, nil
}
