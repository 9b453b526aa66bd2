package model

import (
	"errors"
	"strings"
)

// Kind is the declared or detected type of an uploaded file.
type Kind string

const (
	KindPDF   Kind = "pdf"
	KindImage Kind = "image"
	KindCSV   Kind = "csv"
	KindXLSX  Kind = "xlsx"
)

// Kinds lists every accepted kind.
var Kinds = []Kind{KindPDF, KindImage, KindCSV, KindXLSX}

var (
	// ErrUnsupportedFileType is returned for files no extractor accepts.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrUnreadableDocument is returned when a whole document cannot be opened.
	ErrUnreadableDocument = errors.New("unreadable document")
)

// RawDocument is an uploaded file plus its kind. Treat as immutable.
type RawDocument struct {
	ID   string
	Name string
	Kind Kind
	data []byte
}

// NewRawDocument copies data so later changes by the caller are not observed.
func NewRawDocument(id, name string, kind Kind, data []byte) RawDocument {
	buf := make([]byte, len(data))
	copy(buf, data)
	return RawDocument{ID: id, Name: name, Kind: kind, data: buf}
}

// Bytes returns a copy of the document contents.
func (d RawDocument) Bytes() []byte {
	buf := make([]byte, len(d.data))
	copy(buf, d.data)
	return buf
}

// Size returns the document length in bytes.
func (d RawDocument) Size() int { return len(d.data) }

// RawRow is an ordered cell sequence as extracted, before interpretation.
type RawRow struct {
	Cells []string
	Page  int // 1-based; 1 for single-page sources
	Line  int // 1-based line within the page or file
}

// Blank reports whether every cell is empty after trimming spaces.
func (r RawRow) Blank() bool {
	for _, c := range r.Cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
