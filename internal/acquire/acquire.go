package acquire

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/parsebank-dev/parsebank/internal/model"
)

// DefaultMaxBytes bounds a single upload when no limit is configured.
const DefaultMaxBytes = 32 << 20

// Acquirer turns uploaded bytes into RawDocuments.
type Acquirer struct {
	MaxBytes int64
}

// New returns an Acquirer with the given size bound. A non-positive bound
// selects DefaultMaxBytes.
func New(maxBytes int64) *Acquirer {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Acquirer{MaxBytes: maxBytes}
}

var extKinds = map[string]model.Kind{
	".pdf":  model.KindPDF,
	".png":  model.KindImage,
	".jpg":  model.KindImage,
	".jpeg": model.KindImage,
	".tif":  model.KindImage,
	".tiff": model.KindImage,
	".csv":  model.KindCSV,
	".txt":  model.KindCSV,
	".tsv":  model.KindCSV,
	".xlsx": model.KindXLSX,
}

var mimeKinds = map[string]model.Kind{
	"application/pdf":           model.KindPDF,
	"image/png":                 model.KindImage,
	"image/jpeg":                model.KindImage,
	"image/tiff":                model.KindImage,
	"text/csv":                  model.KindCSV,
	"text/plain":                model.KindCSV,
	"text/tab-separated-values": model.KindCSV,

	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": model.KindXLSX,
}

// Supported reports whether name has an accepted extension.
func Supported(name string) bool {
	_, ok := extKinds[strings.ToLower(filepath.Ext(name))]
	return ok
}

// NewDocument resolves the kind of data and wraps it in a RawDocument with a
// fresh ID. declared may be a kind name, an extension or a MIME type; when it
// is empty the extension of name and then the content decide.
func (a *Acquirer) NewDocument(name string, data []byte, declared string) (model.RawDocument, error) {
	if int64(len(data)) > a.MaxBytes {
		return model.RawDocument{}, fmt.Errorf("%s is %d bytes, limit is %d: %w", name, len(data), a.MaxBytes, model.ErrUnreadableDocument)
	}

	kind, err := ResolveKind(name, data, declared)
	if err != nil {
		return model.RawDocument{}, err
	}
	return model.NewRawDocument(uuid.NewString(), filepath.Base(name), kind, data), nil
}

// ReadFile loads path from disk and calls NewDocument.
func (a *Acquirer) ReadFile(path, declared string) (model.RawDocument, error) {
	info, err := os.Stat(path)
	if err != nil {
		return model.RawDocument{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > a.MaxBytes {
		return model.RawDocument{}, fmt.Errorf("%s is %d bytes, limit is %d: %w", path, info.Size(), a.MaxBytes, model.ErrUnreadableDocument)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return model.RawDocument{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return a.NewDocument(path, data, declared)
}

// ResolveKind picks the document kind from the declared type, the file
// extension or the leading bytes, in that order.
func ResolveKind(name string, data []byte, declared string) (model.Kind, error) {
	if declared = strings.TrimSpace(declared); declared != "" {
		if kind, ok := declaredKind(declared); ok {
			return kind, nil
		}
		return "", fmt.Errorf("declared type %q: %w", declared, model.ErrUnsupportedFileType)
	}

	if ext := strings.ToLower(filepath.Ext(name)); ext != "" {
		if kind, ok := extKinds[ext]; ok {
			return kind, nil
		}
		return "", fmt.Errorf("extension %q: %w", ext, model.ErrUnsupportedFileType)
	}

	if kind, ok := sniff(data); ok {
		return kind, nil
	}
	return "", fmt.Errorf("%s: %w", name, model.ErrUnsupportedFileType)
}

func declaredKind(declared string) (model.Kind, bool) {
	lower := strings.ToLower(declared)
	for _, k := range model.Kinds {
		if lower == string(k) {
			return k, true
		}
	}
	if strings.HasPrefix(lower, ".") {
		kind, ok := extKinds[lower]
		return kind, ok
	}
	if kind, ok := extKinds["."+lower]; ok {
		return kind, true
	}
	if mt, _, err := mime.ParseMediaType(lower); err == nil {
		kind, ok := mimeKinds[mt]
		return kind, ok
	}
	return "", false
}

var (
	magicPDF   = []byte("%PDF-")
	magicZip   = []byte("PK\x03\x04")
	magicTIFFL = []byte("II*\x00")
	magicTIFFB = []byte("MM\x00*")
)

// sniff classifies content without a name. Zip containers are assumed to be
// XLSX since that is the only zip-based format accepted.
func sniff(data []byte) (model.Kind, bool) {
	switch {
	case len(data) == 0:
		return "", false
	case bytes.HasPrefix(data, magicPDF):
		return model.KindPDF, true
	case bytes.HasPrefix(data, magicZip):
		return model.KindXLSX, true
	case bytes.HasPrefix(data, magicTIFFL), bytes.HasPrefix(data, magicTIFFB):
		return model.KindImage, true
	}

	ct := http.DetectContentType(data)
	if kind, ok := mimeKinds[strings.SplitN(ct, ";", 2)[0]]; ok {
		return kind, true
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	if utf8.Valid(head) && !bytes.ContainsRune(head, 0) {
		return model.KindCSV, true
	}
	return "", false
}
