package acquire

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsebank-dev/parsebank/internal/model"
)

func TestResolveKind_Declared(t *testing.T) {
	tests := []struct {
		declared string
		want     model.Kind
	}{
		{"pdf", model.KindPDF},
		{"PDF", model.KindPDF},
		{".png", model.KindImage},
		{"jpeg", model.KindImage},
		{"image", model.KindImage},
		{"csv", model.KindCSV},
		{"tsv", model.KindCSV},
		{"application/pdf", model.KindPDF},
		{"text/csv; charset=utf-8", model.KindCSV},
		{"xlsx", model.KindXLSX},
	}
	for _, tt := range tests {
		got, err := ResolveKind("statement.bin", nil, tt.declared)
		require.NoError(t, err, tt.declared)
		assert.Equal(t, tt.want, got, tt.declared)
	}
}

func TestResolveKind_DeclaredUnsupported(t *testing.T) {
	_, err := ResolveKind("statement.csv", []byte("a,b"), "docx")
	assert.ErrorIs(t, err, model.ErrUnsupportedFileType)
}

func TestResolveKind_Extension(t *testing.T) {
	got, err := ResolveKind("Statement.PDF", nil, "")
	require.NoError(t, err)
	assert.Equal(t, model.KindPDF, got)

	got, err = ResolveKind("scan.tiff", nil, "")
	require.NoError(t, err)
	assert.Equal(t, model.KindImage, got)

	_, err = ResolveKind("statement.docx", []byte("%PDF-1.4"), "")
	assert.ErrorIs(t, err, model.ErrUnsupportedFileType)
}

func TestResolveKind_Sniff(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want model.Kind
	}{
		{"pdf", []byte("%PDF-1.7\n%..."), model.KindPDF},
		{"png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), model.KindImage},
		{"jpeg", []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00"), model.KindImage},
		{"tiff", []byte("II*\x00\x08\x00\x00\x00"), model.KindImage},
		{"zip", []byte("PK\x03\x04\x14\x00"), model.KindXLSX},
		{"text", []byte("Date,Description,Amount\n"), model.KindCSV},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveKind("upload", tt.data, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ResolveKind("upload", []byte{0x00, 0x01, 0x02, 0xfe}, "")
	assert.ErrorIs(t, err, model.ErrUnsupportedFileType)
}

func TestNewDocument(t *testing.T) {
	a := New(0)
	assert.Equal(t, int64(DefaultMaxBytes), a.MaxBytes)

	doc, err := a.NewDocument("/tmp/uploads/jan.csv", []byte("a,b\n"), "")
	require.NoError(t, err)
	assert.Equal(t, "jan.csv", doc.Name)
	assert.Equal(t, model.KindCSV, doc.Kind)
	assert.Len(t, doc.ID, 36)

	other, err := a.NewDocument("jan.csv", []byte("a,b\n"), "")
	require.NoError(t, err)
	assert.NotEqual(t, doc.ID, other.ID)
}

func TestNewDocument_TooLarge(t *testing.T) {
	a := New(4)
	_, err := a.NewDocument("big.csv", []byte("12345"), "")
	assert.ErrorIs(t, err, model.ErrUnreadableDocument)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feb.tsv")
	require.NoError(t, os.WriteFile(path, []byte("Date\tAmount\n"), 0o644))

	doc, err := New(0).ReadFile(path, "")
	require.NoError(t, err)
	assert.Equal(t, "feb.tsv", doc.Name)
	assert.Equal(t, model.KindCSV, doc.Kind)
	assert.Equal(t, "Date\tAmount\n", string(doc.Bytes()))

	_, err = New(4).ReadFile(path, "")
	assert.ErrorIs(t, err, model.ErrUnreadableDocument)

	_, err = New(0).ReadFile(filepath.Join(dir, "missing.csv"), "")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("a.pdf"))
	assert.True(t, Supported("a.JPG"))
	assert.True(t, Supported("a.xlsx"))
	assert.False(t, Supported("a.xls"))
	assert.False(t, Supported("README"))
}

func TestScan_FindsStatements(t *testing.T) {
	dir := t.TempDir()
	inbox := filepath.Join(dir, "inbox")
	require.NoError(t, os.MkdirAll(inbox, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(inbox, "bank.csv"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "scan.pdf"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "notes.docx"), []byte("data"), 0o644))

	files, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "bank.csv", files[0].Name)
	assert.Equal(t, "scan.pdf", files[1].Name)
	assert.Equal(t, int64(4), files[0].Size)
}

func TestScan_IgnoresProcessedDir(t *testing.T) {
	dir := t.TempDir()
	processed := filepath.Join(dir, "inbox", "processed")
	require.NoError(t, os.MkdirAll(processed, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "inbox", "new.csv"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(processed, "old.csv"), []byte("data"), 0o644))

	files, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "new.csv", files[0].Name)
}

func TestScan_NoInbox(t *testing.T) {
	files, err := Scan(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, files)
}

func TestMarkProcessed(t *testing.T) {
	dir := t.TempDir()
	inbox := filepath.Join(dir, "inbox")
	require.NoError(t, os.MkdirAll(inbox, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "bank.csv"), []byte("data"), 0o644))

	require.NoError(t, MarkProcessed(dir, "bank.csv"))

	_, err := os.Stat(filepath.Join(inbox, "bank.csv"))
	assert.True(t, os.IsNotExist(err))

	_, err = os.Stat(filepath.Join(dir, "inbox", "processed", "bank.csv"))
	assert.NoError(t, err)
}

func TestMarkProcessed_Missing(t *testing.T) {
	err := MarkProcessed(t.TempDir(), "ghost.csv")
	assert.ErrorContains(t, err, "moving ghost.csv to processed")
}
