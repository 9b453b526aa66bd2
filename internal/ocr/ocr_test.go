package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsebank-dev/parsebank/internal/config"
)

func TestNew(t *testing.T) {
	ctx := context.Background()

	eng, closeFn, err := New(ctx, config.Default().OCR)
	require.NoError(t, err)
	require.NotNil(t, closeFn)
	tess, ok := eng.(*Tesseract)
	require.True(t, ok)
	assert.Equal(t, "eng", tess.Languages)
	assert.Equal(t, 60*time.Second, tess.Timeout)
	assert.NoError(t, closeFn())

	eng, _, err = New(ctx, config.OCRConfig{Engine: "none"})
	require.NoError(t, err)
	_, err = eng.Recognize(ctx, []byte("x"), "png")
	assert.ErrorIs(t, err, ErrNoEngine)

	_, _, err = New(ctx, config.OCRConfig{Engine: "abbyy"})
	assert.ErrorContains(t, err, "unknown OCR engine")

	_, _, err = New(ctx, config.OCRConfig{Engine: "vertex"})
	assert.ErrorContains(t, err, "project and region")
}

func TestTesseractArgs(t *testing.T) {
	tess := &Tesseract{Languages: "eng+deu", PSM: 6}
	assert.Equal(t, []string{"stdin", "stdout", "-l", "eng+deu", "--psm", "6"}, tess.Args())
	assert.Equal(t, []string{"stdin", "stdout"}, (&Tesseract{}).Args())
}

// fakeBinary writes a shell script standing in for tesseract.
func fakeBinary(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "fake-tesseract")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

func TestTesseract_PipesStdin(t *testing.T) {
	tess := &Tesseract{Path: fakeBinary(t, "cat")}
	out, err := tess.Recognize(context.Background(), []byte("2024-01-05  Coffee Shop  -4.50  \n\n"), "png")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-05  Coffee Shop  -4.50", out)
}

func TestTesseract_Failure(t *testing.T) {
	tess := &Tesseract{Path: fakeBinary(t, "echo 'Error in pixReadStream' >&2; exit 1")}
	_, err := tess.Recognize(context.Background(), []byte("x"), "png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pixReadStream")
}

func TestTesseract_Timeout(t *testing.T) {
	tess := &Tesseract{Path: fakeBinary(t, "exec sleep 5"), Timeout: 50 * time.Millisecond}
	_, err := tess.Recognize(context.Background(), []byte("x"), "png")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTesseract_MissingBinary(t *testing.T) {
	tess := &Tesseract{Path: filepath.Join(t.TempDir(), "nope")}
	assert.False(t, tess.Available())
	_, err := tess.Recognize(context.Background(), []byte("x"), "png")
	assert.Error(t, err)
}

func TestTesseract_Real(t *testing.T) {
	tess := &Tesseract{Languages: "eng", PSM: 6, Timeout: 30 * time.Second}
	if !tess.Available() {
		t.Skip("tesseract not installed")
	}

	img := image.NewGray(image.Rect(0, 0, 64, 32))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(1, 1, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	_, err := tess.Recognize(context.Background(), buf.Bytes(), "png")
	assert.NoError(t, err)
}

type fakeGenerator struct {
	resp  *genai.GenerateContentResponse
	err   error
	parts []genai.Part
}

func (f *fakeGenerator) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.parts = parts
	return f.resp, f.err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{}
	for _, p := range parts {
		content.Parts = append(content.Parts, genai.Text(p))
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}
}

func TestVertex_Recognize(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse("```\nDate | Description | Amount\n", "2024-01-05 | Coffee Shop | -4.50\n```")}
	v := &Vertex{model: gen}

	out, err := v.Recognize(context.Background(), []byte("img"), "jpeg")
	require.NoError(t, err)
	assert.Equal(t, "Date | Description | Amount\n2024-01-05 | Coffee Shop | -4.50", out)

	require.Len(t, gen.parts, 2)
	blob, ok := gen.parts[0].(genai.Blob)
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", blob.MIMEType)
	assert.Equal(t, genai.Text(TranscribePrompt), gen.parts[1])
}

func TestVertex_Errors(t *testing.T) {
	v := &Vertex{model: &fakeGenerator{err: errors.New("quota exceeded")}}
	_, err := v.Recognize(context.Background(), []byte("img"), "png")
	assert.ErrorContains(t, err, "quota exceeded")

	v = &Vertex{model: &fakeGenerator{resp: &genai.GenerateContentResponse{}}}
	_, err = v.Recognize(context.Background(), []byte("img"), "png")
	assert.ErrorContains(t, err, "empty response")

	v = &Vertex{model: &fakeGenerator{resp: textResponse()}}
	_, err = v.Recognize(context.Background(), []byte("img"), "png")
	assert.ErrorContains(t, err, "no text")

	assert.NoError(t, (&Vertex{}).Close())
}

func TestCleanText(t *testing.T) {
	in := "```text\r\nDate | Amount  \r\n\r\n2024-01-05 | 1.00\r\n```\n"
	assert.Equal(t, "Date | Amount\n\n2024-01-05 | 1.00", CleanText(in))
	assert.Equal(t, "", CleanText(""))
}
