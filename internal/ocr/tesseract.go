package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Tesseract runs the tesseract binary, feeding the image on stdin.
type Tesseract struct {
	Path      string // defaults to "tesseract"
	Languages string // e.g. "eng" or "eng+deu"
	PSM       int    // page segmentation mode; 0 leaves the default
	Timeout   time.Duration
}

func (t *Tesseract) bin() string {
	if t.Path == "" {
		return "tesseract"
	}
	return t.Path
}

// Available reports whether the binary can be found.
func (t *Tesseract) Available() bool {
	_, err := exec.LookPath(t.bin())
	return err == nil
}

// Args returns the command-line arguments for one recognition.
func (t *Tesseract) Args() []string {
	args := []string{"stdin", "stdout"}
	if t.Languages != "" {
		args = append(args, "-l", t.Languages)
	}
	if t.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.PSM))
	}
	return args
}

// Recognize returns the text tesseract reads from image.
func (t *Tesseract) Recognize(ctx context.Context, image []byte, _ string) (string, error) {
	ctx, cancel := withTimeout(ctx, t.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.bin(), t.Args()...)
	cmd.Stdin = bytes.NewReader(image)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("tesseract: %w", ctxErr)
		}
		return "", fmt.Errorf("tesseract: %s: %w", strings.TrimSpace(stderr.String()), err)
	}
	return CleanText(stdout.String()), nil
}
