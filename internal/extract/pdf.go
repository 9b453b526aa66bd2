package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/dslipak/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/sync/errgroup"

	"github.com/parsebank-dev/parsebank/internal/model"
	"github.com/parsebank-dev/parsebank/internal/ocr"
)

// DefaultMinTableRows is how many multi-cell lines make a page tabular.
const DefaultMinTableRows = 2

var disablePDFCPUConfig sync.Once

// PDFExtractor reads PDF text layout and falls back to OCR on pages
// without a usable text layer.
type PDFExtractor struct {
	MinTableRows int
	Workers      int
	OCR          ocr.Engine
	Logger       *slog.Logger
}

func (e *PDFExtractor) Kind() model.Kind { return model.KindPDF }

// Extract opens the document eagerly; pages are decoded lazily while the
// stream is ranged, up to Workers at a time, and always yielded in page
// order. Pages that cannot be read are skipped and counted.
func (e *PDFExtractor) Extract(ctx context.Context, doc model.RawDocument) (*Stream, error) {
	data := doc.Bytes()
	r, err := openPDF(data)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %v: %w", doc.Name, err, model.ErrUnreadableDocument)
	}

	d := &pdfDoc{
		data:         data,
		pages:        r.NumPage(),
		minTableRows: cmp0(e.MinTableRows, DefaultMinTableRows),
		engine:       e.OCR,
		log:          e.logger().With("document_id", doc.ID, "name", doc.Name),
	}
	d.readers.New = func() any {
		r, err := openPDF(d.data)
		if err != nil {
			return nil
		}
		return r
	}
	d.readers.Put(r)

	workers := cmp0(e.Workers, 1)
	return newStream(func(yield func(model.RawRow) bool, skip func()) error {
		for start := 1; start <= d.pages; start += workers {
			end := min(d.pages, start+workers-1)
			results := make([][]model.RawRow, end-start+1)
			failed := make([]bool, end-start+1)

			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(workers)
			for num := start; num <= end; num++ {
				g.Go(func() error {
					rows, err := d.page(gctx, num)
					if err != nil {
						if ctxErr := gctx.Err(); ctxErr != nil {
							return ctxErr
						}
						d.log.Warn("skipping page", "page", num, "error", err)
						failed[num-start] = true
						return nil
					}
					results[num-start] = rows
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			for i, rows := range results {
				if failed[i] {
					skip()
					continue
				}
				for _, row := range rows {
					if !yield(row) {
						return nil
					}
				}
			}
		}
		return nil
	}), nil
}

func (e *PDFExtractor) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}

func cmp0(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// openPDF parses the trailer and xref; the reader library panics on some
// malformed input, so panics become errors.
func openPDF(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r, err = nil, fmt.Errorf("malformed PDF: %v", rec)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

type pageImage struct {
	data   []byte
	format string
}

type pdfDoc struct {
	data         []byte
	pages        int
	minTableRows int
	engine       ocr.Engine
	log          *slog.Logger
	readers      sync.Pool

	imgOnce sync.Once
	images  map[int][]pageImage
	imgErr  error
}

// page returns the rows of one page, from the text layer when it holds
// enough multi-cell lines and from OCR otherwise. When OCR cannot help, the
// multi-cell lines of the text layer are still returned.
func (d *pdfDoc) page(ctx context.Context, num int) ([]model.RawRow, error) {
	lines, err := d.layout(num)
	if err != nil {
		d.log.Debug("text layer unreadable, trying OCR", "page", num, "error", err)
		return d.recognize(ctx, num)
	}

	rows := textRows(lines, num)
	if len(rows) >= d.minTableRows {
		return rows, nil
	}
	d.log.Debug("page not tabular, trying OCR", "page", num, "lines", len(lines), "rows", len(rows))
	recognized, err := d.recognize(ctx, num)
	if err != nil && len(rows) > 0 && ctx.Err() == nil {
		d.log.Debug("OCR unavailable, keeping text layer", "page", num, "error", err)
		return rows, nil
	}
	return recognized, err
}

// textRows keeps the text-layer lines with two or more cells. A line that
// came out as one cell is split again the way recognized text is, so
// single-spaced "date description amount" lines still yield cells.
func textRows(lines [][]string, num int) []model.RawRow {
	var rows []model.RawRow
	for i, cells := range lines {
		if len(cells) == 1 {
			cells = SplitLine(cells[0])
		}
		if len(cells) >= 2 {
			rows = append(rows, model.RawRow{Cells: cells, Page: num, Line: i + 1})
		}
	}
	return rows
}

func (d *pdfDoc) layout(num int) (lines [][]string, err error) {
	r, _ := d.readers.Get().(*pdf.Reader)
	if r == nil {
		return nil, errors.New("reopening PDF failed")
	}
	defer func() {
		if rec := recover(); rec != nil {
			lines, err = nil, fmt.Errorf("decoding content: %v", rec)
			return
		}
		d.readers.Put(r)
	}()

	p := r.Page(num)
	if p.V.IsNull() {
		return nil, errors.New("page object missing")
	}
	return groupLines(p.Content().Text), nil
}

// groupLines clusters glyphs into lines by baseline, top to bottom, and
// splits each line into cells at horizontal gaps wider than the font size.
func groupLines(texts []pdf.Text) [][]string {
	if len(texts) == 0 {
		return nil
	}
	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Y > sorted[j].Y
	})

	var lines [][]pdf.Text
	var cur []pdf.Text
	for _, t := range sorted {
		if len(cur) > 0 && math.Abs(cur[0].Y-t.Y) > lineTolerance(cur[0]) {
			lines = append(lines, cur)
			cur = nil
		}
		cur = append(cur, t)
	}
	lines = append(lines, cur)

	var out [][]string
	for _, line := range lines {
		sort.SliceStable(line, func(i, j int) bool { return line[i].X < line[j].X })
		if cells := splitCells(line); len(cells) > 0 {
			out = append(out, cells)
		}
	}
	return out
}

func lineTolerance(t pdf.Text) float64 {
	return math.Max(2, t.FontSize*0.4)
}

func splitCells(line []pdf.Text) []string {
	var cells []string
	var b strings.Builder
	flush := func() {
		for _, c := range gapSplit.Split(strings.TrimSpace(b.String()), -1) {
			if c = strings.TrimSpace(c); c != "" {
				cells = append(cells, c)
			}
		}
		b.Reset()
	}

	prevEnd := math.Inf(-1)
	for _, t := range line {
		gap := t.X - prevEnd
		if b.Len() > 0 && gap > math.Max(4, t.FontSize) {
			flush()
		} else if b.Len() > 0 && gap > math.Max(1, t.FontSize*0.2) && !strings.HasPrefix(t.S, " ") {
			b.WriteByte(' ')
		}
		b.WriteString(t.S)
		prevEnd = t.X + t.W
	}
	flush()
	return cells
}

// recognize runs OCR over the raster images embedded in page num.
func (d *pdfDoc) recognize(ctx context.Context, num int) ([]model.RawRow, error) {
	if d.engine == nil {
		return nil, ocr.ErrNoEngine
	}
	d.imgOnce.Do(d.loadImages)
	if d.imgErr != nil {
		return nil, fmt.Errorf("extracting images: %w", d.imgErr)
	}
	images := d.images[num]
	if len(images) == 0 {
		return nil, errors.New("no embedded images to recognize")
	}

	var rows []model.RawRow
	var lastErr error
	recognized := 0
	for _, img := range images {
		text, err := d.engine.Recognize(ctx, img.data, img.format)
		if err != nil {
			lastErr = err
			continue
		}
		recognized++
		offset := 0
		if len(rows) > 0 {
			offset = rows[len(rows)-1].Line
		}
		for _, row := range SplitText(text, num) {
			row.Line += offset
			rows = append(rows, row)
		}
	}
	if recognized == 0 {
		return nil, fmt.Errorf("OCR: %w", lastErr)
	}
	return rows, nil
}

// loadImages extracts every embedded image once, keyed by page number.
func (d *pdfDoc) loadImages() {
	disablePDFCPUConfig.Do(api.DisableConfigDir)

	defer func() {
		if rec := recover(); rec != nil {
			d.imgErr = fmt.Errorf("malformed PDF: %v", rec)
		}
	}()

	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed

	images := make(map[int][]pageImage)
	d.imgErr = api.ExtractImages(bytes.NewReader(d.data), nil, func(img pdfmodel.Image, _ bool, _ int) error {
		b, err := io.ReadAll(img)
		if err != nil {
			return fmt.Errorf("reading image %s on page %d: %w", img.Name, img.PageNr, err)
		}
		images[img.PageNr] = append(images[img.PageNr], pageImage{data: b, format: ocrFormat(img.FileType)})
		return nil
	}, conf)
	d.images = images
}

func ocrFormat(fileType string) string {
	switch strings.ToLower(fileType) {
	case "jpg", "jpeg":
		return "jpeg"
	case "tif", "tiff":
		return "tiff"
	case "":
		return "png"
	}
	return strings.ToLower(fileType)
}
