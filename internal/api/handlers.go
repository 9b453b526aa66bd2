package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/parsebank-dev/parsebank/internal/export"
	"github.com/parsebank-dev/parsebank/internal/pipeline"
)

// HandleHealth returns server health status.
func (s *Server) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// TransactionJSON is the wire shape of one transaction.
type TransactionJSON struct {
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Amount      string  `json:"amount"`
	Type        string  `json:"type"`
	Balance     *string `json:"balance"`
	Page        int     `json:"page"`
	Line        int     `json:"line"`
}

// RejectJSON describes one row left out of the table.
type RejectJSON struct {
	Page   int    `json:"page"`
	Line   int    `json:"line"`
	Column string `json:"column"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// ReportJSON is the response of POST /api/statements.
type ReportJSON struct {
	DocumentID   string            `json:"document_id"`
	Name         string            `json:"name"`
	Kind         string            `json:"kind"`
	Transactions []TransactionJSON `json:"transactions"`
	InvalidRows  int               `json:"invalid_rows"`
	Skipped      int               `json:"skipped"`
	HeaderRows   int               `json:"header_rows"`
	Matcher      string            `json:"matcher,omitempty"`
	Rejects      []RejectJSON      `json:"rejects"`
	ElapsedMS    int64             `json:"elapsed_ms"`
}

// NewReportJSON converts a pipeline report. Amounts use the export format.
func NewReportJSON(rep *pipeline.Report) ReportJSON {
	out := ReportJSON{
		DocumentID:   rep.DocumentID,
		Name:         rep.Name,
		Kind:         string(rep.Kind),
		Transactions: make([]TransactionJSON, 0, len(rep.Table)),
		InvalidRows:  rep.InvalidRows,
		Skipped:      rep.SkippedUnits,
		HeaderRows:   rep.HeaderRows,
		Matcher:      rep.Matcher,
		Rejects:      make([]RejectJSON, 0, len(rep.Rejects)),
		ElapsedMS:    rep.Elapsed.Milliseconds(),
	}
	for _, tx := range rep.Table {
		row := export.MarshalRow(tx)
		t := TransactionJSON{
			Date:        row.Date,
			Description: row.Description,
			Amount:      row.Amount,
			Type:        row.Type,
			Page:        tx.Page,
			Line:        tx.Line,
		}
		if row.Balance != "" {
			t.Balance = &row.Balance
		}
		out.Transactions = append(out.Transactions, t)
	}
	for _, r := range rep.Rejects {
		out.Rejects = append(out.Rejects, RejectJSON(r))
	}
	return out
}

// HandleExtract runs an uploaded statement through the pipeline. The
// multipart field "file" carries the document and the optional field
// "type" overrides detection. Responds with JSON, or CSV for ?format=csv
// or Accept: text/csv.
func (s *Server) HandleExtract(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("multipart field \"file\" is required", err)
	}
	if fh.Size > s.maxBytes {
		return NewTooLargeError(s.maxBytes)
	}

	f, err := fh.Open()
	if err != nil {
		return NewBadRequestError("reading upload", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, s.maxBytes+1))
	if err != nil {
		return NewBadRequestError("reading upload", err)
	}
	if int64(len(data)) > s.maxBytes {
		return NewTooLargeError(s.maxBytes)
	}

	doc, err := s.acquirer.NewDocument(fh.Filename, data, c.FormValue("type"))
	if err != nil {
		return documentError(err)
	}
	log := s.logger.With("document_id", doc.ID, "name", doc.Name, "kind", doc.Kind)

	rep, err := s.pipeline.Run(c.Request().Context(), doc)
	if err != nil {
		log.Warn("extraction failed", "error", err)
		return documentError(err)
	}

	h := c.Response().Header()
	h.Set("X-Document-ID", rep.DocumentID)
	h.Set("X-Invalid-Rows", strconv.Itoa(rep.InvalidRows))
	h.Set("X-Skipped-Units", strconv.Itoa(rep.SkippedUnits))

	if wantsCSV(c) {
		out, err := export.CSV(rep.Table)
		if err != nil {
			return NewInternalError("exporting CSV", err)
		}
		h.Set(echo.HeaderContentDisposition, `attachment; filename="`+export.FileName(doc.Name)+`"`)
		return c.Blob(http.StatusOK, "text/csv; charset=utf-8", out)
	}
	return c.JSON(http.StatusOK, NewReportJSON(rep))
}

func wantsCSV(c echo.Context) bool {
	if f := c.QueryParam("format"); f != "" {
		return strings.EqualFold(f, "csv")
	}
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), "text/csv")
}
