package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsebank-dev/parsebank/internal/acquire"
	"github.com/parsebank-dev/parsebank/internal/config"
	"github.com/parsebank-dev/parsebank/internal/export"
	"github.com/parsebank-dev/parsebank/internal/ocr"
	"github.com/parsebank-dev/parsebank/internal/pipeline"
)

const statement = "Date,Description,Amount,Balance\n" +
	"2024-01-05,Coffee Shop,-4.50,95.50\n" +
	"N/A,Refund,10.00,\n" +
	"2024-01-06,Salary,2500.00,\n"

func newTestServer(t *testing.T, maxBytes int64) *echo.Echo {
	t.Helper()
	reg := prometheus.NewRegistry()
	p := pipeline.New(config.Default(), ocr.None{}, nil)
	p.Metrics = pipeline.NewMetrics(reg)
	return NewServer(Dependencies{
		Pipeline: p,
		Acquirer: acquire.New(maxBytes),
		Gatherer: reg,
		Version:  "test",
	}).Echo()
}

func multipartBody(t *testing.T, name string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if name != "" {
		fw, err := w.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func post(t *testing.T, e *echo.Echo, target, name string, data []byte, fields map[string]string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, name, data, fields)
	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set(echo.HeaderContentType, ct)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr), rec.Body.String())
	return apiErr
}

func TestHealth(t *testing.T) {
	e := newTestServer(t, 0)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","version":"test"}`, rec.Body.String())
}

func TestExtract_JSON(t *testing.T) {
	e := newTestServer(t, 0)
	rec := post(t, e, "/api/statements", "march.csv", []byte(statement), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var rep ReportJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.NotEmpty(t, rep.DocumentID)
	assert.Equal(t, rep.DocumentID, rec.Header().Get("X-Document-ID"))
	assert.Equal(t, "march.csv", rep.Name)
	assert.Equal(t, "csv", rep.Kind)
	assert.Equal(t, 1, rep.InvalidRows)
	assert.Zero(t, rep.Skipped)
	require.Len(t, rep.Transactions, 2)

	first := rep.Transactions[0]
	assert.Equal(t, "2024-01-05", first.Date)
	assert.Equal(t, "Coffee Shop", first.Description)
	assert.Equal(t, "-4.50", first.Amount)
	assert.Equal(t, "debit", first.Type)
	require.NotNil(t, first.Balance)
	assert.Equal(t, "95.50", *first.Balance)
	assert.Equal(t, 2, first.Line)
	assert.Nil(t, rep.Transactions[1].Balance)

	require.Len(t, rep.Rejects, 1)
	assert.Equal(t, "N/A", rep.Rejects[0].Value)
	assert.Equal(t, "date", rep.Rejects[0].Column)
}

func TestExtract_CSV(t *testing.T) {
	e := newTestServer(t, 0)
	for name, tc := range map[string]struct {
		target string
		header map[string]string
	}{
		"query":  {target: "/api/statements?format=csv"},
		"accept": {target: "/api/statements", header: map[string]string{echo.HeaderAccept: "text/csv"}},
	} {
		t.Run(name, func(t *testing.T) {
			rec := post(t, e, tc.target, "march.csv", []byte(statement), nil, tc.header)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			assert.True(t, strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), "text/csv"))
			assert.Equal(t, "1", rec.Header().Get("X-Invalid-Rows"))
			assert.Equal(t, "0", rec.Header().Get("X-Skipped-Units"))
			assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), `filename="march.csv"`)
			assert.Equal(t, export.Header+"\n"+
				"2024-01-05,Coffee Shop,-4.50,debit,95.50\n"+
				"2024-01-06,Salary,2500.00,credit,\n", rec.Body.String())
		})
	}
}

func TestExtract_DeclaredType(t *testing.T) {
	e := newTestServer(t, 0)
	rec := post(t, e, "/api/statements", "upload.bin", []byte(statement), map[string]string{"type": "text/csv"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestExtract_Errors(t *testing.T) {
	tests := []struct {
		name       string
		file       string
		data       []byte
		fields     map[string]string
		maxBytes   int64
		wantStatus int
		wantCode   string
	}{
		{
			name:       "missing file",
			wantStatus: http.StatusBadRequest,
			wantCode:   "BAD_REQUEST",
		},
		{
			name:       "unsupported extension",
			file:       "letter.docx",
			data:       []byte("PK\x03\x04"),
			wantStatus: http.StatusUnsupportedMediaType,
			wantCode:   "UNSUPPORTED_FILE_TYPE",
		},
		{
			name:       "unsupported declared type",
			file:       "statement.csv",
			data:       []byte(statement),
			fields:     map[string]string{"type": "application/msword"},
			wantStatus: http.StatusUnsupportedMediaType,
			wantCode:   "UNSUPPORTED_FILE_TYPE",
		},
		{
			name:       "unreadable pdf",
			file:       "statement.pdf",
			data:       []byte("%PDF-1.4 truncated"),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "UNREADABLE_DOCUMENT",
		},
		{
			name:       "too large",
			file:       "statement.csv",
			data:       bytes.Repeat([]byte("a"), 2048),
			maxBytes:   1024,
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   "PAYLOAD_TOO_LARGE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestServer(t, tt.maxBytes)
			rec := post(t, e, "/api/statements", tt.file, tt.data, tt.fields, nil)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			apiErr := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.NotEmpty(t, apiErr.Message)
		})
	}
}

func TestNotFound(t *testing.T) {
	e := newTestServer(t, 0)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestServer(t, 0)
	post(t, e, "/api/statements", "march.csv", []byte(statement), nil, nil)
	post(t, e, "/api/statements", "letter.pdf", []byte("%PDF-1.4 truncated"), nil, nil)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `parsebank_documents_total{kind="csv",outcome="ok"} 1`)
	assert.Contains(t, body, `parsebank_documents_total{kind="pdf",outcome="unreadable"} 1`)
	assert.Contains(t, body, "parsebank_transactions_total 2")
	assert.Contains(t, body, "parsebank_invalid_rows_total 1")
}
