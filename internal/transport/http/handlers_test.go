package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"carebase/internal/exporter"
	"carebase/internal/services"
	"carebase/internal/store"
	"carebase/pkg/contracts/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// patientWorkbook builds an in-memory xlsx with a title row, a header
// row, one blank row and the given data rows, matching the layout the
// extractor expects.
func patientWorkbook(t *testing.T, rows ...[]string) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	all := [][]string{
		{"患者花名册"},
		{"姓名", "性别", "出生日期", "籍贯", "入住时间", "入住人"},
		{},
	}
	all = append(all, rows...)

	for r, row := range all {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sheet1", cell, v))
		}
	}

	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	return &buf
}

func multipartUpload(t *testing.T, filename string, content io.Reader) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.Copy(part, content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler(services.NewHealthService("v1.0.0", store.NewMemoryStore(), nil), testLogger())

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var status services.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "v1.0.0", status.Version)
}

func TestGetStatistics(t *testing.T) {
	st := store.NewMemoryStore()
	birth := time.Date(2015, time.March, 7, 0, 0, 0, 0, time.UTC)
	_, _, err := st.UpsertPatient(context.Background(), domain.PatientRecord{
		Name: "张三", Hometown: "云南昆明", Gender: "男", BirthDate: &birth,
	})
	require.NoError(t, err)

	h := NewStatsHandler(services.NewStatsService(st, testLogger()), testLogger())
	r := chi.NewRouter()
	r.Mount("/stats", h.Routes())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats?date=2025-01-01", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats domain.Statistics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, "2025-01-01", stats.ReferenceDate)
	assert.Equal(t, 1, stats.TotalPatients)
	assert.Equal(t, 1, stats.KnownAges)
}

func TestGetStatisticsRejectsBadDate(t *testing.T) {
	h := NewStatsHandler(services.NewStatsService(store.NewMemoryStore(), testLogger()), testLogger())
	r := chi.NewRouter()
	r.Mount("/stats", h.Routes())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats?date=01-01-2025", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListPatients(t *testing.T) {
	st := store.NewMemoryStore()
	_, _, err := st.UpsertPatient(context.Background(), domain.PatientRecord{Name: "张三", Hometown: "A"})
	require.NoError(t, err)

	h := NewPatientsHandler(services.NewStatsService(st, testLogger()), exporter.NewExporter(st, testLogger()), testLogger())
	r := chi.NewRouter()
	r.Mount("/patients", h.Routes())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/patients", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Total    int                    `json:"total"`
		Patients []domain.PatientRecord `json:"patients"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.Patients, 1)
	assert.Equal(t, "张三", resp.Patients[0].Name)
}

func TestExportPatientsIsWorkbook(t *testing.T) {
	st := store.NewMemoryStore()
	_, _, err := st.UpsertPatient(context.Background(), domain.PatientRecord{Name: "张三", Hometown: "A"})
	require.NoError(t, err)

	h := NewPatientsHandler(services.NewStatsService(st, testLogger()), exporter.NewExporter(st, testLogger()), testLogger())
	r := chi.NewRouter()
	r.Mount("/patients", h.Routes())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/patients/export", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	// The payload must round-trip through the workbook reader.
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("患者名单")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 2)
	assert.Equal(t, "张三", rows[1][0])
}

func newImportRouter(st store.Store) chi.Router {
	svc := services.NewImportService(st, testLogger())
	h := NewImportHandler(svc, 0, testLogger())
	r := chi.NewRouter()
	r.Mount("/import", h.Routes())
	return r
}

func TestImportPatientsUpload(t *testing.T) {
	st := store.NewMemoryStore()
	r := newImportRouter(st)

	wb := patientWorkbook(t,
		[]string{"张三", "男", "2015-03-07", "云南昆明", "2024-01-15", "张大"},
	)
	body, contentType := multipartUpload(t, "patients.xlsx", wb)

	req := httptest.NewRequest(http.MethodPost, "/import/patients", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary services.ImportSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.Created)
	assert.Zero(t, summary.Errored)

	patients, err := st.QueryPatients(context.Background())
	require.NoError(t, err)
	require.Len(t, patients, 1)
	assert.Equal(t, 1, patients[0].CheckInCount)
}

func TestImportPatientsMissingFile(t *testing.T) {
	r := newImportRouter(store.NewMemoryStore())

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	require.NoError(t, w.WriteField("sheet", "whatever"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/import/patients", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "MISSING_PARAMETER")
}

func TestImportPatientsUnreadableWorkbook(t *testing.T) {
	r := newImportRouter(store.NewMemoryStore())

	body, contentType := multipartUpload(t, "garbage.xlsx", bytes.NewReader([]byte("not a workbook")))
	req := httptest.NewRequest(http.MethodPost, "/import/patients", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "WORKBOOK_UNREADABLE")
}
