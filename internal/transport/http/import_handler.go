package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "carebase/internal/errors"
	"carebase/internal/services"
	"carebase/internal/sheet"
	"carebase/pkg/contracts/domain"
)

// ingestFunc is the shape shared by patient and family-service imports.
type ingestFunc func(ctx context.Context, raw domain.RawSheet) (*services.ImportSummary, error)

// ImportHandler handles spreadsheet upload and ingestion requests
type ImportHandler struct {
	service        *services.ImportService
	logger         *slog.Logger
	maxUploadBytes int64
}

// NewImportHandler creates a new import handler
func NewImportHandler(service *services.ImportService, maxUploadBytes int64, logger *slog.Logger) *ImportHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 32 << 20
	}
	return &ImportHandler{
		service:        service,
		logger:         logger.With(slog.String("handler", "import")),
		maxUploadBytes: maxUploadBytes,
	}
}

// Routes sets up the import routes
func (h *ImportHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/patients", h.ImportPatients)
	r.Post("/family-services", h.ImportFamilyServices)
	return r
}

// ImportPatients handles POST /api/import/patients
func (h *ImportHandler) ImportPatients(w http.ResponseWriter, r *http.Request) {
	h.handleUpload(w, r, "patients", h.service.ImportPatients)
}

// ImportFamilyServices handles POST /api/import/family-services
func (h *ImportHandler) ImportFamilyServices(w http.ResponseWriter, r *http.Request) {
	h.handleUpload(w, r, "family_services", h.service.ImportFamilyServices)
}

func (h *ImportHandler) handleUpload(w http.ResponseWriter, r *http.Request, kind string, ingest ingestFunc) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.logger.WarnContext(ctx, "multipart parse failed",
			slog.String("error", err.Error()))
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.InvalidRequestWithError(err)))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(
			apierrors.NewWithDetails(http.StatusBadRequest, "MISSING_PARAMETER",
				"multipart field 'file' is required", err.Error())))
		return
	}
	defer file.Close()

	// Optional sheet name; empty selects the first sheet.
	sheetName := r.FormValue("sheet")

	raw, err := sheet.ReadWorkbookSheet(file, sheetName)
	if err != nil {
		h.logger.WarnContext(ctx, "workbook read failed",
			slog.String("filename", header.Filename),
			slog.String("error", err.Error()))
		render.Render(w, r, apierrors.NewErrorResponse(
			apierrors.NewWithDetails(http.StatusUnprocessableEntity, "WORKBOOK_UNREADABLE",
				"uploaded file is not a readable workbook", err.Error())))
		return
	}

	summary, err := ingest(ctx, raw)
	if err != nil {
		h.renderIngestError(w, r, kind, err)
		return
	}

	recordImport(kind, summary)

	h.logger.InfoContext(ctx, "sheet import completed",
		slog.String("kind", kind),
		slog.String("filename", header.Filename),
		slog.Int("created", summary.Created),
		slog.Int("updated", summary.Updated),
		slog.Int("errored", summary.Errored))

	render.JSON(w, r, summary)
}

func (h *ImportHandler) renderIngestError(w http.ResponseWriter, r *http.Request, kind string, err error) {
	h.logger.ErrorContext(r.Context(), "sheet import failed",
		slog.String("kind", kind),
		slog.String("error", err.Error()))

	if appErr, ok := err.(*apierrors.AppError); ok {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.FromAppError(appErr)))
		return
	}
	render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrInternalServer))
}
