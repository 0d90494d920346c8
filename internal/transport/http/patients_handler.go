package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "carebase/internal/errors"
	"carebase/internal/exporter"
	"carebase/internal/services"
	"carebase/internal/store"
)

// PatientsHandler handles patient and family-service listing requests
type PatientsHandler struct {
	service  *services.StatsService
	exporter *exporter.Exporter
	logger   *slog.Logger
}

// NewPatientsHandler creates a new patients handler
func NewPatientsHandler(service *services.StatsService, exp *exporter.Exporter, logger *slog.Logger) *PatientsHandler {
	return &PatientsHandler{
		service:  service,
		exporter: exp,
		logger:   logger.With(slog.String("handler", "patients")),
	}
}

// Routes sets up the patient routes
func (h *PatientsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListPatients)
	r.Get("/export", h.ExportPatients)
	return r
}

// ServiceRoutes sets up the family-service routes
func (h *PatientsHandler) ServiceRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListServices)
	r.Get("/export", h.ExportServices)
	return r
}

// ListPatients handles GET /api/patients
func (h *PatientsHandler) ListPatients(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	patients, err := h.service.Patients(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "patient listing failed",
			slog.String("error", err.Error()))
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrStorage))
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"total":    len(patients),
		"patients": patients,
	})
}

// ListServices handles GET /api/services
func (h *PatientsHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := store.ServiceFilter{
		PersonID:  r.URL.Query().Get("person_id"),
		YearMonth: r.URL.Query().Get("year_month"),
	}

	records, err := h.service.ServiceRecords(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "service record listing failed",
			slog.String("error", err.Error()))
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrStorage))
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"total":   len(records),
		"records": records,
	})
}

// ExportPatients handles GET /api/patients/export
func (h *PatientsHandler) ExportPatients(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	setWorkbookHeaders(w, fmt.Sprintf("patients-%s.xlsx", time.Now().Format("20060102")))
	if err := h.exporter.WritePatients(ctx, w); err != nil {
		// Headers are already sent; log and abandon the response.
		h.logger.ErrorContext(ctx, "patient export failed",
			slog.String("error", err.Error()))
	}
}

// ExportServices handles GET /api/services/export
func (h *PatientsHandler) ExportServices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := store.ServiceFilter{
		PersonID:  r.URL.Query().Get("person_id"),
		YearMonth: r.URL.Query().Get("year_month"),
	}

	setWorkbookHeaders(w, fmt.Sprintf("family-services-%s.xlsx", time.Now().Format("20060102")))
	if err := h.exporter.WriteFamilyServices(ctx, w, filter); err != nil {
		h.logger.ErrorContext(ctx, "family-service export failed",
			slog.String("error", err.Error()))
	}
}

func setWorkbookHeaders(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
}
