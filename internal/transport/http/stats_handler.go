package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "carebase/internal/errors"
	"carebase/internal/services"
)

// StatsHandler handles statistics HTTP requests
type StatsHandler struct {
	service *services.StatsService
	logger  *slog.Logger
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(service *services.StatsService, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "stats")),
	}
}

// Routes sets up the stats routes
func (h *StatsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetStatistics)
	return r
}

// GetStatistics handles GET /api/stats. The optional date query fixes
// the reference date for age computation; it defaults to today.
func (h *StatsHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var referenceDate time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			render.Render(w, r, apierrors.NewErrorResponse(
				apierrors.NewWithDetails(http.StatusBadRequest, "INVALID_DATE",
					"date must be formatted YYYY-MM-DD", raw)))
			return
		}
		referenceDate = d
	}

	stats, err := h.service.Statistics(ctx, referenceDate)
	if err != nil {
		h.logger.ErrorContext(ctx, "statistics computation failed",
			slog.String("error", err.Error()))
		if appErr, ok := err.(*apierrors.AppError); ok {
			render.Render(w, r, apierrors.NewErrorResponse(apierrors.FromAppError(appErr)))
			return
		}
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrInternalServer))
		return
	}

	statsComputedTotal.Inc()
	render.JSON(w, r, stats)
}
