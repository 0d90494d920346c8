package services

import (
	"context"
	"log/slog"
	"time"

	"carebase/internal/stats"
	"carebase/internal/store"
	"carebase/pkg/contracts/domain"
)

// StatsService exposes aggregated statistics and record listings. All
// operations are read-only over the record store.
type StatsService struct {
	engine *stats.Engine
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewStatsService creates a stats service with a specific logger
func NewStatsService(st store.Store, logger *slog.Logger) *StatsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsService{
		engine: stats.NewEngine(st, logger, nil),
		store:  st,
		logger: logger,
		now:    time.Now,
	}
}

// Statistics computes the full statistics view. A zero reference date
// selects the current time, fixed once for the whole computation.
func (s *StatsService) Statistics(ctx context.Context, referenceDate time.Time) (*domain.Statistics, error) {
	if referenceDate.IsZero() {
		referenceDate = s.now()
	}
	return s.engine.Compute(ctx, referenceDate)
}

// Patients lists all patients, newest check-in first.
func (s *StatsService) Patients(ctx context.Context) ([]domain.PatientRecord, error) {
	return s.store.QueryPatients(ctx)
}

// ServiceRecords lists family-service rows matching the filter.
func (s *StatsService) ServiceRecords(ctx context.Context, filter store.ServiceFilter) ([]domain.FamilyServiceRecord, error) {
	return s.store.QueryServiceRecords(ctx, filter)
}
