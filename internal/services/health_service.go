package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"carebase/internal/store"
)

// HealthService provides health check functionality
type HealthService struct {
	version   string
	store     store.Store
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthService creates a new health service with injected dependencies
func NewHealthService(version string, st store.Store, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}

	return &HealthService{
		version:   version,
		store:     st,
		startTime: time.Now(),
		logger:    logger,
	}
}

// Check performs the full health check. The record store is probed
// with a cheap read; a failing store degrades status without failing
// the endpoint itself.
func (s *HealthService) Check(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   s.version,
		Runtime: map[string]interface{}{
			"go_version":     runtime.Version(),
			"os":             runtime.GOOS,
			"arch":           runtime.GOARCH,
			"goroutines":     runtime.NumGoroutine(),
			"uptime_seconds": time.Since(s.startTime).Seconds(),
		},
		Services: map[string]interface{}{},
	}

	storeHealth := ServiceHealth{Status: "healthy"}
	if _, err := s.store.QueryPatients(ctx); err != nil {
		storeHealth = ServiceHealth{Status: "unhealthy", Message: err.Error()}
		status.Status = "degraded"
		s.logger.WarnContext(ctx, "record store health probe failed",
			slog.String("error", err.Error()))
	}
	status.Services["store"] = storeHealth

	return status
}
