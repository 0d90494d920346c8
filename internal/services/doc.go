// Package services implements the business logic layer of the carebase
// application. It provides a clean separation between HTTP handlers and
// data access, ensuring that business rules are centralized and
// testable.
//
// # Architecture
//
// Services follow these architectural principles:
//
//	1. Interface-driven design for testability
//	2. Context propagation for cancellation and tracing
//	3. Dependency injection for loose coupling
//	4. Domain-focused methods that encapsulate business rules
//
// # Available Services
//
// The package provides these core services:
//
//	- ImportService: Classifies and ingests uploaded spreadsheets
//	- StatsService: Computes statistics and lists records
//	- HealthService: Provides system health checks
//
// # Error Handling
//
// Services return domain-specific errors that handlers can transform:
//
//	- Parsing errors for sheets with no recognizable headers
//	- Validation errors for invalid input
//	- Storage errors for record store failures
//
// # Testing
//
// Services are tested against the in-memory store implementation, so
// no database or filesystem fixtures are needed:
//
//	st := store.NewMemoryStore()
//	svc := NewImportService(st, logger)
//	summary, err := svc.ImportPatients(ctx, sheet)
package services
