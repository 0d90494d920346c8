package services

import (
	"context"
	"log/slog"

	"carebase/internal/errors"
	"carebase/internal/sheet"
	"carebase/internal/store"
	"carebase/pkg/contracts/domain"
)

// ProgressEvent reports ingestion progress. Events are delivered in the
// order they occur; observers must return promptly.
type ProgressEvent struct {
	Stage   string `json:"stage"`
	Row     int    `json:"row,omitempty"`
	Total   int    `json:"total,omitempty"`
	Message string `json:"message,omitempty"`
}

// ProgressFunc observes ingestion progress events.
type ProgressFunc func(ProgressEvent)

// ImportSummary is the outcome of one sheet ingestion. Row errors and
// warnings are collected rather than aborting; a summary with Errored
// rows is still a successful import of the remaining rows.
type ImportSummary struct {
	Created  int                    `json:"created"`
	Updated  int                    `json:"updated"`
	Skipped  int                    `json:"skipped"`
	Errored  int                    `json:"errored"`
	Columns  map[string]int         `json:"columns"`
	Warnings []string               `json:"warnings,omitempty"`
	Errors   []sheet.RowError       `json:"errors,omitempty"`
	Mapping  []sheet.MappingWarning `json:"mapping_warnings,omitempty"`
}

// ImportService ingests classified spreadsheets into the record store.
type ImportService struct {
	store        store.Store
	logger       *slog.Logger
	patterns     []sheet.FieldPattern
	headerDepth  int
	dataStartRow int
	progress     ProgressFunc
}

// ImportOption configures an ImportService.
type ImportOption func(*ImportService)

// WithPatterns overrides the default header classification rules.
func WithPatterns(patterns []sheet.FieldPattern) ImportOption {
	return func(s *ImportService) { s.patterns = patterns }
}

// WithHeaderDepth sets how many leading rows are scanned for headers.
func WithHeaderDepth(depth int) ImportOption {
	return func(s *ImportService) { s.headerDepth = depth }
}

// WithDataStartRow sets the first data row index.
func WithDataStartRow(row int) ImportOption {
	return func(s *ImportService) { s.dataStartRow = row }
}

// WithProgress registers a progress observer.
func WithProgress(fn ProgressFunc) ImportOption {
	return func(s *ImportService) { s.progress = fn }
}

// NewImportService creates an import service with a specific logger
func NewImportService(st store.Store, logger *slog.Logger, opts ...ImportOption) *ImportService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ImportService{
		store:        st,
		logger:       logger,
		patterns:     sheet.DefaultPatterns(),
		headerDepth:  sheet.DefaultHeaderDepth,
		dataStartRow: sheet.DefaultDataStartRow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// notify delivers a progress event to the registered observer.
func (s *ImportService) notify(ev ProgressEvent) {
	if s.progress == nil {
		return
	}
	s.progress(ev)
}

// sheetIsBlank reports whether the sheet has no non-blank cells. Such a
// sheet is a valid empty import, not a header classification failure.
func sheetIsBlank(raw domain.RawSheet) bool {
	for _, row := range raw {
		for _, cell := range row {
			if sheet.Normalize(cell) != "" {
				return false
			}
		}
	}
	return true
}

// ImportPatients classifies and ingests a patient sheet. A sheet with
// no recognizable header columns is rejected as a parsing error; row
// level failures accumulate in the summary instead.
func (s *ImportService) ImportPatients(ctx context.Context, raw domain.RawSheet) (*ImportSummary, error) {
	if sheetIsBlank(raw) {
		s.logger.InfoContext(ctx, "patient sheet is empty, nothing to import")
		return &ImportSummary{Columns: map[string]int{}}, nil
	}

	mapping := sheet.Classify(raw, s.headerDepth, s.patterns)
	if mapping.IsEmpty() {
		return nil, errors.NewParsingError("no recognizable header columns in sheet", nil)
	}

	s.notify(ProgressEvent{Stage: "classified", Message: "header columns mapped"})

	result := sheet.ExtractPatients(raw, mapping, s.dataStartRow)

	summary := &ImportSummary{
		Columns:  mapping.Columns,
		Skipped:  result.Skipped,
		Warnings: result.Warnings,
		Errors:   result.Errors,
		Mapping:  mapping.Warnings,
		Errored:  len(result.Errors),
	}

	total := len(result.Patients)
	for i, ex := range result.Patients {
		rec, created, err := s.store.UpsertPatient(ctx, ex.Patient)
		if err != nil {
			s.logger.ErrorContext(ctx, "patient upsert failed",
				slog.Int("row", ex.Row),
				slog.String("error", err.Error()))
			summary.Errored++
			summary.Errors = append(summary.Errors, sheet.RowError{Row: ex.Row, Reason: err.Error()})
			continue
		}

		if created {
			summary.Created++
		} else {
			summary.Updated++
		}

		if ex.CheckIn != nil {
			checkIn := *ex.CheckIn
			checkIn.PersonID = rec.PersonID
			if err := s.store.AddCheckIn(ctx, checkIn); err != nil {
				summary.Warnings = append(summary.Warnings,
					sheet.RowError{Row: ex.Row, Reason: "check-in not recorded: " + err.Error()}.Error())
			}
		}

		s.notify(ProgressEvent{Stage: "ingesting", Row: i + 1, Total: total})
	}

	s.logger.InfoContext(ctx, "patient sheet imported",
		slog.Int("created", summary.Created),
		slog.Int("updated", summary.Updated),
		slog.Int("errored", summary.Errored),
		slog.Int("columns", len(mapping.Columns)))

	s.notify(ProgressEvent{Stage: "done", Total: total})
	return summary, nil
}

// ImportFamilyServices classifies and ingests a family-service sheet.
// Each row names its patient; unknown patients are created from the
// name and hometown so the service record always has an owner.
func (s *ImportService) ImportFamilyServices(ctx context.Context, raw domain.RawSheet) (*ImportSummary, error) {
	if sheetIsBlank(raw) {
		s.logger.InfoContext(ctx, "family-service sheet is empty, nothing to import")
		return &ImportSummary{Columns: map[string]int{}}, nil
	}

	mapping := sheet.Classify(raw, s.headerDepth, s.patterns)
	if mapping.IsEmpty() {
		return nil, errors.NewParsingError("no recognizable header columns in sheet", nil)
	}

	result := sheet.ExtractFamilyServices(raw, mapping, s.dataStartRow)

	summary := &ImportSummary{
		Columns:  mapping.Columns,
		Skipped:  result.Skipped,
		Warnings: result.Warnings,
		Errors:   result.Errors,
		Mapping:  mapping.Warnings,
		Errored:  len(result.Errors),
	}

	total := len(result.Services)
	for i, ex := range result.Services {
		person, created, err := s.store.UpsertPatient(ctx, domain.PatientRecord{
			Name:     ex.Name,
			Hometown: ex.Hometown,
		})
		if err != nil {
			summary.Errored++
			summary.Errors = append(summary.Errors, sheet.RowError{Row: ex.Row, Reason: err.Error()})
			continue
		}
		if created {
			summary.Warnings = append(summary.Warnings,
				sheet.RowError{Row: ex.Row, Reason: "service row for unknown patient, record created"}.Error())
		}

		rec := ex.Record
		rec.PersonID = person.PersonID
		if err := s.store.AddServiceRecord(ctx, rec); err != nil {
			summary.Errored++
			summary.Errors = append(summary.Errors, sheet.RowError{Row: ex.Row, Reason: err.Error()})
			continue
		}

		if created {
			summary.Created++
		} else {
			summary.Updated++
		}
		s.notify(ProgressEvent{Stage: "ingesting", Row: i + 1, Total: total})
	}

	s.logger.InfoContext(ctx, "family-service sheet imported",
		slog.Int("created", summary.Created),
		slog.Int("updated", summary.Updated),
		slog.Int("errored", summary.Errored))

	s.notify(ProgressEvent{Stage: "done", Total: total})
	return summary, nil
}
