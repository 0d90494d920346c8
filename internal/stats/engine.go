// Package stats computes derived statistics over the record store as a
// pipeline of explicitly ordered stages. A stage may only read values
// produced by a strictly earlier stage, never another output of its own
// stage, which rules out the double-counting and null-propagation bugs
// that come from ad-hoc derived-column references.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"carebase/internal/errors"
	"carebase/internal/store"
	"carebase/pkg/contracts/domain"
)

// AgeBucket is one range of the fixed bucket set. Max < 0 marks an
// open-ended upper bound.
type AgeBucket struct {
	Label string
	Min   int
	Max   int
}

// DefaultAgeBuckets returns the standard reporting ranges.
func DefaultAgeBuckets() []AgeBucket {
	return []AgeBucket{
		{Label: "0-6", Min: 0, Max: 6},
		{Label: "7-17", Min: 7, Max: 17},
		{Label: "18-39", Min: 18, Max: 39},
		{Label: "40-59", Min: 40, Max: 59},
		{Label: "60+", Min: 60, Max: -1},
	}
}

// Engine runs the aggregation pipeline. It is a strictly read-only
// consumer of the store.
type Engine struct {
	store   store.Store
	logger  *slog.Logger
	buckets []AgeBucket
}

// NewEngine creates an aggregation engine with the given bucket set;
// an empty set falls back to the defaults.
func NewEngine(s store.Store, logger *slog.Logger, buckets []AgeBucket) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if len(buckets) == 0 {
		buckets = DefaultAgeBuckets()
	}
	return &Engine{store: s, logger: logger, buckets: buckets}
}

// baseRow is the stage-1 projection of one patient. Later stages read
// these rows and never reach back into the store for patient data, so
// every age in a run is computed against the same reference date.
type baseRow struct {
	personID  string
	gender    string
	birthDate *time.Time
}

// ageRow is the stage-2 output: a base row plus its derived age.
// age < 0 encodes an unknown age (null birth date).
type ageRow struct {
	baseRow
	age int
}

// Compute runs all stages in order against the reference date. A zero
// reference date is a caller contract violation and the only condition
// that aborts the computation; an empty store yields zero-valued
// statistics.
func (e *Engine) Compute(ctx context.Context, referenceDate time.Time) (*domain.Statistics, error) {
	if referenceDate.IsZero() {
		return nil, errors.NewValidationError("aggregation reference date must be set")
	}

	// Stage 1: base projection.
	base, err := e.projectPatients(ctx)
	if err != nil {
		return nil, err
	}

	// Stage 2: age derivation from stage-1 rows only.
	aged := deriveAges(base, referenceDate)

	// Stage 3: bucketing and demographic counts over stage-2 rows.
	stats := &domain.Statistics{
		ReferenceDate: referenceDate.Format("2006-01-02"),
		TotalPatients: len(base),
	}
	stats.AgeBuckets, stats.KnownAges = e.bucketCounts(aged)
	stats.GenderCounts = genderCounts(aged)

	// Stage 4: cross-entity service join, keyed by personID, after the
	// patient-level aggregates are final.
	stats.ServiceByMonth, err = e.joinServiceCounts(ctx)
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "statistics computed",
		slog.String("reference_date", stats.ReferenceDate),
		slog.Int("total_patients", stats.TotalPatients),
		slog.Int("known_ages", stats.KnownAges))

	return stats, nil
}

// projectPatients selects the columns later stages need, deduplicated
// by personID. Counting happens against this projection, never against
// a row-per-event join.
func (e *Engine) projectPatients(ctx context.Context) ([]baseRow, error) {
	patients, err := e.store.QueryPatients(ctx)
	if err != nil {
		return nil, errors.NewStorageError("project patients", err)
	}

	seen := make(map[string]bool, len(patients))
	rows := make([]baseRow, 0, len(patients))
	for _, p := range patients {
		if seen[p.PersonID] {
			continue
		}
		seen[p.PersonID] = true
		rows = append(rows, baseRow{
			personID:  p.PersonID,
			gender:    p.Gender,
			birthDate: p.BirthDate,
		})
	}
	return rows, nil
}

// deriveAges computes the integer age of each stage-1 row against the
// fixed reference date. A null birth date yields an unknown age, which
// keeps the row in totals but out of the bucket counts.
func deriveAges(base []baseRow, referenceDate time.Time) []ageRow {
	rows := make([]ageRow, 0, len(base))
	for _, r := range base {
		age := -1
		if r.birthDate != nil && !r.birthDate.After(referenceDate) {
			days := referenceDate.Sub(*r.birthDate).Hours() / 24
			age = int(days / 365.25)
		}
		rows = append(rows, ageRow{baseRow: r, age: age})
	}
	return rows
}

// bucketCounts assigns each known age to exactly one bucket. The
// returned counts sum to the number of known ages, which never exceeds
// the total patient count.
func (e *Engine) bucketCounts(rows []ageRow) ([]domain.AgeBucketCount, int) {
	counts := make([]domain.AgeBucketCount, len(e.buckets))
	for i, b := range e.buckets {
		counts[i] = domain.AgeBucketCount{Range: b.Label}
	}

	known := 0
	for _, r := range rows {
		if r.age < 0 {
			continue
		}
		known++
		for i, b := range e.buckets {
			if r.age >= b.Min && (b.Max < 0 || r.age <= b.Max) {
				counts[i].Count++
				break
			}
		}
	}
	return counts, known
}

func genderCounts(rows []ageRow) map[string]int {
	counts := make(map[string]int)
	for _, r := range rows {
		if r.gender == "" {
			continue
		}
		counts[r.gender]++
	}
	return counts
}

// joinServiceCounts aggregates family-service records per month. A
// patient with no service rows contributes nothing here while still
// counting toward the patient totals of the earlier stages.
func (e *Engine) joinServiceCounts(ctx context.Context) ([]domain.MonthlyServiceCount, error) {
	records, err := e.store.QueryServiceRecords(ctx, store.ServiceFilter{})
	if err != nil {
		return nil, errors.NewStorageError("join service records", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	byMonth := make(map[string]*domain.MonthlyServiceCount)
	for _, rec := range records {
		m, ok := byMonth[rec.YearMonth]
		if !ok {
			m = &domain.MonthlyServiceCount{YearMonth: rec.YearMonth}
			byMonth[rec.YearMonth] = m
		}
		m.RecordCount++
		m.ServiceCount += rec.ServiceCount
		m.ResidenceDays += rec.ResidenceDays
	}

	out := make([]domain.MonthlyServiceCount, 0, len(byMonth))
	for _, m := range byMonth {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].YearMonth < out[j].YearMonth
	})
	return out, nil
}

// BucketFor returns the label of the bucket an age falls into, used by
// callers that drill from a bucket back into the patient list.
func (e *Engine) BucketFor(age int) (string, error) {
	if age < 0 {
		return "", fmt.Errorf("age must be non-negative, got %d", age)
	}
	for _, b := range e.buckets {
		if age >= b.Min && (b.Max < 0 || age <= b.Max) {
			return b.Label, nil
		}
	}
	return "", fmt.Errorf("no bucket covers age %d", age)
}
