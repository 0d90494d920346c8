// Package store provides the record store consumed by ingestion and
// aggregation. Both implementations guarantee the same contract: upsert
// by natural key is atomic (one logical read-then-write per key), so
// two rows resolving to the same new person can never both create a
// record.
package store

import (
	"context"

	"carebase/pkg/contracts/domain"
)

// ServiceFilter narrows family-service queries. Zero values match all.
type ServiceFilter struct {
	PersonID  string
	YearMonth string
}

// Store is the persistence collaborator interface. The aggregation
// engine is a read-only consumer; records are mutated only by ingestion
// upserts.
type Store interface {
	// FindByNaturalKey returns the patient matching the key exactly,
	// or nil when none exists.
	FindByNaturalKey(ctx context.Context, key domain.NaturalKey) (*domain.PatientRecord, error)

	// UpsertPatient resolves the incoming record's identity and either
	// merges it into the existing record (fill-forward: a blank
	// incoming value never overwrites a stored one) or creates a new
	// record with a fresh PersonID. The boolean reports creation.
	UpsertPatient(ctx context.Context, incoming domain.PatientRecord) (*domain.PatientRecord, bool, error)

	// AddCheckIn appends a check-in event for an existing patient.
	AddCheckIn(ctx context.Context, rec domain.CheckInRecord) error

	// AddServiceRecord stores one month of family-service activity,
	// replacing a previous row for the same patient and month.
	AddServiceRecord(ctx context.Context, rec domain.FamilyServiceRecord) error

	// QueryPatients returns all patients, newest check-in first, with
	// check-in counts populated.
	QueryPatients(ctx context.Context) ([]domain.PatientRecord, error)

	// QueryServiceRecords returns family-service rows matching the
	// filter, newest month first.
	QueryServiceRecords(ctx context.Context, filter ServiceFilter) ([]domain.FamilyServiceRecord, error)

	Close() error
}

// MergeFillForward merges incoming values into an existing record.
// Only blank stored fields are filled; a previously known value is
// never overwritten by an empty one. Returns whether anything changed.
func MergeFillForward(existing *domain.PatientRecord, incoming domain.PatientRecord) bool {
	changed := false

	fill := func(dst *string, src string) {
		if *dst == "" && src != "" {
			*dst = src
			changed = true
		}
	}

	fill(&existing.Gender, incoming.Gender)
	fill(&existing.Hometown, incoming.Hometown)
	fill(&existing.HomeAddress, incoming.HomeAddress)
	fill(&existing.BirthDateRaw, incoming.BirthDateRaw)

	if existing.BirthDate == nil && incoming.BirthDate != nil {
		d := *incoming.BirthDate
		existing.BirthDate = &d
		changed = true
	}

	mergeGuardian(&existing.Father, incoming.Father, &changed)
	mergeGuardian(&existing.Mother, incoming.Mother, &changed)

	return changed
}

func mergeGuardian(dst *domain.GuardianInfo, src domain.GuardianInfo, changed *bool) {
	if dst.Role == "" {
		dst.Role = src.Role
	}
	fill := func(d *string, s string) {
		if *d == "" && s != "" {
			*d = s
			*changed = true
		}
	}
	fill(&dst.Name, src.Name)
	fill(&dst.Phone, src.Phone)
	fill(&dst.IDNumber, src.IDNumber)
}
