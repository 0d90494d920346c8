package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"carebase/pkg/contracts/domain"
)

// MemoryStore is the in-memory Store used for tests and ephemeral
// runs. A single mutex serializes every operation, which satisfies the
// atomic upsert-by-natural-key contract trivially.
type MemoryStore struct {
	mu       sync.Mutex
	patients map[string]*domain.PatientRecord // personID -> record
	keys     map[string]string                // natural key -> personID
	checkIns []domain.CheckInRecord
	services map[string]domain.FamilyServiceRecord // personID+yearMonth -> record
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		patients: make(map[string]*domain.PatientRecord),
		keys:     make(map[string]string),
		services: make(map[string]domain.FamilyServiceRecord),
		now:      time.Now,
	}
}

// FindByNaturalKey implements Store.
func (s *MemoryStore) FindByNaturalKey(_ context.Context, key domain.NaturalKey) (*domain.PatientRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.keys[key.String()]; ok {
		rec := *s.patients[id]
		return &rec, nil
	}
	return nil, nil
}

// UpsertPatient implements Store. Identity resolution tries the exact
// natural key first. On a miss, an incoming record with a birth date
// matches a stored date-less record (completing it), and an incoming
// record without one matches any stored record with the same name and
// hometown, so neither import order duplicates the person.
func (s *MemoryStore) UpsertPatient(_ context.Context, incoming domain.PatientRecord) (*domain.PatientRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := incoming.Key()
	id, ok := s.keys[key.String()]
	if !ok {
		if key.BirthDate != nil {
			fallback := domain.NaturalKey{Name: key.Name, Hometown: key.Hometown}
			id, ok = s.keys[fallback.String()]
		} else {
			id, ok = s.findByNameHometown(key)
		}
	}

	if ok {
		existing := s.patients[id]
		if MergeFillForward(existing, incoming) {
			existing.UpdatedAt = s.now()
		}
		// The merge may have filled the birth date in, making the
		// record reachable under its completed key as well.
		s.keys[existing.Key().String()] = id
		rec := *existing
		return &rec, false, nil
	}

	now := s.now()
	created := incoming
	created.PersonID = uuid.NewString()
	created.CreatedAt = now
	created.UpdatedAt = now
	s.patients[created.PersonID] = &created
	s.keys[key.String()] = created.PersonID

	rec := created
	return &rec, true, nil
}

// findByNameHometown resolves a date-less lookup against any stored
// record with the same canonical name and hometown. The oldest record
// wins so repeated imports converge on one person.
func (s *MemoryStore) findByNameHometown(key domain.NaturalKey) (string, bool) {
	var best *domain.PatientRecord
	for _, p := range s.patients {
		k := p.Key()
		if k.Name != key.Name || k.Hometown != key.Hometown {
			continue
		}
		if best == nil || p.CreatedAt.Before(best.CreatedAt) ||
			(p.CreatedAt.Equal(best.CreatedAt) && p.PersonID < best.PersonID) {
			best = p
		}
	}
	if best == nil {
		return "", false
	}
	return best.PersonID, true
}

// AddCheckIn implements Store.
func (s *MemoryStore) AddCheckIn(_ context.Context, rec domain.CheckInRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkIns = append(s.checkIns, rec)
	return nil
}

// AddServiceRecord implements Store.
func (s *MemoryStore) AddServiceRecord(_ context.Context, rec domain.FamilyServiceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[rec.PersonID+"|"+rec.YearMonth] = rec
	return nil
}

// QueryPatients implements Store.
func (s *MemoryStore) QueryPatients(_ context.Context) ([]domain.PatientRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.PatientRecord, 0, len(s.patients))
	for _, p := range s.patients {
		rec := *p
		for _, ci := range s.checkIns {
			if ci.PersonID != rec.PersonID {
				continue
			}
			rec.CheckInCount++
			if ci.CheckInDate != nil &&
				(rec.LatestCheckIn == nil || ci.CheckInDate.After(*rec.LatestCheckIn)) {
				d := *ci.CheckInDate
				rec.LatestCheckIn = &d
			}
		}
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool {
		li, lj := out[i].LatestCheckIn, out[j].LatestCheckIn
		switch {
		case li != nil && lj != nil && !li.Equal(*lj):
			return li.After(*lj)
		case li != nil && lj == nil:
			return true
		case li == nil && lj != nil:
			return false
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// QueryServiceRecords implements Store.
func (s *MemoryStore) QueryServiceRecords(_ context.Context, filter ServiceFilter) ([]domain.FamilyServiceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.FamilyServiceRecord, 0, len(s.services))
	for _, rec := range s.services {
		if filter.PersonID != "" && rec.PersonID != filter.PersonID {
			continue
		}
		if filter.YearMonth != "" && rec.YearMonth != filter.YearMonth {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].YearMonth != out[j].YearMonth {
			return out[i].YearMonth > out[j].YearMonth
		}
		return out[i].PersonID < out[j].PersonID
	})
	return out, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
