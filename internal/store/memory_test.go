package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carebase/pkg/contracts/domain"
)

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestUpsertPatientCreatesThenMerges(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	first, created, err := s.UpsertPatient(ctx, domain.PatientRecord{
		Name:     "张三",
		Hometown: "云南昆明",
	})
	require.NoError(t, err)
	require.True(t, created)
	require.NotEmpty(t, first.PersonID)

	// Same natural key with more detail merges instead of duplicating.
	second, created, err := s.UpsertPatient(ctx, domain.PatientRecord{
		Name:      "张三",
		Hometown:  "云南昆明",
		Gender:    "男",
		BirthDate: datePtr(2015, time.March, 7),
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.PersonID, second.PersonID)
	assert.Equal(t, "男", second.Gender)
	require.NotNil(t, second.BirthDate)

	patients, err := s.QueryPatients(ctx)
	require.NoError(t, err)
	assert.Len(t, patients, 1)
}

func TestUpsertPatientFillForwardNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, _, err := s.UpsertPatient(ctx, domain.PatientRecord{
		Name:     "张三",
		Hometown: "云南昆明",
		Gender:   "男",
	})
	require.NoError(t, err)

	// A later import with a conflicting gender must not win.
	rec, created, err := s.UpsertPatient(ctx, domain.PatientRecord{
		Name:     "张三",
		Hometown: "云南昆明",
		Gender:   "女",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "男", rec.Gender)
}

// A record first imported without a birth date is found again once a
// later sheet supplies one, completing the record instead of creating a
// second person.
func TestUpsertPatientDateLessFallback(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	first, _, err := s.UpsertPatient(ctx, domain.PatientRecord{
		Name:     "张三",
		Hometown: "云南昆明",
	})
	require.NoError(t, err)

	completed, created, err := s.UpsertPatient(ctx, domain.PatientRecord{
		Name:      "张三",
		Hometown:  "云南昆明",
		BirthDate: datePtr(2015, time.March, 7),
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.PersonID, completed.PersonID)
	require.NotNil(t, completed.BirthDate)

	// Reachable under the completed key as well.
	found, err := s.FindByNaturalKey(ctx, completed.Key())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, first.PersonID, found.PersonID)
}

// Completing a record's birth date must not strand later date-less
// imports of the same person on a second record.
func TestUpsertPatientDateLessAfterCompletion(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	first, _, err := s.UpsertPatient(ctx, domain.PatientRecord{
		Name:     "张三",
		Hometown: "云南昆明",
	})
	require.NoError(t, err)

	_, created, err := s.UpsertPatient(ctx, domain.PatientRecord{
		Name:      "张三",
		Hometown:  "云南昆明",
		BirthDate: datePtr(2015, time.March, 7),
	})
	require.NoError(t, err)
	require.False(t, created)

	again, created, err := s.UpsertPatient(ctx, domain.PatientRecord{
		Name:     "张三",
		Hometown: "云南昆明",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.PersonID, again.PersonID)

	patients, err := s.QueryPatients(ctx)
	require.NoError(t, err)
	assert.Len(t, patients, 1)
}

func TestUpsertPatientDateLessMatchesDatedRecord(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	first, _, err := s.UpsertPatient(ctx, domain.PatientRecord{
		Name:      "张三",
		Hometown:  "云南昆明",
		BirthDate: datePtr(2015, time.March, 7),
	})
	require.NoError(t, err)

	merged, created, err := s.UpsertPatient(ctx, domain.PatientRecord{
		Name:     "张三",
		Hometown: "云南昆明",
		Gender:   "男",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.PersonID, merged.PersonID)
	require.NotNil(t, merged.BirthDate)
	assert.Equal(t, "男", merged.Gender)
}

func TestDifferentNaturalKeysStayDistinct(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, created, err := s.UpsertPatient(ctx, domain.PatientRecord{Name: "张三", Hometown: "云南昆明"})
	require.NoError(t, err)
	require.True(t, created)

	_, created, err = s.UpsertPatient(ctx, domain.PatientRecord{Name: "张三", Hometown: "四川成都"})
	require.NoError(t, err)
	assert.True(t, created, "same name, different hometown is a different person")
}

func TestQueryPatientsCheckInOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	a, _, err := s.UpsertPatient(ctx, domain.PatientRecord{Name: "甲", Hometown: "A"})
	require.NoError(t, err)
	b, _, err := s.UpsertPatient(ctx, domain.PatientRecord{Name: "乙", Hometown: "B"})
	require.NoError(t, err)

	require.NoError(t, s.AddCheckIn(ctx, domain.CheckInRecord{PersonID: a.PersonID, CheckInDate: datePtr(2024, time.January, 1)}))
	require.NoError(t, s.AddCheckIn(ctx, domain.CheckInRecord{PersonID: b.PersonID, CheckInDate: datePtr(2024, time.June, 1)}))
	require.NoError(t, s.AddCheckIn(ctx, domain.CheckInRecord{PersonID: b.PersonID, CheckInDate: datePtr(2024, time.March, 1)}))

	patients, err := s.QueryPatients(ctx)
	require.NoError(t, err)
	require.Len(t, patients, 2)

	assert.Equal(t, b.PersonID, patients[0].PersonID, "latest check-in first")
	assert.Equal(t, 2, patients[0].CheckInCount)
	require.NotNil(t, patients[0].LatestCheckIn)
	assert.Equal(t, time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC), *patients[0].LatestCheckIn)
	assert.Equal(t, 1, patients[1].CheckInCount)
}

func TestAddServiceRecordReplacesSameMonth(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	p, _, err := s.UpsertPatient(ctx, domain.PatientRecord{Name: "张三", Hometown: "A"})
	require.NoError(t, err)

	require.NoError(t, s.AddServiceRecord(ctx, domain.FamilyServiceRecord{
		PersonID: p.PersonID, YearMonth: "2024-03", ServiceCount: 3,
	}))
	require.NoError(t, s.AddServiceRecord(ctx, domain.FamilyServiceRecord{
		PersonID: p.PersonID, YearMonth: "2024-03", ServiceCount: 7,
	}))
	require.NoError(t, s.AddServiceRecord(ctx, domain.FamilyServiceRecord{
		PersonID: p.PersonID, YearMonth: "2024-04", ServiceCount: 1,
	}))

	records, err := s.QueryServiceRecords(ctx, ServiceFilter{PersonID: p.PersonID})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2024-04", records[0].YearMonth, "newest month first")
	assert.Equal(t, 7, records[1].ServiceCount, "same month row replaced")
}
