package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carebase/pkg/contracts/domain"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteUpsertRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	first, created, err := s.UpsertPatient(ctx, domain.PatientRecord{
		Name:     "张三",
		Hometown: "云南昆明",
		Father:   domain.GuardianInfo{Role: domain.GuardianFather, Name: "张大", Phone: "13800138000"},
	})
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := s.UpsertPatient(ctx, domain.PatientRecord{
		Name:      "张三",
		Hometown:  "云南昆明",
		Gender:    "男",
		BirthDate: datePtr(2015, time.March, 7),
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.PersonID, second.PersonID)

	patients, err := s.QueryPatients(ctx)
	require.NoError(t, err)
	require.Len(t, patients, 1)
	p := patients[0]
	assert.Equal(t, "男", p.Gender)
	require.NotNil(t, p.BirthDate)
	assert.Equal(t, time.Date(2015, time.March, 7, 0, 0, 0, 0, time.UTC), *p.BirthDate)
	assert.Equal(t, "张大", p.Father.Name)
}

func TestSQLiteFindByNaturalKey(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	created, _, err := s.UpsertPatient(ctx, domain.PatientRecord{
		Name:      "李四",
		Hometown:  "四川成都",
		BirthDate: datePtr(2010, time.May, 1),
	})
	require.NoError(t, err)

	found, err := s.FindByNaturalKey(ctx, created.Key())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.PersonID, found.PersonID)

	missing, err := s.FindByNaturalKey(ctx, domain.NewNaturalKey("无人", "无处", nil))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

// The date-less convergence rule matches the in-memory store: once a
// birth date completes a record, a later date-less import still merges
// into it instead of creating a second person.
func TestSQLiteDateLessAfterCompletion(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

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

func TestSQLiteServiceRecordsAndCheckIns(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	p, _, err := s.UpsertPatient(ctx, domain.PatientRecord{Name: "张三", Hometown: "A"})
	require.NoError(t, err)

	require.NoError(t, s.AddCheckIn(ctx, domain.CheckInRecord{
		PersonID:    p.PersonID,
		CheckInDate: datePtr(2024, time.January, 15),
		Attendees:   "张大",
	}))

	require.NoError(t, s.AddServiceRecord(ctx, domain.FamilyServiceRecord{
		PersonID: p.PersonID, YearMonth: "2024-03", ServiceCount: 3, ResidenceDays: 5,
	}))
	require.NoError(t, s.AddServiceRecord(ctx, domain.FamilyServiceRecord{
		PersonID: p.PersonID, YearMonth: "2024-03", ServiceCount: 9, ResidenceDays: 2,
	}))

	records, err := s.QueryServiceRecords(ctx, ServiceFilter{YearMonth: "2024-03"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 9, records[0].ServiceCount, "same month row replaced")

	patients, err := s.QueryPatients(ctx)
	require.NoError(t, err)
	require.Len(t, patients, 1)
	assert.Equal(t, 1, patients[0].CheckInCount)
	require.NotNil(t, patients[0].LatestCheckIn)
}
