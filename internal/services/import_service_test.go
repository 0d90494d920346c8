package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "carebase/internal/errors"
	"carebase/internal/store"
	"carebase/pkg/contracts/domain"
)

func patientSheet(rows ...[]string) domain.RawSheet {
	s := domain.RawSheet{
		{"患者花名册"},
		{"姓名", "性别", "出生日期", "籍贯", "父亲姓名、电话、身份证号", "入住时间", "入住人"},
		{},
	}
	for _, r := range rows {
		s = append(s, r)
	}
	return s
}

func serviceSheet(rows ...[]string) domain.RawSheet {
	s := domain.RawSheet{
		{"家庭服务记录"},
		{"姓名", "籍贯", "年月", "服务总人次", "入住天数"},
		{},
	}
	for _, r := range rows {
		s = append(s, r)
	}
	return s
}

func TestImportPatientsCreatesRecords(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := NewImportService(st, nil)

	summary, err := svc.ImportPatients(ctx, patientSheet(
		[]string{"张三", "男", "2015-03-07", "云南昆明", "张大、13800138000", "2024-01-15", "张大"},
		[]string{"李四", "女", "2010.5.1", "四川成都", "", "", ""},
	))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Created)
	assert.Zero(t, summary.Updated)
	assert.Zero(t, summary.Errored)

	patients, err := st.QueryPatients(ctx)
	require.NoError(t, err)
	require.Len(t, patients, 2)

	// The row with a check-in column got one attached.
	var withCheckIn *domain.PatientRecord
	for i := range patients {
		if patients[i].Name == "张三" {
			withCheckIn = &patients[i]
		}
	}
	require.NotNil(t, withCheckIn)
	assert.Equal(t, 1, withCheckIn.CheckInCount)
	require.NotNil(t, withCheckIn.LatestCheckIn)
}

// Importing the same sheet twice must not duplicate anyone; the second
// pass reports updates instead of creations.
func TestImportPatientsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := NewImportService(st, nil)

	raw := patientSheet(
		[]string{"张三", "男", "2015-03-07", "云南昆明", "", "", ""},
	)

	first, err := svc.ImportPatients(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)

	second, err := svc.ImportPatients(ctx, raw)
	require.NoError(t, err)
	assert.Zero(t, second.Created)
	assert.Equal(t, 1, second.Updated)

	patients, err := st.QueryPatients(ctx)
	require.NoError(t, err)
	assert.Len(t, patients, 1)
}

func TestImportPatientsRejectsUnrecognizableSheet(t *testing.T) {
	svc := NewImportService(store.NewMemoryStore(), nil)

	_, err := svc.ImportPatients(context.Background(), domain.RawSheet{
		{"随便什么", "别的东西"},
		{"1", "2"},
	})
	require.Error(t, err)

	var appErr *apierrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apierrors.ErrTypeParsing, appErr.Type)
}

func TestImportPatientsCollectsRowErrors(t *testing.T) {
	svc := NewImportService(store.NewMemoryStore(), nil)

	summary, err := svc.ImportPatients(context.Background(), patientSheet(
		[]string{"", "男", "2015-01-01", "", "", "", ""},
		[]string{"", "", "", "", "", "", ""},
		[]string{"钱七", "", "", "", "", "", ""},
	))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 1, summary.Errored)
	assert.Equal(t, 1, summary.Skipped, "blank row is reported as skipped")
	require.Len(t, summary.Errors, 1)
}

// A sheet with no rows, or only blank cells, is an empty import rather
// than a header classification failure.
func TestImportPatientsEmptySheet(t *testing.T) {
	svc := NewImportService(store.NewMemoryStore(), nil)

	for _, raw := range []domain.RawSheet{
		{},
		{{"", ""}, {"　", " "}},
	} {
		summary, err := svc.ImportPatients(context.Background(), raw)
		require.NoError(t, err)
		assert.Zero(t, summary.Created)
		assert.Zero(t, summary.Updated)
		assert.Zero(t, summary.Errored)
		assert.Empty(t, summary.Errors)
	}
}

func TestImportFamilyServicesEmptySheet(t *testing.T) {
	svc := NewImportService(store.NewMemoryStore(), nil)

	summary, err := svc.ImportFamilyServices(context.Background(), domain.RawSheet{})
	require.NoError(t, err)
	assert.Zero(t, summary.Created)
	assert.Empty(t, summary.Errors)
}

func TestImportFamilyServicesCreatesUnknownPatients(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := NewImportService(st, nil)

	summary, err := svc.ImportFamilyServices(ctx, serviceSheet(
		[]string{"张三", "云南昆明", "2024.3", "12", "5"},
	))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Created)
	assert.NotEmpty(t, summary.Warnings, "unknown patient creation is surfaced")

	patients, err := st.QueryPatients(ctx)
	require.NoError(t, err)
	require.Len(t, patients, 1)

	records, err := st.QueryServiceRecords(ctx, store.ServiceFilter{PersonID: patients[0].PersonID})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "2024-03", records[0].YearMonth)
	assert.Equal(t, 12, records[0].ServiceCount)
}

func TestImportFamilyServicesLinksExistingPatient(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	existing, _, err := st.UpsertPatient(ctx, domain.PatientRecord{Name: "张三", Hometown: "云南昆明"})
	require.NoError(t, err)

	svc := NewImportService(st, nil)
	summary, err := svc.ImportFamilyServices(ctx, serviceSheet(
		[]string{"张三", "云南昆明", "2024-03", "3", ""},
	))
	require.NoError(t, err)

	assert.Zero(t, summary.Created)
	assert.Equal(t, 1, summary.Updated)
	assert.Empty(t, summary.Warnings)

	records, err := st.QueryServiceRecords(ctx, store.ServiceFilter{PersonID: existing.PersonID})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestImportProgressEventsInOrder(t *testing.T) {
	var stages []string
	svc := NewImportService(store.NewMemoryStore(), nil, WithProgress(func(ev ProgressEvent) {
		stages = append(stages, ev.Stage)
	}))

	_, err := svc.ImportPatients(context.Background(), patientSheet(
		[]string{"张三", "男", "", "", "", "", ""},
		[]string{"李四", "女", "", "", "", "", ""},
	))
	require.NoError(t, err)

	require.NotEmpty(t, stages)
	assert.Equal(t, "classified", stages[0])
	assert.Equal(t, "done", stages[len(stages)-1])
	assert.Contains(t, stages, "ingesting")
}
