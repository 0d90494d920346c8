// Package exporter renders record store contents as xlsx workbooks for
// download or offline archiving.
package exporter

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"carebase/internal/store"
)

// Exporter writes record store contents to spreadsheet files.
type Exporter struct {
	store  store.Store
	logger *slog.Logger
}

// NewExporter creates an exporter over the given store.
func NewExporter(st store.Store, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{store: st, logger: logger}
}

var patientHeaders = []string{
	"姓名", "性别", "出生日期", "籍贯", "家庭住址",
	"父亲姓名", "父亲电话", "父亲身份证号",
	"母亲姓名", "母亲电话", "母亲身份证号",
	"入住次数", "最近入住日期",
}

var serviceHeaders = []string{
	"姓名", "年月", "服务次数", "居住天数", "备注",
}

// WritePatients streams the full patient list as an xlsx workbook.
func (e *Exporter) WritePatients(ctx context.Context, w io.Writer) error {
	patients, err := e.store.QueryPatients(ctx)
	if err != nil {
		return fmt.Errorf("failed to query patients: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheetName = "患者名单"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")

	if err := writeHeaderRow(f, sheetName, patientHeaders); err != nil {
		return err
	}

	for rowIdx, p := range patients {
		row := rowIdx + 2
		birthDate := p.BirthDateRaw
		if p.BirthDate != nil {
			birthDate = p.BirthDate.Format("2006-01-02")
		}
		latestCheckIn := ""
		if p.LatestCheckIn != nil {
			latestCheckIn = p.LatestCheckIn.Format("2006-01-02")
		}

		values := []interface{}{
			p.Name, p.Gender, birthDate, p.Hometown, p.HomeAddress,
			p.Father.Name, p.Father.Phone, p.Father.IDNumber,
			p.Mother.Name, p.Mother.Phone, p.Mother.IDNumber,
			p.CheckInCount, latestCheckIn,
		}
		if err := writeRow(f, sheetName, row, values); err != nil {
			return err
		}
	}

	for i := range patientHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, col, col, 15)
	}
	f.SetActiveSheet(index)

	e.logger.InfoContext(ctx, "patient export written",
		slog.Int("patients", len(patients)))

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// WriteFamilyServices streams the family-service records matching the
// filter as an xlsx workbook. Patient names are joined in so the export
// is readable without the patient list beside it.
func (e *Exporter) WriteFamilyServices(ctx context.Context, w io.Writer, filter store.ServiceFilter) error {
	records, err := e.store.QueryServiceRecords(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to query service records: %w", err)
	}

	names, err := e.patientNames(ctx)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheetName = "家庭服务记录"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")

	if err := writeHeaderRow(f, sheetName, serviceHeaders); err != nil {
		return err
	}

	for rowIdx, rec := range records {
		row := rowIdx + 2
		values := []interface{}{
			names[rec.PersonID], rec.YearMonth,
			rec.ServiceCount, rec.ResidenceDays, rec.Notes,
		}
		if err := writeRow(f, sheetName, row, values); err != nil {
			return err
		}
	}

	for i := range serviceHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, col, col, 15)
	}
	f.SetActiveSheet(index)

	e.logger.InfoContext(ctx, "family-service export written",
		slog.Int("records", len(records)))

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (e *Exporter) patientNames(ctx context.Context) (map[string]string, error) {
	patients, err := e.store.QueryPatients(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query patients: %w", err)
	}
	names := make(map[string]string, len(patients))
	for _, p := range patients {
		names[p.PersonID] = p.Name
	}
	return names, nil
}

func writeHeaderRow(f *excelize.File, sheetName string, headers []string) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}
	return nil
}

func writeRow(f *excelize.File, sheetName string, row int, values []interface{}) error {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		if err := f.SetCellValue(sheetName, cell, v); err != nil {
			return fmt.Errorf("failed to set cell %s: %w", cell, err)
		}
	}
	return nil
}
