package sheet

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"carebase/pkg/contracts/domain"
)

// OpenWorkbookSheet opens an xlsx workbook file and returns one
// worksheet as a RawSheet. An empty sheetName selects the first sheet.
func OpenWorkbookSheet(path, sheetName string) (domain.RawSheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return sheetRows(f, sheetName)
}

// ReadWorkbookSheet reads an xlsx workbook from a stream, e.g. an HTTP
// upload body, and returns one worksheet as a RawSheet.
func ReadWorkbookSheet(r io.Reader, sheetName string) (domain.RawSheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	defer f.Close()
	return sheetRows(f, sheetName)
}

func sheetRows(f *excelize.File, sheetName string) (domain.RawSheet, error) {
	if sheetName == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheetName = sheets[0]
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheetName, err)
	}
	return domain.RawSheet(rows), nil
}
