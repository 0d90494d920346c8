package sheet

import (
	"fmt"
	"sort"

	"carebase/pkg/contracts/domain"
)

// DefaultHeaderDepth is how many physical rows a header may span in
// this domain's source documents.
const DefaultHeaderDepth = 3

// MappingWarning reports a non-fatal classification anomaly, typically
// a later column matching a field already claimed by an earlier one.
type MappingWarning struct {
	Column int    `json:"column"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (w MappingWarning) String() string {
	return fmt.Sprintf("column %d: %s (%s)", w.Column, w.Reason, w.Field)
}

// Mapping is the result of header classification: which column feeds
// which target field. Each field maps to at most one column; unmapped
// columns are simply absent.
type Mapping struct {
	Columns  map[string]int   `json:"columns"`
	Warnings []MappingWarning `json:"warnings,omitempty"`
}

// IsEmpty reports whether classification recognized no columns at all,
// which callers must surface as "headers unrecognized" rather than a
// silent empty import.
func (m Mapping) IsEmpty() bool {
	return len(m.Columns) == 0
}

// Column returns the source column for a field and whether it was mapped.
func (m Mapping) Column(field string) (int, bool) {
	col, ok := m.Columns[field]
	return col, ok
}

// MappedFields returns the mapped field names in column order.
func (m Mapping) MappedFields() []string {
	fields := make([]string, 0, len(m.Columns))
	for f := range m.Columns {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool {
		return m.Columns[fields[i]] < m.Columns[fields[j]]
	})
	return fields
}

// Classify scores each column of the first headerDepth rows against the
// ordered pattern table and produces the column mapping. The cells of a
// column are concatenated across the header rows with no separator, so
// headers split over merged rows still classify. Rows that populate a
// single cell in a wider sheet are title banners and stay out of the
// concatenation. The function is pure: identical header text always
// yields an identical mapping.
//
// When two columns claim the same field the lowest column index wins and
// the later one is reported as a duplicate, never silently overwritten.
func Classify(s domain.RawSheet, headerDepth int, patterns []FieldPattern) Mapping {
	if headerDepth <= 0 {
		headerDepth = DefaultHeaderDepth
	}
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}

	mapping := Mapping{Columns: make(map[string]int)}

	cols := s.ColumnCount()

	titleRow := make([]bool, headerDepth)
	for row := 0; row < headerDepth; row++ {
		nonEmpty := 0
		for col := 0; col < cols; col++ {
			if Normalize(s.Cell(row, col)) != "" {
				nonEmpty++
			}
		}
		titleRow[row] = cols > 1 && nonEmpty == 1
	}

	for col := 0; col < cols; col++ {
		header := ""
		for row := 0; row < headerDepth; row++ {
			if titleRow[row] {
				continue
			}
			header += Normalize(s.Cell(row, col))
		}
		if header == "" {
			continue
		}

		field := matchField(header, patterns)
		if field == "" {
			continue
		}
		if _, claimed := mapping.Columns[field]; claimed {
			mapping.Warnings = append(mapping.Warnings, MappingWarning{
				Column: col,
				Field:  field,
				Reason: "duplicate column for already-claimed field",
			})
			continue
		}
		mapping.Columns[field] = col
	}

	return mapping
}
