package sheet

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"carebase/pkg/contracts/domain"
)

// DefaultDataStartRow is the first data row when headers follow the
// usual title + two header rows layout of the source documents.
const DefaultDataStartRow = 3

// RowError is a recoverable, row-scoped extraction failure. One
// malformed row never aborts the rest of the sheet.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// ExtractedPatient is one data row turned into typed records, together
// with the provenance of each populated field (which source column the
// value came from) for diagnostics.
type ExtractedPatient struct {
	Row        int                   `json:"row"`
	Patient    domain.PatientRecord  `json:"patient"`
	CheckIn    *domain.CheckInRecord `json:"check_in,omitempty"`
	Provenance map[string]int        `json:"provenance,omitempty"`
}

// ExtractedService is one family-service row. The patient it belongs to
// is identified by name and hometown; PersonID resolution against the
// store happens during ingestion, not here.
type ExtractedService struct {
	Row        int                        `json:"row"`
	Name       string                     `json:"name"`
	Hometown   string                     `json:"hometown,omitempty"`
	Record     domain.FamilyServiceRecord `json:"record"`
	Provenance map[string]int             `json:"provenance,omitempty"`
}

// ExtractResult aggregates the successfully extracted records with the
// row-scoped failures and non-fatal warnings collected along the way.
// Skipped counts data rows whose mapped fields were all blank.
type ExtractResult struct {
	Patients []ExtractedPatient `json:"patients,omitempty"`
	Services []ExtractedService `json:"services,omitempty"`
	Skipped  int                `json:"skipped,omitempty"`
	Warnings []string           `json:"warnings,omitempty"`
	Errors   []RowError         `json:"errors,omitempty"`
}

var (
	phoneShape = regexp.MustCompile(`^1[3-9]\d{9}$`)
	idShape    = regexp.MustCompile(`^\d{15}(\d{2}[0-9Xx])?$`)
)

// compositeDelims is the recognized in-cell delimiter set for guardian
// composites: full-width and half-width comma, ideographic comma,
// middle-dot variants and slashes.
var compositeDelims = map[rune]bool{
	'、': true, '，': true, ',': true,
	'・': true, '·': true,
	'/': true, '／': true,
	'；': true, ';': true,
}

// ExtractPatients walks the data rows of a classified patient sheet and
// emits normalized patient records. Rows with every mapped field blank
// are skipped; rows lacking a patient name are reported as row errors.
func ExtractPatients(s domain.RawSheet, m Mapping, dataStartRow int) *ExtractResult {
	if dataStartRow <= 0 {
		dataStartRow = DefaultDataStartRow
	}
	res := &ExtractResult{}

	for row := dataStartRow; row < len(s); row++ {
		fields, prov := projectRow(s, m, row)
		if allEmpty(fields) {
			res.Skipped++
			continue
		}

		name := fields[FieldName]
		if name == "" {
			res.Errors = append(res.Errors, RowError{Row: row, Reason: "missing patient name"})
			continue
		}

		patient := domain.PatientRecord{
			Name:        name,
			Gender:      fields[FieldGender],
			Hometown:    fields[FieldHometown],
			HomeAddress: fields[FieldHomeAddress],
		}

		if raw := fields[FieldBirthDate]; raw != "" {
			if d, ok := ParseDate(raw); ok {
				patient.BirthDate = &d
			} else {
				patient.BirthDateRaw = raw
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("row %d: unparsable birth date %q kept as raw text", row, raw))
			}
		}

		patient.Father = splitGuardian(domain.GuardianFather, fields[FieldFatherInfo])
		patient.Mother = splitGuardian(domain.GuardianMother, fields[FieldMotherInfo])

		extracted := ExtractedPatient{Row: row, Patient: patient, Provenance: prov}

		if fields[FieldCheckInDate] != "" || fields[FieldAttendees] != "" {
			checkIn := &domain.CheckInRecord{
				Attendees: fields[FieldAttendees],
			}
			if raw := fields[FieldCheckInDate]; raw != "" {
				if d, ok := ParseDate(raw); ok {
					checkIn.CheckInDate = &d
				} else {
					res.Warnings = append(res.Warnings,
						fmt.Sprintf("row %d: unparsable check-in date %q", row, raw))
				}
			}
			extracted.CheckIn = checkIn
		}

		res.Patients = append(res.Patients, extracted)
	}

	return res
}

// ExtractFamilyServices walks the data rows of a classified
// family-service sheet. A row without a resolvable year-month is a row
// error; count columns degrade to zero rather than failing the row.
func ExtractFamilyServices(s domain.RawSheet, m Mapping, dataStartRow int) *ExtractResult {
	if dataStartRow <= 0 {
		dataStartRow = DefaultDataStartRow
	}
	res := &ExtractResult{}

	for row := dataStartRow; row < len(s); row++ {
		fields, prov := projectRow(s, m, row)
		if allEmpty(fields) {
			res.Skipped++
			continue
		}

		name := fields[FieldName]
		if name == "" {
			res.Errors = append(res.Errors, RowError{Row: row, Reason: "missing patient name"})
			continue
		}

		yearMonth, ok := ParseYearMonth(fields[FieldYearMonth])
		if !ok {
			res.Errors = append(res.Errors, RowError{
				Row:    row,
				Reason: fmt.Sprintf("invalid year-month value %q", fields[FieldYearMonth]),
			})
			continue
		}

		res.Services = append(res.Services, ExtractedService{
			Row:      row,
			Name:     name,
			Hometown: fields[FieldHometown],
			Record: domain.FamilyServiceRecord{
				YearMonth:     yearMonth,
				ServiceCount:  parseCount(fields[FieldServiceCount]),
				ResidenceDays: parseCount(fields[FieldResidenceDays]),
				Notes:         fields[FieldNotes],
			},
			Provenance: prov,
		})
	}

	return res
}

// projectRow builds the field→value dict for one row using the mapping,
// recording which column each non-empty value came from.
func projectRow(s domain.RawSheet, m Mapping, row int) (map[string]string, map[string]int) {
	fields := make(map[string]string, len(m.Columns))
	prov := make(map[string]int)
	for field, col := range m.Columns {
		value := Normalize(s.Cell(row, col))
		fields[field] = value
		if value != "" {
			prov[field] = col
		}
	}
	return fields, prov
}

func allEmpty(fields map[string]string) bool {
	for _, v := range fields {
		if v != "" {
			return false
		}
	}
	return true
}

// splitGuardian splits a composite guardian cell into up to three
// sub-values assigned positionally (name, phone, ID number). Missing
// trailing parts stay empty rather than erroring. Cells that use plain
// whitespace instead of a delimiter fall back to shape recognition of
// phone and ID number tokens.
func splitGuardian(role domain.GuardianRole, raw string) domain.GuardianInfo {
	g := domain.GuardianInfo{Role: role}
	if raw == "" {
		return g
	}

	parts := strings.Split(strings.Map(foldDelim, raw), "\x00")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	if len(parts) == 1 {
		parts = shapeSplit(parts[0])
	}

	if len(parts) > 0 {
		g.Name = parts[0]
	}
	if len(parts) > 1 {
		g.Phone = parts[1]
	}
	if len(parts) > 2 {
		g.IDNumber = parts[2]
	}
	return g
}

func foldDelim(r rune) rune {
	if compositeDelims[r] {
		return '\x00'
	}
	return r
}

// shapeSplit handles whitespace-separated composites by recognizing the
// phone and ID number shapes and treating the first remaining token as
// the name, regardless of order.
func shapeSplit(raw string) []string {
	parts := make([]string, 3)
	for _, token := range strings.Fields(raw) {
		switch {
		case phoneShape.MatchString(token):
			parts[1] = token
		case idShape.MatchString(token):
			parts[2] = token
		case parts[0] == "":
			parts[0] = token
		}
	}
	return parts
}

// parseCount parses a numeric cell the way the source sheets use them:
// thousands separators and unit suffixes are stripped, anything
// unparsable degrades to zero, negatives clamp to zero.
func parseCount(raw string) int {
	if raw == "" {
		return 0
	}
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, raw)
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || f < 0 {
		return 0
	}
	return int(f)
}
