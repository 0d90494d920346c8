package domain

import (
	"strings"
	"time"
)

// GuardianRole identifies which parent a guardian sub-record describes.
type GuardianRole string

const (
	GuardianFather GuardianRole = "father"
	GuardianMother GuardianRole = "mother"
)

// GuardianInfo holds the contact details of one guardian. Source sheets
// frequently pack all three values into a single cell; any of the fields
// may be empty when the source cell carried fewer parts.
type GuardianInfo struct {
	Role     GuardianRole `json:"role" db:"role"`
	Name     string       `json:"name,omitempty" db:"name"`
	Phone    string       `json:"phone,omitempty" db:"phone"`
	IDNumber string       `json:"id_number,omitempty" db:"id_number"`
}

// IsEmpty reports whether the guardian carries no data at all.
func (g GuardianInfo) IsEmpty() bool {
	return g.Name == "" && g.Phone == "" && g.IDNumber == ""
}

// PatientRecord is the normalized patient row. PersonID is assigned at
// first sight and stays stable across re-imports; BirthDate is nil when
// the source value could not be parsed (the raw text is then preserved
// in BirthDateRaw).
type PatientRecord struct {
	PersonID     string       `json:"person_id" db:"person_id"`
	Name         string       `json:"name" db:"name"`
	Gender       string       `json:"gender,omitempty" db:"gender"`
	BirthDate    *time.Time   `json:"birth_date,omitempty" db:"birth_date"`
	BirthDateRaw string       `json:"birth_date_raw,omitempty" db:"birth_date_raw"`
	Hometown     string       `json:"hometown,omitempty" db:"hometown"`
	HomeAddress  string       `json:"home_address,omitempty" db:"home_address"`
	Father       GuardianInfo `json:"father" db:"-"`
	Mother       GuardianInfo `json:"mother" db:"-"`
	CheckInCount int          `json:"check_in_count,omitempty" db:"-"`
	LatestCheckIn *time.Time  `json:"latest_check_in,omitempty" db:"-"`
	CreatedAt    time.Time    `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at,omitempty" db:"updated_at"`
}

// NaturalKey is the derived identity used to recognize the same person
// across repeated imports, distinct from the generated PersonID.
type NaturalKey struct {
	Name      string     `json:"name"`
	Hometown  string     `json:"hometown"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
}

// NewNaturalKey builds a key with name and hometown canonicalized
// (trimmed, inner whitespace collapsed) so that cosmetic differences
// between sheets do not split one person into two records.
func NewNaturalKey(name, hometown string, birthDate *time.Time) NaturalKey {
	return NaturalKey{
		Name:      canonicalize(name),
		Hometown:  canonicalize(hometown),
		BirthDate: birthDate,
	}
}

// Key returns the natural key of the record.
func (p *PatientRecord) Key() NaturalKey {
	return NewNaturalKey(p.Name, p.Hometown, p.BirthDate)
}

// String renders the key in a stable form usable as a lookup value.
func (k NaturalKey) String() string {
	birth := ""
	if k.BirthDate != nil {
		birth = k.BirthDate.Format("2006-01-02")
	}
	return k.Name + "|" + k.Hometown + "|" + birth
}

func canonicalize(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}

// CheckInRecord is one stay event, foreign-keyed to a patient.
type CheckInRecord struct {
	PersonID    string     `json:"person_id" db:"person_id"`
	CheckInDate *time.Time `json:"check_in_date,omitempty" db:"check_in_date"`
	Attendees   string     `json:"attendees,omitempty" db:"attendees"`
	Details     string     `json:"details,omitempty" db:"details"`
}

// FamilyServiceRecord is one month of family-service activity for a
// patient. YearMonth uses the "2006-01" form and provides the default
// ordering for service queries.
type FamilyServiceRecord struct {
	PersonID      string `json:"person_id" db:"person_id"`
	YearMonth     string `json:"year_month" db:"year_month"`
	ServiceCount  int    `json:"service_count" db:"service_count"`
	ResidenceDays int    `json:"residence_days" db:"residence_days"`
	Notes         string `json:"notes,omitempty" db:"notes"`
}
