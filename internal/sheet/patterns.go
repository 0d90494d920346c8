package sheet

import "strings"

// Well-known target fields of the normalized schema. Unknown columns
// are deliberately left unmapped and carried through as opaque data.
const (
	FieldSequence       = "sequence"
	FieldName           = "name"
	FieldGender         = "gender"
	FieldBirthDate      = "birthDate"
	FieldHometown       = "hometown"
	FieldEthnicity      = "ethnicity"
	FieldIDNumber       = "idNumber"
	FieldCheckInDate    = "checkInDate"
	FieldAttendees      = "attendees"
	FieldHomeAddress    = "homeAddress"
	FieldFatherInfo     = "fatherInfo"
	FieldMotherInfo     = "motherInfo"
	FieldOtherGuardian  = "otherGuardian"
	FieldEconomicStatus = "economicStatus"
	FieldYearMonth      = "yearMonth"
	FieldServiceCount   = "serviceCount"
	FieldResidenceDays  = "residenceDays"
	FieldNotes          = "notes"
)

// FieldPattern maps header text onto one target field. Exact rules are
// full-phrase matches and take priority over Keywords (substring
// matches) across the whole pattern table, so a composite header like
// "父亲姓名、电话、身份证号" classifies as fatherInfo even though it
// also contains the generic name keyword.
type FieldPattern struct {
	Field    string   `yaml:"field"`
	Exact    []string `yaml:"exact,omitempty"`
	Keywords []string `yaml:"keywords,omitempty"`
}

// DefaultPatterns returns the field pattern table shipped with the
// application, covering the header vocabulary observed in the real
// input corpus. Order matters: earlier patterns win ties, so the
// guardian composites come before the bare name pattern.
func DefaultPatterns() []FieldPattern {
	return []FieldPattern{
		{Field: FieldFatherInfo, Exact: []string{"父亲姓名、电话、身份证号", "父亲信息"}, Keywords: []string{"父亲"}},
		{Field: FieldMotherInfo, Exact: []string{"母亲姓名、电话、身份证号", "母亲信息"}, Keywords: []string{"母亲"}},
		{Field: FieldOtherGuardian, Keywords: []string{"其他监护人"}},
		{Field: FieldIDNumber, Keywords: []string{"身份证"}},
		{Field: FieldName, Keywords: []string{"姓名", "患者"}},
		{Field: FieldGender, Keywords: []string{"性别"}},
		{Field: FieldBirthDate, Keywords: []string{"出生日期", "出生年月", "出生"}},
		{Field: FieldHometown, Keywords: []string{"籍贯"}},
		{Field: FieldEthnicity, Keywords: []string{"民族"}},
		{Field: FieldCheckInDate, Keywords: []string{"入住时间", "入住日期"}},
		{Field: FieldAttendees, Keywords: []string{"入住人"}},
		{Field: FieldHomeAddress, Keywords: []string{"家庭地址", "地址"}},
		{Field: FieldEconomicStatus, Keywords: []string{"家庭经济"}},
		{Field: FieldSequence, Keywords: []string{"序号"}},
		{Field: FieldYearMonth, Keywords: []string{"年月"}},
		{Field: FieldServiceCount, Keywords: []string{"服务总人次", "服务人次"}},
		{Field: FieldResidenceDays, Keywords: []string{"入住天数"}},
		{Field: FieldNotes, Keywords: []string{"备注"}},
	}
}

// matchField classifies one column's concatenated header text. Exact
// rules for every pattern are evaluated before any keyword rule so a
// tighter match is never shadowed by an earlier, looser one; within
// each pass the declared pattern order breaks ties.
func matchField(header string, patterns []FieldPattern) string {
	for _, p := range patterns {
		for _, phrase := range p.Exact {
			if header == phrase {
				return p.Field
			}
		}
	}
	for _, p := range patterns {
		for _, kw := range p.Keywords {
			if kw != "" && strings.Contains(header, kw) {
				return p.Field
			}
		}
	}
	return ""
}
