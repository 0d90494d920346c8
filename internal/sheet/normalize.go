package sheet

import "strings"

// Normalize trims a raw cell value, treating whitespace-only content as
// absent. Full-width spaces common in CJK sheets are trimmed as well.
// Non-string cell types are already stringified by the workbook reader
// using its native formatting, so a malformed cell can only degrade to
// the empty string, never fail the row.
func Normalize(cell string) string {
	return strings.Trim(cell, " \t\r\n 　")
}
