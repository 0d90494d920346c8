package domain

// RawSheet is one worksheet as an ordered sequence of rows of cell
// values, 0-indexed. Rows may be ragged; callers must tolerate short
// rows. The caller is responsible for opening the workbook and handing
// this core one sheet at a time.
type RawSheet [][]string

// Cell returns the cell at (row, col), or the empty string when the
// sheet is too short in either dimension.
func (s RawSheet) Cell(row, col int) string {
	if row < 0 || row >= len(s) {
		return ""
	}
	if col < 0 || col >= len(s[row]) {
		return ""
	}
	return s[row][col]
}

// ColumnCount returns the widest row length, which bounds the columns
// the header classifier has to consider.
func (s RawSheet) ColumnCount() int {
	max := 0
	for _, row := range s {
		if len(row) > max {
			max = len(row)
		}
	}
	return max
}
