package excel

// Table is the raw content of one sheet: a header row and string cells.
// Rows may be shorter than Headers when trailing cells are blank.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Cell returns the trimmed cell at (row, col), or "" past the end of a short row
func (t *Table) Cell(row, col int) string {
	if row >= len(t.Rows) || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}
