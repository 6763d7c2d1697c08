package excel

// ReaderConfig describes the layout of a wide returns table: one date
// column, an optional turnover column, and one column per hypothesis.
type ReaderConfig struct {
	FilePath string `json:"file_path" yaml:"file_path"`
	// Sheet defaults to the first sheet of an xlsx workbook
	Sheet string `json:"sheet" yaml:"sheet"`
	// DateColumn falls back to the first column when no header matches
	DateColumn     string `json:"date_column" yaml:"date_column"`
	TurnoverColumn string `json:"turnover_column" yaml:"turnover_column"`
	// DateLayouts are tried in order before the Excel serial-date fallback
	DateLayouts []string `json:"date_layouts" yaml:"date_layouts"`
}

// DefaultReaderConfig returns the defaults for a file
func DefaultReaderConfig(filePath string) ReaderConfig {
	return ReaderConfig{
		FilePath:       filePath,
		DateColumn:     "date",
		TurnoverColumn: "turnover",
		DateLayouts: []string{
			"2006-01-02",
			"2006-01-02T15:04:05Z07:00",
			"2006-01-02 15:04:05",
			"2006-01-02T15:04:05",
			"2006/01/02",
			"01/02/2006",
			"1/2/2006",
			"01-02-06",
			"1-2-06",
		},
	}
}
