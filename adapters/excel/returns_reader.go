package excel

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"edgeproof/domain/core"
	"edgeproof/domain/series"
	"edgeproof/ports"
)

// ReturnsReader turns a wide returns table into a HypothesisSet. Every
// hypothesis column shares the date index; blank or "NaN"-like cells are
// kept as NaN so that all series have the length of the table.
type ReturnsReader struct {
	config ReaderConfig
	reader *DataReader

	once  sync.Once
	table *Table
	err   error
}

var (
	_ ports.SeriesReader   = (*ReturnsReader)(nil)
	_ ports.TurnoverReader = (*ReturnsReader)(nil)
)

// NewReturnsReader creates a reader over config.FilePath
func NewReturnsReader(config ReaderConfig) *ReturnsReader {
	return &ReturnsReader{config: config, reader: NewDataReader(config)}
}

func (r *ReturnsReader) load(ctx context.Context) (*Table, error) {
	r.once.Do(func() {
		r.table, r.err = r.reader.ReadTable(ctx)
	})
	return r.table, r.err
}

// ReadHypothesisSet implements ports.SeriesReader
func (r *ReturnsReader) ReadHypothesisSet(ctx context.Context) (series.HypothesisSet, error) {
	table, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	dateCol := r.dateColumn(table)
	times, err := r.parseDates(table, dateCol)
	if err != nil {
		return nil, err
	}
	turnoverCol := r.columnIndex(table, r.config.TurnoverColumn)

	set := make(series.HypothesisSet)
	for col, header := range table.Headers {
		if col == dateCol || col == turnoverCol || header == "" {
			continue
		}
		points := make([]series.Point, len(table.Rows))
		for row := range table.Rows {
			v, err := parseValue(table.Cell(row, col))
			if err != nil {
				return nil, core.NewValidationError(
					fmt.Sprintf("%s row %d", header, row+2), err.Error())
			}
			points[row] = series.Point{Time: times[row], Value: v}
		}
		s, err := series.New(core.HypothesisID(header), points)
		if err != nil {
			return nil, err
		}
		if err := set.Add(s); err != nil {
			return nil, err
		}
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("%w: %s has no hypothesis columns", core.ErrInsufficientData, r.config.FilePath)
	}
	return set, nil
}

// ReadTurnover implements ports.TurnoverReader. A table without a turnover
// column yields (nil, nil).
func (r *ReturnsReader) ReadTurnover(ctx context.Context) ([]float64, error) {
	table, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	col := r.columnIndex(table, r.config.TurnoverColumn)
	if col < 0 {
		return nil, nil
	}
	out := make([]float64, len(table.Rows))
	for row := range table.Rows {
		v, err := parseValue(table.Cell(row, col))
		if err != nil {
			return nil, core.NewValidationError(
				fmt.Sprintf("%s row %d", table.Headers[col], row+2), err.Error())
		}
		out[row] = v
	}
	return out, nil
}

func (r *ReturnsReader) columnIndex(table *Table, name string) int {
	if name == "" {
		return -1
	}
	for i, h := range table.Headers {
		if strings.EqualFold(h, name) {
			return i
		}
	}
	return -1
}

func (r *ReturnsReader) dateColumn(table *Table) int {
	if i := r.columnIndex(table, r.config.DateColumn); i >= 0 {
		return i
	}
	return 0
}

func (r *ReturnsReader) parseDates(table *Table, col int) ([]time.Time, error) {
	times := make([]time.Time, len(table.Rows))
	for row := range table.Rows {
		cell := table.Cell(row, col)
		t, err := parseDate(cell, r.config.DateLayouts)
		if err != nil {
			return nil, core.NewValidationError(fmt.Sprintf("date row %d", row+2), err.Error())
		}
		times[row] = t
	}
	return times, nil
}

func parseDate(cell string, layouts []string) (time.Time, error) {
	if cell == "" {
		return time.Time{}, fmt.Errorf("missing date")
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, cell); err == nil {
			return t.UTC(), nil
		}
	}
	if serial, err := strconv.ParseFloat(cell, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, err
		}
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", cell)
}

// parseValue reads a numeric cell; blanks and NA markers become NaN and a
// trailing percent sign scales by 1/100
func parseValue(cell string) (float64, error) {
	switch strings.ToLower(cell) {
	case "", "nan", "na", "n/a", "#n/a", "null":
		return math.NaN(), nil
	}
	scale := 1.0
	if strings.HasSuffix(cell, "%") {
		cell = strings.TrimSpace(strings.TrimSuffix(cell, "%"))
		scale = 0.01
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(cell, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", cell)
	}
	return v * scale, nil
}
