// Package uploads parses spreadsheet exports into tables and caches them with
// an expiry so ad-hoc data is queryable for a bounded time.
package uploads

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// Table is a parsed upload: a header row plus data rows.
type Table struct {
	ID        string     `json:"id"`
	Filename  string     `json:"filename"`
	Headers   []string   `json:"headers"`
	Rows      [][]string `json:"rows"`
	CreatedAt time.Time  `json:"created_at"`
}

// RowCount returns the number of data rows.
func (t Table) RowCount() int { return len(t.Rows) }

// ColumnCount returns the number of header columns.
func (t Table) ColumnCount() int { return len(t.Headers) }

// Info is the listing view of a cached table.
type Info struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	RowCount    int       `json:"row_count"`
	ColumnCount int       `json:"column_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Info returns the listing view of the table.
func (t Table) Info() Info {
	return Info{
		ID:          t.ID,
		Filename:    t.Filename,
		RowCount:    t.RowCount(),
		ColumnCount: t.ColumnCount(),
		CreatedAt:   t.CreatedAt,
	}
}

// ParseTable reads CSV or TSV content into headers and rows. The delimiter is
// chosen by file extension: .tsv and .tab are tab-separated, everything else
// comma-separated. The first row is the header; short rows are padded and
// long rows truncated to the header width.
func ParseTable(filename string, r io.Reader) ([]string, [][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".tsv", ".tab":
		reader.Comma = '\t'
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("parse %s: no rows", filename)
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}
	if len(headers) == 0 || (len(headers) == 1 && headers[0] == "") {
		return nil, nil, fmt.Errorf("parse %s: empty header row", filename)
	}

	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make([]string, len(headers))
		for i := range headers {
			if i < len(rec) {
				row[i] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return headers, rows, nil
}
