// Package csvsource reads a headered CSV file into rows keyed by column.
package csvsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/okian/athletegraph/internal/domain/validate"
)

const bom = "\ufeff"

// Sentinel kinds for CSV errors.
var (
	ErrNoHeader     = errors.New("csv has no header row")
	ErrDuplicateCol = errors.New("duplicate column in header")
)

// Table is a decoded CSV file. Lines[i] is the 1-based source line of Rows[i].
type Table struct {
	Columns []string
	Rows    []validate.Row
	Lines   []int
	Ragged  []RaggedRow
}

// RaggedRow is a row whose width differs from the header. Short rows keep
// nil for the missing cells; cells past the header are dropped.
type RaggedRow struct {
	Index  int
	Line   int
	Fields int
}

// Read decodes r. Header cells are trimmed and a leading BOM is dropped.
func Read(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, bom)
		}
		h = strings.TrimSpace(h)
		if seen[h] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateCol, h)
		}
		seen[h] = true
		cols[i] = h
	}

	t := &Table{Columns: cols}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if len(rec) != len(cols) {
			t.Ragged = append(t.Ragged, RaggedRow{Index: len(t.Rows), Line: line, Fields: len(rec)})
		}
		row := make(validate.Row, len(cols))
		for i, c := range cols {
			if i < len(rec) {
				row[c] = rec[i]
			} else {
				row[c] = nil
			}
		}
		t.Rows = append(t.Rows, row)
		t.Lines = append(t.Lines, line)
	}
	return t, nil
}

// ReadFile opens path and calls Read.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	t, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Line returns the source line of row index i, or 0 when unknown.
func (t *Table) Line(i int) int {
	if i < 0 || i >= len(t.Lines) {
		return 0
	}
	return t.Lines[i]
}
