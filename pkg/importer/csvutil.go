package importer

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	"github.com/dasien/bwcli/pkg/errors"
)

// utf8BOM is tolerated at the start of any import file.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, utf8BOM)
}

// csvTable is a header-indexed view over a parsed CSV file.
type csvTable struct {
	columns map[string]int
	rows    [][]string
	// lines holds the 1-based CSV record number of each row, counting the
	// header as record 1. A quoted field spanning several lines still
	// counts as one record, so this is not the physical line in that case.
	lines []int
}

// parseCSVTable reads a CSV file with a header row. Column names are
// matched case-insensitively. An empty file yields a table with no rows.
func parseCSVTable(data []byte) (*csvTable, error) {
	reader := csv.NewReader(bytes.NewReader(stripBOM(data)))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	table := &csvTable{columns: make(map[string]int)}

	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.NewImportParseError(line, "invalid csv", err)
		}
		if line == 1 {
			for i, name := range record {
				table.columns[strings.ToLower(strings.TrimSpace(name))] = i
			}
			continue
		}
		table.rows = append(table.rows, record)
		table.lines = append(table.lines, line)
	}
	return table, nil
}

// get returns the named column of a row, or "" when the column or value is
// missing.
func (t *csvTable) get(row []string, column string) string {
	idx, ok := t.columns[column]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// hasColumn reports whether the header named the column.
func (t *csvTable) hasColumn(column string) bool {
	_, ok := t.columns[column]
	return ok
}
