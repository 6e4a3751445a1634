package dataset

import (
	"encoding/csv"
	"fmt"
	"os"

	apperrors "donorcli/internal/errors"
)

// Table is a raw tabular export: one header row plus data rows, all values
// still strings.
type Table struct {
	Header []string
	Rows   [][]string
}

// LoadCSV reads a raw donation export from a CSV file.
func LoadCSV(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to open dataset %s", path), err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // ragged exports happen; pad during normalization
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to parse dataset %s", path), err)
	}
	if len(rows) == 0 {
		return nil, apperrors.NewSchemaError(fmt.Sprintf("dataset %s is empty", path), nil)
	}

	return &Table{
		Header: rows[0],
		Rows:   rows[1:],
	}, nil
}

// cell returns the row value at idx, or "" when the row is short.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
