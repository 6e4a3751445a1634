package dataset

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "donorcli/internal/errors"
)

// LoadWorkbook reads a raw donation export from an Excel workbook. When
// sheetName is empty, the donation sheet is located by name heuristics and
// falls back to the first sheet.
func LoadWorkbook(path, sheetName string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to open workbook %s", path), err)
	}
	defer f.Close()

	if sheetName == "" {
		sheetName = findDonationSheet(f)
	}
	if sheetName == "" {
		return nil, apperrors.NewSchemaError(fmt.Sprintf("workbook %s has no sheets", path), nil)
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, apperrors.NewParsingError(
			fmt.Sprintf("failed to read sheet %q from %s", sheetName, path), err)
	}
	if len(rows) == 0 {
		return nil, apperrors.NewSchemaError(
			fmt.Sprintf("sheet %q in %s is empty", sheetName, path), nil)
	}

	return &Table{
		Header: rows[0],
		Rows:   rows[1:],
	}, nil
}

// findDonationSheet picks the sheet holding donation rows. Exports typically
// name it "Donations" or "Data"; otherwise the first sheet is used.
func findDonationSheet(f *excelize.File) string {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ""
	}
	for _, name := range sheets {
		lower := strings.ToLower(strings.TrimSpace(name))
		if strings.Contains(lower, "donation") || lower == "data" {
			return name
		}
	}
	return sheets[0]
}
