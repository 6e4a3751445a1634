package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadCSV(t *testing.T) {
	path := writeTempCSV(t, "Postcode,Date,Amount\nBR1 3AB,03/04/2024,10\nDA1 1AA,04/04/2024,20\n")

	table, err := LoadCSV(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Postcode", "Date", "Amount"}, table.Header)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"BR1 3AB", "03/04/2024", "10"}, table.Rows[0])
}

func TestLoadCSVMissingFile(t *testing.T) {
	_, err := LoadCSV(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORAGE")
}

func TestLoadCSVEmptyFile(t *testing.T) {
	path := writeTempCSV(t, "")
	_, err := LoadCSV(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestLoadCSVRaggedRows(t *testing.T) {
	path := writeTempCSV(t, "Postcode,Date,Amount\nBR1 3AB,03/04/2024\n")

	table, err := LoadCSV(path)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Len(t, table.Rows[0], 2)
}

func writeTempWorkbook(t *testing.T, sheet string, rows [][]string) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
		require.NoError(t, f.DeleteSheet("Sheet1"))
	}

	for rowIdx, row := range rows {
		for colIdx, value := range row {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, value))
		}
	}

	path := filepath.Join(t.TempDir(), "export.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestLoadWorkbook(t *testing.T) {
	path := writeTempWorkbook(t, "Donations 2024", [][]string{
		{"Postcode", "Date", "Amount"},
		{"BR1 3AB", "03/04/2024", "10"},
	})

	table, err := LoadWorkbook(path, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Postcode", "Date", "Amount"}, table.Header)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "BR1 3AB", table.Rows[0][0])
}

func TestLoadWorkbookExplicitSheet(t *testing.T) {
	path := writeTempWorkbook(t, "Sheet1", [][]string{
		{"Postcode", "Date"},
		{"DA1 1AA", "04/04/2024"},
	})

	table, err := LoadWorkbook(path, "Sheet1")
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
}

func TestLoadWorkbookMissingFile(t *testing.T) {
	_, err := LoadWorkbook(filepath.Join(t.TempDir(), "missing.xlsx"), "")
	require.Error(t, err)
}
