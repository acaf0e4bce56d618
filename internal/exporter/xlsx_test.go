package exporter

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exports", "sr3.xlsx")
	schedule := Table{
		Headers: []string{"d0", "d1", "p", "n"},
		Records: [][]string{{"2025-01-01", "2025-01-15", "7", "8"}},
	}
	series := Table{
		Headers: []string{"datetime", "price"},
		Records: [][]string{{"2025-01-01T00:00:00Z", "95.875"}, {"2025-01-02T00:00:00Z", ""}},
	}

	require.NoError(t, WriteXLSX(path, Sheet{Name: "schedule", Table: schedule}, Sheet{Name: "SR3.cm.182", Table: series}))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"schedule", "SR3.cm.182"}, f.GetSheetList())

	rows, err := f.GetRows("schedule")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"d0", "d1", "p", "n"}, {"2025-01-01", "2025-01-15", "7", "8"}}, rows)

	value, err := f.GetCellValue("SR3.cm.182", "B2")
	require.NoError(t, err)
	assert.Equal(t, "95.875", value)
}

func TestWriteXLSXTo(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSXTo(&buf, Sheet{Table: Table{Headers: []string{"a"}, Records: [][]string{{"1"}}}}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Sheet1"}, f.GetSheetList())
}

func TestWriteXLSXErrors(t *testing.T) {
	assert.ErrorIs(t, WriteXLSXTo(&bytes.Buffer{}), ErrNoSheets)
}

func TestCellsStoreNumbers(t *testing.T) {
	assert.Equal(t, []interface{}{1.5, "ESH5", ""}, cells([]string{"1.5", "ESH5", ""}, true))
	assert.Equal(t, []interface{}{"1.5"}, cells([]string{"1.5"}, false))
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Sheet3", sheetName("", 2))
	assert.Equal(t, maxSheetName, len(sheetName(strings.Repeat("x", 40), 0)))
}
