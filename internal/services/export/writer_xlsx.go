package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/ternarybob/scriba/internal/models"
	"github.com/xuri/excelize/v2"
)

// writeXLSX emits a single-sheet workbook: header row in mapping order, then
// one row per built record. Integer and number cells are written as native
// numeric values so spreadsheet formulas work on them.
func writeXLSX(w io.Writer, sheetName string, headers []string, rows [][]Cell) error {
	if sheetName == "" {
		sheetName = "export"
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if sheetName != "Sheet1" {
		f.DeleteSheet("Sheet1")
	}

	headerRow := make([]interface{}, len(headers))
	for i, h := range headers {
		headerRow[i] = h
	}
	if err := writeXLSXRow(f, sheetName, 1, headerRow); err != nil {
		return err
	}

	for i, row := range rows {
		values := make([]interface{}, len(row))
		for j, cell := range row {
			values[j] = typedCellValue(cell)
		}
		if err := writeXLSXRow(f, sheetName, i+2, values); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// typedCellValue converts a cell to the native type its field declares,
// falling back to the string when the value does not parse.
func typedCellValue(cell Cell) interface{} {
	switch cell.Type {
	case models.FieldTypeInteger:
		if n, err := strconv.ParseInt(cell.Value, 10, 64); err == nil {
			return n
		}
	case models.FieldTypeNumber:
		if n, err := strconv.ParseFloat(cell.Value, 64); err == nil {
			return n
		}
	}
	return cell.Value
}

func writeXLSXRow(f *excelize.File, sheet string, rowNum int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", rowNum, err)
	}
	return nil
}
