package export

import (
	"encoding/csv"
	"fmt"
	"io"
)

// writeCSV emits RFC 4180 output: header row in mapping order, UTF-8
func writeCSV(w io.Writer, headers []string, rows [][]Cell) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for i, row := range rows {
		record := make([]string, len(row))
		for j, cell := range row {
			record[j] = cell.Value
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
