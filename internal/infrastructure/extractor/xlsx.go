package extractor

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractXLSX flattens every sheet row-by-row, one row per line, so the
// sentence splitter treats each row as one unit.
func extractXLSX(reader io.Reader) (string, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return "", fmt.Errorf("parse xlsx: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, " "))
			if line != "" {
				b.WriteString(line)
				b.WriteByte('\n')
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}
