package sink

import (
	"github.com/xuri/excelize/v2"

	"filesift/internal/group"
)

// writeXLSX writes the combined rows to a single-sheet workbook. Cells stay
// text, matching the csv and parquet writers.
func (s *DirSink) writeXLSX(c *group.Combined) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"

	if err := writeSheetRow(f, sheet, 1, c.Header()); err != nil {
		return err
	}
	for i, row := range c.Rows {
		if err := writeSheetRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}

	return f.SaveAs(s.path(c, ".xlsx"))
}

func writeSheetRow(f *excelize.File, sheet string, row int, cells []string) error {
	for col, v := range cells {
		name, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, name, v); err != nil {
			return err
		}
	}
	return nil
}
