package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Journal"

// WriteXLSX renders rows as a spreadsheet with the same column layout as the
// CSV, for reviewers who want to eyeball a batch before filing it.
func WriteXLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	col := 'A'
	for _, h := range Header() {
		f.SetCellValue(sheetName, string(col)+"1", h)
		col++
	}

	for i, row := range rows {
		col := 'A'
		for _, value := range row.columns() {
			f.SetCellValue(sheetName, string(col)+fmt.Sprint(i+2), value)
			col++
		}
	}

	return f.Write(w)
}
