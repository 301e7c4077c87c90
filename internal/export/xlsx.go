package export

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// WriteXLSX writes a single-sheet workbook using the shared row schema.
func WriteXLSX(w io.Writer, entries []Entry) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Zone Analysis")
	if err != nil {
		return eris.Wrap(err, "export: add xlsx sheet")
	}

	header := sheet.AddRow()
	for _, col := range Header {
		header.AddCell().SetString(col)
	}

	for _, e := range entries {
		row := sheet.AddRow()
		for _, val := range Flatten(e.Result) {
			row.AddCell().SetString(val)
		}
	}

	return eris.Wrap(f.Write(w), "export: write xlsx")
}
