package export

import (
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"
)

// WriteCSV writes one header row plus one row per entry.
func WriteCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, e := range entries {
		if err := cw.Write(Flatten(e.Result)); err != nil {
			return eris.Wrapf(err, "export: write csv row for %s", e.Result.ZoneName)
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}
