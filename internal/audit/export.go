package audit

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// WriteCSV streams entries as CSV, most-recent-first, with humanized
// module and outcome labels.
func WriteCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"ID", "Timestamp", "Actor", "Module", "Action", "Details", "Outcome"}); err != nil {
		return err
	}
	for _, entry := range entries {
		record := []string{
			strconv.FormatInt(entry.ID, 10),
			entry.At.Format(time.RFC3339),
			entry.ActorName,
			titleCaser.String(entry.Module),
			entry.Action,
			entry.Details,
			titleCaser.String(string(entry.Outcome)),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
