// Package export serialises harvest plans for downstream systems.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/harvestplan/harvestplan/core/schedule"
)

// WriteJSON writes the plan rows to w in JSON format.
func WriteJSON(w io.Writer, rows []schedule.Row) error {
	enc := json.NewEncoder(w)
	return enc.Encode(rows)
}

// WriteCSV writes the plan rows to w in CSV format. Idle slots keep an
// empty block column so every machine-slot pair stays visible.
func WriteCSV(w io.Writer, rows []schedule.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"machine_id", "day", "shift", "block_id", "volume"}); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.Machine,
			strconv.Itoa(r.Day),
			strconv.Itoa(r.Shift),
			r.Block,
			strconv.FormatFloat(r.Volume, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
