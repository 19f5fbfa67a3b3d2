package result

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// WriteJSON writes the report as indented JSON. A nil abort list is written
// as an empty array.
func WriteJSON(w io.Writer, report *Report) error {
	out := *report
	if out.Aborts == nil {
		out.Aborts = []AbortRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("write json output: %w", err)
	}
	return nil
}

// WriteCSV writes the abort records as CSV. The header row is always written.
// Column order: url, query, reason, lost, known, depth, error_type, error
func WriteCSV(w io.Writer, aborts []AbortRecord) error {
	cw := csv.NewWriter(w)

	header := []string{"url", "query", "reason", "lost", "known", "depth", "error_type", "error"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, a := range aborts {
		record := []string{
			a.URL,
			a.Query,
			a.Reason,
			lostStr(a),
			strconv.FormatBool(a.Known),
			strconv.Itoa(a.Depth),
			string(a.Category),
			a.Error,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv record for %s: %w", a.URL, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv output: %w", err)
	}
	return nil
}

// lostStr leaves the cell empty when the loss is unknown.
func lostStr(a AbortRecord) string {
	if !a.Known {
		return ""
	}
	return strconv.Itoa(a.Lost)
}
