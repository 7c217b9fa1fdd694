package suite

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Table returns a header row followed by one row per scenario in generation order
func Table(s *TestSuite) [][]string {
	rows := make([][]string, 0, s.Len()+1)
	rows = append(rows, append([]string(nil), Headers...))
	if s == nil {
		return rows
	}
	for _, sc := range s.Scenarios {
		rows = append(rows, sc.Values())
	}
	return rows
}

// WriteTable renders the table for a terminal. Multi-line cells are joined with " | ".
func WriteTable(w io.Writer, s *TestSuite) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	if s != nil && s.FeatureName != "" {
		if _, err := fmt.Fprintf(tw, "%s\n\n", s.FeatureName); err != nil {
			return err
		}
	}

	for _, row := range Table(s) {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = flatten(c)
		}
		if _, err := fmt.Fprintln(tw, strings.Join(cells, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// WriteCSV exports the table as CSV with a UTF-8 byte order mark so spreadsheet
// tools detect the encoding of the Chinese headers
func WriteCSV(w io.Writer, s *TestSuite) error {
	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.WriteAll(Table(s)); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

func flatten(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, " | ")
}
