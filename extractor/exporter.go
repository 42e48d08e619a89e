package extractor

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"guild-contributions/internal/types"
)

// ExportFilename is the name offered for the CSV download
func ExportFilename(domain string) string {
	return domain + "_contributions.csv"
}

// ExportCSV writes a header of Name followed by fields, then one row per
// record. Missing fields render as empty cells. Cells are quoted when they
// contain delimiters, quotes or line breaks.
func ExportCSV(w io.Writer, records []types.Record, fields types.FieldSet) error {
	cw := csv.NewWriter(w)

	header := append([]string{"Name"}, fields...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	row := make([]string, len(header))
	for _, record := range records {
		row[0] = record.Name
		for i, field := range fields {
			row[i+1] = record.Value(field)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", record.Name, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

// ExportJSON writes the records as an indented JSON array
func ExportJSON(w io.Writer, records []types.Record) error {
	if records == nil {
		records = []types.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to marshal records to JSON: %w", err)
	}
	return nil
}

// RenderTable prints the records as a human-readable table
func RenderTable(w io.Writer, records []types.Record, fields types.FieldSet) {
	t := table.NewWriter()
	t.SetOutputMirror(w)

	header := table.Row{"Name"}
	for _, field := range fields {
		header = append(header, field)
	}
	t.AppendHeader(header)

	for _, record := range records {
		row := table.Row{record.Name}
		for _, field := range fields {
			row = append(row, record.Value(field))
		}
		t.AppendRow(row)
	}

	t.AppendFooter(table.Row{fmt.Sprintf("%d members", len(records))})
	t.SetStyle(table.StyleRounded)
	t.Render()
}
