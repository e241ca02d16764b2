package render

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"hermannm.dev/pivot/datatypes"
	"hermannm.dev/pivot/pivot"
)

type TableOptions struct {
	ShowRowTotals   bool       `json:"showRowTotals"`
	ShowGrandTotals bool       `json:"showGrandTotals"`
	ColorRule       *ColorRule `json:"colorRule,omitempty"`
}

type TableData struct {
	RowHeader string        `json:"rowHeader"`
	Columns   []TableColumn `json:"columns"`
	Rows      []TableRow    `json:"rows"`
	// Present when grand totals are enabled.
	GrandTotal *TableRow `json:"grandTotal,omitempty"`
}

type TableColumn struct {
	Key   pivot.ColumnKey `json:"key"`
	Label string          `json:"label"`
}

type TableRow struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Level       int    `json:"level"`
	HasChildren bool   `json:"hasChildren"`
	Expanded    bool   `json:"expanded"`
	Cells       []Cell `json:"cells"`
	// Present when row totals are enabled.
	Total *Cell `json:"total,omitempty"`
}

type Cell struct {
	Value float64 `json:"value"`
	Text  string  `json:"text"`
	// Hex color with alpha suffix, present when a color rule is configured.
	Background string `json:"background,omitempty"`
}

const rowTotalLabel = "Total"

// Builds a renderable table from the visible rows of the result. Only body cells are colored by the
// color rule, not totals.
func Table(
	result pivot.Result,
	config pivot.Config,
	fields []datatypes.Field,
	options TableOptions,
) TableData {
	table := TableData{
		RowHeader: rowHeader(config, fields),
		Columns:   make([]TableColumn, 0, len(result.Columns)),
		Rows:      make([]TableRow, 0, len(result.Rows)),
	}

	for _, column := range result.Columns {
		table.Columns = append(table.Columns, TableColumn{Key: column, Label: column.Label(fields)})
	}

	for i, node := range result.Rows {
		row := TableRow{
			Key:         node.Key,
			Label:       node.DisplayKey,
			Level:       node.Level,
			HasChildren: node.HasChildren,
			Expanded:    i+1 < len(result.Rows) && result.Rows[i+1].Level > node.Level,
			Cells:       make([]Cell, 0, len(result.Columns)),
		}

		for _, column := range result.Columns {
			cell := newCell(node.Data[column])
			if options.ColorRule != nil {
				cell.Background = options.ColorRule.Background(cell.Value)
			}
			row.Cells = append(row.Cells, cell)
		}

		if options.ShowRowTotals {
			total := newCell(pivot.RowTotal(node, result.Columns))
			row.Total = &total
		}

		table.Rows = append(table.Rows, row)
	}

	if options.ShowGrandTotals && len(result.Tree) != 0 {
		totals := pivot.GrandTotals(result)

		grandTotal := TableRow{
			Key:   "",
			Label: "Grand Total",
			Cells: make([]Cell, 0, len(result.Columns)),
		}

		sum := 0.0
		for _, column := range result.Columns {
			grandTotal.Cells = append(grandTotal.Cells, newCell(totals[column]))
			sum += totals[column]
		}

		if options.ShowRowTotals {
			total := newCell(sum)
			grandTotal.Total = &total
		}

		table.GrandTotal = &grandTotal
	}

	return table
}

func newCell(value float64) Cell {
	return Cell{Value: value, Text: FormatValue(value)}
}

// Formats an aggregated value with two decimals.
func FormatValue(value float64) string {
	return fmt.Sprintf("%.2f", value)
}

func rowHeader(config pivot.Config, fields []datatypes.Field) string {
	labels := make([]string, 0, len(config.Rows))
	for _, row := range config.Rows {
		labels = append(labels, datatypes.Label(fields, row))
	}
	return strings.Join(labels, " / ")
}

// Headers of the table's columns, including the row header and any row total column.
func (table TableData) Headers() []string {
	headers := make([]string, 0, len(table.Columns)+2)
	headers = append(headers, table.RowHeader)
	for _, column := range table.Columns {
		headers = append(headers, column.Label)
	}
	if table.hasRowTotals() {
		headers = append(headers, rowTotalLabel)
	}
	return headers
}

func (table TableData) hasRowTotals() bool {
	if len(table.Rows) != 0 {
		return table.Rows[0].Total != nil
	}
	return table.GrandTotal != nil && table.GrandTotal.Total != nil
}

// Indented label of the row, with a marker showing whether it can be expanded.
func (row TableRow) IndentedLabel() string {
	var marker string
	switch {
	case row.HasChildren && row.Expanded:
		marker = "- "
	case row.HasChildren:
		marker = "+ "
	default:
		marker = "  "
	}
	return strings.Repeat("  ", row.Level) + marker + row.Label
}

// Writes the table as aligned plain text.
func WriteText(writer io.Writer, table TableData) error {
	tabs := tabwriter.NewWriter(writer, 0, 4, 2, ' ', 0)

	writeLine := func(cells []string) {
		fmt.Fprintln(tabs, strings.Join(cells, "\t")+"\t")
	}

	writeLine(table.Headers())

	for _, row := range slices.Concat(table.Rows, table.grandTotalRows()) {
		cells := make([]string, 0, len(row.Cells)+2)
		cells = append(cells, row.IndentedLabel())
		for _, cell := range row.Cells {
			cells = append(cells, cell.Text)
		}
		if row.Total != nil {
			cells = append(cells, row.Total.Text)
		}
		writeLine(cells)
	}

	return tabs.Flush()
}

func (table TableData) grandTotalRows() []TableRow {
	if table.GrandTotal == nil {
		return nil
	}
	return []TableRow{*table.GrandTotal}
}
