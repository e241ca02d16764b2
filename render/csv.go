package render

import (
	"encoding/csv"
	"io"

	"hermannm.dev/pivot/datatypes"
	"hermannm.dev/pivot/pivot"
	"hermannm.dev/wrap"
)

// Writes the visible rows of the result as CSV. The header has one column per row field, one per
// pivot column and a final "Total". Each row fills the row-field columns with its path down to its
// own level, leaving deeper levels blank.
func CSV(
	writer io.Writer,
	result pivot.Result,
	config pivot.Config,
	fields []datatypes.Field,
) error {
	csvWriter := csv.NewWriter(writer)

	header := make([]string, 0, len(config.Rows)+len(result.Columns)+1)
	for _, row := range config.Rows {
		header = append(header, datatypes.Label(fields, row))
	}
	for _, column := range result.Columns {
		header = append(header, column.Label(fields))
	}
	header = append(header, rowTotalLabel)

	if err := csvWriter.Write(header); err != nil {
		return wrap.Error(err, "failed to write CSV header")
	}

	line := make([]string, len(header))
	for _, node := range result.Rows {
		clear(line)
		for level := 0; level < len(config.Rows) && level < len(node.Path); level++ {
			line[level] = node.Path[level]
		}
		for i, column := range result.Columns {
			line[len(config.Rows)+i] = FormatValue(node.Data[column])
		}
		line[len(line)-1] = FormatValue(pivot.RowTotal(node, result.Columns))

		if err := csvWriter.Write(line); err != nil {
			return wrap.Errorf(err, "failed to write CSV row '%s'", node.Key)
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return wrap.Error(err, "failed to flush CSV output")
	}
	return nil
}
