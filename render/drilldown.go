package render

import (
	"slices"

	"hermannm.dev/pivot/datatypes"
	"hermannm.dev/pivot/pivot"
)

// Returns the node's raw records that were aggregated into the given column: those whose column
// group equals the column's group, or all of them for total columns.
func DrillDown(
	node *pivot.Node,
	column pivot.ColumnKey,
	columnFields []string,
) []datatypes.Record {
	if node == nil {
		return []datatypes.Record{}
	}

	if column.Total {
		return slices.Clone(node.RawRecords)
	}

	records := make([]datatypes.Record, 0, len(node.RawRecords))
	for _, record := range node.RawRecords {
		if pivot.ColumnGroupOf(record, columnFields) == column.Group {
			records = append(records, record)
		}
	}
	return records
}
