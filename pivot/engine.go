package pivot

import (
	"fmt"
	"log/slog"
	"slices"

	"hermannm.dev/devlog/log"
	"hermannm.dev/pivot/datatypes"
)

// Node is a row group at some level of the row hierarchy.
type Node struct {
	// Escaped path from the root joined by "|", unique across the hierarchy.
	Key string `json:"key"`
	// Group values from the outermost level down to this node.
	Path []string `json:"path"`
	// This level's group value.
	DisplayKey  string `json:"displayKey"`
	Level       int    `json:"level"`
	HasChildren bool   `json:"hasChildren"`

	Data map[ColumnKey]float64 `json:"data"`

	// The exact records that were grouped into this node.
	RawRecords []datatypes.Record `json:"-"`
	Children   []*Node            `json:"-"`
}

type Result struct {
	// Depth-first rows, where a node's children are only included if the node is expanded.
	Rows    []*Node     `json:"rows"`
	Columns []ColumnKey `json:"columns"`
	// Level-0 nodes of the full hierarchy, regardless of expansion.
	Tree []*Node `json:"-"`
}

// Cross-tabulates the records by the given config, computing every level of the row hierarchy.
// Only the expanded parts of the hierarchy are included in Result.Rows. The expanded set may be
// nil, in which case only level-0 rows are included.
//
// Expects:
//   - Records to be filtered and normalized (see datatypes.Normalize)
//
// Returns:
//   - No rows when config has no row fields, though columns are still derived
func Aggregate(
	records []datatypes.Record,
	config Config,
	fields []datatypes.Field,
	expanded *ExpandedSet,
) Result {
	aggregator := aggregator{
		config:  config,
		fields:  fields,
		columns: ColumnKeys(records, config, fields),
	}

	result := Result{Rows: []*Node{}, Columns: aggregator.columns, Tree: []*Node{}}
	if !config.CanRender() {
		return result
	}

	result.Tree = aggregator.buildLevel(records, 0, nil)
	result.Rows = Flatten(result.Tree, expanded)

	log.Debug(
		"aggregated pivot table",
		slog.Int("records", len(records)),
		slog.Int("topLevelRows", len(result.Tree)),
		slog.Int("visibleRows", len(result.Rows)),
		slog.Int("columns", len(result.Columns)),
	)

	return result
}

// Derives the pivot's columns:
//   - With both column and value fields: every distinct column group, sorted, crossed with every
//     value field
//   - With value fields only: one total column per value field
//   - Otherwise: the single legacy total column
func ColumnKeys(
	records []datatypes.Record,
	config Config,
	fields []datatypes.Field,
) []ColumnKey {
	if len(config.Values) == 0 {
		return []ColumnKey{LegacyTotalColumn}
	}

	if len(config.Columns) == 0 {
		columns := make([]ColumnKey, 0, len(config.Values))
		for _, value := range config.Values {
			columns = append(columns, TotalColumn(value.Field, value.Aggregation))
		}
		return columns
	}

	seen := make(map[ColumnGroup]struct{})
	var groups []ColumnGroup
	for _, record := range records {
		group := ColumnGroupOf(record, config.Columns)
		if _, ok := seen[group]; !ok {
			seen[group] = struct{}{}
			groups = append(groups, group)
		}
	}

	newGroupComparator(config.Columns, fields).sortGroups(groups)

	columns := make([]ColumnKey, 0, len(groups)*len(config.Values))
	for _, group := range groups {
		for _, value := range config.Values {
			columns = append(columns, GroupColumn(group, value.Field, value.Aggregation))
		}
	}
	return columns
}

type aggregator struct {
	config  Config
	fields  []datatypes.Field
	columns []ColumnKey
}

func (aggregator aggregator) buildLevel(
	records []datatypes.Record,
	level int,
	parentPath []string,
) []*Node {
	field := aggregator.config.Rows[level]

	groups := make(map[string][]datatypes.Record)
	var groupValues []string
	for _, record := range records {
		value := datatypes.GroupValue(record, field)
		if _, ok := groups[value]; !ok {
			groupValues = append(groupValues, value)
		}
		groups[value] = append(groups[value], record)
	}

	newGroupComparator([]string{field}, aggregator.fields).sortValues(groupValues)

	isLastLevel := level == len(aggregator.config.Rows)-1

	nodes := make([]*Node, 0, len(groupValues))
	for _, value := range groupValues {
		groupRecords := groups[value]

		path := append(slices.Clip(parentPath), value)

		node := &Node{
			Key:         RowKey(path),
			Path:        path,
			DisplayKey:  value,
			Level:       level,
			HasChildren: !isLastLevel,
			Data:        aggregator.aggregateCells(groupRecords),
			RawRecords:  groupRecords,
		}

		if !isLastLevel {
			node.Children = aggregator.buildLevel(groupRecords, level+1, path)
		}

		nodes = append(nodes, node)
	}

	return nodes
}

func (aggregator aggregator) aggregateCells(records []datatypes.Record) map[ColumnKey]float64 {
	var recordsByGroup map[ColumnGroup][]datatypes.Record
	if len(aggregator.config.Columns) != 0 && len(aggregator.config.Values) != 0 {
		recordsByGroup = make(map[ColumnGroup][]datatypes.Record)
		for _, record := range records {
			group := ColumnGroupOf(record, aggregator.config.Columns)
			recordsByGroup[group] = append(recordsByGroup[group], record)
		}
	}

	cells := make(map[ColumnKey]float64, len(aggregator.columns))
	for _, column := range aggregator.columns {
		columnRecords := records
		if !column.Total {
			columnRecords = recordsByGroup[column.Group]
		}
		cells[column] = AggregateCell(columnRecords, column)
	}
	return cells
}

// Aggregates the column's value field over the given records. Averages, minimums and maximums of
// no records are 0. The legacy total column and unknown aggregations count records.
func AggregateCell(records []datatypes.Record, column ColumnKey) float64 {
	if column.IsLegacyTotal() {
		return float64(len(records))
	}

	switch column.Aggregation {
	case AggregationCount:
		return float64(len(records))
	case AggregationDistinctCount:
		distinct := make(map[string]struct{}, len(records))
		for _, record := range records {
			distinct[distinctKey(record[column.Field])] = struct{}{}
		}
		return float64(len(distinct))
	case AggregationSum, AggregationAverage, AggregationMin, AggregationMax:
		return aggregateNumbers(records, column.Field, column.Aggregation)
	default:
		log.Debug(
			"unknown aggregation, counting records instead",
			slog.String("field", column.Field),
		)
		return float64(len(records))
	}
}

func aggregateNumbers(records []datatypes.Record, field string, aggregation Aggregation) float64 {
	if len(records) == 0 {
		return 0
	}

	sum := 0.0
	minValue := datatypes.LeadingFloat(records[0][field])
	maxValue := minValue
	for _, record := range records {
		value := datatypes.LeadingFloat(record[field])
		sum += value
		if value < minValue {
			minValue = value
		}
		if value > maxValue {
			maxValue = value
		}
	}

	switch aggregation {
	case AggregationAverage:
		return sum / float64(len(records))
	case AggregationMin:
		return minValue
	case AggregationMax:
		return maxValue
	default:
		return sum
	}
}

// Distinguishes values by both type and content, so that 1 and "1" are counted separately.
func distinctKey(value any) string {
	return fmt.Sprintf("%T:%v", value, value)
}

// Emits nodes depth-first, descending into a node's children only if it is expanded.
func Flatten(tree []*Node, expanded *ExpandedSet) []*Node {
	rows := []*Node{}
	var visit func(nodes []*Node)
	visit = func(nodes []*Node) {
		for _, node := range nodes {
			rows = append(rows, node)
			if node.HasChildren && expanded.Has(node.Key) {
				visit(node.Children)
			}
		}
	}
	visit(tree)
	return rows
}

// Sums the level-0 nodes' cells per column. Expansion does not affect the totals.
func GrandTotals(result Result) map[ColumnKey]float64 {
	totals := make(map[ColumnKey]float64, len(result.Columns))
	for _, column := range result.Columns {
		totals[column] = 0
	}

	for _, node := range result.Tree {
		for column, value := range node.Data {
			totals[column] += value
		}
	}

	return totals
}

// Sums the node's cells in column order.
func RowTotal(node *Node, columns []ColumnKey) float64 {
	total := 0.0
	for _, column := range columns {
		total += node.Data[column]
	}
	return total
}

// Finds the node with the given key anywhere in the hierarchy.
func FindNode(tree []*Node, key string) (*Node, bool) {
	for _, node := range tree {
		if node.Key == key {
			return node, true
		}
		if found, ok := FindNode(node.Children, key); ok {
			return found, true
		}
	}
	return nil, false
}
