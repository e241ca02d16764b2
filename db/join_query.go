package db

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"hermannm.dev/pivot/datatypes"
	"hermannm.dev/wrap"
)

// JoinQuery describes an ad-hoc join across tables, selecting columns from any joined table.
// Selected columns are aliased as "table.column", matching the keys of datatypes.FieldsFromSchema.
type JoinQuery struct {
	BaseTable string        `json:"baseTable"`
	Joins     []Join        `json:"joins"`
	Columns   []ColumnRef   `json:"columns"`
	OrderBy   []OrderColumn `json:"orderBy,omitempty"`
	// 0 means no limit.
	Limit int `json:"limit"`
}

// Join joins Table to LeftTable (the base table or a previously joined table) on
// LeftTable.LeftColumn = Table.RightColumn.
type Join struct {
	Table       string   `json:"table"`
	Kind        JoinKind `json:"kind"`
	LeftTable   string   `json:"leftTable"`
	LeftColumn  string   `json:"leftColumn"`
	RightColumn string   `json:"rightColumn"`
}

type ColumnRef struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

func (column ColumnRef) Key() string {
	return datatypes.FieldKey(column.Table, column.Column)
}

type OrderColumn struct {
	ColumnRef
	Order SortOrder `json:"order"`
}

// Dialect writes identifiers for a specific database.
type Dialect interface {
	ValidateIdentifier(identifier string) error
	// Must only be called after calling ValidateIdentifier on the given identifier.
	WriteIdentifier(builder *strings.Builder, identifier string)
}

func (query JoinQuery) Validate() []error {
	var errs []error

	if query.BaseTable == "" {
		errs = append(errs, errors.New("base table is blank"))
	}
	if len(query.Columns) == 0 {
		errs = append(errs, errors.New("no columns selected"))
	}
	if query.Limit < 0 {
		errs = append(errs, fmt.Errorf("negative limit %d", query.Limit))
	}

	tables := []string{query.BaseTable}
	for i, join := range query.Joins {
		if join.Table == "" {
			errs = append(errs, fmt.Errorf("join %d has blank table", i))
		}
		if !join.Kind.IsValid() {
			errs = append(errs, fmt.Errorf("join %d ('%s') has invalid join kind", i, join.Table))
		}
		if !slices.Contains(tables, join.LeftTable) {
			errs = append(errs, fmt.Errorf(
				"join %d ('%s') references table '%s' before it is joined",
				i, join.Table, join.LeftTable,
			))
		}
		if slices.Contains(tables, join.Table) {
			errs = append(errs, fmt.Errorf("table '%s' is joined more than once", join.Table))
		}
		if join.LeftColumn == "" || join.RightColumn == "" {
			errs = append(errs, fmt.Errorf("join %d ('%s') has blank join column", i, join.Table))
		}
		tables = append(tables, join.Table)
	}

	for i, column := range query.Columns {
		if column.Column == "" {
			errs = append(errs, fmt.Errorf("selected column %d is blank", i))
		}
		if !slices.Contains(tables, column.Table) {
			errs = append(errs, fmt.Errorf(
				"selected column '%s' is from table '%s', which is not in the query",
				column.Column, column.Table,
			))
		}
	}

	for i, order := range query.OrderBy {
		if !slices.Contains(query.Columns, order.ColumnRef) {
			errs = append(errs, fmt.Errorf("order column '%s' is not selected", order.Key()))
		}
		if !order.Order.IsValid() {
			errs = append(errs, fmt.Errorf("order column %d has invalid sort order", i))
		}
	}

	return errs
}

// Returns the selected columns per table, for use with datatypes.FieldsFromSchema.
func (query JoinQuery) Selection() datatypes.ColumnSelection {
	selection := make(datatypes.ColumnSelection)
	for _, column := range query.Columns {
		selection[column.Table] = append(selection[column.Table], column.Column)
	}
	return selection
}

// Returns the fields of the query's selected columns, in selection order. Columns missing from the
// schema are typed as text.
func (query JoinQuery) Fields(schema datatypes.Schema) []datatypes.Field {
	schemaFields := datatypes.FieldsFromSchema(schema, query.Selection())

	fields := make([]datatypes.Field, 0, len(query.Columns))
	for _, column := range query.Columns {
		field, ok := datatypes.FieldByKey(schemaFields, column.Key())
		if !ok {
			field = datatypes.Field{
				Key:   column.Key(),
				Label: column.Key(),
				Type:  datatypes.DataTypeText,
			}
		}
		fields = append(fields, field)
	}
	return fields
}

// Returns the joins whose columns do not match a relation in the schema. Such joins are still valid,
// but are likely mistakes when the schema declares foreign keys.
func (query JoinQuery) UnrelatedJoins(schema datatypes.Schema) []Join {
	var unrelated []Join
	for _, join := range query.Joins {
		related := slices.ContainsFunc(
			schema.RelationsBetween(join.LeftTable, join.Table),
			func(relation datatypes.TableRelation) bool {
				return relation.Matches(join.LeftTable, join.LeftColumn, join.Table, join.RightColumn)
			},
		)
		if !related {
			unrelated = append(unrelated, join)
		}
	}
	return unrelated
}

// Renders the query as a SELECT statement for the given dialect.
func (query JoinQuery) Build(dialect Dialect) (string, error) {
	if errs := query.Validate(); len(errs) != 0 {
		return "", wrap.Errors("invalid join query", errs...)
	}
	if err := query.validateIdentifiers(dialect); err != nil {
		return "", wrap.Error(err, "invalid identifier in join query")
	}

	var builder strings.Builder
	writeColumn := func(table string, column string) {
		dialect.WriteIdentifier(&builder, table)
		builder.WriteByte('.')
		dialect.WriteIdentifier(&builder, column)
	}

	builder.WriteString("SELECT ")
	for i, column := range query.Columns {
		if i != 0 {
			builder.WriteString(", ")
		}
		writeColumn(column.Table, column.Column)
		builder.WriteString(" AS ")
		dialect.WriteIdentifier(&builder, column.Key())
	}

	builder.WriteString(" FROM ")
	dialect.WriteIdentifier(&builder, query.BaseTable)

	for _, join := range query.Joins {
		keyword, _ := joinKindKeywords.GetName(join.Kind)
		builder.WriteByte(' ')
		builder.WriteString(keyword)
		builder.WriteByte(' ')
		dialect.WriteIdentifier(&builder, join.Table)
		builder.WriteString(" ON ")
		writeColumn(join.LeftTable, join.LeftColumn)
		builder.WriteString(" = ")
		writeColumn(join.Table, join.RightColumn)
	}

	for i, order := range query.OrderBy {
		if i == 0 {
			builder.WriteString(" ORDER BY ")
		} else {
			builder.WriteString(", ")
		}
		keyword, _ := sortOrderKeywords.GetName(order.Order)
		writeColumn(order.Table, order.Column)
		builder.WriteByte(' ')
		builder.WriteString(keyword)
	}

	if query.Limit > 0 {
		builder.WriteString(" LIMIT ")
		builder.WriteString(strconv.Itoa(query.Limit))
	}

	return builder.String(), nil
}

func (query JoinQuery) validateIdentifiers(dialect Dialect) error {
	identifiers := []string{query.BaseTable}
	for _, join := range query.Joins {
		identifiers = append(identifiers, join.Table, join.LeftColumn, join.RightColumn)
	}
	for _, column := range query.Columns {
		identifiers = append(identifiers, column.Column, column.Key())
	}

	for _, identifier := range identifiers {
		if err := dialect.ValidateIdentifier(identifier); err != nil {
			return err
		}
	}
	return nil
}

// Limits the query to at most maxRecords rows, keeping a lower existing limit.
func (query JoinQuery) WithMaxRecords(maxRecords int) JoinQuery {
	if maxRecords > 0 && (query.Limit == 0 || query.Limit > maxRecords) {
		query.Limit = maxRecords
	}
	return query
}
