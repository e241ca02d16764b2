package datatypes

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
)

// Schema describes the tables available for ad-hoc joins, as returned by schema introspection.
type Schema struct {
	Tables    []TableSchema   `json:"tables"`
	Relations []TableRelation `json:"relations"`
}

type TableSchema struct {
	Name    string         `json:"name"`
	Columns []ColumnSchema `json:"columns"`
}

type ColumnSchema struct {
	Name     string `json:"name"`
	DataType string `json:"dataType"`
}

type TableRelation struct {
	FromTable  string `json:"fromTable"`
	FromColumn string `json:"fromColumn"`
	ToTable    string `json:"toTable"`
	ToColumn   string `json:"toColumn"`
}

// Reports whether the relation links the two columns, in either direction.
func (relation TableRelation) Matches(
	table1 string,
	column1 string,
	table2 string,
	column2 string,
) bool {
	return (relation.FromTable == table1 && relation.FromColumn == column1 &&
		relation.ToTable == table2 && relation.ToColumn == column2) ||
		(relation.FromTable == table2 && relation.FromColumn == column2 &&
			relation.ToTable == table1 && relation.ToColumn == column1)
}

// Column selection per table name. A nil or empty selection selects every column of every table,
// and a table mapped to an empty list has all its columns selected.
type ColumnSelection map[string][]string

// Converts introspected tables to fields keyed "table.column" and labelled "Table: Column".
//
// Expects:
//   - Columns in the selection to exist in the schema (unknown columns are skipped)
func FieldsFromSchema(schema Schema, selection ColumnSelection) []Field {
	var fields []Field

	for _, table := range schema.Tables {
		selectedColumns, tableSelected := selection[table.Name]
		if len(selection) != 0 && !tableSelected {
			continue
		}

		for _, column := range table.Columns {
			if len(selectedColumns) != 0 && !slices.Contains(selectedColumns, column.Name) {
				continue
			}

			fields = append(fields, Field{
				Key:   FieldKey(table.Name, column.Name),
				Label: fmt.Sprintf("%s: %s", humanize(table.Name), humanize(column.Name)),
				Type:  DataTypeFromDatabaseType(column.DataType),
			})
		}
	}

	return fields
}

func FieldKey(table string, column string) string {
	return table + "." + column
}

func (schema Schema) Table(name string) (TableSchema, bool) {
	for _, table := range schema.Tables {
		if table.Name == name {
			return table, true
		}
	}
	return TableSchema{}, false
}

// Returns the relations between the two tables, in either direction.
func (schema Schema) RelationsBetween(table1 string, table2 string) []TableRelation {
	var relations []TableRelation
	for _, relation := range schema.Relations {
		if (relation.FromTable == table1 && relation.ToTable == table2) ||
			(relation.FromTable == table2 && relation.ToTable == table1) {
			relations = append(relations, relation)
		}
	}
	return relations
}

func (schema Schema) Validate() []error {
	var errs []error

	for i, table := range schema.Tables {
		if table.Name == "" {
			errs = append(errs, fmt.Errorf("table %d has blank name", i))
			continue
		}

		for j, column := range table.Columns {
			if column.Name == "" {
				errs = append(errs, fmt.Errorf("column %d in table '%s' has blank name", j, table.Name))
			}
		}
	}

	for i, relation := range schema.Relations {
		if _, ok := schema.Table(relation.FromTable); !ok {
			errs = append(errs, fmt.Errorf("relation %d: unknown table '%s'", i, relation.FromTable))
		}
		if _, ok := schema.Table(relation.ToTable); !ok {
			errs = append(errs, fmt.Errorf("relation %d: unknown table '%s'", i, relation.ToTable))
		}
		if relation.FromColumn == "" || relation.ToColumn == "" {
			errs = append(errs, fmt.Errorf("relation %d has blank column", i))
		}
	}

	return errs
}

// Turns identifiers like "time_entries" or "estimatedHours" into "Time Entries" and
// "Estimated Hours".
func humanize(identifier string) string {
	var builder strings.Builder
	capitalizeNext := true
	var previous rune

	for i, char := range identifier {
		if char == '_' || char == '-' || char == ' ' {
			if builder.Len() != 0 {
				builder.WriteByte(' ')
			}
			capitalizeNext = true
			previous = char
			continue
		}

		if i != 0 && unicode.IsUpper(char) && unicode.IsLower(previous) {
			builder.WriteByte(' ')
		}

		if capitalizeNext {
			builder.WriteRune(unicode.ToUpper(char))
			capitalizeNext = false
		} else {
			builder.WriteRune(char)
		}
		previous = char
	}

	return builder.String()
}
