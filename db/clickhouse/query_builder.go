package clickhouse

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// QueryBuilder writes ClickHouse queries. Identifiers written with it must be constants or have
// passed ValidateIdentifier.
type QueryBuilder struct {
	strings.Builder
}

func (builder *QueryBuilder) WriteInt(i int) {
	builder.WriteString(strconv.Itoa(i))
}

func (builder *QueryBuilder) WriteIdentifier(identifier string) {
	writeIdentifier(&builder.Builder, identifier)
}

// Writes the identifiers separated by commas, as in a SELECT list.
func (builder *QueryBuilder) WriteIdentifiers(identifiers ...string) {
	for i, identifier := range identifiers {
		if i != 0 {
			builder.WriteString(", ")
		}
		builder.WriteIdentifier(identifier)
	}
}

// Writes a WHERE clause comparing the column to a single query parameter.
func (builder *QueryBuilder) WriteWhereEquals(column string) {
	builder.WriteString(" WHERE (")
	builder.WriteIdentifier(column)
	builder.WriteString(" = ?)")
}

func writeIdentifier(builder *strings.Builder, identifier string) {
	builder.WriteByte('`')
	builder.WriteString(identifier)
	builder.WriteByte('`')
}

func ValidateIdentifier(identifier string) error {
	if identifier == "" {
		return errors.New("identifier is blank")
	}
	if strings.ContainsRune(identifier, '`') {
		return fmt.Errorf("'%s' contains `, which is incompatible with ClickHouse", identifier)
	}
	return nil
}

// Implements db.Dialect for ClickHouse, quoting identifiers with backticks.
type Dialect struct{}

func (Dialect) ValidateIdentifier(identifier string) error {
	return ValidateIdentifier(identifier)
}

func (Dialect) WriteIdentifier(builder *strings.Builder, identifier string) {
	writeIdentifier(builder, identifier)
}
