package clickhouse

import (
	"context"
	"log/slog"
	"reflect"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"hermannm.dev/devlog/log"
	"hermannm.dev/pivot/datatypes"
	"hermannm.dev/pivot/db"
	"hermannm.dev/wrap"
)

// Fetches records from the table named by the data source ID, up to the configured max records.
func (clickhouse ClickHouseDB) FetchRecords(
	ctx context.Context,
	dataSourceID string,
) ([]datatypes.Record, error) {
	queryString, err := buildFetchQuery(dataSourceID, clickhouse.maxRecords)
	if err != nil {
		return nil, err
	}

	log.Debug("generated clickhouse query", slog.String("query", queryString))

	rows, err := clickhouse.conn.Query(ctx, queryString)
	if err != nil {
		if isUnknownTableError(err) {
			return nil, wrap.Errorf(err, "no ClickHouse table found for data source '%s'", dataSourceID)
		}
		return nil, wrap.Error(err, "failed to execute query against ClickHouse")
	}

	records, err := scanRecords(rows)
	if err != nil {
		return nil, wrap.Error(err, "failed to parse query result")
	}
	return records, nil
}

func buildFetchQuery(table string, limit int) (string, error) {
	if err := ValidateIdentifier(table); err != nil {
		return "", wrap.Error(err, "invalid table name")
	}

	var query QueryBuilder
	query.WriteString("SELECT * FROM ")
	query.WriteIdentifier(table)
	if limit > 0 {
		query.WriteString(" LIMIT ")
		query.WriteInt(limit)
	}
	return query.String(), nil
}

func (clickhouse ClickHouseDB) FetchJoin(ctx context.Context, join db.JoinQuery) (db.Dataset, error) {
	queryString, err := join.WithMaxRecords(clickhouse.maxRecords).Build(Dialect{})
	if err != nil {
		return db.Dataset{}, err
	}

	log.Debug("generated clickhouse query", slog.String("query", queryString))

	rows, err := clickhouse.conn.Query(ctx, queryString)
	if err != nil {
		return db.Dataset{}, wrap.Error(err, "failed to execute join query against ClickHouse")
	}

	records, err := scanRecords(rows)
	if err != nil {
		return db.Dataset{}, wrap.Error(err, "failed to parse join query result")
	}

	schema, err := clickhouse.Schema(ctx)
	if err != nil {
		return db.Dataset{}, wrap.Error(err, "failed to get schema for join query fields")
	}

	return db.Dataset{Records: records, Fields: join.Fields(schema)}, nil
}

// Describes the tables of the current database. ClickHouse has no foreign keys, so the schema has
// no relations.
func (clickhouse ClickHouseDB) Schema(ctx context.Context) (datatypes.Schema, error) {
	var query QueryBuilder
	query.WriteString("SELECT ")
	query.WriteIdentifiers("table", "name", "type")
	query.WriteString(" FROM system.columns WHERE database = currentDatabase() AND ")
	query.WriteIdentifier("table")
	query.WriteString(" != ? ORDER BY ")
	query.WriteIdentifier("table")
	query.WriteString(", position")

	rows, err := clickhouse.conn.Query(ctx, query.String(), savedReportsTable)
	if err != nil {
		return datatypes.Schema{}, wrap.Error(err, "ClickHouse schema query failed")
	}
	defer rows.Close()

	var schema datatypes.Schema
	for rows.Next() {
		var table string
		var column datatypes.ColumnSchema
		if err := rows.Scan(&table, &column.Name, &column.DataType); err != nil {
			return datatypes.Schema{}, wrap.Error(err, "failed to scan ClickHouse column row")
		}

		last := len(schema.Tables) - 1
		if last == -1 || schema.Tables[last].Name != table {
			schema.Tables = append(schema.Tables, datatypes.TableSchema{Name: table})
			last++
		}
		schema.Tables[last].Columns = append(schema.Tables[last].Columns, column)
	}
	if err := rows.Err(); err != nil {
		return datatypes.Schema{}, wrap.Error(err, "failed to read ClickHouse schema rows")
	}

	return schema, nil
}

// Fields of the table named by the data source ID, for registering in a datatypes.Registry.
func (clickhouse ClickHouseDB) Fields(
	ctx context.Context,
	dataSourceID string,
) ([]datatypes.Field, error) {
	schema, err := clickhouse.Schema(ctx)
	if err != nil {
		return nil, err
	}

	table, ok := schema.Table(dataSourceID)
	if !ok {
		return []datatypes.Field{}, nil
	}

	fields := make([]datatypes.Field, 0, len(table.Columns))
	for _, column := range table.Columns {
		fields = append(fields, datatypes.Field{
			Key:   column.Name,
			Label: column.Name,
			Type:  datatypes.DataTypeFromDatabaseType(column.DataType),
		})
	}
	return fields, nil
}

func scanRecords(rows driver.Rows) ([]datatypes.Record, error) {
	defer rows.Close()

	columns := rows.Columns()
	columnTypes := rows.ColumnTypes()

	records := []datatypes.Record{}
	for rows.Next() {
		values := make([]any, len(columnTypes))
		for i, columnType := range columnTypes {
			values[i] = reflect.New(columnType.ScanType()).Interface()
		}

		if err := rows.Scan(values...); err != nil {
			return nil, wrap.Error(err, "failed to scan result row")
		}

		record := make(datatypes.Record, len(columns))
		for i, column := range columns {
			record[column] = recordValue(values[i])
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, wrap.Error(err, "failed to read result rows")
	}
	return records, nil
}

// Dereferences a scanned value. Nullable columns scan into pointers, where nil becomes a nil value.
func recordValue(scanned any) any {
	value := reflect.ValueOf(scanned)
	for value.Kind() == reflect.Pointer {
		if value.IsNil() {
			return nil
		}
		value = value.Elem()
	}
	return value.Interface()
}
