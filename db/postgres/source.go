package postgres

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"hermannm.dev/devlog/log"
	"hermannm.dev/pivot/datatypes"
	"hermannm.dev/pivot/db"
	"hermannm.dev/wrap"
)

// Fetches the rows of the table named by the data source ID, up to the configured max records.
func (postgres PostgresDB) FetchRecords(
	ctx context.Context,
	dataSourceID string,
) ([]datatypes.Record, error) {
	query, err := buildFetchQuery(dataSourceID, postgres.maxRecords)
	if err != nil {
		return nil, err
	}

	log.Debug("generated postgres query", slog.String("query", query))

	rows, err := postgres.pool.Query(ctx, query)
	if err != nil {
		if isUndefinedTableError(err) {
			return nil, wrap.Errorf(err, "no PostgreSQL table found for data source '%s'", dataSourceID)
		}
		return nil, wrap.Error(err, "failed to execute query against PostgreSQL")
	}

	records, err := collectRecords(rows)
	if err != nil {
		if isUndefinedTableError(err) {
			return nil, wrap.Errorf(err, "no PostgreSQL table found for data source '%s'", dataSourceID)
		}
		return nil, wrap.Error(err, "failed to read query result")
	}
	return records, nil
}

func buildFetchQuery(table string, limit int) (string, error) {
	var dialect Dialect
	if err := dialect.ValidateIdentifier(table); err != nil {
		return "", wrap.Error(err, "invalid table name")
	}

	var query strings.Builder
	query.WriteString("SELECT * FROM ")
	dialect.WriteIdentifier(&query, table)
	if limit > 0 {
		query.WriteString(" LIMIT ")
		query.WriteString(strconv.Itoa(limit))
	}
	return query.String(), nil
}

func (postgres PostgresDB) FetchJoin(ctx context.Context, join db.JoinQuery) (db.Dataset, error) {
	query, err := join.WithMaxRecords(postgres.maxRecords).Build(Dialect{})
	if err != nil {
		return db.Dataset{}, err
	}

	log.Debug("generated postgres query", slog.String("query", query))

	rows, err := postgres.pool.Query(ctx, query)
	if err != nil {
		return db.Dataset{}, wrap.Error(err, "failed to execute join query against PostgreSQL")
	}

	records, err := collectRecords(rows)
	if err != nil {
		return db.Dataset{}, wrap.Error(err, "failed to read join query result")
	}

	schema, err := postgres.Schema(ctx)
	if err != nil {
		return db.Dataset{}, wrap.Error(err, "failed to get schema for join query fields")
	}

	for _, unrelated := range join.UnrelatedJoins(schema) {
		log.Warnf(
			"joined '%s.%s' to '%s.%s' without a foreign key between them",
			unrelated.Table, unrelated.RightColumn, unrelated.LeftTable, unrelated.LeftColumn,
		)
	}

	return db.Dataset{Records: records, Fields: join.Fields(schema)}, nil
}

func collectRecords(rows pgx.Rows) ([]datatypes.Record, error) {
	defer rows.Close()

	fieldDescriptions := rows.FieldDescriptions()

	records := []datatypes.Record{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, wrap.Error(err, "failed to decode result row")
		}

		record := make(datatypes.Record, len(values))
		for i, value := range values {
			record[fieldDescriptions[i].Name] = recordValue(value)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Converts pgx values without a natural record representation. Numerics become floats, and UUIDs
// become strings.
func recordValue(value any) any {
	switch value := value.(type) {
	case pgtype.Numeric:
		float, err := value.Float64Value()
		if err != nil || !float.Valid {
			return nil
		}
		return float.Float64
	case [16]byte:
		return uuid.UUID(value).String()
	case []byte:
		return string(value)
	default:
		return value
	}
}

const columnsQuery = `
	SELECT table_name, column_name, data_type
	FROM information_schema.columns
	WHERE table_schema = current_schema() AND table_name != $1
	ORDER BY table_name, ordinal_position`

const foreignKeysQuery = `
	SELECT kcu.table_name, kcu.column_name, ccu.table_name, ccu.column_name
	FROM information_schema.table_constraints tc
	JOIN information_schema.key_column_usage kcu
		ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
	JOIN information_schema.constraint_column_usage ccu
		ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
	WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = current_schema()
	ORDER BY kcu.table_name, kcu.column_name`

// Describes the tables of the current schema, with foreign keys as relations.
func (postgres PostgresDB) Schema(ctx context.Context) (datatypes.Schema, error) {
	var schema datatypes.Schema

	rows, err := postgres.pool.Query(ctx, columnsQuery, savedReportsTable)
	if err != nil {
		return datatypes.Schema{}, wrap.Error(err, "PostgreSQL columns query failed")
	}

	var table string
	var column datatypes.ColumnSchema
	if _, err := pgx.ForEachRow(
		rows,
		[]any{&table, &column.Name, &column.DataType},
		func() error {
			last := len(schema.Tables) - 1
			if last == -1 || schema.Tables[last].Name != table {
				schema.Tables = append(schema.Tables, datatypes.TableSchema{Name: table})
				last++
			}
			schema.Tables[last].Columns = append(schema.Tables[last].Columns, column)
			return nil
		},
	); err != nil {
		return datatypes.Schema{}, wrap.Error(err, "failed to read PostgreSQL columns")
	}

	rows, err = postgres.pool.Query(ctx, foreignKeysQuery)
	if err != nil {
		return datatypes.Schema{}, wrap.Error(err, "PostgreSQL foreign keys query failed")
	}

	var relation datatypes.TableRelation
	if _, err := pgx.ForEachRow(
		rows,
		[]any{&relation.FromTable, &relation.FromColumn, &relation.ToTable, &relation.ToColumn},
		func() error {
			schema.Relations = append(schema.Relations, relation)
			return nil
		},
	); err != nil {
		return datatypes.Schema{}, wrap.Error(err, "failed to read PostgreSQL foreign keys")
	}

	return schema, nil
}

// Fields of the table named by the data source ID, for registering in a datatypes.Registry.
func (postgres PostgresDB) Fields(
	ctx context.Context,
	dataSourceID string,
) ([]datatypes.Field, error) {
	rows, err := postgres.pool.Query(
		ctx,
		`SELECT column_name, data_type FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position`,
		dataSourceID,
	)
	if err != nil {
		return nil, wrap.Error(err, "PostgreSQL columns query failed")
	}

	fields := []datatypes.Field{}
	var name, dataType string
	if _, err := pgx.ForEachRow(rows, []any{&name, &dataType}, func() error {
		fields = append(fields, datatypes.Field{
			Key:   name,
			Label: name,
			Type:  datatypes.DataTypeFromDatabaseType(dataType),
		})
		return nil
	}); err != nil {
		return nil, wrap.Error(err, "failed to read PostgreSQL columns")
	}

	return fields, nil
}
