package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"hermannm.dev/devlog/log"
	"hermannm.dev/pivot/config"
	"hermannm.dev/wrap"
)

// Implements db.SchemaSource and db.ReportStore for PostgreSQL, with one data source per table in
// the current schema.
type PostgresDB struct {
	pool       *pgxpool.Pool
	maxRecords int
}

func NewPostgresDB(ctx context.Context, config config.Postgres, maxRecords int) (PostgresDB, error) {
	poolConfig, err := pgxpool.ParseConfig(config.URL)
	if err != nil {
		return PostgresDB{}, wrap.Error(err, "failed to parse PostgreSQL config")
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return PostgresDB{}, wrap.Error(err, "failed to create PostgreSQL connection pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return PostgresDB{}, wrap.Error(err, "failed to ping PostgreSQL")
	}

	log.Info("database connection established", slog.String("db", "PostgreSQL"))
	return PostgresDB{pool: pool, maxRecords: maxRecords}, nil
}

func (postgres PostgresDB) Close() error {
	postgres.pool.Close()
	return nil
}

// See https://www.postgresql.org/docs/current/errcodes-appendix.html
const postgresUndefinedTableErrorCode = "42P01"

func isUndefinedTableError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == postgresUndefinedTableErrorCode
}

// Implements db.Dialect for PostgreSQL, quoting identifiers with double quotes.
type Dialect struct{}

func (Dialect) ValidateIdentifier(identifier string) error {
	if identifier == "" {
		return errors.New("identifier is blank")
	}
	if strings.ContainsRune(identifier, '"') {
		return fmt.Errorf("'%s' contains \", which is incompatible with database", identifier)
	}
	return nil
}

func (Dialect) WriteIdentifier(builder *strings.Builder, identifier string) {
	builder.WriteByte('"')
	builder.WriteString(identifier)
	builder.WriteByte('"')
}
